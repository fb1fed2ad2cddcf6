/*
 * driver_test.go, part of mergetraj
 *
 * Copyright 2024 The mergetraj authors
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package merge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	chem "github.com/rmera/mergetraj"
	"github.com/rmera/mergetraj/traj"
	"github.com/rmera/mergetraj/traj/dcd"
	v3 "github.com/rmera/mergetraj/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const natoms = 10

// 10 atoms without bonds, in two segments of 5.
func topology() *chem.Topology {
	ats := make([]*chem.Atom, natoms)
	for i := range ats {
		seg := "A"
		if i >= 5 {
			seg = "B"
		}
		ats[i] = &chem.Atom{Name: "CA", ID: i + 1, MolName: "ALA", MolID: i + 1, Segid: seg}
	}
	return chem.NewTopology(ats)
}

// frame returns a frame that encodes its global index in the x coordinates.
func frame(index int) *v3.Matrix {
	m := v3.Zeros(natoms)
	for j := 0; j < natoms; j++ {
		m.SetVec(j, [3]float64{float64(index), float64(j), float64(index + j)})
	}
	return m
}

// writeInput appends the frames with global indexes first to first+n-1 to name.
func writeInput(t *testing.T, name string, first, n int, periodic bool) {
	t.Helper()
	w, err := dcd.NewWriter(name, dcd.Header{Natoms: natoms, Frames: dcd.Unlimited, Periodic: periodic, Timestep: 0.002})
	require.NoError(t, err)
	for i := first; i < first+n; i++ {
		if periodic {
			require.NoError(t, w.WNext(frame(i), []float64{40 + 0.5*float64(i), 40, 40}))
		} else {
			require.NoError(t, w.WNext(frame(i)))
		}
	}
	require.NoError(t, w.Close())
}

func run(t *testing.T, cfg Config, inputs []string, opts ...Option) *Summary {
	t.Helper()
	d, err := New(cfg, topology(), opts...)
	require.NoError(t, err)
	s, err := d.Run(context.Background(), inputs)
	require.NoError(t, err)
	return s
}

// xs returns the x coordinate of the first atom in each frame of name.
func xs(t *testing.T, name string) []int {
	t.Helper()
	r, err := dcd.New(name)
	require.NoError(t, err)
	defer r.Close()
	m := v3.Zeros(natoms)
	ret := make([]int, 0)
	for {
		err := r.Next(m)
		if chem.IsLastFrame(err) {
			return ret
		}
		require.NoError(t, err)
		ret = append(ret, int(m.At(0, 0)))
	}
}

func readFile(t *testing.T, name string) []byte {
	t.Helper()
	b, err := os.ReadFile(name)
	require.NoError(t, err)
	return b
}

func TestSingleInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dcd")
	writeInput(t, in, 0, 4, false)
	out := filepath.Join(dir, "out.dcd")
	s := run(t, Config{Output: out}, []string{in})
	assert.Equal(t, 4, s.Written)
	assert.Equal(t, 4, s.Total)

	r, err := dcd.New(out)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, natoms, r.Len())
	assert.False(t, r.Periodic())
	assert.Equal(t, float32(DefaultTimestep), r.Timestep())
	n, err := r.NFrames()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	m := v3.Zeros(natoms)
	for i := 0; i < 4; i++ {
		require.NoError(t, r.Next(m))
		assert.Equal(t, frame(i).RawMatrix().Data, m.RawMatrix().Data)
	}
}

func TestIdempotentResume(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.dcd"), filepath.Join(dir, "b.dcd")
	writeInput(t, a, 0, 3, true)
	writeInput(t, b, 3, 2, true)
	cfg := Config{Output: filepath.Join(dir, "out.dcd"), Downsample: filepath.Join(dir, "down.dcd"), DownsampleRate: 2}
	run(t, cfg, []string{a, b})
	first := readFile(t, cfg.Output)
	firstDown := readFile(t, cfg.Downsample)

	s := run(t, cfg, []string{a, b})
	assert.Equal(t, 0, s.Written)
	assert.Equal(t, 5, s.Total)
	assert.Equal(t, []string{a, b}, s.Skipped)
	assert.Equal(t, first, readFile(t, cfg.Output))
	assert.Equal(t, firstDown, readFile(t, cfg.Downsample))
}

func TestMonotonicExtension(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.dcd"), filepath.Join(dir, "b.dcd")
	writeInput(t, a, 0, 7, false)
	writeInput(t, b, 7, 5, false)

	once := Config{Output: filepath.Join(dir, "once.dcd"), Downsample: filepath.Join(dir, "once-down.dcd"), DownsampleRate: 3}
	run(t, once, []string{a, b})
	twice := Config{Output: filepath.Join(dir, "twice.dcd"), Downsample: filepath.Join(dir, "twice-down.dcd"), DownsampleRate: 3}
	run(t, twice, []string{a})
	s := run(t, twice, []string{a, b})
	assert.Equal(t, 5, s.Written)
	assert.Equal(t, 1, s.Downsampled)

	assert.Equal(t, readFile(t, once.Output), readFile(t, twice.Output))
	assert.Equal(t, readFile(t, once.Downsample), readFile(t, twice.Downsample))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, xs(t, once.Output))
	assert.Equal(t, []int{0, 3, 6, 9}, xs(t, once.Downsample))
}

// An input that grew after it was merged is completed on the next run.
func TestGrowingInput(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.dcd"), filepath.Join(dir, "b.dcd")
	writeInput(t, a, 0, 4, false)
	cfg := Config{Output: filepath.Join(dir, "out.dcd")}
	run(t, cfg, []string{a})
	writeInput(t, a, 4, 3, false)
	writeInput(t, b, 7, 2, false)
	s := run(t, cfg, []string{a, b})
	assert.Equal(t, 5, s.Written)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, xs(t, cfg.Output))
}

func TestSkipFirstFrame(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a.dcd"), filepath.Join(dir, "b.dcd")
	writeInput(t, a, 0, 3, false)
	writeInput(t, b, 10, 1, false)
	cfg := Config{Output: filepath.Join(dir, "out.dcd"), SkipFirstFrame: true}
	run(t, cfg, []string{a})
	s := run(t, cfg, []string{a, b})
	assert.Equal(t, 1, s.Written)
	assert.Equal(t, 3, s.Merged)
	//single-frame inputs keep their frame
	assert.Equal(t, []int{1, 2, 10}, xs(t, cfg.Output))
}

func TestCentering(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dcd")
	writeInput(t, in, 0, 3, true)
	plot := filepath.Join(dir, "box.png")
	cfg := Config{Output: filepath.Join(dir, "out.dcd"), Center: "segid B", FixImaging: true}
	run(t, cfg, []string{in}, WithBoxPlot(plot))

	r, err := dcd.New(cfg.Output)
	require.NoError(t, err)
	defer r.Close()
	assert.True(t, r.Periodic())
	m := v3.Zeros(natoms)
	box := make([]float64, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, r.Next(m, box))
		assert.InDelta(t, 40+0.5*float64(i), box[0], 1e-9)
		var c [3]float64
		for j := 5; j < natoms; j++ {
			v := m.Vec(j)
			for k := range c {
				c[k] += v[k] / 5
			}
		}
		assert.InDeltaSlice(t, []float64{0, 0, 0}, c[:], 1e-4, "frame %d", i)
	}
	_, err = os.Stat(plot)
	assert.NoError(t, err)
}

func TestNonPeriodicReimaging(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dcd")
	writeInput(t, in, 0, 2, false)
	d, err := New(Config{Output: filepath.Join(dir, "out.dcd"), FixImaging: true}, topology())
	require.NoError(t, err)
	_, err = d.Run(context.Background(), []string{in})
	assert.Error(t, err)
	n, err := dcd.FramesIn(filepath.Join(dir, "out.dcd"))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestConfigErrors(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.dcd")
	cases := []struct {
		cfg  Config
		want error
	}{
		{Config{Output: out, Center: "all", ZCenter: "segid A"}, ErrConflictingCentering},
		{Config{Output: out, Center: "segid Z"}, ErrEmptySelection},
		{Config{Output: out, Downsample: filepath.Join(dir, "d.dcd")}, ErrBadDownsampleRate},
		{Config{Output: out, XYCenter: "bogus A"}, nil},
		{Config{}, nil},
	}
	for _, c := range cases {
		_, err := New(c.cfg, topology())
		require.Error(t, err)
		if c.want != nil {
			assert.ErrorIs(t, err, c.want)
		}
	}
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestCancelled(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dcd")
	writeInput(t, in, 0, 2, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, err := New(Config{Output: filepath.Join(dir, "out.dcd")}, topology())
	require.NoError(t, err)
	_, err = d.Run(ctx, []string{in})
	assert.ErrorIs(t, err, context.Canceled)
}

// failing yields a few frames and then fails.
type failing struct {
	frames, read int
}

func (f *failing) Readable() bool { return true }
func (f *failing) Len() int { return natoms }
func (f *failing) NFrames() (int, error) { return f.frames + 1, nil }
func (f *failing) Seek(frame int) error { f.read = frame; return nil }
func (f *failing) Periodic() bool { return false }
func (f *failing) Close() {}
func (f *failing) Next(m *v3.Matrix, box ...[]float64) error {
	if f.read == f.frames {
		return errors.New("corrupted frame")
	}
	m.Copy(frame(f.read))
	f.read++
	return nil
}

func TestFailedRead(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.dcd")
	opener := func(name string, n int, opts traj.Options) (chem.FrameSource, error) {
		return &failing{frames: 2}, nil
	}
	d, err := New(Config{Output: out}, topology(), WithOpener(opener))
	require.NoError(t, err)
	s, err := d.Run(context.Background(), []string{"broken"})
	assert.EqualError(t, err, "corrupted frame")
	assert.Equal(t, 2, s.Written)
	assert.Equal(t, []int{0, 1}, xs(t, out))
}

func TestDownsampleWarning(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dcd")
	writeInput(t, in, 0, 4, false)
	out := filepath.Join(dir, "out.dcd")
	run(t, Config{Output: out}, []string{in})

	core, logs := observer.New(zap.InfoLevel)
	cfg := Config{Output: out, Downsample: filepath.Join(dir, "down.dcd"), DownsampleRate: 3}
	s := run(t, cfg, []string{in}, WithLogger(zap.New(core)))
	assert.Equal(t, 0, s.Downsampled)
	assert.Equal(t, 1, logs.FilterMessage("downsampled trajectory out of step with the merged one").Len())
	assert.Equal(t, 1, logs.FilterMessage("skipping").Len())
}

// An output written for another system is never taken as already merged.
func TestExistingOutputAtomCount(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.dcd")
	writeInput(t, in, 0, 4, false)

	other := filepath.Join(dir, "other.dcd")
	w, err := dcd.NewWriter(other, dcd.Header{Natoms: 5, Frames: dcd.Unlimited})
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		require.NoError(t, w.WNext(v3.Zeros(5)))
	}
	require.NoError(t, w.Close())
	before := readFile(t, other)

	d, err := New(Config{Output: other}, topology())
	require.NoError(t, err)
	s, err := d.Run(context.Background(), []string{in})
	assert.ErrorIs(t, err, dcd.ErrAtomCountMismatch)
	assert.Nil(t, s)
	assert.Equal(t, before, readFile(t, other))

	out := filepath.Join(dir, "out.dcd")
	d, err = New(Config{Output: out, Downsample: other, DownsampleRate: 2}, topology())
	require.NoError(t, err)
	_, err = d.Run(context.Background(), []string{in})
	assert.ErrorIs(t, err, dcd.ErrAtomCountMismatch)
	n, err := dcd.FramesIn(out)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
