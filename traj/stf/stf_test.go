/*
 * stf_test.go, part of mergetraj
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

package stf

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	chem "github.com/rmera/mergetraj"
	v3 "github.com/rmera/mergetraj/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(t *testing.T, shift float64) *v3.Matrix {
	t.Helper()
	m, err := v3.NewMatrix([]float64{1 + shift, 2, 3, 4, 5 + shift, 6, -7, -8.25, 9 + shift})
	require.NoError(t, err)
	return m
}

func TestWriteRead(t *testing.T) {
	//one name per compression
	for _, ext := range []string{".stf", ".stz", ".stl", ".str"} {
		t.Run(ext, func(t *testing.T) {
			name := filepath.Join(t.TempDir(), "traj"+ext)
			w, err := NewWriter(name, 3, map[string]string{"title": "test"})
			require.NoError(t, err)
			for i := 0; i < 4; i++ {
				require.NoError(t, w.WNext(frame(t, float64(i)), []float64{30 + float64(i), 31, 32}))
			}
			require.NoError(t, w.Close())

			r, header, err := New(name)
			require.NoError(t, err)
			defer r.Close()
			assert.Equal(t, "test", header["title"])
			assert.Equal(t, "2", header["prec"])
			assert.Equal(t, 3, r.Len())
			assert.True(t, r.Periodic())
			n, err := r.NFrames()
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			m := v3.Zeros(3)
			box := make([]float64, 3)
			for i := 0; i < 4; i++ {
				require.NoError(t, r.Next(m, box))
				assert.InDeltaSlice(t, frame(t, float64(i)).RawMatrix().Data, m.RawMatrix().Data, 1e-9)
				assert.Equal(t, []float64{30 + float64(i), 31, 32}, box)
			}
			assert.True(t, chem.IsLastFrame(r.Next(m)))

			require.NoError(t, r.Seek(2))
			require.NoError(t, r.Next(m))
			assert.InDeltaSlice(t, frame(t, 2).RawMatrix().Data, m.RawMatrix().Data, 1e-9)
			require.NoError(t, r.Seek(4))
			assert.True(t, chem.IsLastFrame(r.Next(nil)))
			assert.Error(t, r.Seek(5))
		})
	}
}

func TestNoBoxAndPrecision(t *testing.T) {
	name := filepath.Join(t.TempDir(), "nobox.stf")
	w, err := NewWriter(name, 3, map[string]string{"prec": "1"})
	require.NoError(t, err)
	require.NoError(t, w.WNext(frame(t, 0.04)))
	assert.Error(t, w.WNext(v3.Zeros(2)))
	require.NoError(t, w.Close())

	r, _, err := New(name)
	require.NoError(t, err)
	defer r.Close()
	assert.False(t, r.Periodic())
	m := v3.Zeros(3)
	box := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1}
	require.NoError(t, r.Next(m, box))
	//one decimal place
	assert.InDelta(t, 1.0, m.At(0, 0), 1e-9)
	assert.InDelta(t, -8.2, m.At(2, 1), 1e-9)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 1, 1, 1}, box, "untouched without box vectors")
}

func TestNewErrors(t *testing.T) {
	_, _, err := New(filepath.Join(t.TempDir(), "missing.stf"))
	assert.Error(t, err)
	_, err = NewWriter(filepath.Join(t.TempDir(), "bad.stf"), 3, map[string]string{"prec": "x"})
	assert.Error(t, err)
}

func TestTruncatedFrame(t *testing.T) {
	full := "1.00 2.00 3.00\n4.00 5.00 6.00\n7.00 8.00 9.00\n*\n"
	for name, tail := range map[string]string{
		"half line":    "1.00 2.0",
		"whole lines":  "1.00 2.00 3.00\n4.00 5.00 6.00\n",
		"no separator": "1.00 2.00 3.00\n4.00 5.00 6.00\n7.00 8.00 9.00\n",
	} {
		for _, ext := range []string{".stf", ".stz"} {
			t.Run(name+ext, func(t *testing.T) {
				fname := filepath.Join(t.TempDir(), "growing"+ext)
				f, err := os.Create(fname)
				require.NoError(t, err)
				var w io.WriteCloser = nopCloser{f}
				if ext == ".stz" {
					w = gzip.NewWriter(f)
				}
				_, err = io.WriteString(w, "prec=2\n** 3\n"+full+tail)
				require.NoError(t, err)
				require.NoError(t, w.Close())
				require.NoError(t, f.Close())

				r, _, err := New(fname)
				require.NoError(t, err)
				defer r.Close()
				n, err := r.NFrames()
				require.NoError(t, err)
				assert.Equal(t, 1, n)
				m := v3.Zeros(3)
				require.NoError(t, r.Next(m))
				assert.InDelta(t, 8.0, m.At(2, 1), 1e-9)
				err = r.Next(m)
				assert.True(t, chem.IsLastFrame(err), "got %v", err)
				assert.False(t, r.Readable())
			})
		}
	}
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
