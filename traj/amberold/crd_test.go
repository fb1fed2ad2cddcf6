/*
 * crd_test.go, part of mergetraj
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

package amberold

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	chem "github.com/rmera/mergetraj"
	v3 "github.com/rmera/mergetraj/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCrd writes frames of 4 atoms in the 10F8.3 layout, with the
// coordinates of atom j in frame i being (i, j, -100*(j+1)).
func writeCrd(t *testing.T, frames int, box bool, extra string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("title line\n")
	for i := 0; i < frames; i++ {
		vals := make([]float64, 0, 12)
		for j := 0; j < 4; j++ {
			vals = append(vals, float64(i), float64(j), -100*float64(j+1))
		}
		for k, v := range vals {
			fmt.Fprintf(&b, "%8.3f", v)
			if k%10 == 9 || k == len(vals)-1 {
				b.WriteString("\n")
			}
		}
		if box {
			fmt.Fprintf(&b, "%8.3f%8.3f%8.3f\n", 40+float64(i), 41.0, 42.0)
		}
	}
	b.WriteString(extra)
	name := filepath.Join(t.TempDir(), "traj.crd")
	require.NoError(t, os.WriteFile(name, []byte(b.String()), 0644))
	return name
}

func TestCrdBox(t *testing.T) {
	name := writeCrd(t, 3, true, "   1.000   2.000\n")
	traj, err := New(name, 4, true)
	require.NoError(t, err)
	defer traj.Close()
	assert.True(t, traj.Periodic())
	n, err := traj.NFrames()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	m := v3.Zeros(4)
	box := make([]float64, 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, traj.Next(m, box))
		assert.Equal(t, [3]float64{float64(i), 3, -400}, m.Vec(3))
		assert.Equal(t, []float64{40 + float64(i), 41, 42}, box)
	}
	//the trailing partial frame is ignored
	assert.True(t, chem.IsLastFrame(traj.Next(m)))

	require.NoError(t, traj.Seek(1))
	require.NoError(t, traj.Next(m))
	assert.Equal(t, [3]float64{1, 0, -100}, m.Vec(0))
	require.NoError(t, traj.Seek(3))
	assert.True(t, chem.IsLastFrame(traj.Next(nil)))
	assert.Error(t, traj.Seek(4))
}

func TestCrdNoBox(t *testing.T) {
	name := writeCrd(t, 2, false, "")
	traj, err := New(name, 4, false)
	require.NoError(t, err)
	defer traj.Close()
	assert.False(t, traj.Periodic())
	n, err := traj.NFrames()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	m := v3.Zeros(4)
	require.NoError(t, traj.Next(nil))
	require.NoError(t, traj.Next(m))
	assert.Equal(t, [3]float64{1, 2, -300}, m.Vec(2))
}

func TestParseLine(t *testing.T) {
	vals, err := parseLine("   1.000-200.000  -3.500\n")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, -200, -3.5}, vals)
	_, err = parseLine("   1.000     abc\n")
	assert.Error(t, err)
}
