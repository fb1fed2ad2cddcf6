/*
 * traj_test.go, part of mergetraj
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

package traj

import (
	"os"
	"path/filepath"
	"testing"

	chem "github.com/rmera/mergetraj"
	"github.com/rmera/mergetraj/traj/dcd"
	"github.com/rmera/mergetraj/traj/stf"
	v3 "github.com/rmera/mergetraj/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	coords, err := v3.NewMatrix([]float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	d, err := dcd.NewWriter(filepath.Join(dir, "a.dcd"), dcd.Header{Natoms: 2, Frames: dcd.Unlimited})
	require.NoError(t, err)
	require.NoError(t, d.WNext(coords))
	require.NoError(t, d.Close())

	s, err := stf.NewWriter(filepath.Join(dir, "a.stf"), 2, nil)
	require.NoError(t, err)
	require.NoError(t, s.WNext(coords, []float64{10, 10, 10}))
	require.NoError(t, s.Close())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mdcrd"),
		[]byte("title\n   1.000   2.000   3.000   4.000   5.000   6.000\n  10.000  10.000  10.000\n"), 0644))

	for _, c := range []struct {
		name     string
		periodic bool
	}{{"a.dcd", false}, {"a.stf", true}, {"a.mdcrd", true}} {
		src, err := Open(filepath.Join(dir, c.name), 2, Options{AmberBox: true})
		require.NoError(t, err, c.name)
		assert.Equal(t, c.periodic, src.Periodic(), c.name)
		n, err := src.NFrames()
		require.NoError(t, err, c.name)
		assert.Equal(t, 1, n, c.name)
		m := v3.Zeros(2)
		require.NoError(t, src.Next(m), c.name)
		assert.Equal(t, [3]float64{4, 5, 6}, m.Vec(1), c.name)
		assert.True(t, chem.IsLastFrame(src.Next(m)), c.name)
		src.Close()
	}

	_, err = Open(filepath.Join(dir, "a.dcd"), 3, Options{})
	assert.Error(t, err, "atom count")
	_, err = Open(filepath.Join(dir, "a.xtc"), 2, Options{})
	assert.Error(t, err, "format")
}
