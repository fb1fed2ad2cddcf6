/*
 * partition_test.go, part of mergetraj
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

package chem

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segTopology(segs ...string) *Topology {
	ats := make([]*Atom, 0, len(segs))
	for i, s := range segs {
		ats = append(ats, &Atom{Name: fmt.Sprintf("C%d", i), ID: i + 1, Segid: s})
	}
	return NewTopology(ats)
}

func TestMoleculesBySegid(t *testing.T) {
	top := segTopology("A", "A", "A", "A", "A", "B", "B", "B", "B", "B")
	groups := Molecules(top)
	assert.Equal(t, [][]int{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}}, groups)
	require.NoError(t, CheckPartition(groups, top.Len()))

	//non contiguous segments still form one group each
	top = segTopology("A", "B", "A", "C")
	groups = Molecules(top)
	assert.Equal(t, [][]int{{0, 2}, {1}, {3}}, groups)
	require.NoError(t, CheckPartition(groups, top.Len()))
}

func TestMoleculesByBonds(t *testing.T) {
	top := segTopology("A", "A", "A", "A", "A", "A", "A")
	require.NoError(t, top.AddBond(0, 3))
	require.NoError(t, top.AddBond(3, 5))
	require.NoError(t, top.AddBond(1, 2))
	require.NoError(t, top.AddBond(2, 1)) //repeated
	assert.Len(t, top.Bonds, 3)
	assert.Error(t, top.AddBond(4, 4))
	assert.Error(t, top.AddBond(0, 7))

	groups := Molecules(top)
	assert.Equal(t, [][]int{{0, 3, 5}, {1, 2}, {4}, {6}}, groups)
	require.NoError(t, CheckPartition(groups, top.Len()))
}

func TestCheckPartition(t *testing.T) {
	assert.NoError(t, CheckPartition([][]int{{1, 0}, {2}}, 3))
	assert.Error(t, CheckPartition([][]int{{0, 1}, {1, 2}}, 3), "overlap")
	assert.Error(t, CheckPartition([][]int{{0, 1}}, 3), "missing atom")
	assert.Error(t, CheckPartition([][]int{{0, 1, 2}, {}}, 3), "empty group")
	assert.Error(t, CheckPartition([][]int{{0, 1, 3}}, 3), "out of range")
}
