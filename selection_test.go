/*
 * selection_test.go, part of mergetraj
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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selTopology() *Topology {
	ats := []*Atom{
		{Name: "N", ID: 10, MolName: "ALA", MolID: 1, Chain: "A", Segid: "PROT"},
		{Name: "CA", ID: 11, MolName: "ALA", MolID: 1, Chain: "A", Segid: "PROT"},
		{Name: "CB", ID: 12, MolName: "ALA", MolID: 1, Chain: "A", Segid: "PROT"},
		{Name: "N", ID: 13, MolName: "GLY", MolID: 2, Chain: "A", Segid: "PROT"},
		{Name: "CA", ID: 14, MolName: "GLY", MolID: 2, Chain: "A", Segid: "PROT"},
		{Name: "OH2", ID: 15, MolName: "TIP3", MolID: 3, Chain: "W", Segid: "SOLV"},
		{Name: "OH2", ID: 16, MolName: "TIP3", MolID: 4, Chain: "W", Segid: "SOLV"},
	}
	return NewTopology(ats)
}

func TestSelect(t *testing.T) {
	top := selTopology()
	cases := []struct {
		query string
		want  []int
	}{
		{"all", []int{0, 1, 2, 3, 4, 5, 6}},
		{"name CA", []int{1, 4}},
		{"name CA,CB", []int{1, 2, 4}},
		{"name CA CB", []int{1, 2, 4}},
		{`segid=="SOLV"`, []int{5, 6}},
		{"segid='PROT' and name CA", []int{1, 4}},
		{"resid 1-2 and not name N", []int{1, 2, 4}},
		{"resname GLY or segid SOLV", []int{3, 4, 5, 6}},
		{"name N and resid 2 or resid 4", []int{3, 6}},
		{"index 0,5-6", []int{0, 5, 6}},
		{"id 12", []int{2}},
		{"chain W and not resid 3", []int{6}},
		{"name ZN", []int{}},
	}
	for _, c := range cases {
		got, err := Select(top, c.query)
		require.NoError(t, err, c.query)
		assert.Equal(t, c.want, got, c.query)
	}
}

func TestSelectErrors(t *testing.T) {
	top := selTopology()
	for _, q := range []string{"", "mass 12", "name", "resid 3-1", "resid x", "name CA and", "not", "all 3"} {
		_, err := Select(top, q)
		assert.Error(t, err, q)
	}
}
