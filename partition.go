/*
 * partition.go, part of mergetraj
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
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Molecules splits the topology into disjoint groups of atom indexes that
// cover all the atoms. If the topology has bonds, each group is a connected
// component of the bond graph. Otherwise atoms are grouped by segment id.
// Indexes in each group are sorted, and groups are sorted by their first index.
func Molecules(top *Topology) [][]int {
	if top.HasBonds() {
		return moleculesByBonds(top)
	}
	return moleculesBySegid(top)
}

func moleculesByBonds(top *Topology) [][]int {
	g := simple.NewUndirectedGraph()
	for i := 0; i < top.Len(); i++ {
		g.AddNode(simple.Node(i))
	}
	for _, b := range top.Bonds {
		from, to := simple.Node(b.At1.Index()), simple.Node(b.At2.Index())
		if from == to || g.HasEdgeBetween(from.ID(), to.ID()) {
			continue
		}
		g.SetEdge(simple.Edge{F: from, T: to})
	}
	components := topo.ConnectedComponents(g)
	groups := make([][]int, 0, len(components))
	for _, c := range components {
		group := make([]int, 0, len(c))
		for _, n := range c {
			group = append(group, int(n.ID()))
		}
		sort.Ints(group)
		groups = append(groups, group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}

//Segments that are not contiguous still go into one group.
func moleculesBySegid(top *Topology) [][]int {
	order := make(map[string]int)
	groups := make([][]int, 0)
	for i, at := range top.Atoms {
		g, ok := order[at.Segid]
		if !ok {
			g = len(groups)
			order[at.Segid] = g
			groups = append(groups, make([]int, 0))
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

// CheckPartition returns an error unless groups are non-empty, pairwise disjoint,
// and together cover exactly the indexes 0 to natoms-1.
func CheckPartition(groups [][]int, natoms int) error {
	seen := make([]bool, natoms)
	count := 0
	for gi, g := range groups {
		if len(g) == 0 {
			return CError{msg: fmt.Sprintf("Group %d is empty", gi), deco: []string{"CheckPartition"}}
		}
		for _, i := range g {
			if i < 0 || i >= natoms {
				return CError{msg: fmt.Sprintf("Atom index %d in group %d out of range", i, gi), deco: []string{"CheckPartition"}}
			}
			if seen[i] {
				return CError{msg: fmt.Sprintf("Atom %d is in more than one group", i), deco: []string{"CheckPartition"}}
			}
			seen[i] = true
			count++
		}
	}
	if count != natoms {
		return CError{msg: fmt.Sprintf("Groups cover %d of %d atoms", count, natoms), deco: []string{"CheckPartition"}}
	}
	return nil
}
