/*
 * reimage.go, part of mergetraj
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

// Package reimage puts the molecules of a periodic system back into the primary
// box, fixing molecules split across the box boundaries, and optionally
// centers the system on a selection.
package reimage

import (
	"errors"
	"fmt"
	"math"

	chem "github.com/rmera/mergetraj"
	v3 "github.com/rmera/mergetraj/v3"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoBox is returned when a frame without box needs reimaging.
	ErrNoBox = errors.New("reimaging requires a periodic box")

	// ErrConflictingCentering is returned when full centering is requested together
	// with xy or z centering.
	ErrConflictingCentering = errors.New("full centering can't be combined with xy or z centering")
)

// Options selects what is done to each frame. The centering selections
// are lists of atom indexes. Center can't be used together with XYCenter
// or ZCenter, but those two can be combined.
type Options struct {
	Center   []int
	XYCenter []int
	ZCenter  []int

	//SelectionSplit means that the centering selection may itself be split across
	//the box boundaries, so the system is first centered on one of its atoms.
	SelectionSplit bool

	//FixImaging puts together molecules split across the box boundaries.
	FixImaging bool
}

// Centering returns true if any centering selection is set.
func (o Options) Centering() bool {
	return len(o.Center) > 0 || len(o.XYCenter) > 0 || len(o.ZCenter) > 0
}

// Active returns true if the options require any change to the frames.
func (o Options) Active() bool {
	return o.FixImaging || o.Centering()
}

// Reimager applies Options to frames. The molecule groups are not
// modified, so a Reimager can be used for any number of frames.
type Reimager struct {
	groups [][]int
	natoms int
	opts   Options
}

// New returns a Reimager for a system split into the molecules given by groups, which must
// be a partition of the atoms of the system (see chem.CheckPartition).
func New(groups [][]int, opts Options) (*Reimager, error) {
	if len(opts.Center) > 0 && (len(opts.XYCenter) > 0 || len(opts.ZCenter) > 0) {
		return nil, ErrConflictingCentering
	}
	natoms := 0
	for _, g := range groups {
		natoms += len(g)
	}
	if err := chem.CheckPartition(groups, natoms); err != nil {
		return nil, fmt.Errorf("reimage: invalid molecule groups: %w", err)
	}
	for _, sel := range [][]int{opts.Center, opts.XYCenter, opts.ZCenter} {
		for _, i := range sel {
			if i < 0 || i >= natoms {
				return nil, fmt.Errorf("reimage: selected atom %d out of range (%d atoms)", i, natoms)
			}
		}
	}
	return &Reimager{groups: groups, natoms: natoms, opts: opts}, nil
}

// Apply puts in dst the coordinates in src after applying the options. dst and src can
// be the same matrix. box contains the 3 orthogonal box lengths. It can be nil only if
// no option is active.
//
// When both are requested, molecules are fixed before centering. Centering translates
// the whole system so the centroid of the selection is at the origin, and reimages each
// molecule. This is done twice, as reimaging molecules can move the centroid of the
// selection when the box has drifted.
func (R *Reimager) Apply(dst, src *v3.Matrix, box []float64) error {
	if src.NVecs() != R.natoms || dst.NVecs() != R.natoms {
		return fmt.Errorf("reimage: frame has %d atoms, expected %d", src.NVecs(), R.natoms)
	}
	if dst != src {
		dst.Copy(src)
	}
	if !R.opts.Active() {
		return nil
	}
	if len(box) < 3 || box[0] <= 0 || box[1] <= 0 || box[2] <= 0 {
		return ErrNoBox
	}
	if R.opts.FixImaging {
		//Only molecules that could possibly be split are fixed.
		smallest := floats.Min(box[:3]) / 2
		for _, g := range R.groups {
			if len(g) > 1 && radius(dst, g) > smallest {
				mergeImage(dst, g, box)
				reimageGroup(dst, g, box)
			}
		}
	}
	if !R.opts.Centering() {
		return nil
	}
	if R.opts.SelectionSplit {
		translate(dst, R.reference(dst, true), -1)
		R.reimageAll(dst, box)
	}
	for pass := 0; pass < 2; pass++ {
		translate(dst, R.reference(dst, false), -1)
		R.reimageAll(dst, box)
	}
	return nil
}

func (R *Reimager) reimageAll(m *v3.Matrix, box []float64) {
	for _, g := range R.groups {
		reimageGroup(m, g, box)
	}
}

// reference returns the point to be put at the origin. If first is true, the
// first atom of each selection is used instead of its centroid.
// Only the relevant axes are set for xy and z centering.
func (R *Reimager) reference(m *v3.Matrix, first bool) [3]float64 {
	point := func(sel []int) [3]float64 {
		if first {
			return m.Vec(sel[0])
		}
		return centroid(m, sel)
	}
	if len(R.opts.Center) > 0 {
		return point(R.opts.Center)
	}
	var ret [3]float64
	if len(R.opts.XYCenter) > 0 {
		p := point(R.opts.XYCenter)
		ret[0], ret[1] = p[0], p[1]
	}
	if len(R.opts.ZCenter) > 0 {
		ret[2] = point(R.opts.ZCenter)[2]
	}
	return ret
}

func centroid(m *v3.Matrix, sel []int) [3]float64 {
	sub := v3.Zeros(len(sel))
	sub.SomeVecs(m, sel)
	var c [3]float64
	col := make([]float64, len(sel))
	for d := range c {
		c[d] = floats.Sum(mat.Col(col, d, sub)) / float64(len(sel))
	}
	return c
}

// vector returns t as a 1x3 matrix.
func vector(t [3]float64) *v3.Matrix {
	v, _ := v3.NewMatrix(t[:])
	return v
}

// translate adds sign*t to every atom.
func translate(m *v3.Matrix, t [3]float64, sign float64) {
	floats.Scale(sign, t[:])
	m.AddVec(m, vector(t))
}

// image returns the multiple of l closest to x.
func image(x, l float64) float64 {
	return l * math.Round(x/l)
}

// reimageGroup translates the atoms in g so their centroid is inside
// the box centered at the origin.
func reimageGroup(m *v3.Matrix, g []int, box []float64) {
	c := centroid(m, g)
	var shift [3]float64
	for d := 0; d < 3; d++ {
		shift[d] = image(c[d], box[d])
	}
	if shift == [3]float64{} {
		return
	}
	s := vector(shift)
	for _, i := range g {
		row := m.VecView(i)
		row.SubVec(row, s)
	}
}

// mergeImage moves each atom of g to the periodic image closest to the first atom of g.
func mergeImage(m *v3.Matrix, g []int, box []float64) {
	grp := v3.Zeros(len(g))
	grp.SomeVecs(m, g)
	ref := grp.Vec(0)
	for k := 1; k < len(g); k++ {
		v := grp.Vec(k)
		for d := 0; d < 3; d++ {
			v[d] -= image(v[d]-ref[d], box[d])
		}
		grp.SetVec(k, v)
	}
	m.SetVecs(grp, g)
}

// radius returns the largest distance between the first atom of g and the others.
func radius(m *v3.Matrix, g []int) float64 {
	ref := m.RawRowView(g[0])
	var r float64
	for _, i := range g[1:] {
		if d := floats.Distance(ref, m.RawRowView(i), 2); d > r {
			r = d
		}
	}
	return r
}
