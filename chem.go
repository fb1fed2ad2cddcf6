/*
 * chem.go, part of mergetraj
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

	v3 "github.com/rmera/mergetraj/v3"
)

//Atom contains the atom information read from a model file, except for the coordinates,
//which go in a v3.Matrix.
type Atom struct {
	Name    string
	ID      int //Serial number in the model file.
	index   int //Position in the topology.
	MolName string
	MolID   int
	Chain   string
	Segid   string
	Symbol  string
	Mass    float64
	Charge  float64
	Bonds   []*Bond
}

// Index returns the position of the atom in its topology.
func (A *Atom) Index() int {
	return A.index
}

// Bond joins two atoms of a topology.
type Bond struct {
	Index int
	At1   *Atom
	At2   *Atom
}

//Cross returns the atom bonded to origin through B. It panics if origin is not
//part of the bond.
func (B *Bond) Cross(origin *Atom) *Atom {
	if origin.index == B.At1.index {
		return B.At2
	}
	if origin.index == B.At2.index {
		return B.At1
	}
	panic("Trying to cross a bond: The origin atom given is not present in the bond!")
}

/*****Topology type***/

//Topology contains the information about a system which doesn't change along a trajectory.
type Topology struct {
	Atoms []*Atom
	Bonds []*Bond
}

// NewTopology returns a topology with the given atoms, and fills their indexes.
func NewTopology(ats []*Atom) *Topology {
	T := &Topology{Atoms: ats}
	T.FillIndexes()
	return T
}

// FillIndexes sets the index of each atom to its position in the topology.
func (T *Topology) FillIndexes() {
	for i, at := range T.Atoms {
		at.index = i
	}
}

// Atom returns the ith atom. It panics if i is out of range.
func (T *Topology) Atom(i int) *Atom {
	if i >= len(T.Atoms) || i < 0 {
		panic("Requested atom out of range")
	}
	return T.Atoms[i]
}

// Len returns the number of atoms in the topology.
func (T *Topology) Len() int {
	return len(T.Atoms)
}

// HasBonds returns true if the topology contains connectivity information.
func (T *Topology) HasBonds() bool {
	return len(T.Bonds) > 0
}

// AddBond bonds the atoms with indexes i and j. Repeated bonds are ignored.
func (T *Topology) AddBond(i, j int) error {
	n := T.Len()
	if i < 0 || j < 0 || i >= n || j >= n || i == j {
		err := CError{msg: fmt.Sprintf("Invalid bond between atoms %d and %d (%d atoms)", i, j, n)}
		err.Decorate("AddBond")
		return err
	}
	at1, at2 := T.Atoms[i], T.Atoms[j]
	for _, b := range at1.Bonds {
		if b.Cross(at1) == at2 {
			return nil
		}
	}
	b := &Bond{Index: len(T.Bonds), At1: at1, At2: at2}
	at1.Bonds = append(at1.Bonds, b)
	at2.Bonds = append(at2.Bonds, b)
	T.Bonds = append(T.Bonds, b)
	return nil
}

// Molecule is a topology with the coordinates and, optionally, the box
// read from a model file.
type Molecule struct {
	*Topology
	Coords *v3.Matrix
	Box    []float64 //nil if the model doesn't have box information.
}

//Errors

// CError is the error type for the chem package.
type CError struct {
	msg  string
	deco []string
}

// Error returns a string with an error message.
func (err CError) Error() string { return err.msg }

// Decorate will add the dec string to the decoration slice of strings of the error,
// and return the resulting slice.
func (err CError) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

//errDecorate is a helper function that decorates the error with the caller's name
//before returning it, if the error implements Error. Other errors are returned unchanged.
func errDecorate(err error, caller string) error {
	err2, ok := err.(Error)
	if !ok {
		return err
	}
	err2.Decorate(caller)
	return err2
}
