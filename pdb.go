/*
 * pdb.go, part of mergetraj
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
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	v3 "github.com/rmera/mergetraj/v3"
)

// PDBFileRead reads the first model of the PDB file pdbname. Segment ids (columns 73-76)
// are read, CONECT records become bonds and a CRYST1 record becomes the box.
func PDBFileRead(pdbname string) (*Molecule, error) {
	pdbfile, err := os.Open(pdbname)
	if err != nil {
		return nil, CError{msg: err.Error(), deco: []string{"os.Open", "PDBFileRead"}}
	}
	defer pdbfile.Close()
	mol, err := PDBRead(pdbfile)
	if err != nil {
		return nil, errDecorate(err, "PDBFileRead "+pdbname)
	}
	return mol, nil
}

// PDBRead reads a PDB from r. See PDBFileRead.
func PDBRead(r io.Reader) (*Molecule, error) {
	pdb := bufio.NewScanner(r)
	ats := make([]*Atom, 0, 100)
	coords := make([]float64, 0, 300)
	serials := make(map[int]int)
	conects := make([][]int, 0)
	var box []float64
	contlines := 0
	for pdb.Scan() {
		line := pdb.Text()
		contlines++
		switch {
		case strings.HasPrefix(line, "ATOM") || strings.HasPrefix(line, "HETATM"):
			at, c, err := readPDBAtomLine(line)
			if err != nil {
				return nil, CError{msg: fmt.Sprintf("Line %d: %s", contlines, err.Error()), deco: []string{"PDBRead"}}
			}
			if at.ID < 0 {
				at.ID = len(ats) + 1
			}
			serials[at.ID] = len(ats)
			ats = append(ats, at)
			coords = append(coords, c[:]...)
		case strings.HasPrefix(line, "CONECT"):
			c, err := readPDBConectLine(line)
			if err != nil {
				return nil, CError{msg: fmt.Sprintf("Line %d: %s", contlines, err.Error()), deco: []string{"PDBRead"}}
			}
			conects = append(conects, c)
		case strings.HasPrefix(line, "CRYST1"):
			box, _ = readPDBBoxLine(line) //A broken box is just ignored.
		case strings.HasPrefix(line, "ENDMDL"):
			//only the first model is read. CONECT records come after all models, so we keep going.
			for pdb.Scan() {
				line = pdb.Text()
				if strings.HasPrefix(line, "CONECT") {
					c, err := readPDBConectLine(line)
					if err != nil {
						return nil, CError{msg: err.Error(), deco: []string{"PDBRead"}}
					}
					conects = append(conects, c)
				}
			}
		}
	}
	if err := pdb.Err(); err != nil {
		return nil, CError{msg: err.Error(), deco: []string{"PDBRead"}}
	}
	if len(ats) == 0 {
		return nil, CError{msg: "No atoms found in PDB", deco: []string{"PDBRead"}}
	}
	top := NewTopology(ats)
	for _, c := range conects {
		from, ok := serials[c[0]]
		if !ok {
			return nil, CError{msg: fmt.Sprintf("CONECT record for unknown atom %d", c[0]), deco: []string{"PDBRead"}}
		}
		for _, s := range c[1:] {
			to, ok := serials[s]
			if !ok {
				return nil, CError{msg: fmt.Sprintf("CONECT record for unknown atom %d", s), deco: []string{"PDBRead"}}
			}
			if from == to {
				continue
			}
			if err := top.AddBond(from, to); err != nil {
				return nil, errDecorate(err, "PDBRead")
			}
		}
	}
	mcoords, err := v3.NewMatrix(coords)
	if err != nil {
		return nil, CError{msg: err.Error(), deco: []string{"PDBRead"}}
	}
	return &Molecule{Topology: top, Coords: mcoords, Box: box}, nil
}

//field returns the trimmed columns [from:to) of line, or an empty string
//if the line is too short.
func field(line string, from, to int) string {
	if len(line) <= from {
		return ""
	}
	if len(line) < to {
		to = len(line)
	}
	return strings.TrimSpace(line[from:to])
}

func readPDBAtomLine(line string) (*Atom, [3]float64, error) {
	var coords [3]float64
	var err error
	if len(line) < 54 {
		return nil, coords, fmt.Errorf("ATOM record too short")
	}
	at := new(Atom)
	//Large systems overflow the serial column ("*****" or hex serials).
	//Those atoms get -1 here, and their position in the file later.
	if at.ID, err = strconv.Atoi(field(line, 6, 11)); err != nil {
		at.ID = -1
	}
	at.Name = field(line, 12, 16)
	at.MolName = field(line, 17, 21)
	at.Chain = field(line, 21, 22)
	at.MolID, err = strconv.Atoi(field(line, 22, 26))
	if err != nil {
		return nil, coords, err
	}
	for i, from := range []int{30, 38, 46} {
		coords[i], err = strconv.ParseFloat(field(line, from, from+8), 64)
		if err != nil {
			return nil, coords, err
		}
	}
	at.Segid = field(line, 72, 76)
	at.Symbol = field(line, 76, 78)
	if at.Symbol == "" {
		if n := strings.TrimLeft(at.Name, "0123456789"); n != "" {
			at.Symbol = n[:1]
		}
	}
	return at, coords, nil
}

func readPDBConectLine(line string) ([]int, error) {
	ret := make([]int, 0, 5)
	for from := 6; from < len(line) && from < 31; from += 5 {
		f := field(line, from, from+5)
		if f == "" {
			continue
		}
		s, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("Malformed CONECT record: %w", err)
		}
		ret = append(ret, s)
	}
	if len(ret) < 1 {
		return nil, fmt.Errorf("Empty CONECT record")
	}
	return ret, nil
}

func readPDBBoxLine(line string) ([]float64, error) {
	box := make([]float64, 3)
	var err error
	for i, from := range []int{6, 15, 24} {
		box[i], err = strconv.ParseFloat(field(line, from, from+9), 64)
		if err != nil {
			return nil, err
		}
	}
	return box, nil
}
