/*
 * psf.go, part of mergetraj
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
	"path/filepath"
	"strconv"
	"strings"
)

// PSFFileRead reads the atoms and bonds of a CHARMM/NAMD PSF file.
// PSF files carry no coordinates.
func PSFFileRead(psfname string) (*Topology, error) {
	psffile, err := os.Open(psfname)
	if err != nil {
		return nil, CError{msg: err.Error(), deco: []string{"os.Open", "PSFFileRead"}}
	}
	defer psffile.Close()
	top, err := PSFRead(psffile)
	if err != nil {
		return nil, errDecorate(err, "PSFFileRead "+psfname)
	}
	return top, nil
}

// PSFRead reads a PSF from r. See PSFFileRead.
func PSFRead(r io.Reader) (*Topology, error) {
	psf := bufio.NewScanner(r)
	psf.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var top *Topology
	for psf.Scan() {
		line := psf.Text()
		switch {
		case strings.Contains(line, "!NATOM"):
			n, err := psfSectionCount(line)
			if err != nil {
				return nil, CError{msg: err.Error(), deco: []string{"PSFRead"}}
			}
			ats := make([]*Atom, 0, n)
			for len(ats) < n && psf.Scan() {
				at, err := readPSFAtomLine(psf.Text())
				if err != nil {
					return nil, CError{msg: fmt.Sprintf("atom %d: %s", len(ats)+1, err.Error()), deco: []string{"PSFRead"}}
				}
				ats = append(ats, at)
			}
			if len(ats) != n {
				return nil, CError{msg: fmt.Sprintf("PSF declares %d atoms, but only %d were found", n, len(ats)), deco: []string{"PSFRead"}}
			}
			top = NewTopology(ats)
		case strings.Contains(line, "!NBOND"):
			if top == nil {
				return nil, CError{msg: "!NBOND section before !NATOM", deco: []string{"PSFRead"}}
			}
			n, err := psfSectionCount(line)
			if err != nil {
				return nil, CError{msg: err.Error(), deco: []string{"PSFRead"}}
			}
			ids := make([]int, 0, 2*n)
			for len(ids) < 2*n && psf.Scan() {
				for _, f := range strings.Fields(psf.Text()) {
					id, err := strconv.Atoi(f)
					if err != nil {
						return nil, CError{msg: fmt.Sprintf("Malformed bond entry %q", f), deco: []string{"PSFRead"}}
					}
					ids = append(ids, id)
				}
			}
			if len(ids) < 2*n {
				return nil, CError{msg: fmt.Sprintf("PSF declares %d bonds, but only %d were found", n, len(ids)/2), deco: []string{"PSFRead"}}
			}
			for i := 0; i < 2*n; i += 2 {
				//PSF atom numbers start at 1 and follow the atom order.
				if err := top.AddBond(ids[i]-1, ids[i+1]-1); err != nil {
					return nil, errDecorate(err, "PSFRead")
				}
			}
			return top, nil //Nothing else we need in the file.
		}
	}
	if err := psf.Err(); err != nil {
		return nil, CError{msg: err.Error(), deco: []string{"PSFRead"}}
	}
	if top == nil {
		return nil, CError{msg: "No !NATOM section found", deco: []string{"PSFRead"}}
	}
	return top, nil
}

func psfSectionCount(line string) (int, error) {
	f := strings.Fields(line)
	if len(f) < 2 {
		return 0, fmt.Errorf("Malformed section header %q", line)
	}
	n, err := strconv.Atoi(f[0])
	if err != nil {
		return 0, fmt.Errorf("Malformed section header %q", line)
	}
	return n, nil
}

//The atom line is: id segid resid resname name type charge mass [unused]
func readPSFAtomLine(line string) (*Atom, error) {
	f := strings.Fields(line)
	if len(f) < 8 {
		return nil, fmt.Errorf("too few fields in %q", line)
	}
	var err error
	at := new(Atom)
	if at.ID, err = strconv.Atoi(f[0]); err != nil {
		return nil, err
	}
	at.Segid = f[1]
	//residue numbers may carry insertion codes, like 27A.
	at.MolID, err = strconv.Atoi(strings.TrimRight(f[2], "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
	if err != nil {
		return nil, err
	}
	at.MolName = f[3]
	at.Name = f[4]
	if at.Charge, err = strconv.ParseFloat(f[6], 64); err != nil {
		return nil, err
	}
	if at.Mass, err = strconv.ParseFloat(f[7], 64); err != nil {
		return nil, err
	}
	if n := strings.TrimLeft(at.Name, "0123456789"); n != "" {
		at.Symbol = n[:1]
	}
	return at, nil
}

// ModelFileRead reads the topology of a model file, choosing the reader
// from the file extension (.pdb or .psf).
func ModelFileRead(name string) (*Topology, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdb", ".ent":
		mol, err := PDBFileRead(name)
		if err != nil {
			return nil, errDecorate(err, "ModelFileRead")
		}
		return mol.Topology, nil
	case ".psf":
		top, err := PSFFileRead(name)
		if err != nil {
			return nil, errDecorate(err, "ModelFileRead")
		}
		return top, nil
	}
	return nil, CError{msg: fmt.Sprintf("Unsupported model file %s", name), deco: []string{"ModelFileRead"}}
}
