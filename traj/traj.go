/*
 * traj.go, part of mergetraj
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

// Package traj opens input trajectories of the supported formats
// as chem.FrameSource values.
package traj

import (
	"fmt"
	"path/filepath"
	"strings"

	chem "github.com/rmera/mergetraj"
	"github.com/rmera/mergetraj/traj/amberold"
	"github.com/rmera/mergetraj/traj/dcd"
	"github.com/rmera/mergetraj/traj/stf"
)

// Options controls how formats that don't describe themselves are read.
type Options struct {
	//AmberBox is true if each frame of an old Amber trajectory ends with the box lengths.
	AmberBox bool
}

// Error is returned when a trajectory can't be opened.
type Error struct {
	message  string
	filename string
	deco     []string
}

func (err Error) Error() string {
	return fmt.Sprintf("trajectory %s: %s", err.filename, err.message)
}

// Decorate adds dec to the error's decoration slice and returns it.
func (err Error) Decorate(dec string) []string {
	if dec != "" {
		err.deco = append(err.deco, dec)
	}
	return err.deco
}

// Open opens the trajectory name, which must have natoms atoms per frame. The format is
// chosen from the file extension: .dcd for DCD, .stf, .stz, .stl, .str and .sts for STF, and
// .crd, .mdcrd and .trj for old Amber trajectories.
func Open(name string, natoms int, opts Options) (chem.FrameSource, error) {
	var src chem.FrameSource
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".dcd":
		d, err := dcd.New(name)
		if err != nil {
			return nil, err
		}
		src = d
	case ".stf", ".stz", ".stl", ".str", ".sts":
		s, _, err := stf.New(name)
		if err != nil {
			return nil, err
		}
		src = s
	case ".crd", ".mdcrd", ".trj":
		c, err := amberold.New(name, natoms, opts.AmberBox)
		if err != nil {
			return nil, err
		}
		src = c
	default:
		return nil, Error{message: fmt.Sprintf("unsupported trajectory format %q", ext), filename: name, deco: []string{"Open"}}
	}
	if src.Len() != natoms {
		src.Close()
		return nil, Error{message: fmt.Sprintf("trajectory has %d atoms, the model has %d", src.Len(), natoms), filename: name, deco: []string{"Open"}}
	}
	return src, nil
}
