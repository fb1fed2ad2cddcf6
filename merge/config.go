/*
 * config.go, part of mergetraj
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

package merge

import (
	"errors"
	"fmt"

	"github.com/rmera/mergetraj/reimage"
)

var (
	// ErrConflictingCentering is returned when full centering is requested together
	// with xy or z centering.
	ErrConflictingCentering = reimage.ErrConflictingCentering

	// ErrEmptySelection is returned when a centering selection matches no atoms.
	ErrEmptySelection = errors.New("selection matches no atoms")

	// ErrBadDownsampleRate is returned for a downsampled output with a stride below 1.
	ErrBadDownsampleRate = errors.New("downsample rate must be at least 1")
)

// DefaultDownsampleRate is the stride used when none is given.
const DefaultDownsampleRate = 10

// DefaultTimestep is written to the header of new output files when no timestep is given.
const DefaultTimestep = 0.001

// Config is the configuration of a merge run. It is not modified by the Driver.
type Config struct {
	//Output is the merged DCD trajectory. It is created if it doesn't exist,
	//otherwise frames are appended to it.
	Output string

	//Downsample is an optional second DCD trajectory that gets every
	//DownsampleRate-th merged frame.
	Downsample     string
	DownsampleRate int

	//Centering selections, in the language of chem.Select. Center can't be combined
	//with XYCenter or ZCenter.
	Center   string
	XYCenter string
	ZCenter  string

	SelectionSplit bool
	FixImaging     bool

	//SkipFirstFrame drops the first frame of each input with more than one frame.
	SkipFirstFrame bool

	//Timestep and Titles are only used when the output files are created.
	Timestep float64
	Titles   []string

	//AmberBox is true if old Amber input trajectories carry box lengths.
	AmberBox bool
}

// Validate checks the configuration without touching any file.
func (c Config) Validate() error {
	if c.Output == "" {
		return errors.New("no output trajectory given")
	}
	if c.Downsample != "" {
		if c.DownsampleRate < 1 {
			return fmt.Errorf("%w: %d", ErrBadDownsampleRate, c.DownsampleRate)
		}
		if c.Downsample == c.Output {
			return errors.New("the downsampled output can't be the merged output")
		}
	}
	if c.Center != "" && (c.XYCenter != "" || c.ZCenter != "") {
		return ErrConflictingCentering
	}
	if c.Timestep < 0 {
		return fmt.Errorf("negative timestep %g", c.Timestep)
	}
	return nil
}

func (c Config) geometric() bool {
	return c.FixImaging || c.Center != "" || c.XYCenter != "" || c.ZCenter != ""
}
