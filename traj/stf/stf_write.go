/*
 * stf_write.go, part of mergetraj
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

package stf

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"

	v3 "github.com/rmera/mergetraj/v3"
)

// StfW is an STF trajectory opened for writing.
type StfW struct {
	f         *os.File
	buf       *bufio.Writer
	h         io.WriteCloser
	natoms    int
	filename  string
	writeable bool
	prec      int
}

// NewWriter creates the STF file name for trajectories of natoms atoms. The header
// entries are written in alphabetical order. If header has a "prec" key, it sets the
// precision (decimal places) of the coordinates. Otherwise, a precision of 2 is used and
// written to the header.
// The compression is chosen from the last letter of the file name (see the package
// documentation). The level is optional, the default is the maximum.
func NewWriter(name string, natoms int, header map[string]string, compressionLevel ...int) (*StfW, error) {
	level := 11
	if len(compressionLevel) > 0 {
		level = compressionLevel[0]
	}
	if natoms <= 0 {
		return nil, Error{"The number of atoms must be positive", name, []string{"NewWriter"}, true}
	}
	S := &StfW{natoms: natoms, filename: name, prec: defaultPrec}
	h := map[string]string{"prec": strconv.Itoa(defaultPrec)}
	for k, v := range header {
		h[k] = v
	}
	prec, err := strconv.Atoi(h["prec"])
	if err != nil || prec <= 0 {
		return nil, Error{"Invalid precision " + h["prec"], name, []string{"NewWriter"}, true}
	}
	S.prec = prec
	S.f, err = os.Create(name)
	if err != nil {
		return nil, Error{err.Error(), name, []string{"os.Create", "NewWriter"}, true}
	}
	S.buf = bufio.NewWriter(S.f)
	_, newWriter := compression(name, level)
	S.h, err = newWriter(S.buf)
	if err != nil {
		S.f.Close()
		return nil, Error{"Can't start compression " + err.Error(), name, []string{"NewWriter"}, true}
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(S.h, "%s=%s\n", k, h[k])
	}
	if _, err := fmt.Fprintf(S.h, "** %d\n", S.natoms); err != nil {
		S.f.Close()
		return nil, Error{err.Error(), name, []string{"NewWriter"}, true}
	}
	S.writeable = true
	return S, nil
}

// Len returns the number of atoms per frame.
func (S *StfW) Len() int {
	return S.natoms
}

func coordsEncode(f [3]float64, temp [3]int, prec int) string {
	p := 100.0
	if prec > 0 && prec != 2 { //2 is the current value, so we do nothign in that case
		p = math.Pow(10.0, float64(prec))
	}
	for i, v := range f {
		temp[i] = int(math.RoundToEven(v * p))
	}
	return fmt.Sprintf("%d %d %d\n", temp[0], temp[1], temp[2])
}

// WNext writes a frame. The optional box can contain the 9 components of the box
// vectors, or the 3 lengths of an orthogonal box.
func (S *StfW) WNext(coord *v3.Matrix, box ...[]float64) error {
	if !S.writeable {
		return Error{TrajUnIniWrite, S.filename, []string{"WNext"}, true}
	}
	if coord == nil {
		return Error{NilCoordinates, S.filename, []string{"WNext"}, true}
	}
	v := coord.NVecs()
	if v != S.natoms {
		return Error{fmt.Sprintf("%d coordinates given, but %d expected", v, S.natoms), S.filename, []string{"WNext"}, true}
	}
	var temp [3]int
	var floats [3]float64
	for i := 0; i < v; i++ {
		floats[0] = coord.At(i, 0)
		floats[1] = coord.At(i, 1)
		floats[2] = coord.At(i, 2)
		if _, err := io.WriteString(S.h, coordsEncode(floats, temp, S.prec)); err != nil {
			return Error{err.Error(), S.filename, []string{"WNext"}, true}
		}
	}
	var b []float64
	if len(box) > 0 {
		switch {
		case len(box[0]) >= 9:
			b = box[0]
		case len(box[0]) >= 3:
			b = []float64{box[0][0], 0, 0, 0, box[0][1], 0, 0, 0, box[0][2]}
		}
	}
	var err error
	if b != nil {
		_, err = fmt.Fprintf(S.h, "* %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f %.4f\n", b[0],
			b[1], b[2], b[3], b[4], b[5], b[6], b[7], b[8])
	} else {
		_, err = io.WriteString(S.h, "*\n")
	}
	if err != nil {
		return Error{err.Error(), S.filename, []string{"WNext"}, true}
	}
	return nil
}

// Close finishes the compressed stream and closes the file.
func (S *StfW) Close() error {
	if S == nil || !S.writeable {
		return nil
	}
	S.writeable = false
	if err := S.h.Close(); err != nil {
		S.f.Close()
		return Error{err.Error(), S.filename, []string{"Close"}, true}
	}
	if err := S.buf.Flush(); err != nil {
		S.f.Close()
		return Error{err.Error(), S.filename, []string{"Close"}, true}
	}
	return S.f.Close()
}
