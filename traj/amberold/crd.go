/*
 * crd.go, part of mergetraj
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

package amberold

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	v3 "github.com/rmera/mergetraj/v3"
)

const fieldWidth = 8 //Amber writes 10F8.3

// CrdObj is an old-Amber/pDynamo ASCII trajectory file.
// The file is read as a stream of numbers, 3 per atom and, if the
// trajectory has a box, 3 more at the end of each frame.
type CrdObj struct {
	natoms    int
	readable  bool //Is it ready to be read?
	filename  string
	ioread    *os.File //The crd file
	crd       *bufio.Reader
	remaining []float64
	box       bool
	current   int
}

// New creates a new Old Amber trajectory object from a file. The number of atoms
// must be given, as the format doesn't store it. box indicates whether
// each frame ends with the 3 box lengths.
func New(filename string, ats int, box bool) (*CrdObj, error) {
	if ats <= 0 {
		return nil, Error{"The number of atoms must be positive", filename, []string{"New"}, true}
	}
	C := &CrdObj{filename: filename, natoms: ats, box: box}
	if err := C.rewind(); err != nil {
		return nil, errDecorate(err, "New")
	}
	return C, nil
}

// rewind (re)opens the file and skips the title line.
func (C *CrdObj) rewind() error {
	if C.ioread != nil {
		C.ioread.Close()
	}
	var err error
	C.ioread, err = os.Open(C.filename)
	if err != nil {
		return Error{UnableToOpen + ": " + err.Error(), C.filename, []string{"rewind"}, true}
	}
	C.crd = bufio.NewReader(C.ioread)
	if _, err = C.crd.ReadString('\n'); err != nil { //The first line is just a comment
		C.ioread.Close()
		C.ioread = nil
		return Error{"Can't read the title line: " + err.Error(), C.filename, []string{"rewind"}, true}
	}
	C.remaining = C.remaining[:0]
	C.current = 0
	C.readable = true
	return nil
}

// Readable returns true if the object is ready to be read from
// false otherwise. It doesnt guarantee that there is something
// to read.
func (C *CrdObj) Readable() bool {
	return C.readable
}

// Len returns the number of atoms per frame.
func (C *CrdObj) Len() int {
	return C.natoms
}

// Periodic returns true if the trajectory was opened as having box lengths.
func (C *CrdObj) Periodic() bool {
	return C.box
}

func (C *CrdObj) frameValues() int {
	if C.box {
		return 3*C.natoms + 3
	}
	return 3 * C.natoms
}

// parseLine returns the numbers in line. Numbers are normally separated
// by spaces, but large negative ones can fill their 8 columns, so if splitting
// by spaces fails, the line is split every 8 columns.
func parseLine(line string) ([]float64, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	ret := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			ret = ret[:0]
			break
		}
		ret = append(ret, v)
	}
	if len(ret) == len(fields) {
		return ret, nil
	}
	for from := 0; from < len(line); from += fieldWidth {
		to := from + fieldWidth
		if to > len(line) {
			to = len(line)
		}
		f := strings.TrimSpace(line[from:to])
		if f == "" {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("Unable to read numbers from %q", line)
		}
		ret = append(ret, v)
	}
	return ret, nil
}

// values reads n numbers from the stream into dst, or just reads them if dst is nil.
// It returns io.EOF if the stream ended before the first number.
func (C *CrdObj) values(n int, dst []float64) error {
	read := 0
	for read < n {
		if len(C.remaining) == 0 {
			line, err := C.crd.ReadString('\n')
			if err != nil && line == "" {
				if errors.Is(err, io.EOF) && read == 0 {
					return io.EOF
				} else if errors.Is(err, io.EOF) {
					return io.ErrUnexpectedEOF
				}
				return err
			}
			vals, err := parseLine(line)
			if err != nil {
				return err
			}
			C.remaining = append(C.remaining[:0], vals...)
			continue
		}
		take := n - read
		if take > len(C.remaining) {
			take = len(C.remaining)
		}
		if dst != nil {
			copy(dst[read:], C.remaining[:take])
		}
		read += take
		C.remaining = C.remaining[take:]
	}
	return nil
}

// Next reads the next frame into keep, or discards it if keep is nil.
// If the trajectory has a box and a box slice with room for 3 numbers is
// given, the box lengths are put there.
func (C *CrdObj) Next(keep *v3.Matrix, box ...[]float64) error {
	if !C.readable {
		return Error{TrajUnIni, C.filename, []string{"Next"}, true}
	}
	if keep != nil && keep.NVecs() < C.natoms {
		return Error{NotEnoughSpace, C.filename, []string{"Next"}, true}
	}
	var dst []float64
	if keep != nil {
		dst = make([]float64, 3*C.natoms)
	}
	err := C.values(3*C.natoms, dst)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		//an incomplete frame at the end is ignored.
		C.readable = false
		return newlastFrameError(C.filename, "Next")
	} else if err != nil {
		return Error{err.Error(), C.filename, []string{"Next"}, true}
	}
	if C.box {
		var b [3]float64
		if err := C.values(3, b[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				C.readable = false
				return newlastFrameError(C.filename, "Next")
			}
			return Error{err.Error(), C.filename, []string{"Next"}, true}
		}
		if len(box) > 0 && len(box[0]) >= 3 {
			copy(box[0], b[:])
		}
	}
	if keep != nil {
		for i := 0; i < C.natoms; i++ {
			keep.Set(i, 0, dst[3*i])
			keep.Set(i, 1, dst[3*i+1])
			keep.Set(i, 2, dst[3*i+2])
		}
	}
	C.current++
	return nil
}

// NFrames returns the number of complete frames in the file. The whole
// file is read to count them.
func (C *CrdObj) NFrames() (int, error) {
	f, err := os.Open(C.filename)
	if err != nil {
		return 0, Error{UnableToOpen + ": " + err.Error(), C.filename, []string{"NFrames"}, true}
	}
	defer f.Close()
	r := bufio.NewScanner(f)
	r.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	values := 0
	first := true
	for r.Scan() {
		if first {
			first = false
			continue
		}
		vals, err := parseLine(r.Text())
		if err != nil {
			return 0, Error{err.Error(), C.filename, []string{"NFrames"}, true}
		}
		values += len(vals)
	}
	if err := r.Err(); err != nil {
		return 0, Error{err.Error(), C.filename, []string{"NFrames"}, true}
	}
	return values / C.frameValues(), nil
}

// Seek positions the trajectory so the next frame read is the one with
// index frame.
func (C *CrdObj) Seek(frame int) error {
	if frame < 0 {
		return Error{fmt.Sprintf("Can't seek to frame %d", frame), C.filename, []string{"Seek"}, true}
	}
	if frame < C.current || !C.readable {
		if err := C.rewind(); err != nil {
			return errDecorate(err, "Seek")
		}
	}
	for C.current < frame {
		if err := C.Next(nil); err != nil {
			if _, ok := err.(*lastFrameError); ok {
				return Error{fmt.Sprintf("Can't seek to frame %d of %d", frame, C.current), C.filename, []string{"Seek"}, true}
			}
			return errDecorate(err, "Seek")
		}
	}
	return nil
}

// Close closes the file.
func (C *CrdObj) Close() {
	if C.ioread == nil {
		return
	}
	C.ioread.Close()
	C.ioread = nil
	C.readable = false
}
