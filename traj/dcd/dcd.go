/*
 * dcd.go, part of mergetraj
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

package dcd

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	v3 "github.com/rmera/mergetraj/v3"
)

const (
	mAXTITLE      = 80
	icntrlSize    = 84 //"CORD" plus 20 int32
	charmmVersion = 27
)

// header holds what is read from, or written to, the first three records of a DCD file.
type header struct {
	natoms   int
	declared int //frame count in the header, which may be stale.
	timestep float32
	periodic bool
	fourdim  bool
	fixed    int
	titles   []string
	endian   byteOrder
}

type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// size returns the size in bytes of the three header records.
func (h *header) size() int64 {
	return int64(icntrlSize+8) + int64(12+mAXTITLE*len(h.titles)) + 12
}

// frameSize returns the size in bytes of a frame, given the width in bytes of
// each number in the unit cell record (8 or 4).
func (h *header) frameSize(cellWidth int) int64 {
	var size int64
	if h.periodic {
		size = int64(8 + 6*cellWidth)
	}
	return size + 3*int64(8+4*h.natoms)
}

// readRecord reads a whole Fortran record from r into a new slice.
// If expect is not negative, the record must have that length.
func readRecord(r io.Reader, endian binary.ByteOrder, expect int) ([]byte, error) {
	var lenbuf [4]byte
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return nil, err
	}
	l := endian.Uint32(lenbuf[:])
	if expect >= 0 && int(l) != expect {
		return nil, fmt.Errorf("record of %d bytes found, %d expected", l, expect)
	}
	if l > 1<<30 {
		return nil, fmt.Errorf("record of %d bytes is too large", l)
	}
	rec := make([]byte, l)
	if _, err := io.ReadFull(r, rec); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, lenbuf[:]); err != nil {
		return nil, err
	}
	if endian.Uint32(lenbuf[:]) != l {
		return nil, fmt.Errorf("record closes with a different length than it opened with")
	}
	return rec, nil
}

// readHeader reads the header records of a DCD file. The byte order is
// detected from the first record.
func readHeader(r io.Reader) (*header, error) {
	h := new(header)
	var first [4]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return nil, err
	}
	//The first thing we should read is an 84.
	//If this fails it means that the file is big endian.
	h.endian = binary.LittleEndian
	if binary.LittleEndian.Uint32(first[:]) != icntrlSize {
		h.endian = binary.BigEndian
		if binary.BigEndian.Uint32(first[:]) != icntrlSize {
			return nil, fmt.Errorf("not a DCD file, first record has %d bytes", binary.LittleEndian.Uint32(first[:]))
		}
	}
	rec := make([]byte, icntrlSize+4)
	if _, err := io.ReadFull(r, rec); err != nil {
		return nil, err
	}
	if string(rec[:4]) != "CORD" {
		return nil, fmt.Errorf("Wrong magic number")
	}
	if h.endian.Uint32(rec[icntrlSize:]) != icntrlSize {
		return nil, fmt.Errorf("header record closes with the wrong length")
	}
	icntrl := func(i int) uint32 { return h.endian.Uint32(rec[4+4*i:]) }
	//X-plor sets this last int to zero, charmm sets it to its version number.
	if icntrl(19) == 0 {
		return nil, fmt.Errorf("X-plor DCD not supported")
	}
	h.declared = int(int32(icntrl(0)))
	h.fixed = int(int32(icntrl(8)))
	h.timestep = math.Float32frombits(icntrl(9))
	h.periodic = icntrl(10) != 0
	h.fourdim = icntrl(11) != 0

	rec, err := readRecord(r, h.endian, -1)
	if err != nil {
		return nil, err
	}
	if len(rec) < 4 {
		return nil, fmt.Errorf("title record too short")
	}
	ntitle := int(int32(h.endian.Uint32(rec)))
	if ntitle < 0 || len(rec) != 4+mAXTITLE*ntitle {
		return nil, fmt.Errorf("title record of %d bytes can't hold %d titles", len(rec), ntitle)
	}
	h.titles = make([]string, ntitle)
	for i := range h.titles {
		h.titles[i] = strings.TrimRight(string(rec[4+mAXTITLE*i:4+mAXTITLE*(i+1)]), " \x00")
	}
	rec, err = readRecord(r, h.endian, 4)
	if err != nil {
		return nil, err
	}
	h.natoms = int(int32(h.endian.Uint32(rec)))
	if h.natoms <= 0 {
		return nil, fmt.Errorf("invalid number of atoms: %d", h.natoms)
	}
	return h, nil
}

// cellWidth returns the width of the numbers in the unit cell records of a periodic
// trajectory, by peeking at the first frame. If there are no frames, 8 is returned.
func cellWidth(f *os.File, h *header) (int, error) {
	if !h.periodic {
		return 0, nil
	}
	var lenbuf [4]byte
	_, err := f.ReadAt(lenbuf[:], h.size())
	if errors.Is(err, io.EOF) {
		return 8, nil
	} else if err != nil {
		return 0, err
	}
	switch h.endian.Uint32(lenbuf[:]) {
	case 48:
		return 8, nil
	case 24:
		return 4, nil
	}
	return 0, fmt.Errorf("unit cell record of %d bytes", h.endian.Uint32(lenbuf[:]))
}

// DCDObj is a CHARMM/NAMD binary trajectory file opened for reading.
type DCDObj struct {
	h         *header
	readable  bool
	filename  string
	cellWidth int
	current   int //index of the next frame to be read
	nframes   int //complete frames, last time we checked
	dcd       *os.File
	r         *bufio.Reader
	dcdFields []byte
}

// New opens a DCD file for reading. Both byte orders are supported, only CHARMM
// (or NAMD) files, without fixed atoms or 4D data.
func New(filename string) (*DCDObj, error) {
	D := &DCDObj{filename: filename}
	var err error
	D.dcd, err = os.Open(filename)
	if err != nil {
		return nil, Error{err.Error(), filename, []string{"os.Open", "New"}, true, nil}
	}
	D.r = bufio.NewReader(D.dcd)
	D.h, err = readHeader(D.r)
	if err != nil {
		D.dcd.Close()
		return nil, Error{WrongFormat + ": " + err.Error(), filename, []string{"readHeader", "New"}, true, nil}
	}
	if D.h.fixed != 0 || D.h.fourdim {
		D.dcd.Close()
		return nil, Error{"Fixed atoms and 4D DCDs are not supported", filename, []string{"New"}, true, nil}
	}
	if D.cellWidth, err = cellWidth(D.dcd, D.h); err != nil {
		D.dcd.Close()
		return nil, Error{WrongFormat + ": " + err.Error(), filename, []string{"cellWidth", "New"}, true, nil}
	}
	D.readable = true
	return D, nil
}

// FramesIn returns the number of complete frames in the DCD file filename, which
// is zero if the file doesn't exist or is empty.
func FramesIn(filename string) (int, error) {
	info, err := os.Stat(filename)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, Error{err.Error(), filename, []string{"os.Stat", "FramesIn"}, true, nil}
	}
	if info.Size() == 0 {
		return 0, nil
	}
	D, err := New(filename)
	if err != nil {
		return 0, errDecorate(err, "FramesIn")
	}
	defer D.Close()
	return D.NFrames()
}

// Readable returns true if the object is ready to be read from
// false otherwise. It doesnt guarantee that there is something
// to read.
func (D *DCDObj) Readable() bool {
	return D.readable
}

// Len returns the number of atoms per frame.
func (D *DCDObj) Len() int {
	return D.h.natoms
}

// Periodic returns true if the frames carry unit cell information.
func (D *DCDObj) Periodic() bool {
	return D.h.periodic
}

// Timestep returns the timestep stored in the header.
func (D *DCDObj) Timestep() float32 {
	return D.h.timestep
}

// Titles returns the title lines in the header, without padding.
func (D *DCDObj) Titles() []string {
	return append([]string(nil), D.h.titles...)
}

// DeclaredFrames returns the frame count written in the header. It may not
// match the real number of frames, see NFrames.
func (D *DCDObj) DeclaredFrames() int {
	return D.h.declared
}

// NFrames returns the number of complete frames in the file, computed from the
// file size. The frame count in the header is not used.
func (D *DCDObj) NFrames() (int, error) {
	info, err := D.dcd.Stat()
	if err != nil {
		return 0, Error{err.Error(), D.filename, []string{"Stat", "NFrames"}, true, nil}
	}
	body := info.Size() - D.h.size()
	if body <= 0 {
		return 0, nil
	}
	return int(body / D.h.frameSize(D.cellWidth)), nil
}

// Seek positions the trajectory so the next frame read is the one with
// index frame.
func (D *DCDObj) Seek(frame int) error {
	if D.dcd == nil {
		return Error{TrajUnIniRead, D.filename, []string{"Seek"}, true, nil}
	}
	n, err := D.NFrames()
	if err != nil {
		return errDecorate(err, "Seek")
	}
	if frame < 0 || frame > n {
		return Error{fmt.Sprintf("Can't seek to frame %d of %d", frame, n), D.filename, []string{"Seek"}, true, nil}
	}
	offset := D.h.size() + int64(frame)*D.h.frameSize(D.cellWidth)
	if _, err := D.dcd.Seek(offset, io.SeekStart); err != nil {
		return Error{err.Error(), D.filename, []string{"os.Seek", "Seek"}, true, nil}
	}
	D.r.Reset(D.dcd)
	D.current = frame
	D.nframes = n
	D.readable = true
	return nil
}

// Next reads the next frame into keep, or discards it if keep is nil.
// If a box slice with at least 3 elements is given, the orthogonal box lengths
// are put there. A chem.LastFrameError is returned when there are no more
// frames. A trailing incomplete frame is treated as the end of the trajectory.
func (D *DCDObj) Next(keep *v3.Matrix, box ...[]float64) error {
	if !D.readable {
		return Error{TrajUnIniRead, D.filename, []string{"Next"}, true, nil}
	}
	if D.current >= D.nframes {
		//the file may have grown since we last looked.
		var err error
		if D.nframes, err = D.NFrames(); err != nil {
			return errDecorate(err, "Next")
		}
		if D.current >= D.nframes {
			D.readable = false
			return newLastFrameError(D.filename, "Next")
		}
	}
	natoms := D.h.natoms
	if keep != nil && keep.NVecs() < natoms {
		return Error{NotEnoughSpace, D.filename, []string{"Next"}, true, nil}
	}
	if D.h.periodic {
		rec, err := readRecord(D.r, D.h.endian, 6*D.cellWidth)
		if err != nil {
			return D.frameErr(err)
		}
		if len(box) > 0 && len(box[0]) >= 3 {
			D.decodeCell(rec, box[0])
		}
	}
	for dim := 0; dim < 3; dim++ {
		rec, err := readRecord(D.r, D.h.endian, 4*natoms)
		if err != nil {
			return D.frameErr(err)
		}
		D.dcdFields = rec
		if keep == nil {
			continue
		}
		for i := 0; i < natoms; i++ {
			keep.Set(i, dim, float64(math.Float32frombits(D.h.endian.Uint32(D.dcdFields[4*i:]))))
		}
	}
	D.current++
	return nil
}

func (D *DCDObj) frameErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		D.readable = false
		return newLastFrameError(D.filename, "Next")
	}
	return Error{err.Error(), D.filename, []string{"readRecord", "Next"}, true, nil}
}

// Two layouts exist for the unit cell: {1, x, 1, y, z, 1}, with placeholder values,
// and the CHARMM one, {a, gamma, b, beta, alpha, c}.
func (D *DCDObj) decodeCell(rec []byte, box []float64) {
	var cell [6]float64
	for i := range cell {
		if D.cellWidth == 8 {
			cell[i] = math.Float64frombits(D.h.endian.Uint64(rec[8*i:]))
		} else {
			cell[i] = float64(math.Float32frombits(D.h.endian.Uint32(rec[4*i:])))
		}
	}
	if cell[0] == 1 && cell[2] == 1 && cell[5] == 1 {
		box[0], box[1], box[2] = cell[1], cell[3], cell[4]
		return
	}
	box[0], box[1], box[2] = cell[0], cell[2], cell[5]
}

// Close closes the file.
func (D *DCDObj) Close() {
	if D.dcd == nil {
		return
	}
	D.dcd.Close()
	D.dcd = nil
	D.readable = false
}
