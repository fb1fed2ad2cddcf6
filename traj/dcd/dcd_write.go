/*
 * dcd_write.go, part of mergetraj
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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	v3 "github.com/rmera/mergetraj/v3"
)

// Unlimited, used as Header.Frames, means that no limit is put on the
// frames that can be written through a DCDWObj.
const Unlimited = -1

// Header contains the information needed to start a DCD file.
type Header struct {
	Natoms int

	//Frames is both the frame count declared in the header of a new file, and
	//the maximum number of frames that can be written through the handle.
	Frames   int
	Timestep float32
	Periodic bool

	//Each title is padded with spaces, or truncated, to 80 bytes.
	Titles []string
}

// DCDWObj is a CHARMM/NAMD binary trajectory file
// opened for writing.
type DCDWObj struct {
	h         *header
	writable  bool
	filename  string
	cellWidth int
	capacity  int
	existing  int //frames already in the file when it was opened.
	written   int //frames written through this object.
	truncated int64
	dcd       *os.File
	dcdFields []byte
}

// NewWriter opens filename for writing frames. If the file doesn't exist,
// or is empty, it is created and the header described by h is written.
// Otherwise the frames are appended to the existing file. In that case its
// header is not rewritten, but the atom count and periodicity in h must match
// it, and an incomplete frame at the end of the file, if any, is removed.
func NewWriter(filename string, h Header) (*DCDWObj, error) {
	if h.Natoms <= 0 {
		return nil, Error{"Trajectory not initialized correctly, the number of atoms must be positive", filename, []string{"NewWriter"}, true, nil}
	}
	D := &DCDWObj{filename: filename, capacity: h.Frames}
	var err error
	D.dcd, err = os.OpenFile(filename, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, Error{err.Error(), filename, []string{"os.OpenFile", "NewWriter"}, true, nil}
	}
	info, err := D.dcd.Stat()
	if err != nil {
		D.dcd.Close()
		return nil, Error{err.Error(), filename, []string{"Stat", "NewWriter"}, true, nil}
	}
	if info.Size() == 0 {
		err = D.initWrite(h)
	} else {
		err = D.initAppend(h, info.Size())
	}
	if err != nil {
		D.dcd.Close()
		return nil, errDecorate(err, "NewWriter")
	}
	D.writable = true
	return D, nil
}

func (D *DCDWObj) initWrite(hd Header) error {
	declared := hd.Frames
	if declared < 0 {
		declared = 0
	}
	D.h = &header{
		natoms:   hd.Natoms,
		declared: declared,
		timestep: hd.Timestep,
		periodic: hd.Periodic,
		titles:   hd.Titles,
		endian:   binary.LittleEndian,
	}
	if D.h.titles == nil {
		D.h.titles = []string{}
	}
	D.cellWidth = 8
	if _, err := D.dcd.Write(encodeHeader(D.h)); err != nil {
		return Error{err.Error(), D.filename, []string{"Write", "initWrite"}, true, nil}
	}
	return nil
}

func (D *DCDWObj) initAppend(hd Header, size int64) error {
	var err error
	D.h, err = readHeader(io.NewSectionReader(D.dcd, 0, size))
	if err != nil {
		return Error{WrongFormat + ": " + err.Error(), D.filename, []string{"readHeader", "initAppend"}, true, nil}
	}
	if D.h.fixed != 0 || D.h.fourdim {
		return Error{"Fixed atoms and 4D DCDs are not supported", D.filename, []string{"initAppend"}, true, nil}
	}
	if D.h.natoms != hd.Natoms {
		return Error{fmt.Sprintf("the file has %d atoms, %d requested", D.h.natoms, hd.Natoms), D.filename, []string{"initAppend"}, true, ErrAtomCountMismatch}
	}
	if D.h.periodic != hd.Periodic {
		return Error{fmt.Sprintf("the file has periodic=%t, periodic=%t requested", D.h.periodic, hd.Periodic), D.filename, []string{"initAppend"}, true, ErrPeriodicityMismatch}
	}
	if D.cellWidth, err = cellWidth(D.dcd, D.h); err != nil {
		return Error{WrongFormat + ": " + err.Error(), D.filename, []string{"cellWidth", "initAppend"}, true, nil}
	}
	body := size - D.h.size()
	if body < 0 {
		return Error{WrongFormat + ": incomplete header", D.filename, []string{"initAppend"}, true, nil}
	}
	fsize := D.h.frameSize(D.cellWidth)
	D.existing = int(body / fsize)
	end := D.h.size() + int64(D.existing)*fsize
	if end != size {
		//a previous run died in the middle of a frame.
		if err := D.dcd.Truncate(end); err != nil {
			return Error{err.Error(), D.filename, []string{"Truncate", "initAppend"}, true, nil}
		}
		D.truncated = size - end
	}
	if _, err := D.dcd.Seek(end, io.SeekStart); err != nil {
		return Error{err.Error(), D.filename, []string{"Seek", "initAppend"}, true, nil}
	}
	return nil
}

// encodeHeader returns the three header records for h.
func encodeHeader(h *header) []byte {
	tsize := 4 + mAXTITLE*len(h.titles)
	buf := make([]byte, 0, h.size())
	buf = h.endian.AppendUint32(buf, icntrlSize)
	buf = append(buf, "CORD"...)
	var icntrl [20]uint32
	icntrl[0] = uint32(h.declared)
	icntrl[1] = 1
	icntrl[2] = 1
	icntrl[3] = uint32(h.declared)
	icntrl[7] = uint32(int32(3*h.natoms - 6))
	icntrl[9] = math.Float32bits(h.timestep)
	if h.periodic {
		icntrl[10] = 1
	}
	icntrl[19] = charmmVersion
	for _, v := range icntrl {
		buf = h.endian.AppendUint32(buf, v)
	}
	buf = h.endian.AppendUint32(buf, icntrlSize)

	buf = h.endian.AppendUint32(buf, uint32(tsize))
	buf = h.endian.AppendUint32(buf, uint32(len(h.titles)))
	for _, t := range h.titles {
		buf = append(buf, fixStringSize(t, mAXTITLE)...)
	}
	buf = h.endian.AppendUint32(buf, uint32(tsize))

	buf = h.endian.AppendUint32(buf, 4)
	buf = h.endian.AppendUint32(buf, uint32(h.natoms))
	buf = h.endian.AppendUint32(buf, 4)
	return buf
}

// fixStringSize pads s with spaces, or truncates it, to exactly n bytes.
func fixStringSize(s string, n int) []byte {
	ret := []byte(s)
	if len(ret) > n {
		return ret[:n]
	}
	for len(ret) < n {
		ret = append(ret, ' ')
	}
	return ret
}

// FramesWritten returns the number of frames in the file, counting the ones
// present when it was opened.
func (D *DCDWObj) FramesWritten() int {
	return D.existing + D.written
}

// Truncated returns the number of bytes that were removed from the end of an
// existing file when it was opened, because they didn't make a whole frame.
func (D *DCDWObj) Truncated() int64 {
	return D.truncated
}

// Periodic returns true if the frames in the file carry a unit cell.
func (D *DCDWObj) Periodic() bool {
	return D.h.periodic
}

// Len returns the number of atoms per frame.
func (D *DCDWObj) Len() int {
	return D.h.natoms
}

// WNext writes the next frame to the trajectory. The box, with the 3 orthogonal
// box lengths, must be given if, and only if, the trajectory is periodic.
// The frame is put together in memory and written with a single call.
func (D *DCDWObj) WNext(towrite *v3.Matrix, box ...[]float64) error {
	if !D.writable {
		return Error{TrajUnIniWrite, D.filename, []string{"WNext"}, true, nil}
	}
	if D.capacity != Unlimited && D.written >= D.capacity {
		return Error{fmt.Sprintf("%d frames already written", D.written), D.filename, []string{"WNext"}, true, ErrFrameCountExceeded}
	}
	if towrite == nil {
		return Error{"got nil coordinates", D.filename, []string{"WNext"}, true, ErrAtomCountMismatch}
	}
	if towrite.NVecs() != D.h.natoms {
		return Error{fmt.Sprintf("got %d coordinates for %d atoms", towrite.NVecs(), D.h.natoms), D.filename, []string{"WNext"}, true, ErrAtomCountMismatch}
	}
	var b []float64
	if len(box) > 0 && box[0] != nil {
		b = box[0]
	}
	if b != nil && !D.h.periodic {
		return Error{"box given", D.filename, []string{"WNext"}, true, ErrUnexpectedPeriodicData}
	}
	if b == nil && D.h.periodic {
		return Error{"no box given", D.filename, []string{"WNext"}, true, ErrMissingPeriodicData}
	}
	if b != nil && len(b) < 3 {
		return Error{fmt.Sprintf("box with %d elements", len(b)), D.filename, []string{"WNext"}, true, nil}
	}
	D.dcdFields = D.appendFrame(D.dcdFields[:0], towrite, b)
	if _, err := D.dcd.Write(D.dcdFields); err != nil {
		return Error{err.Error(), D.filename, []string{"Write", "WNext"}, true, nil}
	}
	D.written++
	return nil
}

func (D *DCDWObj) appendFrame(buf []byte, coords *v3.Matrix, box []float64) []byte {
	e := D.h.endian
	if box != nil {
		cell := [6]float64{1.0, box[0], 1.0, box[1], box[2], 1.0}
		buf = e.AppendUint32(buf, uint32(6*D.cellWidth))
		for _, v := range cell {
			if D.cellWidth == 8 {
				buf = e.AppendUint64(buf, math.Float64bits(v))
			} else {
				buf = e.AppendUint32(buf, math.Float32bits(float32(v)))
			}
		}
		buf = e.AppendUint32(buf, uint32(6*D.cellWidth))
	}
	blocksize := uint32(4 * D.h.natoms)
	for dim := 0; dim < 3; dim++ {
		buf = e.AppendUint32(buf, blocksize)
		for i := 0; i < D.h.natoms; i++ {
			buf = e.AppendUint32(buf, math.Float32bits(float32(coords.At(i, dim))))
		}
		buf = e.AppendUint32(buf, blocksize)
	}
	return buf
}

// Close updates the frame count in the header, if the file now has more frames
// than declared, and closes the file.
func (D *DCDWObj) Close() error {
	if D.dcd == nil {
		return nil
	}
	defer func() {
		D.dcd.Close()
		D.dcd = nil
		D.writable = false
	}()
	if err := D.updateFrames(); err != nil {
		return errDecorate(err, "Close")
	}
	if err := D.dcd.Sync(); err != nil {
		return Error{err.Error(), D.filename, []string{"Sync", "Close"}, true, nil}
	}
	return nil
}

// DCD requires the number of frames at the begining. The count
// is only ever increased.
func (D *DCDWObj) updateFrames() error {
	total := D.FramesWritten()
	if total <= D.h.declared {
		return nil
	}
	var n [4]byte
	D.h.endian.PutUint32(n[:], uint32(total))
	//icntrl[0] and icntrl[3], after the record length and "CORD".
	for _, offset := range []int64{8, 20} {
		if _, err := D.dcd.WriteAt(n[:], offset); err != nil {
			return Error{err.Error(), D.filename, []string{"WriteAt", "updateFrames"}, true, nil}
		}
	}
	D.h.declared = total
	return nil
}
