/*
 * stf.go, part of mergetraj
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
	"compress/lzw"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	v3 "github.com/rmera/mergetraj/v3"
)

const (
	lzwLitwidth int = 8
	defaultPrec     = 2
)

// Why couldn't *zstd.Decoder implement io.ReadCloser? :-(
type stdql struct {
	*zstd.Decoder
}

// Close Closes the object. It can not be used after this call
func (s stdql) Close() error {
	s.Decoder.Close()
	return nil
}

// compression returns the reader and writer constructors for the compression
// indicated by the last letter of the file name: l for lzw, z for gzip,
// r for raw deflate, and zstd for anything else (f and s, usually).
func compression(name string, level int) (func(io.Reader) (io.ReadCloser, error), func(io.Writer) (io.WriteCloser, error)) {
	var last byte
	if name != "" {
		last = strings.ToLower(name)[len(name)-1]
	}
	switch last {
	case 'l':
		return func(a io.Reader) (io.ReadCloser, error) { return lzw.NewReader(a, lzw.MSB, lzwLitwidth), nil },
			func(a io.Writer) (io.WriteCloser, error) { return lzw.NewWriter(a, lzw.MSB, lzwLitwidth), nil }
	case 'z':
		return func(a io.Reader) (io.ReadCloser, error) { return gzip.NewReader(a) },
			func(a io.Writer) (io.WriteCloser, error) { return gzip.NewWriterLevel(a, gzipLevel(level)) }
	case 'r':
		return func(a io.Reader) (io.ReadCloser, error) { return flate.NewReader(a), nil },
			func(a io.Writer) (io.WriteCloser, error) { return flate.NewWriter(a, gzipLevel(level)) }
	}
	return func(a io.Reader) (io.ReadCloser, error) {
			r, err := zstd.NewReader(a)
			if err != nil {
				return nil, err
			}
			return stdql{r}, nil
		},
		func(a io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(a, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		}
}

// deflate levels go up to 9.
func gzipLevel(level int) int {
	if level > 9 {
		return 9
	}
	return level
}

// stream is an open, decompressing, STF file, positioned after the header.
type stream struct {
	f      *os.File
	dec    io.ReadCloser
	h      *bufio.Reader
	natoms int
	header map[string]string
}

func (s *stream) close() {
	s.dec.Close()
	s.f.Close()
}

func openStream(name string) (*stream, error) {
	s := new(stream)
	var err error
	s.f, err = os.Open(name)
	if err != nil {
		return nil, Error{err.Error(), name, []string{"os.Open", "openStream"}, true}
	}
	newReader, _ := compression(name, 0)
	s.dec, err = newReader(bufio.NewReader(s.f))
	if err != nil {
		s.f.Close()
		return nil, Error{"Can't read header " + err.Error(), name, []string{"openStream"}, true}
	}
	s.h = bufio.NewReader(s.dec)
	s.header = make(map[string]string)
	for {
		str, err := s.h.ReadString('\n')
		if err != nil {
			s.close()
			return nil, Error{"Can't read header " + err.Error(), name, []string{"openStream"}, true}
		}
		str = strings.TrimSuffix(str, "\n")
		if strings.HasPrefix(str, "**") {
			nat := strings.Fields(str)
			if len(nat) < 2 {
				s.close()
				return nil, Error{fmt.Sprintf("Can't read atom number from '%s'", str), name, []string{"openStream"}, true}
			}
			s.natoms, err = strconv.Atoi(nat[1])
			if err != nil || s.natoms <= 0 {
				s.close()
				return nil, Error{fmt.Sprintf("Can't read atom number from '%s'", nat[1]), name, []string{"openStream"}, true}
			}
			break
		}
		kv := strings.SplitN(str, "=", 2)
		if len(kv) != 2 {
			s.close()
			return nil, Error{"Malformed header line: " + str, name, []string{"openStream"}, true}
		}
		s.header[kv[0]] = kv[1]
	}
	return s, nil
}

// StfR is an STF trajectory opened for reading.
type StfR struct {
	s        *stream
	natoms   int
	filename string
	prec     int
	periodic bool
	current  int
	readable bool
}

// New opens a STF trajectory for reading, and returns a pointer
// to the handle, a map with the metadata (empty if there is none)
// and error or nil.
func New(name string) (*StfR, map[string]string, error) {
	S := &StfR{filename: name, prec: defaultPrec}
	var err error
	S.s, err = openStream(name)
	if err != nil {
		return nil, nil, errDecorate(err, "New")
	}
	S.natoms = S.s.natoms
	if p, ok := S.s.header["prec"]; ok {
		prec, err := strconv.Atoi(p)
		if err != nil || prec <= 0 {
			S.s.close()
			return nil, nil, Error{"Invalid precision " + p, name, []string{"New"}, true}
		}
		S.prec = prec
	}
	if S.periodic, err = S.sniffBox(); err != nil {
		S.s.close()
		return nil, nil, errDecorate(err, "New")
	}
	S.readable = true
	m := make(map[string]string, len(S.s.header))
	for k, v := range S.s.header {
		m[k] = v
	}
	return S, m, nil
}

// sniffBox reads the first frame from a separate stream and reports
// whether it carries box vectors.
func (S *StfR) sniffBox() (bool, error) {
	s, err := openStream(S.filename)
	if err != nil {
		return false, errDecorate(err, "sniffBox")
	}
	defer s.close()
	for i := 0; i < S.natoms; i++ {
		if _, err := s.h.ReadString('\n'); err != nil {
			return false, nil //no complete frames
		}
	}
	str, err := s.h.ReadString('\n')
	if err != nil && str == "" {
		return false, nil
	}
	return len(strings.Fields(str)) >= 10, nil
}

// Readable returns true if the handle is readable (if it is possible to call Next on it)
func (S *StfR) Readable() bool {
	return S.readable
}

// Len returns the number of atoms in each frame of the trajectory.
func (S *StfR) Len() int {
	return S.natoms
}

// Periodic returns true if the first frame of the trajectory has box vectors.
func (S *StfR) Periodic() bool {
	return S.periodic
}

// NFrames returns the number of complete frames in the trajectory. Since the file is
// compressed, the whole file needs to be decompressed to count them.
func (S *StfR) NFrames() (int, error) {
	s, err := openStream(S.filename)
	if err != nil {
		return 0, errDecorate(err, "NFrames")
	}
	defer s.close()
	frames := 0
	lines := 0
	for {
		b, err := s.h.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			//a very long line, read the rest of it.
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = s.h.ReadSlice('\n')
			}
		}
		if truncated(err) {
			return frames, nil
		} else if err != nil {
			return 0, Error{err.Error(), S.filename, []string{"NFrames"}, true}
		}
		if len(b) > 0 && b[0] == '*' {
			if lines != S.natoms {
				return 0, Error{fmt.Sprintf("Frame %d has %d atoms", frames, lines), S.filename, []string{"NFrames"}, true}
			}
			frames++
			lines = 0
			continue
		}
		lines++
	}
}

// Seek positions the trajectory so the next frame read is the one with index
// frame. The file is reopened, and the frames before the requested one are
// decompressed and discarded.
func (S *StfR) Seek(frame int) error {
	if S.s == nil {
		return Error{TrajUnIniRead, S.filename, []string{"Seek"}, true}
	}
	if frame < 0 {
		return Error{fmt.Sprintf("Can't seek to frame %d", frame), S.filename, []string{"Seek"}, true}
	}
	if frame < S.current || !S.readable {
		s, err := openStream(S.filename)
		if err != nil {
			return errDecorate(err, "Seek")
		}
		S.s.close()
		S.s = s
		S.current = 0
		S.readable = true
	}
	for S.current < frame {
		if err := S.Next(nil); err != nil {
			if _, ok := err.(*lastFrameError); ok {
				return Error{fmt.Sprintf("Can't seek to frame %d of %d", frame, S.current), S.filename, []string{"Seek"}, true}
			}
			return errDecorate(err, "Seek")
		}
	}
	return nil
}

// truncated is true for errors that mean the stream ended early.
func truncated(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func coordsDecode(str string, temp *[3]float64, prec int) error {
	p := 100.0
	if prec > 0 && prec != 2 { //2 is just the current value, so we can save the operation
		p = math.Pow(10.0, float64(prec))

	}
	s := strings.Fields(str)
	if len(s) < 3 {
		return fmt.Errorf("Ill formated coordinates line in stf: Too few fields: %s", str)
	}
	if len(s) > 3 {
		return fmt.Errorf("Ill formated coordinates line in stf: Too many fields: %s", str)
	}
	for i, v := range s {
		f, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("Can't parse coordinate %d (%s). Error: %s", i, v, err.Error())
		}
		temp[i] = float64(f) / p
	}
	return nil
}

// Next puts in the given matrix (c) the coordinates for the next frame of the trajectory.
// If a box is given, and the frame has box vectors, they are put there: all 9 numbers if the box
// has room for them, or the diagonal (the orthogonal box lengths) if it only has room for 3.
// When the trajectory ends, a chem.LastFrameError is returned.
func (S *StfR) Next(c *v3.Matrix, box ...[]float64) error {
	if !S.readable {
		return Error{TrajUnIniRead, S.filename, []string{"Next"}, true}
	}
	if c != nil && c.NVecs() < S.natoms {
		return Error{NotEnoughSpace, S.filename, []string{"Next"}, true}
	}
	var temp [3]float64
	for i := 0; i < S.natoms; i++ {
		b, err := S.s.h.ReadString('\n')
		if err != nil {
			if truncated(err) {
				//the trajectory ended, maybe in the middle of a frame that is still being written.
				S.readable = false
				return newlastFrameError(S.filename, "Next")
			}
			return Error{err.Error(), S.filename, []string{"Next"}, true}
		}
		if err = coordsDecode(b, &temp, S.prec); err != nil {
			return Error{err.Error(), S.filename, []string{"Next"}, true}
		}
		if c == nil {
			continue //We ignore this whole frame, reading the content but not saving it.
			//Note that we still check the frame for correctness.
		}
		for j, v := range temp {
			c.Set(i, j, v)
		}
	}
	s, err := S.s.h.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && strings.HasPrefix(s, "*")) {
		if truncated(err) {
			S.readable = false
			return newlastFrameError(S.filename, "Next")
		}
		return Error{"Can't read the frame termination mark: " + err.Error(), S.filename, []string{"Next"}, true}
	}
	if s[0] != '*' {
		return Error{"Wrong number of atoms in frame", S.filename, []string{"Next"}, true}
	}
	S.current++
	if len(box) == 0 || len(box[0]) < 3 {
		return nil
	}
	fields := strings.Fields(s)
	if len(fields) < 10 { // The "*" and the 9 numbers
		return nil
	}
	var vectors [9]float64
	for j, v := range fields[1:10] {
		vectors[j], err = strconv.ParseFloat(v, 64)
		if err != nil {
			return Error{"Can't read box vectors: " + err.Error(), S.filename, []string{"Next"}, true}
		}
	}
	if len(box[0]) >= 9 {
		copy(box[0], vectors[:])
	} else {
		box[0][0], box[0][1], box[0][2] = vectors[0], vectors[4], vectors[8]
	}
	return nil
}

// Close closes the object, and marks it as unreadable
func (S *StfR) Close() {
	if S.s == nil {
		return
	}
	S.s.close()
	S.s = nil
	S.readable = false
}
