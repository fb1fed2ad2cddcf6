/*
 * doc.go, part of mergetraj
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

/*
Package stf reads and writes the simple trajectory format (STF), a compressed
text trajectory format designed to be easy to read and write from any language.

An STF file is a compressed stream. The compression is given by the last letter
of the file name: .stl is lzw, .stz gzip, .str raw deflate, and .stf or .sts
(or anything else) zstd.

The uncompressed stream starts with a header: zero or more lines key=value,
ended by a line "** N", where N is the number of atoms per frame. The key "prec"
gives the precision, the number of decimal places kept for each coordinate
(2 if absent).

After the header, each frame has one line per atom with 3 integers, the x, y
and z coordinates in Angstrom multiplied by 10 to the power of the precision and
rounded. A frame ends with a line starting with "*", optionally followed by the 9
components of the box vectors, in Angstrom.

The "**" sequence may only be used to end the header.
*/
package stf
