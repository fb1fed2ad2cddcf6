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

/***Dedicated to the long life of the Ven. Khenpo Phuntzok Tenzin Rinpoche***/

/*
Package chem provides the atomic model used by mergetraj: atoms, bonds and topologies,
readers for PDB and PSF model files, a small selection language, and the partition
of a system into molecules that is used to reimage periodic trajectories.

It also declares the interfaces shared by the trajectory packages under traj/,
and the error interfaces that all packages in the module implement.
*/
package chem
