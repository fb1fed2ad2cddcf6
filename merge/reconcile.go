/*
 * reconcile.go, part of mergetraj
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

// Plan says what to do with one input trajectory.
type Plan struct {
	Raw       int //Frames in the file.
	Available int //Frames the file contributes to the merge.
	Skip      int //Contributed frames already in the output.
	Start     int //Index of the first frame to read, counting every frame in the file.
	Write     int //Frames to append.
	SkipAll   bool
}

// Reconciler decides, for each input trajectory in order, which of its frames
// are already in an output that had target frames when the run started.
// Running the same inputs (or the same inputs followed by new ones) again
// never duplicates frames.
type Reconciler struct {
	target    int
	previous  int
	skipFirst bool
}

// NewReconciler returns a Reconciler for an output with target frames. If skipFirst is
// true, the first frame of inputs with more than one frame is not merged.
func NewReconciler(target int, skipFirst bool) *Reconciler {
	return &Reconciler{target: target, skipFirst: skipFirst}
}

// Plan returns the plan for the next input, which has raw frames, and advances
// the counter past the frames that are skipped. After a plan with frames to
// write, Commit must be called once for each frame actually written.
func (R *Reconciler) Plan(raw int) Plan {
	p := Plan{Raw: raw, Available: raw}
	first := 0
	if R.skipFirst && raw > 1 {
		p.Available--
		first = 1
	}
	if R.previous+p.Available <= R.target {
		R.previous += p.Available
		p.Skip = p.Available
		p.SkipAll = true
		return p
	}
	p.Skip = R.target - R.previous
	if p.Skip < 0 {
		p.Skip = 0
	}
	p.Start = p.Skip + first
	p.Write = p.Available - p.Skip
	R.previous += p.Skip
	return p
}

// Commit records that a frame was written.
func (R *Reconciler) Commit() {
	R.previous++
}

// Previous returns the number of merged frames accounted for so far, which is
// also the cumulative index of the next frame to be written.
func (R *Reconciler) Previous() int {
	return R.previous
}

// Target returns the number of frames the output had when the run started.
func (R *Reconciler) Target() int {
	return R.target
}
