/*
 * driver.go, part of mergetraj
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

// Package merge appends input trajectories to a merged DCD trajectory, and optionally
// to a downsampled one. Runs can be repeated with the same or more inputs: frames already
// in the output are never written again.
package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	chem "github.com/rmera/mergetraj"
	"github.com/rmera/mergetraj/chemplot"
	"github.com/rmera/mergetraj/reimage"
	"github.com/rmera/mergetraj/traj"
	"github.com/rmera/mergetraj/traj/dcd"
	v3 "github.com/rmera/mergetraj/v3"
	"go.uber.org/zap"
)

// Opener opens an input trajectory with natoms atoms per frame.
type Opener func(name string, natoms int, opts traj.Options) (chem.FrameSource, error)

// Option changes the defaults of a Driver.
type Option func(*Driver)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// WithOpener sets the function used to open input trajectories. The default is traj.Open.
func WithOpener(o Opener) Option {
	return func(d *Driver) {
		if o != nil {
			d.open = o
		}
	}
}

// WithBoxPlot makes the Driver plot the box lengths of the frames written in each run
// to filename.
func WithBoxPlot(filename string) Option {
	return func(d *Driver) {
		d.boxPlot = filename
	}
}

// Summary describes what a run did.
type Summary struct {
	Target      int //Frames in the output at the start.
	Merged      int //Frames contributed by all the inputs.
	Written     int //Frames appended to the output.
	Downsampled int //Frames appended to the downsampled output.
	Total       int //Frames in the output at the end.
	Skipped     []string
}

// Driver merges trajectories of one system.
type Driver struct {
	cfg      Config
	natoms   int
	reimager *reimage.Reimager
	log      *zap.Logger
	open     Opener
	boxPlot  string

	out, down *dcd.DCDWObj
	periodic  bool

	plotFrames []int
	plotBoxes  [][3]float64
}

// New returns a Driver for trajectories of the system with topology top.
// The configuration and the selections are checked here, so a Driver
// that is returned without error can only fail on I/O.
func New(cfg Config, top *chem.Topology, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if top == nil || top.Len() == 0 {
		return nil, errors.New("empty model")
	}
	d := &Driver{cfg: cfg, natoms: top.Len(), log: zap.NewNop(), open: traj.Open}
	for _, o := range opts {
		o(d)
	}
	if d.cfg.Titles == nil {
		d.cfg.Titles = []string{"Merged by mergetraj"}
	}
	if d.cfg.Timestep == 0 {
		d.cfg.Timestep = DefaultTimestep
	}
	if !cfg.geometric() {
		return d, nil
	}
	ropts := reimage.Options{SelectionSplit: cfg.SelectionSplit, FixImaging: cfg.FixImaging}
	var err error
	if ropts.Center, err = selection(top, cfg.Center); err != nil {
		return nil, err
	}
	if ropts.XYCenter, err = selection(top, cfg.XYCenter); err != nil {
		return nil, err
	}
	if ropts.ZCenter, err = selection(top, cfg.ZCenter); err != nil {
		return nil, err
	}
	if d.reimager, err = reimage.New(chem.Molecules(top), ropts); err != nil {
		return nil, err
	}
	return d, nil
}

func selection(top *chem.Topology, query string) ([]int, error) {
	if query == "" {
		return nil, nil
	}
	sel, err := chem.Select(top, query)
	if err != nil {
		return nil, fmt.Errorf("selection %q: %w", query, err)
	}
	if len(sel) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptySelection, query)
	}
	return sel, nil
}

// Run merges inputs, in the given order, into the outputs. The context is checked
// between frames, so a cancelled run leaves only whole frames in the outputs.
func (d *Driver) Run(ctx context.Context, inputs []string) (s *Summary, err error) {
	target, err := d.existing(d.cfg.Output)
	if err != nil {
		return nil, err
	}
	s = &Summary{Target: target, Total: target}
	d.log.Info("merging trajectories",
		zap.String("output", d.cfg.Output),
		zap.Int("target", target),
		zap.Int("inputs", len(inputs)))
	if d.cfg.Downsample != "" {
		if err := d.checkDownsample(target); err != nil {
			return nil, err
		}
	}
	d.plotFrames, d.plotBoxes = nil, nil
	defer func() {
		if d.out != nil {
			s.Total = d.out.FramesWritten()
		}
		if cerr := d.close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	rec := NewReconciler(target, d.cfg.SkipFirstFrame)
	for _, name := range inputs {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		if err := d.input(ctx, name, rec, s); err != nil {
			return s, err
		}
	}
	s.Merged = rec.Previous()
	if d.boxPlot != "" && len(d.plotFrames) > 0 {
		title := filepath.Base(d.cfg.Output)
		if err := chemplot.BoxDrift(d.plotFrames, d.plotBoxes, title, d.boxPlot); err != nil {
			return s, err
		}
	}
	d.log.Info("merge finished",
		zap.Int("written", s.Written),
		zap.Int("downsampled", s.Downsampled),
		zap.Int("merged", s.Merged))
	return s, nil
}

// existing returns the number of frames in the DCD file name, which is 0 if the file
// doesn't exist. A file written for a system with a different number of atoms is an error.
func (d *Driver) existing(name string) (int, error) {
	info, err := os.Stat(name)
	if errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	r, err := dcd.New(name)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	if r.Len() != d.natoms {
		return 0, fmt.Errorf("%s has %d atoms, the model has %d: %w", name, r.Len(), d.natoms, dcd.ErrAtomCountMismatch)
	}
	return r.NFrames()
}

// checkDownsample warns when the downsampled output doesn't hold the frames
// that the merged output implies.
func (d *Driver) checkDownsample(target int) error {
	have, err := d.existing(d.cfg.Downsample)
	if err != nil {
		return err
	}
	rate := d.cfg.DownsampleRate
	if want := (target + rate - 1) / rate; have != want {
		d.log.Warn("downsampled trajectory out of step with the merged one",
			zap.String("downsample", d.cfg.Downsample),
			zap.Int("frames", have),
			zap.Int("expected", want))
	}
	return nil
}

func (d *Driver) input(ctx context.Context, name string, rec *Reconciler, s *Summary) error {
	src, err := d.open(name, d.natoms, traj.Options{AmberBox: d.cfg.AmberBox})
	if err != nil {
		return err
	}
	defer src.Close()
	raw, err := src.NFrames()
	if err != nil {
		return err
	}
	plan := rec.Plan(raw)
	if plan.SkipAll {
		d.log.Info("skipping",
			zap.String("file", name),
			zap.Int("frames", plan.Available),
			zap.Int("previous", rec.Previous()))
		s.Skipped = append(s.Skipped, name)
		return nil
	}
	d.log.Info("writing",
		zap.String("file", name),
		zap.Int("frames", plan.Write),
		zap.Int("skipped", plan.Skip),
		zap.Int("previous", rec.Previous()))
	if err := src.Seek(plan.Start); err != nil {
		return err
	}
	return d.stream(ctx, src, rec, s)
}

// stream writes every remaining frame in src.
func (d *Driver) stream(ctx context.Context, src chem.FrameSource, rec *Reconciler, s *Summary) error {
	coords := v3.Zeros(d.natoms)
	var box []float64
	if src.Periodic() {
		box = make([]float64, 3)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		if box != nil {
			err = src.Next(coords, box)
		} else {
			err = src.Next(coords)
		}
		if chem.IsLastFrame(err) {
			return nil
		} else if err != nil {
			return err
		}
		if d.reimager != nil {
			if err := d.reimager.Apply(coords, coords, box); err != nil {
				return fmt.Errorf("frame %d: %w", rec.Previous(), err)
			}
		}
		index := rec.Previous()
		if err := d.write(&d.out, d.cfg.Output, coords, box); err != nil {
			return err
		}
		s.Written++
		if d.cfg.Downsample != "" && index%d.cfg.DownsampleRate == 0 {
			if err := d.write(&d.down, d.cfg.Downsample, coords, box); err != nil {
				return err
			}
			s.Downsampled++
		}
		rec.Commit()
		if d.boxPlot != "" && box != nil {
			d.plotFrames = append(d.plotFrames, index)
			d.plotBoxes = append(d.plotBoxes, [3]float64{box[0], box[1], box[2]})
		}
	}
}

// write writes a frame to *w, which is opened first if needed. The periodicity
// of a new output is that of the first frame written to it.
func (d *Driver) write(w **dcd.DCDWObj, name string, coords *v3.Matrix, box []float64) error {
	if *w == nil {
		h := dcd.Header{
			Natoms:   d.natoms,
			Frames:   dcd.Unlimited,
			Timestep: float32(d.cfg.Timestep),
			Periodic: box != nil,
			Titles:   d.cfg.Titles,
		}
		o, err := dcd.NewWriter(name, h)
		if err != nil {
			return err
		}
		if t := o.Truncated(); t > 0 {
			d.log.Warn("removed partial frame",
				zap.String("file", name),
				zap.Int64("bytes", t))
		}
		*w = o
	}
	if box != nil {
		return (*w).WNext(coords, box)
	}
	return (*w).WNext(coords)
}

func (d *Driver) close() error {
	var errs []error
	for _, w := range []**dcd.DCDWObj{&d.out, &d.down} {
		if *w == nil {
			continue
		}
		if err := (*w).Close(); err != nil {
			errs = append(errs, err)
		}
		*w = nil
	}
	return errors.Join(errs...)
}
