/*
 * boxdrift.go, part of mergetraj
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

// Package chemplot produces diagnostic plots of merged trajectories.
package chemplot

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var axisColors = [3]color.RGBA{
	{R: 200, G: 30, B: 30, A: 255},
	{R: 30, G: 140, B: 30, A: 255},
	{R: 30, G: 30, B: 200, A: 255},
}

// BoxDrift plots the three box lengths in boxes against the frame indexes in frames, and saves the
// plot to filename. The format is taken from the extension of filename (png, svg, pdf, eps, jpg or tif).
func BoxDrift(frames []int, boxes [][3]float64, title, filename string) error {
	if len(frames) != len(boxes) {
		return fmt.Errorf("BoxDrift: %d frame indexes for %d boxes", len(frames), len(boxes))
	}
	if len(frames) == 0 {
		return errors.New("BoxDrift: nothing to plot")
	}
	p := plot.New()
	p.Title.Text = title
	p.Title.Padding = 3 * vg.Millimeter
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Box length (A)"
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	for axis, name := range []string{"x", "y", "z"} {
		xys := make(plotter.XYs, len(frames))
		for i, f := range frames {
			xys[i].X = float64(f)
			xys[i].Y = boxes[i][axis]
		}
		l, err := plotter.NewLine(xys)
		if err != nil {
			return fmt.Errorf("BoxDrift: %w", err)
		}
		l.LineStyle.Color = axisColors[axis]
		l.LineStyle.Width = vg.Points(1)
		p.Add(l)
		p.Legend.Add(name, l)
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, filename); err != nil {
		return fmt.Errorf("BoxDrift: %w", err)
	}
	return nil
}
