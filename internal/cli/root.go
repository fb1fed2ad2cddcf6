/*
 * root.go, part of mergetraj
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

// Package cli implements the mergetraj command.
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	chem "github.com/rmera/mergetraj"
	"github.com/rmera/mergetraj/filesort"
	"github.com/rmera/mergetraj/merge"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is the prefix of the environment variables that set flags.
const EnvPrefix = "MERGETRAJ"

// NewRootCommand creates the mergetraj command. Every flag can also be given in a YAML
// config file (--config), with the flag name as key, or as an environment variable
// (--fix-imaging is MERGETRAJ_FIX_IMAGING). Flags take precedence over the environment,
// which takes precedence over the config file.
func NewRootCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "mergetraj [flags] model output input...",
		Short: "Merge MD trajectories into a single DCD trajectory",
		Long: `mergetraj appends input trajectories to a DCD trajectory. Frames already in
the output are not written again, so the same command can be run each time new
inputs are produced. Frames can be reimaged and centered on a selection, and
every n-th frame can go to a second, downsampled, trajectory.

Input formats, by extension: DCD (.dcd), STF (.stf, .stz, .stl, .str, .sts) and
old Amber ASCII (.crd, .mdcrd, .trj). The model is a PDB or PSF file.`,
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, v, args)
		},
	}
	f := cmd.Flags()
	f.String("downsample-dcd", "", "also write every downsample-rate-th frame to this DCD file")
	f.Int("downsample-rate", merge.DefaultDownsampleRate, "stride for the downsampled trajectory")
	f.String("centering-selection", "", "center the system on this selection")
	f.String("xy-centering-selection", "", "center the system in x and y on this selection")
	f.String("z-centering-selection", "", "center the system in z on this selection")
	f.Bool("selection-is-split", false, "the centering selection may be split across the box boundaries")
	f.Bool("fix-imaging", false, "put together molecules split across the box boundaries")
	f.Bool("skip-first-frame", false, "drop the first frame of each input with more than one frame")
	f.Bool("sort", false, "sort the inputs by the number in their names")
	f.String("scanf", "", "with --sort, take the number from the names using this scanf format (e.g. 'prod_%d.dcd')")
	f.String("regex", "", "with --sort, take the number from the first group of this regular expression (default "+filesort.DefaultRegex+")")
	f.Float64("timestep", merge.DefaultTimestep, "timestep written to new DCD files")
	f.Bool("amber-box", false, "old Amber inputs have box lengths")
	f.String("box-plot", "", "plot the box lengths of the written frames to this file")
	f.String("config", "", "YAML config file")
	f.BoolP("verbose", "v", false, "development logging")
	_ = v.BindPFlags(f)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return cmd
}

func loadConfig(v *viper.Viper) error {
	file := v.GetString("config")
	if file == "" {
		return nil
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", file, err)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	var l *zap.Logger
	var err error
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return l.With(zap.String("run", uuid.NewString())), nil
}

// configFrom builds the merge configuration from the flags.
func configFrom(v *viper.Viper, output string) merge.Config {
	return merge.Config{
		Output:         output,
		Downsample:     v.GetString("downsample-dcd"),
		DownsampleRate: v.GetInt("downsample-rate"),
		Center:         v.GetString("centering-selection"),
		XYCenter:       v.GetString("xy-centering-selection"),
		ZCenter:        v.GetString("z-centering-selection"),
		SelectionSplit: v.GetBool("selection-is-split"),
		FixImaging:     v.GetBool("fix-imaging"),
		SkipFirstFrame: v.GetBool("skip-first-frame"),
		Timestep:       v.GetFloat64("timestep"),
		AmberBox:       v.GetBool("amber-box"),
	}
}

// sortKey returns nil if the inputs are to be merged in the given order.
// --scanf and --regex only choose the key, sorting needs --sort.
func sortKey(v *viper.Viper) (filesort.KeyFunc, error) {
	scanf, regex := v.GetString("scanf"), v.GetString("regex")
	switch {
	case !v.GetBool("sort") && (scanf != "" || regex != ""):
		return nil, errors.New("--scanf and --regex need --sort")
	case !v.GetBool("sort"):
		return nil, nil
	case scanf != "" && regex != "":
		return nil, errors.New("--scanf and --regex can't be used together")
	case scanf != "":
		return filesort.ScanfKey(scanf)
	}
	return filesort.RegexKey(regex)
}

func run(cmd *cobra.Command, v *viper.Viper, args []string) error {
	model, output, inputs := args[0], args[1], args[2:]
	cfg := configFrom(v, output)
	if err := cfg.Validate(); err != nil {
		return err
	}
	key, err := sortKey(v)
	if err != nil {
		return err
	}
	if key != nil {
		if inputs, err = filesort.Sort(inputs, key); err != nil {
			return err
		}
	}
	logger, err := newLogger(v.GetBool("verbose"))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	top, err := chem.ModelFileRead(model)
	if err != nil {
		return err
	}
	opts := []merge.Option{merge.WithLogger(logger)}
	if plot := v.GetString("box-plot"); plot != "" {
		opts = append(opts, merge.WithBoxPlot(plot))
	}
	d, err := merge.New(cfg, top, opts...)
	if err != nil {
		return err
	}
	s, err := d.Run(cmd.Context(), inputs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames written, %d total\n", output, s.Written, s.Total)
	if cfg.Downsample != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frames written\n", cfg.Downsample, s.Downsampled)
	}
	return nil
}
