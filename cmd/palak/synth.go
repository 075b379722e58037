package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/trace"
)

var synthOpts struct {
	frames   int
	fps      float64
	baseline float64
	dips     []string
}

var synthCmd = &cobra.Command{
	Use:   "synth",
	Short: "Write a synthetic lid distance trace to stdout",
	Long: `Synth writes a trace with a constant lid distance and the given dips.
A dip is start:len:depth[:eye], for example 14:7:2 or 40:5:1.5:left.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if synthOpts.frames < 0 {
			return fmt.Errorf("--frames must not be negative, got %d", synthOpts.frames)
		}
		if !(synthOpts.fps > 0) {
			return fmt.Errorf("--fps must be positive, got %g", synthOpts.fps)
		}

		dips := make([]trace.Dip, 0, len(synthOpts.dips))
		for _, s := range synthOpts.dips {
			d, err := parseDip(s)
			if err != nil {
				return err
			}
			dips = append(dips, d)
		}

		samples := trace.Synthetic(synthOpts.frames, synthOpts.fps, synthOpts.baseline, dips...)
		return trace.Write(cmd.OutOrStdout(), samples)
	},
}

func init() {
	f := synthCmd.Flags()
	f.IntVar(&synthOpts.frames, "frames", 90, "number of frames")
	f.Float64Var(&synthOpts.fps, "fps", 30, "frame rate")
	f.Float64Var(&synthOpts.baseline, "baseline", 10, "open-eye lid distance")
	f.StringArrayVar(&synthOpts.dips, "dip", nil, "dip as start:len:depth[:eye], repeatable")
	rootCmd.AddCommand(synthCmd)
}

func parseDip(s string) (trace.Dip, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 || len(parts) > 4 {
		return trace.Dip{}, fmt.Errorf("dip %q: want start:len:depth[:eye]", s)
	}

	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return trace.Dip{}, fmt.Errorf("dip %q: start: %w", s, err)
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return trace.Dip{}, fmt.Errorf("dip %q: len: %w", s, err)
	}
	depth, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return trace.Dip{}, fmt.Errorf("dip %q: depth: %w", s, err)
	}

	d := trace.Dip{Start: start, Len: n, Depth: depth}
	if len(parts) == 4 {
		switch eye := blink.Eye(parts[3]); eye {
		case blink.EyeLeft, blink.EyeRight:
			d.Eye = eye
		default:
			return trace.Dip{}, fmt.Errorf("dip %q: unknown eye %q", s, parts[3])
		}
	}
	return d, nil
}
