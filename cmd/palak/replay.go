package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ayusman/palak/internal/app"
	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/capture"
	"github.com/ayusman/palak/internal/detector"
	"github.com/ayusman/palak/internal/trace"
)

var replayOpts struct {
	save  bool
	quiet bool
}

var replayCmd = &cobra.Command{
	Use:   "replay <trace.csv>",
	Short: "Run a recorded lid distance trace through the blink trackers",
	Long: `Replay reads a CSV trace of per-frame lid distances (frame,t_ms,left,right)
and prints the blinks found in it. Use "-" to read from stdin. With --save the
trace is stored as a session, like a camera run.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		samples, err := readTrace(args[0])
		if err != nil {
			return err
		}

		var events []blink.Event
		if replayOpts.save {
			events, err = replaySaved(args[0], samples)
		} else {
			events, err = replayOnly(samples)
		}
		if err != nil {
			return err
		}

		printEvents(cmd.OutOrStdout(), events)
		return nil
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayOpts.save, "save", false, "store the replay as a session")
	replayCmd.Flags().BoolVarP(&replayOpts.quiet, "quiet", "q", false, "hide the progress bar")
	rootCmd.AddCommand(replayCmd)
}

func readTrace(path string) ([]trace.Sample, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	samples, err := trace.Read(r)
	if err != nil {
		return nil, fmt.Errorf("read trace %s: %w", path, err)
	}
	return samples, nil
}

func newBar(n int) *progressbar.ProgressBar {
	var w io.Writer = os.Stderr
	if replayOpts.quiet {
		w = io.Discard
	}
	return progressbar.NewOptions(n,
		progressbar.OptionSetDescription("Replaying"),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
	)
}

func replayOnly(samples []trace.Sample) ([]blink.Event, error) {
	bar := newBar(len(samples))
	events, err := trace.Replay(samples, cfg.Blink, func(trace.Sample, blink.FrameState) {
		bar.Add(1)
	})
	bar.Finish()
	return events, err
}

// replaySaved runs samples through an App so the session, its frame count
// and its events land in the store.
func replaySaved(path string, samples []trace.Sample) ([]blink.Event, error) {
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	a := app.New(app.Config{
		Store:    st,
		Blink:    cfg.Blink,
		Camera:   capture.NewMockCamera(nil, false),
		Detector: detector.NewMockDetector(),
	})

	var events []blink.Event
	a.OnBlink(func(ev blink.Event) {
		events = append(events, ev)
	})

	id, err := a.BeginSession("trace:" + path)
	if err != nil {
		return nil, err
	}

	bar := newBar(len(samples))
	for _, s := range samples {
		a.ProcessSample(s)
		bar.Add(1)
	}
	bar.Finish()

	if err := a.EndSession(); err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "\nstored session %s\n", id)
	return events, nil
}

func printEvents(out io.Writer, events []blink.Event) {
	if len(events) == 0 {
		fmt.Fprintln(out, "No blinks found.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "EYE\tSTART\tEND\tDURATION\tDETECTIONS")
	fmt.Fprintln(w, "---\t-----\t---\t--------\t----------")

	var left, right int
	for _, ev := range events {
		if ev.Eye == blink.EyeRight {
			right++
		} else {
			left++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			ev.Eye,
			ev.Start.Round(time.Millisecond),
			ev.End.Round(time.Millisecond),
			ev.Duration().Round(time.Millisecond),
			ev.Detections,
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d blinks (left %d, right %d)\n", left+right, left, right)
}
