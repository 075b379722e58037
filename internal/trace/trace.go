// Package trace reads, writes and replays recorded lid-distance traces.
//
// A trace is a CSV file with one row per captured frame:
//
//	frame,t_ms,left,right
//	0,0,10.2,10.4
//	1,33.333,10.1,
//
// The header row is optional and lines starting with # are ignored. An empty
// left or right cell marks a frame where no face was found.
package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrMalformed is returned by Read for rows that cannot be parsed.
var ErrMalformed = errors.New("malformed trace")

// header is the column layout written by Write.
var header = []string{"frame", "t_ms", "left", "right"}

// Sample is one frame of a trace.
type Sample struct {
	Frame int
	At    time.Duration
	Left  float64
	Right float64
	// Missing is set when no face was tracked on this frame.
	Missing bool
}

// Read parses a trace. Timestamps must not go backwards.
func Read(r io.Reader) ([]Sample, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var samples []Sample
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(rec[0]), header[0]) {
				continue
			}
		}

		s, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		if n := len(samples); n > 0 && s.At < samples[n-1].At {
			return nil, fmt.Errorf("%w: line %d: timestamp %v before %v", ErrMalformed, line, s.At, samples[n-1].At)
		}
		samples = append(samples, s)
	}

	return samples, nil
}

func parseRecord(rec []string) (Sample, error) {
	if len(rec) != len(header) {
		return Sample{}, fmt.Errorf("expected %d fields, got %d", len(header), len(rec))
	}

	frame, err := strconv.Atoi(strings.TrimSpace(rec[0]))
	if err != nil {
		return Sample{}, fmt.Errorf("frame: %v", err)
	}
	ms, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
	if err != nil {
		return Sample{}, fmt.Errorf("t_ms: %v", err)
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return Sample{}, fmt.Errorf("t_ms: %v is not a finite, non-negative time", ms)
	}

	s := Sample{
		Frame: frame,
		At:    time.Duration(ms * float64(time.Millisecond)),
	}

	left, right := strings.TrimSpace(rec[2]), strings.TrimSpace(rec[3])
	if left == "" || right == "" {
		s.Missing = true
		return s, nil
	}
	if s.Left, err = strconv.ParseFloat(left, 64); err != nil {
		return Sample{}, fmt.Errorf("left: %v", err)
	}
	if s.Right, err = strconv.ParseFloat(right, 64); err != nil {
		return Sample{}, fmt.Errorf("right: %v", err)
	}
	return s, nil
}

// Write encodes samples with a header row.
func Write(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, s := range samples {
		row := []string{
			strconv.Itoa(s.Frame),
			strconv.FormatFloat(float64(s.At)/float64(time.Millisecond), 'f', -1, 64),
			"",
			"",
		}
		if !s.Missing {
			row[2] = strconv.FormatFloat(s.Left, 'f', -1, 64)
			row[3] = strconv.FormatFloat(s.Right, 'f', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
