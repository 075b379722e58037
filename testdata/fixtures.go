// Package testdata embeds recorded lid distance traces used across tests.
package testdata

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/ayusman/palak/internal/trace"
)

//go:embed traces/*.csv
var tracesFS embed.FS

// TraceFPS is the frame rate every embedded trace was recorded at.
const TraceFPS = 30

// LoadTrace loads an embedded trace by file name.
func LoadTrace(name string) ([]trace.Sample, error) {
	data, err := tracesFS.ReadFile("traces/" + name)
	if err != nil {
		return nil, fmt.Errorf("load trace %s: %w", name, err)
	}

	samples, err := trace.Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse trace %s: %w", name, err)
	}

	return samples, nil
}

// Traces lists the embedded trace file names in lexical order.
func Traces() ([]string, error) {
	entries, err := fs.ReadDir(tracesFS, "traces")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
