package batch

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/ankit-chaubey/geotag-surgery/core"
)

// Input is one image of a batch. Open is called once, when the pipeline
// reaches the item, so only one upload is read into memory at a time.
type Input struct {
	Name   string
	Format core.FormatID // declared format; content sniffing wins
	Open   func() (io.ReadCloser, error)
}

// FileInput reads an image from disk.
func FileInput(path string) Input {
	return Input{
		Name:   filepath.Base(path),
		Format: core.FormatFromName(path),
		Open:   func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// BytesInput wraps an image already in memory.
func BytesInput(name string, data []byte) Input {
	return Input{
		Name:   name,
		Format: core.FormatFromName(name),
		Open:   func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// Artifact is a handle to a transformed image persisted on disk.
type Artifact struct {
	Name string // output name, e.g. "IMG_0001.jpg"
	Path string
	Size int64
}

// Outcome is the result of one item: exactly one of Artifact and Err is set.
type Outcome struct {
	Index    int
	Source   string
	Artifact *Artifact
	Err      error
}

// OK reports whether the item succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Artifact != nil
}

// Result aggregates a batch run. It owns the run's temporary directory
// until Cleanup is called.
type Result struct {
	RunID       string
	Outcomes    []Outcome // input order
	Succeeded   int
	Failed      int
	PeakDecoded int // most decoded images alive at once

	dir string
}

// Total is the number of items processed.
func (r *Result) Total() int {
	return len(r.Outcomes)
}

// Artifacts returns the handles of successful items in input order.
func (r *Result) Artifacts() []Artifact {
	var out []Artifact
	for _, o := range r.Outcomes {
		if o.OK() {
			out = append(out, *o.Artifact)
		}
	}
	return out
}

// Summary converts the result into its caller-facing form.
func (r *Result) Summary() core.Summary {
	s := core.Summary{
		Total:     r.Total(),
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
	}
	for _, o := range r.Outcomes {
		if o.Err == nil {
			continue
		}
		s.Errors = append(s.Errors, core.ItemError{
			Index: o.Index,
			Name:  o.Source,
			Kind:  core.KindOf(o.Err),
			Error: o.Err.Error(),
		})
	}
	return s
}

// Dir is the run's temporary directory.
func (r *Result) Dir() string {
	return r.dir
}

// Cleanup removes every temporary file of the run. Safe to call twice.
func (r *Result) Cleanup() error {
	if r == nil || r.dir == "" {
		return nil
	}
	err := os.RemoveAll(r.dir)
	if err == nil {
		r.dir = ""
	}
	return err
}
