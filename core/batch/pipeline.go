// Package batch drives a sequence of images through the transform one at
// a time, persisting each output before the next item starts.
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/geotag-surgery/core"
	"github.com/ankit-chaubey/geotag-surgery/core/exifenc"
	"github.com/ankit-chaubey/geotag-surgery/core/transform"
)

// Pipeline runs batches. It is stateless between runs.
type Pipeline struct {
	tempDir   string
	logger    zerolog.Logger
	progress  func(core.Progress)
	maxPixels int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTempDir sets the parent of per-run directories; "" means os.TempDir.
func WithTempDir(dir string) Option {
	return func(p *Pipeline) { p.tempDir = dir }
}

// WithLogger sets the pipeline logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithProgress registers a callback invoked after every item.
func WithProgress(fn func(core.Progress)) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// WithMaxPixels bounds the dimensions of accepted images, see
// transform.WithMaxPixels.
func WithMaxPixels(n int64) Option {
	return func(p *Pipeline) { p.maxPixels = n }
}

// New returns a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run validates rec, encodes its EXIF blob once and processes inputs in
// order. Item failures are recorded in the result; only validation,
// encoding, temp storage and cancellation errors fail the run. The caller
// owns the returned Result and must Cleanup it (the archive assembler does).
func (p *Pipeline) Run(ctx context.Context, inputs []Input, rec core.MetadataRecord) (*Result, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	blob, err := exifenc.Encode(rec)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	dir, err := os.MkdirTemp(p.tempDir, "geotag-"+runID+"-*")
	if err != nil {
		return nil, fmt.Errorf("create run directory: %w", err)
	}

	logger := p.logger.With().Str("run", runID).Logger()
	gauge := &transform.Gauge{}
	tr := transform.New(
		transform.WithGauge(gauge),
		transform.WithLogger(logger),
		transform.WithMaxPixels(p.maxPixels),
	)

	res := &Result{
		RunID:    runID,
		Outcomes: make([]Outcome, 0, len(inputs)),
		dir:      dir,
	}

	start := time.Now()
	logger.Info().Int("items", len(inputs)).Int("exif_bytes", len(blob)).Msg("batch started")

	for i, in := range inputs {
		if err := ctx.Err(); err != nil {
			logger.Warn().Err(err).Int("processed", i).Msg("batch cancelled")
			if cerr := res.Cleanup(); cerr != nil {
				logger.Error().Err(cerr).Str("dir", dir).Msg("Failed to remove run directory")
			}
			return nil, err
		}

		oc := p.processItem(tr, dir, i, in, blob)
		res.Outcomes = append(res.Outcomes, oc)
		if oc.OK() {
			res.Succeeded++
			logger.Debug().Int("index", i).Str("file", in.Name).Int64("size", oc.Artifact.Size).Msg("item stored")
		} else {
			res.Failed++
			logger.Warn().Err(oc.Err).Int("index", i).Str("file", in.Name).Msg("item failed")
		}

		if p.progress != nil {
			p.progress(core.Progress{Processed: i + 1, Total: len(inputs), Name: in.Name})
		}
	}

	res.PeakDecoded = gauge.Peak()
	logger.Info().
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("peak_decoded", res.PeakDecoded).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")
	return res, nil
}

// processItem reads and transforms one input, streaming the output into
// its file in dir. Only the raw input is held in memory alongside the
// decoded image.
func (p *Pipeline) processItem(tr *transform.Transformer, dir string, i int, in Input, blob exifenc.Blob) Outcome {
	const op = "batch.Run"
	oc := Outcome{Index: i, Source: in.Name}

	data, err := readInput(in)
	if err != nil {
		oc.Err = core.WrapError(core.KindDecode, op, in.Name, "cannot read image", err)
		return oc
	}

	name := transform.OutputName(in.Name)
	path := filepath.Join(dir, fmt.Sprintf("%04d-%s", i, name))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		oc.Err = core.WrapError(core.KindTransform, op, in.Name, "cannot persist output", err)
		return oc
	}

	out, err := tr.Transform(f, in.Name, in.Format, data, blob)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = core.WrapError(core.KindTransform, op, in.Name, "cannot persist output", cerr)
	}
	if err != nil {
		os.Remove(path)
		oc.Err = err
		return oc
	}
	oc.Artifact = &Artifact{Name: out.Name, Path: path, Size: out.Size}
	return oc
}

func readInput(in Input) ([]byte, error) {
	if in.Open == nil {
		return nil, fmt.Errorf("input %q has no source", in.Name)
	}
	rc, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
