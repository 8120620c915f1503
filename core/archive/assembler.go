// Package archive turns a batch result into the final deliverable: the lone
// image for a one-item batch, a zip of every success otherwise.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/ankit-chaubey/geotag-surgery/core"
	"github.com/ankit-chaubey/geotag-surgery/core/batch"
)

// Kind is the shape of a deliverable.
type Kind int

const (
	Single Kind = iota
	Zip
)

func (k Kind) String() string {
	if k == Single {
		return "single"
	}
	return "zip"
}

// DefaultPrefix is prepended to every delivered file name.
const DefaultPrefix = "geotagged_"

// Deliverable describes what Assemble writes.
type Deliverable struct {
	Kind        Kind
	Name        string // suggested download name
	ContentType string
	Entries     int   // images included
	Size        int64 // bytes written; set by Assemble
}

// Assembler builds deliverables.
type Assembler struct {
	prefix string
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(a *Assembler) { a.prefix = prefix }
}

// WithClock sets the time source used for archive names and entry dates.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithLogger sets the assembler logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// New returns an Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{prefix: DefaultPrefix, now: time.Now, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Plan reports the deliverable res would produce without touching disk.
func (a *Assembler) Plan(res *batch.Result) (Deliverable, error) {
	if res == nil || res.Succeeded == 0 {
		return Deliverable{}, core.NewError(core.KindEmptyResult, "archive.Plan", "", "no image was processed successfully")
	}
	arts := res.Artifacts()
	if res.Total() == 1 && len(arts) == 1 {
		return Deliverable{
			Kind:        Single,
			Name:        a.prefix + arts[0].Name,
			ContentType: "image/jpeg",
			Entries:     1,
		}, nil
	}
	return Deliverable{
		Kind:        Zip,
		Name:        fmt.Sprintf("%simages_%s.zip", a.prefix, a.now().Format("20060102_150405")),
		ContentType: "application/zip",
		Entries:     len(arts),
	}, nil
}

// Assemble writes the deliverable of res to w, reading persisted outputs
// one at a time. The temporary files of res are removed on every path.
func (a *Assembler) Assemble(res *batch.Result, w io.Writer) (d Deliverable, err error) {
	defer func() {
		if cerr := res.Cleanup(); cerr != nil {
			a.logger.Error().Err(cerr).Str("dir", res.Dir()).Msg("Failed to remove run directory")
		}
	}()

	d, err = a.Plan(res)
	if err != nil {
		return d, err
	}

	cw := &countingWriter{w: w}
	if d.Kind == Single {
		err = copyArtifact(cw, res.Artifacts()[0])
	} else {
		err = a.writeZip(cw, res.Artifacts())
	}
	d.Size = cw.n
	if err != nil {
		return d, err
	}

	a.logger.Info().
		Str("kind", d.Kind.String()).
		Str("name", d.Name).
		Int("entries", d.Entries).
		Str("size", humanize.Bytes(uint64(d.Size))).
		Msg("deliverable assembled")
	return d, nil
}

func (a *Assembler) writeZip(w io.Writer, arts []batch.Artifact) error {
	const op = "archive.Assemble"

	zw := zip.NewWriter(w)
	names := newNameSet()
	modified := a.now()

	for _, art := range arts {
		hdr := &zip.FileHeader{
			Name:     names.claim(a.prefix + art.Name),
			Method:   zip.Deflate,
			Modified: modified,
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return core.WrapError(core.KindArchiveIO, op, art.Name, "cannot add archive entry", err)
		}
		if err := copyArtifact(fw, art); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return core.WrapError(core.KindArchiveIO, op, "", "cannot finish archive", err)
	}
	return nil
}

func copyArtifact(w io.Writer, art batch.Artifact) error {
	const op = "archive.Assemble"

	f, err := os.Open(art.Path)
	if err != nil {
		return core.WrapError(core.KindArchiveIO, op, art.Name, "cannot open stored image", err)
	}
	defer f.Close()

	n, err := io.Copy(w, f)
	if err != nil {
		return core.WrapError(core.KindArchiveIO, op, art.Name, "cannot copy stored image", err)
	}
	if n != art.Size {
		return core.NewError(core.KindArchiveIO, op, art.Name,
			fmt.Sprintf("stored image is %d bytes, expected %d", n, art.Size))
	}
	return nil
}

// nameSet de-duplicates archive entry names: "a.jpg", "a_2.jpg", ...
type nameSet map[string]bool

func newNameSet() nameSet { return nameSet{} }

func (s nameSet) claim(name string) string {
	if !s[name] {
		s[name] = true
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if !s[candidate] {
			s[candidate] = true
			return candidate
		}
	}
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
