// Package transform turns one uploaded image into a JPEG carrying the
// batch's EXIF blob on top of the image's own EXIF.
package transform

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/ankit-chaubey/geotag-surgery/core"
	"github.com/ankit-chaubey/geotag-surgery/core/exifenc"
	"github.com/ankit-chaubey/geotag-surgery/core/jpg"
	"github.com/ankit-chaubey/geotag-surgery/core/pngmeta"
)

// Quality is the fixed JPEG quality of every output.
const Quality = 95

// DefaultMaxPixels bounds width×height of accepted sources. Decoding
// allocates the full pixel buffer up front, so the header is checked first.
const DefaultMaxPixels = 50_000_000

// Output is a successfully transformed image.
type Output struct {
	Name string // output file name, always ".jpg"
	Size int64  // bytes written
}

// Transformer decodes, normalises and re-encodes single images. It holds no
// per-image state and can be reused across a batch.
type Transformer struct {
	gauge     *Gauge
	logger    zerolog.Logger
	maxPixels int64
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithGauge counts decoded images alive in Transform.
func WithGauge(g *Gauge) Option {
	return func(t *Transformer) { t.gauge = g }
}

// WithLogger sets the logger used for per-image debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Transformer) { t.logger = l }
}

// WithMaxPixels rejects sources larger than n pixels. n <= 0 keeps
// DefaultMaxPixels.
func WithMaxPixels(n int64) Option {
	return func(t *Transformer) {
		if n > 0 {
			t.maxPixels = n
		}
	}
}

// New returns a Transformer.
func New(opts ...Option) *Transformer {
	t := &Transformer{logger: zerolog.Nop(), maxPixels: DefaultMaxPixels}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Transform decodes data, flattens it to a JPEG-compatible colour model and
// streams it to w as a JPEG at Quality. The EXIF segment is blob merged
// with whatever EXIF the source already carries. Failures come back as
// *core.Error of kind decode or transform; w may then hold a partial image.
func (t *Transformer) Transform(w io.Writer, name string, declared core.FormatID, data []byte, blob exifenc.Blob) (out Output, err error) {
	const op = "transform.Transform"

	defer func() {
		if r := recover(); r != nil {
			out = Output{}
			err = core.NewError(core.KindTransform, op, name, fmt.Sprintf("panic: %v", r))
		}
	}()

	format := core.Resolve(data, declared, name)
	if declared != "" && declared != core.FmtUnknown && declared != format {
		t.logger.Debug().Str("file", name).Str("declared", string(declared)).
			Str("detected", string(format)).Msg("declared format differs from content")
	}
	if !format.Supported() {
		return Output{}, core.NewError(core.KindDecode, op, name, fmt.Sprintf("unsupported format: %s", format))
	}

	cfg, err := decodeConfig(format, data)
	if err != nil {
		return Output{}, core.WrapError(core.KindDecode, op, name, "cannot decode "+string(format), err)
	}
	if err := t.checkSize(cfg); err != nil {
		return Output{}, core.WrapError(core.KindDecode, op, name, "image rejected", err)
	}

	img, err := decode(format, data)
	if err != nil {
		return Output{}, core.WrapError(core.KindDecode, op, name, "cannot decode "+string(format), err)
	}
	t.gauge.Acquire()
	defer t.gauge.Release()

	img = normalize(img, format)

	cw := &countingWriter{w: w}
	ew, err := jpg.NewEXIFWriter(cw, t.mergeSourceEXIF(name, format, data, blob))
	if err != nil {
		return Output{}, core.WrapError(core.KindTransform, op, name, "cannot embed EXIF", err)
	}
	if err := jpeg.Encode(ew, img, &jpeg.Options{Quality: Quality}); err != nil {
		return Output{}, core.WrapError(core.KindTransform, op, name, "cannot encode JPEG", err)
	}

	t.logger.Debug().Str("file", name).Str("format", string(format)).
		Int("width", cfg.Width).Int("height", cfg.Height).
		Int64("bytes", cw.n).Msg("image transformed")

	return Output{Name: OutputName(name), Size: cw.n}, nil
}

func (t *Transformer) checkSize(cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > t.maxPixels {
		return fmt.Errorf("%dx%d is %d pixels, limit is %d", cfg.Width, cfg.Height, px, t.maxPixels)
	}
	return nil
}

// mergeSourceEXIF extends blob with the EXIF already present in data.
// Sources whose EXIF cannot be read or merged get blob alone.
func (t *Transformer) mergeSourceEXIF(name string, format core.FormatID, data []byte, blob exifenc.Blob) exifenc.Blob {
	var (
		src []byte
		err error
	)
	switch format {
	case core.FmtJPEG:
		src, err = jpg.ExtractEXIF(data)
	case core.FmtPNG:
		src, err = pngmeta.EXIF(bytes.NewReader(data))
	}
	if err != nil {
		t.logger.Debug().Err(err).Str("file", name).Msg("source EXIF not readable")
		return blob
	}
	if src == nil {
		return blob
	}

	merged, err := exifenc.Merge(blob, src)
	if err != nil {
		t.logger.Warn().Err(err).Str("file", name).Msg("source EXIF dropped")
		return blob
	}
	return merged
}

func decodeConfig(format core.FormatID, data []byte) (image.Config, error) {
	switch format {
	case core.FmtJPEG:
		return jpeg.DecodeConfig(bytes.NewReader(data))
	case core.FmtPNG:
		return png.DecodeConfig(bytes.NewReader(data))
	}
	return image.Config{}, fmt.Errorf("no decoder for %s", format)
}

func decode(format core.FormatID, data []byte) (image.Image, error) {
	switch format {
	case core.FmtJPEG:
		return jpeg.Decode(bytes.NewReader(data))
	case core.FmtPNG:
		return png.Decode(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("no decoder for %s", format)
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

// normalize returns img unchanged when the JPEG encoder can take it as is,
// otherwise composites it over white into RGBA. Transparency is the only
// thing lost.
func normalize(img image.Image, src core.FormatID) image.Image {
	if src == core.FmtJPEG && jpegCompatible(img) {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, image.White, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

func jpegCompatible(img image.Image) bool {
	switch img.(type) {
	case *image.YCbCr, *image.Gray:
		return true
	}
	return false
}

// OutputName derives the output file name: the base name of the source
// with its extension replaced by ".jpg". Both slash styles separate
// directories, since browsers may send full Windows paths.
func OutputName(name string) string {
	base := path.Base(strings.ReplaceAll(name, `\`, "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "image"
	}
	return stem + ".jpg"
}
