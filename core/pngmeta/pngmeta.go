// Package pngmeta lists the textual metadata of PNG sources, so a user can
// see what an upload carries before it is re-encoded as JPEG.
package pngmeta

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/charmap"

	"github.com/ankit-chaubey/geotag-surgery/core"
	"github.com/ankit-chaubey/geotag-surgery/core/jpg"
)

var signature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// maxTextChunk bounds the chunks read into memory; pixel data is skipped.
const maxTextChunk = 1 << 20

// ViewFile opens path and lists its PNG metadata.
func ViewFile(path string) (*core.Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Inspect(f)
	if err != nil {
		return nil, err
	}
	m.FilePath = path
	return m, nil
}

// Inspect reads tEXt, zTXt, iTXt, tIME and eXIf chunks from a PNG stream.
func Inspect(r io.Reader) (*core.Metadata, error) {
	m := &core.Metadata{Format: "PNG"}
	err := eachChunk(r, wanted, func(typ string, data []byte) bool {
		addChunk(m, typ, data)
		return true
	})
	return m, err
}

// EXIF returns the payload of the eXIf chunk, a bare TIFF structure, or
// nil when the stream has none.
func EXIF(r io.Reader) ([]byte, error) {
	var exif []byte
	err := eachChunk(r, func(typ string) bool { return typ == "eXIf" }, func(_ string, data []byte) bool {
		exif = data
		return false
	})
	return exif, err
}

// eachChunk checks the signature and hands every chunk accepted by want to
// fn, until IEND or until fn returns false. Other chunks are skipped.
func eachChunk(r io.Reader, want func(string) bool, fn func(typ string, data []byte) bool) error {
	sig := make([]byte, len(signature))
	if _, err := io.ReadFull(r, sig); err != nil || !bytes.Equal(sig, signature) {
		return errors.New("not a valid PNG")
	}

	var hdr [8]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return fmt.Errorf("truncated chunk header: %w", err)
		}
		length := binary.BigEndian.Uint32(hdr[:4])
		typ := string(hdr[4:])

		if !want(typ) || length > maxTextChunk {
			// Skip the payload and its CRC.
			if _, err := io.CopyN(io.Discard, r, int64(length)+4); err != nil {
				return fmt.Errorf("truncated %s chunk: %w", typ, err)
			}
			if typ == "IEND" {
				return nil
			}
			continue
		}

		data := make([]byte, length+4)
		if _, err := io.ReadFull(r, data); err != nil {
			return fmt.Errorf("truncated %s chunk: %w", typ, err)
		}
		if !fn(typ, data[:length]) {
			return nil
		}
	}
}

func wanted(typ string) bool {
	switch typ {
	case "tEXt", "zTXt", "iTXt", "tIME", "eXIf":
		return true
	}
	return false
}

func addChunk(m *core.Metadata, typ string, data []byte) {
	switch typ {
	case "tEXt":
		// keyword\0text
		key, text, ok := bytes.Cut(data, []byte{0})
		if ok && len(key) > 0 {
			m.Fields = append(m.Fields, core.MetaField{Key: string(key), Value: latin1(text), Category: "PNG tEXt"})
		}
	case "zTXt":
		// keyword\0method text
		key, rest, ok := bytes.Cut(data, []byte{0})
		if !ok || len(key) == 0 || len(rest) < 1 {
			return
		}
		if text, err := inflate(rest[1:]); err == nil {
			m.Fields = append(m.Fields, core.MetaField{Key: string(key), Value: latin1(text), Category: "PNG zTXt"})
		}
	case "iTXt":
		// keyword\0 flag method language\0 translated\0 text
		key, rest, ok := bytes.Cut(data, []byte{0})
		if !ok || len(key) == 0 || len(rest) < 2 {
			return
		}
		compressed := rest[0] == 1
		rest = rest[2:]
		for i := 0; i < 2; i++ {
			if _, rest, ok = bytes.Cut(rest, []byte{0}); !ok {
				return
			}
		}
		text := rest
		if compressed {
			var err error
			if text, err = inflate(rest); err != nil {
				return
			}
		}
		m.Fields = append(m.Fields, core.MetaField{Key: string(key), Value: string(text), Category: "PNG iTXt"})
	case "tIME":
		if len(data) == 7 {
			year := binary.BigEndian.Uint16(data[0:2])
			m.Fields = append(m.Fields, core.MetaField{
				Key:      "LastModified",
				Value:    fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, data[2], data[3], data[4], data[5], data[6]),
				Category: "PNG tIME",
			})
		}
	case "eXIf":
		// Raw TIFF, same tag tree as a JPEG APP1 minus the Exif header.
		if x, err := jpg.Inspect(bytes.NewReader(data)); err == nil {
			m.Fields = append(m.Fields, x.Fields...)
		}
	}
}

func inflate(b []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxTextChunk))
}

// latin1 decodes tEXt/zTXt payloads, which are ISO 8859-1.
func latin1(b []byte) string {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}
