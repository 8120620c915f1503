package jpg

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	markerSOI  byte = 0xD8
	markerEOI  byte = 0xD9
	markerSOS  byte = 0xDA
	markerAPP0 byte = 0xE0
	markerAPP1 byte = 0xE1

	// markerScan tags the entropy-coded data following SOS, up to and
	// including EOI.
	markerScan byte = 0x00
)

var exifPrefix = []byte("Exif\x00\x00")

// Segment is one JPEG marker segment. Data excludes the marker and length.
type Segment struct {
	Marker byte
	Data   []byte
}

// IsEXIF reports whether the segment is an APP1 EXIF block.
func (s Segment) IsEXIF() bool {
	return s.Marker == markerAPP1 && bytes.HasPrefix(s.Data, exifPrefix)
}

// ParseSegments splits a JPEG stream into its marker segments. Everything
// after the SOS header is kept as a single scan segment.
func ParseSegments(data []byte) ([]Segment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, errors.New("not a JPEG")
	}
	segs := []Segment{{Marker: markerSOI}}

	i := 2
	for i < len(data) {
		if data[i] != 0xFF {
			return nil, fmt.Errorf("expected marker at offset %d", i)
		}
		// Fill bytes
		for i < len(data) && data[i] == 0xFF {
			i++
		}
		if i >= len(data) {
			return nil, errors.New("truncated marker")
		}
		marker := data[i]
		i++

		if marker == markerEOI {
			segs = append(segs, Segment{Marker: markerEOI})
			return segs, nil
		}
		if marker == markerSOI || (marker >= 0xD0 && marker <= 0xD7) || marker == 0x01 {
			segs = append(segs, Segment{Marker: marker})
			continue
		}

		if i+2 > len(data) {
			return nil, errors.New("truncated segment length")
		}
		segLen := int(binary.BigEndian.Uint16(data[i:i+2])) - 2
		i += 2
		if segLen < 0 || i+segLen > len(data) {
			return nil, fmt.Errorf("segment 0x%02X overruns the stream", marker)
		}
		segs = append(segs, Segment{Marker: marker, Data: data[i : i+segLen]})
		i += segLen

		if marker == markerSOS {
			segs = append(segs, Segment{Marker: markerScan, Data: data[i:]})
			return segs, nil
		}
	}
	return nil, errors.New("missing SOS segment")
}

// WriteSegments serialises segments back into a JPEG stream.
func WriteSegments(w io.Writer, segs []Segment) error {
	bw := bufio.NewWriter(w)
	for _, seg := range segs {
		switch {
		case seg.Marker == markerScan:
			bw.Write(seg.Data)
		case seg.Data == nil && seg.Marker != markerSOS:
			bw.Write([]byte{0xFF, seg.Marker})
		default:
			if len(seg.Data)+2 > 0xFFFF {
				return fmt.Errorf("segment 0x%02X too large: %d bytes", seg.Marker, len(seg.Data))
			}
			var hdr [4]byte
			hdr[0], hdr[1] = 0xFF, seg.Marker
			binary.BigEndian.PutUint16(hdr[2:], uint16(len(seg.Data)+2))
			bw.Write(hdr[:])
			bw.Write(seg.Data)
		}
	}
	return bw.Flush()
}

// InsertEXIF writes src to w with payload as its only EXIF segment. The new
// APP1 goes right after SOI, or after a leading JFIF APP0 when present.
func InsertEXIF(w io.Writer, src []byte, payload []byte) error {
	if !bytes.HasPrefix(payload, exifPrefix) {
		return errors.New("payload lacks the Exif header")
	}
	segs, err := ParseSegments(src)
	if err != nil {
		return err
	}

	out := make([]Segment, 0, len(segs)+1)
	out = append(out, segs[0])
	rest := segs[1:]
	if len(rest) > 0 && rest[0].Marker == markerAPP0 {
		out = append(out, rest[0])
		rest = rest[1:]
	}
	out = append(out, Segment{Marker: markerAPP1, Data: payload})
	for _, seg := range rest {
		if seg.IsEXIF() {
			continue
		}
		out = append(out, seg)
	}
	return WriteSegments(w, out)
}

// ExtractEXIF returns the payload of the first EXIF APP1 segment, or nil.
func ExtractEXIF(src []byte) ([]byte, error) {
	segs, err := ParseSegments(src)
	if err != nil {
		return nil, err
	}
	for _, seg := range segs {
		if seg.IsEXIF() {
			return seg.Data, nil
		}
	}
	return nil, nil
}

// NewEXIFWriter returns a writer that passes a JPEG stream through to w and
// puts payload in an APP1 segment right after SOI. The stream itself must
// not carry EXIF, which holds for image/jpeg output.
func NewEXIFWriter(w io.Writer, payload []byte) (io.Writer, error) {
	if !bytes.HasPrefix(payload, exifPrefix) {
		return nil, errors.New("payload lacks the Exif header")
	}
	if len(payload)+2 > 0xFFFF {
		return nil, fmt.Errorf("EXIF payload too large: %d bytes", len(payload))
	}
	return &exifWriter{w: w, payload: payload}, nil
}

type exifWriter struct {
	w       io.Writer
	payload []byte
	seen    int // SOI bytes consumed
}

func (e *exifWriter) Write(p []byte) (int, error) {
	n := 0
	for e.seen < 2 && len(p) > 0 {
		if p[0] != [2]byte{0xFF, markerSOI}[e.seen] {
			return n, errors.New("stream does not start with SOI")
		}
		e.seen++
		p = p[1:]
		n++
		if e.seen == 2 {
			head := []Segment{{Marker: markerSOI}, {Marker: markerAPP1, Data: e.payload}}
			if err := WriteSegments(e.w, head); err != nil {
				return n, err
			}
		}
	}
	if len(p) == 0 {
		return n, nil
	}
	m, err := e.w.Write(p)
	return n + m, err
}
