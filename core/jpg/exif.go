// Package jpg reads and splices the EXIF segment of JPEG files.
package jpg

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/ankit-chaubey/geotag-surgery/core"
	"github.com/ankit-chaubey/geotag-surgery/core/exifenc"
)

// ViewFile opens path and lists its EXIF fields.
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

// Inspect decodes the EXIF block of a JPEG (or raw TIFF) stream. Text tags
// written by exifenc are decoded back to plain strings. Fields come back
// sorted by category, then name.
func Inspect(r io.Reader) (*core.Metadata, error) {
	m := &core.Metadata{Format: "JPEG"}

	x, err := exif.Decode(r)
	if err != nil {
		return m, fmt.Errorf("no EXIF metadata found: %w", err)
	}

	if err := x.Walk(walker{m: m}); err != nil {
		return m, err
	}
	// Walk visits fields in map order.
	sort.Slice(m.Fields, func(i, j int) bool {
		a, b := m.Fields[i], m.Fields[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.Key < b.Key
	})

	if lat, lon, err := x.LatLong(); err == nil {
		m.Fields = append(m.Fields,
			core.MetaField{Key: "Latitude", Value: strconv.FormatFloat(lat, 'f', 6, 64), Category: "GPS"},
			core.MetaField{Key: "Longitude", Value: strconv.FormatFloat(lon, 'f', 6, 64), Category: "GPS"},
		)
	}
	return m, nil
}

// textDecoders turn the binary text tags written by exifenc back into
// strings.
var textDecoders = map[exif.FieldName]func([]byte) (string, error){
	exif.UserComment:         exifenc.DecodeCharacterCoded,
	exif.GPSProcessingMethod: exifenc.DecodeCharacterCoded,
	exif.XPKeywords:          exifenc.DecodeXPString,
	exif.XPTitle:             exifenc.DecodeXPString,
	exif.XPComment:           exifenc.DecodeXPString,
	exif.XPSubject:           exifenc.DecodeXPString,
}

type walker struct {
	m *core.Metadata
}

func (w walker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	val := tag.String()
	raw := ""
	if dec, ok := textDecoders[name]; ok {
		if s, err := dec(tag.Val); err == nil {
			raw, val = val, s
		}
	} else if tag.Type == tiff.DTAscii {
		if s, err := tag.StringVal(); err == nil {
			val = s
		}
	}
	category := "EXIF"
	if len(name) > 3 && name[:3] == "GPS" {
		category = "GPS"
	}
	w.m.Fields = append(w.m.Fields, core.MetaField{
		Key:      string(name),
		Value:    val,
		Category: category,
		Raw:      raw,
	})
	return nil
}
