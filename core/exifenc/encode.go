// Package exifenc maps a MetadataRecord onto the binary EXIF tag tree
// (0th IFD, Exif IFD, GPS IFD) carried in a JPEG APP1 segment.
package exifenc

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ankit-chaubey/geotag-surgery/core"
)

// Header opens every EXIF APP1 payload.
const Header = "Exif\x00\x00"

// MaxBlobSize is the largest payload an APP1 segment can hold: the 16-bit
// length field counts its own two bytes.
const MaxBlobSize = 0xFFFF - 2

// KeywordSeparator joins keywords inside XPKeywords.
const KeywordSeparator = ";"

// Blob is an encoded APP1 payload: Header followed by a TIFF structure.
type Blob []byte

// TIFF returns the blob without the Exif header.
func (b Blob) TIFF() []byte {
	return b[len(Header):]
}

// Encode builds the EXIF blob for rec. It is a pure function: the same
// record always yields the same bytes.
func Encode(rec core.MetadataRecord) (Blob, error) {
	const op = "exifenc.Encode"

	var ifd0, exifIFD, gpsIFD ifd

	if title := rec.Title(); title != "" {
		if err := checkText(title); err != nil {
			return nil, core.WrapError(core.KindEncoding, op, "title", "cannot encode ImageDescription", err)
		}
		ifd0 = append(ifd0, asciiEntry(TagImageDescription, title))
	}

	if kws := rec.Keywords(); len(kws) > 0 {
		v, err := xpString(strings.Join(kws, KeywordSeparator))
		if err != nil {
			return nil, core.WrapError(core.KindEncoding, op, "keywords", "cannot encode XPKeywords", err)
		}
		ifd0 = append(ifd0, byteEntry(TagXPKeywords, v))
	}

	if desc := rec.Description(); desc != "" {
		v, err := characterCoded(desc)
		if err != nil {
			return nil, core.WrapError(core.KindEncoding, op, "description", "cannot encode UserComment", err)
		}
		exifIFD = append(exifIFD, undefinedEntry(TagUserComment, v))
	}

	if gps, ok := rec.GPS(); ok {
		lat, lon := ToDMS(gps.Latitude), ToDMS(gps.Longitude)
		gpsIFD = append(gpsIFD,
			asciiEntry(TagGPSLatitudeRef, LatitudeRef(gps.Latitude)),
			rationalEntry(TagGPSLatitude, lat[:]),
			asciiEntry(TagGPSLongitudeRef, LongitudeRef(gps.Longitude)),
			rationalEntry(TagGPSLongitude, lon[:]),
		)
	}

	if addr := rec.Address(); addr != "" {
		v, err := characterCoded(addr)
		if err != nil {
			return nil, core.WrapError(core.KindEncoding, op, "address", "cannot encode GPSProcessingMethod", err)
		}
		gpsIFD = append(gpsIFD, undefinedEntry(TagGPSProcessingMethod, v))
	}

	if len(gpsIFD) > 0 {
		gpsIFD = append(gpsIFD, byteEntry(TagGPSVersionID, append([]byte{}, gpsVersion...)))
	}
	return assemble(op, ifd0, exifIFD, gpsIFD)
}

// assemble lays the three directories out behind a little-endian TIFF
// header. Sub-IFD pointers in ifd0 are rewritten to match the layout and
// dropped when their directory is empty.
func assemble(op string, ifd0, exifIFD, gpsIFD ifd) (Blob, error) {
	ifd0 = ifd0.without(TagExifIFDPointer, TagGPSIFDPointer)
	if len(gpsIFD) > 0 {
		ifd0 = append(ifd0, longEntry(TagGPSIFDPointer, 0))
	}
	if len(exifIFD) > 0 {
		ifd0 = append(ifd0, longEntry(TagExifIFDPointer, 0))
	}

	ifd0.sort()
	exifIFD.sort()
	gpsIFD.sort()

	const ifd0Offset = 8
	exifOffset := uint32(ifd0Offset + ifd0.size())
	gpsOffset := exifOffset + uint32(exifIFD.size())
	ifd0.set(TagExifIFDPointer, exifOffset)
	ifd0.set(TagGPSIFDPointer, gpsOffset)

	var buf bytes.Buffer
	buf.WriteString(Header)

	var tiff bytes.Buffer
	tiff.WriteString("II")
	tiff.Write([]byte{0x2A, 0x00})
	tiff.Write([]byte{ifd0Offset, 0x00, 0x00, 0x00})
	if len(ifd0) == 0 {
		// An empty IFD0 still needs its entry count and next-IFD offset.
		tiff.Write(make([]byte, 6))
	} else {
		ifd0.write(&tiff, ifd0Offset)
	}
	exifIFD.write(&tiff, exifOffset)
	gpsIFD.write(&tiff, gpsOffset)
	buf.Write(tiff.Bytes())

	if buf.Len() > MaxBlobSize {
		return nil, core.NewError(core.KindEncoding, op, "",
			fmt.Sprintf("EXIF payload of %d bytes exceeds the APP1 limit of %d", buf.Len(), MaxBlobSize))
	}
	return Blob(buf.Bytes()), nil
}
