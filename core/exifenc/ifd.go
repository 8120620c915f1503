package exifenc

import (
	"bytes"
	"encoding/binary"
	"slices"
	"sort"
)

// Blobs are always little-endian ("II"). Offsets are relative to the start
// of the TIFF header, not the APP1 segment.
var order = binary.LittleEndian

// TIFF field types.
const (
	typeByte      uint16 = 1
	typeASCII     uint16 = 2
	typeShort     uint16 = 3
	typeLong      uint16 = 4
	typeRational  uint16 = 5
	typeUndefined uint16 = 7
)

// Tag IDs written by Encode.
const (
	TagImageDescription uint16 = 0x010E
	TagExifIFDPointer   uint16 = 0x8769
	TagGPSIFDPointer    uint16 = 0x8825
	TagXPKeywords       uint16 = 0x9C9E
	TagUserComment      uint16 = 0x9286

	TagGPSVersionID        uint16 = 0x0000
	TagGPSLatitudeRef      uint16 = 0x0001
	TagGPSLatitude         uint16 = 0x0002
	TagGPSLongitudeRef     uint16 = 0x0003
	TagGPSLongitude        uint16 = 0x0004
	TagGPSProcessingMethod uint16 = 0x001B
)

// Tags Merge treats specially.
const (
	TagOrientation        uint16 = 0x0112
	TagMake               uint16 = 0x010F
	TagMakerNote          uint16 = 0x927C
	TagInteropIFDPointer  uint16 = 0xA005
	tagStripOffsets       uint16 = 0x0111
	tagStripByteCounts    uint16 = 0x0117
	tagTileOffsets        uint16 = 0x0144
	tagTileByteCounts     uint16 = 0x0145
	tagSubIFDs            uint16 = 0x014A
	tagThumbnailOffset    uint16 = 0x0201
	tagThumbnailByteCount uint16 = 0x0202
)

// entry is one IFD field with its value already serialised in byte order.
type entry struct {
	tag   uint16
	typ   uint16
	count uint32
	value []byte
}

type ifd []entry

func asciiEntry(tag uint16, s string) entry {
	v := append([]byte(s), 0)
	return entry{tag: tag, typ: typeASCII, count: uint32(len(v)), value: v}
}

func undefinedEntry(tag uint16, b []byte) entry {
	return entry{tag: tag, typ: typeUndefined, count: uint32(len(b)), value: b}
}

func byteEntry(tag uint16, b []byte) entry {
	return entry{tag: tag, typ: typeByte, count: uint32(len(b)), value: b}
}

func longEntry(tag uint16, v uint32) entry {
	b := make([]byte, 4)
	order.PutUint32(b, v)
	return entry{tag: tag, typ: typeLong, count: 1, value: b}
}

func rationalEntry(tag uint16, rs []Rational) entry {
	b := make([]byte, 8*len(rs))
	for i, r := range rs {
		order.PutUint32(b[8*i:], r.Num)
		order.PutUint32(b[8*i+4:], r.Den)
	}
	return entry{tag: tag, typ: typeRational, count: uint32(len(rs)), value: b}
}

// sort orders entries by tag, as TIFF readers require.
func (d ifd) sort() {
	sort.Slice(d, func(i, j int) bool { return d[i].tag < d[j].tag })
}

// without returns d minus the given tags. d is not modified.
func (d ifd) without(tags ...uint16) ifd {
	out := make(ifd, 0, len(d))
	for _, e := range d {
		if !slices.Contains(tags, e.tag) {
			out = append(out, e)
		}
	}
	return out
}

func (d ifd) has(tag uint16) bool {
	for _, e := range d {
		if e.tag == tag {
			return true
		}
	}
	return false
}

// set overwrites the value of a 4-byte LONG entry.
func (d ifd) set(tag uint16, v uint32) {
	for i := range d {
		if d[i].tag == tag {
			order.PutUint32(d[i].value, v)
			return
		}
	}
}

func (d ifd) headerSize() int {
	return 2 + 12*len(d) + 4
}

// size is the directory plus its out-of-line values. Always even.
func (d ifd) size() int {
	if len(d) == 0 {
		return 0
	}
	n := d.headerSize()
	for _, e := range d {
		if len(e.value) > 4 {
			n += padded(len(e.value))
		}
	}
	return n
}

func padded(n int) int {
	return n + n&1
}

// write appends the directory located at base, followed by the values that
// do not fit in the 4-byte field. The next-IFD offset is always zero.
func (d ifd) write(buf *bytes.Buffer, base uint32) {
	if len(d) == 0 {
		return
	}
	dataOff := base + uint32(d.headerSize())
	var data bytes.Buffer

	var count [2]byte
	order.PutUint16(count[:], uint16(len(d)))
	buf.Write(count[:])

	for _, e := range d {
		var field [12]byte
		order.PutUint16(field[0:], e.tag)
		order.PutUint16(field[2:], e.typ)
		order.PutUint32(field[4:], e.count)
		if len(e.value) <= 4 {
			copy(field[8:], e.value)
		} else {
			order.PutUint32(field[8:], dataOff+uint32(data.Len()))
			data.Write(e.value)
			if len(e.value)%2 == 1 {
				data.WriteByte(0)
			}
		}
		buf.Write(field[:])
	}
	buf.Write([]byte{0, 0, 0, 0})
	buf.Write(data.Bytes())
}
