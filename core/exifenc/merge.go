package exifenc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/rwcarlsen/goexif/tiff"

	"github.com/ankit-chaubey/geotag-surgery/core"
)

// stale lists tags whose values are offsets into the source file or into
// IFDs that are not carried over. Pointers are rebuilt by assemble.
var stale = []uint16{
	TagExifIFDPointer,
	TagGPSIFDPointer,
	TagInteropIFDPointer,
	tagStripOffsets,
	tagStripByteCounts,
	tagTileOffsets,
	tagTileByteCounts,
	tagSubIFDs,
	tagThumbnailOffset,
	tagThumbnailByteCount,
}

// tree is the part of an EXIF structure a Blob carries.
type tree struct {
	ifd0, exif, gps ifd
}

// Merge returns blob extended with the tags already present in src, the
// EXIF of a source image. src is either an APP1 payload or a bare TIFF
// structure, as found in PNG eXIf chunks. Tags set by blob win; every
// other IFD0, Exif and GPS tag of src is kept. The thumbnail IFD is
// dropped. When the merged tree does not fit in one APP1 segment the
// MakerNote is left out first.
//
// The result depends only on blob and src.
func Merge(blob Blob, src []byte) (Blob, error) {
	const op = "exifenc.Merge"

	src = bytes.TrimPrefix(src, []byte(Header))
	if len(src) == 0 {
		return blob, nil
	}
	base, err := readTree(src)
	if err != nil {
		return nil, core.WrapError(core.KindDecode, op, "", "cannot read source EXIF", err)
	}
	own, err := readTree(blob.TIFF())
	if err != nil {
		return nil, core.WrapError(core.KindEncoding, op, "", "cannot read EXIF blob", err)
	}

	ifd0 := overlay(base.ifd0, own.ifd0)
	exifIFD := overlay(base.exif, own.exif)
	gpsIFD := overlay(base.gps, own.gps)

	merged, err := assemble(op, ifd0, exifIFD, gpsIFD)
	if err != nil && exifIFD.has(TagMakerNote) && !own.exif.has(TagMakerNote) {
		merged, err = assemble(op, ifd0, exifIFD.without(TagMakerNote), gpsIFD)
	}
	return merged, err
}

// overlay returns the entries of base that top does not set, plus top.
func overlay(base, top ifd) ifd {
	out := make(ifd, 0, len(base)+len(top))
	for _, e := range base {
		if !top.has(e.tag) && !out.has(e.tag) {
			out = append(out, e)
		}
	}
	return append(out, top...)
}

// readTree decodes IFD0 and its Exif and GPS sub-IFDs from a TIFF
// structure, converting every value to little-endian.
func readTree(data []byte) (tree, error) {
	tf, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return tree{}, err
	}
	if len(tf.Dirs) == 0 {
		return tree{}, errors.New("tiff: no IFD0")
	}
	root := tf.Dirs[0]

	var t tree
	if t.ifd0, err = entries(root, tf.Order); err != nil {
		return tree{}, err
	}
	for _, sub := range []struct {
		ptr uint16
		dst *ifd
	}{
		{TagExifIFDPointer, &t.exif},
		{TagGPSIFDPointer, &t.gps},
	} {
		dir, err := subDir(data, root, tf.Order, sub.ptr)
		if err != nil {
			return tree{}, err
		}
		if dir == nil {
			continue
		}
		if *sub.dst, err = entries(dir, tf.Order); err != nil {
			return tree{}, err
		}
	}
	return t, nil
}

// subDir decodes the directory the pointer tag ptr of root refers to, or
// returns nil when root has no such pointer.
func subDir(data []byte, root *tiff.Dir, bo binary.ByteOrder, ptr uint16) (*tiff.Dir, error) {
	for _, tag := range root.Tags {
		if tag.Id != ptr {
			continue
		}
		off, err := tag.Int64(0)
		if err != nil {
			return nil, fmt.Errorf("IFD pointer 0x%04X: %w", ptr, err)
		}
		if off < 8 || off >= int64(len(data)) {
			return nil, fmt.Errorf("IFD pointer 0x%04X out of range: %d", ptr, off)
		}
		r := bytes.NewReader(data)
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			return nil, err
		}
		dir, _, err := tiff.DecodeDir(r, bo)
		return dir, err
	}
	return nil, nil
}

// entries converts a decoded directory, skipping stale tags and types the
// layout cannot re-emit.
func entries(dir *tiff.Dir, bo binary.ByteOrder) (ifd, error) {
	var out ifd
	for _, tag := range dir.Tags {
		if slices.Contains(stale, tag.Id) || out.has(tag.Id) {
			continue
		}
		unit := unitSize(tag.Type)
		if unit == 0 {
			continue
		}
		if len(tag.Val)%unit != 0 {
			return nil, fmt.Errorf("tag 0x%04X: %d value bytes for type %d", tag.Id, len(tag.Val), tag.Type)
		}
		v := append([]byte{}, tag.Val...)
		if bo != order && unit > 1 {
			for i := 0; i < len(v); i += unit {
				slices.Reverse(v[i : i+unit])
			}
		}
		out = append(out, entry{tag: tag.Id, typ: uint16(tag.Type), count: tag.Count, value: v})
	}
	return out, nil
}

// unitSize is the width of the byte-order dependent unit of a TIFF type.
// Rationals are two 4-byte words.
func unitSize(t tiff.DataType) int {
	switch t {
	case tiff.DTByte, tiff.DTAscii, tiff.DTSByte, tiff.DTUndefined:
		return 1
	case tiff.DTShort, tiff.DTSShort:
		return 2
	case tiff.DTLong, tiff.DTSLong, tiff.DTFloat, tiff.DTRational, tiff.DTSRational:
		return 4
	case tiff.DTDouble:
		return 8
	}
	return 0
}
