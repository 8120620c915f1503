package exifenc

import (
	"encoding/binary"
	"fmt"
)

// field is a decoded IFD entry as found in an encoded blob.
type field struct {
	typ   uint16
	count uint32
	value []byte
}

// parsedTIFF holds the three IFDs reachable from IFD0.
type parsedTIFF struct {
	ifd0, exif, gps map[uint16]field
}

func parseBlob(b Blob) (*parsedTIFF, error) {
	if string(b[:len(Header)]) != Header {
		return nil, fmt.Errorf("missing Exif header")
	}
	t := b.TIFF()
	if string(t[:2]) != "II" || binary.LittleEndian.Uint16(t[2:]) != 0x2A {
		return nil, fmt.Errorf("bad TIFF header")
	}

	p := &parsedTIFF{}
	var err error
	if p.ifd0, err = readIFD(t, binary.LittleEndian.Uint32(t[4:])); err != nil {
		return nil, err
	}
	if ptr, ok := p.ifd0[TagExifIFDPointer]; ok {
		if p.exif, err = readIFD(t, binary.LittleEndian.Uint32(ptr.value)); err != nil {
			return nil, err
		}
	}
	if ptr, ok := p.ifd0[TagGPSIFDPointer]; ok {
		if p.gps, err = readIFD(t, binary.LittleEndian.Uint32(ptr.value)); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func readIFD(t []byte, off uint32) (map[uint16]field, error) {
	if int(off)+2 > len(t) {
		return nil, fmt.Errorf("IFD offset %d out of range", off)
	}
	n := int(binary.LittleEndian.Uint16(t[off:]))
	out := make(map[uint16]field, n)
	prev := -1
	for i := 0; i < n; i++ {
		e := t[int(off)+2+12*i:]
		tag := binary.LittleEndian.Uint16(e[0:])
		if int(tag) <= prev {
			return nil, fmt.Errorf("tag 0x%04X out of order", tag)
		}
		prev = int(tag)
		typ := binary.LittleEndian.Uint16(e[2:])
		count := binary.LittleEndian.Uint32(e[4:])
		size := int(count) * typeSize(typ)
		var val []byte
		if size <= 4 {
			val = append([]byte{}, e[8:8+size]...)
		} else {
			at := binary.LittleEndian.Uint32(e[8:])
			if at%2 != 0 {
				return nil, fmt.Errorf("tag 0x%04X value at odd offset %d", tag, at)
			}
			if int(at)+size > len(t) {
				return nil, fmt.Errorf("tag 0x%04X value out of range", tag)
			}
			val = append([]byte{}, t[at:int(at)+size]...)
		}
		out[tag] = field{typ: typ, count: count, value: val}
	}
	return out, nil
}

func typeSize(typ uint16) int {
	switch typ {
	case typeShort:
		return 2
	case typeLong:
		return 4
	case typeRational:
		return 8
	default:
		return 1
	}
}

func (f field) rationals() [3]Rational {
	var out [3]Rational
	for i := range out {
		out[i] = Rational{
			Num: binary.LittleEndian.Uint32(f.value[8*i:]),
			Den: binary.LittleEndian.Uint32(f.value[8*i+4:]),
		}
	}
	return out
}
