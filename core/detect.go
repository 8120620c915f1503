package core

import (
	"bytes"
	"path/filepath"
	"strings"
)

// FormatID enumerates every recognised raster format.
type FormatID string

const (
	FmtJPEG FormatID = "jpeg"
	FmtPNG  FormatID = "png"
	FmtGIF  FormatID = "gif"
	FmtWebP FormatID = "webp"
	FmtTIFF FormatID = "tiff"
	FmtBMP  FormatID = "bmp"
	FmtHEIC FormatID = "heic"

	FmtUnknown FormatID = "unknown"
)

// extMap maps lowercase extensions to format IDs.
var extMap = map[string]FormatID{
	".jpg":  FmtJPEG,
	".jpeg": FmtJPEG,
	".jpe":  FmtJPEG,
	".png":  FmtPNG,
	".gif":  FmtGIF,
	".webp": FmtWebP,
	".tiff": FmtTIFF,
	".tif":  FmtTIFF,
	".bmp":  FmtBMP,
	".heic": FmtHEIC,
	".heif": FmtHEIC,
}

// Supported reports whether images of this format can be geotagged.
func (id FormatID) Supported() bool {
	return id == FmtJPEG || id == FmtPNG
}

// ParseFormat normalises a declared format tag ("JPG", "image/png", ...).
func ParseFormat(s string) FormatID {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "image/")
	if s == "" {
		return FmtUnknown
	}
	if id, ok := extMap["."+s]; ok {
		return id
	}
	return FmtUnknown
}

// FormatFromName returns the format implied by a file name's extension.
func FormatFromName(name string) FormatID {
	if id, ok := extMap[strings.ToLower(filepath.Ext(name))]; ok {
		return id
	}
	return FmtUnknown
}

// DetectBytes sniffs the format from the leading bytes of an image.
func DetectBytes(b []byte) FormatID {
	if len(b) < 4 {
		return FmtUnknown
	}
	switch {
	// JPEG: FF D8 FF
	case b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return FmtJPEG
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case bytes.HasPrefix(b, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return FmtPNG
	case bytes.HasPrefix(b, []byte("GIF87a")) || bytes.HasPrefix(b, []byte("GIF89a")):
		return FmtGIF
	// WebP: RIFF????WEBP
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WEBP")):
		return FmtWebP
	case bytes.HasPrefix(b, []byte{0x49, 0x49, 0x2A, 0x00}) ||
		bytes.HasPrefix(b, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return FmtTIFF
	case b[0] == 0x42 && b[1] == 0x4D:
		return FmtBMP
	case len(b) >= 12 && bytes.Equal(b[4:8], []byte("ftyp")) && isHEICBrand(string(b[8:12])):
		return FmtHEIC
	}
	return FmtUnknown
}

func isHEICBrand(brand string) bool {
	switch brand {
	case "heic", "heix", "hevc", "heim", "heis", "mif1", "msf1":
		return true
	}
	return false
}

// Resolve picks the effective format of an upload: magic bytes win over the
// declared tag, which wins over the file extension.
func Resolve(head []byte, declared FormatID, name string) FormatID {
	if id := DetectBytes(head); id != FmtUnknown {
		return id
	}
	if declared != "" && declared != FmtUnknown {
		return declared
	}
	return FormatFromName(name)
}
