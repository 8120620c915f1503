package exifenc

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"

	xunicode "golang.org/x/text/encoding/unicode"
)

// Character codes of the 8-byte prefix used by UserComment and
// GPSProcessingMethod (EXIF 2.3, table 9).
var (
	codeASCII   = []byte("ASCII\x00\x00\x00")
	codeUnicode = []byte("UNICODE\x00")
)

var utf16LE = xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM)

func checkText(s string) error {
	if !utf8.ValidString(s) {
		return errors.New("not valid UTF-8")
	}
	if strings.IndexByte(s, 0) >= 0 {
		return errors.New("contains a NUL character")
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func encodeUTF16LE(s string) ([]byte, error) {
	return utf16LE.NewEncoder().Bytes([]byte(s))
}

// characterCoded prefixes s with its character code: plain bytes for
// 7-bit text, UTF-16 in TIFF byte order for everything else.
func characterCoded(s string) ([]byte, error) {
	if err := checkText(s); err != nil {
		return nil, err
	}
	if isASCII(s) {
		return append(append([]byte{}, codeASCII...), s...), nil
	}
	u, err := encodeUTF16LE(s)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, codeUnicode...), u...), nil
}

// xpString encodes a Windows XP* tag value: UTF-16LE with a NUL terminator.
func xpString(s string) ([]byte, error) {
	if err := checkText(s); err != nil {
		return nil, err
	}
	u, err := encodeUTF16LE(s)
	if err != nil {
		return nil, err
	}
	return append(u, 0, 0), nil
}

// DecodeCharacterCoded reverses characterCoded. Unknown or undefined codes
// are returned as raw bytes with trailing NULs removed.
func DecodeCharacterCoded(b []byte) (string, error) {
	if len(b) < 8 {
		return string(bytes.TrimRight(b, "\x00")), nil
	}
	code, body := b[:8], b[8:]
	switch {
	case bytes.Equal(code, codeUnicode):
		return decodeUTF16LE(body)
	default:
		return string(bytes.TrimRight(body, "\x00")), nil
	}
}

// DecodeXPString reverses xpString.
func DecodeXPString(b []byte) (string, error) {
	return decodeUTF16LE(b)
}

func decodeUTF16LE(b []byte) (string, error) {
	s, err := utf16LE.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(s), "\x00"), nil
}
