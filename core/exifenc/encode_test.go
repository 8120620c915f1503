package exifenc

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/geotag-surgery/core"
)

func f64(v float64) *float64 { return &v }

func mustRecord(t *testing.T, in core.RecordInput) core.MetadataRecord {
	t.Helper()
	rec, err := core.NewMetadataRecord(in)
	require.NoError(t, err)
	return rec
}

func mustParse(t *testing.T, rec core.MetadataRecord) *parsedTIFF {
	t.Helper()
	blob, err := Encode(rec)
	require.NoError(t, err)
	p, err := parseBlob(blob)
	require.NoError(t, err)
	return p
}

func TestEncodeIsDeterministic(t *testing.T) {
	rec := mustRecord(t, core.RecordInput{
		Title:       "Sunset",
		Description: "Golden hour at the pier",
		Keywords:    "sunset, nature",
		Address:     "Pier 39, San Francisco",
		Latitude:    f64(37.7749),
		Longitude:   f64(-122.4194),
	})

	a, err := Encode(rec)
	require.NoError(t, err)
	b, err := Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, []byte(a), []byte(b))
	assert.True(t, bytes.HasPrefix(a, []byte(Header)))
}

func TestEncodeEmptyRecord(t *testing.T) {
	p := mustParse(t, core.MetadataRecord{})
	assert.Empty(t, p.ifd0)
	assert.Nil(t, p.exif)
	assert.Nil(t, p.gps)
}

func TestEncodeFullRecord(t *testing.T) {
	p := mustParse(t, mustRecord(t, core.RecordInput{
		Title:       "Sunset",
		Description: "Hello",
		Keywords:    "sunset, nature",
		Latitude:    f64(37.7749),
		Longitude:   f64(-122.4194),
	}))

	title := p.ifd0[TagImageDescription]
	assert.Equal(t, typeASCII, title.typ)
	assert.Equal(t, []byte("Sunset\x00"), title.value)

	kw := p.ifd0[TagXPKeywords]
	assert.Equal(t, typeByte, kw.typ)
	s, err := DecodeXPString(kw.value)
	require.NoError(t, err)
	assert.Equal(t, "sunset;nature", s)
	assert.Equal(t, []byte{0, 0}, kw.value[len(kw.value)-2:])

	require.NotNil(t, p.exif)
	uc := p.exif[TagUserComment]
	assert.Equal(t, typeUndefined, uc.typ)
	assert.Equal(t, []byte("ASCII\x00\x00\x00Hello"), uc.value)

	require.NotNil(t, p.gps)
	assert.Equal(t, []byte("N\x00"), p.gps[TagGPSLatitudeRef].value)
	assert.Equal(t, []byte("W\x00"), p.gps[TagGPSLongitudeRef].value)
	assert.Equal(t, []byte{2, 3, 0, 0}, p.gps[TagGPSVersionID].value)
	assert.InDelta(t, 37.7749, FromDMS(p.gps[TagGPSLatitude].rationals()), 1e-5)
	assert.InDelta(t, 122.4194, FromDMS(p.gps[TagGPSLongitude].rationals()), 1e-5)
	_, hasMethod := p.gps[TagGPSProcessingMethod]
	assert.False(t, hasMethod)
}

func TestEncodeOmitsEmptyFields(t *testing.T) {
	p := mustParse(t, mustRecord(t, core.RecordInput{Title: "Only a title"}))

	assert.Len(t, p.ifd0, 1)
	_, ok := p.ifd0[TagExifIFDPointer]
	assert.False(t, ok)
	_, ok = p.ifd0[TagGPSIFDPointer]
	assert.False(t, ok)
}

func TestEncodeAddressOnlyWritesGPSVersion(t *testing.T) {
	p := mustParse(t, mustRecord(t, core.RecordInput{Address: "Baker Street 221B"}))

	require.NotNil(t, p.gps)
	assert.Equal(t, []byte{2, 3, 0, 0}, p.gps[TagGPSVersionID].value)
	assert.Equal(t, []byte("ASCII\x00\x00\x00Baker Street 221B"), p.gps[TagGPSProcessingMethod].value)
	_, ok := p.gps[TagGPSLatitude]
	assert.False(t, ok)
	assert.Nil(t, p.exif)
}

func TestEncodeHemispheres(t *testing.T) {
	tests := []struct {
		lat, lon       float64
		latRef, lonRef string
	}{
		{lat: -33.8688, lon: 151.2093, latRef: "S", lonRef: "E"},
		{lat: 37.7749, lon: -122.4194, latRef: "N", lonRef: "W"},
		{lat: 0, lon: 0, latRef: "N", lonRef: "E"},
		{lat: -90, lon: -180, latRef: "S", lonRef: "W"},
	}
	for _, tt := range tests {
		p := mustParse(t, mustRecord(t, core.RecordInput{Latitude: f64(tt.lat), Longitude: f64(tt.lon)}))
		assert.Equal(t, tt.latRef+"\x00", string(p.gps[TagGPSLatitudeRef].value))
		assert.Equal(t, tt.lonRef+"\x00", string(p.gps[TagGPSLongitudeRef].value))
		assert.InDelta(t, math.Abs(tt.lat), FromDMS(p.gps[TagGPSLatitude].rationals()), 1e-5)
		assert.InDelta(t, math.Abs(tt.lon), FromDMS(p.gps[TagGPSLongitude].rationals()), 1e-5)
	}
}

func TestToDMSRoundTrip(t *testing.T) {
	for v := -180.0; v <= 180.0; v += 0.3791 {
		dms := ToDMS(v)
		assert.Less(t, dms[1].Num, uint32(60), "minutes for %v", v)
		assert.Less(t, dms[2].Num, uint32(60*SecondsDenominator), "seconds for %v", v)
		assert.InDelta(t, math.Abs(v), FromDMS(dms), 1e-5, "value %v", v)
	}
}

func TestToDMSCarry(t *testing.T) {
	dms := ToDMS(10.99999999999)
	assert.Equal(t, [3]Rational{{11, 1}, {0, 1}, {0, SecondsDenominator}}, dms)
}

func TestEncodeNonASCIIText(t *testing.T) {
	p := mustParse(t, mustRecord(t, core.RecordInput{
		Description: "Café ☕",
		Keywords:    "été, 海",
	}))

	uc := p.exif[TagUserComment].value
	assert.Equal(t, []byte("UNICODE\x00"), uc[:8])
	s, err := DecodeCharacterCoded(uc)
	require.NoError(t, err)
	assert.Equal(t, "Café ☕", s)

	kw, err := DecodeXPString(p.ifd0[TagXPKeywords].value)
	require.NoError(t, err)
	assert.Equal(t, "été;海", kw)
}

func TestEncodeRejectsBadText(t *testing.T) {
	tests := []struct {
		name  string
		in    core.RecordInput
		field string
	}{
		{name: "invalid utf-8 title", in: core.RecordInput{Title: "bad \xff"}, field: "title"},
		{name: "nul in description", in: core.RecordInput{Description: "a\x00b"}, field: "description"},
		{name: "invalid utf-8 keyword", in: core.RecordInput{Keywords: "ok, \xfe"}, field: "keywords"},
		{name: "nul in address", in: core.RecordInput{Address: "x\x00"}, field: "address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(mustRecord(t, tt.in))
			require.Error(t, err)
			assert.True(t, core.IsKind(err, core.KindEncoding), "got %v", err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(mustRecord(t, core.RecordInput{Description: strings.Repeat("a", MaxBlobSize)}))
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindEncoding))

	blob, err := Encode(mustRecord(t, core.RecordInput{Description: strings.Repeat("a", 60000)}))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(blob), MaxBlobSize)
}

func TestIFDValuesAreWordAligned(t *testing.T) {
	// Odd-length values force padding; parseBlob rejects odd offsets.
	mustParse(t, mustRecord(t, core.RecordInput{
		Title:       "odd",
		Description: "seven!!",
		Address:     "abc",
		Latitude:    f64(1),
		Longitude:   f64(2),
	}))
}
