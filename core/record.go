package core

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxAddressLength bounds the address, in runes. It ends up in the fixed
// purpose GPSProcessingMethod tag, which readers display on a single line.
const MaxAddressLength = 512

// GPS is a WGS84 coordinate in decimal degrees.
type GPS struct {
	Latitude  float64
	Longitude float64
}

// RecordInput is the raw user input a MetadataRecord is built from.
type RecordInput struct {
	Title       string
	Description string
	Keywords    string // comma separated
	Address     string
	Latitude    *float64
	Longitude   *float64
}

// MetadataRecord is the validated, read-only metadata applied to every
// image of a batch. The zero value is an empty record.
type MetadataRecord struct {
	title       string
	description string
	keywords    []string
	address     string
	gps         *GPS
}

// NewMetadataRecord validates in and returns the record. Out of range
// coordinates are rejected, never clamped.
func NewMetadataRecord(in RecordInput) (MetadataRecord, error) {
	const op = "core.NewMetadataRecord"

	rec := MetadataRecord{
		title:       in.Title,
		description: in.Description,
		keywords:    ParseKeywords(in.Keywords),
		address:     in.Address,
	}

	switch {
	case in.Latitude == nil && in.Longitude == nil:
	case in.Latitude == nil || in.Longitude == nil:
		return MetadataRecord{}, NewError(KindValidation, op, "gps", "latitude and longitude must be given together")
	default:
		rec.gps = &GPS{Latitude: *in.Latitude, Longitude: *in.Longitude}
	}

	if err := rec.Validate(); err != nil {
		return MetadataRecord{}, err
	}
	return rec, nil
}

// Validate checks the record invariants.
func (r MetadataRecord) Validate() error {
	const op = "core.MetadataRecord.Validate"

	if n := utf8.RuneCountInString(r.address); n > MaxAddressLength {
		return NewError(KindValidation, op, "address",
			fmt.Sprintf("%d characters exceeds the limit of %d", n, MaxAddressLength))
	}
	if r.gps == nil {
		return nil
	}
	lat, lon := r.gps.Latitude, r.gps.Longitude
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return NewError(KindValidation, op, "latitude", fmt.Sprintf("%v is outside [-90, 90]", lat))
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return NewError(KindValidation, op, "longitude", fmt.Sprintf("%v is outside [-180, 180]", lon))
	}
	return nil
}

func (r MetadataRecord) Title() string       { return r.title }
func (r MetadataRecord) Description() string { return r.description }
func (r MetadataRecord) Address() string     { return r.address }

// Keywords returns a copy of the parsed keyword list.
func (r MetadataRecord) Keywords() []string {
	if len(r.keywords) == 0 {
		return nil
	}
	return append([]string(nil), r.keywords...)
}

// GPS returns the coordinate and whether one is set.
func (r MetadataRecord) GPS() (GPS, bool) {
	if r.gps == nil {
		return GPS{}, false
	}
	return *r.gps, true
}

// IsEmpty reports whether the record carries no field at all.
func (r MetadataRecord) IsEmpty() bool {
	return r.title == "" && r.description == "" && len(r.keywords) == 0 &&
		r.address == "" && r.gps == nil
}

// ParseKeywords splits comma separated input, trims every entry and drops
// empty ones. Order is preserved.
func ParseKeywords(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}
