// Package core defines the shared types, error taxonomy, and format
// detection for Geotag Surgery.
package core

// MetaField represents a single metadata key-value pair.
type MetaField struct {
	Key      string `json:"key"`           // Canonical field name (e.g. "ImageDescription", "GPSLatitude")
	Value    string `json:"value"`         // String representation of the value
	Category string `json:"category"`      // Category label (e.g. "EXIF", "GPS")
	Raw      string `json:"raw,omitempty"` // Raw / hex representation if different from Value
}

// Metadata holds all metadata extracted from a single file.
type Metadata struct {
	FilePath string      `json:"file"`
	Format   string      `json:"format"` // Human-readable format name (e.g. "JPEG")
	Fields   []MetaField `json:"fields"`
}

// Get returns the value of the first field named key.
func (m *Metadata) Get(key string) (string, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Location returns the decimal coordinates listed by the EXIF reader.
func (m *Metadata) Location() (lat, lon string, ok bool) {
	lat, okLat := m.Get("Latitude")
	lon, okLon := m.Get("Longitude")
	return lat, lon, okLat && okLon
}

// Summary returns a short string of key fields for quick display.
func (m *Metadata) Summary() string {
	for _, f := range m.Fields {
		if f.Key == "ImageDescription" || f.Key == "GPSLatitude" {
			return f.Key + ": " + f.Value
		}
	}
	return m.Format
}

// Progress is emitted after every batch item, successful or not.
type Progress struct {
	Processed int
	Total     int
	Name      string // source name of the item just finished
}

// ItemError is the caller-facing view of one failed batch item.
type ItemError struct {
	Index int       `json:"index"`
	Name  string    `json:"name"`
	Kind  ErrorKind `json:"kind"`
	Error string    `json:"error"`
}

// Summary is the caller-facing aggregate of a batch run.
type Summary struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}
