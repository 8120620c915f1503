package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

// Printer handles all display output for the CLI.
type Printer struct {
	JSON    bool
	Verbose bool
	Writer  io.Writer
}

// NewPrinter creates a default Printer writing to stdout.
func NewPrinter(jsonMode, verbose bool) *Printer {
	return &Printer{JSON: jsonMode, Verbose: verbose, Writer: os.Stdout}
}

// PrintMetadata renders a Metadata struct to the configured output.
func (p *Printer) PrintMetadata(m *Metadata) {
	if p.JSON {
		p.printJSON(m)
		return
	}
	p.printText(m)
}

// printText lists fields per category in aligned columns, the decimal
// location first when the file is geotagged.
func (p *Printer) printText(m *Metadata) {
	fmt.Fprintf(p.Writer, "File  : %s\n", m.FilePath)
	fmt.Fprintf(p.Writer, "Format: %s\n", m.Format)
	if lat, lon, ok := m.Location(); ok {
		fmt.Fprintf(p.Writer, "Where : %s, %s\n", lat, lon)
	}
	if len(m.Fields) == 0 {
		fmt.Fprintln(p.Writer, "(no metadata found)")
		return
	}

	var cats []string
	byCat := make(map[string][]MetaField)
	for _, f := range m.Fields {
		if _, ok := byCat[f.Category]; !ok {
			cats = append(cats, f.Category)
		}
		byCat[f.Category] = append(byCat[f.Category], f)
	}

	tw := tabwriter.NewWriter(p.Writer, 0, 0, 2, ' ', 0)
	for _, cat := range cats {
		fmt.Fprintf(tw, "\n── %s ──\n", cat)
		for _, f := range byCat[cat] {
			if p.Verbose && f.Raw != "" {
				fmt.Fprintf(tw, "  %s\t%s\t[%s]\n", f.Key, f.Value, f.Raw)
			} else {
				fmt.Fprintf(tw, "  %s\t%s\n", f.Key, f.Value)
			}
		}
	}
	tw.Flush()
}

// metadataJSON adds the decoded location to the field list.
type metadataJSON struct {
	*Metadata
	Location *location `json:"location,omitempty"`
}

type location struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

func (p *Printer) printJSON(m *Metadata) {
	out := metadataJSON{Metadata: m}
	if lat, lon, ok := m.Location(); ok {
		out.Location = &location{Latitude: lat, Longitude: lon}
	}
	if !p.Verbose {
		// Raw values only in verbose mode.
		fields := make([]MetaField, len(m.Fields))
		for i, f := range m.Fields {
			f.Raw = ""
			fields[i] = f
		}
		out.Metadata = &Metadata{FilePath: m.FilePath, Format: m.Format, Fields: fields}
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Fprintln(p.Writer, string(b))
}

// PrintProgress prints a carriage-return progress line (text mode only).
func (p *Printer) PrintProgress(pr Progress) {
	if p.JSON {
		return
	}
	fmt.Fprintf(p.Writer, "Processed: %d/%d files\r", pr.Processed, pr.Total)
	if pr.Processed == pr.Total {
		fmt.Fprintln(p.Writer)
	}
}

// PrintSummary renders the outcome of a batch run.
func (p *Printer) PrintSummary(s Summary) {
	if p.JSON {
		b, _ := json.MarshalIndent(s, "", "  ")
		fmt.Fprintln(p.Writer, string(b))
		return
	}
	fmt.Fprintf(p.Writer, "Processed %d image(s): %d succeeded, %d failed\n", s.Total, s.Succeeded, s.Failed)
	for _, e := range s.Errors {
		fmt.Fprintf(p.Writer, "  ✗ %s (%s): %s\n", e.Name, e.Kind, e.Error)
	}
}

// PrintDelivered reports where the output was written.
func (p *Printer) PrintDelivered(path string, size int64, entries int) {
	if p.JSON {
		return
	}
	what := "image"
	if entries != 1 || strings.HasSuffix(strings.ToLower(path), ".zip") {
		what = fmt.Sprintf("archive with %d image(s)", entries)
	}
	p.PrintSuccess(fmt.Sprintf("Wrote %s to %s (%s)", what, path, humanize.Bytes(uint64(size))))
}

// PrintSuccess prints a success message.
func (p *Printer) PrintSuccess(msg string) {
	fmt.Fprintln(p.Writer, "✓ "+msg)
}

// PrintInfo prints an info line (suppressed in JSON mode).
func (p *Printer) PrintInfo(msg string) {
	if !p.JSON {
		fmt.Fprintln(p.Writer, msg)
	}
}

// PrintError prints an error to stderr.
func PrintError(msg string) {
	fmt.Fprintln(os.Stderr, "✗ Error: "+msg)
}
