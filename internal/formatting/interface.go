// Package formatting renders engine state for the command line.
//
// The same Report is rendered as rich tables for people and as JSON or YAML
// for scripts, so every output format carries the same information.
package formatting

import (
	"io"
	"time"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (OutputFormat, bool) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, true
	case "":
		return FormatTable, true
	default:
		return "", false
	}
}

// Options configures the formatter behavior
type Options struct {
	Format OutputFormat
	Color  bool // Enable colored output
	// Now is the reference time for relative ages. Zero means time.Now.
	Now time.Time
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Formatter renders reports to a writer.
type Formatter interface {
	FormatReport(w io.Writer, r Report) error
	FormatValidation(w io.Writer, r ValidationReport) error
}

// NewFormatter creates the formatter for options.Format.
func NewFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}
