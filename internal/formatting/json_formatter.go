package formatting

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

// FormatReport writes r as indented JSON.
func (f *JSONFormatter) FormatReport(w io.Writer, r Report) error {
	return f.write(w, r)
}

// FormatValidation writes r as indented JSON.
func (f *JSONFormatter) FormatValidation(w io.Writer, r ValidationReport) error {
	return f.write(w, r)
}

func (f *JSONFormatter) write(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
