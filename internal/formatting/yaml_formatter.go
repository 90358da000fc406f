package formatting

import (
	"fmt"
	"io"

	"sigs.k8s.io/yaml"
)

// YAMLFormatter provides YAML output formatting. It goes through the JSON
// tags so YAML and JSON output use the same field names.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatReport writes r as YAML.
func (f *YAMLFormatter) FormatReport(w io.Writer, r Report) error {
	return f.write(w, r)
}

// FormatValidation writes r as YAML.
func (f *YAMLFormatter) FormatValidation(w io.Writer, r ValidationReport) error {
	return f.write(w, r)
}

func (f *YAMLFormatter) write(w io.Writer, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}
