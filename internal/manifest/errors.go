package manifest

import (
	"fmt"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"keel/internal/resource"
)

// ValidationError reports why one manifest document was rejected.
type ValidationError struct {
	// Source is the file path or ConfigMap key the document came from.
	Source string `json:"source"`
	// Index is the zero-based position of the document within Source, or -1
	// when the error concerns the whole source (YAML syntax, templates).
	Index int `json:"index"`
	// ID is the declared identity, zero when it could not be decoded.
	ID resource.ID `json:"id,omitempty"`
	// Fields holds structural validation failures.
	Fields field.ErrorList `json:"fields,omitempty"`
	// Err holds decoding or template failures.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Location())
	if !e.ID.IsZero() {
		b.WriteString(" ")
		b.WriteString(e.ID.String())
	}
	b.WriteString(": ")
	switch {
	case e.Err != nil && len(e.Fields) > 0:
		b.WriteString(e.Err.Error())
		b.WriteString("; ")
		b.WriteString(e.Fields.ToAggregate().Error())
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	case len(e.Fields) > 0:
		b.WriteString(e.Fields.ToAggregate().Error())
	default:
		b.WriteString("invalid manifest")
	}
	return b.String()
}

// Unwrap returns the decoding error, if any.
func (e ValidationError) Unwrap() error {
	return e.Err
}

// Location renders Source and Index as "source" or "source#index".
func (e ValidationError) Location() string {
	if e.Index < 0 {
		return e.Source
	}
	return fmt.Sprintf("%s#%d", e.Source, e.Index)
}

// Aggregate folds errs into a single error, or nil when errs is empty.
func Aggregate(errs []ValidationError) error {
	if len(errs) == 0 {
		return nil
	}
	out := make([]error, 0, len(errs))
	for _, e := range errs {
		out = append(out, e)
	}
	return utilerrors.NewAggregate(out)
}
