// Package pipeline implements the document gate stages: parse -> validate -> decide.
package pipeline

import (
	"errors"
	"strconv"
	"strings"
)

// Common pipeline errors.
var (
	// ErrEmptyBatch indicates the document parsed but held zero records.
	ErrEmptyBatch = errors.New("batch is empty")
)

// Outcome kinds reported in logs, sink headers and metric labels.
const (
	KindValid         = "valid"
	KindParseFailure  = "parse_failure"
	KindEmptyBatch    = "empty_batch"
	KindMissingFields = "missing_fields"
	KindUnknown       = "unknown"
)

// ParseError represents a failure in the parse stage.
// It wraps the underlying decoder error.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	if e == nil || e.Err == nil {
		return "parse failed"
	}
	return "parse failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error { return e.Err }

// MissingFieldsError reports the first record that lacks required fields.
// Fields keeps the schema declaration order.
type MissingFieldsError struct {
	Index  int
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	if e == nil {
		return "validation failed"
	}
	return "validation failed: record " + strconv.Itoa(e.Index) +
		" missing fields: " + strings.Join(e.Fields, ", ")
}

// Kind classifies a parse or validation outcome.
func Kind(err error) string {
	if err == nil {
		return KindValid
	}

	var pe *ParseError
	if errors.As(err, &pe) {
		return KindParseFailure
	}
	var mf *MissingFieldsError
	if errors.As(err, &mf) {
		return KindMissingFields
	}
	if errors.Is(err, ErrEmptyBatch) {
		return KindEmptyBatch
	}

	return KindUnknown
}
