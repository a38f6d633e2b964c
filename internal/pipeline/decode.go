package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Record is one telemetry reading keyed by field name.
type Record map[string]any

// Batch is the ordered set of records extracted from one document.
type Batch []Record

var errNotBatch = errors.New("top-level value must be an object or an array of objects")

// Parse turns a raw document into a batch of records.
// The text is trimmed (including a byte order mark) and newlines are collapsed
// to spaces before decoding, so pretty-printed and newline-delimited producers
// parse the same way.
// A lone object becomes a one-element batch.
// It returns a typed *ParseError for malformed or non-record input.
func Parse(raw []byte) (Batch, error) {
	text := strings.ReplaceAll(strings.TrimFunc(string(raw), isTrimmable), "\n", " ")

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, &ParseError{Err: err}
	}

	switch v := doc.(type) {
	case map[string]any:
		return Batch{Record(v)}, nil
	case []any:
		batch := make(Batch, 0, len(v))
		for i, item := range v {
			rec, ok := item.(map[string]any)
			if !ok {
				return nil, &ParseError{Err: fmt.Errorf("record %d is not an object", i)}
			}
			batch = append(batch, Record(rec))
		}
		return batch, nil
	default:
		return nil, &ParseError{Err: errNotBatch}
	}
}

// isTrimmable reports whether r may surround a document: Unicode white space
// or the U+FEFF byte order mark some editors prepend.
func isTrimmable(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}
