package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"unicode/utf8"

	"purpleify/internal/wire"
)

// Frame is one decoded PPDF frame. Exactly one of Image or Metadata is set,
// matching Kind.
type Frame struct {
	Kind wire.Kind
	// Index counts completed frames in stream order, starting at zero. The
	// metadata frame consumes an index too, so image indices are contiguous
	// only when metadata trails the images.
	Index    int
	Image    []byte
	Metadata *Metadata
}

// IsMetadata reports whether the frame carries the metadata record.
func (f Frame) IsMetadata() bool { return f.Kind == wire.KindMetadata }

// Metadata is the JSON object carried by a MET frame.
type Metadata struct {
	// Fields holds every field of the object; numbers are json.Number.
	Fields map[string]any
	// Raw is the body exactly as received.
	Raw json.RawMessage
}

// Title returns the document title, accepting either the "title" or the
// "originalTitle" field.
func (m *Metadata) Title() string {
	for _, key := range []string{"title", "originalTitle"} {
		if s, ok := m.Fields[key].(string); ok {
			return s
		}
	}
	return ""
}

// PageCount returns the "pageCount" field, or 0 when it is absent or not an integer.
func (m *Metadata) PageCount() int {
	n, ok := m.Fields["pageCount"].(json.Number)
	if !ok {
		return 0
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return 0
	}
	return v
}

// Decode unmarshals the raw body into v.
func (m *Metadata) Decode(v any) error {
	return json.Unmarshal(m.Raw, v)
}

func parseMetadata(body []byte) (*Metadata, error) {
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("%w: body is not valid UTF-8", ErrMalformedMetadata)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMetadata, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", ErrMalformedMetadata)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedMetadata)
	}

	return &Metadata{Fields: fields, Raw: json.RawMessage(bytes.Clone(body))}, nil
}
