package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/ohler55/ojg/oj"
)

// Document is a parsed manifest. The tree is kept generic so that keys the
// service does not interpret survive a load/normalize/serve round trip.
type Document struct {
	root any
}

// Parse decodes raw manifest text.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: invalid UTF-8", ErrParse)
	}
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &Document{root: root}, nil
}

// Root exposes the underlying tree.
func (d *Document) Root() any {
	return d.root
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.root)
}

type fieldState int

const (
	fieldMissing fieldState = iota
	fieldWrongType
	fieldPresent
)

// field is the outcome of reading one key from a JSON object.
type field[T any] struct {
	value T
	state fieldState
}

func (f field[T]) ok() bool {
	return f.state == fieldPresent
}

func lookup(obj any, key string) (any, bool) {
	m, ok := obj.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func arrayField(obj any, key string) field[[]any] {
	v, ok := lookup(obj, key)
	if !ok {
		return field[[]any]{state: fieldMissing}
	}
	arr, ok := v.([]any)
	if !ok {
		return field[[]any]{state: fieldWrongType}
	}
	return field[[]any]{value: arr, state: fieldPresent}
}

// stringField treats the empty string as missing.
func stringField(obj any, key string) field[string] {
	v, ok := lookup(obj, key)
	if !ok {
		return field[string]{state: fieldMissing}
	}
	s, ok := v.(string)
	if !ok {
		return field[string]{state: fieldWrongType}
	}
	if s == "" {
		return field[string]{state: fieldMissing}
	}
	return field[string]{value: s, state: fieldPresent}
}

// idField reads a category identifier, which may be a string or a number.
func idField(obj any, key string) field[string] {
	v, ok := lookup(obj, key)
	if !ok {
		return field[string]{state: fieldMissing}
	}
	switch id := v.(type) {
	case string:
		if id == "" {
			return field[string]{state: fieldMissing}
		}
		return field[string]{value: id, state: fieldPresent}
	case int64:
		return field[string]{value: strconv.FormatInt(id, 10), state: fieldPresent}
	case float64:
		return field[string]{value: strconv.FormatFloat(id, 'f', -1, 64), state: fieldPresent}
	default:
		if s, ok := numberText(v); ok {
			return field[string]{value: s, state: fieldPresent}
		}
		return field[string]{state: fieldWrongType}
	}
}

// numberText renders numbers outside the int64/float64 fast paths, such as
// integers too large for int64.
func numberText(v any) (string, bool) {
	switch v.(type) {
	case bool, map[string]any, []any:
		return "", false
	}
	b, err := json.Marshal(v)
	if err != nil || len(b) == 0 {
		return "", false
	}
	if c := b[0]; c == '-' || (c >= '0' && c <= '9') {
		return string(b), true
	}
	return "", false
}

// categoryLabel names a category by its id, falling back to its index.
func categoryLabel(cat any, index int) string {
	if id := idField(cat, "category"); id.ok() {
		return id.value
	}
	return strconv.Itoa(index)
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return x
	}
}
