package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Number decodes a JSON number that may arrive boxed in a one-element
// array, as Plumber does for R scalars unless auto_unbox is set.
// It always encodes as a bare number.
type Number float64

// UnmarshalJSON accepts 5, [5] and null
func (n *Number) UnmarshalJSON(data []byte) error {
	raw, err := unbox(data)
	if err != nil || raw == nil {
		return err
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("expected number, got %s", raw)
	}
	*n = Number(f)
	return nil
}

// Text is the string counterpart of Number
type Text string

// UnmarshalJSON accepts "s", ["s"] and null
func (t *Text) UnmarshalJSON(data []byte) error {
	raw, err := unbox(data)
	if err != nil || raw == nil {
		return err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("expected string, got %s", raw)
	}
	*t = Text(s)
	return nil
}

// Flag is the boolean counterpart of Number
type Flag bool

// UnmarshalJSON accepts true, [true] and null
func (f *Flag) UnmarshalJSON(data []byte) error {
	raw, err := unbox(data)
	if err != nil || raw == nil {
		return err
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("expected boolean, got %s", raw)
	}
	*f = Flag(b)
	return nil
}

// unbox returns the scalar inside a one-element array, or nil for null
// and empty arrays
func unbox(data []byte) (json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	if len(data) == 0 || data[0] != '[' {
		return data, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		if bytes.Equal(bytes.TrimSpace(items[0]), []byte("null")) {
			return nil, nil
		}
		return items[0], nil
	default:
		return nil, fmt.Errorf("expected a single value, got %d", len(items))
	}
}
