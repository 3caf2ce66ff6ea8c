// Package tag implements a Nostr tag: an ordered list of string elements
// whose first element is conventionally a single-letter key.
package tag

import (
	"bytes"
	"encoding/json"
)

// Position indices for the well-known first two elements of a tag.
const (
	Key = iota
	Value
)

// T is a single tag: `["e", "<id>", "<relay>", ...]`.
type T struct {
	Field [][]byte
}

// New builds a tag.T from the given fields, accepting either string or
// []byte elements.
func New(fields ...any) *T {
	t := &T{Field: make([][]byte, 0, len(fields))}
	for _, f := range fields {
		switch v := f.(type) {
		case []byte:
			t.Field = append(t.Field, v)
		case string:
			t.Field = append(t.Field, []byte(v))
		default:
			panic("tag: field must be string or []byte")
		}
	}
	return t
}

// NewFromBytes builds a tag.T directly from a slice of []byte fields.
func NewFromBytes(fields ...[]byte) *T { return &T{Field: fields} }

// Len returns the number of elements in the tag.
func (t *T) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Field)
}

// Key returns the tag's first element (its name), or nil if empty.
func (t *T) Key() []byte {
	if t.Len() <= Key {
		return nil
	}
	return t.Field[Key]
}

// Value returns the tag's second element (its primary argument), or nil.
func (t *T) Value() []byte {
	if t.Len() <= Value {
		return nil
	}
	return t.Field[Value]
}

// KeyIs reports whether the tag's key equals s.
func (t *T) KeyIs(s string) bool {
	return bytes.Equal(t.Key(), []byte(s))
}

// IsFilterable reports whether the tag has a single-letter key
// (the only kind that participates in filter `#x` matching).
func (t *T) IsFilterable() bool {
	k := t.Key()
	return len(k) == 1 && ((k[0] >= 'a' && k[0] <= 'z') || (k[0] >= 'A' && k[0] <= 'Z'))
}

// MarshalJSON encodes the tag as a JSON array of strings.
func (t *T) MarshalJSON() ([]byte, error) {
	ss := make([]string, len(t.Field))
	for i, f := range t.Field {
		ss[i] = string(f)
	}
	return json.Marshal(ss)
}

// UnmarshalJSON decodes a JSON array of strings into the tag.
func (t *T) UnmarshalJSON(b []byte) error {
	var ss []string
	if err := json.Unmarshal(b, &ss); err != nil {
		return err
	}
	t.Field = make([][]byte, len(ss))
	for i, s := range ss {
		t.Field[i] = []byte(s)
	}
	return nil
}
