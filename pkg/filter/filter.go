// Package filter implements the Nostr filter type (NIP-01 REQ filters) and
// the match predicate the storage layer and live fan-out both use.
//
// Grounded on the teacher's pkg/encoders/filter package: the same field set
// and canonicalizing Sort(), but JSON encoding goes through encoding/json
// with a map for the dynamic `#x` tag keys rather than the teacher's
// hand-rolled zero-allocation state-machine parser (trimmed along with the
// bufpool machinery — see DESIGN.md).
package filter

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"sort"

	"relayd.dev/pkg/event"
	"relayd.dev/pkg/kind"
)

// F is a single filter: a conjunction of constraints an event must satisfy.
// Within a field, values are disjunctive (any id/kind/author/tag-value
// matches); across fields, all present fields must match (AND).
type F struct {
	Ids     [][]byte
	Kinds   []kind.K
	Authors [][]byte
	Tags    map[byte][][]byte // single-letter tag key -> list of acceptable values
	Since   *int64
	Until   *int64
	Search  string
	Limit   *uint
}

// New returns an empty filter ready to have fields populated.
func New() *F { return &F{} }

// Sort canonicalizes field ordering so two filters built from the same set
// of constraints serialize identically, for deduplication purposes.
func (f *F) Sort() {
	sort.Slice(f.Ids, func(i, j int) bool { return bytes.Compare(f.Ids[i], f.Ids[j]) < 0 })
	sort.Slice(f.Kinds, func(i, j int) bool { return f.Kinds[i] < f.Kinds[j] })
	sort.Slice(f.Authors, func(i, j int) bool { return bytes.Compare(f.Authors[i], f.Authors[j]) < 0 })
	for k, vs := range f.Tags {
		sort.Slice(vs, func(i, j int) bool { return bytes.Compare(vs[i], vs[j]) < 0 })
		f.Tags[k] = vs
	}
}

// wire is the JSON-boundary shape: hex strings for ids/authors, and a flat
// map so `#e`/`#p`/etc keys round-trip without bespoke struct fields.
type wire map[string]json.RawMessage

// MarshalJSON encodes the filter in the standard NIP-01 wire format.
func (f *F) MarshalJSON() ([]byte, error) {
	f.Sort()
	m := map[string]any{}
	if len(f.Ids) > 0 {
		m["ids"] = hexSlice(f.Ids)
	}
	if len(f.Kinds) > 0 {
		m["kinds"] = f.Kinds
	}
	if len(f.Authors) > 0 {
		m["authors"] = hexSlice(f.Authors)
	}
	for k, vs := range f.Tags {
		ss := make([]string, len(vs))
		for i, v := range vs {
			ss[i] = string(v)
		}
		m["#"+string(k)] = ss
	}
	if f.Since != nil {
		m["since"] = *f.Since
	}
	if f.Until != nil {
		m["until"] = *f.Until
	}
	if f.Search != "" {
		m["search"] = f.Search
	}
	if f.Limit != nil {
		m["limit"] = *f.Limit
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a filter from the standard NIP-01 wire format.
func (f *F) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	for key, raw := range w {
		switch key {
		case "ids":
			ss, err := decodeStringArray(raw)
			if err != nil {
				return err
			}
			if f.Ids, err = hexDecodeAll(ss); err != nil {
				return err
			}
		case "authors":
			ss, err := decodeStringArray(raw)
			if err != nil {
				return err
			}
			if f.Authors, err = hexDecodeAll(ss); err != nil {
				return err
			}
		case "kinds":
			var ks []kind.K
			if err := json.Unmarshal(raw, &ks); err != nil {
				return err
			}
			f.Kinds = ks
		case "since":
			var v int64
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			f.Since = &v
		case "until":
			var v int64
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			f.Until = &v
		case "search":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			f.Search = v
		case "limit":
			var v uint
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			f.Limit = &v
		default:
			if len(key) == 2 && key[0] == '#' {
				ss, err := decodeStringArray(raw)
				if err != nil {
					return err
				}
				if f.Tags == nil {
					f.Tags = map[byte][][]byte{}
				}
				vals := make([][]byte, len(ss))
				for i, s := range ss {
					vals[i] = []byte(s)
				}
				f.Tags[key[1]] = vals
			}
		}
	}
	return nil
}

func decodeStringArray(raw json.RawMessage) ([]string, error) {
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, err
	}
	return ss, nil
}

func hexSlice(bs [][]byte) []string {
	ss := make([]string, len(bs))
	for i, b := range bs {
		ss[i] = hex.EncodeToString(b)
	}
	return ss
}

func hexDecodeAll(ss []string) ([][]byte, error) {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// Matches reports whether ev satisfies every constraint present on f.
func (f *F) Matches(ev *event.E) bool {
	if len(f.Ids) > 0 && !matchPrefixAny(f.Ids, ev.ID) {
		return false
	}
	if len(f.Authors) > 0 && !matchPrefixAny(f.Authors, ev.Pubkey) {
		return false
	}
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == ev.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Since != nil && ev.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && ev.CreatedAt > *f.Until {
		return false
	}
	for k, values := range f.Tags {
		if !tagMatches(ev, k, values) {
			return false
		}
	}
	if f.Search != "" && !bytes.Contains(bytes.ToLower(ev.Content), bytes.ToLower([]byte(f.Search))) {
		return false
	}
	return true
}

// matchPrefixAny reports whether id shares any candidate value as a prefix
// (NIP-01 allows abbreviated ids/authors in filters).
func matchPrefixAny(candidates [][]byte, id []byte) bool {
	for _, c := range candidates {
		if len(c) <= len(id) && bytes.Equal(id[:len(c)], c) {
			return true
		}
	}
	return false
}

func tagMatches(ev *event.E, key byte, values [][]byte) bool {
	for _, t := range ev.Tags {
		if t.Len() < 2 || t.Key() == nil || t.Key()[0] != key || len(t.Key()) != 1 {
			continue
		}
		for _, v := range values {
			if bytes.Equal(t.Value(), v) {
				return true
			}
		}
	}
	return false
}

// S is a set of filters, as carried by a REQ envelope. An event matches the
// set if it matches any one filter (logical OR across the set).
type S []*F

// Matches reports whether ev satisfies at least one filter in s. An empty
// set matches nothing.
func (s S) Matches(ev *event.E) bool {
	for _, f := range s {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}
