// Package event implements the Nostr event type: canonical serialization,
// id derivation, and the JSON wire shape used on the EVENT envelope.
//
// Grounded on the teacher's pkg/encoders/event package; fields are kept
// binary internally (hex only at the JSON boundary), matching the
// teacher's convention.
package event

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"relayd.dev/pkg/kind"
	"relayd.dev/pkg/tag"
)

// E is a single Nostr event.
type E struct {
	ID        []byte
	Pubkey    []byte
	CreatedAt int64
	Kind      kind.K
	Tags      tag.S
	Content   []byte
	Sig       []byte
}

// S is a list of events, sortable newest-first by CreatedAt, ties broken
// by id descending (spec.md §4.1 get_filter ordering).
type S []*E

func (s S) Len() int      { return len(s) }
func (s S) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s S) Less(i, j int) bool {
	if s[i].CreatedAt != s[j].CreatedAt {
		return s[i].CreatedAt > s[j].CreatedAt
	}
	return bytes.Compare(s[i].ID, s[j].ID) > 0
}

// Sort orders s newest-first in place.
func (s S) Sort() { sort.Sort(s) }

// C is a channel of events, used to stream query results and deliveries.
type C chan *E

// ToCanonical builds the NIP-01 canonical serialization used to derive the
// event id: [0,"<pubkey-hex>",<created_at>,<kind>,<tags>,"<content>"].
func (ev *E) ToCanonical(dst []byte) []byte {
	b := dst
	b = append(b, "[0,\""...)
	b = appendHex(b, ev.Pubkey)
	b = append(b, "\","...)
	b = append(b, fmt.Sprintf("%d,%d,", ev.CreatedAt, ev.Kind)...)
	tagsJSON, _ := json.Marshal(ev.Tags)
	b = append(b, tagsJSON...)
	b = append(b, ',')
	contentJSON, _ := json.Marshal(string(ev.Content))
	b = append(b, contentJSON...)
	b = append(b, ']')
	return b
}

// GetIDBytes returns the SHA256 hash of the event's canonical form.
func (ev *E) GetIDBytes() []byte { return Hash(ev.ToCanonical(nil)) }

// Hash returns the raw SHA256 digest of in.
func Hash(in []byte) []byte {
	h := sha256.Sum256(in)
	return h[:]
}

func appendHex(dst, src []byte) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, hex.EncodedLen(len(src)))...)
	hex.Encode(dst[n:], src)
	return dst
}

// Clone returns a deep-enough copy of ev safe to hand to a goroutine that
// outlives the caller's buffers (e.g. async fan-out after a pooled read).
func (ev *E) Clone() *E {
	c := &E{
		ID:        append([]byte(nil), ev.ID...),
		Pubkey:    append([]byte(nil), ev.Pubkey...),
		CreatedAt: ev.CreatedAt,
		Kind:      ev.Kind,
		Content:   append([]byte(nil), ev.Content...),
		Sig:       append([]byte(nil), ev.Sig...),
	}
	c.Tags = make(tag.S, len(ev.Tags))
	for i, t := range ev.Tags {
		fields := make([][]byte, len(t.Field))
		for j, f := range t.Field {
			fields[j] = append([]byte(nil), f...)
		}
		c.Tags[i] = tag.NewFromBytes(fields...)
	}
	return c
}

// wire is the JSON-boundary representation of an event (hex-encoded
// binary fields), matching the standard Nostr wire format.
type wire struct {
	ID        string   `json:"id"`
	Pubkey    string   `json:"pubkey"`
	CreatedAt int64    `json:"created_at"`
	Kind      uint16   `json:"kind"`
	Tags      tag.S    `json:"tags"`
	Content   string   `json:"content"`
	Sig       string   `json:"sig"`
}

// MarshalJSON encodes the event in the standard Nostr wire format.
func (ev *E) MarshalJSON() ([]byte, error) {
	w := wire{
		ID:        hex.EncodeToString(ev.ID),
		Pubkey:    hex.EncodeToString(ev.Pubkey),
		CreatedAt: ev.CreatedAt,
		Kind:      uint16(ev.Kind),
		Tags:      ev.Tags,
		Content:   string(ev.Content),
		Sig:       hex.EncodeToString(ev.Sig),
	}
	if w.Tags == nil {
		w.Tags = tag.S{}
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the standard Nostr wire format into the event.
func (ev *E) UnmarshalJSON(b []byte) error {
	var w wire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	var err error
	if ev.ID, err = hex.DecodeString(w.ID); err != nil {
		return fmt.Errorf("event: invalid id: %w", err)
	}
	if ev.Pubkey, err = hex.DecodeString(w.Pubkey); err != nil {
		return fmt.Errorf("event: invalid pubkey: %w", err)
	}
	if ev.Sig, err = hex.DecodeString(w.Sig); err != nil {
		return fmt.Errorf("event: invalid sig: %w", err)
	}
	ev.CreatedAt = w.CreatedAt
	ev.Kind = kind.K(w.Kind)
	ev.Tags = w.Tags
	ev.Content = []byte(w.Content)
	return nil
}
