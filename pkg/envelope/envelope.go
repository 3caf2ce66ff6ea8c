// Package envelope implements the relay's wire-level message framing: the
// `["VERB", ...]` JSON array every Nostr client/relay message is wrapped
// in, and the per-verb envelope types the dispatcher (C6) consumes and
// produces.
//
// Grounded on the teacher's pkg/encoders/envelopes/* subpackages (one type
// per verb, each with Label/Marshal/Unmarshal/Parse), adapted to this
// relay's NOTICE-only wire contract: no AUTH, no OK/command-results, no
// COUNT (spec Non-goals). JSON framing goes through encoding/json rather
// than the teacher's hand-rolled byte-level parser, for the same reason
// pkg/filter does: the bufpool/zero-allocation machinery behind that parser
// is out of this spec's scope.
package envelope

import (
	"encoding/json"
	"fmt"
)

// Verb labels, matching the teacher's envelope "L" constants.
const (
	VerbEvent  = "EVENT"
	VerbReq    = "REQ"
	VerbClose  = "CLOSE"
	VerbEOSE   = "EOSE"
	VerbNotice = "NOTICE"
)

// Identify reports the verb of a raw client message without fully decoding
// it, matching the teacher's envelopes.Identify role in handle-message.go.
func Identify(raw []byte) (verb string, err error) {
	var head []json.RawMessage
	if err = json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("envelope: not a JSON array: %w", err)
	}
	if len(head) == 0 {
		return "", fmt.Errorf("envelope: empty array")
	}
	if err = json.Unmarshal(head[0], &verb); err != nil {
		return "", fmt.Errorf("envelope: first element is not a string: %w", err)
	}
	return verb, nil
}

// elements splits a raw `["VERB", ...]` array message into its remaining
// (post-verb) raw JSON elements.
func elements(raw []byte) ([]json.RawMessage, error) {
	var all []json.RawMessage
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("envelope: not a JSON array: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("envelope: empty array")
	}
	return all[1:], nil
}

// Elements exposes the post-verb element split for callers (the
// dispatcher) that need to classify MissingArgument vs MalformedFrame
// before committing to a specific envelope's Unmarshal (spec.md §7).
func Elements(raw []byte) ([]json.RawMessage, error) { return elements(raw) }

// pack marshals verb followed by parts into a single `["VERB", ...]` array.
func pack(verb string, parts ...any) ([]byte, error) {
	arr := make([]any, 0, len(parts)+1)
	arr = append(arr, verb)
	arr = append(arr, parts...)
	return json.Marshal(arr)
}
