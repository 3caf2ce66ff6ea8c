package envelope

import (
	"encoding/json"
	"fmt"

	"relayd.dev/pkg/event"
)

// Submission is a client->relay EVENT message: `["EVENT", <event>]`.
type Submission struct {
	E *event.E
}

// Label returns the envelope's verb.
func (en *Submission) Label() string { return VerbEvent }

// Marshal encodes the submission as a JSON array.
func (en *Submission) Marshal() ([]byte, error) { return pack(VerbEvent, en.E) }

// Unmarshal decodes a `["EVENT", <event>]` array into the submission.
func (en *Submission) Unmarshal(raw []byte) error {
	rest, err := elements(raw)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("envelope: EVENT submission wants exactly one element, got %d", len(rest))
	}
	en.E = new(event.E)
	return json.Unmarshal(rest[0], en.E)
}

// Result is a relay->client EVENT message: `["EVENT", <sub-id>, <event>]`.
type Result struct {
	Subscription string
	E            *event.E
}

// Label returns the envelope's verb.
func (en *Result) Label() string { return VerbEvent }

// Marshal encodes the result as a JSON array.
func (en *Result) Marshal() ([]byte, error) { return pack(VerbEvent, en.Subscription, en.E) }
