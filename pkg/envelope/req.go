package envelope

import (
	"encoding/json"
	"fmt"

	"relayd.dev/pkg/filter"
)

// Req is a client->relay REQ message: `["REQ", <sub-id>, <filter>...]`.
type Req struct {
	Subscription string
	Filters      filter.S
}

// Label returns the envelope's verb.
func (en *Req) Label() string { return VerbReq }

// Marshal encodes the REQ as a JSON array.
func (en *Req) Marshal() ([]byte, error) {
	parts := make([]any, 0, len(en.Filters)+1)
	parts = append(parts, en.Subscription)
	for _, f := range en.Filters {
		parts = append(parts, f)
	}
	return pack(VerbReq, parts...)
}

// Unmarshal decodes a `["REQ", <sub-id>, <filter>...]` array into the req.
func (en *Req) Unmarshal(raw []byte) error {
	rest, err := elements(raw)
	if err != nil {
		return err
	}
	if len(rest) < 1 {
		return fmt.Errorf("envelope: REQ wants a subscription id")
	}
	if err = json.Unmarshal(rest[0], &en.Subscription); err != nil {
		return fmt.Errorf("envelope: REQ subscription id: %w", err)
	}
	if en.Subscription == "" {
		return fmt.Errorf("envelope: REQ subscription id must not be empty")
	}
	en.Filters = make(filter.S, 0, len(rest)-1)
	for _, raw := range rest[1:] {
		f := filter.New()
		if err = json.Unmarshal(raw, f); err != nil {
			return fmt.Errorf("envelope: REQ filter: %w", err)
		}
		en.Filters = append(en.Filters, f)
	}
	if len(en.Filters) == 0 {
		// spec.md §4.6 REQ step 2: zero filters is treated as a single
		// match-all filter, for compatibility with clients that omit them.
		en.Filters = filter.S{filter.New()}
	}
	return nil
}
