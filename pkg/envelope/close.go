package envelope

import (
	"encoding/json"
	"fmt"
)

// Close is a client->relay CLOSE message: `["CLOSE", <sub-id>]`.
type Close struct {
	Subscription string
}

// Label returns the envelope's verb.
func (en *Close) Label() string { return VerbClose }

// Marshal encodes the CLOSE as a JSON array.
func (en *Close) Marshal() ([]byte, error) { return pack(VerbClose, en.Subscription) }

// Unmarshal decodes a `["CLOSE", <sub-id>]` array into the close.
func (en *Close) Unmarshal(raw []byte) error {
	rest, err := elements(raw)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("envelope: CLOSE wants exactly one element, got %d", len(rest))
	}
	if err = json.Unmarshal(rest[0], &en.Subscription); err != nil {
		return fmt.Errorf("envelope: CLOSE subscription id: %w", err)
	}
	if en.Subscription == "" {
		return fmt.Errorf("envelope: CLOSE subscription id must not be empty")
	}
	return nil
}
