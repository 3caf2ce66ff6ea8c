package envelope

// EOSE is a relay->client message signaling the end of stored results for a
// subscription: `["EOSE", <sub-id>]`.
type EOSE struct {
	Subscription string
}

// Label returns the envelope's verb.
func (en *EOSE) Label() string { return VerbEOSE }

// Marshal encodes the EOSE as a JSON array.
func (en *EOSE) Marshal() ([]byte, error) { return pack(VerbEOSE, en.Subscription) }
