package envelope

// Notice is a relay->client human-readable message: `["NOTICE", <message>]`.
// This relay reports every rejection and operational fault through NOTICE
// (spec.md §7/§6): no NIP-20 OK command results, no AUTH challenges.
type Notice struct {
	Message string
}

// Label returns the envelope's verb.
func (en *Notice) Label() string { return VerbNotice }

// Marshal encodes the NOTICE as a JSON array.
func (en *Notice) Marshal() ([]byte, error) { return pack(VerbNotice, en.Message) }

// NewNotice builds a NOTICE envelope from a formatted message.
func NewNotice(msg string) *Notice { return &Notice{Message: msg} }
