// Package kind classifies Nostr event kind numbers for the storage and
// replace/ephemeral semantics the relay core needs (NIP-16). Unlike the
// teacher's kind package this carries no human-readable kind-name database:
// nothing in this relay classifies events by name, only by numeric range.
package kind

// K is a Nostr event kind number.
type K uint16

// Well-known single kinds referenced directly by the relay core.
const (
	Deletion K = 5 // NIP-09 deletion request
)

// Numeric ranges from NIP-01/NIP-16/NIP-33.
const (
	replaceableLow             = 10000
	replaceableHigh            = 19999
	ephemeralLow               = 20000
	ephemeralHigh              = 29999
	parameterizedReplaceableLo = 30000
	parameterizedReplaceableHi = 39999
)

// IsRegularReplaceable reports whether k is kind 0, kind 3, or in [10000,20000)
// — only the latest event per (pubkey,kind) is retained.
func (k K) IsRegularReplaceable() bool {
	return k == 0 || k == 3 || (k >= replaceableLow && k <= replaceableHigh)
}

// IsParameterizedReplaceable reports whether k is in [30000,40000) — only the
// latest event per (pubkey,kind,d-tag) is retained.
func (k K) IsParameterizedReplaceable() bool {
	return k >= parameterizedReplaceableLo && k <= parameterizedReplaceableHi
}

// IsReplaceable reports whether k is replaceable under either NIP-16 rule.
func (k K) IsReplaceable() bool {
	return k.IsRegularReplaceable() || k.IsParameterizedReplaceable()
}

// IsEphemeral reports whether k is in [20000,30000) — never persisted.
func (k K) IsEphemeral() bool {
	return k >= ephemeralLow && k <= ephemeralHigh
}

// IsDeletion reports whether k is the NIP-09 deletion-request kind.
func (k K) IsDeletion() bool { return k == Deletion }
