// Package relayinfo implements the NIP-11 Relay Information Document
// responder (C8).
//
// Grounded on the teacher's pkg/protocol/relayinfo + app/handle-relayinfo.go,
// trimmed of the payment/limitation extensions that are the teacher's own
// hosted-relay product additions (AuthRequired/RestrictedWrites/
// PaymentRequired are out of this spec's scope: no NIP-42 AUTH, no billing).
package relayinfo

import "sort"

// NIP numbers this relay core can report, matching the subset of the
// teacher's supported_nips list that survives this spec's Non-goals (no
// Authentication/NIP-42).
const (
	BasicProtocol                  = 1
	FollowList                     = 2
	EventDeletion                  = 9
	RelayInformationDocument       = 11
	GenericTagQueries              = 12
	EventTreatment                 = 15 // EOSE
	EventCreatedAtLimits           = 16
	ParameterizedReplaceableEvents = 33
)

// Nips is a sortable list of supported NIP numbers.
type Nips []int

func (n Nips) Len() int           { return len(n) }
func (n Nips) Swap(i, j int)      { n[i], n[j] = n[j], n[i] }
func (n Nips) Less(i, j int) bool { return n[i] < n[j] }

// SupportedNIPs returns the sorted list of NIPs this relay implements,
// matching spec.md §4.8 exactly: 1, 2, 11, 12 and 33 (generic tag queries
// and parameterized replaceable events, both implemented unconditionally
// by pkg/filter and pkg/kind) are always reported; 9, 15 and 16 are
// reported only when the store and config actually support them.
func SupportedNIPs(supportsNIP09, enableEOSE, supportsNIP16 bool) Nips {
	n := Nips{
		BasicProtocol,
		FollowList,
		RelayInformationDocument,
		GenericTagQueries,
		ParameterizedReplaceableEvents,
	}
	if supportsNIP09 {
		n = append(n, EventDeletion)
	}
	if enableEOSE {
		n = append(n, EventTreatment)
	}
	if supportsNIP16 {
		n = append(n, EventCreatedAtLimits)
	}
	sort.Sort(n)
	return n
}

// T is the NIP-11 relay information document.
type T struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	PubKey      string `json:"pubkey,omitempty"`
	Contact     string `json:"contact,omitempty"`
	Nips        Nips   `json:"supported_nips"`
	Software    string `json:"software,omitempty"`
	Version     string `json:"version,omitempty"`
}

// New builds a relay information document from the relay's identity
// fields and the capabilities actually wired into this relay instance.
func New(name, description, contact, pubkey, software, version string, supportsNIP09, enableEOSE, supportsNIP16 bool) *T {
	return &T{
		Name:        name,
		Description: description,
		PubKey:      pubkey,
		Contact:     contact,
		Nips:        SupportedNIPs(supportsNIP09, enableEOSE, supportsNIP16),
		Software:    software,
		Version:     version,
	}
}
