// Package nostrcrypto implements the event/filter primitives (C2): id
// derivation and schnorr signature verification.
//
// Grounded on the corpus's common use of btcsuite/btcd/btcec/v2/schnorr for
// Nostr signatures (e.g. HORNET-Storage's lib/subscription/events.go, which
// signs with the same package this verifies against) rather than the
// teacher's own hand-rolled pkg/crypto/ec/schnorr reimplementation — see
// DESIGN.md for the "dropped teacher module, replaced with ecosystem lib"
// rationale.
package nostrcrypto

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"relayd.dev/pkg/event"
)

const (
	// IDLen is the byte length of an event id (sha256 digest).
	IDLen = 32
	// PubkeyLen is the byte length of an x-only Nostr public key.
	PubkeyLen = 32
	// SigLen is the byte length of a schnorr signature.
	SigLen = 64
)

// IsEventID reports whether b has the length of an event id. It does not
// compare b against any event's canonical hash; IsValid does that.
func IsEventID(b []byte) bool { return len(b) == IDLen }

// IsPubkey reports whether b is a well-formed x-only public key.
func IsPubkey(b []byte) bool {
	if len(b) != PubkeyLen {
		return false
	}
	_, err := schnorr.ParsePubKey(b)
	return err == nil
}

// IsValid verifies that ev's id matches its canonical hash and that its
// signature verifies against its pubkey. It is the sole gate an event must
// pass before being handed to the store.
func IsValid(ev *event.E) error {
	if !IsEventID(ev.ID) {
		return fmt.Errorf("nostrcrypto: malformed event id")
	}
	want := ev.GetIDBytes()
	if !bytes.Equal(want, ev.ID) {
		return fmt.Errorf("nostrcrypto: id does not match canonical hash")
	}
	if len(ev.Sig) != SigLen {
		return fmt.Errorf("nostrcrypto: malformed signature")
	}
	pub, err := schnorr.ParsePubKey(ev.Pubkey)
	if err != nil {
		return fmt.Errorf("nostrcrypto: malformed pubkey: %w", err)
	}
	sig, err := schnorr.ParseSignature(ev.Sig)
	if err != nil {
		return fmt.Errorf("nostrcrypto: malformed signature: %w", err)
	}
	if !sig.Verify(ev.ID, pub) {
		return fmt.Errorf("nostrcrypto: signature verification failed")
	}
	return nil
}
