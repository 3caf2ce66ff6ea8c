// Package store defines the Event Store Contract (C1): the narrow
// interface the relay core uses to persist and query events, independent
// of any particular storage engine.
//
// Grounded on other_examples' kwsantiago-orly pkg/interfaces/store
// store_interface.go, which composes the same operations (save, query,
// delete) this relay needs behind one interface — a cleaner shape for this
// purpose than the teacher's own pkg/database, which mixes the contract
// with its badger implementation across a dozen files.
package store

import (
	"context"
	"errors"

	"relayd.dev/pkg/event"
	"relayd.dev/pkg/filter"
)

// Sentinel errors the dispatcher (C6) inspects to choose a NOTICE reason,
// per spec.md §7's error-handling table.
var (
	// ErrDuplicate is returned by AddEvent when an identical id already
	// exists in the store.
	ErrDuplicate = errors.New("store: event already exists")
	// ErrDeleted is returned by AddEvent when the event's id has a
	// standing NIP-09 tombstone forbidding resubmission. Tombstones are
	// kept per event id only; a replaceable (pubkey,kind[,d]) address is
	// not tombstoned.
	ErrDeleted = errors.New("store: event was deleted")
	// ErrStale is returned by AddEvent when a replaceable/parameterized
	// replaceable event is older than the one currently stored for its
	// address.
	ErrStale = errors.New("store: a newer replaceable event already exists")
)

// I is the Event Store Contract: everything the relay core needs from
// durable storage.
type I interface {
	// AddEvent persists ev, applying NIP-16 replace/ephemeral semantics
	// and NIP-09 tombstone checks. Ephemeral events (pkg/kind
	// IsEphemeral) are accepted but never actually written to disk: the
	// store returns nil without persisting, matching spec.md §4.1.
	AddEvent(ctx context.Context, ev *event.E) error
	// QueryEvents returns the stored events matching any filter in fs,
	// newest first, honoring the filters' Limit fields.
	QueryEvents(ctx context.Context, fs filter.S) (event.S, error)
	// DeleteEvent applies a NIP-09 deletion: if requester (the pubkey
	// that signed the kind-5 deletion request) matches the target
	// event's author, the target is removed and a tombstone is recorded
	// so it cannot be resubmitted.
	DeleteEvent(ctx context.Context, id []byte, requester []byte) error
	// SupportsNIP09 reports whether deletion is implemented.
	SupportsNIP09() bool
	// SupportsNIP16 reports whether replaceable/ephemeral semantics are
	// implemented.
	SupportsNIP16() bool
	// Close releases any resources held by the store.
	Close() error
}
