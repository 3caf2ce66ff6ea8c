package accept

import (
	"relayd.dev/pkg/event"
	"relayd.dev/pkg/kind"
)

// KindBlocklist rejects events of configured kinds before they reach the
// store, a minimal content-shape restriction in the spirit of the
// teacher's acl predicate chain, generalized away from authentication
// (there is no authenticated pubkey to exempt an admin with, so this
// policy is unconditional).
type KindBlocklist struct {
	Kinds map[kind.K]struct{}
}

var _ Policy = (*KindBlocklist)(nil)

// NewKindBlocklist builds a blocklist from the given kinds.
func NewKindBlocklist(kinds ...kind.K) *KindBlocklist {
	m := make(map[kind.K]struct{}, len(kinds))
	for _, k := range kinds {
		m[k] = struct{}{}
	}
	return &KindBlocklist{Kinds: m}
}

// CheckConn imposes no connection-level restriction.
func (k *KindBlocklist) CheckConn(ConnInfo) error { return nil }

// CheckEvent rejects events whose kind is in the blocklist.
func (k *KindBlocklist) CheckEvent(_ ConnInfo, ev *event.E) error {
	if _, blocked := k.Kinds[ev.Kind]; blocked {
		return Reject("kind %d is not accepted by this relay", ev.Kind)
	}
	return nil
}
