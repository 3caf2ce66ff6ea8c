// Package accept implements the accept-policy chain (C3): a pluggable set
// of predicates run against an incoming connection or event before it is
// allowed further into the pipeline.
//
// Grounded on the teacher's pkg/acl predicate-registry shape (a slice of
// checkers consulted in turn, generalized here), and on the IP-prefix check
// inlined in app/handle-websocket.go's HandleWebsocket, lifted out into its
// own policy. Unlike the teacher's acl.I, this is not an authenticated ACL:
// spec.md's Non-goals exclude NIP-42 AUTH, so there is no authenticated
// pubkey for a policy to key off of — only connection-level facts (remote
// address) and event-level facts (kind, content) are available.
package accept

import (
	"fmt"

	"relayd.dev/pkg/event"
)

// Rejected is the sentinel error type a Policy returns to reject a
// connection or event; its Reason is suitable for inclusion in a NOTICE.
type Rejected struct {
	Reason string
}

func (r *Rejected) Error() string { return r.Reason }

// Reject builds a *Rejected with a formatted reason.
func Reject(format string, args ...any) error {
	return &Rejected{Reason: fmt.Sprintf(format, args...)}
}

// ConnInfo is the connection-level information available to a Policy before
// any event has been read (e.g. at WebSocket upgrade time).
type ConnInfo struct {
	RemoteAddr string
}

// Policy is a single accept-policy predicate. Chain calls both checks on
// every policy; a policy that only cares about one of the two gates
// implements the other as a no-op returning nil.
type Policy interface {
	// CheckConn runs once per new connection; a non-nil error refuses the
	// upgrade entirely.
	CheckConn(info ConnInfo) error
	// CheckEvent runs once per submitted event, before it reaches the
	// store; a non-nil error causes the event to be rejected with a
	// NOTICE and not saved.
	CheckEvent(info ConnInfo, ev *event.E) error
}

// Chain runs a sequence of policies in order, short-circuiting on the
// first rejection.
type Chain []Policy

// CheckConn runs CheckConn on every policy in the chain.
func (c Chain) CheckConn(info ConnInfo) error {
	for _, p := range c {
		if err := p.CheckConn(info); err != nil {
			return err
		}
	}
	return nil
}

// CheckEvent runs CheckEvent on every policy in the chain.
func (c Chain) CheckEvent(info ConnInfo, ev *event.E) error {
	for _, p := range c {
		if err := p.CheckEvent(info, ev); err != nil {
			return err
		}
	}
	return nil
}
