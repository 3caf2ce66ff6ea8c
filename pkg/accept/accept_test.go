package accept

import (
	"testing"

	"relayd.dev/pkg/event"
	"relayd.dev/pkg/kind"
)

func TestIPAllowlistEmptyAcceptsAll(t *testing.T) {
	a := &IPAllowlist{}
	if err := a.CheckConn(ConnInfo{RemoteAddr: "203.0.113.5:1234"}); err != nil {
		t.Fatalf("expected empty allowlist to accept all, got %v", err)
	}
}

func TestIPAllowlistRejectsUnlisted(t *testing.T) {
	a := &IPAllowlist{Prefixes: []string{"10.0.0."}}
	if err := a.CheckConn(ConnInfo{RemoteAddr: "203.0.113.5:1234"}); err == nil {
		t.Fatal("expected rejection for non-matching prefix")
	}
	if err := a.CheckConn(ConnInfo{RemoteAddr: "10.0.0.5:1234"}); err != nil {
		t.Fatalf("expected acceptance for matching prefix, got %v", err)
	}
}

func TestKindBlocklist(t *testing.T) {
	bl := NewKindBlocklist(4)
	ev := &event.E{Kind: 4}
	if err := bl.CheckEvent(ConnInfo{}, ev); err == nil {
		t.Fatal("expected blocked kind to be rejected")
	}
	ev2 := &event.E{Kind: 1}
	if err := bl.CheckEvent(ConnInfo{}, ev2); err != nil {
		t.Fatalf("expected unblocked kind to pass, got %v", err)
	}
}

func TestChainShortCircuits(t *testing.T) {
	c := Chain{&IPAllowlist{Prefixes: []string{"10."}}, NewKindBlocklist(1)}
	if err := c.CheckConn(ConnInfo{RemoteAddr: "192.168.1.1:1"}); err == nil {
		t.Fatal("expected chain to reject via first policy")
	}
	ev := &event.E{Kind: kind.K(1)}
	if err := c.CheckEvent(ConnInfo{}, ev); err == nil {
		t.Fatal("expected chain to reject via second policy")
	}
}
