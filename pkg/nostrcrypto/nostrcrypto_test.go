package nostrcrypto

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"relayd.dev/pkg/event"
	"relayd.dev/pkg/tag"
)

func signedEvent(t *testing.T) *event.E {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := priv.PubKey().SerializeCompressed()[1:] // x-only

	ev := &event.E{
		Pubkey:    pub,
		CreatedAt: 1700000000,
		Kind:      1,
		Tags:      tag.S{},
		Content:   []byte("hi"),
	}
	ev.ID = ev.GetIDBytes()
	sig, err := schnorr.Sign(priv, ev.ID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ev.Sig = sig.Serialize()
	return ev
}

func TestIsValidAcceptsWellFormedEvent(t *testing.T) {
	ev := signedEvent(t)
	if err := IsValid(ev); err != nil {
		t.Fatalf("expected valid event, got: %v", err)
	}
}

func TestIsValidRejectsTamperedContent(t *testing.T) {
	ev := signedEvent(t)
	ev.Content = []byte("tampered")
	if err := IsValid(ev); err == nil {
		t.Fatal("expected tampered content to fail id/sig check")
	}
}

func TestIsValidRejectsBadID(t *testing.T) {
	ev := signedEvent(t)
	ev.ID = make([]byte, 10)
	if err := IsValid(ev); err == nil {
		t.Fatal("expected malformed id to be rejected")
	}
}

func TestIsPubkey(t *testing.T) {
	ev := signedEvent(t)
	if !IsPubkey(ev.Pubkey) {
		t.Fatal("expected generated pubkey to be valid")
	}
	if IsPubkey([]byte{0x01, 0x02}) {
		t.Fatal("expected short byte slice to be invalid pubkey")
	}
}
