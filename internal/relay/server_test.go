package relay

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/coder/websocket"

	"relayd.dev/pkg/event"
	"relayd.dev/pkg/kind"
	"relayd.dev/pkg/relayinfo"
	"relayd.dev/pkg/store/badger"
	"relayd.dev/pkg/tag"
)

// newTestServer builds a Server backed by a throwaway badger store and
// serves it over httptest, the same arrangement the store's own tests use
// (pkg/store/badger/store_test.go's openTestStore) extended to the full
// relay stack.
func newTestServer(t *testing.T, maxSub int) string {
	t.Helper()
	st, err := badger.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	info := relayinfo.New("test relay", "", "", "", "relayd", "test", true, true, true)
	s := NewServer(Options{
		Endpoint:   "/",
		MaxSub:     maxSub,
		EnableEOSE: true,
		Store:      st,
		Info:       info,
	})

	hs := httptest.NewServer(s)
	t.Cleanup(hs.Close)
	return "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func writeFrame(t *testing.T, c *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Write(ctx, websocket.MessageText, []byte(frame)); err != nil {
		t.Fatalf("write %s: %v", frame, err)
	}
}

func readFrame(t *testing.T, c *websocket.Conn) []any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame []any
	if err = json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal frame %s: %v", data, err)
	}
	return frame
}

func signedEvent(t *testing.T, k kind.K, tags tag.S, content string, createdAt int64) *event.E {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if tags == nil {
		tags = tag.S{}
	}
	ev := &event.E{
		Pubkey:    priv.PubKey().SerializeCompressed()[1:],
		CreatedAt: createdAt,
		Kind:      k,
		Tags:      tags,
		Content:   []byte(content),
	}
	ev.ID = ev.GetIDBytes()
	sig, err := schnorr.Sign(priv, ev.ID)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	ev.Sig = sig.Serialize()
	return ev
}

func eventFrame(t *testing.T, ev *event.E) string {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return fmt.Sprintf(`["EVENT",%s]`, b)
}

func TestEventThenReqBackfillsAndSendsEOSE(t *testing.T) {
	wsURL := newTestServer(t, 10)
	c := dial(t, wsURL)

	ev := signedEvent(t, 1, nil, "hello", 1700000000)
	writeFrame(t, c, eventFrame(t, ev))

	writeFrame(t, c, `["REQ","sub1",{"kinds":[1]}]`)

	result := readFrame(t, c)
	if result[0] != "EVENT" || result[1] != "sub1" {
		t.Fatalf("expected backfilled EVENT for sub1, got %v", result)
	}

	eose := readFrame(t, c)
	if eose[0] != "EOSE" || eose[1] != "sub1" {
		t.Fatalf("expected EOSE for sub1, got %v", eose)
	}
}

func TestReqThenLiveEventIsDelivered(t *testing.T) {
	wsURL := newTestServer(t, 10)
	subscriber := dial(t, wsURL)
	publisher := dial(t, wsURL)

	writeFrame(t, subscriber, `["REQ","live",{}]`)
	eose := readFrame(t, subscriber)
	if eose[0] != "EOSE" || eose[1] != "live" {
		t.Fatalf("expected immediate EOSE on empty store, got %v", eose)
	}

	ev := signedEvent(t, 1, nil, "live event", 1700000100)
	writeFrame(t, publisher, eventFrame(t, ev))

	delivered := readFrame(t, subscriber)
	if delivered[0] != "EVENT" || delivered[1] != "live" {
		t.Fatalf("expected live EVENT delivery, got %v", delivered)
	}
}

func TestReqRejectsOverSubscriptionLimit(t *testing.T) {
	wsURL := newTestServer(t, 1)
	c := dial(t, wsURL)

	writeFrame(t, c, `["REQ","a",{}]`)
	eose := readFrame(t, c)
	if eose[0] != "EOSE" {
		t.Fatalf("expected EOSE for first sub, got %v", eose)
	}

	writeFrame(t, c, `["REQ","b",{}]`)
	notice := readFrame(t, c)
	want := "REQ new sub_id b not allowed, already at max subs=1"
	if notice[0] != "NOTICE" || notice[1] != want {
		t.Fatalf("expected NOTICE %q, got %v", want, notice)
	}
}

func TestReqRejectsDuplicateSubID(t *testing.T) {
	wsURL := newTestServer(t, 10)
	c := dial(t, wsURL)

	writeFrame(t, c, `["REQ","dup",{}]`)
	readFrame(t, c) // EOSE

	writeFrame(t, c, `["REQ","dup",{}]`)
	notice := readFrame(t, c)
	if notice[0] != "NOTICE" || !strings.Contains(notice[1].(string), "already subscribed") {
		t.Fatalf("expected duplicate-subscription NOTICE, got %v", notice)
	}
}

func TestCloseUnknownSubReportsNotSubscribed(t *testing.T) {
	wsURL := newTestServer(t, 10)
	c := dial(t, wsURL)

	writeFrame(t, c, `["CLOSE","nope"]`)
	notice := readFrame(t, c)
	if notice[0] != "NOTICE" || notice[1] != "not subscribed" {
		t.Fatalf("expected not-subscribed NOTICE, got %v", notice)
	}
}

func TestCloseKnownSubSucceeds(t *testing.T) {
	wsURL := newTestServer(t, 10)
	c := dial(t, wsURL)

	writeFrame(t, c, `["REQ","x",{}]`)
	readFrame(t, c) // EOSE

	writeFrame(t, c, `["CLOSE","x"]`)
	notice := readFrame(t, c)
	want := "CLOSE sub_id x - success"
	if notice[0] != "NOTICE" || notice[1] != want {
		t.Fatalf("expected %q, got %v", want, notice)
	}
}

func TestMalformedFrameProducesNotice(t *testing.T) {
	wsURL := newTestServer(t, 10)
	c := dial(t, wsURL)

	writeFrame(t, c, `not json at all`)
	notice := readFrame(t, c)
	if notice[0] != "NOTICE" || notice[1] != "unable to decode command string" {
		t.Fatalf("expected decode-failure NOTICE, got %v", notice)
	}
}

func TestUnsupportedVerbProducesNotice(t *testing.T) {
	wsURL := newTestServer(t, 10)
	c := dial(t, wsURL)

	writeFrame(t, c, `["AUTH","challenge-string"]`)
	notice := readFrame(t, c)
	if notice[0] != "NOTICE" || notice[1] != "unsupported command AUTH" {
		t.Fatalf("expected unsupported-command NOTICE, got %v", notice)
	}
}

func TestDuplicateEventIsRejected(t *testing.T) {
	wsURL := newTestServer(t, 10)
	c := dial(t, wsURL)

	ev := signedEvent(t, 1, nil, "once", 1700000200)
	writeFrame(t, c, eventFrame(t, ev))
	writeFrame(t, c, eventFrame(t, ev))

	notice := readFrame(t, c)
	want := fmt.Sprintf("event already exists: %x", ev.ID)
	if notice[0] != "NOTICE" || notice[1] != want {
		t.Fatalf("expected duplicate-event NOTICE %q, got %v", want, notice)
	}
}

func TestTamperedSignatureIsRejected(t *testing.T) {
	wsURL := newTestServer(t, 10)
	c := dial(t, wsURL)

	ev := signedEvent(t, 1, nil, "original", 1700000300)
	ev.Content = []byte("tampered")

	writeFrame(t, c, eventFrame(t, ev))
	notice := readFrame(t, c)
	want := "invalid event, pubkey doesn't match sig"
	if notice[0] != "NOTICE" || notice[1] != want {
		t.Fatalf("expected invalid-signature NOTICE, got %v", notice)
	}
}

func TestDeletionRemovesReferencedEvent(t *testing.T) {
	wsURL := newTestServer(t, 10)
	c := dial(t, wsURL)

	priv, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub := priv.PubKey().SerializeCompressed()[1:]

	target := &event.E{Pubkey: pub, CreatedAt: 1700000400, Kind: 1, Tags: tag.S{}, Content: []byte("delete me")}
	target.ID = target.GetIDBytes()
	sig, err := schnorr.Sign(priv, target.ID)
	if err != nil {
		t.Fatalf("sign target: %v", err)
	}
	target.Sig = sig.Serialize()
	writeFrame(t, c, eventFrame(t, target))

	deletion := &event.E{
		Pubkey:    pub,
		CreatedAt: 1700000500,
		Kind:      5,
		Tags:      tag.S{tag.New("e", hex.EncodeToString(target.ID))},
		Content:   []byte(""),
	}
	deletion.ID = deletion.GetIDBytes()
	dsig, err := schnorr.Sign(priv, deletion.ID)
	if err != nil {
		t.Fatalf("sign deletion: %v", err)
	}
	deletion.Sig = dsig.Serialize()
	writeFrame(t, c, eventFrame(t, deletion))

	writeFrame(t, c, `["REQ","check",{"kinds":[1]}]`)
	eose := readFrame(t, c)
	if eose[0] != "EOSE" || eose[1] != "check" {
		t.Fatalf("expected straight to EOSE since the kind-1 event was deleted, got %v", eose)
	}
}
