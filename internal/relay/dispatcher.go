package relay

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"lol.mleku.dev/log"

	"relayd.dev/pkg/accept"
	"relayd.dev/pkg/envelope"
	"relayd.dev/pkg/event"
	"relayd.dev/pkg/nostrcrypto"
	"relayd.dev/pkg/store"
	"relayd.dev/pkg/sub"
)

// dispatch decodes one client text frame and routes it to the matching
// command handler (C6). Unknown verbs, malformed JSON and empty messages
// produce a NOTICE and leave connection state untouched, per spec.md §4.6.
func (s *Server) dispatch(ctx context.Context, c *Conn, raw []byte) {
	verb, err := envelope.Identify(raw)
	if err != nil {
		s.notice(c, "unable to decode command string")
		return
	}
	switch verb {
	case envelope.VerbEvent:
		s.handleEvent(ctx, c, raw)
	case envelope.VerbReq:
		s.handleReq(ctx, c, raw)
	case envelope.VerbClose:
		s.handleClose(c, raw)
	default:
		s.notice(c, fmt.Sprintf("unsupported command %s", verb))
	}
}

// notice enqueues a NOTICE frame, logging (but not failing the caller) if
// the connection can no longer accept output.
func (s *Server) notice(c *Conn, msg string) {
	n := envelope.NewNotice(msg)
	b, err := n.Marshal()
	if err != nil {
		log.E.F("relay: marshal NOTICE: %v", err)
		return
	}
	c.enqueue(b)
}

// handleEvent implements spec.md §4.6's EVENT handling.
func (s *Server) handleEvent(ctx context.Context, c *Conn, raw []byte) {
	rest, err := envelope.Elements(raw)
	if err != nil {
		s.notice(c, "unable to decode command string")
		return
	}
	if len(rest) < 1 {
		s.notice(c, "missing event data")
		return
	}
	ev := new(event.E)
	if err = json.Unmarshal(rest[0], ev); err != nil {
		s.notice(c, "invalid event, pubkey doesn't match sig")
		return
	}
	if err = nostrcrypto.IsValid(ev); err != nil {
		s.notice(c, "invalid event, pubkey doesn't match sig")
		return
	}

	info := accept.ConnInfo{RemoteAddr: c.Remote}
	if err = s.Accept.CheckEvent(info, ev); err != nil {
		var rejected *accept.Rejected
		if errors.As(err, &rejected) {
			s.notice(c, rejected.Reason)
		} else {
			s.notice(c, err.Error())
		}
		return
	}

	if err = s.storeAndPublish(ctx, ev); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicate):
			s.notice(c, fmt.Sprintf("event already exists: %x", ev.ID))
		case errors.Is(err, store.ErrDeleted):
			s.notice(c, fmt.Sprintf("event was deleted: %x", ev.ID))
		case errors.Is(err, store.ErrStale):
			s.notice(c, "a newer replaceable event already exists for this author/kind")
		default:
			log.E.F("relay: store.AddEvent failed for %x: %v", ev.ID, err)
			s.notice(c, "error: could not store event")
		}
		return
	}
}

// storeAndPublish persists ev and fans it out to live subscribers,
// serialized under a single mutex so that the order in which events are
// accepted by the store matches the order the fan-out delivers them
// (spec.md §8 property 7). A minimal implementation may serialize sends;
// this serializes the narrower add-then-publish step instead, which is
// cheaper and still upholds the per-socket ordering guarantee.
func (s *Server) storeAndPublish(ctx context.Context, ev *event.E) error {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()
	if err := s.Store.AddEvent(ctx, ev); err != nil {
		return err
	}
	if ev.Kind.IsDeletion() {
		s.applyDeletion(ctx, ev)
	}
	s.fanout(ev)
	return nil
}

// applyDeletion implements the NIP-09 half of EVENT handling: for every
// `e`-tag on a kind-5 event, ask the store to delete the referenced event
// on this author's behalf (spec.md §4.1 do_delete).
func (s *Server) applyDeletion(ctx context.Context, ev *event.E) {
	for _, t := range ev.Tags.GetAll("e") {
		id, err := hex.DecodeString(string(t.Value()))
		if err != nil || !nostrcrypto.IsEventID(id) {
			continue
		}
		if err = s.Store.DeleteEvent(ctx, id, ev.Pubkey); err != nil {
			log.D.F("relay: NIP-09 delete of %x by %x: %v", id, ev.Pubkey, err)
		}
	}
}

// handleReq implements spec.md §4.6's REQ handling: registry add, then a
// synchronous backfill, then EOSE, then a transition to live delivery.
func (s *Server) handleReq(ctx context.Context, c *Conn, raw []byte) {
	var req envelope.Req
	if err := req.Unmarshal(raw); err != nil {
		s.notice(c, err.Error())
		return
	}

	if _, err := c.Registry.Add(req.Subscription, req.Filters); err != nil {
		switch {
		case errors.Is(err, sub.ErrDuplicate):
			s.notice(c, fmt.Sprintf("REQ new sub_id %s not allowed, already subscribed", req.Subscription))
		case errors.Is(err, sub.ErrLimitExceeded):
			s.notice(c, fmt.Sprintf(
				"REQ new sub_id %s not allowed, already at max subs=%d",
				req.Subscription, c.Registry.Max(),
			))
		default:
			s.notice(c, err.Error())
		}
		return
	}

	results, err := s.Store.QueryEvents(ctx, req.Filters)
	if err != nil {
		log.E.F("relay: QueryEvents for sub %s: %v", req.Subscription, err)
		s.notice(c, "error: could not query stored events")
	} else {
		for _, ev := range results {
			if !c.isOpen() {
				// connection slammed shut mid-backfill: stop, the
				// registry for it is about to be torn down anyway.
				return
			}
			res := &envelope.Result{Subscription: req.Subscription, E: ev}
			b, merr := res.Marshal()
			if merr != nil {
				log.E.F("relay: marshal backfill event: %v", merr)
				continue
			}
			if !c.enqueue(b) {
				return
			}
		}
	}

	if s.EnableEOSE {
		eose := &envelope.EOSE{Subscription: req.Subscription}
		b, merr := eose.Marshal()
		if merr == nil {
			c.enqueue(b)
		}
	}
	// Only now is the subscription eligible for live delivery (spec.md
	// §4.6 step 6, §9 backfill-before-live handshake).
	c.Registry.MarkLive(req.Subscription)
}

// handleClose implements spec.md §4.6's CLOSE handling.
func (s *Server) handleClose(c *Conn, raw []byte) {
	var cl envelope.Close
	if err := cl.Unmarshal(raw); err != nil {
		s.notice(c, err.Error())
		return
	}
	if err := c.Registry.Remove(cl.Subscription); err != nil {
		s.notice(c, "not subscribed")
		return
	}
	s.notice(c, fmt.Sprintf("CLOSE sub_id %s - success", cl.Subscription))
}
