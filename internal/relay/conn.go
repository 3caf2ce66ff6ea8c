// Package relay implements the WebSocket connection manager (C5), the
// per-connection command dispatcher (C6), the live fan-out (C7), and the
// HTTP listener that routes upgrades to C5 and plain GETs to the NIP-11
// info responder (C9).
//
// Grounded on the teacher's app/{listener,handle-websocket,handle-message,
// handle-event,handle-req,handle-close,publisher,server}.go, adapted to
// this spec's NOTICE-only wire contract and to pkg/sub's explicit
// BACKFILLING/LIVE subscription state (spec.md §9).
package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"lol.mleku.dev/chk"
	"lol.mleku.dev/log"

	"relayd.dev/pkg/sub"
)

// connState mirrors the OPEN/CLOSING/CLOSED states of spec.md §4.6's
// per-connection state machine.
type connState int32

const (
	stateOpen connState = iota
	stateClosing
	stateClosed
)

const (
	// outboxSize bounds the per-connection outbound queue. A slow reader
	// that falls this far behind is disconnected rather than let grow
	// without bound (spec.md §5 backpressure).
	outboxSize = 256
	// writeTimeout bounds a single frame write to a socket.
	writeTimeout = 10 * time.Second
)

// Conn is one live WebSocket connection: its socket, its single-writer
// outbound queue, and its exclusively-owned subscription registry.
type Conn struct {
	ID         uint64
	Remote     string
	Registry   *sub.Registry
	socket     *websocket.Conn
	outbox     chan []byte
	state      atomic.Int32
	writerDone chan struct{}
	closeOnce  sync.Once
}

func newConn(id uint64, remote string, socket *websocket.Conn, maxSub int) *Conn {
	c := &Conn{
		ID:         id,
		Remote:     remote,
		Registry:   sub.New(maxSub),
		socket:     socket,
		outbox:     make(chan []byte, outboxSize),
		writerDone: make(chan struct{}),
	}
	return c
}

// runWriter drains c.outbox and writes each frame to the socket in order,
// the single-writer discipline spec.md §9's design notes call for. It
// exits when the connection closes or the outbox is closed.
func (c *Conn) runWriter(ctx context.Context) {
	defer close(c.writerDone)
	for {
		select {
		case frame, ok := <-c.outbox:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.socket.Write(wctx, websocket.MessageText, frame)
			cancel()
			if chk.E(err) {
				log.D.F("relay: write to %s failed, closing: %v", c.Remote, err)
				c.markClosing()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// enqueue hands frame to the writer, returning false if the connection is
// no longer accepting output (closing/closed or the outbox is saturated).
func (c *Conn) enqueue(frame []byte) bool {
	if connState(c.state.Load()) != stateOpen {
		return false
	}
	select {
	case c.outbox <- frame:
		return true
	default:
		log.E.F("relay: outbox full for %s, dropping connection", c.Remote)
		c.markClosing()
		return false
	}
}

func (c *Conn) markClosing() {
	c.state.CompareAndSwap(int32(stateOpen), int32(stateClosing))
}

func (c *Conn) isOpen() bool {
	return connState(c.state.Load()) == stateOpen
}

// close transitions to CLOSED, stops the writer and closes the socket.
// Idempotent.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(stateClosed))
		close(c.outbox)
		<-c.writerDone
		_ = c.socket.CloseNow()
	})
}
