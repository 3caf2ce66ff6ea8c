package relay

import "testing"

func TestConnEnqueueSucceedsWhileOpen(t *testing.T) {
	c := &Conn{outbox: make(chan []byte, 2)}
	if !c.isOpen() {
		t.Fatal("expected a fresh conn to be open")
	}
	if !c.enqueue([]byte("a")) {
		t.Fatal("expected enqueue to succeed on an open connection")
	}
}

func TestConnEnqueueRejectsOnceClosing(t *testing.T) {
	c := &Conn{outbox: make(chan []byte, 2)}
	c.markClosing()
	if c.isOpen() {
		t.Fatal("expected a closing conn to report not open")
	}
	if c.enqueue([]byte("a")) {
		t.Fatal("expected enqueue to fail once closing")
	}
}

func TestConnEnqueueDropsAndClosesOnFullOutbox(t *testing.T) {
	c := &Conn{outbox: make(chan []byte, 1)}
	if !c.enqueue([]byte("a")) {
		t.Fatal("expected first enqueue into an empty outbox to succeed")
	}
	if c.enqueue([]byte("b")) {
		t.Fatal("expected enqueue to fail when the outbox is saturated")
	}
	if c.isOpen() {
		t.Fatal("expected a saturated outbox to mark the connection closing")
	}
}
