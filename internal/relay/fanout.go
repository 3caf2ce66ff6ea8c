package relay

import (
	"lol.mleku.dev/log"

	"relayd.dev/pkg/envelope"
	"relayd.dev/pkg/event"
	"relayd.dev/pkg/filter"
)

// fanout implements the Live Fan-Out (C7): for every live connection and
// every LIVE (not BACKFILLING) subscription on it whose filters match ev,
// schedule a delivery. Called with s.publishMu already held by the caller
// (storeAndPublish), which is what gives deliveries to the same socket
// their store-acceptance ordering (spec.md §4.7/§8 property 7).
func (s *Server) fanout(ev *event.E) {
	s.Manager.ForEach(func(c *Conn) {
		if !c.isOpen() {
			return
		}
		matches := func(fs filter.S) bool { return fs.Matches(ev) }
		for _, entry := range c.Registry.Snapshot(matches) {
			res := &envelope.Result{Subscription: entry.ID, E: ev}
			b, err := res.Marshal()
			if err != nil {
				log.E.F("relay: marshal fan-out event: %v", err)
				continue
			}
			if !c.enqueue(b) {
				log.D.F("relay: fan-out delivery to %s dropped, connection closing", c.Remote)
			}
		}
	})
}
