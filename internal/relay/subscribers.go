package relay

// subscribe adds a client connection to the session's watcher set.
// Idempotent: re-adding an existing subscriber is a no-op.
func (s *Session) subscribe(c *Conn) {
	s.subscribers[c.ID] = c
}

func (s *Session) unsubscribe(connID string) {
	delete(s.subscribers, connID)
}

// subscriberConns snapshots the current watcher set so events can be written
// outside the hub lock. An empty set means the event is silently dropped;
// output produced while nobody watches survives only in the session buffer.
func (s *Session) subscriberConns() []*Conn {
	conns := make([]*Conn, 0, len(s.subscribers))
	for _, c := range s.subscribers {
		conns = append(conns, c)
	}
	return conns
}

func fanout(conns []*Conn, event interface{}) {
	for _, c := range conns {
		c.Send(event)
	}
}
