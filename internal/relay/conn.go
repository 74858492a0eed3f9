package relay

import (
	"io"
	"sync"

	"github.com/google/uuid"
)

// MessageSink is the outbound half of a connection. *websocket.Conn satisfies
// it; tests substitute an in-memory capture.
type MessageSink interface {
	WriteJSON(v interface{}) error
}

// Identity tags a connection as a browser client or a worker agent. The
// dispatcher switches on the concrete type.
type Identity interface {
	role() string
}

// ClientIdentity is the decoded bearer token of a browser client.
type ClientIdentity struct {
	UserID   uuid.UUID
	Username string
	Admin    bool
}

func (ClientIdentity) role() string { return "client" }

// WorkerIdentity is the authenticated worker behind an agent connection.
type WorkerIdentity struct {
	WorkerID uuid.UUID
}

func (WorkerIdentity) role() string { return "worker" }

// Conn is one live connection tracked by the registry. Destroyed on
// disconnect; never persisted.
type Conn struct {
	ID       string
	Identity Identity

	sink    MessageSink
	writeMu sync.Mutex
}

func NewConn(identity Identity, sink MessageSink) *Conn {
	return &Conn{
		ID:       uuid.NewString(),
		Identity: identity,
		sink:     sink,
	}
}

// Send serializes writes so concurrent handler turns never interleave frames.
func (c *Conn) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.sink.WriteJSON(v)
}

func (c *Conn) SendError(message string) {
	c.Send(ErrorEvent{Type: "error", Message: message})
}

// Close tears down the underlying socket when the sink supports it.
func (c *Conn) Close() {
	if closer, ok := c.sink.(io.Closer); ok {
		closer.Close()
	}
}
