package relay

import "time"

// ClientMessage is sent from a browser client to the relay.
type ClientMessage struct {
	Type        string `json:"type"`                  // register, subscribe, join-session, leave-session, execute, resize, rename-session, close-session, get-session-output
	WorkerID    string `json:"workerId,omitempty"`    // target worker
	SessionID   string `json:"sessionId,omitempty"`   // target session; empty means the connection's own id
	DisplayName string `json:"displayName,omitempty"` // name hint (for "join-session")
	Command     string `json:"command,omitempty"`     // input to run (for "execute")
	Cols        int    `json:"cols,omitempty"`        // terminal columns (for "resize")
	Rows        int    `json:"rows,omitempty"`        // terminal rows (for "resize")
	NewName     string `json:"newName,omitempty"`     // new display name (for "rename-session")
}

// WorkerMessage is sent from a worker agent to the relay.
type WorkerMessage struct {
	Type      string `json:"type"`                // output, session-shell-exited, heartbeat
	SessionID string `json:"sessionId,omitempty"` // originating session; empty means the worker connection's own id
	Output    string `json:"output,omitempty"`    // terminal output (for "output")
}

// WorkerCommand is sent from the relay to a worker agent.
type WorkerCommand struct {
	Type      string `json:"type"` // execute, resize, kill-session
	ClientID  string `json:"clientId,omitempty"`
	SessionID string `json:"sessionId"`
	Command   string `json:"command,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
}

// WorkerSummary is one entry of a worker-list event, annotated with the
// receiving client's effective permission.
type WorkerSummary struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	LastSeen   time.Time `json:"lastSeen"`
	Permission string    `json:"permission"`
}

// SessionSummary is one entry of a session-list event. The output buffer is
// intentionally excluded to bound payload size.
type SessionSummary struct {
	ID           string    `json:"id"`
	WorkerName   string    `json:"workerName"`
	WorkerKey    string    `json:"workerKey"`
	DisplayName  string    `json:"displayName"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

type WorkerListEvent struct {
	Type    string          `json:"type"` // "worker-list"
	Workers []WorkerSummary `json:"workers"`
}

type SessionListEvent struct {
	Type     string           `json:"type"` // "session-list"
	Sessions []SessionSummary `json:"sessions"`
}

type OutputEvent struct {
	Type      string `json:"type"` // "output"
	WorkerID  string `json:"workerId"`
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

type SessionClosedEvent struct {
	Type      string `json:"type"` // "session-closed"
	SessionID string `json:"sessionId"`
}

type SessionOutputEvent struct {
	Type      string `json:"type"` // "session-output", ack of get-session-output
	SessionID string `json:"sessionId"`
	Output    string `json:"output"`
}

type ErrorEvent struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
