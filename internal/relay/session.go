package relay

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Session is one live terminal, scoped to a single worker. It outlives the
// worker's connection so a reconnecting client can still read the buffer;
// it is removed only by close-session or a reported shell exit.
type Session struct {
	ID           string
	WorkerID     uuid.UUID
	DisplayName  string
	Buffer       *OutputBuffer
	CreatedAt    time.Time
	LastActiveAt time.Time

	subscribers map[string]*Conn // connection id → conn
}

// sessionKey is the identity of a live session: ids are unique within a
// worker, not globally, so two workers may each own a session "s1".
type sessionKey struct {
	workerID  uuid.UUID
	sessionID string
}

// directory is the authoritative map of live sessions, keyed by
// (workerID, sessionID). Mutated only under the hub lock.
type directory struct {
	sessions map[sessionKey]*Session
	bufSize  int
}

func newDirectory(bufSize int) *directory {
	return &directory{
		sessions: make(map[sessionKey]*Session),
		bufSize:  bufSize,
	}
}

// ensure is the idempotent get-or-create. The caller has already normalized
// an empty session id to the requesting connection's id.
func (d *directory) ensure(workerID uuid.UUID, sessionID, displayName string) (*Session, bool) {
	key := sessionKey{workerID, sessionID}
	if s, ok := d.sessions[key]; ok {
		return s, false
	}
	if displayName == "" {
		displayName = sessionID
	}
	now := time.Now()
	s := &Session{
		ID:           sessionID,
		WorkerID:     workerID,
		DisplayName:  displayName,
		Buffer:       NewOutputBuffer(d.bufSize),
		CreatedAt:    now,
		LastActiveAt: now,
		subscribers:  make(map[string]*Conn),
	}
	d.sessions[key] = s
	return s, true
}

func (d *directory) get(workerID uuid.UUID, sessionID string) (*Session, bool) {
	s, ok := d.sessions[sessionKey{workerID, sessionID}]
	return s, ok
}

// find returns every worker's session carrying this id, oldest first, for
// messages that reference a session without naming its worker.
func (d *directory) find(sessionID string) []*Session {
	var matches []*Session
	for key, s := range d.sessions {
		if key.sessionID == sessionID {
			matches = append(matches, s)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].WorkerID.String() < matches[j].WorkerID.String()
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return matches
}

// remove deletes the entry, returning the removed session so the caller can
// notify subscribers.
func (d *directory) remove(workerID uuid.UUID, sessionID string) (*Session, bool) {
	key := sessionKey{workerID, sessionID}
	s, ok := d.sessions[key]
	if !ok {
		return nil, false
	}
	delete(d.sessions, key)
	return s, true
}

// dropConn clears a disconnecting connection from every subscriber set.
// O(active sessions), fine at this scale.
func (d *directory) dropConn(connID string) {
	for _, s := range d.sessions {
		delete(s.subscribers, connID)
	}
}

// sessionView is an immutable projection taken under the hub lock so list
// broadcasts can do their store lookups without holding it.
type sessionView struct {
	ID           string
	WorkerID     uuid.UUID
	DisplayName  string
	CreatedAt    time.Time
	LastActiveAt time.Time
}

func (d *directory) snapshot() []sessionView {
	views := make([]sessionView, 0, len(d.sessions))
	for _, s := range d.sessions {
		views = append(views, sessionView{
			ID:           s.ID,
			WorkerID:     s.WorkerID,
			DisplayName:  s.DisplayName,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.LastActiveAt,
		})
	}
	return views
}
