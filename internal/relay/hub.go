package relay

import (
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexusterm/server/internal/share"
	"github.com/nexusterm/server/internal/worker"
)

// ErrNotFound is returned by Store implementations for missing records.
var ErrNotFound = errors.New("record not found")

// Hub is the session relay and access-control broker. It owns the connection
// registry, the session directory, and the subscriber sets. A single mutex
// guards all three so no multi-step operation can interleave; store lookups
// always happen outside the lock.
type Hub struct {
	store Store

	mu      sync.Mutex
	clients map[string]*Conn
	workers map[uuid.UUID]*Conn
	dir     *directory
}

func NewHub(store Store, bufSize int) *Hub {
	return &Hub{
		store:   store,
		clients: make(map[string]*Conn),
		workers: make(map[uuid.UUID]*Conn),
		dir:     newDirectory(bufSize),
	}
}

// RegisterClient adds an authenticated browser connection to the registry.
func (h *Hub) RegisterClient(identity ClientIdentity, sink MessageSink) *Conn {
	c := NewConn(identity, sink)
	h.mu.Lock()
	h.clients[c.ID] = c
	h.mu.Unlock()
	return c
}

// RegisterWorker adds an authenticated worker connection. A new connection
// for the same worker id silently supersedes the previous one; the stale
// socket is closed.
func (h *Hub) RegisterWorker(workerID uuid.UUID, sink MessageSink) *Conn {
	c := NewConn(WorkerIdentity{WorkerID: workerID}, sink)
	h.mu.Lock()
	prev := h.workers[workerID]
	h.workers[workerID] = c
	h.mu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return c
}

// Unregister removes the connection from the registry and from every
// subscriber set it belonged to. Sessions are deliberately left in place.
// Returns true when a worker connection still owned its registry slot, so
// the caller knows to mark the worker offline; a superseded connection's
// late disconnect returns false.
func (h *Hub) Unregister(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dir.dropConn(c.ID)
	switch ident := c.Identity.(type) {
	case ClientIdentity:
		delete(h.clients, c.ID)
	case WorkerIdentity:
		if h.workers[ident.WorkerID] == c {
			delete(h.workers, ident.WorkerID)
			return true
		}
	}
	return false
}

// WorkerOnline reports whether the worker has a live connection.
func (h *Hub) WorkerOnline(workerID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.workers[workerID] != nil
}

// DisconnectWorker severs a worker's live connection, if any. Used when the
// worker record is deleted.
func (h *Hub) DisconnectWorker(workerID uuid.UUID) {
	h.mu.Lock()
	c := h.workers[workerID]
	delete(h.workers, workerID)
	h.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

// HandleClientMessage dispatches one inbound client event. Recoverable
// failures become an error event on the originating connection only.
func (h *Hub) HandleClientMessage(conn *Conn, msg ClientMessage) {
	ident, ok := conn.Identity.(ClientIdentity)
	if !ok {
		conn.SendError("not a client connection")
		return
	}

	var err *EventError
	switch msg.Type {
	case "register":
		h.RefreshClient(conn)
	case "subscribe":
		err = h.handleSubscribe(conn, ident, msg)
	case "join-session":
		err = h.handleJoin(conn, ident, msg)
	case "leave-session":
		h.handleLeave(conn, msg)
	case "execute":
		err = h.handleExecute(conn, ident, msg)
	case "resize":
		err = h.handleResize(conn, ident, msg)
	case "rename-session":
		err = h.handleRename(conn, ident, msg)
	case "close-session":
		err = h.handleClose(conn, ident, msg)
	case "get-session-output":
		err = h.handleGetOutput(conn, ident, msg)
	default:
		err = invalid("unknown message type: " + msg.Type)
	}

	if err != nil {
		log.Printf("relay: client %s %s: %s", conn.ID, msg.Type, err.Message)
		conn.SendError(err.Message)
	}
}

// HandleWorkerMessage dispatches one inbound worker event.
func (h *Hub) HandleWorkerMessage(conn *Conn, msg WorkerMessage) {
	ident, ok := conn.Identity.(WorkerIdentity)
	if !ok {
		conn.SendError("not a worker connection")
		return
	}

	switch msg.Type {
	case "heartbeat":
		if err := h.store.SetWorkerStatus(ident.WorkerID, worker.StatusOnline, time.Now()); err != nil {
			log.Printf("relay: heartbeat for worker %s: %v", ident.WorkerID, err)
		}
	case "output":
		h.handleWorkerOutput(conn, ident, msg)
	case "session-shell-exited":
		h.handleShellExited(conn, ident, msg)
	default:
		log.Printf("relay: worker %s sent unknown message type %q", ident.WorkerID, msg.Type)
	}
}

func (h *Hub) handleSubscribe(conn *Conn, ident ClientIdentity, msg ClientMessage) *EventError {
	wid, eerr := parseWorkerID(msg.WorkerID)
	if eerr != nil {
		return eerr
	}
	if eerr := h.checkWorker(wid); eerr != nil {
		return eerr
	}
	if eerr := h.checkAccess(ident.UserID, wid, share.PermissionView); eerr != nil {
		return eerr
	}
	h.RefreshClient(conn)
	return nil
}

func (h *Hub) handleJoin(conn *Conn, ident ClientIdentity, msg ClientMessage) *EventError {
	sid := normalizeSessionID(msg.SessionID, conn)

	var wid uuid.UUID
	if msg.WorkerID != "" {
		parsed, eerr := parseWorkerID(msg.WorkerID)
		if eerr != nil {
			return eerr
		}
		if eerr := h.checkWorker(parsed); eerr != nil {
			return eerr
		}
		if eerr := h.checkAccess(ident.UserID, parsed, share.PermissionView); eerr != nil {
			return eerr
		}
		wid = parsed
	} else {
		sess, eerr := h.resolveSession(ident.UserID, sid, share.PermissionView)
		if eerr != nil {
			if eerr.Kind == KindNotFound {
				// Nothing live shares this id and joining cannot create
				// a session without a worker.
				return invalid("workerId is required")
			}
			return eerr
		}
		wid = sess.WorkerID
	}

	name := h.lookupName(wid, sid, msg.DisplayName)

	h.mu.Lock()
	sess, created := h.dir.ensure(wid, sid, name)
	sess.subscribe(conn)
	sess.LastActiveAt = time.Now()
	replay := sess.Buffer.String()
	h.mu.Unlock()

	if replay != "" {
		conn.Send(OutputEvent{Type: "output", WorkerID: wid.String(), SessionID: sid, Data: replay})
	}
	if created {
		h.BroadcastLists()
	}
	return nil
}

// handleLeave drops the connection from every session carrying the id; no
// access check because leaving reveals nothing.
func (h *Hub) handleLeave(conn *Conn, msg ClientMessage) {
	sid := normalizeSessionID(msg.SessionID, conn)
	h.mu.Lock()
	for _, sess := range h.dir.find(sid) {
		sess.unsubscribe(conn.ID)
	}
	h.mu.Unlock()
}

func (h *Hub) handleExecute(conn *Conn, ident ClientIdentity, msg ClientMessage) *EventError {
	wid, eerr := parseWorkerID(msg.WorkerID)
	if eerr != nil {
		return eerr
	}
	if eerr := h.checkWorker(wid); eerr != nil {
		return eerr
	}
	if eerr := h.checkAccess(ident.UserID, wid, share.PermissionControl); eerr != nil {
		return eerr
	}

	sid := normalizeSessionID(msg.SessionID, conn)
	name := h.lookupName(wid, sid, "")

	h.mu.Lock()
	wconn, online := h.workers[wid]
	if !online {
		h.mu.Unlock()
		return offline("Worker offline")
	}
	sess, created := h.dir.ensure(wid, sid, name)
	sess.subscribe(conn)
	sess.LastActiveAt = time.Now()
	h.mu.Unlock()

	wconn.Send(WorkerCommand{Type: "execute", ClientID: conn.ID, SessionID: sid, Command: msg.Command})
	if created {
		h.BroadcastLists()
	}
	return nil
}

func (h *Hub) handleResize(conn *Conn, ident ClientIdentity, msg ClientMessage) *EventError {
	wid, eerr := parseWorkerID(msg.WorkerID)
	if eerr != nil {
		return eerr
	}
	if msg.Cols <= 0 || msg.Rows <= 0 {
		return invalid("cols and rows are required")
	}
	if eerr := h.checkWorker(wid); eerr != nil {
		return eerr
	}
	if eerr := h.checkAccess(ident.UserID, wid, share.PermissionControl); eerr != nil {
		return eerr
	}

	sid := normalizeSessionID(msg.SessionID, conn)
	name := h.lookupName(wid, sid, "")

	h.mu.Lock()
	wconn, online := h.workers[wid]
	if !online {
		h.mu.Unlock()
		return offline("Worker offline")
	}
	sess, created := h.dir.ensure(wid, sid, name)
	sess.subscribe(conn)
	sess.LastActiveAt = time.Now()
	h.mu.Unlock()

	wconn.Send(WorkerCommand{Type: "resize", ClientID: conn.ID, SessionID: sid, Cols: msg.Cols, Rows: msg.Rows})
	if created {
		h.BroadcastLists()
	}
	return nil
}

func (h *Hub) handleRename(conn *Conn, ident ClientIdentity, msg ClientMessage) *EventError {
	if msg.NewName == "" {
		return invalid("newName is required")
	}
	sid := normalizeSessionID(msg.SessionID, conn)

	target, eerr := h.resolveTarget(ident, msg, sid, share.PermissionControl)
	if eerr != nil {
		return eerr
	}
	wid := target.WorkerID

	h.mu.Lock()
	if sess, ok := h.dir.get(wid, sid); ok {
		sess.DisplayName = msg.NewName
		sess.LastActiveAt = time.Now()
	}
	h.mu.Unlock()

	if err := h.store.SaveSessionName(wid, sid, msg.NewName); err != nil {
		log.Printf("relay: persist rename of session %s: %v", sid, err)
	}
	h.BroadcastLists()
	return nil
}

func (h *Hub) handleClose(conn *Conn, ident ClientIdentity, msg ClientMessage) *EventError {
	sid := normalizeSessionID(msg.SessionID, conn)

	target, eerr := h.resolveTarget(ident, msg, sid, share.PermissionControl)
	if eerr != nil {
		return eerr
	}

	h.mu.Lock()
	sess, ok := h.dir.remove(target.WorkerID, sid)
	if !ok {
		// lost a race with a shell-exited report
		h.mu.Unlock()
		return nil
	}
	subs := sess.subscriberConns()
	wconn := h.workers[sess.WorkerID]
	h.mu.Unlock()

	// Fire-and-forget: no acknowledgement, no retry on worker reconnect.
	if wconn != nil {
		wconn.Send(WorkerCommand{Type: "kill-session", SessionID: sid})
	}
	fanout(subs, SessionClosedEvent{Type: "session-closed", SessionID: sid})
	h.BroadcastLists()
	return nil
}

func (h *Hub) handleGetOutput(conn *Conn, ident ClientIdentity, msg ClientMessage) *EventError {
	sid := normalizeSessionID(msg.SessionID, conn)

	target, eerr := h.resolveTarget(ident, msg, sid, share.PermissionView)
	if eerr != nil {
		if eerr.Kind == KindNotFound {
			// Unknown session reads back as empty rather than erroring.
			conn.Send(SessionOutputEvent{Type: "session-output", SessionID: sid, Output: ""})
			return nil
		}
		return eerr
	}

	h.mu.Lock()
	output := target.Buffer.String()
	h.mu.Unlock()

	conn.Send(SessionOutputEvent{Type: "session-output", SessionID: sid, Output: output})
	return nil
}

func (h *Hub) handleWorkerOutput(conn *Conn, ident WorkerIdentity, msg WorkerMessage) {
	sid := normalizeSessionID(msg.SessionID, conn)
	name := h.lookupName(ident.WorkerID, sid, "")

	h.mu.Lock()
	sess, created := h.dir.ensure(ident.WorkerID, sid, name)
	sess.Buffer.Append(msg.Output)
	sess.LastActiveAt = time.Now()
	subs := sess.subscriberConns()
	h.mu.Unlock()

	fanout(subs, OutputEvent{
		Type:      "output",
		WorkerID:  ident.WorkerID.String(),
		SessionID: sid,
		Data:      msg.Output,
	})
	if created {
		h.BroadcastLists()
	}
}

// handleShellExited removes the reporting worker's own session only; another
// worker's session under the same id is untouched.
func (h *Hub) handleShellExited(conn *Conn, ident WorkerIdentity, msg WorkerMessage) {
	sid := normalizeSessionID(msg.SessionID, conn)

	h.mu.Lock()
	sess, ok := h.dir.remove(ident.WorkerID, sid)
	if !ok {
		h.mu.Unlock()
		return
	}
	subs := sess.subscriberConns()
	h.mu.Unlock()

	fanout(subs, SessionClosedEvent{Type: "session-closed", SessionID: sid})
	h.BroadcastLists()
}

// BroadcastLists recomputes and pushes the worker and session lists to every
// connected client. Full recompute-and-push; list sizes are small.
func (h *Hub) BroadcastLists() {
	h.mu.Lock()
	clients := make([]*Conn, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	views := h.dir.snapshot()
	h.mu.Unlock()

	for _, c := range clients {
		h.pushLists(c, views)
	}
}

// RefreshClient pushes current lists to a single client connection.
func (h *Hub) RefreshClient(conn *Conn) {
	h.mu.Lock()
	views := h.dir.snapshot()
	h.mu.Unlock()
	h.pushLists(conn, views)
}

func (h *Hub) pushLists(conn *Conn, views []sessionView) {
	ident, ok := conn.Identity.(ClientIdentity)
	if !ok {
		return
	}

	access, err := h.store.AccessibleWorkers(ident.UserID)
	if err != nil {
		log.Printf("relay: list workers for user %s: %v", ident.UserID, err)
		return
	}

	workers := make([]WorkerSummary, 0, len(access))
	byWorker := make(map[uuid.UUID]WorkerAccess, len(access))
	for _, wa := range access {
		byWorker[wa.Worker.ID] = wa
		workers = append(workers, WorkerSummary{
			ID:         wa.Worker.ID.String(),
			Name:       wa.Worker.Name,
			Status:     string(wa.Worker.Status),
			LastSeen:   wa.Worker.LastSeenAt,
			Permission: string(wa.Permission),
		})
	}

	sessions := make([]SessionSummary, 0, len(views))
	for _, v := range views {
		wa, visible := byWorker[v.WorkerID]
		if !visible {
			continue
		}
		sessions = append(sessions, SessionSummary{
			ID:           v.ID,
			WorkerName:   wa.Worker.Name,
			WorkerKey:    v.WorkerID.String(),
			DisplayName:  v.DisplayName,
			CreatedAt:    v.CreatedAt,
			LastActiveAt: v.LastActiveAt,
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	conn.Send(WorkerListEvent{Type: "worker-list", Workers: workers})
	conn.Send(SessionListEvent{Type: "session-list", Sessions: sessions})
}

// checkWorker verifies the worker record exists.
func (h *Hub) checkWorker(workerID uuid.UUID) *EventError {
	_, err := h.store.WorkerByID(workerID)
	if errors.Is(err, ErrNotFound) {
		return notFound("Unknown worker")
	}
	if err != nil {
		log.Printf("relay: look up worker %s: %v", workerID, err)
		return internal("internal error")
	}
	return nil
}

func (h *Hub) checkAccess(userID, workerID uuid.UUID, required share.Permission) *EventError {
	ok, err := h.store.HasAccess(userID, workerID, required)
	if err != nil {
		log.Printf("relay: access check for user %s on worker %s: %v", userID, workerID, err)
		return internal("internal error")
	}
	if !ok {
		return denied("Access denied to worker")
	}
	return nil
}

// resolveSession picks the live session a bare session id refers to: the
// oldest one, across workers, that the user can reach at the required
// permission. Session ids are only unique within a worker, so a client that
// omits workerId gets the match its grants allow rather than whichever
// worker happened to claim the id first.
func (h *Hub) resolveSession(userID uuid.UUID, sessionID string, required share.Permission) (*Session, *EventError) {
	h.mu.Lock()
	matches := h.dir.find(sessionID)
	h.mu.Unlock()

	if len(matches) == 0 {
		return nil, notFound("Session not found")
	}
	for _, sess := range matches {
		ok, err := h.store.HasAccess(userID, sess.WorkerID, required)
		if err != nil {
			log.Printf("relay: access check for user %s on worker %s: %v", userID, sess.WorkerID, err)
			return nil, internal("internal error")
		}
		if ok {
			return sess, nil
		}
	}
	return nil, denied("Access denied to worker")
}

// resolveTarget locates the session a client message addresses. An explicit
// workerId pins the lookup to that worker's session; without one the id is
// resolved across workers via resolveSession.
func (h *Hub) resolveTarget(ident ClientIdentity, msg ClientMessage, sessionID string, required share.Permission) (*Session, *EventError) {
	if msg.WorkerID == "" {
		return h.resolveSession(ident.UserID, sessionID, required)
	}

	wid, eerr := parseWorkerID(msg.WorkerID)
	if eerr != nil {
		return nil, eerr
	}
	if eerr := h.checkWorker(wid); eerr != nil {
		return nil, eerr
	}
	if eerr := h.checkAccess(ident.UserID, wid, required); eerr != nil {
		return nil, eerr
	}

	h.mu.Lock()
	sess, ok := h.dir.get(wid, sessionID)
	h.mu.Unlock()
	if !ok {
		return nil, notFound("Session not found")
	}
	return sess, nil
}

// lookupName resolves the display name for a session about to be created:
// the caller's hint wins, then the durable mirror, then the session id.
func (h *Hub) lookupName(workerID uuid.UUID, sessionID, hint string) string {
	if hint != "" {
		return hint
	}
	h.mu.Lock()
	_, exists := h.dir.get(workerID, sessionID)
	h.mu.Unlock()
	if exists {
		return ""
	}
	name, err := h.store.SessionName(workerID, sessionID)
	if err != nil {
		return ""
	}
	return name
}

// normalizeSessionID backfills an absent session id with the connection's
// own id, giving every anonymous session a unique default.
func normalizeSessionID(sid string, conn *Conn) string {
	if sid == "" {
		return conn.ID
	}
	return sid
}

func parseWorkerID(s string) (uuid.UUID, *EventError) {
	if s == "" {
		return uuid.Nil, invalid("workerId is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, invalid("invalid workerId")
	}
	return id, nil
}
