package runtime

import (
	"context"
	"sync"
	"time"

	"qna-live/domain"
	"qna-live/errors"
)

// SessionRecord is the lifecycle side of a session: its state and the
// rooms it intends to be in. The intent survives a transport drop so a
// resume can replay joins; the active membership itself lives in the
// Registry and dies with the connection.
type SessionRecord struct {
	ID       string
	UserID   string
	State    domain.SessionState
	Rooms    Set
	LastSeen time.Time
}

// SessionManager owns connect / disconnect / resume / terminate
// transitions. Disconnected records are retained for a window so a
// reconnecting client can get its room list replayed, then reaped.
type SessionManager struct {
	mu        sync.Mutex
	retention time.Duration
	records   map[string]*SessionRecord
}

func NewSessionManager(retention time.Duration) *SessionManager {
	return &SessionManager{
		retention: retention,
		records:   make(map[string]*SessionRecord),
	}
}

// Connect registers a freshly authenticated session. The record walks
// the declared lifecycle: it is born Connecting and the successful
// handshake moves it to Authenticated.
func (m *SessionManager) Connect(sessionID, userID string, now time.Time) *SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	record := &SessionRecord{
		ID:       sessionID,
		UserID:   userID,
		State:    domain.Connecting,
		Rooms:    make(Set),
		LastSeen: now,
	}
	advance(record, domain.Authenticated)
	m.records[sessionID] = record
	return record
}

// advance applies a lifecycle transition only when the state machine
// allows it.
func advance(record *SessionRecord, to domain.SessionState) {
	if domain.CanTransition(record.State, to) {
		record.State = to
	}
}

// TrackJoin remembers the intent so a later resume can replay it.
func (m *SessionManager) TrackJoin(sessionID string, roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[sessionID]; ok {
		record.Rooms[string(roomID)] = struct{}{}
		record.State = domain.Active
	}
}

func (m *SessionManager) TrackLeave(sessionID string, roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[sessionID]; ok {
		delete(record.Rooms, string(roomID))
	}
}

// Disconnect marks a transport-level drop. The room intent is kept.
func (m *SessionManager) Disconnect(sessionID string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[sessionID]
	if !ok {
		return
	}
	advance(record, domain.Disconnected)
	record.LastSeen = now
}

// Resume re-authenticates a disconnected session and returns the rooms
// to replay. The caller re-issues Join per room; rooms that fail the
// membership check are dropped from the retained set via DropRoom.
func (m *SessionManager) Resume(sessionID, userID string, now time.Time) ([]domain.RoomID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[sessionID]
	if !ok || record.State == domain.Terminated {
		return nil, errors.ErrSessionUnknown
	}
	if record.UserID != userID {
		return nil, errors.ErrAuth
	}

	// Walk the lifecycle back to Authenticated. A fast resume may
	// arrive before the old connection's drop was noticed; the record
	// then passes through Disconnected on its way to Reconnecting.
	advance(record, domain.Disconnected)
	advance(record, domain.Reconnecting)
	advance(record, domain.Authenticated)
	record.LastSeen = now

	rooms := make([]domain.RoomID, 0, len(record.Rooms))
	for roomID := range record.Rooms {
		rooms = append(rooms, domain.RoomID(roomID))
	}
	return rooms, nil
}

// DropRoom removes a room from the retained set after a failed replay
// (room deleted, membership revoked). It will not be retried on future
// reconnects.
func (m *SessionManager) DropRoom(sessionID string, roomID domain.RoomID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[sessionID]; ok {
		delete(record.Rooms, string(roomID))
	}
}

// Terminate ends the lifecycle: explicit logout or auth revocation.
// The record is removed immediately, nothing is replayable afterwards.
func (m *SessionManager) Terminate(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if record, ok := m.records[sessionID]; ok {
		record.State = domain.Terminated
		delete(m.records, sessionID)
	}
}

// State reports the current lifecycle state of a session.
func (m *SessionManager) State(sessionID string) (domain.SessionState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[sessionID]
	if !ok {
		return domain.Terminated, false
	}
	return record.State, true
}

// Run makes the manager a supervised worker reaping expired records.
func (m *SessionManager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.retention)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			m.Reap(now)
		}
	}
}

// Reap drops disconnected records whose retention window elapsed.
func (m *SessionManager) Reap(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	reaped := 0
	for id, record := range m.records {
		if record.State == domain.Disconnected && now.Sub(record.LastSeen) > m.retention {
			delete(m.records, id)
			reaped++
		}
	}
	return reaped
}
