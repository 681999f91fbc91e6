package runtime

import (
	"sync"

	"qna-live/contract"
	"qna-live/domain"
)

type Set map[string]struct{}

// Registry holds the ephemeral side of room membership: which sessions
// are connected right now and which rooms each has joined. None of it
// is persisted; a disconnect wipes the session everywhere.
type Registry struct {
	mu           sync.RWMutex
	sinks        map[string]contract.EventSink // sessionID -> sink
	sessionUser  map[string]string             // sessionID -> userID
	userSessions map[string]Set                // userID -> sessionIDs
	roomSessions map[domain.RoomID]Set         // roomID -> sessionIDs
}

func NewRegistry() *Registry {
	return &Registry{
		sinks:        make(map[string]contract.EventSink),
		sessionUser:  make(map[string]string),
		userSessions: make(map[string]Set),
		roomSessions: make(map[domain.RoomID]Set),
	}
}

// Register announces a connected session and its delivery sink.
// Rooms are joined separately; a freshly registered session receives
// only point-to-point notifications.
func (r *Registry) Register(sessionID, userID string, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sinks[sessionID] = sink
	r.sessionUser[sessionID] = userID
	if _, ok := r.userSessions[userID]; !ok {
		r.userSessions[userID] = make(Set)
	}
	r.userSessions[userID][sessionID] = struct{}{}
}

// Unregister removes a session from the directory and from every room
// it had joined, so no fan-out target dangles after a disconnect.
// Safe to call concurrently with an in-flight fan-out: deliveries use a
// snapshot and sends to a removed session are best-effort discarded.
func (r *Registry) Unregister(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregisterLocked(sessionID)
}

// UnregisterSink removes the session only while the given sink is still
// the registered one. A resume re-registers the session with the new
// connection's sink, so the old connection's late teardown must not
// tear down its successor. Reports whether the removal happened.
func (r *Registry) UnregisterSink(sessionID string, sink contract.EventSink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.sinks[sessionID]
	if !ok || current != sink {
		return false
	}
	r.unregisterLocked(sessionID)
	return true
}

func (r *Registry) unregisterLocked(sessionID string) {
	delete(r.sinks, sessionID)

	if userID, ok := r.sessionUser[sessionID]; ok {
		delete(r.sessionUser, sessionID)
		if sessions, ok := r.userSessions[userID]; ok {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(r.userSessions, userID)
			}
		}
	}

	for roomID, sessions := range r.roomSessions {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(r.roomSessions, roomID)
		}
	}
}

// Join adds a session to a room's active set. Idempotent: joining a
// room twice leaves the same membership as joining it once.
func (r *Registry) Join(sessionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sinks[sessionID]; !ok {
		return
	}
	if _, ok := r.roomSessions[roomID]; !ok {
		r.roomSessions[roomID] = make(Set)
	}
	r.roomSessions[roomID][sessionID] = struct{}{}
}

// Leave is idempotent removal; leaving a room the session never joined
// is a no-op. Other rooms are unaffected.
func (r *Registry) Leave(sessionID string, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sessions, ok := r.roomSessions[roomID]; ok {
		delete(sessions, sessionID)
		if len(sessions) == 0 {
			delete(r.roomSessions, roomID)
		}
	}
}

func (r *Registry) Joined(sessionID string, roomID domain.RoomID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions, ok := r.roomSessions[roomID]
	if !ok {
		return false
	}
	_, ok = sessions[sessionID]
	return ok
}

// SinksForRoom snapshots the active delivery targets of a room.
// Returns nil if the room has no connected members.
func (r *Registry) SinksForRoom(roomID domain.RoomID) []contract.EventSink {
	return r.SinksForRoomExcept(roomID, "")
}

// SinksForRoomExcept snapshots a room's sinks minus one session,
// typically the publisher.
func (r *Registry) SinksForRoomExcept(roomID domain.RoomID, sessionID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions, ok := r.roomSessions[roomID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for id := range sessions {
		if id == sessionID {
			continue
		}
		if sink, exists := r.sinks[id]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// SinksForUser returns the sinks of every session a user has open.
// A user may have zero, one, or several.
func (r *Registry) SinksForUser(userID string) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions, ok := r.userSessions[userID]
	if !ok {
		return nil
	}
	var sinks []contract.EventSink
	for id := range sessions {
		if sink, exists := r.sinks[id]; exists {
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

// Sessions reports the number of connected sessions, for the heartbeat.
func (r *Registry) Sessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sinks)
}

// Rooms reports the number of rooms with at least one connected member.
func (r *Registry) Rooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.roomSessions)
}
