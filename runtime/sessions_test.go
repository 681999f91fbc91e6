package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"qna-live/domain"
	"qna-live/errors"
)

func TestSessionManager_Resume_Replays_Retained_Rooms(t *testing.T) {
	req := require.New(t)
	manager := NewSessionManager(time.Minute)
	now := time.Now().UTC()

	// Given a session that joined two rooms and then dropped
	manager.Connect("s1", "alice", now)
	manager.TrackJoin("s1", domain.RoomID("room-a"))
	manager.TrackJoin("s1", domain.RoomID("room-b"))
	manager.Disconnect("s1", now)

	state, ok := manager.State("s1")
	req.True(ok)
	req.Equal(domain.Disconnected, state)

	// When the same user resumes
	rooms, err := manager.Resume("s1", "alice", now.Add(10*time.Second))

	// Then the retained room intent is replayed
	req.NoError(err)
	req.ElementsMatch([]domain.RoomID{"room-a", "room-b"}, rooms)

	state, ok = manager.State("s1")
	req.True(ok)
	req.Equal(domain.Authenticated, state)
}

func TestSessionManager_Fast_Resume_Walks_The_Lifecycle(t *testing.T) {
	req := require.New(t)
	manager := NewSessionManager(time.Minute)
	now := time.Now().UTC()

	// Given a freshly connected session
	manager.Connect("s1", "alice", now)
	state, ok := manager.State("s1")
	req.True(ok)
	req.Equal(domain.Authenticated, state)

	// And an active one whose drop was never noticed
	manager.TrackJoin("s1", domain.RoomID("room-a"))
	state, _ = manager.State("s1")
	req.Equal(domain.Active, state)

	// When the client re-handshakes without a prior disconnect
	rooms, err := manager.Resume("s1", "alice", now.Add(time.Second))

	// Then the resume lands back in Authenticated with the rooms intact
	req.NoError(err)
	req.Equal([]domain.RoomID{"room-a"}, rooms)
	state, _ = manager.State("s1")
	req.Equal(domain.Authenticated, state)
}

func TestSessionManager_Resume_Rejects_Foreign_User(t *testing.T) {
	req := require.New(t)
	manager := NewSessionManager(time.Minute)
	now := time.Now().UTC()

	// Given alice's disconnected session
	manager.Connect("s1", "alice", now)
	manager.Disconnect("s1", now)

	// When bob tries to resume it
	_, err := manager.Resume("s1", "bob", now)

	// Then the resume is refused
	req.ErrorIs(err, errors.ErrAuth)
}

func TestSessionManager_Resume_Unknown_Session(t *testing.T) {
	req := require.New(t)
	manager := NewSessionManager(time.Minute)

	// When resuming a session that was never connected
	_, err := manager.Resume("ghost", "alice", time.Now().UTC())

	// Then
	req.ErrorIs(err, errors.ErrSessionUnknown)
}

func TestSessionManager_DropRoom_Is_Permanent(t *testing.T) {
	req := require.New(t)
	manager := NewSessionManager(time.Minute)
	now := time.Now().UTC()

	// Given a retained room dropped after a failed replay
	manager.Connect("s1", "alice", now)
	manager.TrackJoin("s1", domain.RoomID("room-a"))
	manager.TrackJoin("s1", domain.RoomID("revoked"))
	manager.Disconnect("s1", now)
	manager.DropRoom("s1", domain.RoomID("revoked"))

	// When resuming again
	rooms, err := manager.Resume("s1", "alice", now)

	// Then the dropped room is not retried
	req.NoError(err)
	req.Equal([]domain.RoomID{"room-a"}, rooms)
}

func TestSessionManager_Terminate_Forbids_Resume(t *testing.T) {
	req := require.New(t)
	manager := NewSessionManager(time.Minute)
	now := time.Now().UTC()

	// Given a terminated session (logout)
	manager.Connect("s1", "alice", now)
	manager.TrackJoin("s1", domain.RoomID("room-a"))
	manager.Terminate("s1")

	// Then nothing is replayable afterwards
	_, err := manager.Resume("s1", "alice", now)
	req.ErrorIs(err, errors.ErrSessionUnknown)

	_, ok := manager.State("s1")
	req.False(ok)
}

func TestSessionManager_Reap_Honors_Retention(t *testing.T) {
	req := require.New(t)
	manager := NewSessionManager(time.Minute)
	now := time.Now().UTC()

	// Given one disconnected and one live session
	manager.Connect("s1", "alice", now)
	manager.Disconnect("s1", now)
	manager.Connect("s2", "bob", now)

	// When reaping before the window elapsed
	req.Zero(manager.Reap(now.Add(30 * time.Second)))

	// And after
	req.Equal(1, manager.Reap(now.Add(2*time.Minute)))

	// Then only the disconnected record was dropped
	_, ok := manager.State("s1")
	req.False(ok)
	_, ok = manager.State("s2")
	req.True(ok)
}
