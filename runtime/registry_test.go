package runtime

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"qna-live/domain"
	"qna-live/domain/event"
)

type Sink struct {
	id string
}

func (s Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	return nil
}

func TestRegistry_Join_One_Room_One_Session(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()
	roomID := domain.RoomID("room-go")
	sink := Sink{id: "a"}

	// Given no session is connected
	req.Zero(registry.Sessions())
	req.Zero(registry.Rooms())

	// When a session registers and joins a room
	registry.Register(sessionID, "alice", sink)
	registry.Join(sessionID, roomID)

	// Then
	req.Equal(1, registry.Sessions())
	req.Equal(1, registry.Rooms())
	req.True(registry.Joined(sessionID, roomID))
	req.Len(registry.SinksForRoom(roomID), 1)
	req.Contains(registry.SinksForRoom(roomID), sink)
}

func TestRegistry_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sessionID := uuid.NewString()
	roomID := domain.RoomID("room-go")

	// Given a joined session
	registry.Register(sessionID, "alice", Sink{id: "a"})
	registry.Join(sessionID, roomID)

	// When the same session joins the same room again
	registry.Join(sessionID, roomID)

	// Then the membership is unchanged and the sink is not duplicated
	req.True(registry.Joined(sessionID, roomID))
	req.Len(registry.SinksForRoom(roomID), 1)
}

func TestRegistry_Join_Unregistered_Session_Is_Ignored(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.RoomID("room-go")

	// When a session joins without being registered first
	registry.Join("ghost", roomID)

	// Then it never becomes a fan-out target
	req.False(registry.Joined("ghost", roomID))
	req.Empty(registry.SinksForRoom(roomID))
}

func TestRegistry_SinksForRoomExcept_Excludes_Publisher(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.RoomID("room-go")
	sink1 := Sink{id: "a"}
	sink2 := Sink{id: "b"}

	// Given two sessions in the same room
	registry.Register("s1", "alice", sink1)
	registry.Register("s2", "bob", sink2)
	registry.Join("s1", roomID)
	registry.Join("s2", roomID)

	// When snapshotting sinks minus the publisher
	sinks := registry.SinksForRoomExcept(roomID, "s1")

	// Then only the other member remains
	req.Len(sinks, 1)
	req.Contains(sinks, sink2)
}

func TestRegistry_Leave_Only_Affects_That_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomA := domain.RoomID("room-a")
	roomB := domain.RoomID("room-b")

	// Given a session in two rooms
	registry.Register("s1", "alice", Sink{id: "a"})
	registry.Join("s1", roomA)
	registry.Join("s1", roomB)

	// When leaving one room
	registry.Leave("s1", roomA)

	// Then the other membership survives
	req.False(registry.Joined("s1", roomA))
	req.True(registry.Joined("s1", roomB))

	// And leaving a room never joined is a no-op
	registry.Leave("s1", domain.RoomID("room-c"))
	req.True(registry.Joined("s1", roomB))
}

func TestRegistry_Unregister_Removes_Session_Everywhere(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomA := domain.RoomID("room-a")
	roomB := domain.RoomID("room-b")

	// Given a session joined to two rooms
	registry.Register("s1", "alice", Sink{id: "a"})
	registry.Join("s1", roomA)
	registry.Join("s1", roomB)

	// When the session unregisters
	registry.Unregister("s1")

	// Then no fan-out target dangles anywhere
	req.Zero(registry.Sessions())
	req.Empty(registry.SinksForRoom(roomA))
	req.Empty(registry.SinksForRoom(roomB))
	req.Empty(registry.SinksForUser("alice"))
}

func TestRegistry_UnregisterSink_Ignores_A_Superseded_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	roomID := domain.RoomID("room-go")
	first := Sink{id: "old-conn"}
	second := Sink{id: "new-conn"}

	// Given a session re-registered by a resume on a new connection
	registry.Register("s1", "alice", first)
	registry.Join("s1", roomID)
	registry.Register("s1", "alice", second)
	registry.Join("s1", roomID)

	// When the old connection's teardown arrives late
	req.False(registry.UnregisterSink("s1", first))

	// Then the live registration survives intact
	req.True(registry.Joined("s1", roomID))
	req.Contains(registry.SinksForUser("alice"), second)

	// And the live connection's teardown still removes everything
	req.True(registry.UnregisterSink("s1", second))
	req.False(registry.Joined("s1", roomID))
	req.Zero(registry.Sessions())
}

func TestRegistry_SinksForUser_Covers_All_Open_Sessions(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	sink1 := Sink{id: "laptop"}
	sink2 := Sink{id: "phone"}

	// Given the same user connected twice
	registry.Register("s1", "alice", sink1)
	registry.Register("s2", "alice", sink2)

	// Then both sessions are notification targets
	sinks := registry.SinksForUser("alice")
	req.Len(sinks, 2)
	req.Contains(sinks, sink1)
	req.Contains(sinks, sink2)

	// And an unknown user has none
	req.Empty(registry.SinksForUser("nobody"))
}
