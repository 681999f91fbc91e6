package runtime

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"qna-live/domain"
	"qna-live/domain/event"
	"qna-live/errors"
	"qna-live/repositories"
	"qna-live/runtime/workers"
)

// collectSink records delivered events in arrival order.
type collectSink struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (c *collectSink) Consume(_ context.Context, e event.DomainEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *collectSink) Snapshot() []event.DomainEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.DomainEvent(nil), c.events...)
}

func (c *collectSink) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

type orchestratorFixture struct {
	orchestrator  *Orchestrator
	rooms         repositories.IRoomRepository
	notifications repositories.INotificationRepository
}

func newOrchestratorFixture(t *testing.T) orchestratorFixture {
	t.Helper()
	req := require.New(t)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	messages := repositories.NewMessageRepository(db, log, nil)
	notifications := repositories.NewNotificationRepository(db, log)
	rooms := repositories.NewRoomRepository(db)

	sup := workers.NewSupervisor(log, 10*time.Millisecond)
	orchestrator := NewOrchestrator(
		log, sup, NewRegistry(),
		NewSessionManager(time.Minute), NewTypingTracker(3*time.Second),
		rooms, messages, notifications,
		16, 100*time.Millisecond, '*',
	)

	ctx, cancel := context.WithCancel(context.Background())
	req.NoError(orchestrator.Start(ctx))
	t.Cleanup(cancel)

	return orchestratorFixture{
		orchestrator:  orchestrator,
		rooms:         rooms,
		notifications: notifications,
	}
}

func saveRoom(t *testing.T, f orchestratorFixture, id string, members ...string) {
	t.Helper()
	require.NoError(t, f.rooms.SaveRoom(domain.Room{
		ID:      domain.RoomID(id),
		Name:    id,
		IsGroup: true,
		Members: members,
	}))
}

func TestOrchestrator_PostMessage_Requires_Join(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	saveRoom(t, f, "room-go", "alice")

	// Given a connected session that never joined the room
	f.orchestrator.Connect("s1", "alice", &collectSink{})

	// When posting without a join
	err := f.orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		Session: "s1", Room: "room-go", UserID: "alice",
		Content: "hello", CreatedAt: time.Now().UTC(),
	})

	// Then the publish is rejected, not auto-joined
	req.ErrorIs(err, errors.ErrNotJoined)
}

func TestOrchestrator_JoinRoom_Checks_Membership(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	saveRoom(t, f, "room-go", "alice")

	f.orchestrator.Connect("s1", "mallory", &collectSink{})

	// When a non-member joins
	err := f.orchestrator.JoinRoom("s1", "mallory", "room-go")
	req.ErrorIs(err, errors.ErrNotAMember)

	// And an unknown room fails cleanly
	err = f.orchestrator.JoinRoom("s1", "mallory", "no-such-room")
	req.ErrorIs(err, errors.ErrRoomNotFound)
}

func TestOrchestrator_Fanout_Preserves_Order_And_Excludes_Sender(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	saveRoom(t, f, "room-go", "alice", "bob")

	// Given two members connected and joined
	publisher := &collectSink{}
	receiver := &collectSink{}
	f.orchestrator.Connect("s1", "alice", publisher)
	f.orchestrator.Connect("s2", "bob", receiver)
	req.NoError(f.orchestrator.JoinRoom("s1", "alice", "room-go"))
	req.NoError(f.orchestrator.JoinRoom("s2", "bob", "room-go"))

	// When alice posts three messages
	contents := []string{"first", "second", "third"}
	for _, content := range contents {
		req.NoError(f.orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
			Session: "s1", Room: "room-go", UserID: "alice",
			Content: content, CreatedAt: time.Now().UTC(),
		}))
	}

	// Then bob receives all three, in publish order
	req.Eventually(func() bool { return receiver.Count() == 3 },
		2*time.Second, 10*time.Millisecond)

	for i, e := range receiver.Snapshot() {
		sanitized, ok := e.(event.MessageSanitized)
		req.True(ok)
		req.Equal(contents[i], sanitized.Content)
		req.Equal("alice", sanitized.Author)
	}

	// And the publisher's own sink stays silent
	req.Zero(publisher.Count())

	// And the durable backfill serves the same messages
	req.Eventually(func() bool {
		messages, _, err := f.orchestrator.GetMessages(domain.GetMessagesCommand{Room: "room-go"})
		return err == nil && len(messages) == 3
	}, 2*time.Second, 10*time.Millisecond)

	// And the timeline projection saw them in order
	timeline := f.orchestrator.Timeline().Messages("room-go")
	req.Len(timeline, 3)
	req.Equal("first", timeline[0].Content)
	req.Equal("third", timeline[2].Content)
}

func TestOrchestrator_Fanout_Does_Not_Leak_Across_Rooms(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	saveRoom(t, f, "room-a", "alice", "bob")
	saveRoom(t, f, "room-b", "carol")

	inRoom := &collectSink{}
	elsewhere := &collectSink{}
	f.orchestrator.Connect("s1", "alice", &collectSink{})
	f.orchestrator.Connect("s2", "bob", inRoom)
	f.orchestrator.Connect("s3", "carol", elsewhere)
	req.NoError(f.orchestrator.JoinRoom("s1", "alice", "room-a"))
	req.NoError(f.orchestrator.JoinRoom("s2", "bob", "room-a"))
	req.NoError(f.orchestrator.JoinRoom("s3", "carol", "room-b"))

	// When posting into room-a
	req.NoError(f.orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		Session: "s1", Room: "room-a", UserID: "alice",
		Content: "scoped", CreatedAt: time.Now().UTC(),
	}))

	// Then only room-a members receive it
	req.Eventually(func() bool { return inRoom.Count() == 1 },
		2*time.Second, 10*time.Millisecond)
	req.Zero(elsewhere.Count())
}

func TestOrchestrator_Leave_Stops_Delivery_For_That_Room_Only(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	saveRoom(t, f, "room-a", "alice", "bob")
	saveRoom(t, f, "room-b", "alice", "bob")

	receiver := &collectSink{}
	f.orchestrator.Connect("s1", "alice", &collectSink{})
	f.orchestrator.Connect("s2", "bob", receiver)
	req.NoError(f.orchestrator.JoinRoom("s1", "alice", "room-a"))
	req.NoError(f.orchestrator.JoinRoom("s1", "alice", "room-b"))
	req.NoError(f.orchestrator.JoinRoom("s2", "bob", "room-a"))
	req.NoError(f.orchestrator.JoinRoom("s2", "bob", "room-b"))

	// When bob leaves room-a
	f.orchestrator.LeaveRoom("s2", "room-a")

	// Then a post in room-a no longer reaches him
	req.NoError(f.orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		Session: "s1", Room: "room-a", UserID: "alice",
		Content: "gone", CreatedAt: time.Now().UTC(),
	}))
	// But room-b still does
	req.NoError(f.orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		Session: "s1", Room: "room-b", UserID: "alice",
		Content: "still here", CreatedAt: time.Now().UTC(),
	}))

	req.Eventually(func() bool { return receiver.Count() == 1 },
		2*time.Second, 10*time.Millisecond)
	sanitized := receiver.Snapshot()[0].(event.MessageSanitized)
	req.Equal(domain.RoomID("room-b"), sanitized.Room)
}

func TestOrchestrator_Notification_Persists_Then_Delivers_Everywhere(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	// Given bob connected twice (laptop and phone)
	laptop := &collectSink{}
	phone := &collectSink{}
	f.orchestrator.Connect("s1", "bob", laptop)
	f.orchestrator.Connect("s2", "bob", phone)

	// When a notification is pushed
	n := domain.Notification{
		ID:          uuid.New(),
		RecipientID: "bob",
		Type:        "answer",
		Content:     "Your question got an answer",
		CreatedAt:   time.Now().UTC(),
	}
	req.NoError(f.orchestrator.PushNotification(context.Background(), n))

	// Then both sessions received it
	req.Equal(1, laptop.Count())
	req.Equal(1, phone.Count())

	// And the durable count matches what was pushed
	count, err := f.notifications.UnreadCount("bob")
	req.NoError(err)
	req.Equal(1, count)
}

func TestOrchestrator_Notification_With_Zero_Sessions_Still_Persists(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)

	// When pushing to a user with no open session
	n := domain.Notification{
		ID:          uuid.New(),
		RecipientID: "offline-user",
		Type:        "mention",
		Content:     "You were mentioned",
		CreatedAt:   time.Now().UTC(),
	}
	req.NoError(f.orchestrator.PushNotification(context.Background(), n))

	// Then the store remains the source of truth for the query path
	stored, err := f.notifications.List("offline-user")
	req.NoError(err)
	req.Len(stored, 1)
}

func TestOrchestrator_Resume_Drops_Revoked_Rooms(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	saveRoom(t, f, "room-a", "alice", "bob")
	saveRoom(t, f, "room-b", "alice", "bob")

	// Given alice joined both rooms, then dropped
	first := &collectSink{}
	f.orchestrator.Connect("s1", "alice", first)
	req.NoError(f.orchestrator.JoinRoom("s1", "alice", "room-a"))
	req.NoError(f.orchestrator.JoinRoom("s1", "alice", "room-b"))
	f.orchestrator.Disconnect("s1", first)

	// And her membership of room-b was revoked during the gap
	req.NoError(f.rooms.RemoveMember("room-b", "alice"))

	// When she resumes
	second := &collectSink{}
	rejoined, err := f.orchestrator.Resume("s1", "alice", second)

	// Then only the still-valid room is replayed
	req.NoError(err)
	req.Equal([]domain.RoomID{"room-a"}, rejoined)

	// And the revoked room is not retried on the next resume either
	f.orchestrator.Disconnect("s1", second)
	rejoined, err = f.orchestrator.Resume("s1", "alice", &collectSink{})
	req.NoError(err)
	req.Equal([]domain.RoomID{"room-a"}, rejoined)
}

func TestOrchestrator_Stale_Teardown_Does_Not_Break_A_Resumed_Session(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	saveRoom(t, f, "room-go", "alice", "bob")

	// Given alice connected and joined
	old := &collectSink{}
	f.orchestrator.Connect("s1", "alice", old)
	req.NoError(f.orchestrator.JoinRoom("s1", "alice", "room-go"))

	// When a fast resume replaces the connection before the old one's
	// teardown lands
	fresh := &collectSink{}
	rejoined, err := f.orchestrator.Resume("s1", "alice", fresh)
	req.NoError(err)
	req.Equal([]domain.RoomID{"room-go"}, rejoined)

	f.orchestrator.Disconnect("s1", old)

	// Then the resumed session is still registered and joined
	req.True(f.orchestrator.registry.Joined("s1", "room-go"))

	f.orchestrator.Connect("s2", "bob", &collectSink{})
	req.NoError(f.orchestrator.JoinRoom("s2", "bob", "room-go"))
	req.NoError(f.orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		Session: "s2", Room: "room-go", UserID: "bob",
		Content: "still with us?", CreatedAt: time.Now().UTC(),
	}))
	req.Eventually(func() bool { return fresh.Count() == 1 },
		2*time.Second, 10*time.Millisecond)
	req.Zero(old.Count())

	// And a teardown from the live connection still disconnects
	f.orchestrator.Disconnect("s1", fresh)
	err = f.orchestrator.PostMessage(context.Background(), domain.PostMessageCommand{
		Session: "s1", Room: "room-go", UserID: "alice",
		Content: "gone", CreatedAt: time.Now().UTC(),
	})
	req.ErrorIs(err, errors.ErrNotJoined)
}

func TestOrchestrator_Typing_Broadcasts_To_Others_Only(t *testing.T) {
	req := require.New(t)
	f := newOrchestratorFixture(t)
	saveRoom(t, f, "room-go", "alice", "bob")

	typist := &collectSink{}
	watcher := &collectSink{}
	f.orchestrator.Connect("s1", "alice", typist)
	f.orchestrator.Connect("s2", "bob", watcher)
	req.NoError(f.orchestrator.JoinRoom("s1", "alice", "room-go"))
	req.NoError(f.orchestrator.JoinRoom("s2", "bob", "room-go"))

	// When alice signals typing
	req.NoError(f.orchestrator.Typing(domain.TypingCommand{
		Session: "s1", Room: "room-go", UserID: "alice", UserName: "Alice",
	}))

	// Then bob sees the indicator, alice does not
	req.Equal(1, watcher.Count())
	req.Zero(typist.Count())

	started := watcher.Snapshot()[0].(event.TypingStarted)
	req.Equal("alice", started.UserID)

	// And signaling from outside the room is rejected
	f.orchestrator.Connect("s3", "carol", &collectSink{})
	err := f.orchestrator.Typing(domain.TypingCommand{
		Session: "s3", Room: "room-go", UserID: "carol",
	})
	req.ErrorIs(err, errors.ErrNotJoined)
}
