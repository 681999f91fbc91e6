package runtime

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"qna-live/contract"
	"qna-live/domain"
	"qna-live/domain/event"
	"qna-live/errors"
	"qna-live/moderation"
	"qna-live/projection"
	"qna-live/repositories"
	"qna-live/runtime/workers"
	"qna-live/sink"
)

//go:embed censored/*
var censoredFolder embed.FS

const timelineCapacity = 256

// Orchestrator routes everything that flows between sessions: room
// joins, message publishing, typing signals, and notification pushes.
// Messages go through a two-stage pipeline (moderation, then fan-out)
// whose single consumers keep the per-room delivery order total.
type Orchestrator struct {
	log           *slog.Logger
	registry      *Registry
	sessions      *SessionManager
	typing        *TypingTracker
	supervisor    contract.ISupervisor
	rooms         repositories.IRoomRepository
	messages      repositories.IMessageRepository
	notifications repositories.INotificationRepository
	timeline      *projection.Timeline
	posted        chan event.DomainEvent
	sanitized     chan event.DomainEvent
	sinkTimeout   time.Duration
	censoredChar  rune
}

func NewOrchestrator(log *slog.Logger, supervisor *workers.Supervisor,
	registry *Registry, sessions *SessionManager, typing *TypingTracker,
	rooms repositories.IRoomRepository, messages repositories.IMessageRepository,
	notifications repositories.INotificationRepository,
	bufferSize int, sinkTimeout time.Duration, censoredChar rune) *Orchestrator {
	return &Orchestrator{
		log:           log,
		registry:      registry,
		sessions:      sessions,
		typing:        typing,
		supervisor:    supervisor,
		rooms:         rooms,
		messages:      messages,
		notifications: notifications,
		timeline:      projection.NewTimeline(timelineCapacity),
		posted:        make(chan event.DomainEvent, bufferSize),
		sanitized:     make(chan event.DomainEvent, bufferSize),
		sinkTimeout:   sinkTimeout,
		censoredChar:  censoredChar,
	}
}

// Connect registers an authenticated session and its delivery sink.
func (o *Orchestrator) Connect(sessionID, userID string, s contract.EventSink) {
	o.sessions.Connect(sessionID, userID, time.Now().UTC())
	o.registry.Register(sessionID, userID, s)
}

// Disconnect handles a transport-level drop: the session stops being a
// fan-out target everywhere, but its room intent is retained so a
// resume can replay the joins. The caller passes its own sink so a
// teardown arriving after a resume on a newer connection is a no-op.
func (o *Orchestrator) Disconnect(sessionID string, s contract.EventSink) {
	if !o.registry.UnregisterSink(sessionID, s) {
		o.log.Debug("Ignoring stale disconnect", "session", sessionID)
		return
	}
	o.sessions.Disconnect(sessionID, time.Now().UTC())
}

// Terminate ends a session for good: explicit logout or revoked
// credential. Nothing is replayable afterwards.
func (o *Orchestrator) Terminate(sessionID string) {
	o.registry.Unregister(sessionID)
	o.sessions.Terminate(sessionID)
}

// Resume re-registers a previously disconnected session and replays its
// retained room joins. A room that fails the membership check (deleted,
// or membership revoked during the gap) is dropped silently and will
// not be retried on future reconnects. Returns the rooms rejoined.
func (o *Orchestrator) Resume(sessionID, userID string, s contract.EventSink) ([]domain.RoomID, error) {
	retained, err := o.sessions.Resume(sessionID, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	o.registry.Register(sessionID, userID, s)

	var rejoined []domain.RoomID
	for _, roomID := range retained {
		if err := o.JoinRoom(sessionID, userID, roomID); err != nil {
			o.log.Info(fmt.Sprintf("Dropping room %s from session %s on resume", roomID, sessionID),
				"reason", err)
			o.sessions.DropRoom(sessionID, roomID)
			continue
		}
		rejoined = append(rejoined, roomID)
	}
	return rejoined, nil
}

// JoinRoom admits a session into a room after checking the durable
// membership list. Idempotent: a second join of the same room is a
// no-op success and produces no duplicate fan-out entry.
func (o *Orchestrator) JoinRoom(sessionID, userID string, roomID domain.RoomID) error {
	room, err := o.rooms.GetRoom(roomID)
	if err != nil {
		return err
	}
	if !room.HasMember(userID) {
		return errors.ErrNotAMember
	}
	o.registry.Join(sessionID, roomID)
	o.sessions.TrackJoin(sessionID, roomID)
	return nil
}

// LeaveRoom is idempotent and never errors on a room the session was
// not in. Other rooms are unaffected.
func (o *Orchestrator) LeaveRoom(sessionID string, roomID domain.RoomID) {
	o.registry.Leave(sessionID, roomID)
	o.sessions.TrackLeave(sessionID, roomID)
}

// PostMessage accepts a publish intent. Publishing to a room the
// session has not joined is rejected, not auto-joined. Acceptance into
// the pipeline channel is the per-room ordering point; from there a
// single moderation consumer and a single fan-out consumer preserve it.
func (o *Orchestrator) PostMessage(ctx context.Context, cmd domain.PostMessageCommand) error {
	if !o.registry.Joined(cmd.Session, cmd.Room) {
		return errors.ErrNotJoined
	}

	posted := event.MessagePosted{
		ID:      uuid.New(),
		Room:    cmd.Room,
		Origin:  cmd.Session,
		Author:  cmd.UserID,
		Content: cmd.Content,
		At:      cmd.CreatedAt,
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case o.posted <- posted:
		return nil
	}
}

// Typing records the transient fact and immediately broadcasts it to
// the other active members of the room. No ack, no retry, no
// persistence; consumers expire the indicator by silence.
func (o *Orchestrator) Typing(cmd domain.TypingCommand) error {
	if !o.registry.Joined(cmd.Session, cmd.Room) {
		return errors.ErrNotJoined
	}

	now := time.Now().UTC()
	o.typing.Signal(cmd.Room, cmd.UserID, now)

	evt := event.TypingStarted{
		Room:     cmd.Room,
		Origin:   cmd.Session,
		UserID:   cmd.UserID,
		UserName: cmd.UserName,
		At:       now,
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.sinkTimeout)
	defer cancel()
	for _, s := range o.registry.SinksForRoomExcept(cmd.Room, cmd.Session) {
		if err := s.Consume(ctx, evt); err != nil {
			o.log.Debug("Typing delivery skipped", "error", err)
		}
	}
	return nil
}

// PushNotification persists first, then delivers to every open session
// of the recipient. Zero open sessions is not a failure: the durable
// store remains the source of truth and the query path will serve it.
func (o *Orchestrator) PushNotification(ctx context.Context, n domain.Notification) error {
	if err := o.notifications.Store(toDiskNotification(n)); err != nil {
		return err
	}

	evt := event.NotificationPushed{Notification: n}
	deliveryCtx, cancel := context.WithTimeout(ctx, o.sinkTimeout)
	defer cancel()
	for _, s := range o.registry.SinksForUser(n.RecipientID) {
		if err := s.Consume(deliveryCtx, evt); err != nil {
			o.log.Debug("Notification delivery skipped", "error", err)
		}
	}
	return nil
}

// GetMessages serves the durable backfill path.
func (o *Orchestrator) GetMessages(cmd domain.GetMessagesCommand) ([]domain.Message, *string, error) {
	messages, cursor, err := o.messages.GetMessages(string(cmd.Room), cmd.Cursor)
	return fromDiskMessages(messages), cursor, err
}

// Timeline exposes the in-memory projection fed by the fan-out.
func (o *Orchestrator) Timeline() *projection.Timeline {
	return o.timeline
}

// Start prepares the pipeline workers and hands them to the supervisor.
// Heavy work (loading word lists, building the automaton) happens
// before anything is registered.
func (o *Orchestrator) Start(ctx context.Context) error {
	moderationWorker, err := o.prepareModeration("censored")
	if err != nil {
		return err
	}

	permanentSinks := []contract.EventSink{
		o.timeline,
		sink.NewDiskSink(o.messages, o.log),
	}
	fanoutWorker := workers.NewEventFanout(o.log, o.registry, permanentSinks, o.sanitized, o.sinkTimeout)

	o.supervisor.Add(moderationWorker)
	o.supervisor.Add(fanoutWorker)
	o.supervisor.Add(o.typing)
	o.supervisor.Add(o.sessions)

	o.log.Info("Starting orchestrator and all supervised workers")
	go o.supervisor.Run(ctx)
	return nil
}

// prepareModeration loads the embedded censored words and builds the
// Aho-Corasick automaton.
func (o *Orchestrator) prepareModeration(path string) (contract.Worker, error) {
	loader := NewCensoredLoader(censoredFolder)
	data, err := loader.LoadAll(path)
	if err != nil {
		return nil, err
	}

	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	moderator, err := moderation.NewModerator(data.Words, o.censoredChar)
	if err != nil {
		return nil, err
	}
	return workers.NewModerationWorker(moderator, o.posted, o.sanitized, o.log), nil
}

// Stop initiates a graceful shutdown: the supervision context is
// canceled and workers drain.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:        item.ID,
			Room:      domain.RoomID(item.Room),
			SenderID:  item.Author,
			Content:   item.Content,
			Lang:      item.Lang,
			CreatedAt: item.At,
		}
	})
}

func toDiskNotification(n domain.Notification) repositories.DiskNotification {
	return repositories.DiskNotification{
		ID:        n.ID,
		Recipient: n.RecipientID,
		Type:      n.Type,
		Content:   n.Content,
		Link:      n.Link,
		Read:      n.Read,
		At:        n.CreatedAt,
	}
}
