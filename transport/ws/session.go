package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/contrib/websocket"

	"qna-live/contract"
	"qna-live/domain"
	"qna-live/domain/event"
	"qna-live/errors"
	"qna-live/services"
	"qna-live/sink"
)

// Core is the slice of the orchestrator the transport needs for
// session lifecycle.
type Core interface {
	Connect(sessionID, userID string, s contract.EventSink)
	Disconnect(sessionID string, s contract.EventSink)
	Terminate(sessionID string)
	Resume(sessionID, userID string, s contract.EventSink) ([]domain.RoomID, error)
}

// ConnLike narrows the websocket connection for testability.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Session is one authenticated realtime connection. It owns exactly one
// read loop and one write loop; the write loop drains the bounded sink
// the fan-out pipeline delivers into. The connection permits a single
// concurrent writer, so WritePump is the only place that touches it:
// acks and error frames from the read loop go through the outbound
// channel instead of writing directly.
type Session struct {
	ID        string
	UserID    string
	UserName  string
	ExpiresAt time.Time

	conn     ConnLike
	sink     *sink.SessionSink
	outbound chan []byte
	core     Core
	chat     services.IChatService
	log      *slog.Logger

	terminated bool
	done       chan struct{}
}

func NewSession(id, userID, userName string, expiresAt time.Time,
	conn ConnLike, s *sink.SessionSink, core Core,
	chat services.IChatService, log *slog.Logger) *Session {
	return &Session{
		ID:        id,
		UserID:    userID,
		UserName:  userName,
		ExpiresAt: expiresAt,
		conn:      conn,
		sink:      s,
		outbound:  make(chan []byte, 32),
		core:      core,
		chat:      chat,
		log:       log,
		done:      make(chan struct{}),
	}
}

// ReadPump consumes inbound frames until the transport drops or the
// session terminates. Precondition violations are answered with error
// frames and the loop continues; only transport and auth failures end
// the session.
func (s *Session) ReadPump(ctx context.Context) {
	defer s.teardown()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Debug("Transport dropped", "session", s.ID, "error", err)
			return
		}

		// Mid-session credential expiry is session-fatal, like a 403
		// on any other call: tear down and force the client to log in.
		if time.Now().After(s.ExpiresAt) {
			s.sendError("AUTH", "credential expired")
			s.terminated = true
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.sendError("BAD_FRAME", "unreadable frame")
			continue
		}
		if fatal := s.dispatch(ctx, frame); fatal {
			return
		}
	}
}

// dispatch handles one inbound frame. Returns true when the session
// must end (explicit logout).
func (s *Session) dispatch(ctx context.Context, frame Frame) bool {
	switch frame.Event {
	case EventJoinRoom:
		var payload JoinRoomPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			s.sendError("BAD_FRAME", "invalid join-room payload")
			return false
		}
		err := s.chat.JoinRoom(s.ID, s.UserID, domain.RoomID(payload.RoomID))
		switch {
		case err == nil:
			s.send(EventRoomJoined, JoinRoomPayload{RoomID: payload.RoomID})
		case stderrors.Is(err, errors.ErrNotAMember) || stderrors.Is(err, errors.ErrRoomNotFound):
			s.sendError("NOT_A_MEMBER", err.Error())
		default:
			s.sendError("INTERNAL", "join failed")
		}

	case EventLeaveRoom:
		var payload JoinRoomPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			s.sendError("BAD_FRAME", "invalid leave-room payload")
			return false
		}
		s.chat.LeaveRoom(s.ID, domain.RoomID(payload.RoomID))

	case EventSendMessage:
		var payload SendMessagePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			s.sendError("BAD_FRAME", "invalid send-message payload")
			return false
		}
		err := s.chat.PostMessage(ctx, domain.PostMessageCommand{
			Session:   s.ID,
			Room:      domain.RoomID(payload.RoomID),
			UserID:    s.UserID,
			Content:   payload.Content,
			CreatedAt: time.Now().UTC(),
		})
		if stderrors.Is(err, errors.ErrNotJoined) {
			s.sendError("NOT_JOINED", "cannot post to a room you have not joined")
		} else if err != nil {
			s.sendError("INTERNAL", "publish failed")
		}

	case EventTyping:
		var payload TypingPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			s.sendError("BAD_FRAME", "invalid typing payload")
			return false
		}
		err := s.chat.Typing(domain.TypingCommand{
			Session:  s.ID,
			Room:     domain.RoomID(payload.RoomID),
			UserID:   s.UserID,
			UserName: s.UserName,
		})
		if stderrors.Is(err, errors.ErrNotJoined) {
			s.sendError("NOT_JOINED", "cannot signal typing in a room you have not joined")
		}

	case EventLogout:
		s.terminated = true
		return true

	default:
		s.log.Debug(fmt.Sprintf("Ignoring unknown event %q", frame.Event))
	}
	return false
}

// WritePump pushes fan-out deliveries and read-loop replies to the
// wire; it is the connection's only writer. A tripped Kick means the
// session sustained too much backpressure; it is shed so it cannot
// grow an unbounded queue.
func (s *Session) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			s.flush()
			return
		case <-s.sink.Kick():
			s.log.Warn("Shedding slow session", "session", s.ID, "user", s.UserID)
			_ = s.conn.Close()
			return
		case data := <-s.outbound:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log.Debug("Write failed", "session", s.ID, "error", err)
				return
			}
		case evt := <-s.sink.Events:
			if err := s.write(evt); err != nil {
				s.log.Debug("Write failed", "session", s.ID, "error", err)
				return
			}
		}
	}
}

// flush drains pending replies after the read loop ended, so a final
// error frame (auth rejection) still reaches the client before close.
func (s *Session) flush() {
	for {
		select {
		case data := <-s.outbound:
			_ = s.conn.WriteMessage(websocket.TextMessage, data)
		default:
			return
		}
	}
}

func (s *Session) write(evt event.DomainEvent) error {
	var (
		data []byte
		err  error
	)
	switch e := evt.(type) {
	case event.MessageSanitized:
		data, err = encodeFrame(EventReceiveMessage, ReceiveMessagePayload{
			ID:        e.ID.String(),
			RoomID:    string(e.Room),
			SenderID:  e.Author,
			Content:   e.Content,
			CreatedAt: e.At,
		})
	case event.TypingStarted:
		data, err = encodeFrame(EventTyping, TypingPayload{
			RoomID: string(e.Room),
			User:   TypingUser{ID: e.UserID, Name: e.UserName},
		})
	case event.NotificationPushed:
		n := e.Notification
		data, err = encodeFrame(EventNotification, NotificationPayload{
			ID:        n.ID.String(),
			Type:      n.Type,
			Content:   n.Content,
			Link:      n.Link,
			CreatedAt: n.CreatedAt,
		})
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// send enqueues a frame for the write loop. Non-blocking: a full
// outbound buffer drops the frame rather than stalling the read loop.
func (s *Session) send(eventName string, payload any) {
	data, err := encodeFrame(eventName, payload)
	if err != nil {
		return
	}
	select {
	case s.outbound <- data:
	default:
		s.log.Warn("Outbound buffer full, dropping frame",
			"session", s.ID, "event", eventName)
	}
}

func (s *Session) sendError(code, message string) {
	s.send(EventError, ErrorPayload{Code: code, Message: message})
}

// teardown deregisters the session from every room's active set.
// A plain transport drop keeps the room intent replayable; an explicit
// logout or credential expiry terminates the lifecycle for good.
// The sink identifies this connection, so a teardown racing a resume on
// a newer connection cannot unregister the successor.
func (s *Session) teardown() {
	close(s.done)
	if s.terminated {
		s.core.Terminate(s.ID)
	} else {
		s.core.Disconnect(s.ID, s.sink)
	}
	_ = s.conn.Close()
}
