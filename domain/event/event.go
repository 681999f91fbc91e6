package event

import (
	"time"

	"github.com/google/uuid"

	"qna-live/domain"
)

// DomainEvent is anything the fan-out pipeline can deliver to a session.
// Room-less events (notifications) return an empty RoomID.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessagePosted is the raw accepted message, before moderation.
type MessagePosted struct {
	ID      uuid.UUID
	Room    domain.RoomID
	Origin  string // publishing session, excluded from fan-out
	Author  string
	Content string
	At      time.Time
}

func (m MessagePosted) RoomID() domain.RoomID { return m.Room }

// MessageSanitized is what gets fanned out and persisted: censored
// content plus detected language.
type MessageSanitized struct {
	ID      uuid.UUID
	Room    domain.RoomID
	Origin  string
	Author  string
	Content string
	Lang    string
	At      time.Time
}

func (m MessageSanitized) RoomID() domain.RoomID { return m.Room }

type TypingStarted struct {
	Room     domain.RoomID
	Origin   string
	UserID   string
	UserName string
	At       time.Time
}

func (t TypingStarted) RoomID() domain.RoomID { return t.Room }

// NotificationPushed is delivered point-to-point to a user's sessions,
// independent of room membership.
type NotificationPushed struct {
	Notification domain.Notification
}

func (n NotificationPushed) RoomID() domain.RoomID { return "" }
