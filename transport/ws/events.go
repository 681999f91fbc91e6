package ws

import (
	"encoding/json"
	"time"
)

// Frame is the wire envelope: a tagged union of event payloads, so each
// event kind's contract lives here rather than at every call site.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound events (client -> server).
const (
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventSendMessage = "send-message"
	EventTyping      = "typing"
	EventLogout      = "logout"
)

// Outbound events (server -> client).
const (
	EventSessionEstablished = "session-established"
	EventRoomJoined         = "room-joined"
	EventReceiveMessage     = "receive-message"
	EventNotification       = "notification"
	EventError              = "error"
)

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
}

type TypingUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TypingPayload is both inbound (signal) and outbound (broadcast to
// peers). No stop event exists; receivers expire it by silence.
type TypingPayload struct {
	RoomID string     `json:"roomId"`
	User   TypingUser `json:"user"`
}

type SessionEstablishedPayload struct {
	SessionID     string   `json:"sessionId"`
	RejoinedRooms []string `json:"rejoinedRooms,omitempty"`
}

type ReceiveMessagePayload struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type NotificationPayload struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func encodeFrame(eventName string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: eventName, Data: data})
}
