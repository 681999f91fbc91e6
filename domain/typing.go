package domain

import "time"

// TypingSignal is a transient fact, never persisted and never retried.
// Absence of a refresh within the window is the stop signal.
type TypingSignal struct {
	Room     RoomID
	UserID   string
	UserName string
	IssuedAt time.Time
}

// DefaultTypingWindow matches what clients use to expire the indicator.
const DefaultTypingWindow = 3 * time.Second
