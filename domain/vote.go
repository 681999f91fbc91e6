package domain

import "time"

type VoteType string

const (
	VoteUp   VoteType = "UP"
	VoteDown VoteType = "DOWN"
)

// Vote holds the exactly-once-per-actor fact: at most one vote
// per (AnswerID, UserID).
type Vote struct {
	AnswerID string
	UserID   string
	Type     VoteType
	CastAt   time.Time
}
