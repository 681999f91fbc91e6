package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	// Session and auth failures are fatal for the connection.
	ErrAuth            = fmt.Errorf("invalid or expired credential")
	ErrSessionUnknown  = fmt.Errorf("unknown session")
	ErrTokenGeneration = fmt.Errorf("token generation failed")

	// Precondition violations are rejected and recovered locally.
	ErrNotAMember   = fmt.Errorf("user is not a member of this room")
	ErrNotJoined    = fmt.Errorf("session has not joined this room")
	ErrRoomNotFound = fmt.Errorf("room not found")

	ErrDuplicateVote = fmt.Errorf("user already voted on this answer")

	ErrNotificationNotFound = fmt.Errorf("notification not found")

	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
)
