package domain

import "time"

type Command interface {
	RoomID() RoomID
}

// PostMessageCommand is a sending intent from one session.
// Session identifies the publishing connection so fan-out can
// exclude it and the join precondition can be checked.
type PostMessageCommand struct {
	Session   string
	Room      RoomID
	UserID    string
	Content   string
	CreatedAt time.Time
}

func (c PostMessageCommand) RoomID() RoomID { return c.Room }

type TypingCommand struct {
	Session  string
	Room     RoomID
	UserID   string
	UserName string
}

func (c TypingCommand) RoomID() RoomID { return c.Room }

type GetMessagesCommand struct {
	Room   RoomID
	Cursor *string
}

func (c GetMessagesCommand) RoomID() RoomID { return c.Room }
