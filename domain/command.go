package domain

import (
	"time"
)

type Command interface {
	RoomID() RoomID
}

// PostMessageCommand carries an inbound chat message from the transport
// layer to the coordinator. Content is raw; moderation happens later.
type PostMessageCommand struct {
	Room      int64
	SenderID  string
	Content   string
	CreatedAt time.Time
}

func (p PostMessageCommand) RoomID() RoomID {
	return RoomID(p.Room)
}

// UpdateStatusCommand is a user switching between ONLINE/STUDYING/BREAK.
// Status stays a plain string here; the presence tracker parses it.
type UpdateStatusCommand struct {
	Room   int64
	UserID string
	Status string
}

func (u UpdateStatusCommand) RoomID() RoomID {
	return RoomID(u.Room)
}
