// Package domain contains core concepts of the study room system.
// This file defines Message events and related rules.
// Messages are immutable once created.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind separates user chat lines from server-generated notices
// (join/leave labels rendered in the middle of the chat view).
type MessageKind string

const (
	KindChat   MessageKind = "CHAT"
	KindSystem MessageKind = "SYSTEM"
)

// Message represents an immutable chat event inside a room.
type Message struct {
	ID        uuid.UUID
	Room      int64
	SenderID  string
	Kind      MessageKind
	Content   string
	CreatedAt time.Time
}
