// Package event defines the outbound records the coordination core hands
// to the broadcast pipeline. Events are plain data; delivery, retries and
// drops belong to the broadcast worker.
package event

import (
	"time"

	"github.com/google/uuid"

	"study-hub/domain"
)

type DomainEvent interface {
	RoomID() domain.RoomID
	Feed() domain.FeedClass
}

// NoticeType tags a room system notice so the client can render it
// differently from regular chat lines.
type NoticeType string

const (
	NoticeJoin  NoticeType = "JOIN"
	NoticeLeave NoticeType = "LEAVE"
)

// RoomNotice is the deduplicated join/leave label published on a room's
// chat feed. Exactly one per true first-join or last-leave.
type RoomNotice struct {
	Room      int64
	Type      NoticeType
	SubjectID string
	Content   string
	At        time.Time
}

func (n RoomNotice) RoomID() domain.RoomID { return domain.RoomID(n.Room) }
func (n RoomNotice) Feed() domain.FeedClass { return domain.ChatFeed }

// PresenceChanged is published on a room's presence feed whenever a user's
// status transitions. DisplayName is resolved by the coordinator before the
// event enters the outbound pipeline.
type PresenceChanged struct {
	Room        int64
	SubjectID   string
	DisplayName string
	Status      domain.Status
	At          time.Time
}

func (p PresenceChanged) RoomID() domain.RoomID { return domain.RoomID(p.Room) }
func (p PresenceChanged) Feed() domain.FeedClass { return domain.PresenceFeed }

// MessagePosted is a moderated, persisted chat message ready for fanout.
type MessagePosted struct {
	ID      uuid.UUID
	Room    int64
	Author  string
	Content string
	At      time.Time
}

func (m MessagePosted) RoomID() domain.RoomID { return domain.RoomID(m.Room) }
func (m MessagePosted) Feed() domain.FeedClass { return domain.ChatFeed }
