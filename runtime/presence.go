package runtime

import (
	"log/slog"
	"sync"
	"time"

	"study-hub/domain"
	"study-hub/domain/event"
)

// PresenceTracker records who is ONLINE/STUDYING/BREAK/OFFLINE in each room
// and emits a PresenceChanged event on every transition. It is driven by
// the registry's first-join/last-leave signals for the presence feed and by
// explicit status updates from clients.
//
// The tracker never delivers anything itself: emit hands the event to the
// coordinator, which enriches it and queues it for the broadcast worker.
// Publish failures downstream are not the tracker's concern.
type PresenceTracker struct {
	mu    sync.RWMutex
	log   *slog.Logger
	rooms map[domain.RoomID]map[string]*presenceEntry
	emit  func(event.PresenceChanged)
	now   func() time.Time
}

type presenceEntry struct {
	status domain.Status
	// touched records the last heartbeat or transition. No staleness
	// reaper consumes it yet; a user whose tab dies silently stays in
	// their last state until a disconnect arrives.
	touched time.Time
}

func NewPresenceTracker(log *slog.Logger, emit func(event.PresenceChanged)) *PresenceTracker {
	return &PresenceTracker{
		log:   log,
		rooms: make(map[domain.RoomID]map[string]*presenceEntry),
		emit:  emit,
		now:   time.Now,
	}
}

// MarkOnline is called when the registry reports a user's first presence
// subscription to a room.
func (p *PresenceTracker) MarkOnline(room domain.RoomID, user string) {
	p.set(room, user, domain.StatusOnline)
}

// UpdateStatus applies a client-chosen status. Unknown strings are dropped
// silently: malformed client input must not destabilize the room, and a
// no-op must not publish.
func (p *PresenceTracker) UpdateStatus(room domain.RoomID, user string, status string) {
	parsed, ok := domain.ParseStatus(status)
	if !ok {
		p.log.Debug("Ignoring unknown presence status", "room", room, "user", user, "status", status)
		return
	}
	p.set(room, user, parsed)
}

// Heartbeat is a pure liveness touch: it creates an ONLINE entry if none
// exists, never overwrites an existing status and never publishes.
func (p *PresenceTracker) Heartbeat(room domain.RoomID, user string) {
	if room == 0 || user == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	users := p.rooms[room]
	if users == nil {
		users = make(map[string]*presenceEntry)
		p.rooms[room] = users
	}
	entry := users[user]
	if entry == nil {
		users[user] = &presenceEntry{status: domain.StatusOnline, touched: p.now()}
		return
	}
	entry.touched = p.now()
}

// MarkOffline is called when the registry reports the user's last presence
// subscription left, or on full disconnect. The entry is kept with an
// OFFLINE label so late status queries stay answerable.
func (p *PresenceTracker) MarkOffline(room domain.RoomID, user string) {
	p.set(room, user, domain.StatusOffline)
}

// Snapshot returns the current status of every known user in a room.
func (p *PresenceTracker) Snapshot(room domain.RoomID) map[string]domain.Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	users := p.rooms[room]
	out := make(map[string]domain.Status, len(users))
	for user, entry := range users {
		out[user] = entry.status
	}
	return out
}

func (p *PresenceTracker) set(room domain.RoomID, user string, status domain.Status) {
	if room == 0 || user == "" {
		return
	}
	at := p.now()

	p.mu.Lock()
	users := p.rooms[room]
	if users == nil {
		users = make(map[string]*presenceEntry)
		p.rooms[room] = users
	}
	entry := users[user]
	if entry == nil {
		entry = &presenceEntry{}
		users[user] = entry
	}
	entry.status = status
	entry.touched = at
	p.mu.Unlock()

	if p.emit != nil {
		p.emit(event.PresenceChanged{
			Room:      int64(room),
			SubjectID: user,
			Status:    status,
			At:        at,
		})
	}
}
