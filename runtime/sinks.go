package runtime

import (
	"sync"

	"study-hub/contract"
	"study-hub/domain"
)

type Set map[domain.ConnectionID]struct{}

// SinkRegistry maps live connections to their event sinks and remembers
// which (room, feedClass) pairs each connection listens to. The broadcast
// worker resolves delivery targets through it.
//
// Membership semantics (who counts as present) live in MembershipRegistry;
// this type only answers "where do I deliver".
type SinkRegistry struct {
	mu       sync.RWMutex
	sessions map[domain.ConnectionID]contract.EventSink
	routes   map[roomFeed]Set
}

func NewSinkRegistry() *SinkRegistry {
	return &SinkRegistry{
		sessions: make(map[domain.ConnectionID]contract.EventSink),
		routes:   make(map[roomFeed]Set),
	}
}

// Attach registers the connection's sink. Re-attaching replaces the sink;
// a reconnecting transport may hand us a fresh channel for the same id.
func (r *SinkRegistry) Attach(conn domain.ConnectionID, sink contract.EventSink) {
	if conn == "" || sink == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[conn] = sink
}

// Route subscribes the connection's sink to one feed of one room.
// Idempotent: routing the same pair twice is a no-op.
func (r *SinkRegistry) Route(conn domain.ConnectionID, room domain.RoomID, feed domain.FeedClass) {
	if conn == "" || room == 0 || !feed.Valid() {
		return
	}
	rf := roomFeed{room, feed}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.routes[rf]; !ok {
		r.routes[rf] = make(Set)
	}
	r.routes[rf][conn] = struct{}{}
}

// Unroute removes one (room, feedClass) route. Empty sets are cleaned up
// to avoid leaking room entries over time.
func (r *SinkRegistry) Unroute(conn domain.ConnectionID, room domain.RoomID, feed domain.FeedClass) {
	rf := roomFeed{room, feed}
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.routes[rf]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(r.routes, rf)
		}
	}
}

// Detach drops the connection's sink and every route it held.
func (r *SinkRegistry) Detach(conn domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, conn)
	for rf, members := range r.routes {
		delete(members, conn)
		if len(members) == 0 {
			delete(r.routes, rf)
		}
	}
}

// SinksFor resolves the active sinks listening on one feed of one room.
// It performs a two-step lookup: route set first, then the session map, so
// a connection whose sink is already gone is skipped silently.
// Returns nil when nobody listens.
func (r *SinkRegistry) SinksFor(room domain.RoomID, feed domain.FeedClass) []contract.EventSink {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.routes[roomFeed{room, feed}]
	if !ok {
		return nil
	}
	var active []contract.EventSink
	for conn := range members {
		if sink, exists := r.sessions[conn]; exists {
			active = append(active, sink)
		}
	}
	return active
}
