// Package runtime hosts the coordination core: membership accounting,
// presence tracking, rate limiting and the coordinator gluing them to the
// transport layer. It orchestrates without containing transport logic.
package runtime

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"study-hub/contract"
	"study-hub/domain"
)

// MembershipRegistry collapses transport-level subscriptions into
// user-level room membership.
//
// A browser opens one connection per tab, and every tab subscribes the chat
// feed and the presence feed of a room separately. Counting raw
// subscriptions therefore produces duplicate JOIN notices and premature
// OFFLINE flips. The registry counts distinct connections per
// (room, user, feedClass) so a user appears to join a room exactly once and
// leave it exactly once, however many tabs they juggle.
//
// Single-instance memory only. Sharing counts across several server
// processes needs an external contract.CounterStore implementation.
type MembershipRegistry struct {
	// mu guards the connection-local bookkeeping below. The aggregate
	// counters are deliberately outside it, see counts.
	mu sync.Mutex

	// connection -> owning user, first writer wins for the connection's
	// lifetime.
	owners map[domain.ConnectionID]string

	// connection -> (room, feedClass) -> live subscription count. A second
	// chat subscription from the same tab must not bump the user count.
	connSubs map[domain.ConnectionID]map[roomFeed]int

	// (connection, subscription) -> (room, feedClass). Unsubscribe frames
	// carry no destination, so the room is recovered from this index.
	subIndex map[subKey]roomFeed

	// counts holds one *atomic.Int64 per (room, user, feedClass). The
	// 0→1 and 1→0 transitions that drive JOIN/LEAVE are detected by a
	// single fetch-and-add on that counter, so two racing connections of
	// the same user can never both observe "first". Entries stay at zero
	// instead of being removed; deleting would race with a concurrent
	// re-subscribe holding the old pointer.
	counts sync.Map // membershipKey -> *atomic.Int64

	log *slog.Logger
}

type roomFeed struct {
	room domain.RoomID
	feed domain.FeedClass
}

type subKey struct {
	conn domain.ConnectionID
	sub  domain.SubscriptionID
}

type membershipKey struct {
	room domain.RoomID
	user string
	feed domain.FeedClass
}

func NewMembershipRegistry(log *slog.Logger) *MembershipRegistry {
	return &MembershipRegistry{
		owners:   make(map[domain.ConnectionID]string),
		connSubs: make(map[domain.ConnectionID]map[roomFeed]int),
		subIndex: make(map[subKey]roomFeed),
		log:      log,
	}
}

// Subscribe records one feed subscription and reports whether it is the
// user's first connection to this (room, feedClass) across all their
// connections. Malformed input and replayed subscription ids are absorbed
// as false; transport events arrive late and duplicated by nature.
func (r *MembershipRegistry) Subscribe(conn domain.ConnectionID, sub domain.SubscriptionID,
	room domain.RoomID, user string, feed domain.FeedClass) bool {
	if conn == "" || sub == "" || room == 0 || user == "" || !feed.Valid() {
		return false
	}

	key := subKey{conn, sub}
	rf := roomFeed{room, feed}

	r.mu.Lock()
	owner, known := r.owners[conn]
	if !known {
		r.owners[conn] = user
		owner = user
	}
	if _, replayed := r.subIndex[key]; replayed {
		// The transport re-sent a subscription frame we already hold.
		// Counting it again would leak a membership unit forever.
		r.mu.Unlock()
		r.log.Debug("Duplicate subscription frame ignored", "conn", conn, "sub", sub)
		return false
	}
	r.subIndex[key] = rf

	feeds := r.connSubs[conn]
	if feeds == nil {
		feeds = make(map[roomFeed]int)
		r.connSubs[conn] = feeds
	}
	feeds[rf]++
	connCount := feeds[rf]
	r.mu.Unlock()

	if connCount > 1 {
		// This connection already subscribed this feed of this room.
		return false
	}
	return r.increment(membershipKey{room, owner, feed}) == 1
}

// Unsubscribe tears down one subscription. It returns nil when the
// subscription is unknown, which covers both duplicate unsubscribe frames
// and frames arriving after a disconnect already cleaned up. Safe to call
// twice by design.
func (r *MembershipRegistry) Unsubscribe(conn domain.ConnectionID, sub domain.SubscriptionID) *contract.LeaveResult {
	if conn == "" || sub == "" {
		return nil
	}

	key := subKey{conn, sub}

	r.mu.Lock()
	rf, ok := r.subIndex[key]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.subIndex, key)

	owner := r.owners[conn]
	res := &contract.LeaveResult{Room: rf.room, User: owner, Feed: rf.feed}

	feeds := r.connSubs[conn]
	if feeds == nil {
		r.mu.Unlock()
		return res
	}
	cur, ok := feeds[rf]
	if !ok {
		r.mu.Unlock()
		return res
	}
	if cur > 1 {
		// The connection still holds another subscription to this feed.
		feeds[rf] = cur - 1
		r.mu.Unlock()
		return res
	}
	delete(feeds, rf)
	if len(feeds) == 0 {
		delete(r.connSubs, conn)
	}
	r.mu.Unlock()

	res.ConnectionDone = true
	if owner == "" {
		return res
	}
	after, applied := r.decrement(membershipKey{rf.room, owner, rf.feed})
	res.LastInFeed = applied && after == 0
	return res
}

// Disconnect tears down everything a connection owned, as if each of its
// feeds had been unsubscribed individually. One result per affected
// (room, feedClass) pair.
func (r *MembershipRegistry) Disconnect(conn domain.ConnectionID) []contract.LeaveResult {
	if conn == "" {
		return nil
	}

	r.mu.Lock()
	owner := r.owners[conn]
	delete(r.owners, conn)
	feeds := r.connSubs[conn]
	delete(r.connSubs, conn)
	for key := range r.subIndex {
		if key.conn == conn {
			delete(r.subIndex, key)
		}
	}
	r.mu.Unlock()

	if owner == "" || len(feeds) == 0 {
		return nil
	}
	results := make([]contract.LeaveResult, 0, len(feeds))
	for rf := range feeds {
		after, applied := r.decrement(membershipKey{rf.room, owner, rf.feed})
		results = append(results, contract.LeaveResult{
			Room:           rf.room,
			User:           owner,
			Feed:           rf.feed,
			LastInFeed:     applied && after == 0,
			ConnectionDone: true,
		})
	}
	return results
}

// Count returns the current number of distinct connections a user holds on
// one feed of one room. Exposed for the debug server and tests.
func (r *MembershipRegistry) Count(room domain.RoomID, user string, feed domain.FeedClass) int64 {
	v, ok := r.counts.Load(membershipKey{room, user, feed})
	if !ok {
		return 0
	}
	return v.(*atomic.Int64).Load()
}

// Occupancy lists the users currently holding at least one connection on
// one feed of one room, with their connection counts.
func (r *MembershipRegistry) Occupancy(room domain.RoomID, feed domain.FeedClass) map[string]int64 {
	out := make(map[string]int64)
	r.counts.Range(func(k, v any) bool {
		key := k.(membershipKey)
		if key.room != room || key.feed != feed {
			return true
		}
		if n := v.(*atomic.Int64).Load(); n > 0 {
			out[key.user] = n
		}
		return true
	})
	return out
}

func (r *MembershipRegistry) increment(key membershipKey) int64 {
	v, _ := r.counts.LoadOrStore(key, new(atomic.Int64))
	return v.(*atomic.Int64).Add(1)
}

// decrement lowers the aggregate counter without ever passing zero. A
// counter already at zero means the teardown was duplicated or reordered;
// we clamp and report applied=false rather than crash a shared registry.
func (r *MembershipRegistry) decrement(key membershipKey) (int64, bool) {
	v, ok := r.counts.Load(key)
	if !ok {
		return 0, false
	}
	ctr := v.(*atomic.Int64)
	for {
		cur := ctr.Load()
		if cur <= 0 {
			return 0, false
		}
		if ctr.CompareAndSwap(cur, cur-1) {
			return cur - 1, true
		}
	}
}
