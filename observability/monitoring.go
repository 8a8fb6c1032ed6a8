// Package observability aggregates cheap atomic counters describing what
// the coordination core is doing. The telemetry worker and the debug
// server read snapshots; nothing here blocks the hot path.
package observability

import (
	"sync/atomic"
)

// CoreStats is a point-in-time copy of all counters.
type CoreStats struct {
	FirstJoins       uint64 `json:"first_joins"`
	LastLeaves       uint64 `json:"last_leaves"`
	PresenceUpdates  uint64 `json:"presence_updates"`
	MessagesStored   uint64 `json:"messages_stored"`
	QuotaRejections  uint64 `json:"quota_rejections"`
	BroadcastRetries uint64 `json:"broadcast_retries"`
	BroadcastDrops   uint64 `json:"broadcast_drops"`
	EventsDropped    uint64 `json:"events_dropped"`
}

// CoreMetrics holds the live counters.
type CoreMetrics struct {
	firstJoins       uint64
	lastLeaves       uint64
	presenceUpdates  uint64
	messagesStored   uint64
	quotaRejections  uint64
	broadcastRetries uint64
	broadcastDrops   uint64
	eventsDropped    uint64
}

func NewCoreMetrics() *CoreMetrics {
	return &CoreMetrics{}
}

func (m *CoreMetrics) IncrFirstJoins() {
	atomic.AddUint64(&m.firstJoins, 1)
}

func (m *CoreMetrics) IncrLastLeaves() {
	atomic.AddUint64(&m.lastLeaves, 1)
}

func (m *CoreMetrics) IncrPresenceUpdates() {
	atomic.AddUint64(&m.presenceUpdates, 1)
}

func (m *CoreMetrics) IncrMessagesStored() {
	atomic.AddUint64(&m.messagesStored, 1)
}

func (m *CoreMetrics) IncrQuotaRejections() {
	atomic.AddUint64(&m.quotaRejections, 1)
}

func (m *CoreMetrics) IncrBroadcastRetries() {
	atomic.AddUint64(&m.broadcastRetries, 1)
}

func (m *CoreMetrics) IncrBroadcastDrops() {
	atomic.AddUint64(&m.broadcastDrops, 1)
}

func (m *CoreMetrics) IncrEventsDropped() {
	atomic.AddUint64(&m.eventsDropped, 1)
}

// Snapshot copies every counter atomically enough for monitoring purposes;
// counters keep moving while we read them.
func (m *CoreMetrics) Snapshot() CoreStats {
	return CoreStats{
		FirstJoins:       atomic.LoadUint64(&m.firstJoins),
		LastLeaves:       atomic.LoadUint64(&m.lastLeaves),
		PresenceUpdates:  atomic.LoadUint64(&m.presenceUpdates),
		MessagesStored:   atomic.LoadUint64(&m.messagesStored),
		QuotaRejections:  atomic.LoadUint64(&m.quotaRejections),
		BroadcastRetries: atomic.LoadUint64(&m.broadcastRetries),
		BroadcastDrops:   atomic.LoadUint64(&m.broadcastDrops),
		EventsDropped:    atomic.LoadUint64(&m.eventsDropped),
	}
}
