//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"study-hub/domain"
	"study-hub/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself.
// Can be silly, focused.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives outbound domain events. A sink is typically one
// transport connection; Consume must be cheap and may fail.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// LeaveResult reports the effect of one teardown on one (room, feedClass)
// membership. User is empty when the connection was never associated with
// a user. LastInFeed is true only on a true 1→0 transition.
type LeaveResult struct {
	Room domain.RoomID
	User string
	Feed domain.FeedClass
	// LastInFeed is true only on a true user-level 1→0 transition.
	LastInFeed bool
	// ConnectionDone is true when the connection no longer holds any
	// subscription to this (room, feedClass); the transport can release
	// its routing for that pair.
	ConnectionDone bool
}

// IRegistry tracks which connections subscribe which room feeds, collapsed
// to user-level membership counts.
type IRegistry interface {
	Subscribe(conn domain.ConnectionID, sub domain.SubscriptionID, room domain.RoomID, user string, feed domain.FeedClass) bool
	Unsubscribe(conn domain.ConnectionID, sub domain.SubscriptionID) *LeaveResult
	Disconnect(conn domain.ConnectionID) []LeaveResult
}

// IPresence maintains the coarse per-room activity label of each user.
type IPresence interface {
	MarkOnline(room domain.RoomID, user string)
	UpdateStatus(room domain.RoomID, user string, status string)
	Heartbeat(room domain.RoomID, user string)
	MarkOffline(room domain.RoomID, user string)
	Snapshot(room domain.RoomID) map[string]domain.Status
}

// IRateLimiter admits or rejects an expensive downstream call for a subject.
type IRateLimiter interface {
	TryConsume(subjectID string, estimatedTokens int) bool
	RemainingMinuteRequests(subjectID string) int
	RemainingDayRequests(subjectID string) int
	RemainingDayTokens(subjectID string) int
}

// IIdentity resolves a stable subject identifier to a display name.
// Implemented by the user directory; the core never stores profiles.
type IIdentity interface {
	DisplayName(providerID string) (string, error)
}

// CounterStore is the extension point for sharing membership counts across
// several server instances. The in-process registry is the only
// implementation today; a distributed one would back it with an external
// store. Increment and Decrement return the count after the operation;
// Decrement never goes below zero.
type CounterStore interface {
	Increment(key string) int64
	Decrement(key string) int64
}
