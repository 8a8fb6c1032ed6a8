package workers

import (
	"context"
	"log/slog"
	"time"

	"study-hub/contract"
	"study-hub/domain"
	"study-hub/domain/event"
	"study-hub/observability"
)

const (
	deliveryAttempts = 3
	retryBackoff     = 50 * time.Millisecond
)

// SinkSource resolves the sinks currently routed to a room feed.
type SinkSource interface {
	SinksFor(room domain.RoomID, feed domain.FeedClass) []contract.EventSink
}

// BroadcastWorker drains the coordinator's outbound channel and delivers
// each event to every sink routed to its (room, feedClass).
//
// Delivery is best-effort: a failing sink gets a couple of quick retries,
// then the event is dropped for that sink only. The worker never blocks
// the room pipeline on a slow consumer and provides no ordering or
// durability guarantees across sinks.
type BroadcastWorker struct {
	log     *slog.Logger
	events  <-chan event.DomainEvent
	sinks   SinkSource
	metrics *observability.CoreMetrics
}

func NewBroadcastWorker(log *slog.Logger, events <-chan event.DomainEvent,
	sinks SinkSource, metrics *observability.CoreMetrics) *BroadcastWorker {
	return &BroadcastWorker{log: log, events: events, sinks: sinks, metrics: metrics}
}

func (w *BroadcastWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping broadcast")
			return nil
		case evt := <-w.events:
			w.broadcast(ctx, evt)
		}
	}
}

// broadcast One delivery per routed sink
func (w *BroadcastWorker) broadcast(ctx context.Context, evt event.DomainEvent) {
	targets := w.sinks.SinksFor(evt.RoomID(), evt.Feed())
	for _, sink := range targets {
		w.deliver(ctx, sink, evt)
	}
}

func (w *BroadcastWorker) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	var err error
	for attempt := 1; attempt <= deliveryAttempts; attempt++ {
		if err = sink.Consume(ctx, evt); err == nil {
			return
		}
		if attempt == deliveryAttempts {
			break
		}
		w.metrics.IncrBroadcastRetries()
		select {
		case <-ctx.Done():
			return
		case <-time.After(retryBackoff):
		}
	}

	w.metrics.IncrBroadcastDrops()
	w.log.Warn("Dropping event after failed deliveries",
		"room", evt.RoomID(), "feed", evt.Feed(), "error", err)
}
