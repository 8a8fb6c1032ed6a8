package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"study-hub/contract"
	"study-hub/domain"
	"study-hub/domain/event"
	"study-hub/observability"
)

// countingSink fails the first failures deliveries, then succeeds.
type countingSink struct {
	mu       sync.Mutex
	failures int
	attempts int
	received []event.DomainEvent
}

func (s *countingSink) Consume(_ context.Context, e event.DomainEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.attempts <= s.failures {
		return fmt.Errorf("sink unavailable")
	}
	s.received = append(s.received, e)
	return nil
}

func (s *countingSink) stats() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts, len(s.received)
}

// staticSinks routes every (room, feed) to the same sinks.
type staticSinks []contract.EventSink

func (s staticSinks) SinksFor(domain.RoomID, domain.FeedClass) []contract.EventSink {
	return s
}

func runBroadcast(t *testing.T, sinks SinkSource, metrics *observability.CoreMetrics,
	events ...event.DomainEvent) {
	t.Helper()
	ch := make(chan event.DomainEvent, len(events))
	for _, evt := range events {
		ch <- evt
	}

	worker := NewBroadcastWorker(slog.Default(), ch, sinks, metrics)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	// Let the worker drain the channel including retry backoffs
	deadline := time.After(2 * time.Second)
	for {
		if len(ch) == 0 {
			time.Sleep(2 * deliveryAttempts * retryBackoff)
			break
		}
		select {
		case <-deadline:
			t.Fatal("broadcast worker did not drain the channel")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestBroadcastWorker_Delivers_To_Every_Routed_Sink(t *testing.T) {
	req := require.New(t)
	metrics := observability.NewCoreMetrics()
	sink1 := &countingSink{}
	sink2 := &countingSink{}

	evt := event.RoomNotice{Room: 1, Type: event.NoticeJoin, SubjectID: "alice"}
	runBroadcast(t, staticSinks{sink1, sink2}, metrics, evt)

	_, received1 := sink1.stats()
	_, received2 := sink2.stats()
	req.Equal(1, received1)
	req.Equal(1, received2)
	req.EqualValues(0, metrics.Snapshot().BroadcastDrops)
}

func TestBroadcastWorker_Retries_Flaky_Sink_Then_Succeeds(t *testing.T) {
	req := require.New(t)
	metrics := observability.NewCoreMetrics()
	flaky := &countingSink{failures: 2}

	evt := event.RoomNotice{Room: 1, Type: event.NoticeJoin, SubjectID: "alice"}
	runBroadcast(t, staticSinks{flaky}, metrics, evt)

	attempts, received := flaky.stats()
	req.Equal(3, attempts)
	req.Equal(1, received)
	req.EqualValues(2, metrics.Snapshot().BroadcastRetries)
	req.EqualValues(0, metrics.Snapshot().BroadcastDrops)
}

func TestBroadcastWorker_Drops_After_Exhausted_Retries(t *testing.T) {
	req := require.New(t)
	metrics := observability.NewCoreMetrics()
	dead := &countingSink{failures: 10}

	evt := event.RoomNotice{Room: 1, Type: event.NoticeLeave, SubjectID: "bob"}
	runBroadcast(t, staticSinks{dead}, metrics, evt)

	attempts, received := dead.stats()
	req.Equal(deliveryAttempts, attempts)
	req.Equal(0, received)
	req.EqualValues(1, metrics.Snapshot().BroadcastDrops)
}

func TestBroadcastWorker_One_Dead_Sink_Does_Not_Block_Others(t *testing.T) {
	req := require.New(t)
	metrics := observability.NewCoreMetrics()
	dead := &countingSink{failures: 10}
	healthy := &countingSink{}

	evt := event.RoomNotice{Room: 1, Type: event.NoticeJoin, SubjectID: "alice"}
	runBroadcast(t, staticSinks{dead, healthy}, metrics, evt)

	_, received := healthy.stats()
	req.Equal(1, received)
	req.EqualValues(1, metrics.Snapshot().BroadcastDrops)
}
