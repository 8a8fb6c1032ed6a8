package runtime

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"study-hub/contract"
	"study-hub/domain"
	"study-hub/domain/event"
	"study-hub/observability"
	"study-hub/repositories"
)

// Censor rewrites message content before it is persisted or broadcast.
type Censor interface {
	Censor(content string) string
}

// Coordinator receives typed transport events as plain function calls and
// drives the three core components: the membership registry decides
// whether a subscribe/teardown is a true first-join or last-leave, the
// presence tracker turns presence-feed signals into status transitions,
// and the rate limiter guards the AI-backed endpoints.
//
// The coordinator produces data and queues events; actual delivery (and
// its retries) belongs to the broadcast worker draining Outbound().
type Coordinator struct {
	log      *slog.Logger
	registry contract.IRegistry
	presence contract.IPresence
	limiter  contract.IRateLimiter
	identity contract.IIdentity
	messages repositories.IMessageRepository
	censor   Censor
	sinks    *SinkRegistry
	outbound chan event.DomainEvent
	metrics  *observability.CoreMetrics
	now      func() time.Time
}

func NewCoordinator(log *slog.Logger, registry contract.IRegistry,
	limiter contract.IRateLimiter, identity contract.IIdentity,
	messages repositories.IMessageRepository, censor Censor,
	sinks *SinkRegistry, metrics *observability.CoreMetrics,
	bufferSize int) *Coordinator {
	c := &Coordinator{
		log:      log,
		registry: registry,
		limiter:  limiter,
		identity: identity,
		messages: messages,
		censor:   censor,
		sinks:    sinks,
		outbound: make(chan event.DomainEvent, bufferSize),
		metrics:  metrics,
		now:      time.Now,
	}
	c.presence = NewPresenceTracker(log, c.emitPresence)
	return c
}

// Outbound is drained by the broadcast worker.
func (c *Coordinator) Outbound() <-chan event.DomainEvent {
	return c.outbound
}

// Presence exposes the tracker for status queries (debug server, REST).
func (c *Coordinator) Presence() contract.IPresence {
	return c.presence
}

// HandleSubscribe processes one subscription frame. A JOIN notice goes out
// only on the user's true first chat-feed connection to the room; the
// first presence-feed connection flips them ONLINE.
func (c *Coordinator) HandleSubscribe(conn domain.ConnectionID, sub domain.SubscriptionID,
	room domain.RoomID, user string, feed domain.FeedClass, sink contract.EventSink) {
	if conn == "" || sub == "" || room == 0 || user == "" || !feed.Valid() {
		return
	}
	if sink != nil {
		c.sinks.Attach(conn, sink)
	}
	c.sinks.Route(conn, room, feed)

	if !c.registry.Subscribe(conn, sub, room, user, feed) {
		return
	}
	c.metrics.IncrFirstJoins()
	c.log.Debug("First join", "room", room, "user", user, "feed", feed)

	switch feed {
	case domain.ChatFeed:
		c.announce(room, user, event.NoticeJoin)
	case domain.PresenceFeed:
		c.presence.MarkOnline(room, user)
	}
}

// HandleUnsubscribe processes one unsubscribe frame. Late or duplicated
// frames resolve to nil inside the registry and are dropped here without
// any visible effect.
func (c *Coordinator) HandleUnsubscribe(conn domain.ConnectionID, sub domain.SubscriptionID) {
	res := c.registry.Unsubscribe(conn, sub)
	if res == nil {
		return
	}
	if res.ConnectionDone {
		c.sinks.Unroute(conn, res.Room, res.Feed)
	}
	if !res.LastInFeed || res.User == "" {
		return
	}
	c.onLastLeave(*res)
}

// HandleDisconnect tears down everything a dying connection held, emitting
// the same leave signals an orderly unsubscribe sequence would have.
func (c *Coordinator) HandleDisconnect(conn domain.ConnectionID) {
	results := c.registry.Disconnect(conn)
	c.sinks.Detach(conn)
	for _, res := range results {
		if res.LastInFeed {
			c.onLastLeave(res)
		}
	}
}

func (c *Coordinator) HandleStatusUpdate(cmd domain.UpdateStatusCommand) {
	c.presence.UpdateStatus(cmd.RoomID(), cmd.UserID, cmd.Status)
}

func (c *Coordinator) HandleHeartbeat(room domain.RoomID, user string) {
	c.presence.Heartbeat(room, user)
}

// HandleMessage moderates, persists and queues an inbound chat message.
// Malformed frames are dropped silently; only storage failures surface.
func (c *Coordinator) HandleMessage(cmd domain.PostMessageCommand) error {
	if cmd.Room == 0 || cmd.SenderID == "" || cmd.Content == "" {
		return nil
	}
	content := cmd.Content
	if c.censor != nil {
		content = c.censor.Censor(content)
	}
	at := cmd.CreatedAt
	if at.IsZero() {
		at = c.now()
	}

	msg := domain.Message{
		ID:        uuid.New(),
		Room:      cmd.Room,
		SenderID:  cmd.SenderID,
		Kind:      domain.KindChat,
		Content:   content,
		CreatedAt: at,
	}
	if err := c.messages.Store(msg); err != nil {
		return fmt.Errorf("storing message for room %d: %w", cmd.Room, err)
	}
	c.metrics.IncrMessagesStored()

	c.enqueue(event.MessagePosted{
		ID:      msg.ID,
		Room:    msg.Room,
		Author:  msg.SenderID,
		Content: msg.Content,
		At:      msg.CreatedAt,
	})
	return nil
}

// Quota is the remaining budget returned alongside an admission decision,
// surfaced to clients as rate-limit headers.
type Quota struct {
	MinuteRequests int
	DayRequests    int
	DayTokens      int
}

// AuthorizeAIRequest admits or rejects one call to the AI backend for a
// subject. A rejection maps to a 429 at the HTTP boundary.
func (c *Coordinator) AuthorizeAIRequest(subjectID string, estimatedTokens int) (bool, Quota) {
	allowed := c.limiter.TryConsume(subjectID, estimatedTokens)
	if !allowed {
		c.metrics.IncrQuotaRejections()
		c.log.Debug("AI quota rejection", "subject", subjectID, "tokens", estimatedTokens)
	}
	return allowed, Quota{
		MinuteRequests: c.limiter.RemainingMinuteRequests(subjectID),
		DayRequests:    c.limiter.RemainingDayRequests(subjectID),
		DayTokens:      c.limiter.RemainingDayTokens(subjectID),
	}
}

func (c *Coordinator) onLastLeave(res contract.LeaveResult) {
	c.metrics.IncrLastLeaves()
	c.log.Debug("Last leave", "room", res.Room, "user", res.User, "feed", res.Feed)

	switch res.Feed {
	case domain.ChatFeed:
		c.announce(res.Room, res.User, event.NoticeLeave)
	case domain.PresenceFeed:
		c.presence.MarkOffline(res.Room, res.User)
	}
}

// announce persists and queues a JOIN/LEAVE system notice for the room's
// chat feed.
func (c *Coordinator) announce(room domain.RoomID, user string, notice event.NoticeType) {
	name := c.resolveName(user)
	var content string
	switch notice {
	case event.NoticeJoin:
		content = fmt.Sprintf("%s joined the room", name)
	case event.NoticeLeave:
		content = fmt.Sprintf("%s left the room", name)
	}
	at := c.now()

	msg := domain.Message{
		ID:        uuid.New(),
		Room:      int64(room),
		SenderID:  user,
		Kind:      domain.KindSystem,
		Content:   content,
		CreatedAt: at,
	}
	if err := c.messages.Store(msg); err != nil {
		c.log.Error("Failed to persist system notice", "room", room, "err", err)
	} else {
		c.metrics.IncrMessagesStored()
	}

	c.enqueue(event.RoomNotice{
		Room:      int64(room),
		Type:      notice,
		SubjectID: user,
		Content:   content,
		At:        at,
	})
}

// emitPresence enriches a tracker transition with the display name and
// queues it. Resolving here keeps the tracker free of profile concerns.
func (c *Coordinator) emitPresence(p event.PresenceChanged) {
	p.DisplayName = c.resolveName(p.SubjectID)
	c.metrics.IncrPresenceUpdates()
	c.enqueue(p)
}

// resolveName falls back to the raw subject id when the directory misses:
// a membership signal is too valuable to lose over a profile lookup.
func (c *Coordinator) resolveName(providerID string) string {
	name, err := c.identity.DisplayName(providerID)
	if err != nil {
		c.log.Warn("Display name lookup failed, using subject id", "subject", providerID, "err", err)
		return providerID
	}
	return name
}

func (c *Coordinator) enqueue(evt event.DomainEvent) {
	select {
	case c.outbound <- evt:
	default:
		c.metrics.IncrEventsDropped()
		c.log.Warn(fmt.Sprintf("Outbound channel full for Room %d, dropping event", evt.RoomID()))
	}
}
