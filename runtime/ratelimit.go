package runtime

import (
	"sync"
	"time"
)

// Limits holds the quota ceilings applied to every subject calling the
// AI-backed endpoints.
type Limits struct {
	RequestsPerMinute int
	RequestsPerDay    int
	TokensPerDay      int
}

// DefaultLimits mirrors the product defaults: 3 calls a minute, 10 calls
// and 100k estimated tokens a day.
var DefaultLimits = Limits{
	RequestsPerMinute: 3,
	RequestsPerDay:    10,
	TokensPerDay:      100000,
}

// RateLimiter enforces a per-subject rolling minute window and a local
// calendar-day window. Windows are stateless time comparisons reset on
// boundary crossing; no background timer runs. State grows with the number
// of distinct subjects and is never evicted, an accepted limitation of the
// single-process design.
type RateLimiter struct {
	limits  Limits
	now     func() time.Time
	minutes sync.Map // subject -> *minuteWindow
	days    sync.Map // subject -> *dayWindow
}

type minuteWindow struct {
	mu     sync.Mutex
	bucket int64 // unix millis / 60000
	count  int
}

type dayWindow struct {
	mu       sync.Mutex
	year     int
	month    time.Month
	day      int
	requests int
	tokens   int
}

func NewRateLimiter(limits Limits) *RateLimiter {
	return NewRateLimiterWithClock(limits, time.Now)
}

// NewRateLimiterWithClock exists for boundary-crossing tests; production
// code uses NewRateLimiter.
func NewRateLimiterWithClock(limits Limits, now func() time.Time) *RateLimiter {
	return &RateLimiter{limits: limits, now: now}
}

// TryConsume records one request for the subject and reports whether it is
// admitted. Both windows must pass.
//
// The minute window is checked and consumed before the day window is
// evaluated: a request rejected on the day quota still burns a minute
// slot. Rolling the slot back would change fairness under mixed
// pass/fail sequences, so the ordering is kept as is.
func (l *RateLimiter) TryConsume(subjectID string, estimatedTokens int) bool {
	if subjectID == "" {
		return false
	}
	minuteOK := l.consumeMinute(subjectID)
	dayOK := l.consumeDay(subjectID, estimatedTokens)
	return minuteOK && dayOK
}

func (l *RateLimiter) consumeMinute(subjectID string) bool {
	now := l.now()
	bucket := now.UnixMilli() / 60000

	v, _ := l.minutes.LoadOrStore(subjectID, &minuteWindow{bucket: bucket})
	w := v.(*minuteWindow)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bucket != bucket {
		w.bucket = bucket
		w.count = 0
	}
	if w.count >= l.limits.RequestsPerMinute {
		return false
	}
	w.count++
	return true
}

func (l *RateLimiter) consumeDay(subjectID string, estimatedTokens int) bool {
	now := l.now()
	year, month, day := now.Date()

	v, _ := l.days.LoadOrStore(subjectID, &dayWindow{year: year, month: month, day: day})
	w := v.(*dayWindow)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.year != year || w.month != month || w.day != day {
		// Comparing local calendar dates, not a raw 24h rollover: a user
		// active at 23:59 keeps their fresh quota at 00:00 local time.
		w.year, w.month, w.day = year, month, day
		w.requests = 0
		w.tokens = 0
	}
	if w.requests >= l.limits.RequestsPerDay {
		return false
	}
	if w.tokens+estimatedTokens > l.limits.TokensPerDay {
		return false
	}
	w.requests++
	w.tokens += estimatedTokens
	return true
}

// RemainingMinuteRequests reports how many calls the subject may still make
// in the current minute. Non-mutating; a subject with no live window gets
// the full ceiling.
func (l *RateLimiter) RemainingMinuteRequests(subjectID string) int {
	v, ok := l.minutes.Load(subjectID)
	if !ok {
		return l.limits.RequestsPerMinute
	}
	w := v.(*minuteWindow)
	bucket := l.now().UnixMilli() / 60000

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.bucket != bucket {
		return l.limits.RequestsPerMinute
	}
	return max(0, l.limits.RequestsPerMinute-w.count)
}

// RemainingDayRequests reports how many calls the subject may still make
// today.
func (l *RateLimiter) RemainingDayRequests(subjectID string) int {
	w, live := l.liveDay(subjectID)
	if !live {
		return l.limits.RequestsPerDay
	}
	defer w.mu.Unlock()
	return max(0, l.limits.RequestsPerDay-w.requests)
}

// RemainingDayTokens reports how many estimated tokens the subject may
// still consume today.
func (l *RateLimiter) RemainingDayTokens(subjectID string) int {
	w, live := l.liveDay(subjectID)
	if !live {
		return l.limits.TokensPerDay
	}
	defer w.mu.Unlock()
	return max(0, l.limits.TokensPerDay-w.tokens)
}

// liveDay returns the subject's day window locked, or live=false when the
// subject has no record for the current local date.
func (l *RateLimiter) liveDay(subjectID string) (*dayWindow, bool) {
	v, ok := l.days.Load(subjectID)
	if !ok {
		return nil, false
	}
	w := v.(*dayWindow)
	year, month, day := l.now().Date()

	w.mu.Lock()
	if w.year != year || w.month != month || w.day != day {
		w.mu.Unlock()
		return nil, false
	}
	return w, true
}
