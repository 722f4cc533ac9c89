// Package ratelimit throttles inbound traffic per identity with lazily refilled token buckets.
package ratelimit

import (
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Arena/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const DefaultMaxBuckets = 10000

// Rule is the per-scope bucket shape: burst size and tokens per second.
type Rule struct {
	Capacity float64 `mapstructure:"capacity" validate:"gt=0"`
	Rate     float64 `mapstructure:"rate" validate:"gt=0"`
}

func (r Rule) Validate() error {
	if r.Capacity <= 0 || r.Rate <= 0 {
		return domain.New(domain.CodeInvalidConfig, "rate limit capacity and rate must be positive").
			WithContext("capacity", r.Capacity).
			WithContext("rate", r.Rate)
	}
	return nil
}

// NewRule fails fast on non-positive values.
func NewRule(capacity, rate float64) (Rule, error) {
	r := Rule{Capacity: capacity, Rate: rate}
	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

type bucket struct {
	lim        *rate.Limiter
	lastUpdate time.Time
}

// burst rounds capacity down to whole tokens, never below one.
func burst(capacity float64) int {
	return max(1, int(capacity))
}

// Limiter keeps one bucket per key behind a single mutex.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*bucket
	maxBuckets int
	now        func() time.Time
	log        zerolog.Logger
}

type Option func(*Limiter)

// WithClock replaces time.Now, used by tests to drive refill.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.log = logger }
}

func New(maxBuckets int, opts ...Option) *Limiter {
	if maxBuckets <= 0 {
		maxBuckets = DefaultMaxBuckets
	}
	l := &Limiter{
		buckets:    make(map[string]*bucket),
		maxBuckets: maxBuckets,
		now:        time.Now,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow refills the bucket for key from elapsed time and consumes one token if available.
// A key seen for the first time starts with a full bucket. A changed capacity or
// rate applies to the existing bucket from now on.
func (l *Limiter) Allow(key string, capacity, perSecond float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	limit, size := rate.Limit(perSecond), burst(capacity)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(limit, size), lastUpdate: now}
		l.buckets[key] = b
		if len(l.buckets) > l.maxBuckets {
			l.evictLocked(key)
		}
	} else {
		if b.lim.Limit() != limit {
			b.lim.SetLimitAt(now, limit)
		}
		if b.lim.Burst() != size {
			b.lim.SetBurstAt(now, size)
		}
	}
	if now.After(b.lastUpdate) {
		b.lastUpdate = now
	}
	return b.lim.AllowN(now, 1)
}

// AllowRule is Allow with a validated Rule.
func (l *Limiter) AllowRule(key string, r Rule) bool {
	return l.Allow(key, r.Capacity, r.Rate)
}

func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Remaining reports the token count as of the last Allow call for key.
func (l *Limiter) Remaining(key string) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		return 0, false
	}
	return max(0, b.lim.TokensAt(b.lastUpdate)), true
}

func (l *Limiter) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[string]*bucket)
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// evictLocked drops the oldest tenth of buckets by lastUpdate, never keep.
func (l *Limiter) evictLocked(keep string) {
	type entry struct {
		key string
		at  time.Time
	}
	entries := make([]entry, 0, len(l.buckets))
	for k, b := range l.buckets {
		if k == keep {
			continue
		}
		entries = append(entries, entry{key: k, at: b.lastUpdate})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.Before(entries[j].at) })

	n := max(1, len(l.buckets)/10)
	if n > len(entries) {
		n = len(entries)
	}
	for _, e := range entries[:n] {
		delete(l.buckets, e.key)
	}
	l.log.Debug().Str("module", "ratelimit").Int("evicted", n).Int("buckets", len(l.buckets)).Msg("evicted idle buckets")
}
