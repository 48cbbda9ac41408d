package app

import (
	"sync"
	"time"

	"github.com/dkeye/Tandem/internal/core"
	"github.com/dkeye/Tandem/internal/domain"
)

// RateRule allows Max actions per Window.
type RateRule struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}

func DefaultRateRules() map[core.MessageType]RateRule {
	return map[core.MessageType]RateRule{
		core.TypeChatMessage:           {Max: 10, Window: 5 * time.Second},
		core.TypeJoinQueue:             {Max: 5, Window: 10 * time.Second},
		core.TypeTyping:                {Max: 20, Window: 5 * time.Second},
		core.TypeConnectivityCandidate: {Max: 100, Window: 10 * time.Second},
		core.TypeNegotiationOffer:      {Max: 5, Window: 10 * time.Second},
		core.TypeNegotiationAnswer:     {Max: 5, Window: 10 * time.Second},
	}
}

type rateKey struct {
	id   domain.ParticipantID
	kind core.MessageType
}

type rateRecord struct {
	start time.Time
	last  time.Time
	count int
}

// RateLimiter keeps one fixed window per (participant, kind).
// Kinds without a rule are always allowed.
type RateLimiter struct {
	mu      sync.Mutex
	rules   map[core.MessageType]RateRule
	records map[rateKey]*rateRecord
	idle    time.Duration
	now     func() time.Time
}

func NewRateLimiter(rules map[core.MessageType]RateRule, idle time.Duration, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		rules:   rules,
		records: make(map[rateKey]*rateRecord),
		idle:    idle,
		now:     now,
	}
}

func (rl *RateLimiter) Allow(id domain.ParticipantID, kind core.MessageType) bool {
	rule, ok := rl.rules[kind]
	if !ok {
		return true
	}
	if rule.Max <= 0 {
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	key := rateKey{id: id, kind: kind}
	rec, ok := rl.records[key]
	if !ok || now.Sub(rec.start) >= rule.Window {
		rl.records[key] = &rateRecord{start: now, last: now, count: 1}
		return true
	}
	rec.last = now
	rec.count++
	return rec.count <= rule.Max
}

// Sweep drops records idle longer than the idle horizon and returns how many went.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for key, rec := range rl.records {
		if now.Sub(rec.last) > rl.idle {
			delete(rl.records, key)
			n++
		}
	}
	return n
}

// Forget drops every record of a participant.
func (rl *RateLimiter) Forget(id domain.ParticipantID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key := range rl.records {
		if key.id == id {
			delete(rl.records, key)
		}
	}
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.records)
}
