// Package orch coordinates the registry, queue, rooms and rate limiter.
// Every table mutation happens under one lock; frames produced while it is
// held are delivered only after it is released.
package orch

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Tandem/internal/app"
	"github.com/dkeye/Tandem/internal/core"
	"github.com/dkeye/Tandem/internal/domain"
	"github.com/rs/zerolog/log"
)

type Settings struct {
	FallbackAfter      time.Duration
	QueueTimeout       time.Duration
	RoomMaxAge         time.Duration
	NegotiationTimeout time.Duration
	HeartbeatTimeout   time.Duration
	RateLimitIdle      time.Duration
	RateRules          map[core.MessageType]app.RateRule
	Sweeps             SweepIntervals
}

// SweepIntervals sets how often each reaper task runs.
type SweepIntervals struct {
	RateLimits   time.Duration
	Rooms        time.Duration
	Queue        time.Duration
	Heartbeats   time.Duration
	Negotiations time.Duration
	AgedPairs    time.Duration
}

func DefaultSettings() Settings {
	return Settings{
		FallbackAfter:      30 * time.Second,
		QueueTimeout:       2 * time.Minute,
		RoomMaxAge:         30 * time.Minute,
		NegotiationTimeout: 15 * time.Second,
		HeartbeatTimeout:   45 * time.Second,
		RateLimitIdle:      time.Minute,
		RateRules:          app.DefaultRateRules(),
		Sweeps: SweepIntervals{
			RateLimits:   30 * time.Second,
			Rooms:        time.Minute,
			Queue:        30 * time.Second,
			Heartbeats:   15 * time.Second,
			Negotiations: time.Second,
			AgedPairs:    5 * time.Second,
		},
	}
}

type Metrics struct {
	TotalConnections     int64 `json:"totalConnections"`
	TotalMatches         int64 `json:"totalMatches"`
	ConnectivityFailures int64 `json:"connectivityFailures"`
	NegotiationTimeouts  int64 `json:"negotiationTimeouts"`
}

type Stats struct {
	Online      int           `json:"online"`
	InQueue     int           `json:"inQueue"`
	ActiveRooms int           `json:"activeRooms"`
	Uptime      time.Duration `json:"-"`
	Metrics     Metrics       `json:"metrics"`
}

type Option func(*Orchestrator)

// WithClock replaces time.Now for every time-based decision.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func WithPolicy(p app.Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

type Orchestrator struct {
	mu       sync.Mutex
	registry *app.Registry
	queue    *app.Queue
	rooms    *app.Rooms
	metrics  Metrics

	limiter  *app.RateLimiter
	policy   app.Policy
	settings Settings
	now      func() time.Time
	started  time.Time
}

func New(settings Settings, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: app.NewRegistry(),
		queue:    app.NewQueue(),
		rooms:    app.NewRooms(),
		policy:   app.SimplePolicy{},
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.limiter = app.NewRateLimiter(settings.RateRules, settings.RateLimitIdle, o.now)
	o.started = o.now()
	return o
}

type delivery struct {
	to    *app.Entry
	kind  core.MessageType
	frame core.Frame
}

// outbox collects frames while the lock is held.
type outbox []delivery

func (out *outbox) send(e *app.Entry, t core.MessageType, payload any) {
	if e == nil || e.Conn == nil {
		return
	}
	f, err := core.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode")
		return
	}
	*out = append(*out, delivery{to: e, kind: t, frame: f})
}

// do runs fn under the lock and delivers what it produced afterwards.
func (o *Orchestrator) do(fn func(out *outbox)) {
	var out outbox
	o.mu.Lock()
	fn(&out)
	o.mu.Unlock()
	o.deliver(out)
}

func (o *Orchestrator) deliver(out outbox) {
	for _, d := range out {
		err := d.to.Conn.TrySend(d.frame)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrBackpressure):
			switch o.policy.OnBackPressure(d.to, d.kind) {
			case app.KickMember:
				log.Warn().Str("module", "app.orch").Str("sid", string(d.to.ID)).Str("type", string(d.kind)).Msg("send buffer full, closing connection")
				d.to.Conn.Close()
			case app.DropFrame:
				log.Debug().Str("module", "app.orch").Str("sid", string(d.to.ID)).Str("type", string(d.kind)).Msg("send buffer full, frame dropped")
			}
		default:
			log.Debug().Err(err).Str("module", "app.orch").Str("sid", string(d.to.ID)).Str("type", string(d.kind)).Msg("frame dropped")
		}
	}
}

// Connect registers a new participant on conn and greets it. A non-empty alias is kept.
func (o *Orchestrator) Connect(conn core.SignalConnection, alias string) domain.Participant {
	var p *domain.Participant
	o.do(func(out *outbox) {
		p = domain.NewParticipant(alias, o.now())
		e := o.registry.Add(p, conn)
		o.metrics.TotalConnections++
		out.send(e, core.TypeConnected, core.Connected{
			ID:          p.ID,
			Alias:       p.Alias,
			OnlineCount: o.registry.Len(),
		})
	})
	return *p
}

// Disconnect removes the participant and everything that references it.
// The partner of a room it held is told partner_left. Unknown ids are ignored.
func (o *Orchestrator) Disconnect(id domain.ParticipantID) {
	var conn core.SignalConnection
	o.do(func(out *outbox) {
		conn = o.disconnectLocked(out, id)
	})
	if conn != nil {
		conn.Close()
	}
}

func (o *Orchestrator) disconnectLocked(out *outbox, id domain.ParticipantID) core.SignalConnection {
	e, ok := o.registry.Get(id)
	if !ok {
		return nil
	}
	o.queue.Remove(id)
	o.leaveRoomLocked(out, e)
	o.registry.Remove(id)
	o.limiter.Forget(id)
	return e.Conn
}

// Touch records activity for the liveness check.
func (o *Orchestrator) Touch(id domain.ParticipantID) {
	o.mu.Lock()
	o.registry.Touch(id, o.now())
	o.mu.Unlock()
}

// Allow consults the rate limiter for one inbound message.
func (o *Orchestrator) Allow(id domain.ParticipantID, kind core.MessageType) bool {
	return o.limiter.Allow(id, kind)
}

func (o *Orchestrator) Ping(id domain.ParticipantID) {
	o.do(func(out *outbox) {
		e, ok := o.registry.Get(id)
		if !ok {
			return
		}
		out.send(e, core.TypeLivenessPong, core.LivenessPong{
			OnlineCount: o.registry.Len(),
			QueueLength: o.queue.Len(),
		})
	})
}

// ReportConnectivityFailure only feeds metrics.
func (o *Orchestrator) ReportConnectivityFailure(id domain.ParticipantID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.registry.Get(id); !ok {
		return
	}
	o.metrics.ConnectivityFailures++
	log.Info().Str("module", "app.orch").Str("sid", string(id)).Msg("connectivity failure reported")
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{
		Online:      o.registry.Len(),
		InQueue:     o.queue.Len(),
		ActiveRooms: o.rooms.Len(),
		Uptime:      o.now().Sub(o.started),
		Metrics:     o.metrics,
	}
}

// CloseAll closes every registered connection. Their read loops run the regular disconnect path.
func (o *Orchestrator) CloseAll() {
	o.mu.Lock()
	conns := o.registry.Connections()
	o.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	log.Info().Str("module", "app.orch").Int("count", len(conns)).Msg("closed all connections")
}

// eligible reports whether a queued participant can still be matched.
func (o *Orchestrator) eligible(id domain.ParticipantID) (domain.Preferences, bool) {
	e, ok := o.registry.Get(id)
	if !ok || !e.Open() || e.InRoom() {
		return domain.Preferences{}, false
	}
	return e.Prefs, true
}
