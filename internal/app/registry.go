// Package app holds the in-memory tables behind matchmaking.
// Registry, Queue and Rooms are not safe for concurrent use; the orchestrator
// serializes every access. RateLimiter carries its own lock.
package app

import (
	"time"

	"github.com/dkeye/Tandem/internal/core"
	"github.com/dkeye/Tandem/internal/domain"
	"github.com/rs/zerolog/log"
)

// Entry is a registered participant together with its connection handle.
type Entry struct {
	*domain.Participant
	Conn core.SignalConnection
}

// Open reports whether frames can still be delivered to the participant.
func (e *Entry) Open() bool { return e.Conn != nil && !e.Conn.IsClosed() }

type Registry struct {
	entries map[domain.ParticipantID]*Entry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.ParticipantID]*Entry),
	}
}

func (r *Registry) Add(p *domain.Participant, conn core.SignalConnection) *Entry {
	e := &Entry{Participant: p, Conn: conn}
	r.entries[p.ID] = e
	log.Info().Str("module", "app.registry").Str("sid", string(p.ID)).Str("alias", p.Alias).Msg("registered participant")
	return e
}

func (r *Registry) Get(id domain.ParticipantID) (*Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *Registry) Remove(id domain.ParticipantID) (*Entry, bool) {
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	log.Info().Str("module", "app.registry").Str("sid", string(id)).Msg("unregistered participant")
	return e, true
}

// Touch records activity. Unknown ids are ignored.
func (r *Registry) Touch(id domain.ParticipantID, now time.Time) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.LastSeen = now
	return true
}

func (r *Registry) Len() int { return len(r.entries) }

// Silent returns participants with no activity for longer than timeout.
func (r *Registry) Silent(now time.Time, timeout time.Duration) []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if now.Sub(e.LastSeen) > timeout {
			out = append(out, e)
		}
	}
	return out
}

// StaleNegotiations returns participants whose pending offer is older than timeout.
func (r *Registry) StaleNegotiations(now time.Time, timeout time.Duration) []*Entry {
	var out []*Entry
	for _, e := range r.entries {
		if e.NegotiationPending() && now.Sub(e.NegotiationStarted) > timeout {
			out = append(out, e)
		}
	}
	return out
}

func (r *Registry) Connections() []core.SignalConnection {
	out := make([]core.SignalConnection, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Conn)
	}
	return out
}
