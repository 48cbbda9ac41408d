package orch

import (
	"context"
	"time"

	"github.com/dkeye/Tandem/internal/core"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// RunReaper runs every periodic sweep until ctx is done.
func (o *Orchestrator) RunReaper(ctx context.Context) {
	s := o.settings.Sweeps
	tasks := []struct {
		name     string
		interval time.Duration
		sweep    func() int
	}{
		{"rate_limits", s.RateLimits, o.SweepRateLimits},
		{"rooms", s.Rooms, o.SweepRooms},
		{"queue", s.Queue, o.SweepQueue},
		{"heartbeats", s.Heartbeats, o.SweepHeartbeats},
		{"negotiations", s.Negotiations, o.SweepNegotiations},
		{"aged_pairs", s.AgedPairs, o.SweepAgedPairs},
	}

	var wg conc.WaitGroup
	for _, t := range tasks {
		if t.interval <= 0 {
			log.Warn().Str("module", "app.reaper").Str("task", t.name).Msg("sweep disabled")
			continue
		}
		wg.Go(func() { every(ctx, t.name, t.interval, t.sweep) })
	}
	log.Info().Str("module", "app.reaper").Msg("reaper started")
	wg.Wait()
	log.Info().Str("module", "app.reaper").Msg("reaper stopped")
}

func every(ctx context.Context, name string, interval time.Duration, sweep func() int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sweep(); n > 0 {
				log.Debug().Str("module", "app.reaper").Str("task", name).Int("count", n).Msg("swept")
			}
		}
	}
}

// SweepRateLimits evicts idle rate-limit records.
func (o *Orchestrator) SweepRateLimits() int {
	return o.limiter.Sweep()
}

// SweepRooms force-closes rooms past their maximum age with room_expired to both members.
func (o *Orchestrator) SweepRooms() int {
	n := 0
	o.do(func(out *outbox) {
		for _, room := range o.rooms.OlderThan(o.now(), o.settings.RoomMaxAge) {
			log.Info().Str("module", "app.reaper").Str("room", string(room.ID)).Msg("room expired")
			o.closeRoomLocked(out, room, core.TypeRoomExpired, "")
			n++
		}
	})
	return n
}

// SweepQueue drops entries waiting longer than the queue timeout with queue_timeout.
func (o *Orchestrator) SweepQueue() int {
	n := 0
	o.do(func(out *outbox) {
		cutoff := o.now().Add(-o.settings.QueueTimeout)
		for _, qe := range o.queue.RemoveWaitingSince(cutoff) {
			n++
			if e, ok := o.registry.Get(qe.ID); ok {
				log.Info().Str("module", "app.reaper").Str("sid", string(qe.ID)).Msg("queue timeout")
				out.send(e, core.TypeQueueTimeout, nil)
			}
		}
	})
	return n
}

// SweepHeartbeats evicts participants silent past the heartbeat timeout, exactly as a disconnect would.
func (o *Orchestrator) SweepHeartbeats() int {
	var conns []core.SignalConnection
	o.do(func(out *outbox) {
		for _, e := range o.registry.Silent(o.now(), o.settings.HeartbeatTimeout) {
			log.Info().Str("module", "app.reaper").Str("sid", string(e.ID)).Msg("heartbeat timeout")
			if c := o.disconnectLocked(out, e.ID); c != nil {
				conns = append(conns, c)
			}
		}
	})
	for _, c := range conns {
		c.Close()
	}
	return len(conns)
}

// SweepNegotiations sends negotiation_timeout once per unanswered offer and clears the marker.
func (o *Orchestrator) SweepNegotiations() int {
	n := 0
	o.do(func(out *outbox) {
		for _, e := range o.registry.StaleNegotiations(o.now(), o.settings.NegotiationTimeout) {
			e.NegotiationStarted = zeroTime
			o.metrics.NegotiationTimeouts++
			n++
			log.Info().Str("module", "app.reaper").Str("sid", string(e.ID)).Str("room", string(e.RoomID)).Msg("negotiation timeout")
			out.send(e, core.TypeNegotiationTimeout, nil)
		}
	})
	return n
}

// SweepAgedPairs pairs participants that waited past the fallback threshold
// even when nobody new joins the queue.
func (o *Orchestrator) SweepAgedPairs() int {
	n := 0
	o.do(func(out *outbox) {
		for {
			first, second, ok := o.queue.AgedPair(o.now(), o.settings.FallbackAfter, o.eligible)
			if !ok {
				return
			}
			a, _ := o.registry.Get(first.ID)
			b, _ := o.registry.Get(second.ID)
			o.queue.Remove(first.ID)
			o.queue.Remove(second.ID)
			o.createRoomLocked(out, a, b)
			n++
		}
	})
	return n
}
