package orch

import (
	"github.com/dkeye/Tandem/internal/app"
	"github.com/dkeye/Tandem/internal/core"
	"github.com/dkeye/Tandem/internal/domain"
	"github.com/rs/zerolog/log"
)

// JoinQueue stores the participant's preferences and either pairs it with a
// waiting candidate or queues it. Participants already in a room are ignored.
func (o *Orchestrator) JoinQueue(id domain.ParticipantID, prefs domain.Preferences) {
	o.do(func(out *outbox) {
		e, ok := o.registry.Get(id)
		if !ok || e.InRoom() {
			return
		}
		e.Prefs = prefs.Normalize()
		now := o.now()

		cand, found := o.queue.FindMatch(id, e.Prefs, now, o.settings.FallbackAfter, o.eligible)
		if !found {
			pos, added := o.queue.Push(id, now)
			if added {
				log.Info().Str("module", "app.orch").Str("sid", string(id)).Int("position", pos).Msg("queued")
			}
			out.send(e, core.TypeQueueJoined, core.QueueJoined{Position: pos})
			return
		}

		partner, _ := o.registry.Get(cand.ID)
		o.queue.Remove(id)
		o.queue.Remove(cand.ID)
		o.createRoomLocked(out, partner, e)
	})
}

// LeaveQueue answers queue_left only when an entry was actually removed.
func (o *Orchestrator) LeaveQueue(id domain.ParticipantID) {
	o.do(func(out *outbox) {
		if !o.queue.Remove(id) {
			return
		}
		if e, ok := o.registry.Get(id); ok {
			out.send(e, core.TypeQueueLeft, nil)
		}
	})
}

// createRoomLocked pairs two participants. The initiator is the one that was already waiting.
func (o *Orchestrator) createRoomLocked(out *outbox, initiator, responder *app.Entry) {
	room := domain.NewRoom(initiator.ID, responder.ID, o.now())
	o.rooms.Add(room)
	for _, e := range []*app.Entry{initiator, responder} {
		e.RoomID = room.ID
		e.NegotiationStarted = zeroTime
	}
	o.metrics.TotalMatches++

	common := domain.CommonInterests(initiator.Prefs.Interests, responder.Prefs.Interests)
	out.send(initiator, core.TypeMatched, matchedFor(room, responder, common, true))
	out.send(responder, core.TypeMatched, matchedFor(room, initiator, common, false))
}

func matchedFor(room *domain.Room, partner *app.Entry, common []string, initiator bool) core.Matched {
	return core.Matched{
		RoomID:          room.ID,
		PartnerAlias:    partner.Alias,
		PartnerLanguage: partner.Prefs.NativeLanguage,
		PartnerCountry:  partner.Prefs.Country,
		CommonInterests: common,
		IsInitiator:     initiator,
	}
}
