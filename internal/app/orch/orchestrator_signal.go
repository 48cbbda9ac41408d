package orch

import (
	"github.com/dkeye/Tandem/internal/core"
	"github.com/dkeye/Tandem/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay forwards an already validated signal to the sender's partner.
//
// An offer stamps the sender's negotiation marker, overwriting any earlier one;
// an answer clears the partner's. If the partner is gone or its connection is
// closed the room is torn down and the sender gets partner_left instead.
func (o *Orchestrator) Relay(id domain.ParticipantID, sig core.Signal) {
	o.do(func(out *outbox) {
		e, ok := o.registry.Get(id)
		if !ok {
			return
		}
		room, partner, ok := o.partnerOf(e)
		if room == nil {
			return
		}
		if !ok || !partner.Open() {
			log.Info().Str("module", "app.orch").Str("sid", string(id)).Str("room", string(room.ID)).Msg("partner unavailable, closing room")
			o.closeRoomLocked(out, room, core.TypePartnerLeft, partnerID(room, id))
			return
		}

		switch sig.Kind {
		case core.TypeNegotiationOffer:
			e.NegotiationStarted = o.now()
		case core.TypeNegotiationAnswer:
			partner.NegotiationStarted = zeroTime
		}
		out.send(partner, sig.Kind, sig.Payload)
	})
}

func partnerID(room *domain.Room, id domain.ParticipantID) domain.ParticipantID {
	pid, _ := room.Partner(id)
	return pid
}
