package orch

import (
	"time"

	"github.com/dkeye/Tandem/internal/app"
	"github.com/dkeye/Tandem/internal/core"
	"github.com/dkeye/Tandem/internal/domain"
	"github.com/rs/zerolog/log"
)

var zeroTime time.Time

// LeaveRoom ends the participant's room; the partner is told partner_left. Idempotent.
func (o *Orchestrator) LeaveRoom(id domain.ParticipantID) {
	o.do(func(out *outbox) {
		if e, ok := o.registry.Get(id); ok {
			o.leaveRoomLocked(out, e)
		}
	})
}

func (o *Orchestrator) leaveRoomLocked(out *outbox, e *app.Entry) {
	if !e.InRoom() {
		return
	}
	room, ok := o.rooms.Get(e.RoomID)
	if !ok {
		e.RoomID = ""
		e.NegotiationStarted = zeroTime
		return
	}
	log.Info().Str("module", "app.orch").Str("sid", string(e.ID)).Str("room", string(room.ID)).Msg("left room")
	o.closeRoomLocked(out, room, core.TypePartnerLeft, e.ID)
}

// closeRoomLocked detaches both members, deletes the room and sends notice to
// every member except skip.
func (o *Orchestrator) closeRoomLocked(out *outbox, room *domain.Room, notice core.MessageType, skip domain.ParticipantID) {
	o.rooms.Remove(room.ID)
	for _, id := range room.Members() {
		e, ok := o.registry.Get(id)
		if !ok || e.RoomID != room.ID {
			continue
		}
		e.RoomID = ""
		e.NegotiationStarted = zeroTime
		if id != skip {
			out.send(e, notice, nil)
		}
	}
}

// partnerOf returns the sender's room and the other member, or false for stale references.
func (o *Orchestrator) partnerOf(e *app.Entry) (*domain.Room, *app.Entry, bool) {
	if !e.InRoom() {
		return nil, nil, false
	}
	room, ok := o.rooms.Get(e.RoomID)
	if !ok {
		return nil, nil, false
	}
	pid, ok := room.Partner(e.ID)
	if !ok {
		return room, nil, false
	}
	partner, ok := o.registry.Get(pid)
	return room, partner, ok
}

// Chat forwards sanitized text to the partner. Empty text is dropped.
func (o *Orchestrator) Chat(id domain.ParticipantID, text string) {
	text = domain.SanitizeText(text, domain.MaxChatMessageLen)
	if text == "" {
		return
	}
	o.do(func(out *outbox) {
		e, ok := o.registry.Get(id)
		if !ok {
			return
		}
		_, partner, ok := o.partnerOf(e)
		if !ok {
			return
		}
		out.send(partner, core.TypeChatMessage, core.ChatRelay{
			From:      e.Alias,
			Text:      text,
			Timestamp: o.now().UnixMilli(),
		})
	})
}

func (o *Orchestrator) Typing(id domain.ParticipantID, typing bool) {
	o.do(func(out *outbox) {
		e, ok := o.registry.Get(id)
		if !ok {
			return
		}
		_, partner, ok := o.partnerOf(e)
		if !ok {
			return
		}
		out.send(partner, core.TypeTyping, core.Typing{IsTyping: typing})
	})
}
