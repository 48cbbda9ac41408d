package domain

import "time"

// Room pairs exactly two participants. Initiator is the one who was already queued
// and is expected to send the first offer.
type Room struct {
	ID        RoomID
	Initiator ParticipantID
	Responder ParticipantID
	CreatedAt time.Time
}

func NewRoom(initiator, responder ParticipantID, now time.Time) *Room {
	return &Room{
		ID:        NewRoomID(),
		Initiator: initiator,
		Responder: responder,
		CreatedAt: now,
	}
}

func (r *Room) Has(id ParticipantID) bool {
	return r.Initiator == id || r.Responder == id
}

// Partner returns the other member, or false if id is not in the room.
func (r *Room) Partner(id ParticipantID) (ParticipantID, bool) {
	switch id {
	case r.Initiator:
		return r.Responder, true
	case r.Responder:
		return r.Initiator, true
	}
	return "", false
}

func (r *Room) Members() [2]ParticipantID {
	return [2]ParticipantID{r.Initiator, r.Responder}
}

func (r *Room) Age(now time.Time) time.Duration { return now.Sub(r.CreatedAt) }
