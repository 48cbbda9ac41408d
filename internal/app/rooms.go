package app

import (
	"time"

	"github.com/dkeye/Tandem/internal/domain"
	"github.com/rs/zerolog/log"
)

type Rooms struct {
	rooms map[domain.RoomID]*domain.Room
}

func NewRooms() *Rooms {
	return &Rooms{rooms: make(map[domain.RoomID]*domain.Room)}
}

func (r *Rooms) Add(room *domain.Room) {
	r.rooms[room.ID] = room
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).
		Str("initiator", string(room.Initiator)).Str("responder", string(room.Responder)).Msg("room created")
}

func (r *Rooms) Get(id domain.RoomID) (*domain.Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Rooms) Remove(id domain.RoomID) (*domain.Room, bool) {
	room, ok := r.rooms[id]
	if !ok {
		return nil, false
	}
	delete(r.rooms, id)
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room closed")
	return room, true
}

func (r *Rooms) Len() int { return len(r.rooms) }

// OlderThan returns rooms created more than maxAge ago.
func (r *Rooms) OlderThan(now time.Time, maxAge time.Duration) []*domain.Room {
	var out []*domain.Room
	for _, room := range r.rooms {
		if room.Age(now) > maxAge {
			out = append(out, room)
		}
	}
	return out
}

// All returns a snapshot of the current rooms.
func (r *Rooms) All() []*domain.Room {
	out := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}
