// Package domain contains entity without logic, just meta-data
package domain

import (
	"time"

	"github.com/google/uuid"
)

type (
	ParticipantID string
	RoomID        string
)

func NewParticipantID() ParticipantID { return ParticipantID(uuid.NewString()) }

func NewRoomID() RoomID { return RoomID(uuid.NewString()) }

// Participant is one live connection's worth of state.
// The connection handle itself is owned by the registry.
type Participant struct {
	ID     ParticipantID
	Alias  string
	Prefs  Preferences
	RoomID RoomID

	ConnectedAt time.Time
	LastSeen    time.Time
	// NegotiationStarted is zero unless an offer from this participant is waiting for an answer.
	NegotiationStarted time.Time
}

// NewParticipant avoids raw literals in adapters and keeps construction obvious.
func NewParticipant(alias string, now time.Time) *Participant {
	if alias == "" {
		alias = NewAlias()
	}
	return &Participant{
		ID:          NewParticipantID(),
		Alias:       alias,
		Prefs:       DefaultPreferences(),
		ConnectedAt: now,
		LastSeen:    now,
	}
}

func (p *Participant) InRoom() bool { return p.RoomID != "" }

func (p *Participant) NegotiationPending() bool { return !p.NegotiationStarted.IsZero() }
