package core

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Tandem/internal/domain"
)

type Connected struct {
	ID          domain.ParticipantID `json:"id"`
	Alias       string               `json:"alias"`
	OnlineCount int                  `json:"onlineCount"`
}

type QueueJoined struct {
	Position int `json:"position"`
}

type Matched struct {
	RoomID          domain.RoomID `json:"roomId"`
	PartnerAlias    string        `json:"partnerAlias"`
	PartnerLanguage string        `json:"partnerLanguage"`
	PartnerCountry  string        `json:"partnerCountry"`
	CommonInterests []string      `json:"commonInterests"`
	IsInitiator     bool          `json:"isInitiator"`
}

type ChatRelay struct {
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type LivenessPong struct {
	OnlineCount int `json:"onlineCount"`
	QueueLength int `json:"queueLength"`
}

var emptyPayload = json.RawMessage(`{}`)

// Encode wraps payload into an envelope. A nil payload is sent as {}.
// json.RawMessage payloads are embedded as they are.
func Encode(t MessageType, payload any) (Frame, error) {
	env := struct {
		Type    MessageType `json:"type"`
		Payload any         `json:"payload"`
	}{Type: t, Payload: payload}
	if payload == nil {
		env.Payload = emptyPayload
	}
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return b, nil
}
