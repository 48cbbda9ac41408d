package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Tandem/internal/domain"
	"github.com/pion/webrtc/v4"
)

type MessageType string

// Client to server.
const (
	TypeJoinQueue             MessageType = "join_queue"
	TypeLeaveQueue            MessageType = "leave_queue"
	TypeLeaveRoom             MessageType = "leave_room"
	TypeChatMessage           MessageType = "chat_message"
	TypeTyping                MessageType = "typing"
	TypeNegotiationOffer      MessageType = "negotiation_offer"
	TypeNegotiationAnswer     MessageType = "negotiation_answer"
	TypeConnectivityCandidate MessageType = "connectivity_candidate"
	TypeLivenessPing          MessageType = "liveness_ping"
	TypeConnectivityFailure   MessageType = "connectivity_failure"
)

// Server to client. chat_message, typing and the three signal types are shared.
const (
	TypeConnected          MessageType = "connected"
	TypeQueueJoined        MessageType = "queue_joined"
	TypeQueueLeft          MessageType = "queue_left"
	TypeQueueTimeout       MessageType = "queue_timeout"
	TypeMatched            MessageType = "matched"
	TypePartnerLeft        MessageType = "partner_left"
	TypeRoomExpired        MessageType = "room_expired"
	TypeNegotiationTimeout MessageType = "negotiation_timeout"
	TypeLivenessPong       MessageType = "liveness_pong"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

// Envelope is the wire shape of every frame in both directions.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ClientMessage is the closed set of messages a client may send.
type ClientMessage interface {
	Type() MessageType
	clientMessage()
}

type JoinQueue struct{ Prefs domain.Preferences }

type LeaveQueue struct{}

type LeaveRoom struct{}

type ChatMessage struct {
	Text string `json:"text"`
}

type Typing struct {
	IsTyping bool `json:"isTyping"`
}

// Signal is an offer, answer or candidate whose payload already passed shape checks.
// Payload is forwarded to the partner untouched.
type Signal struct {
	Kind    MessageType
	Payload json.RawMessage
}

type LivenessPing struct{}

// ConnectivityFailure is reported by clients whose peer connection failed to establish.
type ConnectivityFailure struct{}

func (JoinQueue) Type() MessageType           { return TypeJoinQueue }
func (LeaveQueue) Type() MessageType          { return TypeLeaveQueue }
func (LeaveRoom) Type() MessageType           { return TypeLeaveRoom }
func (ChatMessage) Type() MessageType         { return TypeChatMessage }
func (Typing) Type() MessageType              { return TypeTyping }
func (s Signal) Type() MessageType            { return s.Kind }
func (LivenessPing) Type() MessageType        { return TypeLivenessPing }
func (ConnectivityFailure) Type() MessageType { return TypeConnectivityFailure }

func (JoinQueue) clientMessage()           {}
func (LeaveQueue) clientMessage()          {}
func (LeaveRoom) clientMessage()           {}
func (ChatMessage) clientMessage()         {}
func (Typing) clientMessage()              {}
func (Signal) clientMessage()              {}
func (LivenessPing) clientMessage()        {}
func (ConnectivityFailure) clientMessage() {}

// DecodeClientMessage parses a raw frame into a known variant.
// Anything else yields an error wrapping ErrMalformed or ErrUnknownType.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeJoinQueue:
		var prefs domain.Preferences
		if err := decodePayload(env.Payload, &prefs); err != nil {
			return nil, err
		}
		return JoinQueue{Prefs: prefs}, nil
	case TypeLeaveQueue:
		return LeaveQueue{}, nil
	case TypeLeaveRoom:
		return LeaveRoom{}, nil
	case TypeChatMessage:
		var m ChatMessage
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeTyping:
		var m Typing
		if err := decodePayload(env.Payload, &m); err != nil {
			return nil, err
		}
		return m, nil
	case TypeNegotiationOffer, TypeNegotiationAnswer:
		if err := validateDescriptor(env.Payload); err != nil {
			return nil, err
		}
		return Signal{Kind: env.Type, Payload: env.Payload}, nil
	case TypeConnectivityCandidate:
		if err := validateCandidate(env.Payload); err != nil {
			return nil, err
		}
		return Signal{Kind: env.Type, Payload: env.Payload}, nil
	case TypeLivenessPing:
		return LivenessPing{}, nil
	case TypeConnectivityFailure:
		return ConnectivityFailure{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
}

// decodePayload treats a missing payload as an empty object.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// validateDescriptor requires payload.descriptor to be a session description
// with a known type and a non-empty body.
func validateDescriptor(raw json.RawMessage) error {
	var p struct {
		Descriptor json.RawMessage `json:"descriptor"`
	}
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if len(p.Descriptor) == 0 {
		return fmt.Errorf("%w: missing descriptor", ErrMalformed)
	}
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(p.Descriptor, &sd); err != nil {
		return fmt.Errorf("%w: descriptor: %v", ErrMalformed, err)
	}
	if sd.Type == webrtc.SDPTypeUnknown || sd.SDP == "" {
		return fmt.Errorf("%w: descriptor needs type and sdp", ErrMalformed)
	}
	return nil
}

// validateCandidate requires payload.candidate to be a non-empty object
// shaped like an ICE candidate init.
func validateCandidate(raw json.RawMessage) error {
	var p struct {
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(p.Candidate, &fields); err != nil || len(fields) == 0 {
		return fmt.Errorf("%w: candidate must be a non-empty object", ErrMalformed)
	}
	var ci webrtc.ICECandidateInit
	if err := json.Unmarshal(p.Candidate, &ci); err != nil {
		return fmt.Errorf("%w: candidate: %v", ErrMalformed, err)
	}
	return nil
}
