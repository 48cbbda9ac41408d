package app

import "github.com/dkeye/Tandem/internal/core"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a participant whose send buffer is full.
type Policy interface {
	OnBackPressure(e *Entry, t core.MessageType) BackpressureAction
}

// SimplePolicy drops typing indicators and disconnects the participant on anything else.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(_ *Entry, t core.MessageType) BackpressureAction {
	if t == core.TypeTyping {
		return DropFrame
	}
	return KickMember
}
