package app

import (
	"testing"

	"github.com/dkeye/Tandem/internal/core"
	"github.com/stretchr/testify/assert"
)

func TestSimplePolicy(t *testing.T) {
	var p Policy = SimplePolicy{}
	assert.Equal(t, DropFrame, p.OnBackPressure(nil, core.TypeTyping))
	for _, kind := range []core.MessageType{core.TypeChatMessage, core.TypeNegotiationOffer, core.TypeMatched, core.TypePartnerLeft} {
		assert.Equal(t, KickMember, p.OnBackPressure(nil, kind), kind)
	}
}
