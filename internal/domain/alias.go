package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var aliasAdjectives = []string{
	"Swift", "Bright", "Cool", "Wild", "Calm", "Bold", "Wise", "Free", "Quick", "Sharp",
	"Brave", "Gentle", "Jolly", "Merry", "Silent", "Sunny", "Cozy", "Lucky", "Plucky", "Fuzzy",
}

var aliasNouns = []string{
	"Fox", "Wolf", "Bear", "Eagle", "Lion", "Tiger", "Hawk", "Owl", "Panda", "Falcon",
	"Otter", "Koala", "Heron", "Lynx", "Raven", "Badger", "Dolphin", "Parrot", "Puffin", "Toucan",
}

const aliasNumbers = 1000

// NewAlias returns a human-readable display name like "SwiftFox417". Not unique.
func NewAlias() string {
	return fmt.Sprintf("%s%s%d",
		aliasAdjectives[randomIndex(len(aliasAdjectives))],
		aliasNouns[randomIndex(len(aliasNouns))],
		randomIndex(aliasNumbers),
	)
}

// randomIndex returns a random index in [0, max). Falls back to 0 if the entropy source fails.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}
