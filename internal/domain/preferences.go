package domain

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

const (
	DefaultNativeLanguage = "pt"
	DefaultTargetLanguage = "en"
	DefaultCountry        = "BR"

	MaxInterests      = 10
	MaxInterestLen    = 32
	MaxChatMessageLen = 1000
)

// Preferences is what a participant declares when joining the queue.
type Preferences struct {
	NativeLanguage string   `json:"native_language"`
	TargetLanguage string   `json:"target_language"`
	Interests      []string `json:"interests"`
	Country        string   `json:"country"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		NativeLanguage: DefaultNativeLanguage,
		TargetLanguage: DefaultTargetLanguage,
		Interests:      []string{},
		Country:        DefaultCountry,
	}
}

// Normalize returns a copy with languages reduced to base BCP 47 codes, the country
// as an ISO region, and interests cleaned and bounded. Unusable values fall back to defaults.
func (p Preferences) Normalize() Preferences {
	return Preferences{
		NativeLanguage: normalizeLanguage(p.NativeLanguage, DefaultNativeLanguage),
		TargetLanguage: normalizeLanguage(p.TargetLanguage, DefaultTargetLanguage),
		Interests:      normalizeInterests(p.Interests),
		Country:        normalizeCountry(p.Country, DefaultCountry),
	}
}

// IsComplementary reports whether each side speaks what the other wants to practice.
func (p Preferences) IsComplementary(other Preferences) bool {
	return p.NativeLanguage == other.TargetLanguage && other.NativeLanguage == p.TargetLanguage
}

func (p Preferences) SharesTarget(other Preferences) bool {
	return p.TargetLanguage == other.TargetLanguage
}

// CommonInterests returns the interests present in both lists, in a's order.
func CommonInterests(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		seen[s] = struct{}{}
	}
	out := make([]string, 0)
	for _, s := range a {
		if _, ok := seen[s]; ok {
			out = append(out, s)
			delete(seen, s)
		}
	}
	return out
}

// SanitizeText strips angle brackets, trims and truncates to max runes.
func SanitizeText(s string, max int) string {
	s = strings.Map(func(r rune) rune {
		if r == '<' || r == '>' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		s = string([]rune(s)[:max])
	}
	return s
}

func normalizeLanguage(s, fallback string) string {
	s = SanitizeText(s, MaxInterestLen)
	if s == "" {
		return fallback
	}
	tag, err := language.Parse(s)
	if err != nil || tag == language.Und {
		return fallback
	}
	base, conf := tag.Base()
	if conf == language.No {
		return fallback
	}
	return base.String()
}

func normalizeCountry(s, fallback string) string {
	s = SanitizeText(s, MaxInterestLen)
	if s == "" {
		return fallback
	}
	region, err := language.ParseRegion(s)
	if err != nil {
		return fallback
	}
	return region.String()
}

func normalizeInterests(in []string) []string {
	out := make([]string, 0, min(len(in), MaxInterests))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if len(out) == MaxInterests {
			break
		}
		s = strings.ToLower(SanitizeText(s, MaxInterestLen))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
