package filter

import (
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize/english"
	"github.com/robalyx/starboard/internal/database/types"
)

// Requirement names a failed message requirement.
type Requirement string

const (
	RequireImage Requirement = "require_image"
	OlderThan    Requirement = "older_than"
	NewerThan    Requirement = "newer_than"
	Matches      Requirement = "matches"
	NotMatches   Requirement = "not_matches"
)

// Requirements returns the starboard requirements the message fails.
// Filter groups are checked separately.
func (e *Engine) Requirements(s *types.StarboardSettings, m *Message, now time.Time) []Requirement {
	var failed []Requirement

	if s.RequireImage && !m.HasImage {
		failed = append(failed, RequireImage)
	}

	age := now.Sub(m.CreatedAt)
	if s.OlderThan > 0 && age < time.Duration(s.OlderThan)*time.Second {
		failed = append(failed, OlderThan)
	}
	if s.NewerThan > 0 && age > time.Duration(s.NewerThan)*time.Second {
		failed = append(failed, NewerThan)
	}

	if s.Matches != nil && *s.Matches != "" && !e.match(*s.Matches, m.Content, false) {
		failed = append(failed, Matches)
	}
	if s.NotMatches != nil && *s.NotMatches != "" && !e.match(*s.NotMatches, m.Content, true) {
		failed = append(failed, NotMatches)
	}

	return failed
}

// AutostarReasons returns why a message is not valid in an autostar channel.
func AutostarReasons(asc *types.AutostarChannel, m *Message) []string {
	var reasons []string

	length := int64(utf8.RuneCountInString(m.Content))
	if length < asc.MinChars {
		reasons = append(reasons, "Your message must be at least "+english.Plural(int(asc.MinChars), "character", "")+" long.")
	}
	if asc.MaxChars != nil && length > *asc.MaxChars {
		reasons = append(reasons, "Your message cannot be longer than "+english.Plural(int(*asc.MaxChars), "character", "")+".")
	}
	if asc.RequireImage && !m.HasImage {
		reasons = append(reasons, "Your message must include an image.")
	}

	return reasons
}
