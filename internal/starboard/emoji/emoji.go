// Package emoji converts between stored vote emojis and their chat forms.
// Unicode emojis are stored as-is and custom emojis by their id.
package emoji

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/disgoorg/snowflake/v2"
)

var customPattern = regexp.MustCompile(`^<(a?):([A-Za-z0-9_~]{1,32}):(\d{15,21})>$`)

// FromReaction returns the stored form of a reaction emoji.
func FromReaction(id *snowflake.ID, name *string) string {
	if id != nil && *id != 0 {
		return id.String()
	}
	if name != nil {
		return *name
	}

	return ""
}

// CustomID returns the id of a stored custom emoji.
func CustomID(e string) (snowflake.ID, bool) {
	id, err := strconv.ParseUint(e, 10, 64)
	if err != nil {
		return 0, false
	}

	return snowflake.ID(id), true
}

// APIName returns the form the reaction endpoints expect.
func APIName(e string) string {
	if id, ok := CustomID(e); ok {
		return "_:" + id.String()
	}

	return e
}

// Display renders a stored emoji for message text.
func Display(e string, animated bool) string {
	id, ok := CustomID(e)
	if !ok {
		return e
	}

	if animated {
		return "<a:_:" + id.String() + ">"
	}

	return "<:_:" + id.String() + ">"
}

// Parse reads an emoji typed by a user. It accepts a custom emoji mention or
// a single unicode emoji and returns the stored form.
func Parse(input string) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}

	if m := customPattern.FindStringSubmatch(input); m != nil {
		return m[3], true
	}

	if _, ok := CustomID(input); ok {
		return input, true
	}

	for _, r := range input {
		if r < unicode.MaxASCII && r != '#' && r != '*' && !unicode.IsDigit(r) {
			return "", false
		}
	}

	return input, true
}

// ParseList reads a space separated list of emojis and drops duplicates.
// It returns the first token that is not an emoji.
func ParseList(input string) ([]string, string) {
	var emojis []string

	for _, token := range strings.Fields(input) {
		e, ok := Parse(token)
		if !ok {
			return nil, token
		}
		if !slices.Contains(emojis, e) {
			emojis = append(emojis, e)
		}
	}

	return emojis, ""
}
