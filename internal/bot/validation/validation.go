// Package validation checks administrator command input before it reaches the database.
package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
	"github.com/dustin/go-humanize/english"
)

const (
	// MinNameLength is the shortest accepted name.
	MinNameLength = 3
	// MaxNameLength is the longest accepted name.
	MaxNameLength = 32
	// MaxColor is the largest RGB color.
	MaxColor = 0xFFFFFF
)

// Kind classifies a validation failure.
type Kind int

const (
	NameTooLong Kind = iota
	NameTooShort
	RegexRequiresPremium
	RegexTooLong
	RegexParse
	CooldownFormat
	NumberFormat
	RequiredVsRequiredRemove
	ColorOutOfRange
	InvalidChoice
)

// Error is a validation failure with a message meant for the administrator.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// As returns the validation error in err's chain, if any.
func As(err error) (*Error, bool) {
	var verr *Error
	ok := errors.As(err, &verr)
	return verr, ok
}

// Name normalizes a name to lowercase words joined by dashes, dropping every
// other character, and checks its length. Name is idempotent on its output.
func Name(input string) (string, error) {
	var b strings.Builder

	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case r == ' ' || r == '-':
			b.WriteByte('-')
		case r == '_' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))):
			b.WriteRune(r)
		}
	}

	name := b.String()

	switch n := len(name); {
	case n > MaxNameLength:
		return "", newError(NameTooLong, "The name cannot be longer than %s.", english.Plural(MaxNameLength, "character", ""))
	case n < MinNameLength:
		return "", newError(NameTooShort, "The name must be at least %s long.", english.Plural(MinNameLength, "character", ""))
	}

	return name, nil
}

// Color parses a hex color such as "#FFE19C", "ffe19c" or "0xffe19c".
func Color(input string) (int64, error) {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "#")
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	v, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, newError(NumberFormat, "%q is not a valid hex color.", input)
	}

	if v < 0 || v > MaxColor {
		return 0, newError(ColorOutOfRange, "The color must be between #000000 and #FFFFFF.")
	}

	return v, nil
}

// Cooldown parses a cooldown written as "count/seconds", for example "5/60".
func Cooldown(input string) (count, period int64, err error) {
	left, right, ok := strings.Cut(strings.TrimSpace(input), "/")
	if !ok {
		return 0, 0, newError(CooldownFormat, "The cooldown must be written as count/seconds, for example 5/60.")
	}

	count, err = strconv.ParseInt(strings.TrimSpace(left), 10, 64)
	if err != nil {
		return 0, 0, newError(CooldownFormat, "%q is not a valid vote count.", left)
	}
	period, err = strconv.ParseInt(strings.TrimSpace(right), 10, 64)
	if err != nil {
		return 0, 0, newError(CooldownFormat, "%q is not a valid number of seconds.", right)
	}

	if count < 1 || period < 1 {
		return 0, 0, newError(CooldownFormat, "The cooldown count and period must both be positive.")
	}

	return count, period, nil
}

// Int parses an integer and checks it against an inclusive range.
func Int(input string, lo, hi int64) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil {
		return 0, newError(NumberFormat, "%q is not a whole number.", input)
	}

	return IntRange(v, lo, hi)
}

// IntRange checks an integer against an inclusive range.
func IntRange(v, lo, hi int64) (int64, error) {
	if v < lo || v > hi {
		return 0, newError(NumberFormat, "The number must be between %d and %d.", lo, hi)
	}

	return v, nil
}

// Float parses a float and checks it against an inclusive range.
func Float(input string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
	if err != nil {
		return 0, newError(NumberFormat, "%q is not a number.", input)
	}

	if v < lo || v > hi {
		return 0, newError(NumberFormat, "The number must be between %g and %g.", lo, hi)
	}

	return v, nil
}

// Bool parses yes/no style input.
func Bool(input string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "true", "yes", "on", "y", "1", "enable", "enabled":
		return true, nil
	case "false", "no", "off", "n", "0", "disable", "disabled":
		return false, nil
	}

	return false, newError(InvalidChoice, "%q is not true or false.", input)
}

// Required checks that required_remove stays below required.
func Required(required, requiredRemove int64) error {
	if requiredRemove > required-1 {
		return newError(RequiredVsRequiredRemove,
			"required_remove (%d) must be less than required (%d).", requiredRemove, required)
	}

	return nil
}

// Regex checks a user pattern. Patterns are a premium feature.
func Regex(pattern string, premium bool, maxLength int) error {
	if !premium {
		return newError(RegexRequiresPremium, "Regex requirements are a premium feature.")
	}

	if maxLength > 0 && len(pattern) > maxLength {
		return newError(RegexTooLong, "The regex cannot be longer than %s.", english.Plural(maxLength, "character", ""))
	}

	if _, err := regexp2.Compile(pattern, regexp2.None); err != nil {
		return newError(RegexParse, "The regex is invalid: %s", err)
	}

	return nil
}

// Choice parses one of a fixed set of values, case-insensitively.
func Choice(input string, choices []string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(input))
	for _, c := range choices {
		if v == c {
			return c, nil
		}
	}

	return "", newError(InvalidChoice, "%q must be one of: %s.", input, strings.Join(choices, ", "))
}
