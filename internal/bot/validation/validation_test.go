package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertKind(t *testing.T, err error, kind Kind) {
	t.Helper()

	verr, ok := As(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Equal(t, kind, verr.Kind)
}

func TestName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
		kind  Kind
		ok    bool
	}{
		{input: "Starboard", want: "starboard", ok: true},
		{input: "  Best Of  ", want: "best-of", ok: true},
		{input: "memes_2024!", want: "memes_2024", ok: true},
		{input: "ab", kind: NameTooShort},
		{input: "⭐⭐⭐", kind: NameTooShort},
		{input: strings.Repeat("a", MaxNameLength+1), kind: NameTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := Name(tt.input)
			if !tt.ok {
				assertKind(t, err, tt.kind)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNameIdempotent(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"Hall Of Fame", "a-b-c", "x__y", "Über cool", "  spaced   out "} {
		first, err := Name(input)
		if err != nil {
			continue
		}

		second, err := Name(first)
		require.NoError(t, err)
		assert.Equal(t, first, second, input)
	}
}

func TestColor(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"#FFE19C", "ffe19c", "0xFFE19C"} {
		v, err := Color(input)
		require.NoError(t, err, input)
		assert.Equal(t, int64(0xFFE19C), v)
	}

	_, err := Color("#1000000")
	assertKind(t, err, ColorOutOfRange)

	_, err = Color("blue")
	assertKind(t, err, NumberFormat)
}

func TestCooldown(t *testing.T) {
	t.Parallel()

	count, period, err := Cooldown("5/60")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
	assert.Equal(t, int64(60), period)

	count, period, err = Cooldown(" 2 / 10 ")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(10), period)

	for _, input := range []string{"5", "a/5", "5/b", "0/5", "5/-1"} {
		_, _, err := Cooldown(input)
		assertKind(t, err, CooldownFormat)
	}
}

func TestInt(t *testing.T) {
	t.Parallel()

	v, err := Int("12", 1, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	_, err = Int("twelve", 1, 500)
	assertKind(t, err, NumberFormat)

	_, err = Int("501", 1, 500)
	assertKind(t, err, NumberFormat)
}

func TestRequired(t *testing.T) {
	t.Parallel()

	require.NoError(t, Required(3, 2))
	require.NoError(t, Required(3, -1))
	assertKind(t, Required(3, 3), RequiredVsRequiredRemove)
}

func TestRegex(t *testing.T) {
	t.Parallel()

	require.NoError(t, Regex(`^\d+$`, true, 100))
	assertKind(t, Regex(`^\d+$`, false, 100), RegexRequiresPremium)
	assertKind(t, Regex(strings.Repeat("a", 11), true, 10), RegexTooLong)
	assertKind(t, Regex(`(unclosed`, true, 100), RegexParse)
}

func TestBoolAndChoice(t *testing.T) {
	t.Parallel()

	v, err := Bool("Yes")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = Bool("off")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = Bool("maybe")
	assertKind(t, err, InvalidChoice)

	c, err := Choice("Trash-All", []string{"repost", "trash-all"})
	require.NoError(t, err)
	assert.Equal(t, "trash-all", c)

	_, err = Choice("other", []string{"repost"})
	assertKind(t, err, InvalidChoice)
}

func TestAsWrapped(t *testing.T) {
	t.Parallel()

	_, err := Name("x")
	wrapped := errors.Join(errors.New("context"), err)

	verr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, NameTooShort, verr.Kind)
}
