package emoji

import (
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
)

func TestFromReaction(t *testing.T) {
	t.Parallel()

	id := snowflake.ID(123456789012345678)
	name := "star"
	unicodeName := "⭐"

	assert.Equal(t, "123456789012345678", FromReaction(&id, &name))
	assert.Equal(t, "⭐", FromReaction(nil, &unicodeName))
	assert.Empty(t, FromReaction(nil, nil))
}

func TestAPIName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "_:123456789012345678", APIName("123456789012345678"))
	assert.Equal(t, "⭐", APIName("⭐"))
}

func TestDisplay(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "<:_:123456789012345678>", Display("123456789012345678", false))
	assert.Equal(t, "<a:_:123456789012345678>", Display("123456789012345678", true))
	assert.Equal(t, "⭐", Display("⭐", false))
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
		ok    bool
	}{
		{input: "⭐", want: "⭐", ok: true},
		{input: " 👍 ", want: "👍", ok: true},
		{input: "<:star:123456789012345678>", want: "123456789012345678", ok: true},
		{input: "<a:spin:123456789012345678>", want: "123456789012345678", ok: true},
		{input: "star", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestParseList(t *testing.T) {
	t.Parallel()

	emojis, bad := ParseList("⭐ 👍 ⭐ <:up:123456789012345678>")
	assert.Empty(t, bad)
	assert.Equal(t, []string{"⭐", "👍", "123456789012345678"}, emojis)

	_, bad = ParseList("⭐ nope")
	assert.Equal(t, "nope", bad)
}
