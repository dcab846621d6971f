package types_test

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	s := types.DefaultSettings()

	assert.Equal(t, "⭐", s.DisplayEmoji)
	assert.Equal(t, []string{"⭐"}, s.UpvoteEmojis)
	assert.Empty(t, s.DownvoteEmojis)
	assert.Equal(t, int64(3), s.Required)
	assert.Equal(t, int64(0), s.RequiredRemove)
	assert.Equal(t, enum.OnDeleteIgnore, s.OnDelete)
	assert.Equal(t, enum.GoToMessageLink, s.GoToMessage)
	assert.InDelta(t, 1.0, s.XPMultiplier, 0.0001)
	assert.True(t, s.Enabled)
	assert.Nil(t, s.ExclusiveGroup)
}

func TestDefaultSettingsDoNotShareSlices(t *testing.T) {
	t.Parallel()

	a := types.DefaultSettings()
	b := types.DefaultSettings()
	a.UpvoteEmojis[0] = "👍"

	assert.Equal(t, "⭐", b.UpvoteEmojis[0])
}

func TestMergeOverrides(t *testing.T) {
	t.Parallel()

	base := types.DefaultSettings()

	tests := []struct {
		name   string
		raw    map[string]json.RawMessage
		mutate func(s *types.StarboardSettings)
	}{
		{
			name:   "no overrides",
			raw:    nil,
			mutate: func(*types.StarboardSettings) {},
		},
		{
			name: "scalar overrides",
			raw: map[string]json.RawMessage{
				"required":      json.RawMessage(`5`),
				"self_vote":     json.RawMessage(`true`),
				"on_delete":     json.RawMessage(`2`),
				"xp_multiplier": json.RawMessage(`0.5`),
			},
			mutate: func(s *types.StarboardSettings) {
				s.Required = 5
				s.SelfVote = true
				s.OnDelete = enum.OnDeleteTrashAll
				s.XPMultiplier = 0.5
			},
		},
		{
			name: "list and nullable overrides",
			raw: map[string]json.RawMessage{
				"upvote_emojis":   json.RawMessage(`["👍","🔥"]`),
				"matches":         json.RawMessage(`"cat"`),
				"exclusive_group": json.RawMessage(`7`),
			},
			mutate: func(s *types.StarboardSettings) {
				s.UpvoteEmojis = []string{"👍", "🔥"}
				matches := "cat"
				s.Matches = &matches
				group := int64(7)
				s.ExclusiveGroup = &group
			},
		},
		{
			name: "unknown keys are ignored",
			raw: map[string]json.RawMessage{
				"not_a_setting": json.RawMessage(`1`),
			},
			mutate: func(*types.StarboardSettings) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			want := types.DefaultSettings()
			tt.mutate(&want)

			got, err := types.MergeOverrides(base, tt.raw)
			require.NoError(t, err)

			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("MergeOverrides() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeOverridesInvalidValue(t *testing.T) {
	t.Parallel()

	_, err := types.MergeOverrides(types.DefaultSettings(), map[string]json.RawMessage{
		"required": json.RawMessage(`"three"`),
	})
	require.ErrorIs(t, err, types.ErrInvalidOverride)
}

func TestSettingFieldRoundTrip(t *testing.T) {
	t.Parallel()

	for _, f := range types.SettingFields() {
		t.Run(f.Name(), func(t *testing.T) {
			t.Parallel()

			s := types.DefaultSettings()
			raw, err := f.Encode(&s)
			require.NoError(t, err)

			var target types.StarboardSettings
			require.NoError(t, f.Merge(&target, map[string]json.RawMessage{f.Name(): raw}))
			assert.Equal(t, f.Get(&s), f.Get(&target))
		})
	}
}

func TestSettingFieldSet(t *testing.T) {
	t.Parallel()

	f, err := types.SettingByName("required")
	require.NoError(t, err)

	var s types.StarboardSettings
	require.NoError(t, f.Set(&s, int64(9)))
	assert.Equal(t, int64(9), s.Required)

	require.ErrorIs(t, f.Set(&s, "nine"), types.ErrSettingValueType)

	_, err = types.SettingByName("nope")
	require.ErrorIs(t, err, types.ErrUnknownSetting)
}

func TestOverrideFieldOr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, types.OverrideField[int]{}.Or(3))
	assert.Equal(t, 0, types.Overridden(0).Or(3))
}
