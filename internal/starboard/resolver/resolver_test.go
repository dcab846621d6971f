package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func starboard(id int64) *types.Starboard {
	return &types.Starboard{ID: id, GuildID: 1, Name: "sb", ChannelID: 100, Settings: types.DefaultSettings()}
}

func override(id, starboardID int64, channels []uint64, raw string) *types.Override {
	var values map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		panic(err)
	}

	return &types.Override{ID: id, GuildID: 1, StarboardID: starboardID, ChannelIDs: channels, Overrides: values}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	parent := snowflake.ID(20)

	tests := []struct {
		name      string
		starboard []*types.Starboard
		overrides []*types.Override
		channel   snowflake.ID
		parent    *snowflake.ID
		want      map[int64]int64 // starboard id -> required
		overrideN map[int64]int64 // starboard id -> applied override id
	}{
		{
			name:      "no overrides",
			starboard: []*types.Starboard{starboard(2), starboard(1)},
			channel:   10,
			want:      map[int64]int64{1: 3, 2: 3},
		},
		{
			name:      "channel override",
			starboard: []*types.Starboard{starboard(1)},
			overrides: []*types.Override{override(5, 1, []uint64{10}, `{"required": 7}`)},
			channel:   10,
			want:      map[int64]int64{1: 7},
			overrideN: map[int64]int64{1: 5},
		},
		{
			name:      "parent override applies to thread",
			starboard: []*types.Starboard{starboard(1)},
			overrides: []*types.Override{override(5, 1, []uint64{20}, `{"required": 4}`)},
			channel:   10,
			parent:    &parent,
			want:      map[int64]int64{1: 4},
			overrideN: map[int64]int64{1: 5},
		},
		{
			name:      "channel beats parent",
			starboard: []*types.Starboard{starboard(1)},
			overrides: []*types.Override{
				override(4, 1, []uint64{20}, `{"required": 4}`),
				override(9, 1, []uint64{10}, `{"required": 9}`),
			},
			channel:   10,
			parent:    &parent,
			want:      map[int64]int64{1: 9},
			overrideN: map[int64]int64{1: 9},
		},
		{
			name:      "lowest override id wins",
			starboard: []*types.Starboard{starboard(1)},
			overrides: []*types.Override{
				override(8, 1, []uint64{10}, `{"required": 8}`),
				override(3, 1, []uint64{10}, `{"required": 2}`),
			},
			channel:   10,
			want:      map[int64]int64{1: 2},
			overrideN: map[int64]int64{1: 3},
		},
		{
			name:      "override of other starboard ignored",
			starboard: []*types.Starboard{starboard(1), starboard(2)},
			overrides: []*types.Override{override(5, 2, []uint64{10}, `{"required": 6}`)},
			channel:   10,
			want:      map[int64]int64{1: 3, 2: 6},
			overrideN: map[int64]int64{2: 5},
		},
		{
			name:      "override for other channel ignored",
			starboard: []*types.Starboard{starboard(1)},
			overrides: []*types.Override{override(5, 1, []uint64{11}, `{"required": 6}`)},
			channel:   10,
			want:      map[int64]int64{1: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			configs, err := Resolve(tt.starboard, tt.overrides, tt.channel, tt.parent)
			require.NoError(t, err)

			got := make(map[int64]int64, len(configs))
			gotOverride := make(map[int64]int64)

			var ids []int64
			for _, cfg := range configs {
				ids = append(ids, cfg.ID())
				got[cfg.ID()] = cfg.Settings.Required
				if cfg.Override != nil {
					gotOverride[cfg.ID()] = cfg.Override.ID
				}
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("required mismatch (-want +got):\n%s", diff)
			}

			wantOverride := tt.overrideN
			if wantOverride == nil {
				wantOverride = map[int64]int64{}
			}
			if diff := cmp.Diff(wantOverride, gotOverride); diff != "" {
				t.Errorf("override mismatch (-want +got):\n%s", diff)
			}

			assert.IsIncreasing(t, ids)
		})
	}
}

func TestResolveSkipsLockedStarboards(t *testing.T) {
	t.Parallel()

	locked := starboard(2)
	locked.PremiumLocked = true

	configs, err := Resolve([]*types.Starboard{starboard(1), locked}, nil, 10, nil)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, int64(1), configs[0].ID())
}

func TestResolveInvalidOverrideFallsBack(t *testing.T) {
	t.Parallel()

	sb := starboard(1)
	configs, err := Resolve(
		[]*types.Starboard{sb},
		[]*types.Override{override(5, 1, []uint64{10}, `{"required": "lots"}`)},
		10, nil,
	)
	require.Error(t, err)
	require.Len(t, configs, 1)
	assert.Nil(t, configs[0].Override)
	assert.Equal(t, sb.Settings.Required, configs[0].Settings.Required)
}

func TestResolveDoesNotShareSlices(t *testing.T) {
	t.Parallel()

	sb := starboard(1)
	configs, err := Resolve(
		[]*types.Starboard{sb},
		[]*types.Override{override(5, 1, []uint64{10}, `{"upvote_emojis": ["👍"]}`)},
		10, nil,
	)
	require.NoError(t, err)

	configs[0].Settings.UpvoteEmojis[0] = "x"
	assert.Equal(t, []string{"⭐"}, sb.Settings.UpvoteEmojis)
}

func TestEmojis(t *testing.T) {
	t.Parallel()

	a := &Config{Settings: types.StarboardSettings{UpvoteEmojis: []string{"⭐", "👍"}, DownvoteEmojis: []string{"👎"}}}
	b := &Config{Settings: types.StarboardSettings{UpvoteEmojis: []string{"👍", "🔥"}}}

	assert.Equal(t, []string{"⭐", "👍", "👎", "🔥"}, Emojis([]*Config{a, b}))
}

type fakeSource struct {
	starboards []*types.Starboard
	overrides  []*types.Override
	err        error
}

func (f *fakeSource) GetStarboardsByGuild(context.Context, snowflake.ID) ([]*types.Starboard, error) {
	return f.starboards, f.err
}

func (f *fakeSource) GetOverridesByGuild(context.Context, snowflake.ID) ([]*types.Override, error) {
	return f.overrides, nil
}

func TestListForChannel(t *testing.T) {
	t.Parallel()

	src := &fakeSource{
		starboards: []*types.Starboard{starboard(1)},
		overrides:  []*types.Override{override(5, 1, []uint64{10}, `{"enabled": false}`)},
	}
	r := New(src, zap.NewNop())

	configs, err := r.ListForChannel(context.Background(), 1, 10, nil)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.False(t, configs[0].Settings.Enabled)

	src.err = errors.New("boom")
	_, err = r.ListForChannel(context.Background(), 1, 10, nil)
	require.Error(t, err)
}

func TestGuildEmojis(t *testing.T) {
	t.Parallel()

	locked := starboard(2)
	locked.PremiumLocked = true
	locked.Settings.UpvoteEmojis = []string{"💀"}

	src := &fakeSource{
		starboards: []*types.Starboard{starboard(1), locked},
		overrides: []*types.Override{
			override(5, 1, []uint64{10}, `{"upvote_emojis": ["🔥"]}`),
			override(6, 2, []uint64{10}, `{"upvote_emojis": ["🥶"]}`),
		},
	}

	emojis, err := New(src, zap.NewNop()).GuildEmojis(context.Background(), 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"⭐", "🔥"}, emojis)
}
