package status

import (
	"testing"

	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/starboard/resolver"
	"github.com/stretchr/testify/assert"
)

func newConfig(id int64, required, requiredRemove int64) *resolver.Config {
	s := types.DefaultSettings()
	s.Required = required
	s.RequiredRemove = requiredRemove

	return &resolver.Config{Starboard: &types.Starboard{ID: id}, Settings: s}
}

func boolPtr(b bool) *bool { return &b }

func TestDecide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		msg    types.Message
		points int64
		nsfw   *bool
		posted bool
		meets  bool
		want   Action
	}{
		{name: "channel nsfw unknown", points: 10, nsfw: nil, meets: true, want: NoAction},
		{name: "nsfw message in sfw channel", msg: types.Message{IsNSFW: true}, points: 10, nsfw: boolPtr(false), meets: true, want: Remove},
		{name: "nsfw message in nsfw channel", msg: types.Message{IsNSFW: true}, points: 10, nsfw: boolPtr(true), meets: true, want: Send},
		{name: "trashed", msg: types.Message{Trashed: true}, points: 10, nsfw: boolPtr(false), meets: true, want: Trash},
		{name: "forced below threshold", msg: types.Message{ForcedTo: []int64{1}}, points: 0, nsfw: boolPtr(false), meets: true, want: Send},
		{name: "forced but trashed", msg: types.Message{ForcedTo: []int64{1}, Trashed: true}, nsfw: boolPtr(false), meets: true, want: Trash},
		{name: "frozen", msg: types.Message{Frozen: true}, points: 10, nsfw: boolPtr(false), meets: true, want: NoAction},
		{name: "meets required", points: 3, nsfw: boolPtr(false), meets: true, want: Send},
		{name: "at required remove", points: 0, nsfw: boolPtr(false), meets: true, want: Remove},
		{name: "between thresholds", points: 2, nsfw: boolPtr(false), meets: true, want: NoAction},
		{name: "failed requirements block new post", points: 5, nsfw: boolPtr(false), meets: false, want: NoAction},
		{name: "failed requirements keep existing post updated", points: 5, nsfw: boolPtr(false), posted: true, meets: false, want: Send},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := tt.msg
			got := Decide(&Input{
				Config:            newConfig(1, 3, 0),
				Message:           &msg,
				Points:            tt.points,
				ChannelNSFW:       tt.nsfw,
				Posted:            tt.posted,
				MeetsRequirements: tt.meets,
			})
			assert.Equal(t, tt.want, got, got.String())
		})
	}
}

func TestDecideNegativeRequiredRemove(t *testing.T) {
	t.Parallel()

	decide := func(points int64) Action {
		return Decide(&Input{
			Config:            newConfig(1, 3, -2),
			Message:           &types.Message{},
			Points:            points,
			ChannelNSFW:       boolPtr(false),
			Posted:            true,
			MeetsRequirements: true,
		})
	}

	assert.Equal(t, NoAction, decide(0))
	assert.Equal(t, NoAction, decide(-1))
	assert.Equal(t, Remove, decide(-2))
	assert.Equal(t, Remove, decide(-5))
}

func grouped(id, group, priority int64, action Action, posted bool) *Decision {
	cfg := newConfig(id, 3, 0)
	cfg.Settings.ExclusiveGroup = &group
	cfg.Settings.ExclusiveGroupPriority = priority

	return &Decision{Input: &Input{Config: cfg, Posted: posted}, Action: action}
}

func TestArbitrate(t *testing.T) {
	t.Parallel()

	t.Run("highest priority sender wins", func(t *testing.T) {
		t.Parallel()

		s1 := grouped(1, 7, 2, Send, false)
		s2 := grouped(2, 7, 1, Send, false)
		Arbitrate([]*Decision{s2, s1})

		assert.Equal(t, Send, s1.Action)
		assert.Equal(t, NoAction, s2.Action)
	})

	t.Run("existing post keeps its slot", func(t *testing.T) {
		t.Parallel()

		s1 := grouped(1, 7, 2, Send, false)
		s2 := grouped(2, 7, 1, Send, true)
		Arbitrate([]*Decision{s1, s2})

		assert.Equal(t, NoAction, s1.Action)
		assert.Equal(t, Send, s2.Action)
	})

	t.Run("higher priority without send yields", func(t *testing.T) {
		t.Parallel()

		s1 := grouped(1, 7, 2, NoAction, false)
		s2 := grouped(2, 7, 1, Send, false)
		Arbitrate([]*Decision{s1, s2})

		assert.Equal(t, NoAction, s1.Action)
		assert.Equal(t, Send, s2.Action)
	})

	t.Run("ungrouped and other groups untouched", func(t *testing.T) {
		t.Parallel()

		free := &Decision{Input: &Input{Config: newConfig(3, 3, 0)}, Action: Send}
		a := grouped(1, 7, 0, Send, false)
		b := grouped(2, 8, 0, Send, false)
		Arbitrate([]*Decision{free, a, b})

		assert.Equal(t, Send, free.Action)
		assert.Equal(t, Send, a.Action)
		assert.Equal(t, Send, b.Action)
	})
}
