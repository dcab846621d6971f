package filter

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

func newEngine() *Engine {
	return NewEngine(NewRegexCache(50*time.Millisecond, 100), zap.NewNop())
}

var now = time.Unix(1_700_000_000, 0)

func baseMessage() *Message {
	return &Message{
		AuthorID:    1,
		AuthorRoles: []snowflake.ID{10, 11},
		ChannelID:   100,
		Ancestors:   []snowflake.ID{50, 5},
		Content:     "hello world",
		Attachments: 1,
		CreatedAt:   now.Add(-time.Hour),
	}
}

func group(filters ...*types.Filter) *types.FilterGroup {
	for i, f := range filters {
		if f.Position == 0 {
			f.Position = int64(i + 1)
		}
	}
	return &types.FilterGroup{Name: "group", Filters: filters}
}

func TestCheckFilterConditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		filter *types.Filter
		voter  *Voter
		want   bool
	}{
		{"empty filter", &types.Filter{}, nil, true},
		{"author is bot", &types.Filter{UserIsBot: ptr(true)}, nil, false},
		{"author not bot", &types.Filter{UserIsBot: ptr(false)}, nil, true},
		{"has all of", &types.Filter{UserHasAllOf: []uint64{10, 11}}, nil, true},
		{"has all of missing one", &types.Filter{UserHasAllOf: []uint64{10, 12}}, nil, false},
		{"has some of", &types.Filter{UserHasSomeOf: []uint64{12, 11}}, nil, true},
		{"has some of none", &types.Filter{UserHasSomeOf: []uint64{12, 13}}, nil, false},
		{"missing all of", &types.Filter{UserMissingAllOf: []uint64{12, 13}}, nil, true},
		{"missing all of holds one", &types.Filter{UserMissingAllOf: []uint64{12, 10}}, nil, false},
		{"missing some of", &types.Filter{UserMissingSomeOf: []uint64{10, 12}}, nil, true},
		{"missing some of holds all", &types.Filter{UserMissingSomeOf: []uint64{10, 11}}, nil, false},
		{"in channel", &types.Filter{InChannel: []uint64{100}}, nil, true},
		{"in channel parent only", &types.Filter{InChannel: []uint64{50}}, nil, false},
		{"not in channel", &types.Filter{NotInChannel: []uint64{100}}, nil, false},
		{"in channel tree", &types.Filter{InChannelOrSubChannels: []uint64{5}}, nil, true},
		{"in channel tree miss", &types.Filter{InChannelOrSubChannels: []uint64{6}}, nil, false},
		{"not in channel tree", &types.Filter{NotInChannelOrSubChannels: []uint64{50}}, nil, false},
		{"min attachments", &types.Filter{MinAttachments: ptr(int64(2))}, nil, false},
		{"max attachments", &types.Filter{MaxAttachments: ptr(int64(1))}, nil, true},
		{"min length", &types.Filter{MinLength: ptr(int64(20))}, nil, false},
		{"max length", &types.Filter{MaxLength: ptr(int64(11))}, nil, true},
		{"matches", &types.Filter{Matches: ptr(`^hello`)}, nil, true},
		{"matches miss", &types.Filter{Matches: ptr(`^world`)}, nil, false},
		{"not matches", &types.Filter{NotMatches: ptr(`world$`)}, nil, false},
		{"broken regex never passes", &types.Filter{Matches: ptr(`(`)}, nil, false},
		{"older than", &types.Filter{OlderThan: ptr(int64(60))}, nil, true},
		{"older than too young", &types.Filter{OlderThan: ptr(int64(7200))}, nil, false},
		{"newer than", &types.Filter{NewerThan: ptr(int64(60))}, nil, false},
		{"voter skipped without voter", &types.Filter{VoterHasAllOf: []uint64{99}}, nil, true},
		{"voter has all of", &types.Filter{VoterHasAllOf: []uint64{99}}, &Voter{Roles: []snowflake.ID{99}}, true},
		{"voter missing", &types.Filter{VoterHasAllOf: []uint64{99}}, &Voter{Roles: []snowflake.ID{98}}, false},
	}

	e := newEngine()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := &Context{Message: baseMessage(), Voter: tt.voter, Now: now}
			assert.Equal(t, tt.want, e.checkFilter(tt.filter, ctx))
		})
	}
}

func TestCheckGroups(t *testing.T) {
	t.Parallel()

	pass := func() *types.Filter { return &types.Filter{} }
	fail := func() *types.Filter { return &types.Filter{UserIsBot: ptr(true)} }

	tests := []struct {
		name   string
		groups []*types.FilterGroup
		want   Outcome
	}{
		{"no groups", nil, Pass},
		{"empty group passes", []*types.FilterGroup{group()}, Pass},
		{"any filter passes", []*types.FilterGroup{group(fail(), pass())}, Pass},
		{"no filter passes", []*types.FilterGroup{group(fail(), fail())}, Fail},
		{
			"instant pass stops before instant fail",
			[]*types.FilterGroup{group(&types.Filter{InstantPass: true}, &types.Filter{UserIsBot: ptr(true), InstantFail: true})},
			Pass,
		},
		{
			"instant fail aborts",
			[]*types.FilterGroup{group(&types.Filter{UserIsBot: ptr(true), InstantFail: true}, pass())},
			Abort,
		},
		{
			"passing instant fail filter does not abort",
			[]*types.FilterGroup{group(&types.Filter{InstantFail: true}, fail())},
			Pass,
		},
		{"groups are anded", []*types.FilterGroup{group(pass()), group(fail())}, Fail},
	}

	e := newEngine()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := e.Check(tt.groups, &Context{Message: baseMessage(), Now: now})
			assert.Equal(t, tt.want, res.Outcome)
			assert.Equal(t, tt.want == Pass, res.Passed())
		})
	}
}

func TestCheckGroupUsesPositionOrder(t *testing.T) {
	t.Parallel()

	g := &types.FilterGroup{Name: "g", Filters: []*types.Filter{
		{Position: 2, UserIsBot: ptr(true), InstantFail: true},
		{Position: 1, InstantPass: true},
	}}

	res := newEngine().Check([]*types.FilterGroup{g}, &Context{Message: baseMessage(), Now: now})
	assert.True(t, res.Passed())
}

func TestRequirements(t *testing.T) {
	t.Parallel()

	e := newEngine()
	m := baseMessage()

	s := types.DefaultSettings()
	assert.Empty(t, e.Requirements(&s, m, now))

	s.RequireImage = true
	s.OlderThan = 7200
	s.NewerThan = 60
	s.Matches = ptr(`^bye`)
	s.NotMatches = ptr(`hello`)

	assert.Equal(t,
		[]Requirement{RequireImage, OlderThan, NewerThan, Matches, NotMatches},
		e.Requirements(&s, m, now))
}

func TestAutostarReasons(t *testing.T) {
	t.Parallel()

	asc := &types.AutostarChannel{MinChars: 20, MaxChars: ptr(int64(5)), RequireImage: true}
	reasons := AutostarReasons(asc, baseMessage())

	require.Len(t, reasons, 3)
	assert.Contains(t, reasons[0], "20 characters")
	assert.Contains(t, reasons[1], "5 characters")

	assert.Empty(t, AutostarReasons(&types.AutostarChannel{}, baseMessage()))
}

func TestRegexCache(t *testing.T) {
	t.Parallel()

	c := NewRegexCache(50*time.Millisecond, 8)

	_, err := c.Compile("abcdefghij")
	require.ErrorIs(t, err, ErrRegexTooLong)

	re, err := c.Compile("a+")
	require.NoError(t, err)

	again, err := c.Compile("a+")
	require.NoError(t, err)
	assert.Same(t, re, again)

	ok, err := c.Match("a+", "caat")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRegexTimeout(t *testing.T) {
	t.Parallel()

	c := NewRegexCache(10*time.Millisecond, 100)

	// Catastrophic backtracking is cut off by the match timeout
	_, err := c.Match(`^(a+)+$`, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa!")
	require.Error(t, err)
}
