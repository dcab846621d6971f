package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/starboard/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testGuild   snowflake.ID = 1
	testChannel snowflake.ID = 10
	testAuthor  snowflake.ID = 20
)

type fakeAutostarStore struct {
	channels []*types.AutostarChannel
	groups   map[int64]*types.FilterGroup
}

func (s *fakeAutostarStore) GetByChannel(_ context.Context, channelID snowflake.ID) ([]*types.AutostarChannel, error) {
	var out []*types.AutostarChannel
	for _, asc := range s.channels {
		if asc.ChannelID == channelID {
			out = append(out, asc)
		}
	}
	return out, nil
}

func (s *fakeAutostarStore) GetGroups(_ context.Context, ids []int64) ([]*types.FilterGroup, error) {
	var out []*types.FilterGroup
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeAutostarChat struct {
	mu        sync.Mutex
	reactions []string
	deleted   []snowflake.ID
	dms       []string
}

func (c *fakeAutostarChat) AddReaction(_ context.Context, _, _ snowflake.ID, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reactions = append(c.reactions, emoji)
	return nil
}

func (c *fakeAutostarChat) DeleteMessage(_ context.Context, _, messageID snowflake.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *fakeAutostarChat) SendDM(_ context.Context, _ snowflake.ID, msg discord.MessageCreate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dms = append(c.dms, msg.Content)
	return nil
}

type fakeAutostarLookup struct {
	autostar map[snowflake.ID]bool
}

func (l *fakeAutostarLookup) IsAutostarChannel(_ context.Context, _, channelID snowflake.ID) (bool, error) {
	return l.autostar[channelID], nil
}

func (l *fakeAutostarLookup) FogChannel(_ context.Context, guildID, channelID snowflake.ID) (*cache.Channel, error) {
	return &cache.Channel{ID: channelID, GuildID: guildID}, nil
}

func (l *fakeAutostarLookup) FogMember(_ context.Context, guildID, userID snowflake.ID) (*cache.Member, error) {
	return &cache.Member{GuildID: guildID, UserID: userID}, nil
}

func newTestAutostar(store *fakeAutostarStore) (*Autostar, *fakeAutostarChat) {
	chatAPI := &fakeAutostarChat{}
	lookup := &fakeAutostarLookup{autostar: map[snowflake.ID]bool{testChannel: true}}
	engine := filter.NewEngine(filter.NewRegexCache(time.Second, 1000), zap.NewNop())

	return NewAutostar(store, chatAPI, lookup, engine, zap.NewNop()), chatAPI
}

func newMessage(content string) *cache.Message {
	return &cache.Message{
		ID:        100,
		GuildID:   testGuild,
		ChannelID: testChannel,
		AuthorID:  testAuthor,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestAutostarReactsToValidMessage(t *testing.T) {
	t.Parallel()

	store := &fakeAutostarStore{channels: []*types.AutostarChannel{
		{ID: 1, GuildID: testGuild, ChannelID: testChannel, Emojis: []string{"⭐", "123456789012345678"}},
		{ID: 2, GuildID: testGuild, ChannelID: testChannel, Emojis: []string{"⭐", "🔥"}},
	}}
	a, chatAPI := newTestAutostar(store)

	require.NoError(t, a.HandleMessage(context.Background(), newMessage("hello")))
	assert.Equal(t, []string{"⭐", "_:123456789012345678", "🔥"}, chatAPI.reactions)
	assert.Empty(t, chatAPI.deleted)
}

func TestAutostarDeletesInvalidMessage(t *testing.T) {
	t.Parallel()

	store := &fakeAutostarStore{channels: []*types.AutostarChannel{{
		ID: 1, GuildID: testGuild, ChannelID: testChannel, Emojis: []string{"⭐"},
		MinChars: 10, RequireImage: true, DeleteInvalid: true,
	}}}
	a, chatAPI := newTestAutostar(store)

	require.NoError(t, a.HandleMessage(context.Background(), newMessage("short")))
	assert.Equal(t, []snowflake.ID{100}, chatAPI.deleted)
	assert.Empty(t, chatAPI.reactions)

	require.Len(t, chatAPI.dms, 1)
	assert.Contains(t, chatAPI.dms[0], "at least 10 characters")
	assert.Contains(t, chatAPI.dms[0], "must include an image")
}

func TestAutostarKeepsInvalidMessage(t *testing.T) {
	t.Parallel()

	store := &fakeAutostarStore{channels: []*types.AutostarChannel{{
		ID: 1, GuildID: testGuild, ChannelID: testChannel, Emojis: []string{"⭐"}, MaxChars: ptr(int64(3)),
	}}}
	a, chatAPI := newTestAutostar(store)

	require.NoError(t, a.HandleMessage(context.Background(), newMessage("too long")))
	assert.Empty(t, chatAPI.deleted)
	assert.Empty(t, chatAPI.reactions)
	assert.Empty(t, chatAPI.dms)
}

func TestAutostarFilterGroups(t *testing.T) {
	t.Parallel()

	store := &fakeAutostarStore{
		channels: []*types.AutostarChannel{{
			ID: 1, GuildID: testGuild, ChannelID: testChannel, Emojis: []string{"⭐"},
			FilterGroups: []int64{7}, DeleteInvalid: true,
		}},
		groups: map[int64]*types.FilterGroup{
			7: {ID: 7, Name: "long", Filters: []*types.Filter{{ID: 1, FilterGroupID: 7, MinLength: ptr(int64(20))}}},
		},
	}
	a, chatAPI := newTestAutostar(store)

	require.NoError(t, a.HandleMessage(context.Background(), newMessage("not long enough")))
	assert.Equal(t, []snowflake.ID{100}, chatAPI.deleted)
	require.Len(t, chatAPI.dms, 1)
	assert.Contains(t, chatAPI.dms[0], filterGroupsReason)
}

func TestAutostarIgnores(t *testing.T) {
	t.Parallel()

	store := &fakeAutostarStore{channels: []*types.AutostarChannel{
		{ID: 1, GuildID: testGuild, ChannelID: testChannel, Emojis: []string{"⭐"}},
		{ID: 2, GuildID: testGuild, ChannelID: 11, Emojis: []string{"⭐"}},
		{ID: 3, GuildID: testGuild, ChannelID: 12, Emojis: []string{"⭐"}, PremiumLocked: true},
	}}
	a, chatAPI := newTestAutostar(store)

	fromBot := newMessage("beep")
	fromBot.AuthorIsBot = true
	require.NoError(t, a.HandleMessage(context.Background(), fromBot))

	other := newMessage("hello")
	other.ChannelID = 11
	require.NoError(t, a.HandleMessage(context.Background(), other))

	assert.Empty(t, chatAPI.reactions)
}
