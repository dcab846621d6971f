package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	roles    []discord.Role
	rolesErr error
}

func (f *fakeFetcher) GetRoles(context.Context, snowflake.ID) ([]discord.Role, error) {
	return f.roles, f.rolesErr
}

func (f *fakeFetcher) GetGuildChannels(context.Context, snowflake.ID) ([]discord.GuildChannel, error) {
	return nil, nil
}

type fakeCache struct {
	mu      sync.Mutex
	guilds  map[snowflake.ID]*cache.Guild
	warmed  []snowflake.ID
	removed []snowflake.ID
}

func newFakeCache() *fakeCache {
	return &fakeCache{guilds: make(map[snowflake.ID]*cache.Guild)}
}

func (c *fakeCache) PutGuild(g *cache.Guild) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guilds[g.ID] = g
}

func (c *fakeCache) RemoveGuild(guildID snowflake.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, guildID)
}

func (c *fakeCache) PutRole(snowflake.ID, cache.Role) {}
func (c *fakeCache) RemoveRole(_, _ snowflake.ID) {}
func (c *fakeCache) PutChannel(*cache.Channel) {}
func (c *fakeCache) RemoveChannel(_, _ snowflake.ID) {}
func (c *fakeCache) PutMember(*cache.Member) {}
func (c *fakeCache) RemoveMember(_, _ snowflake.ID) {}

func (c *fakeCache) VoteEmojis(_ context.Context, guildID snowflake.ID) (map[string]struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warmed = append(c.warmed, guildID)
	return map[string]struct{}{"⭐": {}}, nil
}

func TestLoadCachesRoles(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{roles: []discord.Role{
		{ID: 100, Name: "@everyone", Position: 0},
		{ID: 101, Name: "Mods", Position: 3},
	}}
	guildCache := newFakeCache()
	h := NewGuildEventHandler(fetcher, guildCache, 2, time.Second, zap.NewNop())

	require.NoError(t, h.Load(context.Background(), 1))

	guild := guildCache.guilds[1]
	require.NotNil(t, guild)
	assert.Len(t, guild.Roles, 2)
	assert.Equal(t, 3, guild.Roles[101].Position)
	assert.Empty(t, guild.Channels)
	assert.NotNil(t, guild.ThreadParents)
	assert.Equal(t, []snowflake.ID{1}, guildCache.warmed)
}

func TestLoadFailureLeavesCacheUntouched(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	guildCache := newFakeCache()
	h := NewGuildEventHandler(&fakeFetcher{rolesErr: boom}, guildCache, 1, time.Second, zap.NewNop())

	err := h.Load(context.Background(), 1)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, guildCache.guilds)
}

func TestLoadRespectsCancelledContext(t *testing.T) {
	t.Parallel()

	h := NewGuildEventHandler(&fakeFetcher{}, newFakeCache(), 1, time.Second, zap.NewNop())

	// Hold the only slot so Load has to wait on the semaphore.
	require.NoError(t, h.sem.Acquire(context.Background(), 1))
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, h.Load(ctx, 1), context.Canceled)
}
