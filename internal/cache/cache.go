// Package cache holds guild metadata observed from gateway events and
// falls through to the chat HTTP API on a miss.
package cache

import (
	"context"
	"slices"
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/robalyx/starboard/internal/discord/chat"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher is the subset of the chat API used to back-fill the cache.
type Fetcher interface {
	GetChannel(ctx context.Context, channelID snowflake.ID) (discord.Channel, error)
	GetMember(ctx context.Context, guildID, userID snowflake.ID) (*discord.Member, error)
	GetUser(ctx context.Context, userID snowflake.ID) (*discord.User, error)
	GetRoles(ctx context.Context, guildID snowflake.ID) ([]discord.Role, error)
	GetMessage(ctx context.Context, channelID, messageID snowflake.ID) (*discord.Message, error)
	GetWebhook(ctx context.Context, webhookID snowflake.ID) (*chat.Webhook, error)
}

// ConfigLoader loads the per-guild starboard facts that the event fast path needs.
type ConfigLoader interface {
	VoteEmojis(ctx context.Context, guildID snowflake.ID) ([]string, error)
	AutostarChannels(ctx context.Context, guildID snowflake.ID) ([]snowflake.ID, error)
}

// Role is a cached guild role.
type Role struct {
	ID       snowflake.ID
	Name     string
	Position int
	Managed  bool
}

// Channel is a cached guild channel or thread.
type Channel struct {
	ID       snowflake.ID
	GuildID  snowflake.ID
	Name     string
	ParentID *snowflake.ID
	NSFW     bool
	IsThread bool
}

// Member is a cached guild member.
type Member struct {
	GuildID     snowflake.ID
	UserID      snowflake.ID
	DisplayName string
	AvatarURL   string
	IsBot       bool
	RoleIDs     []snowflake.ID
}

// User is a cached user.
type User struct {
	ID          snowflake.ID
	DisplayName string
	AvatarURL   string
	IsBot       bool
}

// Guild is the cached state of one guild. Access it through WithGuild or AlterGuild.
type Guild struct {
	ID       snowflake.ID
	Roles    map[snowflake.ID]Role
	Channels map[snowflake.ID]*Channel
	// ThreadParents maps active thread ids to their parent channel.
	ThreadParents map[snowflake.ID]snowflake.ID
	RolesLoaded   bool
}

func newGuild(id snowflake.ID) *Guild {
	return &Guild{
		ID:            id,
		Roles:         make(map[snowflake.ID]Role),
		Channels:      make(map[snowflake.ID]*Channel),
		ThreadParents: make(map[snowflake.ID]snowflake.ID),
	}
}

type guildEntry struct {
	mu    sync.RWMutex
	guild *Guild
}

type memberKey struct {
	guildID snowflake.ID
	userID  snowflake.ID
}

// Cache is the reference cache. Nil values in the lookup maps are
// negative entries recorded after a 404.
type Cache struct {
	fetcher  Fetcher
	loader   ConfigLoader
	messages MessageStore
	logger   *zap.Logger
	group    singleflight.Group

	guilds          *xsync.MapOf[snowflake.ID, *guildEntry]
	missingChannels *xsync.MapOf[snowflake.ID, struct{}]
	members         *xsync.MapOf[memberKey, *Member]
	users           *xsync.MapOf[snowflake.ID, *User]
	webhooks        *xsync.MapOf[snowflake.ID, *chat.Webhook]
	voteEmojis      *xsync.MapOf[snowflake.ID, map[string]struct{}]
	autostar        *xsync.MapOf[snowflake.ID, map[snowflake.ID]struct{}]
}

// New creates an empty Cache.
func New(fetcher Fetcher, loader ConfigLoader, messages MessageStore, logger *zap.Logger) *Cache {
	return &Cache{
		fetcher:         fetcher,
		loader:          loader,
		messages:        messages,
		logger:          logger.Named("cache"),
		guilds:          xsync.NewMapOf[snowflake.ID, *guildEntry](),
		missingChannels: xsync.NewMapOf[snowflake.ID, struct{}](),
		members:         xsync.NewMapOf[memberKey, *Member](),
		users:           xsync.NewMapOf[snowflake.ID, *User](),
		webhooks:        xsync.NewMapOf[snowflake.ID, *chat.Webhook](),
		voteEmojis:      xsync.NewMapOf[snowflake.ID, map[string]struct{}](),
		autostar:        xsync.NewMapOf[snowflake.ID, map[snowflake.ID]struct{}](),
	}
}

func (c *Cache) entry(guildID snowflake.ID) *guildEntry {
	e, _ := c.guilds.LoadOrCompute(guildID, func() *guildEntry {
		return &guildEntry{guild: newGuild(guildID)}
	})
	return e
}

// WithGuild calls fn with the cached guild under a read lock. fn receives nil
// when the guild has not been observed. fn must not retain the pointer.
func (c *Cache) WithGuild(guildID snowflake.ID, fn func(g *Guild)) {
	e, ok := c.guilds.Load(guildID)
	if !ok {
		fn(nil)
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.guild)
}

// AlterGuild calls fn with the cached guild under a write lock, creating an
// empty guild when none is cached.
func (c *Cache) AlterGuild(guildID snowflake.ID, fn func(g *Guild)) {
	e := c.entry(guildID)

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.guild)
}

// PutGuild replaces the cached guild, as on GUILD_CREATE.
func (c *Cache) PutGuild(g *Guild) {
	for id := range g.Channels {
		c.missingChannels.Delete(id)
	}

	c.AlterGuild(g.ID, func(cached *Guild) {
		*cached = *g
		cached.RolesLoaded = true
	})
}

// RemoveGuild drops every cached fact about a guild.
func (c *Cache) RemoveGuild(guildID snowflake.ID) {
	c.guilds.Delete(guildID)
	c.voteEmojis.Delete(guildID)
	c.autostar.Delete(guildID)

	c.members.Range(func(k memberKey, _ *Member) bool {
		if k.guildID == guildID {
			c.members.Delete(k)
		}
		return true
	})
}

// PutRole inserts or replaces a role.
func (c *Cache) PutRole(guildID snowflake.ID, role Role) {
	c.AlterGuild(guildID, func(g *Guild) {
		g.Roles[role.ID] = role
	})
}

// RemoveRole deletes a role.
func (c *Cache) RemoveRole(guildID, roleID snowflake.ID) {
	c.AlterGuild(guildID, func(g *Guild) {
		delete(g.Roles, roleID)
	})
}

// PutChannel inserts or merges a channel. The nsfw flag is sticky: once a
// channel was seen as nsfw it stays nsfw until the channel is removed.
func (c *Cache) PutChannel(ch *Channel) {
	c.missingChannels.Delete(ch.ID)

	c.AlterGuild(ch.GuildID, func(g *Guild) {
		merged := *ch
		if cached, ok := g.Channels[ch.ID]; ok {
			merged.NSFW = ch.NSFW || cached.NSFW
		}
		g.Channels[ch.ID] = &merged

		if merged.IsThread && merged.ParentID != nil {
			g.ThreadParents[merged.ID] = *merged.ParentID
		}
	})
}

// RemoveChannel deletes a channel and any thread links that point at it.
func (c *Cache) RemoveChannel(guildID, channelID snowflake.ID) {
	c.AlterGuild(guildID, func(g *Guild) {
		delete(g.Channels, channelID)
		delete(g.ThreadParents, channelID)

		for thread, parent := range g.ThreadParents {
			if parent == channelID {
				delete(g.ThreadParents, thread)
			}
		}
	})
}

// PutMember inserts or replaces a member.
func (c *Cache) PutMember(m *Member) {
	c.members.Store(memberKey{m.GuildID, m.UserID}, m)
}

// RemoveMember forgets a member.
func (c *Cache) RemoveMember(guildID, userID snowflake.ID) {
	c.members.Delete(memberKey{guildID, userID})
}

// MembersWithRole returns the cached members of a guild that hold a role.
func (c *Cache) MembersWithRole(guildID, roleID snowflake.ID) []*Member {
	var members []*Member

	c.members.Range(func(k memberKey, m *Member) bool {
		if k.guildID == guildID && m != nil && slices.Contains(m.RoleIDs, roleID) {
			members = append(members, m)
		}
		return true
	})

	return members
}

// EvictWebhook forgets a webhook, for example after it was deleted.
func (c *Cache) EvictWebhook(webhookID snowflake.ID) {
	c.webhooks.Delete(webhookID)
}
