// Package events keeps the reference cache in step with guild gateway events.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// GuildFetcher loads the roles and channels of a guild.
type GuildFetcher interface {
	GetRoles(ctx context.Context, guildID snowflake.ID) ([]discord.Role, error)
	GetGuildChannels(ctx context.Context, guildID snowflake.ID) ([]discord.GuildChannel, error)
}

// GuildCache is the part of the reference cache guild events write to.
type GuildCache interface {
	PutGuild(g *cache.Guild)
	RemoveGuild(guildID snowflake.ID)
	PutRole(guildID snowflake.ID, role cache.Role)
	RemoveRole(guildID, roleID snowflake.ID)
	PutChannel(ch *cache.Channel)
	RemoveChannel(guildID, channelID snowflake.ID)
	PutMember(m *cache.Member)
	RemoveMember(guildID, userID snowflake.ID)
	VoteEmojis(ctx context.Context, guildID snowflake.ID) (map[string]struct{}, error)
}

// GuildEventHandler applies guild, role, channel, thread and member events to the cache.
type GuildEventHandler struct {
	fetcher GuildFetcher
	cache   GuildCache
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger
}

// NewGuildEventHandler creates a handler. At most parallel guilds are loaded at once.
func NewGuildEventHandler(
	fetcher GuildFetcher, guildCache GuildCache, parallel int64, timeout time.Duration, logger *zap.Logger,
) *GuildEventHandler {
	if parallel < 1 {
		parallel = 1
	}

	return &GuildEventHandler{
		fetcher: fetcher,
		cache:   guildCache,
		sem:     semaphore.NewWeighted(parallel),
		timeout: timeout,
		logger:  logger.Named("guild_events"),
	}
}

// Load fetches a guild's roles and channels into the cache and warms its vote emojis.
func (h *GuildEventHandler) Load(ctx context.Context, guildID snowflake.ID) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var (
		roles    []discord.Role
		channels []discord.GuildChannel
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roles, err = h.fetcher.GetRoles(gctx, guildID)
		return err
	})
	g.Go(func() error {
		var err error
		channels, err = h.fetcher.GetGuildChannels(gctx, guildID)
		return err
	})
	g.Go(func() error {
		_, err := h.cache.VoteEmojis(gctx, guildID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to load guild: %w (guildID=%d)", err, guildID)
	}

	guild := &cache.Guild{
		ID:            guildID,
		Roles:         make(map[snowflake.ID]cache.Role, len(roles)),
		Channels:      make(map[snowflake.ID]*cache.Channel, len(channels)),
		ThreadParents: make(map[snowflake.ID]snowflake.ID),
	}
	for i := range roles {
		guild.Roles[roles[i].ID] = cache.RoleFromDiscord(&roles[i])
	}
	for _, raw := range channels {
		ch := cache.ChannelFromDiscord(raw)
		guild.Channels[ch.ID] = ch
	}
	h.cache.PutGuild(guild)

	h.logger.Debug("Guild loaded",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Int("roles", len(roles)),
		zap.Int("channels", len(channels)))

	return nil
}

// OnGuildLeave drops the guild from the cache.
func (h *GuildEventHandler) OnGuildLeave(event *events.GuildLeave) {
	h.cache.RemoveGuild(event.GuildID)

	h.logger.Info("Bot left a guild", zap.Uint64("guildID", uint64(event.GuildID)))
}

// OnRoleCreate caches a new role.
func (h *GuildEventHandler) OnRoleCreate(event *events.RoleCreate) {
	h.cache.PutRole(event.GuildID, cache.RoleFromDiscord(&event.Role))
}

// OnRoleUpdate replaces a cached role.
func (h *GuildEventHandler) OnRoleUpdate(event *events.RoleUpdate) {
	h.cache.PutRole(event.GuildID, cache.RoleFromDiscord(&event.Role))
}

// OnRoleDelete removes a cached role.
func (h *GuildEventHandler) OnRoleDelete(event *events.RoleDelete) {
	h.cache.RemoveRole(event.GuildID, event.RoleID)
}

// OnGuildChannelCreate caches a new channel.
func (h *GuildEventHandler) OnGuildChannelCreate(event *events.GuildChannelCreate) {
	h.cache.PutChannel(cache.ChannelFromDiscord(event.Channel))
}

// OnGuildChannelUpdate replaces a cached channel.
func (h *GuildEventHandler) OnGuildChannelUpdate(event *events.GuildChannelUpdate) {
	h.cache.PutChannel(cache.ChannelFromDiscord(event.Channel))
}

// OnGuildChannelDelete removes a cached channel.
func (h *GuildEventHandler) OnGuildChannelDelete(event *events.GuildChannelDelete) {
	h.cache.RemoveChannel(event.GuildID, event.ChannelID)
}

// OnThreadCreate caches a new thread.
func (h *GuildEventHandler) OnThreadCreate(event *events.ThreadCreate) {
	h.cache.PutChannel(cache.ChannelFromDiscord(event.Thread))
}

// OnThreadUpdate replaces a cached thread.
func (h *GuildEventHandler) OnThreadUpdate(event *events.ThreadUpdate) {
	h.cache.PutChannel(cache.ChannelFromDiscord(event.Thread))
}

// OnThreadDelete removes a cached thread.
func (h *GuildEventHandler) OnThreadDelete(event *events.ThreadDelete) {
	h.cache.RemoveChannel(event.GuildID, event.ThreadID)
}

// OnGuildMemberUpdate replaces a cached member so role changes are seen.
func (h *GuildEventHandler) OnGuildMemberUpdate(event *events.GuildMemberUpdate) {
	h.cache.PutMember(cache.MemberFromDiscord(event.GuildID, &event.Member))
}

// OnGuildMemberLeave removes a cached member.
func (h *GuildEventHandler) OnGuildMemberLeave(event *events.GuildMemberLeave) {
	h.cache.RemoveMember(event.GuildID, event.User.ID)
}
