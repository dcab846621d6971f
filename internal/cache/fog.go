package cache

import (
	"context"
	"fmt"
	"maps"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/discord/chat"
	"go.uber.org/zap"
)

// FogChannel returns a channel, fetching it on a miss. Returns nil when the channel does not exist.
func (c *Cache) FogChannel(ctx context.Context, guildID, channelID snowflake.ID) (*Channel, error) {
	var cached *Channel

	c.WithGuild(guildID, func(g *Guild) {
		if g != nil {
			if ch, ok := g.Channels[channelID]; ok {
				copied := *ch
				cached = &copied
			}
		}
	})

	if cached != nil {
		return cached, nil
	}

	if _, missing := c.missingChannels.Load(channelID); missing {
		return nil, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("channel:%d", channelID), func() (any, error) {
		raw, err := c.fetcher.GetChannel(ctx, channelID)
		if err != nil {
			if chat.IsNotFound(err) {
				c.missingChannels.Store(channelID, struct{}{})
				return (*Channel)(nil), nil
			}
			return nil, err
		}

		ch := ChannelFromDiscord(raw)
		if ch.GuildID == 0 {
			ch.GuildID = guildID
		}
		c.PutChannel(ch)

		return ch, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel: %w (channelID=%d)", err, channelID)
	}

	return v.(*Channel), nil
}

// ParentOf returns the parent channel id when channelID is a thread.
func (c *Cache) ParentOf(ctx context.Context, guildID, channelID snowflake.ID) (*snowflake.ID, error) {
	var parent *snowflake.ID

	c.WithGuild(guildID, func(g *Guild) {
		if g != nil {
			if p, ok := g.ThreadParents[channelID]; ok {
				parent = &p
			}
		}
	})

	if parent != nil {
		return parent, nil
	}

	ch, err := c.FogChannel(ctx, guildID, channelID)
	if err != nil || ch == nil || !ch.IsThread {
		return nil, err
	}

	return ch.ParentID, nil
}

// ChannelNSFW returns the nsfw flag of a channel. Threads take the flag of
// their parent. Returns nil when the channel cannot be found.
func (c *Cache) ChannelNSFW(ctx context.Context, guildID, channelID snowflake.ID) (*bool, error) {
	ch, err := c.FogChannel(ctx, guildID, channelID)
	if err != nil || ch == nil {
		return nil, err
	}

	if ch.IsThread && ch.ParentID != nil {
		return c.ChannelNSFW(ctx, guildID, *ch.ParentID)
	}

	nsfw := ch.NSFW
	return &nsfw, nil
}

// FogMember returns a guild member, fetching it on a miss. Returns nil when
// the user is not a member of the guild.
func (c *Cache) FogMember(ctx context.Context, guildID, userID snowflake.ID) (*Member, error) {
	key := memberKey{guildID, userID}
	if m, ok := c.members.Load(key); ok {
		return m, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("member:%d:%d", guildID, userID), func() (any, error) {
		raw, err := c.fetcher.GetMember(ctx, guildID, userID)
		if err != nil {
			if chat.IsNotFound(err) {
				c.members.Store(key, nil)
				return (*Member)(nil), nil
			}
			return nil, err
		}

		m := MemberFromDiscord(guildID, raw)
		c.members.Store(key, m)

		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch member: %w (guildID=%d, userID=%d)", err, guildID, userID)
	}

	return v.(*Member), nil
}

// FogUser returns a user, fetching it on a miss. Returns nil when the user does not exist.
func (c *Cache) FogUser(ctx context.Context, userID snowflake.ID) (*User, error) {
	if u, ok := c.users.Load(userID); ok {
		return u, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("user:%d", userID), func() (any, error) {
		raw, err := c.fetcher.GetUser(ctx, userID)
		if err != nil {
			if chat.IsNotFound(err) {
				c.users.Store(userID, nil)
				return (*User)(nil), nil
			}
			return nil, err
		}

		u := UserFromDiscord(raw)
		c.users.Store(userID, u)

		return u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w (userID=%d)", err, userID)
	}

	return v.(*User), nil
}

// FogRoles returns a copy of the guild's roles, fetching them when the guild
// was never bootstrapped.
func (c *Cache) FogRoles(ctx context.Context, guildID snowflake.ID) (map[snowflake.ID]Role, error) {
	var (
		roles  map[snowflake.ID]Role
		loaded bool
	)

	c.WithGuild(guildID, func(g *Guild) {
		if g != nil && g.RolesLoaded {
			roles = maps.Clone(g.Roles)
			loaded = true
		}
	})

	if loaded {
		return roles, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("roles:%d", guildID), func() (any, error) {
		raw, err := c.fetcher.GetRoles(ctx, guildID)
		if err != nil {
			return nil, err
		}

		fetched := make(map[snowflake.ID]Role, len(raw))
		for i := range raw {
			fetched[raw[i].ID] = RoleFromDiscord(&raw[i])
		}

		c.AlterGuild(guildID, func(g *Guild) {
			g.Roles = maps.Clone(fetched)
			g.RolesLoaded = true
		})

		return fetched, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roles: %w (guildID=%d)", err, guildID)
	}

	return v.(map[snowflake.ID]Role), nil
}

// RolePositions returns the position of every role in the guild.
func (c *Cache) RolePositions(ctx context.Context, guildID snowflake.ID) (map[snowflake.ID]int, error) {
	roles, err := c.FogRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}

	positions := make(map[snowflake.ID]int, len(roles))
	for id, r := range roles {
		positions[id] = r.Position
	}

	return positions, nil
}

// FogWebhook returns a webhook, fetching it on a miss. Returns nil when the
// webhook was deleted or is not usable.
func (c *Cache) FogWebhook(ctx context.Context, webhookID snowflake.ID) (*chat.Webhook, error) {
	if w, ok := c.webhooks.Load(webhookID); ok {
		return w, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("webhook:%d", webhookID), func() (any, error) {
		w, err := c.fetcher.GetWebhook(ctx, webhookID)
		if err != nil {
			if chat.IsNotFound(err) {
				c.logger.Debug("Webhook no longer exists", zap.Uint64("webhookID", uint64(webhookID)))
				c.webhooks.Store(webhookID, nil)
				return (*chat.Webhook)(nil), nil
			}
			return nil, err
		}

		c.webhooks.Store(webhookID, w)

		return w, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch webhook: %w (webhookID=%d)", err, webhookID)
	}

	return v.(*chat.Webhook), nil
}

// PutWebhook caches a webhook the bot just created.
func (c *Cache) PutWebhook(w *chat.Webhook) {
	c.webhooks.Store(w.ID, w)
}

// FogMessage returns a message snapshot, fetching it on a miss. Returns nil
// when the message was deleted.
func (c *Cache) FogMessage(ctx context.Context, channelID, messageID snowflake.ID) (*Message, error) {
	msg, found, err := c.messages.Get(ctx, messageID)
	if err != nil {
		c.logger.Warn("Failed to read message cache", zap.Error(err), zap.Uint64("messageID", uint64(messageID)))
	} else if found {
		return msg, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("message:%d", messageID), func() (any, error) {
		raw, err := c.fetcher.GetMessage(ctx, channelID, messageID)
		if err != nil {
			if chat.IsNotFound(err) {
				c.MarkMessageDeleted(ctx, messageID)
				return (*Message)(nil), nil
			}
			return nil, err
		}

		m := MessageFromDiscord(raw)
		c.PutMessage(ctx, m)

		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w (messageID=%d)", err, messageID)
	}

	return v.(*Message), nil
}

// PutMessage stores a message snapshot, as on MESSAGE_CREATE or MESSAGE_UPDATE.
func (c *Cache) PutMessage(ctx context.Context, m *Message) {
	if err := c.messages.Put(ctx, m); err != nil {
		c.logger.Warn("Failed to cache message", zap.Error(err), zap.Uint64("messageID", uint64(m.ID)))
	}
}

// MarkMessageDeleted records that a message no longer exists.
func (c *Cache) MarkMessageDeleted(ctx context.Context, messageID snowflake.ID) {
	if err := c.messages.Delete(ctx, messageID); err != nil {
		c.logger.Warn("Failed to mark message deleted", zap.Error(err), zap.Uint64("messageID", uint64(messageID)))
	}
}

// ChannelFromDiscord converts a gateway or REST channel.
func ChannelFromDiscord(raw discord.Channel) *Channel {
	ch := &Channel{ID: raw.ID(), Name: raw.Name()}

	if gc, ok := raw.(discord.GuildChannel); ok {
		ch.GuildID = gc.GuildID()
		ch.ParentID = gc.ParentID()
	}

	switch raw.Type() {
	case discord.ChannelTypeGuildPublicThread, discord.ChannelTypeGuildPrivateThread, discord.ChannelTypeGuildNewsThread:
		ch.IsThread = true
	default:
		if n, ok := raw.(interface{ NSFW() bool }); ok {
			ch.NSFW = n.NSFW()
		}
	}

	return ch
}

// MemberFromDiscord converts a gateway or REST member.
func MemberFromDiscord(guildID snowflake.ID, raw *discord.Member) *Member {
	return &Member{
		GuildID:     guildID,
		UserID:      raw.User.ID,
		DisplayName: raw.EffectiveName(),
		AvatarURL:   raw.EffectiveAvatarURL(),
		IsBot:       raw.User.Bot,
		RoleIDs:     raw.RoleIDs,
	}
}

// UserFromDiscord converts a gateway or REST user.
func UserFromDiscord(raw *discord.User) *User {
	return &User{
		ID:          raw.ID,
		DisplayName: raw.EffectiveName(),
		AvatarURL:   raw.EffectiveAvatarURL(),
		IsBot:       raw.Bot,
	}
}

// RoleFromDiscord converts a gateway or REST role.
func RoleFromDiscord(raw *discord.Role) Role {
	return Role{ID: raw.ID, Name: raw.Name, Position: raw.Position, Managed: raw.Managed}
}
