package cache

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

// VoteEmojis returns every emoji that is a vote emoji on some starboard or
// override of the guild.
func (c *Cache) VoteEmojis(ctx context.Context, guildID snowflake.ID) (map[string]struct{}, error) {
	if set, ok := c.voteEmojis.Load(guildID); ok {
		return set, nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("vote_emojis:%d", guildID), func() (any, error) {
		emojis, err := c.loader.VoteEmojis(ctx, guildID)
		if err != nil {
			return nil, err
		}

		set := make(map[string]struct{}, len(emojis))
		for _, e := range emojis {
			set[e] = struct{}{}
		}
		c.voteEmojis.Store(guildID, set)

		return set, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load vote emojis: %w (guildID=%d)", err, guildID)
	}

	return v.(map[string]struct{}), nil
}

// IsVoteEmoji reports whether a reaction could be a vote in the guild.
func (c *Cache) IsVoteEmoji(ctx context.Context, guildID snowflake.ID, emoji string) (bool, error) {
	set, err := c.VoteEmojis(ctx, guildID)
	if err != nil {
		return false, err
	}

	_, ok := set[emoji]
	return ok, nil
}

// InvalidateVoteEmojis drops the cached vote emojis after a starboard or override changed.
func (c *Cache) InvalidateVoteEmojis(guildID snowflake.ID) {
	c.voteEmojis.Delete(guildID)
}

// IsAutostarChannel reports whether the channel has at least one autostar channel rule.
func (c *Cache) IsAutostarChannel(ctx context.Context, guildID, channelID snowflake.ID) (bool, error) {
	set, ok := c.autostar.Load(guildID)
	if !ok {
		v, err, _ := c.group.Do(fmt.Sprintf("autostar:%d", guildID), func() (any, error) {
			ids, err := c.loader.AutostarChannels(ctx, guildID)
			if err != nil {
				return nil, err
			}

			loaded := make(map[snowflake.ID]struct{}, len(ids))
			for _, id := range ids {
				loaded[id] = struct{}{}
			}
			c.autostar.Store(guildID, loaded)

			return loaded, nil
		})
		if err != nil {
			return false, fmt.Errorf("failed to load autostar channels: %w (guildID=%d)", err, guildID)
		}

		set = v.(map[snowflake.ID]struct{})
	}

	_, found := set[channelID]
	return found, nil
}

// InvalidateAutostarChannels drops the cached autostar channel set after it changed.
func (c *Cache) InvalidateAutostarChannels(guildID snowflake.ID) {
	c.autostar.Delete(guildID)
}
