package refresh

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/starboard/locks"
	"go.uber.org/zap"
)

// postDeletedReason is the trash reason used when a moderator deletes a post
// of a starboard with on_delete set to trash-all.
const postDeletedReason = "A starboard post of this message was deleted."

// HandleMessageUpdate stores the edited message and re-renders the posts of
// starboards with link_edits.
func (c *Coordinator) HandleMessageUpdate(ctx context.Context, snapshot *cache.Message) error {
	c.lookup.PutMessage(ctx, snapshot)

	msg, err := c.store.GetMessage(ctx, snapshot.ID)
	if err != nil || msg == nil {
		return err
	}

	return c.run(ctx, msg.MessageID, reasonEdit, false)
}

// HandleMessageDelete handles a deleted original message or starboard post.
func (c *Coordinator) HandleMessageDelete(ctx context.Context, messageID snowflake.ID) error {
	c.lookup.MarkMessageDeleted(ctx, messageID)

	row, err := c.store.GetStarboardMessageByPost(ctx, messageID)
	if err != nil {
		return err
	}
	if row != nil {
		return c.postDeleted(ctx, row)
	}

	msg, err := c.store.GetMessage(ctx, messageID)
	if err != nil || msg == nil {
		return err
	}

	return c.originalDeleted(ctx, msg)
}

// originalDeleted removes the posts of starboards with link_deletes.
func (c *Coordinator) originalDeleted(ctx context.Context, msg *types.Message) error {
	guard, err := c.locks.Lock(ctx, locks.PostUpdate, uint64(msg.MessageID))
	if err != nil {
		return err
	}
	defer guard.Release()

	parentID, err := c.lookup.ParentOf(ctx, msg.GuildID, msg.ChannelID)
	if err != nil {
		return err
	}

	configs, err := c.configs.ListForChannel(ctx, msg.GuildID, msg.ChannelID, parentID)
	if err != nil {
		return err
	}

	rows, err := c.store.GetStarboardMessages(ctx, msg.MessageID)
	if err != nil {
		return err
	}

	byStarboard := make(map[int64]*types.StarboardMessage, len(rows))
	for _, row := range rows {
		byStarboard[row.StarboardID] = row
	}

	for _, cfg := range configs {
		row := byStarboard[cfg.ID()]
		if !cfg.Settings.LinkDeletes || row == nil || row.StarboardMessageID == nil {
			continue
		}

		if err := c.remove(ctx, msg, cfg, row); err != nil {
			c.logger.Error("Failed to remove post of deleted message",
				zap.Error(err),
				zap.Uint64("messageID", uint64(msg.MessageID)),
				zap.Int64("starboardID", cfg.ID()))
		}
	}

	return nil
}

// postDeleted applies the on_delete setting of the starboard whose post was deleted.
func (c *Coordinator) postDeleted(ctx context.Context, row *types.StarboardMessage) error {
	msg, err := c.store.GetMessage(ctx, row.MessageID)
	if err != nil || msg == nil {
		return err
	}

	parentID, err := c.lookup.ParentOf(ctx, msg.GuildID, msg.ChannelID)
	if err != nil {
		return err
	}

	configs, err := c.configs.ListForChannel(ctx, msg.GuildID, msg.ChannelID, parentID)
	if err != nil {
		return err
	}

	onDelete := enum.OnDeleteRepost
	for _, cfg := range configs {
		if cfg.ID() == row.StarboardID {
			onDelete = cfg.Settings.OnDelete
			break
		}
	}

	c.logger.Debug("Starboard post was deleted",
		zap.Uint64("messageID", uint64(msg.MessageID)),
		zap.Int64("starboardID", row.StarboardID),
		zap.Stringer("onDelete", onDelete))

	switch onDelete {
	case enum.OnDeleteIgnore:
		return nil

	case enum.OnDeleteTrashAll:
		reason := postDeletedReason
		if err := c.store.SetTrashed(ctx, msg.MessageID, true, &reason); err != nil {
			return err
		}

	case enum.OnDeleteFreezeAll:
		if err := c.store.SetFrozen(ctx, msg.MessageID, true); err != nil {
			return err
		}

	case enum.OnDeleteRepost:
	}

	if err := c.store.ClearStarboardMessage(ctx, msg.MessageID, row.StarboardID); err != nil {
		return fmt.Errorf("failed to forget deleted post: %w", err)
	}

	return c.Refresh(ctx, msg.MessageID, onDelete == enum.OnDeleteTrashAll)
}
