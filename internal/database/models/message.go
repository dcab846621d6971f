package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"
)

// MessageModel handles database operations for original messages and their starboard posts.
type MessageModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewMessage creates a MessageModel with database access.
func NewMessage(db *bun.DB, logger *zap.Logger) *MessageModel {
	return &MessageModel{
		db:     db,
		logger: logger.Named("db_message"),
	}
}

// GetOrCreateMessage inserts the message if it is new and returns the stored row.
// A stored NSFW flag is never cleared.
func (m *MessageModel) GetOrCreateMessage(ctx context.Context, msg *types.Message) (*types.Message, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Message, error) {
		row := *msg

		_, err := m.db.NewInsert().Model(&row).
			On("CONFLICT (message_id) DO UPDATE").
			Set("is_nsfw = messages.is_nsfw OR EXCLUDED.is_nsfw").
			Returning("*").
			Exec(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get or create message: %w (messageID=%d)", err, msg.MessageID)
		}

		return &row, nil
	})
}

// GetMessage retrieves an original message. Returns nil if it has never been stored.
func (m *MessageModel) GetMessage(ctx context.Context, messageID snowflake.ID) (*types.Message, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Message, error) {
		msg := new(types.Message)

		err := m.db.NewSelect().Model(msg).Where("message_id = ?", messageID).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil //nolint:nilnil // absence is a normal outcome
			}
			return nil, fmt.Errorf("failed to get message: %w (messageID=%d)", err, messageID)
		}

		return msg, nil
	})
}

// SetTrashed trashes or untrashes a message.
func (m *MessageModel) SetTrashed(ctx context.Context, messageID snowflake.ID, trashed bool, reason *string) error {
	return m.updateMessage(ctx, messageID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("trashed = ?", trashed).Set("trash_reason = ?", reason)
	})
}

// SetFrozen freezes or unfreezes a message.
func (m *MessageModel) SetFrozen(ctx context.Context, messageID snowflake.ID, frozen bool) error {
	return m.updateMessage(ctx, messageID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("frozen = ?", frozen)
	})
}

// SetForcedTo replaces the list of starboards a message is forced to.
func (m *MessageModel) SetForcedTo(ctx context.Context, messageID snowflake.ID, starboardIDs []int64) error {
	return m.updateMessage(ctx, messageID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("forced_to = ?", pgdialect.Array(starboardIDs))
	})
}

func (m *MessageModel) updateMessage(
	ctx context.Context, messageID snowflake.ID, fn func(*bun.UpdateQuery) *bun.UpdateQuery,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		q := m.db.NewUpdate().Model((*types.Message)(nil)).Where("message_id = ?", messageID)

		res, err := fn(q).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update message: %w (messageID=%d)", err, messageID)
		}
		return requireRow(res)
	})
}

// GetTrashedMessages returns trashed messages of a guild, newest first.
func (m *MessageModel) GetTrashedMessages(
	ctx context.Context, guildID snowflake.ID, offset, limit int,
) ([]*types.Message, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Message, error) {
		var messages []*types.Message

		err := m.db.NewSelect().Model(&messages).
			Where("guild_id = ?", guildID).
			Where("trashed").
			Order("message_id DESC").
			Offset(offset).
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get trashed messages: %w (guildID=%d)", err, guildID)
		}

		return messages, nil
	})
}

// GetStarboardMessages returns every starboard post row of an original message.
func (m *MessageModel) GetStarboardMessages(
	ctx context.Context, messageID snowflake.ID,
) ([]*types.StarboardMessage, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.StarboardMessage, error) {
		var rows []*types.StarboardMessage

		err := m.db.NewSelect().Model(&rows).
			Where("message_id = ?", messageID).
			Order("starboard_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get starboard messages: %w (messageID=%d)", err, messageID)
		}

		return rows, nil
	})
}

// GetStarboardMessageByPost finds the row whose posted message id matches.
// Returns nil if the id is not a starboard post.
func (m *MessageModel) GetStarboardMessageByPost(
	ctx context.Context, postID snowflake.ID,
) (*types.StarboardMessage, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.StarboardMessage, error) {
		row := new(types.StarboardMessage)

		err := m.db.NewSelect().Model(row).Where("starboard_message_id = ?", postID).Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil //nolint:nilnil // absence is a normal outcome
			}
			return nil, fmt.Errorf("failed to get starboard message by post: %w (postID=%d)", err, postID)
		}

		return row, nil
	})
}

// SaveStarboardMessage upserts a starboard post row.
func (m *MessageModel) SaveStarboardMessage(ctx context.Context, row *types.StarboardMessage) error {
	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(row).
			On("CONFLICT (message_id, starboard_id) DO UPDATE").
			Set("starboard_message_id = EXCLUDED.starboard_message_id").
			Set("last_known_point_count = EXCLUDED.last_known_point_count").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to save starboard message: %w (messageID=%d, starboardID=%d)",
				err, row.MessageID, row.StarboardID)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Saved starboard message",
		zap.Uint64("messageID", uint64(row.MessageID)),
		zap.Int64("starboardID", row.StarboardID),
		zap.Int64("points", row.LastKnownPointCount))

	return nil
}

// ClearStarboardMessage forgets the posted id of a row while keeping its point count.
func (m *MessageModel) ClearStarboardMessage(ctx context.Context, messageID snowflake.ID, starboardID int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().Model((*types.StarboardMessage)(nil)).
			Set("starboard_message_id = NULL").
			Where("message_id = ?", messageID).
			Where("starboard_id = ?", starboardID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear starboard message: %w (messageID=%d, starboardID=%d)",
				err, messageID, starboardID)
		}

		return nil
	})
}
