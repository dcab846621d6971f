package models

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// VoteModel handles database operations for votes.
type VoteModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewVote creates a VoteModel with database access.
func NewVote(db *bun.DB, logger *zap.Logger) *VoteModel {
	return &VoteModel{
		db:     db,
		logger: logger.Named("db_vote"),
	}
}

// UpsertVote records a vote, replacing its direction if the voter already voted.
func (m *VoteModel) UpsertVote(ctx context.Context, vote *types.Vote) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(vote).
			On("CONFLICT (message_id, starboard_id, user_id) DO UPDATE").
			Set("is_downvote = EXCLUDED.is_downvote").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to upsert vote: %w (messageID=%d, starboardID=%d, userID=%d)",
				err, vote.MessageID, vote.StarboardID, vote.UserID)
		}

		return nil
	})
}

// DeleteVote removes one voter's vote in the given direction on the given starboards.
func (m *VoteModel) DeleteVote(
	ctx context.Context, messageID, userID snowflake.ID, starboardIDs []int64, isDownvote bool,
) error {
	if len(starboardIDs) == 0 {
		return nil
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().Model((*types.Vote)(nil)).
			Where("message_id = ?", messageID).
			Where("user_id = ?", userID).
			Where("starboard_id IN (?)", bun.In(starboardIDs)).
			Where("is_downvote = ?", isDownvote).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete vote: %w (messageID=%d, userID=%d)", err, messageID, userID)
		}

		return nil
	})
}

// DeleteVotesByMessage removes every vote on a message.
func (m *VoteModel) DeleteVotesByMessage(ctx context.Context, messageID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewDelete().Model((*types.Vote)(nil)).
			Where("message_id = ?", messageID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete votes: %w (messageID=%d)", err, messageID)
		}

		return nil
	})
}

// GetVotesByMessage returns every vote on a message.
func (m *VoteModel) GetVotesByMessage(ctx context.Context, messageID snowflake.ID) ([]*types.Vote, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Vote, error) {
		var votes []*types.Vote

		err := m.db.NewSelect().Model(&votes).
			Where("message_id = ?", messageID).
			Order("starboard_id ASC", "user_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get votes: %w (messageID=%d)", err, messageID)
		}

		return votes, nil
	})
}

// ReplaceVotes atomically replaces every vote on a message.
func (m *VoteModel) ReplaceVotes(ctx context.Context, messageID snowflake.ID, votes []*types.Vote) error {
	err := dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*types.Vote)(nil)).
			Where("message_id = ?", messageID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear votes: %w (messageID=%d)", err, messageID)
		}

		if len(votes) == 0 {
			return nil
		}

		_, err = tx.NewInsert().Model(&votes).
			On("CONFLICT (message_id, starboard_id, user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert votes: %w (messageID=%d)", err, messageID)
		}

		return nil
	})
	if err != nil {
		return err
	}

	m.logger.Debug("Replaced votes",
		zap.Uint64("messageID", uint64(messageID)),
		zap.Int("count", len(votes)))

	return nil
}

// GetReceivedXP computes an author's XP in a guild: the sum over non-private starboards
// of (upvotes - downvotes) times the starboard's XP multiplier.
func (m *VoteModel) GetReceivedXP(ctx context.Context, guildID, authorID snowflake.ID) (float32, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (float32, error) {
		var xp float64

		err := m.db.NewRaw(`
			SELECT COALESCE(SUM(t.points * s.xp_multiplier), 0)
			FROM (
				SELECT v.starboard_id,
					COUNT(*) FILTER (WHERE NOT v.is_downvote) - COUNT(*) FILTER (WHERE v.is_downvote) AS points
				FROM votes v
				WHERE v.target_author_id = ?
				GROUP BY v.starboard_id
			) t
			JOIN starboards s ON s.id = t.starboard_id
			WHERE s.guild_id = ? AND NOT s.private
		`, authorID, guildID).Scan(ctx, &xp)
		if err != nil {
			return 0, fmt.Errorf("failed to compute xp: %w (guildID=%d, authorID=%d)", err, guildID, authorID)
		}

		return float32(xp), nil
	})
}
