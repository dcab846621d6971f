package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrInsufficientCredits is returned when a user cannot pay for premium.
var ErrInsufficientCredits = errors.New("insufficient credits")

// GuildModel handles database operations for guilds, users and members.
type GuildModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewGuild creates a GuildModel with database access.
func NewGuild(db *bun.DB, logger *zap.Logger) *GuildModel {
	return &GuildModel{
		db:     db,
		logger: logger.Named("db_guild"),
	}
}

// EnsureGuild creates the guild row if it does not exist yet.
func (m *GuildModel) EnsureGuild(ctx context.Context, guildID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&types.Guild{GuildID: guildID}).
			On("CONFLICT (guild_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to ensure guild: %w (guildID=%d)", err, guildID)
		}

		return nil
	})
}

// GetGuild retrieves a guild. A missing guild is returned as a guild with no premium.
func (m *GuildModel) GetGuild(ctx context.Context, guildID snowflake.ID) (*types.Guild, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Guild, error) {
		guild := &types.Guild{GuildID: guildID}

		err := m.db.NewSelect().Model(guild).WherePK().Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get guild: %w (guildID=%d)", err, guildID)
		}

		return guild, nil
	})
}

// IsPremium reports whether the guild currently has premium.
func (m *GuildModel) IsPremium(ctx context.Context, guildID snowflake.ID) (bool, error) {
	guild, err := m.GetGuild(ctx, guildID)
	if err != nil {
		return false, err
	}
	return guild.IsPremium(time.Now()), nil
}

// ExtendPremium extends the guild's premium by the given duration, starting now if it has lapsed.
func (m *GuildModel) ExtendPremium(ctx context.Context, tx bun.IDB, guildID snowflake.ID, d time.Duration) (time.Time, error) {
	var end time.Time

	err := tx.NewRaw(`
		INSERT INTO guilds (guild_id, premium_end) VALUES (?0, NOW() + ?1::interval)
		ON CONFLICT (guild_id) DO UPDATE
		SET premium_end = GREATEST(COALESCE(guilds.premium_end, NOW()), NOW()) + ?1::interval
		RETURNING premium_end
	`, guildID, fmt.Sprintf("%d seconds", int64(d.Seconds()))).Scan(ctx, &end)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to extend premium: %w (guildID=%d)", err, guildID)
	}

	m.logger.Debug("Extended guild premium",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Time("premiumEnd", end))

	return end, nil
}

// GetGuildsExpiringBefore returns premium guilds whose premium ends before the given time.
func (m *GuildModel) GetGuildsExpiringBefore(ctx context.Context, before time.Time) ([]*types.Guild, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Guild, error) {
		var guilds []*types.Guild

		err := m.db.NewSelect().Model(&guilds).
			Where("premium_end IS NOT NULL").
			Where("premium_end < ?", before).
			Order("premium_end ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get expiring guilds: %w", err)
		}

		return guilds, nil
	})
}

// ClearPremium removes the premium end of guilds whose premium has passed.
func (m *GuildModel) ClearPremium(ctx context.Context, guildID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().Model((*types.Guild)(nil)).
			Set("premium_end = NULL").
			Where("guild_id = ?", guildID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to clear premium: %w (guildID=%d)", err, guildID)
		}

		return nil
	})
}

// EnsureUser creates the user row if it does not exist yet.
func (m *GuildModel) EnsureUser(ctx context.Context, userID snowflake.ID, isBot bool) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&types.User{UserID: userID, IsBot: isBot}).
			On("CONFLICT (user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to ensure user: %w (userID=%d)", err, userID)
		}

		return nil
	})
}

// GetUser retrieves a user. A missing user is returned with zero credits.
func (m *GuildModel) GetUser(ctx context.Context, userID snowflake.ID) (*types.User, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.User, error) {
		user := &types.User{UserID: userID}

		err := m.db.NewSelect().Model(user).WherePK().Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get user: %w (userID=%d)", err, userID)
		}

		return user, nil
	})
}

// AddCredits adds credits to a user.
func (m *GuildModel) AddCredits(ctx context.Context, userID snowflake.ID, credits int64) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&types.User{UserID: userID, Credits: credits}).
			On("CONFLICT (user_id) DO UPDATE").
			Set("credits = users.credits + EXCLUDED.credits").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to add credits: %w (userID=%d)", err, userID)
		}

		return nil
	})
}

// SpendCredits removes credits from a user inside tx, failing if the balance is too low.
func (m *GuildModel) SpendCredits(ctx context.Context, tx bun.IDB, userID snowflake.ID, credits int64) error {
	res, err := tx.NewUpdate().Model((*types.User)(nil)).
		Set("credits = credits - ?", credits).
		Where("user_id = ?", userID).
		Where("credits >= ?", credits).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to spend credits: %w (userID=%d)", err, userID)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInsufficientCredits
	}

	return nil
}

// EnsureMember creates the member row, and its user, if they do not exist yet.
func (m *GuildModel) EnsureMember(ctx context.Context, guildID, userID snowflake.ID, isBot bool) error {
	if err := m.EnsureGuild(ctx, guildID); err != nil {
		return err
	}

	if err := m.EnsureUser(ctx, userID, isBot); err != nil {
		return err
	}

	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&types.Member{GuildID: guildID, UserID: userID}).
			On("CONFLICT (guild_id, user_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to ensure member: %w (guildID=%d, userID=%d)", err, guildID, userID)
		}

		return nil
	})
}

// GetMember retrieves a member. A missing member is returned with zero XP.
func (m *GuildModel) GetMember(ctx context.Context, guildID, userID snowflake.ID) (*types.Member, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Member, error) {
		member := &types.Member{GuildID: guildID, UserID: userID}

		err := m.db.NewSelect().Model(member).WherePK().Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get member: %w (guildID=%d, userID=%d)", err, guildID, userID)
		}

		return member, nil
	})
}

// SetMemberXP stores a member's recomputed XP.
func (m *GuildModel) SetMemberXP(ctx context.Context, guildID, userID snowflake.ID, xp float32) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewUpdate().Model((*types.Member)(nil)).
			Set("xp = ?", xp).
			Where("guild_id = ?", guildID).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set member xp: %w (guildID=%d, userID=%d)", err, guildID, userID)
		}

		return nil
	})
}

// GetTopMembers returns the guild's members ordered by XP, highest first.
func (m *GuildModel) GetTopMembers(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Member, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Member, error) {
		var members []*types.Member

		err := m.db.NewSelect().Model(&members).
			Where("guild_id = ?", guildID).
			Where("xp > 0").
			Order("xp DESC", "user_id ASC").
			Limit(limit).
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get top members: %w (guildID=%d)", err, guildID)
		}

		return members, nil
	})
}

// SetAutoredeem toggles autoredeem for a member.
func (m *GuildModel) SetAutoredeem(ctx context.Context, guildID, userID snowflake.ID, enabled bool) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().
			Model(&types.Member{GuildID: guildID, UserID: userID, AutoredeemEnabled: enabled}).
			On("CONFLICT (guild_id, user_id) DO UPDATE").
			Set("autoredeem_enabled = EXCLUDED.autoredeem_enabled").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set autoredeem: %w (guildID=%d, userID=%d)", err, guildID, userID)
		}

		return nil
	})
}

// GetAutoredeemMembers returns members of the guild with autoredeem enabled.
func (m *GuildModel) GetAutoredeemMembers(ctx context.Context, guildID snowflake.ID) ([]*types.Member, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Member, error) {
		var members []*types.Member

		err := m.db.NewSelect().Model(&members).
			Where("guild_id = ?", guildID).
			Where("autoredeem_enabled").
			Order("user_id ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get autoredeem members: %w (guildID=%d)", err, guildID)
		}

		return members, nil
	})
}
