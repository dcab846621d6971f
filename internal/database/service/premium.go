package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

var (
	// ErrLockRowMissing is returned when a row named in a lock move does not exist.
	ErrLockRowMissing = errors.New("row does not exist")
	// ErrLockGuildMismatch is returned when the rows of a lock move belong to different guilds.
	ErrLockGuildMismatch = errors.New("rows belong to different guilds")
	// ErrSourceNotLocked is returned when the source row of a lock move is not locked.
	ErrSourceNotLocked = errors.New("source row is not premium-locked")
	// ErrTargetLocked is returned when the target row of a lock move is already locked.
	ErrTargetLocked = errors.New("target row is already premium-locked")
)

// PremiumLimits are the row limits a guild has without premium.
type PremiumLimits struct {
	Starboards       int
	AutostarChannels int
}

// lockTable describes the table a premium lock lives in.
type lockTable struct {
	model any
	table string
	limit func(PremiumLimits) int
}

var lockTables = map[enum.PremiumLockKind]lockTable{ //nolint:gochecknoglobals // -
	enum.PremiumLockKindStarboard: {
		model: (*types.Starboard)(nil),
		table: "starboards",
		limit: func(l PremiumLimits) int { return l.Starboards },
	},
	enum.PremiumLockKindAutostar: {
		model: (*types.AutostarChannel)(nil),
		table: "autostar_channels",
		limit: func(l PremiumLimits) int { return l.AutostarChannels },
	},
}

// PremiumService handles premium entitlements and the locks that preserve grandfathered rows.
type PremiumService struct {
	db          *bun.DB
	guildModel  *models.GuildModel
	limits      PremiumLimits
	monthCost   int64
	monthLength time.Duration
	logger      *zap.Logger
}

// NewPremium creates a new premium service.
func NewPremium(
	db *bun.DB, guildModel *models.GuildModel, limits PremiumLimits, monthCost int64, logger *zap.Logger,
) *PremiumService {
	return &PremiumService{
		db:          db,
		guildModel:  guildModel,
		limits:      limits,
		monthCost:   monthCost,
		monthLength: 31 * 24 * time.Hour,
		logger:      logger.Named("premium_service"),
	}
}

// Limits returns the row limits without premium.
func (s *PremiumService) Limits() PremiumLimits {
	return s.limits
}

// MoveLock moves the premium lock of one row to another row of the same kind in one transaction.
// The source row must be locked and the target row unlocked.
func (s *PremiumService) MoveLock(ctx context.Context, kind enum.PremiumLockKind, fromID, toID int64) error {
	lt, ok := lockTables[kind]
	if !ok {
		return fmt.Errorf("unknown premium lock kind: %s", kind)
	}

	err := dbretry.Transaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		var rows []struct {
			ID            int64        `bun:"id"`
			GuildID       snowflake.ID `bun:"guild_id"`
			PremiumLocked bool         `bun:"premium_locked"`
		}

		err := tx.NewSelect().Model(lt.model).
			Column("id", "guild_id", "premium_locked").
			Where("id IN (?)", bun.In([]int64{fromID, toID})).
			Order("id ASC").
			For("UPDATE").
			Scan(ctx, &rows)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to lock rows: %w", err)
		}

		if len(rows) != 2 {
			return ErrLockRowMissing
		}

		from, to := rows[0], rows[1]
		if from.ID != fromID {
			from, to = to, from
		}

		switch {
		case from.GuildID != to.GuildID:
			return ErrLockGuildMismatch
		case !from.PremiumLocked:
			return ErrSourceNotLocked
		case to.PremiumLocked:
			return ErrTargetLocked
		}

		if _, err := tx.NewUpdate().Model(lt.model).
			Set("premium_locked = FALSE").
			Where("id = ?", fromID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to unlock source row: %w", err)
		}

		if _, err := tx.NewUpdate().Model(lt.model).
			Set("premium_locked = TRUE").
			Where("id = ?", toID).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to lock target row: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Moved premium lock",
		zap.String("kind", kind.String()),
		zap.Int64("from", fromID),
		zap.Int64("to", toID))

	return nil
}

// RefreshLocks brings a guild's locks in line with its premium status. Without premium,
// rows beyond the free limits (newest first) are locked. With premium, every row is unlocked.
func (s *PremiumService) RefreshLocks(ctx context.Context, guildID snowflake.ID) error {
	premium, err := s.guildModel.IsPremium(ctx, guildID)
	if err != nil {
		return err
	}

	return dbretry.Transaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		for kind, lt := range lockTables {
			if premium {
				if _, err := tx.NewUpdate().Model(lt.model).
					Set("premium_locked = FALSE").
					Where("guild_id = ?", guildID).
					Exec(ctx); err != nil {
					return fmt.Errorf("failed to unlock %s: %w", kind, err)
				}
				continue
			}

			// Keep the oldest unlocked rows up to the limit, lock the rest
			_, err := tx.NewRaw(`
				UPDATE ? SET premium_locked = TRUE
				WHERE guild_id = ? AND id IN (
					SELECT id FROM ? WHERE guild_id = ? AND NOT premium_locked
					ORDER BY id ASC OFFSET ?
				)
			`, bun.Ident(lt.table), guildID, bun.Ident(lt.table), guildID, lt.limit(s.limits)).Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to lock %s: %w", kind, err)
			}
		}

		return nil
	})
}

// Redeem spends a user's credits to extend a guild's premium by the given number of months.
func (s *PremiumService) Redeem(ctx context.Context, guildID, userID snowflake.ID, months int) (time.Time, error) {
	var end time.Time

	err := dbretry.Transaction(ctx, s.db, func(ctx context.Context, tx bun.Tx) error {
		if err := s.guildModel.SpendCredits(ctx, tx, userID, s.monthCost*int64(months)); err != nil {
			return err
		}

		var err error
		end, err = s.guildModel.ExtendPremium(ctx, tx, guildID, time.Duration(months)*s.monthLength)

		return err
	})
	if err != nil {
		return time.Time{}, err
	}

	s.logger.Info("Redeemed premium",
		zap.Uint64("guildID", uint64(guildID)),
		zap.Uint64("userID", uint64(userID)),
		zap.Int("months", months))

	return end, s.RefreshLocks(ctx, guildID)
}

// Autoredeem tries each autoredeem member of a guild in turn until one can pay for a month.
// Returns false if nobody could pay.
func (s *PremiumService) Autoredeem(ctx context.Context, guildID snowflake.ID) (bool, error) {
	members, err := s.guildModel.GetAutoredeemMembers(ctx, guildID)
	if err != nil {
		return false, err
	}

	for _, member := range members {
		_, err := s.Redeem(ctx, guildID, member.UserID, 1)
		if errors.Is(err, models.ErrInsufficientCredits) {
			continue
		}
		if err != nil {
			return false, err
		}

		return true, nil
	}

	return false, nil
}

// ProcessExpiring handles guilds whose premium ends before the given time:
// autoredeem is attempted first, then expired guilds lose premium and get locked.
func (s *PremiumService) ProcessExpiring(ctx context.Context, before time.Time) (int, error) {
	guilds, err := s.guildModel.GetGuildsExpiringBefore(ctx, before)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	processed := 0

	for _, guild := range guilds {
		redeemed, err := s.Autoredeem(ctx, guild.GuildID)
		if err != nil {
			s.logger.Error("Failed to autoredeem premium",
				zap.Uint64("guildID", uint64(guild.GuildID)),
				zap.Error(err))
			continue
		}

		if !redeemed && guild.PremiumEnd != nil && !guild.PremiumEnd.After(now) {
			if err := s.guildModel.ClearPremium(ctx, guild.GuildID); err != nil {
				return processed, err
			}
			if err := s.RefreshLocks(ctx, guild.GuildID); err != nil {
				return processed, err
			}
		}

		processed++
	}

	return processed, nil
}
