// Package xp keeps member XP, XP roles and position roles in sync with votes.
package xp

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/discord/chat"
	"github.com/robalyx/starboard/internal/discord/rate"
	"github.com/robalyx/starboard/internal/starboard/locks"
	"github.com/robalyx/starboard/internal/starboard/permrole"
	"go.uber.org/zap"
)

// Store is the persistence used by the maintainer.
type Store interface {
	GetReceivedXP(ctx context.Context, guildID, authorID snowflake.ID) (float32, error)
	EnsureUser(ctx context.Context, userID snowflake.ID, isBot bool) error
	EnsureMember(ctx context.Context, guildID, userID snowflake.ID, isBot bool) error
	SetMemberXP(ctx context.Context, guildID, userID snowflake.ID, xp float32) error
	GetTopMembers(ctx context.Context, guildID snowflake.ID, limit int) ([]*types.Member, error)
	GetXPRoles(ctx context.Context, guildID snowflake.ID) ([]*types.XPRole, error)
	GetPosRoles(ctx context.Context, guildID snowflake.ID) ([]*types.PosRole, error)
	GetPermRoles(ctx context.Context, guildID snowflake.ID) ([]*types.PermRole, error)
}

// Chat grants and revokes member roles.
type Chat interface {
	AddMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error
	RemoveMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error
}

// Lookup resolves members and roles through the reference cache.
type Lookup interface {
	FogMember(ctx context.Context, guildID, userID snowflake.ID) (*cache.Member, error)
	PutMember(m *cache.Member)
	MembersWithRole(guildID, roleID snowflake.ID) []*cache.Member
	RolePositions(ctx context.Context, guildID snowflake.ID) (map[snowflake.ID]int, error)
}

// Options tunes the maintainer.
type Options struct {
	// Parallelism caps concurrent role edits of one reconcile.
	Parallelism int
	// RoleEditInterval is the minimum spacing between role edits.
	RoleEditInterval time.Duration
	// Timeout bounds one triggered run.
	Timeout time.Duration
}

// Maintainer recomputes XP and reconciles XP roles and position roles.
type Maintainer struct {
	store   Store
	chat    Chat
	lookup  Lookup
	locks   *locks.Registry
	limiter *rate.Limiter
	opts    Options
	logger  *zap.Logger
}

// New creates a Maintainer.
func New(store Store, chatAPI Chat, lookup Lookup, registry *locks.Registry, opts Options, logger *zap.Logger) *Maintainer {
	if opts.Parallelism < 1 {
		opts.Parallelism = 4
	}
	if opts.RoleEditInterval <= 0 {
		opts.RoleEditInterval = 250 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}

	return &Maintainer{
		store:   store,
		chat:    chatAPI,
		lookup:  lookup,
		locks:   registry,
		limiter: rate.New(opts.RoleEditInterval, opts.RoleEditInterval/5, opts.Parallelism),
		opts:    opts,
		logger:  logger.Named("xp"),
	}
}

// Trigger runs RefreshMember and RefreshPosRoles in the background. The run
// outlives ctx but is bounded by the configured timeout.
func (m *Maintainer) Trigger(ctx context.Context, guildID, authorID snowflake.ID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.opts.Timeout)

	go func() {
		defer cancel()

		if err := m.RefreshMember(ctx, guildID, authorID); err != nil {
			m.logger.Error("Failed to refresh member xp",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Uint64("userID", uint64(authorID)),
				zap.Error(err))
			return
		}

		if err := m.RefreshPosRoles(ctx, guildID); err != nil && !errors.Is(err, locks.ErrAlreadyRunning) {
			m.logger.Error("Failed to refresh position roles",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Error(err))
		}
	}()
}

// RefreshMember recomputes a member's XP and reconciles their XP roles.
func (m *Maintainer) RefreshMember(ctx context.Context, guildID, userID snowflake.ID) error {
	member, err := m.lookup.FogMember(ctx, guildID, userID)
	if err != nil {
		return err
	}

	isBot := member != nil && member.IsBot

	xp, err := m.store.GetReceivedXP(ctx, guildID, userID)
	if err != nil {
		return err
	}

	if err := m.store.EnsureUser(ctx, userID, isBot); err != nil {
		return err
	}
	if err := m.store.EnsureMember(ctx, guildID, userID, isBot); err != nil {
		return err
	}
	if err := m.store.SetMemberXP(ctx, guildID, userID, xp); err != nil {
		return err
	}

	// Members that left keep their XP but have no roles to edit
	if member == nil {
		return nil
	}

	roles, err := m.store.GetXPRoles(ctx, guildID)
	if err != nil {
		return err
	}

	if len(roles) == 0 {
		return nil
	}

	rights, err := m.rights(ctx, guildID, member)
	if err != nil {
		return err
	}

	add, remove := XPRoleChanges(roles, member.RoleIDs, xp, rights.ObtainXPRoles)

	return m.apply(ctx, member, add, remove)
}

// XPRoleChanges returns the XP roles a member should gain and lose. roles
// are ordered by required XP, highest first. Members without the right to
// obtain XP roles lose every one they hold.
func XPRoleChanges(
	roles []*types.XPRole, held []snowflake.ID, xp float32, allowed bool,
) (add, remove []snowflake.ID) {
	for _, role := range roles {
		want := allowed && xp >= float32(role.Required)
		has := slices.Contains(held, role.RoleID)

		switch {
		case want && !has:
			add = append(add, role.RoleID)
		case !want && has:
			remove = append(remove, role.RoleID)
		}
	}

	return add, remove
}

// rights returns the guild-wide rights of a member.
func (m *Maintainer) rights(ctx context.Context, guildID snowflake.ID, member *cache.Member) (permrole.Rights, error) {
	permroles, err := m.store.GetPermRoles(ctx, guildID)
	if err != nil {
		return permrole.Rights{}, err
	}

	if len(permroles) == 0 {
		return permrole.DefaultRights(), nil
	}

	positions, err := m.lookup.RolePositions(ctx, guildID)
	if err != nil {
		return permrole.Rights{}, err
	}

	return permrole.NewSet(guildID, permroles, positions).Global(member.RoleIDs), nil
}

// apply edits one member's roles and records the result in the cache.
// Failed edits are logged and skipped.
func (m *Maintainer) apply(ctx context.Context, member *cache.Member, add, remove []snowflake.ID) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	held := slices.Clone(member.RoleIDs)

	for _, roleID := range add {
		if err := m.edit(ctx, member, roleID, true); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		held = append(held, roleID)
	}

	for _, roleID := range remove {
		if err := m.edit(ctx, member, roleID, false); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		held = slices.DeleteFunc(held, func(id snowflake.ID) bool { return id == roleID })
	}

	updated := *member
	updated.RoleIDs = held
	m.lookup.PutMember(&updated)

	return nil
}

// edit grants or revokes one role, paced by the limiter.
func (m *Maintainer) edit(ctx context.Context, member *cache.Member, roleID snowflake.ID, grant bool) error {
	if err := m.limiter.WaitForNextSlot(ctx); err != nil {
		return err
	}

	var err error
	if grant {
		err = m.chat.AddMemberRole(ctx, member.GuildID, member.UserID, roleID)
	} else {
		err = m.chat.RemoveMemberRole(ctx, member.GuildID, member.UserID, roleID)
	}

	if err != nil {
		m.logger.Warn("Failed to edit member role",
			zap.Uint64("guildID", uint64(member.GuildID)),
			zap.Uint64("userID", uint64(member.UserID)),
			zap.Uint64("roleID", uint64(roleID)),
			zap.Bool("grant", grant),
			zap.Int("status", chat.StatusCode(err)),
			zap.Error(err))

		return fmt.Errorf("failed to edit member role: %w (roleID=%d)", err, roleID)
	}

	return nil
}
