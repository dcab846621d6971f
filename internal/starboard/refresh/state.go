package refresh

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/starboard/filter"
	"github.com/robalyx/starboard/internal/starboard/permrole"
	"github.com/robalyx/starboard/internal/starboard/resolver"
	"go.uber.org/zap"
)

// maxAncestors bounds how far up the channel tree filters look.
const maxAncestors = 3

// state is what one refresh knows about an original message.
type state struct {
	msg *types.Message
	// snapshot is nil when the original was deleted.
	snapshot    *cache.Message
	parentID    *snowflake.ID
	configs     []*resolver.Config
	rows        map[int64]*types.StarboardMessage
	rights      *permrole.Set
	author      *cache.Member
	user        *cache.User
	reply       *cache.Message
	replyAuthor string
	filterMsg   *filter.Message
}

// load gathers the state of a tracked message. Returns nil when the message is not tracked.
func (c *Coordinator) load(ctx context.Context, messageID snowflake.ID) (*state, error) {
	msg, err := c.store.GetMessage(ctx, messageID)
	if err != nil || msg == nil {
		return nil, err
	}

	st := &state{msg: msg}

	if st.parentID, err = c.lookup.ParentOf(ctx, msg.GuildID, msg.ChannelID); err != nil {
		return nil, err
	}

	if st.configs, err = c.configs.ListForChannel(ctx, msg.GuildID, msg.ChannelID, st.parentID); err != nil {
		return nil, err
	}

	rows, err := c.store.GetStarboardMessages(ctx, messageID)
	if err != nil {
		return nil, err
	}

	st.rows = make(map[int64]*types.StarboardMessage, len(rows))
	for _, row := range rows {
		st.rows[row.StarboardID] = row
	}

	if st.rights, err = c.rightsFor(ctx, msg.GuildID); err != nil {
		return nil, err
	}

	if st.snapshot, err = c.lookup.FogMessage(ctx, msg.ChannelID, messageID); err != nil {
		return nil, err
	}

	c.loadAuthor(ctx, st)

	if st.filterMsg, err = c.filterMessage(ctx, msg, st.snapshot, st.author); err != nil {
		return nil, err
	}

	return st, nil
}

// loadAuthor fills in the author and reply details used for rendering.
// Lookup failures only degrade the rendered post.
func (c *Coordinator) loadAuthor(ctx context.Context, st *state) {
	msg := st.msg

	var err error
	if st.author, err = c.lookup.FogMember(ctx, msg.GuildID, msg.AuthorID); err != nil {
		c.logger.Warn("Failed to look up author", zap.Error(err), zap.Uint64("userID", uint64(msg.AuthorID)))
	}
	if st.user, err = c.lookup.FogUser(ctx, msg.AuthorID); err != nil {
		c.logger.Warn("Failed to look up author", zap.Error(err), zap.Uint64("userID", uint64(msg.AuthorID)))
	}

	if st.snapshot == nil || st.snapshot.ReferenceID == nil {
		return
	}

	if st.reply, err = c.lookup.FogMessage(ctx, msg.ChannelID, *st.snapshot.ReferenceID); err != nil || st.reply == nil {
		return
	}

	st.replyAuthor = c.displayName(ctx, msg.GuildID, st.reply.AuthorID)
}

// displayName returns the best known name of a user, or an empty string.
func (c *Coordinator) displayName(ctx context.Context, guildID, userID snowflake.ID) string {
	if m, err := c.lookup.FogMember(ctx, guildID, userID); err == nil && m != nil {
		return m.DisplayName
	}
	if u, err := c.lookup.FogUser(ctx, userID); err == nil && u != nil {
		return u.DisplayName
	}

	return ""
}

// rightsFor loads the permission roles of a guild.
func (c *Coordinator) rightsFor(ctx context.Context, guildID snowflake.ID) (*permrole.Set, error) {
	permroles, err := c.store.GetPermRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if len(permroles) == 0 {
		return nil, nil
	}

	positions, err := c.lookup.RolePositions(ctx, guildID)
	if err != nil {
		return nil, err
	}

	return permrole.NewSet(guildID, permroles, positions), nil
}

// memberRoles returns the roles of a member, or nil when they left the guild.
func (c *Coordinator) memberRoles(ctx context.Context, guildID, userID snowflake.ID) ([]snowflake.ID, error) {
	m, err := c.lookup.FogMember(ctx, guildID, userID)
	if err != nil || m == nil {
		return nil, err
	}

	return m.RoleIDs, nil
}

// filterMessage describes a message for the filter engine.
func (c *Coordinator) filterMessage(
	ctx context.Context, msg *types.Message, snapshot *cache.Message, author *cache.Member,
) (*filter.Message, error) {
	fm := &filter.Message{
		AuthorID:  msg.AuthorID,
		ChannelID: msg.ChannelID,
		CreatedAt: msg.MessageID.Time(),
	}

	if author != nil {
		fm.AuthorRoles = author.RoleIDs
		fm.AuthorIsBot = author.IsBot
	}

	if snapshot != nil {
		fm.Content = snapshot.Content
		fm.Attachments = len(snapshot.Attachments)
		fm.HasImage = snapshot.HasImage()
		fm.AuthorIsBot = fm.AuthorIsBot || snapshot.AuthorIsBot
		if !snapshot.CreatedAt.IsZero() {
			fm.CreatedAt = snapshot.CreatedAt
		}
	}

	channelID := msg.ChannelID
	for range maxAncestors {
		ch, err := c.lookup.FogChannel(ctx, msg.GuildID, channelID)
		if err != nil {
			return nil, err
		}
		if ch == nil || ch.ParentID == nil {
			break
		}

		fm.Ancestors = append(fm.Ancestors, *ch.ParentID)
		channelID = *ch.ParentID
	}

	return fm, nil
}

// meetsRequirements checks the starboard requirements and filter groups.
// voter is nil outside of voting.
func (c *Coordinator) meetsRequirements(
	ctx context.Context, cfg *resolver.Config, fm *filter.Message, voter *filter.Voter,
) (bool, error) {
	now := c.opts.Now()

	if failed := c.filters.Requirements(&cfg.Settings, fm, now); len(failed) > 0 {
		c.logger.Debug("Message fails requirements",
			zap.Int64("starboardID", cfg.ID()),
			zap.Any("failed", failed))
		return false, nil
	}

	if len(cfg.Settings.FilterGroups) == 0 {
		return true, nil
	}

	groups, err := c.store.GetGroups(ctx, cfg.Settings.FilterGroups)
	if err != nil {
		return false, fmt.Errorf("failed to load filter groups: %w (starboardID=%d)", err, cfg.ID())
	}

	result := c.filters.Check(groups, &filter.Context{Message: fm, Voter: voter, Now: now})
	if !result.Passed() {
		c.logger.Debug("Message fails filter group",
			zap.Int64("starboardID", cfg.ID()),
			zap.String("group", result.Group))
	}

	return result.Passed(), nil
}

// tally sums the points of every starboard. Votes from voters that may not
// vote are skipped, and a starboard on which the author may not receive
// votes scores zero.
func (c *Coordinator) tally(ctx context.Context, st *state) (map[int64]int64, error) {
	votes, err := c.store.GetVotesByMessage(ctx, st.msg.MessageID)
	if err != nil {
		return nil, err
	}

	points := make(map[int64]int64, len(st.configs))
	known := make(map[int64]bool, len(st.configs))
	for _, cfg := range st.configs {
		known[cfg.ID()] = true
	}

	var authorRoles []snowflake.ID
	if st.author != nil {
		authorRoles = st.author.RoleIDs
	}

	voterRoles := make(map[snowflake.ID][]snowflake.ID)

	for _, v := range votes {
		if !known[v.StarboardID] {
			continue
		}

		if !st.rights.Empty() {
			if !st.rights.For(authorRoles, v.StarboardID).ReceiveVotes {
				continue
			}

			roles, ok := voterRoles[v.UserID]
			if !ok {
				if roles, err = c.memberRoles(ctx, st.msg.GuildID, v.UserID); err != nil {
					return nil, err
				}
				voterRoles[v.UserID] = roles
			}

			if !st.rights.For(roles, v.StarboardID).Vote {
				continue
			}
		}

		if v.IsDownvote {
			points[v.StarboardID]--
		} else {
			points[v.StarboardID]++
		}
	}

	return points, nil
}
