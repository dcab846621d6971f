package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/starboard/cooldown"
	"github.com/robalyx/starboard/internal/starboard/emoji"
	"github.com/robalyx/starboard/internal/starboard/filter"
	"github.com/robalyx/starboard/internal/starboard/locks"
	"github.com/robalyx/starboard/internal/starboard/permrole"
	"github.com/robalyx/starboard/internal/starboard/resolver"
	"github.com/robalyx/starboard/internal/starboard/vote"
	"go.uber.org/zap"
)

// Reaction is a reaction added to or removed from a message.
type Reaction struct {
	GuildID   snowflake.ID
	ChannelID snowflake.ID
	MessageID snowflake.ID
	UserID    snowflake.ID
	// Emoji is the stored form of the emoji.
	Emoji string
	// Member is the reacting member when the event carried it.
	Member *cache.Member
}

// target is the original message a reaction votes on.
type target struct {
	channelID snowflake.ID
	messageID snowflake.ID
}

// voting is what classifying a reaction needs to know.
type voting struct {
	guildID    snowflake.ID
	emoji      string
	voterID    snowflake.ID
	voterRoles []snowflake.ID
	snapshot   *cache.Message
	author     *cache.Member
	configs    []*resolver.Config
	rights     *permrole.Set
	cooldown   bool
}

// resolveTarget maps a reaction on a starboard post to the original message.
func (c *Coordinator) resolveTarget(ctx context.Context, channelID, messageID snowflake.ID) (*target, error) {
	row, err := c.store.GetStarboardMessageByPost(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if row == nil {
		return &target{channelID: channelID, messageID: messageID}, nil
	}

	msg, err := c.store.GetMessage(ctx, row.MessageID)
	if err != nil || msg == nil {
		return nil, err
	}

	return &target{channelID: msg.ChannelID, messageID: msg.MessageID}, nil
}

// isVote reports whether a reaction can be a vote at all.
func (c *Coordinator) isVote(ctx context.Context, r *Reaction) (bool, error) {
	if r.UserID == c.opts.SelfID || r.Emoji == "" {
		return false, nil
	}

	return c.lookup.IsVoteEmoji(ctx, r.GuildID, r.Emoji)
}

// HandleReactionAdd records a vote. Invalid votes are removed when the
// starboard asks for it.
func (c *Coordinator) HandleReactionAdd(ctx context.Context, r *Reaction) error {
	ok, err := c.isVote(ctx, r)
	if err != nil || !ok {
		return err
	}

	t, err := c.resolveTarget(ctx, r.ChannelID, r.MessageID)
	if err != nil || t == nil {
		return err
	}

	snapshot, err := c.lookup.FogMessage(ctx, t.channelID, t.messageID)
	if err != nil || snapshot == nil {
		return err
	}

	voter := r.Member
	if voter == nil {
		if voter, err = c.lookup.FogMember(ctx, r.GuildID, r.UserID); err != nil {
			return err
		}
	}
	if voter != nil && voter.IsBot {
		return nil
	}

	in, err := c.votingFor(ctx, r.GuildID, t.channelID, snapshot)
	if err != nil {
		return err
	}

	in.emoji = r.Emoji
	in.voterID = r.UserID
	in.cooldown = true
	if voter != nil {
		in.voterRoles = voter.RoleIDs
	}

	result := c.classify(ctx, in)

	switch result.Kind {
	case vote.Ignore:
		return nil

	case vote.Remove:
		err := c.chat.RemoveUserReaction(ctx, r.ChannelID, r.MessageID, emoji.APIName(r.Emoji), r.UserID)
		if err != nil {
			c.logger.Warn("Failed to remove invalid reaction",
				zap.Error(err),
				zap.Uint64("messageID", uint64(r.MessageID)),
				zap.Uint64("userID", uint64(r.UserID)))
		}
		return nil

	case vote.Valid:
	}

	msg, err := c.track(ctx, r.GuildID, t.channelID, snapshot)
	if err != nil {
		return err
	}

	for _, cfg := range result.Upvote {
		if err := c.store.UpsertVote(ctx, newVote(msg, cfg, r.UserID, false)); err != nil {
			return err
		}
	}
	for _, cfg := range result.Downvote {
		if err := c.store.UpsertVote(ctx, newVote(msg, cfg, r.UserID, true)); err != nil {
			return err
		}
	}

	return c.afterVotes(ctx, msg)
}

// HandleReactionRemove deletes the vote a reaction stood for.
func (c *Coordinator) HandleReactionRemove(ctx context.Context, r *Reaction) error {
	ok, err := c.isVote(ctx, r)
	if err != nil || !ok {
		return err
	}

	t, err := c.resolveTarget(ctx, r.ChannelID, r.MessageID)
	if err != nil || t == nil {
		return err
	}

	msg, err := c.store.GetMessage(ctx, t.messageID)
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

	var upvotes, downvotes []int64
	for _, cfg := range configs {
		if cfg.Settings.IsUpvote(r.Emoji) {
			upvotes = append(upvotes, cfg.ID())
		}
		if cfg.Settings.IsDownvote(r.Emoji) {
			downvotes = append(downvotes, cfg.ID())
		}
	}

	if err := c.store.DeleteVote(ctx, msg.MessageID, r.UserID, upvotes, false); err != nil {
		return err
	}
	if err := c.store.DeleteVote(ctx, msg.MessageID, r.UserID, downvotes, true); err != nil {
		return err
	}

	return c.afterVotes(ctx, msg)
}

// HandleReactionRemoveAll deletes every vote on an original message.
// Clearing the reactions of a starboard post leaves the votes alone.
func (c *Coordinator) HandleReactionRemoveAll(ctx context.Context, messageID snowflake.ID) error {
	msg, err := c.store.GetMessage(ctx, messageID)
	if err != nil || msg == nil {
		return err
	}

	if err := c.store.DeleteVotesByMessage(ctx, messageID); err != nil {
		return err
	}

	return c.afterVotes(ctx, msg)
}

// HandleReactionRemoveEmoji recounts an original message after one emoji was cleared from it.
func (c *Coordinator) HandleReactionRemoveEmoji(ctx context.Context, guildID, channelID, messageID snowflake.ID) error {
	msg, err := c.store.GetMessage(ctx, messageID)
	if err != nil || msg == nil {
		return err
	}

	err = c.Recount(ctx, guildID, channelID, messageID)
	if errors.Is(err, ErrAlreadyRecounting) {
		return nil
	}

	return err
}

// Recount rebuilds the votes of a message from its live reactions and
// refreshes it. Returns ErrAlreadyRecounting when a recount is running.
func (c *Coordinator) Recount(ctx context.Context, guildID, channelID, messageID snowflake.ID) error {
	guard := c.locks.TryLock(locks.VoteRecount, uint64(messageID))
	if guard == nil {
		return ErrAlreadyRecounting
	}
	defer guard.Release()

	snapshot, err := c.lookup.FogMessage(ctx, channelID, messageID)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return ErrMessageNotFound
	}

	in, err := c.votingFor(ctx, guildID, channelID, snapshot)
	if err != nil {
		return err
	}

	msg, err := c.track(ctx, guildID, channelID, snapshot)
	if err != nil {
		return err
	}

	type voteKey struct {
		starboardID int64
		userID      snowflake.ID
	}

	var (
		votes []*types.Vote
		seen  = make(map[voteKey]bool)
	)

	add := func(cfg *resolver.Config, userID snowflake.ID, downvote bool) {
		k := voteKey{cfg.ID(), userID}
		if !seen[k] {
			seen[k] = true
			votes = append(votes, newVote(msg, cfg, userID, downvote))
		}
	}

	for _, e := range resolver.Emojis(in.configs) {
		users, err := c.chat.GetReactionUsers(ctx, channelID, messageID, emoji.APIName(e))
		if err != nil {
			return fmt.Errorf("failed to fetch reactions: %w (messageID=%d)", err, messageID)
		}

		for i := range users {
			u := &users[i]
			if u.ID == c.opts.SelfID || u.Bot {
				continue
			}

			if in.voterRoles, err = c.memberRoles(ctx, guildID, u.ID); err != nil {
				return err
			}
			in.emoji = e
			in.voterID = u.ID

			result := c.classify(ctx, in)
			for _, cfg := range result.Upvote {
				add(cfg, u.ID, false)
			}
			for _, cfg := range result.Downvote {
				add(cfg, u.ID, true)
			}
		}
	}

	if err := c.store.ReplaceVotes(ctx, messageID, votes); err != nil {
		return err
	}

	c.logger.Info("Recounted votes",
		zap.Uint64("messageID", uint64(messageID)),
		zap.Int("votes", len(votes)))

	if c.opts.OnVote != nil {
		c.opts.OnVote(ctx, msg.GuildID, msg.AuthorID)
	}

	return c.run(ctx, messageID, reasonVote, true)
}

// votingFor loads what every reaction on one message shares.
func (c *Coordinator) votingFor(
	ctx context.Context, guildID, channelID snowflake.ID, snapshot *cache.Message,
) (*voting, error) {
	parentID, err := c.lookup.ParentOf(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}

	configs, err := c.configs.ListForChannel(ctx, guildID, channelID, parentID)
	if err != nil {
		return nil, err
	}

	rights, err := c.rightsFor(ctx, guildID)
	if err != nil {
		return nil, err
	}

	author, err := c.lookup.FogMember(ctx, guildID, snapshot.AuthorID)
	if err != nil {
		return nil, err
	}

	return &voting{
		guildID:  guildID,
		snapshot: snapshot,
		author:   author,
		configs:  configs,
		rights:   rights,
	}, nil
}

// classify runs the vote classifier with rights, requirements, filters and cooldowns.
func (c *Coordinator) classify(ctx context.Context, in *voting) vote.Status {
	var authorRoles []snowflake.ID
	if in.author != nil {
		authorRoles = in.author.RoleIDs
	}

	var fm *filter.Message

	return vote.Classify(&vote.Input{
		Emoji:       in.emoji,
		Configs:     in.configs,
		VoterID:     in.voterID,
		AuthorID:    in.snapshot.AuthorID,
		AuthorIsBot: in.snapshot.AuthorIsBot,
		VoterRights: func(starboardID int64) permrole.Rights {
			return in.rights.For(in.voterRoles, starboardID)
		},
		AuthorRights: func(starboardID int64) permrole.Rights {
			return in.rights.For(authorRoles, starboardID)
		},
		Eligible: func(cfg *resolver.Config, downvote bool) bool {
			if fm == nil {
				msg := &types.Message{
					MessageID: in.snapshot.ID,
					GuildID:   in.guildID,
					ChannelID: in.snapshot.ChannelID,
					AuthorID:  in.snapshot.AuthorID,
				}

				var err error
				if fm, err = c.filterMessage(ctx, msg, in.snapshot, in.author); err != nil {
					c.logger.Warn("Failed to describe message for filters", zap.Error(err))
					return false
				}
			}

			ok, err := c.meetsRequirements(ctx, cfg, fm, &filter.Voter{UserID: in.voterID, Roles: in.voterRoles})
			if err != nil {
				c.logger.Warn("Failed to check requirements", zap.Error(err), zap.Int64("starboardID", cfg.ID()))
				return false
			}
			if !ok {
				return false
			}

			if downvote || !in.cooldown || !cfg.Settings.CooldownEnabled {
				return true
			}

			allowed, remaining := c.cooldowns.TryAcquire(
				cooldown.Key{UserID: in.voterID, StarboardID: cfg.ID()},
				int(cfg.Settings.CooldownCount),
				time.Duration(cfg.Settings.CooldownPeriod)*time.Second,
				c.opts.Now(),
			)
			if !allowed {
				c.logger.Debug("Vote is on cooldown",
					zap.Uint64("userID", uint64(in.voterID)),
					zap.Int64("starboardID", cfg.ID()),
					zap.Duration("remaining", remaining))
			}

			return allowed
		},
	})
}

// track stores the original message on its first vote.
func (c *Coordinator) track(
	ctx context.Context, guildID, channelID snowflake.ID, snapshot *cache.Message,
) (*types.Message, error) {
	nsfw, err := c.lookup.ChannelNSFW(ctx, guildID, channelID)
	if err != nil {
		return nil, err
	}

	return c.store.GetOrCreateMessage(ctx, &types.Message{
		MessageID: snapshot.ID,
		GuildID:   guildID,
		ChannelID: channelID,
		AuthorID:  snapshot.AuthorID,
		IsNSFW:    nsfw != nil && *nsfw,
	})
}

// afterVotes refreshes a message whose votes changed.
func (c *Coordinator) afterVotes(ctx context.Context, msg *types.Message) error {
	if c.opts.OnVote != nil {
		c.opts.OnVote(ctx, msg.GuildID, msg.AuthorID)
	}

	return c.Refresh(ctx, msg.MessageID, false)
}

func newVote(msg *types.Message, cfg *resolver.Config, userID snowflake.ID, downvote bool) *types.Vote {
	return &types.Vote{
		MessageID:      msg.MessageID,
		StarboardID:    cfg.ID(),
		UserID:         userID,
		TargetAuthorID: msg.AuthorID,
		IsDownvote:     downvote,
	}
}
