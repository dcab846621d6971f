// Package refresh reconciles the starboard posts of original messages with their votes.
package refresh

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/discord/chat"
	"github.com/robalyx/starboard/internal/starboard/cooldown"
	"github.com/robalyx/starboard/internal/starboard/filter"
	"github.com/robalyx/starboard/internal/starboard/locks"
	"github.com/robalyx/starboard/internal/starboard/resolver"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrAlreadyRecounting is returned when a recount of the message is in progress.
	ErrAlreadyRecounting = errors.New("votes are already being recounted")
	// ErrMessageNotFound is returned when the original message no longer exists.
	ErrMessageNotFound = errors.New("message not found")
)

// Store is the persistence the coordinator reads and writes.
type Store interface {
	GetMessage(ctx context.Context, messageID snowflake.ID) (*types.Message, error)
	GetOrCreateMessage(ctx context.Context, msg *types.Message) (*types.Message, error)
	SetTrashed(ctx context.Context, messageID snowflake.ID, trashed bool, reason *string) error
	SetFrozen(ctx context.Context, messageID snowflake.ID, frozen bool) error
	GetStarboardMessages(ctx context.Context, messageID snowflake.ID) ([]*types.StarboardMessage, error)
	GetStarboardMessageByPost(ctx context.Context, postID snowflake.ID) (*types.StarboardMessage, error)
	SaveStarboardMessage(ctx context.Context, row *types.StarboardMessage) error
	ClearStarboardMessage(ctx context.Context, messageID snowflake.ID, starboardID int64) error
	GetVotesByMessage(ctx context.Context, messageID snowflake.ID) ([]*types.Vote, error)
	UpsertVote(ctx context.Context, vote *types.Vote) error
	DeleteVote(ctx context.Context, messageID, userID snowflake.ID, starboardIDs []int64, isDownvote bool) error
	DeleteVotesByMessage(ctx context.Context, messageID snowflake.ID) error
	ReplaceVotes(ctx context.Context, messageID snowflake.ID, votes []*types.Vote) error
	SetWebhook(ctx context.Context, starboardID int64, webhookID *snowflake.ID) error
	GetPermRoles(ctx context.Context, guildID snowflake.ID) ([]*types.PermRole, error)
	GetGroups(ctx context.Context, ids []int64) ([]*types.FilterGroup, error)
}

// Chat is the subset of the chat API the coordinator sends through.
type Chat interface {
	CreateMessage(ctx context.Context, channelID snowflake.ID, msg discord.MessageCreate) (*discord.Message, error)
	UpdateMessage(
		ctx context.Context, channelID, messageID snowflake.ID, msg discord.MessageUpdate,
	) (*discord.Message, error)
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error
	AddReaction(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error
	RemoveUserReaction(ctx context.Context, channelID, messageID snowflake.ID, emoji string, userID snowflake.ID) error
	GetReactionUsers(ctx context.Context, channelID, messageID snowflake.ID, emoji string) ([]discord.User, error)
	CreateWebhook(ctx context.Context, channelID snowflake.ID, name string) (*chat.Webhook, error)
	ExecuteWebhook(ctx context.Context, hook *chat.Webhook, msg discord.WebhookMessageCreate) (*discord.Message, error)
	UpdateWebhookMessage(
		ctx context.Context, hook *chat.Webhook, messageID snowflake.ID, msg discord.WebhookMessageUpdate,
	) (*discord.Message, error)
	DeleteWebhookMessage(ctx context.Context, hook *chat.Webhook, messageID snowflake.ID) error
}

// Lookup is the reference cache.
type Lookup interface {
	FogMessage(ctx context.Context, channelID, messageID snowflake.ID) (*cache.Message, error)
	PutMessage(ctx context.Context, m *cache.Message)
	MarkMessageDeleted(ctx context.Context, messageID snowflake.ID)
	FogChannel(ctx context.Context, guildID, channelID snowflake.ID) (*cache.Channel, error)
	FogMember(ctx context.Context, guildID, userID snowflake.ID) (*cache.Member, error)
	FogUser(ctx context.Context, userID snowflake.ID) (*cache.User, error)
	FogWebhook(ctx context.Context, webhookID snowflake.ID) (*chat.Webhook, error)
	PutWebhook(w *chat.Webhook)
	EvictWebhook(webhookID snowflake.ID)
	ParentOf(ctx context.Context, guildID, channelID snowflake.ID) (*snowflake.ID, error)
	ChannelNSFW(ctx context.Context, guildID, channelID snowflake.ID) (*bool, error)
	RolePositions(ctx context.Context, guildID snowflake.ID) (map[snowflake.ID]int, error)
	IsVoteEmoji(ctx context.Context, guildID snowflake.ID, emoji string) (bool, error)
}

// Configs resolves the starboards that apply to a channel.
type Configs interface {
	ListForChannel(
		ctx context.Context, guildID, channelID snowflake.ID, parentID *snowflake.ID,
	) ([]*resolver.Config, error)
}

// Options tune the coordinator.
type Options struct {
	// SelfID is the bot's user id. Its own reactions are never votes.
	SelfID snowflake.ID
	// Parallelism caps concurrent per-starboard dispatches of one refresh.
	Parallelism int
	// OnVote runs after the votes of an author changed.
	OnVote func(ctx context.Context, guildID, authorID snowflake.ID)
	// Now returns the current time.
	Now func() time.Time
}

// reason is why a refresh runs. A higher reason includes the lower ones.
type reason int

const (
	// reasonVote only edits posts whose point count changed.
	reasonVote reason = iota
	// reasonEdit also re-renders posts of starboards with link_edits.
	reasonEdit
	// reasonState re-renders every post after a trash or freeze change.
	reasonState
	// reasonForce re-renders every post.
	reasonForce
)

// Coordinator runs refreshes. At most one refresh per message runs at a
// time; a request that arrives meanwhile makes the running one repeat.
type Coordinator struct {
	store     Store
	chat      Chat
	lookup    Lookup
	configs   Configs
	filters   *filter.Engine
	cooldowns *cooldown.Mapping
	locks     *locks.Registry
	opts      Options
	pending   *xsync.MapOf[snowflake.ID, reason]
	webhooks  singleflight.Group
	logger    *zap.Logger
}

// New creates a Coordinator.
func New(
	store Store, chatAPI Chat, lookup Lookup, configs Configs, filters *filter.Engine,
	cooldowns *cooldown.Mapping, registry *locks.Registry, opts Options, logger *zap.Logger,
) *Coordinator {
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Coordinator{
		store:     store,
		chat:      chatAPI,
		lookup:    lookup,
		configs:   configs,
		filters:   filters,
		cooldowns: cooldowns,
		locks:     registry,
		opts:      opts,
		pending:   xsync.NewMapOf[snowflake.ID, reason](),
		logger:    logger.Named("refresh"),
	}
}

// Refresh reconciles every starboard post of an original message. When
// another refresh of the message is running, a normal refresh is queued as a
// rerun of that one and returns at once, while a forced refresh waits for it
// and re-renders every post.
func (c *Coordinator) Refresh(ctx context.Context, messageID snowflake.ID, force bool) error {
	r := reasonVote
	if force {
		r = reasonForce
	}

	return c.run(ctx, messageID, r, force)
}

// RefreshState re-renders every post of a message whose trashed or frozen
// flag changed. It waits for a running refresh of the message.
func (c *Coordinator) RefreshState(ctx context.Context, messageID snowflake.ID) error {
	return c.run(ctx, messageID, reasonState, true)
}

func (c *Coordinator) run(ctx context.Context, messageID snowflake.ID, r reason, wait bool) error {
	id := uint64(messageID)

	for {
		guard := c.locks.TryLock(locks.PostUpdate, id)
		if guard == nil {
			if !wait {
				c.pending.Compute(messageID, func(old reason, loaded bool) (reason, bool) {
					return max(old, r), false
				})

				// The holder checks for reruns after releasing, so only
				// return once it is known to still be holding the lock.
				if c.locks.Held(locks.PostUpdate, id) {
					return nil
				}
				continue
			}

			var err error
			if guard, err = c.locks.Lock(ctx, locks.PostUpdate, id); err != nil {
				return err
			}
		}

		if queued, ok := c.pending.LoadAndDelete(messageID); ok {
			r = max(r, queued)
		}

		if err := c.refreshLocked(ctx, guard, messageID, r); err != nil {
			return err
		}

		queued, ok := c.pending.Load(messageID)
		if !ok {
			return nil
		}

		r, wait = queued, false
	}
}

// refreshLocked runs one refresh and releases guard on every exit path.
func (c *Coordinator) refreshLocked(ctx context.Context, guard *locks.Guard, messageID snowflake.ID, r reason) error {
	defer guard.Release()
	return c.refresh(ctx, messageID, r)
}
