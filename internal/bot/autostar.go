package bot

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/discord/chat"
	"github.com/robalyx/starboard/internal/starboard/emoji"
	"github.com/robalyx/starboard/internal/starboard/filter"
	"go.uber.org/zap"
)

// maxAncestors bounds how far up the channel tree autostar filters look.
const maxAncestors = 3

// filterGroupsReason is shown when a message fails an autostar channel's filter groups.
const filterGroupsReason = "Your message does not meet the requirements of this channel."

// AutostarStore is the persistence used by autostar channels.
type AutostarStore interface {
	GetByChannel(ctx context.Context, channelID snowflake.ID) ([]*types.AutostarChannel, error)
	GetGroups(ctx context.Context, ids []int64) ([]*types.FilterGroup, error)
}

// AutostarChat reacts to, deletes and explains autostar messages.
type AutostarChat interface {
	AddReaction(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error
	SendDM(ctx context.Context, userID snowflake.ID, msg discord.MessageCreate) error
}

// AutostarLookup answers the cache queries of autostar channels.
type AutostarLookup interface {
	IsAutostarChannel(ctx context.Context, guildID, channelID snowflake.ID) (bool, error)
	FogChannel(ctx context.Context, guildID, channelID snowflake.ID) (*cache.Channel, error)
	FogMember(ctx context.Context, guildID, userID snowflake.ID) (*cache.Member, error)
}

// Autostar reacts to every valid new message in an autostar channel and
// removes invalid ones when the channel asks for it.
type Autostar struct {
	store   AutostarStore
	chat    AutostarChat
	lookup  AutostarLookup
	filters *filter.Engine
	now     func() time.Time
	logger  *zap.Logger
}

// NewAutostar creates an Autostar handler.
func NewAutostar(
	store AutostarStore, chatAPI AutostarChat, lookup AutostarLookup, filters *filter.Engine, logger *zap.Logger,
) *Autostar {
	return &Autostar{
		store:   store,
		chat:    chatAPI,
		lookup:  lookup,
		filters: filters,
		now:     time.Now,
		logger:  logger.Named("autostar"),
	}
}

// HandleMessage processes a new guild message. Messages from bots are ignored.
func (a *Autostar) HandleMessage(ctx context.Context, msg *cache.Message) error {
	if msg.AuthorIsBot {
		return nil
	}

	ok, err := a.lookup.IsAutostarChannel(ctx, msg.GuildID, msg.ChannelID)
	if err != nil || !ok {
		return err
	}

	channels, err := a.store.GetByChannel(ctx, msg.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to load autostar channels: %w (channelID=%d)", err, msg.ChannelID)
	}

	fm, err := a.filterMessage(ctx, msg)
	if err != nil {
		return err
	}

	var emojis []string

	for _, asc := range channels {
		if asc.PremiumLocked {
			continue
		}

		reasons, err := a.reasons(ctx, asc, fm)
		if err != nil {
			return err
		}

		if len(reasons) == 0 {
			for _, e := range asc.Emojis {
				if !slices.Contains(emojis, e) {
					emojis = append(emojis, e)
				}
			}
			continue
		}

		if asc.DeleteInvalid {
			return a.reject(ctx, asc, msg, reasons)
		}
	}

	for _, e := range emojis {
		if err := a.chat.AddReaction(ctx, msg.ChannelID, msg.ID, emoji.APIName(e)); err != nil {
			if chat.IsNotFound(err) {
				return nil
			}
			a.logger.Debug("Failed to add autostar reaction",
				zap.Error(err),
				zap.Uint64("messageID", uint64(msg.ID)),
				zap.String("emoji", e))
		}
	}

	return nil
}

// reasons lists why a message is invalid in an autostar channel.
func (a *Autostar) reasons(ctx context.Context, asc *types.AutostarChannel, fm *filter.Message) ([]string, error) {
	reasons := filter.AutostarReasons(asc, fm)

	if len(asc.FilterGroups) > 0 {
		groups, err := a.store.GetGroups(ctx, asc.FilterGroups)
		if err != nil {
			return nil, fmt.Errorf("failed to load filter groups: %w (autostarID=%d)", err, asc.ID)
		}

		if !a.filters.Check(groups, &filter.Context{Message: fm, Now: a.now()}).Passed() {
			reasons = append(reasons, filterGroupsReason)
		}
	}

	return reasons, nil
}

// reject deletes an invalid message and tells its author why.
func (a *Autostar) reject(ctx context.Context, asc *types.AutostarChannel, msg *cache.Message, reasons []string) error {
	if err := a.chat.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		if chat.IsNotFound(err) || chat.IsForbidden(err) {
			a.logger.Debug("Could not delete invalid autostar message",
				zap.Error(err),
				zap.Uint64("messageID", uint64(msg.ID)))
			return nil
		}
		return fmt.Errorf("failed to delete invalid message: %w (messageID=%d)", err, msg.ID)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your message in <#%d> was deleted for the following reasons:\n", asc.ChannelID)
	for _, r := range reasons {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteByte('\n')
	}

	if err := a.chat.SendDM(ctx, msg.AuthorID, discord.MessageCreate{Content: b.String()}); err != nil {
		a.logger.Debug("Failed to explain deleted autostar message",
			zap.Error(err),
			zap.Uint64("userID", uint64(msg.AuthorID)))
	}

	return nil
}

// filterMessage describes a message for autostar checks.
func (a *Autostar) filterMessage(ctx context.Context, msg *cache.Message) (*filter.Message, error) {
	fm := &filter.Message{
		AuthorID:    msg.AuthorID,
		AuthorIsBot: msg.AuthorIsBot,
		ChannelID:   msg.ChannelID,
		Content:     msg.Content,
		Attachments: len(msg.Attachments),
		HasImage:    msg.HasImage(),
		CreatedAt:   msg.CreatedAt,
	}
	if fm.CreatedAt.IsZero() {
		fm.CreatedAt = msg.ID.Time()
	}

	member, err := a.lookup.FogMember(ctx, msg.GuildID, msg.AuthorID)
	if err != nil {
		return nil, err
	}
	if member != nil {
		fm.AuthorRoles = member.RoleIDs
	}

	channelID := msg.ChannelID
	for range maxAncestors {
		ch, err := a.lookup.FogChannel(ctx, msg.GuildID, channelID)
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
