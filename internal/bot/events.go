package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/starboard/emoji"
	"github.com/robalyx/starboard/internal/starboard/refresh"
	"go.uber.org/zap"
)

// listeners routes gateway events. Fields of b are read when an event
// arrives, so the adapter can be built before the components exist.
func (b *Bot) listeners() *events.ListenerAdapter {
	return &events.ListenerAdapter{
		OnGuildReady: func(e *events.GuildReady) { b.loadGuild("ready", e.GuildID) },
		OnGuildJoin:  func(e *events.GuildJoin) { b.loadGuild("join", e.GuildID) },
		OnGuildLeave: func(e *events.GuildLeave) { b.guilds.OnGuildLeave(e) },

		OnRoleCreate: func(e *events.RoleCreate) { b.guilds.OnRoleCreate(e) },
		OnRoleUpdate: func(e *events.RoleUpdate) { b.guilds.OnRoleUpdate(e) },
		OnRoleDelete: func(e *events.RoleDelete) { b.guilds.OnRoleDelete(e) },

		OnGuildChannelCreate: func(e *events.GuildChannelCreate) { b.guilds.OnGuildChannelCreate(e) },
		OnGuildChannelUpdate: func(e *events.GuildChannelUpdate) { b.guilds.OnGuildChannelUpdate(e) },
		OnGuildChannelDelete: func(e *events.GuildChannelDelete) { b.guilds.OnGuildChannelDelete(e) },
		OnThreadCreate:       func(e *events.ThreadCreate) { b.guilds.OnThreadCreate(e) },
		OnThreadUpdate:       func(e *events.ThreadUpdate) { b.guilds.OnThreadUpdate(e) },
		OnThreadDelete:       func(e *events.ThreadDelete) { b.guilds.OnThreadDelete(e) },

		OnGuildMemberUpdate: func(e *events.GuildMemberUpdate) { b.guilds.OnGuildMemberUpdate(e) },
		OnGuildMemberLeave:  func(e *events.GuildMemberLeave) { b.guilds.OnGuildMemberLeave(e) },

		OnGuildMessageCreate: b.onMessageCreate,
		OnGuildMessageUpdate: b.onMessageUpdate,
		OnGuildMessageDelete: b.onMessageDelete,

		OnGuildMessageReactionAdd:         b.onReactionAdd,
		OnGuildMessageReactionRemove:      b.onReactionRemove,
		OnGuildMessageReactionRemoveAll:   b.onReactionRemoveAll,
		OnGuildMessageReactionRemoveEmoji: b.onReactionRemoveEmoji,

		OnApplicationCommandInteraction: b.onCommand,
		OnAutocompleteInteraction:       b.onAutocomplete,
		OnComponentInteraction:          b.onComponent,
	}
}

// handle runs fn in its own goroutine with the event timeout and logs its error.
func (b *Bot) handle(name string, fn func(ctx context.Context) error) {
	b.wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Event handler panicked",
					zap.String("event", name),
					zap.Any("panic", r),
					zap.String("stack", string(debug.Stack())))
			}
		}()

		ctx, cancel := context.WithTimeout(b.ctx, b.eventTimeout)
		defer cancel()

		err := fn(ctx)
		switch {
		case err == nil:
		case errors.Is(err, refresh.ErrAlreadyRecounting), errors.Is(err, context.Canceled):
			b.logger.Debug("Event skipped", zap.String("event", name), zap.Error(err))
		default:
			b.logger.Error("Failed to handle event", zap.String("event", name), zap.Error(err))
		}
	})
}

func (b *Bot) loadGuild(reason string, guildID snowflake.ID) {
	b.wg.Go(func() {
		if err := b.guilds.Load(b.ctx, guildID); err != nil && !errors.Is(err, context.Canceled) {
			b.logger.Error("Failed to load guild",
				zap.String("reason", reason),
				zap.Uint64("guildID", uint64(guildID)),
				zap.Error(err))
		}
	})
}

func (b *Bot) onMessageCreate(e *events.GuildMessageCreate) {
	msg := cache.MessageFromDiscord(&e.Message)
	msg.GuildID = e.GuildID

	b.handle("message_create", func(ctx context.Context) error {
		return b.autostar.HandleMessage(ctx, msg)
	})
}

func (b *Bot) onMessageUpdate(e *events.GuildMessageUpdate) {
	msg := cache.MessageFromDiscord(&e.Message)
	msg.GuildID = e.GuildID

	b.handle("message_update", func(ctx context.Context) error {
		return b.refresh.HandleMessageUpdate(ctx, msg)
	})
}

func (b *Bot) onMessageDelete(e *events.GuildMessageDelete) {
	messageID := e.MessageID

	b.handle("message_delete", func(ctx context.Context) error {
		return b.refresh.HandleMessageDelete(ctx, messageID)
	})
}

// reaction converts the shared fields of a reaction event.
func reaction(e *events.GenericGuildMessageReaction) *refresh.Reaction {
	return &refresh.Reaction{
		GuildID:   e.GuildID,
		ChannelID: e.ChannelID,
		MessageID: e.MessageID,
		UserID:    e.UserID,
		Emoji:     emoji.FromReaction(e.Emoji.ID, e.Emoji.Name),
	}
}

func (b *Bot) onReactionAdd(e *events.GuildMessageReactionAdd) {
	r := reaction(e.GenericGuildMessageReaction)
	if e.Member.User.ID != 0 {
		r.Member = cache.MemberFromDiscord(e.GuildID, &e.Member)
	}

	b.handle("reaction_add", func(ctx context.Context) error {
		return b.refresh.HandleReactionAdd(ctx, r)
	})
}

func (b *Bot) onReactionRemove(e *events.GuildMessageReactionRemove) {
	r := reaction(e.GenericGuildMessageReaction)

	b.handle("reaction_remove", func(ctx context.Context) error {
		return b.refresh.HandleReactionRemove(ctx, r)
	})
}

func (b *Bot) onReactionRemoveAll(e *events.GuildMessageReactionRemoveAll) {
	messageID := e.MessageID

	b.handle("reaction_remove_all", func(ctx context.Context) error {
		return b.refresh.HandleReactionRemoveAll(ctx, messageID)
	})
}

func (b *Bot) onReactionRemoveEmoji(e *events.GuildMessageReactionRemoveEmoji) {
	guildID, channelID, messageID := e.GuildID, e.ChannelID, e.MessageID

	b.handle("reaction_remove_emoji", func(ctx context.Context) error {
		return b.refresh.HandleReactionRemoveEmoji(ctx, guildID, channelID, messageID)
	})
}

// onCommand runs a slash command. The handler applies its own timeout.
func (b *Bot) onCommand(e *events.ApplicationCommandInteractionCreate) {
	if e.Data.Type() != discord.ApplicationCommandTypeSlash {
		return
	}

	b.wg.Go(func() {
		defer b.recoverInteraction("command")
		b.commands.HandleCommand(b.ctx, e)
	})
}

func (b *Bot) onAutocomplete(e *events.AutocompleteInteractionCreate) {
	b.wg.Go(func() {
		defer b.recoverInteraction("autocomplete")
		b.commands.HandleAutocomplete(b.ctx, e)
	})
}

func (b *Bot) onComponent(e *events.ComponentInteractionCreate) {
	defer b.recoverInteraction("component")
	b.commands.HandleComponent(e)
}

func (b *Bot) recoverInteraction(kind string) {
	if r := recover(); r != nil {
		b.logger.Error("Interaction handler panicked",
			zap.String("kind", kind),
			zap.String("panic", fmt.Sprint(r)),
			zap.String("stack", string(debug.Stack())))
	}
}
