// Package chat wraps the chat platform HTTP API used by the starboard core.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// reactionPageSize is the largest page the reactions endpoint returns.
const reactionPageSize = 100

// Webhook is the identity needed to execute a webhook.
type Webhook struct {
	ID        snowflake.ID
	Token     string
	ChannelID snowflake.ID
}

// Client performs chat HTTP requests with per-call contexts.
type Client struct {
	rest   rest.Rest
	logger *zap.Logger
}

// New creates a Client around a disgo REST client.
func New(r rest.Rest, logger *zap.Logger) *Client {
	return &Client{
		rest:   r,
		logger: logger.Named("chat"),
	}
}

// CreateMessage sends a message as the bot.
func (c *Client) CreateMessage(
	ctx context.Context, channelID snowflake.ID, msg discord.MessageCreate,
) (*discord.Message, error) {
	return c.rest.CreateMessage(channelID, msg, rest.WithCtx(ctx))
}

// UpdateMessage edits a message sent by the bot.
func (c *Client) UpdateMessage(
	ctx context.Context, channelID, messageID snowflake.ID, msg discord.MessageUpdate,
) (*discord.Message, error) {
	return c.rest.UpdateMessage(channelID, messageID, msg, rest.WithCtx(ctx))
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	return c.rest.DeleteMessage(channelID, messageID, rest.WithCtx(ctx))
}

// GetMessage fetches a single message.
func (c *Client) GetMessage(ctx context.Context, channelID, messageID snowflake.ID) (*discord.Message, error) {
	return c.rest.GetMessage(channelID, messageID, rest.WithCtx(ctx))
}

// AddReaction reacts to a message as the bot.
func (c *Client) AddReaction(ctx context.Context, channelID, messageID snowflake.ID, emoji string) error {
	return c.rest.AddReaction(channelID, messageID, emoji, rest.WithCtx(ctx))
}

// RemoveUserReaction removes one user's reaction from a message.
func (c *Client) RemoveUserReaction(
	ctx context.Context, channelID, messageID snowflake.ID, emoji string, userID snowflake.ID,
) error {
	return c.rest.RemoveUserReaction(channelID, messageID, emoji, userID, rest.WithCtx(ctx))
}

// GetReactionUsers returns every user who reacted with emoji, following pagination.
func (c *Client) GetReactionUsers(
	ctx context.Context, channelID, messageID snowflake.ID, emoji string,
) ([]discord.User, error) {
	var (
		users []discord.User
		after int
	)

	for {
		page, err := c.rest.GetReactions(
			channelID, messageID, emoji, discord.MessageReactionTypeNormal, after, reactionPageSize, rest.WithCtx(ctx),
		)
		if err != nil {
			return nil, err
		}

		users = append(users, page...)
		if len(page) < reactionPageSize {
			return users, nil
		}

		after = int(page[len(page)-1].ID)
	}
}

// GetChannel fetches a channel.
func (c *Client) GetChannel(ctx context.Context, channelID snowflake.ID) (discord.Channel, error) {
	return c.rest.GetChannel(channelID, rest.WithCtx(ctx))
}

// GetMember fetches a guild member.
func (c *Client) GetMember(ctx context.Context, guildID, userID snowflake.ID) (*discord.Member, error) {
	return c.rest.GetMember(guildID, userID, rest.WithCtx(ctx))
}

// GetUser fetches a user.
func (c *Client) GetUser(ctx context.Context, userID snowflake.ID) (*discord.User, error) {
	return c.rest.GetUser(userID, rest.WithCtx(ctx))
}

// GetRoles fetches every role of a guild.
func (c *Client) GetRoles(ctx context.Context, guildID snowflake.ID) ([]discord.Role, error) {
	return c.rest.GetRoles(guildID, rest.WithCtx(ctx))
}

// GetGuildChannels fetches every channel of a guild. Threads are not included.
func (c *Client) GetGuildChannels(ctx context.Context, guildID snowflake.ID) ([]discord.GuildChannel, error) {
	return c.rest.GetGuildChannels(guildID, rest.WithCtx(ctx))
}

// GetWebhook fetches an incoming webhook. Webhooks of other kinds are reported as not found.
func (c *Client) GetWebhook(ctx context.Context, webhookID snowflake.ID) (*Webhook, error) {
	hook, err := c.rest.GetWebhook(webhookID, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}

	incoming, ok := hook.(discord.IncomingWebhook)
	if !ok || incoming.Token == "" {
		return nil, fmt.Errorf("%w: webhook %d is not usable", ErrNotFound, webhookID)
	}

	return &Webhook{ID: incoming.ID(), Token: incoming.Token, ChannelID: incoming.ChannelID}, nil
}

// CreateWebhook creates an incoming webhook in a channel.
func (c *Client) CreateWebhook(ctx context.Context, channelID snowflake.ID, name string) (*Webhook, error) {
	hook, err := c.rest.CreateWebhook(channelID, discord.WebhookCreate{Name: name}, rest.WithCtx(ctx))
	if err != nil {
		return nil, err
	}

	return &Webhook{ID: hook.ID(), Token: hook.Token, ChannelID: channelID}, nil
}

// ExecuteWebhook posts a message through a webhook and waits for the created message.
func (c *Client) ExecuteWebhook(
	ctx context.Context, hook *Webhook, msg discord.WebhookMessageCreate,
) (*discord.Message, error) {
	return c.rest.CreateWebhookMessage(
		hook.ID, hook.Token, msg, rest.CreateWebhookMessageParams{Wait: true}, rest.WithCtx(ctx),
	)
}

// UpdateWebhookMessage edits a message previously sent through the webhook.
func (c *Client) UpdateWebhookMessage(
	ctx context.Context, hook *Webhook, messageID snowflake.ID, msg discord.WebhookMessageUpdate,
) (*discord.Message, error) {
	return c.rest.UpdateWebhookMessage(
		hook.ID, hook.Token, messageID, msg, rest.UpdateWebhookMessageParams{}, rest.WithCtx(ctx),
	)
}

// DeleteWebhookMessage deletes a message previously sent through the webhook.
func (c *Client) DeleteWebhookMessage(ctx context.Context, hook *Webhook, messageID snowflake.ID) error {
	return c.rest.DeleteWebhookMessage(hook.ID, hook.Token, messageID, 0, rest.WithCtx(ctx))
}

// SendDM opens a private channel with the user and sends a message there.
func (c *Client) SendDM(ctx context.Context, userID snowflake.ID, msg discord.MessageCreate) error {
	channel, err := c.rest.CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return fmt.Errorf("failed to open dm channel: %w", err)
	}

	if _, err := c.rest.CreateMessage(channel.ID(), msg, rest.WithCtx(ctx)); err != nil {
		return fmt.Errorf("failed to send dm: %w", err)
	}

	return nil
}

// AddMemberRole grants a role to a member.
func (c *Client) AddMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error {
	return c.rest.AddMemberRole(guildID, userID, roleID, rest.WithCtx(ctx))
}

// RemoveMemberRole revokes a role from a member.
func (c *Client) RemoveMemberRole(ctx context.Context, guildID, userID, roleID snowflake.ID) error {
	return c.rest.RemoveMemberRole(guildID, userID, roleID, rest.WithCtx(ctx))
}

// ErrNotFound marks lookups whose target no longer exists.
var ErrNotFound = errors.New("not found")

// StatusCode returns the HTTP status of a chat API error, or 0 when err did
// not come from an HTTP response.
func StatusCode(err error) int {
	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}

	return 0
}

// IsNotFound reports whether err means the requested object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || StatusCode(err) == http.StatusNotFound
}

// IsForbidden reports whether the bot lacks permission for the request.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsRateLimited reports whether the request was rejected by a rate limit.
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}
