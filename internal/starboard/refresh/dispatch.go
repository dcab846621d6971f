package refresh

import (
	"context"
	"fmt"
	"strconv"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/discord/chat"
	"github.com/robalyx/starboard/internal/starboard/embed"
	"github.com/robalyx/starboard/internal/starboard/emoji"
	"github.com/robalyx/starboard/internal/starboard/resolver"
	"github.com/robalyx/starboard/internal/starboard/status"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// refresh runs one reconciliation under the post update lock.
func (c *Coordinator) refresh(ctx context.Context, messageID snowflake.ID, r reason) error {
	st, err := c.load(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to load message state: %w (messageID=%d)", err, messageID)
	}
	if st == nil {
		return nil
	}

	points, err := c.tally(ctx, st)
	if err != nil {
		return fmt.Errorf("failed to tally votes: %w (messageID=%d)", err, messageID)
	}

	decisions := make([]*status.Decision, 0, len(st.configs))

	for _, cfg := range st.configs {
		in := &status.Input{
			Config:  cfg,
			Message: st.msg,
			Points:  points[cfg.ID()],
		}

		if row := st.rows[cfg.ID()]; row != nil && row.StarboardMessageID != nil {
			in.Posted = true
		}

		if in.ChannelNSFW, err = c.lookup.ChannelNSFW(ctx, st.msg.GuildID, cfg.Starboard.ChannelID); err != nil {
			return fmt.Errorf("failed to look up starboard channel: %w (starboardID=%d)", err, cfg.ID())
		}

		if in.MeetsRequirements, err = c.meetsRequirements(ctx, cfg, st.filterMsg, nil); err != nil {
			return err
		}

		decisions = append(decisions, &status.Decision{Input: in, Action: status.Decide(in)})
	}

	status.Arbitrate(decisions)

	p := pool.New().WithMaxGoroutines(c.opts.Parallelism).WithContext(ctx)

	for _, d := range decisions {
		p.Go(func(ctx context.Context) error {
			if err := c.apply(ctx, st, d, r); err != nil {
				c.logger.Error("Failed to update starboard post",
					zap.Error(err),
					zap.Uint64("messageID", uint64(messageID)),
					zap.Int64("starboardID", d.Input.Config.ID()),
					zap.Stringer("action", d.Action))
				return err
			}
			return nil
		})
	}

	return p.Wait()
}

// rerender reports whether an existing post is re-rendered even when its
// point count is unchanged.
func rerender(cfg *resolver.Config, r reason) bool {
	return r >= reasonState || (r == reasonEdit && cfg.Settings.LinkEdits)
}

// apply carries out one decision.
func (c *Coordinator) apply(ctx context.Context, st *state, d *status.Decision, r reason) error {
	cfg := d.Input.Config
	row := st.rows[cfg.ID()]
	points := d.Input.Points

	switch d.Action {
	case status.Send:
		if !d.Input.Posted {
			return c.create(ctx, st, cfg, points)
		}
		if row.LastKnownPointCount == points && !rerender(cfg, r) {
			return nil
		}
		return c.edit(ctx, st, cfg, row, points, r)

	case status.Trash:
		if !d.Input.Posted || (row.LastKnownPointCount == points && !rerender(cfg, r)) {
			return nil
		}
		return c.edit(ctx, st, cfg, row, points, r)

	case status.Remove:
		if !d.Input.Posted {
			return nil
		}
		return c.remove(ctx, st.msg, cfg, row)

	case status.NoAction:
		// A frozen post keeps its count but still shows the freeze marker.
		if d.Input.Posted && st.msg.Frozen && r >= reasonState {
			return c.edit(ctx, st, cfg, row, row.LastKnownPointCount, r)
		}
	}

	return nil
}

// render builds the post of a message on one starboard. Returns nil when the
// original was deleted and the post cannot be rendered.
func (c *Coordinator) render(st *state, cfg *resolver.Config, points int64) *embed.Post {
	snapshot := st.snapshot
	if snapshot == nil {
		if !st.msg.Trashed {
			return nil
		}
		snapshot = &cache.Message{
			ID:        st.msg.MessageID,
			GuildID:   st.msg.GuildID,
			ChannelID: st.msg.ChannelID,
			AuthorID:  st.msg.AuthorID,
		}
	}

	return embed.NewBuilder(&embed.Input{
		Settings:    &cfg.Settings,
		Message:     snapshot,
		Member:      st.author,
		User:        st.user,
		Reply:       st.reply,
		ReplyAuthor: st.replyAuthor,
		Points:      points,
		Trashed:     st.msg.Trashed,
		TrashReason: st.msg.TrashReason,
		Frozen:      st.msg.Frozen,
	}).Build()
}

// create sends a new post and records it.
func (c *Coordinator) create(ctx context.Context, st *state, cfg *resolver.Config, points int64) error {
	post := c.render(st, cfg, points)
	if post == nil {
		return nil
	}

	postID, err := c.send(ctx, cfg, post)
	if err != nil {
		if c.transient(err, "Failed to send starboard post", cfg) {
			return nil
		}
		return err
	}

	err = c.store.SaveStarboardMessage(ctx, &types.StarboardMessage{
		MessageID:           st.msg.MessageID,
		StarboardID:         cfg.ID(),
		StarboardMessageID:  &postID,
		LastKnownPointCount: points,
	})
	if err != nil {
		return err
	}

	c.logger.Debug("Sent starboard post",
		zap.Uint64("messageID", uint64(st.msg.MessageID)),
		zap.Int64("starboardID", cfg.ID()),
		zap.Uint64("postID", uint64(postID)),
		zap.Int64("points", points))

	c.autoreact(ctx, cfg, postID)

	return nil
}

// edit re-renders an existing post. A post that no longer exists is only
// forgotten on a forced refresh, so deleted posts stay deleted until then.
func (c *Coordinator) edit(
	ctx context.Context, st *state, cfg *resolver.Config, row *types.StarboardMessage, points int64, r reason,
) error {
	post := c.render(st, cfg, points)
	if post == nil {
		return nil
	}

	postID := *row.StarboardMessageID

	if err := c.update(ctx, cfg, postID, post); err != nil {
		if chat.IsNotFound(err) {
			if r != reasonForce {
				c.logger.Debug("Starboard post is gone",
					zap.Int64("starboardID", cfg.ID()),
					zap.Uint64("postID", uint64(postID)))
				return nil
			}
			if err := c.store.ClearStarboardMessage(ctx, row.MessageID, cfg.ID()); err != nil {
				return err
			}
			return c.create(ctx, st, cfg, points)
		}
		if c.transient(err, "Failed to edit starboard post", cfg) {
			return nil
		}
		return err
	}

	return c.store.SaveStarboardMessage(ctx, &types.StarboardMessage{
		MessageID:           row.MessageID,
		StarboardID:         cfg.ID(),
		StarboardMessageID:  &postID,
		LastKnownPointCount: points,
	})
}

// remove deletes a post and forgets its id while keeping the point count.
func (c *Coordinator) remove(
	ctx context.Context, msg *types.Message, cfg *resolver.Config, row *types.StarboardMessage,
) error {
	postID := *row.StarboardMessageID

	err := c.chat.DeleteMessage(ctx, cfg.Starboard.ChannelID, postID)
	if err != nil && chat.IsForbidden(err) {
		if hook := c.existingWebhook(ctx, cfg); hook != nil {
			err = c.chat.DeleteWebhookMessage(ctx, hook, postID)
		}
	}

	if err != nil && !chat.IsNotFound(err) {
		if c.transient(err, "Failed to delete starboard post", cfg) {
			return nil
		}
		return err
	}

	c.logger.Debug("Removed starboard post",
		zap.Uint64("messageID", uint64(msg.MessageID)),
		zap.Int64("starboardID", cfg.ID()),
		zap.Uint64("postID", uint64(postID)))

	return c.store.ClearStarboardMessage(ctx, msg.MessageID, cfg.ID())
}

// send posts through the starboard webhook when enabled, else as the bot.
func (c *Coordinator) send(ctx context.Context, cfg *resolver.Config, post *embed.Post) (snowflake.ID, error) {
	if hook := c.webhookFor(ctx, cfg); hook != nil {
		m, err := c.chat.ExecuteWebhook(ctx, hook, post.WebhookMessageCreate())
		if err == nil {
			return m.ID, nil
		}
		if !chat.IsNotFound(err) {
			return 0, err
		}
		c.forgetWebhook(ctx, cfg, hook.ID)
	}

	m, err := c.chat.CreateMessage(ctx, cfg.Starboard.ChannelID, post.MessageCreate())
	if err != nil {
		return 0, err
	}

	return m.ID, nil
}

// update edits a post with the identity that most likely sent it, falling
// back to the other one.
func (c *Coordinator) update(ctx context.Context, cfg *resolver.Config, postID snowflake.ID, post *embed.Post) error {
	hook := c.existingWebhook(ctx, cfg)

	asBot := func() error {
		_, err := c.chat.UpdateMessage(ctx, cfg.Starboard.ChannelID, postID, post.MessageUpdate())
		return err
	}

	if hook == nil {
		return asBot()
	}

	asWebhook := func() error {
		_, err := c.chat.UpdateWebhookMessage(ctx, hook, postID, post.WebhookMessageUpdate())
		return err
	}

	first, second := asBot, asWebhook
	if cfg.Settings.UseWebhook {
		first, second = asWebhook, asBot
	}

	if err := first(); err == nil || (!chat.IsNotFound(err) && !chat.IsForbidden(err)) {
		return err
	}

	return second()
}

// webhookFor returns the webhook to send through, creating one when the
// starboard has none. Returns nil when posts should be sent as the bot.
func (c *Coordinator) webhookFor(ctx context.Context, cfg *resolver.Config) *chat.Webhook {
	if !cfg.Settings.UseWebhook {
		return nil
	}

	if hook := c.existingWebhook(ctx, cfg); hook != nil {
		return hook
	}

	v, err, _ := c.webhooks.Do(strconv.FormatInt(cfg.ID(), 10), func() (any, error) {
		name := fmt.Sprintf("Webhook for '%s'", cfg.Starboard.Name)

		hook, err := c.chat.CreateWebhook(ctx, cfg.Starboard.ChannelID, name)
		if err != nil {
			return nil, err
		}

		if err := c.store.SetWebhook(ctx, cfg.ID(), &hook.ID); err != nil {
			return nil, err
		}
		c.lookup.PutWebhook(hook)

		c.logger.Info("Created starboard webhook",
			zap.Int64("starboardID", cfg.ID()),
			zap.Uint64("webhookID", uint64(hook.ID)))

		return hook, nil
	})
	if err != nil {
		c.logger.Warn("Failed to create webhook, sending as the bot",
			zap.Error(err),
			zap.Int64("starboardID", cfg.ID()))
		return nil
	}

	return v.(*chat.Webhook)
}

// existingWebhook returns the stored webhook of a starboard. A webhook that
// was deleted or moved to another channel is forgotten.
func (c *Coordinator) existingWebhook(ctx context.Context, cfg *resolver.Config) *chat.Webhook {
	if cfg.Starboard.WebhookID == nil {
		return nil
	}

	webhookID := *cfg.Starboard.WebhookID

	hook, err := c.lookup.FogWebhook(ctx, webhookID)
	if err != nil {
		c.logger.Warn("Failed to look up webhook",
			zap.Error(err),
			zap.Int64("starboardID", cfg.ID()),
			zap.Uint64("webhookID", uint64(webhookID)))
		return nil
	}

	if hook == nil || hook.ChannelID != cfg.Starboard.ChannelID {
		c.forgetWebhook(ctx, cfg, webhookID)
		return nil
	}

	return hook
}

// forgetWebhook clears the stored webhook id of a starboard.
func (c *Coordinator) forgetWebhook(ctx context.Context, cfg *resolver.Config, webhookID snowflake.ID) {
	c.lookup.EvictWebhook(webhookID)

	if err := c.store.SetWebhook(ctx, cfg.ID(), nil); err != nil {
		c.logger.Error("Failed to clear webhook", zap.Error(err), zap.Int64("starboardID", cfg.ID()))
		return
	}

	c.logger.Info("Cleared missing webhook",
		zap.Int64("starboardID", cfg.ID()),
		zap.Uint64("webhookID", uint64(webhookID)))
}

// autoreact adds the starboard's vote emojis to a new post.
func (c *Coordinator) autoreact(ctx context.Context, cfg *resolver.Config, postID snowflake.ID) {
	var emojis []string
	if cfg.Settings.AutoreactUpvote {
		emojis = append(emojis, cfg.Settings.UpvoteEmojis...)
	}
	if cfg.Settings.AutoreactDownvote {
		emojis = append(emojis, cfg.Settings.DownvoteEmojis...)
	}

	for _, e := range emojis {
		if err := c.chat.AddReaction(ctx, cfg.Starboard.ChannelID, postID, emoji.APIName(e)); err != nil {
			c.logger.Debug("Failed to autoreact",
				zap.Error(err),
				zap.Int64("starboardID", cfg.ID()),
				zap.String("emoji", e))
		}
	}
}

// transient logs chat errors that the next event will retry and reports
// whether err was one of them.
func (c *Coordinator) transient(err error, msg string, cfg *resolver.Config) bool {
	if !chat.IsForbidden(err) && !chat.IsRateLimited(err) && !chat.IsNotFound(err) {
		return false
	}

	c.logger.Warn(msg,
		zap.Error(err),
		zap.Int("status", chat.StatusCode(err)),
		zap.Int64("starboardID", cfg.ID()))

	return true
}
