package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dustin/go-humanize"
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/redis"
	"github.com/robalyx/starboard/internal/starboard/refresh"
	"go.uber.org/zap"
)

const (
	pingPath         = "/ping"
	trashcanPageSize = 10
	trashcanMax      = 100
)

func (h *Handler) registerUtils() {
	h.handle("/utils/trash", h.trashMessage)
	h.handle("/utils/untrash", h.untrashMessage)
	h.handle("/utils/freeze", h.freezeMessage)
	h.handle("/utils/unfreeze", h.unfreezeMessage)
	h.handle("/utils/force", h.forceMessage)
	h.handle("/utils/unforce", h.unforceMessage)
	h.handle("/utils/info", h.messageInfo)
	h.handle("/utils/recount", h.recountMessage)
	h.handle("/utils/refresh", h.refreshMessage)
	h.handle("/utils/trashcan", h.trashcan)

	h.handle(pingPath, h.ping)
}

// message resolves the message option to a stored original. A link to a
// starboard post resolves to the post's original. Messages the bot has not
// seen yet are tracked when the link names their channel.
func (h *Handler) message(ctx context.Context, req *Request) (*types.Message, error) {
	channelID, messageID, err := parseMessageLink(req.Options.String(optMessage))
	if err != nil {
		return nil, userErrorf("That is not a message link.")
	}

	post, err := h.db.Model().Message().GetStarboardMessageByPost(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if post != nil {
		messageID = post.MessageID
		channelID = 0
	}

	msg, err := h.db.Model().Message().GetMessage(ctx, messageID)
	if errors.Is(err, models.ErrNotFound) && channelID != 0 {
		err = h.deps.Refresh.Recount(ctx, req.GuildID, channelID, messageID)
		if err != nil && !errors.Is(err, refresh.ErrAlreadyRecounting) {
			return nil, err
		}
		msg, err = h.db.Model().Message().GetMessage(ctx, messageID)
	}
	if errors.Is(err, models.ErrNotFound) {
		return nil, userErrorf("The bot does not know that message. Use a full message link.")
	}
	if err != nil {
		return nil, err
	}

	if msg.GuildID != req.GuildID {
		return nil, userErrorf("That message is not in this server.")
	}
	return msg, nil
}

func messageURL(guildID, channelID, messageID snowflake.ID) string {
	return fmt.Sprintf("https://discord.com/channels/%d/%d/%d", guildID, channelID, messageID)
}

func (h *Handler) trashMessage(ctx context.Context, req *Request) error {
	msg, err := h.message(ctx, req)
	if err != nil {
		return err
	}

	var reason *string
	if r, ok := req.Options.OptString(optReason); ok && strings.TrimSpace(r) != "" {
		r = strings.TrimSpace(r)
		reason = &r
	}

	if err := h.db.Model().Message().SetTrashed(ctx, msg.MessageID, true, reason); err != nil {
		return err
	}
	if err := h.deps.Refresh.RefreshState(ctx, msg.MessageID); err != nil {
		return err
	}

	return req.Reply(ctx, "Trashed %s.", messageURL(msg.GuildID, msg.ChannelID, msg.MessageID))
}

func (h *Handler) untrashMessage(ctx context.Context, req *Request) error {
	msg, err := h.message(ctx, req)
	if err != nil {
		return err
	}
	if !msg.Trashed {
		return userErrorf("That message is not trashed.")
	}

	if err := h.db.Model().Message().SetTrashed(ctx, msg.MessageID, false, nil); err != nil {
		return err
	}
	if err := h.deps.Refresh.RefreshState(ctx, msg.MessageID); err != nil {
		return err
	}

	return req.Reply(ctx, "Untrashed %s.", messageURL(msg.GuildID, msg.ChannelID, msg.MessageID))
}

func (h *Handler) freezeMessage(ctx context.Context, req *Request) error {
	return h.setFrozen(ctx, req, true)
}

func (h *Handler) unfreezeMessage(ctx context.Context, req *Request) error {
	return h.setFrozen(ctx, req, false)
}

func (h *Handler) setFrozen(ctx context.Context, req *Request, frozen bool) error {
	msg, err := h.message(ctx, req)
	if err != nil {
		return err
	}

	if err := h.db.Model().Message().SetFrozen(ctx, msg.MessageID, frozen); err != nil {
		return err
	}
	if err := h.deps.Refresh.RefreshState(ctx, msg.MessageID); err != nil {
		return err
	}

	verb := "Unfroze"
	if frozen {
		verb = "Froze"
	}
	return req.Reply(ctx, "%s %s.", verb, messageURL(msg.GuildID, msg.ChannelID, msg.MessageID))
}

// targetStarboards returns the ids named by the optional starboard option,
// or every starboard of the guild.
func (h *Handler) targetStarboards(ctx context.Context, req *Request) ([]int64, string, error) {
	if _, ok := req.Options.OptString(optStarboard); ok {
		sb, err := h.starboard(ctx, req, optStarboard)
		if err != nil {
			return nil, "", err
		}
		return []int64{sb.ID}, fmt.Sprintf("`%s`", sb.Name), nil
	}

	boards, err := h.db.Model().Starboard().GetStarboardsByGuild(ctx, req.GuildID)
	if err != nil {
		return nil, "", err
	}
	ids := make([]int64, 0, len(boards))
	for _, sb := range boards {
		ids = append(ids, sb.ID)
	}
	return ids, "every starboard", nil
}

func (h *Handler) forceMessage(ctx context.Context, req *Request) error {
	msg, err := h.message(ctx, req)
	if err != nil {
		return err
	}
	ids, label, err := h.targetStarboards(ctx, req)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return userErrorf("This server has no starboards.")
	}

	forced := slices.Clone(msg.ForcedTo)
	for _, id := range ids {
		if !slices.Contains(forced, id) {
			forced = append(forced, id)
		}
	}
	slices.Sort(forced)

	if err := h.db.Model().Message().SetForcedTo(ctx, msg.MessageID, forced); err != nil {
		return err
	}
	if err := h.deps.Refresh.Refresh(ctx, msg.MessageID, false); err != nil {
		return err
	}

	return req.Reply(ctx, "Forced %s to %s.", messageURL(msg.GuildID, msg.ChannelID, msg.MessageID), label)
}

func (h *Handler) unforceMessage(ctx context.Context, req *Request) error {
	msg, err := h.message(ctx, req)
	if err != nil {
		return err
	}

	var (
		forced []int64
		label  = "every starboard"
	)
	if _, ok := req.Options.OptString(optStarboard); ok {
		sb, err := h.starboard(ctx, req, optStarboard)
		if err != nil {
			return err
		}
		forced = slices.DeleteFunc(slices.Clone(msg.ForcedTo), func(id int64) bool { return id == sb.ID })
		label = fmt.Sprintf("`%s`", sb.Name)
	}

	if err := h.db.Model().Message().SetForcedTo(ctx, msg.MessageID, forced); err != nil {
		return err
	}
	if err := h.deps.Refresh.Refresh(ctx, msg.MessageID, false); err != nil {
		return err
	}

	return req.Reply(ctx, "Unforced %s from %s.", messageURL(msg.GuildID, msg.ChannelID, msg.MessageID), label)
}

func (h *Handler) messageInfo(ctx context.Context, req *Request) error {
	msg, err := h.message(ctx, req)
	if err != nil {
		return err
	}

	posts, err := h.db.Model().Message().GetStarboardMessages(ctx, msg.MessageID)
	if err != nil {
		return err
	}
	boards, err := h.db.Model().Starboard().GetStarboardsByGuild(ctx, req.GuildID)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Original](%s) by <@%d> in <#%d>\n",
		messageURL(msg.GuildID, msg.ChannelID, msg.MessageID), msg.AuthorID, msg.ChannelID)
	if msg.Trashed {
		reason := "no reason given"
		if msg.TrashReason != nil {
			reason = *msg.TrashReason
		}
		fmt.Fprintf(&b, "Trashed: %s\n", reason)
	}
	if msg.Frozen {
		b.WriteString("Frozen\n")
	}

	b.WriteString("\n")
	for _, sb := range boards {
		line := fmt.Sprintf("`%s`: not posted", sb.Name)
		if i := slices.IndexFunc(posts, func(p *types.StarboardMessage) bool { return p.StarboardID == sb.ID }); i >= 0 {
			p := posts[i]
			line = fmt.Sprintf("`%s`: %d points", sb.Name, p.LastKnownPointCount)
			if p.StarboardMessageID != nil {
				line += fmt.Sprintf(", [post](%s)", messageURL(sb.GuildID, sb.ChannelID, *p.StarboardMessageID))
			}
		}
		if msg.IsForcedTo(sb.ID) {
			line += ", forced"
		}
		b.WriteString(line + "\n")
	}

	return req.Embed(ctx, discord.Embed{
		Title:       "Message info",
		Description: b.String(),
		Timestamp:   ptr(msg.MessageID.Time()),
	})
}

func ptr[T any](v T) *T {
	return &v
}

func (h *Handler) recountMessage(ctx context.Context, req *Request) error {
	channelID, messageID, err := parseMessageLink(req.Options.String(optMessage))
	if err != nil {
		return userErrorf("That is not a message link.")
	}

	if channelID == 0 {
		msg, err := h.message(ctx, req)
		if err != nil {
			return err
		}
		channelID, messageID = msg.ChannelID, msg.MessageID
	}

	if err := h.deps.Refresh.Recount(ctx, req.GuildID, channelID, messageID); err != nil {
		return err
	}

	return req.Reply(ctx, "Recounted the votes of %s.", messageURL(req.GuildID, channelID, messageID))
}

func (h *Handler) refreshMessage(ctx context.Context, req *Request) error {
	msg, err := h.message(ctx, req)
	if err != nil {
		return err
	}

	if err := h.deps.Refresh.Refresh(ctx, msg.MessageID, true); err != nil {
		return err
	}

	return req.Reply(ctx, "Refreshed %s.", messageURL(msg.GuildID, msg.ChannelID, msg.MessageID))
}

func (h *Handler) trashcan(ctx context.Context, req *Request) error {
	msgs, err := h.db.Model().Message().GetTrashedMessages(ctx, req.GuildID, 0, trashcanMax)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return req.Reply(ctx, "The trashcan is empty.")
	}

	pages := trashcanPages(msgs)
	if len(pages) == 1 {
		return req.Embed(ctx, pages[0])
	}
	return h.deps.Views.NewPaginator(pages, uint64(req.UserID), h.deps.ViewTimeout).Run(ctx, req.Show)
}

func trashcanPages(msgs []*types.Message) []discord.Embed {
	var pages []discord.Embed
	for chunk := range slices.Chunk(msgs, trashcanPageSize) {
		var b strings.Builder
		for _, msg := range chunk {
			reason := "no reason given"
			if msg.TrashReason != nil {
				reason = *msg.TrashReason
			}
			fmt.Fprintf(&b, "[%d](%s): %s\n",
				msg.MessageID, messageURL(msg.GuildID, msg.ChannelID, msg.MessageID), reason)
		}
		pages = append(pages, discord.Embed{Title: "Trashcan", Description: b.String()})
	}
	return pages
}

func (h *Handler) ping(ctx context.Context, req *Request) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Gateway latency: %s\n", h.deps.Latency().Round(time.Millisecond))

	if h.deps.Status != nil {
		for _, worker := range []string{redis.WorkerPremium, redis.WorkerPosRoles} {
			at, err := redis.LastWorkerRun(ctx, h.deps.Status, worker)
			switch {
			case err != nil:
				h.logger.Warn("Failed to read worker status", zap.Error(err), zap.String("worker", worker))
				fmt.Fprintf(&b, "Worker %s: unknown\n", worker)
			case at.IsZero():
				fmt.Fprintf(&b, "Worker %s: never ran\n", worker)
			default:
				fmt.Fprintf(&b, "Worker %s: last ran %s\n", worker, humanize.Time(at))
			}
		}
	}

	return req.Reply(ctx, "%s", b.String())
}
