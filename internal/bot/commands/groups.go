package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/starboard/internal/bot/validation"
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/robalyx/starboard/internal/database/types"
)

func (h *Handler) registerExclusiveGroups() {
	h.handle("/exclusive-groups/create", h.createExclusiveGroup)
	h.handle("/exclusive-groups/delete", h.deleteExclusiveGroup)
	h.handle("/exclusive-groups/rename", h.renameExclusiveGroup)
	h.handle("/exclusive-groups/view", h.viewExclusiveGroups)
}

func (h *Handler) exclusiveGroup(ctx context.Context, req *Request) (*types.ExclusiveGroup, error) {
	name := req.Options.String(optGroup)

	group, err := h.db.Model().Starboard().GetExclusiveGroupByName(ctx, req.GuildID, name)
	if errors.Is(err, models.ErrNotFound) {
		return nil, userErrorf("No exclusive group is named `%s`.", name)
	}
	return group, err
}

func (h *Handler) createExclusiveGroup(ctx context.Context, req *Request) error {
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}

	if err := h.db.Model().Guild().EnsureGuild(ctx, req.GuildID); err != nil {
		return err
	}
	group, err := h.db.Model().Starboard().CreateExclusiveGroup(ctx, req.GuildID, name)
	if err != nil {
		return err
	}

	return req.Reply(ctx,
		"Created exclusive group `%s`. Add starboards with `/starboards edit setting:exclusive_group value:%s`.",
		group.Name, group.Name)
}

func (h *Handler) deleteExclusiveGroup(ctx context.Context, req *Request) error {
	group, err := h.exclusiveGroup(ctx, req)
	if err != nil {
		return err
	}

	if err := h.db.Model().Starboard().DeleteExclusiveGroup(ctx, group.ID); err != nil {
		return err
	}

	return req.Reply(ctx, "Deleted exclusive group `%s`.", group.Name)
}

func (h *Handler) renameExclusiveGroup(ctx context.Context, req *Request) error {
	group, err := h.exclusiveGroup(ctx, req)
	if err != nil {
		return err
	}
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}

	if err := h.db.Model().Starboard().RenameExclusiveGroup(ctx, group.ID, name); err != nil {
		return err
	}

	return req.Reply(ctx, "Renamed exclusive group `%s` to `%s`.", group.Name, name)
}

func (h *Handler) viewExclusiveGroups(ctx context.Context, req *Request) error {
	groups, err := h.db.Model().Starboard().GetExclusiveGroups(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return req.Reply(ctx, "This server has no exclusive groups.")
	}

	boards, err := h.db.Model().Starboard().GetStarboardsByGuild(ctx, req.GuildID)
	if err != nil {
		return err
	}

	members := make(map[int64][]string, len(groups))
	for _, sb := range boards {
		if id := sb.Settings.ExclusiveGroup; id != nil {
			members[*id] = append(members[*id], fmt.Sprintf("`%s` (priority %d)", sb.Name, sb.Settings.ExclusiveGroupPriority))
		}
	}

	var b strings.Builder
	for _, g := range groups {
		list := "no starboards"
		if names := members[g.ID]; len(names) > 0 {
			list = strings.Join(names, ", ")
		}
		fmt.Fprintf(&b, "`%s`: %s\n", g.Name, list)
	}

	return req.Embed(ctx, discord.Embed{Title: "Exclusive groups", Description: b.String()})
}
