package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/starboard/internal/bot/validation"
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/robalyx/starboard/internal/database/types"
)

// maxOverrideChannels caps the channels of one override.
const maxOverrideChannels = 100

func (h *Handler) registerOverrides() {
	h.handle("/overrides/create", h.createOverride)
	h.handle("/overrides/delete", h.deleteOverride)
	h.handle("/overrides/view", h.viewOverrides)
	h.handle("/overrides/rename", h.renameOverride)
	h.handle("/overrides/channels", h.setOverrideChannels)
	h.handle("/overrides/edit", h.editOverride)
	h.handle("/overrides/reset", h.resetOverride)
}

func (h *Handler) override(ctx context.Context, req *Request) (*types.Override, error) {
	name := req.Options.String(optOverride)

	ov, err := h.db.Model().Starboard().GetOverrideByName(ctx, req.GuildID, name)
	if errors.Is(err, models.ErrNotFound) {
		return nil, userErrorf("No override is named `%s`.", name)
	}
	return ov, err
}

// overrideChannels reads the channel list option of an override command.
func overrideChannels(req *Request) ([]uint64, error) {
	ids, err := parseIDs(req.Options.String(optChannels))
	if err != nil {
		return nil, err
	}
	if len(ids) > maxOverrideChannels {
		return nil, userErrorf("An override can apply to at most %d channels.", maxOverrideChannels)
	}
	return toUint64s(ids), nil
}

func (h *Handler) createOverride(ctx context.Context, req *Request) error {
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}
	sb, err := h.starboard(ctx, req, optStarboard)
	if err != nil {
		return err
	}
	channels, err := overrideChannels(req)
	if err != nil {
		return err
	}

	ov, err := h.db.Model().Starboard().CreateOverride(ctx, req.GuildID, name, sb.ID, channels)
	if err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Created override `%s` for starboard `%s` in %s.", ov.Name, sb.Name, channelMentions(channels))
}

func (h *Handler) deleteOverride(ctx context.Context, req *Request) error {
	ov, err := h.override(ctx, req)
	if err != nil {
		return err
	}

	if err := h.db.Model().Starboard().DeleteOverride(ctx, ov.ID); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Deleted override `%s`.", ov.Name)
}

func (h *Handler) viewOverrides(ctx context.Context, req *Request) error {
	if _, ok := req.Options.OptString(optOverride); ok {
		ov, err := h.override(ctx, req)
		if err != nil {
			return err
		}
		sb, err := h.db.Model().Starboard().GetStarboard(ctx, ov.StarboardID)
		if err != nil {
			return err
		}

		merged, err := types.MergeOverrides(sb.Settings, ov.Overrides)
		if err != nil {
			return userErrorf("Override `%s` holds an invalid value. Reset the broken setting.", ov.Name)
		}

		overridden := make(map[string]bool, len(ov.Overrides))
		for name := range ov.Overrides {
			overridden[name] = true
		}

		return h.deps.Views.NewPaginator(settingPages(
			fmt.Sprintf("Override %s", ov.Name),
			fmt.Sprintf("Overrides starboard `%s` in %s.", sb.Name, channelMentions(ov.ChannelIDs)),
			&merged, overridden,
		), uint64(req.UserID), h.deps.ViewTimeout).Run(ctx, req.Show)
	}

	overrides, err := h.db.Model().Starboard().GetOverridesByGuild(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if len(overrides) == 0 {
		return req.Reply(ctx, "This server has no overrides.")
	}

	var b strings.Builder
	for _, ov := range overrides {
		fmt.Fprintf(&b, "`%s`: %d settings in %s\n", ov.Name, len(ov.Overrides), channelMentions(ov.ChannelIDs))
	}

	return req.Embed(ctx, discord.Embed{Title: "Overrides", Description: b.String()})
}

func (h *Handler) renameOverride(ctx context.Context, req *Request) error {
	ov, err := h.override(ctx, req)
	if err != nil {
		return err
	}
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}

	if err := h.db.Model().Starboard().RenameOverride(ctx, ov.ID, name); err != nil {
		return err
	}

	return req.Reply(ctx, "Renamed override `%s` to `%s`.", ov.Name, name)
}

func (h *Handler) setOverrideChannels(ctx context.Context, req *Request) error {
	ov, err := h.override(ctx, req)
	if err != nil {
		return err
	}
	channels, err := overrideChannels(req)
	if err != nil {
		return err
	}

	if err := h.db.Model().Starboard().SetOverrideChannels(ctx, ov.ID, channels); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Override `%s` now applies to %s.", ov.Name, channelMentions(channels))
}

func (h *Handler) editOverride(ctx context.Context, req *Request) error {
	ov, err := h.override(ctx, req)
	if err != nil {
		return err
	}
	sb, err := h.db.Model().Starboard().GetStarboard(ctx, ov.StarboardID)
	if err != nil {
		return err
	}

	parser, err := h.parser(ctx, req)
	if err != nil {
		return err
	}
	patch, err := parser.Parse(ctx, req.Options.String(optSetting), req.Options.String(optValue))
	if err != nil {
		return err
	}

	// Cross-field checks run against the effective settings.
	merged, err := types.MergeOverrides(sb.Settings, ov.Overrides)
	if err != nil {
		merged = sb.Settings
	}
	names, err := applySettings(&merged, patch)
	if err != nil {
		return err
	}

	values := maps.Clone(ov.Overrides)
	if values == nil {
		values = make(map[string]json.RawMessage, len(names))
	}
	for _, name := range names {
		f, _ := types.SettingByName(name)
		raw, err := f.Encode(&merged)
		if err != nil {
			return err
		}
		values[name] = raw
	}

	if err := h.db.Model().Starboard().SetOverrideValues(ctx, ov.ID, values); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Override `%s` now sets %s.", ov.Name, describePatch(&merged, names))
}

func (h *Handler) resetOverride(ctx context.Context, req *Request) error {
	ov, err := h.override(ctx, req)
	if err != nil {
		return err
	}
	names, err := resetNames(req.Options.String(optSetting))
	if err != nil {
		return err
	}

	values := maps.Clone(ov.Overrides)
	for _, name := range names {
		delete(values, name)
	}

	if err := h.db.Model().Starboard().SetOverrideValues(ctx, ov.ID, values); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Override `%s` no longer sets `%s`.", ov.Name, strings.Join(names, "`, `"))
}

func channelMentions(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("<#%d>", id)
	}
	return strings.Join(parts, ", ")
}
