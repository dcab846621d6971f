package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/bot/validation"
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/robalyx/starboard/internal/database/types"
)

// categoryNames titles the setting categories in views.
var categoryNames = map[types.SettingCategory]string{
	types.SettingCategoryStyle:        "Style",
	types.SettingCategoryRequirements: "Requirements",
	types.SettingCategoryBehavior:     "Behavior",
}

func (h *Handler) registerStarboards() {
	h.handle("/starboards/create", h.createStarboard)
	h.handle("/starboards/delete", h.deleteStarboard)
	h.handle("/starboards/view", h.viewStarboards)
	h.handle("/starboards/rename", h.renameStarboard)
	h.handle("/starboards/set-channel", h.setStarboardChannel)
	h.handle("/starboards/edit", h.editStarboard)
	h.handle("/starboards/reset", h.resetStarboard)
}

// starboard loads the starboard named by an option.
func (h *Handler) starboard(ctx context.Context, req *Request, option string) (*types.Starboard, error) {
	name := req.Options.String(option)

	sb, err := h.db.Model().Starboard().GetStarboardByName(ctx, req.GuildID, name)
	if errors.Is(err, models.ErrNotFound) {
		return nil, userErrorf("No starboard is named `%s`.", name)
	}
	return sb, err
}

// parser builds a setting parser for the guild of a request.
func (h *Handler) parser(ctx context.Context, req *Request) (*settingParser, error) {
	premium, err := h.isPremium(ctx, req.GuildID)
	if err != nil {
		return nil, err
	}

	return &settingParser{
		premium:  premium,
		maxRegex: h.deps.MaxRegex,
		exclusiveGroup: func(ctx context.Context, name string) (int64, error) {
			group, err := h.db.Model().Starboard().GetExclusiveGroupByName(ctx, req.GuildID, name)
			if errors.Is(err, models.ErrNotFound) {
				return 0, userErrorf("No exclusive group is named `%s`.", name)
			}
			if err != nil {
				return 0, err
			}
			return group.ID, nil
		},
		filterGroup: func(ctx context.Context, name string) (int64, error) {
			group, err := h.db.Model().Filter().GetGroupByName(ctx, req.GuildID, name)
			if errors.Is(err, models.ErrNotFound) {
				return 0, userErrorf("No filter group is named `%s`.", name)
			}
			if err != nil {
				return 0, err
			}
			return group.ID, nil
		},
	}, nil
}

func (h *Handler) createStarboard(ctx context.Context, req *Request) error {
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}
	channelID := req.Options.Snowflake(optChannel)

	if err := h.checkLimit(ctx, req.GuildID, h.db.Model().Starboard().CountStarboards,
		h.db.Service().Premium().Limits().Starboards, "starboards"); err != nil {
		return err
	}

	if err := h.db.Model().Guild().EnsureGuild(ctx, req.GuildID); err != nil {
		return err
	}

	sb, err := h.db.Model().Starboard().CreateStarboard(ctx, req.GuildID, name, channelID)
	if err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Created starboard `%s` in <#%d>.", sb.Name, sb.ChannelID)
}

// checkLimit rejects a create when a guild without premium is at its free limit.
func (h *Handler) checkLimit(
	ctx context.Context, guildID snowflake.ID,
	count func(context.Context, snowflake.ID) (int, error), limit int, what string,
) error {
	premium, err := h.isPremium(ctx, guildID)
	if err != nil || premium {
		return err
	}

	n, err := count(ctx, guildID)
	if err != nil {
		return err
	}
	if n >= limit {
		return userErrorf("You can only have %d %s without premium.", limit, what)
	}

	return nil
}

func (h *Handler) deleteStarboard(ctx context.Context, req *Request) error {
	sb, err := h.starboard(ctx, req, optStarboard)
	if err != nil {
		return err
	}

	ok, err := h.deps.Views.Confirm(ctx, req.Show,
		fmt.Sprintf("Delete starboard `%s`? Its overrides and votes are deleted too.", sb.Name),
		uint64(req.UserID), h.deps.ViewTimeout)
	if err != nil || !ok {
		return err
	}

	if err := h.db.Model().Starboard().DeleteStarboard(ctx, sb.ID); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Deleted starboard `%s`.", sb.Name)
}

func (h *Handler) viewStarboards(ctx context.Context, req *Request) error {
	if _, ok := req.Options.OptString(optStarboard); ok {
		sb, err := h.starboard(ctx, req, optStarboard)
		if err != nil {
			return err
		}
		return h.deps.Views.NewPaginator(settingPages(
			fmt.Sprintf("Starboard %s", sb.Name),
			fmt.Sprintf("Posts to <#%d>.%s", sb.ChannelID, lockedNote(sb.PremiumLocked)),
			&sb.Settings, nil,
		), uint64(req.UserID), h.deps.ViewTimeout).Run(ctx, req.Show)
	}

	boards, err := h.db.Model().Starboard().GetStarboardsByGuild(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if len(boards) == 0 {
		return req.Reply(ctx, "This server has no starboards. Create one with `/starboards create`.")
	}

	var b strings.Builder
	for _, sb := range boards {
		fmt.Fprintf(&b, "`%s` in <#%d>: %d %s required%s\n",
			sb.Name, sb.ChannelID, sb.Settings.Required, sb.Settings.DisplayEmoji, lockedNote(sb.PremiumLocked))
	}

	return req.Embed(ctx, discord.Embed{Title: "Starboards", Description: b.String()})
}

func (h *Handler) renameStarboard(ctx context.Context, req *Request) error {
	sb, err := h.starboard(ctx, req, optStarboard)
	if err != nil {
		return err
	}
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}

	if err := h.db.Model().Starboard().RenameStarboard(ctx, sb.ID, name); err != nil {
		return err
	}

	return req.Reply(ctx, "Renamed starboard `%s` to `%s`.", sb.Name, name)
}

func (h *Handler) setStarboardChannel(ctx context.Context, req *Request) error {
	sb, err := h.starboard(ctx, req, optStarboard)
	if err != nil {
		return err
	}
	channelID := req.Options.Snowflake(optChannel)

	if err := h.db.Model().Starboard().SetStarboardChannel(ctx, sb.ID, channelID); err != nil {
		return err
	}

	return req.Reply(ctx, "Starboard `%s` now posts to <#%d>.", sb.Name, channelID)
}

func (h *Handler) editStarboard(ctx context.Context, req *Request) error {
	sb, err := h.starboard(ctx, req, optStarboard)
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

	names, err := applySettings(&sb.Settings, patch)
	if err != nil {
		return err
	}

	if err := h.db.Model().Starboard().UpdateStarboardSettings(ctx, sb.ID, &sb.Settings, names...); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Updated %s on starboard `%s`.", describePatch(&sb.Settings, names), sb.Name)
}

func (h *Handler) resetStarboard(ctx context.Context, req *Request) error {
	sb, err := h.starboard(ctx, req, optStarboard)
	if err != nil {
		return err
	}

	names, err := resetNames(req.Options.String(optSetting))
	if err != nil {
		return err
	}

	defaults := types.DefaultSettings()
	for _, name := range names {
		f, _ := types.SettingByName(name)
		if err := f.Set(&sb.Settings, f.Get(&defaults)); err != nil {
			return err
		}
	}
	if err := validation.Required(sb.Settings.Required, sb.Settings.RequiredRemove); err != nil {
		return err
	}

	if err := h.db.Model().Starboard().UpdateStarboardSettings(ctx, sb.ID, &sb.Settings, names...); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Reset %s on starboard `%s`.", describePatch(&sb.Settings, names), sb.Name)
}

// resetNames expands a setting name, including the cooldown shorthand.
func resetNames(name string) ([]string, error) {
	if name == cooldownSetting {
		return []string{"cooldown_count", "cooldown_period"}, nil
	}
	if _, err := types.SettingByName(name); err != nil {
		return nil, userErrorf("%q is not a setting.", name)
	}
	return []string{name}, nil
}

// describePatch renders the new values of the named settings.
func describePatch(s *types.StarboardSettings, names []string) string {
	parts := make([]string, 0, len(names))
	for _, name := range names {
		f, err := types.SettingByName(name)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("`%s` to %s", name, formatSetting(f, f.Get(s))))
	}
	return strings.Join(parts, " and ")
}

// settingPages renders settings as one page per category. Overridden names
// are marked when overridden is not nil.
func settingPages(
	title, description string, s *types.StarboardSettings, overridden map[string]bool,
) []discord.Embed {
	pages := make([]discord.Embed, 0, len(categoryNames))

	for _, category := range []types.SettingCategory{
		types.SettingCategoryStyle, types.SettingCategoryRequirements, types.SettingCategoryBehavior,
	} {
		var b strings.Builder
		for _, f := range types.SettingFields() {
			if f.Category() != category {
				continue
			}
			marker := ""
			if overridden[f.Name()] {
				marker = " (overridden)"
			}
			fmt.Fprintf(&b, "**%s**: %s%s\n", f.Name(), formatSetting(f, f.Get(s)), marker)
		}

		pages = append(pages, discord.Embed{
			Title:       title,
			Description: description + "\n\n__" + categoryNames[category] + "__\n" + b.String(),
		})
	}

	return pages
}

func lockedNote(locked bool) string {
	if locked {
		return " (locked, requires premium)"
	}
	return ""
}
