package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/robalyx/starboard/internal/bot/validation"
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/starboard/emoji"
)

// maxAutostarChars is the largest character requirement of an autostar channel.
const maxAutostarChars = 4000

// autostarSetting edits one column of an autostar channel.
type autostarSetting func(ctx context.Context, p *settingParser, asc *types.AutostarChannel, input string) error

var autostarSettings = map[string]autostarSetting{
	"emojis": func(_ context.Context, _ *settingParser, asc *types.AutostarChannel, input string) error {
		emojis, bad := emoji.ParseList(input)
		if bad != "" {
			return userErrorf("%q is not an emoji.", bad)
		}
		asc.Emojis = emojis
		return nil
	},
	"min-chars": func(_ context.Context, _ *settingParser, asc *types.AutostarChannel, input string) error {
		v, err := validation.Int(input, 0, maxAutostarChars)
		if err != nil {
			return err
		}
		if asc.MaxChars != nil && v > *asc.MaxChars {
			return userErrorf("min-chars cannot be greater than max-chars.")
		}
		asc.MinChars = v
		return nil
	},
	"max-chars": func(_ context.Context, _ *settingParser, asc *types.AutostarChannel, input string) error {
		if isNone(input) {
			asc.MaxChars = nil
			return nil
		}
		v, err := validation.Int(input, 0, maxAutostarChars)
		if err != nil {
			return err
		}
		if v < asc.MinChars {
			return userErrorf("max-chars cannot be less than min-chars.")
		}
		asc.MaxChars = &v
		return nil
	},
	"require-image": func(_ context.Context, _ *settingParser, asc *types.AutostarChannel, input string) error {
		v, err := validation.Bool(input)
		asc.RequireImage = v
		return err
	},
	"delete-invalid": func(_ context.Context, _ *settingParser, asc *types.AutostarChannel, input string) error {
		v, err := validation.Bool(input)
		asc.DeleteInvalid = v
		return err
	},
	"filter-groups": func(ctx context.Context, p *settingParser, asc *types.AutostarChannel, input string) error {
		f, _ := types.SettingByName("filter_groups")
		v, err := p.value(ctx, f, input)
		if err != nil {
			return err
		}
		asc.FilterGroups = v.([]int64)
		return nil
	},
}

func autostarSettingNames() []string {
	names := make([]string, 0, len(autostarSettings))
	for name := range autostarSettings {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (h *Handler) registerAutostar() {
	h.handle("/autostar/create", h.createAutostar)
	h.handle("/autostar/delete", h.deleteAutostar)
	h.handle("/autostar/view", h.viewAutostar)
	h.handle("/autostar/rename", h.renameAutostar)
	h.handle("/autostar/edit", h.editAutostar)
}

func (h *Handler) autostar(ctx context.Context, req *Request, option string) (*types.AutostarChannel, error) {
	name := req.Options.String(option)

	asc, err := h.db.Model().Autostar().GetByName(ctx, req.GuildID, name)
	if errors.Is(err, models.ErrNotFound) {
		return nil, userErrorf("No autostar channel is named `%s`.", name)
	}
	return asc, err
}

func (h *Handler) createAutostar(ctx context.Context, req *Request) error {
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}
	channelID := req.Options.Snowflake(optChannel)

	if err := h.checkLimit(ctx, req.GuildID, h.db.Model().Autostar().Count,
		h.db.Service().Premium().Limits().AutostarChannels, "autostar channels"); err != nil {
		return err
	}

	if err := h.db.Model().Guild().EnsureGuild(ctx, req.GuildID); err != nil {
		return err
	}

	asc, err := h.db.Model().Autostar().Create(ctx, req.GuildID, name, channelID)
	if err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Created autostar channel `%s` in <#%d>.", asc.Name, asc.ChannelID)
}

func (h *Handler) deleteAutostar(ctx context.Context, req *Request) error {
	asc, err := h.autostar(ctx, req, optAutostar)
	if err != nil {
		return err
	}

	if err := h.db.Model().Autostar().Delete(ctx, asc.ID); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Deleted autostar channel `%s`.", asc.Name)
}

func (h *Handler) viewAutostar(ctx context.Context, req *Request) error {
	if _, ok := req.Options.OptString(optAutostar); ok {
		asc, err := h.autostar(ctx, req, optAutostar)
		if err != nil {
			return err
		}
		return req.Embed(ctx, autostarEmbed(asc))
	}

	channels, err := h.db.Model().Autostar().GetByGuild(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return req.Reply(ctx, "This server has no autostar channels.")
	}

	var b strings.Builder
	for _, asc := range channels {
		fmt.Fprintf(&b, "`%s` in <#%d>%s\n", asc.Name, asc.ChannelID, lockedNote(asc.PremiumLocked))
	}

	return req.Embed(ctx, discord.Embed{Title: "Autostar channels", Description: b.String()})
}

func autostarEmbed(asc *types.AutostarChannel) discord.Embed {
	emojis := make([]string, len(asc.Emojis))
	for i, e := range asc.Emojis {
		emojis[i] = emoji.Display(e, false)
	}

	maxChars := "none"
	if asc.MaxChars != nil {
		maxChars = fmt.Sprint(*asc.MaxChars)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Watches <#%d>.%s\n\n", asc.ChannelID, lockedNote(asc.PremiumLocked))
	fmt.Fprintf(&b, "**emojis**: %s\n", strings.Join(emojis, " "))
	fmt.Fprintf(&b, "**min-chars**: %d\n", asc.MinChars)
	fmt.Fprintf(&b, "**max-chars**: %s\n", maxChars)
	fmt.Fprintf(&b, "**require-image**: %t\n", asc.RequireImage)
	fmt.Fprintf(&b, "**delete-invalid**: %t\n", asc.DeleteInvalid)
	fmt.Fprintf(&b, "**filter-groups**: %d\n", len(asc.FilterGroups))

	return discord.Embed{Title: "Autostar channel " + asc.Name, Description: b.String()}
}

func (h *Handler) renameAutostar(ctx context.Context, req *Request) error {
	asc, err := h.autostar(ctx, req, optAutostar)
	if err != nil {
		return err
	}
	name, err := validation.Name(req.Options.String(optName))
	if err != nil {
		return err
	}

	old := asc.Name
	asc.Name = name
	if err := h.db.Model().Autostar().Update(ctx, asc); err != nil {
		return err
	}

	return req.Reply(ctx, "Renamed autostar channel `%s` to `%s`.", old, name)
}

func (h *Handler) editAutostar(ctx context.Context, req *Request) error {
	asc, err := h.autostar(ctx, req, optAutostar)
	if err != nil {
		return err
	}

	setting := req.Options.String(optSetting)
	apply, ok := autostarSettings[setting]
	if !ok {
		return userErrorf("%q is not an autostar setting. Choose one of: %s.",
			setting, strings.Join(autostarSettingNames(), ", "))
	}

	parser, err := h.parser(ctx, req)
	if err != nil {
		return err
	}
	if err := apply(ctx, parser, asc, strings.TrimSpace(req.Options.String(optValue))); err != nil {
		return err
	}

	if err := h.db.Model().Autostar().Update(ctx, asc); err != nil {
		return err
	}

	return req.Embed(ctx, autostarEmbed(asc))
}
