package commands

import (
	"context"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// maxChoices is the most autocomplete choices Discord accepts.
const maxChoices = 25

// HandleAutocomplete completes the name options of the command tree.
func (h *Handler) HandleAutocomplete(ctx context.Context, event *events.AutocompleteInteractionCreate) {
	data := event.Data
	path := "/" + data.CommandName
	if data.SubCommandName != nil {
		path += "/" + *data.SubCommandName
	}
	focused := data.Focused()

	var guildID snowflake.ID
	if id := event.GuildID(); id != nil {
		guildID = *id
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	names, err := h.complete(ctx, guildID, path, focused.Name)
	if err != nil {
		h.logger.Warn("Failed to load autocomplete choices",
			zap.Error(err),
			zap.String("command", path),
			zap.String("option", focused.Name))
	}

	matches := matchChoices(names, focused.String())
	choices := make([]discord.AutocompleteChoice, 0, len(matches))
	for _, name := range matches {
		choices = append(choices, discord.AutocompleteChoiceString{Name: name, Value: name})
	}

	if err := event.AutocompleteResult(choices); err != nil {
		h.logger.Debug("Failed to answer autocomplete", zap.Error(err))
	}
}

// complete returns every candidate for the focused option of a command.
func (h *Handler) complete(ctx context.Context, guildID snowflake.ID, path, option string) ([]string, error) {
	switch option {
	case optSetting:
		if strings.HasPrefix(path, "/autostar/") {
			return autostarSettingNames(), nil
		}
		return settingNames(), nil
	case optCondition:
		return conditionNames(), nil
	}

	if guildID == 0 {
		return nil, nil
	}

	switch option {
	case optStarboard:
		return h.starboardNames(ctx, guildID)
	case optFrom, optTo:
		if path == "/premium-locks/move-autostar" {
			return h.autostarNames(ctx, guildID)
		}
		return h.starboardNames(ctx, guildID)
	case optAutostar:
		return h.autostarNames(ctx, guildID)
	case optOverride:
		overrides, err := h.db.Model().Starboard().GetOverridesByGuild(ctx, guildID)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(overrides))
		for _, ov := range overrides {
			names = append(names, ov.Name)
		}
		return names, nil
	case optFilter:
		groups, err := h.db.Model().Filter().GetGroupsByGuild(ctx, guildID)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(groups))
		for _, g := range groups {
			names = append(names, g.Name)
		}
		return names, nil
	case optGroup:
		groups, err := h.db.Model().Starboard().GetExclusiveGroups(ctx, guildID)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(groups))
		for _, g := range groups {
			names = append(names, g.Name)
		}
		return names, nil
	}

	return nil, nil
}

func (h *Handler) starboardNames(ctx context.Context, guildID snowflake.ID) ([]string, error) {
	boards, err := h.db.Model().Starboard().GetStarboardsByGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(boards))
	for _, sb := range boards {
		names = append(names, sb.Name)
	}
	return names, nil
}

func (h *Handler) autostarNames(ctx context.Context, guildID snowflake.ID) ([]string, error) {
	ascs, err := h.db.Model().Autostar().GetByGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ascs))
	for _, asc := range ascs {
		names = append(names, asc.Name)
	}
	return names, nil
}

// matchChoices keeps the names that start with the query, then the names
// that merely contain it, up to maxChoices.
func matchChoices(names []string, query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))

	var prefixed, contained []string
	for _, name := range names {
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, query):
			prefixed = append(prefixed, name)
		case strings.Contains(lower, query):
			contained = append(contained, name)
		}
	}

	matches := append(prefixed, contained...)
	if len(matches) > maxChoices {
		matches = matches[:maxChoices]
	}
	return matches
}
