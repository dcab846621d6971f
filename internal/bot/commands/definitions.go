package commands

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/omit"
)

// Option names shared between definitions, handlers and autocomplete.
const (
	optName      = "name"
	optChannel   = "channel"
	optChannels  = "channels"
	optStarboard = "starboard"
	optOverride  = "override"
	optAutostar  = "autostar"
	optSetting   = "setting"
	optValue     = "value"
	optRole      = "role"
	optGroup     = "group"
	optFilter    = "filter-group"
	optPosition  = "position"
	optCondition = "condition"
	optMessage   = "message"
	optReason    = "reason"
	optFrom      = "from"
	optTo        = "to"
	optUser      = "user"
)

func sub(name, description string, options ...discord.ApplicationCommandOption) discord.ApplicationCommandOptionSubCommand {
	return discord.ApplicationCommandOptionSubCommand{Name: name, Description: description, Options: options}
}

func str(name, description string, required bool) discord.ApplicationCommandOptionString {
	return discord.ApplicationCommandOptionString{Name: name, Description: description, Required: required}
}

// named is a required string option completed from the names of stored rows.
func named(name, description string) discord.ApplicationCommandOptionString {
	return discord.ApplicationCommandOptionString{
		Name: name, Description: description, Required: true, Autocomplete: true,
	}
}

func optNamed(name, description string) discord.ApplicationCommandOptionString {
	return discord.ApplicationCommandOptionString{Name: name, Description: description, Autocomplete: true}
}

func channel(name, description string) discord.ApplicationCommandOptionChannel {
	return discord.ApplicationCommandOptionChannel{
		Name:        name,
		Description: description,
		Required:    true,
		ChannelTypes: []discord.ChannelType{
			discord.ChannelTypeGuildText,
			discord.ChannelTypeGuildNews,
			discord.ChannelTypeGuildForum,
			discord.ChannelTypeGuildCategory,
		},
	}
}

func role(description string) discord.ApplicationCommandOptionRole {
	return discord.ApplicationCommandOptionRole{Name: optRole, Description: description, Required: true}
}

func integer(name, description string, required bool, lo, hi int) discord.ApplicationCommandOptionInt {
	return discord.ApplicationCommandOptionInt{
		Name: name, Description: description, Required: required, MinValue: &lo, MaxValue: &hi,
	}
}

// tristate is a permission option that allows, denies or inherits a right.
func tristate(name, description string) discord.ApplicationCommandOptionString {
	return discord.ApplicationCommandOptionString{
		Name:        name,
		Description: description,
		Choices: []discord.ApplicationCommandOptionChoiceString{
			{Name: "allow", Value: "allow"},
			{Name: "deny", Value: "deny"},
			{Name: "default", Value: "default"},
		},
	}
}

func message() discord.ApplicationCommandOptionString {
	return str(optMessage, "A link to the message", true)
}

func guildCommand(
	name, description string, perm discord.Permissions, options ...discord.ApplicationCommandOption,
) discord.SlashCommandCreate {
	cmd := discord.SlashCommandCreate{
		Name:        name,
		Description: description,
		Contexts:    []discord.InteractionContextType{discord.InteractionContextTypeGuild},
		Options:     options,
	}
	if perm != 0 {
		cmd.DefaultMemberPermissions = omit.New(&perm)
	}
	return cmd
}

// Definitions returns the slash command tree.
func Definitions() []discord.ApplicationCommandCreate {
	manage := discord.PermissionManageGuild
	moderate := discord.PermissionManageMessages

	return []discord.ApplicationCommandCreate{
		guildCommand("starboards", "Manage starboards", manage,
			sub("create", "Create a starboard",
				str(optName, "The name of the starboard", true),
				channel(optChannel, "The channel posts are sent to")),
			sub("delete", "Delete a starboard", named(optStarboard, "The starboard to delete")),
			sub("view", "View starboards", optNamed(optStarboard, "The starboard to view")),
			sub("rename", "Rename a starboard",
				named(optStarboard, "The starboard to rename"),
				str(optName, "The new name", true)),
			sub("set-channel", "Move a starboard to another channel",
				named(optStarboard, "The starboard to move"),
				channel(optChannel, "The new channel")),
			sub("edit", "Change a setting of a starboard",
				named(optStarboard, "The starboard to edit"),
				named(optSetting, "The setting to change"),
				str(optValue, "The new value", true)),
			sub("reset", "Reset a setting of a starboard to its default",
				named(optStarboard, "The starboard to edit"),
				named(optSetting, "The setting to reset")),
		),

		guildCommand("overrides", "Manage per-channel starboard overrides", manage,
			sub("create", "Create an override",
				str(optName, "The name of the override", true),
				named(optStarboard, "The starboard to override"),
				str(optChannels, "The channels the override applies to", true)),
			sub("delete", "Delete an override", named(optOverride, "The override to delete")),
			sub("view", "View overrides", optNamed(optOverride, "The override to view")),
			sub("rename", "Rename an override",
				named(optOverride, "The override to rename"),
				str(optName, "The new name", true)),
			sub("channels", "Set the channels of an override",
				named(optOverride, "The override to edit"),
				str(optChannels, "The channels the override applies to", true)),
			sub("edit", "Override a setting",
				named(optOverride, "The override to edit"),
				named(optSetting, "The setting to override"),
				str(optValue, "The new value", true)),
			sub("reset", "Stop overriding a setting",
				named(optOverride, "The override to edit"),
				named(optSetting, "The setting to reset")),
		),

		guildCommand("autostar", "Manage autostar channels", manage,
			sub("create", "Create an autostar channel",
				str(optName, "The name of the autostar channel", true),
				channel(optChannel, "The channel to watch")),
			sub("delete", "Delete an autostar channel", named(optAutostar, "The autostar channel to delete")),
			sub("view", "View autostar channels", optNamed(optAutostar, "The autostar channel to view")),
			sub("rename", "Rename an autostar channel",
				named(optAutostar, "The autostar channel to rename"),
				str(optName, "The new name", true)),
			sub("edit", "Change a setting of an autostar channel",
				named(optAutostar, "The autostar channel to edit"),
				named(optSetting, "The setting to change"),
				str(optValue, "The new value", true)),
		),

		guildCommand("permroles", "Manage permission roles", manage,
			sub("create", "Make a role a permission role", role("The role")),
			sub("delete", "Stop treating a role as a permission role", role("The role")),
			sub("view", "View permission roles"),
			sub("edit", "Change the global rights of a permission role",
				role("The role"),
				tristate("vote", "Whether members may vote"),
				tristate("receive-votes", "Whether members' messages may receive votes"),
				tristate("obtain-xproles", "Whether members may obtain XP roles")),
			sub("edit-starboard", "Change the rights of a permission role on one starboard",
				role("The role"),
				named(optStarboard, "The starboard"),
				tristate("vote", "Whether members may vote"),
				tristate("receive-votes", "Whether members' messages may receive votes")),
			sub("clear-starboard", "Remove the starboard rights of a permission role",
				role("The role"),
				named(optStarboard, "The starboard")),
		),

		guildCommand("posroles", "Manage position-based award roles", manage,
			sub("set", "Make a role a position role",
				role("The role"),
				integer("max-members", "How many members may hold the role", true, 1, 1000)),
			sub("delete", "Stop treating a role as a position role", role("The role")),
			sub("view", "View position roles"),
			sub("refresh", "Reassign position roles now"),
		),

		guildCommand("xproles", "Manage XP-based award roles", manage,
			sub("set", "Make a role an XP role",
				role("The role"),
				integer("required", "The XP required to obtain the role", true, 1, 1_000_000)),
			sub("delete", "Stop treating a role as an XP role", role("The role")),
			sub("view", "View XP roles"),
			sub("refresh", "Recompute the XP roles of a member",
				discord.ApplicationCommandOptionUser{Name: optUser, Description: "The member", Required: true}),
		),

		guildCommand("filters", "Manage filter groups", manage,
			sub("create-group", "Create a filter group", str(optName, "The name of the group", true)),
			sub("delete-group", "Delete a filter group", named(optFilter, "The group to delete")),
			sub("rename-group", "Rename a filter group",
				named(optFilter, "The group to rename"),
				str(optName, "The new name", true)),
			sub("view", "View filter groups", optNamed(optFilter, "The group to view")),
			sub("add", "Add an empty filter to a group",
				named(optFilter, "The group"),
				integer(optPosition, "Where to insert the filter", false, 1, 50),
				discord.ApplicationCommandOptionBool{Name: "instant-pass", Description: "Pass the group when this filter passes"},
				discord.ApplicationCommandOptionBool{Name: "instant-fail", Description: "Fail the group when this filter fails"}),
			sub("remove", "Remove a filter from a group",
				named(optFilter, "The group"),
				integer(optPosition, "The position of the filter", true, 1, 50)),
			sub("set", "Set a condition of a filter",
				named(optFilter, "The group"),
				integer(optPosition, "The position of the filter", true, 1, 50),
				named(optCondition, "The condition"),
				str(optValue, "The value, or none to clear it", true)),
		),

		guildCommand("exclusive-groups", "Manage exclusive groups", manage,
			sub("create", "Create an exclusive group", str(optName, "The name of the group", true)),
			sub("delete", "Delete an exclusive group", named(optGroup, "The group to delete")),
			sub("rename", "Rename an exclusive group",
				named(optGroup, "The group to rename"),
				str(optName, "The new name", true)),
			sub("view", "View exclusive groups"),
		),

		guildCommand("premium", "Premium and credits", 0,
			sub("info", "Show the premium status of this server and your credits"),
			sub("redeem", "Spend credits on premium for this server",
				integer("months", "How many months to redeem", true, 1, 12)),
			sub("autoredeem", "Automatically redeem premium for this server when it runs out",
				discord.ApplicationCommandOptionBool{Name: "enabled", Description: "Enable autoredeem", Required: true}),
			sub("give-credits", "Give credits to a user",
				discord.ApplicationCommandOptionUser{Name: optUser, Description: "The user", Required: true},
				integer("credits", "How many credits to give", true, 1, 100_000)),
		),

		guildCommand("premium-locks", "Manage premium locks", manage,
			sub("refresh", "Recompute which starboards and autostar channels are locked"),
			sub("move-starboard", "Move a lock from one starboard to another",
				named(optFrom, "The locked starboard"),
				named(optTo, "The starboard to lock instead")),
			sub("move-autostar", "Move a lock from one autostar channel to another",
				named(optFrom, "The locked autostar channel"),
				named(optTo, "The autostar channel to lock instead")),
		),

		guildCommand("utils", "Moderation utilities", moderate,
			sub("trash", "Remove a message from every starboard", message(), str(optReason, "Why", false)),
			sub("untrash", "Allow a trashed message back on starboards", message()),
			sub("freeze", "Stop a message's posts from changing", message()),
			sub("unfreeze", "Let a frozen message's posts change again", message()),
			sub("force", "Force a message onto starboards", message(),
				optNamed(optStarboard, "Only force to this starboard")),
			sub("unforce", "Stop forcing a message onto starboards", message(),
				optNamed(optStarboard, "Only unforce from this starboard")),
			sub("info", "Show what the bot knows about a message", message()),
			sub("recount", "Recount the votes of a message", message()),
			sub("refresh", "Re-render the posts of a message", message()),
			sub("trashcan", "List trashed messages"),
		),

		discord.SlashCommandCreate{
			Name:        "ping",
			Description: "Show the bot's latency",
		},
	}
}
