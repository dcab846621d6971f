package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/dustin/go-humanize"
	"github.com/robalyx/starboard/internal/database/types"
)

func (h *Handler) registerRoles() {
	h.handle("/permroles/create", h.createPermRole)
	h.handle("/permroles/delete", h.deletePermRole)
	h.handle("/permroles/view", h.viewPermRoles)
	h.handle("/permroles/edit", h.editPermRole)
	h.handle("/permroles/edit-starboard", h.editPermRoleStarboard)
	h.handle("/permroles/clear-starboard", h.clearPermRoleStarboard)

	h.handle("/posroles/set", h.setPosRole)
	h.handle("/posroles/delete", h.deletePosRole)
	h.handle("/posroles/view", h.viewPosRoles)
	h.handle("/posroles/refresh", h.refreshPosRoles)

	h.handle("/xproles/set", h.setXPRole)
	h.handle("/xproles/delete", h.deleteXPRole)
	h.handle("/xproles/view", h.viewXPRoles)
	h.handle("/xproles/refresh", h.refreshXPRoles)
}

// tristateOption reads an allow/deny/default option. ok is false when the
// option was not given.
func tristateOption(opts Options, name string) (value *bool, ok bool) {
	v, ok := opts.OptString(name)
	if !ok {
		return nil, false
	}

	switch v {
	case "allow":
		t := true
		return &t, true
	case "deny":
		f := false
		return &f, true
	}
	return nil, true
}

func formatTristate(v *bool) string {
	switch {
	case v == nil:
		return "default"
	case *v:
		return "allow"
	}
	return "deny"
}

// permRole finds the permission role of a role, or nil.
func (h *Handler) permRole(ctx context.Context, guildID, roleID snowflake.ID) (*types.PermRole, error) {
	roles, err := h.db.Model().Role().GetPermRoles(ctx, guildID)
	if err != nil {
		return nil, err
	}

	i := slices.IndexFunc(roles, func(pr *types.PermRole) bool { return pr.RoleID == roleID })
	if i < 0 {
		return nil, nil
	}
	return roles[i], nil
}

// requirePermRole is permRole that fails when the role is not a permission role.
func (h *Handler) requirePermRole(ctx context.Context, req *Request) (*types.PermRole, error) {
	roleID := req.Options.Snowflake(optRole)

	pr, err := h.permRole(ctx, req.GuildID, roleID)
	if err != nil {
		return nil, err
	}
	if pr == nil {
		return nil, userErrorf("<@&%d> is not a permission role.", roleID)
	}
	return pr, nil
}

func (h *Handler) createPermRole(ctx context.Context, req *Request) error {
	roleID := req.Options.Snowflake(optRole)

	existing, err := h.permRole(ctx, req.GuildID, roleID)
	if err != nil {
		return err
	}
	if existing != nil {
		return userErrorf("<@&%d> is already a permission role.", roleID)
	}

	if err := h.db.Model().Guild().EnsureGuild(ctx, req.GuildID); err != nil {
		return err
	}
	if err := h.db.Model().Role().SetPermRole(ctx, &types.PermRole{RoleID: roleID, GuildID: req.GuildID}); err != nil {
		return err
	}

	return req.Reply(ctx, "<@&%d> is now a permission role.", roleID)
}

func (h *Handler) deletePermRole(ctx context.Context, req *Request) error {
	pr, err := h.requirePermRole(ctx, req)
	if err != nil {
		return err
	}

	if err := h.db.Model().Role().DeletePermRole(ctx, pr.RoleID); err != nil {
		return err
	}

	return req.Reply(ctx, "<@&%d> is no longer a permission role.", pr.RoleID)
}

func (h *Handler) viewPermRoles(ctx context.Context, req *Request) error {
	roles, err := h.db.Model().Role().GetPermRoles(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return req.Reply(ctx, "This server has no permission roles.")
	}

	boards, err := h.db.Model().Starboard().GetStarboardsByGuild(ctx, req.GuildID)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(boards))
	for _, sb := range boards {
		names[sb.ID] = sb.Name
	}

	var b strings.Builder
	for _, pr := range roles {
		fmt.Fprintf(&b, "<@&%d>: vote %s, receive-votes %s, obtain-xproles %s\n",
			pr.RoleID, formatTristate(pr.Vote), formatTristate(pr.ReceiveVotes), formatTristate(pr.ObtainXPRoles))
		for _, prs := range pr.Starboards {
			fmt.Fprintf(&b, "- `%s`: vote %s, receive-votes %s\n",
				names[prs.StarboardID], formatTristate(prs.Vote), formatTristate(prs.ReceiveVotes))
		}
	}

	return req.Embed(ctx, discord.Embed{Title: "Permission roles", Description: b.String()})
}

func (h *Handler) editPermRole(ctx context.Context, req *Request) error {
	pr, err := h.requirePermRole(ctx, req)
	if err != nil {
		return err
	}

	if v, ok := tristateOption(req.Options, "vote"); ok {
		pr.Vote = v
	}
	if v, ok := tristateOption(req.Options, "receive-votes"); ok {
		pr.ReceiveVotes = v
	}
	if v, ok := tristateOption(req.Options, "obtain-xproles"); ok {
		pr.ObtainXPRoles = v
	}

	if err := h.db.Model().Role().SetPermRole(ctx, pr); err != nil {
		return err
	}

	return req.Reply(ctx, "<@&%d>: vote %s, receive-votes %s, obtain-xproles %s.",
		pr.RoleID, formatTristate(pr.Vote), formatTristate(pr.ReceiveVotes), formatTristate(pr.ObtainXPRoles))
}

func (h *Handler) editPermRoleStarboard(ctx context.Context, req *Request) error {
	pr, err := h.requirePermRole(ctx, req)
	if err != nil {
		return err
	}
	sb, err := h.starboard(ctx, req, optStarboard)
	if err != nil {
		return err
	}

	prs := &types.PermRoleStarboard{PermRoleID: pr.RoleID, StarboardID: sb.ID}
	if i := slices.IndexFunc(pr.Starboards, func(s *types.PermRoleStarboard) bool {
		return s.StarboardID == sb.ID
	}); i >= 0 {
		prs = pr.Starboards[i]
	}

	if v, ok := tristateOption(req.Options, "vote"); ok {
		prs.Vote = v
	}
	if v, ok := tristateOption(req.Options, "receive-votes"); ok {
		prs.ReceiveVotes = v
	}

	if err := h.db.Model().Role().SetPermRoleStarboard(ctx, prs); err != nil {
		return err
	}

	return req.Reply(ctx, "<@&%d> on `%s`: vote %s, receive-votes %s.",
		pr.RoleID, sb.Name, formatTristate(prs.Vote), formatTristate(prs.ReceiveVotes))
}

func (h *Handler) clearPermRoleStarboard(ctx context.Context, req *Request) error {
	pr, err := h.requirePermRole(ctx, req)
	if err != nil {
		return err
	}
	sb, err := h.starboard(ctx, req, optStarboard)
	if err != nil {
		return err
	}

	if err := h.db.Model().Role().DeletePermRoleStarboard(ctx, pr.RoleID, sb.ID); err != nil {
		return err
	}

	return req.Reply(ctx, "<@&%d> no longer has rights specific to `%s`.", pr.RoleID, sb.Name)
}

// awardRole reads the role option of an award role command. The everyone
// role cannot be awarded.
func awardRole(req *Request) (snowflake.ID, error) {
	roleID := req.Options.Snowflake(optRole)
	if roleID == req.GuildID {
		return 0, userErrorf("The everyone role cannot be awarded.")
	}
	return roleID, nil
}

func (h *Handler) setPosRole(ctx context.Context, req *Request) error {
	roleID, err := awardRole(req)
	if err != nil {
		return err
	}
	maxMembers := int64(req.Options.Int("max-members"))

	xpRoles, err := h.db.Model().Role().GetXPRoles(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(xpRoles, func(r *types.XPRole) bool { return r.RoleID == roleID }) {
		return userErrorf("<@&%d> is already an XP role.", roleID)
	}

	if err := h.db.Model().Guild().EnsureGuild(ctx, req.GuildID); err != nil {
		return err
	}
	err = h.db.Model().Role().SetPosRole(ctx, &types.PosRole{RoleID: roleID, GuildID: req.GuildID, MaxMembers: maxMembers})
	if err != nil {
		return err
	}

	return req.Reply(ctx, "<@&%d> is now held by the top %s by XP.", roleID, humanize.Comma(maxMembers)+" members")
}

func (h *Handler) deletePosRole(ctx context.Context, req *Request) error {
	roleID := req.Options.Snowflake(optRole)

	if err := h.db.Model().Role().DeletePosRole(ctx, roleID); err != nil {
		return err
	}

	return req.Reply(ctx, "<@&%d> is no longer a position role.", roleID)
}

func (h *Handler) viewPosRoles(ctx context.Context, req *Request) error {
	roles, err := h.db.Model().Role().GetPosRoles(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return req.Reply(ctx, "This server has no position roles.")
	}

	var b strings.Builder
	for _, r := range roles {
		fmt.Fprintf(&b, "<@&%d>: top %s members\n", r.RoleID, humanize.Comma(r.MaxMembers))
	}

	return req.Embed(ctx, discord.Embed{Title: "Position roles", Description: b.String()})
}

func (h *Handler) refreshPosRoles(ctx context.Context, req *Request) error {
	if err := h.deps.XP.RefreshPosRoles(ctx, req.GuildID); err != nil {
		return err
	}

	return req.Reply(ctx, "Position roles were reassigned.")
}

func (h *Handler) setXPRole(ctx context.Context, req *Request) error {
	roleID, err := awardRole(req)
	if err != nil {
		return err
	}
	required := int64(req.Options.Int("required"))

	posRoles, err := h.db.Model().Role().GetPosRoles(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(posRoles, func(r *types.PosRole) bool { return r.RoleID == roleID }) {
		return userErrorf("<@&%d> is already a position role.", roleID)
	}

	if err := h.db.Model().Guild().EnsureGuild(ctx, req.GuildID); err != nil {
		return err
	}
	err = h.db.Model().Role().SetXPRole(ctx, &types.XPRole{RoleID: roleID, GuildID: req.GuildID, Required: required})
	if err != nil {
		return err
	}

	return req.Reply(ctx, "<@&%d> is now given at %s XP.", roleID, humanize.Comma(required))
}

func (h *Handler) deleteXPRole(ctx context.Context, req *Request) error {
	roleID := req.Options.Snowflake(optRole)

	if err := h.db.Model().Role().DeleteXPRole(ctx, roleID); err != nil {
		return err
	}

	return req.Reply(ctx, "<@&%d> is no longer an XP role.", roleID)
}

func (h *Handler) viewXPRoles(ctx context.Context, req *Request) error {
	roles, err := h.db.Model().Role().GetXPRoles(ctx, req.GuildID)
	if err != nil {
		return err
	}
	if len(roles) == 0 {
		return req.Reply(ctx, "This server has no XP roles.")
	}

	var b strings.Builder
	for _, r := range roles {
		fmt.Fprintf(&b, "<@&%d>: %s XP\n", r.RoleID, humanize.Comma(r.Required))
	}

	return req.Embed(ctx, discord.Embed{Title: "XP roles", Description: b.String()})
}

func (h *Handler) refreshXPRoles(ctx context.Context, req *Request) error {
	userID := req.Options.Snowflake(optUser)

	if err := h.deps.XP.RefreshMember(ctx, req.GuildID, userID); err != nil {
		return err
	}

	return req.Reply(ctx, "The XP roles of <@%d> were recomputed.", userID)
}
