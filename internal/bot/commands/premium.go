package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/dustin/go-humanize"
	"github.com/robalyx/starboard/internal/database/service"
	"github.com/robalyx/starboard/internal/database/types/enum"
)

func (h *Handler) registerPremium() {
	h.handle("/premium/info", h.premiumInfo)
	h.handle("/premium/redeem", h.redeemPremium)
	h.handle("/premium/autoredeem", h.setAutoredeem)
	h.handle("/premium/give-credits", h.giveCredits)

	h.handle("/premium-locks/refresh", h.refreshLocks)
	h.handle("/premium-locks/move-starboard", h.moveStarboardLock)
	h.handle("/premium-locks/move-autostar", h.moveAutostarLock)
}

func (h *Handler) premiumInfo(ctx context.Context, req *Request) error {
	guild, err := h.db.Model().Guild().GetGuild(ctx, req.GuildID)
	if err != nil {
		return err
	}
	user, err := h.db.Model().Guild().GetUser(ctx, req.UserID)
	if err != nil {
		return err
	}
	member, err := h.db.Model().Guild().GetMember(ctx, req.GuildID, req.UserID)
	if err != nil {
		return err
	}

	var b strings.Builder
	if guild.IsPremium(time.Now()) {
		fmt.Fprintf(&b, "This server has premium until <t:%d:F> (%s).\n",
			guild.PremiumEnd.Unix(), humanize.Time(*guild.PremiumEnd))
	} else {
		limits := h.db.Service().Premium().Limits()
		fmt.Fprintf(&b, "This server does not have premium. It may have %d starboards and %d autostar channels.\n",
			limits.Starboards, limits.AutostarChannels)
	}
	fmt.Fprintf(&b, "You have %s credits.\n", humanize.Comma(user.Credits))
	if member.AutoredeemEnabled {
		b.WriteString("Autoredeem is enabled for you in this server.\n")
	}

	return req.Embed(ctx, discord.Embed{Title: "Premium", Description: b.String()})
}

func (h *Handler) redeemPremium(ctx context.Context, req *Request) error {
	months := req.Options.Int("months")

	ok, err := h.deps.Views.Confirm(ctx, req.Show,
		fmt.Sprintf("Spend credits on %s of premium for this server?", monthsText(months)),
		uint64(req.UserID), h.deps.ViewTimeout)
	if err != nil || !ok {
		return err
	}

	if err := h.db.Model().Guild().EnsureGuild(ctx, req.GuildID); err != nil {
		return err
	}
	end, err := h.db.Service().Premium().Redeem(ctx, req.GuildID, req.UserID, months)
	if err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Redeemed %s of premium. This server now has premium until <t:%d:F>.",
		monthsText(months), end.Unix())
}

func monthsText(months int) string {
	if months == 1 {
		return "1 month"
	}
	return fmt.Sprintf("%d months", months)
}

func (h *Handler) setAutoredeem(ctx context.Context, req *Request) error {
	enabled := req.Options.Bool("enabled")

	if err := h.db.Model().Guild().EnsureGuild(ctx, req.GuildID); err != nil {
		return err
	}
	if err := h.db.Model().Guild().EnsureUser(ctx, req.UserID, false); err != nil {
		return err
	}
	if err := h.db.Model().Guild().EnsureMember(ctx, req.GuildID, req.UserID, false); err != nil {
		return err
	}
	if err := h.db.Model().Guild().SetAutoredeem(ctx, req.GuildID, req.UserID, enabled); err != nil {
		return err
	}

	if enabled {
		return req.Reply(ctx, "Your credits will be used to keep premium active in this server.")
	}
	return req.Reply(ctx, "Autoredeem is disabled for you in this server.")
}

func (h *Handler) giveCredits(ctx context.Context, req *Request) error {
	if !h.isOwner(req.UserID) {
		return userErrorf("Only the bot owners can give credits.")
	}

	userID := req.Options.Snowflake(optUser)
	credits := int64(req.Options.Int("credits"))

	if err := h.db.Model().Guild().EnsureUser(ctx, userID, false); err != nil {
		return err
	}
	if err := h.db.Model().Guild().AddCredits(ctx, userID, credits); err != nil {
		return err
	}

	return req.Reply(ctx, "Gave %s credits to <@%d>.", humanize.Comma(credits), userID)
}

func (h *Handler) refreshLocks(ctx context.Context, req *Request) error {
	if err := h.db.Service().Premium().RefreshLocks(ctx, req.GuildID); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Premium locks were refreshed.")
}

func (h *Handler) moveStarboardLock(ctx context.Context, req *Request) error {
	from, err := h.starboard(ctx, req, optFrom)
	if err != nil {
		return err
	}
	to, err := h.starboard(ctx, req, optTo)
	if err != nil {
		return err
	}

	if err := h.moveLock(ctx, enum.PremiumLockKindStarboard, from.ID, to.ID); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Unlocked starboard `%s` and locked `%s`.", from.Name, to.Name)
}

func (h *Handler) moveAutostarLock(ctx context.Context, req *Request) error {
	from, err := h.autostar(ctx, req, optFrom)
	if err != nil {
		return err
	}
	to, err := h.autostar(ctx, req, optTo)
	if err != nil {
		return err
	}

	if err := h.moveLock(ctx, enum.PremiumLockKindAutostar, from.ID, to.ID); err != nil {
		return err
	}
	h.invalidate(req.GuildID)

	return req.Reply(ctx, "Unlocked autostar channel `%s` and locked `%s`.", from.Name, to.Name)
}

// moveLock moves a premium lock and explains the refusals.
func (h *Handler) moveLock(ctx context.Context, kind enum.PremiumLockKind, fromID, toID int64) error {
	err := h.db.Service().Premium().MoveLock(ctx, kind, fromID, toID)

	switch {
	case errors.Is(err, service.ErrSourceNotLocked):
		return userErrorf("The %s you are moving the lock from is not locked.", kindName(kind))
	case errors.Is(err, service.ErrTargetLocked):
		return userErrorf("The %s you are moving the lock to is already locked.", kindName(kind))
	case errors.Is(err, service.ErrLockRowMissing), errors.Is(err, service.ErrLockGuildMismatch):
		return userErrorf("That %s no longer exists.", kindName(kind))
	}
	return err
}

func kindName(kind enum.PremiumLockKind) string {
	if kind == enum.PremiumLockKindAutostar {
		return "autostar channel"
	}
	return "starboard"
}
