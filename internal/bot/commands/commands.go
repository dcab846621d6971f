// Package commands implements the administrator slash command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/starboard/internal/bot/validation"
	"github.com/robalyx/starboard/internal/bot/views"
	"github.com/robalyx/starboard/internal/database"
	"github.com/robalyx/starboard/internal/database/dbretry"
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/robalyx/starboard/internal/starboard/locks"
	"github.com/robalyx/starboard/internal/starboard/refresh"
	"go.uber.org/zap"
)

// genericError is shown when a command fails for a reason the administrator cannot fix.
const genericError = "Something went wrong while running this command. Please try again later."

// Options reads the options of a slash command.
// discord.SlashCommandInteractionData satisfies it.
type Options interface {
	String(name string) string
	OptString(name string) (string, bool)
	Int(name string) int
	OptInt(name string) (int, bool)
	Bool(name string) bool
	OptBool(name string) (bool, bool)
	Snowflake(name string) snowflake.ID
	OptSnowflake(name string) (snowflake.ID, bool)
}

// Invalidator drops cached per-guild config sets after a config change.
type Invalidator interface {
	InvalidateVoteEmojis(guildID snowflake.ID)
	InvalidateAutostarChannels(guildID snowflake.ID)
}

// Refresher re-renders and recounts original messages.
type Refresher interface {
	Refresh(ctx context.Context, messageID snowflake.ID, force bool) error
	RefreshState(ctx context.Context, messageID snowflake.ID) error
	Recount(ctx context.Context, guildID, channelID, messageID snowflake.ID) error
}

// RoleRefresher reconciles XP and position roles.
type RoleRefresher interface {
	RefreshMember(ctx context.Context, guildID, userID snowflake.ID) error
	RefreshPosRoles(ctx context.Context, guildID snowflake.ID) error
}

// Deps are the collaborators of the command handlers.
type Deps struct {
	DB          database.Client
	Cache       Invalidator
	Refresh     Refresher
	XP          RoleRefresher
	Views       *views.Registry
	Status      rueidis.Client
	Latency     func() time.Duration
	OwnerIDs    []snowflake.ID
	MaxRegex    int
	ViewTimeout time.Duration
}

// Request is one slash command invocation.
type Request struct {
	GuildID snowflake.ID
	UserID  snowflake.ID
	Path    string
	Options Options
	// Show replaces the deferred response.
	Show views.Show
}

// Reply answers the request with text.
func (r *Request) Reply(ctx context.Context, format string, args ...any) error {
	content := fmt.Sprintf(format, args...)
	return r.Show(ctx, discord.MessageUpdate{
		Content:    &content,
		Embeds:     &[]discord.Embed{},
		Components: &[]discord.LayoutComponent{},
	})
}

// Embed answers the request with a single embed.
func (r *Request) Embed(ctx context.Context, embed discord.Embed) error {
	return r.Show(ctx, discord.MessageUpdate{Embeds: &[]discord.Embed{embed}})
}

// route handles one command path.
type route func(ctx context.Context, req *Request) error

// userError is a failure the administrator caused and can fix.
type userError struct {
	message string
}

func (e *userError) Error() string {
	return e.message
}

func userErrorf(format string, args ...any) error {
	return &userError{message: fmt.Sprintf(format, args...)}
}

// Handler routes slash commands, autocomplete requests and view clicks.
type Handler struct {
	deps    Deps
	db      database.Client
	routes  map[string]route
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Handler. timeout bounds each command.
func New(deps Deps, timeout time.Duration, logger *zap.Logger) *Handler {
	if deps.ViewTimeout <= 0 {
		deps.ViewTimeout = 5 * time.Minute
	}
	if deps.Latency == nil {
		deps.Latency = func() time.Duration { return 0 }
	}

	h := &Handler{
		deps:    deps,
		db:      deps.DB,
		routes:  make(map[string]route),
		timeout: timeout,
		logger:  logger.Named("commands"),
	}

	h.registerStarboards()
	h.registerOverrides()
	h.registerAutostar()
	h.registerRoles()
	h.registerFilters()
	h.registerExclusiveGroups()
	h.registerPremium()
	h.registerUtils()

	return h
}

func (h *Handler) handle(path string, fn route) {
	h.routes[path] = fn
}

// HandleCommand runs a slash command. It always answers the interaction.
func (h *Handler) HandleCommand(ctx context.Context, event *events.ApplicationCommandInteractionCreate) {
	data := event.SlashCommandInteractionData()
	path := data.CommandPath()

	if err := event.DeferCreateMessage(true); err != nil {
		h.logger.Error("Failed to defer command", zap.Error(err), zap.String("command", path))
		return
	}

	req := &Request{
		UserID:  event.User().ID,
		Path:    path,
		Options: data,
		Show: func(ctx context.Context, msg discord.MessageUpdate) error {
			_, err := event.Client().Rest.UpdateInteractionResponse(
				event.ApplicationID(), event.Token(), msg, rest.WithCtx(ctx),
			)
			return err
		},
	}
	if guildID := event.GuildID(); guildID != nil {
		req.GuildID = *guildID
	}

	h.Run(ctx, req)
}

// Run executes a request and renders its error, if any.
func (h *Handler) Run(ctx context.Context, req *Request) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	err := h.dispatch(ctx, req)

	h.logger.Debug("Command handled",
		zap.String("command", req.Path),
		zap.Uint64("guildID", uint64(req.GuildID)),
		zap.Duration("duration", time.Since(start)))

	if err == nil {
		return
	}

	message := h.errorMessage(err, req)
	if err := req.Reply(context.WithoutCancel(ctx), "%s", message); err != nil {
		h.logger.Error("Failed to send command error", zap.Error(err), zap.String("command", req.Path))
	}
}

func (h *Handler) dispatch(ctx context.Context, req *Request) error {
	fn, ok := h.routes[req.Path]
	if !ok {
		return userErrorf("This command is not available.")
	}
	if req.GuildID == 0 && req.Path != pingPath {
		return userErrorf("This command can only be used in a server.")
	}

	return fn(ctx, req)
}

// errorMessage renders err for the administrator. Unexpected errors are logged.
func (h *Handler) errorMessage(err error, req *Request) string {
	if verr, ok := validation.As(err); ok {
		return verr.Message
	}

	var uerr *userError
	if errors.As(err, &uerr) {
		return uerr.message
	}

	switch {
	case errors.Is(err, models.ErrNotFound):
		return "That does not exist."
	case errors.Is(err, dbretry.ErrAlreadyExists):
		return "That name is already taken."
	case errors.Is(err, refresh.ErrAlreadyRecounting):
		return "This message is already being recounted."
	case errors.Is(err, refresh.ErrMessageNotFound):
		return "That message no longer exists."
	case errors.Is(err, locks.ErrAlreadyRunning):
		return "This is already running. Please wait for it to finish."
	case errors.Is(err, models.ErrInsufficientCredits):
		return "You do not have enough credits."
	case errors.Is(err, context.DeadlineExceeded):
		return "This command took too long. Please try again."
	}

	h.logger.Error("Command failed",
		zap.Error(err),
		zap.String("command", req.Path),
		zap.Uint64("guildID", uint64(req.GuildID)),
		zap.Uint64("userID", uint64(req.UserID)))

	return genericError
}

// HandleComponent delivers a button click to its view.
func (h *Handler) HandleComponent(event *events.ComponentInteractionCreate) {
	customID := event.Data.CustomID()
	if !views.Owns(customID) {
		return
	}

	delivered := h.deps.Views.Deliver(customID, uint64(event.User().ID),
		func(msg discord.MessageUpdate) error { return event.UpdateMessage(msg) },
		func() error { return event.DeferUpdateMessage() },
	)
	if delivered {
		return
	}

	err := event.CreateMessage(discord.MessageCreate{
		Content: "This view has expired. Run the command again.",
		Flags:   discord.MessageFlagEphemeral,
	})
	if err != nil {
		h.logger.Debug("Failed to answer expired view", zap.Error(err))
	}
}

// isOwner reports whether the user may run owner-only commands.
func (h *Handler) isOwner(userID snowflake.ID) bool {
	return slices.Contains(h.deps.OwnerIDs, userID)
}

// isPremium reports whether a guild currently has premium.
func (h *Handler) isPremium(ctx context.Context, guildID snowflake.ID) (bool, error) {
	return h.db.Model().Guild().IsPremium(ctx, guildID)
}

// invalidate drops cached config sets after a starboard, override or autostar change.
func (h *Handler) invalidate(guildID snowflake.ID) {
	h.deps.Cache.InvalidateVoteEmojis(guildID)
	h.deps.Cache.InvalidateAutostarChannels(guildID)
}
