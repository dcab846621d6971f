// Package bot connects the starboard engine to the Discord gateway.
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	disgocache "github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/disgo/sharding"
	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"github.com/robalyx/starboard/internal/bot/commands"
	botevents "github.com/robalyx/starboard/internal/bot/events"
	"github.com/robalyx/starboard/internal/bot/views"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database"
	"github.com/robalyx/starboard/internal/database/models"
	"github.com/robalyx/starboard/internal/discord/chat"
	"github.com/robalyx/starboard/internal/redis"
	"github.com/robalyx/starboard/internal/setup"
	"github.com/robalyx/starboard/internal/starboard/cooldown"
	"github.com/robalyx/starboard/internal/starboard/filter"
	"github.com/robalyx/starboard/internal/starboard/locks"
	"github.com/robalyx/starboard/internal/starboard/refresh"
	"github.com/robalyx/starboard/internal/starboard/resolver"
	"github.com/robalyx/starboard/internal/worker/core"
	"github.com/robalyx/starboard/internal/worker/xp"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// maxBootstraps caps how many guilds are loaded at once after connecting.
const maxBootstraps = 4

// intents are the gateway intents the starboard needs.
var intents = []gateway.Intents{
	gateway.IntentGuilds,
	gateway.IntentGuildMembers,
	gateway.IntentGuildMessages,
	gateway.IntentGuildMessageReactions,
	gateway.IntentMessageContent,
}

// autostarStore joins the models autostar channels read from.
type autostarStore struct {
	*models.AutostarModel
	*models.FilterModel
}

// Bot owns the Discord client and routes gateway events to the starboard engine.
type Bot struct {
	client   *bot.Client
	db       database.Client
	chat     *chat.Client
	cache    *cache.Cache
	refresh  *refresh.Coordinator
	xp       *xp.Maintainer
	autostar *Autostar
	commands *commands.Handler
	guilds   *botevents.GuildEventHandler

	status   rueidis.Client
	posRoles core.Task

	shardIDs     []int
	eventTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup
	logger *zap.Logger
}

// New creates the Discord client and wires every starboard component to it.
func New(app *setup.App) (*Bot, error) {
	cfg := app.Config
	sb := cfg.Bot.Starboard

	shardIDs, err := cfg.Bot.Discord.Sharding.ShardIDs()
	if err != nil {
		return nil, err
	}

	messageClient, err := app.RedisManager.GetClient(redis.MessageCacheDBIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get message cache client: %w", err)
	}
	statusClient, err := app.RedisManager.GetClient(redis.WorkerStatusDBIndex)
	if err != nil {
		return nil, fmt.Errorf("failed to get worker status client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bot{
		db:           app.DB,
		status:       statusClient,
		shardIDs:     shardIDs,
		eventTimeout: time.Duration(sb.EventTimeout) * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
		logger:       app.Logger.Named("bot"),
	}

	opts := []bot.ConfigOpt{
		bot.WithCacheConfigOpts(disgocache.WithCaches(disgocache.FlagsNone)),
		bot.WithRestClientConfigOpts(rest.WithHTTPClient(chat.NewHTTPClient(app.RequestTimeout))),
		bot.WithEventListeners(b.listeners()),
	}
	if len(shardIDs) > 0 {
		opts = append(opts, bot.WithShardManagerConfigOpts(
			sharding.WithShardIDs(shardIDs...),
			sharding.WithShardCount(cfg.Bot.Discord.Sharding.Count),
			sharding.WithAutoScaling(false),
			sharding.WithGatewayConfigOpts(gateway.WithIntents(intents...)),
		))
	} else {
		opts = append(opts, bot.WithGatewayConfigOpts(gateway.WithIntents(intents...)))
	}

	client, err := disgo.New(cfg.Bot.Discord.Token, opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}
	b.client = client

	repo := app.DB.Model()
	b.chat = chat.New(client.Rest, app.Logger)

	configs := resolver.New(repo.Starboard(), app.Logger)
	loader := &configLoader{resolver: configs, autostar: repo.Autostar()}
	b.cache = cache.New(
		b.chat, loader,
		cache.NewRedisMessageStore(messageClient, time.Duration(sb.MessageCacheTTL)*time.Second),
		app.Logger,
	)

	b.guilds = botevents.NewGuildEventHandler(b.chat, b.cache, maxBootstraps, b.eventTimeout, app.Logger)

	filters := filter.NewEngine(
		filter.NewRegexCache(time.Duration(sb.RegexTimeout)*time.Millisecond, sb.MaxRegexLength),
		app.Logger,
	)
	cooldowns, err := cooldown.New(sb.CooldownCapacity)
	if err != nil {
		cancel()
		return nil, err
	}
	registry := locks.NewRegistry()

	b.xp = xp.New(xp.NewStore(app.DB), b.chat, b.cache, registry, xp.Options{
		Parallelism: sb.MaxDispatch,
		Timeout:     b.eventTimeout,
	}, app.Logger)

	b.refresh = refresh.New(
		refresh.NewStore(app.DB), b.chat, b.cache, configs, filters, cooldowns, registry,
		refresh.Options{
			SelfID:      client.ApplicationID,
			Parallelism: sb.MaxDispatch,
			OnVote:      b.xp.Trigger,
		},
		app.Logger,
	)

	b.autostar = NewAutostar(
		&autostarStore{AutostarModel: repo.Autostar(), FilterModel: repo.Filter()},
		b.chat, b.cache, filters, app.Logger,
	)

	ownerIDs := make([]snowflake.ID, len(cfg.Bot.Discord.OwnerIDs))
	for i, id := range cfg.Bot.Discord.OwnerIDs {
		ownerIDs[i] = snowflake.ID(id)
	}

	viewTimeout := time.Duration(sb.ViewTimeout) * time.Second
	b.commands = commands.New(commands.Deps{
		DB:          app.DB,
		Cache:       b.cache,
		Refresh:     b.refresh,
		XP:          b.xp,
		Views:       views.NewRegistry(),
		Status:      statusClient,
		Latency:     b.latency,
		OwnerIDs:    ownerIDs,
		MaxRegex:    sb.MaxRegexLength,
		ViewTimeout: viewTimeout,
	}, viewTimeout+b.eventTimeout, app.Logger)

	b.posRoles = core.Task{
		Name:         redis.WorkerPosRoles,
		Interval:     time.Duration(cfg.Worker.PosRoleInterval) * time.Second,
		StartupDelay: time.Duration(cfg.Worker.StartupDelay) * time.Millisecond,
		Run:          b.refreshPosRoles,
	}

	return b, nil
}

// Start registers the slash commands and connects to the gateway.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Registering commands")

	if _, err := b.client.Rest.SetGlobalCommands(b.client.ApplicationID, commands.Definitions()); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	b.wg.Go(func() {
		core.RunPeriodic(b.ctx, b.posRoles, b.status, b.logger)
	})

	if len(b.shardIDs) > 0 {
		b.logger.Info("Starting bot", zap.Ints("shards", b.shardIDs))
		return b.client.OpenShardManager(ctx)
	}

	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// refreshPosRoles reconciles the position roles of every loaded guild that has any.
func (b *Bot) refreshPosRoles(ctx context.Context) error {
	guildIDs, err := b.db.Model().Role().GetGuildsWithPosRoles(ctx)
	if err != nil {
		return err
	}

	for _, guildID := range guildIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !b.hasGuild(guildID) {
			continue
		}

		err := b.xp.RefreshPosRoles(ctx, guildID)
		if err != nil && !errors.Is(err, locks.ErrAlreadyRunning) {
			b.logger.Warn("Failed to refresh position roles",
				zap.Uint64("guildID", uint64(guildID)),
				zap.Error(err))
		}
	}

	return nil
}

// hasGuild reports whether the guild was loaded by this process's shards.
func (b *Bot) hasGuild(guildID snowflake.ID) bool {
	var loaded bool
	b.cache.WithGuild(guildID, func(g *cache.Guild) {
		loaded = g != nil && g.RolesLoaded
	})
	return loaded
}

// Close disconnects from the gateway and waits for running handlers.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")

	b.client.Close(ctx)
	b.cancel()
	b.wg.Wait()
}

// latency returns the heartbeat latency of the first gateway connection.
func (b *Bot) latency() time.Duration {
	if len(b.shardIDs) > 0 {
		if shard := b.client.ShardManager.Shard(b.shardIDs[0]); shard != nil {
			return shard.Latency()
		}
		return 0
	}

	if b.client.Gateway == nil {
		return 0
	}
	return b.client.Gateway.Latency()
}
