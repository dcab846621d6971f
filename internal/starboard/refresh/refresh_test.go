package refresh

import (
	"context"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/database/types/enum"
	"github.com/robalyx/starboard/internal/starboard/cooldown"
	"github.com/robalyx/starboard/internal/starboard/filter"
	"github.com/robalyx/starboard/internal/starboard/locks"
	"github.com/robalyx/starboard/internal/starboard/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	guildID     snowflake.ID = 100
	channelID   snowflake.ID = 200
	messageID   snowflake.ID = 500
	authorID    snowflake.ID = 10
	selfID      snowflake.ID = 1
	sbChannelID snowflake.ID = 900
	sb2Channel  snowflake.ID = 901
)

type harness struct {
	store   *fakeStore
	chat    *fakeChat
	lookup  *fakeLookup
	configs *fakeConfigs
	locks   *locks.Registry
	coord   *Coordinator
}

func starboard(id int64, name string, channel snowflake.ID, mutate func(s *types.StarboardSettings)) *types.Starboard {
	settings := types.DefaultSettings()
	settings.AutoreactUpvote = false
	settings.AutoreactDownvote = false
	if mutate != nil {
		mutate(&settings)
	}

	return &types.Starboard{ID: id, GuildID: guildID, Name: name, ChannelID: channel, Settings: settings}
}

func newHarness(t *testing.T, starboards ...*types.Starboard) *harness {
	t.Helper()

	store := newFakeStore()
	lookup := newFakeLookup()
	lookup.channels[channelID] = &cache.Channel{ID: channelID, GuildID: guildID}
	lookup.channels[sbChannelID] = &cache.Channel{ID: sbChannelID, GuildID: guildID}
	lookup.channels[sb2Channel] = &cache.Channel{ID: sb2Channel, GuildID: guildID}
	lookup.messages[messageID] = &cache.Message{
		ID:        messageID,
		GuildID:   guildID,
		ChannelID: channelID,
		AuthorID:  authorID,
		Content:   "look at this",
		CreatedAt: time.Now().Add(-time.Minute),
	}
	lookup.members[authorID] = &cache.Member{GuildID: guildID, UserID: authorID, DisplayName: "a1"}

	configs := &fakeConfigs{store: store, starboards: starboards}
	registry := locks.NewRegistry()

	cooldowns, err := cooldown.New(100)
	require.NoError(t, err)

	h := &harness{
		store:   store,
		chat:    newFakeChat(),
		lookup:  lookup,
		configs: configs,
		locks:   registry,
	}
	h.coord = New(
		store, h.chat, lookup, configs,
		filter.NewEngine(filter.NewRegexCache(time.Second, 512), zap.NewNop()),
		cooldowns, registry, Options{SelfID: selfID}, zap.NewNop(),
	)

	return h
}

func (h *harness) react(t *testing.T, userID snowflake.ID, emoji string) {
	t.Helper()

	h.lookup.members[userID] = &cache.Member{GuildID: guildID, UserID: userID}
	require.NoError(t, h.coord.HandleReactionAdd(context.Background(), &Reaction{
		GuildID:   guildID,
		ChannelID: channelID,
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	}))
}

func (h *harness) unreact(t *testing.T, userID snowflake.ID, emoji string) {
	t.Helper()

	require.NoError(t, h.coord.HandleReactionRemove(context.Background(), &Reaction{
		GuildID:   guildID,
		ChannelID: channelID,
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
	}))
}

func TestSendThreshold(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))

	h.react(t, 11, "⭐")
	h.react(t, 12, "⭐")
	assert.Empty(t, h.chat.sentTo(sbChannelID))

	h.react(t, 13, "⭐")

	sent := h.chat.sentTo(sbChannelID)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].content, "3")
	assert.False(t, sent[0].webhook)

	row := h.store.row(messageID, 1)
	require.NotNil(t, row)
	require.NotNil(t, row.StarboardMessageID)
	assert.Equal(t, sent[0].id, *row.StarboardMessageID)
	assert.Equal(t, int64(3), row.LastKnownPointCount)
}

func TestSelfVoteDenied(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))

	h.react(t, authorID, "⭐")

	assert.Equal(t, []snowflake.ID{authorID}, h.chat.removed)
	assert.Zero(t, h.store.voteCount(messageID))
}

func TestOwnReactionsIgnored(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))

	h.react(t, selfID, "⭐")

	assert.Empty(t, h.chat.removed)
	assert.Zero(t, h.store.voteCount(messageID))
}

func TestRemoveBelowThresholdKeepsPost(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))
	for _, u := range []snowflake.ID{11, 12, 13} {
		h.react(t, u, "⭐")
	}

	h.unreact(t, 11, "⭐")

	row := h.store.row(messageID, 1)
	require.NotNil(t, row)
	require.NotNil(t, row.StarboardMessageID)
	assert.Equal(t, int64(3), row.LastKnownPointCount)
	assert.Empty(t, h.chat.updates)
	assert.Empty(t, h.chat.deleted)
	assert.Equal(t, 2, h.store.voteCount(messageID))
}

func TestRemoveAtRequiredRemove(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
	}))

	h.react(t, 11, "⭐")
	sent := h.chat.sentTo(sbChannelID)
	require.Len(t, sent, 1)

	h.unreact(t, 11, "⭐")

	assert.Equal(t, []snowflake.ID{sent[0].id}, h.chat.deleted)
	row := h.store.row(messageID, 1)
	require.NotNil(t, row)
	assert.Nil(t, row.StarboardMessageID)
}

func TestTrashPropagation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))
	for _, u := range []snowflake.ID{11, 12, 13} {
		h.react(t, u, "⭐")
	}
	h.unreact(t, 11, "⭐")

	require.NoError(t, h.store.SetTrashed(ctx, messageID, true, nil))
	require.NoError(t, h.coord.Refresh(ctx, messageID, true))

	postID := h.chat.sentTo(sbChannelID)[0].id
	require.NotEmpty(t, h.chat.updates[postID])
	assert.Equal(t, "trashed message 2", h.chat.updates[postID][len(h.chat.updates[postID])-1])
	assert.Equal(t, int64(2), h.store.row(messageID, 1).LastKnownPointCount)
}

func TestStateChangesRerenderUnchangedPoints(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))
	for _, u := range []snowflake.ID{11, 12, 13} {
		h.react(t, u, "⭐")
	}
	postID := h.chat.sentTo(sbChannelID)[0].id
	last := func() string {
		updates := h.chat.updates[postID]
		require.NotEmpty(t, updates)
		return updates[len(updates)-1]
	}

	// A plain refresh with the same points leaves the post alone.
	require.NoError(t, h.coord.Refresh(ctx, messageID, false))
	before := len(h.chat.updates[postID])

	require.NoError(t, h.store.SetTrashed(ctx, messageID, true, nil))
	require.NoError(t, h.coord.RefreshState(ctx, messageID))
	assert.Len(t, h.chat.updates[postID], before+1)
	assert.Equal(t, "trashed message 3", last())

	require.NoError(t, h.store.SetTrashed(ctx, messageID, false, nil))
	require.NoError(t, h.coord.RefreshState(ctx, messageID))
	assert.NotContains(t, last(), "trashed")
	assert.Contains(t, last(), "3")

	require.NoError(t, h.store.SetFrozen(ctx, messageID, true))
	require.NoError(t, h.coord.RefreshState(ctx, messageID))
	assert.Contains(t, last(), "❄️")

	assert.Equal(t, int64(3), h.store.row(messageID, 1).LastKnownPointCount)
}

func TestExclusiveGroup(t *testing.T) {
	t.Parallel()

	group := int64(1)
	h := newHarness(t,
		starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
			s.ExclusiveGroup = &group
			s.ExclusiveGroupPriority = 2
		}),
		starboard(2, "s2", sb2Channel, func(s *types.StarboardSettings) {
			s.ExclusiveGroup = &group
			s.ExclusiveGroupPriority = 1
		}),
	)

	for _, u := range []snowflake.ID{11, 12, 13} {
		h.react(t, u, "⭐")
	}

	assert.Len(t, h.chat.sentTo(sbChannelID), 1)
	assert.Empty(t, h.chat.sentTo(sb2Channel))
}

func TestNSFWMessageNotPostedToSafeChannel(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
	}))
	h.lookup.channels[channelID].NSFW = true

	h.react(t, 11, "⭐")

	assert.Empty(t, h.chat.sentTo(sbChannelID))
	assert.True(t, h.store.messages[messageID].IsNSFW)
}

func TestForcedBypassesThreshold(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))
	h.react(t, 11, "⭐")

	require.NoError(t, h.store.setForced(messageID, []int64{1}))
	require.NoError(t, h.coord.Refresh(ctx, messageID, true))

	sent := h.chat.sentTo(sbChannelID)
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].content, "1")
}

func TestRequirementsBlockNewPosts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
		s.RequireImage = true
		s.RemoveInvalidReactions = false
	}))

	h.react(t, 11, "⭐")

	assert.Empty(t, h.chat.sentTo(sbChannelID))
	assert.Zero(t, h.store.voteCount(messageID))
	assert.Empty(t, h.chat.removed)
}

func TestCooldownDeniesVotes(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.CooldownEnabled = true
		s.CooldownCount = 1
		s.CooldownPeriod = 60
	}))

	h.react(t, 11, "⭐")
	assert.Equal(t, 1, h.store.voteCount(messageID))

	other := snowflake.ID(501)
	h.lookup.messages[other] = &cache.Message{ID: other, GuildID: guildID, ChannelID: channelID, AuthorID: authorID}
	require.NoError(t, h.coord.HandleReactionAdd(context.Background(), &Reaction{
		GuildID: guildID, ChannelID: channelID, MessageID: other, UserID: 11, Emoji: "⭐",
	}))

	assert.Zero(t, h.store.voteCount(other))
	assert.Equal(t, []snowflake.ID{11}, h.chat.removed)
}

func TestWebhookSending(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
		s.UseWebhook = true
	}))

	h.react(t, 11, "⭐")

	sent := h.chat.sentTo(sbChannelID)
	require.Len(t, sent, 1)
	assert.True(t, sent[0].webhook)
	assert.Equal(t, []string{"Webhook for 's1'"}, h.chat.createdWebhooks)
	require.NotNil(t, h.store.webhooks[1])
	assert.Equal(t, snowflake.ID(7_000), *h.store.webhooks[1])

	h.react(t, 12, "⭐")
	postID := sent[0].id
	assert.Equal(t, []string{"⭐ 2"}, h.chat.updates[postID])
	assert.Len(t, h.chat.createdWebhooks, 1)
}

func TestDeletedWebhookFallsBackToBot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
		s.UseWebhook = true
	}))
	h.chat.executeErr = httpError(404)

	h.react(t, 11, "⭐")

	sent := h.chat.sentTo(sbChannelID)
	require.Len(t, sent, 1)
	assert.False(t, sent[0].webhook)
	assert.Nil(t, h.store.webhooks[1])
	assert.Empty(t, h.lookup.webhooks)
}

func TestForbiddenSendIsNotFatal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
		s.UseWebhook = true
	}))
	h.chat.executeErr = httpError(403)

	h.react(t, 11, "⭐")

	assert.Nil(t, h.store.row(messageID, 1))
}

func TestAutoreact(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
		s.AutoreactUpvote = true
		s.DownvoteEmojis = []string{"123456789012345678"}
		s.AutoreactDownvote = true
	}))

	h.react(t, 11, "⭐")

	assert.Equal(t, []string{"⭐", "_:123456789012345678"}, h.chat.reactions)
}

func TestLinkDeletes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
		s.LinkDeletes = true
	}))
	h.react(t, 11, "⭐")
	postID := h.chat.sentTo(sbChannelID)[0].id

	require.NoError(t, h.coord.HandleMessageDelete(ctx, messageID))

	assert.Equal(t, []snowflake.ID{postID}, h.chat.deleted)
	assert.Nil(t, h.store.row(messageID, 1).StarboardMessageID)
}

func TestLinkEdits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
	}))
	h.react(t, 11, "⭐")
	postID := h.chat.sentTo(sbChannelID)[0].id

	edited := *h.lookup.messages[messageID]
	edited.Content = "edited"
	require.NoError(t, h.coord.HandleMessageUpdate(ctx, &edited))

	assert.Len(t, h.chat.updates[postID], 1)
}

func TestPostDeletedOnDelete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		onDelete  enum.OnDelete
		reposted  bool
		trashed   bool
		frozen    bool
		keepsPost bool
	}{
		{name: "repost", onDelete: enum.OnDeleteRepost, reposted: true},
		{name: "ignore", onDelete: enum.OnDeleteIgnore, keepsPost: true},
		{name: "trash all", onDelete: enum.OnDeleteTrashAll, trashed: true},
		{name: "freeze all", onDelete: enum.OnDeleteFreezeAll, frozen: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
				s.Required = 1
				s.OnDelete = tt.onDelete
			}))
			h.react(t, 11, "⭐")
			postID := h.chat.sentTo(sbChannelID)[0].id

			require.NoError(t, h.coord.HandleMessageDelete(ctx, postID))

			msg := h.store.messages[messageID]
			assert.Equal(t, tt.trashed, msg.Trashed)
			assert.Equal(t, tt.frozen, msg.Frozen)

			sent := h.chat.sentTo(sbChannelID)
			row := h.store.row(messageID, 1)
			switch {
			case tt.reposted:
				require.Len(t, sent, 2)
				assert.Equal(t, sent[1].id, *row.StarboardMessageID)
			case tt.keepsPost:
				require.Len(t, sent, 1)
				assert.Equal(t, postID, *row.StarboardMessageID)
			default:
				require.Len(t, sent, 1)
				assert.Nil(t, row.StarboardMessageID)
			}
		})
	}
}

func TestVoteOnPostCountsForOriginal(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, func(s *types.StarboardSettings) {
		s.Required = 1
	}))
	h.react(t, 11, "⭐")
	postID := h.chat.sentTo(sbChannelID)[0].id

	h.lookup.members[12] = &cache.Member{GuildID: guildID, UserID: 12}
	require.NoError(t, h.coord.HandleReactionAdd(context.Background(), &Reaction{
		GuildID: guildID, ChannelID: sbChannelID, MessageID: postID, UserID: 12, Emoji: "⭐",
	}))

	assert.Equal(t, 2, h.store.voteCount(messageID))
	assert.Equal(t, []string{"⭐ 2"}, h.chat.updates[postID])
}

func TestRecount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))
	h.chat.reactionUsers["⭐"] = []discord.User{{ID: 11}, {ID: 12}, {ID: 13}, {ID: authorID}, {ID: selfID}, {ID: 14, Bot: true}}

	require.NoError(t, h.coord.Recount(ctx, guildID, channelID, messageID))

	assert.Equal(t, 3, h.store.voteCount(messageID))
	assert.Len(t, h.chat.sentTo(sbChannelID), 1)
}

func TestRecountAlreadyRunning(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))

	guard := h.locks.TryLock(locks.VoteRecount, uint64(messageID))
	require.NotNil(t, guard)
	defer guard.Release()

	err := h.coord.Recount(context.Background(), guildID, channelID, messageID)
	assert.ErrorIs(t, err, ErrAlreadyRecounting)
}

func TestRecountMissingMessage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))

	err := h.coord.Recount(context.Background(), guildID, channelID, 999)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestRefreshUntrackedMessage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))

	require.NoError(t, h.coord.Refresh(context.Background(), messageID, false))
	assert.Empty(t, h.chat.sent)
}

func TestRefreshQueuesBehindHolder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))

	guard := h.locks.TryLock(locks.PostUpdate, uint64(messageID))
	require.NotNil(t, guard)

	require.NoError(t, h.coord.Refresh(context.Background(), messageID, false))
	queued, ok := h.coord.pending.Load(messageID)
	assert.True(t, ok)
	assert.Equal(t, reasonVote, queued)

	done := make(chan error, 1)
	go func() {
		done <- h.coord.Refresh(context.Background(), messageID, true)
	}()

	select {
	case <-done:
		t.Fatal("forced refresh did not wait for the lock")
	case <-time.After(50 * time.Millisecond):
	}

	guard.Release()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("forced refresh did not run after the lock was released")
	}

	_, ok = h.coord.pending.Load(messageID)
	assert.False(t, ok)
}

type panickingConfigs struct{}

func (panickingConfigs) ListForChannel(
	context.Context, snowflake.ID, snowflake.ID, *snowflake.ID,
) ([]*resolver.Config, error) {
	panic("config lookup failed")
}

func TestRefreshReleasesLockOnPanic(t *testing.T) {
	t.Parallel()

	h := newHarness(t, starboard(1, "s1", sbChannelID, nil))
	h.react(t, 11, "⭐")
	h.coord.configs = panickingConfigs{}

	assert.Panics(t, func() {
		_ = h.coord.Refresh(context.Background(), messageID, true)
	})
	assert.False(t, h.locks.Held(locks.PostUpdate, uint64(messageID)))

	h.coord.configs = h.configs
	require.NoError(t, h.coord.Refresh(context.Background(), messageID, true))
}
