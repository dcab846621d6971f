package refresh

import (
	"context"
	"net/http"
	"slices"
	"sync"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/discord/chat"
	"github.com/robalyx/starboard/internal/starboard/resolver"
)

func httpError(code int) error {
	return &rest.Error{Response: &http.Response{StatusCode: code}}
}

type rowKey struct {
	messageID   snowflake.ID
	starboardID int64
}

type voteKey struct {
	messageID   snowflake.ID
	starboardID int64
	userID      snowflake.ID
}

type fakeStore struct {
	mu        sync.Mutex
	messages  map[snowflake.ID]*types.Message
	rows      map[rowKey]*types.StarboardMessage
	votes     map[voteKey]*types.Vote
	webhooks  map[int64]*snowflake.ID
	permroles []*types.PermRole
	groups    map[int64]*types.FilterGroup
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		messages: make(map[snowflake.ID]*types.Message),
		rows:     make(map[rowKey]*types.StarboardMessage),
		votes:    make(map[voteKey]*types.Vote),
		webhooks: make(map[int64]*snowflake.ID),
		groups:   make(map[int64]*types.FilterGroup),
	}
}

func (s *fakeStore) GetMessage(_ context.Context, id snowflake.ID) (*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.messages[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, nil
}

func (s *fakeStore) GetOrCreateMessage(_ context.Context, msg *types.Message) (*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.messages[msg.MessageID]; ok {
		m.IsNSFW = m.IsNSFW || msg.IsNSFW
		copied := *m
		return &copied, nil
	}

	stored := *msg
	s.messages[msg.MessageID] = &stored
	copied := stored
	return &copied, nil
}

func (s *fakeStore) SetTrashed(_ context.Context, id snowflake.ID, trashed bool, reason *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[id].Trashed = trashed
	s.messages[id].TrashReason = reason
	return nil
}

func (s *fakeStore) setForced(id snowflake.ID, starboardIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[id].ForcedTo = starboardIDs
	return nil
}

func (s *fakeStore) SetFrozen(_ context.Context, id snowflake.ID, frozen bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[id].Frozen = frozen
	return nil
}

func (s *fakeStore) GetStarboardMessages(_ context.Context, id snowflake.ID) ([]*types.StarboardMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []*types.StarboardMessage
	for k, row := range s.rows {
		if k.messageID == id {
			copied := *row
			rows = append(rows, &copied)
		}
	}
	return rows, nil
}

func (s *fakeStore) GetStarboardMessageByPost(_ context.Context, postID snowflake.ID) (*types.StarboardMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.StarboardMessageID != nil && *row.StarboardMessageID == postID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) SaveStarboardMessage(_ context.Context, row *types.StarboardMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *row
	s.rows[rowKey{row.MessageID, row.StarboardID}] = &copied
	return nil
}

func (s *fakeStore) ClearStarboardMessage(_ context.Context, id snowflake.ID, starboardID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[rowKey{id, starboardID}]; ok {
		row.StarboardMessageID = nil
	}
	return nil
}

func (s *fakeStore) row(id snowflake.ID, starboardID int64) *types.StarboardMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[rowKey{id, starboardID}]; ok {
		copied := *row
		return &copied
	}
	return nil
}

func (s *fakeStore) GetVotesByMessage(_ context.Context, id snowflake.ID) ([]*types.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var votes []*types.Vote
	for k, v := range s.votes {
		if k.messageID == id {
			copied := *v
			votes = append(votes, &copied)
		}
	}
	return votes, nil
}

func (s *fakeStore) UpsertVote(_ context.Context, v *types.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *v
	s.votes[voteKey{v.MessageID, v.StarboardID, v.UserID}] = &copied
	return nil
}

func (s *fakeStore) DeleteVote(
	_ context.Context, messageID, userID snowflake.ID, starboardIDs []int64, isDownvote bool,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.votes {
		if k.messageID == messageID && k.userID == userID && v.IsDownvote == isDownvote &&
			slices.Contains(starboardIDs, k.starboardID) {
			delete(s.votes, k)
		}
	}
	return nil
}

func (s *fakeStore) DeleteVotesByMessage(_ context.Context, messageID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.votes {
		if k.messageID == messageID {
			delete(s.votes, k)
		}
	}
	return nil
}

func (s *fakeStore) ReplaceVotes(ctx context.Context, messageID snowflake.ID, votes []*types.Vote) error {
	_ = s.DeleteVotesByMessage(ctx, messageID)
	for _, v := range votes {
		_ = s.UpsertVote(ctx, v)
	}
	return nil
}

func (s *fakeStore) voteCount(messageID snowflake.ID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for k := range s.votes {
		if k.messageID == messageID {
			n++
		}
	}
	return n
}

func (s *fakeStore) SetWebhook(_ context.Context, starboardID int64, webhookID *snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.webhooks[starboardID] = webhookID
	return nil
}

func (s *fakeStore) GetPermRoles(context.Context, snowflake.ID) ([]*types.PermRole, error) {
	return s.permroles, nil
}

func (s *fakeStore) GetGroups(_ context.Context, ids []int64) ([]*types.FilterGroup, error) {
	var groups []*types.FilterGroup
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

type sentMessage struct {
	channelID snowflake.ID
	id        snowflake.ID
	content   string
	webhook   bool
}

type fakeChat struct {
	mu               sync.Mutex
	nextID           snowflake.ID
	sent             []sentMessage
	updates          map[snowflake.ID][]string
	deleted          []snowflake.ID
	reactions        []string
	removed          []snowflake.ID
	reactionUsers    map[string][]discord.User
	createdWebhooks  []string
	executeErr       error
	updateErr        error
	webhookUpdateErr error
}

func newFakeChat() *fakeChat {
	return &fakeChat{
		nextID:        10_000,
		updates:       make(map[snowflake.ID][]string),
		reactionUsers: make(map[string][]discord.User),
	}
}

func (c *fakeChat) record(channelID snowflake.ID, content string, webhook bool) *discord.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.sent = append(c.sent, sentMessage{channelID: channelID, id: c.nextID, content: content, webhook: webhook})
	return &discord.Message{ID: c.nextID, ChannelID: channelID, Content: content}
}

func (c *fakeChat) sentTo(channelID snowflake.ID) []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []sentMessage
	for _, m := range c.sent {
		if m.channelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

func (c *fakeChat) CreateMessage(_ context.Context, channelID snowflake.ID, msg discord.MessageCreate) (*discord.Message, error) {
	return c.record(channelID, msg.Content, false), nil
}

func (c *fakeChat) UpdateMessage(
	_ context.Context, channelID, messageID snowflake.ID, msg discord.MessageUpdate,
) (*discord.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.updateErr != nil {
		return nil, c.updateErr
	}
	c.updates[messageID] = append(c.updates[messageID], *msg.Content)
	return &discord.Message{ID: messageID, ChannelID: channelID}, nil
}

func (c *fakeChat) DeleteMessage(_ context.Context, _, messageID snowflake.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *fakeChat) AddReaction(_ context.Context, _, _ snowflake.ID, emoji string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reactions = append(c.reactions, emoji)
	return nil
}

func (c *fakeChat) RemoveUserReaction(_ context.Context, _, _ snowflake.ID, _ string, userID snowflake.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removed = append(c.removed, userID)
	return nil
}

func (c *fakeChat) GetReactionUsers(_ context.Context, _, _ snowflake.ID, emoji string) ([]discord.User, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reactionUsers[emoji], nil
}

func (c *fakeChat) CreateWebhook(_ context.Context, channelID snowflake.ID, name string) (*chat.Webhook, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.createdWebhooks = append(c.createdWebhooks, name)
	return &chat.Webhook{ID: 7_000, Token: "token", ChannelID: channelID}, nil
}

func (c *fakeChat) ExecuteWebhook(
	_ context.Context, hook *chat.Webhook, msg discord.WebhookMessageCreate,
) (*discord.Message, error) {
	if c.executeErr != nil {
		return nil, c.executeErr
	}
	return c.record(hook.ChannelID, msg.Content, true), nil
}

func (c *fakeChat) UpdateWebhookMessage(
	_ context.Context, hook *chat.Webhook, messageID snowflake.ID, msg discord.WebhookMessageUpdate,
) (*discord.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webhookUpdateErr != nil {
		return nil, c.webhookUpdateErr
	}
	c.updates[messageID] = append(c.updates[messageID], *msg.Content)
	return &discord.Message{ID: messageID, ChannelID: hook.ChannelID}, nil
}

func (c *fakeChat) DeleteWebhookMessage(_ context.Context, _ *chat.Webhook, messageID snowflake.ID) error {
	return c.DeleteMessage(context.Background(), 0, messageID)
}

type fakeLookup struct {
	mu       sync.Mutex
	messages map[snowflake.ID]*cache.Message
	members  map[snowflake.ID]*cache.Member
	channels map[snowflake.ID]*cache.Channel
	webhooks map[snowflake.ID]*chat.Webhook
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		messages: make(map[snowflake.ID]*cache.Message),
		members:  make(map[snowflake.ID]*cache.Member),
		channels: make(map[snowflake.ID]*cache.Channel),
		webhooks: make(map[snowflake.ID]*chat.Webhook),
	}
}

func (l *fakeLookup) FogMessage(_ context.Context, _, messageID snowflake.ID) (*cache.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.messages[messageID], nil
}

func (l *fakeLookup) PutMessage(_ context.Context, m *cache.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages[m.ID] = m
}

func (l *fakeLookup) MarkMessageDeleted(_ context.Context, messageID snowflake.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.messages, messageID)
}

func (l *fakeLookup) FogChannel(_ context.Context, _, channelID snowflake.ID) (*cache.Channel, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.channels[channelID], nil
}

func (l *fakeLookup) FogMember(_ context.Context, _, userID snowflake.ID) (*cache.Member, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.members[userID], nil
}

func (l *fakeLookup) FogUser(_ context.Context, userID snowflake.ID) (*cache.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.members[userID]; ok {
		return &cache.User{ID: userID, DisplayName: m.DisplayName, IsBot: m.IsBot}, nil
	}
	return nil, nil
}

func (l *fakeLookup) FogWebhook(_ context.Context, webhookID snowflake.ID) (*chat.Webhook, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.webhooks[webhookID], nil
}

func (l *fakeLookup) PutWebhook(w *chat.Webhook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.webhooks[w.ID] = w
}

func (l *fakeLookup) EvictWebhook(webhookID snowflake.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.webhooks, webhookID)
}

func (l *fakeLookup) ParentOf(context.Context, snowflake.ID, snowflake.ID) (*snowflake.ID, error) {
	return nil, nil
}

func (l *fakeLookup) ChannelNSFW(_ context.Context, _, channelID snowflake.ID) (*bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.channels[channelID]
	if !ok {
		return nil, nil
	}
	nsfw := ch.NSFW
	return &nsfw, nil
}

func (l *fakeLookup) RolePositions(context.Context, snowflake.ID) (map[snowflake.ID]int, error) {
	return map[snowflake.ID]int{}, nil
}

func (l *fakeLookup) IsVoteEmoji(context.Context, snowflake.ID, string) (bool, error) {
	return true, nil
}

type fakeConfigs struct {
	store      *fakeStore
	starboards []*types.Starboard
}

func (f *fakeConfigs) ListForChannel(
	context.Context, snowflake.ID, snowflake.ID, *snowflake.ID,
) ([]*resolver.Config, error) {
	f.store.mu.Lock()
	starboards := make([]*types.Starboard, 0, len(f.starboards))
	for _, sb := range f.starboards {
		copied := *sb
		copied.WebhookID = f.store.webhooks[sb.ID]
		starboards = append(starboards, &copied)
	}
	f.store.mu.Unlock()

	return resolver.Resolve(starboards, nil, 0, nil)
}
