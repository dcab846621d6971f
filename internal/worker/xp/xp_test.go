package xp

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/starboard/internal/cache"
	"github.com/robalyx/starboard/internal/database/types"
	"github.com/robalyx/starboard/internal/starboard/locks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const guildID snowflake.ID = 100

func ptr[T any](v T) *T { return &v }

type fakeStore struct {
	mu        sync.Mutex
	received  map[snowflake.ID]float32
	xp        map[snowflake.ID]float32
	users     map[snowflake.ID]bool
	xpRoles   []*types.XPRole
	posRoles  []*types.PosRole
	permRoles []*types.PermRole
	top       []*types.Member
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		received: make(map[snowflake.ID]float32),
		xp:       make(map[snowflake.ID]float32),
		users:    make(map[snowflake.ID]bool),
	}
}

func (s *fakeStore) GetReceivedXP(_ context.Context, _, authorID snowflake.ID) (float32, error) {
	return s.received[authorID], nil
}

func (s *fakeStore) EnsureUser(_ context.Context, userID snowflake.ID, isBot bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = isBot
	return nil
}

func (s *fakeStore) EnsureMember(context.Context, snowflake.ID, snowflake.ID, bool) error {
	return nil
}

func (s *fakeStore) SetMemberXP(_ context.Context, _, userID snowflake.ID, xp float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.xp[userID] = xp
	return nil
}

func (s *fakeStore) GetTopMembers(_ context.Context, _ snowflake.ID, limit int) ([]*types.Member, error) {
	return s.top[:min(limit, len(s.top))], nil
}

func (s *fakeStore) GetXPRoles(context.Context, snowflake.ID) ([]*types.XPRole, error) {
	return s.xpRoles, nil
}

func (s *fakeStore) GetPosRoles(context.Context, snowflake.ID) ([]*types.PosRole, error) {
	return s.posRoles, nil
}

func (s *fakeStore) GetPermRoles(context.Context, snowflake.ID) ([]*types.PermRole, error) {
	return s.permRoles, nil
}

type roleEdit struct {
	userID snowflake.ID
	roleID snowflake.ID
	grant  bool
}

type fakeChat struct {
	mu     sync.Mutex
	edits  []roleEdit
	failOn snowflake.ID
}

func (c *fakeChat) record(userID, roleID snowflake.ID, grant bool) error {
	if roleID == c.failOn {
		return &rest.Error{Response: &http.Response{StatusCode: http.StatusForbidden}}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, roleEdit{userID: userID, roleID: roleID, grant: grant})
	return nil
}

func (c *fakeChat) AddMemberRole(_ context.Context, _, userID, roleID snowflake.ID) error {
	return c.record(userID, roleID, true)
}

func (c *fakeChat) RemoveMemberRole(_ context.Context, _, userID, roleID snowflake.ID) error {
	return c.record(userID, roleID, false)
}

func (c *fakeChat) sorted() []roleEdit {
	c.mu.Lock()
	defer c.mu.Unlock()

	edits := slices.Clone(c.edits)
	slices.SortFunc(edits, func(a, b roleEdit) int {
		if a.userID != b.userID {
			return int(a.userID) - int(b.userID)
		}
		return int(a.roleID) - int(b.roleID)
	})
	return edits
}

type fakeLookup struct {
	mu        sync.Mutex
	members   map[snowflake.ID]*cache.Member
	positions map[snowflake.ID]int
}

func newFakeLookup(members ...*cache.Member) *fakeLookup {
	l := &fakeLookup{members: make(map[snowflake.ID]*cache.Member), positions: make(map[snowflake.ID]int)}
	for _, m := range members {
		m.GuildID = guildID
		l.members[m.UserID] = m
	}
	return l
}

func (l *fakeLookup) FogMember(_ context.Context, _, userID snowflake.ID) (*cache.Member, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.members[userID], nil
}

func (l *fakeLookup) PutMember(m *cache.Member) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.members[m.UserID] = m
}

func (l *fakeLookup) MembersWithRole(_, roleID snowflake.ID) []*cache.Member {
	l.mu.Lock()
	defer l.mu.Unlock()

	var members []*cache.Member
	for _, m := range l.members {
		if slices.Contains(m.RoleIDs, roleID) {
			members = append(members, m)
		}
	}
	return members
}

func (l *fakeLookup) RolePositions(context.Context, snowflake.ID) (map[snowflake.ID]int, error) {
	return l.positions, nil
}

func newTestMaintainer(store *fakeStore, chatAPI *fakeChat, lookup *fakeLookup) *Maintainer {
	return New(store, chatAPI, lookup, locks.NewRegistry(), Options{RoleEditInterval: time.Millisecond}, zap.NewNop())
}

func TestXPRoleChanges(t *testing.T) {
	t.Parallel()

	roles := []*types.XPRole{
		{RoleID: 3, Required: 50},
		{RoleID: 2, Required: 20},
		{RoleID: 1, Required: 5},
	}

	tests := []struct {
		name       string
		held       []snowflake.ID
		xp         float32
		allowed    bool
		wantAdd    []snowflake.ID
		wantRemove []snowflake.ID
	}{
		{name: "below every threshold", xp: 2, allowed: true},
		{name: "meets two", xp: 20, allowed: true, wantAdd: []snowflake.ID{2, 1}},
		{name: "already held", held: []snowflake.ID{1, 2}, xp: 25, allowed: true},
		{name: "lost xp", held: []snowflake.ID{3, 1}, xp: 10, allowed: true, wantRemove: []snowflake.ID{3}},
		{name: "not allowed", held: []snowflake.ID{1}, xp: 100, allowed: false, wantRemove: []snowflake.ID{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			add, remove := XPRoleChanges(roles, tt.held, tt.xp, tt.allowed)
			assert.Equal(t, tt.wantAdd, add)
			assert.Equal(t, tt.wantRemove, remove)
		})
	}
}

func TestRefreshMember(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.received[10] = 30
	store.xpRoles = []*types.XPRole{{RoleID: 2, Required: 50}, {RoleID: 1, Required: 10}}

	chatAPI := &fakeChat{}
	lookup := newFakeLookup(&cache.Member{UserID: 10, RoleIDs: []snowflake.ID{2}})

	m := newTestMaintainer(store, chatAPI, lookup)
	require.NoError(t, m.RefreshMember(t.Context(), guildID, 10))

	assert.InDelta(t, 30, store.xp[10], 0.001)
	assert.Equal(t, []roleEdit{
		{userID: 10, roleID: 1, grant: true},
		{userID: 10, roleID: 2, grant: false},
	}, chatAPI.sorted())

	member, err := lookup.FogMember(t.Context(), guildID, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1}, member.RoleIDs)
}

func TestRefreshMemberLeftGuild(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.received[10] = 15
	store.xpRoles = []*types.XPRole{{RoleID: 1, Required: 10}}

	chatAPI := &fakeChat{}
	m := newTestMaintainer(store, chatAPI, newFakeLookup())

	require.NoError(t, m.RefreshMember(t.Context(), guildID, 10))
	assert.InDelta(t, 15, store.xp[10], 0.001)
	assert.Empty(t, chatAPI.sorted())
}

func TestRefreshMemberDeniedXPRoles(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.received[10] = 100
	store.xpRoles = []*types.XPRole{{RoleID: 1, Required: 10}}
	store.permRoles = []*types.PermRole{{RoleID: 7, GuildID: guildID, ObtainXPRoles: ptr(false)}}

	chatAPI := &fakeChat{}
	lookup := newFakeLookup(&cache.Member{UserID: 10, RoleIDs: []snowflake.ID{7, 1}})
	lookup.positions[7] = 3

	m := newTestMaintainer(store, chatAPI, lookup)
	require.NoError(t, m.RefreshMember(t.Context(), guildID, 10))

	assert.Equal(t, []roleEdit{{userID: 10, roleID: 1, grant: false}}, chatAPI.sorted())
}

func TestRefreshMemberSkipsFailedEdits(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.received[10] = 100
	store.xpRoles = []*types.XPRole{{RoleID: 2, Required: 50}, {RoleID: 1, Required: 10}}

	chatAPI := &fakeChat{failOn: 2}
	lookup := newFakeLookup(&cache.Member{UserID: 10})

	m := newTestMaintainer(store, chatAPI, lookup)
	require.NoError(t, m.RefreshMember(t.Context(), guildID, 10))

	assert.Equal(t, []roleEdit{{userID: 10, roleID: 1, grant: true}}, chatAPI.sorted())

	member, err := lookup.FogMember(t.Context(), guildID, 10)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{1}, member.RoleIDs)
}
