package orch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Voicebox/internal/app"
	"github.com/dkeye/Voicebox/internal/app/session"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conn struct {
	mu     sync.Mutex
	full   bool
	frames int
}

func (c *conn) TrySend(core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return errors.New("full")
	}
	c.frames++
	return nil
}

func (c *conn) Close() {}

type occupancy struct {
	mu        sync.Mutex
	last      map[domain.RoomID]int
	forgotten []domain.RoomID
}

func (o *occupancy) Observe(room domain.RoomID, n int) {
	o.mu.Lock()
	o.last[room] = n
	o.mu.Unlock()
}

func (o *occupancy) Forget(room domain.RoomID) {
	o.mu.Lock()
	o.forgotten = append(o.forgotten, room)
	delete(o.last, room)
	o.mu.Unlock()
}

func (o *occupancy) get(room domain.RoomID) (int, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	n, ok := o.last[room]
	return n, ok
}

type idleTransport struct{}

func (idleTransport) Connect(_ context.Context, target string) (core.TransportHandle, error) {
	return core.TransportHandle(target), nil
}
func (idleTransport) Play(context.Context, core.TransportHandle, string) (core.PlaybackID, error) {
	return 1, nil
}
func (idleTransport) Stop(core.TransportHandle)                                {}
func (idleTransport) OnCompletion(core.TransportHandle, func(core.PlaybackID)) {}
func (idleTransport) Connected(core.TransportHandle) bool                      { return true }
func (idleTransport) Disconnect(core.TransportHandle)                          {}

type emptyCatalog struct{}

func (emptyCatalog) List(context.Context, domain.RoomID, core.TrackFilter) ([]domain.TrackRef, error) {
	return nil, nil
}
func (emptyCatalog) Shared(context.Context, domain.Category) ([]domain.TrackRef, error) {
	return nil, nil
}
func (emptyCatalog) Settings(context.Context, domain.RoomID) (domain.RoomSettings, error) {
	return domain.RoomSettings{}, nil
}
func (emptyCatalog) SaveJukeboxPolicy(context.Context, domain.RoomID, domain.JukeboxPolicy) error {
	return nil
}
func (emptyCatalog) ProfileImage(context.Context, domain.RoomID, domain.UserID) (string, bool) {
	return "", false
}

type nullPresentation struct{}

func (nullPresentation) Send(context.Context, string, core.View) (core.MessageHandle, error) {
	return "view", nil
}
func (nullPresentation) Edit(context.Context, core.MessageHandle, core.View) error { return nil }

func newOrch(t *testing.T) (*Orchestrator, *occupancy) {
	t.Helper()
	dir := app.NewDirectory()
	rooms := app.NewRoomManager()
	occ := &occupancy{last: map[domain.RoomID]int{}}
	o := &Orchestrator{Directory: dir, Rooms: rooms, Policy: app.NewSimplePolicy(1), Watcher: occ}
	o.Sessions = session.NewRegistry(idleTransport{}, emptyCatalog{}, nullPresentation{}, Presence{Directory: dir, Rooms: rooms, BotName: "Voicebox"})
	t.Cleanup(o.Sessions.Shutdown)
	return o, occ
}

func bind(o *Orchestrator, sid core.SessionID, c *conn) core.MemberSession {
	user := o.Directory.GetOrCreateUser(sid)
	sess := core.NewMemberSession(domain.NewMember(user)).UpdateSignal(c)
	o.Bind(sid, sess, nil)
	return sess
}

func TestJoinMovesBetweenRooms(t *testing.T) {
	o, _ := newOrch(t)
	bind(o, "alice", &conn{})

	require.True(t, o.Join("alice", "a"))
	require.True(t, o.Join("alice", "b"))

	a, _ := o.Rooms.GetRoom("a")
	b, _ := o.Rooms.GetRoom("b")
	assert.False(t, a.HasUser("alice"))
	assert.True(t, b.HasUser("alice"))

	assert.False(t, o.Join("ghost", "a"), "unbound listeners cannot join")
}

func TestOccupancyFollowsMembership(t *testing.T) {
	o, occ := newOrch(t)
	ctx := context.Background()
	bind(o, "alice", &conn{})
	bind(o, "bob", &conn{})
	require.True(t, o.Join("alice", "lobby"))

	_, tracked := occ.get("lobby")
	assert.False(t, tracked, "no session, nothing to watch")

	_, err := o.Summon(ctx, "lobby", "bob")
	require.ErrorIs(t, err, core.ErrPermissionDenied)

	info, err := o.Summon(ctx, "lobby", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID("lobby"), info.Room)
	n, _ := occ.get("lobby")
	assert.Equal(t, 2, n)

	require.True(t, o.Join("bob", "lobby"))
	n, _ = occ.get("lobby")
	assert.Equal(t, 3, n)

	o.KickBySID("alice")
	o.KickBySID("bob")
	n, _ = occ.get("lobby")
	assert.Equal(t, 1, n, "the player alone")

	require.True(t, o.Join("alice", "lobby"))
	require.NoError(t, o.Dispatch(ctx, "lobby", "alice", core.Action{Kind: core.ActionDismiss}))
	_, tracked = occ.get("lobby")
	assert.False(t, tracked)
}

func TestDisconnectIgnoresReplacedConnection(t *testing.T) {
	o, _ := newOrch(t)
	old := bind(o, "alice", &conn{})
	require.True(t, o.Join("alice", "lobby"))
	fresh := bind(o, "alice", &conn{})

	assert.False(t, o.Disconnect("alice", old))
	cur, ok := o.Directory.GetSession("alice")
	require.True(t, ok)
	assert.Same(t, fresh, cur)

	assert.True(t, o.Disconnect("alice", fresh))
	_, ok = o.Directory.GetSession("alice")
	assert.False(t, ok)
}

func TestReconnectLeavesNoGhostMember(t *testing.T) {
	o, occ := newOrch(t)
	old := bind(o, "alice", &conn{})
	require.True(t, o.Join("alice", "lobby"))
	_, err := o.Summon(context.Background(), "lobby", "alice")
	require.NoError(t, err)
	n, _ := occ.get("lobby")
	require.Equal(t, 2, n)

	fresh := bind(o, "alice", &conn{})
	room, _ := o.Rooms.GetRoom("lobby")
	assert.False(t, room.HasUser("alice"))
	assert.False(t, o.Disconnect("alice", old))

	require.True(t, o.Join("alice", "lobby"))
	assert.True(t, room.HasUser("alice"))
	assert.True(t, o.Disconnect("alice", fresh))

	assert.False(t, room.HasUser("alice"))
	assert.Zero(t, room.MemberCount())
	n, _ = occ.get("lobby")
	assert.Equal(t, 1, n)
}

func TestBroadcastKicksPersistentlySlowListener(t *testing.T) {
	o, _ := newOrch(t)
	fast, slow := &conn{}, &conn{full: true}
	bind(o, "fast", fast)
	bind(o, "slow", slow)
	require.True(t, o.Join("fast", "lobby"))
	require.True(t, o.Join("slow", "lobby"))

	o.BroadcastRoom("lobby", core.Frame(`{}`))
	room, _ := o.Rooms.GetRoom("lobby")
	assert.True(t, room.HasUser("slow"), "one drop is tolerated")

	o.BroadcastRoom("lobby", core.Frame(`{}`))
	assert.False(t, room.HasUser("slow"))
	assert.True(t, room.HasUser("fast"))
	assert.Equal(t, 2, fast.frames)
}

func TestEvictRoomEndsSession(t *testing.T) {
	o, occ := newOrch(t)
	bind(o, "alice", &conn{})
	require.True(t, o.Join("alice", "lobby"))
	_, err := o.Summon(context.Background(), "lobby", "alice")
	require.NoError(t, err)

	o.EvictRoom("lobby")
	_, ok := o.Sessions.Lookup("lobby")
	assert.False(t, ok)
	_, ok = o.Rooms.GetRoom("lobby")
	assert.False(t, ok)
	assert.Contains(t, occ.forgotten, domain.RoomID("lobby"))
	assert.Empty(t, o.RoomInfos())
}

func TestPresence(t *testing.T) {
	o, _ := newOrch(t)
	p := Presence{Directory: o.Directory, Rooms: o.Rooms, BotName: "Voicebox"}
	bind(o, "alice", &conn{})
	require.NoError(t, o.Directory.UpdateUsername("alice", "Alice"))
	require.True(t, o.Join("alice", "lobby"))

	assert.True(t, p.InVoice("lobby", "alice"))
	assert.False(t, p.InVoice("lobby", "bob"))
	assert.False(t, p.InVoice("den", "alice"))

	assert.Equal(t, "Alice", p.DisplayName("alice"))
	assert.Equal(t, "Voicebox", p.DisplayName(""))
	assert.Equal(t, "stranger", p.DisplayName("stranger"))
}
