package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Voicebox/internal/app"
	"github.com/dkeye/Voicebox/internal/app/orch"
	"github.com/dkeye/Voicebox/internal/app/session"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/dkeye/Voicebox/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeConn) TrySend(b core.Frame) error {
	f.mu.Lock()
	f.frames = append(f.frames, b)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Close() {}

func (f *fakeConn) ofType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, b := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(b, &m))
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeConn) lastOfType(t *testing.T, typ string) map[string]any {
	t.Helper()
	all := f.ofType(t, typ)
	require.NotEmpty(t, all, "no %q message", typ)
	return all[len(all)-1]
}

// quietTransport accepts every call and never completes on its own.
type quietTransport struct {
	mu     sync.Mutex
	seq    core.PlaybackID
	n      int
	live   map[core.TransportHandle]bool
	played []string
}

func (q *quietTransport) Connect(_ context.Context, target string) (core.TransportHandle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.n++
	h := core.TransportHandle(fmt.Sprintf("%s-%d", target, q.n))
	q.live[h] = true
	return h, nil
}

func (q *quietTransport) Play(_ context.Context, _ core.TransportHandle, locator string) (core.PlaybackID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.played = append(q.played, locator)
	return q.seq, nil
}

func (q *quietTransport) Stop(core.TransportHandle)                                {}
func (q *quietTransport) OnCompletion(core.TransportHandle, func(core.PlaybackID)) {}

func (q *quietTransport) Connected(h core.TransportHandle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.live[h]
}

func (q *quietTransport) Disconnect(h core.TransportHandle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.live, h)
}

type rig struct {
	ctl       *SignalWSController
	orch      *orch.Orchestrator
	repo      *store.Repository
	transport *quietTransport
}

func newRig(t *testing.T) *rig {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	repo, err := store.New(db, nil)
	require.NoError(t, err)

	dir := app.NewDirectory()
	rooms := app.NewRoomManager()
	o := &orch.Orchestrator{Directory: dir, Rooms: rooms, Policy: app.NewSimplePolicy(3)}
	p := NewPresenter(o)
	tr := &quietTransport{live: map[core.TransportHandle]bool{}}
	o.Sessions = session.NewRegistry(tr, repo, p, orch.Presence{Directory: dir, Rooms: rooms, BotName: "Voicebox"})
	t.Cleanup(o.Sessions.Shutdown)

	return &rig{
		ctl:       &SignalWSController{Orch: o, Presenter: p, Limiter: NewRoomRateLimiter(100, time.Second)},
		orch:      o,
		repo:      repo,
		transport: tr,
	}
}

func (r *rig) connect(sid string) *fakeConn {
	conn, _ := r.open(sid)
	return conn
}

func (r *rig) open(sid string) (*fakeConn, core.MemberSession) {
	conn := &fakeConn{}
	user := r.orch.Directory.GetOrCreateUser(core.SessionID(sid))
	sess := core.NewMemberSession(domain.NewMember(user)).UpdateSignal(conn)
	r.orch.Bind(core.SessionID(sid), sess, func() {})
	return conn, sess
}

func (r *rig) send(sid string, conn *fakeConn, msg string) {
	r.ctl.handleSignal(context.Background(), core.SessionID(sid), conn, []byte(msg))
}

func TestJoinRenameAndWhoAmI(t *testing.T) {
	r := newRig(t)
	alice := r.connect("alice")
	bob := r.connect("bob")

	r.send("alice", alice, `{"type":"join","room":"lobby","name":"Alice"}`)
	state := alice.lastOfType(t, "room_state")
	assert.Equal(t, "lobby", state["room"])
	assert.EqualValues(t, 1, state["count"])
	assert.Equal(t, false, state["playing"])

	r.send("bob", bob, `{"type":"join","room":"lobby"}`)
	joined := alice.lastOfType(t, "member_joined")
	assert.Equal(t, "bob", joined["user"].(map[string]any)["id"])

	r.send("bob", bob, `{"type":"rename","name":"Bobby"}`)
	who := bob.lastOfType(t, "whoami")
	assert.Equal(t, "Bobby", who["username"])
	assert.Equal(t, "lobby", who["room"])
	assert.Equal(t, "Bobby", alice.lastOfType(t, "member_updated")["user"].(map[string]any)["username"])

	r.send("bob", bob, `{"type":"rename","name":""}`)
	assert.Equal(t, "invalid_name", bob.lastOfType(t, "error")["error"])

	r.send("bob", bob, `{"type":"ping"}`)
	assert.Len(t, bob.ofType(t, "pong"), 1)
}

func TestSummonRequiresRoom(t *testing.T) {
	r := newRig(t)
	alice := r.connect("alice")

	r.send("alice", alice, `{"type":"summon"}`)
	assert.Contains(t, alice.lastOfType(t, "error")["error"], "same voice channel")
	assert.Empty(t, r.orch.Sessions.Rooms())
}

func TestSummonBroadcastsViewAndLateJoinerSeesIt(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.repo.Import(ctx, "lobby", "carol", []store.ImportEntry{
		{Name: "Calm", Locator: "https://example.com/calm.ogg", Category: domain.CategoryRotation},
	})

	alice := r.connect("alice")
	r.send("alice", alice, `{"type":"join","room":"lobby"}`)
	r.send("alice", alice, `{"type":"summon"}`)

	view := alice.lastOfType(t, "view")["view"].(map[string]any)
	assert.Equal(t, "idle", view["mode"])
	assert.Equal(t, "alice", alice.lastOfType(t, "player_started")["summoned_by"])

	r.send("alice", alice, `{"type":"action","control":"rotation"}`)
	view = alice.lastOfType(t, "view")["view"].(map[string]any)
	assert.Equal(t, "rotation", view["mode"])
	assert.Equal(t, "Calm", view["now_playing"])
	assert.Equal(t, []string{"https://example.com/calm.ogg"}, r.transport.played)

	bob := r.connect("bob")
	r.send("bob", bob, `{"type":"join","room":"lobby"}`)
	assert.Equal(t, true, bob.lastOfType(t, "room_state")["playing"])
	late := bob.lastOfType(t, "view")["view"].(map[string]any)
	assert.Equal(t, "Calm", late["now_playing"])

	r.send("bob", bob, `{"type":"summon"}`)
	assert.Contains(t, bob.lastOfType(t, "error")["error"], "already active")
}

func TestActionErrorsGoOnlyToActor(t *testing.T) {
	r := newRig(t)
	alice := r.connect("alice")
	bob := r.connect("bob")
	r.send("alice", alice, `{"type":"join","room":"lobby"}`)
	r.send("bob", bob, `{"type":"join","room":"lobby"}`)

	r.send("alice", alice, `{"type":"action","control":"rotation"}`)
	assert.Contains(t, alice.lastOfType(t, "error")["error"], "not currently in any voice channel")

	r.send("alice", alice, `{"type":"summon"}`)
	r.send("alice", alice, `{"type":"action","control":"rotation"}`)
	assert.Contains(t, alice.lastOfType(t, "error")["error"], "ambient")

	r.send("alice", alice, `{"type":"action","control":"bogus"}`)
	assert.Contains(t, alice.lastOfType(t, "error")["error"], "unknown control")

	r.send("alice", alice, `{"type":"force","track":"Nope"}`)
	assert.Contains(t, alice.lastOfType(t, "error")["error"], "not available")

	assert.Empty(t, bob.ofType(t, "error"))
}

func TestDismissAndLeave(t *testing.T) {
	r := newRig(t)
	alice := r.connect("alice")
	r.send("alice", alice, `{"type":"join","room":"lobby"}`)
	r.send("alice", alice, `{"type":"summon"}`)
	require.Equal(t, []domain.RoomID{"lobby"}, r.orch.Sessions.Rooms())

	r.send("alice", alice, `{"type":"dismiss"}`)
	assert.Empty(t, r.orch.Sessions.Rooms())
	assert.Equal(t, true, alice.lastOfType(t, "view")["view"].(map[string]any)["closed"])

	r.send("alice", alice, `{"type":"leave"}`)
	assert.Len(t, alice.ofType(t, "left"), 1)
	_, _, inRoom := r.orch.Directory.RoomOf("alice")
	assert.False(t, inRoom)
}

func TestReleaseAnnouncesAndForgetsRateHistory(t *testing.T) {
	r := newRig(t)
	_, stale := r.open("alice")
	alice, sess := r.open("alice")
	bob := r.connect("bob")
	r.send("alice", alice, `{"type":"join","room":"lobby"}`)
	r.send("bob", bob, `{"type":"join","room":"lobby"}`)
	r.send("alice", alice, `{"type":"summon"}`)

	r.ctl.Limiter.mu.Lock()
	_, tracked := r.ctl.Limiter.history["alice"]
	r.ctl.Limiter.mu.Unlock()
	require.True(t, tracked)

	r.ctl.release("alice", stale)
	assert.Empty(t, bob.ofType(t, "member_left"))

	r.ctl.release("alice", sess)
	left := bob.lastOfType(t, "member_left")
	assert.Equal(t, "alice", left["user"].(map[string]any)["id"])
	room, _ := r.orch.Rooms.GetRoom("lobby")
	assert.False(t, room.HasUser("alice"))

	r.ctl.Limiter.mu.Lock()
	_, tracked = r.ctl.Limiter.history["alice"]
	r.ctl.Limiter.mu.Unlock()
	assert.False(t, tracked)
}
