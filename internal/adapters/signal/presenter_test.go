package signal

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentFrame struct {
	room domain.RoomID
	data core.Frame
}

type recorder struct {
	mu     sync.Mutex
	frames []sentFrame
}

func (r *recorder) BroadcastRoom(room domain.RoomID, data core.Frame) {
	r.mu.Lock()
	r.frames = append(r.frames, sentFrame{room, data})
	r.mu.Unlock()
}

func (r *recorder) last(t *testing.T) (domain.RoomID, map[string]any) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.frames)
	f := r.frames[len(r.frames)-1]
	var m map[string]any
	require.NoError(t, json.Unmarshal(f.data, &m))
	return f.room, m
}

func TestPresenterSendAndEdit(t *testing.T) {
	out := &recorder{}
	p := NewPresenter(out)
	ctx := context.Background()

	h, err := p.Send(ctx, "lobby", core.View{Mode: "Idle", Title: "Voicebox"})
	require.NoError(t, err)
	require.NotEmpty(t, h)

	room, msg := out.last(t)
	assert.Equal(t, domain.RoomID("lobby"), room)
	assert.Equal(t, "view", msg["type"])
	assert.Equal(t, string(h), msg["handle"])

	require.NoError(t, p.Edit(ctx, h, core.View{Mode: "Rotation", NowPlaying: "a"}))
	_, msg = out.last(t)
	view := msg["view"].(map[string]any)
	assert.Equal(t, "Rotation", view["mode"])

	frame, ok := p.Current("lobby")
	require.True(t, ok)
	assert.Contains(t, string(frame), `"now_playing":"a"`)
}

func TestPresenterEditUnknownIsStale(t *testing.T) {
	p := NewPresenter(&recorder{})
	err := p.Edit(context.Background(), "ghost", core.View{})
	assert.ErrorIs(t, err, core.ErrStale)

	_, err = p.Send(context.Background(), "", core.View{})
	assert.ErrorIs(t, err, ErrNoRoom)
}

func TestPresenterClearMakesEditsStale(t *testing.T) {
	out := &recorder{}
	p := NewPresenter(out)
	ctx := context.Background()

	h, err := p.Send(ctx, "lobby", core.View{})
	require.NoError(t, err)
	require.True(t, p.Clear("lobby"))
	assert.False(t, p.Clear("lobby"))

	_, msg := out.last(t)
	assert.Equal(t, "view_cleared", msg["type"])
	assert.ErrorIs(t, p.Edit(ctx, h, core.View{}), core.ErrStale)
	_, ok := p.Current("lobby")
	assert.False(t, ok)
}

func TestPresenterSendRetiresPreviousView(t *testing.T) {
	p := NewPresenter(&recorder{})
	ctx := context.Background()

	old, err := p.Send(ctx, "lobby", core.View{})
	require.NoError(t, err)
	fresh, err := p.Send(ctx, "lobby", core.View{})
	require.NoError(t, err)

	assert.ErrorIs(t, p.Edit(ctx, old, core.View{}), core.ErrStale)
	assert.NoError(t, p.Edit(ctx, fresh, core.View{}))

	other, err := p.Send(ctx, "den", core.View{})
	require.NoError(t, err)
	assert.NoError(t, p.Edit(ctx, other, core.View{}))
	assert.NoError(t, p.Edit(ctx, fresh, core.View{}))
}
