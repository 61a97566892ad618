package playback

import (
	"context"
	"errors"
	"testing"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTransport struct {
	seq          core.PlaybackID
	played       []string
	stops        int
	disconnected bool
	failNext     error
}

func (s *stubTransport) Connect(context.Context, string) (core.TransportHandle, error) {
	return "h", nil
}

func (s *stubTransport) Play(_ context.Context, _ core.TransportHandle, locator string) (core.PlaybackID, error) {
	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return 0, err
	}
	s.seq++
	s.played = append(s.played, locator)
	return s.seq, nil
}

func (s *stubTransport) Stop(core.TransportHandle)                             { s.stops++ }
func (s *stubTransport) OnCompletion(core.TransportHandle, func(core.PlaybackID)) {}
func (s *stubTransport) Connected(core.TransportHandle) bool                   { return !s.disconnected }
func (s *stubTransport) Disconnect(core.TransportHandle)                       { s.disconnected = true }

func track(name string) domain.TrackRef { return domain.TrackRef{Name: name, Locator: name + ".ogg"} }

func TestPlaySupersedesContinuation(t *testing.T) {
	tr := &stubTransport{}
	d := NewDriver(tr, "h", zerolog.Nop())
	ctx := context.Background()

	var fired []string
	require.NoError(t, d.Play(ctx, track("a"), func(context.Context) { fired = append(fired, "a") }))
	require.NoError(t, d.Play(ctx, track("b"), func(context.Context) { fired = append(fired, "b") }))

	_, ok := d.Take(1)
	assert.False(t, ok, "completion of the superseded track must be ignored")

	next, ok := d.Take(2)
	require.True(t, ok)
	next(ctx)
	assert.Equal(t, []string{"b"}, fired)

	_, ok = d.Take(2)
	assert.False(t, ok, "a continuation fires at most once")
	assert.False(t, d.Playing())
}

func TestPlayErrorLeavesNoContinuation(t *testing.T) {
	tr := &stubTransport{}
	d := NewDriver(tr, "h", zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, d.Play(ctx, track("a"), func(context.Context) {}))
	tr.failNext = errors.New("decoder gone")
	err := d.Play(ctx, track("b"), func(context.Context) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"b"`)

	_, ok := d.Take(1)
	assert.False(t, ok)
	assert.False(t, d.Playing())
}

func TestCancelAndRelease(t *testing.T) {
	tr := &stubTransport{}
	d := NewDriver(tr, "h", zerolog.Nop())
	require.NoError(t, d.Play(context.Background(), track("a"), func(context.Context) {}))

	d.Cancel()
	_, ok := d.Take(1)
	assert.False(t, ok)
	assert.Equal(t, 1, tr.stops)

	d.Release()
	assert.True(t, tr.disconnected)
	assert.Equal(t, 2, tr.stops)
}
