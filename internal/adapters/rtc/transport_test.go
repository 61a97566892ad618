package rtc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oggStream encodes n 20ms Opus packets into an Ogg file.
func oggStream(t *testing.T, n int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := oggwriter.NewWith(&buf, opusClockRate, 2)
	require.NoError(t, err)
	for i := range n {
		err := w.WriteRTP(&rtp.Packet{
			Header:  rtp.Header{Timestamp: uint32(i * 960), SequenceNumber: uint16(i)},
			Payload: []byte{0xfc, 0xff, 0xfe},
		})
		require.NoError(t, err)
	}
	return buf.Bytes()
}

type library map[string][]byte

func (l library) open(_ context.Context, locator string) (io.ReadCloser, error) {
	b, ok := l[locator]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

type completions struct {
	mu  sync.Mutex
	ids []core.PlaybackID
}

func (c *completions) record(id core.PlaybackID) {
	c.mu.Lock()
	c.ids = append(c.ids, id)
	c.mu.Unlock()
}

func (c *completions) get() []core.PlaybackID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.PlaybackID(nil), c.ids...)
}

func TestConnectSharesRoomTrack(t *testing.T) {
	m := NewMusicTransport(library{}.open)

	a, err := m.Connect(context.Background(), "lobby")
	require.NoError(t, err)
	b, err := m.Connect(context.Background(), "lobby")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	t1, err := m.Track("lobby")
	require.NoError(t, err)
	t2, err := m.Track("lobby")
	require.NoError(t, err)
	assert.Same(t, t1, t2)
	assert.Equal(t, "voicebox-lobby", t1.StreamID())

	assert.True(t, m.Connected(a))
	m.Disconnect(a)
	assert.False(t, m.Connected(a))
	assert.True(t, m.Connected(b))

	_, err = m.Connect(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestPlayErrors(t *testing.T) {
	m := NewMusicTransport(library{"junk.ogg": []byte("not an ogg file")}.open)

	_, err := m.Play(context.Background(), "nope", "a.ogg")
	require.ErrorIs(t, err, ErrUnknownHandle)

	h, err := m.Connect(context.Background(), "lobby")
	require.NoError(t, err)
	_, err = m.Play(context.Background(), h, "missing.ogg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")

	_, err = m.Play(context.Background(), h, "junk.ogg")
	require.Error(t, err)
}

func TestPlayReportsNaturalCompletion(t *testing.T) {
	m := NewMusicTransport(library{"short.ogg": oggStream(t, 3)}.open)
	h, err := m.Connect(context.Background(), "lobby")
	require.NoError(t, err)

	var done completions
	m.OnCompletion(h, done.record)

	id, err := m.Play(context.Background(), h, "short.ogg")
	require.NoError(t, err)
	assert.NotZero(t, id)

	assert.Eventually(t, func() bool { return len(done.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []core.PlaybackID{id}, done.get())
}

func TestStopAndSupersedeNeverComplete(t *testing.T) {
	lib := library{"long.ogg": oggStream(t, 40), "short.ogg": oggStream(t, 2)}
	m := NewMusicTransport(lib.open)
	h, err := m.Connect(context.Background(), "lobby")
	require.NoError(t, err)

	var done completions
	m.OnCompletion(h, done.record)

	first, err := m.Play(context.Background(), h, "long.ogg")
	require.NoError(t, err)
	second, err := m.Play(context.Background(), h, "short.ogg")
	require.NoError(t, err)
	assert.Greater(t, second, first)

	assert.Eventually(t, func() bool { return len(done.get()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []core.PlaybackID{second}, done.get())

	third, err := m.Play(context.Background(), h, "long.ogg")
	require.NoError(t, err)
	assert.Greater(t, third, second)

	m.Stop(h)
	assert.Never(t, func() bool { return len(done.get()) > 1 }, 1200*time.Millisecond, 50*time.Millisecond)
}
