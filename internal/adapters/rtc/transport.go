package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	oggPageDuration = 20 * time.Millisecond
	opusClockRate   = 48000
)

var (
	ErrUnknownHandle = errors.New("unknown transport handle")
	ErrNoTarget      = errors.New("empty voice target")
)

// Opener returns the raw Ogg/Opus stream behind a locator.
type Opener func(ctx context.Context, locator string) (io.ReadCloser, error)

var locatorClient = &http.Client{
	Transport: &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: 15 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
	},
}

// OpenLocator fetches http(s) locators and opens everything else as a local
// file. The body outlives ctx cancellation since it is streamed long after
// Play returns.
func OpenLocator(ctx context.Context, locator string) (io.ReadCloser, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		req, err := http.NewRequestWithContext(context.WithoutCancel(ctx), http.MethodGet, locator, nil)
		if err != nil {
			return nil, err
		}
		resp, err := locatorClient.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	}
	return os.Open(strings.TrimPrefix(locator, "file://"))
}

type outlet struct {
	room    domain.RoomID
	track   *webrtc.TrackLocalStaticSample
	onDone  func(core.PlaybackID)
	current core.PlaybackID
	stop    context.CancelFunc
}

// MusicTransport plays Ogg/Opus locators into one shared sample track per room.
// Listeners receive a room's music by attaching Track(room) to their
// PeerConnection.
type MusicTransport struct {
	open Opener
	seq  atomic.Uint64

	mu      sync.Mutex
	tracks  map[domain.RoomID]*webrtc.TrackLocalStaticSample
	outlets map[core.TransportHandle]*outlet
	logger  zerolog.Logger
}

func NewMusicTransport(open Opener) *MusicTransport {
	if open == nil {
		open = OpenLocator
	}
	return &MusicTransport{
		open:    open,
		tracks:  make(map[domain.RoomID]*webrtc.TrackLocalStaticSample),
		outlets: make(map[core.TransportHandle]*outlet),
		logger:  log.With().Str("module", "rtc.music").Logger(),
	}
}

func (m *MusicTransport) Track(room domain.RoomID) (webrtc.TrackLocal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trackLocked(room)
}

func (m *MusicTransport) trackLocked(room domain.RoomID) (*webrtc.TrackLocalStaticSample, error) {
	if t, ok := m.tracks[room]; ok {
		return t, nil
	}
	t, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2},
		"music",
		"voicebox-"+string(room),
	)
	if err != nil {
		return nil, err
	}
	m.tracks[room] = t
	return t, nil
}

// Connect binds a new output to the room named by target.
func (m *MusicTransport) Connect(_ context.Context, target string) (core.TransportHandle, error) {
	if target == "" {
		return "", ErrNoTarget
	}
	room := domain.RoomID(target)
	m.mu.Lock()
	defer m.mu.Unlock()
	track, err := m.trackLocked(room)
	if err != nil {
		return "", err
	}
	h := core.TransportHandle(uuid.NewString())
	m.outlets[h] = &outlet{room: room, track: track}
	m.logger.Info().Str("room", string(room)).Str("handle", string(h)).Msg("output connected")
	return h, nil
}

func (m *MusicTransport) Play(ctx context.Context, h core.TransportHandle, locator string) (core.PlaybackID, error) {
	m.mu.Lock()
	o, ok := m.outlets[h]
	if ok {
		m.stopLocked(o)
	}
	m.mu.Unlock()
	if !ok {
		return 0, ErrUnknownHandle
	}

	rc, err := m.open(ctx, locator)
	if err != nil {
		return 0, fmt.Errorf("open locator: %w", err)
	}
	ogg, _, err := oggreader.NewWith(rc)
	if err != nil {
		rc.Close()
		return 0, fmt.Errorf("read ogg header: %w", err)
	}

	m.mu.Lock()
	if m.outlets[h] != o {
		m.mu.Unlock()
		rc.Close()
		return 0, ErrUnknownHandle
	}
	m.stopLocked(o)
	id := core.PlaybackID(m.seq.Add(1))
	pctx, cancel := context.WithCancel(context.Background())
	o.current = id
	o.stop = cancel
	m.mu.Unlock()

	go m.stream(pctx, h, o, id, ogg, rc)
	return id, nil
}

func (m *MusicTransport) stream(ctx context.Context, h core.TransportHandle, o *outlet, id core.PlaybackID, ogg *oggreader.OggReader, rc io.Closer) {
	defer rc.Close()
	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()

	var lastGranule uint64
	pages := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		page, header, err := ogg.ParseNextPage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				m.logger.Error().Err(err).Str("room", string(o.room)).Uint64("playback", uint64(id)).Msg("ogg stream broken")
			}
			m.finish(h, o, id, pages)
			return
		}
		// -1 marks a page on which no packet ends.
		var samples uint64
		if g := header.GranulePosition; g != ^uint64(0) && g >= lastGranule {
			samples = g - lastGranule
			lastGranule = g
		}
		d := time.Duration(float64(samples) / opusClockRate * float64(time.Second))
		if err := o.track.WriteSample(media.Sample{Data: page, Duration: d}); err != nil {
			m.logger.Warn().Err(err).Str("room", string(o.room)).Msg("write sample")
		}
		pages++
	}
}

// finish reports completion of id unless it was stopped or superseded. A
// stream that produced nothing is not reported, so a broken locator cannot
// spin a repeat loop.
func (m *MusicTransport) finish(h core.TransportHandle, o *outlet, id core.PlaybackID, pages int) {
	m.mu.Lock()
	if m.outlets[h] != o || o.current != id {
		m.mu.Unlock()
		return
	}
	o.current = 0
	o.stop = nil
	fn := o.onDone
	m.mu.Unlock()

	if pages == 0 {
		m.logger.Warn().Str("room", string(o.room)).Uint64("playback", uint64(id)).Msg("empty stream, completion suppressed")
		return
	}
	if fn != nil {
		fn(id)
	}
}

func (m *MusicTransport) stopLocked(o *outlet) {
	if o.stop != nil {
		o.stop()
	}
	o.stop = nil
	o.current = 0
}

func (m *MusicTransport) Stop(h core.TransportHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.outlets[h]; ok {
		m.stopLocked(o)
	}
}

func (m *MusicTransport) OnCompletion(h core.TransportHandle, fn func(core.PlaybackID)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.outlets[h]; ok {
		o.onDone = fn
	}
}

func (m *MusicTransport) Connected(h core.TransportHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.outlets[h]
	return ok
}

func (m *MusicTransport) Disconnect(h core.TransportHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.outlets[h]
	if !ok {
		return
	}
	m.stopLocked(o)
	delete(m.outlets, h)
	m.logger.Info().Str("room", string(o.room)).Str("handle", string(h)).Msg("output disconnected")
}
