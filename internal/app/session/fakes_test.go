package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
)

type fakeTransport struct {
	mu          sync.Mutex
	seq         core.PlaybackID
	current     map[core.TransportHandle]core.PlaybackID
	callbacks   map[core.TransportHandle]func(core.PlaybackID)
	played      []string
	stops       int
	connected   map[core.TransportHandle]bool
	connectErr  error
	handleCount int
	broken      map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		current:   make(map[core.TransportHandle]core.PlaybackID),
		callbacks: make(map[core.TransportHandle]func(core.PlaybackID)),
		connected: make(map[core.TransportHandle]bool),
		broken:    make(map[string]bool),
	}
}

func (f *fakeTransport) Connect(_ context.Context, target string) (core.TransportHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return "", f.connectErr
	}
	f.handleCount++
	h := core.TransportHandle(fmt.Sprintf("%s#%d", target, f.handleCount))
	f.connected[h] = true
	return h, nil
}

func (f *fakeTransport) Play(_ context.Context, h core.TransportHandle, locator string) (core.PlaybackID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken[locator] {
		delete(f.current, h)
		return 0, fmt.Errorf("open %s: %w", locator, errBoom)
	}
	f.seq++
	f.current[h] = f.seq
	f.played = append(f.played, locator)
	return f.seq, nil
}

func (f *fakeTransport) Stop(h core.TransportHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	delete(f.current, h)
}

func (f *fakeTransport) OnCompletion(h core.TransportHandle, fn func(core.PlaybackID)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[h] = fn
}

func (f *fakeTransport) Connected(h core.TransportHandle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected[h]
}

func (f *fakeTransport) Disconnect(h core.TransportHandle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected[h] = false
}

func (f *fakeTransport) drop(h core.TransportHandle) { f.Disconnect(h) }

// finish reports completion of whatever h is playing, as the transport would.
func (f *fakeTransport) finish(h core.TransportHandle) {
	f.mu.Lock()
	id, ok := f.current[h]
	cb := f.callbacks[h]
	delete(f.current, h)
	f.mu.Unlock()
	if ok && cb != nil {
		cb(id)
	}
}

// fire delivers a completion for id regardless of what h is playing now.
func (f *fakeTransport) fire(h core.TransportHandle, id core.PlaybackID) {
	f.mu.Lock()
	cb := f.callbacks[h]
	f.mu.Unlock()
	cb(id)
}

func (f *fakeTransport) lastID() core.PlaybackID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seq
}

func (f *fakeTransport) playedLocators() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.played)
}

func (f *fakeTransport) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.played) == 0 {
		return ""
	}
	return f.played[len(f.played)-1]
}

type fakePresentation struct {
	mu      sync.Mutex
	views   []core.View
	sendErr error
	stale   bool
	edits   int
}

func (f *fakePresentation) Send(_ context.Context, target string, v core.View) (core.MessageHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.views = append(f.views, v)
	return core.MessageHandle("msg-" + target), nil
}

func (f *fakePresentation) Edit(_ context.Context, _ core.MessageHandle, v core.View) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits++
	if f.stale {
		return core.ErrStale
	}
	f.views = append(f.views, v)
	return nil
}

func (f *fakePresentation) last() core.View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.views[len(f.views)-1]
}

type fakeCatalog struct {
	mu       sync.Mutex
	tracks   []domain.TrackRef
	shared   []domain.TrackRef
	settings domain.RoomSettings
	saved    []domain.JukeboxPolicy
	profiles map[domain.UserID]string
	listErr  error
	panics   bool
}

func (f *fakeCatalog) List(_ context.Context, _ domain.RoomID, flt core.TrackFilter) ([]domain.TrackRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panics {
		panic("catalog exploded")
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.TrackRef
	for _, t := range f.tracks {
		if flt.Category != domain.CategoryAny && t.Category != flt.Category {
			continue
		}
		if flt.Curator != "" && t.CuratorID != flt.Curator {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeCatalog) Shared(_ context.Context, c domain.Category) ([]domain.TrackRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.TrackRef
	for _, t := range f.shared {
		if t.Category == c {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeCatalog) Settings(context.Context, domain.RoomID) (domain.RoomSettings, error) {
	return f.settings, nil
}

func (f *fakeCatalog) SaveJukeboxPolicy(_ context.Context, _ domain.RoomID, p domain.JukeboxPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, p)
	return nil
}

func (f *fakeCatalog) ProfileImage(_ context.Context, _ domain.RoomID, u domain.UserID) (string, bool) {
	img, ok := f.profiles[u]
	return img, ok
}

// fakePresence admits everyone except the listed outsiders. delay makes the
// permission check slow so concurrent dispatch can be observed.
type fakePresence struct {
	outsiders map[domain.UserID]bool
	delay     time.Duration

	mu       sync.Mutex
	inFlight int
	overlap  bool
}

func (f *fakePresence) InVoice(_ domain.RoomID, u domain.UserID) bool {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > 1 {
		f.overlap = true
	}
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
	return !f.outsiders[u]
}

func (f *fakePresence) DisplayName(u domain.UserID) string {
	if u == "" {
		return "Voicebox"
	}
	return string(u)
}

var errBoom = errors.New("boom")

func tracks(cat domain.Category, curator domain.UserID, names ...string) []domain.TrackRef {
	out := make([]domain.TrackRef, 0, len(names))
	for _, n := range names {
		out = append(out, domain.TrackRef{Name: n, CuratorID: curator, Locator: n + ".ogg", Category: cat})
	}
	return out
}

func seeded() func() *rand.Rand {
	return func() *rand.Rand { return rand.New(rand.NewPCG(1, 2)) }
}

type harness struct {
	transport    *fakeTransport
	presentation *fakePresentation
	catalog      *fakeCatalog
	presence     *fakePresence
	registry     *Registry
}

func newHarness() *harness {
	h := &harness{
		transport:    newFakeTransport(),
		presentation: &fakePresentation{},
		catalog:      &fakeCatalog{profiles: map[domain.UserID]string{}},
		presence:     &fakePresence{outsiders: map[domain.UserID]bool{}},
	}
	h.registry = NewRegistry(h.transport, h.catalog, h.presentation, h.presence, WithRand(seeded()))
	return h
}
