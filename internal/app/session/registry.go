package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Voicebox/internal/app/jukebox"
	"github.com/dkeye/Voicebox/internal/app/playback"
	"github.com/dkeye/Voicebox/internal/app/selection"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/dkeye/Voicebox/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Registry owns at most one Session per room.
type Registry struct {
	transport    core.Transport
	catalog      core.Catalog
	presentation core.Presentation
	presence     core.Presence
	newRand      func() *rand.Rand

	mu       sync.Mutex
	sessions map[domain.RoomID]*Session
	pending  map[domain.RoomID]struct{}
	logger   zerolog.Logger
}

type Option func(*Registry)

// WithRand overrides the per-session random source, mainly for tests.
func WithRand(fn func() *rand.Rand) Option {
	return func(r *Registry) { r.newRand = fn }
}

func NewRegistry(t core.Transport, c core.Catalog, p core.Presentation, pr core.Presence, opts ...Option) *Registry {
	r := &Registry{
		transport:    t,
		catalog:      c,
		presentation: p,
		presence:     pr,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		sessions: make(map[domain.RoomID]*Session),
		pending:  make(map[domain.RoomID]struct{}),
		logger:   log.With().Str("module", "session").Logger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Create starts a session for room, connecting audio to voiceTarget and
// rendering the view into viewTarget. A leftover session whose transport is
// gone is torn down first.
func (r *Registry) Create(ctx context.Context, room domain.RoomID, voiceTarget, viewTarget string) (*Session, error) {
	r.mu.Lock()
	if _, ok := r.pending[room]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is starting", core.ErrAlreadyActive, room)
	}
	stale, exists := r.sessions[room]
	if exists && stale.live() {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", core.ErrAlreadyActive, room)
	}
	delete(r.sessions, room)
	r.pending[room] = struct{}{}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, room)
		r.mu.Unlock()
	}()

	if exists {
		r.logger.Warn().Str("room", string(room)).Msg("cleaning up remnants of an old session")
		r.teardown(stale, false, "stale")
	}

	s, err := r.open(ctx, room, voiceTarget, viewTarget)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sessions[room] = s
	r.mu.Unlock()
	metrics.SessionOpened()
	r.logger.Info().Str("room", string(room)).Str("voice", voiceTarget).Msg("session started")
	return s, nil
}

func (r *Registry) open(ctx context.Context, room domain.RoomID, voiceTarget, viewTarget string) (*Session, error) {
	h, err := r.transport.Connect(ctx, voiceTarget)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrTransportUnavailable, err)
	}

	settings, err := r.catalog.Settings(ctx, room)
	if err != nil {
		r.transport.Disconnect(h)
		return nil, fmt.Errorf("load room settings: %w", err)
	}
	queue, err := r.catalog.List(ctx, room, core.TrackFilter{Category: domain.CategoryRotation})
	if err != nil {
		r.transport.Disconnect(h)
		return nil, fmt.Errorf("load rotation queue: %w", err)
	}

	rng := r.newRand()
	logger := r.logger.With().Str("room", string(room)).Logger()
	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		room:         room,
		queue:        selection.Shuffle(rng, slices.Clone(queue)),
		cursor:       -1,
		declared:     make(map[domain.UserID]struct{}),
		jukebox:      jukebox.New(settings.JukeboxPolicy, rng),
		driver:       playback.NewDriver(r.transport, h, logger),
		started:      time.Now(),
		theme:        domain.LookupTheme(settings.Theme),
		settings:     settings,
		rng:          rng,
		catalog:      r.catalog,
		presentation: r.presentation,
		presence:     r.presence,
		ctx:          sctx,
		cancel:       cancel,
		onDismiss:    r.dismiss,
		logger:       logger,
	}
	s.status.reset()
	r.transport.OnCompletion(h, s.complete)

	msg, err := r.presentation.Send(ctx, viewTarget, s.view())
	if err != nil {
		s.headless = true
		logger.Error().Err(err).Msg("failed to send session view, running headless")
	}
	s.message = msg
	return s, nil
}

func (r *Registry) Lookup(room domain.RoomID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[room]
	return s, ok
}

// Destroy tears down the room's session. It is a no-op when none exists.
func (r *Registry) Destroy(room domain.RoomID) bool {
	return r.remove(room, false, "dismiss")
}

// Expire is Destroy for rooms that were left empty.
func (r *Registry) Expire(room domain.RoomID) bool {
	return r.remove(room, true, "timeout")
}

// Handle routes an interaction to the room's session.
func (r *Registry) Handle(ctx context.Context, room domain.RoomID, actor domain.UserID, a core.Action) error {
	s, ok := r.Lookup(room)
	if !ok {
		return core.ErrNoSession
	}
	return s.Handle(ctx, actor, a)
}

func (r *Registry) Rooms() []domain.RoomID {
	r.mu.Lock()
	rooms := make([]domain.RoomID, 0, len(r.sessions))
	for id := range r.sessions {
		rooms = append(rooms, id)
	}
	r.mu.Unlock()
	slices.Sort(rooms)
	return rooms
}

// Shutdown closes every session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, s := range all {
		r.teardown(s, false, "shutdown")
	}
}

func (r *Registry) remove(room domain.RoomID, timedOut bool, reason string) bool {
	r.mu.Lock()
	s, ok := r.sessions[room]
	delete(r.sessions, room)
	r.mu.Unlock()
	if !ok {
		return false
	}
	return r.teardown(s, timedOut, reason)
}

// dismiss removes s only if it is still the room's registered session.
func (r *Registry) dismiss(s *Session) {
	r.mu.Lock()
	if r.sessions[s.room] == s {
		delete(r.sessions, s.room)
	}
	r.mu.Unlock()
	r.teardown(s, false, "dismiss")
}

func (r *Registry) teardown(s *Session, timedOut bool, reason string) bool {
	if !s.close(timedOut) {
		return false
	}
	metrics.SessionClosed(reason)
	return true
}
