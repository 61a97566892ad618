// Package session implements the per-room playback session: its mode state
// machine, the dispatch gate that drops concurrent interactions, and the
// registry that owns one session per room.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Voicebox/internal/app/jukebox"
	"github.com/dkeye/Voicebox/internal/app/playback"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/dkeye/Voicebox/internal/metrics"
	"github.com/rs/zerolog"
)

type Mode int

const (
	ModeIdle Mode = iota
	ModeRotation
	ModeDeclaration
	ModeJukebox
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeRotation:
		return "rotation"
	case ModeDeclaration:
		return "declaration"
	case ModeJukebox:
		return "jukebox"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Session is the playback state of one room.
//
// busy is the drop gate for user interactions. mu serializes handler bodies
// with completion events coming from the transport.
type Session struct {
	room domain.RoomID
	busy atomic.Bool

	mu     sync.Mutex
	closed atomic.Bool

	mode     Mode
	queue    []domain.TrackRef
	cursor   int
	declared map[domain.UserID]struct{}
	declarer domain.UserID
	jukebox  *jukebox.Controller
	driver   *playback.Driver
	status   status

	message  core.MessageHandle
	headless bool
	started  time.Time

	theme    domain.Theme
	settings domain.RoomSettings
	rng      *rand.Rand

	catalog      core.Catalog
	presentation core.Presentation
	presence     core.Presence

	// ctx lives as long as the session and is handed to continuations.
	ctx       context.Context
	cancel    context.CancelFunc
	onDismiss func(*Session)
	logger    zerolog.Logger
}

// Info is a read-only snapshot used by the HTTP API.
type Info struct {
	Room       domain.RoomID        `json:"room"`
	Mode       string               `json:"mode"`
	Playing    bool                 `json:"playing"`
	NowPlaying string               `json:"now_playing,omitempty"`
	Declared   int                  `json:"declared"`
	Policy     domain.JukeboxPolicy `json:"jukebox_policy"`
	Headless   bool                 `json:"headless"`
	Started    time.Time            `json:"started"`
}

func (s *Session) Room() domain.RoomID { return s.room }

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		Room:     s.room,
		Mode:     s.mode.String(),
		Declared: len(s.declared),
		Policy:   s.jukebox.Policy(),
		Headless: s.headless,
		Playing:  s.driver.Playing(),
		Started:  s.started,
	}
	if t, ok := s.driver.Track(); ok {
		info.NowPlaying = t.Name
	}
	return info
}

// live reports whether the session can still serve its room.
func (s *Session) live() bool {
	return !s.closed.Load() && s.driver.Connected()
}

// Handle runs one user interaction. Interactions arriving while another one is
// in progress are dropped with ErrBusy.
func (s *Session) Handle(ctx context.Context, actor domain.UserID, a core.Action) error {
	if !s.busy.CompareAndSwap(false, true) {
		metrics.IncAction(a.Kind.String(), "dropped")
		s.logger.Debug().Str("user", string(actor)).Stringer("action", a.Kind).Msg("dropping concurrent action")
		return core.ErrBusy
	}
	defer s.busy.Store(false)

	dismiss, err := s.dispatch(ctx, actor, a)
	metrics.IncAction(a.Kind.String(), outcome(err))
	if err != nil {
		s.logger.Debug().Err(err).Str("user", string(actor)).Stringer("action", a.Kind).Msg("action rejected")
	}
	if dismiss && s.onDismiss != nil {
		s.onDismiss(s)
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrPermissionDenied):
		return "denied"
	case errors.Is(err, core.ErrInternal):
		return "panic"
	}
	return "error"
}

func (s *Session) dispatch(ctx context.Context, actor domain.UserID, a core.Action) (dismiss bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Stringer("action", a.Kind).Msg("action handler panicked")
			dismiss, err = false, fmt.Errorf("%w: %v", core.ErrInternal, r)
		}
	}()

	if s.closed.Load() {
		return false, core.ErrNoSession
	}
	if !s.presence.InVoice(s.room, actor) {
		return false, core.ErrPermissionDenied
	}

	switch a.Kind {
	case core.ActionRotation:
		return false, s.rotation(ctx)
	case core.ActionDeclaration:
		return false, s.declaration(ctx, actor)
	case core.ActionStandby:
		s.standby(ctx)
		return false, nil
	case core.ActionDismiss:
		return true, nil
	case core.ActionJukebox:
		return false, s.openJukebox(ctx)
	case core.ActionJukeboxSelect:
		return false, s.jukeboxSelect(ctx, a.Slot)
	case core.ActionJukeboxPrev:
		return false, s.jukeboxPage(ctx, -1)
	case core.ActionJukeboxNext:
		return false, s.jukeboxPage(ctx, 1)
	case core.ActionJukeboxStop:
		return false, s.jukeboxStop(ctx)
	case core.ActionJukeboxPolicy:
		return false, s.jukeboxPolicy(ctx)
	case core.ActionForcePlay:
		return false, s.forcePlay(ctx, a)
	}
	return false, fmt.Errorf("%w: %s", core.ErrInvalidAction, a.Kind)
}

// complete is registered as the transport's completion callback.
func (s *Session) complete(id core.PlaybackID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("continuation panicked")
		}
	}()

	if s.closed.Load() {
		return
	}
	next, ok := s.driver.Take(id)
	if !ok {
		return
	}
	next(s.ctx)
}

func (s *Session) play(ctx context.Context, t domain.TrackRef, next playback.Continuation) error {
	if err := s.driver.Play(ctx, t, next); err != nil {
		return err
	}
	metrics.IncTrackStarted(s.mode.String())
	return nil
}

// render pushes the current view. Failures never propagate into the session.
func (s *Session) render(ctx context.Context) {
	s.push(ctx, s.view())
}

func (s *Session) push(ctx context.Context, v core.View) {
	if s.headless || s.message == "" {
		return
	}
	err := s.presentation.Edit(ctx, s.message, v)
	switch {
	case err == nil:
	case errors.Is(err, core.ErrStale):
		s.headless = true
		metrics.IncRenderFailure("stale")
		s.logger.Warn().Msg("session view no longer exists, further renders are skipped")
	default:
		metrics.IncRenderFailure("error")
		s.logger.Error().Err(err).Msg("failed to render session view")
	}
}

// close tears the session down once. It reports whether this call did it.
func (s *Session) close(timedOut bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed.CompareAndSwap(false, true) {
		return false
	}
	s.driver.Cancel()
	s.push(s.ctx, s.closedView(timedOut))
	s.driver.Release()
	s.cancel()
	s.logger.Info().Bool("timed_out", timedOut).Msg("session closed")
	return true
}
