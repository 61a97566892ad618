package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkeye/Voicebox/internal/app/playback"
	"github.com/dkeye/Voicebox/internal/app/selection"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
)

func (s *Session) rotation(ctx context.Context) error {
	if len(s.queue) == 0 {
		return fmt.Errorf("%w: there are no tracks in the %s playlist of this room; add some, or enable the shared pool in the room settings",
			core.ErrEmptyCategory, strings.ToLower(s.theme.Rotation))
	}
	if s.mode != ModeRotation {
		s.mode = ModeRotation
		clear(s.declared)
		s.declarer = ""
		s.status.art = ArtRotation
		s.status.description = s.theme.Idle
	}
	s.advanceRotation()
	return s.playRotation(ctx)
}

func (s *Session) advanceRotation() {
	next, wrapped := selection.Advance(s.cursor, len(s.queue))
	if wrapped {
		selection.Shuffle(s.rng, s.queue)
	}
	s.cursor = next
}

// playRotation plays the track under the cursor, skipping tracks that fail to
// start. After len(queue) failed attempts the session falls back to standby.
func (s *Session) playRotation(ctx context.Context) error {
	var err error
	for range len(s.queue) {
		t := s.queue[s.cursor]
		if err = s.play(ctx, t, s.continueRotation); err == nil {
			s.status.setTrack(t, s.presence.DisplayName(t.CuratorID), "")
			s.render(ctx)
			return nil
		}
		s.logger.Warn().Err(err).Str("track", t.Name).Msg("skipping unplayable track")
		s.advanceRotation()
	}
	s.standby(ctx)
	return err
}

func (s *Session) continueRotation(ctx context.Context) {
	s.advanceRotation()
	if err := s.playRotation(ctx); err != nil {
		s.logger.Error().Err(err).Msg("rotation stopped")
	}
}

func (s *Session) declarationPool(ctx context.Context, user domain.UserID) ([]domain.TrackRef, error) {
	pool, err := s.catalog.List(ctx, s.room, core.TrackFilter{Category: domain.CategoryDeclaration, Curator: user})
	if err != nil {
		return nil, fmt.Errorf("load declaration pool: %w", err)
	}
	if len(pool) > 0 || !s.settings.AllowSharedFallback {
		return pool, nil
	}
	pool, err = s.catalog.Shared(ctx, domain.CategoryDeclaration)
	if err != nil {
		return nil, fmt.Errorf("load shared declaration pool: %w", err)
	}
	return pool, nil
}

// declaration draws one of user's tracks and loops it.
func (s *Session) declaration(ctx context.Context, user domain.UserID) error {
	pool, err := s.declarationPool(ctx, user)
	if err != nil {
		return err
	}
	t, ok := selection.Draw(s.rng, pool)
	if !ok {
		return fmt.Errorf("%w: there are no tracks in the %s playlist of %s; add some, or enable the shared pool in the room settings",
			core.ErrEmptyCategory, strings.ToLower(s.theme.Declaration), s.presence.DisplayName(user))
	}

	s.mode = ModeDeclaration
	if err := s.play(ctx, t, s.replay(t)); err != nil {
		// whatever played before was stopped by the failed attempt
		s.standby(ctx)
		return err
	}
	s.declared[user] = struct{}{}
	s.declarer = user

	s.status.art = ArtDeclaration
	if img, ok := s.catalog.ProfileImage(ctx, s.room, user); ok {
		s.status.art = img
	}
	s.status.description = fmt.Sprintf("In %s!", s.theme.Declaration)
	s.status.setTrack(t, s.presence.DisplayName(t.CuratorID), s.presence.DisplayName(user))
	s.render(ctx)
	return nil
}

func (s *Session) replay(t domain.TrackRef) playback.Continuation {
	return func(ctx context.Context) {
		if err := s.play(ctx, t, s.replay(t)); err != nil {
			s.logger.Error().Err(err).Str("track", t.Name).Msg("replay stopped")
			s.standby(ctx)
		}
	}
}

func (s *Session) standby(ctx context.Context) {
	s.driver.Cancel()
	s.mode = ModeIdle
	s.status.reset()
	s.render(ctx)
}

func (s *Session) openJukebox(ctx context.Context) error {
	tracks, err := s.catalog.List(ctx, s.room, core.TrackFilter{})
	if err != nil {
		return fmt.Errorf("load jukebox album: %w", err)
	}
	s.driver.Cancel()
	s.jukebox.Load(tracks)
	s.mode = ModeJukebox
	s.status.art = ArtJukebox
	s.render(ctx)
	return nil
}

func (s *Session) requireJukebox() error {
	if s.mode != ModeJukebox {
		return fmt.Errorf("%w: open the jukebox first", core.ErrWrongMode)
	}
	return nil
}

func (s *Session) jukeboxSelect(ctx context.Context, slot int) error {
	if err := s.requireJukebox(); err != nil {
		return err
	}
	t, ok := s.jukebox.Select(slot)
	if !ok {
		return nil
	}
	return s.playJukebox(ctx, t)
}

func (s *Session) playJukebox(ctx context.Context, t domain.TrackRef) error {
	if err := s.play(ctx, t, s.continueJukebox); err != nil {
		s.jukebox.Stop()
		s.render(ctx)
		return err
	}
	s.render(ctx)
	return nil
}

func (s *Session) continueJukebox(ctx context.Context) {
	t, ok := s.jukebox.Advance()
	if !ok {
		s.render(ctx)
		return
	}
	if err := s.playJukebox(ctx, t); err != nil {
		s.logger.Error().Err(err).Msg("jukebox stopped")
	}
}

func (s *Session) jukeboxPage(ctx context.Context, delta int) error {
	if err := s.requireJukebox(); err != nil {
		return err
	}
	if delta < 0 {
		s.jukebox.PrevPage()
	} else {
		s.jukebox.NextPage()
	}
	s.render(ctx)
	return nil
}

func (s *Session) jukeboxStop(ctx context.Context) error {
	if err := s.requireJukebox(); err != nil {
		return err
	}
	s.driver.Cancel()
	s.jukebox.Stop()
	s.render(ctx)
	return nil
}

func (s *Session) jukeboxPolicy(ctx context.Context) error {
	if err := s.requireJukebox(); err != nil {
		return err
	}
	p := s.jukebox.CyclePolicy()
	if err := s.catalog.SaveJukeboxPolicy(ctx, s.room, p); err != nil {
		s.logger.Error().Err(err).Stringer("policy", p).Msg("failed to remember jukebox policy")
	}
	s.render(ctx)
	return nil
}

// forcePlay jumps to a named track in jukebox mode, or runs a declaration on
// behalf of another user in every other mode.
func (s *Session) forcePlay(ctx context.Context, a core.Action) error {
	switch {
	case a.Track != "":
		if err := s.requireJukebox(); err != nil {
			return err
		}
		t, err := s.jukebox.Jump(a.Track)
		if err != nil {
			return err
		}
		return s.playJukebox(ctx, t)
	case a.Target != "":
		if s.mode == ModeJukebox {
			return fmt.Errorf("%w: the jukebox only plays tracks by name", core.ErrWrongMode)
		}
		return s.declaration(ctx, a.Target)
	}
	return fmt.Errorf("%w: a track name or a user is required", core.ErrInvalidAction)
}
