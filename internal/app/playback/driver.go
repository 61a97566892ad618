// Package playback wraps a core.Transport handle and owns the single
// completion continuation of a session.
package playback

import (
	"context"
	"fmt"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/rs/zerolog"
)

// Continuation runs when the current track finishes playing.
type Continuation func(ctx context.Context)

// Driver is not safe for concurrent use. The owning session serializes every
// call, including Take from its completion callback.
type Driver struct {
	transport core.Transport
	handle    core.TransportHandle
	logger    zerolog.Logger

	current core.PlaybackID
	track   domain.TrackRef
	next    Continuation
	playing bool
}

func NewDriver(t core.Transport, h core.TransportHandle, logger zerolog.Logger) *Driver {
	return &Driver{transport: t, handle: h, logger: logger}
}

func (d *Driver) Handle() core.TransportHandle { return d.handle }

// Connected reports whether the underlying transport handle is still usable.
func (d *Driver) Connected() bool { return d.transport.Connected(d.handle) }

// Playing reports whether a track was started and has neither completed nor been cancelled.
func (d *Driver) Playing() bool { return d.playing }

// Track returns the track most recently started.
func (d *Driver) Track() (domain.TrackRef, bool) { return d.track, d.playing }

// Play starts track and registers next as the only continuation. Any previous
// continuation is dropped before the transport is touched, so on error no
// continuation is left registered.
func (d *Driver) Play(ctx context.Context, track domain.TrackRef, next Continuation) error {
	d.next = nil
	d.current = 0
	d.playing = false

	id, err := d.transport.Play(ctx, d.handle, track.Locator)
	if err != nil {
		return fmt.Errorf("play %q: %w", track.Name, err)
	}
	d.current = id
	d.track = track
	d.next = next
	d.playing = true
	d.logger.Debug().Str("track", track.Name).Uint64("playback", uint64(id)).Msg("track started")
	return nil
}

// Take hands out the continuation registered for id and clears it. Completions
// for superseded or cancelled playbacks return false.
func (d *Driver) Take(id core.PlaybackID) (Continuation, bool) {
	if id == 0 || id != d.current {
		d.logger.Debug().Uint64("playback", uint64(id)).Uint64("current", uint64(d.current)).Msg("ignoring stale completion")
		return nil, false
	}
	next := d.next
	d.next = nil
	d.current = 0
	d.playing = false
	return next, next != nil
}

// Cancel clears the continuation and stops the transport.
func (d *Driver) Cancel() {
	d.next = nil
	d.current = 0
	d.playing = false
	d.transport.Stop(d.handle)
}

// Release cancels playback and disconnects the transport handle.
func (d *Driver) Release() {
	d.Cancel()
	d.transport.Disconnect(d.handle)
}
