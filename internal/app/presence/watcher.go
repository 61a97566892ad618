// Package presence tears sessions down once their room has been left empty
// for a grace period.
package presence

import (
	"sync"
	"time"

	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Expirer is implemented by session.Registry.
type Expirer interface {
	Expire(room domain.RoomID) bool
}

type pending struct {
	timer *time.Timer
	gen   uint64
}

type Watcher struct {
	grace  time.Duration
	target Expirer

	mu     sync.Mutex
	gen    uint64
	timers map[domain.RoomID]pending
	logger zerolog.Logger
}

func NewWatcher(grace time.Duration, target Expirer) *Watcher {
	return &Watcher{
		grace:  grace,
		target: target,
		timers: make(map[domain.RoomID]pending),
		logger: log.With().Str("module", "presence").Logger(),
	}
}

// Observe records the occupancy of room. occupants counts the player's own
// audio connection, so 1 means nobody is listening. An already armed timer is
// not restarted.
func (w *Watcher) Observe(room domain.RoomID, occupants int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, armed := w.timers[room]
	if occupants > 1 {
		if armed {
			p.timer.Stop()
			delete(w.timers, room)
			w.logger.Debug().Str("room", string(room)).Msg("room occupied again, teardown cancelled")
		}
		return
	}
	if armed {
		return
	}
	w.gen++
	gen := w.gen
	w.timers[room] = pending{
		timer: time.AfterFunc(w.grace, func() { w.fire(room, gen) }),
		gen:   gen,
	}
	w.logger.Debug().Str("room", string(room)).Dur("grace", w.grace).Msg("room empty, teardown armed")
}

// Forget cancels any armed teardown for room.
func (w *Watcher) Forget(room domain.RoomID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.timers[room]; ok {
		p.timer.Stop()
		delete(w.timers, room)
	}
}

// Armed reports whether a teardown is pending for room.
func (w *Watcher) Armed(room domain.RoomID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.timers[room]
	return ok
}

// Close stops every pending timer.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for room, p := range w.timers {
		p.timer.Stop()
		delete(w.timers, room)
	}
}

func (w *Watcher) fire(room domain.RoomID, gen uint64) {
	w.mu.Lock()
	p, ok := w.timers[room]
	if !ok || p.gen != gen {
		w.mu.Unlock()
		return
	}
	delete(w.timers, room)
	w.mu.Unlock()

	if w.target.Expire(room) {
		w.logger.Info().Str("room", string(room)).Msg("session timed out in an empty room")
	}
}
