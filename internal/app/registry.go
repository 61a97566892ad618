package app

import (
	"context"
	"sync"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/rs/zerolog/log"
)

type listenerEntry struct {
	Room    domain.RoomID
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Directory tracks connected listeners: who they are, which signalling
// connection they use and which room they currently listen in.
type Directory struct {
	mu        sync.RWMutex
	listeners map[core.SessionID]*listenerEntry
	users     map[core.SessionID]*domain.User
}

func NewDirectory() *Directory {
	return &Directory{
		listeners: make(map[core.SessionID]*listenerEntry),
		users:     make(map[core.SessionID]*domain.User),
	}
}

func (d *Directory) GetOrCreateUser(sid core.SessionID) *domain.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	if u, ok := d.users[sid]; ok {
		return u
	}
	u := &domain.User{ID: domain.UserID(sid), Username: "guest"}
	d.users[sid] = u
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Msg("created new user")
	return u
}

// User looks up a known user by id without creating one.
func (d *Directory) User(uid domain.UserID) (*domain.User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[core.SessionID(uid)]
	return u, ok
}

func (d *Directory) UpdateUsername(sid core.SessionID, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[sid]
	if !ok {
		u = &domain.User{ID: domain.UserID(sid)}
		d.users[sid] = u
	}
	if err := u.SetUsername(name); err != nil {
		return err
	}
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Str("username", name).Msg("updated username")
	return nil
}

// BindSignal registers a fresh signalling connection for sid. Any previous
// binding is cancelled so its pumps stop.
func (d *Directory) BindSignal(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	d.mu.Lock()
	old, had := d.listeners[sid]
	d.listeners[sid] = &listenerEntry{Session: sess, Cancel: cancel}
	d.mu.Unlock()
	if had && old.Cancel != nil {
		old.Cancel()
	}
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Msg("bound signal")
}

func (d *Directory) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.listeners[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Unbind forgets sid, but only if sess is still its current session.
func (d *Directory) Unbind(sid core.SessionID, sess core.MemberSession) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.listeners[sid]
	if !ok || e.Session != sess {
		return false
	}
	delete(d.listeners, sid)
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Msg("unbind listener")
	return true
}

func (d *Directory) RoomOf(sid core.SessionID) (domain.RoomID, core.MemberSession, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.listeners[sid]
	if !ok || e.Room == "" {
		return "", nil, false
	}
	return e.Room, e.Session, true
}

func (d *Directory) UpdateRoom(sid core.SessionID, room domain.RoomID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.listeners[sid]
	if !ok {
		return false
	}
	e.Room = room
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Str("room", string(room)).Msg("updated room")
	return true
}

func (d *Directory) RemoveRoom(sid core.SessionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.listeners[sid]; ok {
		e.Room = ""
	}
}

type Snapshot struct {
	SID     core.SessionID
	Session core.MemberSession
}

func (d *Directory) MembersOfRoom(room domain.RoomID) []Snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Snapshot, 0, len(d.listeners))
	for sid, e := range d.listeners {
		if e.Room == room {
			out = append(out, Snapshot{SID: sid, Session: e.Session})
		}
	}
	return out
}

// RoomMates returns everyone sharing sid's room, sid excluded.
func (d *Directory) RoomMates(sid core.SessionID) []Snapshot {
	room, _, ok := d.RoomOf(sid)
	if !ok {
		return nil
	}
	all := d.MembersOfRoom(room)
	out := all[:0]
	for _, s := range all {
		if s.SID != sid {
			out = append(out, s)
		}
	}
	return out
}

func (d *Directory) Cancel(sid core.SessionID) bool {
	d.mu.RLock()
	e, ok := d.listeners[sid]
	d.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.directory").Str("sid", string(sid)).Msg("canceled listener")
	return true
}
