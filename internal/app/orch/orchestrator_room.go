package orch

import (
	"context"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID) bool {
	if from, _, ok := o.Directory.RoomOf(sid); ok {
		if from == roomID {
			return true
		}
		o.KickBySID(sid)
		log.Info().Str("module", "orch").Str("sid", string(sid)).Str("from_room", string(from)).Msg("left previous room")
	}
	sess, ok := o.Directory.GetSession(sid)
	if !ok {
		return false
	}
	room := o.Rooms.GetOrCreate(roomID)
	room.AddMember(sid, sess)
	o.Directory.UpdateRoom(sid, roomID)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("added to room")
	o.observe(roomID)
	return true
}

// Bind makes sess the signalling session of sid. A previous connection of the
// same client loses its room membership first; the client joins again over
// the new connection.
func (o *Orchestrator) Bind(sid core.SessionID, sess core.MemberSession, cancel context.CancelFunc) {
	if _, ok := o.Directory.GetSession(sid); ok {
		o.KickBySID(sid)
	}
	o.Directory.BindSignal(sid, sess, cancel)
}

// KickBySID takes sid out of its room and drops its media. The signalling
// connection stays open.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	o.cleanupMedia(sid)
	o.cleanupMembership(sid)
}

// Disconnect is called when sess's signalling connection went away.
// It reports false when sid has since been bound to a newer connection.
func (o *Orchestrator) Disconnect(sid core.SessionID, sess core.MemberSession) bool {
	if cur, ok := o.Directory.GetSession(sid); !ok || cur != sess {
		return false
	}
	o.KickBySID(sid)
	return o.Directory.Unbind(sid, sess)
}

func (o *Orchestrator) cleanupMembership(sid core.SessionID) {
	roomID, _, ok := o.Directory.RoomOf(sid)
	if !ok {
		return
	}
	if room, ok := o.Rooms.GetRoom(roomID); ok {
		room.RemoveMember(sid)
	}
	o.Directory.RemoveRoom(sid)
	o.observe(roomID)
}

// EvictRoom empties a room and ends its session.
func (o *Orchestrator) EvictRoom(roomID domain.RoomID) {
	for _, snap := range o.Directory.MembersOfRoom(roomID) {
		o.KickBySID(snap.SID)
	}
	if o.Sessions != nil {
		o.Sessions.Destroy(roomID)
	}
	if o.Watcher != nil {
		o.Watcher.Forget(roomID)
	}
	o.Rooms.StopRoom(roomID)
}

// observe reports the room's occupancy, the player itself included, while a
// session is live there.
func (o *Orchestrator) observe(roomID domain.RoomID) {
	if o.Watcher == nil || o.Sessions == nil {
		return
	}
	if _, ok := o.Sessions.Lookup(roomID); !ok {
		o.Watcher.Forget(roomID)
		return
	}
	occupants := 1
	if room, ok := o.Rooms.GetRoom(roomID); ok {
		occupants += room.MemberCount()
	}
	o.Watcher.Observe(roomID, occupants)
}
