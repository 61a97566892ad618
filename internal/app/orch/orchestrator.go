package orch

import (
	"github.com/dkeye/Voicebox/internal/app"
	"github.com/dkeye/Voicebox/internal/app/session"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// MusicSource hands out the outgoing music track of a room.
type MusicSource interface {
	Track(room domain.RoomID) (webrtc.TrackLocal, error)
}

// Occupancy is told how many connections a room with a live session has.
type Occupancy interface {
	Observe(room domain.RoomID, occupants int)
	Forget(room domain.RoomID)
}

type Orchestrator struct {
	Directory *app.Directory
	Rooms     core.RoomManager
	Policy    app.Policy
	Sessions  *session.Registry
	Watcher   Occupancy
	Music     MusicSource
}

// BroadcastRoom fans a frame out to every listener of room and applies the
// backpressure policy to the ones that could not take it.
func (o *Orchestrator) BroadcastRoom(roomID domain.RoomID, data core.Frame) {
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		return
	}
	o.settle(roomID, room, room.Broadcast("", data))
}

// BroadcastFrom fans a frame out to sid's room mates.
func (o *Orchestrator) BroadcastFrom(sid core.SessionID, data core.Frame) {
	roomID, _, ok := o.Directory.RoomOf(sid)
	if !ok {
		return
	}
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok {
		return
	}
	o.settle(roomID, room, room.Broadcast(sid, data))
}

func (o *Orchestrator) settle(roomID domain.RoomID, room core.RoomService, res core.PublishResult) {
	if o.Policy == nil {
		return
	}
	for _, m := range res.Delivered {
		o.Policy.OnDelivered(m)
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			for _, snap := range o.Directory.MembersOfRoom(roomID) {
				if snap.Session == slow {
					log.Warn().Str("module", "orch").Str("room", string(roomID)).Str("sid", string(snap.SID)).Msg("disconnecting slow listener")
					o.KickBySID(snap.SID)
					o.Directory.Cancel(snap.SID)
				}
			}
		case app.DropFrame, app.NoAction:
		}
	}
}
