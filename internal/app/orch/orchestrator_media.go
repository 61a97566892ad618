package orch

import (
	"errors"
	"fmt"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/rs/zerolog/log"
)

var ErrNotInRoom = errors.New("listener is not in a room")

func (o *Orchestrator) BindMediaHandlers(mc core.MediaConnection, sid core.SessionID) {
	mc.OnClosed(func() { o.OnMediaDisconnect(sid, mc) })
}

// OnMediaDisconnect detaches mc from sid, unless it was already replaced.
func (o *Orchestrator) OnMediaDisconnect(sid core.SessionID, mc core.MediaConnection) {
	sess, ok := o.Directory.GetSession(sid)
	if !ok || sess.Media() != mc {
		return
	}
	sess.UpdateMedia(nil)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("media detached")
}

func (o *Orchestrator) cleanupMedia(sid core.SessionID) {
	if sess, ok := o.Directory.GetSession(sid); ok {
		sess.UpdateMedia(nil)
	}
}

// AttachMusic adds the music track of sid's room to mc. It must run before
// the answer is created so the track is part of the negotiated session.
func (o *Orchestrator) AttachMusic(sid core.SessionID, mc core.MediaConnection) error {
	roomID, _, ok := o.Directory.RoomOf(sid)
	if !ok {
		return ErrNotInRoom
	}
	if o.Music == nil {
		return nil
	}
	track, err := o.Music.Track(roomID)
	if err != nil {
		return fmt.Errorf("music track of %s: %w", roomID, err)
	}
	sender, err := mc.AddLocalTrack(track)
	if err != nil {
		return fmt.Errorf("attach music of %s: %w", roomID, err)
	}
	// RTCP has to be drained for interceptors to work.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("music attached")
	return nil
}

// OnMediaReady stores mc as sid's media connection, closing any previous one.
func (o *Orchestrator) OnMediaReady(sid core.SessionID, mc core.MediaConnection) bool {
	sess, ok := o.Directory.GetSession(sid)
	if !ok {
		return false
	}
	sess.UpdateMedia(mc)
	return true
}
