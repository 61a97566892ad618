package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) handleSummon(ctx context.Context, sid core.SessionID, conn core.SignalConnection) {
	roomID, _, ok := ctl.Orch.Directory.RoomOf(sid)
	if !ok {
		ctl.sendError(conn, core.Describe(core.ErrPermissionDenied))
		return
	}
	if !ctl.allow(sid) {
		ctl.sendError(conn, "rate_limited")
		return
	}
	info, err := ctl.Orch.Summon(ctx, roomID, domain.UserID(sid))
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Str("room", string(roomID)).Msg("summon failed")
		ctl.reply(conn, err)
		return
	}
	ctl.BroadcastRoom(roomID, struct {
		Type string        `json:"type"`
		Room domain.RoomID `json:"room"`
		Mode string        `json:"mode"`
		By   domain.UserID `json:"summoned_by"`
	}{"player_started", roomID, info.Mode, domain.UserID(sid)})
}

// handleAction decodes a pressed control of the room's view.
func (ctl *SignalWSController) handleAction(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	var p struct {
		Type    string `json:"type"`
		Control string `json:"control"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad action payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	a, err := core.ParseControl(p.Control)
	if err != nil {
		ctl.reply(conn, err)
		return
	}
	ctl.dispatch(ctx, sid, conn, a)
}

// handleForce plays a named jukebox track or draws a declaration on behalf of
// another listener.
func (ctl *SignalWSController) handleForce(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	var p struct {
		Type   string `json:"type"`
		Track  string `json:"track"`
		Target string `json:"target"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad force payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.dispatch(ctx, sid, conn, core.Action{
		Kind:   core.ActionForcePlay,
		Track:  p.Track,
		Target: domain.UserID(p.Target),
	})
}

func (ctl *SignalWSController) dispatch(ctx context.Context, sid core.SessionID, conn core.SignalConnection, a core.Action) {
	roomID, _, ok := ctl.Orch.Directory.RoomOf(sid)
	if !ok {
		ctl.reply(conn, core.ErrPermissionDenied)
		return
	}
	if !ctl.allow(sid) {
		log.Debug().Str("module", "signal").Str("sid", string(sid)).Stringer("action", a.Kind).Msg("rate limited")
		return
	}
	err := ctl.Orch.Dispatch(ctx, roomID, domain.UserID(sid), a)
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Stringer("action", a.Kind).Msg("action rejected")
	}
	ctl.reply(conn, err)
}

// reply tells only the initiating listener what went wrong.
func (ctl *SignalWSController) reply(conn core.SignalConnection, err error) {
	if msg := core.Describe(err); msg != "" {
		ctl.sendError(conn, msg)
	}
}

func (ctl *SignalWSController) allow(sid core.SessionID) bool {
	return ctl.Limiter == nil || ctl.Limiter.Allow(domain.UserID(sid))
}
