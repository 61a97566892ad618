package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *SignalWSController) writePump(ctx context.Context, c *WsSignalConn) {
	var ping <-chan time.Time
	if ctl.PingPeriod > 0 {
		t := time.NewTicker(ctl.PingPeriod)
		defer t.Stop()
		ping = t.C
	}
	defer c.Close()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ping:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (ctl *SignalWSController) readPump(ctx context.Context, sid core.SessionID, sess core.MemberSession, c *WsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
		c.Close()
		ctl.release(sid, sess)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
				return
			}
			ctl.handleSignal(ctx, sid, c, data)
		}
	}
}

func (ctl *SignalWSController) handleSignal(ctx context.Context, sid core.SessionID, c core.SignalConnection, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(sid, c, data)
	case "leave":
		ctl.handleLeave(sid, c)
	case "ping":
		ctl.handlePing(c)
	case "rename":
		ctl.handleRename(sid, c, data)
	case "whoami":
		ctl.handleWhoAmI(sid, c)
	case "offer":
		ctl.handleOffer(ctx, sid, c, data)
	case "candidate":
		ctl.handleCandidate(sid, c, data)
	case "summon":
		ctl.handleSummon(ctx, sid, c)
	case "action":
		ctl.handleAction(ctx, sid, c, data)
	case "force":
		ctl.handleForce(ctx, sid, c, data)
	case "dismiss":
		ctl.dispatch(ctx, sid, c, core.Action{Kind: core.ActionDismiss})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
	}
}

func (ctl *SignalWSController) sendJSON(c core.SignalConnection, v any) {
	if c == nil {
		return
	}
	if b, ok := marshal(v); ok {
		_ = c.TrySend(b)
	}
}

func (ctl *SignalWSController) sendError(c core.SignalConnection, msg string) {
	ctl.sendJSON(c, map[string]any{
		"type":  "error",
		"error": msg,
	})
}

// release drops sid once its connection sess is gone. Nothing happens when
// sid has already moved on to a newer connection.
func (ctl *SignalWSController) release(sid core.SessionID, sess core.MemberSession) {
	roomID, _, inRoom := ctl.Orch.Directory.RoomOf(sid)
	if !ctl.Orch.Disconnect(sid, sess) {
		return
	}
	if ctl.Limiter != nil {
		ctl.Limiter.Forget(domain.UserID(sid))
	}
	if inRoom {
		ctl.announceLeft(sid, roomID)
	}
}

func (ctl *SignalWSController) announceLeft(sid core.SessionID, roomID domain.RoomID) {
	user := ctl.Orch.Directory.GetOrCreateUser(sid)
	ctl.BroadcastRoom(roomID, struct {
		Type string      `json:"type"`
		User domain.User `json:"user"`
	}{
		Type: "member_left",
		User: *user,
	})
}
