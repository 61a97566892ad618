package signal

import (
	"encoding/json"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/rs/zerolog/log"
)

const maxRoomIDLen = 36

func (ctl *SignalWSController) handleJoin(
	sid core.SessionID,
	conn core.SignalConnection,
	data []byte,
) {
	type joinPayload struct {
		Type string `json:"type"`
		Room string `json:"room"`
		Name string `json:"name,omitempty"`
	}
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if p.Room == "" || len(p.Room) > maxRoomIDLen {
		ctl.sendError(conn, "invalid_room")
		return
	}
	roomID := domain.RoomID(p.Room)

	if p.Name != "" {
		if err := ctl.Orch.Directory.UpdateUsername(sid, p.Name); err != nil {
			ctl.sendError(conn, "invalid_name")
			return
		}
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("name", p.Name).Msg("rename on join")
	}

	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room_id", p.Room).Msg("join")
	if !ctl.Orch.Join(sid, roomID) {
		ctl.sendError(conn, "not_connected")
		return
	}
	room, ok := ctl.Orch.Rooms.GetRoom(roomID)
	if !ok {
		ctl.sendError(conn, "room_gone")
		return
	}
	_, playing := ctl.Orch.Sessions.Lookup(roomID)
	clientResp := struct {
		Type     string           `json:"type"`
		Room     domain.RoomID    `json:"room"`
		RoomName domain.RoomName  `json:"room_name"`
		Members  []core.MemberDTO `json:"members"`
		Count    int              `json:"count"`
		Playing  bool             `json:"playing"`
	}{
		Type:     "room_state",
		Room:     room.Room().ID,
		RoomName: room.Room().Name,
		Members:  room.MembersSnapshot(),
		Count:    room.MemberCount(),
		Playing:  playing,
	}
	ctl.sendJSON(conn, clientResp)
	if frame, ok := ctl.Presenter.Current(roomID); ok {
		_ = conn.TrySend(frame)
	}

	user := ctl.Orch.Directory.GetOrCreateUser(sid)
	broadcastResp := struct {
		Type string      `json:"type"`
		User domain.User `json:"user"`
	}{
		Type: "member_joined",
		User: *user,
	}
	ctl.BroadcastFrom(sid, broadcastResp)
}

// handleLeave takes the listener out of its room; the connection stays open.
func (ctl *SignalWSController) handleLeave(
	sid core.SessionID,
	conn core.SignalConnection,
) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	roomID, _, ok := ctl.Orch.Directory.RoomOf(sid)

	ctl.Orch.KickBySID(sid)
	ctl.sendJSON(conn, map[string]any{
		"type": "left",
	})

	if ok {
		ctl.announceLeft(sid, roomID)
	}
}
