package orch

import (
	"context"

	"github.com/dkeye/Voicebox/internal/app"
	"github.com/dkeye/Voicebox/internal/app/session"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/rs/zerolog/log"
)

// Summon starts the room's player on behalf of actor, who must be listening
// in that room. Audio and view both target the room itself.
func (o *Orchestrator) Summon(ctx context.Context, roomID domain.RoomID, actor domain.UserID) (session.Info, error) {
	room, ok := o.Rooms.GetRoom(roomID)
	if !ok || !room.HasUser(actor) {
		return session.Info{}, core.ErrPermissionDenied
	}
	s, err := o.Sessions.Create(ctx, roomID, string(roomID), string(roomID))
	if err != nil {
		return session.Info{}, err
	}
	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("user", string(actor)).Msg("player summoned")
	o.observe(roomID)
	return s.Info(), nil
}

// Dispatch hands an interaction to the room's session.
func (o *Orchestrator) Dispatch(ctx context.Context, roomID domain.RoomID, actor domain.UserID, a core.Action) error {
	err := o.Sessions.Handle(ctx, roomID, actor, a)
	if a.Kind == core.ActionDismiss {
		o.observe(roomID)
	}
	return err
}

// SessionInfos lists the live sessions ordered by room.
func (o *Orchestrator) SessionInfos() []session.Info {
	rooms := o.Sessions.Rooms()
	out := make([]session.Info, 0, len(rooms))
	for _, id := range rooms {
		if s, ok := o.Sessions.Lookup(id); ok {
			out = append(out, s.Info())
		}
	}
	return out
}

// RoomInfos lists rooms and whether a player is active in each.
func (o *Orchestrator) RoomInfos() []core.RoomInfo {
	out := o.Rooms.List()
	for i := range out {
		_, out[i].Playing = o.Sessions.Lookup(out[i].ID)
	}
	return out
}

// Presence answers membership questions for sessions from the listener
// directory and the room set.
type Presence struct {
	Directory *app.Directory
	Rooms     core.RoomManager
	BotName   string
}

func (p Presence) InVoice(roomID domain.RoomID, user domain.UserID) bool {
	room, ok := p.Rooms.GetRoom(roomID)
	return ok && room.HasUser(user)
}

func (p Presence) DisplayName(user domain.UserID) string {
	if user == "" {
		return p.BotName
	}
	if u, ok := p.Directory.User(user); ok {
		return u.DisplayName()
	}
	return string(user)
}
