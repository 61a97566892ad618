package core

import (
	"fmt"
	"strconv"

	"github.com/dkeye/Voicebox/internal/domain"
)

// ActionKind enumerates every interaction a session understands.
type ActionKind int

const (
	ActionRotation ActionKind = iota + 1
	ActionDeclaration
	ActionStandby
	ActionDismiss
	ActionJukebox
	ActionJukeboxSelect
	ActionJukeboxPrev
	ActionJukeboxNext
	ActionJukeboxStop
	ActionJukeboxPolicy
	ActionForcePlay
)

var actionNames = map[ActionKind]string{
	ActionRotation:      "rotation",
	ActionDeclaration:   "declaration",
	ActionStandby:       "standby",
	ActionDismiss:       "dismiss",
	ActionJukebox:       "jukebox",
	ActionJukeboxSelect: "jukebox_select",
	ActionJukeboxPrev:   "jukebox_prev",
	ActionJukeboxNext:   "jukebox_next",
	ActionJukeboxStop:   "jukebox_stop",
	ActionJukeboxPolicy: "jukebox_policy",
	ActionForcePlay:     "force_play",
}

func (k ActionKind) String() string {
	if n, ok := actionNames[k]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Action is a decoded user interaction. Slot is used by ActionJukeboxSelect,
// Track and Target by ActionForcePlay.
type Action struct {
	Kind   ActionKind
	Slot   int
	Track  string
	Target domain.UserID
}

// Control ids rendered into views. ParseControl is their inverse.
const (
	ControlRotation    = "rotation"
	ControlDeclaration = "declaration"
	ControlStandby     = "standby"
	ControlDismiss     = "dismiss"
	ControlJukebox     = "jukebox"
	ControlPrev        = "prev"
	ControlNext        = "next"
	ControlStop        = "stop"
	ControlGame        = "game"
	ControlPolicy      = "mode"
)

// ParseControl decodes the id of a pressed control into an Action.
func ParseControl(id string) (Action, error) {
	switch id {
	case ControlRotation, "hanchan":
		return Action{Kind: ActionRotation}, nil
	case ControlDeclaration, "riichi":
		return Action{Kind: ActionDeclaration}, nil
	case ControlStandby, ControlGame:
		return Action{Kind: ActionStandby}, nil
	case ControlDismiss, "exit":
		return Action{Kind: ActionDismiss}, nil
	case ControlJukebox:
		return Action{Kind: ActionJukebox}, nil
	case ControlPrev:
		return Action{Kind: ActionJukeboxPrev}, nil
	case ControlNext:
		return Action{Kind: ActionJukeboxNext}, nil
	case ControlStop:
		return Action{Kind: ActionJukeboxStop}, nil
	case ControlPolicy:
		return Action{Kind: ActionJukeboxPolicy}, nil
	}
	if n, err := strconv.Atoi(id); err == nil && n >= 1 && n <= 10 {
		return Action{Kind: ActionJukeboxSelect, Slot: n}, nil
	}
	return Action{}, fmt.Errorf("%w: unknown control %q", ErrInvalidAction, id)
}
