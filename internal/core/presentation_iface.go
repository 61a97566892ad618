package core

import "context"

// MessageHandle identifies a rendered session view. Opaque to the session.
type MessageHandle string

// Presentation owns the visible rendering of a session.
// Edit returns ErrStale when the target was removed from under the session.
type Presentation interface {
	Send(ctx context.Context, target string, v View) (MessageHandle, error)
	Edit(ctx context.Context, h MessageHandle, v View) error
}

// Control is a single interactive button of a view.
type Control struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Style    string `json:"style,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

type JukeboxRow struct {
	Slot     int    `json:"slot"`
	Name     string `json:"name,omitempty"`
	Selected bool   `json:"selected,omitempty"`
	Empty    bool   `json:"empty,omitempty"`
}

type JukeboxView struct {
	Page       int          `json:"page"`
	Pages      int          `json:"pages"`
	Policy     string       `json:"policy"`
	PolicyIcon string       `json:"policy_icon"`
	Rows       []JukeboxRow `json:"rows"`
	Listing    string       `json:"listing"`
}

// View is the idempotent view model rendered for a session.
type View struct {
	Mode        string       `json:"mode"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Art         string       `json:"art"`
	NowPlaying  string       `json:"now_playing"`
	Curator     string       `json:"curator"`
	PlayerLabel string       `json:"player_label,omitempty"`
	Player      string       `json:"player,omitempty"`
	Declared    int          `json:"declared,omitempty"`
	Jukebox     *JukeboxView `json:"jukebox,omitempty"`
	Controls    [][]Control  `json:"controls"`
	Footer      string       `json:"footer"`
	Closed      bool         `json:"closed,omitempty"`
}
