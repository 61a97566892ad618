package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/Voicebox/internal/app/jukebox"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
)

// Art keys understood by the web client. Declaration art may be replaced by a
// user's profile image URL.
const (
	ArtStandby     = "standby"
	ArtRotation    = "rotation"
	ArtDeclaration = "declaration"
	ArtJukebox     = "jukebox"
	ArtCompleted   = "completed"
	ArtTimedOut    = "timed_out"
)

const (
	trackWidth          = 25
	curatorWidth        = 12
	jukeboxCuratorWidth = 15

	nothingPlaying = "[Nothing]"
	notAvailable   = "N/A"
)

// status is the mutable part of the idle, rotation and declaration views.
type status struct {
	art         string
	description string
	track       string
	curator     string
	player      string
}

func (st *status) reset() {
	st.art = ArtStandby
	st.description = "On standby."
	st.track = nothingPlaying
	st.curator = notAvailable
	st.player = notAvailable
}

func (st *status) setTrack(t domain.TrackRef, curator, player string) {
	st.track = truncate(t.Name, trackWidth)
	st.curator = truncate(curator, curatorWidth)
	if player == "" {
		player = notAvailable
	}
	st.player = player
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return strings.TrimSpace(string(r[:width-1])) + "…"
}

func (s *Session) view() core.View {
	if s.mode == ModeJukebox {
		return s.jukeboxView()
	}
	return core.View{
		Mode:        s.mode.String(),
		Title:       "Status:",
		Description: s.status.description,
		Art:         s.status.art,
		NowPlaying:  s.status.track,
		Curator:     s.status.curator,
		PlayerLabel: s.theme.DeclarerLabel,
		Player:      s.status.player,
		Declared:    len(s.declared),
		Controls:    mainControls(s.theme),
		Footer:      footer("Session started:", s.started),
	}
}

func (s *Session) jukeboxView() core.View {
	v := core.View{
		Mode:        ModeJukebox.String(),
		Title:       "Mode:",
		Description: s.jukebox.Policy().String(),
		Art:         ArtJukebox,
		NowPlaying:  nothingPlaying,
		Curator:     notAvailable,
		Jukebox:     s.jukebox.View(),
		Controls:    jukeboxControls(s.jukebox, s.theme),
		Footer:      footer("Session started:", s.started),
	}
	if t, ok := s.jukebox.Current(); ok {
		v.NowPlaying = t.Name
		v.Curator = truncate(s.presence.DisplayName(t.CuratorID), jukeboxCuratorWidth)
	}
	return v
}

func (s *Session) closedView(timedOut bool) core.View {
	art := ArtCompleted
	if timedOut {
		art = ArtTimedOut
	}
	return core.View{
		Mode:        "closed",
		Title:       "Status:",
		Description: "Completed session.",
		Art:         art,
		Footer:      footer("Session ended:", time.Now()),
		Closed:      true,
	}
}

func footer(label string, at time.Time) string {
	return label + " " + at.UTC().Format(time.RFC3339)
}

func mainControls(th domain.Theme) [][]core.Control {
	return [][]core.Control{{
		{ID: core.ControlRotation, Label: th.Rotation, Style: "primary"},
		{ID: core.ControlDeclaration, Label: th.Declaration, Style: "success"},
		{ID: core.ControlStandby, Label: "Standby", Style: "secondary"},
		{ID: core.ControlDismiss, Label: "Dismiss", Style: "danger"},
		{ID: core.ControlJukebox, Label: "Jukebox", Style: "success"},
	}}
}

func jukeboxControls(c *jukebox.Controller, th domain.Theme) [][]core.Control {
	rows := make([][]core.Control, 0, 3)
	for first := 1; first <= jukebox.PageSize; first += 5 {
		row := make([]core.Control, 0, 5)
		for slot := first; slot < first+5; slot++ {
			row = append(row, core.Control{
				ID:       strconv.Itoa(slot),
				Label:    fmt.Sprintf("%02d", slot),
				Style:    "primary",
				Disabled: !c.SlotEnabled(slot),
			})
		}
		rows = append(rows, row)
	}
	rows = append(rows, []core.Control{
		{ID: core.ControlPrev, Label: "<<", Style: "secondary", Disabled: !c.PrevEnabled()},
		{ID: core.ControlStop, Label: "⏹", Style: "success"},
		{ID: core.ControlGame, Label: th.Icon, Style: "danger"},
		{ID: core.ControlPolicy, Label: c.Policy().Icon(), Style: "success"},
		{ID: core.ControlNext, Label: ">>", Style: "secondary", Disabled: !c.NextEnabled()},
	})
	return rows
}
