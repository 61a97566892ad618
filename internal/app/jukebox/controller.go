// Package jukebox implements the paginated, browsable catalog of a session and
// its four auto-advance policies.
package jukebox

import (
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/dkeye/Voicebox/internal/app/selection"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
)

// PageSize is the number of slots shown per page.
const PageSize = 10

const listingWidth = 32

// Controller is not safe for concurrent use; the owning session serializes access.
type Controller struct {
	rng       *rand.Rand
	album     []domain.TrackRef
	page      int
	selection int
	policy    domain.JukeboxPolicy
}

func New(policy domain.JukeboxPolicy, rng *rand.Rand) *Controller {
	if !policy.Valid() {
		policy = domain.PolicyOnce
	}
	return &Controller{rng: rng, selection: -1, policy: policy}
}

// Load snapshots tracks sorted by name and resets page and selection.
func (c *Controller) Load(tracks []domain.TrackRef) {
	album := slices.Clone(tracks)
	slices.SortStableFunc(album, func(a, b domain.TrackRef) int { return cmp.Compare(a.Name, b.Name) })
	c.album = album
	c.page = 0
	c.selection = -1
}

func (c *Controller) Len() int                     { return len(c.album) }
func (c *Controller) Page() int                    { return c.page }
func (c *Controller) Selection() int               { return c.selection }
func (c *Controller) Policy() domain.JukeboxPolicy { return c.policy }

// Pages is ceil(len(album)/PageSize).
func (c *Controller) Pages() int {
	return (len(c.album) + PageSize - 1) / PageSize
}

func (c *Controller) lastPage() int {
	return max(c.Pages()-1, 0)
}

// Current returns the selected track, if any.
func (c *Controller) Current() (domain.TrackRef, bool) {
	if c.selection < 0 || c.selection >= len(c.album) {
		return domain.TrackRef{}, false
	}
	return c.album[c.selection], true
}

// Select targets a page-relative slot (1..PageSize). Out of range slots leave
// the controller untouched and report false.
func (c *Controller) Select(slot int) (domain.TrackRef, bool) {
	if slot < 1 || slot > PageSize {
		return domain.TrackRef{}, false
	}
	idx := (slot - 1) + c.page*PageSize
	if idx >= len(c.album) {
		return domain.TrackRef{}, false
	}
	c.selection = idx
	return c.album[idx], true
}

// Jump selects the track with exactly this name and moves to its page.
func (c *Controller) Jump(name string) (domain.TrackRef, error) {
	idx := slices.IndexFunc(c.album, func(t domain.TrackRef) bool { return t.Name == name })
	if idx < 0 {
		return domain.TrackRef{}, fmt.Errorf("%w: [%s] was not found in this room or may be disabled; the name is case sensitive and must be an exact match", core.ErrNotFound, name)
	}
	c.page = idx / PageSize
	c.selection = idx
	return c.album[idx], nil
}

// Advance applies the policy after the current track completed. It returns false
// when playback should stop. The page is never changed.
func (c *Controller) Advance() (domain.TrackRef, bool) {
	c.selection = selection.Next(c.rng, c.policy, c.selection, len(c.album))
	return c.Current()
}

func (c *Controller) PrevPage() { c.page = min(max(c.page-1, 0), c.lastPage()) }
func (c *Controller) NextPage() { c.page = min(max(c.page+1, 0), c.lastPage()) }

func (c *Controller) Stop() { c.selection = -1 }

// CyclePolicy moves to the next policy and returns it.
func (c *Controller) CyclePolicy() domain.JukeboxPolicy {
	c.policy = c.policy.Next()
	return c.policy
}

func (c *Controller) PrevEnabled() bool { return c.page > 0 }
func (c *Controller) NextEnabled() bool { return c.page < c.Pages()-1 }

// SlotEnabled reports whether slot (1..PageSize) of the current page holds a track.
func (c *Controller) SlotEnabled(slot int) bool {
	return slot >= 1 && slot <= PageSize && (slot-1)+c.page*PageSize < len(c.album)
}

// View renders the grid of the current page.
func (c *Controller) View() *core.JukeboxView {
	v := &core.JukeboxView{
		Page:       c.page + 1,
		Pages:      c.Pages(),
		Policy:     c.policy.String(),
		PolicyIcon: c.policy.Icon(),
		Rows:       make([]core.JukeboxRow, 0, PageSize),
	}
	for slot := 1; slot <= PageSize; slot++ {
		idx := (slot - 1) + c.page*PageSize
		row := core.JukeboxRow{Slot: slot}
		if idx < len(c.album) {
			row.Name = c.album[idx].Name
			row.Selected = idx == c.selection
		} else {
			row.Empty = true
		}
		v.Rows = append(v.Rows, row)
	}
	v.Listing = listing(v)
	return v
}

// listing is the fixed-width text block shown in chat clients without a grid widget.
func listing(v *core.JukeboxView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page %d of %d\n%s\n", v.Page, v.Pages, strings.Repeat("-", 40))
	for i, row := range v.Rows {
		fmt.Fprintf(&b, "[%02d]", row.Slot)
		switch {
		case row.Empty:
			b.WriteString(" # --- ")
		case row.Selected:
			fmt.Fprintf(&b, "[ %s ]", pad(row.Name, '-'))
		default:
			fmt.Fprintf(&b, "( %s )", pad(row.Name, ' '))
		}
		if i != len(v.Rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func pad(name string, fill rune) string {
	r := []rune(name)
	if len(r) > listingWidth {
		return strings.TrimSpace(string(r[:listingWidth-1])) + "…"
	}
	if len(r) == listingWidth {
		return name
	}
	return name + " " + strings.Repeat(string(fill), listingWidth-len(r)-1)
}
