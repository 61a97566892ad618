package domain

import "fmt"

// Category partitions a room's catalog. CategoryAny is only meaningful as a filter.
type Category int

const (
	CategoryAny Category = iota
	CategoryRotation
	CategoryDeclaration
)

func (c Category) String() string {
	switch c {
	case CategoryAny:
		return "any"
	case CategoryRotation:
		return "rotation"
	case CategoryDeclaration:
		return "declaration"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory accepts the long names as well as the "h"/"r" shorthands used by commands.
func ParseCategory(s string) (Category, error) {
	switch s {
	case "", "any":
		return CategoryAny, nil
	case "rotation", "h":
		return CategoryRotation, nil
	case "declaration", "r":
		return CategoryDeclaration, nil
	}
	return CategoryAny, fmt.Errorf("unknown category %q", s)
}

// TrackRef is a named pointer to a playable resource. Values are treated as immutable
// once they enter a session's working set.
type TrackRef struct {
	Name      string   `json:"name"`
	CuratorID UserID   `json:"curator_id"`
	Locator   string   `json:"locator"`
	Category  Category `json:"category"`
}
