package core

import (
	"context"

	"github.com/dkeye/Voicebox/internal/domain"
)

// TrackFilter narrows Catalog.List. Zero values mean "any".
type TrackFilter struct {
	Category domain.Category
	Curator  domain.UserID
}

// Catalog is the read side of the track repository as seen by a session.
type Catalog interface {
	// List returns the room's tracks ordered by name. When no curator is given and
	// the room allows the shared pool, shared tracks are included.
	List(ctx context.Context, room domain.RoomID, f TrackFilter) ([]domain.TrackRef, error)
	// Shared returns the process-wide shared pool for a category.
	Shared(ctx context.Context, c domain.Category) ([]domain.TrackRef, error)
	Settings(ctx context.Context, room domain.RoomID) (domain.RoomSettings, error)
	SaveJukeboxPolicy(ctx context.Context, room domain.RoomID, p domain.JukeboxPolicy) error
	// ProfileImage returns a user's custom declaration art, if any.
	ProfileImage(ctx context.Context, room domain.RoomID, user domain.UserID) (string, bool)
}

// Presence answers who is in a room's live audio channel.
type Presence interface {
	InVoice(room domain.RoomID, user domain.UserID) bool
	DisplayName(user domain.UserID) string
}
