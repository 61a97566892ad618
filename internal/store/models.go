package store

import (
	"time"

	"github.com/dkeye/Voicebox/internal/domain"
)

// Track is a room-scoped upload. Names are unique within a room.
type Track struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	RoomID    string          `gorm:"uniqueIndex:idx_room_track;not null" json:"room_id"`
	Name      string          `gorm:"uniqueIndex:idx_room_track;size:30;not null" json:"name"`
	CuratorID string          `gorm:"index;not null" json:"curator_id"`
	Locator   string          `gorm:"not null" json:"locator"`
	Category  domain.Category `gorm:"not null" json:"category"`
	CreatedAt time.Time       `json:"created_at"`
}

func (t Track) Ref() domain.TrackRef {
	return domain.TrackRef{
		Name:      t.Name,
		CuratorID: domain.UserID(t.CuratorID),
		Locator:   t.Locator,
		Category:  t.Category,
	}
}

// SharedTrack belongs to the process-wide pool. Its names are reserved in every room.
type SharedTrack struct {
	ID       uint            `gorm:"primaryKey" json:"-"`
	Name     string          `gorm:"uniqueIndex;not null" json:"name"`
	Locator  string          `gorm:"not null" json:"locator"`
	Category domain.Category `gorm:"not null" json:"category"`
}

func (t SharedTrack) Ref() domain.TrackRef {
	return domain.TrackRef{Name: t.Name, Locator: t.Locator, Category: t.Category}
}

// RoomConfig holds per-room settings. Missing rows read as defaultConfig.
type RoomConfig struct {
	RoomID        string `gorm:"primaryKey"`
	AllowShared   bool
	JukeboxPolicy domain.JukeboxPolicy
	Theme         string `gorm:"size:16"`
	UpdatedAt     time.Time
}

func (RoomConfig) TableName() string {
	return "room_settings"
}

func (c RoomConfig) Settings() domain.RoomSettings {
	return domain.RoomSettings{
		AllowSharedFallback: c.AllowShared,
		JukeboxPolicy:       c.JukeboxPolicy,
		Theme:               c.Theme,
	}
}

func defaultConfig(room domain.RoomID) RoomConfig {
	return RoomConfig{
		RoomID:        string(room),
		AllowShared:   true,
		JukeboxPolicy: domain.PolicyOnce,
		Theme:         "generic",
	}
}

// Profile is a user's custom declaration art within a room.
type Profile struct {
	RoomID string `gorm:"primaryKey"`
	UserID string `gorm:"primaryKey"`
	Image  string `gorm:"not null"`
}
