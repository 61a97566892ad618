// Package store persists room tracks, the shared album, room settings and
// user profiles in SQLite through gorm.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var (
	ErrTrackNotFound = errors.New("track does not exist in this room, or is an immutable shared track")
	ErrNotCurator    = errors.New("only the curator can delete this track")
	ErrBadCategory   = errors.New("tracks must be either rotation or declaration")
)

// Open opens a SQLite database. ":memory:" is limited to a single connection
// so every query sees the same database.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dsn, err)
	}
	if dsn == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

type Repository struct {
	db     *gorm.DB
	probe  Prober
	logger zerolog.Logger
}

var _ core.Catalog = (*Repository)(nil)

// New migrates the schema and returns a repository validating links with probe.
func New(db *gorm.DB, probe Prober) (*Repository, error) {
	if err := db.AutoMigrate(&Track{}, &SharedTrack{}, &RoomConfig{}, &Profile{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Repository{
		db:     db,
		probe:  probe,
		logger: log.With().Str("module", "store").Logger(),
	}, nil
}

// AddTrack validates and stores a track. Validation outcomes are reported as
// codes; the error is only set for UnhandledError.
func (r *Repository) AddTrack(ctx context.Context, room domain.RoomID, curator domain.UserID, name, link string, c domain.Category) (Code, error) {
	return r.addTrack(ctx, room, curator, name, link, c, true)
}

func (r *Repository) addTrack(ctx context.Context, room domain.RoomID, curator domain.UserID, name, link string, c domain.Category, probe bool) (Code, error) {
	if c != domain.CategoryRotation && c != domain.CategoryDeclaration {
		return UnhandledError, ErrBadCategory
	}

	var reserved int64
	if err := r.db.WithContext(ctx).Model(&SharedTrack{}).Where("name = ?", name).Count(&reserved).Error; err != nil {
		return UnhandledError, fmt.Errorf("check reserved names: %w", err)
	}
	if reserved > 0 {
		return Reserved, nil
	}
	if code := validName(name); code != Success {
		return code, nil
	}

	link = NormalizeURL(link)
	code := Success
	if probe {
		err := r.probe.Probe(ctx, link, "audio")
		switch {
		case err == nil:
		case errors.Is(err, ErrBadURL):
			return BadURL, nil
		case errors.Is(err, ErrProbeTimeout):
			return ValidationTimeout, nil
		case isDropboxRaw(link):
			r.logger.Debug().Str("url", link).Msg("dropbox link cannot be probed, accepting")
			code = DropboxSuccess
		default:
			r.logger.Debug().Err(err).Str("url", link).Msg("link rejected")
			return NotAudio, nil
		}
	}

	t := Track{
		RoomID:    string(room),
		Name:      name,
		CuratorID: string(curator),
		Locator:   link,
		Category:  c,
	}
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return NameInUse, nil
		}
		return UnhandledError, fmt.Errorf("insert track %q: %w", name, err)
	}
	r.logger.Info().Str("room", string(room)).Str("user", string(curator)).Str("track", name).Stringer("category", c).Msg("track added")
	return code, nil
}

// ImportEntry is one row of a track export.
type ImportEntry struct {
	Name     string          `json:"name"`
	Locator  string          `json:"locator"`
	Category domain.Category `json:"category"`
}

type ImportResult struct {
	Name     string          `json:"name"`
	Category domain.Category `json:"category"`
	Code     Code            `json:"code"`
}

// Import stores entries without probing their links.
func (r *Repository) Import(ctx context.Context, room domain.RoomID, curator domain.UserID, entries []ImportEntry) []ImportResult {
	out := make([]ImportResult, 0, len(entries))
	for _, e := range entries {
		code, err := r.addTrack(ctx, room, curator, e.Name, e.Locator, e.Category, false)
		if err != nil {
			r.logger.Error().Err(err).Str("room", string(room)).Str("track", e.Name).Msg("import failed")
		}
		out = append(out, ImportResult{Name: e.Name, Category: e.Category, Code: code})
	}
	return out
}

// Removal describes a completed RemoveTrack.
type Removal struct {
	Track    domain.TrackRef
	Override bool
}

// RemoveTrack deletes a room track. Only its curator may do so unless admin is set.
func (r *Repository) RemoveTrack(ctx context.Context, room domain.RoomID, actor domain.UserID, name string, admin bool) (Removal, error) {
	var t Track
	err := r.db.WithContext(ctx).Where("room_id = ? AND name = ?", string(room), name).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Removal{}, fmt.Errorf("%w: [%s]", ErrTrackNotFound, name)
	}
	if err != nil {
		return Removal{}, fmt.Errorf("find track %q: %w", name, err)
	}
	if !admin && t.CuratorID != string(actor) {
		return Removal{}, fmt.Errorf("%w: [%s]", ErrNotCurator, name)
	}
	if err := r.db.WithContext(ctx).Delete(&t).Error; err != nil {
		return Removal{}, fmt.Errorf("delete track %q: %w", name, err)
	}
	override := t.CuratorID != string(actor)
	r.logger.Info().Str("room", string(room)).Str("user", string(actor)).Str("track", name).Bool("override", override).Msg("track removed")
	return Removal{Track: t.Ref(), Override: override}, nil
}

// ListUploads returns the tracks user added to room.
func (r *Repository) ListUploads(ctx context.Context, room domain.RoomID, user domain.UserID) ([]domain.TrackRef, error) {
	var rows []Track
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND curator_id = ?", string(room), string(user)).
		Order("name").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return refs(rows), nil
}

// List returns room tracks matching f, ordered by name. Without a curator
// filter the shared album is merged in when the room allows it.
func (r *Repository) List(ctx context.Context, room domain.RoomID, f core.TrackFilter) ([]domain.TrackRef, error) {
	q := r.db.WithContext(ctx).Where("room_id = ?", string(room))
	if f.Category != domain.CategoryAny {
		q = q.Where("category = ?", f.Category)
	}
	if f.Curator != "" {
		q = q.Where("curator_id = ?", string(f.Curator))
	}
	var rows []Track
	if err := q.Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	out := refs(rows)
	if f.Curator != "" {
		return out, nil
	}

	cfg, err := r.config(ctx, room)
	if err != nil {
		return nil, err
	}
	if !cfg.AllowShared {
		return out, nil
	}
	shared, err := r.Shared(ctx, f.Category)
	if err != nil {
		return nil, err
	}
	out = append(out, shared...)
	slices.SortStableFunc(out, func(a, b domain.TrackRef) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// Shared returns the shared album, optionally narrowed to one category.
func (r *Repository) Shared(ctx context.Context, c domain.Category) ([]domain.TrackRef, error) {
	q := r.db.WithContext(ctx)
	if c != domain.CategoryAny {
		q = q.Where("category = ?", c)
	}
	var rows []SharedTrack
	if err := q.Order("name").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list shared tracks: %w", err)
	}
	out := make([]domain.TrackRef, 0, len(rows))
	for _, t := range rows {
		out = append(out, t.Ref())
	}
	return out, nil
}

// SeedShared upserts the shared album by name.
func (r *Repository) SeedShared(ctx context.Context, tracks []domain.TrackRef) error {
	if len(tracks) == 0 {
		return nil
	}
	rows := make([]SharedTrack, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, SharedTrack{Name: t.Name, Locator: t.Locator, Category: t.Category})
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"locator", "category"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("seed shared album: %w", err)
	}
	r.logger.Info().Int("tracks", len(rows)).Msg("shared album seeded")
	return nil
}

func (r *Repository) config(ctx context.Context, room domain.RoomID) (RoomConfig, error) {
	var cfg RoomConfig
	err := r.db.WithContext(ctx).Where("room_id = ?", string(room)).First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultConfig(room), nil
	}
	if err != nil {
		return RoomConfig{}, fmt.Errorf("load room settings: %w", err)
	}
	return cfg, nil
}

func (r *Repository) updateConfig(ctx context.Context, room domain.RoomID, mutate func(*RoomConfig)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cfg RoomConfig
		err := tx.Where("room_id = ?", string(room)).First(&cfg).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			cfg = defaultConfig(room)
		} else if err != nil {
			return err
		}
		mutate(&cfg)
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&cfg).Error
	})
}

func (r *Repository) Settings(ctx context.Context, room domain.RoomID) (domain.RoomSettings, error) {
	cfg, err := r.config(ctx, room)
	if err != nil {
		return domain.RoomSettings{}, err
	}
	return cfg.Settings(), nil
}

func (r *Repository) SaveJukeboxPolicy(ctx context.Context, room domain.RoomID, p domain.JukeboxPolicy) error {
	return r.updateConfig(ctx, room, func(c *RoomConfig) { c.JukeboxPolicy = p })
}

func (r *Repository) SetAllowShared(ctx context.Context, room domain.RoomID, allow bool) error {
	return r.updateConfig(ctx, room, func(c *RoomConfig) { c.AllowShared = allow })
}

// SetTheme stores the theme name; unknown names render as the generic theme.
func (r *Repository) SetTheme(ctx context.Context, room domain.RoomID, theme string) error {
	name := domain.LookupTheme(theme).Name
	return r.updateConfig(ctx, room, func(c *RoomConfig) { c.Theme = name })
}

// SetProfile assigns custom declaration art after checking the image link.
func (r *Repository) SetProfile(ctx context.Context, room domain.RoomID, user domain.UserID, image string) error {
	err := r.probe.Probe(ctx, image, "image")
	switch {
	case errors.Is(err, ErrBadURL), errors.Is(err, ErrProbeTimeout):
		return err
	case err != nil:
		r.logger.Debug().Err(err).Str("url", image).Msg("profile image probe failed, checking extension only")
	}
	if err := imageExtension(image); err != nil {
		return err
	}
	p := Profile{RoomID: string(room), UserID: string(user), Image: image}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&p).Error; err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (r *Repository) ClearProfile(ctx context.Context, room domain.RoomID, user domain.UserID) error {
	err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", string(room), string(user)).Delete(&Profile{}).Error
	if err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	return nil
}

func (r *Repository) ProfileImage(ctx context.Context, room domain.RoomID, user domain.UserID) (string, bool) {
	var p Profile
	err := r.db.WithContext(ctx).Where("room_id = ? AND user_id = ?", string(room), string(user)).First(&p).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Error().Err(err).Str("room", string(room)).Str("user", string(user)).Msg("failed to load profile")
		}
		return "", false
	}
	return p.Image, true
}

func refs(rows []Track) []domain.TrackRef {
	out := make([]domain.TrackRef, 0, len(rows))
	for _, t := range rows {
		out = append(out, t.Ref())
	}
	return out
}
