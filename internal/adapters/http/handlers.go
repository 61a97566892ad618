package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/Voicebox/internal/adapters/signal"
	"github.com/dkeye/Voicebox/internal/app/orch"
	"github.com/dkeye/Voicebox/internal/core"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/dkeye/Voicebox/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type handlers struct {
	orch      *orch.Orchestrator
	presenter *signal.Presenter
	repo      *store.Repository
}

func actor(c *gin.Context) domain.UserID { return domain.UserID(c.GetString(clientTokenKey)) }

func roomParam(c *gin.Context) domain.RoomID { return domain.RoomID(c.Param("room")) }

// statusFor maps session and repository errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrPermissionDenied), errors.Is(err, store.ErrNotCurator):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNoSession), errors.Is(err, core.ErrNotFound), errors.Is(err, store.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrAlreadyActive), errors.Is(err, core.ErrWrongMode), errors.Is(err, core.ErrEmptyCategory):
		return http.StatusConflict
	case errors.Is(err, core.ErrBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrInvalidAction), errors.Is(err, store.ErrBadCategory):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTransportUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := core.Describe(err)
	switch {
	case status == http.StatusInternalServerError:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	case errors.Is(err, store.ErrNotCurator), errors.Is(err, store.ErrTrackNotFound), errors.Is(err, store.ErrBadCategory):
		msg = err.Error()
	}
	if msg == "" {
		msg = err.Error()
	}
	c.JSON(status, gin.H{"error": msg})
}

// GET /api/whoami
func (h *handlers) whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"id": actor(c)})
}

// GET /api/rooms lists rooms with their listener count.
func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.RoomInfos()})
}

// GET /api/sessions lists live players.
func (h *handlers) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.orch.SessionInfos()})
}

// POST /api/rooms/:room/session starts the player. The caller must be listening there.
func (h *handlers) summon(c *gin.Context) {
	info, err := h.orch.Summon(c.Request.Context(), roomParam(c), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// DELETE /api/rooms/:room/session
func (h *handlers) dismiss(c *gin.Context) {
	err := h.orch.Dispatch(c.Request.Context(), roomParam(c), actor(c), core.Action{Kind: core.ActionDismiss})
	if err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/rooms/:room/force
func (h *handlers) force(c *gin.Context) {
	var req struct {
		Track  string `json:"track"`
		Target string `json:"target"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	a := core.Action{Kind: core.ActionForcePlay, Track: req.Track, Target: domain.UserID(req.Target)}
	if err := h.orch.Dispatch(c.Request.Context(), roomParam(c), actor(c), a); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/rooms/:room/view removes the room's player view. The player
// keeps running without one.
func (h *handlers) clearView(c *gin.Context) {
	if !h.presenter.Clear(roomParam(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no view in this room"})
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/rooms/:room/tracks?category=&curator=
func (h *handlers) listTracks(c *gin.Context) {
	cat, err := domain.ParseCategory(c.Query("category"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filter := core.TrackFilter{Category: cat, Curator: domain.UserID(c.Query("curator"))}
	tracks, err := h.repo.List(c.Request.Context(), roomParam(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracks": tracks})
}

// GET /api/rooms/:room/uploads lists the caller's own tracks in a form
// accepted by the import endpoint.
func (h *handlers) listUploads(c *gin.Context) {
	tracks, err := h.repo.ListUploads(c.Request.Context(), roomParam(c), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]store.ImportEntry, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, store.ImportEntry{Name: t.Name, Locator: t.Locator, Category: t.Category})
	}
	c.JSON(http.StatusOK, gin.H{"tracks": out})
}

// POST /api/rooms/:room/tracks
func (h *handlers) addTrack(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		URL      string `json:"url" binding:"required"`
		Category string `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, url and category are required"})
		return
	}
	cat, err := domain.ParseCategory(req.Category)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	code, err := h.repo.AddTrack(c.Request.Context(), roomParam(c), actor(c), req.Name, req.URL, cat)
	if err != nil && !errors.Is(err, store.ErrBadCategory) {
		log.Error().Err(err).Str("module", "adapters.http").Str("track", req.Name).Msg("add track")
	}
	status := http.StatusCreated
	if !code.OK() {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"code": code, "message": code.Message(req.Name)})
}

// POST /api/rooms/:room/tracks/import
func (h *handlers) importTracks(c *gin.Context) {
	var entries []store.ImportEntry
	if err := c.ShouldBindJSON(&entries); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a list of tracks"})
		return
	}
	results := h.repo.Import(c.Request.Context(), roomParam(c), actor(c), entries)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// DELETE /api/rooms/:room/tracks/:name
func (h *handlers) removeTrack(c *gin.Context) {
	removal, err := h.repo.RemoveTrack(c.Request.Context(), roomParam(c), actor(c), c.Param("name"), c.GetBool("admin"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"track": removal.Track, "override": removal.Override})
}

// GET /api/rooms/:room/settings
func (h *handlers) settings(c *gin.Context) {
	s, err := h.repo.Settings(c.Request.Context(), roomParam(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, settingsResponse(s))
}

// PATCH /api/rooms/:room/settings
func (h *handlers) updateSettings(c *gin.Context) {
	var req struct {
		AllowShared *bool   `json:"allow_shared"`
		Theme       *string `json:"theme"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	ctx, room := c.Request.Context(), roomParam(c)
	if req.AllowShared != nil {
		if err := h.repo.SetAllowShared(ctx, room, *req.AllowShared); err != nil {
			fail(c, err)
			return
		}
	}
	if req.Theme != nil {
		if err := h.repo.SetTheme(ctx, room, *req.Theme); err != nil {
			fail(c, err)
			return
		}
	}
	h.settings(c)
}

func settingsResponse(s domain.RoomSettings) gin.H {
	return gin.H{
		"allow_shared":   s.AllowSharedFallback,
		"jukebox_policy": s.JukeboxPolicy.String(),
		"theme":          s.Theme,
	}
}

// PUT /api/rooms/:room/profile sets the caller's declaration art.
func (h *handlers) setProfile(c *gin.Context) {
	var req struct {
		Image string `json:"image" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image is required"})
		return
	}
	if err := h.repo.SetProfile(c.Request.Context(), roomParam(c), actor(c), req.Image); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /api/rooms/:room/profile
func (h *handlers) clearProfile(c *gin.Context) {
	if err := h.repo.ClearProfile(c.Request.Context(), roomParam(c), actor(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
