package http

import (
	"context"
	"crypto/subtle"

	"github.com/dkeye/Voicebox/internal/adapters/signal"
	"github.com/dkeye/Voicebox/internal/app/orch"
	"github.com/dkeye/Voicebox/internal/config"
	"github.com/dkeye/Voicebox/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	clientTokenKey = "client_token"
	adminHeader    = "X-Voicebox-Admin"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser a stable identity kept in the
// signed session cookie.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := sessions.Default(c)
		token, _ := s.Get("ct").(string)
		if token == "" {
			token = genClientToken()
			s.Set("ct", token)
			if err := s.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

// AdminMiddleware flags requests carrying the configured secret. Admins may
// remove tracks they did not add.
func AdminMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(adminHeader)
		c.Set("admin", got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(secret)) == 1)
		c.Next()
	}
}

type Deps struct {
	Orch      *orch.Orchestrator
	Signal    *signal.SignalWSController
	Presenter *signal.Presenter
	Repo      *store.Repository
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(cfg.Secret))
	cookieStore.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("VoiceboxSessions", cookieStore))
	r.Use(ClientTokenMiddleware())
	r.Use(AdminMiddleware(cfg.Secret))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	h := &handlers{orch: deps.Orch, presenter: deps.Presenter, repo: deps.Repo}
	api.GET("/whoami", h.whoami)
	api.GET("/rooms", h.listRooms)
	api.GET("/sessions", h.listSessions)

	room := api.Group("/rooms/:room")
	room.POST("/session", h.summon)
	room.DELETE("/session", h.dismiss)
	room.POST("/force", h.force)
	room.DELETE("/view", h.clearView)

	room.GET("/tracks", h.listTracks)
	room.POST("/tracks", h.addTrack)
	room.POST("/tracks/import", h.importTracks)
	room.DELETE("/tracks/:name", h.removeTrack)
	room.GET("/uploads", h.listUploads)

	room.GET("/settings", h.settings)
	room.PATCH("/settings", h.updateSettings)
	room.PUT("/profile", h.setProfile)
	room.DELETE("/profile", h.clearProfile)

	return r
}
