package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dkeye/Voicebox/internal/adapters/http"
	"github.com/dkeye/Voicebox/internal/adapters/rtc"
	sig "github.com/dkeye/Voicebox/internal/adapters/signal"
	"github.com/dkeye/Voicebox/internal/app"
	"github.com/dkeye/Voicebox/internal/app/orch"
	"github.com/dkeye/Voicebox/internal/app/presence"
	"github.com/dkeye/Voicebox/internal/app/session"
	"github.com/dkeye/Voicebox/internal/config"
	"github.com/dkeye/Voicebox/internal/domain"
	"github.com/dkeye/Voicebox/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Mode == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	repo, err := store.New(db, store.NewHTTPProber(cfg.ProbeTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare database")
	}
	if err := seedShared(ctx, repo, cfg.SharedTracks); err != nil {
		log.Error().Err(err).Msg("failed to seed shared album")
	}

	dir := app.NewDirectory()
	rooms := app.NewRoomManager()
	music := rtc.NewMusicTransport(nil)

	o := &orch.Orchestrator{
		Directory: dir,
		Rooms:     rooms,
		Policy:    app.NewSimplePolicy(8),
		Music:     music,
	}
	presenter := sig.NewPresenter(o)
	sessions := session.NewRegistry(music, repo, presenter, orch.Presence{Directory: dir, Rooms: rooms, BotName: "Voicebox"})
	watcher := presence.NewWatcher(cfg.GracePeriod, sessions)
	o.Sessions = sessions
	o.Watcher = watcher

	ctl := &sig.SignalWSController{
		Orch:       o,
		Presenter:  presenter,
		Limiter:    sig.NewRoomRateLimiter(cfg.ActionRateLimit, cfg.ActionRateWindow),
		RTC:        rtc.NewWebRTCConfig(cfg.ICEServers),
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:      o,
		Signal:    ctl,
		Presenter: presenter,
		Repo:      repo,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Voicebox server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	watcher.Close()
	sessions.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

func seedShared(ctx context.Context, repo *store.Repository, tracks []config.SharedTrack) error {
	if len(tracks) == 0 {
		return nil
	}
	refs := make([]domain.TrackRef, 0, len(tracks))
	for _, t := range tracks {
		c, err := domain.ParseCategory(t.Category)
		if err != nil || c == domain.CategoryAny {
			log.Warn().Str("track", t.Name).Str("category", t.Category).Msg("skipping shared track with bad category")
			continue
		}
		refs = append(refs, domain.TrackRef{Name: t.Name, Locator: t.Locator, Category: c})
	}
	return repo.SeedShared(ctx, refs)
}
