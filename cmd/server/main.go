package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/qcdash/internal/api"
	"github.com/dennisdiepolder/qcdash/internal/auth"
	"github.com/dennisdiepolder/qcdash/internal/board"
	"github.com/dennisdiepolder/qcdash/internal/cache"
	"github.com/dennisdiepolder/qcdash/internal/config"
	"github.com/dennisdiepolder/qcdash/internal/eventsource"
	"github.com/dennisdiepolder/qcdash/internal/metrics"
	"github.com/dennisdiepolder/qcdash/internal/report"
	"github.com/dennisdiepolder/qcdash/internal/roster"
	"github.com/dennisdiepolder/qcdash/internal/storage"
	"github.com/dennisdiepolder/qcdash/internal/websocket"
	"github.com/dennisdiepolder/qcdash/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("queues", cfg.Queues).
		Str("timezone", cfg.Location.String()).
		Dur("max_gap", cfg.MaxGap).
		Bool("skip_auth", cfg.SkipAuth).
		Msg("starting qcdash server")

	metrics.Get()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, cleanup, err := newApp(ctx, cfg, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer cleanup()

	go svc.hub.Run()
	go svc.board.Start(ctx)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, svc, log.Logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // long report ranges on a busy telephony db
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	// Stop the board loop
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// app holds the wired services behind the router
type app struct {
	hub      *websocket.Hub
	board    *board.Board
	authMW   *auth.Middleware
	session  *api.SessionHandler
	login    bool // password login, off when an identity provider issues tokens
	reports  *api.ReportHandler
	activity *api.ActivityHandler
	admin    *api.AdminHandler
	roster   *api.RosterHandler
	ws       *websocket.Handler
	cache    pinger
}

type pinger interface {
	Ping(ctx context.Context) error
}

// newApp connects to the backing services and wires the handlers
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, func(), error) {
	store, err := cache.NewStore(ctx, cfg.RedisURL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("event cache: %w", err)
	}

	db, err := eventsource.OpenMySQL(ctx, eventsource.DBConfig{
		Host:     cfg.VoipDBHost,
		Port:     cfg.VoipDBPort,
		User:     cfg.VoipDBUser,
		Password: cfg.VoipDBPassword,
		Database: cfg.VoipDBName,
		Timeout:  cfg.VoipDBTimeout,
		Location: cfg.Location,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	cleanup := func() {
		db.Close()
		_ = store.Close()
	}

	source := eventsource.NewCachedSource(
		eventsource.NewSQLSource(db, cfg.Location, logger),
		store, cfg.CacheTTL, logger,
	)

	directory := roster.NewDirectory(roster.FileLoader{Path: cfg.RosterPath, Sheet: cfg.RosterSheet}, cfg.RosterTTL, logger)
	if err := directory.Reload(); err != nil {
		// the directory retries on the next request
		logger.Warn().Err(err).Str("path", cfg.RosterPath).Msg("roster not loaded at startup")
	}

	activityStore, err := storage.NewStore(ctx, storage.LoadDynamoConfig(), logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("activity store: %w", err)
	}
	activityLog := storage.NewActivityLog(activityStore, cfg.Location, logger)

	a, err := wire(cfg, directory, source, source, activityLog, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	a.cache = store
	return a, cleanup, nil
}

// wire builds everything above the data sources
func wire(cfg *config.Config, directory *roster.Directory, source eventsource.Source, eventCache api.CacheInvalidator, activityLog *storage.ActivityLog, logger zerolog.Logger) (*app, error) {
	a := &app{}

	var (
		verifier      auth.Verifier
		authenticator api.Authenticator
	)
	switch {
	case cfg.OIDCIssuer != "":
		oidc, err := auth.NewOIDCVerifier(cfg.OIDCIssuer, logger)
		if err != nil {
			return nil, fmt.Errorf("oidc: %w", err)
		}
		verifier = oidc
	case cfg.JWTSecret != "":
		issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
		if err != nil {
			return nil, err
		}
		verifier = issuer
		authenticator = auth.NewAuthenticator(directory, issuer, auth.NewIPLimiter(cfg.LoginRate), logger)
		a.login = true
	}
	a.session = api.NewSessionHandler(authenticator, activityLog, logger)
	a.authMW = auth.NewMiddleware(verifier, cfg.SkipAuth, logger)

	svc := report.NewService(directory, source, report.Config{
		Queues:   cfg.Queues,
		MaxGap:   cfg.MaxGap,
		Location: cfg.Location,
	}, activityLog, logger)

	a.hub = websocket.NewHub(logger)
	a.board = board.NewBoard(a.hub, directory, source, cfg.Queues, cfg.Location, cfg.BoardInterval, logger)
	a.ws = websocket.NewHandler(a.hub, cfg, a.board, logger)
	a.reports = api.NewReportHandler(svc, logger)
	a.activity = api.NewActivityHandler(activityLog, logger)
	a.roster = api.NewRosterHandler(directory, logger)
	a.admin = api.NewAdminHandler(eventCache, directory, activityLog, logger)
	return a, nil
}

func newRouter(cfg *config.Config, a *app, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes
	r.Get("/health", healthHandler(a.cache, logger))
	r.Handle("/metrics", metrics.Get().Handler())
	if a.login {
		r.Post("/api/login", a.session.Login)
	}

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(a.authMW.Handler)

		r.Post("/api/logout", a.session.Logout)
		r.Get("/api/me", a.session.Me)
		r.Get("/api/filters", a.reports.Filters)
		r.Get("/api/presence", a.reports.Presence)
		r.Get("/api/presence/events", a.reports.Events)
		r.Get("/ws", a.ws.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(api.RequireAdmin)
			r.Get("/api/activity", a.activity.List)
			r.Get("/api/admin/roster", a.roster.HandleRoster)
			r.Post("/api/admin/cache/invalidate", a.admin.InvalidateCache)
			r.Post("/api/admin/roster/reload", a.admin.ReloadRoster)
		})
	})

	return r
}

// healthHandler reports "degraded" while the event cache is unreachable.
// Reports still work then, straight from the database.
func healthHandler(cache pinger, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{"status": "ok", "service": "qcdash"}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				logger.Warn().Err(err).Msg("event cache unreachable")
				body["status"] = "degraded"
				body["cache"] = err.Error()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(body)
	}
}
