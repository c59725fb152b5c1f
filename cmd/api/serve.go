package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rotisserie/eris"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/iamasit07/stones/backend/internal/config"
	"github.com/iamasit07/stones/backend/internal/repository/postgres"
	"github.com/iamasit07/stones/backend/internal/repository/redis"
	"github.com/iamasit07/stones/backend/internal/service/cleanup"
	"github.com/iamasit07/stones/backend/internal/service/game"
	"github.com/iamasit07/stones/backend/internal/service/matchmaking"
	"github.com/iamasit07/stones/backend/internal/service/rating"
	"github.com/iamasit07/stones/backend/internal/service/rules"
	transporthttp "github.com/iamasit07/stones/backend/internal/transport/http"
	"github.com/iamasit07/stones/backend/internal/transport/websocket"
	"github.com/iamasit07/stones/backend/pkg/auth"
)

const (
	defaultTokenTTL = 24 * time.Hour
	shutdownTimeout = 30 * time.Second
)

func loadConfig(cmd *cli.Command) (*config.Config, error) {
	config.LoadEnvFiles(cmd.String("env-file"))
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		db       *sql.DB
		store    rating.Store
		recorder game.GameRecorder
		games    transporthttp.GameStore
	)
	if cfg.DatabaseURL != "" {
		db, err = postgres.Open(ctx, postgres.Options{
			URL:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		}, logger)
		if err != nil {
			return err
		}
		defer db.Close()

		gameRepo := postgres.NewGameRepo(db, cfg.DefaultRating)
		store = postgres.NewPlayerRepo(db)
		recorder = gameRepo
		games = gameRepo
	} else {
		logger.Warn().Msg("DATABASE_URL not set, ratings and game records are not persisted")
	}

	var cache rating.Cache
	if client := redis.Connect(ctx, redis.Options{Addr: cfg.RedisURL, Password: cfg.RedisPassword}, logger); client != nil {
		c := redis.NewCache(client)
		defer c.Close()
		cache = c
	}

	ratings := rating.NewService(store, cache, cfg.DefaultRating, logger)
	catalog, err := rules.NewCatalog(cfg.DefaultRules)
	if err != nil {
		return err
	}

	conns := websocket.NewConnectionManager()
	opts := []game.Option{game.WithHookResolver(catalog), game.WithPresence(conns)}
	if recorder != nil {
		opts = append(opts, game.WithRecorder(ratings.Recorder(recorder)))
	}
	registry := game.NewRegistry(game.Settings{
		Width:          cfg.BoardWidth,
		Height:         cfg.BoardHeight,
		WinLength:      cfg.WinLength,
		TurnTimeout:    cfg.TurnTimeout,
		DecisionWindow: cfg.DecisionWindow,
	}, conns, logger, opts...)

	engine := matchmaking.NewEngine(matchmaking.PolicyFromConfig(cfg.Matchmaking), logger)
	sweeper := cleanup.NewWorker(engine, registry, conns, cfg.TicketTTL, cfg.LobbyTimeout, logger)
	validator := auth.NewValidator(cfg.JWTSecret)
	wsHandler := websocket.NewHandler(conns, engine, registry, ratings, catalog, validator, logger)

	router := transporthttp.NewRouter(transporthttp.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Validator:      validator,
		WebSocket:      wsHandler.HandleWebSocket,
		Sessions:       registry,
		Games:          games,
		Logger:         logger,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx, cfg.MatchmakingInterval) })
	g.Go(func() error {
		matchmaking.Listener(gctx, engine.MatchChannel, registry, logger)
		return nil
	})
	g.Go(func() error { return registry.Run(gctx, cfg.SessionTickInterval) })
	g.Go(func() error { return sweeper.Run(gctx, cfg.CleanupInterval) })
	g.Go(func() error {
		logger.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("server is shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		conns.CloseAll()
		return eris.Wrap(err, "server forced to shutdown")
	})

	err = g.Wait()
	registry.Close()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info().Msg("server exited")
	return err
}

func token(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	signed, err := auth.NewValidator(cfg.JWTSecret).GenerateAccessToken(cmd.Int64("user"), cmd.String("username"), cmd.Duration("ttl"))
	if err != nil {
		return err
	}
	_, err = os.Stdout.WriteString(signed + "\n")
	return err
}
