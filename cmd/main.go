package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supportbot/backend/internal/achievement"
	"supportbot/backend/internal/api/handler"
	"supportbot/backend/internal/community"
	"supportbot/backend/internal/complaint"
	"supportbot/backend/internal/config"
	"supportbot/backend/internal/filter"
	"supportbot/backend/internal/notify"
	"supportbot/backend/internal/queue"
	"supportbot/backend/internal/storage"
	"supportbot/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	app := &cli.App{
		Name:   "supportbot",
		Usage:  "peer support exchange backend",
		Flags:  config.ServerFlags(),
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	cfg := config.FromCLI(cctx)
	logger, err := config.SetupLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := storage.SetupDatabase(cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return err
	}
	if err := storage.Migrate(db); err != nil {
		return err
	}
	rdb, err := storage.SetupRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	s := storage.NewStorageService(db, rdb)

	filterCfg, err := config.LoadFilterConfig(cfg.FilterConfigPath, cfg.Strictness)
	if err != nil {
		return err
	}
	contentFilter, err := filter.New(filterCfg)
	if err != nil {
		return err
	}

	var cursors queue.CursorStore = queue.NewMemCursorStore()
	if rdb != nil {
		cursors = queue.NewRedisCursorStore(rdb)
	}

	evaluator := achievement.NewEvaluator(s, achievement.DefaultCatalog())
	if err := evaluator.SeedCatalog(ctx); err != nil {
		return err
	}

	var (
		sink notify.Client
		tg   *telegram.Client
	)
	if cfg.BotToken != "" {
		bot, err := telegram.NewBot(cfg.BotToken)
		if err != nil {
			return err
		}
		tg = telegram.NewClient(bot, nil)
		sink = tg
	} else {
		logger.Warn("no telegram bot token, notifications reach websocket clients only")
	}
	hub := notify.NewHub(rdb, sink)

	secret := cfg.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("no jwt secret configured, websocket tokens will not survive a restart")
	}

	svc := community.NewService(s, contentFilter, complaint.NewService(s), queue.NewService(s, cursors), evaluator, hub)
	h := handler.NewHandler(svc, hub, handler.NewAuthenticator(secret), cfg.APIKey)

	server := &http.Server{
		Addr:           cfg.ListenAddr,
		Handler:        h.Router(),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return contentFilter.RunSweeper(gctx, config.SweepInterval) })
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.ListenAddr, "strictness", filterCfg.Strictness, "redis", rdb != nil)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if tg != nil {
		select {
		case <-tg.Done():
		case <-time.After(5 * time.Second):
			logger.Warn("telegram sink did not drain before exit")
		}
	}
	logger.Info("shut down")
	return err
}
