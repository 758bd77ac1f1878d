package main

import (
	"context"

	"github.com/noxchat/noxd/internal/admin"
	"github.com/noxchat/noxd/internal/app"
	"github.com/noxchat/noxd/internal/cache"
	"github.com/noxchat/noxd/internal/config"
	"github.com/noxchat/noxd/internal/db"
	"github.com/noxchat/noxd/internal/directory"
	"github.com/noxchat/noxd/internal/directory/blobdir"
	"github.com/noxchat/noxd/internal/directory/gormdir"
	"github.com/noxchat/noxd/internal/logger"
	"github.com/noxchat/noxd/internal/notify"
	"github.com/noxchat/noxd/internal/report"
	"github.com/noxchat/noxd/internal/server"
	"github.com/noxchat/noxd/internal/service/adminapi"
	"github.com/noxchat/noxd/internal/service/chat"
	"github.com/noxchat/noxd/internal/session"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	ctx := context.Background()

	// Init the Directory on the configured backend
	var dir directory.Directory
	var reports report.Sink
	switch cfg.Directory.Backend {
	case config.BackendBlob:
		store, err := blobdir.Open(ctx, cfg)
		if err != nil {
			log.Error("failed to open blob directory", "err", err)
			return
		}
		dir = store
		reports = report.NewMemSink()

	default:
		database, err := db.NewDB(cfg)
		if err != nil {
			log.Error("failed to init db", "err", err)
			return
		}
		if cfg.App.ENV == "development" {
			if err := db.SeedTestData(database); err != nil {
				log.Error("failed to seed", "err", err)
			}
		}
		dir = gormdir.New(database)
		reports = report.NewGormSink(database)
	}
	defer func() {
		if err := dir.Close(); err != nil {
			log.Error("failed to close directory", "err", err)
		}
	}()

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	appCtx := app.New(dir, redisCache, log)

	// no transport attached here; intents land on the logger
	notifier := &notify.LogNotifier{Logger: log}

	engine := session.NewEngine(appCtx, notifier)
	admins := admin.NewService(appCtx, engine, notifier, cfg)

	registrars := []server.Registrar{
		chat.NewRegistrar(appCtx, engine, reports),
		adminapi.NewRegistrar(appCtx, admins, reports),
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr, "backend", cfg.Directory.Backend)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
