package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "rpctail/docs"
	"rpctail/internal/collab"
	"rpctail/internal/config"
	"rpctail/internal/handlers"
	"rpctail/internal/logger"
	"rpctail/internal/metrics"
	"rpctail/internal/repository"
	"rpctail/internal/repository/db"
	"rpctail/internal/server"
	"rpctail/internal/service"
	"rpctail/internal/stream"
	"rpctail/internal/tail"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// @title        rpctail control API
// @version      1.0
// @description  Live tail of RPC gateway request logs: read model, filter and pause controls.
// @BasePath     /
func main() {
	cfg, err := config.Load(config.NewFlagSet("rpctail"), os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Get(logger.ErrorLevel, logger.ConsoleFormat).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()
	if cfg.File != "" {
		log.Infow("config_loaded", "file", cfg.File)
	}

	// optional last-known-good cache
	conn, repos, err := openCache(cfg.Cache.Path, log)
	if err != nil {
		log.Fatalw("failed to init sqlite cache", "err", err)
	}
	if conn != nil {
		defer func() {
			if cerr := conn.Close(); cerr != nil {
				log.Errorw("failed to close sqlite cache", "err", cerr)
			}
		}()
	}

	client, err := collab.New(cfg.API.BaseURL,
		collab.WithTimeout(cfg.API.Timeout),
		collab.WithAPIKey(cfg.Stream.APIKey),
	)
	if err != nil {
		log.Fatalw("invalid api.base_url", "err", err)
	}
	services := service.NewService(client, repos, log.Named("service"))

	policy, err := stream.NewPolicy(cfg.Stream.ReconnectPolicy, cfg.Stream.ReconnectDelay, cfg.Stream.ReconnectMaxDelay)
	if err != nil {
		log.Fatalw("invalid reconnect policy", "err", err)
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engine := tail.New(tail.Config{
		URL:                cfg.Stream.URL,
		Header:             stream.BearerHeader(cfg.Stream.APIKey),
		Capacity:           cfg.Window.Capacity,
		ThroughputInterval: cfg.Throughput.Interval,
		StatsInterval:      cfg.Poll.StatsInterval,
		NetworksInterval:   cfg.Poll.NetworksInterval,
		PullTimeout:        cfg.API.Timeout,
	}, tail.Deps{
		Dialer: stream.WebsocketDialer{
			HandshakeTimeout: cfg.Stream.HandshakeTimeout,
			ReadLimit:        cfg.Stream.ReadLimit,
			IdleTimeout:      cfg.Stream.IdleTimeout,
		},
		Policy:   policy,
		Stats:    services.Stats,
		Networks: services.Catalog,
		Log:      log.Named("tail"),
		Metrics:  metrics.NewEngine(reg),
	})

	apiHandler := handlers.NewHandler(engine, log.Named("http"), metrics.NewHTTP(reg), reg)
	if err := apiHandler.SetPushInterval(cfg.HTTP.PushInterval); err != nil {
		log.Fatalw("invalid push interval", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		log.Fatalw("failed to start tail engine", "err", err)
	}
	log.Infow("tail_started", "session", engine.SessionID(), "stream", cfg.Stream.URL)

	srv := &server.Server{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("http_listening", "addr", server.NormalizeAddr(cfg.HTTP.Port))
		return srv.Run(cfg.HTTP.Port, apiHandler.InitRoutes())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down server...")

		// allow in-flight requests to complete
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(sctx)
		if cerr := engine.Close(); err == nil {
			err = cerr
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatalw("server stopped with error", "err", err)
	}
	log.Infow("stopped")
}

// openCache opens the sqlite cache at path. An empty path disables caching
// and returns nil values.
func openCache(path string, log *logger.Logger) (*sql.DB, *repository.Repository, error) {
	if path == "" {
		log.Infow("cache.path not set; last-known-good cache disabled")
		return nil, nil, nil
	}
	conn, err := db.InitDB(path)
	if err != nil {
		return nil, nil, err
	}
	return conn, repository.NewRepository(conn), nil
}
