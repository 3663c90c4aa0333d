package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rpctail/internal/config"
	"rpctail/internal/logger"
	"rpctail/internal/server"
	"rpctail/internal/simulator"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(config.NewFlagSet("rpcsim"), os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		logger.Get(logger.ErrorLevel, logger.ConsoleFormat).Fatalw("error reading config", "err", err)
	}
	log := logger.Get(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = log.Sync() }()

	sim := simulator.New(simulator.Config{
		Tick:       cfg.Sim.Tick,
		Rate:       cfg.Sim.Rate,
		ErrorRatio: cfg.Sim.ErrorRatio,
		History:    cfg.Sim.History,
		Seed:       cfg.Sim.Seed,
	}, log.Named("sim"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &server.Server{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sim.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Infow("sim_listening", "addr", server.NormalizeAddr(cfg.Sim.Port), "push", simulator.PushPath)
		return srv.Run(cfg.Sim.Port, sim.Routes())
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalw("simulator stopped with error", "err", err)
	}
}
