// Command loopkv is the loopkv server's process entry point: load
// config, wire logging, start a periodic stats job, build and run the
// server, and shut down cleanly on SIGINT/SIGTERM. Mirrors the
// teacher's server.go/main.go startup sequence.
package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/robfig/cron/v3"

	"loopkv/internal/config"
	"loopkv/internal/logging"
	"loopkv/internal/server"
	"loopkv/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults built in if omitted)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			println("loopkv: " + err.Error())
			os.Exit(1)
		}
		cfg = loaded
	}

	loggers := logging.Init(cfg.Logs)
	log := loggers.Server
	log.Infow("starting loopkv", "listenAddr", cfg.ListenAddr)

	st := store.New(loggers.Store)

	srv, err := server.New(cfg, log, st)
	if err != nil {
		log.Fatalw("failed to start server", "err", err)
	}

	cronManager := cron.New(cron.WithSeconds())
	cronManager.Start()
	_, err = cronManager.AddFunc(cfg.StatsIntervalCron, func() {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		srv.MemStats(m.Alloc, m.TotalAlloc, m.Sys, m.NumGC)
	})
	if err != nil {
		log.Warnw("failed to schedule stats job", "err", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Infof("shutting down...")
		srv.Stop()
	}()

	if err := srv.Run(); err != nil {
		log.Fatalw("event loop exited with error", "err", err)
	}
	cronManager.Stop()
	srv.Close()
}
