// File: cmd/hioload-httpd/main.go
// Package main
// Minimal HTTP/1.0 responder with two interchangeable engines:
// an epoll event loop ("loop") and a process-per-connection supervisor ("fork").
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/server"
	"github.com/momentics/hioload-httpd/supervisor"
	"golang.org/x/sync/errgroup"
)

type engine interface {
	Listen() error
	Serve(ctx context.Context) error
}

func main() {
	// Workers are re-executions of this binary and never parse flags.
	if supervisor.IsWorker() || (len(os.Args) > 1 && os.Args[1] == "worker") {
		os.Exit(supervisor.RunWorker())
	}

	mode := flag.String("mode", "loop", "concurrency engine: loop or fork")
	configPath := flag.String("config", "", "path to a JSON config file")
	addr := flag.String("addr", "", "listen address, overrides the config")
	metricsAddr := flag.String("metrics-addr", "", "address for /metrics and /debug/state")
	logLevel := flag.String("log-level", "", "log level, overrides the config")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *addr, *metricsAddr, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := control.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	log := logger.WithField("mode", *mode)

	metrics := control.NewMetrics()
	probes := control.NewDebugProbes()

	var eng engine
	switch *mode {
	case "loop":
		eng, err = server.NewServer(cfg,
			server.WithLogger(log), server.WithMetrics(metrics), server.WithProbes(probes))
	case "fork":
		eng, err = supervisor.NewSupervisor(cfg,
			supervisor.WithLogger(log), supervisor.WithMetrics(metrics), supervisor.WithProbes(probes))
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		log.WithError(err).Fatal("setup failed")
	}
	if err := eng.Listen(); err != nil {
		log.WithError(err).Fatal("bind failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGTSTP)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Serve(gctx) })
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           control.NewDebugMux(metrics, probes),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.WithField("addr", cfg.MetricsAddr).Info("debug endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func loadConfig(path, addr, metricsAddr, level string) (*control.Config, error) {
	cfg := control.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = control.LoadConfig(path); err != nil {
			return nil, err
		}
	}
	if addr != "" {
		cfg.ListenAddr = addr
	}
	if metricsAddr != "" {
		cfg.MetricsAddr = metricsAddr
	}
	if level != "" {
		cfg.LogLevel = level
	}
	return cfg, cfg.Validate()
}
