package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/immersivehub/orchestrator/internal/adapters/http"
	"github.com/immersivehub/orchestrator/internal/adapters/ws"
	"github.com/immersivehub/orchestrator/internal/config"
	"github.com/immersivehub/orchestrator/internal/core"
	"github.com/immersivehub/orchestrator/internal/transport"
)

const version = "1.0.0"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(lvl)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.LogFile != "" {
		writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
		path := cfg.LogFile
		if cfg.LogFolder != "" {
			path = filepath.Join(cfg.LogFolder, cfg.LogFile)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("cannot open log file")
		} else {
			defer f.Close()
			writers = append(writers, f)
		}
		log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()
	}

	pool := transport.NewPool(cfg.TransportConfigDir, cfg.ExternalHostname)
	orch := core.NewOrchestrator(pool)
	ctl := ws.NewController(orch, version, cfg.NTPServers, cancel)

	r := router.SetupRouter(ctx, cfg, ctl, orch, pool)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", addr).Str("version", version).Msg("orchestrator started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		pool.Sweep(ctx, cfg.SweepInterval)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}
	log.Info().Msg("server exited gracefully")
}
