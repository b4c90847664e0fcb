package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terabiome/mkcloud/internal/config"
	"github.com/terabiome/mkcloud/pkg/logger"
	"github.com/terabiome/mkcloud/pkg/telemetry"
	"github.com/urfave/cli/v2"
)

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to the configuration file, MKCLOUD_CONFIG is used when unset",
		},
	}
}

// state is what the global flags resolve to before any command runs.
type state struct {
	cfg    *config.Config
	log    *slog.Logger
	tel    *telemetry.Telemetry
	cancel context.CancelFunc
}

func (st *state) before(cliCtx *cli.Context) error {
	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	st.cfg = cfg

	st.log = logger.New(cfg.LogLevel, cfg.LogFormat)
	st.log.Debug("mkcloud starting",
		slog.String("log_level", cfg.LogLevel),
		slog.String("log_format", cfg.LogFormat),
		slog.Bool("telemetry_enabled", cfg.TelemetryEnabled),
	)

	if cfg.TelemetryEnabled {
		st.tel, err = telemetry.Initialize("mkcloud", os.Stderr)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		st.log.Debug("telemetry initialized")
	}

	if st.cancel != nil {
		log := st.log
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			log.Info("received shutdown signal", slog.String("signal", sig.String()))
			st.cancel()
		}()
	}
	return nil
}

// shutdown flushes telemetry. It runs on every exit path, failed commands included.
func (st *state) shutdown() {
	if st.tel == nil {
		return
	}
	st.log.Debug("shutting down telemetry")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := st.tel.Shutdown(shutdownCtx); err != nil {
		st.log.Error("failed to shutdown telemetry", slog.String("error", err.Error()))
	}
}
