// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aiku/slack2matrix/pkg/archive"
	"github.com/aiku/slack2matrix/pkg/migrator"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"maunium.net/go/mautrix/id"
)

type runOptions struct {
	ConfigPath string
	Verbose    bool
	DryRun     bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the migration",
		Long: `Run the migration described by the config file.

Secrets can be supplied through SLACK2MATRIX_AS_TOKEN,
SLACK2MATRIX_ADMIN_USER and SLACK2MATRIX_ADMIN_PASSWORD, or a .env file.
Missing admin credentials are prompted for.

Example:
  slack2matrix run --config config.yaml
  slack2matrix run --config config.yaml --dry-run -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "config.yaml", "path to the config file")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "walk the archive without contacting the homeserver")
	return cmd
}

func newExampleConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "example-config",
		Short: "Print an example config file",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), migrator.ExampleConfig)
		},
	}
}

func newLogger(cfg *migrator.Config, verbose bool) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}).
		Level(level).
		With().Timestamp().Logger()
}

func serveMetrics(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Str("addr", addr).Msg("Metrics listener failed")
		}
	}()
	log.Info().Str("addr", addr).Msg("Serving metrics")
	return srv
}

func runMigration(ctx context.Context, opts *runOptions) error {
	cfg, err := migrator.LoadConfig(opts.ConfigPath, func(c *migrator.Config) {
		if opts.DryRun {
			c.DryRun = true
		}
	})
	if err != nil {
		return err
	}
	log := newLogger(cfg, opts.Verbose)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, err := archive.Open(cfg.Archive)
	if err != nil {
		return err
	}
	defer reader.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	var api migrator.MatrixAPI
	var adminID id.UserID
	if cfg.DryRun {
		log.Warn().Msg("Dry run, nothing will be written to the homeserver")
		api = migrator.NewDryRunAPI(cfg.Domain)
	} else {
		if err = promptCredentials(cfg); err != nil {
			return err
		}
		hc, err := migrator.NewHomeserverClient(cfg, log)
		if err != nil {
			return err
		}
		userID, err := hc.Login(ctx, cfg.AdminUser, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("failed to log in as %s: %w", cfg.AdminUser, err)
		}
		adminID = userID
		api = hc
	}

	m := migrator.New(cfg, api, reader, log)
	if adminID != "" {
		m.AdminID = adminID
	}
	started := time.Now()
	if err = m.Run(ctx); err != nil {
		log.Err(err).Stringer("state", m.State()).Msg("Migration stopped")
		return err
	}
	if dry, ok := api.(*migrator.DryRunAPI); ok {
		users, rooms, events := dry.Counts()
		log.Info().Int64("users", users).Int64("rooms", rooms).Int64("events", events).Msg("Dry run summary")
	}
	log.Info().Str("elapsed", time.Since(started).Round(time.Second).String()).Msg("Done")
	return nil
}
