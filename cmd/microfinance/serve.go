// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pdiddy/microfinance-engine/internal/server"
	"github.com/pdiddy/microfinance-engine/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the assessment HTTP API",
	Long: `Serve exposes the pipeline and the assessment store over HTTP:

  POST /v1/applications        assess a JSON application
  GET  /v1/assessments/{id}    one stored assessment
  GET  /v1/assessments         list (q, status, risk, min_score, limit)
  GET  /v1/stats               counts by status and risk level
  GET  /healthz                liveness
  GET  /metrics                Prometheus metrics

The server shuts down gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :8080)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, closer, err := buildEngine(ctx, cfg, st)
	if err != nil {
		return err
	}
	defer closer.Close()

	loader := newLoader(cfg, false)
	loader.ConfineDocuments = true
	return server.New(cfg.Server, eng, loader, st).Run(ctx)
}
