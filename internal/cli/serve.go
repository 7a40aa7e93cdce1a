package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tailorcv/internal/config"
	"tailorcv/internal/observability"
	"tailorcv/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server exposing scoring, rendering and generation.

Available endpoints:
- POST /score: ATS score for a markdown resume
- POST /render: Render markdown to PDF or DOCX
- POST /analyze: Analyze a job description
- POST /generate: Tailor, render and score a resume
- POST /evaluate: Check a tailored resume for accuracy
- GET /jobs, GET /resumes, GET /resumes/{id}/versions: Stored history
- GET /templates: Available templates
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

Scoring and rendering work without an AI key. The AI endpoints answer 503
until one is configured.

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server, mutual
- Use --cert-file and --key-file for TLS certificates
- Use --ca-file for mutual TLS client certificate verification`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server, mutual (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().String("ca-file", "", "CA certificate file for client cert verification (PEM, overrides config)")
}

// applyServeFlags copies explicitly set flags over the loaded config.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	overrides := map[string]*string{
		"port":      &cfg.Server.Port,
		"host":      &cfg.Server.Host,
		"tls-mode":  &cfg.Server.TLS.Mode,
		"cert-file": &cfg.Server.TLS.CertFile,
		"key-file":  &cfg.Server.TLS.KeyFile,
		"ca-file":   &cfg.Server.TLS.CAFile,
	}
	for name, dst := range overrides {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := fromContext(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	applyServeFlags(cmd, cfg)
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	om, err := observability.NewManager(cfg.Observability, Version, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := om.Shutdown(shutdownCtx); err != nil {
			logger.LogError(err, "Failed to shutdown observability")
		}
	}()

	deps := server.Deps{Observability: om}
	metrics := om.Metrics()

	svc, err := newServices(ctx, cfg, logger, metrics)
	if err != nil {
		logger.Warn("AI endpoints disabled", "reason", err.Error())
		store, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		deps.Store = store
	} else {
		defer svc.Close()
		deps.Workflow = svc.workflow
		deps.Analyzer = svc.analyzer
		deps.Evaluator = svc.evaluator
		deps.Store = svc.store
		for _, s := range svc.aiStatus() {
			deps.AIStatus = append(deps.AIStatus, s)
		}
	}

	srv := server.NewServer(cfg, server.NewServerConfig(cfg, Version), deps, logger)
	return srv.Start(ctx)
}
