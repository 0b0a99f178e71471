package cli

import (
	"artyats/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that exposes the analysis and chat operations.

Available endpoints:
- POST /analyze: ATS analysis of a resume against a job description
- POST /feedback: Personal feedback from a finished analysis
- POST /revise: Rewrite the professional summary
- POST /extract: Extract text from an uploaded PDF, DOCX or text file
- POST /chat/sessions: Start a chat session
- POST /chat/sessions/{id}/messages: Ask a follow-up question
- GET /chat/sessions/{id}, DELETE /chat/sessions/{id}
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server, mutual
- Use --cert-file and --key-file for TLS certificates
- Use --ca-file for mutual TLS client certificate verification`,
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

// applyServeFlags copies explicitly set flags over the loaded configuration.
func applyServeFlags(cmd *cobra.Command, target map[string]*string) {
	for flag, dst := range target {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	applyServeFlags(cmd, map[string]*string{
		"port":      &cfg.Server.Port,
		"host":      &cfg.Server.Host,
		"tls-mode":  &cfg.Server.TLS.Mode,
		"cert-file": &cfg.Server.TLS.CertFile,
		"key-file":  &cfg.Server.TLS.KeyFile,
		"ca-file":   &cfg.Server.TLS.CAFile,
	})
	if err := cfg.ValidateTLSConfig(); err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.NewServer(cfg, server.Deps{
		Orchestrator: a.orchestrator,
		Sessions:     a.sessions,
		Extractor:    a.extractor,
		Backends:     a.service,
		Telemetry:    a.telemetry,
	}, Version, logger)
	return srv.Start(cmd.Context())
}
