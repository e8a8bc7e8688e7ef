package main

import (
	"os"
	"time"

	"tracker/internal/adapters"
	"tracker/internal/backend"
	"tracker/internal/cli"
	"tracker/internal/form"
	apphttp "tracker/internal/http"
	"tracker/internal/log"
	"tracker/internal/rpc"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).CreateBackend(ctx, backendConfig)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err)
		}
	}()

	service := result.NewEntryService()
	local := adapters.NewLocalSender(service)

	// The web form posts to a remote JSON-RPC endpoint when one is
	// configured, otherwise straight to the local service.
	var sender form.BatchSender = local
	if cfg.SubmitURL != "" {
		sender = rpc.NewClient(cfg.SubmitURL,
			rpc.WithTimeout(cfg.SubmitTimeout),
			rpc.WithClientLogger(logger.WithComponent(log.ComponentRPC).Slog()))
		logger.Info("Submitting through remote endpoint", "url", cfg.SubmitURL)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		Sender:             sender,
		RPCBackend:         local,
		Entries:            service,
		Ready:              result.Ready,
		SessionTTL:         cfg.SessionTTL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Starting tracker server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldOperation, log.OpStartup)
	if err := cli.Serve(ctx, srv, 30*time.Second, logger); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
