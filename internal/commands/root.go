// Package commands implements the tracker command line.
package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"tracker/internal/adapters"
	"tracker/internal/backend"
	"tracker/internal/cli"
	"tracker/internal/config"
	"tracker/internal/form"
	"tracker/internal/log"
	"tracker/internal/rpc"
	"tracker/internal/services"
)

// options shared by every subcommand.
type rootOptions struct {
	logLevel string
	user     string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "tracker-cli",
		Short: "Record daily inflows and outflows from the terminal",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.user, "user", envOr("TRACKER_USER", "cli"), "user id recorded on stored entries")

	rootCmd.AddCommand(
		newSubmitCommand(opts),
		newImportCommand(opts),
		newSheetsCommand(),
		newTUICommand(opts),
	)

	return rootCmd
}

// logger writes to w so command output on stdout stays clean.
func (o *rootOptions) logger(w io.Writer) *log.Logger {
	lvl, err := config.ParseLevel(o.logLevel)
	l := log.New(log.Config{Level: lvl, Component: log.ComponentCLI, Output: w})
	log.SetDefault(l)
	if err != nil {
		l.Warn("Invalid log level, using info", log.FieldError, err)
	}
	return l
}

// senderFor returns the remote JSON-RPC client when url is set, otherwise a
// sender storing through the configured local backend. The returned close
// function releases the backend.
func senderFor(ctx context.Context, url string, logger *log.Logger) (form.BatchSender, func() error, error) {
	cfg := config.Load()
	if url != "" {
		c := rpc.NewClient(url,
			rpc.WithTimeout(cfg.SubmitTimeout),
			rpc.WithClientLogger(logger.WithComponent(log.ComponentRPC).Slog()))
		return c, func() error { return nil }, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("backend config: %w", err)
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Slog()).CreateBackend(ctx, bc)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize %s backend: %w", bc.Type, err)
	}
	return adapters.NewLocalSender(result.NewEntryService()), result.Close, nil
}

func withUser(ctx context.Context, user string) context.Context {
	return services.ContextWithUser(ctx, user)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Execute runs the root command with a context cancelled on SIGINT or
// SIGTERM.
func Execute() error {
	cli.LoadEnvFile()
	ctx, cancel := cli.SignalContext(log.New(log.Config{Component: log.ComponentCLI, Output: os.Stderr}))
	defer cancel()
	return NewRootCommand().ExecuteContext(ctx)
}
