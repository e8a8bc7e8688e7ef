package commands

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tracker/internal/form"
	"tracker/internal/log"
	"tracker/internal/tui"
)

func newTUICommand(opts *rootOptions) *cobra.Command {
	var url string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive entry form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Log lines would corrupt the alt screen.
			logger := opts.logger(cmd.ErrOrStderr())
			if opts.logLevel != "debug" {
				logger = log.New(log.Config{Component: log.ComponentCLI, Handler: slog.DiscardHandler})
				log.SetDefault(logger)
			}
			ctx := withUser(cmd.Context(), opts.user)

			sender, closeFn, err := senderFor(ctx, url, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			f := form.New(sender, form.WithLogger(logger.WithComponent(log.ComponentForm).Slog()))
			if _, err := tea.NewProgram(tui.New(ctx, f), tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
				return fmt.Errorf("run terminal ui: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", envOr("SUBMIT_URL", ""), "JSON-RPC endpoint; empty stores through the local backend")

	return cmd
}
