package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tracker/internal/config"
	"tracker/internal/importer"
	"tracker/internal/log"
	"tracker/internal/storage"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	var sheet string
	var dbPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "import <file.csv|file.xlsx>",
		Short: "Import past records into the SQLite database",
		Long: `Import past records from a CSV file or an Excel sheet.

The first row is a header. Columns are Date, Type, Description, Amount.
Imported entries are stored as pending and exported by the sync worker.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger(cmd.ErrOrStderr()).WithComponent(log.ComponentImporter)
			ctx := cmd.Context()

			repo, err := storage.NewSQLiteRepository(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer repo.Close()

			res, err := importer.New(repo, opts.user).ImportFile(ctx, args[0], sheet)
			if err != nil {
				return err
			}

			logger.Info("Import finished",
				log.FieldOperation, log.OpImport,
				"file", args[0],
				"imported", res.Imported,
				"skipped", res.Skipped)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d, skipped %d\n", res.Imported, res.Skipped)
			if verbose {
				for _, e := range res.Errors {
					fmt.Fprintf(out, "  %v\n", e)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sheet, "sheet", "", "sheet name for Excel files (default first sheet)")
	cmd.Flags().StringVar(&dbPath, "db", config.Load().SQLiteDBPath, "SQLite database path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list skipped rows")

	return cmd
}

func newSheetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets <file.xlsx>",
		Short: "List the sheets of an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer f.Close()

			names, err := importer.Sheets(f)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}
