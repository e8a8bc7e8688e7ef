package commands

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tracker/internal/core"
	"tracker/internal/form"
	"tracker/internal/importer"
)

func newSubmitCommand(opts *rootOptions) *cobra.Command {
	var entries []string
	var date string
	var url string
	var file string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one batch of entries",
		Example: `  tracker-cli submit --entry inflow:Salary:2500 --entry outflow:Rent:800.50
  tracker-cli submit --date 2025-03-01 --url http://localhost:8081/finance/submit --entry outflow:Coffee:3
  tracker-cli submit --file batch.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger(cmd.ErrOrStderr())
			ctx := withUser(cmd.Context(), opts.user)

			var rows []form.Values
			if file != "" {
				b, err := loadBatchFile(file)
				if err != nil {
					return err
				}
				if date == "" {
					date = b.Date
				}
				rows = b.rows
			}
			flagRows, err := parseEntryFlags(entries, len(rows) > 0)
			if err != nil {
				return err
			}
			rows = append(rows, flagRows...)
			if date != "" {
				if _, err := core.ParseDate(date); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}

			sender, closeFn, err := senderFor(ctx, url, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeFn(); err != nil {
					logger.Warn("Backend cleanup failed", "error", err)
				}
			}()

			f := newForm(sender, date, rows)
			_, err = f.Submit(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), f.State().Message)
			return err
		},
	}

	cmd.Flags().StringArrayVarP(&entries, "entry", "e", nil, "entry as type:description:amount (repeatable)")
	cmd.Flags().StringVar(&date, "date", "", "batch date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&url, "url", envOr("SUBMIT_URL", ""), "JSON-RPC endpoint; empty stores through the local backend")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML batch file with a date and a list of entries")

	return cmd
}

// newForm fills a form with one row per value, reusing the starter row.
func newForm(sender form.BatchSender, date string, rows []form.Values) *form.Form {
	var formOpts []form.Option
	if date != "" {
		formOpts = append(formOpts, form.WithDate(date))
	}
	f := form.New(sender, formOpts...)
	for i, v := range rows {
		r, ok := f.RowAt(i)
		if !ok {
			r = f.AddRow()
		}
		r.Set(v)
	}
	return f
}

// batchFile is the --file format:
//
//	date: 2025-03-01
//	entries:
//	  - type: inflow
//	    description: Salary
//	    amount: 2500
type batchFile struct {
	Date    string `yaml:"date"`
	Entries []struct {
		Type        string `yaml:"type"`
		Description string `yaml:"description"`
		Amount      string `yaml:"amount"`
	} `yaml:"entries"`

	rows []form.Values
}

func loadBatchFile(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	b := &batchFile{}
	if err := yaml.Unmarshal(data, b); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	for i, e := range b.Entries {
		ft, err := importer.MapFlowType(e.Type)
		if err != nil {
			return nil, fmt.Errorf("batch file entry %d: %w", i+1, err)
		}
		b.rows = append(b.rows, form.Values{
			FlowType:    ft,
			Description: strings.TrimSpace(e.Description),
			Amount:      strings.TrimSpace(e.Amount),
		})
	}
	return b, nil
}

// parseEntryFlags reads type:description:amount values. The description
// may itself contain colons.
func parseEntryFlags(values []string, optional bool) ([]form.Values, error) {
	if len(values) == 0 {
		if optional {
			return nil, nil
		}
		return nil, errors.New("at least one --entry or a --file is required")
	}
	rows := make([]form.Values, 0, len(values))
	for _, raw := range values {
		first := strings.Index(raw, ":")
		last := strings.LastIndex(raw, ":")
		if first < 0 || first == last {
			return nil, fmt.Errorf("invalid --entry %q: want type:description:amount", raw)
		}
		ft, err := importer.MapFlowType(raw[:first])
		if err != nil {
			return nil, fmt.Errorf("invalid --entry %q: %w", raw, err)
		}
		rows = append(rows, form.Values{
			FlowType:    ft,
			Description: strings.TrimSpace(raw[first+1 : last]),
			Amount:      strings.TrimSpace(raw[last+1:]),
		})
	}
	return rows, nil
}
