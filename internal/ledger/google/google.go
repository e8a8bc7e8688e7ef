package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tracker/internal/core"
	"tracker/internal/ledger"
)

const defaultSheetName = "Entries"

// Header is written by EnsureHeader and skipped when reading.
var Header = []any{"Date", "Type", "Description", "Amount", "Ref"}

var (
	_ ledger.Exporter    = (*Client)(nil)
	_ ledger.EntryLister = (*Client)(nil)
)

// Client appends entries to a Google Sheets ledger. Rows are
// Date | Type | Description | Amount | Ref.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	entriesSheet  string
}

// Config selects the spreadsheet and the credentials used to reach it.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// ConfigFromEnv reads GOOGLE_SPREADSHEET_ID, GOOGLE_SHEET_NAME,
// GOOGLE_SERVICE_ACCOUNT_JSON and GOOGLE_SERVICE_ACCOUNT_FILE (falling back to
// GOOGLE_APPLICATION_CREDENTIALS).
func ConfigFromEnv() Config {
	cfg := Config{
		SpreadsheetID:      strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:          strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		ServiceAccountJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		ServiceAccountFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	}
	if cfg.ServiceAccountJSON == "" && cfg.ServiceAccountFile == "" {
		cfg.ServiceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	return cfg
}

// NewFromEnv creates a client from ConfigFromEnv.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, ConfigFromEnv())
}

// New creates a client authenticated with a service account. The sheet name
// is prefixed with the current year unless it already starts with one.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.SpreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	creds, err := loadCredentials(cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "spreadsheet_id", cfg.SpreadsheetID)
	return NewWithService(svc, cfg.SpreadsheetID, cfg.SheetName), nil
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	if strings.TrimSpace(sheetName) == "" {
		sheetName = defaultSheetName
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		entriesSheet:  yearPrefixedName(sheetName, time.Now().Year()),
	}
}

func loadCredentials(cfg Config) ([]byte, error) {
	switch {
	case cfg.ServiceAccountJSON != "":
		return []byte(cfg.ServiceAccountJSON), nil
	case cfg.ServiceAccountFile != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling returns a keep-alive client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// SheetName returns the resolved, year-prefixed sheet name.
func (c *Client) SheetName() string {
	return c.entriesSheet
}

// AppendEntries appends one row per entry in a single API call.
func (c *Client) AppendEntries(ctx context.Context, entries []core.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rows := make([][]any, 0, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: validation failed: %w", i, err)
		}
		rows = append(rows, entryToRow(e))
	}

	rng := fmt.Sprintf("%s!A:E", c.entriesSheet)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append %d rows to %s: %w", len(rows), c.entriesSheet, err)
	}
	slog.InfoContext(ctx, "Entries appended to sheet", "sheet", c.entriesSheet, "count", len(rows))
	return nil
}

// EnsureHeader writes the header row when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A1:E1", c.entriesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 {
		return nil
	}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{Header}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", c.entriesSheet, err)
	}
	return nil
}

// ListEntries scans the sheet for the month's entries, newest first. Rows
// that do not parse are skipped.
func (c *Client) ListEntries(ctx context.Context, year int, month int) ([]core.Entry, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month: %d", month)
	}
	rng := fmt.Sprintf("%s!A:E", c.entriesSheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	var out []core.Entry
	for _, row := range resp.Values {
		e, ok := rowToEntry(toStrings(row))
		if !ok {
			continue
		}
		if e.Date.Year() != year || int(e.Date.Month()) != month {
			continue
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b core.Entry) int {
		return b.Date.Compare(a.Date.Time)
	})
	return out, nil
}

func entryToRow(e core.Entry) []any {
	amount := decimal.New(e.Amount.Cents, -2).InexactFloat64()
	return []any{e.Date.String(), e.Type.Label(), e.Description, amount, e.ID}
}

func rowToEntry(cols []string) (core.Entry, bool) {
	if len(cols) < 4 {
		return core.Entry{}, false
	}
	date, err := core.ParseDate(cols[0])
	if err != nil {
		return core.Entry{}, false
	}
	ft, err := core.ParseFlowType(cols[1])
	if err != nil {
		return core.Entry{}, false
	}
	amount, err := core.ParseAmount(cols[3])
	if err != nil {
		return core.Entry{}, false
	}
	e := core.Entry{Date: date, Type: ft, Description: cols[2], Amount: amount}
	if len(cols) > 4 {
		e.ID = cols[4]
	}
	return e, true
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
