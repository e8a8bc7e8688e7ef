// Package importer loads past finance records from CSV files and Excel
// workbooks into a ledger.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/xuri/excelize/v2"

	"tracker/internal/core"
	"tracker/internal/ledger"
)

var (
	ErrSheetNotFound     = errors.New("sheet not found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Layouts accepted for text dates, tried in order. Ambiguous dates such as
// 03/04/2025 resolve month first.
var dateLayouts = []string{"2006-01-02", "01/02/2006", "02/01/2006"}

// Type names recognised in the Type column besides the canonical values.
var typeAliases = map[string]core.FlowType{
	"inflow":   core.Inflow,
	"income":   core.Inflow,
	"credit":   core.Inflow,
	"outflow":  core.Outflow,
	"expense":  core.Outflow,
	"expenses": core.Outflow,
	"debit":    core.Outflow,
}

// maxTypeDistance bounds the edit distance for misspelled types.
const maxTypeDistance = 2

// Result summarises one import.
type Result struct {
	Imported int
	Skipped  int
	// Errors holds one entry per skipped row.
	Errors []error
}

// Importer parses records and writes the valid ones as a single batch.
type Importer struct {
	writer ledger.EntryWriter
	userID string
}

func New(writer ledger.EntryWriter, userID string) *Importer {
	return &Importer{writer: writer, userID: userID}
}

// ImportFile picks the parser from the file extension. sheet is only used
// for workbooks.
func (im *Importer) ImportFile(ctx context.Context, path, sheet string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return im.ImportCSV(ctx, f)
	case ".xlsx", ".xlsm":
		return im.ImportXLSX(ctx, f, sheet)
	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ImportCSV reads Date, Type, Description, Amount records after a header line.
func (im *Importer) ImportCSV(ctx context.Context, r io.Reader) (Result, error) {
	csvr := csv.NewReader(bufio.NewReader(r))
	csvr.TrimLeadingSpace = true
	csvr.FieldsPerRecord = -1

	var rows [][]string
	for {
		rec, err := csvr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return im.importRows(ctx, rows, false)
}

// ImportXLSX reads the named sheet of a workbook. An empty name selects the
// first sheet.
func (im *Importer) ImportXLSX(ctx context.Context, r io.Reader, sheet string) (Result, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	names := wb.GetSheetList()
	if sheet == "" && len(names) > 0 {
		sheet = names[0]
	}
	name, ok := findSheet(names, sheet)
	if !ok {
		return Result{}, fmt.Errorf("%w: %q (available sheets: %s)", ErrSheetNotFound, sheet, strings.Join(names, ", "))
	}

	// Raw values keep date cells as serial numbers instead of the
	// workbook's display format.
	rows, err := wb.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %q: %w", name, err)
	}
	return im.importRows(ctx, rows, true)
}

// Sheets lists the sheet names of a workbook.
func Sheets(r io.Reader) ([]string, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	names := wb.GetSheetList()
	for i := range names {
		names[i] = strings.TrimSpace(names[i])
	}
	return names, nil
}

func (im *Importer) importRows(ctx context.Context, rows [][]string, serialDates bool) (Result, error) {
	var res Result
	var batch []core.Entry

	for i, row := range rows {
		if i == 0 || blank(row) {
			continue
		}
		line := i + 1
		e, err := parseRow(row, serialDates)
		if err != nil {
			res.Skipped++
			res.Errors = append(res.Errors, fmt.Errorf("row %d: %w", line, err))
			continue
		}
		e.UserID = im.userID
		batch = append(batch, e)
	}

	if len(batch) == 0 {
		slog.InfoContext(ctx, "Nothing to import", "skipped", res.Skipped)
		return res, nil
	}
	if _, err := im.writer.AppendBatch(ctx, batch); err != nil {
		return res, fmt.Errorf("write imported entries: %w", err)
	}
	res.Imported = len(batch)
	slog.InfoContext(ctx, "Import completed", "imported", res.Imported, "skipped", res.Skipped)
	return res, nil
}

func parseRow(row []string, serialDates bool) (core.Entry, error) {
	if len(row) < 4 {
		return core.Entry{}, fmt.Errorf("expected 4 columns (date, type, description, amount), got %d", len(row))
	}
	dateStr, typeStr, desc, amountStr := row[0], row[1], strings.TrimSpace(row[2]), row[3]
	if strings.TrimSpace(dateStr) == "" || strings.TrimSpace(typeStr) == "" || desc == "" || strings.TrimSpace(amountStr) == "" {
		return core.Entry{}, errors.New("missing required field")
	}

	date, err := parseDate(dateStr, serialDates)
	if err != nil {
		return core.Entry{}, err
	}
	ft, err := MapFlowType(typeStr)
	if err != nil {
		return core.Entry{}, err
	}
	amount, err := core.ParseAmount(amountStr)
	if err != nil {
		return core.Entry{}, fmt.Errorf("amount %q: %w", amountStr, err)
	}

	e := core.Entry{Date: date, Type: ft, Description: desc, Amount: amount}
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	return e, nil
}

func parseDate(s string, serialDates bool) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
		}
	}
	if serialDates {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
			t, err := excelize.ExcelDateToTime(math.Floor(f), false)
			if err == nil {
				return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
			}
		}
	}
	return core.Date{}, fmt.Errorf("%w: %q", core.ErrInvalidDate, s)
}

// MapFlowType resolves a free-form type cell: exact alias first, then a
// substring match, then the closest alias within a small edit distance.
// Matches that point at both flow types are rejected.
func MapFlowType(s string) (core.FlowType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "" {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidFlowType, s)
	}
	if ft, ok := typeAliases[v]; ok {
		return ft, nil
	}

	found := map[core.FlowType]bool{}
	for alias, ft := range typeAliases {
		if strings.Contains(v, alias) || strings.Contains(alias, v) {
			found[ft] = true
		}
	}
	switch len(found) {
	case 1:
		ft, _ := single(found)
		return ft, nil
	case 2:
		return "", fmt.Errorf("%w: %q is ambiguous", core.ErrInvalidFlowType, s)
	}

	best := maxTypeDistance + 1
	found = map[core.FlowType]bool{}
	for alias, ft := range typeAliases {
		d := levenshtein.ComputeDistance(v, alias)
		switch {
		case d < best:
			best = d
			found = map[core.FlowType]bool{ft: true}
		case d == best:
			found[ft] = true
		}
	}
	if ft, ok := single(found); ok && best <= maxTypeDistance {
		return ft, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidFlowType, s)
}

func single(found map[core.FlowType]bool) (core.FlowType, bool) {
	if len(found) != 1 {
		return "", false
	}
	for ft := range found {
		return ft, true
	}
	return "", false
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// findSheet matches sheet names ignoring surrounding spaces, which some
// exporters leave in.
func findSheet(names []string, sheet string) (string, bool) {
	for _, n := range names {
		if strings.TrimSpace(n) == strings.TrimSpace(sheet) {
			return n, true
		}
	}
	return "", false
}
