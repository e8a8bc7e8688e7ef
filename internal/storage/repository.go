package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tracker/internal/core"
	"tracker/internal/ledger"

	_ "modernc.org/sqlite"
)

// Sync states of a stored entry.
const (
	SyncPending = "pending"
	SyncSynced  = "synced"
	SyncError   = "error"
)

var ErrNotFound = errors.New("entry not found")

var (
	_ ledger.EntryWriter = (*SQLiteRepository)(nil)
	_ ledger.EntryLister = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, dbPath: dbPath, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks that the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Path returns the database file path.
func (r *SQLiteRepository) Path() string {
	return r.dbPath
}

// AppendBatch inserts all entries in one transaction and returns their ids in
// input order. Either every entry is stored or none is.
func (r *SQLiteRepository) AppendBatch(ctx context.Context, entries []core.Entry) ([]string, error) {
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	if len(entries) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (entry_date, flow_type, description, amount_cents, user_id, created_at, sync_status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	createdAt := r.now().UTC().Format(time.RFC3339Nano)
	refs := make([]string, len(entries))
	for i, e := range entries {
		res, err := stmt.ExecContext(ctx,
			e.Date.String(),
			string(e.Type),
			e.Description,
			e.Amount.Cents,
			e.UserID,
			createdAt,
			SyncPending)
		if err != nil {
			return nil, fmt.Errorf("insert entry %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("read id of entry %d: %w", i, err)
		}
		refs[i] = strconv.FormatInt(id, 10)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}

	slog.InfoContext(ctx, "Entry batch saved to SQLite", "count", len(refs), "first_id", refs[0])
	return refs, nil
}

// ListEntries returns the month's entries, newest date first.
func (r *SQLiteRepository) ListEntries(ctx context.Context, year int, month int) ([]core.Entry, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month: %d", month)
	}
	from := core.NewDate(year, month, 1)
	to := core.Date{Time: from.AddDate(0, 1, 0)}

	rows, err := r.db.QueryContext(ctx, selectEntries+`
		WHERE entry_date >= ? AND entry_date < ?
		ORDER BY entry_date DESC, id ASC`, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("list entries (year=%d, month=%d): %w", year, month, err)
	}
	return scanEntries(rows)
}

// GetEntries loads entries by id. Unknown ids are ignored.
func (r *SQLiteRepository) GetEntries(ctx context.Context, ids []int64) ([]core.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	rows, err := r.db.QueryContext(ctx, selectEntries+`
		WHERE id IN (`+placeholders+`)
		ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("get entries: %w", err)
	}
	return scanEntries(rows)
}

// PendingEntries loads the entries among ids that still await export.
func (r *SQLiteRepository) PendingEntries(ctx context.Context, ids []int64) ([]core.Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inClause(ids)
	args = append(args, SyncPending)
	rows, err := r.db.QueryContext(ctx, selectEntries+`
		WHERE id IN (`+placeholders+`) AND sync_status = ?
		ORDER BY id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("get pending entries: %w", err)
	}
	return scanEntries(rows)
}

// GetEntry loads a single entry.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	entries, err := r.GetEntries(ctx, []int64{id})
	if err != nil {
		return core.Entry{}, err
	}
	if len(entries) == 0 {
		return core.Entry{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return entries[0], nil
}

// PendingSync returns up to limit entries not yet exported, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, selectEntries+`
		WHERE sync_status = ?
		ORDER BY id ASC
		LIMIT ?`, SyncPending, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	return scanEntries(rows)
}

// MarkSynced marks entries as exported.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids []int64) error {
	if err := r.setSyncStatus(ctx, ids, SyncSynced); err != nil {
		return fmt.Errorf("mark entries synced: %w", err)
	}
	slog.InfoContext(ctx, "Entries marked as synced", "count", len(ids))
	return nil
}

// MarkSyncError marks entries whose export failed permanently.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, ids []int64) error {
	if err := r.setSyncStatus(ctx, ids, SyncError); err != nil {
		return fmt.Errorf("mark entries sync error: %w", err)
	}
	slog.WarnContext(ctx, "Entries marked with sync error", "count", len(ids))
	return nil
}

// SyncStatus returns the sync state of one entry.
func (r *SQLiteRepository) SyncStatus(ctx context.Context, id int64) (string, error) {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT sync_status FROM entries WHERE id = ?`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("read sync status: %w", err)
	}
	return status, nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, ids []int64, status string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders, args := inClause(ids)
	var syncedAt any
	if status == SyncSynced {
		syncedAt = r.now().UTC().Format(time.RFC3339Nano)
	}
	args = append([]any{status, syncedAt}, args...)
	_, err := r.db.ExecContext(ctx, `
		UPDATE entries SET sync_status = ?, synced_at = ?
		WHERE id IN (`+placeholders+`)`, args...)
	return err
}

const selectEntries = `
	SELECT id, entry_date, flow_type, description, amount_cents, user_id, created_at
	FROM entries`

func scanEntries(rows *sql.Rows) ([]core.Entry, error) {
	defer rows.Close()
	var out []core.Entry
	for rows.Next() {
		var (
			id          int64
			date, ft    string
			description string
			cents       int64
			userID      string
			createdAt   string
		)
		if err := rows.Scan(&id, &date, &ft, &description, &cents, &userID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", id, err)
		}
		created, _ := time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, core.Entry{
			ID:          strconv.FormatInt(id, 10),
			Date:        d,
			Type:        core.FlowType(ft),
			Description: description,
			Amount:      core.Money{Cents: cents},
			UserID:      userID,
			CreatedAt:   created,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

// ParseIDs converts entry references back to database ids.
func ParseIDs(refs []string) ([]int64, error) {
	ids := make([]int64, len(refs))
	for i, ref := range refs {
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid entry id %q: %w", ref, err)
		}
		ids[i] = id
	}
	return ids, nil
}
