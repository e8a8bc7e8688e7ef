package worker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"tracker/internal/amqp"
	"tracker/internal/core"
	"tracker/internal/ledger/memory"
	"tracker/internal/storage"
)

type failingExporter struct {
	err   error
	calls int
}

func (f *failingExporter) AppendEntries(context.Context, []core.Entry) error {
	f.calls++
	return f.err
}

func setup(t *testing.T, n int) (*storage.SQLiteRepository, []int64) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	entries := make([]core.Entry, n)
	for i := range entries {
		entries[i] = core.Entry{
			Date:        core.NewDate(2025, 3, i+1),
			Type:        core.Outflow,
			Description: fmt.Sprintf("entry %d", i+1),
			Amount:      core.Money{Cents: int64(100 * (i + 1))},
		}
	}
	refs, err := repo.AppendBatch(context.Background(), entries)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	ids, err := storage.ParseIDs(refs)
	if err != nil {
		t.Fatalf("parse ids: %v", err)
	}
	return repo, ids
}

func status(t *testing.T, repo *storage.SQLiteRepository, id int64) string {
	t.Helper()
	s, err := repo.SyncStatus(context.Background(), id)
	if err != nil {
		t.Fatalf("sync status: %v", err)
	}
	return s
}

func TestHandleBatchCreated_ExportsAndMarksSynced(t *testing.T) {
	repo, ids := setup(t, 3)
	sheet := memory.New()
	w := NewSyncWorker(repo, 10, sheet)

	if err := w.HandleBatchCreated(context.Background(), amqp.NewBatchCreatedMessage(ids[:2])); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if sheet.Len() != 2 {
		t.Fatalf("expected 2 exported rows, got %d", sheet.Len())
	}
	if status(t, repo, ids[0]) != storage.SyncSynced || status(t, repo, ids[2]) != storage.SyncPending {
		t.Fatal("unexpected sync states after batch")
	}

	// Redelivery does not export twice.
	if err := w.HandleBatchCreated(context.Background(), amqp.NewBatchCreatedMessage(ids[:2])); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if sheet.Len() != 2 {
		t.Fatalf("redelivered batch exported again: %d rows", sheet.Len())
	}
}

func TestHandleBatchCreated_TransientErrorKeepsPending(t *testing.T) {
	repo, ids := setup(t, 1)
	exp := &failingExporter{err: errors.New("googleapi: Error 503")}
	w := NewSyncWorker(repo, 10, exp)

	if err := w.HandleBatchCreated(context.Background(), amqp.NewBatchCreatedMessage(ids)); err == nil {
		t.Fatal("expected error so the message is requeued")
	}
	if status(t, repo, ids[0]) != storage.SyncPending {
		t.Fatal("entry should stay pending after a transient failure")
	}
}

func TestHandleBatchCreated_PermanentErrorMarksSyncError(t *testing.T) {
	repo, ids := setup(t, 1)
	exp := &failingExporter{err: fmt.Errorf("entry 0: validation failed: %w", core.ErrEmptyDescription)}
	w := NewSyncWorker(repo, 10, exp)

	if err := w.HandleBatchCreated(context.Background(), amqp.NewBatchCreatedMessage(ids)); err != nil {
		t.Fatalf("permanent failures should be acknowledged: %v", err)
	}
	if status(t, repo, ids[0]) != storage.SyncError {
		t.Fatal("entry should be marked with sync error")
	}
}

func TestProcessPending_FansOutToEveryExporter(t *testing.T) {
	repo, ids := setup(t, 5)
	a, b := memory.New(), memory.New()
	w := NewSyncWorker(repo, 3, a, b)

	n, err := w.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("process pending: %v", err)
	}
	if n != 3 || a.Len() != 3 || b.Len() != 3 {
		t.Fatalf("n=%d a=%d b=%d, want 3 each", n, a.Len(), b.Len())
	}

	n, _ = w.ProcessPending(context.Background())
	if n != 2 {
		t.Fatalf("second pass synced %d, want 2", n)
	}
	n, _ = w.ProcessPending(context.Background())
	if n != 0 {
		t.Fatalf("third pass synced %d, want 0", n)
	}
	for _, id := range ids {
		if status(t, repo, id) != storage.SyncSynced {
			t.Errorf("entry %d not synced", id)
		}
	}
}

func TestProcessPending_OneExporterFails(t *testing.T) {
	repo, ids := setup(t, 2)
	ok := memory.New()
	bad := &failingExporter{err: errors.New("connection reset")}
	w := NewSyncWorker(repo, 10, ok, bad)

	if _, err := w.ProcessPending(context.Background()); err == nil {
		t.Fatal("expected error when an exporter fails")
	}
	if status(t, repo, ids[0]) != storage.SyncPending {
		t.Fatal("entries should stay pending until every exporter succeeds")
	}
}
