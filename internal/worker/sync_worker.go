package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"tracker/internal/amqp"
	"tracker/internal/core"
	"tracker/internal/ledger"
)

// SyncStore is the part of the SQLite repository the worker uses.
type SyncStore interface {
	PendingEntries(ctx context.Context, ids []int64) ([]core.Entry, error)
	PendingSync(ctx context.Context, limit int) ([]core.Entry, error)
	MarkSynced(ctx context.Context, ids []int64) error
	MarkSyncError(ctx context.Context, ids []int64) error
}

// SyncWorker exports stored entries to one or more external ledgers.
type SyncWorker struct {
	storage   SyncStore
	exporters []ledger.Exporter
	batchSize int

	// Serializes exports so a redelivered message and the pending poll
	// never append the same entry twice.
	mu sync.Mutex
}

func NewSyncWorker(storage SyncStore, batchSize int, exporters ...ledger.Exporter) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		storage:   storage,
		exporters: exporters,
		batchSize: batchSize,
	}
}

// HandleBatchCreated exports the entries named by a broker message. A
// returned error requeues the message.
func (w *SyncWorker) HandleBatchCreated(ctx context.Context, msg *amqp.BatchCreatedMessage) error {
	slog.InfoContext(ctx, "Processing batch message", "count", len(msg.IDs), "timestamp", msg.Timestamp)

	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := w.storage.PendingEntries(ctx, msg.IDs)
	if err != nil {
		return fmt.Errorf("load batch entries: %w", err)
	}
	if len(entries) == 0 {
		slog.InfoContext(ctx, "Batch already synced", "count", len(msg.IDs))
		return nil
	}
	_, err = w.export(ctx, entries)
	return err
}

// ProcessPending exports up to one batch of entries still pending. It is
// the backup path for lost or unpublished messages.
func (w *SyncWorker) ProcessPending(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	entries, err := w.storage.PendingSync(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	slog.InfoContext(ctx, "Processing pending entries", "count", len(entries))
	return w.export(ctx, entries)
}

func (w *SyncWorker) export(ctx context.Context, entries []core.Entry) (int, error) {
	ids, err := entryIDs(entries)
	if err != nil {
		return 0, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, exp := range w.exporters {
		g.Go(func() error {
			return exp.AppendEntries(gctx, entries)
		})
	}
	if err := g.Wait(); err != nil {
		if isPermanent(err) {
			// Retrying cannot fix a rejected entry.
			if markErr := w.storage.MarkSyncError(ctx, ids); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "count", len(ids), "error", markErr)
			}
			slog.ErrorContext(ctx, "Entries rejected by exporter", "count", len(ids), "error", err)
			return 0, nil
		}
		return 0, fmt.Errorf("export entries: %w", err)
	}

	if err := w.storage.MarkSynced(ctx, ids); err != nil {
		// The export happened; the next poll would duplicate rows, so
		// surface the failure loudly.
		slog.ErrorContext(ctx, "Failed to mark entries as synced", "count", len(ids), "error", err)
		return len(ids), fmt.Errorf("mark synced: %w", err)
	}

	slog.InfoContext(ctx, "Entries synced", "count", len(ids), "exporters", len(w.exporters))
	return len(ids), nil
}

func entryIDs(entries []core.Entry) ([]int64, error) {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		id, err := strconv.ParseInt(e.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry id %q: %w", e.ID, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func isPermanent(err error) bool {
	return errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidFlowType) ||
		errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrEmptyDescription)
}
