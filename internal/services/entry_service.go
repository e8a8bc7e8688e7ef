package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"tracker/internal/core"
	"tracker/internal/form"
	"tracker/internal/ledger"
)

// ErrInvalidEntry marks a batch refused because one of its entries failed
// server-side validation. Nothing from the batch is stored.
var ErrInvalidEntry = errors.New("invalid entry")

// Publisher announces stored batches to the sync worker.
type Publisher interface {
	PublishBatchCreated(ctx context.Context, ids []int64) error
}

// Store is the persistence the service needs.
type Store interface {
	ledger.EntryWriter
	ledger.EntryLister
}

// EntryService validates submitted batches, stores them and notifies the
// sync worker.
type EntryService struct {
	store     Store
	publisher Publisher
}

// NewEntryService wires a store and an optional publisher (nil disables
// notifications).
func NewEntryService(store Store, publisher Publisher) *EntryService {
	return &EntryService{
		store:     store,
		publisher: publisher,
	}
}

// SubmitBatch converts and validates every entry, then stores the batch in
// one step. It returns the stored references in input order.
func (s *EntryService) SubmitBatch(ctx context.Context, userID string, entries []form.Entry) ([]string, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidEntry)
	}

	batch := make([]core.Entry, 0, len(entries))
	for i, in := range entries {
		e, err := ToCoreEntry(in)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrInvalidEntry, i+1, err)
		}
		e.UserID = userID
		batch = append(batch, e)
	}

	// Save first; the ledger is the source of truth.
	refs, err := s.store.AppendBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}

	slog.InfoContext(ctx, "Entry batch stored", "count", len(refs), "user_id", userID)

	if err := s.publishBatch(ctx, refs); err != nil {
		// Entries are stored; the periodic sync picks them up.
		slog.ErrorContext(ctx, "Failed to publish batch message", "count", len(refs), "error", err)
	}
	return refs, nil
}

// Month returns the month's entries grouped per day, newest first.
func (s *EntryService) Month(ctx context.Context, year, month int) ([]core.DayTotals, error) {
	entries, err := s.store.ListEntries(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return core.GroupByDay(entries), nil
}

func (s *EntryService) publishBatch(ctx context.Context, refs []string) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No publisher configured, skipping batch message")
		return nil
	}
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		id, err := strconv.ParseInt(ref, 10, 64)
		if err != nil {
			slog.WarnContext(ctx, "Store reference is not a row id, skipping batch message", "ref", ref)
			return nil
		}
		ids = append(ids, id)
	}
	return s.publisher.PublishBatchCreated(ctx, ids)
}

// ToCoreEntry parses a submitted entry into a validated domain entry.
func ToCoreEntry(in form.Entry) (core.Entry, error) {
	date, err := core.ParseDate(in.Date)
	if err != nil {
		return core.Entry{}, err
	}
	ft, err := core.ParseFlowType(string(in.Type))
	if err != nil {
		return core.Entry{}, err
	}
	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return core.Entry{}, fmt.Errorf("%w: %q", err, in.Amount)
	}
	e := core.Entry{
		Date:        date,
		Type:        ft,
		Description: strings.TrimSpace(in.Description),
		Amount:      amount,
	}
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}
	return e, nil
}

type userKey struct{}

// ContextWithUser attaches the submitting user's id.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserFromContext returns the user id set by ContextWithUser, or "".
func UserFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userKey{}).(string); ok {
		return v
	}
	return ""
}
