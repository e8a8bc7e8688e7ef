package form

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"

	"tracker/internal/core"
)

var (
	ErrValidationEmpty = errors.New("at least one valid record required")
	ErrBackendRejected = errors.New("backend rejected entries")
	ErrTransport       = errors.New("submit transport failure")
)

// ResultSuccess is the status value a backend returns for an accepted batch.
const ResultSuccess = "success"

// Entry is one record of a submitted batch.
type Entry struct {
	Date        string        `json:"date"`
	Type        core.FlowType `json:"type"`
	Description string        `json:"description"`
	Amount      string        `json:"amount"`
}

// Result is the backend's answer to a batch. Message is informational; only
// Status decides the outcome.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK reports whether the batch was accepted.
func (r Result) OK() bool {
	return r.Status == ResultSuccess
}

// BatchSender delivers one batch in one round trip. A non-nil error means no
// usable response was received.
type BatchSender interface {
	SubmitEntries(ctx context.Context, entries []Entry) (Result, error)
}

// BatchSenderFunc adapts a function to BatchSender.
type BatchSenderFunc func(ctx context.Context, entries []Entry) (Result, error)

func (fn BatchSenderFunc) SubmitEntries(ctx context.Context, entries []Entry) (Result, error) {
	return fn(ctx, entries)
}

// Collect snapshots the rows and returns a lazy sequence over the ones with
// both a description and an amount, in display order. Ranging over the
// sequence again replays the same snapshot.
func (f *Form) Collect() iter.Seq[Entry] {
	f.mu.Lock()
	date := f.date
	snapshot := make([]Values, len(f.rows))
	for i, r := range f.rows {
		snapshot[i] = r.values
	}
	f.mu.Unlock()

	return func(yield func(Entry) bool) {
		for _, v := range snapshot {
			if v.Description == "" || v.Amount == "" {
				continue
			}
			e := Entry{
				Date:        date,
				Type:        v.FlowType,
				Description: v.Description,
				Amount:      v.Amount,
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Submit collects the valid rows and sends them as one batch.
//
// With no valid rows it returns ErrValidationEmpty without calling the
// sender. On an accepted batch every row is cleared and a single starter row
// is added back. On rejection (ErrBackendRejected) or transport failure
// (ErrTransport) the rows are left as they are. The form is unlocked while
// the request is in flight.
func (f *Form) Submit(ctx context.Context) (Outcome, error) {
	entries := slices.Collect(f.Collect())
	if len(entries) == 0 {
		f.setState(StatusError, MsgValidationEmpty)
		return OutcomeBlocked, ErrValidationEmpty
	}

	f.mu.Lock()
	f.inFlight++
	f.mu.Unlock()

	res, err := f.sender.SubmitEntries(ctx, entries)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--

	if err != nil {
		f.logger.ErrorContext(ctx, "Error submitting entries", "error", err, "count", len(entries))
		f.state = UIState{Status: StatusError, Message: MsgSubmitFailed}
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	if !res.OK() {
		f.logger.WarnContext(ctx, "Entries rejected by backend", "status", res.Status, "count", len(entries))
		f.state = UIState{Status: StatusError, Message: MsgSubmitFailed}
		return OutcomeFailed, fmt.Errorf("%w: status %q", ErrBackendRejected, res.Status)
	}

	f.rows = nil
	f.addRowLocked()
	f.state = UIState{Status: StatusSuccess, Message: MsgSubmitted}
	f.logger.InfoContext(ctx, "Entries submitted", "count", len(entries))
	return OutcomeSucceeded, nil
}

func (f *Form) setState(s Status, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = UIState{Status: s, Message: msg}
}
