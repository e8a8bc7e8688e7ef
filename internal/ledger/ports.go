// Package ledger declares the outbound ports for finance entries.
package ledger

import (
	"context"

	"tracker/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryWriter stores a batch of entries. Implementations either store all
	// of them or none, and return one reference per entry in input order.
	EntryWriter interface {
		AppendBatch(ctx context.Context, entries []core.Entry) (refs []string, err error)
	}

	// EntryLister returns the entries of a month, newest date first.
	EntryLister interface {
		ListEntries(ctx context.Context, year int, month int) ([]core.Entry, error)
	}

	// Exporter mirrors stored entries to an external ledger (a spreadsheet).
	Exporter interface {
		AppendEntries(ctx context.Context, entries []core.Entry) error
	}
)
