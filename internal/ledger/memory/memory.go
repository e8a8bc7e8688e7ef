package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"tracker/internal/core"
	"tracker/internal/ledger"
)

var (
	_ ledger.EntryWriter = (*Store)(nil)
	_ ledger.EntryLister = (*Store)(nil)
	_ ledger.Exporter    = (*Store)(nil)
)

// Store keeps entries in process memory.
type Store struct {
	mu    sync.Mutex
	seq   int
	items []core.Entry
	now   func() time.Time
}

func New() *Store {
	return &Store{now: time.Now}
}

// NewFromFile seeds the store from a seed file of
// "date,type,description,amount" lines. Missing files, blank lines and
// "#" comments are ignored, as are lines that do not validate.
func NewFromFile(base string) *Store {
	s := New()
	var seed []core.Entry
	for _, line := range readLines(filepath.Join(base, "seed_entries.txt")) {
		e, ok := parseSeedLine(line)
		if ok {
			seed = append(seed, e)
		}
	}
	if len(seed) > 0 {
		_, _ = s.AppendBatch(context.Background(), seed)
	}
	return s
}

// AppendBatch stores the entries if all of them validate.
func (s *Store) AppendBatch(_ context.Context, entries []core.Entry) ([]string, error) {
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	refs := make([]string, len(entries))
	for i, e := range entries {
		s.seq++
		e.ID = fmt.Sprintf("mem:%d", s.seq)
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.now()
		}
		s.items = append(s.items, e)
		refs[i] = e.ID
	}
	return refs, nil
}

// AppendEntries lets the store stand in for a spreadsheet exporter.
func (s *Store) AppendEntries(ctx context.Context, entries []core.Entry) error {
	_, err := s.AppendBatch(ctx, entries)
	return err
}

// ListEntries returns the month's entries, newest date first. Entries on the
// same date keep insertion order.
func (s *Store) ListEntries(_ context.Context, year int, month int) ([]core.Entry, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month: %d", month)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Entry
	for _, e := range s.items {
		if e.Date.Year() == year && int(e.Date.Month()) == month {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Entry) int {
		return b.Date.Compare(a.Date.Time)
	})
	return out, nil
}

// Len returns the number of stored entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func parseSeedLine(line string) (core.Entry, bool) {
	parts := strings.SplitN(line, ",", 4)
	if len(parts) != 4 {
		return core.Entry{}, false
	}
	date, err := core.ParseDate(parts[0])
	if err != nil {
		return core.Entry{}, false
	}
	ft, err := core.ParseFlowType(parts[1])
	if err != nil {
		return core.Entry{}, false
	}
	amount, err := core.ParseAmount(parts[3])
	if err != nil {
		return core.Entry{}, false
	}
	e := core.Entry{Date: date, Type: ft, Description: strings.TrimSpace(parts[2]), Amount: amount}
	return e, e.Validate() == nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
