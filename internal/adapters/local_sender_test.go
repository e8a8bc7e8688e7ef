package adapters

import (
	"context"
	"errors"
	"testing"

	"tracker/internal/core"
	"tracker/internal/form"
	"tracker/internal/ledger/memory"
	"tracker/internal/services"
)

type failingSubmitter struct{}

func (failingSubmitter) SubmitBatch(context.Context, string, []form.Entry) ([]string, error) {
	return nil, errors.New("disk full")
}

func TestLocalSender_Success(t *testing.T) {
	store := memory.New()
	sender := NewLocalSender(services.NewEntryService(store, nil))

	ctx := services.ContextWithUser(context.Background(), "carol")
	res, err := sender.SubmitEntries(ctx, []form.Entry{
		{Date: "2025-03-01", Type: core.Inflow, Description: "salary", Amount: "10"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.OK() || res.Message != "1 entries saved" {
		t.Fatalf("unexpected result %+v", res)
	}

	got, _ := store.ListEntries(context.Background(), 2025, 3)
	if len(got) != 1 || got[0].UserID != "carol" {
		t.Fatalf("unexpected stored entries %+v", got)
	}
}

func TestLocalSender_ValidationIsAResult(t *testing.T) {
	sender := NewLocalSender(services.NewEntryService(memory.New(), nil))

	res, err := sender.SubmitEntries(context.Background(), []form.Entry{
		{Date: "2025-03-01", Type: core.Inflow, Description: "x", Amount: "-5"},
	})
	if err != nil {
		t.Fatalf("validation failures should not be transport errors: %v", err)
	}
	if res.OK() || res.Status != "error" || res.Message == "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestLocalSender_StorageFailureIsAnError(t *testing.T) {
	sender := NewLocalSender(failingSubmitter{})
	if _, err := sender.SubmitEntries(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestLocalSender_DrivesForm(t *testing.T) {
	store := memory.New()
	f := form.New(NewLocalSender(services.NewEntryService(store, nil)), form.WithDate("2025-03-01"))
	row, ok := f.RowAt(0)
	if !ok {
		t.Fatal("expected a starter row")
	}
	row.SetDescription("lunch")
	row.SetAmount("12,50")

	outcome, err := f.Submit(context.Background())
	if err != nil || outcome != form.OutcomeSucceeded {
		t.Fatalf("outcome=%v err=%v", outcome, err)
	}
	if store.Len() != 1 || f.Len() != 1 {
		t.Fatalf("store=%d rows=%d", store.Len(), f.Len())
	}
}
