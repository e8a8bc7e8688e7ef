package adapters

import (
	"context"
	"errors"
	"fmt"

	"tracker/internal/form"
	"tracker/internal/services"
)

// Submitter is the service operation the sender delegates to.
type Submitter interface {
	SubmitBatch(ctx context.Context, userID string, entries []form.Entry) ([]string, error)
}

// LocalSender adapts EntryService to form.BatchSender so the web form and
// the JSON-RPC endpoint share one submit path. The user id is taken from
// the request context.
type LocalSender struct {
	service Submitter
}

var _ form.BatchSender = (*LocalSender)(nil)

func NewLocalSender(service Submitter) *LocalSender {
	return &LocalSender{service: service}
}

// SubmitEntries reports validation failures as an "error" result and
// storage failures as errors.
func (a *LocalSender) SubmitEntries(ctx context.Context, entries []form.Entry) (form.Result, error) {
	refs, err := a.service.SubmitBatch(ctx, services.UserFromContext(ctx), entries)
	if errors.Is(err, services.ErrInvalidEntry) {
		return form.Result{Status: "error", Message: err.Error()}, nil
	}
	if err != nil {
		return form.Result{}, err
	}
	return form.Result{
		Status:  form.ResultSuccess,
		Message: fmt.Sprintf("%d entries saved", len(refs)),
	}, nil
}
