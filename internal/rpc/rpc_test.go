package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker/internal/core"
	"tracker/internal/form"
)

type fakeBackend struct {
	mu      sync.Mutex
	batches [][]form.Entry
	result  form.Result
	err     error
}

func (b *fakeBackend) SubmitEntries(_ context.Context, entries []form.Entry) (form.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, entries)
	return b.result, b.err
}

func newServer(t *testing.T, backend form.BatchSender) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(SubmitPath, NewHandler(backend, nil))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postRaw(t *testing.T, url, body string) Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNewRequest_WireShape(t *testing.T) {
	req := NewRequest(7, []form.Entry{{Date: "2025-01-02", Type: core.Outflow, Description: "bus", Amount: "2.10"}})
	raw, err := json.Marshal(req)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"jsonrpc": "2.0",
		"method": "call",
		"params": {"entries": [{"date": "2025-01-02", "type": "outflow", "description": "bus", "amount": "2.10"}]},
		"id": 7
	}`, string(raw))
}

func TestNewRequest_NilEntriesEncodeAsEmptyList(t *testing.T) {
	raw, err := json.Marshal(NewRequest(1, nil))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"entries":[]`)
}

func TestClientHandler_RoundTrip(t *testing.T) {
	backend := &fakeBackend{result: form.Result{Status: form.ResultSuccess}}
	srv := newServer(t, backend)
	client := NewClient(srv.URL + SubmitPath)

	entries := []form.Entry{
		{Date: "2025-03-01", Type: core.Inflow, Description: "salary", Amount: "1000"},
		{Date: "2025-03-01", Type: core.Outflow, Description: "rent", Amount: "400"},
	}
	res, err := client.SubmitEntries(context.Background(), entries)
	require.NoError(t, err)
	assert.True(t, res.OK())

	require.Len(t, backend.batches, 1)
	assert.Equal(t, entries, backend.batches[0])
}

func TestClient_RejectedResultIsNotAnError(t *testing.T) {
	backend := &fakeBackend{result: form.Result{Status: "error", Message: "amount: invalid amount"}}
	srv := newServer(t, backend)

	res, err := NewClient(srv.URL+SubmitPath).SubmitEntries(context.Background(), []form.Entry{{Description: "x", Amount: "y"}})
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, "amount: invalid amount", res.Message)
}

func TestClient_BackendErrorBecomesRPCError(t *testing.T) {
	backend := &fakeBackend{err: errors.New("disk full")}
	srv := newServer(t, backend)

	_, err := NewClient(srv.URL+SubmitPath).SubmitEntries(context.Background(), []form.Entry{{Description: "x", Amount: "1"}})
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeServerError, rpcErr.Code)
	assert.NotContains(t, rpcErr.Message, "disk full")
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SubmitEntries(context.Background(), nil)
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SubmitEntries(context.Background(), nil)
	require.Error(t, err)
}

func TestClient_MissingResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SubmitEntries(context.Background(), nil)
	require.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewClient(srv.URL, WithTimeout(50*time.Millisecond)).SubmitEntries(context.Background(), nil)
	require.Error(t, err)
}

func TestHandler_RejectsNonPost(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(&fakeBackend{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, SubmitPath, nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestHandler_ProtocolErrors(t *testing.T) {
	backend := &fakeBackend{result: form.Result{Status: form.ResultSuccess}}
	srv := newServer(t, backend)
	url := srv.URL + SubmitPath

	tests := []struct {
		name string
		body string
		code int
		id   string
	}{
		{"malformed json", `{"jsonrpc":`, CodeParseError, "null"},
		{"wrong version", `{"jsonrpc":"1.0","method":"call","params":{"entries":[]},"id":3}`, CodeInvalidRequest, "3"},
		{"unknown method", `{"jsonrpc":"2.0","method":"execute","params":{"entries":[]},"id":"abc"}`, CodeMethodNotFound, `"abc"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postRaw(t, url, tt.body)
			require.NotNil(t, resp.Error)
			assert.Nil(t, resp.Result)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, Version, resp.JSONRPC)
			assert.JSONEq(t, tt.id, string(resp.ID))
		})
	}
	assert.Empty(t, backend.batches)
}

func TestHandler_EchoesID(t *testing.T) {
	srv := newServer(t, &fakeBackend{result: form.Result{Status: form.ResultSuccess}})
	resp := postRaw(t, srv.URL+SubmitPath, `{"jsonrpc":"2.0","method":"call","params":{"entries":[]},"id":412}`)
	require.NotNil(t, resp.Result)
	assert.Equal(t, form.ResultSuccess, resp.Result.Status)
	assert.JSONEq(t, "412", string(resp.ID))
}

func TestHandler_RequestTooLarge(t *testing.T) {
	big := `{"jsonrpc":"2.0","method":"call","params":{"entries":[{"description":"` +
		strings.Repeat("a", maxRequestBytes) + `"}]},"id":1}`
	rec := httptest.NewRecorder()
	NewHandler(&fakeBackend{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, SubmitPath, strings.NewReader(big)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestFormOverRPC(t *testing.T) {
	backend := &fakeBackend{result: form.Result{Status: form.ResultSuccess}}
	srv := newServer(t, backend)

	f := form.New(NewClient(srv.URL+SubmitPath), form.WithDate("2025-04-10"))
	first, _ := f.RowAt(0)
	first.Set(form.Values{FlowType: core.Inflow, Description: "salary", Amount: "1000"})
	f.AddRow().Set(form.Values{FlowType: core.Outflow, Description: "coffee"})
	f.AddRow().Set(form.Values{FlowType: core.Outflow, Description: "rent", Amount: "400"})

	outcome, err := f.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, form.OutcomeSucceeded, outcome)
	assert.Equal(t, 1, f.Len())

	require.Len(t, backend.batches, 1)
	assert.Len(t, backend.batches[0], 2)
}

func TestFormOverRPC_ServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + SubmitPath
	srv.Close()

	f := form.New(NewClient(url), form.WithDate("2025-04-10"))
	first, _ := f.RowAt(0)
	first.Set(form.Values{FlowType: core.Inflow, Description: "salary", Amount: "1000"})

	outcome, err := f.Submit(context.Background())
	require.ErrorIs(t, err, form.ErrTransport)
	assert.Equal(t, form.OutcomeFailed, outcome)
	assert.Equal(t, form.MsgSubmitFailed, f.State().Message)
	assert.Equal(t, "salary", f.Rows()[0].Description)
}
