// Package rpc carries entry batches over JSON-RPC 2.0.
//
// The wire shape is the one browser forms post to /finance/submit:
//
//	{"jsonrpc":"2.0","method":"call","params":{"entries":[...]},"id":1}
//
// and the answer carries either a result object ({"status":"success"}) or a
// JSON-RPC error object.
package rpc

import (
	"encoding/json"
	"fmt"

	"tracker/internal/form"
)

const (
	Version    = "2.0"
	MethodCall = "call"
	SubmitPath = "/finance/submit"
)

// Standard JSON-RPC error codes plus the implementation-defined server error.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
)

// Request is a JSON-RPC call envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  Params          `json:"params"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// Params holds the batch being submitted.
type Params struct {
	Entries []form.Entry `json:"entries"`
}

// Response is a JSON-RPC reply. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  *form.Result    `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object. It doubles as a Go error so clients can
// return it as-is.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a call envelope for entries.
func NewRequest(id int64, entries []form.Entry) Request {
	if entries == nil {
		entries = []form.Entry{}
	}
	return Request{
		JSONRPC: Version,
		Method:  MethodCall,
		Params:  Params{Entries: entries},
		ID:      json.RawMessage(fmt.Sprintf("%d", id)),
	}
}

func resultResponse(id json.RawMessage, res form.Result) Response {
	return Response{JSONRPC: Version, ID: normalizeID(id), Result: &res}
}

func errorResponse(id json.RawMessage, code int, msg string) Response {
	return Response{JSONRPC: Version, ID: normalizeID(id), Error: &Error{Code: code, Message: msg}}
}

func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
