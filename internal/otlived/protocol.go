package otlived

import (
	"encoding/json"

	"otterlive/internal/model"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
)

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type PathParams struct {
	Path string `json:"path"`
}

type IndexResult struct {
	Path      string `json:"path"`
	Scheduled bool   `json:"scheduled"`
}

type WaitParams struct {
	TimeoutMS int `json:"timeout_ms,omitempty"`
}

type WaitResult struct {
	Idle bool `json:"idle"`
}

type SearchParams struct {
	Q string `json:"q"`
}

type SearchResult struct {
	Paths []string `json:"paths"`
}

type StatsResult = model.Stats
