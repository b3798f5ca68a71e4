// errors.go — Structured error payloads for the MCP tool-call surface.
// Every error carries a self-describing snake_case code plus a plain-English
// retry instruction, so a calling agent can act on it without a lookup table.
package mcp

import (
	"encoding/json"
	"fmt"
)

const (
	// Input errors — the caller can fix its arguments and retry immediately.
	ErrInvalidJSON  = "invalid_json"
	ErrMissingParam = "missing_param"
	ErrInvalidParam = "invalid_param"
	ErrPolicyDenied = "policy_denied"

	// State errors — the caller must change state before retrying.
	ErrNotInitialized = "not_initialized"
	ErrNoData         = "no_data"
	ErrRateLimited    = "rate_limited"
	ErrQueueFull      = "queue_full"

	// Dispatch errors — transient; retry with backoff.
	ErrDispatchTimeout = "dispatch_timeout"
	ErrWireError       = "wire_error"

	// Internal errors — do not retry.
	ErrInternal      = "internal_error"
	ErrMarshalFailed = "marshal_failed"
	ErrExportFailed  = "export_failed"
)

// StructuredError is embedded in MCP text content.
type StructuredError struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	Retry        string `json:"retry"`
	Retryable    bool   `json:"retryable"`
	RetryAfterMs int    `json:"retry_after_ms,omitempty"`
	Param        string `json:"param,omitempty"`
	Hint         string `json:"hint,omitempty"`
}

// StructuredErrorResponse constructs an MCP error response. Format:
//
//	Error: missing_param — Add the 'url' parameter and call again
//	{"error":"missing_param","message":"...","retry":"...","hint":"..."}
//
// The retry string is a plain-English instruction the caller can follow
// directly.
func StructuredErrorResponse(code, message, retry string, opts ...func(*StructuredError)) json.RawMessage {
	se := StructuredError{Error: code, Message: message, Retry: retry}
	for _, opt := range retryDefaultsForCode(code) {
		opt(&se)
	}
	for _, opt := range opts {
		opt(&se)
	}

	seJSON, _ := json.Marshal(se)
	text := fmt.Sprintf("Error: %s — %s\n%s", code, retry, string(seJSON))

	result := MCPToolResult{
		Content: []MCPContentBlock{{Type: "text", Text: text}},
		IsError: true,
	}
	return SafeMarshal(result, `{"content":[{"type":"text","text":"Internal error: failed to marshal result"}],"isError":true}`)
}

// WithParam names the offending parameter.
func WithParam(p string) func(*StructuredError) {
	return func(se *StructuredError) { se.Param = p }
}

// WithHint attaches extra guidance.
func WithHint(h string) func(*StructuredError) {
	return func(se *StructuredError) { se.Hint = h }
}

// WithRetryable overrides the code-derived retryable default.
func WithRetryable(retryable bool) func(*StructuredError) {
	return func(se *StructuredError) { se.Retryable = retryable }
}

// WithRetryAfterMs sets the suggested delay before retrying.
func WithRetryAfterMs(ms int) func(*StructuredError) {
	return func(se *StructuredError) { se.RetryAfterMs = ms }
}

// retryDefaultsForCode derives retryable/retry_after_ms from the code:
// dispatch-level faults are transient, everything else needs changed input.
func retryDefaultsForCode(code string) []func(*StructuredError) {
	switch code {
	case ErrDispatchTimeout:
		return []func(*StructuredError){WithRetryable(true), WithRetryAfterMs(1000)}
	case ErrWireError:
		return []func(*StructuredError){WithRetryable(true), WithRetryAfterMs(2000)}
	case ErrRateLimited, ErrQueueFull:
		return []func(*StructuredError){WithRetryable(true), WithRetryAfterMs(1000)}
	case ErrNoData:
		return []func(*StructuredError){WithRetryable(true), WithRetryAfterMs(2000)}
	default:
		return []func(*StructuredError){WithRetryable(false)}
	}
}
