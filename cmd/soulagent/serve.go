package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/brennhill/soulbrowser-agent/internal/bridge"
	"github.com/brennhill/soulbrowser-agent/internal/flow"
	"github.com/brennhill/soulbrowser-agent/internal/mcp"
	"github.com/brennhill/soulbrowser-agent/internal/scheduler"
	"github.com/brennhill/soulbrowser-agent/internal/soulerr"
	"github.com/brennhill/soulbrowser-agent/internal/tool"
)

const maxStdioBody = 10 << 20 // 10 MiB cap on a single framed message.

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run an MCP server over stdio, exposing the tool-call surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context(), policyPath, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			readyCtx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if !bridge.AwaitReady(readyCtx, app.WireReady) {
				return fmt.Errorf("wire bridge did not become ready")
			}

			return serveStdio(cmd.Context(), app, os.Stdin, os.Stdout)
		},
	}
}

// serveStdio is the MCP read-dispatch-write loop: one JSON-RPC request in,
// one JSON-RPC response out, framed per internal/bridge's stdio rules.
func serveStdio(ctx context.Context, app *App, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		raw, err := bridge.ReadStdioMessage(reader, maxStdioBody)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		var req mcp.JSONRPCRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			writeResponse(out, mcp.JSONRPCResponse{
				JSONRPC: "2.0",
				Error:   &mcp.JSONRPCError{Code: -32700, Message: "parse error"},
			})
			continue
		}

		resp := handleRequest(ctx, app, req)
		if !req.HasID() {
			continue // notification: no response per JSON-RPC 2.0.
		}
		writeResponse(out, resp)
	}
}

func writeResponse(out io.Writer, resp mcp.JSONRPCResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	fmt.Fprintln(out, string(b))
}

func handleRequest(ctx context.Context, app *App, req mcp.JSONRPCRequest) mcp.JSONRPCResponse {
	resp := mcp.JSONRPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		resp.Result = mcp.SafeMarshal(mcp.MCPInitializeResult{
			ProtocolVersion: "2024-11-05",
			ServerInfo:      mcp.MCPServerInfo{Name: "soulagent", Version: "0.1.0"},
			Capabilities:    mcp.MCPCapabilities{Tools: mcp.MCPToolsCapability{}},
		}, "{}")
	case "tools/list":
		resp.Result = mcp.SafeMarshal(listTools(app), "{}")
	case "tools/call":
		var warnings []string
		resp.Result, warnings = callTool(ctx, app, req.Params)
		resp = mcp.AppendWarningsToResponse(resp, warnings)
	default:
		resp.Error = &mcp.JSONRPCError{Code: -32601, Message: "method not found: " + req.Method}
	}
	return resp
}

func listTools(app *App) map[string][]mcp.MCPTool {
	names := []string{
		"navigate-to-url", "click", "type-text", "select-option",
		"scroll-page", "wait-for-element", "wait-for-condition",
	}
	tools := make([]mcp.MCPTool, 0, len(names))
	for _, n := range names {
		tools = append(tools, mcp.MCPTool{Name: n, Description: n + " tool", InputSchema: map[string]any{"type": "object"}})
	}
	return map[string][]mcp.MCPTool{"tools": tools}
}

type toolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Route     flow.ExecRoute  `json:"route"`
	ActionID  string          `json:"action_id"`
	TaskID    string          `json:"task_id"`
	Priority  string          `json:"priority"`
}

func callTool(ctx context.Context, app *App, params json.RawMessage) (json.RawMessage, []string) {
	var p toolCallParams
	warnings, err := mcp.UnmarshalWithWarnings(params, &p)
	if err != nil {
		return mcp.StructuredErrorResponse(mcp.ErrInvalidJSON, "failed to decode tools/call params", "send a JSON object with name/arguments/route"), nil
	}

	kind, ok := kindForTool(p.Name)
	if !ok {
		return mcp.StructuredErrorResponse(mcp.ErrInvalidParam, "unknown tool "+p.Name, "call tools/list to see available tools"), warnings
	}

	priority := scheduler.Priority(p.Priority)
	if priority == "" {
		priority = scheduler.PriorityStandard
	}
	timeout := bridge.DispatchTimeoutFromPolicy(bridge.Priority(priority), app.Policy.Snapshot().Scheduler.TimeoutsMs)

	out, err := app.Invoker.Invoke(ctx, tool.CallRequest{
		ActionID: p.ActionID,
		TaskID:   p.TaskID,
		ToolName: p.Name,
		Kind:     kind,
		Route:    p.Route,
		Params:   p.Arguments,
		Options: scheduler.DispatchOptions{
			Priority: priority,
			Timeout:  timeout,
		},
	})
	if err != nil {
		return mcp.StructuredErrorResponse(toolErrCode(err), err.Error(), "inspect the error and adjust arguments before retrying"), warnings
	}
	if out.Err != "" {
		return mcp.StructuredErrorResponse(mcp.ErrWireError, out.Err, "the action failed during dispatch; retry or adjust the anchor"), warnings
	}
	return mcp.JSONResponse(p.Name+" succeeded", out.Output), warnings
}

func toolErrCode(err error) string {
	if soulerr.Is(err, soulerr.PolicyDenied) {
		return mcp.ErrPolicyDenied
	}
	if soulerr.Is(err, soulerr.InvalidRequest) || soulerr.Is(err, soulerr.ValidationFailed) {
		return mcp.ErrInvalidParam
	}
	if soulerr.Is(err, soulerr.Timeout) {
		return mcp.ErrDispatchTimeout
	}
	if soulerr.Is(err, soulerr.QueueFull) {
		return mcp.ErrQueueFull
	}
	return mcp.ErrInternal
}

func kindForTool(name string) (flow.ActionKind, bool) {
	switch canonicalToolName(name) {
	case "navigate-to-url":
		return flow.ActionNavigate, true
	case "click":
		return flow.ActionClick, true
	case "type-text":
		return flow.ActionTypeText, true
	case "select-option":
		return flow.ActionSelect, true
	case "scroll-page":
		return flow.ActionScroll, true
	case "wait-for-element", "wait-for-condition":
		return flow.ActionWait, true
	default:
		return "", false
	}
}
