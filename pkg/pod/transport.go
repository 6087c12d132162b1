package pod

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/mcp-pod/pkg/registry"
)

// envelope holds the fields needed to route a JSON-RPC message.
type envelope struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	ID      interface{} `json:"id,omitempty"`
}

// output writes newline delimited JSON-RPC messages to one stream. After
// detach, messages are dropped.
type output struct {
	mu       sync.Mutex
	w        io.Writer
	detached bool
}

func (o *output) write(message mcp.JSONRPCMessage) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.detached {
		return nil
	}

	_, err = fmt.Fprintf(o.w, "%s\n", data)
	return err
}

func (o *output) detach() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.detached = true
}

// HandleMessage answers a single JSON-RPC message. tools/list and tools/call
// are answered from the registry, everything else by the MCP server.
// Notifications yield nil.
func (pod *Pod) HandleMessage(ctx context.Context, message json.RawMessage) mcp.JSONRPCMessage {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return pod.server.HandleMessage(ctx, message)
	}

	return pod.route(ctx, env, message)
}

func (pod *Pod) route(ctx context.Context, env envelope, message json.RawMessage) mcp.JSONRPCMessage {
	if env.JSONRPC != mcp.JSONRPC_VERSION {
		return pod.server.HandleMessage(ctx, message)
	}

	if env.ID == nil {
		if env.Method == "notifications/cancelled" {
			pod.cancel(message)
		}

		return pod.server.HandleMessage(ctx, message)
	}

	switch env.Method {
	case "tools/list":
		return response(env.ID, mcp.ListToolsResult{Tools: pod.registry.ListDefinitions()})
	case "tools/call":
		return pod.call(ctx, env.ID, message)
	default:
		return pod.server.HandleMessage(ctx, message)
	}
}

// serve reads one message per line until the input fails. Tool calls are
// dispatched on their own goroutine; every other message is answered in
// arrival order.
func (pod *Pod) serve(ctx context.Context, in io.Reader, out *output) error {
	reader := bufio.NewReader(in)

	for {
		line, err := reader.ReadString('\n')

		if trimmed := strings.TrimSpace(line); trimmed != "" {
			pod.dispatch(ctx, json.RawMessage(trimmed), out)
		}

		if err != nil {
			return err
		}
	}
}

func (pod *Pod) dispatch(ctx context.Context, message json.RawMessage, out *output) {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		pod.send(out, errorResponse(nil, mcp.PARSE_ERROR, "Parse error", nil))
		return
	}

	if env.Method == "tools/call" && env.ID != nil {
		go pod.send(out, pod.route(ctx, env, message))
		return
	}

	pod.send(out, pod.route(ctx, env, message))
}

func (pod *Pod) send(out *output, message mcp.JSONRPCMessage) {
	if message == nil {
		return
	}

	if err := out.write(message); err != nil {
		pod.logger.Error("failed to write message", "err", err)
	}
}

// call executes a tools/call request. The request can be aborted by a
// notifications/cancelled naming its id.
func (pod *Pod) call(ctx context.Context, id mcp.RequestId, message json.RawMessage) mcp.JSONRPCMessage {
	var request mcp.CallToolRequest
	if err := json.Unmarshal(message, &request); err != nil {
		return errorResponse(id, mcp.INVALID_REQUEST, "Invalid call tool request", nil)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	key := requestKey(id)

	pod.mu.Lock()
	pod.inflight[key] = cancel
	pod.mu.Unlock()

	defer func() {
		pod.mu.Lock()
		delete(pod.inflight, key)
		pod.mu.Unlock()
	}()

	result, err := pod.registry.Execute(ctx, request)
	if err != nil {
		return failure(id, err)
	}

	return response(id, result)
}

// cancel aborts the in-flight call named by a notifications/cancelled message.
func (pod *Pod) cancel(message json.RawMessage) {
	var notification struct {
		Params struct {
			RequestID interface{} `json:"requestId"`
			Reason    string      `json:"reason"`
		} `json:"params"`
	}

	if err := json.Unmarshal(message, &notification); err != nil || notification.Params.RequestID == nil {
		return
	}

	reason := notification.Params.Reason
	if reason == "" {
		reason = "request cancelled by client"
	}

	pod.mu.Lock()
	cancel, ok := pod.inflight[requestKey(notification.Params.RequestID)]
	pod.mu.Unlock()

	if ok {
		cancel(errors.New(reason))
	}
}

func requestKey(id mcp.RequestId) string {
	return fmt.Sprintf("%T:%v", id, id)
}

func response(id mcp.RequestId, result interface{}) mcp.JSONRPCMessage {
	return mcp.JSONRPCResponse{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
		Result:  result,
	}
}

// failure maps a tool error onto a JSON-RPC error carrying its code, with the
// kind and tool name as data.
func failure(id mcp.RequestId, err error) mcp.JSONRPCMessage {
	var te *registry.ToolError
	if !errors.As(err, &te) {
		return errorResponse(id, mcp.INTERNAL_ERROR, err.Error(), nil)
	}

	data := map[string]any{
		"kind": string(te.Kind),
		"tool": te.Tool,
	}

	if te.Argument != "" {
		data["argument"] = te.Argument
	}

	return errorResponse(id, te.Code(), te.Error(), data)
}

func errorResponse(id mcp.RequestId, code int, message string, data any) mcp.JSONRPCMessage {
	response := mcp.JSONRPCError{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      id,
	}

	response.Error.Code = code
	response.Error.Message = message
	response.Error.Data = data

	return response
}
