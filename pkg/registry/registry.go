// Package registry owns the tools a pod exposes and runs their calls under a
// fixed timeout and the caller's cancellation signal.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/mcp-pod/core"
	"github.com/theapemachine/mcp-pod/pkg/schema"
)

// Timeout bounds every tool call, measured from the end of argument validation.
const Timeout = 30 * time.Second

// Registry maps tool names to tools, keeping registration order.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]core.Tool
	order   []string
	logger  *log.Logger
	timeout time.Duration
}

// New creates an empty registry. A nil logger falls back to the default logger.
func New(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}

	return &Registry{
		tools:   make(map[string]core.Tool),
		logger:  logger,
		timeout: Timeout,
	}
}

// Register adds a tool. The first registration of a name wins; later ones
// fail with KindDuplicateTool.
func (r *Registry) Register(tool core.Tool) error {
	if tool.Name == "" {
		return invalidTool(tool.Name, "name is empty")
	}

	if tool.Handler == nil {
		return invalidTool(tool.Name, "handler is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return duplicateTool(tool.Name)
	}

	args := make(core.Arguments, len(tool.Arguments))
	for key, s := range tool.Arguments {
		args[key] = s
	}
	tool.Arguments = args

	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)

	r.logger.Info("tool registered", "tool", tool.Name)
	return nil
}

// Has reports whether a tool named name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []core.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]core.Tool, 0, len(r.order))

	for _, name := range r.order {
		tools = append(tools, r.tools[name])
	}

	return tools
}

// ListDefinitions derives the protocol descriptor of every tool, in
// registration order. Descriptors are rebuilt from the schemas on each call.
func (r *Registry) ListDefinitions() []mcp.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	definitions := make([]mcp.Tool, 0, len(r.order))

	for _, name := range r.order {
		definitions = append(definitions, Definition(r.tools[name]))
	}

	return definitions
}

// Definition builds the MCP descriptor of a single tool.
func Definition(tool core.Tool) mcp.Tool {
	properties := make(map[string]interface{}, len(tool.Arguments))

	for key, s := range tool.Arguments {
		properties[key] = schema.Describe(s)
	}

	definition := mcp.NewTool(tool.Name, mcp.WithDescription(tool.Description))
	definition.InputSchema.Type = "object"
	definition.InputSchema.Properties = properties

	return definition
}

type outcome struct {
	result *mcp.CallToolResult
	err    error
}

// Execute validates the request's arguments and runs the tool handler,
// settling on whichever comes first: the handler's return, cancellation of
// ctx, or Timeout. A handler that loses keeps running in the background and
// its result is discarded. Simultaneous settlement is resolved by select,
// which carries no priority between the branches.
//
// Every returned error is a *ToolError.
func (r *Registry) Execute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := request.Params.Name

	tool, ok := r.Lookup(name)
	if !ok {
		return nil, NotFound(name)
	}

	if ctx.Err() != nil {
		return nil, abortedBeforeStart(name, context.Cause(ctx))
	}

	args, err := validate(tool, request.Params.Arguments)
	if err != nil {
		return nil, err
	}

	callID := uuid.NewString()
	tc := core.Context{
		Context: ctx,
		Logger:  r.logger.With("tool", name, "call", callID),
		CallID:  callID,
	}

	done := make(chan outcome, 1)
	go run(tool.Handler, args, tc, done)

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, normalize(name, out.err, tc.Logger)
		}

		if out.result == nil {
			return nil, normalize(name, errors.New("handler returned no result"), tc.Logger)
		}

		return out.result, nil
	case <-ctx.Done():
		reason := context.Cause(ctx)
		tc.Logger.Warn("tool execution aborted", "reason", reason)
		return nil, aborted(name, reason)
	case <-timer.C:
		tc.Logger.Warn(fmt.Sprintf("tool execution timed out after %s", r.timeout))
		return nil, timedOut(name)
	}
}

// validate checks every declared argument in name order, stopping at the
// first failure.
func validate(tool core.Tool, raw map[string]interface{}) (map[string]any, error) {
	args := make(map[string]any, len(tool.Arguments))

	for _, key := range schema.Keys(tool.Arguments) {
		value, err := schema.Field(raw, key, tool.Arguments[key])
		if err != nil {
			return nil, invalidArgument(tool.Name, key, err)
		}

		args[key] = value
	}

	return args, nil
}

// run invokes the handler and reports exactly once on done, which must be
// buffered so a handler finishing after the call settled does not block.
func run(handler core.Handler, args map[string]any, tc core.Context, done chan<- outcome) {
	defer func() {
		if p := recover(); p != nil {
			done <- outcome{err: fmt.Errorf("handler panicked: %v", p)}
		}
	}()

	result, err := handler(args, tc)
	done <- outcome{result: result, err: err}
}

func normalize(name string, err error, logger *log.Logger) error {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}

	logger.Error("tool execution error", "err", err)
	return handlerFailure(name, err)
}
