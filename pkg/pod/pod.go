// Package pod wires a tool registry to an MCP server and manages its stdio
// transport lifecycle.
package pod

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/theapemachine/mcp-pod/core"
	"github.com/theapemachine/mcp-pod/pkg/registry"
)

var (
	// ErrClosed is returned once Shutdown has been called.
	ErrClosed = errors.New("pod is shut down")

	// ErrConnected is returned when Connect is called on a pod already serving.
	ErrConnected = errors.New("pod is already connected")
)

// Options configures a new Pod.
type Options struct {
	Name    string
	Version string
	Tools   []core.Tool
	Logger  *log.Logger
}

// Pod holds one registry and exposes it through an MCP server. The registry
// answers tools/list and tools/call; the MCP server handles the rest of the
// protocol (initialize, ping, notifications).
type Pod struct {
	server   *server.MCPServer
	registry *registry.Registry
	logger   *log.Logger

	mu        sync.Mutex
	closed    bool
	transport *io.PipeReader
	done      chan struct{}
	out       *output
	inflight  map[string]context.CancelCauseFunc
}

// New creates a pod and registers the given tools, failing on the first
// registration error.
func New(opts Options) (*Pod, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	logger.Info("MCP pod initializing", "name", opts.Name, "version", opts.Version)

	pod := &Pod{
		server: server.NewMCPServer(
			opts.Name,
			opts.Version,
			server.WithResourceCapabilities(false, false),
			server.WithPromptCapabilities(false),
			server.WithLogging(),
		),
		registry: registry.New(logger),
		logger:   logger,
		inflight: make(map[string]context.CancelCauseFunc),
	}

	for _, tool := range opts.Tools {
		if err := pod.RegisterTool(tool); err != nil {
			return nil, err
		}
	}

	logger.Info("MCP pod initialized", "tools", len(opts.Tools))
	return pod, nil
}

// Server returns the underlying MCP server.
func (pod *Pod) Server() *server.MCPServer {
	return pod.server
}

// Registry returns the pod's tool registry.
func (pod *Pod) Registry() *registry.Registry {
	return pod.registry
}

// RegisterTool adds a tool, also after the pod has started serving. A
// connected client is told the tool list changed.
func (pod *Pod) RegisterTool(tool core.Tool) error {
	if err := pod.registry.Register(tool); err != nil {
		return err
	}

	pod.mu.Lock()
	out := pod.out
	pod.mu.Unlock()

	if out != nil {
		pod.send(out, mcp.JSONRPCNotification{
			JSONRPC: mcp.JSONRPC_VERSION,
			Notification: mcp.Notification{
				Method: "notifications/tools/list_changed",
			},
		})
	}

	return nil
}

// ListTools returns the descriptors of every registered tool in registration order.
func (pod *Pod) ListTools() []mcp.Tool {
	return pod.registry.ListDefinitions()
}

// CallTool runs a tool by name without a protocol client. Unknown names fail
// before any request is built.
//
// ctx is the call's cancellation signal and is used as given. A ctx that is
// already done fails with KindAbortedBeforeStart; pass
// context.WithoutCancel(ctx) to run a call that its caller cannot abort.
func (pod *Pod) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	if !pod.registry.Has(name) {
		return nil, registry.NotFound(name)
	}

	request := mcp.CallToolRequest{}
	request.Method = "tools/call"
	request.Params.Name = name
	request.Params.Arguments = args

	return pod.registry.Execute(ctx, request)
}

// Connect serves MCP over the given stdio streams until the input ends, ctx
// is done or Shutdown closes the transport. All three return nil.
//
// Each tools/call runs on its own goroutine, so a slow tool holds up neither
// other requests nor shutdown.
func (pod *Pod) Connect(ctx context.Context, in io.Reader, out io.Writer) error {
	pod.mu.Lock()

	if pod.closed {
		pod.mu.Unlock()
		return ErrClosed
	}

	if pod.done != nil {
		pod.mu.Unlock()
		return ErrConnected
	}

	pr, pw := io.Pipe()
	done := make(chan struct{})
	writer := &output{w: out}

	pod.transport = pr
	pod.done = done
	pod.out = writer

	pod.mu.Unlock()

	defer close(done)
	defer pod.detach(writer)

	go func() {
		_, err := io.Copy(pw, in)
		pw.CloseWithError(err)
	}()

	go func() {
		select {
		case <-ctx.Done():
			pr.Close()
		case <-done:
		}
	}()

	pod.logger.Info("MCP server running on stdio")

	err := pod.serve(ctx, pr, writer)

	switch {
	case pod.isClosed(), ctx.Err() != nil, errors.Is(err, io.ErrClosedPipe), errors.Is(err, io.EOF):
		pod.logger.Info("MCP transport closed")
		return nil
	default:
		pod.logger.Error("connection error", "err", err)
		return fmt.Errorf("connection error: %w", err)
	}
}

// Shutdown stops accepting transport requests, closes the transport and
// waits for Connect to return or ctx to end. In-flight calls are left to
// settle on their own and their responses are dropped. Calling Shutdown more
// than once is safe.
func (pod *Pod) Shutdown(ctx context.Context) error {
	pod.mu.Lock()
	first := !pod.closed
	pod.closed = true
	transport, done := pod.transport, pod.done
	pod.mu.Unlock()

	if first {
		pod.logger.Info("MCP pod shutting down")
	}

	if transport == nil {
		return nil
	}

	transport.Close()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (pod *Pod) detach(writer *output) {
	writer.detach()

	pod.mu.Lock()
	pod.out = nil
	pod.mu.Unlock()
}

func (pod *Pod) isClosed() bool {
	pod.mu.Lock()
	defer pod.mu.Unlock()

	return pod.closed
}
