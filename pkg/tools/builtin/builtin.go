// Package builtin provides the stock tools shipped with the mcp-pod server.
package builtin

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/mcp-pod/core"
	memstore "github.com/theapemachine/mcp-pod/pkg/memory"
	"github.com/theapemachine/mcp-pod/pkg/schema"
	"github.com/theapemachine/mcp-pod/pkg/tools/memory"
	"github.com/theapemachine/mcp-pod/pkg/tools/system"
)

// MaxSleep caps the sleep tool's duration, comfortably past the call timeout.
const MaxSleep = 120_000

// Options selects and configures builtin tools.
type Options struct {
	// Names lists the tools to build, in registration order.
	Names []string

	// Allowed is the command whitelist of the system tool.
	Allowed []string

	// Stores back the memory tool; either may be nil.
	VectorStore memstore.VectorStore
	GraphStore  memstore.GraphStore
}

// Tools returns the builtin tools named in opts.Names, in that order.
func Tools(opts Options) ([]core.Tool, error) {
	tools := make([]core.Tool, 0, len(opts.Names))

	for _, name := range opts.Names {
		switch name {
		case "echo":
			tools = append(tools, Echo())
		case "uuid":
			tools = append(tools, UUID())
		case "sleep":
			tools = append(tools, Sleep())
		case "system":
			if len(opts.Allowed) == 0 {
				return nil, fmt.Errorf("system tool requires at least one allowed command")
			}
			tools = append(tools, system.New(opts.Allowed))
		case "memory":
			tools = append(tools, memory.New(opts.VectorStore, opts.GraphStore).Definition())
		default:
			return nil, fmt.Errorf("unknown builtin tool %q", name)
		}
	}

	return tools, nil
}

// Echo returns its text argument.
func Echo() core.Tool {
	return core.Tool{
		Name:        "echo",
		Description: "Echo the given text back",
		Arguments: core.Arguments{
			"text":      schema.String(schema.Description("The text to echo")),
			"uppercase": schema.Boolean(schema.Default(false), schema.Description("Uppercase the text first")),
		},
		Handler: func(args map[string]any, tc core.Context) (*mcp.CallToolResult, error) {
			text := args["text"].(string)

			if args["uppercase"].(bool) {
				text = strings.ToUpper(text)
			}

			return mcp.NewToolResultText(text), nil
		},
	}
}

// UUID generates random identifiers.
func UUID() core.Tool {
	return core.Tool{
		Name:        "uuid",
		Description: "Generate one or more random UUIDs",
		Arguments: core.Arguments{
			"count": schema.Integer(schema.Default(1), schema.Description("How many UUIDs to generate (1-100)")),
		},
		Handler: func(args map[string]any, tc core.Context) (*mcp.CallToolResult, error) {
			count := args["count"].(int)

			if count < 1 || count > 100 {
				return mcp.NewToolResultError("count must be between 1 and 100"), nil
			}

			ids := make([]string, count)
			for i := range ids {
				ids[i] = uuid.NewString()
			}

			return mcp.NewToolResultText(strings.Join(ids, "\n")), nil
		},
	}
}

// Sleep waits for the given number of milliseconds, stopping early when the
// call is cancelled.
func Sleep() core.Tool {
	return core.Tool{
		Name:        "sleep",
		Description: "Wait for a number of milliseconds",
		Arguments: core.Arguments{
			"ms": schema.Integer(schema.Description("Milliseconds to wait")),
		},
		Handler: func(args map[string]any, tc core.Context) (*mcp.CallToolResult, error) {
			ms := args["ms"].(int)

			if ms < 0 || ms > MaxSleep {
				return mcp.NewToolResultError(fmt.Sprintf("ms must be between 0 and %d", MaxSleep)), nil
			}

			timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
			defer timer.Stop()

			select {
			case <-timer.C:
				return mcp.NewToolResultText(fmt.Sprintf("slept %dms", ms)), nil
			case <-tc.Done():
				tc.Logger.Debug("sleep interrupted", "ms", ms)
				return nil, fmt.Errorf("sleep interrupted: %w", tc.Err())
			}
		},
	}
}
