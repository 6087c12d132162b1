// Package core holds the types shared by the registry, the pod and the tools.
package core

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/mcp-pod/pkg/schema"
)

// Arguments maps argument names to the schema validating them.
type Arguments map[string]schema.Schema

// Context is handed to a handler for the duration of a single call.
type Context struct {
	// Context carries the caller's cancellation signal.
	context.Context

	// Logger is scoped to the tool name and call id.
	Logger *log.Logger

	// CallID identifies the call in logs.
	CallID string
}

// Handler executes a tool with validated arguments.
type Handler func(args map[string]any, tc Context) (*mcp.CallToolResult, error)

// Tool is a named, schema-described operation.
type Tool struct {
	Name        string
	Description string
	Arguments   Arguments
	Handler     Handler
}
