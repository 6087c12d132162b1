// Package memory provides the memory tool implementation
package memory

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/theapemachine/mcp-pod/core"
	memstore "github.com/theapemachine/mcp-pod/pkg/memory"
	"github.com/theapemachine/mcp-pod/pkg/schema"
)

// Tool stores and recalls memories across a vector and a graph store.
// Either store may be nil, in which case the operations needing it report
// a tool error.
type Tool struct {
	vectorStore memstore.VectorStore
	graphStore  memstore.GraphStore
}

// New creates a new memory tool instance
func New(vectorStore memstore.VectorStore, graphStore memstore.GraphStore) *Tool {
	return &Tool{
		vectorStore: vectorStore,
		graphStore:  graphStore,
	}
}

// Definition returns the registrable tool.
func (tool *Tool) Definition() core.Tool {
	return core.Tool{
		Name:        "memory",
		Description: "Manage and search memory",
		Arguments: core.Arguments{
			"operation": schema.String(
				schema.Enum("add", "query"),
				schema.Description("The operation to perform (add, query)"),
			),
			"document": schema.String(
				schema.Optional(),
				schema.Description("A longer, connected piece of unstructured text to store"),
			),
			"question": schema.String(
				schema.Optional(),
				schema.Description("A question to search the vector memory with"),
			),
			"keywords": schema.Array(
				schema.String(),
				schema.Optional(),
				schema.Description("Keywords to search the graph memory with"),
			),
			"cypher": schema.String(
				schema.Optional(),
				schema.Description("A specific Cypher query to run against the graph memory"),
			),
			"limit": schema.Integer(
				schema.Default(5),
				schema.Description("Maximum number of vector memories to return"),
			),
		},
		Handler: tool.Handler,
	}
}

// request is the decoded argument set of one call.
type request struct {
	operation string
	document  string
	question  string
	keywords  []string
	cypher    string
	limit     int
}

func decode(args map[string]any) request {
	req := request{
		operation: args["operation"].(string),
		limit:     args["limit"].(int),
	}

	req.document, _ = args["document"].(string)
	req.question, _ = args["question"].(string)
	req.cypher, _ = args["cypher"].(string)

	if raw, ok := args["keywords"].([]any); ok {
		for _, keyword := range raw {
			req.keywords = append(req.keywords, keyword.(string))
		}
	}

	return req
}

// validate checks the combinations of arguments each operation needs
func (req request) validate() error {
	switch req.operation {
	case "add":
		if req.document == "" && req.cypher == "" {
			return errors.New("at least one of document or cypher is required")
		}
	case "query":
		if req.question == "" && len(req.keywords) == 0 && req.cypher == "" {
			return errors.New("at least one of question, keywords, or cypher is required")
		}

		if req.limit < 1 {
			return errors.New("limit must be at least 1")
		}
	}

	return nil
}

// Handler processes memory tool requests
func (tool *Tool) Handler(args map[string]any, tc core.Context) (*mcp.CallToolResult, error) {
	req := decode(args)

	if err := req.validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if req.operation == "add" {
		return tool.handleAddMemory(tc, req)
	}

	return tool.handleQueryMemory(tc, req)
}

// handleAddMemory processes memory addition requests
func (tool *Tool) handleAddMemory(tc core.Context, req request) (*mcp.CallToolResult, error) {
	failures := []string{}
	results := []string{}

	if req.document != "" {
		if err := tool.store(tc, req.document); err != nil {
			failures = append(failures, fmt.Sprintf("Failed to store in vector DB: %v", err))
		} else {
			results = append(results, "Memory added to vector store")
		}
	}

	if req.cypher != "" {
		if err := tool.execute(tc, req.cypher); err != nil {
			failures = append(failures, fmt.Sprintf("Failed to store in graph DB: %v", err))
		} else {
			results = append(results, "Memory added to graph store")
		}
	}

	return respond(tc, results, failures), nil
}

// handleQueryMemory processes memory query requests
func (tool *Tool) handleQueryMemory(tc core.Context, req request) (*mcp.CallToolResult, error) {
	failures := []string{}
	results := []string{}

	if req.question != "" {
		if tool.vectorStore == nil {
			failures = append(failures, "Failed to query vector DB: vector store is not configured")
		} else if vectorResults, err := tool.vectorStore.Search(tc, req.question, req.limit); err != nil {
			failures = append(failures, fmt.Sprintf("Failed to query vector DB: %v", err))
		} else {
			results = append(results, section("VECTOR_MEMORIES", "No vector memories found", vectorResults)...)
		}
	}

	if len(req.keywords) > 0 || req.cypher != "" {
		if tool.graphStore == nil {
			failures = append(failures, "Failed to query graph DB: graph store is not configured")
		} else if graphResults, err := tool.graphStore.Query(tc, req.keywords, req.cypher); err != nil {
			failures = append(failures, fmt.Sprintf("Failed to query graph DB: %v", err))
		} else {
			results = append(results, section("GRAPH_MEMORIES", "No graph memories found", graphResults)...)
		}
	}

	return respond(tc, results, failures), nil
}

func (tool *Tool) store(tc core.Context, document string) error {
	if tool.vectorStore == nil {
		return errors.New("vector store is not configured")
	}

	return tool.vectorStore.Store(tc, document, map[string]any{
		"source": "memory_tool",
		"call":   tc.CallID,
	})
}

func (tool *Tool) execute(tc core.Context, cypher string) error {
	if tool.graphStore == nil {
		return errors.New("graph store is not configured")
	}

	return tool.graphStore.Execute(tc, cypher, nil)
}

func section(tag, empty string, items []string) []string {
	if len(items) == 0 {
		return []string{empty}
	}

	lines := []string{"<" + tag + ">"}
	for _, item := range items {
		lines = append(lines, "\t"+item)
	}

	return append(lines, "</"+tag+">")
}

func respond(tc core.Context, results, failures []string) *mcp.CallToolResult {
	if len(failures) > 0 {
		tc.Logger.Warn("memory operation failed", "failures", len(failures))
		return mcp.NewToolResultError(strings.Join(failures, "\n"))
	}

	return mcp.NewToolResultText(strings.Join(results, "\n"))
}
