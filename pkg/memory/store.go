// Package memory provides the vector and graph stores backing the memory tool.
package memory

import (
	"context"
)

// VectorStore defines the interface for vector database operations
type VectorStore interface {
	// Store saves a text document with metadata to the vector store
	Store(ctx context.Context, text string, metadata map[string]any) error

	// Search performs a similarity search and returns the closest texts
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// GraphStore defines the interface for graph database operations
type GraphStore interface {
	// Execute runs a Cypher query with parameters
	Execute(ctx context.Context, query string, params map[string]any) error

	// Query searches the graph database with keywords or a custom Cypher query
	Query(ctx context.Context, keywords []string, cypher string) ([]string, error)
}

// Embedder turns text into a fixed-size vector.
type Embedder interface {
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
}
