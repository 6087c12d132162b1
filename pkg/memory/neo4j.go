package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jConfig locates the Neo4j database.
type Neo4jConfig struct {
	URL      string
	Username string
	Password string
	Database string
}

// keywordQuery finds relationships touching nodes whose name contains $term.
const keywordQuery = `
MATCH p=(a)-[r]->(b)
WHERE a.name CONTAINS $term OR b.name CONTAINS $term
RETURN a.name as source, labels(a)[0] as sourceLabel,
	type(r) as relationship,
	b.name as target, labels(b)[0] as targetLabel
LIMIT 20
`

// Neo4jStore implements the GraphStore interface for Neo4j
type Neo4jStore struct {
	client sdk.DriverWithContext
	dbName string
}

// NewNeo4jStore creates a new Neo4j graph store and verifies connectivity
func NewNeo4jStore(cfg Neo4jConfig) (*Neo4jStore, error) {
	dbName := cfg.Database
	if dbName == "" {
		dbName = "neo4j"
	}

	driver, err := sdk.NewDriverWithContext(
		cfg.URL,
		sdk.BasicAuth(cfg.Username, cfg.Password, ""),
	)

	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err = driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	return &Neo4jStore{
		client: driver,
		dbName: dbName,
	}, nil
}

// Execute runs a Cypher query with parameters
func (store *Neo4jStore) Execute(ctx context.Context, query string, params map[string]any) error {
	session := store.client.NewSession(ctx, sdk.SessionConfig{
		DatabaseName: store.dbName,
		AccessMode:   sdk.AccessModeWrite,
	})
	defer session.Close(ctx)

	if _, err := session.Run(ctx, query, params); err != nil {
		return fmt.Errorf("failed to execute Cypher query: %w", err)
	}

	return nil
}

// Query searches the graph database with keywords or a custom Cypher query
func (store *Neo4jStore) Query(ctx context.Context, keywords []string, cypher string) ([]string, error) {
	var results []string

	session := store.client.NewSession(ctx, sdk.SessionConfig{
		DatabaseName: store.dbName,
		AccessMode:   sdk.AccessModeRead,
	})
	defer session.Close(ctx)

	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}

		result, err := session.Run(ctx, keywordQuery, map[string]any{"term": keyword})
		if err != nil {
			return results, fmt.Errorf("failed to query with keyword '%s': %w", keyword, err)
		}

		var found bool
		for result.Next(ctx) {
			found = true
			record := result.Record().AsMap()

			results = append(results, fmt.Sprintf("%v:%v -[%v]-> %v:%v",
				record["sourceLabel"],
				record["source"],
				record["relationship"],
				record["targetLabel"],
				record["target"],
			))
		}

		if err := result.Err(); err != nil {
			return results, fmt.Errorf("error processing keyword results: %w", err)
		}

		if !found {
			results = append(results, fmt.Sprintf("No relationships found for: %s", keyword))
		}
	}

	if cypher != "" {
		result, err := session.Run(ctx, cypher, nil)
		if err != nil {
			return results, fmt.Errorf("failed to execute custom Cypher query: %w", err)
		}

		for result.Next(ctx) {
			results = append(results, fmt.Sprintf("%v", result.Record().AsMap()))
		}

		if err := result.Err(); err != nil {
			return results, fmt.Errorf("error processing Cypher query results: %w", err)
		}
	}

	return results, nil
}

// Close releases all resources held by the driver
func (store *Neo4jStore) Close(ctx context.Context) error {
	return store.client.Close(ctx)
}
