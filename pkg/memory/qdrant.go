package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	sdk "github.com/qdrant/go-client/qdrant"
)

// QdrantConfig locates the Qdrant instance and collection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// QdrantStore implements the VectorStore interface for Qdrant
type QdrantStore struct {
	client     *sdk.Client
	collection string
	embedder   Embedder
}

// NewQdrantStore creates a new vector store using Qdrant, creating the
// collection if needed.
func NewQdrantStore(cfg QdrantConfig, embedder Embedder) (*QdrantStore, error) {
	client, err := sdk.NewClient(&sdk.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	store := &QdrantStore{
		client:     client,
		collection: cfg.Collection,
		embedder:   embedder,
	}

	if err := store.ensureCollection(); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return store, nil
}

// Store saves a text document with metadata to the vector store
func (store *QdrantStore) Store(ctx context.Context, text string, metadata map[string]any) error {
	vector, err := store.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed document: %w", err)
	}

	payload := map[string]any{"content": text}
	for key, value := range metadata {
		payload[key] = fmt.Sprint(value)
	}

	waitUpsert := true

	_, err = store.client.Upsert(ctx, &sdk.UpsertPoints{
		CollectionName: store.collection,
		Wait:           &waitUpsert,
		Points: []*sdk.PointStruct{
			{
				Id:      sdk.NewID(uuid.NewString()),
				Vectors: sdk.NewVectors(vector...),
				Payload: sdk.NewValueMap(payload),
			},
		},
	})

	if err != nil {
		return fmt.Errorf("failed to upsert point: %w", err)
	}

	return nil
}

// Search performs a similarity search for the texts closest to query
func (store *QdrantStore) Search(ctx context.Context, query string, limit int) ([]string, error) {
	vector, err := store.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	top := uint64(limit)

	searchedPoints, err := store.client.Query(ctx, &sdk.QueryPoints{
		CollectionName: store.collection,
		Query:          sdk.NewQuery(vector...),
		Limit:          &top,
		WithPayload:    sdk.NewWithPayloadInclude("content"),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var results []string

	for _, point := range searchedPoints {
		if content, ok := point.Payload["content"]; ok {
			if contentStr := content.GetStringValue(); contentStr != "" {
				results = append(results, contentStr)
			}
		}
	}

	return results, nil
}

// Close releases the client connection
func (store *QdrantStore) Close() error {
	return store.client.Close()
}

// ensureCollection creates the collection if it doesn't exist
func (store *QdrantStore) ensureCollection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collections, err := store.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	for _, name := range collections {
		if name == store.collection {
			return nil
		}
	}

	err = store.client.CreateCollection(ctx, &sdk.CreateCollection{
		CollectionName: store.collection,
		VectorsConfig: sdk.NewVectorsConfig(&sdk.VectorParams{
			Size:     uint64(store.embedder.Dimensions()),
			Distance: sdk.Distance_Cosine,
		}),
	})

	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}
