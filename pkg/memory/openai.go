package memory

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIEmbedder handles text to vector conversion using OpenAI's API
type OpenAIEmbedder struct {
	model      openai.EmbeddingModel
	dimensions int
	client     *openai.Client
}

// NewOpenAIEmbedder creates a new embedder using OpenAI's API. An empty key
// falls back to OPENAI_API_KEY. Extra options are passed to the client.
func NewOpenAIEmbedder(apiKey, model string, dimensions int, opts ...option.RequestOption) *OpenAIEmbedder {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	embeddingModel := openai.EmbeddingModel(model)
	if model == "" {
		embeddingModel = openai.EmbeddingModelTextEmbedding3Small
	}

	if dimensions <= 0 {
		dimensions = 256
	}

	return &OpenAIEmbedder{
		model:      embeddingModel,
		dimensions: dimensions,
		client:     openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
	}
}

func (embedder *OpenAIEmbedder) Dimensions() int {
	return embedder.dimensions
}

// Embed requests a single embedding, shortened to the configured dimensions.
func (embedder *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	response, err := embedder.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input:          openai.F[openai.EmbeddingNewParamsInputUnion](shared.UnionString(text)),
		Model:          openai.F(embedder.model),
		Dimensions:     openai.F(int64(embedder.dimensions)),
		EncodingFormat: openai.F(openai.EmbeddingNewParamsEncodingFormatFloat),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(response.Data) == 0 {
		return nil, errors.New("no embedding returned")
	}

	vector := make([]float32, len(response.Data[0].Embedding))
	for i, value := range response.Data[0].Embedding {
		vector[i] = float32(value)
	}

	return vector, nil
}
