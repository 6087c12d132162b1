package memory

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder embeds text by hashing its lowercased words into buckets and
// normalizing the counts. It needs no model or network access, so related
// texts only score close when they share words.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns an embedder producing vectors of the given size.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 256
	}

	return &HashEmbedder{dimensions: dimensions}
}

func (embedder *HashEmbedder) Dimensions() int {
	return embedder.dimensions
}

func (embedder *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, embedder.dimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, word := range words {
		h := fnv.New32a()
		h.Write([]byte(word))
		vector[h.Sum32()%uint32(embedder.dimensions)]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v * v)
	}

	if norm == 0 {
		return vector, nil
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}

	return vector, nil
}
