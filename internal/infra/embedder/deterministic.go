package embedder

import (
	"context"
	"hash/fnv"

	"github.com/moe-gov/beacon/internal/domain/retrieval"
)

// DeterministicEmbedder avoids network calls by hashing text into a
// unit-norm vector. Used in tests and local/offline development so C7's
// build pipeline can run without an embeddings provider configured.
type DeterministicEmbedder struct {
	dim int
}

// NewDeterministicEmbedder constructs the embedder.
func NewDeterministicEmbedder(dim int) *DeterministicEmbedder {
	if dim <= 0 {
		dim = 1024
	}
	return &DeterministicEmbedder{dim: dim}
}

// Embed converts each text into a deterministic pseudo-random unit vector.
func (e *DeterministicEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector := make([]float32, e.dim)
		hash := fnv.New64a()
		_, _ = hash.Write([]byte(text))
		seed := hash.Sum64()
		for j := 0; j < e.dim; j++ {
			seed = seed*1099511628211 + 1469598103934665603
			vector[j] = float32(seed%997)/997.0 - 0.5
		}
		vectors[i] = normalize(vector)
	}
	return vectors, nil
}

var _ retrieval.Embedder = (*DeterministicEmbedder)(nil)
