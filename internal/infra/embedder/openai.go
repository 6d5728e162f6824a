// Package embedder provides C6's two Embedder implementations: an
// OpenAI-compatible network embedder and a deterministic, network-free one
// for tests and local development.
package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/moe-gov/beacon/internal/domain/retrieval"
	"github.com/moe-gov/beacon/internal/infra/llm"
)

var _ retrieval.Embedder = (*OpenAIEmbedder)(nil)

// maxBatchTokens keeps each embeddings call well below the provider's
// request-size cap.
const maxBatchTokens = 200_000

// OpenAIEmbedder calls an OpenAI-compatible embeddings API, batching up to
// 32 texts per request and normalizing every result to unit length (spec
// §4.6: "D=1024, batch<=32, unit-norm").
type OpenAIEmbedder struct {
	client    *llm.Client
	model     string
	dimension int
	batchSize int
	logger    *slog.Logger
}

// NewOpenAIEmbedder constructs C6's network embedder.
func NewOpenAIEmbedder(client *llm.Client, model string, dimension, batchSize int, logger *slog.Logger) *OpenAIEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 || batchSize > 32 {
		batchSize = 32
	}
	return &OpenAIEmbedder{
		client:    client,
		model:     strings.TrimSpace(model),
		dimension: dimension,
		batchSize: batchSize,
		logger:    logger.With("component", "retrieval.embedder.openai"),
	}
}

// Embed implements retrieval.Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	for start := 0; start < len(texts); {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, batchTokens := capByTokenBudget(texts[start:end], maxBatchTokens)
		if len(batch) == 0 {
			return nil, fmt.Errorf("text too large for embedding request: estimated tokens=%d", batchTokens)
		}
		// capByTokenBudget may return fewer texts than the requested
		// slice when an oversized chunk forces an early cutoff; advance
		// by what was actually embedded so no text is silently dropped
		// from the 1:1 texts[i] <-> out[i] correspondence callers rely on.
		start += len(batch)

		resp, err := e.client.CreateEmbedding(ctx, llm.EmbeddingRequest{Model: e.model, Input: batch})
		if err != nil {
			return nil, fmt.Errorf("create embedding: %w", err)
		}
		if len(resp.Data) != len(batch) {
			e.logger.Warn("embedding result count mismatch", "expected", len(batch), "got", len(resp.Data))
		}
		for _, item := range resp.Data {
			vec := make([]float32, len(item.Embedding))
			copy(vec, item.Embedding)
			out = append(out, normalize(vec))
		}
	}
	return out, nil
}

// capByTokenBudget returns the longest prefix of texts that fits within
// budget tokens. The batch size is already bounded by e.batchSize, so this
// only protects against oversized individual texts within a batch.
func capByTokenBudget(texts []string, budget int) ([]string, int) {
	var batch []string
	var total int
	for _, text := range texts {
		tokens := estimateTokens(text)
		if total+tokens > budget && len(batch) > 0 {
			break
		}
		batch = append(batch, text)
		total += tokens
	}
	return batch, total
}

// estimateTokens provides a rough, upper-biased token count without an
// external tokenizer dependency for this batching guard.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	runes := utf8.RuneCountInString(text)
	words := len(strings.Fields(text))
	byRunes := (runes + 1) / 2
	if byRunes < words {
		return words
	}
	return byRunes
}

func normalize(vec []float32) []float32 {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
