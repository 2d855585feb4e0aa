package classify

import (
	"context"
	"fmt"
	"math"

	"github.com/nahuelPanigo/document-extraction-llm/internal/core/ports"
)

const embedBatchSize = 32

// embedAll encodes documents in fixed-size batches, returning one
// float64 row per document in input order.
func embedAll(ctx context.Context, embedder ports.Embedder, documents []string) ([][]float64, error) {
	out := make([][]float64, 0, len(documents))
	for start := 0; start < len(documents); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(documents) {
			end = len(documents)
		}
		batch, err := embedder.Embed(ctx, documents[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch at %d: %w", start, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embed batch at %d: got %d rows, want %d", start, len(batch), end-start)
		}
		for _, row := range batch {
			converted := make([]float64, len(row))
			for i, value := range row {
				converted[i] = float64(value)
			}
			out = append(out, converted)
		}
	}
	return out, nil
}

func cosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
