package search

import (
	"context"
	"fmt"

	"github.com/helpdeskhq/insight/internal/llm"
	"github.com/helpdeskhq/insight/internal/vector"
)

// retrievalTopK bounds how many candidates a question pulls from the index.
const retrievalTopK = 100

// Retriever embeds a question and runs a similarity query against the
// vector index. Every question triggers a fresh embedding call; results are
// never cached.
type Retriever struct {
	provider llm.Provider
	index    vector.Index
}

func NewRetriever(provider llm.Provider, index vector.Index) *Retriever {
	return &Retriever{provider: provider, index: index}
}

func (r *Retriever) Retrieve(ctx context.Context, question string) ([]Candidate, error) {
	vectors, err := r.provider.Embed(ctx, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embed question: no vector returned")
	}
	matches, err := r.index.Query(ctx, vectors[0], retrievalTopK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	candidates := make([]Candidate, 0, len(matches))
	for _, match := range matches {
		candidates = append(candidates, Candidate{Metadata: match.Metadata, Score: match.Score})
	}
	return candidates, nil
}
