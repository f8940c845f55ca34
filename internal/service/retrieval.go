package service

import (
	"context"
	"fmt"

	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/sabia-ai/sabia/internal/telemetry"
)

const (
	// DefaultMaxResults caps retrieved passages per query.
	DefaultMaxResults = 10
	// DefaultMatchThreshold is the minimum normalized similarity a passage
	// must clear to be considered relevant.
	DefaultMatchThreshold = 0.7
)

// RetrieveInput represents one retrieval request.
type RetrieveInput struct {
	Query      string
	Filters    SearchFilters
	MaxResults int
	Threshold  float64
}

// RetrievalService turns a query into ranked candidate passages.
type RetrievalService struct {
	embedding EmbeddingClient
	store     KnowledgeStoreInterface
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(embedding EmbeddingClient, store KnowledgeStoreInterface) *RetrievalService {
	return &RetrievalService{
		embedding: embedding,
		store:     store,
	}
}

// Retrieve embeds the query and searches the store. An empty result is
// success, not an error; embedder failures propagate distinctly.
func (s *RetrievalService) Retrieve(ctx context.Context, input RetrieveInput) ([]*domain.SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		Source:    string(input.Filters.Source),
		Category:  string(input.Filters.Category),
		Operation: "retrieve",
	})
	defer span.End()

	if input.Query == "" {
		return nil, domain.ErrEmptyQuery
	}

	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	threshold := input.Threshold
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, input.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.store.Search(ctx, embedding, input.Filters, threshold, maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge store: %w", err)
	}

	return results, nil
}
