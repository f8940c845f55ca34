package service

import (
	"context"
)

// EmbeddingClient defines the interface for generating embeddings. The same
// client is used for document chunks at ingestion and queries at retrieval
// time, so both live in one comparable vector space.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// CompletionClient defines the interface for answer synthesis.
type CompletionClient interface {
	GenerateCompletion(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
