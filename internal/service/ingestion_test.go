package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func ingestionInput(rawText string) IngestInput {
	return IngestInput{
		RawText:      rawText,
		Title:        "Politica de cobranca",
		Source:       domain.SourceManual,
		Category:     domain.CategoryFinanceiro,
		DocumentType: domain.DocumentTypePDF,
		FileName:     "politica.pdf",
		FileSize:     2048,
		MimeType:     "application/pdf",
	}
}

func newIngestionService(embedder *MockEmbeddingClient, store *MockKnowledgeStore, jobs *MockIngestJobRepo) *IngestionService {
	return NewIngestionService(embedder, store, jobs, IngestionConfig{
		MaxChunkChars:       1000,
		Workers:             1, // deterministic ordering in tests
		EmbeddingDimensions: 4,
	}).WithUUIDGenerator(&sequenceUUIDGen{})
}

func TestIngestionService_Ingest_ThreeChunks(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	store := new(MockKnowledgeStore)
	jobs := new(MockIngestJobRepo)
	svc := newIngestionService(embedder, store, jobs)

	// ~2,400 characters split into 3 chunks of up to 1,000
	sentence := strings.Repeat("a", 798) + "."
	rawText := strings.Join([]string{sentence, sentence, sentence}, " ")

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 2, 3, 4}, nil)
	store.On("Add", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Ingest(context.Background(), ingestionInput(rawText))

	assert.NoError(t, err)
	assert.Len(t, result.IDs, 3)
	assert.Equal(t, 3, result.TotalChunks)
	assert.Empty(t, result.Failures)
	assert.True(t, result.Succeeded())

	// Each stored item carries its chunk index and the total
	indexes := make([]int, 0, 3)
	for _, call := range store.Calls {
		item := call.Arguments.Get(1).(*domain.KnowledgeItem)
		assert.Equal(t, 3, item.Metadata.TotalChunks)
		assert.Equal(t, "politica.pdf", item.Metadata.FileName)
		indexes = append(indexes, item.Metadata.ChunkIndex)
	}
	assert.ElementsMatch(t, []int{0, 1, 2}, indexes)
}

func TestIngestionService_Ingest_InvalidEnumsRejectedBeforeWork(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	store := new(MockKnowledgeStore)
	svc := newIngestionService(embedder, store, nil)

	input := ingestionInput(strings.Repeat("conteudo valido. ", 10))
	input.Source = domain.Source("invalid_source")

	result, err := svc.Ingest(context.Background(), input)

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrInvalidSource)
	embedder.AssertNotCalled(t, "GenerateEmbedding")
	store.AssertNotCalled(t, "Add")
}

func TestIngestionService_Ingest_ContentTooShort(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	store := new(MockKnowledgeStore)
	svc := newIngestionService(embedder, store, nil)

	result, err := svc.Ingest(context.Background(), ingestionInput("curto."))

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrContentTooShort)
	embedder.AssertNotCalled(t, "GenerateEmbedding")
}

func TestIngestionService_Ingest_PartialFailureIsIsolated(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	store := new(MockKnowledgeStore)
	jobs := new(MockIngestJobRepo)
	svc := newIngestionService(embedder, store, jobs)

	sentence := strings.Repeat("b", 798) + "."
	rawText := strings.Join([]string{sentence, sentence, sentence}, " ")

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 2, 3, 4}, nil)
	// Second chunk fails to store; its siblings keep going
	store.On("Add", mock.Anything, mock.MatchedBy(func(item *domain.KnowledgeItem) bool {
		return item.Metadata.ChunkIndex == 1
	})).Return(errors.New("connection reset"))
	store.On("Add", mock.Anything, mock.Anything).Return(nil)
	jobs.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Ingest(context.Background(), ingestionInput(rawText))

	assert.NoError(t, err)
	assert.Len(t, result.IDs, 2)
	assert.Len(t, result.Failures, 1)
	assert.Equal(t, 1, result.Failures[0].ChunkIndex)
	assert.False(t, result.Succeeded())

	// The failed chunk was queued for background retry
	jobs.AssertNumberOfCalls(t, "Create", 1)
	job := jobs.Calls[0].Arguments.Get(1).(*domain.IngestJob)
	assert.Equal(t, 1, job.ChunkIndex)
	assert.Equal(t, 3, job.TotalChunks)
	assert.Equal(t, domain.IngestJobStatusPending, job.Status)
}

func TestIngestionService_Ingest_DimensionMismatchAborts(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	store := new(MockKnowledgeStore)
	jobs := new(MockIngestJobRepo)
	svc := newIngestionService(embedder, store, jobs)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return([]float32{1, 2, 3}, nil) // 3 dims, expected 4

	result, err := svc.Ingest(context.Background(), ingestionInput(strings.Repeat("frase completa. ", 20)))

	assert.Nil(t, result)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	store.AssertNotCalled(t, "Add")
	jobs.AssertNotCalled(t, "Create")
}

func TestIngestionService_Ingest_EmbedFailureRecordedPerChunk(t *testing.T) {
	embedder := new(MockEmbeddingClient)
	store := new(MockKnowledgeStore)
	jobs := new(MockIngestJobRepo)
	svc := newIngestionService(embedder, store, jobs)

	embedder.On("GenerateEmbedding", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))
	jobs.On("Create", mock.Anything, mock.Anything).Return(nil)

	result, err := svc.Ingest(context.Background(), ingestionInput(strings.Repeat("frase completa. ", 20)))

	assert.NoError(t, err)
	assert.Empty(t, result.IDs)
	assert.NotEmpty(t, result.Failures)
	store.AssertNotCalled(t, "Add")
}
