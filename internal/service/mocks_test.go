package service

import (
	"context"
	"fmt"

	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/sabia-ai/sabia/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockEmbeddingClient mocks the embedding model client
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockKnowledgeStore mocks the knowledge store repository
type MockKnowledgeStore struct {
	mock.Mock
}

func (m *MockKnowledgeStore) Add(ctx context.Context, item *domain.KnowledgeItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockKnowledgeStore) Search(ctx context.Context, embedding []float32, filters SearchFilters, threshold float64, limit int) ([]*domain.SearchResult, error) {
	args := m.Called(ctx, embedding, filters, threshold, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SearchResult), args.Error(1)
}

func (m *MockKnowledgeStore) List(ctx context.Context, filters SearchFilters, page pagination.Page) (*pagination.PageResult[*domain.KnowledgeItem], error) {
	args := m.Called(ctx, filters, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.KnowledgeItem]), args.Error(1)
}

func (m *MockKnowledgeStore) Stats(ctx context.Context) (*KnowledgeStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*KnowledgeStats), args.Error(1)
}

func (m *MockKnowledgeStore) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

// MockIngestJobRepo mocks the failed-chunk retry queue
type MockIngestJobRepo struct {
	mock.Mock
}

func (m *MockIngestJobRepo) Create(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

// sequenceUUIDGen yields deterministic IDs for tests
type sequenceUUIDGen struct {
	n int
}

func (g *sequenceUUIDGen) NewString() string {
	g.n++
	return fmt.Sprintf("uuid-%d", g.n)
}
