package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/sabia-ai/sabia/internal/pagination"
	"github.com/sabia-ai/sabia/internal/telemetry"
)

// SearchFilters narrows search and listing by provenance and topic.
// Empty fields match everything.
type SearchFilters struct {
	Source   domain.Source
	Category domain.Category
}

// KnowledgeStats aggregates item counts across the store.
type KnowledgeStats struct {
	Total      int64
	BySource   map[domain.Source]int64
	ByCategory map[domain.Category]int64
}

// KnowledgeStoreInterface defines the repository interface for knowledge
// persistence. The store is append-only: items are never updated or deleted.
type KnowledgeStoreInterface interface {
	Add(ctx context.Context, item *domain.KnowledgeItem) error
	Search(ctx context.Context, embedding []float32, filters SearchFilters, threshold float64, limit int) ([]*domain.SearchResult, error)
	List(ctx context.Context, filters SearchFilters, page pagination.Page) (*pagination.PageResult[*domain.KnowledgeItem], error)
	Stats(ctx context.Context) (*KnowledgeStats, error)
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService handles read operations over the knowledge store.
type KnowledgeService struct {
	store KnowledgeStoreInterface
}

// NewKnowledgeService creates a new KnowledgeService instance
func NewKnowledgeService(store KnowledgeStoreInterface) *KnowledgeService {
	return &KnowledgeService{store: store}
}

type ListKnowledgeInput struct {
	Page     int
	Limit    int
	Source   string
	Category string
}

// List returns one page of knowledge items, newest first. Pages are
// 1-indexed; paging past the end returns an empty page, not an error.
func (s *KnowledgeService) List(ctx context.Context, input ListKnowledgeInput) (*pagination.PageResult[*domain.KnowledgeItem], error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.List", telemetry.SpanAttributes{
		Operation: "list",
		Source:    input.Source,
		Category:  input.Category,
	})
	defer span.End()

	filters, err := parseFilters(input.Source, input.Category)
	if err != nil {
		return nil, err
	}

	page := pagination.Page{Number: input.Page, Size: input.Limit}.Normalize()
	return s.store.List(ctx, filters, page)
}

// Stats returns aggregate counts per source and per category.
func (s *KnowledgeService) Stats(ctx context.Context) (*KnowledgeStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Stats", telemetry.SpanAttributes{
		Operation: "stats",
	})
	defer span.End()

	return s.store.Stats(ctx)
}

// GetByID retrieves a knowledge item by ID.
func (s *KnowledgeService) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.GetByID", telemetry.SpanAttributes{
		ItemID:    id,
		Operation: "get",
	})
	defer span.End()

	return s.store.GetByID(ctx, id)
}

func parseFilters(source, category string) (SearchFilters, error) {
	var filters SearchFilters
	if source != "" {
		s := domain.Source(source)
		if !domain.IsValidSource(s) {
			return filters, domain.ErrInvalidSource
		}
		filters.Source = s
	}
	if category != "" {
		c := domain.Category(category)
		if !domain.IsValidCategory(c) {
			return filters, domain.ErrInvalidCategory
		}
		filters.Category = c
	}
	return filters, nil
}
