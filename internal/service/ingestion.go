package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/sabia-ai/sabia/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// DefaultIngestWorkers caps concurrent embedding calls within one ingestion.
const DefaultIngestWorkers = 4

// IngestJobRepositoryInterface persists failed chunks for background retry.
type IngestJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

// IngestionConfig controls document intake.
type IngestionConfig struct {
	MaxChunkChars       int
	Workers             int
	EmbeddingDimensions int
}

// IngestionService drives document intake: chunk once, then embed and store
// each chunk independently.
type IngestionService struct {
	embedding EmbeddingClient
	store     KnowledgeStoreInterface
	jobRepo   IngestJobRepositoryInterface
	uuidGen   UUIDGenerator
	cfg       IngestionConfig
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(
	embedding EmbeddingClient,
	store KnowledgeStoreInterface,
	jobRepo IngestJobRepositoryInterface,
	cfg IngestionConfig,
) *IngestionService {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = DefaultMaxChunkChars
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultIngestWorkers
	}
	return &IngestionService{
		embedding: embedding,
		store:     store,
		jobRepo:   jobRepo,
		uuidGen:   &DefaultUUIDGenerator{},
		cfg:       cfg,
	}
}

// WithUUIDGenerator overrides the UUID generator (for testing).
func (s *IngestionService) WithUUIDGenerator(gen UUIDGenerator) *IngestionService {
	s.uuidGen = gen
	return s
}

// IngestInput represents one document to ingest.
type IngestInput struct {
	RawText      string
	Title        string
	Source       domain.Source
	Category     domain.Category
	DocumentType domain.DocumentType
	FileURL      string
	FileName     string
	FileSize     int64
	MimeType     string
}

// ChunkFailure records one chunk that could not be embedded or stored.
type ChunkFailure struct {
	ChunkIndex int
	Reason     string
}

// IngestResult reports the outcome of one ingestion. Partial success is
// possible: some chunk IDs created, some failures recorded.
type IngestResult struct {
	IDs         []string
	TotalChunks int
	Failures    []ChunkFailure
}

// Succeeded reports whether every chunk was stored.
func (r *IngestResult) Succeeded() bool {
	return len(r.Failures) == 0
}

// Ingest validates the document, chunks it, then embeds and stores each
// chunk through a bounded worker pool. One chunk failing does not abort its
// siblings; failed chunks are queued for background retry. A dimension
// mismatch is a configuration error and aborts the whole operation.
func (s *IngestionService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Ingest", telemetry.SpanAttributes{
		Source:    string(input.Source),
		Category:  string(input.Category),
		Operation: "ingest",
	})
	defer span.End()

	if err := s.validate(input); err != nil {
		return nil, err
	}

	chunks := Chunk(input.RawText, s.cfg.MaxChunkChars)
	if len(chunks) == 0 {
		return nil, domain.ErrContentTooShort
	}

	ids := make([]string, len(chunks))
	var mu sync.Mutex
	var failures []ChunkFailure

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for i, chunk := range chunks {
		g.Go(func() error {
			err := s.ingestChunk(gctx, input, chunk, i, len(chunks), ids)
			if err == nil {
				return nil
			}
			// Only a dimension mismatch cancels the sibling chunks.
			if errors.Is(err, domain.ErrDimensionMismatch) {
				return err
			}

			mu.Lock()
			failures = append(failures, ChunkFailure{ChunkIndex: i, Reason: err.Error()})
			mu.Unlock()

			s.queueRetry(gctx, input, chunk, i, len(chunks), err)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, err
	}

	result := &IngestResult{TotalChunks: len(chunks)}
	for _, id := range ids {
		if id != "" {
			result.IDs = append(result.IDs, id)
		}
	}
	sortFailures(failures)
	result.Failures = failures
	return result, nil
}

func (s *IngestionService) validate(input IngestInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "title is required", domain.ErrMissingRequiredField)
	}
	if !domain.IsValidSource(input.Source) {
		return domain.ErrInvalidSource
	}
	if !domain.IsValidCategory(input.Category) {
		return domain.ErrInvalidCategory
	}
	if !domain.IsValidDocumentType(input.DocumentType) {
		return domain.ErrInvalidDocumentType
	}
	if len([]rune(strings.TrimSpace(input.RawText))) < domain.MinContentLength {
		return domain.ErrContentTooShort
	}
	return nil
}

func (s *IngestionService) ingestChunk(ctx context.Context, input IngestInput, chunk string, index, total int, ids []string) error {
	embedding, err := s.embedding.GenerateEmbedding(ctx, chunk)
	if err != nil {
		return fmt.Errorf("failed to embed chunk %d: %w", index, err)
	}

	if s.cfg.EmbeddingDimensions > 0 && len(embedding) != s.cfg.EmbeddingDimensions {
		return domain.ErrDimensionMismatch
	}

	item := &domain.KnowledgeItem{
		ID:           s.uuidGen.NewString(),
		Title:        input.Title,
		Content:      chunk,
		Source:       input.Source,
		Category:     input.Category,
		DocumentType: input.DocumentType,
		Embedding:    embedding,
		FileURL:      input.FileURL,
		Metadata: domain.Metadata{
			ChunkIndex:  index,
			TotalChunks: total,
			FileName:    input.FileName,
			FileSize:    input.FileSize,
			MimeType:    input.MimeType,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateKnowledgeItem(item); err != nil {
		return err
	}

	if err := s.store.Add(ctx, item); err != nil {
		return fmt.Errorf("failed to store chunk %d: %w", index, err)
	}

	ids[index] = item.ID
	return nil
}

func (s *IngestionService) queueRetry(ctx context.Context, input IngestInput, chunk string, index, total int, cause error) {
	if s.jobRepo == nil {
		return
	}

	job := &domain.IngestJob{
		ID:           s.uuidGen.NewString(),
		Title:        input.Title,
		Content:      chunk,
		Source:       input.Source,
		Category:     input.Category,
		DocumentType: input.DocumentType,
		ChunkIndex:   index,
		TotalChunks:  total,
		FileURL:      input.FileURL,
		Status:       domain.IngestJobStatusPending,
		Error:        cause.Error(),
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		telemetry.CaptureError(ctx, fmt.Errorf("failed to queue retry for chunk %d: %w", index, err))
	}
}

// RetryJob re-embeds and stores a chunk that failed during ingestion. The
// background worker drives the retry schedule; this method only performs one
// attempt.
func (s *IngestionService) RetryJob(ctx context.Context, job *domain.IngestJob) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.RetryJob", telemetry.SpanAttributes{
		ItemID:    job.ID,
		Source:    string(job.Source),
		Operation: "retry",
	})
	defer span.End()

	embedding, err := s.embedding.GenerateEmbedding(ctx, job.Content)
	if err != nil {
		return fmt.Errorf("failed to embed chunk %d: %w", job.ChunkIndex, err)
	}

	if s.cfg.EmbeddingDimensions > 0 && len(embedding) != s.cfg.EmbeddingDimensions {
		return domain.ErrDimensionMismatch
	}

	item := &domain.KnowledgeItem{
		ID:           s.uuidGen.NewString(),
		Title:        job.Title,
		Content:      job.Content,
		Source:       job.Source,
		Category:     job.Category,
		DocumentType: job.DocumentType,
		Embedding:    embedding,
		FileURL:      job.FileURL,
		Metadata: domain.Metadata{
			ChunkIndex:  job.ChunkIndex,
			TotalChunks: job.TotalChunks,
		},
		CreatedAt: time.Now().UTC(),
	}

	if err := domain.ValidateKnowledgeItem(item); err != nil {
		return err
	}

	if err := s.store.Add(ctx, item); err != nil {
		return fmt.Errorf("failed to store chunk %d: %w", job.ChunkIndex, err)
	}

	return nil
}

func sortFailures(failures []ChunkFailure) {
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].ChunkIndex < failures[j].ChunkIndex
	})
}
