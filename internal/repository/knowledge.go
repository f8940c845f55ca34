package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/sabia-ai/sabia/internal/pagination"
	"github.com/sabia-ai/sabia/internal/service"
)

const itemColumns = `id, title, content, source, category, document_type, file_url,
	chunk_index, total_chunks, file_name, file_size, mime_type, extra, created_at`

type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx pgx.Tx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

// Add inserts a knowledge item. Items are append-only; there is no update
// path. Invalid items are rejected before touching the database.
func (r *KnowledgeRepository) Add(ctx context.Context, item *domain.KnowledgeItem) error {
	if err := domain.ValidateKnowledgeItem(item); err != nil {
		return err
	}
	if len(item.Embedding) == 0 {
		return domain.NewDomainError(domain.ErrCodeValidation, "knowledge item embedding is required")
	}

	extra := item.Metadata.Extra
	if extra == nil {
		extra = map[string]string{}
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (id, title, content, source, category, document_type, embedding, file_url,
		 chunk_index, total_chunks, file_name, file_size, mime_type, extra, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		item.ID, item.Title, item.Content, item.Source, item.Category, item.DocumentType,
		pgvector.NewVector(item.Embedding), nullableString(item.FileURL),
		item.Metadata.ChunkIndex, item.Metadata.TotalChunks,
		nullableString(item.Metadata.FileName), item.Metadata.FileSize,
		nullableString(item.Metadata.MimeType), extra, item.CreatedAt,
	)
	return err
}

// Search returns items whose normalized cosine similarity to the query
// embedding clears the threshold, most similar first. Ties break on
// recency.
func (r *KnowledgeRepository) Search(ctx context.Context, embedding []float32, filters service.SearchFilters, threshold float64, limit int) ([]*domain.SearchResult, error) {
	query := `SELECT ` + itemColumns + `, 1 - (embedding <=> $1) AS similarity
	 FROM knowledge_items
	 WHERE 1 - (embedding <=> $1) >= $2`
	args := []any{pgvector.NewVector(embedding), threshold}

	if filters.Source != "" {
		args = append(args, filters.Source)
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY similarity DESC, created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*domain.SearchResult{}
	for rows.Next() {
		item, similarity, err := scanItemWithSimilarity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, &domain.SearchResult{
			Item:       item,
			Similarity: clampSimilarity(similarity),
		})
	}
	return results, rows.Err()
}

// List returns one page of items, newest first. A page past the end is an
// empty page, not an error.
func (r *KnowledgeRepository) List(ctx context.Context, filters service.SearchFilters, page pagination.Page) (*pagination.PageResult[*domain.KnowledgeItem], error) {
	page = page.Normalize()

	where := ""
	args := []any{}
	if filters.Source != "" {
		args = append(args, filters.Source)
		where = fmt.Sprintf(" WHERE source = $%d", len(args))
	}
	if filters.Category != "" {
		args = append(args, filters.Category)
		if where == "" {
			where = fmt.Sprintf(" WHERE category = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND category = $%d", len(args))
		}
	}

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_items`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	args = append(args, page.Size, page.Offset())
	rows, err := r.db.Query(ctx,
		`SELECT `+itemColumns+` FROM knowledge_items`+where+
			fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*domain.KnowledgeItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return pagination.NewPageResult(items, page, total), nil
}

// Stats aggregates item counts overall and per source and category.
func (r *KnowledgeRepository) Stats(ctx context.Context) (*service.KnowledgeStats, error) {
	stats := &service.KnowledgeStats{
		BySource:   map[domain.Source]int64{},
		ByCategory: map[domain.Category]int64{},
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_items`).Scan(&stats.Total); err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT source, COUNT(*) FROM knowledge_items GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var source domain.Source
		var count int64
		if err := rows.Scan(&source, &count); err != nil {
			return nil, err
		}
		stats.BySource[source] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `SELECT category, COUNT(*) FROM knowledge_items GROUP BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var category domain.Category
		var count int64
		if err := rows.Scan(&category, &count); err != nil {
			return nil, err
		}
		stats.ByCategory[category] = count
	}
	return stats, rows.Err()
}

// GetByID retrieves one item, embedding included.
func (r *KnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	var fileURL, fileName, mimeType pgtype.Text
	var embedding pgvector.Vector
	var extra map[string]string

	err := r.db.QueryRow(ctx,
		`SELECT `+itemColumns+`, embedding FROM knowledge_items WHERE id = $1`,
		id,
	).Scan(
		&item.ID, &item.Title, &item.Content, &item.Source, &item.Category, &item.DocumentType,
		&fileURL, &item.Metadata.ChunkIndex, &item.Metadata.TotalChunks,
		&fileName, &item.Metadata.FileSize, &mimeType, &extra, &item.CreatedAt,
		&embedding,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeItemNotFound
		}
		return nil, err
	}

	applyNullable(&item, fileURL, fileName, mimeType, extra)
	item.Embedding = embedding.Slice()
	return &item, nil
}

func scanItem(rows pgx.Rows) (*domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	var fileURL, fileName, mimeType pgtype.Text
	var extra map[string]string

	if err := rows.Scan(
		&item.ID, &item.Title, &item.Content, &item.Source, &item.Category, &item.DocumentType,
		&fileURL, &item.Metadata.ChunkIndex, &item.Metadata.TotalChunks,
		&fileName, &item.Metadata.FileSize, &mimeType, &extra, &item.CreatedAt,
	); err != nil {
		return nil, err
	}

	applyNullable(&item, fileURL, fileName, mimeType, extra)
	return &item, nil
}

func scanItemWithSimilarity(rows pgx.Rows) (*domain.KnowledgeItem, float64, error) {
	var item domain.KnowledgeItem
	var fileURL, fileName, mimeType pgtype.Text
	var extra map[string]string
	var similarity float64

	if err := rows.Scan(
		&item.ID, &item.Title, &item.Content, &item.Source, &item.Category, &item.DocumentType,
		&fileURL, &item.Metadata.ChunkIndex, &item.Metadata.TotalChunks,
		&fileName, &item.Metadata.FileSize, &mimeType, &extra, &item.CreatedAt,
		&similarity,
	); err != nil {
		return nil, 0, err
	}

	applyNullable(&item, fileURL, fileName, mimeType, extra)
	return &item, similarity, nil
}

func applyNullable(item *domain.KnowledgeItem, fileURL, fileName, mimeType pgtype.Text, extra map[string]string) {
	if fileURL.Valid {
		item.FileURL = fileURL.String
	}
	if fileName.Valid {
		item.Metadata.FileName = fileName.String
	}
	if mimeType.Valid {
		item.Metadata.MimeType = mimeType.String
	}
	if len(extra) > 0 {
		item.Metadata.Extra = extra
	}
}

// clampSimilarity keeps cosine similarity in [0,1]; pgvector distances can
// put the raw value slightly outside.
func clampSimilarity(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
