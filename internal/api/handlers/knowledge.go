package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sabia-ai/sabia/internal/api"
	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/sabia-ai/sabia/internal/extract"
	"github.com/sabia-ai/sabia/internal/pagination"
	"github.com/sabia-ai/sabia/internal/service"
)

// maxUploadMemory bounds the in-memory portion of multipart parsing;
// larger files spill to disk.
const maxUploadMemory = 4 << 20

type AnswerService interface {
	Generate(ctx context.Context, input service.GenerateInput) (*domain.RagResponse, error)
}

type KnowledgeService interface {
	List(ctx context.Context, input service.ListKnowledgeInput) (*pagination.PageResult[*domain.KnowledgeItem], error)
	Stats(ctx context.Context) (*service.KnowledgeStats, error)
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
}

type IngestionService interface {
	Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error)
}

// FileStore keeps the original uploaded document. Optional: a nil store
// means only extracted text is retained.
type FileStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

type KnowledgeHandler struct {
	answers   AnswerService
	knowledge KnowledgeService
	ingestion IngestionService
	files     FileStore
	uuidGen   service.UUIDGenerator
}

func NewKnowledgeHandler(answers AnswerService, knowledge KnowledgeService, ingestion IngestionService, files FileStore) *KnowledgeHandler {
	return &KnowledgeHandler{
		answers:   answers,
		knowledge: knowledge,
		ingestion: ingestion,
		files:     files,
		uuidGen:   &service.DefaultUUIDGenerator{},
	}
}

type SearchRequest struct {
	Query      string  `json:"query"`
	Persona    string  `json:"persona"`
	Source     string  `json:"source"`
	Category   string  `json:"category"`
	MaxResults int     `json:"max_results"`
	Threshold  float64 `json:"threshold"`
}

type SourceResponse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	Source       string  `json:"source"`
	Category     string  `json:"category"`
	DocumentType string  `json:"document_type"`
	Similarity   float64 `json:"similarity"`
	CreatedAt    string  `json:"created_at"`
}

type AnswerResponse struct {
	Answer     string            `json:"answer"`
	Confidence float64           `json:"confidence"`
	Persona    string            `json:"persona"`
	Sources    []*SourceResponse `json:"sources"`
}

type ItemResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Source       string `json:"source"`
	Category     string `json:"category"`
	DocumentType string `json:"document_type"`
	FileURL      string `json:"file_url,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
	TotalChunks  int    `json:"total_chunks"`
	FileName     string `json:"file_name,omitempty"`
	CreatedAt    string `json:"created_at"`
}

func itemToResponse(item *domain.KnowledgeItem) *ItemResponse {
	return &ItemResponse{
		ID:           item.ID,
		Title:        item.Title,
		Content:      item.Content,
		Source:       string(item.Source),
		Category:     string(item.Category),
		DocumentType: string(item.DocumentType),
		FileURL:      item.FileURL,
		ChunkIndex:   item.Metadata.ChunkIndex,
		TotalChunks:  item.Metadata.TotalChunks,
		FileName:     item.Metadata.FileName,
		CreatedAt:    item.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func answerToResponse(resp *domain.RagResponse) *AnswerResponse {
	sources := make([]*SourceResponse, len(resp.Sources))
	for i, s := range resp.Sources {
		sources[i] = &SourceResponse{
			ID:           s.Item.ID,
			Title:        s.Item.Title,
			Content:      s.Item.Content,
			Source:       string(s.Item.Source),
			Category:     string(s.Item.Category),
			DocumentType: string(s.Item.DocumentType),
			Similarity:   s.Similarity,
			CreatedAt:    s.Item.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
	}
	return &AnswerResponse{
		Answer:     resp.Answer,
		Confidence: resp.Confidence,
		Persona:    string(resp.Persona),
		Sources:    sources,
	}
}

// Search answers a question from the knowledge base (POST body variant).
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.generate(w, r, req)
}

// SearchGet answers a question from query parameters.
func (h *KnowledgeHandler) SearchGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := SearchRequest{
		Query:    q.Get("q"),
		Persona:  q.Get("persona"),
		Source:   q.Get("source"),
		Category: q.Get("category"),
	}
	if limitStr := q.Get("max_results"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			req.MaxResults = parsed
		}
	}
	if thresholdStr := q.Get("threshold"); thresholdStr != "" {
		if parsed, err := strconv.ParseFloat(thresholdStr, 64); err == nil {
			req.Threshold = parsed
		}
	}

	h.generate(w, r, req)
}

func (h *KnowledgeHandler) generate(w http.ResponseWriter, r *http.Request, req SearchRequest) {
	filters, err := searchFilters(req.Source, req.Category)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp, err := h.answers.Generate(r.Context(), service.GenerateInput{
		Query:      req.Query,
		Persona:    domain.Persona(req.Persona),
		Filters:    filters,
		MaxResults: req.MaxResults,
		Threshold:  req.Threshold,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answerToResponse(resp))
}

type ListResponse struct {
	Items   []*ItemResponse `json:"items"`
	Page    int             `json:"page"`
	Size    int             `json:"size"`
	Total   int64           `json:"total"`
	HasMore bool            `json:"has_more"`
}

// List returns one page of knowledge items.
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	input := service.ListKnowledgeInput{
		Source:   q.Get("source"),
		Category: q.Get("category"),
	}
	if pageStr := q.Get("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil {
			input.Page = parsed
		}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			input.Limit = parsed
		}
	}

	result, err := h.knowledge.List(r.Context(), input)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ItemResponse, len(result.Items))
	for i, item := range result.Items {
		items[i] = itemToResponse(item)
	}

	api.Success(w, http.StatusOK, ListResponse{
		Items:   items,
		Page:    result.Page,
		Size:    result.Size,
		Total:   result.Total,
		HasMore: result.HasMore,
	})
}

type StatsResponse struct {
	Total      int64            `json:"total"`
	BySource   map[string]int64 `json:"by_source"`
	ByCategory map[string]int64 `json:"by_category"`
}

// Stats returns aggregate knowledge base counts.
func (h *KnowledgeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.knowledge.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := StatsResponse{
		Total:      stats.Total,
		BySource:   map[string]int64{},
		ByCategory: map[string]int64{},
	}
	for source, count := range stats.BySource {
		resp.BySource[string(source)] = count
	}
	for category, count := range stats.ByCategory {
		resp.ByCategory[string(category)] = count
	}

	api.Success(w, http.StatusOK, resp)
}

// Get returns a single knowledge item by ID.
func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	item, err := h.knowledge.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

type ChunkFailureResponse struct {
	ChunkIndex int    `json:"chunk_index"`
	Reason     string `json:"reason"`
}

type UploadResponse struct {
	IDs         []string                `json:"ids"`
	TotalChunks int                     `json:"total_chunks"`
	Failures    []*ChunkFailureResponse `json:"failures"`
}

// Upload ingests a document from a multipart form. Enum fields are
// validated before the file is touched, so a bad request never costs an
// extraction or embedding call.
func (h *KnowledgeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := r.FormValue("title")
	source := domain.Source(r.FormValue("source"))
	category := domain.Category(r.FormValue("category"))
	docType := domain.DocumentType(r.FormValue("document_type"))

	if title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if !domain.IsValidSource(source) {
		api.ErrorWithDetails(w, http.StatusBadRequest, "invalid source", map[string]interface{}{
			"allowed": domain.Sources(),
		})
		return
	}
	if !domain.IsValidCategory(category) {
		api.ErrorWithDetails(w, http.StatusBadRequest, "invalid category", map[string]interface{}{
			"allowed": domain.Categories(),
		})
		return
	}
	if !domain.IsValidDocumentType(docType) {
		api.Error(w, http.StatusBadRequest, "invalid document type")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	text, err := extract.Text(file, docType)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	mimeType := header.Header.Get("Content-Type")

	var fileURL string
	if h.files != nil {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			key := fmt.Sprintf("uploads/%s/%s", h.uuidGen.NewString(), header.Filename)
			url, uploadErr := h.files.Upload(r.Context(), key, mimeType, file)
			if uploadErr != nil {
				// The original file is a convenience copy; ingestion proceeds
				// on extracted text alone.
				fileURL = ""
			} else {
				fileURL = url
			}
		}
	}

	result, err := h.ingestion.Ingest(r.Context(), service.IngestInput{
		RawText:      text,
		Title:        title,
		Source:       source,
		Category:     category,
		DocumentType: docType,
		FileURL:      fileURL,
		FileName:     header.Filename,
		FileSize:     header.Size,
		MimeType:     mimeType,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	failures := make([]*ChunkFailureResponse, len(result.Failures))
	for i, f := range result.Failures {
		failures[i] = &ChunkFailureResponse{ChunkIndex: f.ChunkIndex, Reason: f.Reason}
	}

	status := http.StatusCreated
	if !result.Succeeded() {
		status = http.StatusAccepted // partial: failed chunks queued for retry
	}

	api.Success(w, status, UploadResponse{
		IDs:         result.IDs,
		TotalChunks: result.TotalChunks,
		Failures:    failures,
	})
}

func searchFilters(source, category string) (service.SearchFilters, error) {
	var filters service.SearchFilters
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
