package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sabia-ai/sabia/internal/api"
	"github.com/sabia-ai/sabia/internal/domain"
	"github.com/sabia-ai/sabia/internal/pagination"
	"github.com/sabia-ai/sabia/internal/service"
)

type MockAnswerService struct {
	mock.Mock
}

func (m *MockAnswerService) Generate(ctx context.Context, input service.GenerateInput) (*domain.RagResponse, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RagResponse), args.Error(1)
}

type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) List(ctx context.Context, input service.ListKnowledgeInput) (*pagination.PageResult[*domain.KnowledgeItem], error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.PageResult[*domain.KnowledgeItem]), args.Error(1)
}

func (m *MockKnowledgeService) Stats(ctx context.Context) (*service.KnowledgeStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.KnowledgeStats), args.Error(1)
}

func (m *MockKnowledgeService) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

type MockFileStore struct {
	mock.Mock
}

func (m *MockFileStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	args := m.Called(ctx, key, contentType, body)
	return args.String(0), args.Error(1)
}

func newHandler(answers *MockAnswerService, knowledge *MockKnowledgeService, ingestion *MockIngestionService) *KnowledgeHandler {
	return NewKnowledgeHandler(answers, knowledge, ingestion, nil)
}

func sampleItem() *domain.KnowledgeItem {
	return &domain.KnowledgeItem{
		ID:           "item-1",
		Title:        "Politica de cobranca",
		Content:      "Boletos vencem em trinta dias corridos.",
		Source:       domain.SourceManual,
		Category:     domain.CategoryFinanceiro,
		DocumentType: domain.DocumentTypePDF,
		Metadata:     domain.Metadata{ChunkIndex: 0, TotalChunks: 1, FileName: "politica.pdf"},
		CreatedAt:    time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) api.Envelope {
	t.Helper()
	var env api.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestKnowledgeHandler_Search_Success(t *testing.T) {
	answers := new(MockAnswerService)
	handler := newHandler(answers, new(MockKnowledgeService), new(MockIngestionService))

	answers.On("Generate", mock.Anything, mock.MatchedBy(func(input service.GenerateInput) bool {
		return input.Query == "Quando vence o boleto?" && input.Persona == domain.PersonaSuporte
	})).Return(&domain.RagResponse{
		Answer:     "Boletos vencem em 30 dias.",
		Confidence: 0.85,
		Persona:    domain.PersonaSuporte,
		Sources:    []*domain.SearchResult{{Item: sampleItem(), Similarity: 0.9}},
	}, nil)

	body := `{"query": "Quando vence o boleto?", "persona": "suporte"}`
	req := httptest.NewRequest(http.MethodPost, "/knowledge/search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)

	data, _ := json.Marshal(env.Data)
	var resp AnswerResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, "Boletos vencem em 30 dias.", resp.Answer)
	assert.InDelta(t, 0.85, resp.Confidence, 1e-9)
	assert.Equal(t, "suporte", resp.Persona)
	require.Len(t, resp.Sources, 1)
	assert.InDelta(t, 0.9, resp.Sources[0].Similarity, 1e-9)
}

func TestKnowledgeHandler_Search_InvalidBody(t *testing.T) {
	answers := new(MockAnswerService)
	handler := newHandler(answers, new(MockKnowledgeService), new(MockIngestionService))

	req := httptest.NewRequest(http.MethodPost, "/knowledge/search", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	answers.AssertNotCalled(t, "Generate")
}

func TestKnowledgeHandler_Search_EmptyQuery(t *testing.T) {
	answers := new(MockAnswerService)
	handler := newHandler(answers, new(MockKnowledgeService), new(MockIngestionService))

	answers.On("Generate", mock.Anything, mock.Anything).Return(nil, domain.ErrEmptyQuery)

	req := httptest.NewRequest(http.MethodPost, "/knowledge/search", strings.NewReader(`{"query": ""}`))
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "query is required")
}

func TestKnowledgeHandler_Search_InvalidFilterRejectedBeforeGenerate(t *testing.T) {
	answers := new(MockAnswerService)
	handler := newHandler(answers, new(MockKnowledgeService), new(MockIngestionService))

	body := `{"query": "algo", "source": "invalid_source"}`
	req := httptest.NewRequest(http.MethodPost, "/knowledge/search", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	answers.AssertNotCalled(t, "Generate")
}

func TestKnowledgeHandler_Search_UpstreamUnavailable(t *testing.T) {
	answers := new(MockAnswerService)
	handler := newHandler(answers, new(MockKnowledgeService), new(MockIngestionService))

	answers.On("Generate", mock.Anything, mock.Anything).Return(nil, domain.ErrEmbeddingUnavailable)

	req := httptest.NewRequest(http.MethodPost, "/knowledge/search", strings.NewReader(`{"query": "algo"}`))
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestKnowledgeHandler_SearchGet_ParsesParams(t *testing.T) {
	answers := new(MockAnswerService)
	handler := newHandler(answers, new(MockKnowledgeService), new(MockIngestionService))

	answers.On("Generate", mock.Anything, mock.MatchedBy(func(input service.GenerateInput) bool {
		return input.Query == "prazo de entrega" &&
			input.Persona == domain.PersonaComercial &&
			input.Filters.Category == domain.CategoryProduto &&
			input.MaxResults == 5
	})).Return(&domain.RagResponse{
		Answer:  "resposta",
		Persona: domain.PersonaComercial,
		Sources: []*domain.SearchResult{},
	}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/knowledge/search?q=prazo+de+entrega&persona=comercial&category=produto&max_results=5", nil)
	rec := httptest.NewRecorder()

	handler.SearchGet(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	answers.AssertExpectations(t)
}

func TestKnowledgeHandler_List(t *testing.T) {
	knowledge := new(MockKnowledgeService)
	handler := newHandler(new(MockAnswerService), knowledge, new(MockIngestionService))

	knowledge.On("List", mock.Anything, service.ListKnowledgeInput{
		Page: 2, Limit: 10, Source: "manual",
	}).Return(pagination.NewPageResult(
		[]*domain.KnowledgeItem{sampleItem()},
		pagination.Page{Number: 2, Size: 10},
		25,
	), nil)

	req := httptest.NewRequest(http.MethodGet, "/knowledge/list?page=2&limit=10&source=manual", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	data, _ := json.Marshal(env.Data)
	var resp ListResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, int64(25), resp.Total)
	assert.True(t, resp.HasMore)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "item-1", resp.Items[0].ID)
}

func TestKnowledgeHandler_List_InvalidFilter(t *testing.T) {
	knowledge := new(MockKnowledgeService)
	handler := newHandler(new(MockAnswerService), knowledge, new(MockIngestionService))

	knowledge.On("List", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidCategory)

	req := httptest.NewRequest(http.MethodGet, "/knowledge/list?category=nope", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestKnowledgeHandler_Stats(t *testing.T) {
	knowledge := new(MockKnowledgeService)
	handler := newHandler(new(MockAnswerService), knowledge, new(MockIngestionService))

	knowledge.On("Stats", mock.Anything).Return(&service.KnowledgeStats{
		Total: 7,
		BySource: map[domain.Source]int64{
			domain.SourceManual: 4,
			domain.SourceFAQ:    3,
		},
		ByCategory: map[domain.Category]int64{
			domain.CategoryFinanceiro: 7,
		},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/knowledge/stats", nil)
	rec := httptest.NewRecorder()

	handler.Stats(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	data, _ := json.Marshal(env.Data)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, int64(7), resp.Total)
	assert.Equal(t, int64(4), resp.BySource["manual"])
	assert.Equal(t, int64(7), resp.ByCategory["financeiro"])
}

func TestKnowledgeHandler_Get(t *testing.T) {
	knowledge := new(MockKnowledgeService)
	handler := newHandler(new(MockAnswerService), knowledge, new(MockIngestionService))

	knowledge.On("GetByID", mock.Anything, "item-1").Return(sampleItem(), nil)

	req := httptest.NewRequest(http.MethodGet, "/knowledge/item-1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "item-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestKnowledgeHandler_Get_NotFound(t *testing.T) {
	knowledge := new(MockKnowledgeService)
	handler := newHandler(new(MockAnswerService), knowledge, new(MockIngestionService))

	knowledge.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrKnowledgeItemNotFound)

	req := httptest.NewRequest(http.MethodGet, "/knowledge/missing", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "missing")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(fileContent))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestKnowledgeHandler_Upload_Success(t *testing.T) {
	ingestion := new(MockIngestionService)
	handler := newHandler(new(MockAnswerService), new(MockKnowledgeService), ingestion)

	content := "Boletos vencem em trinta dias corridos. Renegociacao e permitida uma vez por contrato."
	body, contentType := multipartUpload(t, map[string]string{
		"title":         "Politica de cobranca",
		"source":        "upload",
		"category":      "financeiro",
		"document_type": "txt",
	}, "politica.txt", content)

	ingestion.On("Ingest", mock.Anything, mock.MatchedBy(func(input service.IngestInput) bool {
		return input.RawText == content &&
			input.Title == "Politica de cobranca" &&
			input.Source == domain.SourceUpload &&
			input.FileName == "politica.txt"
	})).Return(&service.IngestResult{IDs: []string{"id-1", "id-2"}, TotalChunks: 2}, nil)

	req := httptest.NewRequest(http.MethodPost, "/knowledge/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	env := decodeEnvelope(t, rec)
	data, _ := json.Marshal(env.Data)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	assert.Equal(t, []string{"id-1", "id-2"}, resp.IDs)
	assert.Equal(t, 2, resp.TotalChunks)
	assert.Empty(t, resp.Failures)
}

func TestKnowledgeHandler_Upload_InvalidEnumBeforeAnyWork(t *testing.T) {
	ingestion := new(MockIngestionService)
	handler := newHandler(new(MockAnswerService), new(MockKnowledgeService), ingestion)

	body, contentType := multipartUpload(t, map[string]string{
		"title":         "Qualquer",
		"source":        "invalid_source",
		"category":      "financeiro",
		"document_type": "txt",
	}, "doc.txt", "conteudo qualquer para o teste")

	req := httptest.NewRequest(http.MethodPost, "/knowledge/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Contains(t, env.Error, "invalid source")
	assert.NotNil(t, env.Details)
	ingestion.AssertNotCalled(t, "Ingest")
}

func TestKnowledgeHandler_Upload_MissingFile(t *testing.T) {
	ingestion := new(MockIngestionService)
	handler := newHandler(new(MockAnswerService), new(MockKnowledgeService), ingestion)

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	require.NoError(t, writer.WriteField("title", "Sem arquivo"))
	require.NoError(t, writer.WriteField("source", "upload"))
	require.NoError(t, writer.WriteField("category", "geral"))
	require.NoError(t, writer.WriteField("document_type", "txt"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/knowledge/upload", buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	ingestion.AssertNotCalled(t, "Ingest")
}

func TestKnowledgeHandler_Upload_PartialFailureReturnsAccepted(t *testing.T) {
	ingestion := new(MockIngestionService)
	handler := newHandler(new(MockAnswerService), new(MockKnowledgeService), ingestion)

	body, contentType := multipartUpload(t, map[string]string{
		"title":         "Politica de cobranca",
		"source":        "upload",
		"category":      "financeiro",
		"document_type": "txt",
	}, "politica.txt", "Conteudo longo o suficiente para ser ingerido sem problemas.")

	ingestion.On("Ingest", mock.Anything, mock.Anything).Return(&service.IngestResult{
		IDs:         []string{"id-1"},
		TotalChunks: 2,
		Failures:    []service.ChunkFailure{{ChunkIndex: 1, Reason: "rate limited"}},
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/knowledge/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	env := decodeEnvelope(t, rec)
	data, _ := json.Marshal(env.Data)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(data, &resp))
	require.Len(t, resp.Failures, 1)
	assert.Equal(t, 1, resp.Failures[0].ChunkIndex)
}

func TestKnowledgeHandler_Upload_DimensionMismatchIsFatal(t *testing.T) {
	ingestion := new(MockIngestionService)
	handler := newHandler(new(MockAnswerService), new(MockKnowledgeService), ingestion)

	body, contentType := multipartUpload(t, map[string]string{
		"title":         "Politica de cobranca",
		"source":        "upload",
		"category":      "financeiro",
		"document_type": "txt",
	}, "politica.txt", "Conteudo longo o suficiente para ser ingerido sem problemas.")

	ingestion.On("Ingest", mock.Anything, mock.Anything).Return(nil, domain.ErrDimensionMismatch)

	req := httptest.NewRequest(http.MethodPost, "/knowledge/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Upload(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
