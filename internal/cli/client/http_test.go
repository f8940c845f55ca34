package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *APIClient {
	return &APIClient{baseURL: baseURL, httpClient: http.DefaultClient}
}

func TestAPIClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/knowledge/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "data": {"total": 3}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Get("/knowledge/stats")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"total": 3}`, string(resp.Data))
}

func TestAPIClient_Post_SendsJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qual o prazo?", body["query"])
		_, _ = w.Write([]byte(`{"success": true, "data": {"answer": "30 dias"}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv.URL).Post("/knowledge/search", map[string]string{"query": "qual o prazo?"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestAPIClient_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success": false, "error": "query is required"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Post("/knowledge/search", map[string]string{"query": ""})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "query is required", apiErr.Message)
}

func TestAPIClient_NonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("bad gateway"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Get("/knowledge/stats")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad gateway")
}

func TestAPIClient_UploadDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(4<<20))
		assert.Equal(t, "Politica", r.FormValue("title"))
		assert.Equal(t, "upload", r.FormValue("source"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "doc.txt", header.Filename)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success": true, "data": {"ids": ["a"], "total_chunks": 1, "failures": []}}`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	filePath := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("conteudo do documento"), 0o600))

	resp, err := newTestClient(srv.URL).UploadDocument("/knowledge/upload", filePath, map[string]string{
		"title":  "Politica",
		"source": "upload",
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestNewAPIClientWithCmd_EnvFallback(t *testing.T) {
	t.Setenv(envAPIURL, "http://example.test:9999")

	api, err := NewAPIClientWithCmd(nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.test:9999", api.baseURL)
}

func TestGuessDocumentType(t *testing.T) {
	assert.Equal(t, "pdf", guessDocumentType("manual.PDF"))
	assert.Equal(t, "txt", guessDocumentType("notes.md"))
}
