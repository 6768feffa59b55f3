package services

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sales-copilot/internal/models"
)

func setupDocSearchServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *DocSearchClient) {
	server := httptest.NewServer(handler)
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	client := NewDocSearchClientWithOptions(server.URL, 2*time.Second, 0, logger)
	return server, client
}

func docsJSON(t *testing.T, w http.ResponseWriter, docs []models.RecommendedDocument) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(docsEnvelope{Docs: docs}); err != nil {
		t.Fatalf("Failed to encode docs: %v", err)
	}
}

func TestSearchAll(t *testing.T) {
	byQuery := map[string][]models.RecommendedDocument{
		"u-anchor":           {doc2("a"), doc2("b")},
		"u anchor":           {doc2("b"), doc2("c")},
		"u-anchors snow kit": {doc2("c"), doc2("d")},
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs" {
			t.Errorf("Expected path /docs, got %s", r.URL.Path)
		}
		docsJSON(t, w, byQuery[r.URL.Query().Get("q")])
	}

	server, client := setupDocSearchServer(t, handler)
	defer server.Close()

	merged := client.SearchAll(context.Background(), []string{"u-anchor", "u anchor", "u-anchors snow kit"}, 12)

	paths := make([]string, len(merged))
	for i, d := range merged {
		paths[i] = d.Path
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, paths)
}

func TestSearchAll_LimitClamped(t *testing.T) {
	var gotLimit atomic.Value

	handler := func(w http.ResponseWriter, r *http.Request) {
		gotLimit.Store(r.URL.Query().Get("limit"))
		docsJSON(t, w, nil)
	}

	server, client := setupDocSearchServer(t, handler)
	defer server.Close()

	client.SearchAll(context.Background(), []string{"u-anchor"}, 500)
	assert.Equal(t, "50", gotLimit.Load())

	client.SearchAll(context.Background(), []string{"u-anchor"}, 0)
	assert.Equal(t, "1", gotLimit.Load())
}

func TestSearchAll_PartialFailure(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "bad" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		docsJSON(t, w, []models.RecommendedDocument{doc2("a")})
	}

	server, client := setupDocSearchServer(t, handler)
	defer server.Close()

	merged := client.SearchAll(context.Background(), []string{"bad", "good"}, 12)

	assert.Len(t, merged, 1)
	assert.Equal(t, "a", merged[0].Path)
}

func TestSearchAll_AllFailuresYieldEmptyList(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}

	server, client := setupDocSearchServer(t, handler)
	defer server.Close()

	merged := client.SearchAll(context.Background(), []string{"q1", "q2"}, 12)
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
}

func TestFetchDocs_NoRetryOnClientError(t *testing.T) {
	var calls int32

	handler := func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}

	server := httptest.NewServer(http.HandlerFunc(handler))
	defer server.Close()

	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	client := NewDocSearchClientWithOptions(server.URL, 2*time.Second, 3, logger)

	_, err := client.fetchDocs(context.Background(), "u-anchor", 12, 0)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchSnippets(t *testing.T) {
	url := "https://example.com/signed"
	handler := func(w http.ResponseWriter, r *http.Request) {
		docsJSON(t, w, []models.RecommendedDocument{
			{Title: "U2400 Sales Sheet", DocType: models.DocTypeSalesSheet, Path: "a", URL: &url, Excerpt: "Bonded attachment."},
			{Title: "", DocType: models.DocTypeAsset, Path: "b", Excerpt: "no title, dropped"},
			{Title: "U2400 Data Sheet", DocType: models.DocTypeDataSheet, Path: "c"},
		})
	}

	server, client := setupDocSearchServer(t, handler)
	defer server.Close()

	snippets := client.FetchSnippets(context.Background(), "u-anchor", 8)

	assert.Len(t, snippets, 2)
	assert.Equal(t, "U2400 Sales Sheet", snippets[0].Title)
	assert.Equal(t, "https://example.com/signed", snippets[0].URL)
	assert.Equal(t, "Bonded attachment.", snippets[0].Excerpt)
	assert.Equal(t, "U2400 Data Sheet", snippets[1].Title)
}

func TestFetchSnippets_UpstreamErrorDegradesToEmpty(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}

	server, client := setupDocSearchServer(t, handler)
	defer server.Close()

	snippets := client.FetchSnippets(context.Background(), "u-anchor", 8)
	assert.NotNil(t, snippets)
	assert.Empty(t, snippets)
}

func doc2(path string) models.RecommendedDocument {
	return models.RecommendedDocument{
		Title:   "Doc " + path,
		DocType: models.DocTypeSalesSheet,
		Path:    path,
	}
}
