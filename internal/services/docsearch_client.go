package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"sales-copilot/internal/models"
)

const (
	minDocsPerQuery = 1
	maxDocsPerQuery = 50
)

// DocSearchInterface defines the document search operations the pipeline
// consumes. The backing index (bucket listing, signing) is someone else's
// problem; this side only sees query -> documents.
type DocSearchInterface interface {
	SearchAll(ctx context.Context, queries []string, limitPerQuery int) []models.RecommendedDocument
	FetchSnippets(ctx context.Context, query string, limit int) []models.SiteSnippet
}

// DocSearchClient talks to the document search service over HTTP.
type DocSearchClient struct {
	baseURL    string
	httpClient *http.Client
	retries    int
	logger     *log.Logger
}

// NewDocSearchClient creates a client with default settings.
func NewDocSearchClient(baseURL string, logger *log.Logger) *DocSearchClient {
	return NewDocSearchClientWithOptions(baseURL, 10*time.Second, 2, logger)
}

// NewDocSearchClientWithOptions creates a client with custom settings.
func NewDocSearchClientWithOptions(baseURL string, timeout time.Duration, retries int, logger *log.Logger) *DocSearchClient {
	return &DocSearchClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retries: retries,
		logger:  logger,
	}
}

// docsEnvelope is the search service's response shape for GET /docs.
type docsEnvelope struct {
	Docs []models.RecommendedDocument `json:"docs"`
}

// SearchAll fires one lookup per query concurrently, joins the branches,
// and merges results with path-based dedup in query order. A failed branch
// contributes an empty list; the merge itself never fails.
func (c *DocSearchClient) SearchAll(ctx context.Context, queries []string, limitPerQuery int) []models.RecommendedDocument {
	if limitPerQuery < minDocsPerQuery {
		limitPerQuery = minDocsPerQuery
	}
	if limitPerQuery > maxDocsPerQuery {
		limitPerQuery = maxDocsPerQuery
	}

	results := make([][]models.RecommendedDocument, len(queries))
	var wg sync.WaitGroup

	for i, q := range queries {
		wg.Add(1)
		go func(slot int, query string) {
			defer wg.Done()
			docs, err := c.fetchDocs(ctx, query, limitPerQuery, 0)
			if err != nil {
				c.logger.Printf("Doc search failed for %q: %v", query, err)
				return
			}
			results[slot] = docs
		}(i, q)
	}
	wg.Wait()

	return models.MergeDocsByPath(results...)
}

// FetchSnippets maps document results for one query into site snippets.
// Entries without a title are dropped.
func (c *DocSearchClient) FetchSnippets(ctx context.Context, query string, limit int) []models.SiteSnippet {
	if limit < 1 {
		limit = 1
	}
	docs, err := c.fetchDocs(ctx, query, limit, 0)
	if err != nil {
		c.logger.Printf("Snippet fetch failed for %q: %v", query, err)
		return []models.SiteSnippet{}
	}

	snippets := make([]models.SiteSnippet, 0, len(docs))
	for _, d := range docs {
		if d.Title == "" {
			continue
		}
		snippet := models.SiteSnippet{Title: d.Title, Excerpt: d.Excerpt}
		if d.URL != nil {
			snippet.URL = *d.URL
		}
		snippets = append(snippets, snippet)
		if len(snippets) >= limit {
			break
		}
	}
	return snippets
}

// fetchDocs performs one GET /docs lookup with retry on transport errors
// and 5xx responses. Client errors (4xx) are not retried.
func (c *DocSearchClient) fetchDocs(ctx context.Context, query string, limit, page int) ([]models.RecommendedDocument, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("page", strconv.Itoa(page))
	endpoint := c.baseURL + "/docs?" + params.Encode()

	var lastErr error

	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		docs, retryable, err := c.tryFetch(ctx, endpoint)
		if err == nil {
			return docs, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}

	return nil, fmt.Errorf("doc search failed after %d retries: %w", c.retries, lastErr)
}

func (c *DocSearchClient) tryFetch(ctx context.Context, endpoint string) ([]models.RecommendedDocument, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("search service returned status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("search service returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope docsEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to parse search results: %w", err)
	}
	if envelope.Docs == nil {
		return []models.RecommendedDocument{}, false, nil
	}
	return envelope.Docs, false, nil
}
