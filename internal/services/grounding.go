package services

import (
	"encoding/json"

	"sales-copilot/internal/models"
)

const (
	maxGroundingDocs     = 10
	maxGroundingSnippets = 8
)

// groundingDoc is the trimmed document view injected into the prompt.
// Excerpts stay out; snippets carry the prose.
type groundingDoc struct {
	Title   string         `json:"title"`
	DocType models.DocType `json:"doc_type"`
	Path    string         `json:"path"`
	URL     *string        `json:"url"`
}

// groundingSnippet is the trimmed snippet view injected into the prompt.
type groundingSnippet struct {
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

type groundingPayload struct {
	Docs     []groundingDoc     `json:"docs"`
	Snippets []groundingSnippet `json:"snippets"`
}

// BuildGrounding serializes retrieved documents and snippets into the
// context block sent as a second system message, separate from the
// behavioral policy so retrieved content never dilutes it. Counts are
// capped to bound token cost and blunt prompt-injection from oversized
// result sets.
func BuildGrounding(productName string, docs []models.RecommendedDocument, snippets []models.SiteSnippet) string {
	if len(docs) > maxGroundingDocs {
		docs = docs[:maxGroundingDocs]
	}
	if len(snippets) > maxGroundingSnippets {
		snippets = snippets[:maxGroundingSnippets]
	}

	payload := groundingPayload{
		Docs:     make([]groundingDoc, 0, len(docs)),
		Snippets: make([]groundingSnippet, 0, len(snippets)),
	}
	for _, d := range docs {
		payload.Docs = append(payload.Docs, groundingDoc{
			Title:   d.Title,
			DocType: d.DocType,
			Path:    d.Path,
			URL:     d.URL,
		})
	}
	for _, s := range snippets {
		payload.Snippets = append(payload.Snippets, groundingSnippet{
			Title:   s.Title,
			Excerpt: s.Excerpt,
		})
	}

	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		body = []byte(`{"docs":[],"snippets":[]}`)
	}

	return productName + " DOC RESULTS (titles + snippets):\n" + string(body)
}
