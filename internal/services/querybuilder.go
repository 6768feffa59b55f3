package services

import (
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"

	"sales-copilot/config"
)

// QueryBuilder turns a user utterance into the document-search query set:
// the deployment's base product queries, a product-prefixed variant of the
// raw utterance, and a keyword-compacted variant for long questions.
type QueryBuilder struct {
	stopWords map[string]bool
	minLength int
}

// NewQueryBuilder creates a query builder with the default stop-word table.
func NewQueryBuilder() *QueryBuilder {
	stopWords := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
		"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
		"be": true, "been": true, "have": true, "has": true, "had": true, "do": true,
		"does": true, "did": true, "will": true, "would": true, "could": true, "should": true,
		"this": true, "that": true, "these": true, "those": true, "i": true, "you": true,
		"he": true, "she": true, "it": true, "we": true, "they": true, "my": true,
		"your": true, "his": true, "her": true, "its": true, "our": true, "their": true,
		"what": true, "how": true, "why": true, "can": true, "me": true, "about": true,
	}

	return &QueryBuilder{
		stopWords: stopWords,
		minLength: 2,
	}
}

// primaryTerm is the product prefix shared by every utterance-derived
// query, documents and snippets alike. The deployment's first base query
// is the canonical singular form; the product name is the fallback.
func primaryTerm(scope *config.ScopeConfig) string {
	if len(scope.BaseQueries) > 0 {
		return scope.BaseQueries[0]
	}
	return strings.ToLower(scope.ProductName)
}

// scoredKeyword is one candidate query term with its POS-weighted score.
type scoredKeyword struct {
	word  string
	score float64
	count int
}

// BuildQueries returns the ordered query set for one turn. Order matters:
// the merge downstream keeps the first occurrence of a document path, so
// base product queries come first. Prose failures degrade to the plain
// variants rather than erroring.
func (qb *QueryBuilder) BuildQueries(scope *config.ScopeConfig, userText string) []string {
	queries := append([]string{}, scope.BaseQueries...)

	text := strings.TrimSpace(userText)
	if text == "" {
		return queries
	}

	primary := primaryTerm(scope)
	queries = append(queries, primary+" "+text)

	if keywords := qb.ExtractKeywords(text, 4); len(keywords) > 0 {
		compact := primary + " " + strings.Join(keywords, " ")
		if !strings.EqualFold(compact, queries[len(queries)-1]) {
			queries = append(queries, compact)
		}
	}

	return queries
}

// SnippetQuery is the single scoped query used for snippet retrieval. It
// carries the same product prefix as the document query variants.
func (qb *QueryBuilder) SnippetQuery(scope *config.ScopeConfig, userText string) string {
	return primaryTerm(scope) + " " + strings.TrimSpace(userText)
}

// ExtractKeywords pulls the top content words from an utterance, favoring
// nouns and named entities the way the bucket's filenames are worded.
func (qb *QueryBuilder) ExtractKeywords(text string, limit int) []string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil
	}

	freq := make(map[string]*scoredKeyword)

	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)
		if qb.shouldSkipWord(word, tok.Tag) {
			continue
		}
		score := qb.posScore(tok.Tag)
		if existing, ok := freq[word]; ok {
			existing.count++
			existing.score += score
		} else {
			freq[word] = &scoredKeyword{word: word, score: score, count: 1}
		}
	}

	// Named entities describe the product or application and get a boost.
	for _, ent := range doc.Entities() {
		word := strings.ToLower(ent.Text)
		if len(word) < qb.minLength || qb.stopWords[word] {
			continue
		}
		if existing, ok := freq[word]; ok {
			existing.score += 2.0
		} else {
			freq[word] = &scoredKeyword{word: word, score: 2.0, count: 1}
		}
	}

	keywords := make([]scoredKeyword, 0, len(freq))
	for _, kw := range freq {
		kw.score *= float64(kw.count)
		keywords = append(keywords, *kw)
	}

	sort.Slice(keywords, func(i, j int) bool {
		if keywords[i].score != keywords[j].score {
			return keywords[i].score > keywords[j].score
		}
		return keywords[i].word < keywords[j].word
	})

	if limit > 0 && len(keywords) > limit {
		keywords = keywords[:limit]
	}

	out := make([]string, len(keywords))
	for i, kw := range keywords {
		out[i] = kw.word
	}
	return out
}

func (qb *QueryBuilder) shouldSkipWord(word, posTag string) bool {
	if len(word) < qb.minLength {
		return true
	}
	if qb.stopWords[word] {
		return true
	}
	// Keep alphanumerics only; punctuation tokens carry no search value.
	for _, r := range word {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' {
			return true
		}
	}
	// Skip everything but nouns, adjectives, and verbs.
	switch {
	case strings.HasPrefix(posTag, "NN"):
	case strings.HasPrefix(posTag, "JJ"):
	case strings.HasPrefix(posTag, "VB"):
	default:
		return true
	}
	return false
}

func (qb *QueryBuilder) posScore(posTag string) float64 {
	switch {
	case strings.HasPrefix(posTag, "NNP"):
		return 2.0
	case strings.HasPrefix(posTag, "NN"):
		return 1.5
	case strings.HasPrefix(posTag, "JJ"):
		return 1.0
	default:
		return 0.5
	}
}
