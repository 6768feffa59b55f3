package services

import (
	"context"
	"log"
	"strings"
	"time"

	"sales-copilot/config"
	"sales-copilot/internal/models"
	"sales-copilot/internal/repositories"
)

// Persisted meta type tags. The history endpoint rehydrates the UI from
// these without re-querying the search service.
const (
	MetaTypeDocsOnly   = "docs_only"
	MetaTypeEscalation = "engineering_escalation"
	MetaTypeOutOfScope = "out_of_scope"
	MetaTypeAnswer     = "u_anchors_answer"
	MetaTypeError      = "error"
)

const (
	docsPerQuery     = 12
	snippetsPerTurn  = 8
	persistTimeout   = 2 * time.Second
	missingTextReply = "I didn’t receive your message payload. Please refresh and try again."
	crashedReply     = "Something went wrong. Please try again."
)

// ChatPipeline sequences one chat turn: classify, branch, retrieve,
// generate, filter, persist, respond. All collaborators arrive through the
// constructor so tests can substitute fakes.
type ChatPipeline struct {
	scope      *config.ScopeConfig
	classifier *Classifier
	queries    *QueryBuilder
	search     DocSearchInterface
	generator  AnswerGenerator
	safety     *SafetyFilter
	messages   repositories.MessageRepository // nil disables persistence
	logger     *log.Logger

	policy string
}

// NewChatPipeline wires a pipeline from its collaborators.
func NewChatPipeline(
	scope *config.ScopeConfig,
	classifier *Classifier,
	queries *QueryBuilder,
	search DocSearchInterface,
	generator AnswerGenerator,
	safety *SafetyFilter,
	messages repositories.MessageRepository,
	logger *log.Logger,
) *ChatPipeline {
	return &ChatPipeline{
		scope:      scope,
		classifier: classifier,
		queries:    queries,
		search:     search,
		generator:  generator,
		safety:     safety,
		messages:   messages,
		logger:     logger,
		policy:     SystemPolicy(scope),
	}
}

// Handle runs one chat turn. It always returns a ChatResponse: internal
// panics are recovered into a generic in-band error so the caller can keep
// its always-200 contract.
func (p *ChatPipeline) Handle(ctx context.Context, userID string, req *models.ChatTurnRequest) (resp models.ChatResponse) {
	foldersUsed := []string{p.scope.ScopeTag}

	defer func() {
		if r := recover(); r != nil {
			p.logger.Printf("Chat pipeline panic recovered: %v", r)
			resp = models.ChatResponse{
				Answer:          crashedReply,
				Error:           "internal error",
				FoldersUsed:     foldersUsed,
				RecommendedDocs: []models.RecommendedDocument{},
				SiteSnippets:    []models.SiteSnippet{},
			}
		}
	}()

	userText := req.ExtractUserText()
	if userText == "" {
		return models.ChatResponse{
			Answer:          missingTextReply,
			FoldersUsed:     foldersUsed,
			RecommendedDocs: []models.RecommendedDocument{},
			SiteSnippets:    []models.SiteSnippet{},
		}
	}

	docsMode := req.IsDocsMode()
	signals := p.classifier.Classify(userText)
	conversationID := p.resolveConversation(ctx, userID, req.ConversationID)

	if !docsMode {
		p.persist(userID, conversationID, "user", userText, nil)
	}

	// Retrieval runs before branching: every branch surfaces documents.
	queries := p.queries.BuildQueries(p.scope, userText)
	recommendedDocs := p.search.SearchAll(ctx, queries, docsPerQuery)

	scopedQuery := p.queries.SnippetQuery(p.scope, userText)
	siteSnippets := p.search.FetchSnippets(ctx, scopedQuery, snippetsPerTurn)

	base := models.ChatResponse{
		ConversationID:  conversationID,
		FoldersUsed:     foldersUsed,
		RecommendedDocs: recommendedDocs,
		SiteSnippets:    siteSnippets,
	}
	docsMeta := map[string]interface{}{
		"recommendedDocs": recommendedDocs,
		"foldersUsed":     foldersUsed,
		"siteSnippets":    siteSnippets,
	}

	// Branch 1: docs only. The only branch allowed an empty answer.
	if docsMode || signals.DocsOnly {
		base.Answer = ""
		p.persist(userID, conversationID, "assistant", "", withType(docsMeta, MetaTypeDocsOnly))
		return base
	}

	// Branch 2: out of scope. Checked before escalation, so a question that
	// names another product family redirects instead of escalating.
	if signals.OutOfScope {
		base.Answer = p.classifier.OutOfScopeAnswer()
		p.persist(userID, conversationID, "assistant", base.Answer, withType(docsMeta, MetaTypeOutOfScope))
		return base
	}

	// Branch 3: engineering escalation. Runs strictly before the model
	// call so a lucky completion can never skip it.
	if signals.NeedsEscalation {
		base.Answer = p.classifier.EscalationAnswer()
		p.persist(userID, conversationID, "assistant", base.Answer, withType(docsMeta, MetaTypeEscalation))
		return base
	}

	// Branch 4: generate, then re-check the output.
	grounding := BuildGrounding(strings.ToUpper(p.scope.ProductName), recommendedDocs, siteSnippets)
	answer := p.generator.Generate(ctx, p.policy, grounding, req.Messages, userText)

	filtered, escalated := p.safety.Apply(ctx, answer, p.policy, grounding, userText)
	base.Answer = filtered

	metaType := MetaTypeAnswer
	if escalated {
		metaType = MetaTypeEscalation
	}
	p.persist(userID, conversationID, "assistant", base.Answer, withType(docsMeta, metaType))

	return base
}

// resolveConversation reuses a provided conversation ID or creates a new
// conversation for an authenticated user. Anonymous turns get no
// conversation and thus no persistence.
func (p *ChatPipeline) resolveConversation(ctx context.Context, userID, conversationID string) string {
	if conversationID != "" {
		return conversationID
	}
	if userID == "" || p.messages == nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	convo, err := p.messages.CreateConversation(ctx, userID, p.scope.ProductName)
	if err != nil {
		p.logger.Printf("Failed to create conversation for user %s: %v", userID, err)
		return ""
	}
	return convo.ID
}

// persist appends one message row, best effort. Failures are logged and
// never abort response delivery.
func (p *ChatPipeline) persist(userID, conversationID, role, content string, meta map[string]interface{}) {
	if p.messages == nil || userID == "" || conversationID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	msg := &repositories.Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		Content:        content,
		Meta:           meta,
	}
	if err := p.messages.Append(ctx, msg); err != nil {
		p.logger.Printf("Failed to persist %s message (conversation %s): %v", role, conversationID, err)
	}
}

func withType(docsMeta map[string]interface{}, metaType string) map[string]interface{} {
	meta := make(map[string]interface{}, len(docsMeta)+1)
	for k, v := range docsMeta {
		meta[k] = v
	}
	meta["type"] = metaType
	return meta
}
