package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"sales-copilot/internal/models"
)

const (
	// DefaultModel is used when OPENAI_MODEL is unset.
	DefaultModel = "gpt-5-mini"

	// maxHistoryTurns bounds the recent history sent to the model. Older
	// turns are dropped without summarization; long-term memory lives in
	// persisted message meta, not the prompt.
	maxHistoryTurns = 18

	generationFailedAnswer = "I couldn’t generate a response right now (temporary AI error). Please try again in a moment."
)

// ModelAnswer is the normalized result every provider response shape maps
// into. The pipeline never sees a raw SDK envelope.
type ModelAnswer struct {
	Text string `json:"text"`
}

// AnswerGenerator produces grounded answers and conversational rewrites.
// Generate never fails: exhausted attempts degrade to a fixed apology.
type AnswerGenerator interface {
	Generate(ctx context.Context, policy, grounding string, history []models.ChatMessage, userText string) string
	Rewrite(ctx context.Context, policy, grounding, question, draft string) (string, error)
}

// GeneratorConfig holds provider settings for the OpenAI-backed generator.
type GeneratorConfig struct {
	APIKey  string
	Model   string
	BaseURL string // override for tests; empty means the provider default
	Timeout time.Duration
}

// OpenAIGenerator invokes the provider through an ordered list of attempt
// strategies: the chat-completions endpoint first, the responses endpoint
// (same provider, different API shape) second.
type OpenAIGenerator struct {
	client    *openai.Client
	responses *responsesClient
	model     string
	logger    *log.Logger
}

// NewOpenAIGenerator creates a generator from provider settings.
func NewOpenAIGenerator(cfg GeneratorConfig, logger *log.Logger) *OpenAIGenerator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIGenerator{
		client:    openai.NewClientWithConfig(clientCfg),
		responses: newResponsesClient(clientCfg.BaseURL, cfg.APIKey, cfg.Timeout),
		model:     cfg.Model,
		logger:    logger,
	}
}

// generateAttempt is one strategy in the fallback chain.
type generateAttempt struct {
	name string
	run  func(ctx context.Context) (ModelAnswer, error)
}

// firstAnswer runs attempts in order and stops at the first non-empty
// answer. Attempts are strictly sequential, never raced: a second model
// call must only happen once the first has definitively failed.
func (g *OpenAIGenerator) firstAnswer(ctx context.Context, attempts []generateAttempt, fallback string) string {
	for _, attempt := range attempts {
		answer, err := attempt.run(ctx)
		if err != nil {
			g.logger.Printf("Generation attempt %s failed: %v", attempt.name, err)
			continue
		}
		if text := strings.TrimSpace(answer.Text); text != "" {
			return text
		}
		g.logger.Printf("Generation attempt %s returned empty text", attempt.name)
	}
	return fallback
}

// Generate produces an answer from the fixed policy, the grounding block,
// and bounded recent history. It degrades to a fixed apology instead of
// returning an error.
func (g *OpenAIGenerator) Generate(ctx context.Context, policy, grounding string, history []models.ChatMessage, userText string) string {
	msgs := buildPromptMessages(policy, grounding, history, userText)

	attempts := []generateAttempt{
		{
			name: "chat_completions",
			run: func(ctx context.Context) (ModelAnswer, error) {
				return g.chatCompletion(ctx, msgs, 0.7, 0.4)
			},
		},
		{
			name: "responses",
			run: func(ctx context.Context) (ModelAnswer, error) {
				return g.responses.Create(ctx, g.model, msgs)
			},
		},
	}

	return g.firstAnswer(ctx, attempts, generationFailedAnswer)
}

// Rewrite asks for a conversational, non-templated version of a draft,
// grounded in the same policy and context. Unlike Generate it surfaces the
// error so the caller can keep the draft.
func (g *OpenAIGenerator) Rewrite(ctx context.Context, policy, grounding, question, draft string) (string, error) {
	msgs := []models.ChatMessage{
		{Role: "system", Content: policy},
		{Role: "system", Content: grounding},
		{
			Role: "user",
			Content: "Rewrite the assistant reply below to sound like a natural chat with an experienced customer. " +
				"No headings, no canned sections, no long bullet lists. Keep it specific to the question and short.\n\n" +
				"QUESTION:\n" + question + "\n\n" +
				"DRAFT ANSWER:\n" + draft,
		},
	}

	answer, err := g.chatCompletion(ctx, msgs, 0.6, 0)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer.Text) == "" {
		return "", fmt.Errorf("rewrite returned empty text")
	}
	return strings.TrimSpace(answer.Text), nil
}

// chatCompletion calls the chat-completions endpoint and adapts the
// response into a ModelAnswer.
func (g *OpenAIGenerator) chatCompletion(ctx context.Context, msgs []models.ChatMessage, temperature, presencePenalty float32) (ModelAnswer, error) {
	req := openai.ChatCompletionRequest{
		Model:           g.model,
		Messages:        make([]openai.ChatCompletionMessage, 0, len(msgs)),
		Temperature:     temperature,
		PresencePenalty: presencePenalty,
	}
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return ModelAnswer{}, err
	}
	if len(resp.Choices) == 0 {
		return ModelAnswer{}, fmt.Errorf("no choices in completion response")
	}
	return ModelAnswer{Text: resp.Choices[0].Message.Content}, nil
}

// buildPromptMessages assembles [policy, grounding, history|user]. The
// grounding block is always its own system message so variable retrieved
// content never dilutes the behavioral policy.
func buildPromptMessages(policy, grounding string, history []models.ChatMessage, userText string) []models.ChatMessage {
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	msgs := make([]models.ChatMessage, 0, len(history)+3)
	msgs = append(msgs,
		models.ChatMessage{Role: "system", Content: policy},
		models.ChatMessage{Role: "system", Content: grounding},
	)
	if len(history) > 0 {
		msgs = append(msgs, history...)
	} else {
		msgs = append(msgs, models.ChatMessage{Role: "user", Content: userText})
	}
	return msgs
}

// ============================================================================
// Responses API fallback client
// ============================================================================

// responsesClient talks to the provider's responses endpoint directly.
// Same provider and credentials as the primary path, different envelope.
type responsesClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newResponsesClient(baseURL, apiKey string, timeout time.Duration) *responsesClient {
	return &responsesClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type responsesRequest struct {
	Model string                `json:"model"`
	Input []responsesInputEntry `json:"input"`
}

type responsesInputEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responsesEnvelope covers the fields needed to pull the generated text out
// of a responses-endpoint reply.
type responsesEnvelope struct {
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// Create sends the prompt messages through the responses endpoint and
// adapts the reply into a ModelAnswer.
func (c *responsesClient) Create(ctx context.Context, model string, msgs []models.ChatMessage) (ModelAnswer, error) {
	input := make([]responsesInputEntry, 0, len(msgs))
	for _, m := range msgs {
		input = append(input, responsesInputEntry{Role: m.Role, Content: m.Content})
	}

	jsonBody, err := json.Marshal(responsesRequest{Model: model, Input: input})
	if err != nil {
		return ModelAnswer{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewBuffer(jsonBody))
	if err != nil {
		return ModelAnswer{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ModelAnswer{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ModelAnswer{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ModelAnswer{}, fmt.Errorf("responses endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var envelope responsesEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ModelAnswer{}, fmt.Errorf("failed to parse response: %w", err)
	}

	var b strings.Builder
	for _, out := range envelope.Output {
		if out.Type != "" && out.Type != "message" {
			continue
		}
		for _, content := range out.Content {
			if content.Type != "" && content.Type != "output_text" {
				continue
			}
			b.WriteString(content.Text)
		}
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return ModelAnswer{}, fmt.Errorf("no output text in responses envelope")
	}
	return ModelAnswer{Text: text}, nil
}
