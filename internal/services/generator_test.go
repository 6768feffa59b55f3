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
	"github.com/stretchr/testify/require"

	"sales-copilot/internal/models"
)

func newTestGenerator(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *OpenAIGenerator) {
	server := httptest.NewServer(handler)
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	gen := NewOpenAIGenerator(GeneratorConfig{
		APIKey:  "test-key",
		Model:   "gpt-5-mini",
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	}, logger)
	return server, gen
}

func chatCompletionJSON(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id":     "cmpl-test",
		"object": "chat.completion",
		"model":  "gpt-5-mini",
		"choices": []map[string]any{
			{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": text},
				"finish_reason": "stop",
			},
		},
	})
}

func responsesJSON(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"id": "resp-test",
		"output": []map[string]any{
			{"type": "reasoning", "content": []map[string]any{}},
			{
				"type": "message",
				"content": []map[string]any{
					{"type": "output_text", "text": text},
				},
			},
		},
	})
}

func TestGenerate(t *testing.T) {
	var gotAuth string
	var gotReq struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		chatCompletionJSON(w, "The U2400 bonds to the membrane.")
	}

	server, gen := newTestGenerator(t, handler)
	defer server.Close()

	answer := gen.Generate(context.Background(), "policy text", "grounding block", nil, "what is the u2400?")

	assert.Equal(t, "The U2400 bonds to the membrane.", answer)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "gpt-5-mini", gotReq.Model)
	require.Len(t, gotReq.Messages, 3)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "policy text", gotReq.Messages[0].Content)
	assert.Equal(t, "grounding block", gotReq.Messages[1].Content)
	assert.Equal(t, "user", gotReq.Messages[2].Role)
	assert.Equal(t, "what is the u2400?", gotReq.Messages[2].Content)
}

func TestGenerate_HistoryReplacesSingleUserMessage(t *testing.T) {
	var gotRoles []string

	handler := func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role string `json:"role"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotRoles = gotRoles[:0]
		for _, m := range req.Messages {
			gotRoles = append(gotRoles, m.Role)
		}
		chatCompletionJSON(w, "ok")
	}

	server, gen := newTestGenerator(t, handler)
	defer server.Close()

	history := []models.ChatMessage{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "first answer"},
		{Role: "user", Content: "follow-up"},
	}
	gen.Generate(context.Background(), "policy", "grounding", history, "ignored when history present")

	assert.Equal(t, []string{"system", "system", "user", "assistant", "user"}, gotRoles)
}

func TestGenerate_HistoryBounded(t *testing.T) {
	var gotCount int

	handler := func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []json.RawMessage `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotCount = len(req.Messages)
		chatCompletionJSON(w, "ok")
	}

	server, gen := newTestGenerator(t, handler)
	defer server.Close()

	history := make([]models.ChatMessage, 40)
	for i := range history {
		history[i] = models.ChatMessage{Role: "user", Content: "turn"}
	}
	gen.Generate(context.Background(), "policy", "grounding", history, "")

	// 2 system messages plus the most recent 18 history turns.
	assert.Equal(t, 20, gotCount)
}

func TestGenerate_FallsBackToResponsesEndpoint(t *testing.T) {
	var chatCalls, responsesCalls int32

	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/completions":
			atomic.AddInt32(&chatCalls, 1)
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusInternalServerError)
		case "/responses":
			atomic.AddInt32(&responsesCalls, 1)
			responsesJSON(w, "fallback answer")
		default:
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
	}

	server, gen := newTestGenerator(t, handler)
	defer server.Close()

	answer := gen.Generate(context.Background(), "policy", "grounding", nil, "question")

	assert.Equal(t, "fallback answer", answer)
	assert.Equal(t, int32(1), atomic.LoadInt32(&chatCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&responsesCalls))
}

func TestGenerate_AllAttemptsFail(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"down"}}`, http.StatusInternalServerError)
	}

	server, gen := newTestGenerator(t, handler)
	defer server.Close()

	answer := gen.Generate(context.Background(), "policy", "grounding", nil, "question")
	assert.Equal(t, generationFailedAnswer, answer)
}

func TestGenerate_EmptyPrimaryTriggersFallback(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chat/completions":
			chatCompletionJSON(w, "   ")
		case "/responses":
			responsesJSON(w, "real answer")
		}
	}

	server, gen := newTestGenerator(t, handler)
	defer server.Close()

	answer := gen.Generate(context.Background(), "policy", "grounding", nil, "question")
	assert.Equal(t, "real answer", answer)
}

func TestRewrite(t *testing.T) {
	var gotUserContent string

	handler := func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, m := range req.Messages {
			if m.Role == "user" {
				gotUserContent = m.Content
			}
		}
		chatCompletionJSON(w, "Here's the short version.")
	}

	server, gen := newTestGenerator(t, handler)
	defer server.Close()

	out, err := gen.Rewrite(context.Background(), "policy", "grounding", "what sizes?", "**U-Anchors**\n- size 1\n- size 2")

	require.NoError(t, err)
	assert.Equal(t, "Here's the short version.", out)
	assert.Contains(t, gotUserContent, "QUESTION:\nwhat sizes?")
	assert.Contains(t, gotUserContent, "DRAFT ANSWER:\n**U-Anchors**")
}

func TestRewrite_SurfacesErrors(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"down"}}`, http.StatusInternalServerError)
	}

	server, gen := newTestGenerator(t, handler)
	defer server.Close()

	_, err := gen.Rewrite(context.Background(), "policy", "grounding", "q", "draft")
	assert.Error(t, err)
}

func TestRewrite_EmptyTextIsError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		chatCompletionJSON(w, "")
	}

	server, gen := newTestGenerator(t, handler)
	defer server.Close()

	_, err := gen.Rewrite(context.Background(), "policy", "grounding", "q", "draft")
	assert.Error(t, err)
}
