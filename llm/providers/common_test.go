package providers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruipedro-pinheiro/CHIKA/llm"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		msg           string
		expectedCode  llm.ErrorCode
		expectedRetry bool
	}{
		{"401 unauthorized", http.StatusUnauthorized, "Invalid API key", llm.ErrUnauthorized, false},
		{"403 forbidden", http.StatusForbidden, "denied", llm.ErrForbidden, false},
		{"429 rate limited", http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{"400 quota", http.StatusBadRequest, "You exceeded your current quota", llm.ErrQuotaExceeded, false},
		{"400 credit", http.StatusBadRequest, "credit balance is too low", llm.ErrQuotaExceeded, false},
		{"400 plain", http.StatusBadRequest, "messages: field required", llm.ErrInvalidRequest, false},
		{"404 model missing", http.StatusNotFound, "model llama2 not found", llm.ErrProviderUnavailable, false},
		{"502 bad gateway", http.StatusBadGateway, "", llm.ErrUpstreamError, true},
		{"503 unavailable", http.StatusServiceUnavailable, "", llm.ErrUpstreamError, true},
		{"529 overloaded", 529, "Overloaded", llm.ErrModelOverloaded, true},
		{"500 internal", http.StatusInternalServerError, "", llm.ErrUpstreamError, true},
		{"418 other", http.StatusTeapot, "", llm.ErrUpstreamError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "gpt")
			assert.Equal(t, tt.expectedCode, err.Code)
			assert.Equal(t, tt.expectedRetry, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, "gpt", err.Provider)
			assert.Equal(t, tt.msg, err.Message)
		})
	}
}

func TestReadErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai shape with type", `{"error":{"message":"bad key","type":"auth"}}`, "bad key (type: auth)"},
		{"openai shape without type", `{"error":{"message":"bad key"}}`, "bad key"},
		{"plain text", "  upstream exploded \n", "upstream exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReadErrorMessage(strings.NewReader(tt.body)))
		})
	}
}

func TestChooseModel_Priority(t *testing.T) {
	assert.Equal(t, "req", ChooseModel(&llm.ChatRequest{Model: "req"}, "def", "fb"))
	assert.Equal(t, "def", ChooseModel(&llm.ChatRequest{}, "def", "fb"))
	assert.Equal(t, "fb", ChooseModel(nil, "", "fb"))
}

func TestConvertMessagesToOpenAI(t *testing.T) {
	out := ConvertMessagesToOpenAI([]llm.Message{
		{Role: llm.RoleUser, Content: "hi", Name: "user"},
		{Role: llm.RoleAssistant, Content: "hello", Name: "claude"},
		{Role: llm.RoleAssistant, Content: "odd", Name: "claude & gpt"},
	})
	require.Len(t, out, 3)
	assert.Equal(t, OpenAICompatMessage{Role: "user", Content: "hi", Name: "user"}, out[0])
	assert.Equal(t, "claude", out[1].Name)
	assert.Empty(t, out[2].Name)
}

func TestToLLMChatResponse(t *testing.T) {
	resp := ToLLMChatResponse(OpenAICompatResponse{
		ID:      "cmpl-1",
		Model:   "gpt-4o",
		Created: 1_700_000_000,
		Usage:   &OpenAICompatUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		Choices: []OpenAICompatChoice{{FinishReason: "stop", Message: OpenAICompatMessage{Role: "assistant", Content: "yo"}}},
	}, "gpt")

	text, ok := resp.FirstContent()
	require.True(t, ok)
	assert.Equal(t, "yo", text)
	assert.Equal(t, "gpt", resp.Provider)
	assert.Equal(t, 7, resp.Usage.TotalTokens)
	assert.Equal(t, int64(1_700_000_000), resp.CreatedAt.Unix())
}

func TestDefaultEndpoints(t *testing.T) {
	ollama := DefaultEndpoints["ollama"]
	assert.True(t, ollama.Local)
	assert.Equal(t, 1, ollama.Priority)
	for name, ep := range DefaultEndpoints {
		assert.NotEmpty(t, ep.BaseURL, name)
		assert.NotEmpty(t, ep.Model, name)
		if name != "ollama" {
			assert.False(t, ep.Local, name)
		}
	}
}
