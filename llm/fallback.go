package llm

import (
	"context"
	"time"
)

// NoResponderMessage 是没有任何 responder 可用时返回给用户的固定文本。
const NoResponderMessage = `No AI responder is available right now.

None of the configured responders answered this message. An administrator can:
  - start a local Ollama instance (ollama serve) and pull the configured model
  - configure an API key for claude, gpt, gemini or grok
  - connect an OAuth account for claude, gpt or gemini

Your message was received; please try again once a responder is configured.`

// fallbackClient 是合成的兜底 responder，永远成功。
type fallbackClient struct{}

func (fallbackClient) Name() string { return FallbackResponder }

func (fallbackClient) Completion(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	return &ChatResponse{
		Provider: FallbackResponder,
		Model:    req.Model,
		Choices: []ChatChoice{{
			FinishReason: "stop",
			Message:      Message{Role: RoleAssistant, Content: NoResponderMessage, Name: FallbackResponder},
		}},
		CreatedAt: time.Now(),
	}, nil
}
