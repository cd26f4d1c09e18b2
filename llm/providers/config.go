package providers

import (
	"time"

	"github.com/ruipedro-pinheiro/CHIKA/types"
)

// BaseProviderConfig 所有 responder 共享的基础配置字段。
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Endpoint 描述一个上游的默认连接参数。
type Endpoint struct {
	BaseURL      string
	EndpointPath string
	ModelsPath   string
	Model        string
	Priority     int
	// Local 为 true 表示无需任何凭据即可调用（如本地 Ollama）
	Local bool
}

// DefaultEndpoints 各 responder 的默认端点，均走 OpenAI 兼容的 chat completions 接口。
var DefaultEndpoints = map[string]Endpoint{
	types.ResponderOllama: {
		BaseURL:      "http://localhost:11434",
		EndpointPath: "/v1/chat/completions",
		ModelsPath:   "/v1/models",
		Model:        "llama2",
		Priority:     1,
		Local:        true,
	},
	types.ResponderClaude: {
		BaseURL:      "https://api.anthropic.com",
		EndpointPath: "/v1/chat/completions",
		ModelsPath:   "/v1/models",
		Model:        "claude-3-5-sonnet-latest",
		Priority:     2,
	},
	types.ResponderGPT: {
		BaseURL:      "https://api.openai.com",
		EndpointPath: "/v1/chat/completions",
		ModelsPath:   "/v1/models",
		Model:        "gpt-4o",
		Priority:     3,
	},
	types.ResponderGemini: {
		BaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai",
		EndpointPath: "/chat/completions",
		ModelsPath:   "/models",
		Model:        "gemini-1.5-pro",
		Priority:     4,
	},
	types.ResponderGrok: {
		BaseURL:      "https://api.x.ai",
		EndpointPath: "/v1/chat/completions",
		ModelsPath:   "/v1/models",
		Model:        "grok-beta",
		Priority:     5,
	},
}
