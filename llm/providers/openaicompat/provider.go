// =============================================================================
// CHIKA OpenAI-Compatible Responder Client
// =============================================================================
// Shared implementation for every responder. Vendors differ only in base
// URL, endpoint path, default model and authentication headers.
// =============================================================================

package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/internal/tlsutil"
	"github.com/ruipedro-pinheiro/CHIKA/llm"
	"github.com/ruipedro-pinheiro/CHIKA/llm/providers"
)

// Config 单个 responder 的上游配置
type Config struct {
	ProviderName string
	// APIKey 静态 key，ctx 中的 CredentialOverride 优先
	APIKey        string
	BaseURL       string
	DefaultModel  string
	FallbackModel string
	// Timeout 为 0 时使用 llm.DefaultCallTimeout
	Timeout time.Duration
	// EndpointPath 默认 /v1/chat/completions，ModelsEndpoint 默认 /v1/models
	EndpointPath   string
	ModelsEndpoint string
	// BuildHeaders 为 nil 时使用 BearerHeaders
	BuildHeaders HeaderBuilder
}

// Provider 实现 llm.ResponderClient
type Provider struct {
	Cfg    Config
	Client *http.Client
	Logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Provider {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = llm.DefaultCallTimeout
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if cfg.BuildHeaders == nil {
		cfg.BuildHeaders = BearerHeaders
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		Cfg:    cfg,
		Client: tlsutil.SecureHTTPClient(timeout),
		Logger: logger.With(zap.String("component", "responder_client"), zap.String("responder", cfg.ProviderName)),
	}
}

func (p *Provider) Name() string { return p.Cfg.ProviderName }

// credential 优先使用 ctx 中的覆盖凭据（OAuth token），否则用静态 key
func (p *Provider) credential(ctx context.Context) llm.CredentialOverride {
	if c, ok := llm.CredentialOverrideFromContext(ctx); ok {
		if key := strings.TrimSpace(c.APIKey); key != "" {
			return llm.CredentialOverride{APIKey: key, OAuth: c.OAuth}
		}
	}
	return llm.CredentialOverride{APIKey: p.Cfg.APIKey}
}

// send 发出带鉴权头的请求；payload 非 nil 时以 JSON 编码为请求体
func (p *Provider) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	url := strings.TrimRight(p.Cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	p.Cfg.BuildHeaders(req, p.credential(ctx))
	return p.Client.Do(req)
}

// upstreamError 传输层或响应解析失败，统一映射为 502
func (p *Provider) upstreamError(code llm.ErrorCode, msg string, retryable bool) *llm.Error {
	return &llm.Error{
		Code:       code,
		Message:    msg,
		HTTPStatus: http.StatusBadGateway,
		Retryable:  retryable,
		Provider:   p.Name(),
	}
}

// HealthCheck 通过列出模型探测上游是否可达
func (p *Provider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	start := time.Now()
	resp, err := p.send(ctx, http.MethodGet, p.Cfg.ModelsEndpoint, nil)
	status := &llm.HealthStatus{Latency: time.Since(start)}
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("%s health check failed: status=%d msg=%s",
			p.Name(), resp.StatusCode, providers.ReadErrorMessage(resp.Body))
	}
	status.Healthy = true
	return status, nil
}

// Completion 非流式对话补全
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := p.send(ctx, http.MethodPost, p.Cfg.EndpointPath, providers.OpenAICompatRequest{
		Model:       providers.ChooseModel(req, p.Cfg.DefaultModel, p.Cfg.FallbackModel),
		Messages:    providers.ConvertMessagesToOpenAI(req.Messages),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, p.upstreamError(llm.ErrUpstreamTimeout, err.Error(), true)
		}
		return nil, p.upstreamError(llm.ErrUpstreamError, err.Error(), true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, providers.MapHTTPError(resp.StatusCode, providers.ReadErrorMessage(resp.Body), p.Name())
	}

	var out providers.OpenAICompatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, p.upstreamError(llm.ErrUpstreamError, err.Error(), true)
	}
	if len(out.Choices) == 0 {
		return nil, p.upstreamError(llm.ErrUpstreamError, "response contained no choices", false)
	}

	p.Logger.Debug("completion finished",
		zap.String("model", out.Model),
		zap.Duration("latency", time.Since(start)),
	)
	return providers.ToLLMChatResponse(out, p.Name()), nil
}
