package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ruipedro-pinheiro/CHIKA/config"
	"github.com/ruipedro-pinheiro/CHIKA/internal/tlsutil"
)

// DefaultRefreshTimeout 单次刷新请求的超时
const DefaultRefreshTimeout = 15 * time.Second

// defaultExpiresIn 提供方未返回 expires_in 时假定的有效期（秒）
const defaultExpiresIn = 3600

// Endpoint 描述一个 OAuth token 端点。
type Endpoint struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// JSONBody 为 true 时以 JSON 提交，否则以表单提交
	JSONBody bool
}

// DefaultEndpoints 返回内置的三个 OAuth 端点，client id 取自配置。
func DefaultEndpoints(cfg config.CredentialsConfig) map[string]Endpoint {
	return map[string]Endpoint{
		ProviderAnthropic: {
			TokenURL: "https://console.anthropic.com/v1/oauth/token",
			ClientID: cfg.AnthropicClientID,
			JSONBody: true,
		},
		ProviderOpenAI: {
			TokenURL: "https://auth.openai.com/oauth/token",
			ClientID: cfg.OpenAIClientID,
		},
		ProviderGoogle: {
			TokenURL:     "https://oauth2.googleapis.com/token",
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleSecret,
		},
	}
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresher 用 refresh token 换取新的 access token 并写回存储。
// 同一提供方的并发刷新会被合并为一次请求。
type Refresher struct {
	store     TokenStore
	endpoints map[string]Endpoint
	client    *http.Client
	timeout   time.Duration
	skew      time.Duration
	group     singleflight.Group
	logger    *zap.Logger
	now       func() time.Time
}

// RefresherOption 配置 Refresher
type RefresherOption func(*Refresher)

// WithHTTPClient 替换默认 HTTP 客户端
func WithHTTPClient(c *http.Client) RefresherOption {
	return func(r *Refresher) { r.client = c }
}

// WithRefreshTimeout 设置单次刷新超时
func WithRefreshTimeout(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRefreshSkew 设置提前刷新窗口，需与 Adapter 的 skew 一致
func WithRefreshSkew(d time.Duration) RefresherOption {
	return func(r *Refresher) { r.skew = d }
}

// NewRefresher 创建 Refresher
func NewRefresher(store TokenStore, endpoints map[string]Endpoint, logger *zap.Logger, opts ...RefresherOption) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Refresher{
		store:     store,
		endpoints: endpoints,
		timeout:   DefaultRefreshTimeout,
		logger:    logger.With(zap.String("component", "token_refresher")),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = tlsutil.SecureHTTPClient(r.timeout)
	}
	return r
}

// Refresh 刷新 provider 的 token 并返回新 token。
// 调用方取消 ctx 只会让自己提前返回，进行中的刷新仍会完成并写回存储。
func (r *Refresher) Refresh(ctx context.Context, provider string) (Token, error) {
	ch := r.group.DoChan(provider, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return r.refresh(fctx, provider)
	})

	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Token{}, res.Err
		}
		return res.Val.(Token), nil
	}
}

func (r *Refresher) refresh(ctx context.Context, provider string) (Token, error) {
	ep, ok := r.endpoints[provider]
	if !ok || ep.TokenURL == "" {
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	old, err := r.store.Get(ctx, provider)
	if err != nil {
		return Token{}, err
	}
	// 另一个实例可能刚刷新过
	if old.Access != "" && !old.ExpiresWithin(r.now(), r.skew) {
		return old, nil
	}
	if old.Refresh == "" {
		return Token{}, ErrNoRefreshToken
	}

	req, err := r.buildRequest(ctx, ep, old.Refresh)
	if err != nil {
		return Token{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Token{}, fmt.Errorf("%w: status=%d body=%s", ErrRefreshRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var rr refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rr); err != nil {
		return Token{}, fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if rr.AccessToken == "" {
		return Token{}, fmt.Errorf("%w: empty access_token", ErrRefreshRejected)
	}

	expiresIn := rr.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	tok := Token{
		Provider: provider,
		Type:     TokenTypeOAuth,
		Access:   rr.AccessToken,
		Refresh:  rr.RefreshToken,
		Expires:  r.now().Add(time.Duration(expiresIn) * time.Second).UnixMilli(),
	}
	if tok.Refresh == "" {
		tok.Refresh = old.Refresh
	}

	if err := r.store.Save(ctx, provider, tok); err != nil {
		return Token{}, fmt.Errorf("failed to save refreshed token: %w", err)
	}

	r.logger.Info("oauth token refreshed",
		zap.String("provider", provider),
		zap.Time("expires_at", tok.ExpiresAt()))
	return tok, nil
}

func (r *Refresher) buildRequest(ctx context.Context, ep Endpoint, refreshToken string) (*http.Request, error) {
	fields := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     ep.ClientID,
	}
	if ep.ClientSecret != "" {
		fields["client_secret"] = ep.ClientSecret
	}

	var (
		body        io.Reader
		contentType string
	)
	if ep.JSONBody {
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	} else {
		form := url.Values{}
		for k, v := range fields {
			form.Set(k, v)
		}
		body = strings.NewReader(form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.TokenURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	return req, nil
}
