package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/llm"
)

var _ llm.CredentialSource = (*Adapter)(nil)

// Adapter 实现 llm.CredentialSource。
type Adapter struct {
	store     TokenStore
	refresher *Refresher
	skew      time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdapter 创建凭据适配器。refresher 为 nil 时过期 token 不会被刷新。
// skew > 0 时，在 token 过期前 skew 内就尝试刷新，刷新失败仍使用旧 token。
func NewAdapter(store TokenStore, refresher *Refresher, skew time.Duration, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{
		store:     store,
		refresher: refresher,
		skew:      skew,
		logger:    logger.With(zap.String("component", "credential_adapter")),
		now:       time.Now,
	}
}

// GetValidToken 返回 responder 当前可用的 access token。
// 没有 token、刷新失败或 responder 不支持 OAuth 时返回 ("", false)。
func (a *Adapter) GetValidToken(ctx context.Context, responder string) (string, bool) {
	provider, ok := ProviderFor(responder)
	if !ok {
		a.logger.Debug("responder has no oauth provider", zap.String("responder", responder))
		return "", false
	}

	tok, err := a.store.Get(ctx, provider)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			a.logger.Debug("no stored token", zap.String("provider", provider))
		} else {
			a.logger.Warn("failed to load token", zap.String("provider", provider), zap.Error(err))
		}
		return "", false
	}

	now := a.now()
	if tok.Access != "" && !tok.ExpiresWithin(now, a.skew) {
		return tok.Access, true
	}

	stillValid := tok.Access != "" && !tok.Expired(now)
	if a.refresher == nil || tok.Refresh == "" {
		if stillValid {
			return tok.Access, true
		}
		a.logger.Debug("token expired and cannot be refreshed", zap.String("provider", provider))
		return "", false
	}

	fresh, err := a.refresher.Refresh(ctx, provider)
	if err != nil {
		a.logger.Warn("token refresh failed", zap.String("provider", provider), zap.Error(err))
		if stillValid {
			return tok.Access, true
		}
		return "", false
	}
	return fresh.Access, true
}

// Status 描述一个提供方的 token 状态，供 providers 接口展示。
type Status struct {
	Provider    string    `json:"provider"`
	HasToken    bool      `json:"has_token"`
	Expired     bool      `json:"expired"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Refreshable bool      `json:"refreshable"`
}

// Statuses 返回所有已保存 token 的状态，不含 token 内容。
func (a *Adapter) Statuses(ctx context.Context) ([]Status, error) {
	names, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := a.now()
	out := make([]Status, 0, len(names))
	for _, name := range names {
		tok, err := a.store.Get(ctx, name)
		if err != nil {
			continue
		}
		out = append(out, Status{
			Provider:    name,
			HasToken:    tok.Access != "",
			Expired:     tok.Expired(now),
			ExpiresAt:   tok.ExpiresAt(),
			Refreshable: tok.Refresh != "",
		})
	}
	return out, nil
}
