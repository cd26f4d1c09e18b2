package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/ruipedro-pinheiro/CHIKA/types"
)

// OAuth 提供方名称，也是 TokenStore 的键。
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
)

// TokenTypeOAuth 是目前唯一支持的 token 类型。
const TokenTypeOAuth = "oauth"

var (
	ErrTokenNotFound    = errors.New("token not found")
	ErrNoRefreshToken   = errors.New("no refresh token")
	ErrUnknownProvider  = errors.New("unknown oauth provider")
	ErrRefreshRejected  = errors.New("refresh rejected by provider")
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// Token 是一条已保存的 OAuth 凭据。Expires 为毫秒级 Unix 时间戳。
type Token struct {
	Provider string `json:"-"`
	Type     string `json:"type"`
	Access   string `json:"access"`
	Refresh  string `json:"refresh,omitempty"`
	Expires  int64  `json:"expires"`
}

// Expired 在 now 不早于 Expires 时返回 true。
func (t Token) Expired(now time.Time) bool {
	return now.UnixMilli() >= t.Expires
}

// ExpiresWithin 在 token 将于 d 内过期时返回 true。
func (t Token) ExpiresWithin(now time.Time, d time.Duration) bool {
	return t.Expired(now.Add(d))
}

// ExpiresAt 返回过期时间。
func (t Token) ExpiresAt() time.Time {
	return time.UnixMilli(t.Expires)
}

// ProviderFor 把 responder 名称映射到 OAuth 提供方。
func ProviderFor(responder string) (string, bool) {
	switch strings.ToLower(responder) {
	case types.ResponderClaude:
		return ProviderAnthropic, true
	case types.ResponderGPT:
		return ProviderOpenAI, true
	case types.ResponderGemini:
		return ProviderGoogle, true
	default:
		return "", false
	}
}
