package llm

import (
	"context"
	"encoding/json"

	"go.uber.org/zap/zapcore"
)

const redacted = "***"

type credentialKey struct{}

// CredentialOverride 单次调用使用的上游凭据，由 Router 从 CredentialSource 取得后放入 ctx。
// 只在进程内传递，API 请求体里无法携带。
type CredentialOverride struct {
	APIKey string
	// OAuth 为 true 时 APIKey 是 access token（Anthropic 需要 Bearer 头而不是 x-api-key）
	OAuth bool
}

func (c CredentialOverride) masked() string {
	if c.APIKey == "" {
		return ""
	}
	return redacted
}

func (c CredentialOverride) String() string {
	if c.APIKey == "" {
		return "CredentialOverride{}"
	}
	return "CredentialOverride{APIKey:" + redacted + "}"
}

func (c CredentialOverride) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		APIKey string `json:"api_key,omitempty"`
		OAuth  bool   `json:"oauth,omitempty"`
	}{c.masked(), c.OAuth})
}

// MarshalLogObject 让 zap.Object 只输出脱敏后的字段
func (c CredentialOverride) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("api_key", c.masked())
	enc.AddBool("oauth", c.OAuth)
	return nil
}

// WithCredentialOverride 空 APIKey 时原样返回 ctx
func WithCredentialOverride(ctx context.Context, c CredentialOverride) context.Context {
	if c.APIKey == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialKey{}, c)
}

func CredentialOverrideFromContext(ctx context.Context) (CredentialOverride, bool) {
	c, ok := ctx.Value(credentialKey{}).(CredentialOverride)
	return c, ok
}
