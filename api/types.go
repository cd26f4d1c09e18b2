package api

import (
	"strings"
	"time"

	"github.com/ruipedro-pinheiro/CHIKA/types"
)

// =============================================================================
// 协作请求类型
// =============================================================================

// CollaborateRequest 是 POST /api/v1/rooms/{room}/collaborate 的请求体。
type CollaborateRequest struct {
	// 用户消息
	Message string `json:"message" example:"@claude can you review this function?"`
	// 房间中启用的 responder，顺序即兜底顺序
	ActiveResponders []string `json:"active_responders,omitempty" example:"claude,gpt"`
	// 房间历史，按时间先后排列
	Context []ContextTurn `json:"context,omitempty"`
}

// ContextTurn 房间历史中的一条消息。
type ContextTurn struct {
	// user 或 assistant
	Role string `json:"role" example:"assistant"`
	// 发言者，assistant 时为 responder 名称
	Author string `json:"author,omitempty" example:"gpt"`
	// 内容
	Content string `json:"content"`
}

// Turns 把请求历史转换为对话轮次。未知角色按 user 处理。
func (r *CollaborateRequest) Turns() []types.Turn {
	turns := make([]types.Turn, 0, len(r.Context))
	for _, c := range r.Context {
		role := types.Role(strings.ToLower(strings.TrimSpace(c.Role)))
		switch role {
		case types.RoleAssistant, types.RoleSystem:
		default:
			role = types.RoleUser
		}
		author := c.Author
		if author == "" && role == types.RoleUser {
			author = types.AuthorUser
		}
		turns = append(turns, types.Turn{Role: role, Author: author, Content: c.Content})
	}
	return turns
}

// NormalizedResponders 返回小写、去空格、去重后的 responder 名称，保持原顺序。
func (r *CollaborateRequest) NormalizedResponders() []string {
	seen := make(map[string]bool, len(r.ActiveResponders))
	out := make([]string, 0, len(r.ActiveResponders))
	for _, name := range r.ActiveResponders {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// =============================================================================
// Provider 信息
// =============================================================================

// ProviderInfo 是 GET /api/v1/providers 返回的一项，按路由顺序排列。
type ProviderInfo struct {
	Name               string `json:"name" example:"claude"`
	Model              string `json:"model" example:"claude-sonnet-4-5"`
	Priority           int    `json:"priority" example:"1"`
	RequiresCredential bool   `json:"requires_credential"`
	Synthetic          bool   `json:"synthetic,omitempty"`
	// 熔断器状态：Closed, Open, HalfOpen；未启用熔断或尚未调用时为空
	Breaker string `json:"breaker,omitempty" example:"Closed"`
}

// CredentialInfo OAuth 凭据状态，不含 token 内容。
type CredentialInfo struct {
	Provider    string    `json:"provider"`
	HasToken    bool      `json:"has_token"`
	Expired     bool      `json:"expired"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	Refreshable bool      `json:"refreshable"`
}

// ProvidersResponse 是 GET /api/v1/providers 的 data 字段。
type ProvidersResponse struct {
	Providers   []ProviderInfo   `json:"providers"`
	Credentials []CredentialInfo `json:"credentials,omitempty"`
}
