package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/api"
	"github.com/ruipedro-pinheiro/CHIKA/auth"
	"github.com/ruipedro-pinheiro/CHIKA/llm"
	"github.com/ruipedro-pinheiro/CHIKA/llm/circuitbreaker"
)

// =============================================================================
// 🔌 Provider 信息 Handler
// =============================================================================

// DeploymentLister 返回按路由顺序排列的部署，llm.Router 实现该接口
type DeploymentLister interface {
	Deployments() []llm.Deployment
}

// CredentialStatuser 返回 OAuth 凭据状态，auth.Adapter 实现该接口
type CredentialStatuser interface {
	Statuses(ctx context.Context) ([]auth.Status, error)
}

// ProviderHandler 列出 responder 部署
type ProviderHandler struct {
	router      DeploymentLister
	credentials CredentialStatuser
	breakers    *circuitbreaker.Group
	logger      *zap.Logger
}

// NewProviderHandler 创建处理器，credentials 与 breakers 可为 nil
func NewProviderHandler(router DeploymentLister, credentials CredentialStatuser, breakers *circuitbreaker.Group, logger *zap.Logger) *ProviderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProviderHandler{
		router:      router,
		credentials: credentials,
		breakers:    breakers,
		logger:      logger.With(zap.String("component", "provider_handler")),
	}
}

// HandleList 返回部署列表与凭据状态
// @Summary Provider 列表
// @Tags Provider
// @Produce json
// @Success 200 {object} api.ProvidersResponse
// @Router /api/v1/providers [get]
func (h *ProviderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	var states map[string]circuitbreaker.State
	if h.breakers != nil {
		states = h.breakers.States()
	}

	deployments := h.router.Deployments()
	resp := api.ProvidersResponse{Providers: make([]api.ProviderInfo, 0, len(deployments))}
	for _, d := range deployments {
		info := api.ProviderInfo{
			Name:               d.Name,
			Model:              d.Model,
			Priority:           d.Priority,
			RequiresCredential: d.RequiresCredential,
			Synthetic:          d.Synthetic,
		}
		if st, ok := states[d.Name]; ok {
			info.Breaker = st.String()
		}
		resp.Providers = append(resp.Providers, info)
	}

	if h.credentials != nil {
		statuses, err := h.credentials.Statuses(r.Context())
		if err != nil {
			// 凭据存储不可用不影响部署列表
			h.logger.Warn("failed to list credential statuses", zap.Error(err))
		}
		for _, s := range statuses {
			resp.Credentials = append(resp.Credentials, api.CredentialInfo{
				Provider:    s.Provider,
				HasToken:    s.HasToken,
				Expired:     s.Expired,
				ExpiresAt:   s.ExpiresAt,
				Refreshable: s.Refreshable,
			})
		}
	}

	WriteSuccess(w, r, resp)
}
