package llm

import (
	"math"
	"sort"

	"go.uber.org/zap"
)

// FallbackResponder 是合成兜底 responder 的名称。
const FallbackResponder = "fallback"

// Deployment 把 responder 名称绑定到连接、模型与优先级。
type Deployment struct {
	Name     string `json:"name"`
	Model    string `json:"model"`
	Priority int    `json:"priority"` // 越小越先尝试
	BaseURL  string `json:"base_url,omitempty"`
	// RequiresCredential 为 true 时每次调用前都要向 CredentialSource 取有效 token
	RequiresCredential bool `json:"requires_credential"`
	Enabled            bool `json:"enabled"`
	Synthetic          bool `json:"synthetic,omitempty"`

	Client ResponderClient `json:"-"`
}

// normalizeDeployments 过滤禁用项、按名称去重并按优先级稳定排序，
// 最后追加合成兜底部署。同名部署只保留优先级最高（数值最小）的一个。
func normalizeDeployments(in []Deployment, logger *zap.Logger) []Deployment {
	byName := make(map[string]int, len(in))
	out := make([]Deployment, 0, len(in)+1)
	for _, d := range in {
		switch {
		case !d.Enabled:
			continue
		case d.Name == "" || d.Client == nil:
			logger.Warn("skipping incomplete deployment", zap.String("responder", d.Name))
			continue
		case d.Name == FallbackResponder || d.Synthetic:
			logger.Warn("reserved deployment name ignored", zap.String("responder", d.Name))
			continue
		}
		if idx, ok := byName[d.Name]; ok {
			logger.Warn("duplicate deployment", zap.String("responder", d.Name), zap.Int("priority", d.Priority))
			if d.Priority < out[idx].Priority {
				out[idx] = d
			}
			continue
		}
		byName[d.Name] = len(out)
		out = append(out, d)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return append(out, fallbackDeployment())
}

func fallbackDeployment() Deployment {
	return Deployment{
		Name:      FallbackResponder,
		Model:     FallbackResponder,
		Priority:  math.MaxInt,
		Enabled:   true,
		Synthetic: true,
		Client:    fallbackClient{},
	}
}

// orderFor 返回以 preferred 优先的尝试顺序，排序键为 (name==preferred ? 0 : 1, priority)。
// 合成部署始终在最后。
func orderFor(deployments []Deployment, preferred string) []Deployment {
	ranked := deployments[:len(deployments)-1]
	out := make([]Deployment, len(ranked), len(deployments))
	copy(out, ranked)
	if preferred != "" {
		key := func(d Deployment) int {
			if d.Name == preferred {
				return 0
			}
			return 1
		}
		sort.SliceStable(out, func(i, j int) bool {
			ki, kj := key(out[i]), key(out[j])
			if ki != kj {
				return ki < kj
			}
			return out[i].Priority < out[j].Priority
		})
	}
	return append(out, deployments[len(deployments)-1])
}
