package factory

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/ruipedro-pinheiro/CHIKA/config"
	"github.com/ruipedro-pinheiro/CHIKA/llm"
	"github.com/ruipedro-pinheiro/CHIKA/llm/providers"
	"github.com/ruipedro-pinheiro/CHIKA/llm/providers/openaicompat"
)

// NewResponderClient creates the client for one responder name. Unknown names
// require a base URL and are treated as generic OpenAI-compatible upstreams.
func NewResponderClient(name string, rc config.ResponderConfig, timeout time.Duration, logger *zap.Logger) (llm.ResponderClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ep, builtin := providers.DefaultEndpoints[name]
	if !builtin && rc.BaseURL == "" {
		return nil, fmt.Errorf("unknown responder %q: base_url is required", name)
	}

	cfg := openaicompat.Config{
		ProviderName:   name,
		APIKey:         rc.APIKey,
		BaseURL:        firstNonEmpty(rc.BaseURL, ep.BaseURL),
		DefaultModel:   firstNonEmpty(rc.Model, ep.Model),
		Timeout:        timeout,
		EndpointPath:   ep.EndpointPath,
		ModelsEndpoint: ep.ModelsPath,
		BuildHeaders:   openaicompat.HeadersFor(name),
	}
	return openaicompat.New(cfg, logger), nil
}

// BuildDeployments turns responder config into router deployments.
//
// A responder is deployed when it is enabled and can authenticate: local
// upstreams need nothing, others need a static API key or OAuth. OAuth
// deployments fetch a fresh token from the credential source on every call.
func BuildDeployments(cfg config.RespondersConfig, timeout time.Duration, logger *zap.Logger) []llm.Deployment {
	if logger == nil {
		logger = zap.NewNop()
	}

	byName := cfg.ByName()
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]llm.Deployment, 0, len(names))
	for _, name := range names {
		rc := byName[name]
		if !rc.Enabled {
			logger.Debug("responder disabled", zap.String("responder", name))
			continue
		}

		ep := providers.DefaultEndpoints[name]
		if !ep.Local && rc.APIKey == "" && !rc.OAuth {
			logger.Info("responder has no credentials, not deployed", zap.String("responder", name))
			continue
		}

		client, err := NewResponderClient(name, rc, timeout, logger)
		if err != nil {
			logger.Warn("failed to create responder client", zap.String("responder", name), zap.Error(err))
			continue
		}

		priority := ep.Priority
		if rc.Priority > 0 {
			priority = rc.Priority
		}

		out = append(out, llm.Deployment{
			Name:               name,
			Model:              firstNonEmpty(rc.Model, ep.Model),
			Priority:           priority,
			BaseURL:            firstNonEmpty(rc.BaseURL, ep.BaseURL),
			RequiresCredential: rc.OAuth && rc.APIKey == "",
			Enabled:            true,
			Client:             client,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out
}

// SupportedResponders returns the built-in responder names.
func SupportedResponders() []string {
	names := make([]string, 0, len(providers.DefaultEndpoints))
	for name := range providers.DefaultEndpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
