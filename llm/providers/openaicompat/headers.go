package openaicompat

import (
	"net/http"

	"github.com/ruipedro-pinheiro/CHIKA/llm"
)

// HeaderBuilder sets authentication headers for one upstream.
type HeaderBuilder func(req *http.Request, cred llm.CredentialOverride)

const (
	anthropicVersion   = "2023-06-01"
	anthropicOAuthBeta = "oauth-2025-04-20"
)

// BearerHeaders sets "Authorization: Bearer <key>" when a key is present.
// Local upstreams such as Ollama accept requests without one.
func BearerHeaders(req *http.Request, cred llm.CredentialOverride) {
	if cred.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cred.APIKey)
	}
}

// AnthropicHeaders authenticates with x-api-key for console keys and with a
// bearer token plus the OAuth beta flag for OAuth access tokens.
func AnthropicHeaders(req *http.Request, cred llm.CredentialOverride) {
	req.Header.Set("anthropic-version", anthropicVersion)
	if cred.APIKey == "" {
		return
	}
	if cred.OAuth {
		req.Header.Set("Authorization", "Bearer "+cred.APIKey)
		req.Header.Set("anthropic-beta", anthropicOAuthBeta)
		return
	}
	req.Header.Set("x-api-key", cred.APIKey)
}

// HeadersFor returns the header builder used for a responder name.
func HeadersFor(responder string) HeaderBuilder {
	if responder == "claude" {
		return AnthropicHeaders
	}
	return BearerHeaders
}
