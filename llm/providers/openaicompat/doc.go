// Package openaicompat provides the HTTP ResponderClient shared by every
// upstream CHIKA talks to.
//
// Ollama, OpenAI, Anthropic, Gemini and Grok all expose an OpenAI-compatible
// Chat Completions endpoint. Instead of one client per vendor, each responder
// is an openaicompat.Provider configured with its base URL, default model and
// header builder:
//
//	p := openaicompat.New(openaicompat.Config{
//	    ProviderName: "claude",
//	    APIKey:       cfg.APIKey,
//	    BaseURL:      "https://api.anthropic.com",
//	    DefaultModel: "claude-3-5-sonnet-latest",
//	    BuildHeaders: openaicompat.AnthropicHeaders,
//	}, logger)
package openaicompat
