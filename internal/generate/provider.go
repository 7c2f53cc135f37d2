// Package generate is the Core's view of the external language model:
// Generate(prompt_template_id, variables, params, deadline) -> text. The
// core never depends on a specific vendor; it depends on this interface.
package generate

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Params are the knobs the core passes through to the provider.
type Params struct {
	Temperature float64
	MaxTokens   int
}

// Request is one Generate call.
type Request struct {
	TemplateID string
	Variables  map[string]string
	Params     Params
	Deadline   time.Time
}

// Provider performs a single round trip against a language model,
// rendering the named template with Variables before calling out.
// Pure with respect to the core: timeouts surface as errors, never as
// partial state mutation.
type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a concrete Provider.
type Config struct {
	Provider string
	Model    string

	OpenAIBaseURL string
	OpenAIAPIKey  string

	ClaudeBaseURL string
	ClaudeAPIKey  string
}

func NewProvider(cfg Config) (Provider, error) {
	client := &http.Client{Timeout: 60 * time.Second}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(client, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.Model), nil
	case "claude":
		return NewClaudeProvider(client, cfg.ClaudeBaseURL, cfg.ClaudeAPIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown generate provider: %s", cfg.Provider)
	}
}
