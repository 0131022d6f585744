package provider

import (
	"fmt"

	"github.com/rs/zerolog"

	"parley-server/internal/domain/chat"
)

// Registry maps provider ids to completion clients. It is constructed once
// at startup from configuration and passed by reference into request
// handlers; there is no ambient client state and no lazy construction.
type Registry struct {
	completers map[string]chat.Completer
}

// NewRegistry builds the provider registry from backend configs.
func NewRegistry(configs []Config, log zerolog.Logger) (*Registry, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no completion providers configured")
	}

	completers := make(map[string]chat.Completer, len(configs))
	for _, cfg := range configs {
		if cfg.ID == "" {
			return nil, fmt.Errorf("completion provider with empty id")
		}
		if _, dup := completers[cfg.ID]; dup {
			return nil, fmt.Errorf("duplicate completion provider %q", cfg.ID)
		}
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("completion provider %q has no api key", cfg.ID)
		}
		if cfg.Kind == KindAzure && cfg.Endpoint == "" {
			return nil, fmt.Errorf("azure provider %q has no endpoint", cfg.ID)
		}
		completers[cfg.ID] = NewOpenAIClient(cfg, log)
	}

	return &Registry{completers: completers}, nil
}

// Completer returns the client for a provider id.
func (r *Registry) Completer(provider string) (chat.Completer, error) {
	c, ok := r.completers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown completion provider %q", provider)
	}
	return c, nil
}

// IDs lists the configured provider ids.
func (r *Registry) IDs() []string {
	out := make([]string, 0, len(r.completers))
	for id := range r.completers {
		out = append(out, id)
	}
	return out
}

var _ chat.ProviderResolver = (*Registry)(nil)
