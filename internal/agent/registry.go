package agent

import (
	"fmt"
	"sort"
	"strings"
)

// Provider identifiers accepted in session configuration.
const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
	ProviderOpenAI  = "openai"
)

// Registry holds the closed set of configured provider clients. Sessions
// select a provider+model pair at creation; the registry resolves the pair to
// a client at call time.
type Registry struct {
	clients map[string]LLMClient
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]LLMClient)}
}

// Register adds a provider client under the given identifier. Clients should
// already carry the retry policy (see NewRetryClient).
func (r *Registry) Register(provider string, client LLMClient) {
	if client == nil {
		panic("agent: cannot register nil client")
	}
	r.clients[strings.ToLower(strings.TrimSpace(provider))] = client
}

// Resolve returns the client registered for a provider identifier.
func (r *Registry) Resolve(provider string) (LLMClient, error) {
	client, ok := r.clients[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("agent: no client registered for provider %q", provider)
	}
	return client, nil
}

// Providers lists the registered provider identifiers, sorted.
func (r *Registry) Providers() []string {
	providers := make([]string, 0, len(r.clients))
	for p := range r.clients {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	return providers
}
