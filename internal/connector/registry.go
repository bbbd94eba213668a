package connector

import "strings"

type Registry struct {
	connectors map[string]Connector
}

func NewRegistry(connectors ...Connector) *Registry {
	registry := &Registry{connectors: map[string]Connector{}}
	for _, c := range connectors {
		if c == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(c.Provider()))
		if provider == "" {
			continue
		}
		registry.connectors[provider] = c
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	_, ok := r.connectors[provider]
	return ok
}

func (r *Registry) Get(provider string) (Connector, error) {
	if r == nil {
		return nil, ErrProviderNotFound
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	c, ok := r.connectors[provider]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return c, nil
}
