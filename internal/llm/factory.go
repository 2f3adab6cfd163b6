// Package llm - Provider factory
package llm

import (
	"fmt"
	"sort"
)

// NewProvider creates a provider instance from config.
// Dispatches to the appropriate constructor based on cfg.Driver.
func NewProvider(cfg BackendConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverOpenAI:
		return NewOpenAIProvider(cfg)
	case DriverOllama:
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider driver: %s", cfg.Driver)
	}
}

// NewProviders builds every backend and returns them ordered by ascending
// priority. Ties keep their configured order.
func NewProviders(cfgs []BackendConfig) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	seen := make(map[string]bool, len(cfgs))
	for _, cfg := range cfgs {
		if seen[cfg.Name] {
			return nil, fmt.Errorf("duplicate backend name: %s", cfg.Name)
		}
		seen[cfg.Name] = true

		p, err := NewProvider(cfg)
		if err != nil {
			return nil, fmt.Errorf("backend %s: %w", cfg.Name, err)
		}
		providers = append(providers, p)
	}
	SortByPriority(providers)
	return providers, nil
}

// SortByPriority orders providers by ascending priority, stable for ties.
func SortByPriority(providers []Provider) {
	sort.SliceStable(providers, func(i, j int) bool {
		return providers[i].Priority() < providers[j].Priority()
	})
}
