package llms

import (
	"fmt"

	"github.com/agourakis82/beagle/pkg/registry"
)

// ProviderRegistry holds named providers for the orchestrator.
type ProviderRegistry struct {
	*registry.BaseRegistry[Provider]
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

func (r *ProviderRegistry) RegisterProvider(p Provider) error {
	if p == nil {
		return fmt.Errorf("provider cannot be nil")
	}
	return r.Register(p.Name(), p)
}

// ByTier returns registered providers in the given tier, preserving
// registration order.
func (r *ProviderRegistry) ByTier(tier Tier) []Provider {
	var out []Provider
	for _, p := range r.List() {
		if p.Tier() == tier {
			out = append(out, p)
		}
	}
	return out
}
