package providers

import (
	contractx "github.com/wshadow/advisor-engine/engine/contract"
)

type registryImpl struct {
	ordered []contractx.Provider
	byName  map[contractx.ProviderName]contractx.Provider
}

// NewRegistry builds the fixed provider registry in its stable order:
// context, quant, compliance, research.
func NewRegistry() contractx.ProviderRegistry {
	ordered := []contractx.Provider{
		NewContextProvider(),
		NewQuantProvider(),
		NewComplianceProvider(),
		NewResearchProvider(),
	}
	byName := make(map[contractx.ProviderName]contractx.Provider, len(ordered))
	for _, p := range ordered {
		byName[p.Name()] = p
	}
	return &registryImpl{ordered: ordered, byName: byName}
}

func (r *registryImpl) Providers() []contractx.Provider {
	return r.ordered
}

func (r *registryImpl) Lookup(name contractx.ProviderName) (contractx.Provider, bool) {
	p, ok := r.byName[name]
	return p, ok
}

func (r *registryImpl) Names() []contractx.ProviderName {
	names := make([]contractx.ProviderName, 0, len(r.ordered))
	for _, p := range r.ordered {
		names = append(names, p.Name())
	}
	return names
}
