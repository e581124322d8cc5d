package platform

import (
	"fmt"

	"github.com/socialpulse/socialpulse-backend/internal/social"
)

// Registry maps platforms to their adapters. It is populated once at startup
// and read-only afterwards, so business logic never dispatches on platform
// strings.
type Registry struct {
	adapters map[social.Platform]Adapter
}

// NewRegistry creates a registry over the given adapters. Registering two
// adapters for the same platform is a configuration error.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[social.Platform]Adapter, len(adapters))}
	for _, a := range adapters {
		p := a.Platform()
		if !p.Valid() {
			return nil, fmt.Errorf("adapter for unsupported platform %q", p)
		}
		if _, exists := r.adapters[p]; exists {
			return nil, fmt.Errorf("duplicate adapter for platform %q", p)
		}
		r.adapters[p] = a
	}
	return r, nil
}

// Adapter returns the adapter registered for p.
func (r *Registry) Adapter(p social.Platform) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for platform %q", p)
	}
	return a, nil
}

// Platforms lists the platforms with a registered adapter.
func (r *Registry) Platforms() []social.Platform {
	platforms := make([]social.Platform, 0, len(r.adapters))
	for _, p := range social.AllPlatforms {
		if _, ok := r.adapters[p]; ok {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

// HealthByPlatform reports every registered adapter's health, for the
// health endpoint.
func (r *Registry) HealthByPlatform() map[social.Platform]Health {
	result := make(map[social.Platform]Health, len(r.adapters))
	for p, a := range r.adapters {
		result[p] = a.Health()
	}
	return result
}
