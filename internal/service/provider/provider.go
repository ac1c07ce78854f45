// Package provider holds per-provider metadata used by the router.
package provider

import (
	"sync"

	"proxy-router-platform/internal/models"

	"go.uber.org/zap"
)

// Defaults is the fallback model binding for a provider and media type, used
// when an account carries no explicit model configs.
type Defaults struct {
	Model    string
	UnitCost float64
}

// Registry maps providers to their default model bindings.
type Registry struct {
	mu       sync.RWMutex
	defaults map[string]map[models.MediaType]Defaults
	logger   *zap.Logger
}

// NewRegistry creates a registry pre-populated with the built-in providers.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		defaults: make(map[string]map[models.MediaType]Defaults),
		logger:   logger,
	}

	r.Register("openai", models.MediaText, Defaults{Model: "gpt-4o", UnitCost: 5})
	r.Register("openai", models.MediaImage, Defaults{Model: "dall-e-3", UnitCost: 40})
	r.Register("anthropic", models.MediaText, Defaults{Model: "claude-sonnet-4", UnitCost: 3})
	r.Register("google", models.MediaText, Defaults{Model: "gemini-pro", UnitCost: 2})
	r.Register("google", models.MediaImage, Defaults{Model: "imagen-3", UnitCost: 30})
	r.Register("google", models.MediaVideo, Defaults{Model: "veo-2", UnitCost: 350})
	r.Register("stability", models.MediaImage, Defaults{Model: "sd3-large", UnitCost: 65})
	r.Register("runway", models.MediaVideo, Defaults{Model: "gen-3-alpha", UnitCost: 250})

	return r
}

// Register sets the default binding for a provider and media type.
func (r *Registry) Register(provider string, mediaType models.MediaType, d Defaults) {
	r.mu.Lock()
	defer r.mu.Unlock()

	byMedia, ok := r.defaults[provider]
	if !ok {
		byMedia = make(map[models.MediaType]Defaults)
		r.defaults[provider] = byMedia
	}
	byMedia[mediaType] = d
}

// Default returns the fallback binding for a provider and media type.
func (r *Registry) Default(provider string, mediaType models.MediaType) (Defaults, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byMedia, ok := r.defaults[provider]
	if !ok {
		return Defaults{}, false
	}
	d, ok := byMedia[mediaType]
	return d, ok
}

// Providers returns the registered provider names.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defaults))
	for name := range r.defaults {
		names = append(names, name)
	}
	return names
}
