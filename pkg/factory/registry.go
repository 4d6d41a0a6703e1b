package factory

import (
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/inercia/go-llm-unify/pkg/llm"
)

// ProviderConstructor builds a client from a resolved configuration
type ProviderConstructor func(config llm.ClientConfig) (llm.Client, error)

type registry struct {
	mu           sync.RWMutex
	constructors map[string]ProviderConstructor
}

func (r *registry) set(name string, constructor ProviderConstructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[strings.ToLower(name)] = constructor
}

func (r *registry) get(name string) (ProviderConstructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	constructor, ok := r.constructors[strings.ToLower(name)]
	return constructor, ok
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.constructors))
}

var providers = &registry{constructors: map[string]ProviderConstructor{}}

// RegisterProvider registers a constructor under name. Names are
// case-insensitive and the last registration of a name wins.
func RegisterProvider(name string, constructor ProviderConstructor) {
	providers.set(name, constructor)
}

// GetProvider looks up the constructor registered under name
func GetProvider(name string) (ProviderConstructor, bool) {
	return providers.get(name)
}

// ListProviders returns the registered provider names in alphabetical order
func ListProviders() []string {
	return providers.names()
}
