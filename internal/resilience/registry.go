package resilience

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Registry hands out one CircuitBreaker per remote service identity so that
// unrelated integrations never share failure state.
type Registry struct {
	cfg      CircuitBreakerConfig
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a registry whose breakers use cfg.
func NewRegistry(cfg CircuitBreakerConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// For returns the breaker for identity, creating it on first use.
// An empty identity resolves to ProcessIdentity().
func (r *Registry) For(identity string) *CircuitBreaker {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		identity = ProcessIdentity()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[identity]; ok {
		return b
	}
	b := NewCircuitBreaker(identity, r.cfg)
	r.breakers[identity] = b
	return b
}

// ProcessIdentity derives an identity from the running executable's name.
func ProcessIdentity() string {
	exe, err := os.Executable()
	if err != nil || exe == "" {
		if len(os.Args) > 0 {
			exe = os.Args[0]
		}
	}
	name := strings.TrimSuffix(filepath.Base(exe), filepath.Ext(exe))
	if name == "" || name == "." {
		return "ledgersync"
	}
	return name
}
