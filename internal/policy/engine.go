package policy

import (
	"strings"
	"sync"
	"time"
)

// RatePolicy bounds request volume for a route subtree.
type RatePolicy struct {
	ID     string
	Path   string // prefix match
	Max    int64
	Window time.Duration
}

// Engine resolves the rate policy for a request path. First match wins;
// the default applies when nothing matches.
type Engine struct {
	mu       sync.RWMutex
	policies []RatePolicy
	def      RatePolicy
}

func NewEngine(def RatePolicy) *Engine {
	return &Engine{def: def}
}

// Load replaces the current policy set.
func (e *Engine) Load(policies []RatePolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policies = policies
}

// SetDefault replaces the fallback policy at runtime.
func (e *Engine) SetDefault(def RatePolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.def = def
}

func (e *Engine) Default() RatePolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.def
}

func (e *Engine) Resolve(path string) RatePolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for i := range e.policies {
		if strings.HasPrefix(path, e.policies[i].Path) {
			return e.policies[i]
		}
	}
	return e.def
}
