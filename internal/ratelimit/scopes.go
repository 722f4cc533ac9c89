package ratelimit

import (
	"sync"

	"github.com/dkeye/Arena/internal/domain"
)

const (
	ScopeSystem  = "system"
	ScopeMessage = "message"
)

// Scoped applies a named Rule per scope over a shared Limiter.
// Rules can be swapped at runtime; buckets survive the swap.
type Scoped struct {
	limiter *Limiter

	mu    sync.RWMutex
	rules map[string]Rule
}

func NewScoped(limiter *Limiter, rules map[string]Rule) (*Scoped, error) {
	s := &Scoped{limiter: limiter}
	if err := s.SetRules(rules); err != nil {
		return nil, err
	}
	return s, nil
}

// SetRules validates every rule before installing any of them.
func (s *Scoped) SetRules(rules map[string]Rule) error {
	next := make(map[string]Rule, len(rules))
	for scope, r := range rules {
		if err := r.Validate(); err != nil {
			return domain.AsError(err).WithContext("scope", scope)
		}
		next[scope] = r
	}
	s.mu.Lock()
	s.rules = next
	s.mu.Unlock()
	return nil
}

func (s *Scoped) Rule(scope string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[scope]
	return r, ok
}

// Allow passes when the scope has no rule.
func (s *Scoped) Allow(scope, id string) bool {
	r, ok := s.Rule(scope)
	if !ok {
		return true
	}
	return s.limiter.AllowRule(Key(scope, id), r)
}

// Forget drops every scope bucket held for id.
func (s *Scoped) Forget(id string) {
	s.mu.RLock()
	scopes := make([]string, 0, len(s.rules))
	for scope := range s.rules {
		scopes = append(scopes, scope)
	}
	s.mu.RUnlock()
	for _, scope := range scopes {
		s.limiter.Reset(Key(scope, id))
	}
}

func Key(scope, id string) string { return scope + ":" + id }
