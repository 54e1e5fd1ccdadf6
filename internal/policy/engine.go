// Package policy evaluates named authorization policies against the claims
// of an authenticated caller.
package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/example/apicatalog/internal/token"
)

// ErrUnknownPolicy signals a route wired to a policy that was never
// registered. It is a misconfiguration, not a caller error.
var ErrUnknownPolicy = errors.New("policy: unknown policy")

// Names of the policies registered by Defaults.
const (
	AdminOnly      = "AdminOnly"
	ManagementOnly = "ManagementOnly"
	UserOnly       = "UserOnly"
	ExclusiveOnly  = "ExclusiveOnly"
)

// Predicate is a pure function of the caller's claims.
type Predicate func(token.ClaimSet) bool

func HasRole(role string) Predicate {
	return func(cs token.ClaimSet) bool { return cs.InRole(role) }
}

func HasClaim(typ, value string) Predicate {
	return func(cs token.ClaimSet) bool { return cs.Has(typ, value) }
}

// All stops at the first predicate that fails. All() is true.
func All(preds ...Predicate) Predicate {
	return func(cs token.ClaimSet) bool {
		for _, p := range preds {
			if !p(cs) {
				return false
			}
		}
		return true
	}
}

// Any stops at the first predicate that holds. Any() is false.
func Any(preds ...Predicate) Predicate {
	return func(cs token.ClaimSet) bool {
		for _, p := range preds {
			if p(cs) {
				return true
			}
		}
		return false
	}
}

type Engine struct {
	mu       sync.RWMutex
	policies map[string]Predicate
}

func NewEngine() *Engine {
	return &Engine{policies: make(map[string]Predicate)}
}

// Register adds or replaces a policy.
func (e *Engine) Register(name string, p Predicate) {
	e.mu.Lock()
	e.policies[name] = p
	e.mu.Unlock()
}

func (e *Engine) Authorize(name string, cs token.ClaimSet) (bool, error) {
	e.mu.RLock()
	p, ok := e.policies[name]
	e.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
	return p(cs), nil
}

// Defaults registers the service policies. superUser is matched against the
// id claim, managementRole against role claims.
func Defaults(superUser, managementRole string) *Engine {
	e := NewEngine()
	e.Register(AdminOnly, HasRole("Admin"))
	e.Register(ManagementOnly, All(HasRole("Admin"), HasClaim(token.ClaimID, superUser)))
	e.Register(UserOnly, HasRole("User"))
	e.Register(ExclusiveOnly, Any(HasClaim(token.ClaimID, superUser), HasRole(managementRole)))
	return e
}
