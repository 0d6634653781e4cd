// internal/auth/session.go
package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jason-s-yu/shootingstars/internal/schema"
)

// ErrUnauthorized is returned for every token that is not in a registry. Unknown
// and malformed tokens are indistinguishable to the caller.
var ErrUnauthorized = errors.New("invalid controller token")

// Tenant is the configuration bound to one token: a numeric identity plus the
// arbitrary settings the tenant's controller asks for via getConfig.
type Tenant struct {
	ID     int
	Config map[string]any
}

// Registry maps opaque tokens to tenants. It is populated once at startup and
// never changes afterwards, so lookups need no locking.
type Registry struct {
	tenants map[string]Tenant
}

// NewRegistry copies tokens into a read-only registry.
func NewRegistry(tokens map[string]Tenant) *Registry {
	r := &Registry{tenants: make(map[string]Tenant, len(tokens))}
	for tok, t := range tokens {
		cfg := make(map[string]any, len(t.Config)+1)
		for k, v := range t.Config {
			cfg[k] = v
		}
		cfg["id"] = t.ID
		r.tenants[tok] = Tenant{ID: t.ID, Config: cfg}
	}
	return r
}

// Lookup returns the tenant bound to token, or ErrUnauthorized.
func (r *Registry) Lookup(token string) (Tenant, error) {
	if r == nil {
		return Tenant{}, ErrUnauthorized
	}
	t, ok := r.tenants[token]
	if !ok {
		return Tenant{}, ErrUnauthorized
	}
	return t, nil
}

// Len reports how many tokens are registered.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tenants)
}

// Gate authorizes token-gated method calls against a registry.
type Gate struct {
	registry *Registry
}

// NewGate returns a gate backed by r.
func NewGate(r *Registry) *Gate {
	return &Gate{registry: r}
}

// Authorize checks that params are a token followed by args, then resolves the
// token. The payload shape is checked first; nothing is decoded into args unless
// every parameter is valid, and the caller must not mutate state unless
// Authorize returns a nil error.
func (g *Gate) Authorize(params []json.RawMessage, args ...schema.Arg) (Tenant, error) {
	var token string
	all := append([]schema.Arg{{Name: "token", Schema: schema.String(), Into: &token}}, args...)
	if err := schema.Bind(params, all...); err != nil {
		return Tenant{}, err
	}
	t, err := g.registry.Lookup(token)
	if err != nil {
		return Tenant{}, fmt.Errorf("authorize: %w", err)
	}
	return t, nil
}

// Observer resolves the tenant a subscriber reads as. ok is false for unknown
// tokens, which are shown no tenant-scoped data rather than failing.
func (g *Gate) Observer(token string) (Tenant, bool) {
	t, err := g.registry.Lookup(token)
	if err != nil {
		return Tenant{}, false
	}
	return t, true
}
