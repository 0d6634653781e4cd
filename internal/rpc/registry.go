// Package rpc holds the named methods and publications exposed to clients and
// the error taxonomy reported back to them.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Caller identifies the connection a request arrived on.
type Caller struct {
	ConnID     uuid.UUID
	RemoteAddr string
}

// MethodFunc handles one method call. params are the raw positional parameters.
type MethodFunc func(ctx context.Context, c Caller, params []json.RawMessage) (any, error)

// Cursor describes what a subscription observes: the records of one collection
// that pass Filter, reduced to Fields.
type Cursor struct {
	Collection string
	Fields     []string
	// Filter reports whether the record stored under key is visible. A nil
	// Filter shows every record.
	Filter func(key string, doc map[string]any) bool
}

// Visible reports whether the record is shown by the cursor.
func (c Cursor) Visible(key string, doc map[string]any) bool {
	return c.Filter == nil || c.Filter(key, doc)
}

// Project returns the subset of doc named in Fields.
func (c Cursor) Project(doc map[string]any) map[string]any {
	out := make(map[string]any, len(c.Fields))
	for _, f := range c.Fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

// PublishFunc resolves a subscription request into the cursors it observes.
// Returning no cursors yields a subscription that is ready with no records.
type PublishFunc func(ctx context.Context, c Caller, params []json.RawMessage) ([]Cursor, error)

// Registry maps names to methods and publications. Registration happens during
// startup; lookups are safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	methods      map[string]MethodFunc
	publications map[string]PublishFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		methods:      make(map[string]MethodFunc),
		publications: make(map[string]PublishFunc),
	}
}

// Method registers fn under name, replacing any previous registration.
func (r *Registry) Method(name string, fn MethodFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[name] = fn
}

// Publication registers fn under name.
func (r *Registry) Publication(name string, fn PublishFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publications[name] = fn
}

// Call dispatches a method call.
func (r *Registry) Call(ctx context.Context, c Caller, name string, params []json.RawMessage) (any, error) {
	r.mu.RLock()
	fn, ok := r.methods[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: method '%s' not found", ErrUnknownMethod, name)
	}
	return fn(ctx, c, params)
}

// Subscribe resolves a publication.
func (r *Registry) Subscribe(ctx context.Context, c Caller, name string, params []json.RawMessage) ([]Cursor, error) {
	r.mu.RLock()
	fn, ok := r.publications[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: subscription '%s' not found", ErrUnknownMethod, name)
	}
	return fn(ctx, c, params)
}

// Methods lists registered method names in order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.methods))
	for n := range r.methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
