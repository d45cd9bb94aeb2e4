// Package hostmodifier implements the host modifier contract and chain
// (spec §4.1, §4.4 step 3): an ordered sequence of named strategies,
// each given a deep copy of a merged host and returning its edited
// replacement. A modifier that fails or panics leaves the working host
// unchanged and counts against its own error budget; it never aborts
// the chain or the merge for other hosts.
package hostmodifier

import (
	"context"
	"fmt"

	"github.com/zabbix-auto-config/zac/internal/model"
)

// Modifier is the modern plugin shape: given this run's settings and a
// host, it returns the host's edited replacement.
type Modifier interface {
	Modify(ctx context.Context, settings map[string]any, host model.Host) (model.Host, error)
}

// ModifierFunc adapts a plain function to the Modifier interface,
// matching the legacy "free function" plugin shape from spec §4.1.
type ModifierFunc func(ctx context.Context, settings map[string]any, host model.Host) (model.Host, error)

// Modify implements Modifier.
func (f ModifierFunc) Modify(ctx context.Context, settings map[string]any, host model.Host) (model.Host, error) {
	return f(ctx, settings, host)
}

// Registry holds every compiled-in modifier strategy, keyed by the
// module_name configured for a host_modifiers entry.
type Registry struct {
	modifiers map[string]Modifier
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{modifiers: map[string]Modifier{}}
}

// Register adds a named strategy. It panics on a duplicate name, since
// that is a programming error caught at startup, not a runtime fault.
func (r *Registry) Register(moduleName string, m Modifier) {
	if _, exists := r.modifiers[moduleName]; exists {
		panic(fmt.Sprintf("hostmodifier: module %q already registered", moduleName))
	}
	r.modifiers[moduleName] = m
}

// Lookup returns the modifier registered under moduleName.
func (r *Registry) Lookup(moduleName string) (Modifier, bool) {
	m, ok := r.modifiers[moduleName]
	return m, ok
}
