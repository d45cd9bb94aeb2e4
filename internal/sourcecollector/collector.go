// Package sourcecollector implements the SourceCollector contract and
// worker (spec §4.1, §4.2): one goroutine per configured source,
// periodically invoking a named collector strategy and publishing
// validated host batches onto a bounded queue.
package sourcecollector

import (
	"context"
	"fmt"

	"github.com/zabbix-auto-config/zac/internal/model"
)

// Collector is the modern plugin shape: given this run's settings, it
// returns every host it currently knows about.
type Collector interface {
	Collect(ctx context.Context, settings map[string]any) ([]model.Host, error)
}

// CollectorFunc adapts a plain function to the Collector interface,
// matching the legacy "free function" plugin shape from spec §4.1 —
// the adapter the loader wraps legacy collectors in.
type CollectorFunc func(ctx context.Context, settings map[string]any) ([]model.Host, error)

// Collect implements Collector.
func (f CollectorFunc) Collect(ctx context.Context, settings map[string]any) ([]model.Host, error) {
	return f(ctx, settings)
}

// Registry holds every compiled-in collector strategy, keyed by the
// module_name configured for a source.
type Registry struct {
	collectors map[string]Collector
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{collectors: map[string]Collector{}}
}

// Register adds a named strategy. It panics on a duplicate name, since
// that is a programming error caught at startup, not a runtime fault.
func (r *Registry) Register(moduleName string, c Collector) {
	if _, exists := r.collectors[moduleName]; exists {
		panic(fmt.Sprintf("sourcecollector: module %q already registered", moduleName))
	}
	r.collectors[moduleName] = c
}

// Lookup returns the collector registered under moduleName.
func (r *Registry) Lookup(moduleName string) (Collector, bool) {
	c, ok := r.collectors[moduleName]
	return c, ok
}
