// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup
// to receive events about enrichment runs, taxonomy loads, classification,
// cache operations and outgoing HTTP calls.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so library packages never
// import a metrics backend. The prometheus subpackage is one such backend.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m := prometheus.New(registry)
//	    observability.SetPipelineHooks(m)
//	    observability.SetTaxonomyHooks(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Pipeline().OnStageStart(ctx, "assign_taxonomy", len(g.Nodes))
//	// ... run stage ...
//	observability.Pipeline().OnStageComplete(ctx, "assign_taxonomy", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the enrichment pipeline.
type PipelineHooks interface {
	// Stage events
	OnStageStart(ctx context.Context, stage string, nodeCount int)
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)

	// OnRunComplete is called once per run. failedStage is empty when every
	// stage succeeded.
	OnRunComplete(ctx context.Context, enriched bool, failedStage string, duration time.Duration)
}

// =============================================================================
// Taxonomy Hooks
// =============================================================================

// TaxonomyHooks receives events from the taxonomy store.
type TaxonomyHooks interface {
	// OnLoad records a pull from a source.
	OnLoad(ctx context.Context, source string, rows int, duration time.Duration, err error)

	// OnFallback records which tier served the index after a failed pull:
	// "memory", "disk" or "empty".
	OnFallback(ctx context.Context, tier string)

	// OnDrift records required columns that disappeared from the source.
	OnDrift(ctx context.Context, missing []string)
}

// =============================================================================
// Classifier Hooks
// =============================================================================

// ClassifierHooks receives events from the label classifier.
type ClassifierHooks interface {
	// OnClassify records which cascade tier resolved a label.
	OnClassify(ctx context.Context, tier string, duration time.Duration)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnStageStart(context.Context, string, int)                     {}
func (NoopPipelineHooks) OnStageComplete(context.Context, string, time.Duration, error) {}
func (NoopPipelineHooks) OnRunComplete(context.Context, bool, string, time.Duration)    {}

// NoopTaxonomyHooks is a no-op implementation of TaxonomyHooks.
type NoopTaxonomyHooks struct{}

func (NoopTaxonomyHooks) OnLoad(context.Context, string, int, time.Duration, error) {}
func (NoopTaxonomyHooks) OnFallback(context.Context, string)                        {}
func (NoopTaxonomyHooks) OnDrift(context.Context, []string)                         {}

// NoopClassifierHooks is a no-op implementation of ClassifierHooks.
type NoopClassifierHooks struct{}

func (NoopClassifierHooks) OnClassify(context.Context, string, time.Duration) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	pipelineHooks   PipelineHooks   = NoopPipelineHooks{}
	taxonomyHooks   TaxonomyHooks   = NoopTaxonomyHooks{}
	classifierHooks ClassifierHooks = NoopClassifierHooks{}
	cacheHooks      CacheHooks      = NoopCacheHooks{}
	httpHooks       HTTPHooks       = NoopHTTPHooks{}
	hooksMu         sync.RWMutex
)

// SetPipelineHooks registers custom pipeline hooks.
// This should be called once at application startup before any pipeline runs.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetTaxonomyHooks registers custom taxonomy hooks.
func SetTaxonomyHooks(h TaxonomyHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		taxonomyHooks = h
	}
}

// SetClassifierHooks registers custom classifier hooks.
func SetClassifierHooks(h ClassifierHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		classifierHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks.
// This should be called once at application startup before any HTTP operations.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Taxonomy returns the registered taxonomy hooks.
func Taxonomy() TaxonomyHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return taxonomyHooks
}

// Classifier returns the registered classifier hooks.
func Classifier() ClassifierHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return classifierHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	pipelineHooks = NoopPipelineHooks{}
	taxonomyHooks = NoopTaxonomyHooks{}
	classifierHooks = NoopClassifierHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
