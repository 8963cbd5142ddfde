package enrich

import (
	"context"
	"time"

	"github.com/matzehuels/diagramir/pkg/cache"
	"github.com/matzehuels/diagramir/pkg/ir"
	"github.com/matzehuels/diagramir/pkg/observability"
)

const memoKeyType = "enrich"

// Memo caches successful runs keyed by the input graph, the pipeline
// fingerprint (stages plus classifier rules and threshold) and the taxonomy
// checksum. Enrichment is deterministic for a fixed taxonomy,
// so a hit is identical to a fresh run. Failed runs are never stored.
type Memo struct {
	pipeline *Pipeline
	cache    cache.Cache
	taxonomy Loader
	ttl      time.Duration
}

// NewMemo wraps p. taxonomy may be nil when no store backs the classifier.
func NewMemo(p *Pipeline, c cache.Cache, taxonomy Loader, ttl time.Duration) *Memo {
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Memo{pipeline: p, cache: c, taxonomy: taxonomy, ttl: ttl}
}

// Run returns a cached result when one exists and otherwise runs the
// pipeline. Cache failures fall through to a normal run.
func (m *Memo) Run(ctx context.Context, g *ir.Graph) *Result {
	start := time.Now()
	input, err := ir.MarshalGraph(g)
	if err != nil {
		return m.pipeline.Run(ctx, g)
	}
	key := m.key(ctx, input)

	if data, ok, err := m.cache.Get(ctx, key); err == nil && ok {
		if out, err := ir.UnmarshalGraph(data); err == nil {
			observability.Cache().OnCacheHit(ctx, memoKeyType)
			m.pipeline.logger.Debug("enrichment cache hit", "key", key)
			return &Result{Graph: out, Enriched: true, Cached: true, Stats: statsOf(out), Duration: time.Since(start)}
		}
	}
	observability.Cache().OnCacheMiss(ctx, memoKeyType)

	res := m.pipeline.Run(ctx, g)
	if !res.Enriched {
		return res
	}
	data, err := ir.MarshalGraph(res.Graph)
	if err != nil {
		return res
	}
	if err := m.cache.Set(ctx, key, data, m.ttl); err != nil {
		m.pipeline.logger.Warn("enrichment cache write failed", "error", err)
		return res
	}
	observability.Cache().OnCacheSet(ctx, memoKeyType, len(data))
	return res
}

func (m *Memo) key(ctx context.Context, input []byte) string {
	var checksum string
	if m.taxonomy != nil {
		checksum = m.taxonomy.Load(ctx, false).Checksum()
	}
	return cache.Key(memoKeyType, m.pipeline.Fingerprint(), checksum, cache.Hash(input))
}
