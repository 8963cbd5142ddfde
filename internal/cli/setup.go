package cli

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/diagramir/internal/config"
	"github.com/matzehuels/diagramir/pkg/cache"
	"github.com/matzehuels/diagramir/pkg/classify"
	"github.com/matzehuels/diagramir/pkg/enrich"
	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/integrations/mongodb"
	"github.com/matzehuels/diagramir/pkg/integrations/objectstore"
	"github.com/matzehuels/diagramir/pkg/integrations/postgres"
	"github.com/matzehuels/diagramir/pkg/integrations/supabase"
	"github.com/matzehuels/diagramir/pkg/taxonomy"
)

const (
	remoteAttempts = 3
	remoteDelay    = 500 * time.Millisecond

	snapshotKey  = "taxonomy:snapshot"
	redisPrefix  = appName + ":"
	enrichSubdir = "enrich"
)

// =============================================================================
// Runtime - wired components for a single command
// =============================================================================

// runtime holds the components built from the configuration. Close releases
// every connection it opened.
type runtime struct {
	cfg        *config.Config
	source     taxonomy.Source
	snapshots  taxonomy.SnapshotCache
	store      *taxonomy.Store
	classifier *classify.Classifier
	closers    []func()
}

func (r *runtime) Close() {
	if r.store != nil {
		_ = r.store.Close()
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// newRuntime connects the configured taxonomy source and builds the store
// and classifier on top of it.
func (c *CLI) newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := c.config()
	if err != nil {
		return nil, err
	}
	logger := loggerFromContext(ctx)

	r := &runtime{cfg: cfg}
	if r.source, err = r.openSource(ctx); err != nil {
		r.Close()
		return nil, err
	}
	if r.snapshots, err = r.openSnapshotCache(ctx, logger); err != nil {
		r.Close()
		return nil, err
	}

	tc := cfg.Taxonomy
	r.store = taxonomy.NewStore(r.source,
		taxonomy.WithRefreshInterval(tc.RefreshInterval()),
		taxonomy.WithSnapshotCache(r.snapshots),
		taxonomy.WithPageSize(tc.PageSize),
		taxonomy.WithForceRefresh(tc.ForceRefresh),
		taxonomy.WithAutoRefresh(tc.AutoRefresh),
		taxonomy.WithRetry(remoteAttempts, remoteDelay),
		taxonomy.WithLogger(logger),
	)

	rules, err := classify.LoadRules(cfg.Classifier.Rules)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.classifier, err = classify.New(r.store,
		classify.WithRules(rules...),
		classify.WithFuzzyThreshold(cfg.Classifier.FuzzyThreshold),
		classify.WithCacheSize(cfg.Classifier.CacheSize),
		classify.WithLogger(logger),
	)
	if err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *runtime) openSource(ctx context.Context) (taxonomy.Source, error) {
	cfg := r.cfg
	switch cfg.Taxonomy.Source {
	case config.SourceFile:
		return taxonomy.NewFileSource(cfg.Taxonomy.File), nil

	case config.SourceSupabase:
		var opts []supabase.Option
		if cfg.Supabase.Table != "" {
			opts = append(opts, supabase.WithTable(cfg.Supabase.Table))
		}
		if cfg.Supabase.RPC != "" {
			opts = append(opts, supabase.WithExportRPC(cfg.Supabase.RPC))
		}
		return supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.Key, opts...), nil

	case config.SourcePostgres:
		pool, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, pool.Close)
		var opts []postgres.Option
		if cfg.Postgres.Table != "" {
			opts = append(opts, postgres.WithTable(cfg.Postgres.Table))
		}
		return postgres.NewSource(pool, opts...), nil

	case config.SourceMongo:
		client, err := mongodb.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		r.closers = append(r.closers, func() { _ = client.Disconnect(context.Background()) })
		return mongodb.NewSource(client.Database(cfg.Mongo.Database)), nil

	case config.SourceS3:
		return r.objectStore()
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown taxonomy source %q", cfg.Taxonomy.Source)
}

func (r *runtime) objectStore() (*objectstore.Source, error) {
	s := r.cfg.S3
	return objectstore.New(objectstore.Config{
		Endpoint:  s.Endpoint,
		Region:    s.Region,
		AccessKey: s.AccessKey,
		SecretKey: s.SecretKey,
		Bucket:    s.Bucket,
		Prefix:    s.Prefix,
		UseSSL:    s.UseSSL,
	})
}

// openSnapshotCache returns the disk cache, backed by Redis when REDIS_URL
// is configured. An unreachable Redis is logged and skipped.
func (r *runtime) openSnapshotCache(ctx context.Context, logger *log.Logger) (taxonomy.SnapshotCache, error) {
	disk := taxonomy.NewFileSnapshotCache(r.cfg.Taxonomy.CacheDir)
	if r.cfg.Redis.URL == "" {
		return disk, nil
	}
	rc, err := cache.NewRedisCache(ctx, r.cfg.Redis.URL)
	if err != nil {
		logger.Warn("redis unavailable, using disk cache only", "error", err)
		return disk, nil
	}
	r.closers = append(r.closers, func() { _ = rc.Close() })
	shared := taxonomy.NewByteSnapshotCache(cache.NewScoped(rc, redisPrefix), snapshotKey)
	return taxonomy.TieredSnapshotCache{disk, shared}, nil
}

// newPipeline builds the default enrichment pipeline over r.
func (r *runtime) newPipeline(ctx context.Context, preserveKind bool) *enrich.Pipeline {
	return enrich.Default(r.classifier,
		enrich.WithTaxonomy(r.store),
		enrich.WithPreserveExistingKind(preserveKind),
		enrich.WithLogger(loggerFromContext(ctx)),
	)
}

// enrichCache returns the on-disk cache of enriched graphs, or a no-op
// cache when disabled.
func (r *runtime) enrichCache(disabled bool) (cache.Cache, error) {
	if disabled {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(enrichCacheDir(r.cfg))
}

func enrichCacheDir(cfg *config.Config) string {
	return filepath.Join(cfg.Taxonomy.CacheDir, enrichSubdir)
}
