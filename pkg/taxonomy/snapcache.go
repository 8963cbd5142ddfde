package taxonomy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matzehuels/diagramir/pkg/cache"
	"github.com/matzehuels/diagramir/pkg/observability"
)

// CacheFileName is the name of the on-disk snapshot inside the cache directory.
const CacheFileName = "taxonomy_cache.json"

// SnapshotCache persists the last good snapshot between processes.
//
// Load returns (nil, nil) when nothing is stored. A non-nil error means the
// stored snapshot is unreadable; callers treat it as a miss.
type SnapshotCache interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Clear(ctx context.Context) error
}

// FileSnapshotCache stores the snapshot as a single JSON file. Writes go to a
// temp file that is renamed over the target, so a crash mid-write leaves the
// previous snapshot intact.
type FileSnapshotCache struct {
	path string
}

// NewFileSnapshotCache stores the snapshot at dir/taxonomy_cache.json.
func NewFileSnapshotCache(dir string) *FileSnapshotCache {
	return &FileSnapshotCache{path: filepath.Join(dir, CacheFileName)}
}

// Path returns the snapshot file path.
func (c *FileSnapshotCache) Path() string { return c.path }

// Load reads the snapshot file. A missing file is a miss.
func (c *FileSnapshotCache) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		observability.Cache().OnCacheMiss(ctx, "taxonomy")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap, err := decodeCached(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.path, err)
	}
	observability.Cache().OnCacheHit(ctx, "taxonomy")
	return snap, nil
}

// Save writes snap atomically.
func (c *FileSnapshotCache) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := cache.WriteFileAtomic(c.path, data, 0644); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "taxonomy", len(data))
	return nil
}

// Clear removes the snapshot file.
func (c *FileSnapshotCache) Clear(ctx context.Context) error {
	err := os.Remove(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// ByteSnapshotCache stores the snapshot under one key of a [cache.Cache],
// typically a shared Redis so that several instances reuse one pull.
type ByteSnapshotCache struct {
	c   cache.Cache
	key string
}

// NewByteSnapshotCache stores the snapshot in c under key.
func NewByteSnapshotCache(c cache.Cache, key string) *ByteSnapshotCache {
	return &ByteSnapshotCache{c: c, key: key}
}

// Load fetches and decodes the stored snapshot.
func (c *ByteSnapshotCache) Load(ctx context.Context) (*Snapshot, error) {
	data, ok, err := c.c.Get(ctx, c.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.Cache().OnCacheMiss(ctx, "taxonomy")
		return nil, nil
	}
	snap, err := decodeCached(data)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", c.key, err)
	}
	observability.Cache().OnCacheHit(ctx, "taxonomy")
	return snap, nil
}

// Save stores snap without expiry.
func (c *ByteSnapshotCache) Save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := c.c.Set(ctx, c.key, data, 0); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, "taxonomy", len(data))
	return nil
}

// Clear deletes the stored snapshot.
func (c *ByteSnapshotCache) Clear(ctx context.Context) error {
	return c.c.Delete(ctx, c.key)
}

// TieredSnapshotCache reads from the first tier that has a snapshot and
// writes to all of them.
type TieredSnapshotCache []SnapshotCache

// Load returns the first readable snapshot. Errors from unreadable tiers
// are returned only if no tier produced a snapshot.
func (t TieredSnapshotCache) Load(ctx context.Context) (*Snapshot, error) {
	var firstErr error
	for _, c := range t {
		snap, err := c.Load(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if snap != nil {
			return snap, nil
		}
	}
	return nil, firstErr
}

// Save writes to every tier and returns the first error.
func (t TieredSnapshotCache) Save(ctx context.Context, snap *Snapshot) error {
	var firstErr error
	for _, c := range t {
		if err := c.Save(ctx, snap); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Clear clears every tier and returns the first error.
func (t TieredSnapshotCache) Clear(ctx context.Context) error {
	var firstErr error
	for _, c := range t {
		if err := c.Clear(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type nopSnapshotCache struct{}

func (nopSnapshotCache) Load(context.Context) (*Snapshot, error) { return nil, nil }
func (nopSnapshotCache) Save(context.Context, *Snapshot) error   { return nil }
func (nopSnapshotCache) Clear(context.Context) error             { return nil }

func decodeCached(data []byte) (*Snapshot, error) {
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if snap.Len() == 0 {
		return nil, fmt.Errorf("cached taxonomy snapshot has no rows")
	}
	if snap.Checksum == "" {
		snap.Checksum = Checksum(snap.Rows)
	}
	return snap, nil
}

var (
	_ SnapshotCache = (*FileSnapshotCache)(nil)
	_ SnapshotCache = (*ByteSnapshotCache)(nil)
	_ SnapshotCache = TieredSnapshotCache(nil)
)
