package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrNoRows is returned when a source answered but delivered no rows.
var ErrNoRows = errors.New("taxonomy source returned no rows")

// Source is a remote or local origin of taxonomy rows.
//
// Export returns the whole table in one call, ideally with a server-side
// checksum. Page returns limit rows starting at offset, ordered by token;
// it is the fallback when Export fails. A page shorter than limit ends the
// table.
type Source interface {
	Name() string
	Export(ctx context.Context) (*Snapshot, error)
	Page(ctx context.Context, offset, limit int) (*Snapshot, error)
}

// FileSource reads a JSON export from the local filesystem. The file holds
// either {"rows": [...], "checksum": "..."} or a bare row array.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name returns "file:<path>".
func (s *FileSource) Name() string { return "file:" + s.path }

// Export reads and decodes the whole file.
func (s *FileSource) Export(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy file: %w", err)
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return nil, err
	}
	if snap.Checksum == "" {
		snap.Checksum = Checksum(snap.Rows)
	}
	return snap, nil
}

// Page slices the decoded file.
func (s *FileSource) Page(ctx context.Context, offset, limit int) (*Snapshot, error) {
	snap, err := s.Export(ctx)
	if err != nil {
		return nil, err
	}
	return pageOf(snap, offset, limit), nil
}

// MemorySource serves a snapshot held in memory. It is safe for concurrent
// use and can be swapped with Set, which makes it suitable for tests and
// embedding a static taxonomy.
type MemorySource struct {
	mu   sync.RWMutex
	name string
	snap *Snapshot
}

// NewMemorySource creates a source serving rows. Fields are derived from
// the populated columns and the checksum is computed locally.
func NewMemorySource(rows []Row) *MemorySource {
	s := &MemorySource{name: "memory"}
	s.Set(rows)
	return s
}

// Set replaces the served rows.
func (s *MemorySource) Set(rows []Row) {
	snap := &Snapshot{
		Rows:     append([]Row(nil), rows...),
		Checksum: Checksum(rows),
		Fields:   FieldsOf(rows, nil),
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Name returns "memory".
func (s *MemorySource) Name() string { return s.name }

// Export returns a copy of the served snapshot.
func (s *MemorySource) Export(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySnapshot(s.snap), nil
}

// Page slices the served snapshot.
func (s *MemorySource) Page(ctx context.Context, offset, limit int) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return pageOf(s.snap, offset, limit), nil
}

func pageOf(snap *Snapshot, offset, limit int) *Snapshot {
	out := &Snapshot{Fields: append([]string(nil), snap.Fields...)}
	if offset >= len(snap.Rows) {
		return out
	}
	end := len(snap.Rows)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out.Rows = append([]Row(nil), snap.Rows[offset:end]...)
	return out
}

func copySnapshot(s *Snapshot) *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		Rows:     append([]Row(nil), s.Rows...),
		Checksum: s.Checksum,
		Fields:   append([]string(nil), s.Fields...),
	}
}

var (
	_ Source = (*FileSource)(nil)
	_ Source = (*MemorySource)(nil)
)
