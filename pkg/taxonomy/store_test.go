package taxonomy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu        sync.Mutex
	rows      []Row
	exportErr error
	pageErr   error
	delay     time.Duration
	exports   int
	pages     int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Export(ctx context.Context) (*Snapshot, error) {
	f.mu.Lock()
	f.exports++
	rows, err, delay := append([]Row(nil), f.rows...), f.exportErr, f.delay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &Snapshot{Rows: rows}, nil
}

func (f *fakeSource) Page(ctx context.Context, offset, limit int) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages++
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return pageOf(&Snapshot{Rows: f.rows, Fields: FieldsOf(f.rows, nil)}, offset, limit), nil
}

func (f *fakeSource) set(rows []Row, exportErr, pageErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows, f.exportErr, f.pageErr = rows, exportErr, pageErr
}

func (f *fakeSource) counts() (exports, pages int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exports, f.pages
}

func newTestStore(src Source, opts ...Option) *Store {
	base := []Option{WithAutoRefresh(false), WithRetry(1, 0)}
	return NewStore(src, append(base, opts...)...)
}

var errDown = errors.New("connection refused")

func TestStoreLoad(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{rows: sampleRows()}
	s := newTestStore(src)

	if !s.Current().Empty() {
		t.Fatal("Current before Load should be empty")
	}
	ix := s.Load(ctx, false)
	if ix.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ix.Len())
	}
	if ix.Checksum() != Checksum(sampleRows()) {
		t.Error("checksum should be computed locally when the source sends none")
	}
	if s.Load(ctx, false) != ix {
		t.Error("second Load should serve the in-memory index")
	}
	if exports, _ := src.counts(); exports != 1 {
		t.Errorf("exports = %d, want 1", exports)
	}
	if row, ok := s.RowByToken("postgresql"); !ok || row.Kind != "Database" {
		t.Errorf("RowByToken = (%+v, %v)", row, ok)
	}
	if row, ok := s.Lookup("postgres replica"); !ok || row.Token != "postgresql" {
		t.Errorf("Lookup = (%+v, %v)", row, ok)
	}
}

func TestStoreForceReloadUnchanged(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{rows: sampleRows()}
	s := newTestStore(src)

	first := s.Load(ctx, false)
	if s.Load(ctx, true) != first {
		t.Error("forced reload with an unchanged checksum should keep the index")
	}
	if exports, _ := src.counts(); exports != 2 {
		t.Errorf("exports = %d, want 2", exports)
	}
}

func TestStoreForceRefreshOption(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{rows: sampleRows()}
	s := newTestStore(src, WithForceRefresh(true))
	s.Load(ctx, false)
	s.Load(ctx, false)
	if exports, _ := src.counts(); exports != 2 {
		t.Errorf("exports = %d, want 2", exports)
	}
}

func TestStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	src := &fakeSource{rows: sampleRows()}
	s := newTestStore(src, WithClock(clock), WithRefreshInterval(time.Hour))

	s.Load(ctx, false)
	s.Load(ctx, false)
	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	s.Load(ctx, false)

	if exports, _ := src.counts(); exports != 2 {
		t.Errorf("exports = %d, want 2", exports)
	}
}

func TestStorePagedFallback(t *testing.T) {
	rows := []Row{
		{Token: "a", UpdatedAt: "1"},
		{Token: "b", UpdatedAt: "1"},
		{Token: "c", UpdatedAt: "1"},
		{Token: "d", UpdatedAt: "1"},
		{Token: "e", UpdatedAt: "1"},
	}
	tests := []struct {
		name      string
		rows      []Row
		wantPages int
	}{
		{"partial last page", rows, 3},
		{"exact multiple", rows[:4], 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{rows: tt.rows, exportErr: errDown}
			s := newTestStore(src, WithPageSize(2))
			ix := s.Load(context.Background(), false)
			if ix.Len() != len(tt.rows) {
				t.Fatalf("Len = %d, want %d", ix.Len(), len(tt.rows))
			}
			if ix.Checksum() != Checksum(tt.rows) {
				t.Error("paged fetch should checksum locally")
			}
			if _, pages := src.counts(); pages != tt.wantPages {
				t.Errorf("pages = %d, want %d", pages, tt.wantPages)
			}
		})
	}
}

func TestStoreEmptyExportFallsBackToPages(t *testing.T) {
	src := &fakeSource{}
	s := newTestStore(src)
	ix := s.Load(context.Background(), false)
	if !ix.Empty() {
		t.Error("empty source should yield an empty index")
	}
	if _, pages := src.counts(); pages != 1 {
		t.Errorf("pages = %d, want 1", pages)
	}
}

func TestStoreFallbackChain(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := &fakeSource{rows: sampleRows()}

	s1 := newTestStore(src, WithSnapshotCache(NewFileSnapshotCache(dir)))
	good := s1.Load(ctx, false)
	if good.Len() != 3 {
		t.Fatalf("Len = %d, want 3", good.Len())
	}

	// Source goes down: memory tier.
	src.set(nil, errDown, errDown)
	if ix := s1.Load(ctx, true); ix != good {
		t.Error("failed pull should serve the previous in-memory index")
	}

	// Fresh process, source still down: disk tier.
	s2 := newTestStore(src, WithSnapshotCache(NewFileSnapshotCache(dir)))
	ix := s2.Load(ctx, false)
	if ix.Len() != 3 || ix.Checksum() != good.Checksum() {
		t.Errorf("disk fallback = %d rows, checksum %q", ix.Len(), ix.Checksum())
	}

	// Nothing anywhere: empty index, lookups miss.
	s3 := newTestStore(src, WithSnapshotCache(NewFileSnapshotCache(t.TempDir())))
	ix = s3.Load(ctx, false)
	if !ix.Empty() {
		t.Error("no source and no cache should yield an empty index")
	}
	if _, ok := s3.Lookup("redis"); ok {
		t.Error("empty index should miss")
	}
}

func TestStoreFailureBackoff(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{exportErr: errDown, pageErr: errDown}
	s := newTestStore(src, WithFailureBackoff(time.Hour))
	s.Load(ctx, false)
	s.Load(ctx, false)
	if exports, _ := src.counts(); exports != 1 {
		t.Errorf("exports = %d, want 1 while backing off", exports)
	}
}

func TestStoreReusesCachedSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	newTestStore(&fakeSource{rows: sampleRows()}, WithSnapshotCache(NewFileSnapshotCache(dir))).Load(ctx, false)

	// Same tokens and timestamps, so the same checksum; the cached rows win.
	relabeled := sampleRows()
	relabeled[2].DisplayName = "Postgres (relabeled)"
	s := newTestStore(&fakeSource{rows: relabeled}, WithSnapshotCache(NewFileSnapshotCache(dir)))
	row, ok := s.Load(ctx, false).RowByToken("postgresql")
	if !ok || row.DisplayName != "PostgreSQL" {
		t.Errorf("DisplayName = %q, want cached PostgreSQL", row.DisplayName)
	}
}

func TestStoreSchemaDriftForcesRebuild(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cacheTier := NewFileSnapshotCache(dir)
	newTestStore(&fakeSource{rows: sampleRows()}, WithSnapshotCache(cacheTier)).Load(ctx, false)

	// Same checksum, but svg_url vanished from the source.
	drifted := sampleRows()
	for i := range drifted {
		drifted[i].SVGURL = ""
	}
	s := newTestStore(&fakeSource{rows: drifted}, WithSnapshotCache(cacheTier))
	row, ok := s.Load(ctx, false).RowByToken("postgresql")
	if !ok {
		t.Fatal("postgresql missing")
	}
	if row.SVGURL != "" {
		t.Error("drifted source should force a rebuild from fetched rows")
	}

	persisted, err := cacheTier.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if persisted.HasField(FieldSVGURL) {
		t.Error("rebuilt snapshot should be persisted")
	}
}

func TestStoreOnChange(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{rows: sampleRows()}
	s := newTestStore(src)

	var got []string
	s.OnChange(func(checksum string) { got = append(got, checksum) })

	s.Load(ctx, false)
	s.Load(ctx, true)
	changed := sampleRows()
	changed[0].UpdatedAt = "2025-06-01"
	src.set(changed, nil, nil)
	s.Load(ctx, true)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	want := []string{Checksum(sampleRows()), Checksum(changed), ""}
	if len(got) != len(want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	tier := NewFileSnapshotCache(t.TempDir())
	s := newTestStore(&fakeSource{rows: sampleRows()}, WithSnapshotCache(tier))
	s.Load(ctx, false)

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if !s.Current().Empty() {
		t.Error("Current after Clear should be empty")
	}
	if snap, _ := tier.Load(ctx); snap != nil {
		t.Error("Clear should drop the snapshot cache")
	}
}

func TestStoreConcurrentLoadSharesPull(t *testing.T) {
	src := &fakeSource{rows: sampleRows(), delay: 20 * time.Millisecond}
	s := newTestStore(src)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ix := s.Load(context.Background(), false); ix.Len() != 3 {
				t.Errorf("Len = %d, want 3", ix.Len())
			}
		}()
	}
	wg.Wait()
	if exports, _ := src.counts(); exports != 1 {
		t.Errorf("exports = %d, want 1", exports)
	}
}

// gatedSource blocks Export until release is closed and records whether the
// context it was handed had been cancelled by then.
type gatedSource struct {
	started  chan struct{}
	release  chan struct{}
	ctxErr   error
	ctxErrMu sync.Mutex
}

func (g *gatedSource) Name() string { return "gated" }

func (g *gatedSource) Export(ctx context.Context) (*Snapshot, error) {
	close(g.started)
	<-g.release
	g.ctxErrMu.Lock()
	g.ctxErr = ctx.Err()
	g.ctxErrMu.Unlock()
	return &Snapshot{Rows: sampleRows()}, nil
}

func (g *gatedSource) Page(context.Context, int, int) (*Snapshot, error) {
	return nil, errDown
}

func TestStoreCancelledCallerDoesNotFailSharedPull(t *testing.T) {
	src := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	s := newTestStore(src)

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan *Index)
	go func() { leader <- s.Load(leaderCtx, false) }()
	<-src.started

	follower := make(chan *Index)
	go func() { follower <- s.Load(context.Background(), false) }()

	cancel()
	select {
	case ix := <-leader:
		if !ix.Empty() {
			t.Errorf("cancelled caller got %d rows, want the empty current index", ix.Len())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(src.release)
	select {
	case ix := <-follower:
		if ix.Len() != 3 {
			t.Errorf("follower Len = %d, want 3", ix.Len())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follower did not return")
	}

	src.ctxErrMu.Lock()
	defer src.ctxErrMu.Unlock()
	if src.ctxErr != nil {
		t.Errorf("source saw a cancelled context: %v", src.ctxErr)
	}
	if s.Current().Len() != 3 {
		t.Error("pull result was not installed")
	}
}

func TestStoreRefresher(t *testing.T) {
	src := &fakeSource{rows: sampleRows()}
	s := newTestStore(src, WithRefreshInterval(10*time.Millisecond))
	defer s.Close()

	s.Start(context.Background())
	s.Start(context.Background())
	if !s.Running() {
		t.Fatal("refresher should be running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if exports, _ := src.counts(); exports >= 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("refresher never pulled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Stop()
	s.Stop()
	if s.Running() {
		t.Error("refresher should be stopped")
	}

	s.Start(context.Background())
	if !s.Running() {
		t.Error("refresher should restart after Stop")
	}
}

func TestStoreRefresherDisabled(t *testing.T) {
	s := newTestStore(&fakeSource{}, WithRefreshInterval(0))
	s.Start(context.Background())
	if s.Running() {
		t.Error("zero interval should not start a refresher")
	}
}

func TestStoreAutoRefresh(t *testing.T) {
	s := NewStore(&fakeSource{rows: sampleRows()}, WithRetry(1, 0))
	defer s.Close()
	s.Load(context.Background(), false)
	if !s.Running() {
		t.Error("first Load should start the refresher")
	}
}

func TestMemorySource(t *testing.T) {
	ctx := context.Background()
	src := NewMemorySource(sampleRows())
	s := newTestStore(src)
	if ix := s.Load(ctx, false); ix.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ix.Len())
	}
	src.Set(sampleRows()[:1])
	if ix := s.Load(ctx, true); ix.Len() != 1 {
		t.Errorf("Len after Set = %d, want 1", ix.Len())
	}
	page, err := src.Page(ctx, 5, 10)
	if err != nil || page.Len() != 0 {
		t.Errorf("Page past end = (%v, %v)", page, err)
	}
}
