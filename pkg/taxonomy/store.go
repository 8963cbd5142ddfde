package taxonomy

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/diagramir/pkg/errors"
	"github.com/matzehuels/diagramir/pkg/httputil"
	"github.com/matzehuels/diagramir/pkg/observability"
)

// Defaults for [NewStore].
const (
	DefaultRefreshInterval = time.Hour
	DefaultPageSize        = 1000
	DefaultRetryAttempts   = 3
	DefaultRetryDelay      = 500 * time.Millisecond
	DefaultFailureBackoff  = 30 * time.Second
)

// pullTimeout bounds one shared pull, which no caller can cancel.
const pullTimeout = 2 * time.Minute

// DefaultRequiredFields are the columns guarded against schema drift.
var DefaultRequiredFields = []string{FieldSVGURL}

// Store keeps the current taxonomy [Index] and refreshes it from a [Source].
//
// Lookups never block on the network once an index is installed. Readers
// load the index through an atomic pointer, so a refresh swaps in a fully
// built index and no reader ever observes a half-built one.
//
// Load never fails. When the source is unreachable it serves, in order, the
// last index held in memory, the snapshot cache, and finally an empty index
// that every lookup misses.
type Store struct {
	source    Source
	snapshots SnapshotCache
	logger    *log.Logger
	now       func() time.Time

	refresh        time.Duration
	failureBackoff time.Duration
	pageSize       int
	required       []string
	forceRefresh   bool
	autoRefresh    bool
	retryAttempts  int
	retryDelay     time.Duration

	state       atomic.Pointer[storeState]
	flight      singleflight.Group
	pullMu      sync.Mutex
	autoStarted atomic.Bool

	mu        sync.Mutex
	listeners []func(checksum string)
	cancel    context.CancelFunc
	done      chan struct{}
}

type storeState struct {
	index   *Index
	expires time.Time
}

// Option configures a [Store].
type Option func(*Store)

// WithRefreshInterval sets how long an index is served before the next Load
// pulls again, and the period of the background refresher. Zero disables both.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) { s.refresh = d }
}

// WithSnapshotCache sets the persistent tier.
func WithSnapshotCache(c SnapshotCache) Option {
	return func(s *Store) {
		if c != nil {
			s.snapshots = c
		}
	}
}

// WithLogger sets the logger. Nil discards.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithPageSize sets the page size of the paged fallback.
func WithPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithRequiredFields replaces the columns guarded against schema drift.
func WithRequiredFields(fields ...string) Option {
	return func(s *Store) { s.required = fields }
}

// WithForceRefresh makes every Load bypass the in-memory tier.
func WithForceRefresh(force bool) Option {
	return func(s *Store) { s.forceRefresh = force }
}

// WithAutoRefresh controls whether the first Load starts the background
// refresher. It is on by default.
func WithAutoRefresh(on bool) Option {
	return func(s *Store) { s.autoRefresh = on }
}

// WithRetry sets the attempts and initial delay for source calls.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(s *Store) {
		s.retryAttempts = attempts
		s.retryDelay = delay
	}
}

// WithFailureBackoff sets how long a fallback index is served before the
// source is tried again.
func WithFailureBackoff(d time.Duration) Option {
	return func(s *Store) { s.failureBackoff = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a store over source. It does not contact the source until
// the first Load.
func NewStore(source Source, opts ...Option) *Store {
	s := &Store{
		source:         source,
		snapshots:      nopSnapshotCache{},
		now:            time.Now,
		refresh:        DefaultRefreshInterval,
		failureBackoff: DefaultFailureBackoff,
		pageSize:       DefaultPageSize,
		required:       DefaultRequiredFields,
		autoRefresh:    true,
		retryAttempts:  DefaultRetryAttempts,
		retryDelay:     DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(io.Discard)
	}
	return s
}

// Load returns the current index, pulling from the source when the in-memory
// index is missing or expired, or when force is set. Concurrent callers share
// one pull. A caller whose ctx ends first gets the currently installed index
// while the pull carries on for the others.
func (s *Store) Load(ctx context.Context, force bool) *Index {
	force = force || s.forceRefresh
	if !force {
		if ix, ok := s.fresh(); ok {
			return ix
		}
	}

	key := "load"
	if force {
		key = "load-force"
	}
	// The shared pull must outlive any single caller, so it runs detached
	// from ctx and each caller waits on its own ctx instead.
	pullCtx := context.WithoutCancel(ctx)
	ch := s.flight.DoChan(key, func() (any, error) {
		s.pullMu.Lock()
		defer s.pullMu.Unlock()
		if !force {
			if ix, ok := s.fresh(); ok {
				return ix, nil
			}
		}
		ctx, cancel := context.WithTimeout(pullCtx, pullTimeout)
		defer cancel()
		return s.pull(ctx), nil
	})

	if s.autoRefresh && s.autoStarted.CompareAndSwap(false, true) {
		s.Start(context.Background())
	}
	select {
	case r := <-ch:
		return r.Val.(*Index)
	case <-ctx.Done():
		s.logger.Debug("taxonomy load abandoned by caller, serving current index", "err", ctx.Err())
		return s.Current()
	}
}

// Current returns the installed index without contacting the source. It
// returns an empty index before the first Load.
func (s *Store) Current() *Index {
	if st := s.state.Load(); st != nil {
		return st.index
	}
	return NewIndex(nil)
}

// Checksum returns the checksum of the installed index.
func (s *Store) Checksum() string {
	return s.Current().Checksum()
}

// Lookup resolves label through the word vote of the installed index.
func (s *Store) Lookup(label string) (Row, bool) {
	return s.Current().WordVote(label)
}

// RowByToken looks up an exact token in the installed index.
func (s *Store) RowByToken(token string) (Row, bool) {
	return s.Current().RowByToken(token)
}

// OnChange registers fn to be called with the new checksum whenever a
// different index is installed or the store is cleared. Callbacks run
// synchronously on the goroutine that installed the index.
func (s *Store) OnChange(fn func(checksum string)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Clear drops the in-memory index and the snapshot cache.
func (s *Store) Clear(ctx context.Context) error {
	s.pullMu.Lock()
	defer s.pullMu.Unlock()
	prev := s.state.Swap(nil)
	err := s.snapshots.Clear(ctx)
	if prev != nil && prev.index.Checksum() != "" {
		s.notify("")
	}
	s.logger.Info("taxonomy cache cleared")
	return err
}

// Start launches the background refresher. It waits one refresh interval,
// then force-loads on every tick until Stop. Calling Start while the
// refresher runs, or with a zero interval, does nothing.
func (s *Store) Start(ctx context.Context) {
	if s.refresh <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.refreshLoop(ctx, s.done)
	s.logger.Debug("taxonomy refresher started", "interval", s.refresh)
}

// Stop halts the background refresher and waits for it to exit.
func (s *Store) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the background refresher is active.
func (s *Store) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Close stops the refresher.
func (s *Store) Close() error {
	s.Stop()
	return nil
}

func (s *Store) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ix := s.Load(ctx, true)
			s.logger.Debug("taxonomy refreshed", "rows", ix.Len(), "checksum", short(ix.Checksum()))
		}
	}
}

func (s *Store) fresh() (*Index, bool) {
	st := s.state.Load()
	if st == nil {
		return nil, false
	}
	if st.expires.IsZero() || s.now().Before(st.expires) {
		return st.index, true
	}
	return nil, false
}

func (s *Store) install(ix *Index, ttl time.Duration) {
	st := &storeState{index: ix}
	if ttl > 0 {
		st.expires = s.now().Add(ttl)
	} else if ix.Empty() {
		st.expires = s.now().Add(s.failureBackoff)
	}
	prev := s.state.Swap(st)
	if prev == nil || prev.index.Checksum() != ix.Checksum() {
		s.notify(ix.Checksum())
	}
}

func (s *Store) notify(checksum string) {
	s.mu.Lock()
	fns := append([]func(string){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn(checksum)
	}
}

// pull fetches from the source and installs the result. It runs under pullMu.
func (s *Store) pull(ctx context.Context) *Index {
	start := s.now()
	var prev *Index
	if st := s.state.Load(); st != nil {
		prev = st.index
	}

	snap, err := s.fetch(ctx)
	observability.Taxonomy().OnLoad(ctx, s.source.Name(), snap.Len(), s.now().Sub(start), err)
	if err != nil {
		return s.fallback(ctx, prev, err)
	}

	cached, cerr := s.snapshots.Load(ctx)
	if cerr != nil {
		s.logger.Warn("taxonomy cache unreadable, ignoring", "err", cerr)
		cached = nil
	}

	previous := prev.Snapshot()
	if prev.Empty() {
		previous = cached
	}
	drift := snap.MissingFields(previous, s.required)
	if len(drift) > 0 {
		s.logger.Warn("taxonomy schema drift, rebuilding index",
			"missing", drift, "err", errors.New(errors.ErrCodeSchemaDrift, "source dropped required columns"))
		observability.Taxonomy().OnDrift(ctx, drift)
	}

	switch {
	case len(drift) == 0 && !prev.Empty() && prev.Checksum() == snap.Checksum:
		s.logger.Debug("taxonomy unchanged, keeping index", "checksum", short(snap.Checksum))
		s.install(prev, s.refresh)
		return prev

	case len(drift) == 0 && cached != nil && cached.Checksum == snap.Checksum:
		ix := NewIndex(cached)
		s.logger.Info("taxonomy loaded from cache", "checksum", short(snap.Checksum), "rows", ix.Len())
		s.install(ix, s.refresh)
		return ix
	}

	ix := NewIndex(snap)
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.Warn("failed to persist taxonomy snapshot", "err", err)
	}
	st := ix.Stats()
	s.logger.Info("taxonomy index built",
		"source", s.source.Name(),
		"rows", st.Rows,
		"primary", st.Primary,
		"display", st.Display,
		"alias", st.Alias,
		"words", st.Words,
		"checksum", short(ix.Checksum()),
		"duration", s.now().Sub(start))
	s.install(ix, s.refresh)
	return ix
}

func (s *Store) fallback(ctx context.Context, prev *Index, cause error) *Index {
	if !prev.Empty() {
		s.logger.Warn("taxonomy pull failed, serving previous index", "err", cause, "rows", prev.Len())
		observability.Taxonomy().OnFallback(ctx, "memory")
		s.install(prev, s.failureBackoff)
		return prev
	}

	cached, err := s.snapshots.Load(ctx)
	if err != nil {
		s.logger.Warn("taxonomy cache unreadable, ignoring", "err", err)
	}
	if cached != nil {
		ix := NewIndex(cached)
		s.logger.Warn("taxonomy pull failed, serving cached snapshot", "err", cause, "rows", ix.Len())
		observability.Taxonomy().OnFallback(ctx, "disk")
		s.install(ix, s.failureBackoff)
		return ix
	}

	s.logger.Error("taxonomy unavailable, classification degraded", "err", cause)
	observability.Taxonomy().OnFallback(ctx, "empty")
	ix := NewIndex(nil)
	s.install(ix, s.failureBackoff)
	return ix
}

// fetch tries the bulk export, then falls back to paging.
func (s *Store) fetch(ctx context.Context) (*Snapshot, error) {
	var snap *Snapshot
	err := httputil.Retry(ctx, s.retryAttempts, s.retryDelay, func() error {
		var err error
		snap, err = s.source.Export(ctx)
		return err
	})
	if err == nil && snap.Len() > 0 {
		return complete(snap), nil
	}
	if err == nil {
		err = ErrNoRows
	}
	if ctx.Err() != nil {
		return nil, errors.Wrap(errors.ErrCodeTaxonomyUnavailable, ctx.Err(), "taxonomy export")
	}
	s.logger.Warn("taxonomy export failed, falling back to paged fetch", "source", s.source.Name(), "err", err)

	snap, err = s.fetchPaged(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTaxonomyUnavailable, err, "taxonomy paged fetch from %s", s.source.Name())
	}
	if snap.Len() == 0 {
		return nil, errors.Wrap(errors.ErrCodeTaxonomyUnavailable, ErrNoRows, "taxonomy paged fetch from %s", s.source.Name())
	}
	snap.Checksum = Checksum(snap.Rows)
	return complete(snap), nil
}

func (s *Store) fetchPaged(ctx context.Context) (*Snapshot, error) {
	out := &Snapshot{}
	fields := map[string]struct{}{}
	for offset := 0; ; offset += s.pageSize {
		var page *Snapshot
		err := httputil.Retry(ctx, s.retryAttempts, s.retryDelay, func() error {
			var err error
			page, err = s.source.Page(ctx, offset, s.pageSize)
			return err
		})
		if err != nil {
			return nil, err
		}
		out.Rows = append(out.Rows, page.Rows...)
		for _, f := range page.Fields {
			fields[f] = struct{}{}
		}
		if page.Len() < s.pageSize {
			break
		}
	}
	if len(fields) > 0 {
		out.Fields = sortedKeys(fields)
	}
	return out, nil
}

func complete(snap *Snapshot) *Snapshot {
	if snap.Checksum == "" {
		snap.Checksum = Checksum(snap.Rows)
	}
	if snap.Fields == nil {
		snap.Fields = FieldsOf(snap.Rows, nil)
	}
	return snap
}

func short(checksum string) string {
	if len(checksum) > 12 {
		return checksum[:12]
	}
	return checksum
}
