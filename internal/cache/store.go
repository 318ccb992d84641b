// Package cache implements the client data cache: keyed query results tagged
// with the data they depend on, shared in-flight requests, subscriptions
// that are notified on change, and tag invalidation driven by mutations.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"expensetracker/internal/log"
	"expensetracker/internal/metrics"
)

// ErrNoFetcher is returned when an entry is loaded before any query or
// subscription supplied a fetch function for it.
var ErrNoFetcher = errors.New("cache: no fetch function for key")

// FetchFunc performs the network call behind a cache entry.
type FetchFunc func(ctx context.Context) (any, error)

// Listener receives entry snapshots. It is never called with the store lock
// held, so it may call back into the store.
type Listener func(Snapshot)

// Snapshot is a point-in-time copy of an entry's state.
type Snapshot struct {
	Key       string
	Data      any
	HasData   bool
	Err       error
	Loading   bool
	Stale     bool
	FetchedAt time.Time
}

type entry struct {
	key       string
	tags      []Tag
	fetch     FetchFunc
	data      any
	hasData   bool
	err       error
	fetchedAt time.Time
	stale     bool
	gen       uint64 // bumped by every invalidation
	dataGen   uint64 // generation the stored data was fetched at
	inflight  int
	subs      map[uint64]Listener
	refs      atomic.Int32
}

func (e *entry) snapshot() Snapshot {
	return Snapshot{
		Key:       e.key,
		Data:      e.data,
		HasData:   e.hasData,
		Err:       e.err,
		Loading:   e.inflight > 0,
		Stale:     e.stale,
		FetchedAt: e.fetchedAt,
	}
}

func (e *entry) listeners() []Listener {
	out := make([]Listener, 0, len(e.subs))
	for _, l := range e.subs {
		out = append(out, l)
	}
	return out
}

// Options configures a Store.
type Options struct {
	// MaxEntries bounds the number of unsubscribed entries kept.
	MaxEntries int
	// MaxAge makes data stale after a while; zero keeps data fresh until
	// it is invalidated.
	MaxAge time.Duration
	// Retention is how long an entry nobody subscribes to stays cached.
	Retention time.Duration
	Logger    *log.Logger
}

// Store is the client data cache. The zero value is not usable; use New.
type Store struct {
	mu           sync.Mutex
	entries      *LRUCache[*entry]
	group        singleflight.Group
	maxAge       time.Duration
	logger       *log.Logger
	nextSub      uint64
	epoch        uint64
	onInvalidate []func([]Tag)
	background   sync.WaitGroup
	now          func() time.Time
}

// New creates a store.
func New(opts Options) *Store {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 256
	}
	if opts.Retention <= 0 {
		opts.Retention = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	s := &Store{
		entries: NewLRUCache[*entry](opts.MaxEntries, opts.Retention),
		maxAge:  opts.MaxAge,
		logger:  logger.WithComponent(log.ComponentCache),
		now:     time.Now,
	}
	s.entries.Pin(func(e *entry) bool { return e.refs.Load() > 0 })
	return s
}

// lookup returns the entry for key, creating it if needed. Must hold s.mu.
func (s *Store) lookup(key string, tags []Tag, fetch FetchFunc) *entry {
	e, ok := s.entries.Get(key)
	if !ok {
		e = &entry{key: key, subs: make(map[uint64]Listener)}
		s.entries.Set(key, e)
		metrics.CacheEntries.Set(float64(s.entries.Size()))
	}
	if tags != nil {
		e.tags = tags
	}
	if fetch != nil {
		e.fetch = fetch
	}
	return e
}

// fresh reports whether e can be served without a fetch. Must hold s.mu.
func (s *Store) fresh(e *entry) bool {
	if !e.hasData || e.stale {
		return false
	}
	return s.maxAge <= 0 || s.now().Sub(e.fetchedAt) < s.maxAge
}

// Query returns the cached data for key when fresh, and otherwise fetches it,
// stores it under tags and notifies the entry's subscribers. On failure the
// error is recorded on the entry and previously fetched data is kept.
func (s *Store) Query(ctx context.Context, key string, tags []Tag, fetch FetchFunc) (any, error) {
	s.mu.Lock()
	e := s.lookup(key, tags, fetch)
	if s.fresh(e) {
		data := e.data
		s.mu.Unlock()
		metrics.CacheRequests.WithLabelValues("hit").Inc()
		s.logger.DebugContext(ctx, "Cache hit", log.NewFields().WithOperation(log.OpQuery).WithCache(endpointOf(key), key).ToSlice()...)
		return data, nil
	}
	s.mu.Unlock()

	metrics.CacheRequests.WithLabelValues("miss").Inc()
	return s.load(ctx, e)
}

// load fetches e, sharing the call with concurrent loads of the same key and
// generation. The fetch is detached from ctx cancellation: a caller giving up
// does not abort the request, whose result is still cached.
func (s *Store) load(ctx context.Context, e *entry) (any, error) {
	s.mu.Lock()
	gen, epoch, fetch := e.gen, s.epoch, e.fetch
	s.mu.Unlock()
	if fetch == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoFetcher, e.key)
	}

	var leader atomic.Bool
	flight := fmt.Sprintf("%d/%s#%d", epoch, e.key, gen)
	ch := s.group.DoChan(flight, func() (any, error) {
		leader.Store(true)
		s.begin(e)
		data, err := fetch(context.WithoutCancel(ctx))
		s.complete(e, gen, data, err)
		return data, err
	})

	select {
	case res := <-ch:
		if !leader.Load() {
			metrics.CacheRequests.WithLabelValues("coalesced").Inc()
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Store) begin(e *entry) {
	s.mu.Lock()
	e.inflight++
	snap, ls := e.snapshot(), e.listeners()
	s.mu.Unlock()
	notify(ls, snap)
}

func (s *Store) complete(e *entry, gen uint64, data any, err error) {
	s.mu.Lock()
	e.inflight--
	if cur, ok := s.entries.Get(e.key); !ok || cur != e {
		// Dropped by Reset or eviction while in flight.
		s.mu.Unlock()
		return
	}

	switch {
	case gen < e.dataGen:
		// A fetch started later already landed.
	case err != nil:
		e.err = err
		metrics.CacheFetchErrors.Inc()
		fields := log.NewFields().WithOperation(log.OpRead).WithCache(endpointOf(e.key), e.key).WithError(err)
		s.logger.Warn("Cache fetch failed", append(fields.ToSlice(), "retained", e.hasData)...)
	default:
		e.data, e.hasData, e.err = data, true, nil
		e.fetchedAt = s.now()
		e.dataGen = gen
		e.stale = gen != e.gen
	}
	snap, ls := e.snapshot(), e.listeners()
	s.mu.Unlock()
	notify(ls, snap)
}

func notify(ls []Listener, snap Snapshot) {
	for _, l := range ls {
		l(snap)
	}
}

func (s *Store) loadInBackground(e *entry) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.load(context.Background(), e); err != nil {
			s.logger.Debug("Background fetch failed", log.FieldCacheKey, e.key, log.FieldError, err.Error())
		}
	}()
}

// Subscription is a mounted interest in one entry.
type Subscription struct {
	store *Store
	entry *entry
	id    uint64
	once  sync.Once
}

// Subscribe registers l for key. l immediately receives the current
// snapshot, and a fetch starts when the entry has no data or is stale.
// While subscribed the entry is never evicted.
func (s *Store) Subscribe(key string, tags []Tag, fetch FetchFunc, l Listener) *Subscription {
	s.mu.Lock()
	e := s.lookup(key, tags, fetch)
	s.nextSub++
	id := s.nextSub
	e.subs[id] = l
	e.refs.Add(1)
	needFetch := !s.fresh(e)
	snap := e.snapshot()
	s.mu.Unlock()

	if needFetch {
		snap.Loading = true
	}
	l(snap)
	if needFetch {
		s.loadInBackground(e)
	}
	return &Subscription{store: s, entry: e, id: id}
}

// Unsubscribe drops the listener. An in-flight fetch is not cancelled; its
// result is cached but no longer delivered here. Safe to call twice.
func (sub *Subscription) Unsubscribe() {
	sub.once.Do(func() {
		s := sub.store
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := sub.entry.subs[sub.id]; !ok {
			return
		}
		delete(sub.entry.subs, sub.id)
		if sub.entry.refs.Add(-1) == 0 {
			s.entries.Touch(sub.entry.key)
		}
	})
}

// Snapshot returns the current state of the subscribed entry.
func (sub *Subscription) Snapshot() Snapshot {
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	return sub.entry.snapshot()
}

// Refetch fetches the entry regardless of freshness; used by retry actions.
func (sub *Subscription) Refetch(ctx context.Context) (any, error) {
	return sub.store.load(ctx, sub.entry)
}

// Mutate runs do and, only if it succeeds, invalidates the given tags.
// A failed mutation leaves the cache untouched.
func (s *Store) Mutate(ctx context.Context, invalidates []Tag, do FetchFunc) (any, error) {
	res, err := do(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "Mutation failed, cache untouched",
			log.FieldOperation, log.OpMutate,
			log.FieldTags, TagStrings(invalidates),
			log.FieldError, err.Error())
		return nil, err
	}
	s.Invalidate(invalidates...)
	return res, nil
}

// Invalidate marks every entry hit by tags stale and refetches the ones that
// have subscribers. Listeners registered with OnInvalidate are told.
func (s *Store) Invalidate(tags ...Tag) int {
	n := s.invalidate(tags, "local")

	s.mu.Lock()
	hooks := append([]func([]Tag){}, s.onInvalidate...)
	s.mu.Unlock()
	for _, h := range hooks {
		h(tags)
	}
	return n
}

// InvalidateTags applies an invalidation that happened elsewhere, for example
// in another process. OnInvalidate hooks are not called, so it is never
// echoed back.
func (s *Store) InvalidateTags(tags []Tag, origin string) int {
	n := s.invalidate(tags, "remote")
	s.logger.Debug("Remote invalidation applied", "origin", origin, log.FieldTags, TagStrings(tags), "entries", n)
	return n
}

// OnInvalidate registers a hook for local invalidations.
func (s *Store) OnInvalidate(fn func(tags []Tag)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

func (s *Store) invalidate(tags []Tag, source string) int {
	if len(tags) == 0 {
		return 0
	}

	type notice struct {
		snap Snapshot
		ls   []Listener
	}
	var (
		hit     []*entry
		notices []notice
		refetch []*entry
	)

	s.mu.Lock()
	s.entries.Range(func(_ string, e *entry) bool {
		if hitsAny(tags, e.tags) {
			hit = append(hit, e)
		}
		return true
	})
	for _, e := range hit {
		e.gen++
		e.stale = true
		if len(e.subs) > 0 {
			snap := e.snapshot()
			snap.Loading = true
			notices = append(notices, notice{snap: snap, ls: e.listeners()})
			refetch = append(refetch, e)
		}
	}
	s.mu.Unlock()

	metrics.CacheInvalidations.WithLabelValues(source).Add(float64(len(hit)))
	s.logger.Debug("Cache invalidated",
		log.FieldOperation, log.OpInvalidate,
		log.FieldTags, TagStrings(tags),
		"source", source,
		"entries", len(hit),
		"refetching", len(refetch))

	for _, n := range notices {
		notify(n.ls, n.snap)
	}
	for _, e := range refetch {
		s.loadInBackground(e)
	}
	return len(hit)
}

// Snapshot returns the state of key without creating or fetching it.
func (s *Store) Snapshot(key string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries.Get(key)
	if !ok {
		return Snapshot{}, false
	}
	return e.snapshot(), true
}

// Reset drops every entry, subscribed ones included. In-flight fetches finish
// but their results are discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries.Clear()
	s.epoch++
	s.mu.Unlock()
	metrics.CacheEntries.Set(0)
	s.logger.Debug("Cache reset")
}

// CleanExpired removes entries past their retention. Implements Cleaner.
func (s *Store) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.entries.CleanExpired()
	metrics.CacheEntries.Set(float64(s.entries.Size()))
	return n
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	return s.entries.Size()
}

// Wait blocks until fetches started by subscriptions and invalidations are
// done.
func (s *Store) Wait() {
	s.background.Wait()
}
