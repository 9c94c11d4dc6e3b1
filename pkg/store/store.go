// Package store implements the ripplekv keyspace: a concurrent in-memory
// key–value table with TTL expiration, a byte budget, and
// least-recently-used eviction once that budget is exceeded.
//
// Store combines three pieces under one mutex (a chained hash table
// (pkg/hashtable) for O(1) average lookup, a recency index (pkg/lru) for
// eviction ordering, and a running byte counter) because the invariants
// that matter ("at most one entry per key", "current_bytes tracks live
// entries", "the LRU list and the hash table agree on membership") only
// hold if every operation that touches one of the three touches all
// three atomically. A single coarse mutex is the simplest way to get
// that; see the package doc below for when sharding would be worth it.
//
// Example usage:
//
//	s := store.New(store.Options{MaxBytes: 64 << 20})
//	defer s.Close()
//
//	s.Set("session:abc", []byte("user-7"), 30*time.Second)
//	if v, ok := s.Get("session:abc"); ok {
//		fmt.Println(string(v))
//	}
//	s.Del("session:abc")
//
// Sharding note: a single mutex serializing every Set/Get/Del and every
// reaper pass is acceptable at the scales ripplekv targets. Splitting
// the keyspace into N
// independently-locked shards by a hash prefix of the key is a reasonable
// evolution if contention becomes a bottleneck, but it is not required
// and Store does not do it.
package store

import (
	"sync"
	"time"

	"github.com/ripplekv/ripplekv/pkg/hashtable"
	"github.com/ripplekv/ripplekv/pkg/lru"
)

// DefaultMaxBytes is the byte budget used when Options.MaxBytes is zero:
// 1 GiB.
const DefaultMaxBytes int64 = 1 << 30

// DefaultReaperInterval is how often the background TTL reaper scans the
// keyspace for expired entries.
const DefaultReaperInterval = time.Second

// initialBuckets is the starting capacity handed to the underlying hash
// table.
const initialBuckets = 8

// Metrics receives notifications about store activity. A nil Metrics is
// valid everywhere a Store accepts one; Store checks for nil before each
// call, so a nil Metrics disables reporting. internal/telemetry
// provides an implementation backed by Prometheus collectors.
type Metrics interface {
	// SetKeys reports the current number of live keys.
	SetKeys(n int)
	// SetBytes reports the current byte-budget usage.
	SetBytes(n int64)
	// RecordEviction records one key being removed, tagged with why:
	// "ttl", "budget", or "del".
	RecordEviction(reason string)
}

// Logger is the subset of a structured logger Store needs. It matches
// *zap.SugaredLogger's shape, so passing one directly works; a nil
// Logger is valid and disables logging.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
}

// Options configures a Store. The zero value is valid and selects all
// defaults.
type Options struct {
	// MaxBytes caps Σ len(key)+len(value) over live entries. Zero means
	// DefaultMaxBytes.
	MaxBytes int64
	// ReaperInterval is the TTL sweep period. Zero means
	// DefaultReaperInterval. A negative value disables the background
	// reaper entirely (expired entries are still hidden from readers,
	// just never proactively removed), useful for deterministic tests.
	ReaperInterval time.Duration
	// Metrics receives store activity notifications. Nil disables
	// metrics.
	Metrics Metrics
	// Logger receives structured log lines. Nil disables logging.
	Logger Logger
}

// Store is a thread-safe in-memory keyspace with TTL expiration and
// byte-budget LRU eviction.
type Store struct {
	mu    sync.Mutex
	table *hashtable.HashTable[*entry]
	lru   *lru.Index

	currentBytes int64
	maxBytes     int64

	metrics Metrics
	logger  Logger

	reaperInterval time.Duration
	stopReaper     chan struct{}
	reaperDone     chan struct{}
}

// New creates a Store and, unless Options.ReaperInterval is negative,
// starts its background TTL reaper goroutine. Callers must call Close
// when done to stop that goroutine.
func New(opts Options) *Store {
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	interval := opts.ReaperInterval
	if interval == 0 {
		interval = DefaultReaperInterval
	}

	table, err := hashtable.New[*entry](initialBuckets)
	if err != nil {
		// initialBuckets is a positive constant; this cannot happen.
		panic(err)
	}

	s := &Store{
		table:          table,
		lru:            lru.New(),
		maxBytes:       maxBytes,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		reaperInterval: interval,
	}

	if interval > 0 {
		s.stopReaper = make(chan struct{})
		s.reaperDone = make(chan struct{})
		go s.runReaper()
	}

	return s
}

// Close stops the background TTL reaper and waits for it to exit. It is
// safe to call Close more than once or on a Store whose reaper was
// disabled via a negative ReaperInterval.
func (s *Store) Close() {
	if s.stopReaper == nil {
		return
	}
	select {
	case <-s.stopReaper:
		// already closed
	default:
		close(s.stopReaper)
	}
	<-s.reaperDone
}

// Set stores value under key with the given ttl (use NoTTL for "never
// expires"). If the byte budget is exceeded afterward, least-recently-used
// entries are evicted until the keyspace is back under budget or empty.
func (s *Store) Set(key string, value []byte, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if old, ok := s.table.Get(key); ok {
		s.currentBytes -= entrySize(key, old.value)
	}

	s.table.Insert(key, &entry{value: value, ttl: ttl, lastAccessed: now})
	s.currentBytes += entrySize(key, value)
	s.lru.Touch(key)

	s.enforceBudget()
	s.reportSize()
}

// Get returns the value stored for key. It returns ok=false if the key is
// absent or has expired; an expired entry is removed as a side effect and
// never revives the key's LRU recency. TTL is evaluated before the
// access-time touch so an expired entry cannot be resurrected by the
// touch itself.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.table.Get(key)
	if !ok {
		return nil, false
	}

	now := time.Now()
	if e.expired(now) {
		s.removeLocked(key, e, "ttl")
		s.reportSize()
		return nil, false
	}

	e.lastAccessed = now
	s.lru.Touch(key)
	return e.value, true
}

// Del removes key from the keyspace. It returns whether the key was
// present.
func (s *Store) Del(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.table.Get(key)
	if !ok {
		return false
	}
	s.removeLocked(key, e, "del")
	s.reportSize()
	return true
}

// removeLocked removes key from both the hash table and the LRU index
// and adjusts the byte counter. Callers must hold s.mu.
func (s *Store) removeLocked(key string, e *entry, reason string) {
	s.currentBytes -= entrySize(key, e.value)
	s.table.Remove(key)
	s.lru.Remove(key)
	if s.metrics != nil {
		s.metrics.RecordEviction(reason)
	}
}

// enforceBudget evicts least-recently-used entries until current_bytes is
// at or below max_bytes, or the LRU index is empty. Callers must hold
// s.mu. Only Set calls this; eviction never runs from Get or the
// background reaper.
func (s *Store) enforceBudget() {
	for s.currentBytes > s.maxBytes {
		key, ok := s.lru.EvictBack()
		if !ok {
			break
		}
		e, ok := s.table.Get(key)
		if !ok {
			continue
		}
		s.currentBytes -= entrySize(key, e.value)
		s.table.Remove(key)
		if s.metrics != nil {
			s.metrics.RecordEviction("budget")
		}
		if s.logger != nil {
			s.logger.Debugw("evicted key over byte budget", "key", key)
		}
	}
}

// reportSize pushes the current key count and byte usage to Metrics, if
// configured. Callers must hold s.mu.
func (s *Store) reportSize() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetKeys(s.table.Size())
	s.metrics.SetBytes(s.currentBytes)
}

// Len returns the current number of live keys, including ones that have
// expired but have not yet been reaped. Intended for tests and
// diagnostics.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.table.Size()
}

// CurrentBytes returns the current byte-budget usage. Intended for tests
// and diagnostics.
func (s *Store) CurrentBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentBytes
}
