package store

import "time"

// runReaper is the background TTL sweep. It wakes on a fixed interval,
// takes the store mutex for the whole pass (reaper scans are O(n) and
// that is an accepted cost at the scales ripplekv targets, see the
// package doc), enumerates every bucket via hashtable.Each with no extra
// allocation for the table itself, and removes whatever has expired.
//
// Keys to remove are collected into a local slice first and deleted
// afterward rather than removed mid-iteration, since hashtable.Each does
// not tolerate the table being mutated while it is iterating.
func (s *Store) runReaper() {
	defer close(s.reaperDone)

	ticker := time.NewTicker(s.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopReaper:
			return
		case <-ticker.C:
			s.reapOnce()
		}
	}
}

// reapOnce performs a single expired-key sweep. It is split out from
// runReaper so tests can drive it deterministically without waiting on a
// ticker.
func (s *Store) reapOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var expiredKeys []string
	s.table.Each(func(key string, e *entry) {
		if e.expired(now) {
			expiredKeys = append(expiredKeys, key)
		}
	})

	for _, key := range expiredKeys {
		if e, ok := s.table.Get(key); ok {
			s.removeLocked(key, e, "ttl")
		}
	}
	if len(expiredKeys) > 0 {
		if s.logger != nil {
			s.logger.Infow("ttl reaper swept expired keys", "count", len(expiredKeys))
		}
		s.reportSize()
	}
}
