package store

import "time"

// NoTTL is the sentinel TTL meaning "this entry never expires". Using a
// dedicated negative sentinel rather than relying on Duration's maximum
// value sidesteps the portability question noted in the design: the
// "maximum duration" trick only works if every reader agrees what
// "maximum" means, and a negative value can never collide with a real,
// caller-supplied TTL.
const NoTTL time.Duration = -1

// entry is a single stored value together with its expiration policy and
// the timestamp used for both TTL checks and LRU bookkeeping.
type entry struct {
	value        []byte
	ttl          time.Duration
	lastAccessed time.Time
}

// entrySize returns the number of bytes an entry contributes to the
// keyspace's byte budget: the length of its key plus the length of its
// value. Per-entry overhead (timestamps, the TTL field, bucket/list
// pointers) is not charged against the budget.
func entrySize(key string, value []byte) int64 {
	return int64(len(key)) + int64(len(value))
}

// expired reports whether e should be considered expired as of now,
// given its TTL. Entries with NoTTL never expire.
func (e *entry) expired(now time.Time) bool {
	return e.ttl != NoTTL && now.Sub(e.lastAccessed) > e.ttl
}
