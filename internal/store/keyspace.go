// Package store implements the keyspace: a concurrent map from string key to
// byte-string value with optional per-key TTL expiry, plus the expiry index
// used for active sweeping and the transaction-id fence EXEC uses to bound
// its 30ms watchdog.
package store

import (
	"errors"
	"math"
	"strconv"
	"sync"
	"time"
)

// ErrNotInteger is returned by Incr when the existing value doesn't parse
// as a 32-bit signed decimal integer, or the incremented result would
// overflow that range.
var ErrNotInteger = errors.New("value is not an integer or out of range")

// entry is one keyspace value: an opaque byte string plus an optional
// absolute expiry instant. A zero Expiry means no TTL.
type entry struct {
	value  []byte
	expiry time.Time
}

func (e entry) hasExpiry() bool { return !e.expiry.IsZero() }

// Keyspace is the concurrent map of key -> (value, expiry) described in
// spec.md §3/§4.3. One sync.RWMutex covers both the key map and the expiry
// bucket map so the cross-invariant between them (a key in the index is
// always present in the keyspace with a matching expiry) is maintained
// under a single critical section, per spec.md §9's instruction to collapse
// the reference's coarse-mutex-plus-inner-RWMutex into one lock.
type Keyspace struct {
	mu      sync.RWMutex
	entries map[string]entry
	// buckets maps an expiry instant to the set of keys expiring at that
	// instant. A key appears in at most one bucket at a time.
	buckets map[time.Time]map[string]struct{}

	txMu  sync.Mutex
	txID  string
	txSet bool
}

// New creates an empty keyspace.
func New() *Keyspace {
	return &Keyspace{
		entries: make(map[string]entry),
		buckets: make(map[time.Time]map[string]struct{}),
	}
}

// Get returns the value for key, or ok=false if the key is absent or its
// expiry has passed. Expiry is checked lazily against a monotonic clock
// reading even if the active sweeper hasn't run yet.
func (k *Keyspace) Get(key string) (value []byte, ok bool) {
	k.mu.RLock()
	e, found := k.entries[key]
	k.mu.RUnlock()
	if !found {
		return nil, false
	}
	if e.hasExpiry() && !time.Now().Before(e.expiry) {
		return nil, false
	}
	return e.value, true
}

// Set upserts key with value and no expiry, removing any prior TTL
// indexing for key.
func (k *Keyspace) Set(key string, value []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.removeFromBucketLocked(key, k.entries[key])
	k.entries[key] = entry{value: value}
}

// SetWithExpiry upserts key with value, expiring at now+ttl. The key is
// (re)indexed into the bucket for that instant and removed from whatever
// bucket it previously occupied.
func (k *Keyspace) SetWithExpiry(key string, value []byte, ttl time.Duration) {
	exp := time.Now().Add(ttl)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.removeFromBucketLocked(key, k.entries[key])
	k.entries[key] = entry{value: value, expiry: exp}

	bucket, ok := k.buckets[exp]
	if !ok {
		bucket = make(map[string]struct{}, 1)
		k.buckets[exp] = bucket
	}
	bucket[key] = struct{}{}
}

// Incr parses the existing value (defaulting to 0 if key is absent) as a
// 32-bit signed decimal integer, adds one, and stores the result, all while
// holding mu for writing so concurrent INCRs on the same key can't
// interleave their read and write halves and lose updates.
func (k *Keyspace) Incr(key string) (int64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var n int64
	if e, ok := k.entries[key]; ok && (!e.hasExpiry() || time.Now().Before(e.expiry)) {
		parsed, err := strconv.ParseInt(string(e.value), 10, 32)
		if err != nil {
			return 0, ErrNotInteger
		}
		n = parsed
	}
	n++
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0, ErrNotInteger
	}

	k.removeFromBucketLocked(key, k.entries[key])
	k.entries[key] = entry{value: []byte(strconv.FormatInt(n, 10))}
	return n, nil
}

// removeFromBucketLocked drops key from the bucket indexed by prev's expiry,
// if prev had one. Caller must hold k.mu for writing.
func (k *Keyspace) removeFromBucketLocked(key string, prev entry) {
	if !prev.hasExpiry() {
		return
	}
	bucket, ok := k.buckets[prev.expiry]
	if !ok {
		return
	}
	delete(bucket, key)
	if len(bucket) == 0 {
		delete(k.buckets, prev.expiry)
	}
}

// ActiveSweep deletes every key whose expiry bucket instant is in the past,
// and drops the bucket itself. Intended to be called periodically (spec.md
// recommends roughly every 10s); lazy expiry on Get means correctness never
// depends on the sweep having run.
func (k *Keyspace) ActiveSweep() {
	now := time.Now()

	k.mu.Lock()
	defer k.mu.Unlock()
	for exp, bucket := range k.buckets {
		if exp.After(now) {
			continue
		}
		for key := range bucket {
			delete(k.entries, key)
		}
		delete(k.buckets, exp)
	}
}

// Len reports the number of live keys, expired-but-not-yet-swept entries
// included (matching Redis's DBSIZE semantics); not part of spec.md's
// required surface, but useful for tests.
func (k *Keyspace) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.entries)
}

// SetTransaction records id as the in-flight EXEC transaction id, used to
// fence the 30ms watchdog in internal/cmd against a stale clear.
func (k *Keyspace) SetTransaction(id string) {
	k.txMu.Lock()
	defer k.txMu.Unlock()
	k.txID = id
	k.txSet = true
}

// GetTransaction returns the current transaction id, if any.
func (k *Keyspace) GetTransaction() (id string, ok bool) {
	k.txMu.Lock()
	defer k.txMu.Unlock()
	return k.txID, k.txSet
}

// ClearTransactionIfCurrent clears the transaction id only if it still
// matches id -- EXEC's watchdog and its normal-completion path race to
// clear the same id, and whichever fires first must not stomp a newer
// transaction that started in between.
func (k *Keyspace) ClearTransactionIfCurrent(id string) {
	k.txMu.Lock()
	defer k.txMu.Unlock()
	if k.txSet && k.txID == id {
		k.txSet = false
		k.txID = ""
	}
}
