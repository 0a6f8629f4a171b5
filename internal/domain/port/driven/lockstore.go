package driven

import "time"

// LockStore defines the driven port for the shared key-value store backing
// per-issue locks. Both operations must be atomic with respect to each other.
type LockStore interface {
	// SetIfAbsent stores value under key with the given TTL only if no live
	// value exists. Reports whether the value was stored.
	SetIfAbsent(key, value string, ttl time.Duration) bool

	// DeleteIfValue deletes key only if its current value equals value, as a
	// single check-then-delete operation. Reports whether a delete happened.
	DeleteIfValue(key, value string) bool
}
