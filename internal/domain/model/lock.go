package model

import (
	"fmt"
	"time"
)

// LockToken is the ephemeral value stored under an issue-scoped lock key.
// It exists only for the lock's lifetime and is never persisted. The nonce
// makes tokens unique even for the same owner within one clock tick, so a
// late release from an expired holder can never match a newer holder's value.
type LockToken struct {
	Owner      string
	AcquiredAt time.Time
	Nonce      string
}

// Value returns the string stored in the lock store and compared on release.
func (t LockToken) Value() string {
	return fmt.Sprintf("%s:%d:%s", t.Owner, t.AcquiredAt.UnixNano(), t.Nonce)
}
