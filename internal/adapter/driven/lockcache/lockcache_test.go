package lockcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetIfAbsent(t *testing.T) {
	store := New(time.Minute)

	assert.True(t, store.SetIfAbsent("issue_lock:a/b#1", "w1", time.Minute))
	assert.False(t, store.SetIfAbsent("issue_lock:a/b#1", "w2", time.Minute), "live lock blocks a second holder")
	assert.True(t, store.SetIfAbsent("issue_lock:a/b#2", "w2", time.Minute), "keys are independent")
}

func TestSetIfAbsentAfterExpiry(t *testing.T) {
	store := New(time.Minute)

	assert.True(t, store.SetIfAbsent("issue_lock:a/b#1", "w1", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	assert.True(t, store.SetIfAbsent("issue_lock:a/b#1", "w2", time.Minute), "expired lock is reclaimable")
}

func TestDeleteIfValue(t *testing.T) {
	store := New(time.Minute)
	store.SetIfAbsent("issue_lock:a/b#1", "w1", time.Minute)

	assert.False(t, store.DeleteIfValue("issue_lock:a/b#1", "w2"), "mismatched value must not delete")
	assert.False(t, store.DeleteIfValue("issue_lock:missing", "w1"))
	assert.True(t, store.DeleteIfValue("issue_lock:a/b#1", "w1"))
	assert.True(t, store.SetIfAbsent("issue_lock:a/b#1", "w2", time.Minute), "deleted key is free")
}

func TestDeleteIfValueExpired(t *testing.T) {
	store := New(time.Minute)
	store.SetIfAbsent("issue_lock:a/b#1", "w1", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	// An expired entry no longer matches; the stale holder cannot release.
	assert.False(t, store.DeleteIfValue("issue_lock:a/b#1", "w1"))
}

func TestConcurrentSetIfAbsent(t *testing.T) {
	store := New(time.Minute)

	const goroutines = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if store.SetIfAbsent("issue_lock:a/b#1", "w", time.Minute) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}
