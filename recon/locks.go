package recon

import "sync"

// keyedMutex serializes operations per key. Stats updates and verification
// for the same user must not interleave, or the single-alive-character
// invariant could be violated by two near-simultaneous reports.
type keyedMutex struct {
	locks sync.Map // key → *sync.Mutex
}

// lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
