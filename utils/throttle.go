package utils

import (
	"sync"
	"time"
)

// Throttle returns a wrapper around f that invokes it at most once per wait
// interval. Calls landing inside an interval schedule exactly one trailing
// invocation when the interval expires, so the last call of a burst is never
// dropped and the final state is never stale.
func Throttle(f func(), wait time.Duration) func() {
	var (
		mu      sync.Mutex
		last    time.Time
		pending bool
	)

	return func() {
		mu.Lock()
		now := time.Now()
		if elapsed := now.Sub(last); elapsed < wait {
			if !pending {
				pending = true
				time.AfterFunc(wait-elapsed, func() {
					mu.Lock()
					pending = false
					last = time.Now()
					mu.Unlock()
					f()
				})
			}
			mu.Unlock()
			return
		}
		last = now
		mu.Unlock()
		f()
	}
}
