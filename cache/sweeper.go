package cache

import "time"

// Swept is the minimal surface the sweeper needs from a store.
type Swept interface {
	Sweep() int
}

// StartSweeper runs Sweep on every store at the given interval in a
// background goroutine. The returned function stops it.
//
// Lazy expiry at lookup keeps the stores correct on its own; the sweep
// just reclaims memory held by entries nobody queries anymore.
func StartSweeper(interval time.Duration, stores ...Swept) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				for _, s := range stores {
					s.Sweep()
				}
			}
		}
	}()
	return func() { close(done) }
}
