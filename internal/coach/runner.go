package coach

import (
	"context"
	"time"
)

// Run drives the engine with a one-second tick until the context is cancelled
// or the session completes. It starts the engine before the first tick and
// stops it on cancellation; after completion the engine is left intact so the
// host can read the final snapshot.
func Run(ctx context.Context, e *Engine) {
	e.Start()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.Stop()
			return
		case <-ticker.C:
			e.Tick()
			if e.Completed() {
				return
			}
		}
	}
}
