package broker

import (
	"context"
	"time"
)

// maintenanceLoop drops memoized scores on a fixed interval. Cached scores
// carry a recency bonus computed at scoring time, so they age with the clock.
func (b *Broker) maintenanceLoop(ctx context.Context) {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.CacheResetInterval())
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.engine.ClearCache()
		}
	}
}
