package lock

import (
	"context"
	"time"

	"github.com/ignite/redislock/internal/pkg/logger"
)

// renewalWorker periodically extends a held lock's TTL so a long-running
// holder survives past its configured expire without the caller manually
// calling Extend. It is a cooperative goroutine: stop() closes a channel
// the run loop selects on, so shutdown is prompt regardless of where the
// loop is in its sleep, not bounded by the renewal interval.
type renewalWorker struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func startRenewalWorker(l *Lock) *renewalWorker {
	w := &renewalWorker{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go w.run(l)
	return w
}

func (w *renewalWorker) run(l *Lock) {
	defer close(w.doneCh)

	ticker := time.NewTicker(l.renewalInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx := context.Background()
			status, err := l.scripts.extend(ctx, l.key, l.id, l.expire.Milliseconds())
			if err != nil {
				logger.Warn("auto-renewal failed", "name", l.name, "error", err)
				continue
			}
			if status != 1 {
				logger.Warn("auto-renewal lost ownership", "name", l.name)
				l.mu.Lock()
				l.held = false
				l.renewal = nil
				l.mu.Unlock()
				return
			}
			logger.Debug("auto-renewed lock", "name", l.name)
		}
	}
}

// stop signals the worker to exit and waits for it to do so. Safe to call
// once; Lock.Release and Lock.Reset clear their renewal reference before
// calling it so it is never invoked twice for the same worker.
func (w *renewalWorker) stop() {
	close(w.stopCh)
	<-w.doneCh
}
