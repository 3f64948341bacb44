package responder

import (
	"context"
	"log"
	"time"
)

// RunEvery runs ProcessOnce immediately and then on every tick until the
// context is cancelled. Cycle errors are logged, not fatal. onCycle, if not
// nil, is called with each successful cycle's summary.
func (r *Responder) RunEvery(ctx context.Context, interval time.Duration, onCycle func(Summary)) error {
	run := func() {
		summary, err := r.ProcessOnce(ctx)
		if err != nil {
			log.Printf("Cycle failed: %v", err)
			return
		}
		if summary.Processed > 0 {
			log.Printf("Cycle done: %d processed, %d replied, %d fallback, %d failed",
				summary.Processed, summary.Replied, summary.Fallback, summary.Failed)
		}
		if onCycle != nil {
			onCycle(summary)
		}
	}

	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run()
		}
	}
}
