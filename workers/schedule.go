package workers

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// runEvery runs pass now and then interval after each pass returns,
// so passes never overlap. Errors are logged and the loop goes on.
func (e *Engine) runEvery(ctx context.Context, name string, interval time.Duration, pass func(context.Context) error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if ctx.Err() != nil {
			return
		}

		if err := pass(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("pass failed", zap.String("loop", name), zap.Error(err))
			e.countError(name, "pass")
		}
		timer.Reset(interval)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
