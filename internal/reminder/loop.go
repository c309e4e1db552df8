package reminder

import (
	"context"
	"fmt"
	"time"

	"eventbot/internal/observability/metrics"
	logx "eventbot/pkg/logx"

	"github.com/google/uuid"
)

// runEvery ticks immediately and then every interval until ctx is canceled.
// A started tick is not interrupted by cancellation.
func runEvery(ctx context.Context, task string, interval time.Duration, log logx.Logger, m *metrics.Metrics, tick func(context.Context) (Result, error)) error {
	log.Info(task+" started", logx.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		runTick(ctx, task, interval, log, m, tick)
		select {
		case <-ctx.Done():
			log.Info(task + " stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// tickTimeout bounds a single tick.
func tickTimeout(interval time.Duration) time.Duration {
	return max(2*interval, time.Minute)
}

func runTick(ctx context.Context, task string, interval time.Duration, log logx.Logger, m *metrics.Metrics, tick func(context.Context) (Result, error)) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), tickTimeout(interval))
	defer cancel()

	start := time.Now()
	res, err := func() (res Result, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		return tick(tctx)
	}()
	m.ObserveTick(task, time.Since(start), err)

	log = log.With(logx.String("tick", uuid.NewString()))
	if err != nil {
		log.Error(task+" tick failed", logx.Err(err))
		return
	}
	if res.Due > 0 {
		log.Debug(task+" tick done",
			logx.Int("due", res.Due),
			logx.Int("sent", res.Sent),
			logx.Int("pending", res.Pending),
			logx.Int("skipped", res.Skipped),
		)
	}
}
