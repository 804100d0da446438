package instance

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/davenport-labs/conjure/internal/config"
	"github.com/davenport-labs/conjure/internal/telegraph"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the duration
// until the next fire time. Falls back to a minute on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return time.Minute
	}
	d := time.Until(sched.Next(time.Now()))
	if d <= 0 {
		return time.Minute
	}
	return d
}

// RunSweeps drives the engine until ctx is cancelled: inbound intake, the
// reply sweep on a fixed interval, and cron-scheduled reap and purge
// passes. Each pass logs and carries on; only a dead inbound channel or
// cancellation stops the loop.
func (e *Engine) RunSweeps(ctx context.Context, inbound <-chan telegraph.InboundMessage, cfg config.SchedulerConfig) error {
	interval := time.Duration(cfg.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	reapTimer := time.NewTimer(nextCronDuration(cfg.ReapCron))
	defer reapTimer.Stop()
	purgeTimer := time.NewTimer(nextCronDuration(cfg.PurgeCron))
	defer purgeTimer.Stop()

	log.Printf("instance: sweeps running (reply every %s, reap %q, purge %q)",
		interval, cfg.ReapCron, cfg.PurgeCron)

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			if err := e.HandleInbound(ctx, msg); err != nil {
				log.Printf("instance: inbound: %v", err)
			}

		case now := <-ticker.C:
			if err := e.Tick(ctx, now); err != nil {
				log.Printf("instance: reply sweep: %v", err)
			}

		case <-reapTimer.C:
			if err := e.ReapInactive(ctx, time.Now()); err != nil {
				log.Printf("instance: reap sweep: %v", err)
			}
			reapTimer.Reset(nextCronDuration(cfg.ReapCron))

		case <-purgeTimer.C:
			if err := e.PurgeTerminated(ctx); err != nil {
				log.Printf("instance: purge sweep: %v", err)
			}
			purgeTimer.Reset(nextCronDuration(cfg.PurgeCron))
		}
	}
}
