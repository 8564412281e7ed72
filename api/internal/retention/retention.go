package retention

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Purger is satisfied by store.RecognitionRepo.
type Purger interface {
	PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Start runs purger.PurgeOlderThan(maxAge) on the given 5-field cron schedule
// (minute hour day-of-month month day-of-week) until ctx is done.
// An empty schedule disables the job and returns nil.
func Start(ctx context.Context, p Purger, schedule string, maxAge time.Duration) error {
	schedule = strings.TrimSpace(schedule)
	if schedule == "" {
		log.Println("retention: disabled (retention_schedule not set)")
		return nil
	}
	if maxAge <= 0 {
		return errors.New("retention: max age must be > 0")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("retention: invalid schedule %q: %w", schedule, err)
	}
	log.Printf("retention: purging rows older than %s (cron: %s)", maxAge, schedule)
	go run(ctx, p, sched, maxAge, time.Now)
	return nil
}

func run(ctx context.Context, p Purger, sched cron.Schedule, maxAge time.Duration, now func() time.Time) {
	for {
		t := now()
		next := sched.Next(t)
		wait := next.Sub(t)
		log.Printf("retention: next purge at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Second))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Printf("retention: stopped")
			return
		case <-timer.C:
		}
		PurgeOnce(ctx, p, maxAge)
	}
}

// PurgeOnce runs a single purge and logs the outcome.
func PurgeOnce(ctx context.Context, p Purger, maxAge time.Duration) (int64, error) {
	pctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	n, err := p.PurgeOlderThan(pctx, maxAge)
	if err != nil {
		log.Printf("retention: purge failed: %v", err)
		return 0, err
	}
	log.Printf("retention: purged %d recognitions older than %s", n, maxAge)
	return n, nil
}
