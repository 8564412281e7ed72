package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakePurger struct {
	mu    sync.Mutex
	calls []time.Duration
	err   error
	hit   chan struct{}
}

func (f *fakePurger) PurgeOlderThan(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, olderThan)
	f.mu.Unlock()
	if f.hit != nil {
		select {
		case f.hit <- struct{}{}:
		default:
		}
	}
	return 3, f.err
}

// everyTick fires a fixed interval after the given time.
type everyTick time.Duration

func (e everyTick) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

func TestStartDisabledWithoutSchedule(t *testing.T) {
	if err := Start(context.Background(), &fakePurger{}, "  ", time.Hour); err != nil {
		t.Fatalf("expected nil for empty schedule, got %v", err)
	}
}

func TestStartRejectsBadInput(t *testing.T) {
	if err := Start(context.Background(), &fakePurger{}, "not a cron", time.Hour); err == nil {
		t.Fatal("expected invalid schedule error")
	}
	if err := Start(context.Background(), &fakePurger{}, "0 3 * * *", 0); err == nil {
		t.Fatal("expected max age error")
	}
}

func TestStartValidScheduleStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := Start(ctx, &fakePurger{}, "0 3 * * *", 24*time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestRunPurgesOnSchedule(t *testing.T) {
	p := &fakePurger{hit: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		run(ctx, p, everyTick(5*time.Millisecond), 48*time.Hour, time.Now)
		close(done)
	}()

	select {
	case <-p.hit:
	case <-time.After(2 * time.Second):
		t.Fatal("purge never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not stop after cancel")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls[0] != 48*time.Hour {
		t.Fatalf("unexpected max age %v", p.calls[0])
	}
}

func TestPurgeOnce(t *testing.T) {
	n, err := PurgeOnce(context.Background(), &fakePurger{}, time.Hour)
	if err != nil || n != 3 {
		t.Fatalf("unexpected result n=%d err=%v", n, err)
	}
	boom := errors.New("boom")
	if _, err := PurgeOnce(context.Background(), &fakePurger{err: boom}, time.Hour); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
