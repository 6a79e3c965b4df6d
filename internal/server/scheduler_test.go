package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/harvestlabs/grantscout/internal/store"
)

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	unlocked []string
}

func (f *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] {
		return false
	}
	f.held[key] = true
	return true
}

func (f *fakeLocker) Unlock(ctx context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, key)
	f.unlocked = append(f.unlocked, key)
}

func TestRunMonitorHoldsLockUntilDone(t *testing.T) {
	locks := &fakeLocker{held: map[string]bool{}}
	s := &Scheduler{
		Locks: locks,
		NewRunner: func(openaiKey, searchKey, modelID string) (Runner, error) {
			return nil, fmt.Errorf("providers unavailable")
		},
		Logger: log.New(io.Discard, "", 0),
	}
	m := store.Monitor{ID: "m1"}
	ctx := context.Background()

	if !locks.TryLock(ctx, monitorLockKey(m.ID), monitorLockTTL) {
		t.Fatalf("initial lock acquisition must succeed")
	}
	// a second replica is shut out while the lock is held
	if locks.TryLock(ctx, monitorLockKey(m.ID), monitorLockTTL) {
		t.Fatalf("held lock must not be acquirable twice")
	}

	s.runMonitor(ctx, m)

	if len(locks.unlocked) != 1 || locks.unlocked[0] != "monitor:lock:m1" {
		t.Fatalf("lock must be released once the run finishes: %v", locks.unlocked)
	}
	if !locks.TryLock(ctx, monitorLockKey(m.ID), monitorLockTTL) {
		t.Fatalf("lock must be acquirable again after release")
	}
}

func TestIsDue(t *testing.T) {
	past := time.Now().Add(-2 * time.Hour)
	recent := time.Now().Add(-10 * time.Minute)

	if !isDue("@hourly", nil) {
		t.Fatalf("never-run monitor must be due")
	}
	if !isDue("@hourly", &past) {
		t.Fatalf("@hourly with 2h-old last run must be due")
	}
	if isDue("@hourly", &recent) {
		t.Fatalf("@hourly with 10m-old last run must not be due")
	}

	yesterday := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &yesterday) {
		t.Fatalf("@daily with 25h-old last run must be due")
	}
	if isDue("@daily", &past) {
		t.Fatalf("@daily with 2h-old last run must not be due")
	}

	// every-minute cron fires for any last run older than a minute
	if !isDue("* * * * *", &recent) {
		t.Fatalf("every-minute cron with 10m-old last run must be due")
	}

	// invalid expressions degrade to @daily
	if isDue("not a cron", &past) {
		t.Fatalf("invalid cron must fall back to daily cadence")
	}
}
