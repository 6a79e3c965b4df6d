package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/harvestlabs/grantscout/internal/index"
	"github.com/harvestlabs/grantscout/internal/research"
	"github.com/harvestlabs/grantscout/internal/store"
)

// monitorLockTTL bounds how long a crashed replica can hold a monitor
// lock. Live runs release the lock as soon as they finish, so the TTL
// only needs to outlast the slowest plausible run.
const monitorLockTTL = 30 * time.Minute

func monitorLockKey(id string) string { return "monitor:lock:" + id }

// Locker serializes monitor runs across replicas
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) bool
	Unlock(ctx context.Context, key string)
}

// redisLocker implements Locker with redis SetNX
type redisLocker struct {
	client *redis.Client
}

func (r redisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) bool {
	ok, err := r.client.SetNX(ctx, key, "1", ttl).Result()
	return err == nil && ok
}

func (r redisLocker) Unlock(ctx context.Context, key string) {
	r.client.Del(ctx, key)
}

// Scheduler re-runs enabled monitors when their cron schedule is due and
// archives the resulting reports. A distributed lock keeps replicas from
// firing the same monitor twice; it is held for the whole run.
type Scheduler struct {
	Store     *store.Store
	Locks     Locker // nil disables cross-replica locking
	Index     *index.Index
	NewRunner RunnerFactory
	Interval  time.Duration
	Logger    *log.Logger
	Stop      chan struct{}
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	monitors, err := s.Store.ListEnabledMonitors(ctx)
	if err != nil {
		s.Logger.Printf("list monitors: %v", err)
		return
	}
	for _, m := range monitors {
		var last *time.Time
		if !m.LastRunAt.IsZero() && m.LastRunAt.Unix() != 0 {
			t := m.LastRunAt
			last = &t
		}
		if !isDue(m.CronExpr, last) {
			continue
		}

		if s.Locks != nil && !s.Locks.TryLock(ctx, monitorLockKey(m.ID), monitorLockTTL) {
			continue
		}

		go s.runMonitor(ctx, m)
	}
}

func (s *Scheduler) runMonitor(ctx context.Context, m store.Monitor) {
	if s.Locks != nil {
		// released only after the run fully finishes, TouchMonitor included
		defer s.Locks.Unlock(ctx, monitorLockKey(m.ID))
	}

	// jitter to avoid stampedes
	time.Sleep(time.Duration(250+int64(time.Now().UnixNano()%250)) * time.Millisecond)

	runner, err := s.NewRunner("", "", "")
	if err != nil {
		s.Logger.Printf("monitor %s: runner init failed: %v", m.ID, err)
		return
	}
	req := research.Request{Query: m.Query, FarmType: m.FarmType, Location: m.Location}
	report, err := runner.Run(ctx, req, research.LogEmitter{Logger: s.Logger})
	if err != nil {
		s.Logger.Printf("monitor %s: research failed: %v", m.ID, err)
		return
	}

	id, err := s.Store.SaveReport(ctx, m.UserID, req, report)
	if err != nil {
		s.Logger.Printf("monitor %s: archive failed: %v", m.ID, err)
		return
	}
	if s.Index != nil {
		if err := s.Index.IndexReport(id, report); err != nil {
			s.Logger.Printf("monitor %s: indexing failed: %v", m.ID, err)
		}
	}
	if err := s.Store.TouchMonitor(ctx, m.ID, time.Now().UTC()); err != nil {
		s.Logger.Printf("monitor %s: touch failed: %v", m.ID, err)
	}
	s.Logger.Printf("monitor %s: report %s archived", m.ID, id)
}

// isDue determines whether a monitor with cronSpec should run now given
// its last run time. Supports "@daily", "@hourly" and standard 5-field
// cron expressions; invalid expressions fall back to @daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
