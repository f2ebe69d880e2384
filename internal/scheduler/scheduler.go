// Package scheduler runs background maintenance jobs.
package scheduler

import (
    "context"
    "time"

    "github.com/go-co-op/gocron/v2"
    "go.uber.org/zap"
)

// Sweeper purges expired holds and reports how many were removed.
type Sweeper interface {
    Sweep(ctx context.Context) (int64, error)
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
    s   gocron.Scheduler
    log *zap.Logger
}

func New(log *zap.Logger) (*Scheduler, error) {
    s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
    if err != nil {
        return nil, err
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &Scheduler{s: s, log: log}, nil
}

// AddHoldSweep purges expired holds every interval, starting immediately.
// A run that overlaps the next tick pushes it back rather than stacking.
func (s *Scheduler) AddHoldSweep(sw Sweeper, every time.Duration) error {
    _, err := s.s.NewJob(
        gocron.DurationJob(every),
        gocron.NewTask(func() {
            ctx, cancel := context.WithTimeout(context.Background(), every)
            defer cancel()
            n, err := sw.Sweep(ctx)
            if err != nil {
                s.log.Warn("hold sweep failed", zap.Error(err))
                return
            }
            if n > 0 {
                s.log.Info("expired holds purged", zap.Int64("count", n))
            }
        }),
        gocron.WithName("hold-sweep"),
        gocron.WithSingletonMode(gocron.LimitModeReschedule),
        gocron.WithStartAt(gocron.WithStartImmediately()),
    )
    return err
}

func (s *Scheduler) Start() { s.s.Start() }

// Shutdown stops scheduling and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.s.Shutdown() }
