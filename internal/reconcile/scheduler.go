// Package reconcile periodically removes queue rows whose claim was
// recorded but never dropped from the queue.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"
)

const retryDelay = 30 * time.Second

// Reconciler performs one recovery pass and reports how many rows it removed.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
}

// Scheduler runs a Reconciler on a cron expression.
type Scheduler struct {
	cron       string
	reconciler Reconciler
	logger     *zap.Logger
	now        func() time.Time

	mu      sync.Mutex
	running bool
}

func NewScheduler(cron string, reconciler Reconciler, logger *zap.Logger) (*Scheduler, error) {
	if cron != "" && !gronx.New().IsValid(cron) {
		return nil, fmt.Errorf("invalid reconcile cron %q", cron)
	}
	return &Scheduler{cron: cron, reconciler: reconciler, logger: logger, now: time.Now}, nil
}

// Start launches the schedule loop. An empty cron disables it.
func (s *Scheduler) Start(ctx context.Context) context.CancelFunc {
	if s.cron == "" {
		s.logger.Info("reconcile disabled")
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	s.logger.Info("reconcile enabled", zap.String("cron", s.cron))
	go s.loop(ctx)
	return cancel
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.cron, s.now(), false)
		if err != nil {
			s.logger.Error("reconcile next tick failed", zap.String("cron", s.cron), zap.Error(err))
			if !sleep(ctx, retryDelay) {
				return
			}
			continue
		}

		wait := next.Sub(s.now())
		if wait <= 0 {
			wait = time.Second
		}
		if !sleep(ctx, wait) {
			return
		}
		s.RunNow(ctx)
	}
}

// RunNow performs one pass unless another is still in progress.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, nil
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := s.now()
	n, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		s.logger.Error("reconcile failed", zap.Error(err))
		return 0, err
	}
	s.logger.Debug("reconcile done", zap.Int("removed", n), zap.Duration("took", s.now().Sub(start)))
	return n, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
