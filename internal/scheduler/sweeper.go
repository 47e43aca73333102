package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/domain"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/observability"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/repository"
	"github.com/SynergyRentals/SynergyVAHouse-sub002/internal/service"
)

const sweepLockKey = "sla:sweep:lock"

// Sweeper periodically evaluates every open task with a deadline and
// raises warning and breach signals. Flags on the task are monotonic,
// so a tick that crashes halfway resumes safely on the next one.
type Sweeper struct {
	tasks      repository.TaskRepository
	taskSvc    *service.TaskService
	escalation *service.EscalationService
	redis      *redis.Client
	metrics    *observability.Metrics
	logger     *zap.Logger
	clock      Clock

	interval      time.Duration
	warningWindow time.Duration
	stop          chan struct{}
	done          chan struct{}
	started       atomic.Bool
	stopOnce      sync.Once
}

// SweeperDependencies bundles collaborators. Redis is optional; when
// present it serializes ticks across instances with a SET NX lock.
type SweeperDependencies struct {
	TaskRepo          repository.TaskRepository
	TaskService       *service.TaskService
	EscalationService *service.EscalationService
	Redis             *redis.Client
	Metrics           *observability.Metrics
	Logger            *zap.Logger
	Clock             Clock
	Interval          time.Duration
	WarningWindow     time.Duration
}

// NewSweeper creates the sweeper.
func NewSweeper(deps SweeperDependencies) *Sweeper {
	clock := deps.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		tasks:         deps.TaskRepo,
		taskSvc:       deps.TaskService,
		escalation:    deps.EscalationService,
		redis:         deps.Redis,
		metrics:       deps.Metrics,
		logger:        logger,
		clock:         clock,
		interval:      deps.Interval,
		warningWindow: deps.WarningWindow,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("sla sweeper started",
			zap.Duration("interval", s.interval),
			zap.Duration("warning_window", s.warningWindow),
		)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight tick to finish. Safe to
// call repeatedly, and a no-op when Start never ran.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.started.Load() {
		<-s.done
	}
}

// Tick performs one full sweep. Exported so tests drive it directly.
func (s *Sweeper) Tick(ctx context.Context) {
	if !s.acquireLock(ctx) {
		return
	}

	open, err := s.tasks.ListOpenWithDeadline(ctx)
	if err != nil {
		s.logger.Error("sweep listing failed", zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordSweep(1)
		}
		return
	}

	now := s.clock.Now()
	taskErrors := 0
	for i := range open {
		if err := s.evaluate(ctx, &open[i], now); err != nil {
			taskErrors++
			s.logger.Error("sweep evaluation failed",
				zap.String("task_id", open[i].ID),
				zap.Error(err),
			)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordSweep(taskErrors)
	}
	s.logger.Debug("sweep completed",
		zap.Int("evaluated", len(open)),
		zap.Int("errors", taskErrors),
	)
}

// evaluate places the task in one of three bands relative to its
// deadline: quiet, inside the warning window, or past due.
func (s *Sweeper) evaluate(ctx context.Context, task *domain.Task, now time.Time) error {
	if task.SLAAt == nil {
		return nil
	}
	deadline := *task.SLAAt

	switch {
	case now.After(deadline) || now.Equal(deadline):
		current := task
		if !task.SLABreached {
			breached, signaled, err := s.taskSvc.MarkBreached(ctx, task.ID)
			if err != nil {
				return err
			}
			if signaled && s.metrics != nil {
				s.metrics.RecordSLABreach()
			}
			current = breached
		}
		// breach signaling is single-shot, but delivery is not: a breached
		// task stays eligible until one dispatch actually goes through
		if !current.SLABreached || current.SLAEscalated || s.escalation == nil {
			return nil
		}
		if err := s.escalation.Escalate(ctx, current); err != nil {
			return err
		}
		_, err := s.taskSvc.MarkEscalated(ctx, current.ID)
		return err

	case now.After(deadline.Add(-s.warningWindow)):
		if task.SLAWarned || task.SLABreached {
			return nil
		}
		_, signaled, err := s.taskSvc.MarkWarned(ctx, task.ID)
		if err != nil {
			return err
		}
		if signaled && s.metrics != nil {
			s.metrics.RecordSLAWarning()
		}
		return nil

	default:
		return nil
	}
}

// acquireLock takes the cross-instance sweep lock. Without Redis the
// sweeper runs unguarded, which is correct for a single instance.
func (s *Sweeper) acquireLock(ctx context.Context) bool {
	if s.redis == nil {
		return true
	}
	ttl := s.interval
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	ok, err := s.redis.SetNX(ctx, sweepLockKey, s.clock.Now().Unix(), ttl).Result()
	if err != nil {
		s.logger.Warn("sweep lock unavailable, proceeding without it", zap.Error(err))
		return true
	}
	if !ok {
		s.logger.Debug("sweep skipped, another instance holds the lock")
	}
	return ok
}
