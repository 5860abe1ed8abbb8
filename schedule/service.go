package schedule

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/hupe1980/cmdmesh/core"
	"github.com/hupe1980/cmdmesh/logging"
	"github.com/hupe1980/cmdmesh/prompt"
)

// KindScheduled is the session kind of scheduler launches.
const KindScheduled = "scheduled"

// Observer receives the outcome of every fire.
type Observer interface {
	ObserveFire(schedulerID string, d time.Duration, err error)
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Clock       clock.WithTicker
	Tick        time.Duration
	Concurrency int
	Logger      logging.Logger
	Observer    Observer
}

// Service fires due schedulers on every tick.
type Service struct {
	core.LoggerAdapter

	store    Store
	prompts  prompt.Store
	launcher prompt.Launcher
	opts     ServiceOptions

	mu      sync.Mutex
	started bool
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewService creates a scheduler service.
func NewService(store Store, prompts prompt.Store, launcher prompt.Launcher, optFns ...func(o *ServiceOptions)) *Service {
	opts := ServiceOptions{
		Clock:       clock.RealClock{},
		Tick:        30 * time.Second,
		Concurrency: 4,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Service{
		LoggerAdapter: core.NewLoggerAdapter(opts.Logger),
		store:         store,
		prompts:       prompts,
		launcher:      launcher,
		opts:          opts,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start begins ticking. It is non-blocking. A service starts at most once.
func (svc *Service) Start(ctx context.Context) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.started {
		return
	}
	svc.started = true
	svc.running = true

	ticker := svc.opts.Clock.NewTicker(svc.opts.Tick)
	go svc.run(ctx, ticker)

	svc.LogInfo("scheduler.started", "tick", svc.opts.Tick.String())
}

// Stop halts ticking and waits for in-flight fires.
func (svc *Service) Stop() {
	svc.mu.Lock()
	if !svc.running {
		svc.mu.Unlock()
		return
	}
	svc.running = false
	svc.mu.Unlock()

	close(svc.stopCh)
	<-svc.doneCh

	svc.LogInfo("scheduler.stopped")
}

func (svc *Service) run(ctx context.Context, ticker clock.Ticker) {
	defer close(svc.doneCh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-svc.stopCh:
			return
		case <-ticker.C():
			if _, err := svc.RunOnce(ctx); err != nil {
				svc.LogError("scheduler.tick.failed", "error", err.Error())
			}
		}
	}
}

// RunOnce fires every due scheduler once and returns how many fired.
// Store failures are returned; launch failures are logged and observed
// only, so a failed launch still consumes its occurrence.
//
// Due schedulers are picked from a snapshot, but each one is re-read and
// advanced atomically right before its launch. A scheduler deleted, disabled
// or already advanced while it waited for a launch slot is skipped.
func (svc *Service) RunOnce(ctx context.Context) (int, error) {
	now := svc.opts.Clock.Now()

	all, err := svc.store.List()
	if err != nil {
		return 0, err
	}

	var due []string
	for _, s := range all {
		if s.State(now) == StateDue {
			due = append(due, s.ID)
		}
	}
	if len(due) == 0 {
		return 0, nil
	}

	var fired atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(svc.opts.Concurrency)
	for _, id := range due {
		g.Go(func() error {
			ok, err := svc.fire(ctx, id, now)
			if ok {
				fired.Add(1)
			}
			return err
		})
	}

	err = g.Wait()

	return int(fired.Load()), err
}

// errNotDue aborts an Update for a scheduler that stopped being due.
var errNotDue = errors.New("scheduler no longer due")

func (svc *Service) fire(ctx context.Context, id string, now time.Time) (bool, error) {
	start := svc.opts.Clock.Now()

	s, err := svc.store.Update(id, func(s *Scheduler) error {
		if s.State(now) != StateDue {
			return errNotDue
		}
		if err := s.Fire(now); err != nil {
			// The run is recorded and NextRun cleared; keep it.
			svc.LogWarn("scheduler.advance.failed", "scheduler", s.ID, "error", err.Error())
		}
		return nil
	})
	switch {
	case errors.Is(err, errNotDue), core.CodeOf(err) == core.ErrCodeNotFound:
		svc.LogDebug("scheduler.fire.skipped", "scheduler", id, "reason", skipReason(err))
		return false, nil
	case err != nil:
		return false, err
	}

	err = svc.launch(ctx, s)

	var next string
	if s.NextRun != nil {
		next = s.NextRun.Format(time.RFC3339)
	}
	if err != nil {
		svc.LogError("scheduler.fire", "scheduler", s.ID, "prompt", s.PromptID, "occurrence", s.OccurrenceCount, "next_run", next, "error", err.Error())
	} else {
		svc.LogInfo("scheduler.fire", "scheduler", s.ID, "prompt", s.PromptID, "occurrence", s.OccurrenceCount, "next_run", next)
	}
	if svc.opts.Observer != nil {
		svc.opts.Observer.ObserveFire(s.ID, svc.opts.Clock.Since(start), err)
	}

	return true, nil
}

func skipReason(err error) string {
	if errors.Is(err, errNotDue) {
		return "not_due"
	}
	return "deleted"
}

func (svc *Service) launch(ctx context.Context, s *Scheduler) error {
	p, err := svc.prompts.Get(s.PromptID)
	if err != nil {
		return err
	}

	commands, err := p.Materialize(s.Params)
	if err != nil {
		return err
	}

	return svc.launcher.Launch(ctx, prompt.LaunchRequest{
		Kind:     KindScheduled,
		Origin:   s.ID,
		Project:  s.Project,
		Username: s.CreatedBy,
		Commands: commands,
	})
}
