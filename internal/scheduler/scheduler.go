package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spyglass-dev/spyglass/internal/metrics"
	"github.com/spyglass-dev/spyglass/internal/models"
	"github.com/spyglass-dev/spyglass/internal/results"
	"github.com/spyglass-dev/spyglass/internal/store"
	"github.com/spyglass-dev/spyglass/internal/types"
)

// CheckRunner executes one check for a monitor. The executor implements it.
type CheckRunner interface {
	Run(ctx context.Context, monitor *models.Monitor) (types.CheckOutcome, error)
}

// ResultSink receives every completed check. The result handler implements it.
type ResultSink interface {
	HandleResult(ref types.MonitorRef, outcome types.CheckOutcome, opts *results.Options) (*models.CheckResult, error)
}

// Scheduler owns one recurring timer per active monitor. Timers are
// per-monitor and never overlap: a fire is skipped while the previous
// check for that monitor is still running. A global semaphore bounds
// in-flight checks across all monitors.
type Scheduler struct {
	store   store.Store
	runner  CheckRunner
	sink    ResultSink
	metrics *metrics.Metrics

	sem chan struct{}

	mu   sync.RWMutex
	jobs map[uint]*monitorJob

	ctx    context.Context
	cancel context.CancelFunc
}

type monitorJob struct {
	monitor  models.Monitor
	ticker   *time.Ticker
	cancel   context.CancelFunc
	inFlight atomic.Bool
}

func New(st store.Store, runner CheckRunner, sink ResultSink, m *metrics.Metrics, maxConcurrent int) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = 32
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:   st,
		runner:  runner,
		sink:    sink,
		metrics: m,
		sem:     make(chan struct{}, maxConcurrent),
		jobs:    make(map[uint]*monitorJob),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start loads all active monitors and begins scheduling.
func (s *Scheduler) Start() error {
	slog.Info("starting scheduler")

	monitors, err := s.store.ListActiveMonitors()
	if err != nil {
		return fmt.Errorf("load monitors: %w", err)
	}

	scheduled := 0
	for _, monitor := range monitors {
		if s.ScheduleMonitor(monitor) {
			scheduled++
		}
	}

	slog.Info("scheduler started", "monitors", scheduled)
	return nil
}

// Stop cancels all monitor timers. Checks already in flight finish and
// still flow through the result handler.
func (s *Scheduler) Stop() {
	slog.Info("stopping scheduler")
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		job.ticker.Stop()
		job.cancel()
	}

	s.jobs = make(map[uint]*monitorJob)
	slog.Info("scheduler stopped")
}

// ScheduleMonitor (re)arms the recurring timer for a monitor, replacing
// any existing timer for the same ID. Paused and push monitors are never
// scheduled; scheduling one cancels any stale timer instead. Returns
// whether a timer is now armed.
func (s *Scheduler) ScheduleMonitor(monitor models.Monitor) bool {
	if monitor.Paused || types.MonitorKind(monitor.Kind) == types.KindPush {
		s.CancelMonitor(monitor.ID)
		return false
	}

	if monitor.Interval <= 0 {
		slog.Error("refusing to schedule monitor with invalid interval", "monitor_id", monitor.ID, "interval", monitor.Interval)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[monitor.ID]; ok {
		existing.ticker.Stop()
		existing.cancel()
	}

	jobCtx, jobCancel := context.WithCancel(s.ctx)
	ticker := time.NewTicker(time.Duration(monitor.Interval) * time.Second)

	job := &monitorJob{
		monitor: monitor,
		ticker:  ticker,
		cancel:  jobCancel,
	}

	s.jobs[monitor.ID] = job

	go s.runJob(jobCtx, job)

	slog.Info("scheduled monitor", "monitor_id", monitor.ID, "name", monitor.Name, "interval_s", monitor.Interval)
	return true
}

// CancelMonitor clears the monitor's timer if present. Idempotent and
// advisory: an already-started check is allowed to finish.
func (s *Scheduler) CancelMonitor(monitorID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs[monitorID]; ok {
		job.ticker.Stop()
		job.cancel()
		delete(s.jobs, monitorID)
		slog.Info("cancelled monitor", "monitor_id", monitorID)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job *monitorJob) {
	defer job.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-job.ticker.C:
			// Skip the fire if the previous check is still running;
			// scheduling resumes at the next interval boundary.
			if !job.inFlight.CompareAndSwap(false, true) {
				s.metrics.SkippedOverlaps.Inc()
				slog.Warn("skipping check, previous still in flight", "monitor_id", job.monitor.ID)
				continue
			}

			monitorCopy := job.monitor
			go func() {
				defer job.inFlight.Store(false)
				s.executeCheck(monitorCopy)
			}()
		}
	}
}

func (s *Scheduler) executeCheck(monitor models.Monitor) {
	select {
	case s.sem <- struct{}{}:
	case <-s.ctx.Done():
		return
	}
	defer func() { <-s.sem }()

	outcome, err := s.runner.Run(s.ctx, &monitor)
	if err != nil {
		// Config errors never enter the pipeline.
		slog.Error("check not executable", "monitor_id", monitor.ID, "error", err)
		return
	}

	ref := types.MonitorRef{ID: monitor.ID, Name: monitor.Name}
	if _, err := s.sink.HandleResult(ref, outcome, nil); err != nil {
		slog.Error("result handling failed", "monitor_id", monitor.ID, "error", err)
		return
	}

	if outcome.Status == types.StatusUp {
		slog.Debug("check succeeded", "monitor_id", monitor.ID, "latency_ms", outcome.LatencyMs)
	} else {
		slog.Info("check not up", "monitor_id", monitor.ID, "status", outcome.Status, "message", outcome.Message)
	}
}

// RunMonitorCheck executes a check immediately, independent of the timer,
// and returns the result after it has passed through the result handler.
// Config errors are returned synchronously to the caller.
func (s *Scheduler) RunMonitorCheck(ctx context.Context, monitorID uint) (*models.CheckResult, error) {
	monitor, err := s.store.GetMonitor(monitorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("monitor %d not found", monitorID)
		}
		return nil, err
	}

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	outcome, err := s.runner.Run(ctx, monitor)
	if err != nil {
		return nil, err
	}

	ref := types.MonitorRef{ID: monitor.ID, Name: monitor.Name}
	return s.sink.HandleResult(ref, outcome, nil)
}

// Status reports the scheduler's registry state.
func (s *Scheduler) Status() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"active_monitors": len(s.jobs),
		"running":         s.ctx.Err() == nil,
	}
}
