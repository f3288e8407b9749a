// Package supervisor implements spec.md §4.3: the single poll loop that
// claims queued jobs, starts a Crawl Engine for the one it claims, sweeps
// lease/TTL expiry, restarts or fails stalled jobs, and drives a drained
// job through the Finalizer.
package supervisor

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/crawlkit-dev/crawlkit/internal/config"
	"github.com/crawlkit-dev/crawlkit/internal/engine"
	"github.com/crawlkit-dev/crawlkit/internal/finalizer"
	"github.com/crawlkit-dev/crawlkit/internal/jobmodel"
	"github.com/crawlkit-dev/crawlkit/internal/obslog"
	"github.com/crawlkit-dev/crawlkit/internal/store"
	"github.com/google/uuid"
)

// maxRestarts bounds how many times a stalled or orphaned job is restarted
// before the Supervisor gives up and fails it outright (spec.md §4.3).
const maxRestarts = 2

// Supervisor owns the one Crawl Engine a process runs at a time. It never
// touches a FrontierEntry or Document directly — every mutation goes
// through the Store, which remains the sole authority on legal state
// transitions.
type Supervisor struct {
	store      store.Store
	env        config.EnvConfig
	engine     *engine.Engine
	finalizer  *finalizer.Finalizer
	outputRoot string
	obs        obslog.Sink
	workerID   string

	mu           sync.Mutex
	activeJobID  *uuid.UUID
	activeCancel context.CancelFunc
	activeDone   chan error
}

// New builds a Supervisor. outputRoot must match the directory engine.Engine
// was constructed with, so Finalize reads the same pages.raw.jsonl/kb the
// Engine wrote.
func New(st store.Store, env config.EnvConfig, eng *engine.Engine, fin *finalizer.Finalizer, outputRoot string, obs obslog.Sink) *Supervisor {
	return &Supervisor{
		store:      st,
		env:        env,
		engine:     eng,
		finalizer:  fin,
		outputRoot: outputRoot,
		obs:        obs,
		workerID:   "supervisor-" + uuid.New().String(),
	}
}

// Run polls every env.WorkerPollInterval until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.env.WorkerPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one pass of spec.md §4.3's rules. Reaping a finished engine
// (and, if it drained into finalizing, invoking the Finalizer) happens
// before a fresh claim, so a just-vacated engine slot is free to reuse in
// the same tick rather than waiting a full poll interval.
func (s *Supervisor) tick(ctx context.Context) {
	now := time.Now()

	jobs, err := s.store.ListNonTerminalJobs()
	if err != nil {
		s.logEvent(uuid.UUID{}, jobmodel.EventLevelError, "list_jobs_failed", map[string]any{"error": err.Error()})
		return
	}

	for _, job := range jobs {
		s.applyStallRules(job, now)
	}
	for _, job := range jobs {
		if _, err := s.store.ExpireStaleLeases(job.ID(), now); err != nil {
			s.logEvent(job.ID(), jobmodel.EventLevelWarn, "expire_leases_failed", map[string]any{"error": err.Error()})
		}
	}
	for _, job := range jobs {
		if job.IsExpired(now) {
			if err := s.store.SetState(job.ID(), jobmodel.JobExpired, now); err != nil {
				s.logEvent(job.ID(), jobmodel.EventLevelWarn, "expire_job_failed", map[string]any{"error": err.Error()})
				continue
			}
			s.logEvent(job.ID(), jobmodel.EventLevelWarn, "job_expired", nil)
		}
	}

	s.reapFinishedEngine()

	s.mu.Lock()
	idle := s.activeJobID == nil
	s.mu.Unlock()
	if idle {
		s.claimAndStart(ctx)
	}
}

// applyStallRules evaluates the three stall rules against a running job's
// heartbeat/progress timestamps (spec.md §4.3). Orphaned and stalled share
// a restart-then-fail policy; hard-stalled fails immediately since a job
// that has fetched nothing in its startup window was never making progress
// to restart into.
func (s *Supervisor) applyStallRules(job jobmodel.Job, now time.Time) {
	if job.State() != jobmodel.JobRunning {
		return
	}
	switch {
	case now.Sub(job.HeartbeatAt()) > s.env.OrphanedThreshold:
		s.restartOrFail(job, now, "orphaned_no_heartbeat")
	case job.PagesFetched() > 0 && now.Sub(job.LastProgressAt()) > s.env.StalledThreshold:
		s.restartOrFail(job, now, "stalled_no_progress")
	case job.PagesFetched() == 0 && job.StartedAt() != nil && now.Sub(*job.StartedAt()) > s.env.HardStalledThreshold:
		s.failJob(job, now, "hard_stalled_zero_pages")
	}
}

func (s *Supervisor) restartOrFail(job jobmodel.Job, now time.Time, reason string) {
	if job.RestartCount() >= maxRestarts {
		s.failJob(job, now, reason)
		return
	}
	s.stopIfActive(job.ID())
	if err := s.store.UpdateJob(job.ID(), func(j *jobmodel.Job) { j.IncrementRestartCount() }); err != nil {
		s.logEvent(job.ID(), jobmodel.EventLevelError, "restart_count_bump_failed", map[string]any{"error": err.Error(), "reason": reason})
		return
	}
	if err := s.store.SetState(job.ID(), jobmodel.JobQueued, now); err != nil {
		s.logEvent(job.ID(), jobmodel.EventLevelError, "restart_failed", map[string]any{"error": err.Error(), "reason": reason})
		return
	}
	s.logEvent(job.ID(), jobmodel.EventLevelWarn, "job_restarted", map[string]any{"reason": reason})
}

func (s *Supervisor) failJob(job jobmodel.Job, now time.Time, reason string) {
	s.stopIfActive(job.ID())
	if err := s.store.UpdateJob(job.ID(), func(j *jobmodel.Job) { j.SetLastError(reason) }); err != nil {
		s.logEvent(job.ID(), jobmodel.EventLevelError, "set_last_error_failed", map[string]any{"error": err.Error(), "reason": reason})
	}
	if err := s.store.SetState(job.ID(), jobmodel.JobFailed, now); err != nil {
		s.logEvent(job.ID(), jobmodel.EventLevelError, "fail_job_failed", map[string]any{"error": err.Error(), "reason": reason})
		return
	}
	s.logEvent(job.ID(), jobmodel.EventLevelError, "job_failed", map[string]any{"reason": reason})
}

// stopIfActive cancels the in-process engine run for jobID, if it is the one
// currently active. The engine's own finishRun will race the Supervisor's
// SetState call that follows; losing that race (an illegal transition from
// the state the Supervisor has already moved the job to) is expected and
// logged as a warning by the engine, not treated as a bug.
func (s *Supervisor) stopIfActive(jobID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeJobID != nil && *s.activeJobID == jobID && s.activeCancel != nil {
		s.activeCancel()
	}
}

// reapFinishedEngine clears the active slot once the running engine's Run
// call has returned, failing the job if Run returned an error while the job
// was still marked running, or invoking the Finalizer if Run left it in
// finalizing.
func (s *Supervisor) reapFinishedEngine() {
	s.mu.Lock()
	done := s.activeDone
	jobIDPtr := s.activeJobID
	s.mu.Unlock()
	if done == nil || jobIDPtr == nil {
		return
	}

	select {
	case runErr := <-done:
		s.mu.Lock()
		s.activeJobID = nil
		s.activeCancel = nil
		s.activeDone = nil
		s.mu.Unlock()

		jobID := *jobIDPtr
		job, err := s.store.GetJob(jobID)
		if err != nil {
			s.logEvent(jobID, jobmodel.EventLevelError, "reap_get_job_failed", map[string]any{"error": err.Error()})
			return
		}

		if runErr != nil && job.State() == jobmodel.JobRunning {
			now := time.Now()
			_ = s.store.UpdateJob(jobID, func(j *jobmodel.Job) { j.SetLastError(runErr.Error()) })
			if err := s.store.SetState(jobID, jobmodel.JobFailed, now); err != nil {
				s.logEvent(jobID, jobmodel.EventLevelError, "fail_after_run_error_failed", map[string]any{"error": err.Error()})
			}
			s.logEvent(jobID, jobmodel.EventLevelError, "engine_run_failed", map[string]any{"error": runErr.Error()})
			return
		}

		if job.State() == jobmodel.JobFinalizing {
			s.runFinalizer(job)
		}
	default:
	}
}

func (s *Supervisor) runFinalizer(job jobmodel.Job) {
	outDir := filepath.Join(s.outputRoot, job.ID().String())
	if err := s.finalizer.Finalize(job, outDir); err != nil {
		s.logEvent(job.ID(), jobmodel.EventLevelError, "finalize_failed", map[string]any{"error": err.Error()})
	}
}

// claimAndStart atomically claims the next queued job (spec.md §4.3 point
// 4) and starts its Crawl Engine in its own goroutine; the poll loop itself
// never blocks on a crawl.
func (s *Supervisor) claimAndStart(ctx context.Context) {
	job, ok, err := s.store.ClaimNextQueuedJob(s.workerID, time.Now())
	if err != nil {
		s.logEvent(uuid.UUID{}, jobmodel.EventLevelError, "claim_failed", map[string]any{"error": err.Error()})
		return
	}
	if !ok {
		return
	}

	engCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	jobID := job.ID()

	s.mu.Lock()
	s.activeJobID = &jobID
	s.activeCancel = cancel
	s.activeDone = done
	s.mu.Unlock()

	s.logEvent(jobID, jobmodel.EventLevelInfo, "job_claimed", map[string]any{"seed_url": job.SeedURL().String()})
	go func() {
		done <- s.engine.Run(engCtx, job)
	}()
}

func (s *Supervisor) logEvent(jobID uuid.UUID, level jobmodel.EventLevel, event string, data map[string]any) {
	je := jobmodel.NewJobEvent(jobID, level, event, data, time.Now())
	_ = s.store.LogEvent(je)
	s.obs.LogEvent(je)
}

// Tick runs one poll pass immediately, without waiting for the next ticker
// fire. Exported so tests and operator tooling can single-step the
// supervisor deterministically instead of racing a real timer.
func (s *Supervisor) Tick(ctx context.Context) {
	s.tick(ctx)
}

// ActiveJobID reports which job's engine is currently running, if any.
func (s *Supervisor) ActiveJobID() (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeJobID == nil {
		return uuid.UUID{}, false
	}
	return *s.activeJobID, true
}
