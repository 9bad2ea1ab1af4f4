// Package jobs runs background work, such as the reconcile sweep, on a
// robfig/cron scheduler.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// RunStatus describes the registration and the last run of a job.
type RunStatus struct {
	Name         string
	Schedule     string
	Timeout      time.Duration
	Runs         int
	LastStarted  time.Time
	LastDuration time.Duration
	LastError    string
	Next         time.Time
}

type entry struct {
	id      cron.EntryID
	job     Job
	status  RunStatus
	running sync.Mutex
}

// Scheduler runs registered jobs on their cron schedules. A run that is still
// going when the next tick fires is skipped, and panics are recovered.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	mu      sync.Mutex
	entries map[string]*entry
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("starting job scheduler", zap.Int("jobs", len(s.Status())))
	s.cron.Start()
}

// Stop stops scheduling; the returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping job scheduler")
	return s.cron.Stop()
}

// Register schedules job under its name. spec has a leading seconds field
// ("0 */30 * * * *") or is a descriptor ("@every 10m"). Each run gets its own
// context bounded by timeout.
func (s *Scheduler) Register(job Job, spec string, timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("job %s: timeout must be positive", job.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	e := &entry{job: job, status: RunStatus{Name: name, Schedule: spec, Timeout: timeout}}
	id, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.run(ctx, e)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule for job %s: %w", name, err)
	}
	e.id = id
	s.entries[name] = e

	s.logger.Info("registered scheduled job",
		zap.String("job_name", name),
		zap.String("schedule", spec),
		zap.Duration("timeout", timeout))
	return nil
}

func (s *Scheduler) Unregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not registered", name)
	}
	s.cron.Remove(e.id)
	delete(s.entries, name)

	s.logger.Info("unregistered scheduled job", zap.String("job_name", name))
	return nil
}

// RunNow runs a registered job synchronously with the caller's context,
// waiting for a scheduled run of the same job to finish first.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, exists := s.entries[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not registered", name)
	}
	return s.run(ctx, e)
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	e.running.Lock()
	defer e.running.Unlock()

	name := e.job.Name()
	start := time.Now()
	s.logger.Debug("running job", zap.String("job_name", name))
	err := e.job.Run(ctx)
	duration := time.Since(start)

	s.mu.Lock()
	e.status.Runs++
	e.status.LastStarted = start
	e.status.LastDuration = duration
	e.status.LastError = ""
	if err != nil {
		e.status.LastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job failed",
			zap.String("job_name", name),
			zap.Duration("duration", duration),
			zap.Error(err))
		return err
	}
	s.logger.Debug("job completed",
		zap.String("job_name", name),
		zap.Duration("duration", duration))
	return nil
}

// Status returns every registered job sorted by name.
func (s *Scheduler) Status() []RunStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RunStatus, 0, len(s.entries))
	for _, e := range s.entries {
		st := e.status
		st.Next = s.cron.Entry(e.id).Next
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cronLogger routes the scheduler's own messages (skipped runs, recovered
// panics) through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
