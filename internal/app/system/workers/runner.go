// internal/app/system/workers/runner.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/focushub/internal/app/system/tasks"
	"go.uber.org/zap"
)

// Runner runs periodic jobs in the background. Each job has its own ticker
// goroutine and runs sequentially on it, so a job never overlaps itself.
// Ticks that fire while a run is in progress are dropped.
type Runner struct {
	jobs    []tasks.Job
	log     *zap.Logger
	timeout func() time.Duration
	stopCh  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewRunner creates a runner. timeout bounds each run; jobs with a
// non-positive interval are ignored.
func NewRunner(logger *zap.Logger, timeout func() time.Duration, jobs ...tasks.Job) *Runner {
	var active []tasks.Job
	for _, j := range jobs {
		if j.Interval > 0 && j.Run != nil {
			active = append(active, j)
		}
	}
	return &Runner{
		jobs:    active,
		log:     logger,
		timeout: timeout,
		stopCh:  make(chan struct{}),
	}
}

// Len reports how many jobs the runner schedules.
func (w *Runner) Len() int {
	return len(w.jobs)
}

// Start launches one loop per job.
func (w *Runner) Start() {
	for _, j := range w.jobs {
		w.wg.Add(1)
		go w.loop(j)
		w.log.Info("background job started",
			zap.String("job", j.Name),
			zap.Duration("interval", j.Interval))
	}
}

// Stop signals every loop to stop and waits for in-flight runs to finish.
// It is safe to call more than once.
func (w *Runner) Stop() {
	w.once.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("background jobs stopped", zap.Int("jobs", len(w.jobs)))
	})
}

func (w *Runner) loop(j tasks.Job) {
	defer w.wg.Done()

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.runOnce(j)
		}
	}
}

func (w *Runner) runOnce(j tasks.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout())
	defer cancel()

	// Stop cancels the run in progress; the job sees ctx.Done and wraps up.
	go func() {
		select {
		case <-w.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("background job panicked", zap.String("job", j.Name), zap.Any("panic", r))
		}
	}()
	if err := j.Run(ctx); err != nil {
		w.log.Error("background job failed",
			zap.String("job", j.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}
	w.log.Debug("background job finished",
		zap.String("job", j.Name),
		zap.Duration("elapsed", time.Since(start)))
}
