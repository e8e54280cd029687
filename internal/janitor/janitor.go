// Package janitor removes expired rate windows in the background so the
// rate window store does not grow with every client ever seen.
package janitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/emadnahed/linkguard/internal/metrics"
	"github.com/emadnahed/linkguard/internal/repository"
	"github.com/emadnahed/linkguard/pkg/logger"
)

// Config holds configuration for the Janitor.
type Config struct {
	Interval time.Duration // How often to sweep
	Window   time.Duration // Rate window length; older windows are removed
	Timeout  time.Duration // Upper bound for one sweep
}

// DefaultConfig returns the default configuration for a one minute window.
func DefaultConfig() Config {
	return Config{
		Interval: time.Minute,
		Window:   time.Minute,
		Timeout:  10 * time.Second,
	}
}

// Stats holds counters about sweeps run so far.
type Stats struct {
	Sweeps  int64
	Removed int64
	Errors  int64
}

// Janitor periodically sweeps windows that ended at least one window ago.
type Janitor struct {
	sweeper repository.WindowSweeper
	cfg     Config
	log     *logger.Logger
	now     func() time.Time

	sweeps  atomic.Int64
	removed atomic.Int64
	errors  atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// New creates a Janitor. Call Start to begin sweeping.
func New(cfg Config, sweeper repository.WindowSweeper, log *logger.Logger) *Janitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Janitor{
		sweeper:  sweeper,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start launches the sweep loop. Calling it more than once has no effect.
func (j *Janitor) Start() {
	j.startOnce.Do(func() {
		go j.run()
	})
}

// Stop ends the sweep loop and waits for a running sweep to finish. A
// Janitor that was never started is stopped without sweeping.
func (j *Janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopChan)
		j.startOnce.Do(func() { close(j.doneChan) })
		<-j.doneChan
	})
}

// Run sweeps until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	j.Start()
	<-ctx.Done()
	j.Stop()
	return nil
}

// Stats returns the current sweep statistics.
func (j *Janitor) Stats() Stats {
	return Stats{
		Sweeps:  j.sweeps.Load(),
		Removed: j.removed.Load(),
		Errors:  j.errors.Load(),
	}
}

func (j *Janitor) run() {
	defer close(j.doneChan)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Sweep()
		case <-j.stopChan:
			return
		}
	}
}

// Sweep removes every window that started at least one window length ago.
// Such a window would be reset by the next request anyway.
func (j *Janitor) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.Timeout)
	defer cancel()

	cutoff := j.now().Add(-j.cfg.Window)
	n, err := j.sweeper.Sweep(ctx, cutoff)
	j.sweeps.Add(1)
	j.removed.Add(n)
	metrics.RecordWindowsSwept(n)

	if err != nil {
		j.errors.Add(1)
		j.log.Error("failed to sweep rate windows", "error", err, "removed", n)
		return
	}
	if n > 0 {
		j.log.Debug("swept rate windows", "removed", n, "cutoff", cutoff.Format(time.RFC3339))
	}
}
