/*
sweeper.go - Background certification alert sweeper

PURPOSE:
  Runs the certification alert sweep on a recurring interval so expiry
  alerts fire without operator action. The sweep itself is idempotent, so
  an aggressive interval is safe; it just does nothing new most runs.

DESIGN:
  - One background goroutine with a ticker
  - Runs immediately on Start, then on every tick
  - Stop drains the goroutine before returning

USAGE:
  sweeper := api.NewSweepRunner(scheduler, time.Hour)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - alerts/scheduler.go: the sweep itself
  - handlers.go: TriggerSweep endpoint (manual sweep)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stationops/compliance-engine/alerts"
	"github.com/stationops/compliance-engine/engine"
)

// SweepRunner drives the alert scheduler on a recurring interval.
type SweepRunner struct {
	Scheduler *alerts.Scheduler
	Interval  time.Duration

	log    *logrus.Entry
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewSweepRunner(scheduler *alerts.Scheduler, interval time.Duration) *SweepRunner {
	return &SweepRunner{
		Scheduler: scheduler,
		Interval:  interval,
		log:       logrus.WithField("package", "api.sweeper"),
		stop:      make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (sr *SweepRunner) Start() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.ticker != nil {
		return
	}
	sr.ticker = time.NewTicker(sr.Interval)
	sr.wg.Add(1)
	go sr.run()

	sr.log.WithField("interval", sr.Interval.String()).Info("alert sweeper started")
}

// Stop halts the loop and waits for any in-flight sweep to finish.
func (sr *SweepRunner) Stop() {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if sr.ticker == nil {
		return
	}
	sr.ticker.Stop()
	close(sr.stop)
	sr.wg.Wait()
	sr.ticker = nil
	sr.log.Info("alert sweeper stopped")
}

func (sr *SweepRunner) run() {
	defer sr.wg.Done()

	sr.sweep()
	for {
		select {
		case <-sr.ticker.C:
			sr.sweep()
		case <-sr.stop:
			return
		}
	}
}

func (sr *SweepRunner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := sr.Scheduler.RunSweep(ctx, engine.Today()); err != nil {
		sr.log.WithError(err).Error("background sweep failed")
	}
}
