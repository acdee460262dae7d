/*
scheduler.go - Automated delivery retry scheduler

PURPOSE:
  Periodically re-sends contracts whose confirmation email or CRM webhook
  failed at submission time. Submissions never fail on delivery problems,
  so this loop is what eventually gets them out.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each round calls contract.Service.RetryFailedSyncs
  - The service stops retrying a contract after MaxSyncAttempts rounds
  - The outcome of the last round is kept for the admin endpoint

CONFIGURATION:
  - CheckInterval: How often to retry (default: 10 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewSyncScheduler(service, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSync endpoint (manual retry)
  - contract/service.go: RetryFailedSyncs
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/aircare/contract-engine/contract"
	"github.com/aircare/contract-engine/logger"
)

// SyncRun is the outcome of one retry round.
type SyncRun struct {
	At        time.Time
	Delivered int
	Error     string
}

// SyncScheduler retries failed email/CRM deliveries on an interval.
type SyncScheduler struct {
	Service       *contract.Service
	CheckInterval time.Duration
	Enabled       bool

	log *logger.Logger

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun SyncRun
	runMu   sync.Mutex // serializes rounds
}

// NewSyncScheduler creates a new scheduler.
func NewSyncScheduler(svc *contract.Service, log *logger.Logger) *SyncScheduler {
	if log == nil {
		log = logger.NewNop()
	}
	return &SyncScheduler{
		Service:       svc,
		CheckInterval: 10 * time.Minute,
		Enabled:       true,
		log:           log.Named("scheduler"),
	}
}

// Start begins the scheduler.
func (s *SyncScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(s.ticker.C, s.stop)

	s.log.Infow("started", "interval", s.CheckInterval.String())
}

// Stop stops the scheduler and waits for a running round to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	ticker, stop := s.ticker, s.stop
	s.ticker, s.stop = nil, nil
	s.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		s.wg.Wait()
		s.log.Info("stopped")
	}
}

func (s *SyncScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer s.wg.Done()

	// Stop cancels a round in progress
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	// Run immediately on start
	s.RunNow(ctx)

	for {
		select {
		case <-tick:
			s.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow performs a retry round immediately and returns how many contracts
// were fully delivered.
func (s *SyncScheduler) RunNow(ctx context.Context) (int, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	delivered, err := s.Service.RetryFailedSyncs(ctx)

	run := SyncRun{At: time.Now(), Delivered: delivered}
	if err != nil {
		run.Error = err.Error()
		s.log.Errorw("retry round failed", "error", err)
	} else if delivered > 0 {
		s.log.Infow("retry round completed", "delivered", delivered)
	}

	s.mu.Lock()
	s.lastRun = run
	s.mu.Unlock()

	return delivered, err
}

// LastRun returns the outcome of the most recent round. Zero if none ran.
func (s *SyncScheduler) LastRun() SyncRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// NextRunTime returns when the next scheduled round will occur.
func (s *SyncScheduler) NextRunTime() time.Time {
	last := s.LastRun().At
	if last.IsZero() {
		return time.Now().Add(s.CheckInterval)
	}
	return last.Add(s.CheckInterval)
}
