// Package scheduler owns the recurring trigger for the transaction
// tracking pipeline. It holds a handle to the tracker service and invokes
// one cycle at startup and then on a fixed period; the tracker itself
// never starts timers.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gabapcia/tronwatch/internal/pkg/logger"
	"github.com/gabapcia/tronwatch/internal/pkg/x/chflow"
	"github.com/gabapcia/tronwatch/internal/txtracker"
)

// ErrServiceAlreadyStarted is returned if Start is called more than once.
var ErrServiceAlreadyStarted = errors.New("service already started")

// defaultInterval is the period between scheduled cycles.
const defaultInterval = time.Hour

// Service defines the scheduler lifecycle.
type Service interface {
	// Start launches the periodic tracking loop in the background. An
	// initial cycle runs immediately. Returns ErrServiceAlreadyStarted
	// if called more than once; call Close to stop the loop.
	Start(ctx context.Context) error

	// Close stops the periodic loop. Safe to call even if the service
	// was never started.
	Close()
}

type closeFunc func()

type service struct {
	mu        sync.Mutex // protects lifecycle state
	isStarted bool
	closeFunc closeFunc

	tracker  txtracker.Service
	interval time.Duration
}

// Compile-time check that *service implements the Service interface.
var _ Service = (*service)(nil)

type config struct {
	interval time.Duration
}

// Option customizes the scheduler created by New.
type Option func(*config)

// WithInterval sets the period between scheduled cycles. Default: 1 hour.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New creates a scheduler driving the given tracker service.
func New(tracker txtracker.Service, opts ...Option) *service {
	cfg := config{
		interval: defaultInterval,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &service{
		tracker:  tracker,
		interval: cfg.interval,
	}
}

// runCycle triggers one tracking cycle. Failures are logged and absorbed:
// a failed cycle is recovered by the next scheduled one. A cycle already
// running (e.g. a long manual trigger) is skipped, not queued.
func (s *service) runCycle(ctx context.Context) {
	if _, err := s.tracker.TrackCycle(ctx); err != nil {
		if errors.Is(err, txtracker.ErrCycleInProgress) {
			logger.Warn(ctx, "skipping scheduled cycle, another cycle is in progress")
			return
		}
		logger.Error(ctx, "scheduled tracking cycle failed", "error", err)
	}
}

// run executes the initial cycle and then loops on the configured period
// until the context is canceled.
func (s *service) run(ctx context.Context) {
	s.runCycle(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, ok := chflow.Receive(ctx, ticker.C); !ok {
			return
		}
		s.runCycle(ctx)
	}
}

// Start implements the Service interface.
func (s *service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isStarted {
		return ErrServiceAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	go s.run(ctx)

	logger.Info(ctx, "transaction tracking scheduler started", "interval", s.interval.String())

	s.closeFunc = closeFunc(cancel)
	s.isStarted = true
	return nil
}

// Close implements the Service interface.
func (s *service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closeFunc != nil {
		s.closeFunc()
	}
	s.closeFunc = nil
	s.isStarted = false
}
