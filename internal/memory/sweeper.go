package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper runs periodic retention sweeps over all session memory.
//
// The sweeper does not start automatically. Call Start to begin the
// background loop and Stop to shut it down. Both are idempotent in the
// usual direction (Start on a running sweeper errors, Stop on a stopped
// one is a no-op).
type Sweeper struct {
	service    *Service
	logger     *zap.Logger
	interval   time.Duration
	baseMaxAge time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepInterval sets the time between sweeps. Defaults to one hour.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.interval = interval
	}
}

// WithBaseMaxAge sets the base retention age before usage extension.
// Defaults to seven days.
func WithBaseMaxAge(age time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.baseMaxAge = age
	}
}

// NewSweeper creates a sweeper for the given memory service.
func NewSweeper(service *Service, logger *zap.Logger, opts ...SweeperOption) (*Sweeper, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sweeper{
		service:    service,
		logger:     logger,
		interval:   time.Hour,
		baseMaxAge: 7 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins the background sweep loop.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	s.stopCh = make(chan struct{})
	s.running = true

	s.logger.Info("memory sweeper started",
		zap.Duration("interval", s.interval),
		zap.Duration("base_max_age", s.baseMaxAge),
	)

	go s.run()
	return nil
}

// Stop signals the background loop to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.logger.Info("memory sweeper stopped")
}

func (s *Sweeper) run() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sweeper goroutine panicked",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted := s.service.SweepAll(ctx, s.baseMaxAge)
	if deleted > 0 {
		s.logger.Info("retention sweep completed", zap.Int("deleted", deleted))
	}
}
