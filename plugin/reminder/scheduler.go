package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is how often the scheduler checks for due reminders.
const DefaultInterval = 30 * time.Second

// Scheduler polls the service for due reminders in the background.
type Scheduler struct {
	service  *Service
	interval time.Duration
	running  bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewScheduler creates a new reminder scheduler.
func NewScheduler(service *Service, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		service:  service,
		interval: interval,
		stopCh:   make(chan struct{}),
		logger:   slog.Default(),
	}
}

// SetLogger sets a custom logger.
func (s *Scheduler) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// Start begins the scheduler loop. Calling Start on a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("reminder scheduler started", "interval", s.interval)
}

// Stop stops the loop and waits for the current cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("reminder scheduler stopped")
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs a single processing cycle and returns the number sent.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	processed, err := s.service.ProcessDueReminders(ctx)
	if err != nil {
		s.logger.Error("failed to process due reminders", "error", err)
		return 0
	}
	if processed > 0 {
		s.logger.Info("processed due reminders", "count", processed)
	}
	return processed
}
