package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"photopost-bot/internal/database/models"

	"github.com/getsentry/sentry-go"
	"github.com/robfig/cron"
	"github.com/rs/zerolog/log"
)

// DefaultCycleTimeout bounds one scheduled cycle, caption retries included.
const DefaultCycleTimeout = 5 * time.Minute

// Cycler runs one publishing cycle.
type Cycler interface {
	RunCycle(ctx context.Context, trigger string) (CycleReport, error)
}

// Scheduler fires the rotator at fixed UTC times every day.
type Scheduler struct {
	cron    *cron.Cron
	cycler  Cycler
	times   []FireTime
	timeout time.Duration

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

func New(cycler Cycler, times []FireTime, timeout time.Duration) (*Scheduler, error) {
	if cycler == nil {
		return nil, errors.New("cycler cannot be nil")
	}
	if timeout <= 0 {
		timeout = DefaultCycleTimeout
	}
	s := &Scheduler{
		cron:    cron.NewWithLocation(time.UTC),
		cycler:  cycler,
		times:   times,
		timeout: timeout,
	}
	for _, ft := range times {
		if err := s.cron.AddFunc(ft.CronSpec(), func() { s.Tick(context.Background(), ft) }); err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", ft, err)
		}
	}
	return s, nil
}

// Start runs the cron loop in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	for _, ft := range s.times {
		log.Info().Str("at", ft.String()).Msg("Publishing scheduled")
	}
}

// Stop halts future ticks and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cron.Stop()
	s.inflight.Wait()
}

// Tick runs one scheduled cycle with a bounded context.
func (s *Scheduler) Tick(parent context.Context, ft FireTime) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		log.Warn().Str("at", ft.String()).Msg("Scheduler stopped, tick skipped")
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	log.Info().Str("at", ft.String()).Msg("Scheduled publishing started")
	_, err := s.cycler.RunCycle(ctx, models.TriggerSchedule)
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleInProgress):
		log.Warn().Msg("Previous cycle still running, tick skipped")
	case errors.Is(err, ErrEmptyPool):
		log.Warn().Msg("Nothing to publish")
	default:
		log.Error().Err(err).Msg("Scheduled publishing failed")
		sentry.CaptureException(err)
	}
}
