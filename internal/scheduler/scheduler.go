// Package scheduler runs the daily billing jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"backoffice/internal/events"
	"backoffice/internal/logger"
	"backoffice/internal/service"

	"github.com/robfig/cron/v3"
)

// Config holds the cron expressions of each job (standard 5-field syntax, UTC).
type Config struct {
	BillingSpec string
	ExpirySpec  string
	// JobTimeout bounds a single run. Zero means no limit.
	JobTimeout time.Duration
}

type Scheduler struct {
	cron       *cron.Cron
	billingRun service.BillingRunService
	contracts  service.ContractService
	timeout    time.Duration
	now        func() time.Time
}

// New registers the invoice generation and contract expiry jobs. Runs of the
// same job never overlap: a tick that fires while the previous run is still
// going is skipped.
func New(cfg Config, billingRun service.BillingRunService, contracts service.ContractService) (*Scheduler, error) {
	s := &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		billingRun: billingRun,
		contracts:  contracts,
		timeout:    cfg.JobTimeout,
		now:        time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.ExpirySpec, s.runExpiry); err != nil {
		return nil, fmt.Errorf("invalid expiry schedule %q: %w", cfg.ExpirySpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.BillingSpec, s.runBilling); err != nil {
		return nil, fmt.Errorf("invalid billing schedule %q: %w", cfg.BillingSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) jobContext() (context.Context, context.CancelFunc) {
	ctx := events.WithActor(context.Background(), events.SystemActor)
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

func (s *Scheduler) runBilling() {
	log := logger.WithComponent("scheduler")
	ctx, cancel := s.jobContext()
	defer cancel()

	result, err := s.billingRun.GenerateDueInvoices(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("Billing run failed")
		return
	}
	log.Info().
		Str("as_of", result.AsOf).
		Int("generated", len(result.Generated)).
		Int("failed", len(result.Failed)).
		Msg("Billing run completed")
}

func (s *Scheduler) runExpiry() {
	log := logger.WithComponent("scheduler")
	ctx, cancel := s.jobContext()
	defer cancel()

	result, err := s.contracts.ExpireContracts(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("Contract expiry run failed")
		return
	}
	log.Info().
		Str("as_of", result.AsOf).
		Int("renewed", len(result.Renewed)).
		Int("expired", len(result.Expired)).
		Msg("Contract expiry run completed")
}
