// Package reconcile runs the background bookkeeping sweeps: retrying owed
// fee payouts and re-driving graduations that stalled between snapshot,
// phase flip and downstream handoff. Sweeps are idempotent per agent and
// safe to run concurrently across agents.
package reconcile

import (
	"context"
	"io"
	"log"
	"time"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/graduation"
	"agent-curve-engine/internal/observability"
	"agent-curve-engine/internal/storage"
)

const defaultMaxPayoutAttempts = 5

// PayoutDelivery sends one fee payout to its recipient. Implementations
// talk to the external payment rail; an error marks the payout failed and
// it is retried on the next sweep.
type PayoutDelivery interface {
	Deliver(ctx context.Context, p *domain.FeePayout) error
}

// Sweeper periodically retries failed side effects.
type Sweeper struct {
	payouts     storage.FeePayoutStore
	events      storage.GraduationEventStore
	graduations *graduation.Manager
	delivery    PayoutDelivery
	metrics     *observability.Metrics
	logger      *log.Logger

	interval    time.Duration
	maxAttempts int
}

// Options contains configuration for creating a Sweeper.
type Options struct {
	Payouts     storage.FeePayoutStore
	Events      storage.GraduationEventStore
	Graduations *graduation.Manager
	Delivery    PayoutDelivery // optional; payouts stay pending without it
	Metrics     *observability.Metrics
	Logger      *log.Logger

	Interval time.Duration // default 30s

	// MaxPayoutAttempts bounds delivery retries; a payout exceeding it is
	// marked abandoned and never retried again. Default 5.
	MaxPayoutAttempts int
}

// NewSweeper creates a reconciliation sweeper.
func NewSweeper(opts Options) *Sweeper {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	maxAttempts := opts.MaxPayoutAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxPayoutAttempts
	}
	return &Sweeper{
		payouts:     opts.Payouts,
		events:      opts.Events,
		graduations: opts.Graduations,
		delivery:    opts.Delivery,
		metrics:     opts.Metrics,
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Printf("reconciliation sweeper started, interval %s", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("reconciliation sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over stalled graduations and undelivered payouts.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.sweepGraduations(ctx)
	s.sweepPayouts(ctx)
}

func (s *Sweeper) sweepGraduations(ctx context.Context) {
	if s.graduations == nil || s.events == nil {
		return
	}
	var stalled []*domain.GraduationEvent
	for _, status := range []string{domain.GraduationPending, domain.GraduationFailed} {
		events, err := s.events.ListByStatus(ctx, status)
		if err != nil {
			s.logger.Printf("list %s graduations: %v", status, err)
			return
		}
		stalled = append(stalled, events...)
	}
	if s.metrics != nil {
		s.metrics.PendingGraduations.Set(float64(len(stalled)))
	}

	for _, event := range stalled {
		if err := s.graduations.Finalize(ctx, event.AgentID); err != nil {
			s.logger.Printf("finalize graduation for agent %s (attempt %d): %v", event.AgentID, event.Attempts, err)
		} else {
			s.logger.Printf("graduation for agent %s finalized", event.AgentID)
		}
	}
}

func (s *Sweeper) sweepPayouts(ctx context.Context) {
	if s.delivery == nil || s.payouts == nil {
		return
	}
	var due []*domain.FeePayout
	for _, status := range []string{domain.PayoutPending, domain.PayoutFailed} {
		payouts, err := s.payouts.ListByStatus(ctx, status)
		if err != nil {
			s.logger.Printf("list %s payouts: %v", status, err)
			return
		}
		due = append(due, payouts...)
	}

	for _, p := range due {
		s.deliverOne(ctx, p)
	}
}

func (s *Sweeper) deliverOne(ctx context.Context, p *domain.FeePayout) {
	p.Attempts++
	p.UpdatedAt = time.Now().UnixMilli()
	if s.metrics != nil && p.Attempts > 1 {
		s.metrics.PayoutRetries.Inc()
	}

	if err := s.delivery.Deliver(ctx, p); err != nil {
		p.LastError = err.Error()
		p.Status = domain.PayoutFailed
		if p.Attempts >= s.maxAttempts {
			p.Status = domain.PayoutAbandoned
			if s.metrics != nil {
				s.metrics.PayoutsAbandoned.Inc()
			}
			s.logger.Printf("payout %s abandoned after %d attempts: %v", p.PayoutID, p.Attempts, err)
		} else {
			s.logger.Printf("payout %s delivery failed (attempt %d): %v", p.PayoutID, p.Attempts, err)
		}
	} else {
		p.Status = domain.PayoutCompleted
		p.LastError = ""
	}

	if err := s.payouts.Update(ctx, p); err != nil {
		s.logger.Printf("update payout %s: %v", p.PayoutID, err)
	}
}
