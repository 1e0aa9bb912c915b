// Package runner drives many resolutions over a contact table: fixed-size
// batches, resume on rerun, session health checks, checkpointing, and
// rate-limit pauses between batches.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/scomax/contact-validator/internal/contacts"
	"github.com/scomax/contact-validator/internal/utils"
	"github.com/scomax/contact-validator/internal/validation"
)

// Resolver resolves one person/company pair.
type Resolver interface {
	Resolve(ctx context.Context, name, company string) (validation.Outcome, error)
}

// SessionCheck probes one external session before a record is processed
// and rebuilds it when the probe fails. Recreate may be nil when the
// session cannot be rebuilt in place.
type SessionCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Recreate func(ctx context.Context) error
}

// Config carries the batch knobs.
type Config struct {
	BatchSize   int
	BatchDelay  time.Duration
	RecordDelay time.Duration
}

// Runner processes a contact table. Failures are confined to their record:
// an error becomes that record's Note and the batch moves on.
type Runner struct {
	resolver   Resolver
	checkpoint func([]*contacts.Record) error
	sessions   []SessionCheck
	cfg        Config
	logger     *zap.Logger
}

func New(resolver Resolver, checkpoint func([]*contacts.Record) error, sessions []SessionCheck, cfg Config, logger *zap.Logger) *Runner {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	return &Runner{
		resolver:   resolver,
		checkpoint: checkpoint,
		sessions:   sessions,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run works through the records in batches. Already-resolved records are
// skipped, so rerunning after an interruption picks up where it stopped.
// Cancellation is honored between records and between batches: the record
// in flight finishes, the partial batch is checkpointed, then Run returns.
func (r *Runner) Run(ctx context.Context, records []*contacts.Record) error {
	total := len(records)
	r.logger.Info("processing contacts",
		zap.Int("total", total),
		zap.Int("batch_size", r.cfg.BatchSize),
	)

	for start := 0; start < total; start += r.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := start + r.cfg.BatchSize
		if end > total {
			end = total
		}
		batch := start/r.cfg.BatchSize + 1
		r.logger.Info("starting batch", zap.Int("batch", batch), zap.Int("from", start+1), zap.Int("to", end))

		processed := 0
		for _, rec := range records[start:end] {
			if ctx.Err() != nil {
				break
			}
			if rec.Resolved() {
				r.logger.Info("skipping already processed contact", zap.String("name", rec.FullName()))
				continue
			}

			r.processRecord(ctx, rec)
			processed++

			if ctx.Err() == nil {
				utils.WaitFor(ctx, r.cfg.RecordDelay) //nolint:errcheck // loop re-checks ctx
			}
		}

		if processed > 0 {
			if err := r.checkpoint(records); err != nil {
				return fmt.Errorf("checkpointing batch %d: %w", batch, err)
			}
			r.logger.Info("batch checkpointed", zap.Int("batch", batch), zap.Int("processed", processed))
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if end < total && processed > 0 && r.cfg.BatchDelay > 0 {
			r.logger.Info("waiting between batches", zap.Duration("delay", r.cfg.BatchDelay))
			if err := utils.WaitFor(ctx, r.cfg.BatchDelay); err != nil {
				return err
			}
		}
	}

	r.logger.Info("all contacts processed", zap.Int("total", total))
	return nil
}

func (r *Runner) processRecord(ctx context.Context, rec *contacts.Record) {
	name := rec.FullName()
	if name == "" || rec.Account == "" {
		*rec = contacts.ApplyError(*rec, errors.New("missing name or company"))
		return
	}

	r.logger.Info("checking contact", zap.String("name", name), zap.String("company", rec.Account))

	if err := r.ensureSessions(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		*rec = contacts.ApplyError(*rec, err)
		return
	}

	out, err := r.resolver.Resolve(ctx, name, rec.Account)
	if err != nil {
		// Cancellation leaves the record untouched for the next run.
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("resolution failed", zap.String("name", name), zap.Error(err))
		*rec = contacts.ApplyError(*rec, err)
		return
	}

	*rec = contacts.ApplyOutcome(*rec, out)
	r.logger.Info("contact resolved",
		zap.String("name", name),
		zap.Boolp("valid", rec.Valid.Ptr()),
		zap.String("note", rec.Note),
	)
}

// ensureSessions probes each session and rebuilds any that fail, so an
// expired login surfaces before a record burns its search quota.
func (r *Runner) ensureSessions(ctx context.Context) error {
	for _, s := range r.sessions {
		if s.Check == nil {
			continue
		}
		err := s.Check(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("session unhealthy, recreating", zap.String("session", s.Name), zap.Error(err))
		if s.Recreate == nil {
			return fmt.Errorf("%s session unhealthy: %w", s.Name, err)
		}
		if rerr := s.Recreate(ctx); rerr != nil {
			return fmt.Errorf("recreating %s session: %w", s.Name, rerr)
		}
	}
	return nil
}
