package scheduler

import (
	"context"
	"errors"

	obscontext "github.com/smallbiznis/catalyser/internal/observability/context"
	"go.uber.org/zap"
)

const (
	driftKindBalance = "balance"
	driftKindChain   = "chain"
)

// LedgerDriftJob walks every credit account in user id order and checks the
// stored balance against a fold over its ledger entries.
func (s *Scheduler) LedgerDriftJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	after := ""
	var jobErr error

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		userIDs, err := s.credits.ListUserIDs(ctx, after, s.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(userIDs) == 0 {
			break
		}

		for _, userID := range userIDs {
			if err := s.checkAccount(ctx, run, userID); err != nil {
				if ctx.Err() != nil {
					return errors.Join(jobErr, err)
				}
				jobErr = errors.Join(jobErr, err)
			}
		}
		run.AddProcessed(len(userIDs))
		s.metrics.AddBatchProcessed(JobLedgerDrift, "credit_account", len(userIDs))

		after = userIDs[len(userIDs)-1]
		if len(userIDs) < s.cfg.BatchSize {
			break
		}
	}
	return jobErr
}

func (s *Scheduler) checkAccount(ctx context.Context, run *jobRun, userID string) error {
	result, err := s.credits.Reconcile(ctx, userID)
	if err != nil {
		s.logSchedulerError(ctx, run, "scheduler.ledger_drift.reconcile_failed", JobLedgerDrift, userID, err)
		return err
	}
	if result.Consistent {
		return nil
	}

	kind := driftKindChain
	if !result.Matched {
		kind = driftKindBalance
	}
	s.metrics.IncLedgerDrift(kind)
	if run != nil {
		run.drifted++
	}

	ctx = obscontext.WithUserID(ctx, userID)
	s.logger(ctx).Error("scheduler.ledger_drift.detected",
		zap.String("job", JobLedgerDrift),
		zap.String("kind", kind),
		zap.Int64("stored_available", result.StoredAvailable),
		zap.Int64("ledger_available", result.LedgerAvailable),
		zap.Int64("stored_lifetime_earned", result.StoredEarned),
		zap.Int64("ledger_lifetime_earned", result.LedgerEarned),
		zap.Int64("stored_lifetime_spent", result.StoredSpent),
		zap.Int64("ledger_lifetime_spent", result.LedgerSpent),
		zap.Int64("chain_broken_at", result.ChainBrokenAt),
	)
	return nil
}
