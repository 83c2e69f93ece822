package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/coop-lending/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Reconciler periodically re-evaluates loans still awaiting guarantors.
// It picks up loans whose consensus evaluation or admin event failed after
// the deciding guarantor's record was committed.
type Reconciler struct {
	svc     *Service
	log     *logrus.Logger
	cron    *cron.Cron
	timeout time.Duration
}

// NewReconciler schedules a sweep on the given cron spec, e.g. "@every 1m"
func NewReconciler(svc *Service, log *logrus.Logger, schedule string) (*Reconciler, error) {
	logger := cron.PrintfLogger(log)
	r := &Reconciler{
		svc:     svc,
		log:     log,
		cron:    cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		timeout: 30 * time.Second,
	}
	if _, err := r.cron.AddFunc(schedule, r.run); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start runs the schedule in the background
func (r *Reconciler) Start() {
	r.cron.Start()
}

// Stop halts the schedule; the returned context is done once a running sweep finishes
func (r *Reconciler) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Reconciler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.Sweep(ctx); err != nil {
		r.log.Errorf("Consensus sweep failed: %v", err)
	}
}

// Sweep evaluates every loan awaiting guarantors and returns how many moved to awaiting_admin
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	ids, err := r.svc.repo.ListLoanIDsByStatus(ctx, models.LoanAwaitingGuarantors)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending loans: %w", err)
	}

	moved := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return moved, err
		}
		res, err := r.svc.EvaluateConsensus(ctx, id)
		if err != nil {
			r.log.WithField("loan_id", id).Warnf("Consensus sweep skipped loan: %v", err)
			continue
		}
		if res.Transitioned {
			moved++
		}
	}

	if moved > 0 {
		r.log.Infof("Consensus sweep moved %d of %d loans to awaiting admin", moved, len(ids))
	}
	return moved, nil
}
