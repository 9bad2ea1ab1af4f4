package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/straye-as/purchasing-api/internal/lock"
	"github.com/straye-as/purchasing-api/internal/service"
	"go.uber.org/zap"
)

// ReconcileJobName is the scheduler name of the reconcile sweep.
const ReconcileJobName = "reconcile_sweep"

// DefaultSweepBatchSize is how many open request ids one sweep page loads.
const DefaultSweepBatchSize = 500

const sweepLockKey = "lock:" + ReconcileJobName

// OpenRequestReconciler reconciles the status of open purchase requests.
type OpenRequestReconciler interface {
	ReconcileOpen(ctx context.Context, batchSize int) (*service.ReconcileSweepResult, error)
}

// ReconcileJob recomputes the status of every open request, page by page, so
// requests whose line items changed outside the shipment path (legacy
// imports, manual fixes) converge. Only one API instance runs a sweep at a
// time.
type ReconcileJob struct {
	reconciler OpenRequestReconciler
	locker     lock.Locker
	logger     *zap.Logger
	batchSize  int
}

func NewReconcileJob(reconciler OpenRequestReconciler, locker lock.Locker, logger *zap.Logger, batchSize int) *ReconcileJob {
	if locker == nil {
		locker = lock.NopLocker{}
	}
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &ReconcileJob{
		reconciler: reconciler,
		locker:     locker,
		logger:     logger,
		batchSize:  batchSize,
	}
}

func (j *ReconcileJob) Name() string { return ReconcileJobName }

// Run executes one sweep for the scheduler.
func (j *ReconcileJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce executes one sweep and reports its result. A sweep running on
// another instance is not an error; the result is nil then.
func (j *ReconcileJob) RunOnce(ctx context.Context) (*service.ReconcileSweepResult, error) {
	release, err := j.locker.Acquire(ctx, sweepLockKey)
	if errors.Is(err, lock.ErrNotObtained) {
		j.logger.Info("reconcile sweep already running elsewhere, skipping")
		return nil, nil
	}
	if err != nil {
		j.logger.Error("failed to acquire reconcile sweep lock", zap.Error(err))
		return nil, err
	}
	defer release()

	start := time.Now()
	result, err := j.reconciler.ReconcileOpen(ctx, j.batchSize)
	if err != nil {
		j.logger.Error("reconcile sweep failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)))
		return result, err
	}

	j.logger.Info("reconcile sweep completed",
		zap.Int("checked", result.Checked),
		zap.Int("changed", result.Changed),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}
