package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// ReconcilerStore is the storage surface the reconciliation sweep works against
type ReconcilerStore interface {
	GetStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*models.PaymentTransaction, error)
	FailSettlement(ctx context.Context, txn *models.PaymentTransaction, reason string) error
}

// Reconciler sweeps transactions that have sat in processing well past their
// settlement window, usually because the gateway was down across many polls,
// and fails them so the order can be paid again.
type Reconciler struct {
	store      ReconcilerStore
	interval   time.Duration
	stuckAfter time.Duration
	batchSize  int
	logger     logger.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	running    bool
	mu         sync.Mutex
}

// ReconcilerConfig holds the configuration for the Reconciler
type ReconcilerConfig struct {
	Interval   time.Duration
	StuckAfter time.Duration
	BatchSize  int
}

// NewReconciler creates a new settlement reconciler
func NewReconciler(store ReconcilerStore, config ReconcilerConfig, logger logger.Logger) *Reconciler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Reconciler{
		store:      store,
		interval:   config.Interval,
		stuckAfter: config.StuckAfter,
		batchSize:  config.BatchSize,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the reconciler
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return
	}

	r.running = true
	r.wg.Add(1)

	go func() {
		defer r.wg.Done()
		r.run()
	}()

	r.logger.Info("Settlement reconciler started",
		"interval", r.interval,
		"stuckAfter", r.stuckAfter)
}

// Stop stops the reconciler
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}

	r.cancel()
	r.wg.Wait()
	r.running = false

	r.logger.Info("Settlement reconciler stopped")
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.SweepOnce(r.ctx); err != nil {
				r.logger.Error("Reconciliation sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce fails one batch of stuck transactions
func (r *Reconciler) SweepOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	cutoff := models.GetCurrentTime().Add(-r.stuckAfter)
	stuck, err := r.store.GetStuckProcessing(ctx, cutoff, r.batchSize)

	if err != nil {
		return fmt.Errorf("failed to get stuck transactions: %w", err)
	}

	if len(stuck) == 0 {
		return nil
	}

	r.logger.Warn("Reconciling stuck transactions", "count", len(stuck))

	for _, txn := range stuck {
		if err := r.store.FailSettlement(ctx, txn, "settlement timed out during reconciliation"); err != nil {
			r.logger.Error("Failed to reconcile transaction",
				"error", err,
				"transactionID", txn.ID)
			continue
		}

		r.logger.Info("Stuck transaction failed by reconciler",
			"transactionID", txn.ID,
			"orderID", txn.OrderID)
	}

	return nil
}
