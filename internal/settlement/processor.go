package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/farmgate/agromarket-api/internal/models"
	apperrors "github.com/farmgate/agromarket-api/pkg/errors"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// Gateway charges a transaction against the card network
type Gateway interface {
	Charge(ctx context.Context, txn *models.PaymentTransaction) (string, error)
}

// Store is the storage surface the settlement loop works against
type Store interface {
	GetDueProcessing(ctx context.Context, limit int) ([]*models.PaymentTransaction, error)
	CompleteSettlement(ctx context.Context, txn *models.PaymentTransaction, gatewayRef string) error
	FailSettlement(ctx context.Context, txn *models.PaymentTransaction, reason string) error
}

// Processor drives transactions from processing to their terminal state.
// It polls for transactions whose settlement delay has elapsed, charges
// them through the gateway, and records the outcome. Order completion
// happens only inside CompleteSettlement, in the same database transaction
// as the status flip.
type Processor struct {
	store           Store
	gateway         Gateway
	pollingInterval time.Duration
	batchSize       int
	logger          logger.Logger
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	running         bool
	mu              sync.Mutex
}

// ProcessorConfig holds the configuration for the Processor
type ProcessorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
}

// NewProcessor creates a new settlement processor
func NewProcessor(store Store, gateway Gateway, config ProcessorConfig, logger logger.Logger) *Processor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Processor{
		store:           store,
		gateway:         gateway,
		pollingInterval: config.PollingInterval,
		batchSize:       config.BatchSize,
		logger:          logger,
		ctx:             ctx,
		cancel:          cancel,
		running:         false,
	}
}

// Start starts the settlement processor
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.wg.Add(1)

	go func() {
		defer p.wg.Done()
		p.run()
	}()

	p.logger.Info("Settlement processor started",
		"pollingInterval", p.pollingInterval,
		"batchSize", p.batchSize)
}

// Stop stops the settlement processor
func (p *Processor) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.running = false

	p.logger.Info("Settlement processor stopped")
}

func (p *Processor) run() {
	ticker := time.NewTicker(p.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if err := p.SettleDue(p.ctx); err != nil {
				p.logger.Error("Settlement batch failed", "error", err)
			}
		}
	}
}

// SettleDue settles one batch of due transactions
func (p *Processor) SettleDue(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.pollingInterval)
	defer cancel()

	due, err := p.store.GetDueProcessing(ctx, p.batchSize)

	if err != nil {
		return fmt.Errorf("failed to get due transactions: %w", err)
	}

	if len(due) == 0 {
		return nil
	}

	p.logger.Info("Settling due transactions", "count", len(due))

	for _, txn := range due {
		if err := p.settleOne(ctx, txn); err != nil {
			p.logger.Error("Failed to settle transaction",
				"error", err,
				"transactionID", txn.ID,
				"orderID", txn.OrderID)

			// Continue with the rest of the batch
			continue
		}
	}

	return nil
}

// settleOne charges a single transaction and records its terminal state.
// Temporary gateway failures leave the transaction in processing so a
// later sweep picks it up again.
func (p *Processor) settleOne(ctx context.Context, txn *models.PaymentTransaction) error {
	gatewayRef, err := p.gateway.Charge(ctx, txn)

	if err != nil {
		if apperrors.IsRetryable(err) || errors.Is(err, apperrors.ErrTemporaryFailure) {
			p.logger.Warn("Gateway unavailable, transaction deferred",
				"transactionID", txn.ID)
			return nil
		}

		if failErr := p.store.FailSettlement(ctx, txn, err.Error()); failErr != nil {
			return fmt.Errorf("failed to record declined settlement: %w", failErr)
		}

		p.logger.Info("Settlement declined",
			"transactionID", txn.ID,
			"orderID", txn.OrderID,
			"reason", err.Error())

		return nil
	}

	if err := p.store.CompleteSettlement(ctx, txn, gatewayRef); err != nil {
		return fmt.Errorf("failed to record completed settlement: %w", err)
	}

	p.logger.Info("Settlement completed",
		"transactionID", txn.ID,
		"orderID", txn.OrderID,
		"gatewayRef", gatewayRef)

	return nil
}
