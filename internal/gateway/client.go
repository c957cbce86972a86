package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/farmgate/agromarket-api/internal/models"
	apperrors "github.com/farmgate/agromarket-api/pkg/errors"
	"github.com/farmgate/agromarket-api/pkg/circuitbreaker"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// Client is a simulated card network gateway. Charges are approved or
// declined according to a configured approval rate, and calls run behind
// a circuit breaker so a flapping gateway does not stall settlement.
type Client struct {
	approvalRate float64
	breaker      *circuitbreaker.CircuitBreaker
	logger       logger.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewClient creates a new simulated gateway client
func NewClient(approvalRate float64, logger logger.Logger) *Client {
	return &Client{
		approvalRate: approvalRate,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: 5,
			ResetTimeout:     30 * time.Second,
			HalfOpenMaxCalls: 2,
		}),
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Charge submits a transaction to the gateway and returns the gateway
// reference on approval. A decline is a terminal downstream error and does
// not count against the circuit; an open circuit is a temporary failure the
// caller may retry on a later sweep.
func (c *Client) Charge(ctx context.Context, txn *models.PaymentTransaction) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.NewTimeoutError("payment gateway call cancelled")
	}

	if !c.breaker.Allow() {
		c.logger.Warn("Gateway circuit open, deferring charge", "transactionID", txn.ID)
		return "", apperrors.NewTemporaryError("payment gateway unavailable")
	}

	c.mu.Lock()
	approved := c.rng.Float64() < c.approvalRate
	c.mu.Unlock()

	// The gateway responded either way, so the circuit stays healthy.
	c.breaker.Success()

	if !approved {
		c.logger.Info("Gateway declined charge", "transactionID", txn.ID, "orderID", txn.OrderID)
		return "", apperrors.NewDownstreamError("payment gateway declined the charge")
	}

	gatewayRef := fmt.Sprintf("gw-%s", uuid.New().String()[:8])

	c.logger.Debug("Gateway approved charge",
		"transactionID", txn.ID,
		"gatewayRef", gatewayRef)

	return gatewayRef, nil
}
