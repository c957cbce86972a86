package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmgate/agromarket-api/internal/models"
	apperrors "github.com/farmgate/agromarket-api/pkg/errors"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// --- Setup ---

func setupProcessorTest(t *testing.T) (*Processor, *mockSettlementStore, *fakeGateway) {
	t.Helper()
	store := newMockSettlementStore()
	gw := &fakeGateway{}
	p := NewProcessor(store, gw, ProcessorConfig{
		PollingInterval: time.Second,
		BatchSize:       10,
	}, logger.NewLogger("error"))
	return p, store, gw
}

func dueTxn(id, orderID string) *models.PaymentTransaction {
	return &models.PaymentTransaction{
		ID:          id,
		OrderID:     orderID,
		UserID:      "u-buyer",
		Amount:      25.00,
		Status:      models.TransactionStatusProcessing,
		SettleAfter: time.Now().UTC().Add(-time.Minute),
		CreatedAt:   time.Now().UTC().Add(-2 * time.Minute),
	}
}

// --- Tests ---

func TestSettleDue_ApprovalCompletesTransaction(t *testing.T) {
	p, store, gw := setupProcessorTest(t)
	store.due = append(store.due, dueTxn("PAY001", "ORD001"))
	gw.refs = []string{"gw-abc123"}

	require.NoError(t, p.SettleDue(context.Background()))

	require.Len(t, store.completed, 1)
	assert.Equal(t, "PAY001", store.completed[0].txn.ID)
	assert.Equal(t, "gw-abc123", store.completed[0].gatewayRef)
	assert.Empty(t, store.failed)
}

func TestSettleDue_DeclineFailsTransaction(t *testing.T) {
	p, store, gw := setupProcessorTest(t)
	store.due = append(store.due, dueTxn("PAY001", "ORD001"))
	gw.errs = []error{apperrors.NewDownstreamError("payment gateway declined the charge")}

	require.NoError(t, p.SettleDue(context.Background()))

	assert.Empty(t, store.completed)
	require.Len(t, store.failed, 1)
	assert.Equal(t, "PAY001", store.failed[0].txn.ID)
	assert.Contains(t, store.failed[0].reason, "declined")
}

func TestSettleDue_TemporaryFailureDefersTransaction(t *testing.T) {
	p, store, gw := setupProcessorTest(t)
	store.due = append(store.due, dueTxn("PAY001", "ORD001"))
	gw.errs = []error{apperrors.NewTemporaryError("payment gateway unavailable")}

	require.NoError(t, p.SettleDue(context.Background()))

	// Left in processing for a later sweep
	assert.Empty(t, store.completed)
	assert.Empty(t, store.failed)
}

func TestSettleDue_BatchContinuesPastErrors(t *testing.T) {
	p, store, gw := setupProcessorTest(t)
	store.due = append(store.due,
		dueTxn("PAY001", "ORD001"),
		dueTxn("PAY002", "ORD002"),
		dueTxn("PAY003", "ORD003"),
	)
	gw.refs = []string{"gw-1", "", "gw-3"}
	gw.errs = []error{nil, apperrors.NewDownstreamError("declined"), nil}

	require.NoError(t, p.SettleDue(context.Background()))

	assert.Len(t, store.completed, 2)
	assert.Len(t, store.failed, 1)
	assert.Equal(t, "PAY002", store.failed[0].txn.ID)
}

func TestSettleDue_EmptyBatchIsNoop(t *testing.T) {
	p, store, _ := setupProcessorTest(t)

	require.NoError(t, p.SettleDue(context.Background()))
	assert.Empty(t, store.completed)
	assert.Empty(t, store.failed)
}

func TestStartStop(t *testing.T) {
	p, _, _ := setupProcessorTest(t)

	p.Start()
	p.Start() // idempotent
	p.Stop()
	p.Stop() // idempotent
}

// --- Mocks ---

type completedCall struct {
	txn        *models.PaymentTransaction
	gatewayRef string
}

type failedCall struct {
	txn    *models.PaymentTransaction
	reason string
}

type mockSettlementStore struct {
	due       []*models.PaymentTransaction
	stuck     []*models.PaymentTransaction
	completed []completedCall
	failed    []failedCall
}

func newMockSettlementStore() *mockSettlementStore {
	return &mockSettlementStore{}
}

func (m *mockSettlementStore) GetDueProcessing(ctx context.Context, limit int) ([]*models.PaymentTransaction, error) {
	if len(m.due) > limit {
		return m.due[:limit], nil
	}
	return m.due, nil
}

func (m *mockSettlementStore) GetStuckProcessing(ctx context.Context, cutoff time.Time, limit int) ([]*models.PaymentTransaction, error) {
	var out []*models.PaymentTransaction
	for _, txn := range m.stuck {
		if txn.SettleAfter.Before(cutoff) {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (m *mockSettlementStore) CompleteSettlement(ctx context.Context, txn *models.PaymentTransaction, gatewayRef string) error {
	m.completed = append(m.completed, completedCall{txn: txn, gatewayRef: gatewayRef})
	return nil
}

func (m *mockSettlementStore) FailSettlement(ctx context.Context, txn *models.PaymentTransaction, reason string) error {
	m.failed = append(m.failed, failedCall{txn: txn, reason: reason})
	return nil
}

// fakeGateway replays scripted outcomes in call order
type fakeGateway struct {
	refs  []string
	errs  []error
	calls int
}

func (g *fakeGateway) Charge(ctx context.Context, txn *models.PaymentTransaction) (string, error) {
	i := g.calls
	g.calls++

	var err error
	if i < len(g.errs) {
		err = g.errs[i]
	}
	if err != nil {
		return "", err
	}

	if i < len(g.refs) {
		return g.refs[i], nil
	}
	return "gw-default", nil
}
