package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmgate/agromarket-api/pkg/logger"
)

func setupReconcilerTest(t *testing.T) (*Reconciler, *mockSettlementStore) {
	t.Helper()
	store := newMockSettlementStore()
	r := NewReconciler(store, ReconcilerConfig{
		Interval:   time.Second,
		StuckAfter: 10 * time.Minute,
		BatchSize:  10,
	}, logger.NewLogger("error"))
	return r, store
}

func TestSweepOnce_FailsOnlyStuckTransactions(t *testing.T) {
	r, store := setupReconcilerTest(t)

	old := dueTxn("PAY001", "ORD001")
	old.SettleAfter = time.Now().UTC().Add(-time.Hour)

	recent := dueTxn("PAY002", "ORD002")
	recent.SettleAfter = time.Now().UTC().Add(-time.Minute)

	store.stuck = append(store.stuck, old, recent)

	require.NoError(t, r.SweepOnce(context.Background()))

	require.Len(t, store.failed, 1)
	assert.Equal(t, "PAY001", store.failed[0].txn.ID)
	assert.Contains(t, store.failed[0].reason, "timed out")
}

func TestSweepOnce_NoStuckTransactions(t *testing.T) {
	r, store := setupReconcilerTest(t)

	require.NoError(t, r.SweepOnce(context.Background()))
	assert.Empty(t, store.failed)
}

func TestReconcilerStartStop(t *testing.T) {
	r, _ := setupReconcilerTest(t)

	r.Start()
	r.Stop()
}
