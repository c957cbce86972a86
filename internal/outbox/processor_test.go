package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farmgate/agromarket-api/internal/models"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// --- Setup ---

func setupProcessorTest(t *testing.T) (*Processor, *mockOutboxStore) {
	t.Helper()
	store := newMockOutboxStore()
	p := NewProcessor(store, ProcessorConfig{
		PollingInterval: time.Second,
		BatchSize:       10,
		MaxRetries:      3,
	}, logger.NewLogger("error"))
	return p, store
}

func pendingMessage(id int64, eventType string) *models.OutboxMessage {
	return &models.OutboxMessage{
		ID:            id,
		AggregateType: "order",
		AggregateID:   "ORD001",
		EventType:     eventType,
		Payload:       []byte(`{}`),
		Status:        models.OutboxStatusPending,
		CreatedAt:     time.Now().UTC(),
	}
}

// --- Tests ---

func TestProcessBatch_DeliversAndCompletes(t *testing.T) {
	p, store := setupProcessorTest(t)
	handler := &recordingHandler{}
	p.RegisterHandler(models.EventOrderCreated, handler)

	store.pending = append(store.pending, pendingMessage(1, models.EventOrderCreated))

	require.NoError(t, p.ProcessBatch(context.Background()))

	assert.Len(t, handler.handled, 1)
	assert.Contains(t, store.completed, int64(1))
}

func TestProcessBatch_UnknownEventTypeFails(t *testing.T) {
	p, store := setupProcessorTest(t)

	store.pending = append(store.pending, pendingMessage(1, "mystery_event"))

	require.NoError(t, p.ProcessBatch(context.Background()))

	assert.Contains(t, store.failed, int64(1))
	assert.Empty(t, store.completed)
}

func TestProcessBatch_HandlerErrorReturnsToPending(t *testing.T) {
	p, store := setupProcessorTest(t)
	handler := &recordingHandler{err: errors.New("broker down")}
	p.RegisterHandler(models.EventOrderCreated, handler)

	store.pending = append(store.pending, pendingMessage(1, models.EventOrderCreated))

	require.NoError(t, p.ProcessBatch(context.Background()))

	assert.Contains(t, store.pendingAgain, int64(1))
	assert.Empty(t, store.failed)
}

func TestProcessBatch_MaxRetriesMovesToFailed(t *testing.T) {
	p, store := setupProcessorTest(t)
	handler := &recordingHandler{err: errors.New("broker down")}
	p.RegisterHandler(models.EventOrderCreated, handler)

	msg := pendingMessage(1, models.EventOrderCreated)
	msg.ProcessingAttempts = 2
	store.pending = append(store.pending, msg)

	require.NoError(t, p.ProcessBatch(context.Background()))

	assert.Contains(t, store.failed, int64(1))
	assert.Empty(t, store.pendingAgain)
}

// --- Mocks ---

type mockOutboxStore struct {
	pending      []*models.OutboxMessage
	processing   []int64
	completed    []int64
	pendingAgain []int64
	failed       []int64
}

func newMockOutboxStore() *mockOutboxStore {
	return &mockOutboxStore{}
}

func (m *mockOutboxStore) GetPendingMessages(ctx context.Context, limit int) ([]*models.OutboxMessage, error) {
	if len(m.pending) > limit {
		return m.pending[:limit], nil
	}
	return m.pending, nil
}

func (m *mockOutboxStore) MarkAsProcessing(ctx context.Context, id int64) error {
	m.processing = append(m.processing, id)
	return nil
}

func (m *mockOutboxStore) MarkAsCompleted(ctx context.Context, id int64) error {
	m.completed = append(m.completed, id)
	return nil
}

func (m *mockOutboxStore) MarkAsPending(ctx context.Context, id int64, lastError string) error {
	m.pendingAgain = append(m.pendingAgain, id)
	return nil
}

func (m *mockOutboxStore) MarkAsFailed(ctx context.Context, id int64, lastError string) error {
	m.failed = append(m.failed, id)
	return nil
}

type recordingHandler struct {
	handled []*models.OutboxMessage
	err     error
}

func (h *recordingHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	if h.err != nil {
		return h.err
	}
	h.handled = append(h.handled, message)
	return nil
}
