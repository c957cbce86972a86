package models

import (
	"time"
)

// TransactionStatus represents the status of a payment transaction
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
)

// IsTerminal reports whether no further transition may leave the status
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// PaymentTransaction is one settlement attempt against an order.
// A row in processing state is the durable record of a pending settlement,
// so a restart can pick it up instead of losing track of it.
type PaymentTransaction struct {
	ID              string            `db:"id" json:"id"`
	OrderID         string            `db:"order_id" json:"order_id"`
	UserID          string            `db:"user_id" json:"user_id"`
	PaymentMethodID string            `db:"payment_method_id" json:"payment_method_id"`
	Amount          float64           `db:"amount" json:"amount"`
	Status          TransactionStatus `db:"status" json:"status"`
	GatewayResponse *string           `db:"gateway_response" json:"gateway_response,omitempty"`
	FailureReason   *string           `db:"failure_reason" json:"failure_reason,omitempty"`
	SettleAfter     time.Time         `db:"settle_after" json:"settle_after"`
	ProcessedAt     *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

// NewPaymentTransaction creates a settlement attempt in processing state.
// The sequential identifier is assigned by the store on insert.
func NewPaymentTransaction(orderID, userID, methodID string, amount float64, settlementDelay time.Duration) *PaymentTransaction {
	now := GetCurrentTime()

	return &PaymentTransaction{
		OrderID:         orderID,
		UserID:          userID,
		PaymentMethodID: methodID,
		Amount:          amount,
		Status:          TransactionStatusProcessing,
		SettleAfter:     now.Add(settlementDelay),
		CreatedAt:       now,
	}
}
