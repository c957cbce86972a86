package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/farmgate/agromarket-api/internal/models"
)

// nextSequentialID increments the per-prefix counter atomically and returns the
// formatted business identifier. Must run inside the same transaction as the
// record insert so an aborted create never burns a visible gap.
func nextSequentialID(ctx context.Context, tx *sqlx.Tx, prefix string) (string, error) {
	query := `
		INSERT INTO id_sequences (prefix, last_value)
		VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET last_value = id_sequences.last_value + 1
		RETURNING last_value
	`

	var value int64

	if err := tx.QueryRowContext(ctx, query, prefix).Scan(&value); err != nil {
		return "", fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return models.FormatSequentialID(prefix, value), nil
}

// insertOutboxMessage writes an outbox message inside an open transaction
func insertOutboxMessage(ctx context.Context, tx *sqlx.Tx, message *models.OutboxMessage) error {
	query := `
		INSERT INTO outbox_messages (
			aggregate_type, aggregate_id, event_type, payload, created_at, status
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := tx.QueryRowContext(
		ctx,
		query,
		message.AggregateType,
		message.AggregateID,
		message.EventType,
		message.Payload,
		message.CreatedAt,
		message.Status,
	).Scan(&message.ID)

	if err != nil {
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	return nil
}
