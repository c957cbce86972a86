package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/farmgate/agromarket-api/internal/config"
	"github.com/farmgate/agromarket-api/pkg/logger"
)

// Database represents a database connection
type Database struct {
	DB     *sqlx.DB
	logger logger.Logger
}

// New creates a new database connection
func New(cfg *config.Config, logger logger.Logger) (*Database, error) {
	db, err := sqlx.Connect("postgres", cfg.GetDBConnString())

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger.Info("Connected to database", "host", cfg.DB.Host, "database", cfg.DB.Name)

	return &Database{
		DB:     db,
		logger: logger,
	}, nil
}

// Ping checks the database connection
func (d *Database) Ping(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}

// RunMigrations runs database migrations
func (d *Database) RunMigrations() error {
	// For initial setup, just create tables directly
	// In a real project, you'd want to use a migration tool
	schema := `
	CREATE TABLE IF NOT EXISTS id_sequences (
		prefix VARCHAR(10) PRIMARY KEY,
		last_value BIGINT NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(20) PRIMARY KEY,
		user_id VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL,
		total_amount DECIMAL(12, 2) NOT NULL,
		notes TEXT,
		approved_by VARCHAR(50),
		approved_at TIMESTAMP,
		delivery_assignee VARCHAR(100),
		delivery_assigned_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

	CREATE TABLE IF NOT EXISTS order_items (
		id SERIAL PRIMARY KEY,
		order_id VARCHAR(20) NOT NULL REFERENCES orders(id),
		item_id VARCHAR(20) NOT NULL,
		name VARCHAR(200) NOT NULL,
		quantity INT NOT NULL,
		unit VARCHAR(20) NOT NULL,
		unit_price DECIMAL(12, 2) NOT NULL,
		category VARCHAR(50) NOT NULL,
		added_by VARCHAR(20) NOT NULL DEFAULT 'user'
	);

	CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

	CREATE TABLE IF NOT EXISTS payment_methods (
		id VARCHAR(50) PRIMARY KEY,
		user_id VARCHAR(50) NOT NULL,
		card_number VARCHAR(20) NOT NULL,
		holder_name VARCHAR(100) NOT NULL,
		expiry_month VARCHAR(2) NOT NULL,
		expiry_year VARCHAR(4) NOT NULL,
		network VARCHAR(20) NOT NULL,
		is_default BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_payment_methods_user_id ON payment_methods(user_id);

	CREATE TABLE IF NOT EXISTS payment_transactions (
		id VARCHAR(20) PRIMARY KEY,
		order_id VARCHAR(20) NOT NULL REFERENCES orders(id),
		user_id VARCHAR(50) NOT NULL,
		payment_method_id VARCHAR(50) NOT NULL REFERENCES payment_methods(id),
		amount DECIMAL(12, 2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		gateway_response TEXT,
		failure_reason TEXT,
		settle_after TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	-- at most one live settlement attempt per order; failed attempts may be retried
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_transactions_order_live
		ON payment_transactions(order_id) WHERE status <> 'failed';
	CREATE INDEX IF NOT EXISTS idx_payment_transactions_status ON payment_transactions(status);

	CREATE TABLE IF NOT EXISTS inventory_items (
		id VARCHAR(20) PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		category VARCHAR(50) NOT NULL,
		quantity INT NOT NULL DEFAULT 0,
		unit VARCHAR(20) NOT NULL,
		unit_price DECIMAL(12, 2) NOT NULL,
		reorder_level INT NOT NULL DEFAULT 0,
		status VARCHAR(20) NOT NULL,
		harvest_batch_id VARCHAR(20),
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_inventory_items_status ON inventory_items(status);

	CREATE TABLE IF NOT EXISTS finance_records (
		id VARCHAR(20) PRIMARY KEY,
		record_type VARCHAR(10) NOT NULL,
		description TEXT NOT NULL,
		amount DECIMAL(14, 2) NOT NULL,
		record_date TIMESTAMP NOT NULL,
		category VARCHAR(50) NOT NULL,
		inventory_item_id VARCHAR(20),
		created_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_finance_records_type ON finance_records(record_type);

	CREATE TABLE IF NOT EXISTS outbox_messages (
		id SERIAL PRIMARY KEY,
		aggregate_type VARCHAR(50) NOT NULL,
		aggregate_id VARCHAR(50) NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		payload JSONB NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMP,
		processing_attempts INT NOT NULL DEFAULT 0,
		last_error TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox_messages(status);
	CREATE INDEX IF NOT EXISTS idx_outbox_aggregate ON outbox_messages(aggregate_type, aggregate_id);
	`

	_, err := d.DB.Exec(schema)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.logger.Info("Database migrations completed successfully")
	return nil
}
