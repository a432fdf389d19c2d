package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"docnotary/config"
	"docnotary/notarization"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const createTransactionsTable = `
CREATE TABLE IF NOT EXISTS notarization_transactions (
	id             TEXT PRIMARY KEY,
	hash           TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	meta           TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	chain_id       TEXT NOT NULL DEFAULT '',
	tx_hash        TEXT NOT NULL DEFAULT '',
	block_number   BIGINT NOT NULL DEFAULT 0,
	gas_used       BIGINT NOT NULL DEFAULT 0,
	explorer_url   TEXT NOT NULL DEFAULT '',
	error_category TEXT NOT NULL DEFAULT '',
	error          TEXT NOT NULL DEFAULT '',
	error_detail   TEXT NOT NULL DEFAULT '',
	created_at     BIGINT NOT NULL,
	updated_at     BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notarization_transactions_hash ON notarization_transactions (hash);`

const upsertTransaction = `
INSERT INTO notarization_transactions (
	id, hash, file_name, meta, status, chain_id, tx_hash, block_number, gas_used,
	explorer_url, error_category, error, error_detail, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	chain_id = EXCLUDED.chain_id,
	tx_hash = EXCLUDED.tx_hash,
	block_number = EXCLUDED.block_number,
	gas_used = EXCLUDED.gas_used,
	explorer_url = EXCLUDED.explorer_url,
	error_category = EXCLUDED.error_category,
	error = EXCLUDED.error,
	error_detail = EXCLUDED.error_detail,
	updated_at = EXCLUDED.updated_at`

const selectTransactions = `
SELECT id, hash, file_name, meta, status, chain_id, tx_hash, block_number, gas_used,
	explorer_url, error_category, error, error_detail, created_at, updated_at
FROM notarization_transactions
ORDER BY created_at, id`

// PostgresStore keeps the journal in PostgreSQL
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects a pool and creates the journal table if needed
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *log.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnIdleTime = parseDuration(cfg.MaxIdleTime, time.Hour)
	poolConfig.MaxConnLifetime = parseDuration(cfg.MaxLifetime, 24*time.Hour)

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTransactionsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}
	logger.Printf("Database connection pool established (max %d, min %d).", cfg.MaxConnections, cfg.MinConnections)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Save inserts or replaces tx
func (s *PostgresStore) Save(ctx context.Context, tx notarization.Transaction) error {
	_, err := s.pool.Exec(ctx, upsertTransaction,
		tx.ID, tx.Hash, tx.FileName, tx.Meta, string(tx.Status), tx.ChainID, tx.TxHash,
		int64(tx.BlockNumber), int64(tx.GasUsed), tx.ExplorerURL, string(tx.ErrorCategory),
		tx.Error, tx.ErrorDetail, tx.Timestamp, tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Delete removes the record with id; unknown ids are not an error
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM notarization_transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// DeleteAll empties the journal
func (s *PostgresStore) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM notarization_transactions`); err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	return nil
}

// Load returns every record ordered by creation time
func (s *PostgresStore) Load(ctx context.Context) ([]notarization.Transaction, error) {
	rows, err := s.pool.Query(ctx, selectTransactions)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows pgx.Rows) ([]notarization.Transaction, error) {
	var out []notarization.Transaction
	for rows.Next() {
		var (
			tx                   notarization.Transaction
			status, category     string
			blockNumber, gasUsed int64
		)
		if err := rows.Scan(&tx.ID, &tx.Hash, &tx.FileName, &tx.Meta, &status, &tx.ChainID, &tx.TxHash,
			&blockNumber, &gasUsed, &tx.ExplorerURL, &category, &tx.Error, &tx.ErrorDetail,
			&tx.Timestamp, &tx.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		tx.Status = notarization.Status(status)
		tx.ErrorCategory = notarization.Category(category)
		tx.BlockNumber = uint64(blockNumber)
		tx.GasUsed = uint64(gasUsed)
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return out, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.pool.Close()
	s.logger.Println("Database connection pool closed.")
}
