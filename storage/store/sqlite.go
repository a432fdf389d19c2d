package store

import (
	"context"
	"fmt"
	"log"

	"docnotary/notarization"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// transactionRow is the journal table layout
type transactionRow struct {
	ID            string `gorm:"primaryKey;size:128"`
	Hash          string `gorm:"index;size:66"`
	FileName      string `gorm:"size:1024"`
	Meta          string `gorm:"type:text"`
	Status        string `gorm:"index;size:16"`
	ChainID       string `gorm:"size:32"`
	TxHash        string `gorm:"size:128"`
	BlockNumber   uint64
	GasUsed       uint64
	ExplorerURL   string `gorm:"size:512"`
	ErrorCategory string `gorm:"size:32"`
	Error         string `gorm:"type:text"`
	ErrorDetail   string `gorm:"type:text"`
	CreatedAt     int64  `gorm:"autoCreateTime:false;index"`
	UpdatedAt     int64  `gorm:"autoUpdateTime:false"`
}

func (transactionRow) TableName() string { return "notarization_transactions" }

func toRow(tx notarization.Transaction) transactionRow {
	return transactionRow{
		ID:            tx.ID,
		Hash:          tx.Hash,
		FileName:      tx.FileName,
		Meta:          tx.Meta,
		Status:        string(tx.Status),
		ChainID:       tx.ChainID,
		TxHash:        tx.TxHash,
		BlockNumber:   tx.BlockNumber,
		GasUsed:       tx.GasUsed,
		ExplorerURL:   tx.ExplorerURL,
		ErrorCategory: string(tx.ErrorCategory),
		Error:         tx.Error,
		ErrorDetail:   tx.ErrorDetail,
		CreatedAt:     tx.Timestamp,
		UpdatedAt:     tx.UpdatedAt,
	}
}

func (r transactionRow) transaction() notarization.Transaction {
	return notarization.Transaction{
		ID:            r.ID,
		Hash:          r.Hash,
		FileName:      r.FileName,
		Meta:          r.Meta,
		Status:        notarization.Status(r.Status),
		ChainID:       r.ChainID,
		TxHash:        r.TxHash,
		BlockNumber:   r.BlockNumber,
		GasUsed:       r.GasUsed,
		ExplorerURL:   r.ExplorerURL,
		ErrorCategory: notarization.Category(r.ErrorCategory),
		Error:         r.Error,
		ErrorDetail:   r.ErrorDetail,
		Timestamp:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// SQLiteStore keeps the journal in a local SQLite file
type SQLiteStore struct {
	db     *gorm.DB
	logger *log.Logger
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens path and migrates the journal table
func NewSQLiteStore(path string, l *log.Logger) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite journal %s: %w", path, err)
	}
	if err := db.AutoMigrate(&transactionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sqlite journal: %w", err)
	}
	l.Printf("SQLite journal opened at %s", path)
	return &SQLiteStore{db: db, logger: l}, nil
}

// Save inserts or replaces tx
func (s *SQLiteStore) Save(ctx context.Context, tx notarization.Transaction) error {
	row := toRow(tx)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
	}
	return nil
}

// Delete removes the record with id; unknown ids are not an error
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&transactionRow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	return nil
}

// DeleteAll empties the journal
func (s *SQLiteStore) DeleteAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&transactionRow{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear transactions: %w", err)
	}
	return nil
}

// Load returns every record ordered by creation time
func (s *SQLiteStore) Load(ctx context.Context) ([]notarization.Transaction, error) {
	var rows []transactionRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	out := make([]notarization.Transaction, len(rows))
	for i, r := range rows {
		out[i] = r.transaction()
	}
	return out, nil
}

// Close releases the underlying connection
func (s *SQLiteStore) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		s.logger.Printf("Failed to access sqlite handle: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		s.logger.Printf("Failed to close sqlite journal: %v", err)
	}
}
