package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Alias1177/SignalBot/models"
)

type lastRow struct {
	ID        uint `gorm:"primaryKey"`
	Proposal  string
	UpdatedAt time.Time
}

func (lastRow) TableName() string { return "signal_last" }

type ledgerRow struct {
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	ProposalID string `gorm:"uniqueIndex;not null"`
	Status     string `gorm:"index"`
	Outcome    string `gorm:"index"`
	Record     string `gorm:"not null"`
	LoggedAt   time.Time
	ResolvedAt *time.Time
}

func (ledgerRow) TableName() string { return "trade_ledger" }

// SQLiteStore is the gorm-backed single-file database backend.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (or creates) the database at path and migrates the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "signals.db"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, persistErr("open sqlite", err)
	}
	if err := db.AutoMigrate(&lastRow{}, &ledgerRow{}); err != nil {
		return nil, persistErr("migrate sqlite", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) GetLast(ctx context.Context) (*models.SignalProposal, error) {
	var row lastRow
	err := s.db.WithContext(ctx).First(&row, 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("get last", err)
	}

	var p models.SignalProposal
	if err := json.Unmarshal([]byte(row.Proposal), &p); err != nil {
		return nil, persistErr("decode last", err)
	}
	return &p, nil
}

func (s *SQLiteStore) IsDuplicate(ctx context.Context, candidate models.SignalProposal) (bool, error) {
	last, err := s.GetLast(ctx)
	if err != nil {
		return false, err
	}
	return isDuplicate(last, candidate), nil
}

func (s *SQLiteStore) Commit(ctx context.Context, p models.SignalProposal) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return persistErr("encode last", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Save(&lastRow{ID: 1, Proposal: string(raw), UpdatedAt: time.Now().UTC()}).Error
	})
	if err != nil {
		return persistErr("commit last", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, rec models.TradeRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return persistErr("encode record", err)
	}

	row := ledgerRow{
		ProposalID: rec.ID(),
		Status:     string(rec.Proposal.Status),
		Outcome:    string(rec.Outcome()),
		Record:     string(raw),
		LoggedAt:   rec.LoggedAt,
		ResolvedAt: rec.ResolvedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return persistErr("append record", err)
	}
	return nil
}

func (s *SQLiteStore) Resolve(ctx context.Context, id string, outcome models.Outcome, at time.Time) error {
	if err := validateOutcome(outcome); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	res := db.Model(&ledgerRow{}).
		Where("proposal_id = ? AND outcome = ?", id, string(models.OutcomeUnresolved)).
		Updates(map[string]any{"outcome": string(outcome), "resolved_at": at})
	if res.Error != nil {
		return persistErr("resolve", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&ledgerRow{}).Where("proposal_id = ?", id).Count(&count).Error; err != nil {
		return persistErr("resolve", err)
	}
	if count > 0 {
		return fmt.Errorf("resolve %s: %w", id, ErrAlreadyResolved)
	}
	return fmt.Errorf("resolve %s: %w", id, ErrNotFound)
}

func (s *SQLiteStore) Ledger(ctx context.Context) ([]models.TradeRecord, error) {
	var rows []ledgerRow
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, persistErr("query ledger", err)
	}
	return decodeRows(rows)
}

func (s *SQLiteStore) Pending(ctx context.Context) ([]models.TradeRecord, error) {
	var rows []ledgerRow
	err := s.db.WithContext(ctx).
		Where("outcome = ? AND status IN ?", string(models.OutcomeUnresolved),
			[]string{string(models.StatusConfirmed), string(models.StatusRejected)}).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, persistErr("query pending", err)
	}
	records, err := decodeRows(rows)
	if err != nil {
		return nil, err
	}
	return pending(records), nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func decodeRows(rows []ledgerRow) ([]models.TradeRecord, error) {
	records := make([]models.TradeRecord, 0, len(rows))
	for _, row := range rows {
		var rec models.TradeRecord
		if err := json.Unmarshal([]byte(row.Record), &rec); err != nil {
			return nil, persistErr("decode record", err)
		}
		rec.Proposal.Outcome = models.Outcome(row.Outcome)
		rec.ResolvedAt = row.ResolvedAt
		records = append(records, rec)
	}
	return records, nil
}
