package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Alias1177/SignalBot/models"
)

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN builds a lib/pq connection string.
func (p ConnectionParams) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode,
	)
}

// PostgresStore keeps state in two tables: a single-row signal_last and trade_ledger.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects and creates the tables if they don't exist.
func NewPostgresStore(ctx context.Context, params ConnectionParams) (*PostgresStore, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, persistErr("open postgres", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, persistErr("ping postgres", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, persistErr("create tables", err)
	}

	return &PostgresStore{db: db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS signal_last (
			id SMALLINT PRIMARY KEY CHECK (id = 1),
			proposal JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trade_ledger (
			seq BIGSERIAL PRIMARY KEY,
			proposal_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			outcome TEXT NOT NULL,
			record JSONB NOT NULL,
			logged_at TIMESTAMPTZ NOT NULL,
			resolved_at TIMESTAMPTZ
		)
	`)
	return err
}

func (s *PostgresStore) GetLast(ctx context.Context) (*models.SignalProposal, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT proposal FROM signal_last WHERE id = 1`).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, persistErr("get last", err)
	}

	var p models.SignalProposal
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, persistErr("decode last", err)
	}
	return &p, nil
}

func (s *PostgresStore) IsDuplicate(ctx context.Context, candidate models.SignalProposal) (bool, error) {
	last, err := s.GetLast(ctx)
	if err != nil {
		return false, err
	}
	return isDuplicate(last, candidate), nil
}

func (s *PostgresStore) Commit(ctx context.Context, p models.SignalProposal) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return persistErr("encode last", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin commit", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO signal_last (id, proposal, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id)
		DO UPDATE SET
			proposal = EXCLUDED.proposal,
			updated_at = EXCLUDED.updated_at
	`, raw, time.Now().UTC())
	if err != nil {
		return persistErr("commit last", err)
	}

	if err := tx.Commit(); err != nil {
		return persistErr("commit last", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec models.TradeRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return persistErr("encode record", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trade_ledger (proposal_id, status, outcome, record, logged_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID(), rec.Proposal.Status, rec.Outcome(), raw, rec.LoggedAt, rec.ResolvedAt)
	if err != nil {
		return persistErr("append record", err)
	}
	return nil
}

func (s *PostgresStore) Resolve(ctx context.Context, id string, outcome models.Outcome, at time.Time) error {
	if err := validateOutcome(outcome); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE trade_ledger
		SET outcome = $2, resolved_at = $3
		WHERE proposal_id = $1 AND outcome = $4
	`, id, outcome, at, models.OutcomeUnresolved)
	if err != nil {
		return persistErr("resolve", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return persistErr("resolve", err)
	}
	if n > 0 {
		return nil
	}

	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM trade_ledger WHERE proposal_id = $1)`, id).Scan(&exists)
	if err != nil {
		return persistErr("resolve", err)
	}
	if exists {
		return fmt.Errorf("resolve %s: %w", id, ErrAlreadyResolved)
	}
	return fmt.Errorf("resolve %s: %w", id, ErrNotFound)
}

func (s *PostgresStore) Ledger(ctx context.Context) ([]models.TradeRecord, error) {
	return s.query(ctx, `SELECT record, outcome, resolved_at FROM trade_ledger ORDER BY seq`)
}

func (s *PostgresStore) Pending(ctx context.Context) ([]models.TradeRecord, error) {
	records, err := s.query(ctx, `
		SELECT record, outcome, resolved_at FROM trade_ledger
		WHERE outcome = $1 AND status IN ($2, $3)
		ORDER BY seq
	`, models.OutcomeUnresolved, models.StatusConfirmed, models.StatusRejected)
	if err != nil {
		return nil, err
	}
	return pending(records), nil
}

func (s *PostgresStore) query(ctx context.Context, q string, args ...any) ([]models.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, persistErr("query ledger", err)
	}
	defer rows.Close()

	var records []models.TradeRecord
	for rows.Next() {
		var (
			raw        []byte
			outcome    string
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(&raw, &outcome, &resolvedAt); err != nil {
			return nil, persistErr("scan ledger", err)
		}

		var rec models.TradeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, persistErr("decode record", err)
		}
		rec.Proposal.Outcome = models.Outcome(outcome)
		if resolvedAt.Valid {
			t := resolvedAt.Time
			rec.ResolvedAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate ledger", err)
	}
	return records, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
