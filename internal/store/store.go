// Package store keeps the last committed proposal and the append-only trade ledger.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/SignalBot/models"
)

var (
	// ErrAlreadyResolved is returned when an outcome is set twice.
	ErrAlreadyResolved = errors.New("proposal already resolved")
	// ErrNotFound is returned when a proposal id is not in the ledger.
	ErrNotFound = errors.New("proposal not found")
)

// Store persists signal state. Implementations are safe for concurrent use.
type Store interface {
	// GetLast returns the last committed proposal, nil when none exists.
	GetLast(ctx context.Context) (*models.SignalProposal, error)
	// IsDuplicate compares candidate with the last committed proposal on direction,
	// entry, stop loss and take profit.
	IsDuplicate(ctx context.Context, candidate models.SignalProposal) (bool, error)
	// Commit atomically replaces the last committed proposal.
	Commit(ctx context.Context, p models.SignalProposal) error
	// Append adds a record to the ledger.
	Append(ctx context.Context, rec models.TradeRecord) error
	// Resolve sets the outcome of a ledger record once.
	Resolve(ctx context.Context, id string, outcome models.Outcome, at time.Time) error
	// Ledger returns every record in append order.
	Ledger(ctx context.Context) ([]models.TradeRecord, error)
	// Pending returns confirmed or rejected records whose outcome is unresolved.
	Pending(ctx context.Context) ([]models.TradeRecord, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	DataDir    string
	Postgres   ConnectionParams
	SQLitePath string
}

// Open creates the backend named in opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case "", "file":
		s, err = NewFileStore(opts.DataDir)
	case "postgres":
		s, err = NewPostgresStore(ctx, opts.Postgres)
	case "sqlite":
		s, err = NewSQLiteStore(opts.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func isDuplicate(last *models.SignalProposal, candidate models.SignalProposal) bool {
	return last != nil && last.SameDecision(candidate)
}

func pending(records []models.TradeRecord) []models.TradeRecord {
	var out []models.TradeRecord
	for _, r := range records {
		if r.Outcome().Resolved() {
			continue
		}
		if r.Proposal.Status == models.StatusConfirmed || r.Proposal.Status == models.StatusRejected {
			out = append(out, r)
		}
	}
	return out
}

func validateOutcome(outcome models.Outcome) error {
	if !outcome.Resolved() {
		return fmt.Errorf("outcome %q is not terminal", outcome)
	}
	return nil
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrPersistence, err)
}
