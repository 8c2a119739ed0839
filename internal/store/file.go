package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/models"
)

const (
	lastFileName   = "last_signal.json"
	ledgerFileName = "ledger.jsonl"

	lineRecord  = "record"
	lineOutcome = "outcome"
)

// ledgerLine is one JSON Lines entry: either a full record or an outcome event.
type ledgerLine struct {
	Type    string              `json:"type"`
	Record  *models.TradeRecord `json:"record,omitempty"`
	ID      string              `json:"id,omitempty"`
	Outcome models.Outcome      `json:"outcome,omitempty"`
	At      *time.Time          `json:"at,omitempty"`
}

// FileStore keeps the last proposal in a JSON file and the ledger in a JSON Lines file.
// Every call reads from disk, so several processes sharing a directory see each other's
// writes as long as they serialize cycles.
type FileStore struct {
	dir    string
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewFileStore opens dir, creating it if needed, and truncates a torn trailing ledger line.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, persistErr("create data dir", err)
	}

	s := &FileStore{
		dir:    dir,
		logger: log.With().Str("component", "file_store").Logger(),
	}
	if _, err := s.readLedger(true); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) lastPath() string   { return filepath.Join(s.dir, lastFileName) }
func (s *FileStore) ledgerPath() string { return filepath.Join(s.dir, ledgerFileName) }

func (s *FileStore) GetLast(ctx context.Context) (*models.SignalProposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLast()
}

func (s *FileStore) IsDuplicate(ctx context.Context, candidate models.SignalProposal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last, err := s.readLast()
	if err != nil {
		return false, err
	}
	return isDuplicate(last, candidate), nil
}

func (s *FileStore) Commit(ctx context.Context, p models.SignalProposal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return persistErr("encode last proposal", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.lastPath(), data); err != nil {
		return persistErr("commit last proposal", err)
	}
	return nil
}

func (s *FileStore) Append(ctx context.Context, rec models.TradeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID() == "" {
		return persistErr("append", errors.New("record has no proposal id"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// repair first so the new line never lands on a torn tail
	records, err := s.readLedger(true)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ID() == rec.ID() {
			return persistErr("append", fmt.Errorf("duplicate proposal id %s", rec.ID()))
		}
	}
	return s.appendLine(ledgerLine{Type: lineRecord, Record: &rec})
}

func (s *FileStore) Resolve(ctx context.Context, id string, outcome models.Outcome, at time.Time) error {
	if err := validateOutcome(outcome); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// repair first so the new line never lands on a torn tail
	records, err := s.readLedger(true)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ID() != id {
			continue
		}
		if r.Outcome().Resolved() {
			return fmt.Errorf("resolve %s: %w", id, ErrAlreadyResolved)
		}
		return s.appendLine(ledgerLine{Type: lineOutcome, ID: id, Outcome: outcome, At: &at})
	}
	return fmt.Errorf("resolve %s: %w", id, ErrNotFound)
}

func (s *FileStore) Ledger(ctx context.Context) ([]models.TradeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLedger(false)
}

func (s *FileStore) Pending(ctx context.Context) ([]models.TradeRecord, error) {
	records, err := s.Ledger(ctx)
	if err != nil {
		return nil, err
	}
	return pending(records), nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) readLast() (*models.SignalProposal, error) {
	data, err := os.ReadFile(s.lastPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("read last proposal", err)
	}

	var p models.SignalProposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, persistErr("decode last proposal", err)
	}
	return &p, nil
}

// readLedger folds record and outcome lines into records. With repair set, a trailing
// line without a newline is cut off the file, or terminated when it is a complete entry.
func (s *FileStore) readLedger(repair bool) ([]models.TradeRecord, error) {
	f, err := os.Open(s.ledgerPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, persistErr("open ledger", err)
	}
	defer f.Close()

	var (
		records []models.TradeRecord
		index   = make(map[string]int)
		good    int64
		torn    bool
		tail    []byte
		lineNo  int
	)

	r := bufio.NewReader(f)
	for {
		line, err := r.ReadBytes('\n')
		if err == io.EOF {
			tail = line
			torn = len(bytes.TrimSpace(line)) > 0
			break
		}
		if err != nil {
			return nil, persistErr("read ledger", err)
		}
		lineNo++
		good += int64(len(line))

		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := foldLine(line, &records, index); err != nil {
			s.logger.Warn().Err(err).Int("line", lineNo).Msg("Skipping malformed ledger line")
		}
	}

	if !torn {
		return records, nil
	}
	// a complete entry that only lost its newline is kept
	complete := foldLine(tail, &records, index) == nil
	if !repair {
		return records, nil
	}
	if complete {
		s.logger.Warn().Int64("offset", good).Msg("Terminating unterminated ledger line")
		if err := terminateLine(s.ledgerPath()); err != nil {
			return nil, persistErr("repair ledger", err)
		}
		return records, nil
	}
	s.logger.Warn().Int64("offset", good).Msg("Truncating torn ledger line")
	if err := os.Truncate(s.ledgerPath(), good); err != nil {
		return nil, persistErr("repair ledger", err)
	}
	return records, nil
}

func terminateLine(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func foldLine(line []byte, records *[]models.TradeRecord, index map[string]int) error {
	var l ledgerLine
	if err := json.Unmarshal(line, &l); err != nil {
		return err
	}

	switch l.Type {
	case lineRecord:
		if l.Record == nil {
			return errors.New("record line without record")
		}
		if _, ok := index[l.Record.ID()]; ok {
			return fmt.Errorf("duplicate record %s", l.Record.ID())
		}
		index[l.Record.ID()] = len(*records)
		*records = append(*records, *l.Record)
	case lineOutcome:
		i, ok := index[l.ID]
		if !ok {
			return fmt.Errorf("outcome for unknown record %s", l.ID)
		}
		rec := &(*records)[i]
		if rec.Outcome().Resolved() {
			return nil
		}
		rec.Proposal.Outcome = l.Outcome
		rec.ResolvedAt = l.At
	default:
		return fmt.Errorf("unknown line type %q", l.Type)
	}
	return nil
}

func (s *FileStore) appendLine(l ledgerLine) error {
	data, err := json.Marshal(l)
	if err != nil {
		return persistErr("encode ledger line", err)
	}
	data = append(data, '\n')

	f, err := os.OpenFile(s.ledgerPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return persistErr("open ledger", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return persistErr("stat ledger", err)
	}
	size := info.Size()

	// rollback cuts a partial write so the ledger stays parseable
	rollback := func(op string, err error) error {
		if terr := f.Truncate(size); terr != nil {
			s.logger.Error().Err(terr).Int64("offset", size).Msg("Failed to roll back ledger write")
		}
		f.Close()
		return persistErr(op, err)
	}
	if _, err := writeFile(f, data); err != nil {
		return rollback("append ledger", err)
	}
	if err := f.Sync(); err != nil {
		return rollback("sync ledger", err)
	}
	if err := f.Close(); err != nil {
		return persistErr("close ledger", err)
	}
	return nil
}

// writeFile is swapped in tests to simulate short writes.
var writeFile = func(f *os.File, data []byte) (int, error) {
	return f.Write(data)
}

// writeAtomic replaces path through a synced temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}

	if dir, err := os.Open(filepath.Dir(path)); err == nil {
		dir.Sync()
		dir.Close()
	}
	return nil
}
