package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"OpenMCP-Stellar/deploy/migrations"
	"OpenMCP-Stellar/internal/journal"
	"OpenMCP-Stellar/pkg/logger"
)

const journalColumns = `id, source, action, status, hash, ledger, code, detail, envelope_xdr, created_at`

// JournalStore keeps the submission journal in MySQL.
type JournalStore struct {
	db  *sql.DB
	log *slog.Logger
}

var _ journal.Store = (*JournalStore)(nil)

// NewJournalStore connects and applies pending schema steps.
func NewJournalStore(ctx context.Context, cfg Config) (*JournalStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := &JournalStore{db: db, log: logger.Named("journal")}
	if err := store.migrate(ctx, migrations.Files); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Record inserts entry.
func (s *JournalStore) Record(ctx context.Context, entry journal.Entry) error {
	entry = journal.Prepare(entry)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submission_journal (`+journalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Source, entry.Action, entry.Status, entry.Hash, entry.Ledger,
		entry.Code, entry.Detail, entry.EnvelopeXDR, entry.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Latest returns the newest entries first, optionally for one source.
func (s *JournalStore) Latest(ctx context.Context, source string, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if source == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+journalColumns+` FROM submission_journal ORDER BY created_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+journalColumns+` FROM submission_journal WHERE source = ? ORDER BY created_at DESC LIMIT ?`, source, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []journal.Entry
	for rows.Next() {
		var (
			e       journal.Entry
			created int64
		)
		if err := rows.Scan(&e.ID, &e.Source, &e.Action, &e.Status, &e.Hash, &e.Ledger,
			&e.Code, &e.Detail, &e.EnvelopeXDR, &created); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// Close closes the pool.
func (s *JournalStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
