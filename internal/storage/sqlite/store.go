package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samijaber1/session-relay/internal/session"
	"github.com/samijaber1/session-relay/internal/storage"
)

// Store implements storage.Store using SQLite
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// NewStore opens the SQLite database at dbPath and ensures the schema exists.
// The database runs in WAL mode so readers are never blocked by the writer.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// NewStoreFromDB wraps an existing connection pool without touching the schema
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables if they are missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return storage.Wrap("create schema", err)
	}
	return nil
}

// ReplaceAll swaps the contents of session_data for records in one
// transaction. An empty records slice is a no-op.
func (s *Store) ReplaceAll(ctx context.Context, records []session.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Wrap("begin replace", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM session_data"); err != nil {
		return storage.Wrap("clear session data", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_data (
			location, session_name, meeting_key, session_key, driver_number, position, datetime
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return storage.Wrap("prepare insert", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.Location,
			rec.SessionName,
			nullInt(rec.MeetingKey),
			nullInt(rec.SessionKey),
			rec.DriverNumber,
			rec.Position,
			rec.DateTime.StorageString(),
		)
		if err != nil {
			return storage.Wrap(fmt.Sprintf("insert record %d", i), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storage.Wrap("commit replace", err)
	}

	return nil
}

// QueryRanked returns rows for location and sessionName with event_no being
// the dense rank of their datetime
func (s *Store) QueryRanked(ctx context.Context, location, sessionName string) ([]storage.RankedRow, error) {
	query := `
		SELECT location, driver_number, position,
		       DENSE_RANK() OVER (ORDER BY datetime ASC) AS event_no
		FROM session_data
		WHERE session_name = ? AND location = ?
		ORDER BY event_no, rowid
	`

	rows, err := s.db.QueryContext(ctx, query, sessionName, location)
	if err != nil {
		return nil, storage.Wrap("query ranked", err)
	}
	defer rows.Close()

	result := []storage.RankedRow{}
	for rows.Next() {
		var row storage.RankedRow
		if err := rows.Scan(&row.Location, &row.DriverNumber, &row.Position, &row.EventNo); err != nil {
			return nil, storage.Wrap("scan ranked row", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("iterate ranked rows", err)
	}

	return result, nil
}

// Count returns the number of stored session records
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM session_data").Scan(&n); err != nil {
		return 0, storage.Wrap("count session data", err)
	}
	return n, nil
}

// RecordTransfer persists a transfer attempt
func (s *Store) RecordTransfer(ctx context.Context, rec storage.TransferRecord) error {
	query := `
		INSERT INTO transfers (id, outcome, row_count, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		string(rec.Outcome),
		rec.Rows,
		rec.Error,
		rec.StartedAt.UTC(),
		rec.FinishedAt.UTC(),
	)
	if err != nil {
		return storage.Wrap("record transfer", err)
	}

	return nil
}

// LatestTransfer returns the most recently recorded transfer, or nil
func (s *Store) LatestTransfer(ctx context.Context) (*storage.TransferRecord, error) {
	query := `
		SELECT id, outcome, row_count, error, started_at, finished_at
		FROM transfers
		ORDER BY rowid DESC
		LIMIT 1
	`

	var rec storage.TransferRecord
	var outcome string
	err := s.db.QueryRowContext(ctx, query).Scan(
		&rec.ID,
		&outcome,
		&rec.Rows,
		&rec.Error,
		&rec.StartedAt,
		&rec.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.Wrap("latest transfer", err)
	}

	rec.Outcome = storage.TransferOutcome(outcome)
	return &rec, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
