package storage

import (
	"context"
	"time"

	"github.com/samijaber1/session-relay/internal/session"
)

// SessionStore defines the local persistence of the transferred dataset
type SessionStore interface {
	// EnsureSchema creates the tables if they do not exist
	EnsureSchema(ctx context.Context) error

	// ReplaceAll atomically replaces every stored record.
	// An empty slice leaves the existing rows untouched.
	ReplaceAll(ctx context.Context, records []session.Record) error

	// QueryRanked returns the dense-ranked view for a location and session
	QueryRanked(ctx context.Context, location, sessionName string) ([]RankedRow, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int, error)
}

// TransferStorage records transfer attempts
type TransferStorage interface {
	RecordTransfer(ctx context.Context, rec TransferRecord) error

	// LatestTransfer returns nil when no transfer has been recorded
	LatestTransfer(ctx context.Context) (*TransferRecord, error)
}

// Store is the full local store used by the relay
type Store interface {
	SessionStore
	TransferStorage

	// Close closes the storage connection
	Close() error
}

// RankedRow is one row of the dense-ranked view
type RankedRow struct {
	Location     string
	DriverNumber int64
	Position     int64
	EventNo      int64
}

// TransferOutcome is the terminal result of a transfer attempt
type TransferOutcome string

const (
	TransferReady TransferOutcome = "ready"
	TransferError TransferOutcome = "error"
)

// TransferRecord is the audit entry for a single transfer attempt
type TransferRecord struct {
	ID         string
	Outcome    TransferOutcome
	Rows       int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
