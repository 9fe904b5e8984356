package fixture

import (
	"context"
	"fmt"
	"sync"

	"github.com/samijaber1/session-relay/internal/session"
)

// Adapter is a file-backed dataset source. It reports ready once a dataset
// has been loaded.
type Adapter struct {
	mu      sync.RWMutex
	records []session.Record
	loaded  bool
}

// NewAdapter creates an empty fixture adapter
func NewAdapter() *Adapter {
	return &Adapter{}
}

// LoadFile loads and validates a dataset fixture from a JSON file
func (a *Adapter) LoadFile(validator *session.Validator, path string) error {
	records, errs := validator.LoadFile(path)
	if len(errs) > 0 {
		return fmt.Errorf("failed to load fixture: %w", errs[0])
	}

	a.SetRecords(records)
	return nil
}

// SetRecords directly sets the dataset (useful for testing)
func (a *Adapter) SetRecords(records []session.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.records = append([]session.Record(nil), records...)
	a.loaded = true
}

// CheckReady reports whether a dataset has been loaded
func (a *Adapter) CheckReady(ctx context.Context) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.loaded
}

// FetchDataset returns a copy of the loaded dataset
func (a *Adapter) FetchDataset(ctx context.Context) ([]session.Record, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.loaded {
		return nil, fmt.Errorf("no fixture loaded")
	}

	return append([]session.Record(nil), a.records...), nil
}
