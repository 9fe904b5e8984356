package query

import (
	"context"
	"errors"

	"github.com/samijaber1/session-relay/internal/session"
	"github.com/samijaber1/session-relay/internal/storage"
	"go.uber.org/zap"
)

// DefaultLocation is the location the ranked view is computed for by default
const DefaultLocation = "Melbourne"

// Ranker is the read path the service depends on
type Ranker interface {
	QueryRanked(ctx context.Context, location, sessionName string) ([]storage.RankedRow, error)
}

// Entry is one element of the ranked view as returned to callers
type Entry struct {
	Location     string `json:"location"`
	DriverNumber int64  `json:"driver_number"`
	Position     int64  `json:"position"`
	EventNo      int64  `json:"event_no"`
}

// Service computes the dense-ranked view for a fixed location and session
type Service struct {
	store       Ranker
	location    string
	sessionName string
	logger      *zap.Logger
}

// NewService creates a query service. Empty location or sessionName fall
// back to DefaultLocation and session.SessionRace.
func NewService(store Ranker, location, sessionName string, logger *zap.Logger) *Service {
	if location == "" {
		location = DefaultLocation
	}
	if sessionName == "" {
		sessionName = session.SessionRace
	}

	return &Service{
		store:       store,
		location:    location,
		sessionName: sessionName,
		logger:      logger.Named("query"),
	}
}

// Ranked returns the ranked view. The returned slice is never nil on success.
// Failures are reported as *storage.StorageError.
func (s *Service) Ranked(ctx context.Context) ([]Entry, error) {
	rows, err := s.store.QueryRanked(ctx, s.location, s.sessionName)
	if err != nil {
		s.logger.Error("ranked query failed",
			zap.String("location", s.location),
			zap.String("session_name", s.sessionName),
			zap.Error(err))
		var storageErr *storage.StorageError
		if errors.As(err, &storageErr) {
			return nil, err
		}
		return nil, storage.Wrap("ranked view", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Location:     row.Location,
			DriverNumber: row.DriverNumber,
			Position:     row.Position,
			EventNo:      row.EventNo,
		})
	}

	return entries, nil
}
