package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/samijaber1/session-relay/internal/query"
	"github.com/samijaber1/session-relay/internal/session"
	"github.com/samijaber1/session-relay/internal/storage"
	"github.com/samijaber1/session-relay/internal/storage/sqlite"
	"github.com/samijaber1/session-relay/internal/transfer"
	"go.uber.org/zap"
)

type fixedStatus transfer.Status

func (f fixedStatus) Status() transfer.Status { return transfer.Status(f) }

type stubView struct {
	entries []query.Entry
	err     error
	panics  bool
}

func (v *stubView) Ranked(ctx context.Context) ([]query.Entry, error) {
	if v.panics {
		panic("boom")
	}
	return v.entries, v.err
}

type stubTransfers struct {
	record *storage.TransferRecord
	err    error
}

func (s *stubTransfers) LatestTransfer(ctx context.Context) (*storage.TransferRecord, error) {
	return s.record, s.err
}

func setupTestServer(t *testing.T, status transfer.Status, view RankedView, transfers TransferReader) *Server {
	t.Helper()
	return NewServer(fixedStatus(status), view, transfers, ":0", zap.NewNop())
}

func doRequest(t *testing.T, server *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		status   transfer.Status
		expected string
	}{
		{transfer.StatusWaiting, "waiting for loading service"},
		{transfer.StatusReady, "ready"},
		{transfer.StatusError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			server := setupTestServer(t, tt.status, &stubView{}, nil)
			w := doRequest(t, server, http.MethodGet, "/health")

			if w.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", w.Code)
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if resp.Status != tt.expected {
				t.Errorf("expected status=%q, got %q", tt.expected, resp.Status)
			}
		})
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name           string
		status         transfer.Status
		expectedStatus int
		expectedReady  bool
	}{
		{"waiting", transfer.StatusWaiting, http.StatusServiceUnavailable, false},
		{"ready", transfer.StatusReady, http.StatusOK, true},
		{"error", transfer.StatusError, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupTestServer(t, tt.status, &stubView{}, nil)
			w := doRequest(t, server, http.MethodGet, "/readyz")

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			var resp ReadyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if resp.Ready != tt.expectedReady {
				t.Errorf("expected ready=%v, got %v", tt.expectedReady, resp.Ready)
			}
			if !tt.expectedReady && len(resp.Reasons) == 0 {
				t.Error("expected reasons when not ready")
			}
		})
	}
}

func TestDataEndpoint(t *testing.T) {
	view := &stubView{entries: []query.Entry{
		{Location: "Melbourne", DriverNumber: 1, Position: 1, EventNo: 1},
	}}
	server := setupTestServer(t, transfer.StatusReady, view, nil)

	w := doRequest(t, server, http.MethodGet, "/data")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	expected := `[{"location":"Melbourne","driver_number":1,"position":1,"event_no":1}]`
	if got := strings.TrimSpace(w.Body.String()); got != expected {
		t.Errorf("expected body %s, got %s", expected, got)
	}
}

func TestDataEndpoint_EmptyIsArray(t *testing.T) {
	server := setupTestServer(t, transfer.StatusWaiting, &stubView{}, nil)

	w := doRequest(t, server, http.MethodGet, "/data")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	if got := strings.TrimSpace(w.Body.String()); got != "[]" {
		t.Errorf("expected empty array, got %s", got)
	}
}

func TestDataEndpoint_StorageFailure(t *testing.T) {
	view := &stubView{err: storage.Wrap("query ranked", errors.New("no such table: session_data"))}
	server := setupTestServer(t, transfer.StatusReady, view, nil)

	w := doRequest(t, server, http.MethodGet, "/data")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !strings.Contains(resp.Error, "no such table") {
		t.Errorf("expected error message to carry the cause, got %q", resp.Error)
	}
}

func TestDataEndpoint_PanicRecovered(t *testing.T) {
	server := setupTestServer(t, transfer.StatusReady, &stubView{panics: true}, nil)

	w := doRequest(t, server, http.MethodGet, "/data")

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", w.Code)
	}

	// server keeps serving afterwards
	w = doRequest(t, server, http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 after recovered panic, got %d", w.Code)
	}
}

func TestTransferEndpoint(t *testing.T) {
	started := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		transfers      TransferReader
		expectedStatus int
	}{
		{"not configured", nil, http.StatusServiceUnavailable},
		{"none recorded", &stubTransfers{}, http.StatusNotFound},
		{"storage failure", &stubTransfers{err: errors.New("disk I/O error")}, http.StatusInternalServerError},
		{"recorded", &stubTransfers{record: &storage.TransferRecord{
			ID:         "3f1c",
			Outcome:    storage.TransferReady,
			Rows:       20,
			StartedAt:  started,
			FinishedAt: started.Add(1500 * time.Millisecond),
		}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupTestServer(t, transfer.StatusReady, &stubView{}, tt.transfers)
			w := doRequest(t, server, http.MethodGet, "/v1/transfer")

			if w.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}

			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp TransferResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}

			if resp.Outcome != "ready" || resp.Rows != 20 || resp.DurationMs != 1500 {
				t.Errorf("unexpected transfer response: %+v", resp)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := setupTestServer(t, transfer.StatusReady, &stubView{}, &stubTransfers{})

	tests := []struct {
		method string
		path   string
	}{
		{"POST", "/health"},
		{"PUT", "/data"},
		{"DELETE", "/data"},
		{"POST", "/readyz"},
		{"POST", "/v1/transfer"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := doRequest(t, server, tt.method, tt.path)

			if w.Code != http.StatusMethodNotAllowed {
				t.Errorf("expected status 405, got %d", w.Code)
			}
		})
	}
}

func TestUnknownPath(t *testing.T) {
	server := setupTestServer(t, transfer.StatusReady, &stubView{}, nil)

	w := doRequest(t, server, http.MethodGet, "/v1/unknown")

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestDataEndpoint_AgainstStore(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "relay.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	mk := func(loc, sess string, driver, pos int64, dt string) session.Record {
		ts, err := session.ParseTimestamp(dt)
		if err != nil {
			t.Fatalf("failed to parse %s: %v", dt, err)
		}
		return session.Record{Location: loc, SessionName: sess, DriverNumber: driver, Position: pos, DateTime: ts}
	}

	records := []session.Record{
		mk("Melbourne", "Race", 1, 1, "2024-01-01T00:00:00"),
		mk("Melbourne", "Qualifying", 44, 1, "2023-12-31T00:00:00"),
		mk("Monaco", "Race", 16, 1, "2023-06-01T00:00:00"),
		mk("Melbourne", "Race", 11, 2, "2024-01-01T00:01:00"),
	}
	if err := store.ReplaceAll(ctx, records); err != nil {
		t.Fatalf("failed to load records: %v", err)
	}

	svc := query.NewService(store, "Melbourne", "Race", zap.NewNop())
	server := NewServer(fixedStatus(transfer.StatusReady), svc, store, ":0", zap.NewNop())

	w := doRequest(t, server, http.MethodGet, "/data")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	expected := `[{"location":"Melbourne","driver_number":1,"position":1,"event_no":1},` +
		`{"location":"Melbourne","driver_number":11,"position":2,"event_no":2}]`
	if got := strings.TrimSpace(w.Body.String()); got != expected {
		t.Errorf("expected body %s, got %s", expected, got)
	}

	w = doRequest(t, server, http.MethodGet, "/v1/transfer")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any transfer is recorded, got %d", w.Code)
	}
}
