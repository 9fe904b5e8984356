package slave

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/samijaber1/session-relay/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const scenarioDataset = `[{"location":"Melbourne","session_name":"Race","driver_number":1,"position":1,"datetime":"2024-01-01T00:00:00"}]`

func newTestAdapter(t *testing.T, url string) *Adapter {
	t.Helper()

	validator, err := session.NewValidator()
	require.NoError(t, err)

	return NewAdapter(DefaultConfig(url), validator, zaptest.NewLogger(t))
}

func TestAdapter_CheckReady(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{name: "ready", status: http.StatusOK, body: `{"status":"ready"}`, want: true},
		{name: "not ready", status: http.StatusOK, body: `{"status":"not_ready"}`, want: false},
		{name: "missing status", status: http.StatusOK, body: `{}`, want: false},
		{name: "server error", status: http.StatusInternalServerError, body: `{"status":"ready"}`, want: false},
		{name: "malformed body", status: http.StatusOK, body: `ready`, want: false},
		{name: "wrong case", status: http.StatusOK, body: `{"status":"READY"}`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			adapter := newTestAdapter(t, server.URL+"/")
			assert.Equal(t, tt.want, adapter.CheckReady(context.Background()))
		})
	}
}

func TestAdapter_CheckReady_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	adapter := newTestAdapter(t, url)
	assert.False(t, adapter.CheckReady(context.Background()))
}

func TestAdapter_CheckReady_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	adapter := newTestAdapter(t, server.URL)
	adapter.config.HealthTimeout = 50 * time.Millisecond

	start := time.Now()
	assert.False(t, adapter.CheckReady(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAdapter_FetchDataset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(scenarioDataset))
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)

	records, err := adapter.FetchDataset(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Melbourne", records[0].Location)
	assert.Equal(t, "Race", records[0].SessionName)
	assert.Equal(t, int64(1), records[0].DriverNumber)
	assert.Equal(t, int64(1), records[0].Position)
	assert.Equal(t, "2024-01-01T00:00:00.000000000Z", records[0].DateTime.StorageString())
}

func TestAdapter_FetchDataset_Empty(t *testing.T) {
	for _, body := range []string{`[]`, `null`} {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			records, err := newTestAdapter(t, server.URL).FetchDataset(context.Background())
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestAdapter_FetchDataset_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind error
	}{
		{name: "server error", status: http.StatusServiceUnavailable, body: "loading", wantKind: ErrNetwork},
		{name: "not found", status: http.StatusNotFound, body: "", wantKind: ErrNetwork},
		{name: "invalid json", status: http.StatusOK, body: "[{", wantKind: ErrMalformedResponse},
		{name: "object body", status: http.StatusOK, body: `{"status":"ready"}`, wantKind: ErrMalformedResponse},
		{name: "schema violation", status: http.StatusOK, body: `[{"location":"Melbourne"}]`, wantKind: ErrMalformedResponse},
		{name: "bad datetime", status: http.StatusOK, body: `[{"location":"Melbourne","session_name":"Race","driver_number":1,"position":1,"datetime":"soon"}]`, wantKind: ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestAdapter(t, server.URL).FetchDataset(context.Background())
			require.Error(t, err)

			var transferErr *TransferError
			require.True(t, errors.As(err, &transferErr), "got %T: %v", err, err)
			assert.ErrorIs(t, err, tt.wantKind)
		})
	}
}

func TestAdapter_FetchDataset_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newTestAdapter(t, url).FetchDataset(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestAdapter_FetchDataset_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	adapter := newTestAdapter(t, server.URL)
	adapter.config.DataTimeout = 50 * time.Millisecond

	_, err := adapter.FetchDataset(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("http://loader:5000")

	assert.Equal(t, "http://loader:5000", config.URL)
	assert.Equal(t, 5*time.Second, config.HealthTimeout)
	assert.Equal(t, 10*time.Second, config.DataTimeout)
}
