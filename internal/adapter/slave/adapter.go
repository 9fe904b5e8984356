package slave

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samijaber1/session-relay/internal/session"
	"go.uber.org/zap"
)

// Config holds loading service client configuration
type Config struct {
	URL           string
	HealthTimeout time.Duration
	DataTimeout   time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig(slaveURL string) Config {
	return Config{
		URL:           slaveURL,
		HealthTimeout: 5 * time.Second,
		DataTimeout:   10 * time.Second,
	}
}

// Adapter talks to the loading service health and data endpoints
type Adapter struct {
	config    Config
	client    *http.Client
	validator *session.Validator
	logger    *zap.Logger
}

// NewAdapter creates a new loading service adapter
func NewAdapter(config Config, validator *session.Validator, logger *zap.Logger) *Adapter {
	return &Adapter{
		config:    config,
		client:    &http.Client{},
		validator: validator,
		logger:    logger.Named("slave"),
	}
}

// CheckReady reports whether the loading service says it is ready.
// Every failure is logged and collapses to false.
func (a *Adapter) CheckReady(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, a.config.HealthTimeout)
	defer cancel()

	body, err := a.get(ctx, "/health")
	if err != nil {
		a.logger.Info("failed to reach loading service", zap.Error(err))
		return false
	}

	var health HealthResponse
	if err := json.Unmarshal(body, &health); err != nil {
		a.logger.Info("malformed health response", zap.Error(err))
		return false
	}

	return health.Status == StatusReady
}

// FetchDataset pulls and decodes the full dataset. Failures are returned as
// *TransferError.
func (a *Adapter) FetchDataset(ctx context.Context) ([]session.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, a.config.DataTimeout)
	defer cancel()

	body, err := a.get(ctx, "/data")
	if err != nil {
		return nil, err
	}

	records, err := a.validator.Decode("data", body)
	if err != nil {
		return nil, malformedError("%w", err)
	}

	return records, nil
}

// get performs a GET against the loading service and returns the body of a
// 2xx response
func (a *Adapter) get(ctx context.Context, path string) ([]byte, error) {
	fullURL := strings.TrimSuffix(a.config.URL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, networkError("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, networkError("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, networkError("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, networkError("http status %d: %s", resp.StatusCode, truncate(string(body), 256))
	}

	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
