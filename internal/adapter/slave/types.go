package slave

import (
	"errors"
	"fmt"
)

// StatusReady is the health status the loading service reports once its
// dataset can be pulled
const StatusReady = "ready"

// HealthResponse is the body of the loading service health endpoint
type HealthResponse struct {
	Status string `json:"status"`
}

var (
	// ErrNetwork covers transport failures, timeouts and non-2xx responses
	ErrNetwork = errors.New("network error")

	// ErrMalformedResponse covers bodies that cannot be decoded or fail validation
	ErrMalformedResponse = errors.New("malformed response")
)

// TransferError is returned when the dataset cannot be fetched.
// Kind is ErrNetwork or ErrMalformedResponse.
type TransferError struct {
	Kind error
	Err  error
}

// Error implements the error interface
func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed: %v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *TransferError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func networkError(format string, args ...any) error {
	return &TransferError{Kind: ErrNetwork, Err: fmt.Errorf(format, args...)}
}

func malformedError(format string, args ...any) error {
	return &TransferError{Kind: ErrMalformedResponse, Err: fmt.Errorf(format, args...)}
}
