package brain

import (
	"errors"
	"fmt"
)

// maxDiagnosticLen bounds the diagnostic payload carried by a BackendError.
const maxDiagnosticLen = 1800

// ErrMalformedOutput marks a response that violated the structured battle
// schema. Unlike other backend failures it feeds back into the retry prompt.
var ErrMalformedOutput = errors.New("brain: malformed model output")

// BackendError is the single failure type surfaced by backends: non-2xx
// status, transport error, or response-schema mismatch. It carries a
// truncated diagnostic payload; retry policy belongs to callers.
type BackendError struct {
	Backend Kind
	Status  int // HTTP status, 0 for transport/schema failures
	Detail  string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("brain: %s: status %d: %s", e.Backend, e.Status, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("brain: %s: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("brain: %s: %s", e.Backend, e.Detail)
}

func (e *BackendError) Unwrap() error { return e.Err }

// newBackendError builds a BackendError with its detail truncated.
func newBackendError(backend Kind, status int, detail string, err error) *BackendError {
	if len(detail) > maxDiagnosticLen {
		detail = detail[:maxDiagnosticLen]
	}
	return &BackendError{Backend: backend, Status: status, Detail: detail, Err: err}
}
