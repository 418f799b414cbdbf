package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// TransportError is a pass-level network or HTTP failure during push or
// pull. The sync engine aborts the phase, leaves the outbox untouched and
// retries on the next trigger.
type TransportError struct {
	Err        error
	Op         string
	StatusCode int
	Timeout    bool
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed with status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportError(op string, statusCode int, err error) *TransportError {
	return &TransportError{
		Op:         op,
		StatusCode: statusCode,
		Err:        err,
		Timeout:    isTimeout(err),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
