package recovery

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil error is not retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Error("context cancellation is not retryable")
	}
	if IsRetryable(context.DeadlineExceeded) {
		t.Error("deadline exceeded is not retryable")
	}
	if IsRetryable(ErrCircuitOpen) {
		t.Error("open circuit is not retryable")
	}
	if IsRetryable(fmt.Errorf("wrapped: %w", ErrCircuitOpen)) {
		t.Error("wrapped open circuit is not retryable")
	}
	if !IsRetryable(errors.New("connection reset")) {
		t.Error("unknown errors default to retryable")
	}
	if IsRetryable(&permanentError{msg: "bad params"}) {
		t.Error("classifier verdict must be honored")
	}
}
