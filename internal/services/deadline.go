// internal/services/deadline.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ntptrace/trace-backend/internal/ledger"
)

// callWithDeadline runs fn under a timeout and returns once the deadline
// passes even if fn ignores its context. A late result is dropped.
func callWithDeadline[T any](ctx context.Context, timeout time.Duration, what string, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				var zero T
				done <- result{zero, fmt.Errorf("%s panicked: %v", what, rec)}
			}
		}()
		v, err := fn(callCtx)
		done <- result{v, err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-callCtx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %s: %v", ledger.ErrUnavailable, what, callCtx.Err())
	}
}
