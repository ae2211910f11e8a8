package llm

import (
	"context"
	"errors"
	"time"
)

type timeoutBackend struct {
	next    Backend
	timeout time.Duration
}

// WithTimeout bounds every Generate call of next. A call that runs out of
// time fails with KindBackendUnavailable. A non-positive d returns next.
func WithTimeout(next Backend, d time.Duration) Backend {
	if d <= 0 {
		return next
	}
	return &timeoutBackend{next: next, timeout: d}
}

func (b *timeoutBackend) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := b.next.Generate(ctx, req)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewError(KindBackendUnavailable, "backend timed out", r.err)
		}
		return r.resp, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewError(KindBackendUnavailable, "backend timed out", ctx.Err())
		}
		return nil, NewError(KindBackendUnavailable, "request cancelled", ctx.Err())
	}
}
