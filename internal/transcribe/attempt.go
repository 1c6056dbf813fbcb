package transcribe

import (
	"context"
	"time"
)

// DefaultTimeout bounds one provider attempt when configuration supplies no
// positive value.
const DefaultTimeout = 8 * time.Second

// RunAttempt executes one provider call under a deadline. The call and the
// timer run concurrently from the moment the attempt starts; whichever
// settles first determines the outcome and the loser is cancelled.
// Cancellation of the network call is best-effort: control returns to the
// caller at the deadline even if the transport cannot abort, and a late
// result is discarded.
func RunAttempt(ctx context.Context, p Provider, audio Audio, opts Opts, timeout time.Duration) (*Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp *Response
		err  error
	}
	// Buffered so the call goroutine can finish after the timer wins.
	ch := make(chan result, 1)
	go func() {
		resp, err := p.Transcribe(ctx, audio, opts)
		ch <- result{resp, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil && ctx.Err() == context.DeadlineExceeded {
			// The transport aborted because the deadline hit; report the
			// timeout, not the secondary transport failure.
			return nil, errTimeout(p.Name(), timeout)
		}
		return r.resp, r.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errTimeout(p.Name(), timeout)
		}
		// Parent cancelled (shutdown). Not a provider failure.
		return nil, ctx.Err()
	}
}
