package transfer

import (
	"context"
	"log/slog"
	"time"

	"filecourier/internal/errors"
	"filecourier/internal/history"
	"filecourier/internal/network"
	"filecourier/internal/protocol"
)

// State names a position in the retry loop. Valid transitions are
// Attempting -> Succeeded, Attempting -> Retrying, Attempting -> Failed
// and Retrying -> Attempting.
type State int

const (
	StateAttempting State = iota
	StateRetrying
	StateSucceeded
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds the retry loop. MaxAttempts counts every attempt
// including the first, and Delay is the fixed pause before each reconnect.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Controller wraps the receive engine with bounded reconnect and resume.
// Dial failures and retryable transfer errors consume attempts; framing
// and validation errors abort immediately. Every terminal state appends
// exactly one record to the ledger.
type Controller struct {
	Engine *Engine
	Dialer *network.Dialer
	Policy RetryPolicy
	Ledger *history.Ledger
}

// retryState carries loop progress between state transitions.
type retryState struct {
	attempt int
	opts    ReceiveOptions
	result  Result
	lastErr error
}

// Receive runs the retry loop until a terminal state and returns the last
// attempt's result. On failure the returned error is the last error seen.
func (c *Controller) Receive(ctx context.Context, outputPath string, onProgress ProgressFunc) (Result, error) {
	st := &retryState{opts: ReceiveOptions{OutputPath: outputPath}}
	state := StateAttempting

	for {
		switch state {
		case StateAttempting:
			state = c.attemptOnce(ctx, st, onProgress)
		case StateRetrying:
			state = c.pause(ctx, st)
		case StateSucceeded:
			c.record(history.Complete(), st)
			return st.result, nil
		default:
			c.record(c.failureStatus(st), st)
			return st.result, st.lastErr
		}
	}
}

// attemptOnce dials, runs one receive attempt and decides the next state.
func (c *Controller) attemptOnce(ctx context.Context, st *retryState, onProgress ProgressFunc) State {
	st.attempt++

	conn, err := c.Dialer.Dial(ctx)
	if err != nil {
		st.lastErr = err
		return c.afterFailure(st)
	}

	result, err := c.Engine.Receive(ctx, conn, st.opts, onProgress)
	network.Close(conn)
	c.noteResult(st, result)

	if err == nil {
		return StateSucceeded
	}

	st.lastErr = err
	if !errors.Retryable(err) {
		return StateFailed
	}
	return c.afterFailure(st)
}

// noteResult folds an attempt's result into the loop state and arms the
// resume options for the next attempt.
func (c *Controller) noteResult(st *retryState, result Result) {
	if result.Header == (protocol.Header{}) {
		result.Header = st.result.Header
	}
	st.result = result

	st.opts.Resolved = result.Path
	st.opts.Offset = result.Received
	if result.Header != (protocol.Header{}) {
		expect := result.Header
		st.opts.Expect = &expect
	}
}

func (c *Controller) afterFailure(st *retryState) State {
	if st.attempt >= c.Policy.MaxAttempts {
		return StateFailed
	}
	return StateRetrying
}

// pause waits the fixed retry delay, honoring cancellation.
func (c *Controller) pause(ctx context.Context, st *retryState) State {
	slog.Warn("Transfer attempt failed, retrying",
		"attempt", st.attempt,
		"max_attempts", c.Policy.MaxAttempts,
		"delay", c.Policy.Delay,
		"error", st.lastErr)

	if err := sleepContext(ctx, c.Policy.Delay); err != nil {
		return StateFailed
	}
	return StateAttempting
}

// record appends the single terminal history entry for this transfer.
func (c *Controller) record(status history.Status, st *retryState) {
	if c.Ledger == nil {
		return
	}
	name := st.result.Header.Name
	if name == "" {
		name = "unknown"
	}
	c.Ledger.Append(history.NewRecord(name, c.Dialer.Address, st.result.Header.Size, status))
}

// failureStatus maps the last error to a ledger status. A stream that died
// mid-payload is recorded with its byte counts; everything else keeps the
// error text.
func (c *Controller) failureStatus(st *retryState) history.Status {
	if _, ok := st.lastErr.(*errors.PrematureCloseError); ok {
		return history.Incomplete(st.result.Received, st.result.Header.Size)
	}
	return history.Failed(st.lastErr)
}

// sleepContext blocks for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
