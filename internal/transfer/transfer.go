// Package transfer implements the chunked send and receive loops that move
// file payloads over an established connection, plus the retry controller
// that reconnects and resumes interrupted receives.
package transfer

import (
	"time"
)

// ProgressInterval is the minimum spacing between intermediate progress
// callbacks on the receive side. The final 100% callback is exempt.
const ProgressInterval = 100 * time.Millisecond

// ProgressFunc observes transfer progress. Callbacks run synchronously on
// the transfer goroutine, so implementations must return quickly and hand
// rendering work to another goroutine if needed.
type ProgressFunc func(percent int, transferred, total int64)

// TimeProvider abstracts time operations for deterministic testing.
type TimeProvider interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// DefaultTimeProvider uses the standard library time functions.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (DefaultTimeProvider) Now() time.Time { return time.Now() }

// Since returns the duration since t.
func (DefaultTimeProvider) Since(t time.Time) time.Duration { return time.Since(t) }

// Engine runs the byte-level transfer loops for both roles of a
// connection.
type Engine struct {
	timeProvider TimeProvider
}

// NewEngine creates an engine backed by the wall clock.
func NewEngine() *Engine {
	return &Engine{timeProvider: DefaultTimeProvider{}}
}

// SetTimeProvider replaces the engine clock used for progress throttling.
func (e *Engine) SetTimeProvider(tp TimeProvider) {
	if tp != nil {
		e.timeProvider = tp
	}
}

// percentOf truncates toward zero, so 4999 of 5000 bytes reports 99.
// A zero or unknown total reports 100 immediately.
func percentOf(transferred, total int64) int {
	if total <= 0 {
		return 100
	}
	return int(float64(transferred) / float64(total) * 100)
}
