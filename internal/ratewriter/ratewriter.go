// Package ratewriter throttles large demux writes to a configured
// megabits-per-second ceiling, so a batch extraction run sharing a disk
// or network mount with other workloads does not saturate it.
package ratewriter

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Writer wraps an io.Writer, blocking each Write call until the token
// bucket has capacity for len(p) bytes. A nil or non-positive
// megabitsPerSec disables throttling entirely.
type Writer struct {
	w       io.Writer
	limiter *rate.Limiter
}

// burstCeiling bounds the token bucket's burst size independently of its
// refill rate, so a single demux write (at most a few hundred KB) never
// exceeds what WaitN can grant in one call.
const burstCeiling = 4 << 20

// New wraps w with a token-bucket limiter capped at megabitsPerSec
// megabits per second. megabitsPerSec <= 0 disables throttling.
func New(w io.Writer, megabitsPerSec float64) *Writer {
	if megabitsPerSec <= 0 {
		return &Writer{w: w}
	}
	bytesPerSec := megabitsPerSec * 1_000_000 / 8
	return &Writer{w: w, limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burstCeiling)}
}

// Write waits for the limiter (when enabled) before delegating to the
// wrapped writer. The wait respects ctx cancellation via WriteContext;
// Write itself uses context.Background.
func (rw *Writer) Write(p []byte) (int, error) {
	return rw.WriteContext(context.Background(), p)
}

// WriteContext is like Write but aborts the wait early if ctx is
// cancelled.
func (rw *Writer) WriteContext(ctx context.Context, p []byte) (int, error) {
	if rw.limiter == nil {
		return rw.w.Write(p)
	}
	if err := rw.limiter.WaitN(ctx, len(p)); err != nil {
		return 0, err
	}
	return rw.w.Write(p)
}
