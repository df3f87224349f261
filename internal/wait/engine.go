// Package wait turns asynchronous browser predicates into bounded, cancelable
// waits with deterministic failure messages.
package wait

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shehryarbajwa/cukebrowser/internal/driver"
)

const (
	// DefaultTimeout applies when neither the descriptor nor the engine sets one.
	DefaultTimeout = 15 * time.Second
	// DefaultPollInterval is the pause between predicate attempts.
	DefaultPollInterval = 100 * time.Millisecond
)

// Predicate inspects the session and reports whether the awaited condition
// holds, along with the value to resolve with.
type Predicate[T any] func(ctx context.Context, s driver.Session) (T, bool, error)

// Descriptor is the unit of bounded polling.
type Descriptor[T any] struct {
	Predicate Predicate[T]
	// Timeout falls back to the engine default when not positive.
	Timeout time.Duration
	// Message is reported verbatim on timeout.
	Message string
}

// Recorder observes wait outcomes.
type Recorder interface {
	RecordWait(outcome string, elapsed time.Duration)
}

// Engine holds the process-wide wait defaults.
type Engine struct {
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
	recorder Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithPollInterval sets the pause between attempts.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l.Named("wait")
		}
	}
}

// WithRecorder reports every finished wait to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an engine whose waits default to timeout.
func NewEngine(timeout time.Duration, opts ...Option) *Engine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	e := &Engine{
		timeout:  timeout,
		interval: DefaultPollInterval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultTimeout returns the timeout used when a descriptor sets none.
func (e *Engine) DefaultTimeout() time.Duration { return e.timeout }

// PollInterval returns the pause between attempts.
func (e *Engine) PollInterval() time.Duration { return e.interval }

func (e *Engine) resolveTimeout(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return e.timeout
}

type attempt[T any] struct {
	value T
	ok    bool
	err   error
}

// Until polls d.Predicate against s until it matches or the timeout elapses.
//
// Each attempt runs with ctx rather than the timeout, so a timeout stops the
// polling loop without aborting a call already in flight; its late result is
// dropped. Cancelling ctx ends the wait immediately with ctx's error.
func Until[T any](ctx context.Context, e *Engine, s driver.Session, d Descriptor[T]) (T, error) {
	var zero T
	timeout := e.resolveTimeout(d.Timeout)
	start := time.Now()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	pacer := rate.NewLimiter(rate.Every(e.interval), 1)
	var lastErr error

	for {
		delay := pacer.Reserve().Delay()
		if delay > 0 {
			pause := time.NewTimer(delay)
			select {
			case <-pause.C:
			case <-deadline.C:
				pause.Stop()
				return zero, e.timedOut(d.Message, timeout, start, lastErr)
			case <-ctx.Done():
				pause.Stop()
				return zero, ctx.Err()
			}
		}

		results := make(chan attempt[T], 1)
		go func() {
			v, ok, err := d.Predicate(ctx, s)
			results <- attempt[T]{value: v, ok: ok, err: err}
		}()

		select {
		case r := <-results:
			if r.err != nil {
				lastErr = r.err
				continue
			}
			if r.ok {
				e.record("matched", time.Since(start))
				return r.value, nil
			}
		case <-deadline.C:
			return zero, e.timedOut(d.Message, timeout, start, lastErr)
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func (e *Engine) timedOut(message string, timeout time.Duration, start time.Time, lastErr error) error {
	elapsed := time.Since(start)
	e.record("timeout", elapsed)
	if message == "" {
		message = fmt.Sprintf("condition not met after %dms", timeout.Milliseconds())
	}
	e.logger.Debug("wait timed out",
		zap.String("message", message),
		zap.Duration("elapsed", elapsed),
		zap.Error(lastErr))
	return &WaitTimeoutError{
		Message: message,
		Timeout: timeout,
		Elapsed: elapsed,
		LastErr: lastErr,
	}
}

func (e *Engine) record(outcome string, elapsed time.Duration) {
	if e.recorder != nil {
		e.recorder.RecordWait(outcome, elapsed)
	}
}
