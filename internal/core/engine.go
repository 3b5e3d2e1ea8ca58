// Package core provides the internal implementation of imprint's expectation
// engine: recording ledgers, the invocation dispatcher, the invocation history,
// cascading, and verification.
package core

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Engine holds all state for one test unit. Build one per test (or use ForTest)
// and hand it to the interception layer, which routes every intercepted call
// through Dispatch.
type Engine struct {
	logger      *zap.Logger
	tolerance   float64
	interceptor Interceptor

	mu        sync.Mutex
	ledgers   []*Ledger
	recording map[int64]*Recorder
	failures  []error

	seq      atomic.Uint64
	history  History
	cascades cascadeArena
}

// NewEngine creates an engine ready for a test unit.
func NewEngine(options ...Option) *Engine {
	engine := &Engine{
		logger:    zap.NewNop(),
		recording: make(map[int64]*Recorder),
	}

	for _, option := range options {
		option(engine)
	}

	return engine
}

// BeginTestUnit discards all ledgers, history, cascaded substitutes, and pending failures.
func (e *Engine) BeginTestUnit() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetLocked()
	e.logger.Debug("test unit started")
}

// EndTestUnit runs the deferred checks (unmet minimums, calls beyond a non-strict
// maximum), adds any failure already raised during replay, resets the engine, and
// returns everything found joined into one error.
func (e *Engine) EndTestUnit() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	errs := append([]error(nil), e.failures...)

	for _, ledger := range e.ledgers {
		for _, rec := range ledger.records {
			if need := rec.min * ledger.iterations; rec.count < need {
				errs = append(errs, rec.failure(ErrMissingInvocation,
					fmt.Sprintf("%d invocations, expected %s", rec.count, boundsFor(rec, ledger.iterations))))
			}

			if rec.overflow > 0 {
				errs = append(errs, rec.failure(ErrTooManyInvocations,
					fmt.Sprintf("%d invocations beyond the maximum, expected %s",
						rec.overflow, boundsFor(rec, ledger.iterations))))
			}
		}
	}

	e.logger.Debug("test unit ended", zap.Int("failures", len(errs)))
	e.resetLocked()

	return errors.Join(errs...)
}

// Expectations runs a strict recording block. The recorded calls must then
// happen in order, each exactly once unless bounded otherwise. A usage error
// aborts the block and is returned; the ledger is discarded.
func (e *Engine) Expectations(declare func(*Recorder)) error {
	return e.record(true, declare)
}

// History returns the invocation log.
func (e *Engine) History() *History {
	return &e.history
}

// Ledgers returns the installed ledgers, in declaration order.
func (e *Engine) Ledgers() []*Ledger {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]*Ledger(nil), e.ledgers...)
}

// NonStrictExpectations runs a non-strict recording block. The recorded calls may
// happen in any order, any number of times within their bounds.
func (e *Engine) NonStrictExpectations(declare func(*Recorder)) error {
	return e.record(false, declare)
}

func (e *Engine) finishRecording(rec *Recorder, install bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if rec.stopped {
		return
	}

	rec.stopped = true
	rec.block.open.Store(false)
	delete(e.recording, rec.ledger.goroutine)

	if !install {
		return
	}

	rec.ledger.frozen = true
	e.ledgers = append(e.ledgers, rec.ledger)

	e.logger.Debug("ledger frozen",
		zap.Bool("strict", rec.ledger.strict),
		zap.Int("records", len(rec.ledger.records)),
		zap.Int("iterations", rec.ledger.iterations))
}

func (e *Engine) nextSeq() uint64 {
	return e.seq.Add(1)
}

func (e *Engine) record(strict bool, declare func(*Recorder)) (err error) {
	goroutine := currentGoroutine()
	rec := &Recorder{
		engine: e,
		ledger: &Ledger{strict: strict, iterations: 1, goroutine: goroutine},
		block:  &block{engine: e},
	}
	rec.block.open.Store(true)

	e.mu.Lock()
	e.recording[goroutine] = rec
	e.mu.Unlock()

	completed := false

	defer func() {
		e.finishRecording(rec, completed && err == nil)
	}()

	defer recoverUsage(&err)

	declare(rec)

	completed = true

	return nil
}

func (e *Engine) resetLocked() {
	e.ledgers = nil
	e.failures = nil
	e.recording = make(map[int64]*Recorder)
	e.history.reset()
	e.cascades.reset()
}

// Option configures an Engine.
type Option func(*Engine)

// WithInterceptor sets the interception layer used for cascading.
func WithInterceptor(interceptor Interceptor) Option {
	return func(e *Engine) {
		e.interceptor = interceptor
	}
}

// WithLogger sets the logger for engine debug tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTolerance sets the absolute tolerance used when literal arguments contain
// floating point values.
func WithTolerance(tolerance float64) Option {
	return func(e *Engine) {
		e.tolerance = tolerance
	}
}

func boundsFor(rec *Expectation, iterations int) string {
	scaled := *rec
	scaled.min *= iterations

	if scaled.max != Unbounded {
		scaled.max *= iterations
	}

	return scaled.describeBounds()
}
