package imprint

import (
	"github.com/toejough/imprint/internal/core"
	"go.uber.org/zap"
)

// ForTest returns the Engine for the given test, creating one if needed.
// Multiple calls with the same TestReporter return the same Engine, and the
// deferred checks run through t.Cleanup when the test completes.
func ForTest(t TestReporter, options ...Option) *Engine {
	return core.ForTest(t, options...)
}

// Expectations records strict expectations for t's engine.
func Expectations(t TestReporter, declare func(*Recorder)) {
	t.Helper()
	core.Expectations(t, declare)
}

// NonStrictExpectations records non-strict expectations for t's engine.
func NonStrictExpectations(t TestReporter, declare func(*Recorder)) {
	t.Helper()
	core.NonStrictExpectations(t, declare)
}

// Verifications verifies t's invocation history, failing the test if it does not hold.
func Verifications(t TestReporter, mode VerifyMode, declare func(*Verifier)) {
	t.Helper()
	core.Verifications(t, mode, declare)
}

// WithInterceptor sets the interception layer used for cascading.
func WithInterceptor(interceptor Interceptor) Option {
	return core.WithInterceptor(interceptor)
}

// WithLogger sets the logger for engine debug tracing.
func WithLogger(logger *zap.Logger) Option {
	return core.WithLogger(logger)
}

// WithTolerance sets the absolute float tolerance for literal arguments.
func WithTolerance(tolerance float64) Option {
	return core.WithTolerance(tolerance)
}
