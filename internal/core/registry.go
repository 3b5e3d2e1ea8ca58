package core

import (
	"sync"
)

// TestReporter is the minimal interface imprint needs from test frameworks.
type TestReporter interface {
	Helper()
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// Expectations runs a strict recording block on the engine for t, failing the
// test on a usage error.
func Expectations(t TestReporter, declare func(*Recorder)) {
	t.Helper()

	if err := ForTest(t).Expectations(declare); err != nil {
		t.Fatalf("%v", err)
	}
}

// ForTest returns the Engine for the given test, creating one if needed.
// Multiple calls with the same TestReporter return the same Engine.
//
// Options only apply when the engine is created. If the TestReporter supports
// Cleanup (like *testing.T), the engine's deferred checks run when the test
// completes, failures are reported through Errorf, and the engine is removed
// from the registry.
func ForTest(t TestReporter, options ...Option) *Engine {
	registryMu.Lock()
	defer registryMu.Unlock()

	if engine, ok := registry[t]; ok {
		return engine
	}

	engine := NewEngine(options...)
	engine.BeginTestUnit()
	registry[t] = engine

	// Register cleanup if the TestReporter supports it
	if cr, ok := t.(cleanupRegistrar); ok {
		cr.Cleanup(func() {
			registryMu.Lock()
			delete(registry, t)
			registryMu.Unlock()

			if err := engine.EndTestUnit(); err != nil {
				t.Helper()
				t.Errorf("%v", err)
			}
		})
	}

	return engine
}

// NonStrictExpectations runs a non-strict recording block on the engine for t,
// failing the test on a usage error.
func NonStrictExpectations(t TestReporter, declare func(*Recorder)) {
	t.Helper()

	if err := ForTest(t).NonStrictExpectations(declare); err != nil {
		t.Fatalf("%v", err)
	}
}

// Verifications runs a verification block in mode on the engine for t, failing
// the test if it does not hold.
func Verifications(t TestReporter, mode VerifyMode, declare func(*Verifier)) {
	t.Helper()

	if err := ForTest(t).Verify(mode, declare); err != nil {
		t.Fatalf("%v", err)
	}
}

// unexported variables.
var (
	//nolint:gochecknoglobals // Package-level registry is intentional for test coordination
	registry = make(map[TestReporter]*Engine)
	//nolint:gochecknoglobals // Mutex for registry
	registryMu sync.Mutex
)

// cleanupRegistrar is the interface needed for registering cleanup functions.
// This is satisfied by *testing.T and *testing.B.
type cleanupRegistrar interface {
	Cleanup(cleanupFunc func())
}
