// Package imprint provides a test-double engine for Go.
// Tests record expected calls on mocks, replay the code under test against
// them, and verify the observed call history, in order or out of order.
//
// This is the public API entry point. Implementation lives in internal/core.
package imprint

import (
	"reflect"

	"github.com/toejough/imprint/internal/core"
)

// Call is one intercepted live call, as handed to Dispatch by the interception layer.
type Call = core.Call

// Engine holds all expectation, history, and cascade state for one test unit.
type Engine = core.Engine

// NewEngine creates an engine ready for a test unit.
func NewEngine(options ...Option) *Engine {
	return core.NewEngine(options...)
}

// Event is one observed live call in the invocation history.
type Event = core.Event

// Expectation is one expected call and its configuration.
type Expectation = core.Expectation

// Failure is an assertion failure: the code under test did not behave as expected.
type Failure = core.Failure

// History is the append-only log of intercepted calls.
type History = core.History

// Interceptor is the interception layer as the engine sees it.
type Interceptor = core.Interceptor

// Invocation is the handle a delegate receives.
type Invocation = core.Invocation

// Ledger is the set of expectations built by one recording block.
type Ledger = core.Ledger

// Matcher defines the interface for flexible value matching.
type Matcher = core.Matcher

// Option configures an Engine.
type Option = core.Option

// Outcome is the resolved result of a dispatched call.
type Outcome = core.Outcome

// OutcomeKind selects what a shim does with an Outcome.
type OutcomeKind = core.OutcomeKind

// Recorder is handed to a recording block.
type Recorder = core.Recorder

// Signature identifies a method by name and shape.
type Signature = core.Signature

// Target identifies what an expectation applies to.
type Target = core.Target

// TestReporter is the minimal interface imprint needs from test frameworks.
type TestReporter = core.TestReporter

// UsageError reports a mistake in the test itself.
type UsageError = core.UsageError

// Verifier is handed to a verification block.
type Verifier = core.Verifier

// VerifyMode selects how a verification block is checked.
type VerifyMode = core.VerifyMode

// Outcome kinds, verification modes, and bounds re-exported from internal/core.
const (
	OutcomeReturn  = core.OutcomeReturn
	OutcomePanic   = core.OutcomePanic
	OutcomeProceed = core.OutcomeProceed
	OutcomeFail    = core.OutcomeFail

	Unordered     = core.Unordered
	FullUnordered = core.FullUnordered
	Ordered       = core.Ordered
	FullOrdered   = core.FullOrdered

	Unbounded = core.Unbounded
)

// Failure kinds re-exported from internal/core.
var (
	ErrUnexpectedInvocation = core.ErrUnexpectedInvocation
	ErrOutOfOrder           = core.ErrOutOfOrder
	ErrMissingInvocation    = core.ErrMissingInvocation
	ErrTooManyInvocations   = core.ErrTooManyInvocations
	ErrUnverifiedInvocation = core.ErrUnverifiedInvocation
	ErrWrongGoroutine       = core.ErrWrongGoroutine
	ErrUsage                = core.ErrUsage
)

// AnyInstance targets every value of typ.
func AnyInstance(typ reflect.Type) Target {
	return core.AnyInstance(typ)
}

// AnyInstanceOf targets every value of T.
func AnyInstanceOf[T any]() Target {
	return core.AnyInstanceOf[T]()
}

// ConstructorSignature describes a constructor for typ.
func ConstructorSignature(typ reflect.Type, fn any) Signature {
	return core.ConstructorSignature(typ, fn)
}

// FuncSignature describes a receiver-less function.
func FuncSignature(name string, fn any) Signature {
	return core.FuncSignature(name, fn)
}

// Instance targets one specific mock value.
func Instance(ref any) Target {
	return core.Instance(ref)
}

// MatchValue checks if actual matches expected.
func MatchValue(actual, expected any) (bool, string) {
	return core.MatchValue(actual, expected)
}

// SignatureOf looks up name in the method set of typ.
func SignatureOf(typ reflect.Type, name string) (Signature, bool) {
	return core.SignatureOf(typ, name)
}

// Static targets receiver-less calls attributed to T.
func Static[T any]() Target {
	return core.Static[T]()
}

// StaticOn targets receiver-less calls attributed to typ.
func StaticOn(typ reflect.Type) Target {
	return core.StaticOn(typ)
}
