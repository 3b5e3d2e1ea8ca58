package core

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// Outcome kinds.
const (
	OutcomeReturn OutcomeKind = iota
	OutcomePanic
	OutcomeProceed
	OutcomeFail
)

// Call is one intercepted live call, as handed to Dispatch by the interception layer.
type Call struct {
	// Target is the receiver. It is nil for receiver-less calls, which set Static instead.
	Target    any
	Static    reflect.Type
	Signature Signature
	// Args follow the CallSlice convention: a variadic tail is one slice value.
	Args []any
	// Goroutine overrides the detected goroutine id when non-zero.
	Goroutine int64
	// Real runs the non-intercepted body. It may be nil when there is none.
	Real func(args []any) []any
}

// Invocation is the handle a delegate receives. Proceed runs the real body at
// most once.
type Invocation struct {
	Target    any
	Signature Signature
	Args      []any
	// Count is how many times the expectation has matched, this call included.
	Count int

	real    func([]any) []any
	proceed atomic.Bool
}

// Proceed runs the non-intercepted implementation with args, or with the
// original arguments when none are given.
func (inv *Invocation) Proceed(args ...any) []any {
	if inv.real == nil {
		usagePanic("%s has no real implementation to proceed to", inv.Signature)
	}

	if !inv.proceed.CompareAndSwap(false, true) {
		usagePanic("%s: Proceed called more than once", inv.Signature)
	}

	if len(args) == 0 {
		args = inv.Args
	}

	return inv.real(args)
}

// Outcome is the resolved result of a dispatched call.
type Outcome struct {
	Kind   OutcomeKind
	Values []any
	Panic  any
	// Args are the arguments to run the real body with, for OutcomeProceed.
	Args []any
	Err  error
}

// Apply converts the outcome into result values, panicking for panic and
// failure outcomes. body runs the non-intercepted implementation for OutcomeProceed.
func (o Outcome) Apply(body func([]any) []any) []any {
	switch o.Kind {
	case OutcomeReturn:
		return o.Values
	case OutcomePanic:
		panic(o.Panic)
	case OutcomeFail:
		panic(o.Err)
	case OutcomeProceed:
		if body == nil {
			panic(&UsageError{Reason: "proceed outcome with no real implementation"})
		}

		return body(o.Args)
	default:
		panic(fmt.Sprintf("imprint failure - unrecognized outcome kind %d", o.Kind))
	}
}

// OutcomeKind selects what a shim does with an Outcome.
type OutcomeKind int

// result kinds in an expectation's queue.
const (
	resultReturn resultKind = iota
	resultPanic
	resultDelegate
	resultProceed
)

type result struct {
	kind     resultKind
	values   []any
	panicVal any
	delegate func(*Invocation) []any
}

type resultKind int

// defaultValues returns zero values for each result of sig. Slices and maps come
// back empty rather than nil.
func defaultValues(sig Signature) []any {
	values := make([]any, 0, sig.NumOut())
	for i := range sig.NumOut() {
		values = append(values, zeroValue(sig.Out(i)))
	}

	return values
}

func zeroValue(typ reflect.Type) any {
	switch typ.Kind() {
	case reflect.Slice:
		return reflect.MakeSlice(typ, 0, 0).Interface()
	case reflect.Map:
		return reflect.MakeMap(typ).Interface()
	default:
		return reflect.Zero(typ).Interface()
	}
}
