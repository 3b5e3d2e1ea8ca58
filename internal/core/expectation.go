package core

import (
	"fmt"
	"reflect"
)

// Unbounded is the MaxTimes value meaning "no upper limit".
const Unbounded = -1

// Expectation is one expected call, recorded in a recording block or declared in
// a verification block. Configuration methods mutate it and return it for chaining;
// they are only valid while the declaring block is open.
type Expectation struct {
	Target    Target
	Signature Signature

	args        argList
	min, max    int
	explicitMin bool
	explicitMax bool
	message     string
	results     []result
	captures    []capture
	verifying   bool

	// owner is the ledger that created the record, used for order lookups only.
	owner *Ledger
	block *block
	seq   uint64

	// replay bookkeeping, guarded by the engine lock
	nextResult int
	count      int
	iterCount  int
	overflow   int
}

// CallsReal makes a matching call run the real implementation.
func (x *Expectation) CallsReal() *Expectation {
	x.checkRecording("CallsReal")
	x.results = append(x.results, result{kind: resultProceed})

	return x
}

// Capture binds argument index of matching calls into into. A *T receives the
// last match; a *[]T receives every match, in history order.
func (x *Expectation) Capture(index int, into any) *Expectation {
	x.checkOpen("Capture")

	if !x.verifying {
		usagePanic("Capture is only valid in a verification block")
	}

	if index < 0 || index >= x.Signature.NumIn() {
		usagePanic("%s has no arg %d to capture", x.Signature, index)
	}

	dest := reflect.ValueOf(into)
	if !dest.IsValid() || dest.Kind() != reflect.Pointer || dest.IsNil() {
		usagePanic("Capture needs a non-nil pointer, got %T", into)
	}

	param := x.Signature.In(index)
	elem := dest.Elem()
	accumulate := elem.Kind() == reflect.Slice && !param.AssignableTo(elem.Type()) &&
		param.AssignableTo(elem.Type().Elem())

	if !accumulate && !param.AssignableTo(elem.Type()) {
		usagePanic("cannot capture %s arg %d (%v) into %T", x.Signature, index, param, into)
	}

	x.captures = append(x.captures, capture{index: index, dest: elem, accumulate: accumulate})

	return x
}

// Count returns how many calls the expectation has claimed so far.
func (x *Expectation) Count() int {
	x.block.engine.mu.Lock()
	defer x.block.engine.mu.Unlock()

	return x.count
}

// Delegates hands matching calls to fn, which returns the result values. fn runs
// outside the engine lock, so it may call other mocks.
func (x *Expectation) Delegates(fn func(*Invocation) []any) *Expectation {
	x.checkRecording("Delegates")

	if fn == nil {
		usagePanic("%s: nil delegate", x.Signature)
	}

	x.results = append(x.results, result{kind: resultDelegate, delegate: fn})

	return x
}

// MaxTimes sets the upper bound. Unbounded removes it.
func (x *Expectation) MaxTimes(n int) *Expectation {
	x.checkOpen("MaxTimes")

	if n < Unbounded {
		usagePanic("%s: MaxTimes(%d) is negative", x.Signature, n)
	}

	if n != Unbounded && x.explicitMin && x.min > n {
		usagePanic("%s: MaxTimes(%d) is below MinTimes(%d)", x.Signature, n, x.min)
	}

	x.max = n
	x.explicitMax = true

	if n != Unbounded && x.min > n {
		x.min = n
	}

	return x
}

// Message sets a prefix for every failure reported against this expectation.
func (x *Expectation) Message(msg string) *Expectation {
	x.checkOpen("Message")
	x.message = msg

	return x
}

// MinTimes sets the lower bound. Unless MaxTimes was set explicitly, the upper
// bound is lifted.
func (x *Expectation) MinTimes(n int) *Expectation {
	x.checkOpen("MinTimes")

	if n < 0 {
		usagePanic("%s: MinTimes(%d) is negative", x.Signature, n)
	}

	if x.explicitMax && x.max != Unbounded && n > x.max {
		usagePanic("%s: MinTimes(%d) is above MaxTimes(%d)", x.Signature, n, x.max)
	}

	x.min = n
	x.explicitMin = true

	if !x.explicitMax {
		x.max = Unbounded
	}

	return x
}

// Panics queues a panic with value as the outcome of a matching call.
func (x *Expectation) Panics(value any) *Expectation {
	x.checkRecording("Panics")
	x.results = append(x.results, result{kind: resultPanic, panicVal: value})

	return x
}

// Returns queues result values for one matching call. Chained calls queue more;
// once the queue is used up the last entry repeats.
func (x *Expectation) Returns(values ...any) *Expectation {
	x.checkRecording("Returns")

	if x.Signature.Constructor {
		usagePanic("cannot record a result for constructor %s", x.Signature)
	}

	if x.Signature.Void() {
		usagePanic("cannot record a result for void method %s", x.Signature)
	}

	if len(values) != x.Signature.NumOut() {
		usagePanic("%s returns %d values, %d recorded", x.Signature, x.Signature.NumOut(), len(values))
	}

	converted := make([]any, len(values))
	for index, value := range values {
		converted[index] = checkResult(x.Signature, index, value)
	}

	x.results = append(x.results, result{kind: resultReturn, values: converted})

	return x
}

func (x *Expectation) String() string {
	return fmt.Sprintf("%s on %s%s", x.Signature.Name, x.Target, x.args.describe())
}

// Times fixes both bounds to n.
func (x *Expectation) Times(n int) *Expectation {
	x.checkOpen("Times")

	if n < 0 {
		usagePanic("%s: Times(%d) is negative", x.Signature, n)
	}

	x.min, x.max = n, n
	x.explicitMin, x.explicitMax = true, true

	return x
}

// With replaces the recorded arguments with matchers (or literals).
func (x *Expectation) With(args ...any) *Expectation {
	x.checkOpen("With")
	x.args = buildArgList(x.Signature, args, x.block.engine.tolerance)

	return x
}

func (x *Expectation) accepts(call *Call) (bool, string) {
	if !x.Target.Covers(call.Target, call.Static) {
		return false, "different target"
	}

	if !x.Signature.Same(call.Signature) {
		return false, "different method"
	}

	return x.args.matches(call.Args)
}

func (x *Expectation) checkOpen(op string) {
	if !x.block.isOpen() {
		usagePanic("%s on %s used outside a recording or verification block", op, x.Signature)
	}
}

func (x *Expectation) checkRecording(op string) {
	x.checkOpen(op)

	if x.verifying {
		usagePanic("%s is not valid in a verification block", op)
	}
}

func (x *Expectation) describeBounds() string {
	if x.max == Unbounded {
		return fmt.Sprintf("at least %d", x.min)
	}

	if x.min == x.max {
		return fmt.Sprintf("exactly %d", x.min)
	}

	return fmt.Sprintf("between %d and %d", x.min, x.max)
}

func (x *Expectation) failure(kind error, actual string) *Failure {
	return &Failure{
		Kind:      kind,
		Signature: x.Signature.String(),
		Expected:  x.String(),
		Actual:    actual,
		Message:   x.message,
	}
}

// exhaustedInIteration reports whether a strict record has used up its maximum
// for the current iteration.
func (x *Expectation) exhaustedInIteration() bool {
	return x.max != Unbounded && x.iterCount >= x.max
}

// hasCapacity reports whether one more claim stays within max, for a total bound
// of max*iterations.
func (x *Expectation) hasCapacity(iterations int) bool {
	return x.max == Unbounded || x.count < x.max*iterations
}

// popResult pops the next queued result, repeating the last once exhausted.
func (x *Expectation) popResult() (result, bool) {
	if len(x.results) == 0 {
		return result{}, false
	}

	res := x.results[x.nextResult]
	if x.nextResult < len(x.results)-1 {
		x.nextResult++
	}

	return res, true
}

func (x *Expectation) specificity() int {
	return x.args.specificity()
}

type capture struct {
	index      int
	dest       reflect.Value
	accumulate bool
}

func (c capture) bind(args []any) {
	value := reflect.ValueOf(args[c.index])
	if !value.IsValid() {
		value = reflect.Zero(c.elemType())
	}

	if c.accumulate {
		c.dest.Set(reflect.Append(c.dest, value))

		return
	}

	c.dest.Set(value)
}

func (c capture) elemType() reflect.Type {
	if c.accumulate {
		return c.dest.Type().Elem()
	}

	return c.dest.Type()
}

func checkResult(sig Signature, index int, value any) any {
	out := sig.Out(index)

	if value == nil {
		switch out.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return nil
		default:
			usagePanic("%s result %d: nil is not a valid %v", sig, index, out)
		}
	}

	valueType := reflect.TypeOf(value)
	if valueType.AssignableTo(out) {
		return value
	}

	if out.Kind() != reflect.Interface && valueType.ConvertibleTo(out) && sameKindFamily(valueType, out) {
		return reflect.ValueOf(value).Convert(out).Interface()
	}

	usagePanic("%s result %d: %T is not assignable to %v", sig, index, value, out)

	return nil
}
