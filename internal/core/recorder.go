package core

import (
	"go.uber.org/zap"
)

// Recorder is handed to a recording block. Each On call (or intercepted call on the
// recording goroutine) adds an expectation; configuration methods on the returned
// *Expectation apply to it.
type Recorder struct {
	engine  *Engine
	ledger  *Ledger
	block   *block
	last    *Expectation
	stopped bool
}

// Iterations declares that the recorded sequence recurs n times. Bounds of every
// record are multiplied by n; a strict ledger replays its sequence n times.
func (r *Recorder) Iterations(n int) {
	r.checkOpen("Iterations")

	if n < 1 {
		usagePanic("Iterations(%d): at least one iteration is required", n)
	}

	if len(r.ledger.records) > 0 {
		usagePanic("Iterations(%d) must be declared before the first expectation, %d already recorded",
			n, len(r.ledger.records))
	}

	r.ledger.iterations = n
}

// Last returns the most recently recorded expectation, so calls recorded through
// a mock can be configured.
func (r *Recorder) Last() *Expectation {
	r.checkOpen("Last")

	if r.last == nil {
		usagePanic("no expectation recorded yet")
	}

	return r.last
}

// On records an expected call of method on target. target is a Target, or a mock
// value standing for Instance(target).
func (r *Recorder) On(target any, method string, args ...any) *Expectation {
	r.checkOpen("On")

	resolved := toTarget(target)

	sig, ok := SignatureOf(resolved.Type, method)
	if !ok {
		usagePanic("%v has no method %q", resolved.Type, method)
	}

	return r.add(resolved, sig, args)
}

// OnSignature records an expected call described by sig, for receiver-less
// functions and constructors.
func (r *Recorder) OnSignature(target any, sig Signature, args ...any) *Expectation {
	r.checkOpen("OnSignature")

	if sig.Func == nil {
		usagePanic("signature %q has no function type", sig.Name)
	}

	return r.add(toTarget(target), sig, args)
}

// StopRecording freezes the ledger. Calls made later in the same block are
// replayed against it instead of recorded.
func (r *Recorder) StopRecording() {
	r.checkOpen("StopRecording")
	r.engine.finishRecording(r, true)
}

func (r *Recorder) add(target Target, sig Signature, args []any) *Expectation {
	rec := &Expectation{
		Target:    target,
		Signature: sig,
		owner:     r.ledger,
		block:     r.block,
		seq:       r.engine.nextSeq(),
	}

	if r.ledger.strict {
		rec.min, rec.max = 1, 1
	} else {
		rec.min, rec.max = 0, Unbounded
	}

	rec.args = buildArgList(sig, args, r.engine.tolerance)
	r.ledger.records = append(r.ledger.records, rec)
	r.last = rec

	r.engine.logger.Debug("recorded expectation",
		zap.Stringer("expectation", rec),
		zap.Bool("strict", r.ledger.strict))

	return rec
}

func (r *Recorder) checkOpen(op string) {
	if !r.block.isOpen() {
		usagePanic("%s used outside a recording block", op)
	}
}

// intercept records a live call made on the recording goroutine. Called with the
// engine lock held.
func (r *Recorder) intercept(call *Call) (outcome Outcome) {
	defer func() {
		if recovered := recover(); recovered != nil {
			usage, ok := recovered.(*UsageError)
			if !ok {
				panic(recovered)
			}

			outcome = Outcome{Kind: OutcomeFail, Err: usage}
		}
	}()

	var target Target
	if call.Target != nil {
		target = Instance(call.Target)
	} else {
		target = StaticOn(call.Static)
	}

	r.add(target, call.Signature, call.Args)

	return r.engine.fallback(call)
}

func toTarget(target any) Target {
	resolved, ok := target.(Target)
	if !ok {
		resolved = Instance(target)
	}

	if !resolved.valid() {
		usagePanic("nil mock target")
	}

	return resolved
}
