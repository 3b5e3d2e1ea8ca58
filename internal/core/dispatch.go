package core

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Dispatch resolves one intercepted call. The interception layer calls it exactly
// once per call, on the calling goroutine, before any real body runs.
//
// A call made on a goroutine that is inside a recording block is recorded rather
// than replayed. Otherwise the call is logged to the history and resolved against
// the ledgers: strict ledgers fail fast on order violations, non-strict ledgers
// pick the most specific matching expectation, and unmatched calls get cascaded
// substitutes or default values.
func (e *Engine) Dispatch(call Call) Outcome {
	goroutine := call.Goroutine
	if goroutine == 0 {
		goroutine = currentGoroutine()
	}

	e.mu.Lock()

	if rec, ok := e.recording[goroutine]; ok {
		outcome := rec.intercept(&call)
		e.mu.Unlock()

		return outcome
	}

	selected, err := e.selectLocked(&call, goroutine)
	event := e.history.append(&call, goroutine, selected)

	if err != nil {
		e.failures = append(e.failures, err)
		e.mu.Unlock()

		e.logger.Debug("dispatch failed",
			zap.Int64("order", event.Order),
			zap.String("call", describeCall(&call)),
			zap.Error(err))

		return Outcome{Kind: OutcomeFail, Err: err}
	}

	if selected == nil {
		e.mu.Unlock()

		e.logger.Debug("dispatch unmatched",
			zap.Int64("order", event.Order),
			zap.String("call", describeCall(&call)))

		return e.fallback(&call)
	}

	selected.count++
	selected.iterCount++
	res, hasResult := selected.popResult()
	count := selected.count
	e.mu.Unlock()

	e.logger.Debug("dispatch matched",
		zap.Int64("order", event.Order),
		zap.String("call", describeCall(&call)),
		zap.Stringer("expectation", selected),
		zap.Int("count", count))

	if !hasResult {
		return e.fallback(&call)
	}

	return e.resolve(res, &call, count)
}

// fallback builds the outcome for a call no expectation supplies a result for:
// the first mockable result is cascaded, everything else gets default values.
func (e *Engine) fallback(call *Call) Outcome {
	values := defaultValues(call.Signature)

	if e.interceptor == nil {
		return Outcome{Kind: OutcomeReturn, Values: values}
	}

	for index := range call.Signature.NumOut() {
		typ := call.Signature.Out(index)
		if !e.interceptor.Mockable(typ) {
			continue
		}

		value, created := e.cascades.resolve(e.interceptor, call, typ)
		values[index] = value

		e.logger.Debug("cascaded",
			zap.String("call", describeCall(call)),
			zap.Stringer("type", typ),
			zap.Bool("created", created))

		break
	}

	return Outcome{Kind: OutcomeReturn, Values: values}
}

// governingLedger returns the most recently declared ledger covering the call's
// target, or nil when no ledger mentions it.
func (e *Engine) governingLedger(call *Call) *Ledger {
	for index := len(e.ledgers) - 1; index >= 0; index-- {
		if e.ledgers[index].covers(call) {
			return e.ledgers[index]
		}
	}

	return nil
}

// matchNonStrict picks, across every non-strict ledger, the matching expectation
// with capacity and the highest total argument specificity. Ties go to the one
// declared first. When only exhausted expectations match, the first of them is
// returned as exhausted so the caller can charge the overflow.
func (e *Engine) matchNonStrict(call *Call) (best, exhausted *Expectation) {
	bestRank := 0

	for _, ledger := range e.ledgers {
		if ledger.strict {
			continue
		}

		for _, rec := range ledger.records {
			if ok, _ := rec.accepts(call); !ok {
				continue
			}

			if !rec.hasCapacity(ledger.iterations) {
				if exhausted == nil {
					exhausted = rec
				}

				continue
			}

			rank := rec.specificity()
			if best == nil || rank > bestRank || (rank == bestRank && rec.seq < best.seq) {
				best, bestRank = rec, rank
			}
		}
	}

	return best, exhausted
}

// matchStrict walks the ledger from its cursor. The record at the cursor takes
// the call if it matches and has room; a record whose minimum is met may be
// passed over; a record still short of its minimum makes any other call a failure.
func (e *Engine) matchStrict(ledger *Ledger, call *Call, goroutine int64) (*Expectation, error) {
	if goroutine != ledger.goroutine {
		return nil, &Failure{
			Kind:      ErrWrongGoroutine,
			Signature: call.Signature.String(),
			Expected:  fmt.Sprintf("calls on goroutine %d", ledger.goroutine),
			Actual:    fmt.Sprintf("%s on goroutine %d", describeCall(call), goroutine),
		}
	}

	for {
		if ledger.cursor >= len(ledger.records) {
			if ledger.iteration+1 >= ledger.iterations || len(ledger.records) == 0 {
				return nil, strictLeftover(ledger, call)
			}

			ledger.iteration++
			ledger.cursor = 0

			for _, rec := range ledger.records {
				rec.iterCount = 0
			}
		}

		rec := ledger.records[ledger.cursor]

		ok, _ := rec.accepts(call)
		if ok && (rec.max == Unbounded || rec.iterCount < rec.max) {
			return rec, nil
		}

		if rec.iterCount >= rec.min {
			ledger.cursor++

			continue
		}

		return nil, strictMismatch(ledger, rec, call)
	}
}

// resolve turns a queued result into an outcome. Delegates run here, outside the
// engine lock.
func (e *Engine) resolve(res result, call *Call, count int) Outcome {
	switch res.kind {
	case resultPanic:
		return Outcome{Kind: OutcomePanic, Panic: res.panicVal}
	case resultProceed:
		return Outcome{Kind: OutcomeProceed, Args: call.Args}
	case resultDelegate:
		inv := &Invocation{
			Target:    call.Target,
			Signature: call.Signature,
			Args:      append([]any(nil), call.Args...),
			Count:     count,
			real:      call.Real,
		}

		values := res.delegate(inv)
		if len(values) != call.Signature.NumOut() {
			err := &UsageError{Reason: fmt.Sprintf("delegate for %s returned %d values, want %d",
				call.Signature, len(values), call.Signature.NumOut())}

			e.mu.Lock()
			e.failures = append(e.failures, err)
			e.mu.Unlock()

			return Outcome{Kind: OutcomeFail, Err: err}
		}

		return Outcome{Kind: OutcomeReturn, Values: values}
	default:
		return Outcome{Kind: OutcomeReturn, Values: append([]any(nil), res.values...)}
	}
}

// selectLocked finds the expectation a replayed call satisfies. The most recent
// ledger covering the target decides between strict and non-strict handling. A
// strict ledger that expects nothing like the call still lets a non-strict
// expectation claim it before reporting it as unexpected, and a call no
// non-strict expectation takes goes to the latest strict ledger expecting it.
func (e *Engine) selectLocked(call *Call, goroutine int64) (*Expectation, error) {
	ledger := e.governingLedger(call)
	if ledger == nil || !ledger.strict {
		best, exhausted := e.matchNonStrict(call)
		if best != nil {
			return best, nil
		}

		if strict := e.strictLedgerAccepting(call); strict != nil {
			return e.tryStrict(strict, call, goroutine)
		}

		if exhausted != nil {
			exhausted.overflow++
		}

		return nil, nil
	}

	rec, err := e.tryStrict(ledger, call, goroutine)
	if err == nil {
		return rec, nil
	}

	if errors.Is(err, ErrUnexpectedInvocation) {
		if alternative, _ := e.matchNonStrict(call); alternative != nil {
			return alternative, nil
		}
	}

	return nil, err
}

// strictLedgerAccepting returns the most recently declared strict ledger with a
// record accepting call, or nil.
func (e *Engine) strictLedgerAccepting(call *Call) *Ledger {
	for index := len(e.ledgers) - 1; index >= 0; index-- {
		if ledger := e.ledgers[index]; ledger.strict && ledger.firstAccepting(call) >= 0 {
			return ledger
		}
	}

	return nil
}

// tryStrict runs the strict cursor walk, leaving the ledger untouched on failure.
func (e *Engine) tryStrict(ledger *Ledger, call *Call, goroutine int64) (*Expectation, error) {
	position := ledger.position()

	rec, err := e.matchStrict(ledger, call, goroutine)
	if err != nil {
		ledger.restore(position)
	}

	return rec, err
}

// strictLeftover reports a call arriving after every strict record is done.
func strictLeftover(ledger *Ledger, call *Call) error {
	if index := ledger.firstAccepting(call); index >= 0 {
		failure := ledger.records[index].failure(ErrTooManyInvocations, describeCall(call))
		failure.Actual = fmt.Sprintf("%s, expected %s", describeCall(call),
			boundsFor(ledger.records[index], ledger.iterations))

		return failure
	}

	return &Failure{
		Kind:      ErrUnexpectedInvocation,
		Signature: call.Signature.String(),
		Expected:  "no further invocations",
		Actual:    describeCall(call),
	}
}

// strictMismatch reports a call that doesn't satisfy the record at the cursor.
func strictMismatch(ledger *Ledger, expected *Expectation, call *Call) error {
	index := ledger.firstAccepting(call)

	switch {
	case index < 0:
		failure := expected.failure(ErrUnexpectedInvocation, describeCall(call))
		failure.Signature = call.Signature.String()

		return failure
	case index < ledger.cursor && ledger.records[index].exhaustedInIteration():
		found := ledger.records[index]

		return found.failure(ErrTooManyInvocations,
			fmt.Sprintf("%s, expected %s", describeCall(call), boundsFor(found, ledger.iterations)))
	default:
		failure := expected.failure(ErrOutOfOrder, describeCall(call))
		failure.ExpectedPosition = ledger.cursor + 1
		failure.FoundPosition = index + 1

		return failure
	}
}
