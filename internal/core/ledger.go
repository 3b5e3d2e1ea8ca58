package core

import (
	"sync/atomic"
)

// Ledger is the ordered set of expectations built by one recording block.
type Ledger struct {
	records    []*Expectation
	strict     bool
	iterations int
	goroutine  int64
	frozen     bool

	// strict replay position, guarded by the engine lock
	cursor    int
	iteration int
}

// Iterations returns how many times the recorded sequence is expected to recur.
func (l *Ledger) Iterations() int {
	return l.iterations
}

// Records returns the expectations in declaration order.
func (l *Ledger) Records() []*Expectation {
	return append([]*Expectation(nil), l.records...)
}

// Strict reports whether the ledger's expectations must be met in order.
func (l *Ledger) Strict() bool {
	return l.strict
}

func (l *Ledger) position() ledgerPosition {
	counts := make([]int, len(l.records))
	for index, rec := range l.records {
		counts[index] = rec.iterCount
	}

	return ledgerPosition{cursor: l.cursor, iteration: l.iteration, iterCounts: counts}
}

func (l *Ledger) restore(position ledgerPosition) {
	l.cursor = position.cursor
	l.iteration = position.iteration

	for index, rec := range l.records {
		rec.iterCount = position.iterCounts[index]
	}
}

func (l *Ledger) covers(call *Call) bool {
	for _, rec := range l.records {
		if rec.Target.Covers(call.Target, call.Static) {
			return true
		}
	}

	return false
}

// firstAccepting returns the index of the first record whose target, method, and
// matchers accept call, or -1.
func (l *Ledger) firstAccepting(call *Call) int {
	for index, rec := range l.records {
		if ok, _ := rec.accepts(call); ok {
			return index
		}
	}

	return -1
}

// ledgerPosition is a saved strict replay position.
type ledgerPosition struct {
	cursor     int
	iteration  int
	iterCounts []int
}

// block tracks whether a recording or verification block is still accepting
// declarations.
type block struct {
	engine *Engine
	open   atomic.Bool
}

func (b *block) isOpen() bool {
	return b != nil && b.open.Load()
}
