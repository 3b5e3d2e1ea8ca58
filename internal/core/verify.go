package core

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Verification modes.
const (
	// Unordered checks per-expectation counts against the whole history.
	Unordered VerifyMode = iota
	// FullUnordered is Unordered, and every call on a verified target must be accounted for.
	FullUnordered
	// Ordered checks that the declared calls happened in sequence, adjacent unless
	// separated by SkipUnverified.
	Ordered
	// FullOrdered is Ordered over every call on the verified targets, not just
	// the declared methods.
	FullOrdered
)

// Verifier is handed to a verification block.
type Verifier struct {
	engine *Engine
	mode   VerifyMode
	block  *block
	items  []verifyItem
}

// Call declares an expected call of method on target. target is a Target, or a mock
// value standing for Instance(target).
func (v *Verifier) Call(target any, method string, args ...any) *Expectation {
	v.checkOpen("Call")

	resolved := toTarget(target)

	sig, ok := SignatureOf(resolved.Type, method)
	if !ok {
		usagePanic("%v has no method %q", resolved.Type, method)
	}

	return v.add(resolved, sig, args)
}

// CallSignature declares an expected call described by sig.
func (v *Verifier) CallSignature(target any, sig Signature, args ...any) *Expectation {
	v.checkOpen("CallSignature")

	if sig.Func == nil {
		usagePanic("signature %q has no function type", sig.Name)
	}

	return v.add(toTarget(target), sig, args)
}

// SkipUnverified lets any number of calls pass between the expectations declared
// before and after it. Only valid in ordered modes.
func (v *Verifier) SkipUnverified() {
	v.checkOpen("SkipUnverified")

	if v.mode != Ordered && v.mode != FullOrdered {
		usagePanic("SkipUnverified is only valid in an ordered verification")
	}

	v.items = append(v.items, verifyItem{skip: true})
}

func (v *Verifier) add(target Target, sig Signature, args []any) *Expectation {
	rec := &Expectation{
		Target:    target,
		Signature: sig,
		verifying: true,
		block:     v.block,
		seq:       v.engine.nextSeq(),
		min:       1,
		max:       1,
	}

	if v.mode == Unordered {
		rec.max = Unbounded
	}

	rec.args = buildArgList(sig, args, v.engine.tolerance)
	v.items = append(v.items, verifyItem{record: rec})

	return rec
}

func (v *Verifier) checkOpen(op string) {
	if !v.block.isOpen() {
		usagePanic("%s used outside a verification block", op)
	}
}

func (v *Verifier) records() []*Expectation {
	records := make([]*Expectation, 0, len(v.items))
	for _, item := range v.items {
		if item.record != nil {
			records = append(records, item.record)
		}
	}

	return records
}

// relevant filters the history down to the calls the verification speaks about.
// Full modes take every call on a declared target, except calls a strict
// expectation already consumed; other modes take calls of declared methods.
func (v *Verifier) relevant(events []Event) []Event {
	records := v.records()
	full := v.mode == FullUnordered || v.mode == FullOrdered

	var kept []Event

	for _, ev := range events {
		if full && ev.ClaimedByStrict() {
			continue
		}

		for _, rec := range records {
			if !rec.Target.Covers(ev.Target, ev.Static) {
				continue
			}

			if full || rec.Signature.Same(ev.Signature) {
				kept = append(kept, ev)

				break
			}
		}
	}

	return kept
}

// VerifyMode selects how a verification block is checked.
type VerifyMode int

func (m VerifyMode) String() string {
	switch m {
	case Unordered:
		return "unordered"
	case FullUnordered:
		return "full unordered"
	case Ordered:
		return "ordered"
	case FullOrdered:
		return "full ordered"
	default:
		return fmt.Sprintf("VerifyMode(%d)", int(m))
	}
}

// Verify runs a verification block against the history recorded so far and
// returns the failures found once the block has finished declaring. It never
// intercepts calls.
func (e *Engine) Verify(mode VerifyMode, declare func(*Verifier)) error {
	verifier := &Verifier{engine: e, mode: mode, block: &block{engine: e}}

	if err := verifier.declare(declare); err != nil {
		return err
	}

	events := verifier.relevant(e.history.Events())

	var err error

	switch mode {
	case Unordered, FullUnordered:
		err = verifyUnordered(verifier.records(), events, mode == FullUnordered)
	case Ordered, FullOrdered:
		err = verifyOrdered(verifier.items, events)
	default:
		err = &UsageError{Reason: fmt.Sprintf("unknown verification mode %v", mode)}
	}

	e.logger.Debug("verified",
		zap.Stringer("mode", mode),
		zap.Int("declared", len(verifier.items)),
		zap.Int("events", len(events)),
		zap.Error(err))

	return err
}

func (v *Verifier) declare(declare func(*Verifier)) (err error) {
	v.block.open.Store(true)
	defer v.block.open.Store(false)
	defer recoverUsage(&err)

	declare(v)

	return nil
}

type verifyItem struct {
	record *Expectation
	skip   bool
}

// orderedMatcher matches the declared sequence against the relevant events like
// a pattern: each record consumes a run of adjacent matching events within its
// bounds, skip markers consume anything, and both ends are anchored.
type orderedMatcher struct {
	items   []verifyItem
	events  []Event
	accepts [][]bool
	failed  map[[2]int]bool
	runs    []run

	deepestItem int
	deepestPos  int
}

func (m *orderedMatcher) match(item, pos int) bool {
	if m.failed[[2]int{item, pos}] {
		return false
	}

	if m.tryMatch(item, pos) {
		return true
	}

	m.failed[[2]int{item, pos}] = true

	return false
}

func (m *orderedMatcher) note(item, pos int) {
	if item > m.deepestItem || (item == m.deepestItem && pos > m.deepestPos) {
		m.deepestItem, m.deepestPos = item, pos
	}
}

func (m *orderedMatcher) tryMatch(item, pos int) bool {
	if item == len(m.items) {
		if pos == len(m.events) {
			return true
		}

		m.note(item, pos)

		return false
	}

	current := m.items[item]
	if current.skip {
		for next := pos; next <= len(m.events); next++ {
			if m.match(item+1, next) {
				return true
			}
		}

		return false
	}

	rec := current.record

	available := 0
	for pos+available < len(m.events) && m.accepts[item][pos+available] &&
		(rec.max == Unbounded || available < rec.max) {
		available++
	}

	if available < rec.min {
		m.note(item, pos)

		return false
	}

	for taken := available; taken >= rec.min; taken-- {
		if m.match(item+1, pos+taken) {
			m.runs[item] = run{start: pos, length: taken}

			return true
		}
	}

	return false
}

// diagnose explains the deepest point the match reached.
func (m *orderedMatcher) diagnose() error {
	item, pos := m.deepestItem, m.deepestPos

	if item == len(m.items) {
		ev := m.events[pos]

		return &Failure{
			Kind:          ErrUnexpectedInvocation,
			Signature:     ev.Signature.String(),
			Expected:      "no further invocations after the last verified one",
			Actual:        ev.String(),
			FoundPosition: int(ev.Order),
		}
	}

	rec := m.items[item].record

	found := -1

	for index := range m.events {
		if m.accepts[item][index] {
			found = index

			break
		}
	}

	expectedPosition := 0
	if pos < len(m.events) {
		expectedPosition = int(m.events[pos].Order)
	} else if len(m.events) > 0 {
		expectedPosition = int(m.events[len(m.events)-1].Order) + 1
	}

	switch {
	case found < 0:
		return rec.failure(ErrMissingInvocation,
			fmt.Sprintf("no matching invocation, expected %s", rec.describeBounds()))
	case found < pos:
		failure := rec.failure(ErrOutOfOrder, m.events[found].String())
		failure.ExpectedPosition = expectedPosition
		failure.FoundPosition = int(m.events[found].Order)

		return failure
	case found == pos:
		return rec.failure(ErrMissingInvocation,
			fmt.Sprintf("too few adjacent invocations starting at %s, expected %s",
				m.events[found].String(), rec.describeBounds()))
	default:
		kind := ErrUnexpectedInvocation
		if m.declaredAfter(item, pos) {
			kind = ErrOutOfOrder
		}

		failure := rec.failure(kind, m.events[pos].String())
		failure.ExpectedPosition = expectedPosition
		failure.FoundPosition = int(m.events[found].Order)

		return failure
	}
}

// declaredAfter reports whether a record declared after item accepts the event at pos.
func (m *orderedMatcher) declaredAfter(item, pos int) bool {
	for later := item + 1; later < len(m.items); later++ {
		if !m.items[later].skip && m.accepts[later][pos] {
			return true
		}
	}

	return false
}

type run struct {
	start  int
	length int
}

func verifyOrdered(items []verifyItem, events []Event) error {
	matcher := &orderedMatcher{
		items:   items,
		events:  events,
		accepts: make([][]bool, len(items)),
		failed:  make(map[[2]int]bool),
		runs:    make([]run, len(items)),
	}

	for index, item := range items {
		if item.skip {
			continue
		}

		matcher.accepts[index] = make([]bool, len(events))
		for pos, ev := range events {
			matcher.accepts[index][pos], _ = item.record.accepts(ev.call())
		}
	}

	if !matcher.match(0, 0) {
		return matcher.diagnose()
	}

	for index, item := range items {
		if item.skip {
			continue
		}

		matched := events[matcher.runs[index].start : matcher.runs[index].start+matcher.runs[index].length]
		item.record.count = len(matched)
		bindCaptures(item.record, matched)
	}

	return nil
}

func verifyUnordered(records []*Expectation, events []Event, full bool) error {
	var errs []error

	verified := make([]bool, len(events))

	for _, rec := range records {
		var matched []Event

		for index, ev := range events {
			if ok, _ := rec.accepts(ev.call()); ok {
				matched = append(matched, ev)
				verified[index] = true
			}
		}

		rec.count = len(matched)
		bindCaptures(rec, matched)

		switch {
		case len(matched) < rec.min:
			errs = append(errs, rec.failure(ErrMissingInvocation,
				fmt.Sprintf("%d invocations, expected %s", len(matched), rec.describeBounds())))
		case rec.max != Unbounded && len(matched) > rec.max:
			errs = append(errs, rec.failure(ErrTooManyInvocations,
				fmt.Sprintf("%d invocations, expected %s", len(matched), rec.describeBounds())))
		}
	}

	if full {
		for index, ev := range events {
			if verified[index] {
				continue
			}

			errs = append(errs, &Failure{
				Kind:          ErrUnverifiedInvocation,
				Signature:     ev.Signature.String(),
				Actual:        ev.String(),
				FoundPosition: int(ev.Order),
			})
		}
	}

	return errors.Join(errs...)
}

func bindCaptures(rec *Expectation, matched []Event) {
	for _, capture := range rec.captures {
		if !capture.accumulate {
			if len(matched) > 0 {
				capture.bind(matched[len(matched)-1].Args)
			}

			continue
		}

		for _, ev := range matched {
			capture.bind(ev.Args)
		}
	}
}
