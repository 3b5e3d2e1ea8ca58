package core

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Event is one observed live call. Events are immutable once appended.
type Event struct {
	Order     int64
	Target    any
	Static    reflect.Type
	Signature Signature
	Args      []any
	Goroutine int64

	claimedBy *Expectation
}

// ClaimedByStrict reports whether a strict expectation consumed the call during replay.
func (ev Event) ClaimedByStrict() bool {
	return ev.claimedBy != nil && ev.claimedBy.owner != nil && ev.claimedBy.owner.strict
}

func (ev Event) String() string {
	owner := "static " + typeName(ev.Static)
	if ev.Target != nil {
		owner = fmt.Sprintf("%T@%s", ev.Target, instanceLabel(ev.Target))
	}

	return fmt.Sprintf("#%d %s on %s%s", ev.Order, ev.Signature.Name, owner, describeArgs(ev.Args))
}

func (ev Event) call() *Call {
	return &Call{
		Target:    ev.Target,
		Static:    ev.Static,
		Signature: ev.Signature,
		Args:      ev.Args,
		Goroutine: ev.Goroutine,
	}
}

// History is the append-only log of intercepted calls for one test unit. It is
// safe for concurrent writers.
type History struct {
	mu     sync.Mutex
	events []Event
	order  int64
}

// Events returns a snapshot of the log in order.
func (h *History) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Event(nil), h.events...)
}

// ForTarget returns the events aimed at target, in order.
func (h *History) ForTarget(target Target) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	var events []Event

	for _, ev := range h.events {
		if target.Covers(ev.Target, ev.Static) {
			events = append(events, ev)
		}
	}

	return events
}

// Len returns the number of events logged.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.events)
}

func (h *History) append(call *Call, goroutine int64, claimedBy *Expectation) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.order++

	ev := Event{
		Order:     h.order,
		Target:    call.Target,
		Static:    call.Static,
		Signature: call.Signature,
		Args:      append([]any(nil), call.Args...),
		Goroutine: goroutine,
		claimedBy: claimedBy,
	}
	h.events = append(h.events, ev)

	return ev
}

func (h *History) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = nil
	h.order = 0
}

func describeArgs(args []any) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, fmt.Sprintf("%#v", arg))
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

func describeCall(call *Call) string {
	owner := "static " + typeName(call.Static)
	if call.Target != nil {
		owner = fmt.Sprintf("%T@%s", call.Target, instanceLabel(call.Target))
	}

	return fmt.Sprintf("%s on %s%s", call.Signature.Name, owner, describeArgs(call.Args))
}

func typeName(typ reflect.Type) string {
	if typ == nil {
		return "<nil>"
	}

	return typ.String()
}
