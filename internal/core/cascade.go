package core

import (
	"reflect"
	"sync"

	"github.com/toejough/imprint/match"
)

// Interceptor is the interception layer as the engine sees it: it knows which
// types it can substitute and builds substitutes for cascading.
type Interceptor interface {
	Mockable(typ reflect.Type) bool
	Substitute(typ reflect.Type) any
}

// cascadeArena caches cascaded substitutes by the call path that produced them.
// Substitutes hold no reference back to their creators; a deeper cascade is just
// another entry keyed by its own call.
type cascadeArena struct {
	mu      sync.Mutex
	entries map[cascadeKey][]cascadeEntry
}

func (a *cascadeArena) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := 0
	for _, entries := range a.entries {
		total += len(entries)
	}

	return total
}

func (a *cascadeArena) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = nil
}

// resolve returns the substitute for result typ of call, creating it on first use.
// Arguments only take part in the key when the method has parameters.
func (a *cascadeArena) resolve(interceptor Interceptor, call *Call, typ reflect.Type) (any, bool) {
	key := cascadeKey{
		result: typ,
		parent: parentIdentity(call),
		method: call.Signature.Name,
		fn:     call.Signature.Func,
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, entry := range a.entries[key] {
		if sameArgs(entry.args, call.Args) {
			return entry.value, false
		}
	}

	value := interceptor.Substitute(typ)

	if a.entries == nil {
		a.entries = make(map[cascadeKey][]cascadeEntry)
	}

	a.entries[key] = append(a.entries[key], cascadeEntry{
		args:  append([]any(nil), call.Args...),
		value: value,
	})

	return value, true
}

type cascadeEntry struct {
	args  []any
	value any
}

type cascadeKey struct {
	result reflect.Type
	parent any
	method string
	fn     reflect.Type
}

// parentIdentity returns a comparable identity for the call's receiver.
func parentIdentity(call *Call) any {
	if call.Target == nil {
		return call.Static
	}

	if reflect.TypeOf(call.Target).Comparable() {
		return call.Target
	}

	return instanceLabel(call.Target)
}

// sameArgs compares argument lists, treating nil and empty lists alike.
func sameArgs(left, right []any) bool {
	if len(left) != len(right) {
		return false
	}

	return len(left) == 0 || match.Equivalent(left, right, 0)
}
