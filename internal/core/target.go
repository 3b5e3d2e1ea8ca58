package core

import (
	"fmt"
	"reflect"
)

// Target modes. A target is exactly one of these.
const (
	TargetInstance TargetMode = iota
	TargetAnyInstance
	TargetStatic
)

// Target identifies what an expectation applies to: one mock value, every value of
// a type, or receiver-less calls attributed to a type.
type Target struct {
	Mode TargetMode
	Ref  any
	Type reflect.Type
}

// AnyInstance targets every value of typ. For interface types that means every
// value implementing it.
func AnyInstance(typ reflect.Type) Target {
	return Target{Mode: TargetAnyInstance, Type: typ}
}

// AnyInstanceOf targets every value of T.
func AnyInstanceOf[T any]() Target {
	return AnyInstance(reflect.TypeFor[T]())
}

// Instance targets one specific mock value.
func Instance(ref any) Target {
	target := Target{Mode: TargetInstance, Ref: ref}
	if ref != nil {
		target.Type = reflect.TypeOf(ref)
	}

	return target
}

// Static targets receiver-less calls (package functions, constructors) attributed to T.
func Static[T any]() Target {
	return StaticOn(reflect.TypeFor[T]())
}

// StaticOn targets receiver-less calls attributed to typ.
func StaticOn(typ reflect.Type) Target {
	return Target{Mode: TargetStatic, Type: typ}
}

// Covers reports whether a call on ref (or, for receiver-less calls, on static) is
// aimed at this target.
func (t Target) Covers(ref any, static reflect.Type) bool {
	switch t.Mode {
	case TargetInstance:
		return ref != nil && sameInstance(t.Ref, ref)
	case TargetAnyInstance:
		return ref != nil && typeMatches(t.Type, reflect.TypeOf(ref))
	case TargetStatic:
		return ref == nil && static != nil && typeMatches(t.Type, static)
	default:
		return false
	}
}

func (t Target) String() string {
	switch t.Mode {
	case TargetInstance:
		return fmt.Sprintf("%v@%s", t.Type, instanceLabel(t.Ref))
	case TargetAnyInstance:
		return fmt.Sprintf("any %v", t.Type)
	case TargetStatic:
		return fmt.Sprintf("static %v", t.Type)
	default:
		return "<invalid target>"
	}
}

// valid reports whether the target names something a call can be aimed at.
func (t Target) valid() bool {
	if t.Type == nil {
		return false
	}

	return t.Mode != TargetInstance || !isNilRef(t.Ref)
}

// TargetMode selects how a Target matches calls.
type TargetMode int

func instanceLabel(ref any) string {
	rv := reflect.ValueOf(ref)

	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Sprintf("%#x", rv.Pointer())
	default:
		return fmt.Sprintf("%v", ref)
	}
}

func isNilRef(ref any) bool {
	if ref == nil {
		return true
	}

	rv := reflect.ValueOf(ref)

	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	default:
		return false
	}
}

// sameInstance compares mock values by identity rather than by content.
func sameInstance(left, right any) bool {
	if reflect.TypeOf(left) != reflect.TypeOf(right) {
		return false
	}

	lv, rv := reflect.ValueOf(left), reflect.ValueOf(right)

	switch lv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return lv.Pointer() == rv.Pointer()
	default:
		if lv.Comparable() {
			return left == right
		}

		return false
	}
}

// typeMatches resolves a recorded type against the dynamic type of a call. Go has
// no subclassing, so the hierarchy is: identical type, interface implementation,
// or pointer to the recorded struct type.
func typeMatches(recorded, actual reflect.Type) bool {
	if recorded == nil || actual == nil {
		return false
	}

	if actual == recorded {
		return true
	}

	if recorded.Kind() == reflect.Interface && actual.Implements(recorded) {
		return true
	}

	return actual.Kind() == reflect.Pointer && actual.Elem() == recorded
}
