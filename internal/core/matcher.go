package core

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/toejough/imprint/match"
)

// Matcher is the shape of match.Matcher and of gomega matchers, as the engine calls them.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
}

// MatchValue checks if actual matches expected.
// If expected implements the Matcher interface, uses its Match method.
// A nil expected matches nil and typed nil values. Anything else is compared
// for deep equality.
// Returns (success, errorMessage). If success is true, errorMessage is empty.
func MatchValue(actual, expected any) (bool, string) {
	return matchWithin(actual, expected, 0)
}

// argMatcher is one recorded argument: either a literal or a Matcher.
type argMatcher struct {
	expected  any
	tolerance float64
}

func (m argMatcher) describe() string {
	return match.Describe(m.expected)
}

func (m argMatcher) matches(actual any) (bool, string) {
	return matchWithin(actual, m.expected, m.tolerance)
}

func (m argMatcher) specificity() int {
	return match.SpecificityOf(m.expected)
}

// argList holds the matchers for one call shape. A variadic tail is matched either
// as a whole (one matcher against the slice) or slot by slot.
type argList struct {
	fixed    []argMatcher
	variadic bool
	whole    *argMatcher
	slots    []argMatcher
}

func (l argList) describe() string {
	parts := make([]string, 0, len(l.fixed)+len(l.slots)+1)
	for _, m := range l.fixed {
		parts = append(parts, m.describe())
	}

	switch {
	case l.whole != nil:
		parts = append(parts, l.whole.describe()+"...")
	case l.variadic:
		for _, m := range l.slots {
			parts = append(parts, m.describe())
		}
	}

	return "(" + strings.Join(parts, ", ") + ")"
}

// matches checks a call's arguments, which follow the CallSlice convention: a
// variadic tail arrives as a single slice in the last position.
func (l argList) matches(args []any) (bool, string) {
	wantLen := len(l.fixed)
	if l.variadic {
		wantLen++
	}

	if len(args) != wantLen {
		return false, fmt.Sprintf("expected %d args, got %d", wantLen, len(args))
	}

	for index, m := range l.fixed {
		if ok, msg := m.matches(args[index]); !ok {
			return false, fmt.Sprintf("arg %d: %s", index, msg)
		}
	}

	if !l.variadic {
		return true, ""
	}

	tail := args[len(l.fixed)]

	if l.whole != nil {
		if ok, msg := l.whole.matches(tail); !ok {
			return false, fmt.Sprintf("variadic args: %s", msg)
		}

		return true, ""
	}

	elems := variadicElems(tail)
	if len(elems) != len(l.slots) {
		return false, fmt.Sprintf("expected %d variadic args, got %d", len(l.slots), len(elems))
	}

	for index, m := range l.slots {
		if ok, msg := m.matches(elems[index]); !ok {
			return false, fmt.Sprintf("variadic arg %d: %s", index, msg)
		}
	}

	return true, ""
}

func (l argList) specificity() int {
	total := 0
	for _, m := range l.fixed {
		total += m.specificity()
	}

	if l.whole != nil {
		total += l.whole.specificity()
	}

	for _, m := range l.slots {
		total += m.specificity()
	}

	return total
}

// buildArgList turns recorded arguments into matchers for sig. Literal numbers
// and strings are converted to the declared parameter type first, so an untyped
// constant like 1 matches an int64 parameter.
func buildArgList(sig Signature, args []any, tolerance float64) argList {
	numIn := sig.NumIn()
	list := argList{variadic: sig.Variadic()}

	if !list.variadic {
		if len(args) != numIn {
			usagePanic("%s takes %d args, %d recorded", sig, numIn, len(args))
		}

		list.fixed = buildMatchers(sig, args, 0, tolerance)

		return list
	}

	if len(args) < numIn-1 {
		usagePanic("%s takes at least %d args, %d recorded", sig, numIn-1, len(args))
	}

	list.fixed = buildMatchers(sig, args[:numIn-1], 0, tolerance)
	tailType := sig.In(numIn - 1)

	if len(args) == numIn && isWholeTail(args[numIn-1], tailType) {
		whole := argMatcher{expected: args[numIn-1], tolerance: tolerance}
		list.whole = &whole

		return list
	}

	list.slots = make([]argMatcher, 0, len(args)-(numIn-1))
	for index, arg := range args[numIn-1:] {
		list.slots = append(list.slots, argMatcher{
			expected:  checkLiteral(sig, numIn-1+index, tailType.Elem(), arg),
			tolerance: tolerance,
		})
	}

	return list
}

func buildMatchers(sig Signature, args []any, offset int, tolerance float64) []argMatcher {
	matchers := make([]argMatcher, 0, len(args))
	for index, arg := range args {
		matchers = append(matchers, argMatcher{
			expected:  checkLiteral(sig, offset+index, sig.In(offset+index), arg),
			tolerance: tolerance,
		})
	}

	return matchers
}

// checkLiteral validates a recorded literal against its parameter type and
// converts it where Go would have converted an untyped constant.
func checkLiteral(sig Signature, index int, param reflect.Type, arg any) any {
	if arg == nil {
		return nil
	}

	if _, ok := arg.(Matcher); ok {
		return arg
	}

	argType := reflect.TypeOf(arg)
	if argType.AssignableTo(param) {
		return arg
	}

	if param.Kind() != reflect.Interface && argType.ConvertibleTo(param) && sameKindFamily(argType, param) {
		return reflect.ValueOf(arg).Convert(param).Interface()
	}

	usagePanic("%s arg %d: %T is not assignable to %v", sig, index, arg, param)

	return nil
}

func isNumeric(kind reflect.Kind) bool {
	return (kind >= reflect.Int && kind <= reflect.Float64) || kind == reflect.Complex64 ||
		kind == reflect.Complex128
}

// isWholeTail reports whether a single recorded value stands for the entire
// variadic slice rather than its first element.
func isWholeTail(arg any, tailType reflect.Type) bool {
	if arg == nil {
		return true
	}

	if _, ok := arg.(Matcher); ok {
		return true
	}

	return reflect.TypeOf(arg).AssignableTo(tailType)
}

func matchWithin(actual, expected any, tolerance float64) (bool, string) {
	// Check if expected is a Matcher
	if matcher, ok := expected.(Matcher); ok {
		success, err := matcher.Match(actual)
		if err != nil {
			return false, err.Error()
		}

		if !success {
			return false, matcher.FailureMessage(actual)
		}

		return true, ""
	}

	if expected == nil {
		if match.IsNil(actual) {
			return true, ""
		}

		return false, fmt.Sprintf("expected nil, got %#v", actual)
	}

	if match.Equivalent(expected, actual, tolerance) {
		return true, ""
	}

	return false, fmt.Sprintf("expected %#v, got %#v", expected, actual)
}

func sameKindFamily(left, right reflect.Type) bool {
	if isNumeric(left.Kind()) && isNumeric(right.Kind()) {
		return true
	}

	return left.Kind() == reflect.String && right.Kind() == reflect.String
}

func variadicElems(tail any) []any {
	if tail == nil {
		return nil
	}

	rv := reflect.ValueOf(tail)
	if rv.Kind() != reflect.Slice {
		return []any{tail}
	}

	elems := make([]any, 0, rv.Len())
	for i := range rv.Len() {
		elems = append(elems, rv.Index(i).Interface())
	}

	return elems
}
