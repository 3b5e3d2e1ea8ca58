// Package match provides argument matchers for imprint expectations and verifications.
// This package is designed to be dot-imported:
//
//	import . "github.com/toejough/imprint/match"
//
//	r.On(store, "Save", HavePrefix("user-"), BeAny).Returns(nil)
//
// Any value implementing Match and FailureMessage works as a matcher, so gomega
// matchers can be passed directly. Several names here mirror gomega's, so dot-import
// one package or the other. Matchers may also report a Specificity, which
// the engine uses to pick between several non-strict expectations that all accept
// the same call.
package match

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Specificity ranks, from least to most specific.
const (
	SpecificityAny = iota
	SpecificityPredicate
	SpecificityExact
)

// BeAny is a matcher that matches any value.
// Useful when you don't care about a particular argument.
//
//nolint:gochecknoglobals // Intentional exported constant-like value
var BeAny Matcher = anyMatcher{}

// BeNil matches nil and typed nil values (pointers, slices, maps, channels, funcs, interfaces).
//
//nolint:gochecknoglobals // Intentional exported constant-like value
var BeNil Matcher = nilMatcher{}

// NotNil matches anything BeNil does not.
//
//nolint:gochecknoglobals // Intentional exported constant-like value
var NotNil Matcher = notNilMatcher{}

// Matcher defines the interface for flexible value matching.
// Compatible with gomega.GomegaMatcher via duck typing - any type
// implementing Match and FailureMessage will work.
type Matcher interface {
	Match(actual any) (success bool, err error)
	FailureMessage(actual any) string
}

// Specific is implemented by matchers that report their own specificity rank.
// Matchers that don't implement it are ranked as predicates.
type Specific interface {
	Specificity() int
}

// ContainSubstring matches strings containing substr.
func ContainSubstring(substr string) Matcher {
	return &stringMatcher{
		verb:  "contain",
		arg:   substr,
		check: strings.Contains,
	}
}

// Describe renders a matcher or literal value for failure messages.
func Describe(expected any) string {
	switch typed := expected.(type) {
	case fmt.Stringer:
		return typed.String()
	case Matcher:
		return fmt.Sprintf("%T", typed)
	default:
		return fmt.Sprintf("%#v", typed)
	}
}

// Equal matches values deeply equal to expected. Unexported struct fields are compared.
func Equal(expected any) Matcher {
	return &equalMatcher{expected: expected}
}

// EqualWithin is Equal with an absolute tolerance applied to every floating point
// value reached while comparing.
func EqualWithin(expected any, tolerance float64) Matcher {
	return &equalMatcher{expected: expected, tolerance: tolerance}
}

// HavePrefix matches strings starting with prefix.
func HavePrefix(prefix string) Matcher {
	return &stringMatcher{
		verb:  "have prefix",
		arg:   prefix,
		check: strings.HasPrefix,
	}
}

// HaveSuffix matches strings ending with suffix.
func HaveSuffix(suffix string) Matcher {
	return &stringMatcher{
		verb:  "have suffix",
		arg:   suffix,
		check: strings.HasSuffix,
	}
}

// InstanceOf matches values assignable to T. When T is an interface, any value
// implementing it matches.
func InstanceOf[T any]() Matcher {
	return &instanceMatcher{typ: reflect.TypeFor[T]()}
}

// IsNil reports whether value is nil or a typed nil.
func IsNil(value any) bool {
	if value == nil {
		return true
	}

	rv := reflect.ValueOf(value)

	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice,
		reflect.UnsafePointer:
		return rv.IsNil()
	default:
		return false
	}
}

// MatchRegexp matches strings matching the regular expression pattern.
// It panics if pattern does not compile.
func MatchRegexp(pattern string) Matcher {
	compiled := regexp.MustCompile(pattern)

	return &stringMatcher{
		verb: "match regexp",
		arg:  pattern,
		check: func(actual, _ string) bool {
			return compiled.MatchString(actual)
		},
	}
}

// Satisfy returns a matcher that uses a predicate function to check for a match.
// The predicate should return nil if the value matches, or an error describing
// the mismatch if it does not.
//
// Example:
//
//	r.On(calc, "Add", Satisfy(func(x int) error {
//	    if x < 0 { return fmt.Errorf("expected positive, got %d", x) }
//	    return nil
//	}), BeAny)
func Satisfy[T any](predicate func(T) error) Matcher {
	return &satisfyMatcher[T]{predicate: predicate}
}

// SpecificityOf returns the rank of expected. Matchers without a rank are predicates;
// values that are not matchers at all are literals and rank as exact.
func SpecificityOf(expected any) int {
	if specific, ok := expected.(Specific); ok {
		return specific.Specificity()
	}

	if _, ok := expected.(Matcher); ok {
		return SpecificityPredicate
	}

	return SpecificityExact
}

// unexported variables.
var (
	errNotString    = errors.New("not a string")
	errTypeMismatch = errors.New("type mismatch")
)

// anyMatcher is the implementation of the BeAny matcher.
type anyMatcher struct{}

// FailureMessage returns an empty string since BeAny always matches.
func (anyMatcher) FailureMessage(any) string {
	return ""
}

// Match always returns true - matches any value.
func (anyMatcher) Match(any) (bool, error) {
	return true, nil
}

func (anyMatcher) Specificity() int { return SpecificityAny }

func (anyMatcher) String() string { return "<any>" }

type equalMatcher struct {
	expected  any
	tolerance float64
}

func (m *equalMatcher) FailureMessage(actual any) string {
	if m.tolerance > 0 {
		return fmt.Sprintf("expected %#v (within %g), got %#v", m.expected, m.tolerance, actual)
	}

	return fmt.Sprintf("expected %#v, got %#v", m.expected, actual)
}

func (m *equalMatcher) Match(actual any) (bool, error) {
	return Equivalent(m.expected, actual, m.tolerance), nil
}

func (m *equalMatcher) Specificity() int { return SpecificityExact }

func (m *equalMatcher) String() string {
	if m.tolerance > 0 {
		return fmt.Sprintf("%#v±%g", m.expected, m.tolerance)
	}

	return fmt.Sprintf("%#v", m.expected)
}

type instanceMatcher struct {
	typ reflect.Type
}

func (m *instanceMatcher) FailureMessage(actual any) string {
	return fmt.Sprintf("expected an instance of %v, got %T", m.typ, actual)
}

func (m *instanceMatcher) Match(actual any) (bool, error) {
	if actual == nil {
		return false, nil
	}

	return reflect.TypeOf(actual).AssignableTo(m.typ), nil
}

func (m *instanceMatcher) Specificity() int { return SpecificityPredicate }

func (m *instanceMatcher) String() string { return fmt.Sprintf("<instance of %v>", m.typ) }

type nilMatcher struct{}

func (nilMatcher) FailureMessage(actual any) string {
	return fmt.Sprintf("expected nil, got %#v", actual)
}

func (nilMatcher) Match(actual any) (bool, error) {
	return IsNil(actual), nil
}

func (nilMatcher) Specificity() int { return SpecificityPredicate }

func (nilMatcher) String() string { return "<nil>" }

type notNilMatcher struct{}

func (notNilMatcher) FailureMessage(any) string {
	return "expected a non-nil value, got nil"
}

func (notNilMatcher) Match(actual any) (bool, error) {
	return !IsNil(actual), nil
}

func (notNilMatcher) Specificity() int { return SpecificityPredicate }

func (notNilMatcher) String() string { return "<not nil>" }

type satisfyMatcher[T any] struct {
	predicate func(T) error
}

func (m *satisfyMatcher[T]) FailureMessage(actual any) string {
	val, ok := actual.(T)
	if !ok {
		return fmt.Sprintf("value %v is not a %T", actual, *new(T))
	}

	if err := m.predicate(val); err != nil {
		return fmt.Sprintf("value %v does not satisfy predicate: %v", actual, err)
	}

	return fmt.Sprintf("value %v does not satisfy predicate", actual)
}

func (m *satisfyMatcher[T]) Match(actual any) (bool, error) {
	val, ok := actual.(T)

	if !ok {
		return false, fmt.Errorf("%w: expected %T, got %T", errTypeMismatch, *new(T), actual)
	}

	return m.predicate(val) == nil, nil
}

func (m *satisfyMatcher[T]) Specificity() int { return SpecificityPredicate }

func (m *satisfyMatcher[T]) String() string { return fmt.Sprintf("<satisfies func(%T)>", *new(T)) }

type stringMatcher struct {
	verb  string
	arg   string
	check func(actual, arg string) bool
}

func (m *stringMatcher) FailureMessage(actual any) string {
	return fmt.Sprintf("expected %#v to %s %q", actual, m.verb, m.arg)
}

func (m *stringMatcher) Match(actual any) (bool, error) {
	str, ok := actual.(string)
	if !ok {
		// fmt.Stringer values still get a chance, the way the engine renders them
		stringer, isStringer := actual.(fmt.Stringer)
		if !isStringer {
			return false, fmt.Errorf("%w: got %T", errNotString, actual)
		}

		str = stringer.String()
	}

	return m.check(str, m.arg), nil
}

func (m *stringMatcher) Specificity() int { return SpecificityPredicate }

func (m *stringMatcher) String() string { return fmt.Sprintf("<%s %q>", m.verb, m.arg) }

// Equivalent reports whether expected and actual are deeply equal, comparing
// floats within tolerance when tolerance is positive.
func Equivalent(expected, actual any, tolerance float64) bool {
	opts := []cmp.Option{cmp.Exporter(func(reflect.Type) bool { return true })}
	if tolerance > 0 {
		opts = append(opts, cmpopts.EquateApprox(0, tolerance))
	}

	return cmp.Equal(expected, actual, opts...)
}
