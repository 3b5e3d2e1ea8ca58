package core_test

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	"github.com/toejough/imprint/internal/core"
	"github.com/toejough/imprint/match"
	"golang.org/x/sync/errgroup"
	"pgregory.net/rapid"
)

func TestStrict_InOrderReplaySucceeds(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	err := engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Save", "a", 1).Returns(nil)
		r.On(store, "Load", "a").Returns(5, nil)
	})
	g.Expect(err).NotTo(HaveOccurred())

	g.Expect(store.Save("a", 1)).To(Succeed())

	value, err := store.Load("a")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal(5))
	g.Expect(store.data).To(BeEmpty(), "recorded results replace the real body")

	g.Expect(engine.EndTestUnit()).To(Succeed())
}

func TestStrict_OutOfOrderFailsAtTheCall(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Save", "a", 1)
		r.On(store, "Load", "a")
	})).To(Succeed())

	outcome := dispatch(engine, store, "Load", "a")
	g.Expect(outcome.Kind).To(Equal(core.OutcomeFail))
	g.Expect(outcome.Err).To(MatchError(core.ErrOutOfOrder))

	var failure *core.Failure
	g.Expect(errors.As(outcome.Err, &failure)).To(BeTrue())
	g.Expect(failure.ExpectedPosition).To(Equal(1))
	g.Expect(failure.FoundPosition).To(Equal(2))

	g.Expect(engine.EndTestUnit()).To(MatchError(core.ErrOutOfOrder))
}

func TestStrict_UnexpectedCall(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Save", "a", 1)
	})).To(Succeed())

	outcome := dispatch(engine, store, "Load", "a")
	g.Expect(outcome.Err).To(MatchError(core.ErrUnexpectedInvocation))

	// the failed call did not move the ledger
	g.Expect(dispatch(engine, store, "Save", "a", 1).Kind).To(Equal(core.OutcomeReturn))
}

func TestStrict_MissingCallReportedAtEnd(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Save", "a", 1)
		r.On(store, "Load", "a").Message("loading after save")
	})).To(Succeed())

	g.Expect(store.Save("a", 1)).To(Succeed())

	err := engine.EndTestUnit()
	g.Expect(err).To(MatchError(core.ErrMissingInvocation))
	g.Expect(err.Error()).To(HavePrefix("loading after save: "))
	g.Expect(err.Error()).To(ContainSubstring("expected exactly 1"))
}

func TestStrict_RepeatBeyondMaximum(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Save", "a", 1)
	})).To(Succeed())

	g.Expect(dispatch(engine, store, "Save", "a", 1).Kind).To(Equal(core.OutcomeReturn))
	g.Expect(dispatch(engine, store, "Save", "a", 1).Err).To(MatchError(core.ErrTooManyInvocations))
}

func TestStrict_MinTimesLetsLaterRecordsProceed(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Save", match.BeAny, match.BeAny).MinTimes(1)
		r.On(store, "Close")
	})).To(Succeed())

	g.Expect(store.Save("a", 1)).To(Succeed())
	g.Expect(store.Save("b", 2)).To(Succeed())
	g.Expect(store.Save("c", 3)).To(Succeed())
	store.Close()

	g.Expect(engine.EndTestUnit()).To(Succeed())
}

func TestStrict_Iterations(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.Iterations(2)
		r.On(store, "Save", match.BeAny, match.BeAny)
		r.On(store, "Load", match.BeAny).Returns(1, nil)
	})).To(Succeed())

	for range 2 {
		g.Expect(store.Save("a", 1)).To(Succeed())

		value, err := store.Load("a")
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(value).To(Equal(1))
	}

	g.Expect(engine.EndTestUnit()).To(Succeed())
}

func TestStrict_IterationsShortfall(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.Iterations(2)
		r.On(store, "Save", "a", 1)
		r.On(store, "Load", "a")
	})).To(Succeed())

	g.Expect(store.Save("a", 1)).To(Succeed())
	_, _ = store.Load("a")
	g.Expect(store.Save("a", 1)).To(Succeed())

	err := engine.EndTestUnit()
	g.Expect(err).To(MatchError(core.ErrMissingInvocation))
	g.Expect(err.Error()).To(ContainSubstring("1 invocations, expected exactly 2"))
}

func TestStrict_WrongGoroutineIsFatal(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Save", "a", 1)
	})).To(Succeed())

	var group errgroup.Group

	group.Go(func() error {
		return dispatch(engine, store, "Save", "a", 1).Err
	})

	g.Expect(group.Wait()).To(MatchError(core.ErrWrongGoroutine))
}

func TestStrict_NonStrictClaimsWhatStrictDoesNotExpect(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Load", match.BeAny).Returns(7, nil)
	})).To(Succeed())
	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Save", "a", 1)
	})).To(Succeed())

	value, err := store.Load("x")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal(7))
	g.Expect(store.Save("a", 1)).To(Succeed())
	g.Expect(engine.EndTestUnit()).To(Succeed())
}

func TestStrict_OlderStrictLedgerStillExpectsItsCalls(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Load", "a").Returns(5, nil)
	})).To(Succeed())
	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Save", match.BeAny, match.BeAny)
	})).To(Succeed())

	value, err := store.Load("a")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal(5), "no non-strict record takes Load, so the strict one does")
	g.Expect(store.Save("b", 2)).To(Succeed())
	g.Expect(dispatch(engine, store, "Load", "a").Err).To(MatchError(core.ErrTooManyInvocations))
	g.Expect(engine.EndTestUnit()).To(MatchError(core.ErrTooManyInvocations))
}

func TestStrict_UnexpectedCallIsNotAlsoANonStrictOverflow(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Load", match.BeAny).MaxTimes(1)
	})).To(Succeed())
	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Save", "a", 1)
	})).To(Succeed())

	g.Expect(dispatch(engine, store, "Load", "x").Kind).To(Equal(core.OutcomeReturn))
	g.Expect(dispatch(engine, store, "Load", "y").Err).To(MatchError(core.ErrUnexpectedInvocation))
	g.Expect(store.Save("a", 1)).To(Succeed())

	err := engine.EndTestUnit()
	g.Expect(err).To(MatchError(core.ErrUnexpectedInvocation))
	g.Expect(err).NotTo(MatchError(core.ErrTooManyInvocations))
}

// A record bounded to [2,3] passes with 2 or 3 calls and fails otherwise, in
// either kind of ledger.
func TestRepeatBounds_PassOnlyWithinBounds(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		engine := newEngine()
		store := newStore(engine)

		strict := rapid.Bool().Draw(rt, "strict")
		calls := rapid.IntRange(0, 5).Draw(rt, "calls")

		record := engine.NonStrictExpectations
		if strict {
			record = engine.Expectations
		}

		if err := record(func(r *core.Recorder) {
			r.On(store, "Save", match.BeAny, match.BeAny).MinTimes(2).MaxTimes(3)
		}); err != nil {
			rt.Fatalf("recording: %v", err)
		}

		failed := false

		for index := range calls {
			if dispatch(engine, store, "Save", fmt.Sprintf("k-%d", index), index).Kind == core.OutcomeFail {
				failed = true
			}
		}

		if engine.EndTestUnit() != nil {
			failed = true
		}

		if within := calls >= 2 && calls <= 3; failed == within {
			rt.Fatalf("%d calls: failed=%v, want failed=%v", calls, failed, !within)
		}
	})
}

// Replaying a strict sequence in any order other than the recorded one fails.
func TestStrict_EveryReorderingFails(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		engine := newEngine()
		store := newStore(engine)

		size := rapid.IntRange(2, 5).Draw(rt, "size")
		order := make([]int, size)

		for index := range order {
			order[index] = index
		}

		if err := engine.Expectations(func(r *core.Recorder) {
			for _, index := range order {
				r.On(store, "Save", fmt.Sprintf("k-%d", index), index)
			}
		}); err != nil {
			rt.Fatalf("recording: %v", err)
		}

		replay := rapid.Permutation(order).Draw(rt, "replay")
		identity := slices.Equal(replay, order)
		failed := false

		for _, index := range replay {
			if dispatch(engine, store, "Save", fmt.Sprintf("k-%d", index), index).Kind == core.OutcomeFail {
				failed = true
			}
		}

		if engine.EndTestUnit() != nil {
			failed = true
		}

		if failed == identity {
			rt.Fatalf("replay %v: failed=%v", replay, failed)
		}
	})
}

func TestNonStrict_MostSpecificWins(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Load", match.BeAny).Returns(1, nil)
		r.On(store, "Load", match.HavePrefix("user-")).Returns(2, nil)
		r.On(store, "Load", "user-7").Returns(3, nil)
	})).To(Succeed())

	for key, want := range map[string]int{"other": 1, "user-1": 2, "user-7": 3} {
		value, err := store.Load(key)
		g.Expect(err).NotTo(HaveOccurred())
		g.Expect(value).To(Equal(want), key)
	}

	g.Expect(engine.EndTestUnit()).To(Succeed())
}

func TestNonStrict_TiesGoToFirstDeclared(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Load", match.BeAny).Returns(1, nil)
	})).To(Succeed())
	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Load", match.BeAny).Returns(2, nil)
	})).To(Succeed())

	value, _ := store.Load("k")
	g.Expect(value).To(Equal(1))
}

func TestNonStrict_ExhaustedRecordYieldsToNext(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Load", "k").Returns(1, nil).Times(1)
		r.On(store, "Load", match.BeAny).Returns(2, nil)
	})).To(Succeed())

	first, _ := store.Load("k")
	second, _ := store.Load("k")

	g.Expect([]int{first, second}).To(Equal([]int{1, 2}))
	g.Expect(engine.EndTestUnit()).To(Succeed())
}

func TestNonStrict_OverMaximumReportedAtEnd(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Save", match.BeAny, match.BeAny).MaxTimes(1)
	})).To(Succeed())

	g.Expect(store.Save("a", 1)).To(Succeed())
	g.Expect(store.Save("b", 2)).To(Succeed(), "the extra call falls back to defaults")

	g.Expect(engine.EndTestUnit()).To(MatchError(core.ErrTooManyInvocations))
}

func TestNonStrict_MinTimesShortfall(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Close").MinTimes(2)
	})).To(Succeed())

	store.Close()

	g.Expect(engine.EndTestUnit()).To(MatchError(ContainSubstring("1 invocations, expected at least 2")))
}

func TestNonStrict_IterationsMultiplyBounds(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.Iterations(3)
		r.On(store, "Close").Times(1)
	})).To(Succeed())

	for range 3 {
		store.Close()
	}

	g.Expect(engine.EndTestUnit()).To(Succeed())
}

func TestResultQueue_LastEntryRepeats(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Load", match.BeAny).
			Returns(1, nil).
			Returns(2, errNotFound)
	})).To(Succeed())

	first, err := store.Load("k")
	g.Expect(first).To(Equal(1))
	g.Expect(err).NotTo(HaveOccurred())

	for range 3 {
		value, err := store.Load("k")
		g.Expect(value).To(Equal(2))
		g.Expect(err).To(MatchError(errNotFound))
	}
}

func TestResultQueue_Panics(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Close").Panics("disk on fire")
	})).To(Succeed())

	g.Expect(store.Close).To(PanicWith("disk on fire"))
}

func TestDefaults_EmptyCollectionsAndZeroValues(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	tags := store.Tags("p", "a")
	g.Expect(tags).NotTo(BeNil())
	g.Expect(tags).To(BeEmpty())

	value, err := store.Load("k")
	g.Expect(value).To(BeZero())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(store.Session()).To(BeNil(), "nothing is cascaded without an interceptor")
	g.Expect(engine.History().Len()).To(Equal(3))
}

func TestDelegates_ProceedRunsRealBodyOnce(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	var counts []int

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Save", match.BeAny, match.BeAny).Delegates(func(inv *core.Invocation) []any {
			counts = append(counts, inv.Count)
			return inv.Proceed(inv.Args[0], inv.Args[1].(int)*10)
		})
	})).To(Succeed())

	g.Expect(store.Save("a", 1)).To(Succeed())
	g.Expect(store.Save("b", 2)).To(Succeed())
	g.Expect(store.data).To(Equal(map[string]int{"a": 10, "b": 20}))
	g.Expect(counts).To(Equal([]int{1, 2}))
}

func TestDelegates_SecondProceedIsAUsageError(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Save", match.BeAny, match.BeAny).Delegates(func(inv *core.Invocation) []any {
			inv.Proceed()
			return inv.Proceed()
		})
	})).To(Succeed())

	g.Expect(func() { _ = store.Save("a", 1) }).
		To(PanicWith(BeAssignableToTypeOf(&core.UsageError{})))
}

func TestDelegates_WrongResultCount(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Load", match.BeAny).Delegates(func(*core.Invocation) []any {
			return []any{1}
		})
	})).To(Succeed())

	outcome := dispatch(engine, store, "Load", "k")
	g.Expect(outcome.Kind).To(Equal(core.OutcomeFail))
	g.Expect(outcome.Err).To(MatchError(core.ErrUsage))
	g.Expect(engine.EndTestUnit()).To(MatchError(core.ErrUsage))
}

func TestCallsReal_Proceeds(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Save", "a", match.BeAny).CallsReal()
	})).To(Succeed())

	g.Expect(store.Save("a", 4)).To(Succeed())
	g.Expect(store.data).To(HaveKeyWithValue("a", 4))

	outcome := dispatch(engine, store, "Save", "a", 5)
	g.Expect(outcome.Kind).To(Equal(core.OutcomeProceed))
	g.Expect(outcome.Args).To(Equal([]any{"a", 5}))
	g.Expect(func() { outcome.Apply(nil) }).To(PanicWith(MatchError(core.ErrUsage)))
}

func TestTargets_AnyInstance(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	first, second := newStore(engine), newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(core.AnyInstanceOf[Store](), "Load", match.BeAny).Returns(3, nil)
		r.On(first, "Load", match.BeAny).Returns(1, nil)
	})).To(Succeed())

	fromFirst, _ := first.Load("k")
	fromSecond, _ := second.Load("k")

	g.Expect(fromFirst).To(Equal(3), "equal specificity, the any-instance record was declared first")
	g.Expect(fromSecond).To(Equal(3))
}

func TestTargets_InstanceIsolation(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	first, second := newStore(engine), newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(first, "Load", match.BeAny).Returns(1, nil)
	})).To(Succeed())

	fromFirst, _ := first.Load("k")
	fromSecond, _ := second.Load("k")

	g.Expect(fromFirst).To(Equal(1))
	g.Expect(fromSecond).To(BeZero())
}

func TestTargets_Static(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.OnSignature(core.Static[greeter](), greetSignature(), "bob").Returns("hi bob")
	})).To(Succeed())

	g.Expect(greetStatic(engine, "bob")).To(Equal("hi bob"))
	g.Expect(engine.EndTestUnit()).To(Succeed())
	g.Expect(greetStatic(engine, "ann")).To(Equal(""), "a fresh unit has no expectations")
}

func TestArgs_VariadicPerElement(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Tags", "p", "a", match.HavePrefix("b")).Returns([]string{"matched"})
	})).To(Succeed())

	g.Expect(store.Tags("p", "a", "bee")).To(Equal([]string{"matched"}))
	g.Expect(store.Tags("p", "a")).To(BeEmpty())
	g.Expect(store.Tags("p", "a", "bee", "c")).To(BeEmpty())
}

func TestArgs_VariadicWholeTail(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Tags", "nil", nil).Returns([]string{"nil tail"})
		r.On(store, "Tags", "slice", []string{"x", "y"}).Returns([]string{"slice tail"})
		r.On(store, "Tags", "any", match.BeAny).Returns([]string{"any tail"})
	})).To(Succeed())

	g.Expect(store.Tags("nil")).To(Equal([]string{"nil tail"}))
	g.Expect(store.Tags("nil", []string{}...)).To(BeEmpty(), "an empty slice is not a nil tail")
	g.Expect(store.Tags("slice", "x", "y")).To(Equal([]string{"slice tail"}))
	g.Expect(store.Tags("any", "q", "r", "s")).To(Equal([]string{"any tail"}))
}

func TestArgs_LiteralsConvertToParameterType(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Expire", "k", 5).Returns(true)
	})).To(Succeed())

	g.Expect(store.Expire("k", 5*time.Nanosecond)).To(BeTrue())
	g.Expect(store.Expire("k", time.Second)).To(BeFalse(), "unmatched calls return the zero value")
	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.On(store, "Expire", "k", "five seconds")
	})).To(MatchError(core.ErrUsage))
}

func TestArgs_WithReplacesRecordedArguments(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		_, _ = store.Load("placeholder")
		r.Last().With(match.HavePrefix("user-")).Returns(7, nil)
	})).To(Succeed())

	g.Expect(store.Load("user-1")).To(Equal(7))
	g.Expect(store.Load("placeholder")).To(BeZero())
}

func TestArgs_FloatTolerance(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	type meter interface {
		Record(value float64) bool
	}

	engine := newEngine(core.WithTolerance(0.01))
	sig, ok := core.SignatureOf(core.AnyInstanceOf[meter]().Type, "Record")
	g.Expect(ok).To(BeTrue())

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		r.OnSignature(core.Static[greeter](), sig, 1.5).Returns(true)
	})).To(Succeed())

	record := func(value float64) bool {
		outcome := engine.Dispatch(core.Call{Static: reflect.TypeFor[greeter](), Signature: sig, Args: []any{value}})
		return outcome.Apply(nil)[0].(bool)
	}

	g.Expect(record(1.505)).To(BeTrue())
	g.Expect(record(1.6)).To(BeFalse())
}

func TestRecording_LiveCallsAreRecorded(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)
	boom := errors.New("boom")

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		_ = store.Save("a", 1)
		r.Last().Returns(boom)

		_, _ = store.Load("a")
		r.Last().Returns(9, nil)
	})).To(Succeed())

	g.Expect(engine.History().Len()).To(BeZero(), "recorded calls are not history")
	g.Expect(store.Save("a", 1)).To(MatchError(boom))

	value, err := store.Load("a")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(value).To(Equal(9))
	g.Expect(engine.EndTestUnit()).To(Succeed())
}

func TestRecording_StopRecordingReplaysTheRestOfTheBlock(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	var replayed int

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		r.On(store, "Load", "a").Returns(5, nil)
		r.StopRecording()

		replayed, _ = store.Load("a")
	})).To(Succeed())

	g.Expect(replayed).To(Equal(5))
	g.Expect(engine.Ledgers()).To(HaveLen(1))
	g.Expect(engine.EndTestUnit()).To(Succeed())
}

func TestRecording_UsageErrorsDiscardTheLedger(t *testing.T) {
	t.Parallel()

	engine := newEngine()
	store := newStore(engine)

	for name, declare := range map[string]func(*core.Recorder){
		"wrong result count": func(r *core.Recorder) { r.On(store, "Load", "a").Returns(1) },
		"wrong result type":  func(r *core.Recorder) { r.On(store, "Load", "a").Returns("one", nil) },
		"void result":        func(r *core.Recorder) { r.On(store, "Close").Returns(nil) },
		"unknown method":     func(r *core.Recorder) { r.On(store, "Delete", "a") },
		"wrong arg count":    func(r *core.Recorder) { r.On(store, "Save", "a") },
		"zero iterations":    func(r *core.Recorder) { r.Iterations(0) },
		"late iterations": func(r *core.Recorder) {
			r.On(store, "Close")
			r.Iterations(2)
		},
		"inverted bounds":   func(r *core.Recorder) { r.On(store, "Close").MaxTimes(1).MinTimes(2) },
		"capture recording": func(r *core.Recorder) { r.On(store, "Load", "a").Capture(0, new(string)) },
		"nil target":        func(r *core.Recorder) { r.On((*fakeStore)(nil), "Close") },
		"nil delegate":      func(r *core.Recorder) { r.On(store, "Close").Delegates(nil) },
		"last before on":    func(r *core.Recorder) { r.Last() },
		"constructor result": func(r *core.Recorder) {
			sig := core.ConstructorSignature(core.AnyInstanceOf[fakeStore]().Type, newStore)
			r.OnSignature(core.Static[fakeStore](), sig, match.BeAny).Returns(&fakeStore{})
		},
	} {
		t.Run(name, func(t *testing.T) {
			g := NewWithT(t)

			before := len(engine.Ledgers())
			err := engine.Expectations(declare)

			g.Expect(err).To(MatchError(core.ErrUsage))
			g.Expect(engine.Ledgers()).To(HaveLen(before))
		})
	}
}

func TestRecording_RecorderOutsideItsBlockPanics(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	var (
		leaked *core.Recorder
		last   *core.Expectation
	)

	g.Expect(engine.Expectations(func(r *core.Recorder) {
		leaked = r
		last = r.On(store, "Close")
	})).To(Succeed())

	g.Expect(func() { leaked.On(store, "Close") }).To(PanicWith(MatchError(core.ErrUsage)))
	g.Expect(func() { last.Times(3) }).To(PanicWith(MatchError(core.ErrUsage)))
}

func TestRecording_UnrelatedPanicsPropagate(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()

	g.Expect(func() {
		_ = engine.Expectations(func(*core.Recorder) { panic("not ours") })
	}).To(PanicWith("not ours"))
	g.Expect(engine.Ledgers()).To(BeEmpty())
}

func TestExpectation_CountTracksClaims(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	engine := newEngine()
	store := newStore(engine)

	var rec *core.Expectation

	g.Expect(engine.NonStrictExpectations(func(r *core.Recorder) {
		rec = r.On(store, "Close")
	})).To(Succeed())

	store.Close()
	store.Close()

	g.Expect(rec.Count()).To(Equal(2))
	g.Expect(rec.String()).To(ContainSubstring("Close on *core_test.fakeStore@"))
}
