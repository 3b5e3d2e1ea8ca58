package core_test

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/toejough/imprint/internal/core"
)

// Store is the collaborator most tests mock.
type Store interface {
	Close()
	Expire(key string, ttl time.Duration) bool
	Load(key string) (int, error)
	Save(key string, value int) error
	Session() Session
	Tags(prefix string, tags ...string) []string
}

// Session is returned by Store.Session, so it gets cascaded.
type Session interface {
	Query(sql string) Rows
}

// Rows is returned by Session.Query.
type Rows interface {
	Next() bool
}

// unexported variables.
var (
	_ Store   = (*fakeStore)(nil)
	_ Session = (*fakeSession)(nil)
	_ Rows    = (*fakeRows)(nil)

	errNotFound = errors.New("not found")
)

// fakeRows is the cascaded substitute for Rows.
type fakeRows struct {
	engine *core.Engine
}

func (r *fakeRows) Next() bool {
	out := invoke(r.engine, r, "Next", nil)
	return out[0].(bool)
}

// fakeSession is the cascaded substitute for Session.
type fakeSession struct {
	engine *core.Engine
}

func (s *fakeSession) Query(sql string) Rows {
	out := invoke(s.engine, s, "Query", nil, sql)
	rows, _ := out[0].(Rows)

	return rows
}

// fakeStore is a hand-written interception shim: every method routes through
// Dispatch before its real body runs.
type fakeStore struct {
	engine *core.Engine

	mu   sync.Mutex
	data map[string]int
}

func (s *fakeStore) Close() {
	invoke(s.engine, s, "Close", func([]any) []any { return nil })
}

func (s *fakeStore) Expire(key string, ttl time.Duration) bool {
	out := invoke(s.engine, s, "Expire", func([]any) []any { return []any{true} }, key, ttl)
	return out[0].(bool)
}

func (s *fakeStore) Load(key string) (int, error) {
	out := invoke(s.engine, s, "Load", s.realLoad, key)
	return out[0].(int), asError(out[1])
}

func (s *fakeStore) Save(key string, value int) error {
	out := invoke(s.engine, s, "Save", s.realSave, key, value)
	return asError(out[0])
}

func (s *fakeStore) Session() Session {
	out := invoke(s.engine, s, "Session", nil)
	session, _ := out[0].(Session)

	return session
}

func (s *fakeStore) Tags(prefix string, tags ...string) []string {
	out := invoke(s.engine, s, "Tags", func(args []any) []any {
		return []any{append([]string{args[0].(string)}, args[1].([]string)...)}
	}, prefix, tags)

	return out[0].([]string)
}

func (s *fakeStore) realLoad(args []any) []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.data[args[0].(string)]
	if !ok {
		return []any{0, fmt.Errorf("%w: %s", errNotFound, args[0])}
	}

	return []any{value, nil}
}

func (s *fakeStore) realSave(args []any) []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[args[0].(string)] = args[1].(int)

	return []any{nil}
}

// storeInterceptor substitutes the fakes for cascaded results.
type storeInterceptor struct {
	engine *core.Engine
}

func (i *storeInterceptor) Mockable(typ reflect.Type) bool {
	return typ == reflect.TypeFor[Session]() || typ == reflect.TypeFor[Rows]()
}

func (i *storeInterceptor) Substitute(typ reflect.Type) any {
	if typ == reflect.TypeFor[Session]() {
		return &fakeSession{engine: i.engine}
	}

	return &fakeRows{engine: i.engine}
}

type greeter struct{}

func asError(value any) error {
	err, _ := value.(error)
	return err
}

// dispatch routes a call on target without applying the outcome, for tests that
// inspect failures.
func dispatch(engine *core.Engine, target any, method string, args ...any) core.Outcome {
	sig, ok := core.SignatureOf(reflect.TypeOf(target), method)
	if !ok {
		panic(fmt.Sprintf("no method %s on %T", method, target))
	}

	return engine.Dispatch(core.Call{Target: target, Signature: sig, Args: args})
}

func greet(name string) string {
	return "hello " + name
}

// greetStatic is the shim for greet, a receiver-less function attributed to greeter.
func greetStatic(engine *core.Engine, name string) string {
	body := func(args []any) []any { return []any{greet(args[0].(string))} }
	outcome := engine.Dispatch(core.Call{
		Static:    reflect.TypeFor[greeter](),
		Signature: greetSignature(),
		Args:      []any{name},
		Real:      body,
	})

	return outcome.Apply(body)[0].(string)
}

func greetSignature() core.Signature {
	return core.FuncSignature("greet", greet)
}

func invoke(engine *core.Engine, target any, method string, body func([]any) []any, args ...any) []any {
	sig, ok := core.SignatureOf(reflect.TypeOf(target), method)
	if !ok {
		panic(fmt.Sprintf("no method %s on %T", method, target))
	}

	return engine.Dispatch(core.Call{Target: target, Signature: sig, Args: args, Real: body}).Apply(body)
}

func newEngine(options ...core.Option) *core.Engine {
	engine := core.NewEngine(options...)
	engine.BeginTestUnit()

	return engine
}

func newStore(engine *core.Engine) *fakeStore {
	return &fakeStore{engine: engine, data: make(map[string]int)}
}
