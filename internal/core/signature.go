package core

import (
	"fmt"
	"reflect"
	"strings"
)

// Signature identifies a method: its name and the shape of its function type
// without the receiver. Constructors are represented as pseudo-methods.
type Signature struct {
	Name        string
	Func        reflect.Type
	Owner       reflect.Type
	Constructor bool
}

// ConstructorSignature describes a constructor for typ. fn is the constructor
// function (or its reflect.Type).
func ConstructorSignature(typ reflect.Type, fn any) Signature {
	return Signature{
		Name:        "new",
		Func:        funcType(fn),
		Owner:       typ,
		Constructor: true,
	}
}

// FuncSignature describes a receiver-less function. fn is the function (or its reflect.Type).
func FuncSignature(name string, fn any) Signature {
	return Signature{Name: name, Func: funcType(fn)}
}

// SignatureOf looks up name in the method set of typ. Methods with pointer
// receivers are found from the value type too.
func SignatureOf(typ reflect.Type, name string) (Signature, bool) {
	if typ == nil {
		return Signature{}, false
	}

	if typ.Kind() == reflect.Interface {
		method, ok := typ.MethodByName(name)
		if !ok {
			return Signature{}, false
		}

		return Signature{Name: name, Func: method.Type, Owner: typ}, true
	}

	method, ok := typ.MethodByName(name)
	if !ok && typ.Kind() != reflect.Pointer {
		method, ok = reflect.PointerTo(typ).MethodByName(name)
	}

	if !ok {
		return Signature{}, false
	}

	return Signature{Name: name, Func: withoutReceiver(method.Type), Owner: typ}, true
}

// In returns the type of parameter i.
func (s Signature) In(i int) reflect.Type {
	return s.Func.In(i)
}

// NumIn returns the number of declared parameters, counting a variadic tail as one.
func (s Signature) NumIn() int {
	if s.Func == nil {
		return 0
	}

	return s.Func.NumIn()
}

// NumOut returns the number of results.
func (s Signature) NumOut() int {
	if s.Func == nil {
		return 0
	}

	return s.Func.NumOut()
}

// Out returns the type of result i.
func (s Signature) Out(i int) reflect.Type {
	return s.Func.Out(i)
}

// Same reports whether two signatures denote the same method. The owner is
// ignored so a signature taken from an interface matches one taken from an
// implementation.
func (s Signature) Same(other Signature) bool {
	return s.Name == other.Name && s.Func == other.Func && s.Constructor == other.Constructor
}

func (s Signature) String() string {
	var builder strings.Builder

	if s.Owner != nil {
		builder.WriteString(s.Owner.String())
		builder.WriteString(".")
	}

	builder.WriteString(s.Name)

	if s.Func == nil {
		builder.WriteString("(?)")

		return builder.String()
	}

	params := make([]string, 0, s.Func.NumIn())

	for i := range s.Func.NumIn() {
		param := s.Func.In(i)
		if s.Variadic() && i == s.Func.NumIn()-1 {
			params = append(params, "..."+param.Elem().String())

			continue
		}

		params = append(params, param.String())
	}

	fmt.Fprintf(&builder, "(%s)", strings.Join(params, ", "))

	results := make([]string, 0, s.Func.NumOut())
	for i := range s.Func.NumOut() {
		results = append(results, s.Func.Out(i).String())
	}

	switch len(results) {
	case 0:
	case 1:
		builder.WriteString(" " + results[0])
	default:
		fmt.Fprintf(&builder, " (%s)", strings.Join(results, ", "))
	}

	return builder.String()
}

// Variadic reports whether the last parameter is a variadic tail.
func (s Signature) Variadic() bool {
	return s.Func != nil && s.Func.IsVariadic()
}

// Void reports whether the method returns nothing. Constructors are never void
// but still refuse recorded results, since the interception layer builds the value.
func (s Signature) Void() bool {
	return s.NumOut() == 0
}

func funcType(fn any) reflect.Type {
	if typ, ok := fn.(reflect.Type); ok {
		return typ
	}

	return reflect.TypeOf(fn)
}

func withoutReceiver(method reflect.Type) reflect.Type {
	ins := make([]reflect.Type, 0, method.NumIn()-1)
	for i := 1; i < method.NumIn(); i++ {
		ins = append(ins, method.In(i))
	}

	outs := make([]reflect.Type, 0, method.NumOut())
	for i := range method.NumOut() {
		outs = append(outs, method.Out(i))
	}

	return reflect.FuncOf(ins, outs, method.IsVariadic())
}
