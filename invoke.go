// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// Invoker is implemented by targets that dispatch operations themselves.
//
// When the current target implements Invoker, the [*Sequencer] calls Invoke
// instead of looking up methods by reflection. The returned value becomes
// the target of the next invocation; a non-nil error stops the run and is
// returned to the caller unmodified.
type Invoker interface {
	Invoke(ctx context.Context, operation string, args []any) (any, error)
}

// InvokerFunc adapts a function to the [Invoker] interface.
type InvokerFunc func(ctx context.Context, operation string, args []any) (any, error)

var _ Invoker = InvokerFunc(nil)

// Invoke implements [Invoker].
func (f InvokerFunc) Invoke(ctx context.Context, operation string, args []any) (any, error) {
	return f(ctx, operation, args)
}

// ExportedMethodName maps an operation name to a Go method name by
// upper-casing its first rune ("clearTimeout" becomes "ClearTimeout").
func ExportedMethodName(operation string) string {
	r, size := utf8.DecodeRuneInString(operation)
	if r == utf8.RuneError {
		return operation
	}
	return string(unicode.ToUpper(r)) + operation[size:]
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// invoke performs a single invocation of operation on target.
func (s *Sequencer) invoke(ctx context.Context, target any, operation string, args []any) (any, error) {
	if invoker, ok := target.(Invoker); ok {
		return invoker.Invoke(ctx, operation, args)
	}
	method := s.MethodName(operation)
	fail := func(err error) (any, error) {
		return nil, &InvocationError{
			Operation: operation,
			Method:    method,
			Target:    fmt.Sprintf("%T", target),
			Err:       err,
		}
	}

	rv := reflect.ValueOf(target)
	if !rv.IsValid() {
		return fail(ErrMissingMethod)
	}
	fn := rv.MethodByName(method)
	if !fn.IsValid() {
		return fail(ErrMissingMethod)
	}
	in, err := bindArgs(ctx, fn.Type(), args)
	if err != nil {
		return fail(err)
	}
	return unpackResults(target, fn.Call(in))
}

// bindArgs converts args to the parameters of a method of type ft.
func bindArgs(ctx context.Context, ft reflect.Type, args []any) ([]reflect.Value, error) {
	var in []reflect.Value
	params := make([]reflect.Type, 0, ft.NumIn())
	for idx := range ft.NumIn() {
		params = append(params, ft.In(idx))
	}
	if len(params) > 0 && params[0] == contextType {
		in = append(in, reflect.ValueOf(&ctx).Elem())
		params = params[1:]
	}

	var variadic reflect.Type
	if ft.IsVariadic() {
		variadic = params[len(params)-1].Elem()
		params = params[:len(params)-1]
	}
	if variadic == nil && len(args) > len(params) {
		return nil, fmt.Errorf("%w: got %d, want at most %d", ErrArgumentCount, len(args), len(params))
	}

	for idx, param := range params {
		if idx >= len(args) {
			in = append(in, reflect.Zero(param))
			continue
		}
		value, err := convertArg(args[idx], param)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", idx, err)
		}
		in = append(in, value)
	}
	for idx := len(params); idx < len(args); idx++ {
		value, err := convertArg(args[idx], variadic)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", idx, err)
		}
		in = append(in, value)
	}
	return in, nil
}

// convertArg converts value to a [reflect.Value] of type want.
func convertArg(value any, want reflect.Type) (reflect.Value, error) {
	if value == nil {
		if isNillable(want.Kind()) {
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: nil to %s", ErrArgumentType, want)
	}
	rv := reflect.ValueOf(value)
	return convertValue(rv, want)
}

func convertValue(rv reflect.Value, want reflect.Type) (reflect.Value, error) {
	have := rv.Type()
	switch {
	case have.AssignableTo(want):
		out := reflect.New(want).Elem()
		out.Set(rv)
		return out, nil

	case have.Kind() == reflect.Interface:
		if rv.IsNil() {
			return convertArg(nil, want)
		}
		return convertValue(rv.Elem(), want)

	case isNumber(have.Kind()) && isNumber(want.Kind()):
		return convertNumber(rv, want)

	case have.Kind() == reflect.String && want.Kind() == reflect.String:
		return rv.Convert(want), nil

	case (have.Kind() == reflect.Slice || have.Kind() == reflect.Array) && want.Kind() == reflect.Slice:
		out := reflect.MakeSlice(want, 0, rv.Len())
		for idx := range rv.Len() {
			elem, err := convertValue(rv.Index(idx), want.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, elem)
		}
		return out, nil

	case have.Kind() == reflect.Map && want.Kind() == reflect.Map:
		out := reflect.MakeMapWithSize(want, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key, err := convertValue(iter.Key(), want.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			elem, err := convertValue(iter.Value(), want.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(key, elem)
		}
		return out, nil

	default:
		return reflect.Value{}, fmt.Errorf("%w: %s to %s", ErrArgumentType, have, want)
	}
}

// convertNumber converts between numeric kinds, rejecting conversions
// that would truncate a fraction or overflow the destination.
func convertNumber(rv reflect.Value, want reflect.Type) (reflect.Value, error) {
	out := reflect.New(want).Elem()
	lossy := fmt.Errorf("%w: %v to %s", ErrArgumentType, rv.Interface(), want)
	switch {
	case rv.CanInt():
		v := rv.Int()
		switch {
		case out.CanInt():
			if out.OverflowInt(v) {
				return reflect.Value{}, lossy
			}
		case out.CanUint():
			if v < 0 || out.OverflowUint(uint64(v)) {
				return reflect.Value{}, lossy
			}
		}
	case rv.CanUint():
		v := rv.Uint()
		switch {
		case out.CanInt():
			if v > math.MaxInt64 || out.OverflowInt(int64(v)) {
				return reflect.Value{}, lossy
			}
		case out.CanUint():
			if out.OverflowUint(v) {
				return reflect.Value{}, lossy
			}
		}
	case rv.CanFloat():
		v := rv.Float()
		switch {
		case out.CanInt():
			if math.Trunc(v) != v || v < math.MinInt64 || v >= math.MaxInt64 || out.OverflowInt(int64(v)) {
				return reflect.Value{}, lossy
			}
		case out.CanUint():
			if math.Trunc(v) != v || v < 0 || v >= math.MaxUint64 || out.OverflowUint(uint64(v)) {
				return reflect.Value{}, lossy
			}
		case out.CanFloat():
			if out.OverflowFloat(v) {
				return reflect.Value{}, lossy
			}
		}
	}
	out.Set(rv.Convert(want))
	return out, nil
}

func isNillable(kind reflect.Kind) bool {
	switch kind {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return true
	default:
		return false
	}
}

func isNumber(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// unpackResults maps method results to the next target.
//
// No results, or only an error result, keep the current target.
// Otherwise the first result is the next target. A trailing non-nil
// error is returned as is.
func unpackResults(target any, out []reflect.Value) (any, error) {
	if len(out) <= 0 {
		return target, nil
	}
	last := out[len(out)-1]
	if last.Type() == errorType && !last.IsNil() {
		return nil, last.Interface().(error)
	}
	if len(out) == 1 && last.Type() == errorType {
		return target, nil
	}
	return out[0].Interface(), nil
}
