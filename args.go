// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import "reflect"

// NormalizeArgs converts an argument specification into the argument
// lists of the invocations it describes:
//
//   - a scalar is the sole argument of one invocation;
//   - an empty sequence is one invocation without arguments;
//   - leading elements that are themselves sequences are one invocation each;
//   - the remaining elements form the arguments of one final invocation.
//
// Thus "/x" yields [["/x"]], ["a", "b"] yields [["a", "b"]], and
// [["a"], ["b"]] yields [["a"], ["b"]].
//
// A sequence is any slice or array except []byte, which is a scalar.
func NormalizeArgs(spec any) [][]any {
	if !isSequence(spec) {
		return [][]any{{spec}}
	}
	elems := sequenceElems(spec)
	if len(elems) <= 0 {
		return [][]any{{}}
	}
	var (
		calls [][]any
		args  []any
	)
	for _, elem := range elems {
		if len(args) <= 0 && isSequence(elem) {
			calls = append(calls, sequenceElems(elem))
			continue
		}
		args = append(args, elem)
	}
	if len(args) > 0 {
		calls = append(calls, args)
	}
	return calls
}

var bytesType = reflect.TypeFor[[]byte]()

func isSequence(value any) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type() != bytesType
	case reflect.Array:
		return true
	default:
		return false
	}
}

func sequenceElems(value any) []any {
	if elems, ok := value.([]any); ok {
		return elems
	}
	rv := reflect.ValueOf(value)
	out := make([]any, 0, rv.Len())
	for idx := range rv.Len() {
		out = append(out, rv.Index(idx).Interface())
	}
	return out
}
