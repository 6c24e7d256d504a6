// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportedMethodName(t *testing.T) {
	cases := map[string]string{
		"get":             "Get",
		"clearTimeout":    "ClearTimeout",
		"withCredentials": "WithCredentials",
		"Send":            "Send",
		"":                "",
		"état":            "État",
	}
	for input, want := range cases {
		assert.Equal(t, want, ExportedMethodName(input), "input: %q", input)
	}
}

func TestSequencerInvoke(t *testing.T) {
	newSequencer := func() *Sequencer {
		return NewSequencer(NewConfig(), DefaultSLogger())
	}

	t.Run("missing method", func(t *testing.T) {
		stub := &stubTarget{}
		_, err := newSequencer().invoke(context.Background(), stub, "bogus", nil)

		var invocationErr *InvocationError
		require.ErrorAs(t, err, &invocationErr)
		assert.ErrorIs(t, err, ErrMissingMethod)
		assert.Equal(t, "bogus", invocationErr.Operation)
		assert.Equal(t, "Bogus", invocationErr.Method)
		assert.Equal(t, "*declare.stubTarget", invocationErr.Target)
		assert.Empty(t, stub.calls)
	})

	t.Run("nil target", func(t *testing.T) {
		_, err := newSequencer().invoke(context.Background(), nil, "get", nil)
		require.ErrorIs(t, err, ErrMissingMethod)
	})

	t.Run("too many arguments", func(t *testing.T) {
		_, err := newSequencer().invoke(context.Background(), &stubTarget{}, "get", []any{"/a", "/b"})
		require.ErrorIs(t, err, ErrArgumentCount)
	})

	t.Run("wrong argument type", func(t *testing.T) {
		_, err := newSequencer().invoke(context.Background(), &stubTarget{}, "get", []any{42})
		require.ErrorIs(t, err, ErrArgumentType)
		assert.Contains(t, err.Error(), "argument 0")
	})

	t.Run("nil for a non-nillable parameter", func(t *testing.T) {
		_, err := newSequencer().invoke(context.Background(), &stubTarget{}, "get", []any{nil})
		require.ErrorIs(t, err, ErrArgumentType)
	})

	t.Run("missing arguments are zero values", func(t *testing.T) {
		stub := &stubTarget{}
		_, err := newSequencer().invoke(context.Background(), stub, "field", []any{"a"})
		require.NoError(t, err)
		assert.Equal(t, []call{{"field", []any{"a", ""}}}, stub.calls)
	})

	t.Run("numbers are converted", func(t *testing.T) {
		stub := &stubTarget{}
		_, err := newSequencer().invoke(context.Background(), stub, "timeout", []any{float64(250)})
		require.NoError(t, err)
		assert.Equal(t, []call{{"timeout", []any{250}}}, stub.calls)
	})

	t.Run("fractional numbers are not truncated", func(t *testing.T) {
		stub := &stubTarget{}
		_, err := newSequencer().invoke(context.Background(), stub, "timeout", []any{2.9})
		require.ErrorIs(t, err, ErrArgumentType)
		assert.Empty(t, stub.calls)
	})

	t.Run("lossy number conversions are rejected", func(t *testing.T) {
		for _, value := range []any{2.9, float64(1 << 40), int64(1) << 40, uint64(math.MaxUint64), math.Inf(1), math.NaN()} {
			_, err := convertArg(value, reflect.TypeFor[int32]())
			require.ErrorIs(t, err, ErrArgumentType, "value %v", value)
		}
		_, err := convertArg(1e300, reflect.TypeFor[float32]())
		require.ErrorIs(t, err, ErrArgumentType)
	})

	t.Run("negative numbers to unsigned are rejected", func(t *testing.T) {
		_, err := convertArg(-1, reflect.TypeFor[uint]())
		require.ErrorIs(t, err, ErrArgumentType)
	})

	t.Run("integral floats and widening are accepted", func(t *testing.T) {
		out, err := convertArg(3.0, reflect.TypeFor[int8]())
		require.NoError(t, err)
		assert.Equal(t, int8(3), out.Interface())

		out, err = convertArg(uint8(200), reflect.TypeFor[float32]())
		require.NoError(t, err)
		assert.Equal(t, float32(200), out.Interface())
	})

	t.Run("sequences are converted element-wise", func(t *testing.T) {
		stub := &stubTarget{}
		_, err := newSequencer().invoke(context.Background(), stub, "accept", []any{[]any{"json", "xml"}})
		require.NoError(t, err)
		assert.Equal(t, []call{{"accept", []any{[]string{"json", "xml"}}}}, stub.calls)
	})

	t.Run("maps are converted element-wise", func(t *testing.T) {
		stub := &stubTarget{}
		_, err := newSequencer().invoke(context.Background(),
			stub, "redirects", []any{2, map[string]any{"mode": "follow"}})
		require.NoError(t, err)
		assert.Equal(t, []call{{"redirects", []any{2, map[string]string{"mode": "follow"}}}}, stub.calls)
	})

	t.Run("map element type mismatch", func(t *testing.T) {
		_, err := newSequencer().invoke(context.Background(),
			&stubTarget{}, "redirects", []any{2, map[string]any{"mode": 1}})
		require.ErrorIs(t, err, ErrArgumentType)
	})

	t.Run("variadic", func(t *testing.T) {
		stub := &stubTarget{}
		_, err := newSequencer().invoke(context.Background(), stub, "set", []any{"a", "b", "c"})
		require.NoError(t, err)
		assert.Equal(t, []call{{"set", []any{"a", "b", "c"}}}, stub.calls)
	})

	t.Run("context is injected", func(t *testing.T) {
		stub := &stubTarget{}
		ctx := context.WithValue(context.Background(), ctxKey{}, "marker")
		_, err := newSequencer().invoke(ctx, stub, "put", []any{"/x"})
		require.NoError(t, err)
		assert.Equal(t, []any{"marker"}, stub.ctxs)
		assert.Equal(t, []call{{"put", []any{"/x"}}}, stub.calls)
	})

	t.Run("nil for a func parameter", func(t *testing.T) {
		stub := &stubTarget{}
		next, err := newSequencer().invoke(context.Background(), stub, "end", []any{nil})
		require.NoError(t, err)
		assert.Same(t, stub, next)
	})

	t.Run("no results keep the target", func(t *testing.T) {
		stub := &stubTarget{}
		next, err := newSequencer().invoke(context.Background(), stub, "clearTimeout", []any{})
		require.NoError(t, err)
		assert.Same(t, stub, next)
	})

	t.Run("a nil error result keeps the target", func(t *testing.T) {
		stub := &stubTarget{}
		next, err := newSequencer().invoke(context.Background(), stub, "auth", []any{"tobi", "secret"})
		require.NoError(t, err)
		assert.Same(t, stub, next)
	})

	t.Run("errors are returned unmodified", func(t *testing.T) {
		_, err := newSequencer().invoke(context.Background(), &stubTarget{}, "auth", []any{"fail", ""})
		assert.Equal(t, errStubFailure, err)
	})

	t.Run("the first result becomes the target", func(t *testing.T) {
		stub := &stubTarget{}
		next, err := newSequencer().invoke(context.Background(), stub, "then", []any{"x"})
		require.NoError(t, err)
		require.IsType(t, &stubPromise{}, next)
		assert.Same(t, stub, next.(*stubPromise).target)
	})

	t.Run("invokers dispatch themselves", func(t *testing.T) {
		var got []call
		invoker := InvokerFunc(func(ctx context.Context, operation string, args []any) (any, error) {
			got = append(got, call{operation, args})
			return "next", nil
		})
		next, err := newSequencer().invoke(context.Background(), invoker, "clearTimeout", []any{1})
		require.NoError(t, err)
		assert.Equal(t, "next", next)
		assert.Equal(t, []call{{"clearTimeout", []any{1}}}, got)
	})

	t.Run("custom method names", func(t *testing.T) {
		seq := newSequencer()
		seq.MethodName = func(operation string) string {
			return "Post"
		}
		stub := &stubTarget{}
		_, err := seq.invoke(context.Background(), stub, "get", []any{"/x"})
		require.NoError(t, err)
		assert.Equal(t, []string{"post"}, stub.callNames())
	})
}

func TestInvocationError(t *testing.T) {
	err := &InvocationError{
		Operation: "get",
		Method:    "Get",
		Target:    "*agent.Agent",
		Err:       ErrMissingMethod,
	}
	assert.Equal(t, "declare: get: *agent.Agent.Get: target has no such method", err.Error())
	assert.True(t, errors.Is(err, ErrMissingMethod))
}

func TestConfigError(t *testing.T) {
	t.Run("without keys", func(t *testing.T) {
		err := &ConfigError{Err: ErrNoTarget}
		assert.Equal(t, "declare: no target provided", err.Error())
		assert.ErrorIs(t, err, ErrNoTarget)
	})

	t.Run("with keys", func(t *testing.T) {
		err := &ConfigError{Err: ErrUnknownOperation, Keys: []string{"x", "y"}}
		assert.Equal(t, `declare: invalid option: "x", "y"`, err.Error())
		assert.ErrorIs(t, err, ErrUnknownOperation)
	})
}
