// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var records []slog.Record
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			records = append(records, record)
			return nil
		},
	}
	return slog.New(handler), &records
}

// recordMessages returns the messages of the given records.
func recordMessages(records []slog.Record) []string {
	var out []string
	for _, record := range records {
		out = append(out, record.Message)
	}
	return out
}

// recordAttr returns the value of the named attribute of record.
func recordAttr(record slog.Record, name string) (value slog.Value, found bool) {
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == name {
			value, found = attr.Value, true
			return false
		}
		return true
	})
	return
}

// call is a method call observed by [*stubTarget].
type call struct {
	name string
	args []any
}

// ctxKey is the context key used to check context injection.
type ctxKey struct{}

// errStubFailure is returned by [*stubTarget.Auth] when asked to fail.
var errStubFailure = errors.New("stub failure")

// stubTarget records the calls it receives. Openers return a distinct
// request-like value to verify that the target is threaded.
type stubTarget struct {
	calls []call
	ctxs  []any
}

func (s *stubTarget) record(name string, args ...any) {
	s.calls = append(s.calls, call{name: name, args: args})
}

func (s *stubTarget) Get(url string) *stubTarget {
	s.record("get", url)
	return s
}

func (s *stubTarget) Post(url string) *stubTarget {
	s.record("post", url)
	return s
}

func (s *stubTarget) Put(ctx context.Context, url string) *stubTarget {
	s.ctxs = append(s.ctxs, ctx.Value(ctxKey{}))
	s.record("put", url)
	return s
}

func (s *stubTarget) Field(name, value string) *stubTarget {
	s.record("field", name, value)
	return s
}

func (s *stubTarget) Query(value any) *stubTarget {
	s.record("query", value)
	return s
}

func (s *stubTarget) Set(args ...string) *stubTarget {
	anys := make([]any, 0, len(args))
	for _, arg := range args {
		anys = append(anys, arg)
	}
	s.record("set", anys...)
	return s
}

func (s *stubTarget) Type(value string) *stubTarget {
	s.record("type", value)
	return s
}

func (s *stubTarget) Timeout(ms int) *stubTarget {
	s.record("timeout", ms)
	return s
}

func (s *stubTarget) Accept(values []string) *stubTarget {
	s.record("accept", values)
	return s
}

func (s *stubTarget) Auth(user string, password string) error {
	s.record("auth", user, password)
	if user == "fail" {
		return errStubFailure
	}
	return nil
}

func (s *stubTarget) ClearTimeout() {
	s.record("clearTimeout")
}

func (s *stubTarget) Redirects(count int, rest map[string]string) *stubTarget {
	s.record("redirects", count, rest)
	return s
}

func (s *stubTarget) Send(value any) *stubTarget {
	s.record("send", value)
	return s
}

func (s *stubTarget) End(fn func()) (*stubTarget, error) {
	s.record("end", fn)
	return s, nil
}

func (s *stubTarget) Then(value any) *stubPromise {
	s.record("then", value)
	return &stubPromise{target: s}
}

// stubPromise is what [*stubTarget.Then] returns.
type stubPromise struct {
	target *stubTarget
}

func (p *stubPromise) Catch(value any) *stubPromise {
	p.target.record("catch", value)
	return p
}

// callNames returns the names of the calls observed by s.
func (s *stubTarget) callNames() []string {
	var out []string
	for _, c := range s.calls {
		out = append(out, c.name)
	}
	return out
}
