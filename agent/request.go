// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

// defaultRedirects is the default maximum number of redirects.
const defaultRedirects = 5

// Callback receives the outcome of [*Request.End].
//
// On a non-2xx status, err is an [*HTTPError] and resp is also set.
type Callback func(err error, resp *Response)

// Request is a fluent HTTP request builder.
//
// Body operations return the same *Request. The request is executed at
// most once, by [*Request.End], [*Request.Then], [*Request.Catch], or
// [*Request.Pipe]; further executions return the same outcome.
//
// A Request is not safe for concurrent configuration.
type Request struct {
	// Header contains the request headers.
	Header http.Header

	// Method is the HTTP method.
	Method string

	// URL is the request URL, possibly already containing a query.
	URL string

	agent           *Agent
	body            any
	buffer          bool
	deadline        time.Duration
	events          map[string][]*listener
	fields          []formField
	files           []formFile
	maxResponseSize int64
	okFunc          func(*Response) bool
	parser          func(mediaType string, body []byte) (any, error)
	query           []string
	redirects       int
	responseTimeout time.Duration
	responseType    string
	retries         int
	retryFunc       func(err error, resp *Response) bool
	serializer      func(body any) ([]byte, error)
	sortQuery       func(a, b string) int
	tls             tlsMaterial
	transport       http.RoundTripper
	user            *credentials

	once sync.Once
	resp *Response
	err  error
}

type credentials struct {
	username string
	password string
	token    string
}

// mimeShorthands maps the shorthands accepted by [*Request.Type] and
// [*Request.Accept] to media types.
var mimeShorthands = map[string]string{
	"form":       "application/x-www-form-urlencoded",
	"html":       "text/html",
	"json":       "application/json",
	"text":       "text/plain",
	"urlencoded": "application/x-www-form-urlencoded",
	"xml":        "application/xml",
}

func expandMediaType(value string) string {
	if mt, found := mimeShorthands[value]; found {
		return mt
	}
	if strings.Contains(value, "/") {
		return value
	}
	if mt := mime.TypeByExtension("." + value); mt != "" {
		return mt
	}
	return value
}

// Accept sets the Accept header, expanding shorthands such as "json".
func (r *Request) Accept(value string) *Request {
	r.Header.Set("Accept", expandMediaType(value))
	return r
}

// Type sets the Content-Type header, expanding shorthands such as "form".
func (r *Request) Type(value string) *Request {
	r.Header.Set("Content-Type", expandMediaType(value))
	return r
}

// Set sets a header. The field may also be a map from header names to
// values, in which case value is ignored.
func (r *Request) Set(field any, value any) (*Request, error) {
	switch v := field.(type) {
	case string:
		r.Header.Set(v, fmt.Sprint(value))
	case map[string]any:
		for name, value := range v {
			r.Header.Set(name, fmt.Sprint(value))
		}
	case map[string]string:
		for name, value := range v {
			r.Header.Set(name, value)
		}
	default:
		return nil, fmt.Errorf("agent: set: unsupported field type %T", field)
	}
	return r, nil
}

// Unset removes a header.
func (r *Request) Unset(field string) *Request {
	r.Header.Del(field)
	return r
}

// GetHeader returns the value of a request header.
//
// Note that this returns a string rather than the request, so it ends
// any chain of calls.
func (r *Request) GetHeader(field string) string {
	return r.Header.Get(field)
}

// Query appends to the query string. The value may be an already
// encoded string ("a=1&b=2") or a map, whose keys are added in sorted
// order and whose slice values yield repeated keys.
func (r *Request) Query(value any) (*Request, error) {
	switch v := value.(type) {
	case nil:
		// nothing
	case string:
		for pair := range strings.SplitSeq(v, "&") {
			if pair != "" {
				r.query = append(r.query, pair)
			}
		}
	case map[string]any:
		r.query = append(r.query, encodePairs(v)...)
	case map[string]string:
		m := make(map[string]any, len(v))
		for key, value := range v {
			m[key] = value
		}
		r.query = append(r.query, encodePairs(m)...)
	default:
		return nil, fmt.Errorf("agent: query: unsupported value type %T", value)
	}
	return r, nil
}

// SortQuery sorts the query string before sending. The value is either a
// bool or a comparison func(a, b string) int over encoded "key=value"
// pairs. A nil value enables lexicographic sorting.
func (r *Request) SortQuery(value any) (*Request, error) {
	switch v := value.(type) {
	case nil:
		r.sortQuery = strings.Compare
	case bool:
		r.sortQuery = nil
		if v {
			r.sortQuery = strings.Compare
		}
	case func(a, b string) int:
		r.sortQuery = v
	default:
		return nil, fmt.Errorf("agent: sortQuery: unsupported value type %T", value)
	}
	return r, nil
}

// requestURL returns the URL including the query string.
func (r *Request) requestURL() string {
	base, rawQuery, _ := strings.Cut(r.URL, "?")
	var pairs []string
	for pair := range strings.SplitSeq(rawQuery, "&") {
		if pair != "" {
			pairs = append(pairs, pair)
		}
	}
	pairs = append(pairs, r.query...)
	if r.sortQuery != nil {
		slices.SortStableFunc(pairs, r.sortQuery)
	}
	if len(pairs) <= 0 {
		return base
	}
	return base + "?" + strings.Join(pairs, "&")
}

// Auth configures credentials. With a password, or without options, it
// uses basic authentication. With an options map whose "type" is
// "bearer", user is the bearer token.
//
//	Auth("tobi", "learnboost")
//	Auth("token", map[string]any{"type": "bearer"})
func (r *Request) Auth(user string, rest ...any) (*Request, error) {
	creds := &credentials{username: user}
	for _, elem := range rest {
		switch v := elem.(type) {
		case string:
			creds.password = v
		case map[string]any:
			switch kind := fmt.Sprint(v["type"]); kind {
			case "bearer":
				creds.token, creds.username = user, ""
			case "basic", "auto", "<nil>":
				// nothing
			default:
				return nil, fmt.Errorf("agent: auth: unsupported type %q", kind)
			}
		default:
			return nil, fmt.Errorf("agent: auth: unsupported argument type %T", elem)
		}
	}
	r.user = creds
	return r, nil
}

// Timeout sets timeouts. A number is the overall deadline in
// milliseconds. A map may set "deadline" and "response" (time to
// response headers) separately.
func (r *Request) Timeout(value any) (*Request, error) {
	switch v := value.(type) {
	case map[string]any:
		for key, ms := range v {
			d, err := millis(ms)
			if err != nil {
				return nil, err
			}
			switch key {
			case "deadline":
				r.deadline = d
			case "response":
				r.responseTimeout = d
			default:
				return nil, fmt.Errorf("agent: timeout: unknown key %q", key)
			}
		}
	default:
		d, err := millis(value)
		if err != nil {
			return nil, err
		}
		r.deadline = d
	}
	return r, nil
}

func millis(value any) (time.Duration, error) {
	switch v := value.(type) {
	case int:
		return time.Duration(v) * time.Millisecond, nil
	case int64:
		return time.Duration(v) * time.Millisecond, nil
	case float64:
		return time.Duration(v * float64(time.Millisecond)), nil
	case time.Duration:
		return v, nil
	default:
		return 0, fmt.Errorf("agent: timeout: unsupported value type %T", value)
	}
}

// ClearTimeout removes all timeouts.
func (r *Request) ClearTimeout() *Request {
	r.deadline, r.responseTimeout = 0, 0
	return r
}

// Redirects sets the maximum number of redirects to follow. Once reached,
// the redirect response itself is returned.
func (r *Request) Redirects(count int) *Request {
	r.redirects = count
	return r
}

// Retry retries failed requests up to count times. By default, network
// errors and 5xx responses are retried; pass a predicate to decide
// otherwise.
func (r *Request) Retry(count int, predicate func(err error, resp *Response) bool) *Request {
	r.retries, r.retryFunc = count, predicate
	return r
}

// MaxResponseSize limits the size of the response body, in bytes.
func (r *Request) MaxResponseSize(size int64) *Request {
	r.maxResponseSize = size
	return r
}

// Ok overrides which responses are successful. By default, only 2xx
// responses are successful.
func (r *Request) Ok(predicate func(resp *Response) bool) *Request {
	r.okFunc = predicate
	return r
}

// Parse overrides how the response body is decoded into [Response.Body].
func (r *Request) Parse(parser func(mediaType string, body []byte) (any, error)) *Request {
	r.parser = parser
	return r
}

// Serialize overrides how non-string bodies are encoded.
func (r *Request) Serialize(serializer func(body any) ([]byte, error)) *Request {
	r.serializer = serializer
	return r
}

// ResponseType sets how the body is exposed: "blob" and "arraybuffer"
// set [Response.Body] to the raw bytes.
func (r *Request) ResponseType(value string) *Request {
	r.responseType = value
	return r
}

// Buffer controls whether the response body is read into memory. When
// disabled, the body is available as [Response.Stream] and the caller
// must close it. Without arguments, buffering is enabled.
func (r *Request) Buffer(enable ...bool) *Request {
	r.buffer = len(enable) <= 0 || enable[0]
	return r
}

// Agent sets the [http.RoundTripper] to use instead of the default
// transport. TLS material and the response timeout only apply to the
// default transport.
func (r *Request) Agent(transport http.RoundTripper) *Request {
	r.transport = transport
	return r
}

// Use calls each plugin with the request, allowing plugins to modify it.
func (r *Request) Use(plugins ...func(*Request)) *Request {
	for _, plugin := range plugins {
		if plugin != nil {
			plugin(r)
		}
	}
	return r
}

// WithCredentials only matters in browsers and is accepted for compatibility.
func (r *Request) WithCredentials() *Request {
	return r
}

// ErrUnsupportedEvent indicates an unknown event or listener type.
var ErrUnsupportedEvent = errors.New("agent: unsupported event listener")

// listener is a registered event handler.
type listener struct {
	fn   any
	once bool
}

// On registers a listener. Events and listener types are:
//
//   - "request": func(*Request), before sending;
//   - "response": func(*Response), when a response is received;
//   - "error": func(error), when the request fails;
//   - "end": func(), after the request completes either way.
func (r *Request) On(event string, fn any) (*Request, error) {
	return r.addListener(event, fn, false)
}

// Once is like [*Request.On] but the listener runs at most once.
func (r *Request) Once(event string, fn any) (*Request, error) {
	return r.addListener(event, fn, true)
}

func (r *Request) addListener(event string, fn any, once bool) (*Request, error) {
	var ok bool
	switch event {
	case "request":
		_, ok = fn.(func(*Request))
	case "response":
		_, ok = fn.(func(*Response))
	case "error":
		_, ok = fn.(func(error))
	case "end":
		_, ok = fn.(func())
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q with %T", ErrUnsupportedEvent, event, fn)
	}
	r.events[event] = append(r.events[event], &listener{fn: fn, once: once})
	return r, nil
}

func (r *Request) emit(event string, arg any) {
	listeners := r.events[event]
	r.events[event] = slices.DeleteFunc(slices.Clone(listeners), func(l *listener) bool { return l.once })
	for _, l := range listeners {
		switch fn := l.fn.(type) {
		case func(*Request):
			fn(arg.(*Request))
		case func(*Response):
			fn(arg.(*Response))
		case func(error):
			fn(arg.(error))
		case func():
			fn()
		}
	}
}

// tlsConfig returns the TLS configuration of the default transport, or
// nil when no TLS material was provided.
func (r *Request) tlsConfig() (*tls.Config, error) {
	return r.tls.config()
}
