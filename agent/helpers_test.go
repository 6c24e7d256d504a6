// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bassosimone/declare"
	"github.com/bassosimone/slogstub"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned function, which returns a snapshot of the messages.
func newCapturingLogger() (*slog.Logger, func() []slog.Record) {
	var (
		mu      sync.Mutex
		records []slog.Record
	)
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), func() []slog.Record {
		mu.Lock()
		defer mu.Unlock()
		return append([]slog.Record{}, records...)
	}
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

// echoReply is what the /echo handler returns.
type echoReply struct {
	Method        string            `json:"method"`
	Path          string            `json:"path"`
	Query         string            `json:"query"`
	Headers       map[string]string `json:"headers"`
	Body          string            `json:"body"`
	Authorization string            `json:"authorization"`
}

// testServer is an [*httptest.Server] with endpoints exercising the agent.
type testServer struct {
	*httptest.Server

	// hits counts the requests received by /count.
	hits atomic.Int64

	// flaky counts the requests received by /flaky.
	flaky atomic.Int64
}

func newTestMux(ts *testServer) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		headers := map[string]string{}
		for name := range r.Header {
			headers[name] = r.Header.Get(name)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(&echoReply{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Headers:       headers,
			Body:          string(body),
			Authorization: r.Header.Get("Authorization"),
		})
	})

	mux.HandleFunc("/multipart", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		reply := map[string]any{}
		for name, values := range r.MultipartForm.Value {
			reply[name] = values
		}
		for name, files := range r.MultipartForm.File {
			file, _ := files[0].Open()
			data, _ := io.ReadAll(file)
			file.Close()
			reply["file:"+name] = files[0].Filename + ":" + string(data)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(reply)
	})

	mux.HandleFunc("/status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, _ := strconv.Atoi(r.PathValue("code"))
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(code)
		fmt.Fprintf(w, "status %d", code)
	})

	mux.HandleFunc("/redirect/{count}", func(w http.ResponseWriter, r *http.Request) {
		count, _ := strconv.Atoi(r.PathValue("count"))
		if count <= 0 {
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "landed")
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/redirect/%d", count-1), http.StatusFound)
	})

	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		fmt.Fprint(w, "a=1&b=2&b=3")
	})

	mux.HandleFunc("/text", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, "hello, world")
	})

	mux.HandleFunc("/large", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(make([]byte, 4096))
	})

	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})

	mux.HandleFunc("/count", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, ts.hits.Add(1))
	})

	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		if ts.flaky.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "recovered")
	})

	return mux
}

// newTestServer starts a plaintext [*testServer] closed at test cleanup.
func newTestServer(t *testing.T) *testServer {
	ts := &testServer{}
	ts.Server = httptest.NewServer(newTestMux(ts))
	t.Cleanup(ts.Close)
	return ts
}

// newTestTLSServer starts a TLS [*testServer] closed at test cleanup.
func newTestTLSServer(t *testing.T) *testServer {
	ts := &testServer{}
	ts.Server = httptest.NewTLSServer(newTestMux(ts))
	t.Cleanup(ts.Close)
	return ts
}

// newTestAgent returns an [*Agent] whose BaseURL points to ts.
func newTestAgent(ts *testServer, logger declare.SLogger) *Agent {
	a := NewAgent(declare.NewConfig(), logger)
	a.BaseURL = ts.URL
	return a
}

// decodeEcho converts the decoded body of a /echo response.
func decodeEcho(resp *Response) (*echoReply, error) {
	var reply echoReply
	if err := json.Unmarshal([]byte(resp.Text), &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
