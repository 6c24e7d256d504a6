// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

// Response is the outcome of executing a [*Request].
type Response struct {
	// Body is the decoded body: the result of the [*Request.Parse]
	// parser, the raw bytes for the "blob" and "arraybuffer" response
	// types, a JSON value, [url.Values] for forms, or nil.
	Body any

	// Charset is the charset parameter of the Content-Type.
	Charset string

	// Header contains the response headers.
	Header http.Header

	// Raw is the underlying [*http.Response].
	Raw *http.Response

	// Request is the request that produced this response.
	Request *Request

	// Status is the HTTP status code.
	Status int

	// StatusType is the first digit of Status.
	StatusType int

	// Stream is the unread body when buffering is disabled.
	Stream io.ReadCloser

	// Text is the body when buffering is enabled.
	Text string

	// Type is the media type of the Content-Type, without parameters.
	Type string
}

func newResponse(req *Request, rresp *resty.Response) *Response {
	resp := &Response{
		Header:     rresp.Header(),
		Raw:        rresp.RawResponse,
		Request:    req,
		Status:     rresp.StatusCode(),
		StatusType: rresp.StatusCode() / 100,
		Text:       string(rresp.Body()),
	}
	if mt, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		resp.Type, resp.Charset = mt, params["charset"]
	}
	return resp
}

// decode fills Body from Text.
func (resp *Response) decode(unmarshal func(data []byte, v any) error) (err error) {
	req := resp.Request
	switch {
	case req.parser != nil:
		resp.Body, err = req.parser(resp.Type, []byte(resp.Text))
	case req.responseType == "blob" || req.responseType == "arraybuffer":
		resp.Body = []byte(resp.Text)
	case resp.Text == "" || req.Method == http.MethodHead:
		// nothing
	case resp.Type == "application/json" || strings.HasSuffix(resp.Type, "+json"):
		var body any
		err = unmarshal([]byte(resp.Text), &body)
		resp.Body = body
	case resp.Type == mimeShorthands["form"]:
		resp.Body, err = url.ParseQuery(resp.Text)
	}
	return
}

// OK returns whether the status is 2xx.
func (resp *Response) OK() bool {
	return resp.StatusType == 2
}

// Get returns the value of a response header.
func (resp *Response) Get(field string) string {
	return resp.Header.Get(field)
}

// HTTPError is the error of a request whose response is not successful.
type HTTPError struct {
	// Method is the request method.
	Method string

	// URL is the request URL.
	URL string

	// Status is the response status code.
	Status int

	// Response is the unsuccessful response.
	Response *Response
}

// Error implements error.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("agent: %s %s: %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
}
