// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

// ErrMixedBody indicates incompatible body operations, such as sending
// both a JSON object and multipart fields.
var ErrMixedBody = errors.New("agent: incompatible body data")

type formField struct {
	name  string
	value string
}

type formFile struct {
	field    string
	path     string
	filename string
	reader   io.Reader
}

// Send adds data to the request body.
//
// Maps are merged across calls and encoded as JSON, unless the type is
// form, in which case they are URL-encoded. Strings are appended to a
// previous string body (joined by "&" for forms) and default the type to
// form. Byte slices replace the body. Other values are encoded as JSON
// or by the function set with [*Request.Serialize].
func (r *Request) Send(data any) (*Request, error) {
	switch v := data.(type) {
	case nil:
		// nothing
	case map[string]any:
		switch prev := r.body.(type) {
		case nil:
			r.body = maps.Clone(v)
		case map[string]any:
			maps.Copy(prev, v)
		default:
			return nil, fmt.Errorf("%w: object after %T", ErrMixedBody, r.body)
		}
	case string:
		if r.Header.Get("Content-Type") == "" {
			r.Type("form")
		}
		switch prev := r.body.(type) {
		case nil:
			r.body = v
		case string:
			if r.isForm() {
				r.body = prev + "&" + v
			} else {
				r.body = prev + v
			}
		default:
			return nil, fmt.Errorf("%w: string after %T", ErrMixedBody, r.body)
		}
	default:
		r.body = data
	}
	return r, nil
}

// Field adds a multipart form field. The value may be a slice, which
// adds the field once per element. The name may also be a map from
// field names to values, in which case value is ignored.
func (r *Request) Field(name any, value any) (*Request, error) {
	switch v := name.(type) {
	case string:
		r.addField(v, value)
	case map[string]any:
		for _, key := range slices.Sorted(maps.Keys(v)) {
			r.addField(key, v[key])
		}
	default:
		return nil, fmt.Errorf("agent: field: unsupported name type %T", name)
	}
	return r, nil
}

func (r *Request) addField(name string, value any) {
	if value == nil {
		return
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.Type() != reflect.TypeFor[[]byte]() {
		for idx := range rv.Len() {
			r.fields = append(r.fields, formField{name, fmt.Sprint(rv.Index(idx).Interface())})
		}
		return
	}
	r.fields = append(r.fields, formField{name, fmt.Sprint(value)})
}

// Attach adds a multipart file. The file is either a path, a []byte, or
// an [io.Reader]. A nil file is ignored. The optional filename defaults
// to the field name for in-memory data.
func (r *Request) Attach(field string, file any, filename ...string) (*Request, error) {
	ff := formFile{field: field, filename: field}
	if len(filename) > 0 {
		ff.filename = filename[0]
	}
	switch v := file.(type) {
	case nil:
		return r, nil
	case string:
		ff.path = v
	case []byte:
		ff.reader = bytes.NewReader(v)
	case io.Reader:
		ff.reader = v
	default:
		return nil, fmt.Errorf("agent: attach: unsupported file type %T", file)
	}
	r.files = append(r.files, ff)
	return r, nil
}

func (r *Request) isForm() bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == mimeShorthands["form"]
}

func (r *Request) isMultipart() bool {
	return len(r.fields) > 0 || len(r.files) > 0
}

// writeBody moves the body into the resty request.
func (r *Request) writeBody(rr *resty.Request) error {
	if r.isMultipart() {
		return r.writeMultipart(rr)
	}
	if r.body == nil {
		return nil
	}
	if r.serializer != nil {
		if _, isString := r.body.(string); !isString {
			data, err := r.serializer(r.body)
			if err != nil {
				return err
			}
			rr.SetBody(data)
			return nil
		}
	}
	switch body := r.body.(type) {
	case string, []byte:
		rr.SetBody(body)
		return nil
	case map[string]any:
		if r.isForm() {
			rr.SetBody(encodeForm(body))
			return nil
		}
	}
	if r.Header.Get("Content-Type") == "" {
		rr.SetHeader("Content-Type", mimeShorthands["json"])
	}
	rr.SetBody(r.body)
	return nil
}

func (r *Request) writeMultipart(rr *resty.Request) error {
	if r.body != nil {
		return fmt.Errorf("%w: multipart fields and %T body", ErrMixedBody, r.body)
	}
	for _, field := range r.fields {
		rr.SetMultipartField(field.name, "", "", strings.NewReader(field.value))
	}
	for _, file := range r.files {
		if file.reader != nil {
			rr.SetFileReader(file.field, file.filename, file.reader)
			continue
		}
		rr.SetFile(file.field, file.path)
	}
	return nil
}

// encodePairs encodes m as "key=value" pairs in key order, repeating the
// key for each element of a slice value.
func encodePairs(m map[string]any) []string {
	var out []string
	for _, key := range slices.Sorted(maps.Keys(m)) {
		rv := reflect.ValueOf(m[key])
		if rv.Kind() == reflect.Slice {
			for idx := range rv.Len() {
				out = append(out, url.QueryEscape(key)+"="+url.QueryEscape(fmt.Sprint(rv.Index(idx).Interface())))
			}
			continue
		}
		out = append(out, url.QueryEscape(key)+"="+url.QueryEscape(fmt.Sprint(m[key])))
	}
	return out
}

func encodeForm(m map[string]any) string {
	return strings.Join(encodePairs(m), "&")
}
