// MIT License
//
// Copyright 2018 Canonical Ledgers, LLC
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS
// IN THE SOFTWARE.

package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	jrpc "github.com/AdamSLevy/jsonrpc2/v11"
)

var (
	// ErrWorkingNodeMissing is returned when every node in the Pool has
	// exceeded its retry budget.
	ErrWorkingNodeMissing = errors.New("no working node")

	// ErrEmptyReply is a transport level failure: the node answered with
	// no body.
	ErrEmptyReply = errors.New("empty reply")

	// Kinds of ServerError.
	ErrMissingRequiredActiveAuthority = errors.New(
		"missing required active authority")
	ErrNoMethodWithName = errors.New("no method with name")
	ErrNoAPIWithName    = errors.New("no api with name")
	ErrUnhandledRPC     = errors.New("unhandled rpc error")
)

// RetryableError wraps a failure that may succeed if the call is repeated,
// on the same node or the next one.
type RetryableError struct {
	URL string
	Err error
}

func (e RetryableError) Error() string {
	return fmt.Sprintf("%v: %v", e.URL, e.Err)
}

func (e RetryableError) Unwrap() error { return e.Err }

// NumRetriesReachedError is returned when the last working node exhausted
// its retry budget during a call. Err is the last failure seen.
type NumRetriesReachedError struct {
	Retries int
	Err     error
}

func (e NumRetriesReachedError) Error() string {
	return fmt.Sprintf("number of retries reached (%v): %v", e.Retries, e.Err)
}

func (e NumRetriesReachedError) Unwrap() error { return e.Err }

// ServerError is a well formed JSON-RPC error object returned by a node.
// Kind is one of ErrMissingRequiredActiveAuthority, ErrNoMethodWithName,
// ErrNoAPIWithName or ErrUnhandledRPC.
type ServerError struct {
	URL    string
	Method string
	Kind   error
	RPC    jrpc.Error
}

func (e ServerError) Error() string {
	return fmt.Sprintf("%v: %v: %v: %v",
		e.URL, e.Method, e.Kind, e.RPC.Message)
}

func (e ServerError) Unwrap() error { return e.Kind }

// HTTPError is a fatal HTTP level failure: a status that will not improve
// by retrying, or a body that is not JSON.
type HTTPError struct {
	URL    string
	Status int
	Msg    string
}

func (e HTTPError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%v: %v", e.URL, e.Msg)
	}
	return fmt.Sprintf("%v: http %v: %v", e.URL, e.Status, e.Msg)
}

// IsRetryable reports whether err, or an error it wraps, is a
// RetryableError.
func IsRetryable(err error) bool {
	var r RetryableError
	return errors.As(err, &r)
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	}
	return false
}

func fatalStatus(status int) bool {
	return status == http.StatusNotImplemented ||
		(status >= http.StatusHTTPVersionNotSupported &&
			status <= http.StatusNetworkAuthenticationRequired)
}

// errorPages maps the titles of the HTML error pages proxies in front of
// nodes return to the status they stand for.
var errorPages = []struct {
	Text   string
	Status int
}{
	{"Internal Server Error", http.StatusInternalServerError},
	{"Bad Gateway", http.StatusBadGateway},
	{"Service Temporarily Unavailable", http.StatusServiceUnavailable},
	{"Service Unavailable", http.StatusServiceUnavailable},
	{"Gateway Time-out", http.StatusGatewayTimeout},
	{"Gateway Timeout", http.StatusGatewayTimeout},
	{"Too Many Requests", http.StatusTooManyRequests},
	{"Not Implemented", http.StatusNotImplemented},
	{"HTTP Version not supported", http.StatusHTTPVersionNotSupported},
	{"Variant Also Negotiates", http.StatusVariantAlsoNegotiates},
	{"Insufficient Storage", http.StatusInsufficientStorage},
	{"Loop Detected", http.StatusLoopDetected},
	{"Not Extended", http.StatusNotExtended},
	{"Network Authentication Required",
		http.StatusNetworkAuthenticationRequired},
}

// classifyReply turns a reply that is not valid JSON into an error. Known
// error pages and statuses are classified by status, anything else is an
// invalid format.
func classifyReply(url string, status int, body []byte) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return RetryableError{URL: url, Err: ErrEmptyReply}
	}
	if !retryableStatus(status) && !fatalStatus(status) {
		for _, page := range errorPages {
			if strings.Contains(string(body), page.Text) {
				status = page.Status
				break
			}
		}
	}
	switch {
	case retryableStatus(status):
		return RetryableError{URL: url, Err: HTTPError{URL: url,
			Status: status, Msg: http.StatusText(status)}}
	case fatalStatus(status):
		return HTTPError{URL: url, Status: status,
			Msg: http.StatusText(status)}
	}
	return HTTPError{URL: url, Status: status,
		Msg: "invalid format, expected JSON"}
}

// retryableMessages are node errors that go away on their own.
var retryableMessages = []string{
	"Unable to acquire database lock",
	"Request Timeout",
	"Internal Error",
}

// classifyError maps a JSON-RPC error object to a ServerError, or to a
// RetryableError for transient node conditions.
func classifyError(url, method string, e jrpc.Error) error {
	msg := e.Message
	for _, m := range retryableMessages {
		if strings.Contains(msg, m) {
			return RetryableError{URL: url,
				Err: ServerError{URL: url, Method: method,
					Kind: ErrUnhandledRPC, RPC: e}}
		}
	}
	lower := strings.ToLower(msg)
	kind := ErrUnhandledRPC
	switch {
	case strings.Contains(lower, "missing required active authority"):
		kind = ErrMissingRequiredActiveAuthority
	case strings.Contains(lower, "could not find method"),
		strings.Contains(lower, "no method with name"):
		kind = ErrNoMethodWithName
	case strings.Contains(lower, "could not find api"),
		strings.Contains(lower, "no api with name"):
		kind = ErrNoAPIWithName
	}
	return ServerError{URL: url, Method: method, Kind: kind, RPC: e}
}
