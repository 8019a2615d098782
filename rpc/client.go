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

// Package rpc implements a JSON-RPC client for graphene nodes that spreads
// calls over a Pool of nodes, retries transient failures with backoff and
// speaks both the legacy "call" dialect and the namespaced appbase dialect.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jrpc "github.com/AdamSLevy/jsonrpc2/v11"

	"github.com/hivekit/hivekit/chain"
	_log "github.com/hivekit/hivekit/log"
)

// Options configures a Client.
type Options struct {
	// NumRetries is how many rotations away from a node are tolerated
	// before the node is considered down. Negative means unlimited.
	NumRetries int
	// NumRetriesCall is how many times a failed call is repeated on the
	// same node before rotating. Negative means unlimited.
	NumRetriesCall int
	// Timeout bounds each request.
	Timeout time.Duration

	Log _log.Log
}

// Defaults
const (
	DefaultNumRetries     = 100
	DefaultNumRetriesCall = 5
	DefaultTimeout        = 60 * time.Second
)

// DefaultOptions returns the Options used when NewClient is passed nil.
func DefaultOptions() Options {
	return Options{
		NumRetries:     DefaultNumRetries,
		NumRetriesCall: DefaultNumRetriesCall,
		Timeout:        DefaultTimeout,
	}
}

// Dialect is the calling convention a node speaks.
type Dialect int

const (
	DialectUnknown Dialect = iota
	Legacy
	Appbase
)

func (d Dialect) String() string {
	switch d {
	case Legacy:
		return "legacy"
	case Appbase:
		return "appbase"
	}
	return "unknown"
}

// State of the Client's connection to the current node.
type State int

const (
	Disconnected State = iota
	Connecting
	ProtocolProbe
	Connected
)

func (s State) String() string {
	return [...]string{"disconnected", "connecting", "protocol-probe",
		"connected"}[s]
}

// Request names a method and its arguments. API selects the namespace,
// otherwise one is chosen for the Method and the node's Dialect.
type Request struct {
	API    string
	Method string
	Params interface{}

	// NumRetriesCall overrides Options.NumRetriesCall when not zero.
	NumRetriesCall int
}

// Client makes JSON-RPC calls through a Pool. It is safe for concurrent use.
type Client struct {
	Pool *Pool

	log     _log.Log
	http    *HTTPTransport
	ws      *WSTransport
	sleep   func(context.Context, time.Duration) error
	nextID  uint64
	probeMu sync.Mutex

	mu      sync.Mutex
	state   State
	url     string
	dialect Dialect
	config  map[string]json.RawMessage
}

// NewClient returns a Client over urls. A nil opts uses DefaultOptions.
func NewClient(urls []string, opts *Options) (*Client, error) {
	o := DefaultOptions()
	if opts != nil {
		o = *opts
	}
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Log.IsZero() {
		o.Log = _log.New("rpc")
	}
	pool, err := NewPool(urls, o.NumRetries, o.NumRetriesCall)
	if err != nil {
		return nil, err
	}
	c := Client{
		Pool: pool,
		log:  o.Log,
		http: &HTTPTransport{},
		ws:   &WSTransport{Timeout: o.Timeout},
		sleep: func(ctx context.Context, d time.Duration) error {
			if d <= 0 {
				return ctx.Err()
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
	c.http.Client.Timeout = o.Timeout
	return &c, nil
}

// Close drops any open connection.
func (c *Client) Close() error {
	c.mu.Lock()
	c.state = Disconnected
	c.mu.Unlock()
	c.http.Close()
	return c.ws.Close()
}

// State returns the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL returns the node the Client is connected to, if any.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Dialect connects if needed and returns the dialect of the current node.
func (c *Client) Dialect(ctx context.Context) (Dialect, error) {
	var d Dialect
	err := c.do(ctx, func(url string, dialect Dialect) error {
		d = dialect
		return nil
	})
	return d, err
}

// Config returns the chain configuration the current node reported when
// the connection was probed.
func (c *Client) Config(ctx context.Context) (map[string]json.RawMessage, error) {
	var config map[string]json.RawMessage
	err := c.do(ctx, func(string, Dialect) error {
		c.mu.Lock()
		config = c.config
		c.mu.Unlock()
		return nil
	})
	return config, err
}

// Chain identifies the network of the current node from its configuration.
func (c *Client) Chain(ctx context.Context) (chain.Params, error) {
	config, err := c.Config(ctx)
	if err != nil {
		return chain.Params{}, err
	}
	return chain.FromConfig(config)
}

// bridgeMethods are only served by the bridge namespace.
var bridgeMethods = map[string]struct{}{
	"get_ranked_posts":      {},
	"get_discussion":        {},
	"get_account_posts":     {},
	"get_community":         {},
	"account_notifications": {},
	"get_profile":           {},
}

// SelectAPI returns the namespace a call of method is sent to.
func SelectAPI(api, method string, d Dialect) string {
	if api != "" {
		return api
	}
	if _, ok := bridgeMethods[method]; ok {
		return "bridge"
	}
	if d == Legacy {
		return "database_api"
	}
	return "condenser_api"
}

// request is one framed call. Batches marshal it directly so replies can
// be matched back by ID.
type request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      uint64      `json:"id"`
}

// MarshalSingle encodes req as a standalone JSON-RPC request.
func (req request) MarshalSingle() ([]byte, error) {
	return json.Marshal(jrpc.NewRequest(req.Method, req.ID, req.Params))
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  json.RawMessage `json:"error"`
	ID     uint64          `json:"id"`
}

func listParams(params interface{}) interface{} {
	if params == nil {
		return []interface{}{}
	}
	return params
}

func (c *Client) frame(r Request, d Dialect) request {
	api := SelectAPI(r.API, r.Method, d)
	req := request{JSONRPC: "2.0", ID: atomic.AddUint64(&c.nextID, 1)}
	switch {
	case d == Legacy:
		req.Method = "call"
		req.Params = []interface{}{api, r.Method, listParams(r.Params)}
	case api == "condenser_api":
		req.Method = api + "." + r.Method
		req.Params = listParams(r.Params)
	default:
		req.Method = api + "." + r.Method
		req.Params = r.Params
		if req.Params == nil {
			req.Params = struct{}{}
		}
	}
	return req
}

// decode parses a single response and returns its result or its error.
func decode(url, method string, reply Reply) (json.RawMessage, error) {
	var res response
	if err := json.Unmarshal(reply.Body, &res); err != nil {
		return nil, classifyReply(url, reply.Status, reply.Body)
	}
	return res.result(url, method)
}

func (res response) result(url, method string) (json.RawMessage, error) {
	if len(res.Error) > 0 && !bytes.Equal(res.Error, []byte("null")) {
		var e jrpc.Error
		if err := json.Unmarshal(res.Error, &e); err != nil {
			return nil, HTTPError{URL: url, Msg: fmt.Sprintf(
				"invalid error object: %s", res.Error)}
		}
		var detail struct {
			Detail json.RawMessage `json:"detail"`
		}
		if err := json.Unmarshal(res.Error, &detail); err != nil {
			return nil, HTTPError{URL: url, Msg: fmt.Sprintf(
				"invalid error object: %s", res.Error)}
		}
		// Only a string detail replaces the message.
		var msg string
		if err := json.Unmarshal(detail.Detail, &msg); err == nil &&
			msg != "" {
			e.Message = msg
		}
		return nil, classifyError(url, method, e)
	}
	if len(res.Result) == 0 {
		return nil, RetryableError{URL: url, Err: ErrEmptyReply}
	}
	return res.Result, nil
}

// Call sends r and unmarshals its result into result, unless result is nil.
func (c *Client) Call(ctx context.Context, r Request, result interface{}) error {
	raw, err := c.CallRaw(ctx, r)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("%v: %w", r.Method, err)
	}
	return nil
}

// CallRaw sends r and returns the raw result.
func (c *Client) CallRaw(ctx context.Context, r Request) (json.RawMessage, error) {
	var result json.RawMessage
	err := c.retry(ctx, r.NumRetriesCall, func(url string, d Dialect) error {
		payload, err := c.frame(r, d).MarshalSingle()
		if err != nil {
			return err
		}
		reply, err := c.roundTrip(ctx, url, payload)
		if err != nil {
			return err
		}
		result, err = decode(url, r.Method, reply)
		return err
	})
	return result, err
}

// Batch sends every request in a single JSON-RPC batch and returns the
// results in request order. The first error object in the batch is
// returned as the error. A node that does not support batches may return
// fewer results than requests.
func (c *Client) Batch(ctx context.Context, rs ...Request) ([]json.RawMessage, error) {
	if len(rs) == 0 {
		return nil, nil
	}
	var results []json.RawMessage
	err := c.retry(ctx, 0, func(url string, d Dialect) error {
		reqs := make([]request, len(rs))
		order := make(map[uint64]int, len(rs))
		for i, r := range rs {
			reqs[i] = c.frame(r, d)
			order[reqs[i].ID] = i
		}
		payload, err := json.Marshal(reqs)
		if err != nil {
			return err
		}
		reply, err := c.roundTrip(ctx, url, payload)
		if err != nil {
			return err
		}
		var ress []response
		if err := json.Unmarshal(reply.Body, &ress); err != nil {
			// A single object is an error for the whole batch.
			if _, err := decode(url, "batch", reply); err != nil {
				return err
			}
			return HTTPError{URL: url, Status: reply.Status,
				Msg: "invalid batch reply"}
		}
		sort.SliceStable(ress, func(i, j int) bool {
			return order[ress[i].ID] < order[ress[j].ID]
		})
		results = make([]json.RawMessage, 0, len(ress))
		for _, res := range ress {
			i, ok := order[res.ID]
			if !ok {
				return HTTPError{URL: url, Msg: fmt.Sprintf(
					"unexpected id %v in batch reply", res.ID)}
			}
			raw, err := res.result(url, rs[i].Method)
			if err != nil {
				return err
			}
			results = append(results, raw)
		}
		return nil
	})
	return results, err
}

func (c *Client) roundTrip(ctx context.Context, url string,
	payload []byte) (Reply, error) {
	var t Transport = c.http
	if isWebSocket(url) {
		t = c.ws
	}
	reply, err := t.RoundTrip(ctx, url, payload)
	if err != nil {
		if ctx.Err() != nil {
			return Reply{}, ctx.Err()
		}
		return Reply{}, RetryableError{URL: url, Err: err}
	}
	return reply, nil
}

// do runs fn once against the connected node, connecting first if needed,
// with the same retry policy as a call.
func (c *Client) do(ctx context.Context, fn func(string, Dialect) error) error {
	return c.retry(ctx, 0, fn)
}

// retry runs attempt until it succeeds or fails with an error that is not
// a RetryableError. A retryable failure is repeated on the same node with
// Backoff until the node's call budget is spent, then the node is charged a
// failure and the Pool rotates. A node whose protocol probe fails is charged
// and rotated away from at once.
func (c *Client) retry(ctx context.Context, numRetriesCall int,
	attempt func(url string, d Dialect) error) error {
	if c.Pool.WorkingCount() == 0 {
		return ErrWorkingNodeMissing
	}
	maxCall := c.Pool.NumRetriesCall
	if numRetriesCall != 0 {
		maxCall = numRetriesCall
	}
	var setupFailed map[string]struct{}
	for {
		url, d, err := c.connect(ctx)
		if err != nil && !IsRetryable(err) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// A node that cannot be probed is charged and left for the
			// next one. Each node is tried at most once per call.
			if setupFailed == nil {
				setupFailed = make(map[string]struct{})
			}
			setupFailed[url] = struct{}{}
			errCnt := c.Pool.IncErrorCount(url)
			c.log.Warnf("Protocol probe failed on node %v (%v/%v): %v",
				url, errCnt, c.Pool.NumRetries, err)
			c.disconnect(url)
			next, nerr := c.Pool.Rotate(url)
			if nerr != nil {
				return NumRetriesReachedError{Retries: c.Pool.NumRetries,
					Err: err}
			}
			if _, tried := setupFailed[next]; tried {
				return err
			}
			c.log.Infof("Switching to node %v", next)
			continue
		}
		if err == nil {
			err = attempt(url, d)
			if err == nil {
				c.Pool.ResetCallErrorCount(url)
				return nil
			}
			if !IsRetryable(err) {
				return err
			}
		}

		cnt, exceeded := c.Pool.IncCallErrorCount(url)
		if numRetriesCall != 0 {
			exceeded = maxCall >= 0 && cnt > maxCall
		}
		if !exceeded {
			c.log.Warnf("Retry RPC call on node %v (%v/%v): %v",
				url, cnt, maxCall, err)
			c.resetTransport(url)
			if err := c.sleep(ctx, Backoff(cnt)); err != nil {
				return err
			}
			continue
		}

		errCnt := c.Pool.IncErrorCount(url)
		c.log.Warnf("Lost connection or internal error on node %v (%v/%v)",
			url, errCnt, c.Pool.NumRetries)
		c.disconnect(url)
		next, nerr := c.Pool.Rotate(url)
		if nerr != nil {
			return NumRetriesReachedError{Retries: c.Pool.NumRetries,
				Err: err}
		}
		if next == url {
			if err := c.sleep(ctx, Backoff(errCnt)); err != nil {
				return err
			}
		} else {
			c.log.Infof("Switching to node %v", next)
		}
	}
}

func (c *Client) resetTransport(url string) {
	if isWebSocket(url) {
		c.ws.Reset(url)
	}
}

// disconnect drops the connection to url if it is still the current one.
func (c *Client) disconnect(url string) {
	c.mu.Lock()
	if c.url == url {
		c.state = Disconnected
		c.url = ""
	}
	c.mu.Unlock()
	c.resetTransport(url)
}

// connect returns the current node and its dialect, probing it first if
// the Client is not connected to it.
func (c *Client) connect(ctx context.Context) (string, Dialect, error) {
	c.mu.Lock()
	if c.state == Connected && c.url == c.Pool.URL() {
		defer c.mu.Unlock()
		return c.url, c.dialect, nil
	}
	c.mu.Unlock()

	c.probeMu.Lock()
	defer c.probeMu.Unlock()
	// Pin the cursor so concurrent rotations cannot move it mid probe.
	c.Pool.Freeze(true)
	defer c.Pool.Freeze(false)
	url := c.Pool.URL()

	c.mu.Lock()
	if c.state == Connected && c.url == url {
		defer c.mu.Unlock()
		return c.url, c.dialect, nil
	}
	c.state, c.url = Connecting, url
	c.mu.Unlock()

	c.setState(ProtocolProbe)
	d, config, err := c.probe(ctx, url)
	if err != nil {
		c.setState(Disconnected)
		return url, DialectUnknown, err
	}
	c.log.Debugf("Node %v speaks the %v dialect", url, d)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state, c.dialect, c.config = Connected, d, config
	return url, d, nil
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// probe asks the node for its chain configuration, first in the appbase
// dialect and then in the legacy one, and tells them apart by the keys the
// configuration uses.
func (c *Client) probe(ctx context.Context,
	url string) (Dialect, map[string]json.RawMessage, error) {
	config, err := c.getConfig(ctx, url, Appbase)
	if err != nil {
		if IsRetryable(err) || ctx.Err() != nil {
			return DialectUnknown, nil, err
		}
		c.log.Debugf("appbase probe of %v failed: %v", url, err)
		if config, err = c.getConfig(ctx, url, Legacy); err != nil {
			return DialectUnknown, nil, err
		}
	}
	for key := range config {
		if strings.HasPrefix(key, "STEEMIT_") {
			return Legacy, config, nil
		}
	}
	for key := range config {
		if strings.HasSuffix(key, "_BLOCKCHAIN_VERSION") {
			return Appbase, config, nil
		}
	}
	return Legacy, config, nil
}

func (c *Client) getConfig(ctx context.Context, url string,
	d Dialect) (map[string]json.RawMessage, error) {
	api := "condenser_api"
	if d == Legacy {
		api = "database_api"
	}
	payload, err := c.frame(Request{API: api,
		Method: "get_config"}, d).MarshalSingle()
	if err != nil {
		return nil, err
	}
	reply, err := c.roundTrip(ctx, url, payload)
	if err != nil {
		return nil, err
	}
	raw, err := decode(url, "get_config", reply)
	if err != nil {
		return nil, err
	}
	var config map[string]json.RawMessage
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, HTTPError{URL: url, Status: reply.Status,
			Msg: fmt.Sprintf("invalid get_config result: %v", err)}
	}
	return config, nil
}
