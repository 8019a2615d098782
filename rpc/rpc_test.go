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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	jrpc "github.com/AdamSLevy/jsonrpc2/v11"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivekit/hivekit/chain"
	_log "github.com/hivekit/hivekit/log"
	"github.com/hivekit/hivekit/operation"
	"github.com/hivekit/hivekit/transaction"
)

var hiveConfig = map[string]string{
	"HIVE_BLOCKCHAIN_VERSION": "1.27.4",
	"HIVE_CHAIN_ID":           chain.Hive.ChainID.String(),
	"HIVE_ADDRESS_PREFIX":     "STM",
}

var legacyConfig = map[string]string{
	"STEEMIT_BLOCKCHAIN_VERSION": "0.19.2",
	"STEEMIT_ADDRESS_PREFIX":     "STM",
}

var props = map[string]interface{}{
	"head_block_number":           99830,
	"head_block_id":               "000185f685abf4dc7a4f0e2bd5b0f9a3c4e7c11f",
	"time":                        "2016-04-06T08:29:00",
	"current_witness":             "alice",
	"last_irreversible_block_num": 99810,
}

func testBlock(num uint32) map[string]interface{} {
	return map[string]interface{}{
		"previous":  fmt.Sprintf("%08x", num-1) + strings.Repeat("0", 32),
		"timestamp": "2016-04-06T08:29:00",
		"witness":   "alice",
		"block_id":  fmt.Sprintf("%08x", num) + strings.Repeat("0", 32),
		"transactions": []interface{}{map[string]interface{}{
			"ref_block_num": 1, "ref_block_prefix": 2,
			"expiration": "2016-04-06T08:29:27",
			"operations": []interface{}{[]interface{}{"vote",
				map[string]interface{}{"voter": "alice",
					"author": "bob", "permlink": "p",
					"weight": 10000}}},
			"extensions": []interface{}{},
			"signatures": []interface{}{},
		}},
		"transaction_ids": []string{strings.Repeat("ab", 20)},
	}
}

type fakeRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     uint64          `json:"id"`
}

type methodFunc func(params json.RawMessage) (interface{}, *jrpc.Error)

// fakeNode answers single and batch requests in either dialect. Methods are
// keyed "api.method".
type fakeNode struct {
	Legacy  bool
	Reverse bool
	Methods map[string]methodFunc

	mu    sync.Mutex
	calls []string
}

func newFakeNode(legacy bool, config interface{}) *fakeNode {
	api := "condenser_api"
	if legacy {
		api = "database_api"
	}
	n := &fakeNode{Legacy: legacy, Methods: map[string]methodFunc{}}
	n.Methods[api+".get_config"] = result(config)
	n.Methods[api+".get_dynamic_global_properties"] = result(props)
	n.Methods[api+".get_block"] = func(
		params json.RawMessage) (interface{}, *jrpc.Error) {
		var args []uint32
		if err := json.Unmarshal(params, &args); err != nil ||
			len(args) != 1 {
			return nil, &jrpc.Error{Code: -32602, Message: "bad params"}
		}
		if args[0] > 1000 {
			return nil, nil
		}
		return testBlock(args[0]), nil
	}
	return n
}

func result(v interface{}) methodFunc {
	return func(json.RawMessage) (interface{}, *jrpc.Error) { return v, nil }
}

func (n *fakeNode) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

func (n *fakeNode) handle(req fakeRequest) map[string]interface{} {
	n.mu.Lock()
	n.calls = append(n.calls, req.Method)
	n.mu.Unlock()

	res := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	name, params := req.Method, req.Params
	if n.Legacy {
		var call []json.RawMessage
		var api, method string
		if name != "call" || json.Unmarshal(params, &call) != nil ||
			len(call) != 3 || json.Unmarshal(call[0], &api) != nil ||
			json.Unmarshal(call[1], &method) != nil {
			res["error"] = jrpc.Error{Code: -32003, Message: fmt.Sprintf(
				"no method with name '%v'", name)}
			return res
		}
		name, params = api+"."+method, call[2]
	}
	fn, ok := n.Methods[name]
	if !ok {
		res["error"] = jrpc.Error{Code: -32601,
			Message: "Could not find method " + name}
		return res
	}
	v, err := fn(params)
	if err != nil {
		res["error"] = err
		return res
	}
	res["result"] = v
	return res
}

func (n *fakeNode) reply(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var reqs []fakeRequest
		json.Unmarshal(body, &reqs)
		ress := make([]map[string]interface{}, len(reqs))
		for i, req := range reqs {
			j := i
			if n.Reverse {
				j = len(reqs) - 1 - i
			}
			ress[j] = n.handle(req)
		}
		data, _ := json.Marshal(ress)
		return data
	}
	var req fakeRequest
	json.Unmarshal(body, &req)
	data, _ := json.Marshal(n.handle(req))
	return data
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.Header().Set("Content-Type", "application/json")
	w.Write(n.reply(body))
}

// statusNode always answers with status and body.
func statusNode(status int, body string, hits *int32) http.Handler {
	var mu sync.Mutex
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*hits++
		mu.Unlock()
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
}

type sleeps struct {
	mu sync.Mutex
	d  []time.Duration
}

func (s *sleeps) Get() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.d...)
}

func newTestClient(t *testing.T, opts Options, urls ...string) (*Client, *sleeps) {
	opts.Log = _log.Discard()
	c, err := NewClient(urls, &opts)
	require.NoError(t, err)
	s := &sleeps{}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		s.mu.Lock()
		s.d = append(s.d, d)
		s.mu.Unlock()
		return ctx.Err()
	}
	t.Cleanup(func() { c.Close() })
	return c, s
}

func TestPoolRotation(t *testing.T) {
	assert := assert.New(t)
	p, err := NewPool([]string{"a", "b", "c", "a"}, -1, 5)
	require.NoError(t, err)
	assert.Equal("a", p.URL())
	for _, expected := range []string{"b", "c", "a", "b"} {
		url, err := p.Next()
		require.NoError(t, err)
		assert.Equal(expected, url)
	}

	p, err = NewPool(ParseURLs("a, b;c"), 1, 5)
	require.NoError(t, err)
	for _, url := range []string{"a", "a", "b", "b"} {
		p.IncErrorCount(url)
	}
	assert.Equal([]string{"c"}, p.WorkingURLs())
	for i := 0; i < 3; i++ {
		url, err := p.Next()
		require.NoError(t, err)
		assert.Equal("c", url)
	}

	p.Freeze(true)
	p.IncErrorCount("c")
	p.IncErrorCount("c")
	_, err = p.Next()
	assert.Equal(ErrWorkingNodeMissing, err)
	p.Freeze(false)
	_, err = p.Next()
	assert.Equal(ErrWorkingNodeMissing, err)
	assert.Equal(0, p.WorkingCount())

	_, err = NewPool([]string{" ", ""}, 1, 1)
	assert.Error(err)
}

func TestPoolRotate(t *testing.T) {
	p, err := NewPool([]string{"a", "b", "c"}, -1, 1)
	require.NoError(t, err)
	url, err := p.Rotate("a")
	require.NoError(t, err)
	assert.Equal(t, "b", url)
	// A second caller that failed on a does not skip b.
	url, err = p.Rotate("a")
	require.NoError(t, err)
	assert.Equal(t, "b", url)

	cnt, exceeded := p.IncCallErrorCount("b")
	assert.Equal(t, 1, cnt)
	assert.False(t, exceeded)
	_, exceeded = p.IncCallErrorCount("b")
	assert.True(t, exceeded)
	p.ResetCallErrorCount("b")
	assert.Equal(t, 0, p.Nodes()[1].CallErrorCount)
}

func TestBackoff(t *testing.T) {
	for cnt, d := range map[int]time.Duration{
		-1: 0,
		0:  0,
		1:  500 * time.Millisecond,
		2:  2 * time.Second,
		3:  3500 * time.Millisecond,
		7:  9500 * time.Millisecond,
		8:  10 * time.Second,
		50: 10 * time.Second,
	} {
		assert.Equal(t, d, Backoff(cnt), "cnt %v", cnt)
	}
}

func TestSelectAPI(t *testing.T) {
	for _, test := range []struct {
		API, Method string
		Dialect     Dialect
		Expected    string
	}{
		{"", "get_block", Appbase, "condenser_api"},
		{"", "get_block", Legacy, "database_api"},
		{"block_api", "get_block", Appbase, "block_api"},
		{"", "get_ranked_posts", Appbase, "bridge"},
		{"", "get_discussion", Legacy, "bridge"},
		{"condenser_api", "get_discussion", Appbase, "condenser_api"},
	} {
		assert.Equal(t, test.Expected,
			SelectAPI(test.API, test.Method, test.Dialect),
			"%+v", test)
	}
}

func TestFrame(t *testing.T) {
	assert := assert.New(t)
	c := &Client{}
	for _, test := range []struct {
		Request
		Dialect
		Expected string
	}{{
		Request:  Request{Method: "get_block", Params: []interface{}{5}},
		Dialect:  Appbase,
		Expected: `{"method":"condenser_api.get_block","params":[5]}`,
	}, {
		Request:  Request{Method: "get_config"},
		Dialect:  Appbase,
		Expected: `{"method":"condenser_api.get_config","params":[]}`,
	}, {
		Request:  Request{API: "block_api", Method: "get_block"},
		Dialect:  Appbase,
		Expected: `{"method":"block_api.get_block","params":{}}`,
	}, {
		Request: Request{API: "database_api",
			Method: "find_accounts",
			Params: map[string]interface{}{"accounts": []string{"a"}}},
		Dialect:  Appbase,
		Expected: `{"method":"database_api.find_accounts","params":{"accounts":["a"]}}`,
	}, {
		Request:  Request{Method: "get_block", Params: []interface{}{5}},
		Dialect:  Legacy,
		Expected: `{"method":"call","params":["database_api","get_block",[5]]}`,
	}, {
		Request:  Request{API: "login_api", Method: "get_version"},
		Dialect:  Legacy,
		Expected: `{"method":"call","params":["login_api","get_version",[]]}`,
	}} {
		req := c.frame(test.Request, test.Dialect)
		assert.Equal("2.0", req.JSONRPC)
		data, err := json.Marshal(struct {
			Method string      `json:"method"`
			Params interface{} `json:"params"`
		}{req.Method, req.Params})
		require.NoError(t, err)
		assert.JSONEq(test.Expected, string(data))
	}
	assert.NotEqual(c.frame(Request{}, Appbase).ID,
		c.frame(Request{}, Appbase).ID)
}

func TestClientAppbase(t *testing.T) {
	assert := assert.New(t)
	handler := jrpc.HTTPRequestHandler(jrpc.MethodMap{
		"condenser_api.get_config": func(json.RawMessage) interface{} {
			return hiveConfig
		},
		"condenser_api.get_dynamic_global_properties": func(
			json.RawMessage) interface{} {
			return props
		},
	})
	srv := httptest.NewServer(http.HandlerFunc(handler))
	defer srv.Close()

	c, sleeps := newTestClient(t, DefaultOptions(), srv.URL)
	assert.Equal(Disconnected, c.State())
	ctx := context.Background()

	d, err := c.Dialect(ctx)
	require.NoError(t, err)
	assert.Equal(Appbase, d)
	assert.Equal(Connected, c.State())
	assert.Equal(srv.URL, c.URL())

	p, err := c.Chain(ctx)
	require.NoError(t, err)
	assert.Equal(chain.Hive.Name, p.Name)

	dgp, err := c.GetDynamicGlobalProperties(ctx)
	require.NoError(t, err)
	assert.Equal(uint32(99830), dgp.HeadBlockNumber)
	assert.Equal(uint32(99810), dgp.LastIrreversibleBlockNum)
	num, prefix, err := dgp.Reference().RefBlock()
	require.NoError(t, err)
	assert.Equal(uint16(34294), num)
	assert.Equal(uint32(3707022213), prefix)

	assert.Empty(sleeps.Get())
}

func TestClientLegacy(t *testing.T) {
	assert := assert.New(t)
	node := newFakeNode(true, legacyConfig)
	srv := httptest.NewServer(node)
	defer srv.Close()

	c, _ := newTestClient(t, DefaultOptions(), srv.URL)
	ctx := context.Background()

	d, err := c.Dialect(ctx)
	require.NoError(t, err)
	assert.Equal(Legacy, d)
	p, err := c.Chain(ctx)
	require.NoError(t, err)
	assert.Equal(chain.SteemLegacy.Name, p.Name)

	dgp, err := c.GetDynamicGlobalProperties(ctx)
	require.NoError(t, err)
	assert.Equal("alice", dgp.CurrentWitness)

	b, err := c.GetBlock(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, b)
	n, err := b.Number()
	require.NoError(t, err)
	assert.Equal(uint32(7), n)
	require.Len(t, b.Transactions, 1)
	assert.Equal("vote", b.Transactions[0].Operations[0].Name)

	b, err = c.GetBlock(ctx, 5000)
	require.NoError(t, err)
	assert.Nil(b)

	assert.Equal([]string{"condenser_api.get_config",
		"call", "call", "call", "call"}, node.Calls())
}

func TestClientRotatesAwayFromFailingNode(t *testing.T) {
	assert := assert.New(t)
	var hits int32
	bad := httptest.NewServer(statusNode(http.StatusServiceUnavailable,
		"<html>503 Service Unavailable</html>", &hits))
	defer bad.Close()
	good := httptest.NewServer(newFakeNode(false, hiveConfig))
	defer good.Close()

	c, sleeps := newTestClient(t, Options{NumRetries: 0, NumRetriesCall: 2},
		bad.URL, good.URL)
	dgp, err := c.GetDynamicGlobalProperties(context.Background())
	require.NoError(t, err)
	assert.Equal(uint32(99830), dgp.HeadBlockNumber)

	assert.Equal(int32(3), hits)
	assert.Equal([]time.Duration{Backoff(1), Backoff(2)}, sleeps.Get())
	assert.Equal([]string{good.URL}, c.Pool.WorkingURLs())
	nodes := c.Pool.Nodes()
	assert.Equal(1, nodes[0].ErrorCount)
	assert.Equal(0, nodes[1].ErrorCount)
	assert.Equal(good.URL, c.URL())
}

func TestClientNumRetriesReached(t *testing.T) {
	assert := assert.New(t)
	var hits int32
	srv := httptest.NewServer(statusNode(http.StatusBadGateway,
		"Bad Gateway", &hits))
	defer srv.Close()

	c, sleeps := newTestClient(t, Options{NumRetries: 1, NumRetriesCall: 0},
		srv.URL)
	ctx := context.Background()
	_, err := c.GetDynamicGlobalProperties(ctx)
	var reached NumRetriesReachedError
	require.True(t, errors.As(err, &reached), "%v", err)
	assert.Equal(1, reached.Retries)
	var httpErr HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(http.StatusBadGateway, httpErr.Status)
	assert.Equal(int32(2), hits)
	assert.Equal([]time.Duration{Backoff(1)}, sleeps.Get())

	_, err = c.GetDynamicGlobalProperties(ctx)
	assert.Equal(ErrWorkingNodeMissing, err)
	assert.Equal(int32(2), hits)
}

func TestClientFatalStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(statusNode(http.StatusHTTPVersionNotSupported,
		"HTTP Version not supported", &hits))
	defer srv.Close()

	c, sleeps := newTestClient(t, DefaultOptions(), srv.URL)
	_, err := c.GetDynamicGlobalProperties(context.Background())
	var httpErr HTTPError
	require.True(t, errors.As(err, &httpErr), "%v", err)
	assert.Equal(t, http.StatusHTTPVersionNotSupported, httpErr.Status)
	assert.False(t, IsRetryable(err))
	// Both dialects were probed, nothing was retried.
	assert.Equal(t, int32(2), hits)
	assert.Empty(t, sleeps.Get())
}

func TestClientServerErrors(t *testing.T) {
	assert := assert.New(t)
	node := newFakeNode(false, hiveConfig)
	node.Methods["condenser_api.broadcast_transaction"] = func(
		json.RawMessage) (interface{}, *jrpc.Error) {
		return nil, &jrpc.Error{Code: -32000, Message: "missing required " +
			"active authority: Missing Active Authority alice"}
	}
	var locked int
	node.Methods["condenser_api.get_accounts"] = func(
		json.RawMessage) (interface{}, *jrpc.Error) {
		if locked++; locked == 1 {
			return nil, &jrpc.Error{Code: -32003,
				Message: "Unable to acquire database lock"}
		}
		return []interface{}{map[string]interface{}{
			"id": 7, "name": "alice", "balance": "1.000 HIVE"}}, nil
	}
	srv := httptest.NewServer(node)
	defer srv.Close()
	c, sleeps := newTestClient(t, DefaultOptions(), srv.URL)
	ctx := context.Background()

	err := c.Call(ctx, Request{Method: "nope"}, nil)
	assert.True(errors.Is(err, ErrNoMethodWithName), "%v", err)

	err = c.Call(ctx, Request{API: "nope_api", Method: "nope"}, nil)
	var srvErr ServerError
	require.True(t, errors.As(err, &srvErr))
	assert.Equal(srv.URL, srvErr.URL)
	assert.Equal(ErrNoMethodWithName, srvErr.Kind)

	accounts, err := c.GetAccounts(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal("alice", accounts[0].Name)
	assert.Contains(string(accounts[0].Raw), `"balance"`)
	assert.Equal([]time.Duration{Backoff(1)}, sleeps.Get())

	_, err = c.BroadcastTransaction(ctx, &transaction.Transaction{}, false)
	assert.Equal(transaction.ErrNoOperations, err)

	op, err := operation.New(chain.Hive, "vote", operation.Fields{
		"voter": "alice", "author": "bob", "permlink": "p",
		"weight": 10000})
	require.NoError(t, err)
	tx := transaction.Build(1, 2, time.Now(), op)
	_, err = c.BroadcastTransaction(ctx, tx, false)
	assert.True(errors.Is(err, ErrMissingRequiredActiveAuthority), "%v", err)
	assert.False(IsRetryable(err))
}

func TestClassifyReply(t *testing.T) {
	for _, test := range []struct {
		Name      string
		Status    int
		Body      string
		Retryable bool
		Status2   int
	}{
		{"empty", 200, " ", true, 0},
		{"bad gateway page", 200, "<h1>Bad Gateway</h1>", true, 502},
		{"gateway timeout", 504, "oops", true, 504},
		{"too many requests", 429, "slow down", true, 429},
		{"not implemented", 501, "x", false, 501},
		{"loop detected page", 200, "Loop Detected", false, 508},
		{"garbage", 200, "hello", false, 200},
	} {
		t.Run(test.Name, func(t *testing.T) {
			err := classifyReply("u", test.Status, []byte(test.Body))
			assert.Equal(t, test.Retryable, IsRetryable(err))
			var httpErr HTTPError
			if test.Status2 == 0 {
				assert.True(t, errors.Is(err, ErrEmptyReply))
				return
			}
			require.True(t, errors.As(err, &httpErr))
			assert.Equal(t, test.Status2, httpErr.Status)
		})
	}
}

func TestClassifyError(t *testing.T) {
	for msg, kind := range map[string]error{
		"missing required active authority: x":      ErrMissingRequiredActiveAuthority,
		"Could not find method get_foo":             ErrNoMethodWithName,
		"itr != end: no method with name 'get_foo'": ErrNoMethodWithName,
		"Could not find API foo_api":                ErrNoAPIWithName,
		"Assert Exception: balance too low":         ErrUnhandledRPC,
	} {
		err := classifyError("u", "m", jrpc.Error{Message: msg})
		assert.False(t, IsRetryable(err), msg)
		assert.True(t, errors.Is(err, kind), msg)
	}
	err := classifyError("u", "m", jrpc.Error{Message: "Request Timeout"})
	assert.True(t, IsRetryable(err))
}

func TestBatch(t *testing.T) {
	assert := assert.New(t)
	node := newFakeNode(false, hiveConfig)
	node.Reverse = true
	srv := httptest.NewServer(node)
	defer srv.Close()
	c, _ := newTestClient(t, DefaultOptions(), srv.URL)
	ctx := context.Background()

	blocks, err := c.GetBlocksBatch(ctx, 100, 5)
	require.NoError(t, err)
	require.Len(t, blocks, 5)
	for i, b := range blocks {
		n, err := b.Number()
		require.NoError(t, err)
		assert.Equal(uint32(100+i), n)
	}

	blocks, err = c.GetBlocksBatch(ctx, 999, 3)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.NotNil(blocks[1])
	assert.Nil(blocks[2])

	empty := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if bytes.HasPrefix(bytes.TrimSpace(body), []byte("[")) {
				io.WriteString(w, "[]")
				return
			}
			w.Write(node.reply(body))
		}))
	defer empty.Close()
	c, _ = newTestClient(t, DefaultOptions(), empty.URL)
	blocks, err = c.GetBlocksBatch(ctx, 100, 5)
	require.NoError(t, err)
	assert.Empty(blocks)
}

func TestWebSocket(t *testing.T) {
	assert := assert.New(t)
	node := newFakeNode(false, hiveConfig)
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage,
					node.reply(msg)); err != nil {
					return
				}
			}
		}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	c, _ := newTestClient(t, DefaultOptions(), url)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		dgp, err := c.GetDynamicGlobalProperties(ctx)
		require.NoError(t, err)
		assert.Equal(uint32(99830), dgp.HeadBlockNumber)
	}
	blocks, err := c.GetBlocksBatch(ctx, 10, 2)
	require.NoError(t, err)
	assert.Len(blocks, 2)
	assert.Equal(Connected, c.State())
	assert.Len(node.Calls(), 6)
}

func TestClientRotatesAwayFromUnprobedNode(t *testing.T) {
	assert := assert.New(t)
	var hits int32
	bad := httptest.NewServer(statusNode(http.StatusNotFound,
		"<html><head><title>404 Not Found</title></head></html>", &hits))
	defer bad.Close()
	good := httptest.NewServer(newFakeNode(false, hiveConfig))
	defer good.Close()

	c, sleeps := newTestClient(t, DefaultOptions(), bad.URL, good.URL)
	dgp, err := c.GetDynamicGlobalProperties(context.Background())
	require.NoError(t, err)
	assert.Equal(uint32(99830), dgp.HeadBlockNumber)

	// Both dialects were probed once on the bad node.
	assert.Equal(int32(2), hits)
	assert.Empty(sleeps.Get())
	assert.Equal(good.URL, c.URL())
	nodes := c.Pool.Nodes()
	assert.Equal(1, nodes[0].ErrorCount)
	assert.Equal(0, nodes[1].ErrorCount)
}

func TestClientNoNodeProbes(t *testing.T) {
	assert := assert.New(t)
	var hits int32
	a := httptest.NewServer(statusNode(http.StatusNotFound,
		"<html>404 Not Found</html>", &hits))
	defer a.Close()
	b := httptest.NewServer(statusNode(http.StatusNotImplemented,
		"Not Implemented", &hits))
	defer b.Close()

	c, sleeps := newTestClient(t, DefaultOptions(), a.URL, b.URL)
	_, err := c.GetDynamicGlobalProperties(context.Background())
	var httpErr HTTPError
	require.True(t, errors.As(err, &httpErr), "%v", err)
	assert.Equal(http.StatusNotImplemented, httpErr.Status)
	// Each node is probed in both dialects once, then the call gives up.
	assert.Equal(int32(4), hits)
	assert.Empty(sleeps.Get())
	for _, node := range c.Pool.Nodes() {
		assert.Equal(1, node.ErrorCount, node.URL)
	}
}

func TestResponseDetail(t *testing.T) {
	assert := assert.New(t)
	res := response{Error: json.RawMessage(`{"code":-32000,` +
		`"message":"Assert Exception","detail":"could not find method foo"}`)}
	_, err := res.result("u", "m")
	assert.True(errors.Is(err, ErrNoMethodWithName), "%v", err)

	// A detail that is not a string leaves the message alone.
	res.Error = json.RawMessage(`{"code":-32000,` +
		`"message":"could not find api foo_api","detail":{"stack":[]}}`)
	_, err = res.result("u", "m")
	assert.True(errors.Is(err, ErrNoAPIWithName), "%v", err)

	res.Error = json.RawMessage(`"oops"`)
	_, err = res.result("u", "m")
	var httpErr HTTPError
	assert.True(errors.As(err, &httpErr), "%v", err)
}

func TestMarshalSingle(t *testing.T) {
	c := &Client{}
	data, err := c.frame(Request{Method: "get_block",
		Params: []interface{}{5}}, Appbase).MarshalSingle()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,`+
		`"method":"condenser_api.get_block","params":[5]}`, string(data))
}
