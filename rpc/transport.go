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
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Reply is the raw answer of a node. Status is zero for WebSocket replies.
type Reply struct {
	Status int
	Body   []byte
}

// Transport sends one JSON-RPC payload to a node and returns its reply. An
// error from RoundTrip is a transport failure and is always retried.
type Transport interface {
	RoundTrip(ctx context.Context, url string, payload []byte) (Reply, error)
	// Reset drops any connection to url so the next RoundTrip reconnects.
	Reset(url string)
	Close() error
}

// HTTPTransport posts payloads to HTTP(S) nodes.
type HTTPTransport struct {
	Client http.Client
}

var _ Transport = &HTTPTransport{}

func (t *HTTPTransport) RoundTrip(ctx context.Context,
	url string, payload []byte) (Reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url,
		bytes.NewReader(payload))
	if err != nil {
		return Reply{}, err
	}
	req.Header.Add("Content-Type", "application/json")
	res, err := t.Client.Do(req)
	if err != nil {
		return Reply{}, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Reply{}, fmt.Errorf("read body: %w", err)
	}
	return Reply{Status: res.StatusCode, Body: body}, nil
}

func (t *HTTPTransport) Reset(string) { t.Client.CloseIdleConnections() }

func (t *HTTPTransport) Close() error {
	t.Client.CloseIdleConnections()
	return nil
}

// WSTransport keeps one WebSocket connection open to the most recently used
// node. Requests on the connection are serialized.
type WSTransport struct {
	Dialer  websocket.Dialer
	Timeout time.Duration

	mu   sync.Mutex
	url  string
	conn *websocket.Conn
}

var _ Transport = &WSTransport{}

func (t *WSTransport) dial(ctx context.Context, url string) error {
	if t.conn != nil && t.url == url {
		return nil
	}
	t.closeConn()
	conn, _, err := t.Dialer.DialContext(ctx, url, nil)
	if err != nil {
		return err
	}
	t.url, t.conn = url, conn
	return nil
}

func (t *WSTransport) closeConn() {
	if t.conn == nil {
		return
	}
	t.conn.Close()
	t.conn, t.url = nil, ""
}

func (t *WSTransport) RoundTrip(ctx context.Context,
	url string, payload []byte) (Reply, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.dial(ctx, url); err != nil {
		return Reply{}, err
	}
	deadline := time.Time{}
	if t.Timeout > 0 {
		deadline = time.Now().Add(t.Timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	t.conn.SetWriteDeadline(deadline)
	t.conn.SetReadDeadline(deadline)
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.closeConn()
		return Reply{}, err
	}
	_, body, err := t.conn.ReadMessage()
	if err != nil {
		t.closeConn()
		return Reply{}, err
	}
	return Reply{Body: body}, nil
}

func (t *WSTransport) Reset(url string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.url == url {
		t.closeConn()
	}
}

func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeConn()
	return nil
}

func isWebSocket(url string) bool {
	return strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://")
}
