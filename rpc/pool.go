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
	"fmt"
	"strings"
	"sync"
	"time"
)

// Node is a candidate endpoint and its failure counters.
type Node struct {
	URL string

	// ErrorCount counts failures that caused a rotation away from the
	// node. CallErrorCount counts retried calls on the node since it last
	// succeeded or was rotated to.
	ErrorCount     int
	CallErrorCount int
}

// Pool is an ordered set of Nodes with a cursor. A Node whose ErrorCount
// exceeds NumRetries is skipped for the rest of the Pool's life. A negative
// NumRetries or NumRetriesCall means unlimited.
//
// Pool is safe for concurrent use.
type Pool struct {
	NumRetries     int
	NumRetriesCall int

	mu     sync.Mutex
	nodes  []Node
	cur    int
	frozen bool
}

// NewPool returns a Pool over urls, in order and without duplicates. The
// cursor starts on the first URL.
func NewPool(urls []string, numRetries, numRetriesCall int) (*Pool, error) {
	p := Pool{NumRetries: numRetries, NumRetriesCall: numRetriesCall}
	seen := make(map[string]struct{}, len(urls))
	for _, url := range urls {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		if _, ok := seen[url]; ok {
			continue
		}
		seen[url] = struct{}{}
		p.nodes = append(p.nodes, Node{URL: url})
	}
	if len(p.nodes) == 0 {
		return nil, fmt.Errorf("no node urls")
	}
	return &p, nil
}

// ParseURLs splits a comma, semicolon or whitespace separated list of node
// URLs.
func ParseURLs(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
}

func (p *Pool) working(n Node) bool {
	return p.NumRetries < 0 || n.ErrorCount <= p.NumRetries
}

// URL returns the URL of the current node.
func (p *Pool) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nodes[p.cur].URL
}

// Next advances the cursor to the next working node, wrapping around, and
// returns its URL. The current node is returned again if it is the only
// working one. While the Pool is frozen the cursor does not move.
func (p *Pool) Next() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.next()
}

// Rotate moves away from the node at from, unless another caller already
// did, and returns the URL of the new current node.
func (p *Pool) Rotate(from string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur := p.nodes[p.cur]; cur.URL != from && p.working(cur) {
		return cur.URL, nil
	}
	return p.next()
}

func (p *Pool) next() (string, error) {
	if p.frozen {
		if !p.working(p.nodes[p.cur]) {
			return "", ErrWorkingNodeMissing
		}
		return p.nodes[p.cur].URL, nil
	}
	for i := 1; i <= len(p.nodes); i++ {
		next := (p.cur + i) % len(p.nodes)
		if p.working(p.nodes[next]) {
			p.cur = next
			p.nodes[next].CallErrorCount = 0
			return p.nodes[next].URL, nil
		}
	}
	return "", ErrWorkingNodeMissing
}

// Freeze pins the cursor to the current node until Freeze(false).
func (p *Pool) Freeze(frozen bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frozen = frozen
}

// Frozen reports whether the cursor is pinned.
func (p *Pool) Frozen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frozen
}

func (p *Pool) find(url string) *Node {
	for i := range p.nodes {
		if p.nodes[i].URL == url {
			return &p.nodes[i]
		}
	}
	return nil
}

// IncErrorCount records a failure of the node at url that rotates away from
// it and returns the new count.
func (p *Pool) IncErrorCount(url string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.find(url)
	if n == nil {
		return 0
	}
	n.ErrorCount++
	n.CallErrorCount = 0
	return n.ErrorCount
}

// IncCallErrorCount records a retried call on the node at url and returns
// the new count, and whether it exceeds NumRetriesCall.
func (p *Pool) IncCallErrorCount(url string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.find(url)
	if n == nil {
		return 0, true
	}
	n.CallErrorCount++
	return n.CallErrorCount,
		p.NumRetriesCall >= 0 && n.CallErrorCount > p.NumRetriesCall
}

// ResetCallErrorCount clears the call counter of the node at url after a
// successful call.
func (p *Pool) ResetCallErrorCount(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.find(url); n != nil {
		n.CallErrorCount = 0
	}
}

// WorkingCount returns the number of nodes that have not exceeded
// NumRetries.
func (p *Pool) WorkingCount() int {
	return len(p.WorkingURLs())
}

// WorkingURLs returns the URLs of the nodes that have not exceeded
// NumRetries, in Pool order.
func (p *Pool) WorkingURLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var urls []string
	for _, n := range p.nodes {
		if p.working(n) {
			urls = append(urls, n.URL)
		}
	}
	return urls
}

// Nodes returns a snapshot of every node and its counters.
func (p *Pool) Nodes() []Node {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Node(nil), p.nodes...)
}

// Backoff returns how long to wait before retry number cnt: nothing before
// the first, then (cnt-1)*1.5+0.5 seconds capped at 10 seconds.
func Backoff(cnt int) time.Duration {
	if cnt < 1 {
		return 0
	}
	d := time.Duration((float64(cnt-1)*1.5 + 0.5) * float64(time.Second))
	if d > MaxBackoff {
		return MaxBackoff
	}
	return d
}

// MaxBackoff caps Backoff.
const MaxBackoff = 10 * time.Second
