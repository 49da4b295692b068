/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package server

import (
	"context"
	"sync"
)

// Pool groups several Server instances, each bound to its own listen
// address and protocol, behind one lifecycle surface: TCP and Unix,
// HTTP/1.1 and FastCGI endpoints can be started, stopped and queried
// together. Keyed by Config.Name rather than bind address, since two
// Unix-socket servers can otherwise share an address family trivially
// but never a name.
type Pool struct {
	mu  sync.RWMutex
	srv map[string]*Server
}

// NewPool builds a Pool preloaded with srv.
func NewPool(srv ...*Server) *Pool {
	p := &Pool{srv: make(map[string]*Server)}
	p.Add(srv...)
	return p
}

// Add inserts or replaces entries by Config.Name; nil entries are ignored.
func (p *Pool) Add(srv ...*Server) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range srv {
		if s == nil {
			continue
		}
		p.srv[s.cfg.Name] = s
	}
}

func (p *Pool) Get(name string) *Server {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.srv[name]
}

func (p *Pool) Del(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.srv, name)
}

func (p *Pool) Has(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.srv[name]
	return ok
}

func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.srv)
}

// Names returns every pooled server's Config.Name, in no particular order.
func (p *Pool) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.srv))
	for n := range p.srv {
		out = append(out, n)
	}
	return out
}

func (p *Pool) list() []*Server {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Server, 0, len(p.srv))
	for _, s := range p.srv {
		out = append(out, s)
	}
	return out
}

// IsRunning reports whether every pooled server is running (atLeast
// false), or whether at least one is (atLeast true). An empty pool is
// never running.
func (p *Pool) IsRunning(atLeast bool) bool {
	list := p.list()
	if len(list) == 0 {
		return false
	}
	for _, s := range list {
		if s.IsRunning() {
			if atLeast {
				return true
			}
		} else if !atLeast {
			return false
		}
	}
	return !atLeast
}

// StartAll starts every pooled server, attempting each regardless of an
// earlier failure, and returns the first error encountered (if any).
func (p *Pool) StartAll(ctx context.Context) error {
	var first error
	for _, s := range p.list() {
		if err := s.Start(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// StopAll stops every pooled server, attempting each regardless of an
// earlier failure, and returns the first error encountered (if any).
func (p *Pool) StopAll(ctx context.Context) error {
	var first error
	for _, s := range p.list() {
		if err := s.Stop(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RestartAll restarts every pooled server, attempting each regardless of
// an earlier failure, and returns the first error encountered (if any).
func (p *Pool) RestartAll(ctx context.Context) error {
	var first error
	for _, s := range p.list() {
		if err := s.Restart(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
