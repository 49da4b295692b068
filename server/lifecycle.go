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

import "sync"

// FuncStarted / FuncStopped fire once per Start/Stop transition.
type FuncStarted func()
type FuncStopped func()

// FuncFailed fires on a fatal listen/accept error that the accept loop
// cannot recover from; FuncClientConnFailed fires per-connection (TLS
// handshake or accept-stage rejection), never tearing the server down.
type FuncFailed func(err error)
type FuncClientConnFailed func(err error)

// lifecycle is the started/stopped/failed/client_connection_failed
// callback registry (spec §4.9). Registering a callback after its event
// has already fired still invokes it once, synchronously, on registration
// ("catch-up" semantics) for the start/stop pair; failed and
// client_connection_failed are per-occurrence and are never replayed.
type lifecycle struct {
	mu sync.Mutex

	started []FuncStarted
	stopped []FuncStopped
	failed  []FuncFailed
	connFail []FuncClientConnFailed

	didStart bool
	didStop  bool
}

func newLifecycle() *lifecycle {
	return &lifecycle{}
}

func (l *lifecycle) OnStarted(f FuncStarted) {
	if f == nil {
		return
	}
	l.mu.Lock()
	fire := l.didStart
	l.started = append(l.started, f)
	l.mu.Unlock()

	if fire {
		f()
	}
}

func (l *lifecycle) OnStopped(f FuncStopped) {
	if f == nil {
		return
	}
	l.mu.Lock()
	fire := l.didStop
	l.stopped = append(l.stopped, f)
	l.mu.Unlock()

	if fire {
		f()
	}
}

func (l *lifecycle) OnFailed(f FuncFailed) {
	if f == nil {
		return
	}
	l.mu.Lock()
	l.failed = append(l.failed, f)
	l.mu.Unlock()
}

func (l *lifecycle) OnClientConnFailed(f FuncClientConnFailed) {
	if f == nil {
		return
	}
	l.mu.Lock()
	l.connFail = append(l.connFail, f)
	l.mu.Unlock()
}

// fireStarted/fireStopped flip the catch-up latch before invoking every
// registered callback, so a callback registered concurrently with (or
// immediately after) the transition cannot observe a stale latch and miss
// its own catch-up call.
func (l *lifecycle) fireStarted() {
	l.mu.Lock()
	l.didStart = true
	l.didStop = false
	cbs := append([]FuncStarted(nil), l.started...)
	l.mu.Unlock()

	for _, f := range cbs {
		f()
	}
}

func (l *lifecycle) fireStopped() {
	l.mu.Lock()
	l.didStop = true
	l.didStart = false
	cbs := append([]FuncStopped(nil), l.stopped...)
	l.mu.Unlock()

	for _, f := range cbs {
		f()
	}
}

func (l *lifecycle) fireFailed(err error) {
	l.mu.Lock()
	cbs := append([]FuncFailed(nil), l.failed...)
	l.mu.Unlock()

	for _, f := range cbs {
		f(err)
	}
}

func (l *lifecycle) fireClientConnFailed(err error) {
	l.mu.Lock()
	cbs := append([]FuncClientConnFailed(nil), l.connFail...)
	l.mu.Unlock()

	for _, f := range cbs {
		f(err)
	}
}
