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

package socket

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	libatm "github.com/nabbar/kitura-net/atomic"
	libdur "github.com/nabbar/kitura-net/duration"
)

// idleSweepInterval is the implementation constant named in the data model
// (Connection policy: idle sweep interval), expressed through duration.Duration
// the way a config-facing interval would be so it stays marshalable if this
// ever grows a config knob.
var idleSweepInterval = libdur.Seconds(60).Time()

// Processor is the wire-protocol collaborator a manager hands bytes to. It
// is implemented by h1.Processor and fcgi.Processor; the manager itself
// never interprets a single byte of HTTP or FastCGI framing.
type Processor interface {
	// Process consumes as much of p as one complete message needs and
	// returns the unconsumed suffix (pipelining contract, spec §4.1): empty
	// when more socket bytes are needed, non-empty only when p held a full
	// message plus bytes belonging to the next one.
	Process(p []byte) (rest []byte, err error)

	// MessageCompleted reports whether the call to Process that just
	// returned dispatched a full request/response cycle (or gave up on one
	// after a fatal error), as opposed to merely buffering a partial
	// message. KeepAliveAllowed is only meaningful once this is true: a
	// read that splits a message across two Process calls must never be
	// judged on the close/keep-alive question (spec §4.6, §8).
	MessageCompleted() bool

	// KeepAliveAllowed reports whether another request may reuse the
	// connection once the in-flight one has finished.
	KeepAliveAllowed() bool

	// SocketClosed notifies the processor the peer closed (read returned
	// EOF) so it can release any state without attempting a write.
	SocketClosed()
}

// Upgrader is an optional capability a Processor may implement (h1.Processor
// does): after a successful protocol upgrade it hands back a replacement
// Processor that the manager swaps in atomically with respect to further
// reads (spec §4.8).
type Upgrader interface {
	TakeUpgrade() (Processor, bool)
}

// manager implements Server: the fd-to-handler registry, readiness loop,
// idle sweeper and admission control described in spec §4.6.
type manager struct {
	mu       sync.Mutex
	handlers map[net.Conn]*handle
	count    libatm.Value[int64]
	running  libatm.Value[bool]
	gone     libatm.Value[bool]

	maxConn int64

	fnErr  libatm.Value[FuncError]
	fnInfo libatm.Value[FuncInfo]

	newProcessor func(ctx Context) Processor
	lastSweep    time.Time

	listener net.Listener
	parent   context.Context
}

// handle is the per-connection state owned exclusively by the manager; a
// Processor only ever sees it through the Context it implements.
type handle struct {
	conn net.Conn
	proc Processor
	alpn string

	writeMu sync.Mutex

	inProgress  libatm.Value[bool]
	idleDead    libatm.Value[time.Time]
	closed      libatm.Value[bool]
	pipelineBuf []byte

	doneCh chan struct{}
}

func newManager(ctx context.Context, l net.Listener, maxConn int64, newProcessor func(ctx Context) Processor) *manager {
	if ctx == nil {
		ctx = context.Background()
	}
	m := &manager{
		handlers:     make(map[net.Conn]*handle),
		maxConn:      maxConn,
		newProcessor: newProcessor,
		listener:     l,
		parent:       ctx,
	}
	m.count.Store(0)
	m.running.Store(false)
	m.gone.Store(false)
	return m
}

func (m *manager) RegisterFuncError(f FuncError) { m.fnErr.Store(f) }
func (m *manager) RegisterFuncInfo(f FuncInfo)   { m.fnInfo.Store(f) }

func (m *manager) notifyError(err error) {
	if f := m.fnErr.Load(); f != nil && err != nil {
		f(err)
	}
}

func (m *manager) notifyInfo(local, remote net.Addr, st ConnState) {
	if f := m.fnInfo.Load(); f != nil {
		f(local, remote, st)
	}
}

func (m *manager) IsRunning() bool { return m.running.Load() }
func (m *manager) IsGone() bool    { return m.gone.Load() }

func (m *manager) OpenConnections() int64 { return m.count.Load() }

func (m *manager) Addr() net.Addr {
	if m.listener == nil {
		return nil
	}
	return m.listener.Addr()
}

// Listen runs the accept loop until done fires or the listener is closed.
// Per spec §5, accept happens on a single dedicated goroutine; every
// accepted connection is handed off to its own goroutine for I/O.
func (m *manager) Listen(done <-chan struct{}) error {
	m.running.Store(true)
	defer func() {
		m.running.Store(false)
		m.gone.Store(true)
	}()

	go func() {
		<-done
		_ = m.Close()
	}()

	for {
		c, err := m.listener.Accept()
		if err != nil {
			if m.gone.Load() {
				// expected shutdown: info-level per spec §7, not an error
				return nil
			}
			m.notifyError(ErrorAcceptFailed.Error(err))
			continue
		}

		if m.admissionRejected() {
			writeServiceUnavailable(c)
			_ = c.Close()
			continue
		}

		m.register(c)
	}
}

// admissionRejected runs the idle sweep eagerly before rejecting, per
// spec §4.6: "If ... current handler count >= limit on accept, run the
// idle sweep eagerly; if still >= limit, ... reject".
func (m *manager) admissionRejected() bool {
	if m.maxConn <= 0 {
		return false
	}
	if m.count.Load() < m.maxConn {
		return false
	}
	m.sweepIdle(true)
	return m.count.Load() >= m.maxConn
}

func writeServiceUnavailable(c net.Conn) {
	_, _ = c.Write([]byte("HTTP/1.1 503 Service Unavailable\r\nConnection: Close\r\nContent-Length: 0\r\n\r\n"))
}

// alpnReporter is an optional capability a wrapped net.Conn may implement
// (tlsAlpnConn, from a TLS-terminating listener) to report the ALPN name
// negotiated during the handshake that already completed before Accept
// returned this connection.
type alpnReporter interface {
	NegotiatedALPN() string
}

func (m *manager) register(c net.Conn) {
	h := &handle{conn: c, doneCh: make(chan struct{})}
	if r, ok := c.(alpnReporter); ok {
		h.alpn = r.NegotiatedALPN()
	}
	h.inProgress.Store(false)
	h.idleDead.Store(time.Now().Add(idleSweepInterval))
	h.closed.Store(false)

	ctx := &sCtx{h: h, parent: m.parent}
	h.proc = m.newProcessor(ctx)

	m.mu.Lock()
	m.handlers[c] = h
	m.mu.Unlock()
	m.count.Store(m.count.Load() + 1)

	m.notifyInfo(c.LocalAddr(), c.RemoteAddr(), StateAccepted)

	// a new connection arriving is the cheap trigger for the idle sweep,
	// per spec §4.6 ("triggered on the arrival of a new connection").
	go m.sweepIdle(false)

	go m.serve(h)
}

func (m *manager) serve(h *handle) {
	defer m.drop(h)

	buf := make([]byte, 64*1024)
	for {
		n, err := h.conn.Read(buf)
		if n > 0 {
			h.inProgress.Store(true)
			chunk := append(h.pipelineBuf, buf[:n]...)
			h.pipelineBuf = nil
			closing := false

		pipeline:
			for len(chunk) > 0 {
				rest, perr := h.proc.Process(chunk)
				if perr != nil {
					m.notifyError(perr)
					return
				}

				if !h.proc.MessageCompleted() {
					// this Process call only buffered a partial message;
					// the close/keep-alive question is not yet decided
					// (spec §4.6, §8) - wait for the rest on the next read.
					h.pipelineBuf = rest
					break pipeline
				}

				if u, ok := h.proc.(Upgrader); ok {
					if np, swapped := u.TakeUpgrade(); swapped {
						h.proc = np
						h.inProgress.Store(false)
						h.idleDead.Store(time.Now().Add(idleSweepInterval))
						chunk = rest
						continue pipeline
					}
				}

				if !h.proc.KeepAliveAllowed() {
					// connection is closing: any further pipelined bytes
					// belong to a request this connection will never
					// answer (spec §9's resolution for abandoned
					// pipelined bytes) - discard them.
					closing = true
					break pipeline
				}

				h.inProgress.Store(false)
				h.idleDead.Store(time.Now().Add(idleSweepInterval))
				chunk = rest
			}

			if closing {
				return
			}
		}

		if err != nil {
			if err == io.EOF {
				h.proc.SocketClosed()
			}
			return
		}
	}
}

func (m *manager) drop(h *handle) {
	h.closed.Store(true)
	_ = h.conn.Close()

	m.mu.Lock()
	delete(m.handlers, h.conn)
	m.mu.Unlock()
	m.count.Store(m.count.Load() - 1)

	m.notifyInfo(h.conn.LocalAddr(), h.conn.RemoteAddr(), StateClosed)
	close(h.doneCh)
}

// sweepIdle closes every handler that is not in-progress and whose
// idle-deadline has passed. Per spec §4.6, runs at most once per
// idleSweepInterval unless forced (admission control calling eagerly).
func (m *manager) sweepIdle(forced bool) {
	now := time.Now()
	m.mu.Lock()
	if !forced && now.Sub(m.lastSweep) < idleSweepInterval {
		m.mu.Unlock()
		return
	}
	m.lastSweep = now
	victims := make([]*handle, 0)
	for _, h := range m.handlers {
		if !h.inProgress.Load() && now.After(h.idleDead.Load()) {
			victims = append(victims, h)
		}
	}
	m.mu.Unlock()

	for _, h := range victims {
		_ = h.conn.Close()
	}
}

func (m *manager) Close() error {
	if m.gone.Load() {
		return nil
	}
	m.gone.Store(true)

	var err error
	if m.listener != nil {
		err = m.listener.Close()
	}

	m.mu.Lock()
	hs := make([]*handle, 0, len(m.handlers))
	for _, h := range m.handlers {
		hs = append(hs, h)
	}
	m.mu.Unlock()

	for _, h := range hs {
		_ = h.conn.Close()
	}

	return err
}

// write is the manager's single-writer-per-socket write path (spec §4.6).
// EPIPE/ECONNRESET mark the handler for close without tearing the manager
// down; other errors are only logged by the caller.
func (h *handle) write(p []byte) (int, error) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return h.conn.Write(p)
}
