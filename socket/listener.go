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
	"net"
	"os"
	"runtime"
	"sync"

	sckcfg "github.com/nabbar/kitura-net/socket/config"
)

const linuxBacklog = 511

// ProtocolResolver looks the negotiated ALPN name (or "http/1.1" as
// default) up in the upgrade registry and returns a fresh Processor
// factory for it, or false if nothing is registered (spec §9 Open
// Question: "log error and drop connection").
type ProtocolResolver func(alpn string) (newProcessor func(ctx Context) Processor, ok bool)

// New binds cfg's endpoint and returns a Server ready for Listen. tls may
// be nil (plaintext); resolve chooses the per-connection Processor factory,
// defaulting unconditionally to "http/1.1" when TLS is absent or ALPN was
// not negotiated.
func New(ctx context.Context, cfg sckcfg.Server, tls TLSDelegate, resolve ProtocolResolver) (Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, ErrorInvalidConfig.Error(err)
	}

	network := cfg.Network.String()

	var (
		l   net.Listener
		err error
	)

	switch {
	case cfg.IsUnix():
		if runtime.GOOS == "windows" {
			return nil, ErrorInvalidConfig.Error()
		}
		_ = os.Remove(cfg.Address)
		l, err = net.Listen(network, cfg.Address)
		if err == nil && cfg.PermFile != 0 {
			_ = os.Chmod(cfg.Address, os.FileMode(cfg.PermFile))
		}
		if err == nil && cfg.GroupPerm != 0 {
			_ = os.Chown(cfg.Address, -1, int(cfg.GroupPerm))
		}
	default:
		lc := net.ListenConfig{}
		if cfg.AllowPortReuse {
			lc.Control = reusePortControl
		}
		l, err = lc.Listen(ctx, network, cfg.Address)
	}

	if err != nil {
		return nil, ErrorListenFailed.Error(err)
	}

	m := newManager(ctx, l, cfg.MaxConnections, func(c Context) Processor {
		factory, ok := resolve(c.ALPN())
		if !ok {
			factory, _ = resolve("http/1.1")
		}
		return factory(c)
	})

	if tls != nil {
		wrapListener(m, tls)
	}

	return m, nil
}

// wrapListener installs a TLSDelegate-aware listener that runs the
// handshake on a worker goroutine before handing the connection to the
// manager (spec §4.7: "this task MUST NOT block the accept loop"). The
// concrete handshake call is delegated to TLSDelegate.Accept and never
// implemented here, matching spec §1's "Deliberately OUT of scope: TLS
// implementation itself".
func wrapListener(m *manager, tls TLSDelegate) {
	inner := m.listener
	m.listener = &tlsAcceptListener{Listener: inner, tls: tls, mgr: m}
}

// tlsAcceptListener defers the handshake to a goroutine per accepted
// connection so the accept loop never blocks on it. A dedicated internal
// goroutine (started lazily on the first Accept call) does nothing but call
// the wrapped listener's raw Accept in a tight loop and hand each
// connection off to its own handshake goroutine; Accept itself - the one
// the manager's single accept loop calls - just receives already-resolved
// results off ready, a channel acting as the pipe between the two.
type tlsAcceptListener struct {
	net.Listener
	tls TLSDelegate
	mgr *manager

	once  sync.Once
	ready chan tlsAcceptResult
}

// tlsAcceptResult is one completed outcome of the raw-accept-then-handshake
// pipeline: either an established, ALPN-tagged connection or an error
// (raw accept failure or handshake failure) ready to surface from Accept.
type tlsAcceptResult struct {
	conn net.Conn
	err  error
}

func (l *tlsAcceptListener) Accept() (net.Conn, error) {
	l.once.Do(func() {
		l.ready = make(chan tlsAcceptResult)
		go l.acceptLoop()
	})
	res := <-l.ready
	return res.conn, res.err
}

// acceptLoop is the dedicated raw-accept goroutine: it never waits on a
// handshake, so a single slow or stalled TLS client can never stall
// acceptance of any other incoming connection (spec §4.7, §5).
func (l *tlsAcceptListener) acceptLoop() {
	for {
		c, err := l.Listener.Accept()
		if err != nil {
			l.ready <- tlsAcceptResult{err: err}
			if l.mgr.gone.Load() {
				return
			}
			continue
		}
		go l.handshake(c)
	}
}

// handshake runs the TLS accept handshake off the accept loop entirely,
// reporting its outcome back through ready once it settles.
func (l *tlsAcceptListener) handshake(c net.Conn) {
	l.mgr.notifyInfo(c.LocalAddr(), c.RemoteAddr(), StateHandshaking)
	hc, err := l.tls.Accept(c)
	if err != nil {
		_ = c.Close()
		l.ready <- tlsAcceptResult{err: ErrorHandshakeFailed.Error(err)}
		return
	}
	l.mgr.notifyInfo(c.LocalAddr(), c.RemoteAddr(), StateEstablished)
	l.ready <- tlsAcceptResult{conn: &tlsAlpnConn{Conn: hc, alpn: l.tls.NegotiatedALPN(hc)}}
}

// tlsAlpnConn carries the ALPN name negotiated during the handshake
// alongside the established connection, so the manager can hand it to the
// Context without reaching back into the TLSDelegate (spec §4.7).
type tlsAlpnConn struct {
	net.Conn
	alpn string
}

func (c *tlsAlpnConn) NegotiatedALPN() string { return c.alpn }
