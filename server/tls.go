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
	"crypto/tls"
	"net"
	"sync"

	libcrt "github.com/nabbar/kitura-net/certificates"
)

// tlsDelegate adapts a certificates.TLSConfig into socket.TLSDelegate
// (spec §6's "TLS delegate interface"): the manager only ever calls out
// through Attach/Accept/NegotiatedALPN/AddSupportedALPN/IsSecure, never
// performs a handshake itself (spec §1 "Deliberately OUT of scope: TLS
// implementation itself").
type tlsDelegate struct {
	mu  sync.Mutex
	cfg *tls.Config
}

// newTLSDelegate derives a *tls.Config from cfg once at construction; ALPN
// names registered afterwards via AddSupportedALPN are appended to the
// same *tls.Config so every subsequent handshake advertises them.
func newTLSDelegate(cfg libcrt.TLSConfig, serverName string) *tlsDelegate {
	return &tlsDelegate{cfg: cfg.TlsConfig(serverName)}
}

func (d *tlsDelegate) Attach(c net.Conn) net.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return tls.Server(c, d.cfg)
}

// Accept wraps the raw accepted connection and performs the blocking
// handshake, matching spec §4.7's "this task MUST NOT block the accept
// thread" by being called only from the per-connection handshake goroutine
// (socket.tlsAcceptListener.Accept).
func (d *tlsDelegate) Accept(c net.Conn) (net.Conn, error) {
	tc := d.Attach(c).(*tls.Conn)
	if err := tc.HandshakeContext(context.Background()); err != nil {
		return nil, err
	}
	return tc, nil
}

func (d *tlsDelegate) NegotiatedALPN(c net.Conn) string {
	tc, ok := c.(*tls.Conn)
	if !ok || tc == nil {
		return ""
	}
	return tc.ConnectionState().NegotiatedProtocol
}

func (d *tlsDelegate) AddSupportedALPN(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, p := range d.cfg.NextProtos {
		if p == name {
			return
		}
	}
	d.cfg.NextProtos = append(d.cfg.NextProtos, name)
}

func (d *tlsDelegate) IsSecure() bool { return true }
