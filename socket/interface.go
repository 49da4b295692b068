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

// Package socket is the incoming-socket manager: it owns every accepted
// connection, drives readiness, enforces idle/keep-alive timeouts, applies
// admission control and safely tears sockets down. It never decodes a wire
// protocol itself; that is left to the Processor behind a HandlerFunc.
package socket

import (
	"net"
	"time"
)

// ConnState describes a connection lifecycle transition, reported through
// the Server.RegisterFuncInfo callback.
type ConnState uint8

const (
	StateAccepted ConnState = iota
	StateHandshaking
	StateEstablished
	StateIdle
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateAccepted:
		return "accepted"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Context is handed to a HandlerFunc for the lifetime of one connection.
// It behaves like a context.Context (Deadline/Done/Err/Value) so a processor
// can select on cancellation the same way it would on any context, while
// also exposing the raw byte-stream and liveness of the underlying socket.
type Context interface {
	Deadline() (deadline time.Time, ok bool)
	Done() <-chan struct{}
	Err() error
	Value(key any) any

	// IsConnected reports whether the underlying socket is still usable.
	IsConnected() bool

	// ALPN reports the TLS ALPN protocol negotiated during the handshake,
	// or "" for a plaintext connection or one where nothing was negotiated
	// (spec §4.7's protocol-resolution input).
	ALPN() string

	// RemoteHost / LocalHost report the textual host:port of each end.
	RemoteHost() string
	LocalHost() string

	// Read / Write proxy to the underlying socket, honoring single-writer
	// discipline enforced by the owning handler.
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)

	// Close tears the connection down unconditionally.
	Close() error
}

// HandlerFunc is invoked once per accepted connection; it owns the
// connection for as long as it runs and MUST NOT retain ctx past return.
type HandlerFunc func(ctx Context)

// FuncError receives manager- and socket-level errors that do not have a
// more specific lifecycle callback (admission rejects, write failures).
type FuncError func(err error)

// FuncInfo receives connection state transitions.
type FuncInfo func(local, remote net.Addr, state ConnState)

// TLSDelegate is the pluggable TLS collaborator: the manager never
// implements a handshake itself, it only calls out through this interface.
type TLSDelegate interface {
	Attach(c net.Conn) net.Conn
	Accept(c net.Conn) (net.Conn, error)
	NegotiatedALPN(c net.Conn) string
	AddSupportedALPN(name string)
	IsSecure() bool
}

// Server is the manager/listener pair for one listening endpoint.
type Server interface {
	RegisterFuncError(f FuncError)
	RegisterFuncInfo(f FuncInfo)

	// Listen starts accepting; it blocks until the listener is closed or
	// the given context is cancelled.
	Listen(done <-chan struct{}) error

	// IsRunning reports whether the accept loop is active.
	IsRunning() bool

	// IsGone reports whether the listener has fully stopped and drained.
	IsGone() bool

	// OpenConnections reports the current live handler count.
	OpenConnections() int64

	// Addr returns the bound address; valid only once Listen has started
	// (used to discover the real port after an ephemeral-port bind).
	Addr() net.Addr

	// Close stops accepting and tears every live handler down.
	Close() error
}
