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

// Package server ties socket, h1, fcgi and upgrade together behind one
// lifecycle: it binds a listening endpoint, resolves every accepted
// connection to an h1 or FastCGI processor, and exposes the lifecycle and
// monitor hooks named in spec §4.9.
package server

import (
	libcrt "github.com/nabbar/kitura-net/certificates"
	sckcfg "github.com/nabbar/kitura-net/socket/config"

	libh1 "github.com/nabbar/kitura-net/h1"
	montps "github.com/nabbar/golib/monitor/types"
)

// Protocol selects which of this module's two incoming processors a Server
// instance runs; FastCGI and HTTP/1.1 are never multiplexed onto the same
// listening endpoint (spec §4.3 is reached by a web server proxying to a
// dedicated FastCGI socket, not via ALPN negotiation on the HTTP listener).
type Protocol uint8

const (
	ProtocolHTTP1 Protocol = iota
	ProtocolFastCGI
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP1:
		return "http/1.1"
	case ProtocolFastCGI:
		return "fastcgi"
	default:
		return "unknown"
	}
}

// Config is everything one Server needs to bind and run: the listening
// endpoint, which processor it runs, HTTP/1.1's keep-alive policy (ignored
// for FastCGI, which is always connection-per-request), optional TLS and
// optional monitor reporting.
type Config struct {
	Name     string
	Listen   sckcfg.Server
	Protocol Protocol

	// KeepAlive only applies when Protocol == ProtocolHTTP1.
	KeepAlive libh1.KeepAlivePolicy

	// TLS is nil for a plaintext endpoint. ServerName is passed through to
	// TlsConfig for SNI-derived certificate selection.
	TLS        libcrt.TLSConfig
	ServerName string

	// Monitor is optional; a zero-value Config.Name left empty disables
	// Server.Monitor entirely (HealthCheck/Start are still correct without
	// it, spec §4.9's monitor hook is explicitly "optional, single").
	Monitor montps.Config
}

func (c Config) Validate() error {
	if err := c.Listen.Validate(); err != nil {
		return ErrorInvalidConfig.Error(err)
	}
	return nil
}
