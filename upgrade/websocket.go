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

package upgrade

import (
	"bufio"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nabbar/kitura-net/h1"
	"github.com/nabbar/kitura-net/socket"
)

const WebSocketName = "websocket"

// wsUpgrader is shared across every websocket upgrade; its buffer sizes
// mirror h1's own write-buffer discipline order of magnitude.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RegisterWebSocket installs the built-in gorilla/websocket factory under
// WebSocketName. onConn is invoked with the established *websocket.Conn
// once the HTTP-layer handshake has completed (spec §4.8: "returning a
// replacement processor that is swapped into the handler atomically").
func RegisterWebSocket(onConn func(*websocket.Conn)) {
	Register(WebSocketName, func(req *h1.Request, resp *h1.Response) (socket.Processor, bool) {
		pr, pw := io.Pipe()

		hr, hw, err := adaptHTTP(req, resp, pr)
		if err != nil {
			resp.SetStatus(400)
			return nil, false
		}

		conn, err := wsUpgrader.Upgrade(hw, hr, nil)
		if err != nil {
			resp.SetStatus(400)
			return nil, false
		}

		proc := &wsProcessor{conn: conn, pipeW: pw}

		// conn.ReadMessage blocks against the synchronous pipe, so the
		// caller (onConn usually pumps frames in a loop) must not run on
		// the manager's read goroutine or the connection would deadlock.
		if onConn != nil {
			go onConn(conn)
		}
		return proc, true
	})
}

// wsProcessor hands every post-handshake byte the manager reads off the
// socket into pipeW, where the hijacked net.Conn's Read (respConn, backed
// by the pipe's read side) delivers them to conn.ReadMessage. It never
// itself frames or interprets WebSocket messages; gorilla/websocket does,
// on whatever goroutine onConn runs on.
type wsProcessor struct {
	conn  *websocket.Conn
	pipeW *io.PipeWriter
}

func (p *wsProcessor) Process(data []byte) ([]byte, error) {
	if _, err := p.pipeW.Write(data); err != nil {
		return nil, err
	}
	return nil, nil
}

// MessageCompleted always reports false: once upgraded, a connection never
// reaches an HTTP-style request/response boundary again, so the manager's
// keep-alive/close check (which only fires once a message completes) must
// never trigger for it. The connection only ends via SocketClosed or the
// gorilla/websocket-driven close handshake.
func (p *wsProcessor) MessageCompleted() bool { return false }

func (p *wsProcessor) KeepAliveAllowed() bool { return false }

func (p *wsProcessor) SocketClosed() {
	_ = p.pipeW.CloseWithError(io.EOF)
	_ = p.conn.Close()
}

// adaptHTTP builds the minimal net/http request/response-writer pair
// gorilla/websocket's Upgrader requires, bridging it to the h1 types this
// module actually parses with (spec §9's translation guidance: adapt at
// the boundary rather than reshaping the whole stack around net/http).
func adaptHTTP(req *h1.Request, resp *h1.Response, pr *io.PipeReader) (*http.Request, *wsResponseWriter, error) {
	u, err := url.Parse(req.RawURL())
	if err != nil {
		return nil, nil, err
	}

	header := make(http.Header)
	req.Headers.Range(func(name string, values []string) bool {
		for _, v := range values {
			header.Add(name, v)
		}
		return true
	})

	hr := &http.Request{
		Method: req.Method,
		URL:    u,
		Proto:  "HTTP/1.1",
		Header: header,
		Host:   header.Get("Host"),
	}

	return hr, &wsResponseWriter{resp: resp, header: make(http.Header), pipeR: pr}, nil
}

// wsResponseWriter implements http.ResponseWriter + http.Hijacker over an
// h1.Response, the minimal surface gorilla/websocket's Upgrader needs to
// perform the 101 handshake and hand back the raw connection.
type wsResponseWriter struct {
	resp   *h1.Response
	header http.Header
	status int
	pipeR  *io.PipeReader
}

func (w *wsResponseWriter) Header() http.Header { return w.header }

// Write goes straight to the connection's raw writer: by the time
// gorilla/websocket writes through this (the 101 handshake line and
// headers it composes itself), h1's own status-line/header framing must
// not run a second time on the same stream.
func (w *wsResponseWriter) Write(p []byte) (int, error) { return w.resp.RawWriter().Write(p) }

func (w *wsResponseWriter) WriteHeader(status int) {
	w.status = status
}

func (w *wsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	c := &respConn{resp: w.resp, pipeR: w.pipeR}
	rw := bufio.NewReadWriter(bufio.NewReader(c), bufio.NewWriter(c))
	return c, rw, nil
}

// respConn adapts h1.Response.RawWriter and the per-upgrade io.Pipe into
// the net.Conn shape Hijack must return: writes go straight to the
// connection, reads come from whatever the owning wsProcessor.Process
// feeds into the pipe from the manager's read loop (spec §4.8 hand-off).
type respConn struct {
	resp  *h1.Response
	pipeR *io.PipeReader
}

func (c *respConn) Read(p []byte) (int, error)  { return c.pipeR.Read(p) }
func (c *respConn) Write(p []byte) (int, error) { return c.resp.RawWriter().Write(p) }
func (c *respConn) Close() error                { return c.pipeR.Close() }
func (c *respConn) LocalAddr() net.Addr         { return nil }
func (c *respConn) RemoteAddr() net.Addr        { return nil }
func (c *respConn) SetDeadline(t time.Time) error     { return nil }
func (c *respConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *respConn) SetWriteDeadline(t time.Time) error { return nil }
