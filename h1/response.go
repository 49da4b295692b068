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

package h1

import (
	"fmt"
	"io"
	"strconv"
)

// writeBufferCap is the shared fixed-size write buffer named in the data
// model (spec §3 "~2000-byte capacity").
const writeBufferCap = 2000

// reasonPhrases is the static status-line reason table (spec §4.2); unknown
// codes use the empty reason.
var reasonPhrases = map[int]string{
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	411: "Length Required",
	413: "Payload Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	503: "Service Unavailable",
}

func reasonFor(code int) string {
	if r, ok := reasonPhrases[code]; ok {
		return r
	}
	return ""
}

// Writer is the minimal collaborator Response flushes bytes through; the
// owning Processor supplies one backed by the socket.Context.
type Writer interface {
	Write(p []byte) (int, error)
}

// Response is the HTTP/1.1 response writer (spec §4.2): status line +
// headers + body, one-shot header-flush boundary, shared fixed-size write
// buffer. response -> processor is a non-owning back-reference (spec §9).
type Response struct {
	w    Writer
	proc *Processor

	status         int
	headers        *Headers
	buf            []byte
	headerFlushed  bool
	ended          bool
}

func newResponse(w Writer, proc *Processor) *Response {
	r := &Response{w: w, proc: proc}
	r.reset()
	return r
}

// reset reinitializes status=200, clears buffer/headers (re-adding Date),
// clears the flushed flag (spec §4.2 "reset()").
func (r *Response) reset() {
	r.status = 200
	r.headers = NewHeaders()
	r.headers.Append("Date", httpDate())
	r.buf = r.buf[:0]
	r.headerFlushed = false
	r.ended = false
}

func (r *Response) SetStatus(code int) {
	if r.headerFlushed {
		return
	}
	r.status = code
}

func (r *Response) SetHeader(name, value string) {
	if r.headerFlushed {
		return
	}
	r.headers.Append(name, value)
}

// Write buffers small writes, flushing large ones directly (spec §4.2
// "Buffer discipline"), triggering the header flush on first use.
func (r *Response) Write(p []byte) (int, error) {
	if !r.headerFlushed {
		if err := r.flushHeader(); err != nil {
			return 0, err
		}
	}

	if len(r.buf)+len(p) > writeBufferCap && len(r.buf) > 0 {
		if err := r.flushBuffer(); err != nil {
			return 0, err
		}
	}

	if len(p) > writeBufferCap {
		return r.w.Write(p)
	}

	r.buf = append(r.buf, p...)
	return len(p), nil
}

func (r *Response) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

func (r *Response) flushBuffer() error {
	if len(r.buf) == 0 {
		return nil
	}
	_, err := r.w.Write(r.buf)
	r.buf = r.buf[:0]
	return err
}

// flushHeader composes the status line and headers exactly once; the
// Connection header is decided here, at flush time, from the processor's
// current keep-alive determination (spec §9: "do not consult the policy
// earlier").
func (r *Response) flushHeader() error {
	if r.headerFlushed {
		return nil
	}
	r.headerFlushed = true

	keepAlive := r.proc != nil && r.proc.keepAliveForResponse()
	if r.proc != nil {
		r.proc.lastKeepAliveDecision = keepAlive
	}
	if keepAlive {
		r.headers.Append("Connection", "Keep-Alive")
		r.headers.Append("Keep-Alive", fmt.Sprintf("timeout=%d, max=%d", int64(idleTimeout.Time().Seconds()), r.proc.keepAliveRemaining()))
	} else {
		r.headers.Append("Connection", "Close")
	}

	var out []byte
	out = append(out, "HTTP/1.1 "...)
	out = append(out, strconv.Itoa(r.status)...)
	out = append(out, ' ')
	out = append(out, reasonFor(r.status)...)
	out = append(out, "\r\n"...)

	r.headers.Range(func(name string, values []string) bool {
		for _, v := range values {
			out = append(out, name...)
			out = append(out, ": "...)
			out = append(out, v...)
			out = append(out, "\r\n"...)
		}
		return true
	})
	out = append(out, "\r\n"...)

	_, err := r.w.Write(out)
	return err
}

// End flushes the header (if not yet done), flushes the buffer, and signals
// the owning processor to transition to reset (keep-alive) or request a
// close (spec §4.2 "end()").
func (r *Response) End(p ...byte) error {
	if r.ended {
		return nil
	}
	if !r.headerFlushed {
		if err := r.flushHeader(); err != nil {
			return err
		}
	}
	if len(p) > 0 {
		if _, err := r.Write(p); err != nil {
			return err
		}
	}
	if err := r.flushBuffer(); err != nil {
		return err
	}
	r.ended = true
	if r.proc != nil {
		r.proc.onResponseEnded()
	}
	return nil
}

func (r *Response) EndString(s string) error {
	return r.End([]byte(s)...)
}

// RawWriter exposes the underlying connection writer, bypassing the
// status-line/header/buffer discipline above it. An upgrade Factory
// (spec §4.8) that hijacks the connection for its own wire format (e.g. a
// WebSocket handshake) must write through this, not through Write/End,
// since a second synthesized HTTP header block would corrupt the stream.
func (r *Response) RawWriter() Writer { return r.w }

var _ io.Writer = (*Response)(nil)
