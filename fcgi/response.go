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

package fcgi

import (
	"fmt"

	"github.com/nabbar/kitura-net/h1"
)

// stagingCap is the 64 KiB staging area named in spec §4.5.
const stagingCap = 64 * 1024

// Response is the FastCGI response writer (spec §4.5): a CGI-convention
// header block followed by STDOUT-framed body, terminated by a zero-length
// STDOUT record and an END_REQUEST.
type Response struct {
	w    Writer
	proc *Processor

	status  int
	headers *h1.Headers

	staging       []byte
	headerFlushed bool
	ended         bool
}

func newResponse(w Writer, proc *Processor) *Response {
	r := &Response{w: w, proc: proc}
	r.reset()
	return r
}

func (r *Response) reset() {
	r.status = 200
	r.headers = h1.NewHeaders()
	r.staging = r.staging[:0]
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

// Write stages body bytes, flushing as STDOUT records once the staging
// area would exceed its 64 KiB capacity (spec §4.5).
func (r *Response) Write(p []byte) (int, error) {
	if !r.headerFlushed {
		if err := r.flushHeaderBlock(); err != nil {
			return 0, err
		}
	}

	r.staging = append(r.staging, p...)
	for len(r.staging) > stagingCap {
		if err := r.flushStdout(r.staging[:stagingCap]); err != nil {
			return 0, err
		}
		r.staging = r.staging[stagingCap:]
	}
	return len(p), nil
}

func (r *Response) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

// flushHeaderBlock composes the CGI-convention header block (spec §4.5:
// "Status: <code> <reason>", then headers, then empty line) and writes it
// as one STDOUT record.
func (r *Response) flushHeaderBlock() error {
	r.headerFlushed = true

	var out []byte
	out = append(out, fmt.Sprintf("Status: %d %s\r\n", r.status, reasonFor(r.status))...)
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

	return r.flushStdout(out)
}

func (r *Response) flushStdout(content []byte) error {
	rec, err := BuildRecord(TypeStdout, r.proc.requestID, content)
	if err != nil {
		return err
	}
	_, err = r.w.Write(rec)
	return err
}

// End flushes remaining staging, writes a zero-length STDOUT record, then
// an END_REQUEST with REQUEST_COMPLETE, then emits one CANT_MPX_CONN
// END_REQUEST for every rejected multiplexed id queued during this
// connection's lifetime (spec §4.4 "after the primary request's response
// is written"), matching the ordering guarantee in §5.
func (r *Response) End(p ...byte) error {
	if r.ended {
		return nil
	}
	if !r.headerFlushed {
		if err := r.flushHeaderBlock(); err != nil {
			return err
		}
	}
	if len(p) > 0 {
		if _, err := r.Write(p); err != nil {
			return err
		}
	}
	for len(r.staging) > 0 {
		n := len(r.staging)
		if n > stagingCap {
			n = stagingCap
		}
		if err := r.flushStdout(r.staging[:n]); err != nil {
			return err
		}
		r.staging = r.staging[n:]
	}

	if err := r.flushStdout(nil); err != nil {
		return err
	}
	end, err := BuildEndRequest(r.proc.requestID, 0, StatusRequestComplete)
	if err != nil {
		return err
	}
	if _, err = r.w.Write(end); err != nil {
		return err
	}

	for _, id := range r.proc.extraRequestIDs() {
		rej, err := BuildEndRequest(id, 0, StatusCantMpxConn)
		if err != nil {
			return err
		}
		if _, err = r.w.Write(rej); err != nil {
			return err
		}
	}

	r.ended = true
	return nil
}

func (r *Response) EndString(s string) error {
	return r.End([]byte(s)...)
}

var reasonPhrases = map[int]string{
	200: "OK",
	301: "Moved Permanently",
	302: "Found",
	304: "Not Modified",
	400: "Bad Request",
	403: "Forbidden",
	404: "Not Found",
	500: "Internal Server Error",
}

func reasonFor(code int) string {
	if r, ok := reasonPhrases[code]; ok {
		return r
	}
	return ""
}
