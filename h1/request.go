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

import "bytes"

// Request is the immutable-from-the-delegate's-view HTTP request described
// by spec §3. It is rebuilt from scratch on every Reset.
type Request struct {
	Method      string
	Major       int
	Minor       int
	Headers     *Headers
	url         bytes.Buffer
	body        [][]byte
	bodyCursor  int
	RemoteAddr  string
	Secure      bool
}

func newRequest() *Request {
	return &Request{Headers: NewHeaders()}
}

func (r *Request) reset() {
	r.Method = ""
	r.Major, r.Minor = 0, 0
	r.Headers.Reset()
	r.url.Reset()
	r.body = r.body[:0]
	r.bodyCursor = 0
}

func (r *Request) appendURL(b []byte) { r.url.Write(b) }

// RawURL returns the accumulated path+query bytes (spec §4.1 "URL
// assembly"), cached until the next Reset.
func (r *Request) RawURL() string { return r.url.String() }

// URL reconstructs the fully-qualified URL on demand: scheme from the
// secure flag, host from the Host header (or the literal fallback with an
// error already logged by the processor), path+query from RawURL.
func (r *Request) URL() string {
	scheme := "http"
	if r.Secure {
		scheme = "https"
	}
	host := r.Headers.Get("Host")
	if host == "" {
		host = "Host_Not_Available"
	}
	return scheme + "://" + host + r.RawURL()
}

func (r *Request) appendBody(b []byte) {
	cp := make([]byte, len(b))
	copy(cp, b)
	r.body = append(r.body, cp)
}

// Read implements the request-reader interface (spec §6): bytes_read per
// call, blocking semantics are the caller's responsibility since the whole
// body has already been buffered by the time the delegate runs.
func (r *Request) Read(into []byte) (n int, err error) {
	for r.bodyCursor < len(r.body) {
		chunk := r.body[r.bodyCursor]
		if len(chunk) == 0 {
			r.bodyCursor++
			continue
		}
		n = copy(into, chunk)
		if n == len(chunk) {
			r.bodyCursor++
		} else {
			r.body[r.bodyCursor] = chunk[n:]
		}
		return n, nil
	}
	return 0, nil
}

func (r *Request) ReadAll(into []byte) (n int, err error) {
	total := 0
	for {
		k, _ := r.Read(into[total:])
		if k == 0 {
			break
		}
		total += k
	}
	return total, nil
}

func (r *Request) ReadString() (string, error) {
	var buf bytes.Buffer
	tmp := make([]byte, 4096)
	for {
		n, _ := r.Read(tmp)
		if n == 0 {
			break
		}
		buf.Write(tmp[:n])
	}
	return buf.String(), nil
}
