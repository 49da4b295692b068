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
	"strings"

	liberr "github.com/nabbar/kitura-net/errors"
	"github.com/nabbar/kitura-net/h1"
)

// requestState is the processor-visible state machine (spec §4.4 "State
// machine"): initial -> request-started -> headers-complete ->
// request-complete.
type requestState uint8

const (
	stateInitial requestState = iota
	stateRequestStarted
	stateHeadersComplete
	stateRequestComplete
)

// Request is the assembled FastCGI request, populated from PARAMS and
// STDIN records (spec §4.4).
type Request struct {
	Method     string
	URI        string
	RemoteAddr string
	Major      int
	Minor      int
	Headers    *h1.Headers
	body       []byte
}

func newRequest() *Request {
	return &Request{Headers: h1.NewHeaders(), Minor: 0}
}

func (r *Request) reset() {
	r.Method, r.URI, r.RemoteAddr = "", "", ""
	r.Major, r.Minor = 0, 0
	r.Headers.Reset()
	r.body = r.body[:0]
}

func (r *Request) Body() []byte { return r.body }

// Delegate is invoked once a request reaches request-complete.
type Delegate func(req *Request, resp *Response)

// Writer is the collaborator a Processor flushes raw bytes through; the
// owning socket manager supplies one.
type Writer interface {
	Write(p []byte) (int, error)
}

// Processor implements socket.Processor over the FastCGI wire format
// (spec §4.4). One Processor serves one connection; FastCGI's own
// multiplexing is rejected per spec rather than honored (see
// Multiplex handling below), so at most one request is ever active.
type Processor struct {
	w        Writer
	delegate Delegate

	state     requestState
	requestID uint16
	meta      ParsedMeta
	req       *Request
	resp      *Response

	extraIDs []uint16

	buf     []byte
	errored bool

	// completed records whether the most recent Process call reached
	// request-complete (delegate dispatched) or failed fatally, as opposed
	// to merely buffering a BEGIN_REQUEST/PARAMS/STDIN sequence split
	// across reads. The manager must not act on KeepAliveAllowed's
	// always-false verdict until this is true (spec §4.1, §4.4, §4.6).
	completed bool
}

// NewProcessor constructs a Processor bound to one connection's writer.
func NewProcessor(w Writer, delegate Delegate) *Processor {
	p := &Processor{w: w, delegate: delegate}
	p.req = newRequest()
	p.resp = newResponse(w, p)
	return p
}

// Process feeds newly-read socket bytes to the record parser, interprets
// completed records, and returns the unconsumed suffix (spec §4.3 "Parser
// iteration contract", spec §4.4 "Parse loop").
func (p *Processor) Process(data []byte) ([]byte, error) {
	p.completed = false
	if p.errored {
		p.completed = true
		return nil, nil
	}

	p.buf = append(p.buf, data...)
	for {
		rec, rest, err := ParseRecord(p.buf)
		if err != nil {
			if liberr.IsCode(err, ErrorBufferExhausted) {
				p.buf = rest
				return nil, nil
			}
			p.fail()
			return nil, nil
		}
		p.buf = rest

		if cont := p.handleRecord(rec); !cont {
			break
		}
	}
	return nil, nil
}

// MessageCompleted reports whether the call to Process that just returned
// dispatched the request to the delegate or failed fatally, as opposed to
// merely buffering records from a request split across reads.
func (p *Processor) MessageCompleted() bool { return p.completed }

// handleRecord applies one decoded record to the state machine; it returns
// false once the processor should stop looping this Process call (e.g.
// after a fatal error already reported).
func (p *Processor) handleRecord(rec Record) bool {
	switch rec.Type {
	case TypeBeginRequest:
		return p.onBeginRequest(rec)
	case TypeParams:
		return p.onParams(rec)
	case TypeStdin:
		return p.onStdin(rec)
	case TypeAbortRequest:
		return true
	default:
		return true
	}
}

// onBeginRequest handles both the primary request and FastCGI's own
// multiplexing attempt (spec §4.4 "Multiplex handling"): a second
// BEGIN_REQUEST with a new id while a request is in progress is recorded
// in extraIDs rather than honored; the already-active id arriving again is
// a fatal protocol error.
func (p *Processor) onBeginRequest(rec Record) bool {
	if p.state == stateInitial {
		role, _, err := rec.BeginRequestBody()
		if err != nil {
			_ = p.writeUnsupportedRole(rec.RequestID)
			p.fail()
			return false
		}
		_ = role
		p.requestID = rec.RequestID
		p.state = stateRequestStarted
		return true
	}

	if rec.RequestID == p.requestID {
		p.fail()
		return false
	}

	p.extraIDs = append(p.extraIDs, rec.RequestID)
	return true
}

func (p *Processor) onParams(rec Record) bool {
	if rec.RequestID != p.requestID || p.state != stateRequestStarted {
		return true
	}
	if len(rec.Content) == 0 {
		p.state = stateHeadersComplete
		p.applyMeta()
		return true
	}

	pairs, err := ParseParams(rec.Content)
	if err != nil {
		p.fail()
		return false
	}
	for _, pr := range pairs {
		InterpretParam(&p.meta, pr.Name, pr.Value)
	}
	return true
}

func (p *Processor) applyMeta() {
	p.req.Method = strings.ToUpper(p.meta.Method)
	p.req.URI = p.meta.URI
	p.req.RemoteAddr = p.meta.RemoteAddr
	p.req.Major, p.req.Minor = p.meta.Major, p.meta.Minor
	for _, h := range p.meta.Headers {
		p.req.Headers.Append(h.Name, h.Value)
	}
}

func (p *Processor) onStdin(rec Record) bool {
	if rec.RequestID != p.requestID || p.state != stateHeadersComplete {
		return true
	}
	if len(rec.Content) == 0 {
		p.state = stateRequestComplete
		p.completed = true
		p.delegate(p.req, p.resp)
		return true
	}
	p.req.body = append(p.req.body, rec.Content...)
	return true
}

// fail marks the connection poisoned; per spec §4.4 a duplicate primary
// BEGIN_REQUEST or a malformed BEGIN_REQUEST is fatal and the connection is
// closed rather than recovered.
func (p *Processor) fail() {
	p.errored = true
	p.completed = true
}

func (p *Processor) writeUnsupportedRole(requestID uint16) error {
	rec, err := BuildEndRequest(requestID, 0, StatusUnknownRole)
	if err != nil {
		return err
	}
	_, err = p.w.Write(rec)
	return err
}

// KeepAliveAllowed reports whether another request may reuse the
// connection. FastCGI's responder role is one-request-per-connection from
// the web-server's perspective in the common (non-multiplexed) deployment
// this package targets; the connection closes after each request-complete.
func (p *Processor) KeepAliveAllowed() bool { return false }

func (p *Processor) SocketClosed() {}

// extraRequestIDs returns, and clears, the ids queued by onBeginRequest so
// the response writer can emit their CANT_MPX_CONN rejections exactly once,
// after the primary response has ended (spec §4.4, §5 ordering guarantee).
func (p *Processor) extraRequestIDs() []uint16 {
	ids := p.extraIDs
	p.extraIDs = nil
	return ids
}
