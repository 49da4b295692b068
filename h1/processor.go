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
	"strings"
	"time"

	libdur "github.com/nabbar/kitura-net/duration"
	"github.com/nabbar/kitura-net/socket"
)

// idleTimeout backs the Keep-Alive header's timeout= field; it mirrors
// socket's 60s idle sweep interval (spec §4.2, §3).
var idleTimeout = libdur.Seconds(60)

// KeepAlivePolicy is disabled, unlimited, or limited with a remaining
// counter, per the data model (spec §3). Mutated only by the owning
// Processor.
type KeepAlivePolicy struct {
	Disabled  bool
	Unlimited bool
	Remaining int // valid only when neither Disabled nor Unlimited
}

// Delegate is the application-provided callback invoked once per parsed
// request (spec §6).
type Delegate func(req *Request, resp *Response)

// UpgradeFunc is invoked when the parser detects a successful protocol
// upgrade; it mirrors the upgrade registry's factory signature (spec §4.8)
// without importing the upgrade package, to avoid a dependency cycle. A
// successful factory has already written its own wire-level response
// (e.g. a WebSocket 101 handshake) through Response.RawWriter and returns
// the replacement socket.Processor to swap into the connection's handler.
type UpgradeFunc func(req *Request, resp *Response) (replacement socket.Processor, accepted bool)

// state is the processor-visible parser status state (spec §3).
type state uint8

const (
	stateReading state = iota
	stateMessageRead
	stateReset
	stateErrored
)

// Processor owns the parser, assembled request, response object, parser
// state, keep-alive counter and upgrade flag (spec §2 "HTTP incoming
// processor"). It implements socket.Processor.
type Processor struct {
	parser  *Parser
	req     *Request
	resp    *Response
	w       Writer
	delegate Delegate
	upgrade  UpgradeFunc

	policy KeepAlivePolicy
	state  state

	numRequests int
	secure      bool

	curField, curValue []byte
	haveField          bool

	errored bool

	// completed records whether the most recent Process call dispatched a
	// full request/response cycle (OnMessageComplete, OnUpgrade) or gave up
	// on one after a parse error (OnError), as opposed to merely buffering
	// a partial message. The manager must not consult KeepAliveAllowed
	// until this is true (spec §4.6, §8).
	completed bool

	// replacement is set by OnUpgrade on a successful upgrade and handed
	// to the owning socket manager via TakeUpgrade (spec §4.8 "swapped
	// into the handler atomically with respect to further reads").
	replacement socket.Processor

	// lastKeepAliveDecision is the keep-alive verdict taken once, inside
	// the response's flush-start (spec §9), and reused by onResponseEnded
	// so the reset decision can never drift from what the Connection
	// header already promised the client.
	lastKeepAliveDecision bool
}

// NewProcessor constructs a Processor bound to one connection's writer
// (spec §9: processor -> handler is a non-owning back-reference; w is that
// reference, supplied by the socket manager).
func NewProcessor(w Writer, secure bool, policy KeepAlivePolicy, delegate Delegate, upgrade UpgradeFunc) *Processor {
	p := &Processor{w: w, delegate: delegate, upgrade: upgrade, policy: policy, secure: secure}
	p.req = newRequest()
	p.req.Secure = secure
	p.resp = newResponse(w, p)
	p.parser = NewParser(p)
	return p
}

// --- Events implementation (spec §9 sum-type callbacks) ---

func (p *Processor) OnMessageBegin() {}

func (p *Processor) OnURL(chunk []byte) { p.req.appendURL(chunk) }

func (p *Processor) OnHeaderField(chunk []byte) {
	if p.haveField && len(p.curValue) == 0 {
		p.curField = append(p.curField, chunk...)
		return
	}
	if p.haveField {
		p.commitHeader()
	}
	p.curField = append([]byte{}, chunk...)
	p.haveField = true
}

func (p *Processor) OnHeaderValue(chunk []byte) {
	p.curValue = append(p.curValue, chunk...)
}

func (p *Processor) commitHeader() {
	if len(p.curField) == 0 {
		return
	}
	p.req.Headers.Append(string(p.curField), string(p.curValue))
	p.curField = nil
	p.curValue = nil
	p.haveField = false
}

func (p *Processor) OnHeadersComplete(method string, major, minor int) {
	p.commitHeader()
	p.req.Method = strings.ToUpper(method)
	p.req.Major = major
	p.req.Minor = minor
}

func (p *Processor) OnBody(chunk []byte) { p.req.appendBody(chunk) }

func (p *Processor) OnMessageComplete() {
	p.state = stateMessageRead
	p.numRequests++
	p.completed = true
	p.delegate(p.req, p.resp)
}

func (p *Processor) OnUpgrade() {
	p.state = stateMessageRead
	p.numRequests++
	p.completed = true

	if p.upgrade == nil {
		p.resp.SetStatus(400)
		_ = p.resp.End()
		return
	}

	replacement, accepted := p.upgrade(p.req, p.resp)
	if !accepted {
		p.resp.SetStatus(400)
		_ = p.resp.End()
		return
	}

	// The factory already wrote its own handshake response straight
	// through Response.RawWriter; flushing our own status-line/header
	// block here would corrupt that stream.
	p.replacement = replacement
}

// TakeUpgrade returns, and clears, the replacement processor recorded by
// OnUpgrade. It implements socket.Upgrader so the owning manager can swap
// this connection onto the replacement without any further reads reaching
// the HTTP/1.1 parser (spec §4.8).
func (p *Processor) TakeUpgrade() (socket.Processor, bool) {
	r := p.replacement
	p.replacement = nil
	return r, r != nil
}

func (p *Processor) OnError(kind string) {
	p.errored = true
	p.state = stateErrored
	p.completed = true
	// Per spec §9 Open Question resolution: always attempt to write 400,
	// ignore any write error.
	resp := newResponse(p.w, nil)
	resp.SetStatus(400)
	_ = resp.End()
}

// --- socket.Processor implementation ---

// Process feeds bytes to the parser. A parser error is translated into the
// mandatory 400 response and the connection is marked poisoned so no
// further bytes are parsed (spec §4.1 "Failure semantics").
func (p *Processor) Process(data []byte) ([]byte, error) {
	p.completed = false
	if p.errored {
		p.completed = true
		return nil, nil
	}
	rest, err := p.parser.Feed(data)
	if err != nil {
		p.OnError("protocol-error")
		return nil, nil
	}
	return rest, nil
}

// MessageCompleted reports whether the call to Process that just returned
// dispatched a request to the delegate, completed an upgrade, or hit a
// parse error - as opposed to buffering a request split across reads.
func (p *Processor) MessageCompleted() bool { return p.completed }

// KeepAliveAllowed reports whether another request may reuse the
// connection (spec §4.1). By the time this is consulted the delegate has
// already called Response.End exactly once, which recorded the decision
// and performed the reset transition if it was true.
func (p *Processor) KeepAliveAllowed() bool {
	if p.errored {
		return false
	}
	return p.state == stateReset
}

func (p *Processor) SocketClosed() {}

// keepAliveForResponse is the single-writer decision made inside the
// response flush-start (spec §9): true iff the last parsed request asked
// for keep-alive (or was HTTP/1.1 without Connection: close) AND policy
// still permits another request AND no parser error occurred.
func (p *Processor) keepAliveForResponse() bool {
	if p.errored || p.policy.Disabled {
		return false
	}
	// Remaining counts this request too: a value of 1 means this is the
	// last request the policy permits, so its own response must already
	// say Connection: Close rather than waiting for a request that will
	// never come.
	if !p.policy.Unlimited && p.policy.Remaining <= 1 {
		return false
	}

	conn := strings.ToLower(p.req.Headers.Get("Connection"))
	switch conn {
	case "close":
		return false
	case "keep-alive":
		return true
	default:
		return p.req.Major == 1 && p.req.Minor >= 1
	}
}

func (p *Processor) keepAliveRemaining() int {
	if p.policy.Unlimited {
		return p.numRequests
	}
	if p.policy.Remaining > 0 {
		return p.policy.Remaining - 1
	}
	return 0
}

// onResponseEnded implements the reset transition (spec §4.1): decrements
// the limited keep-alive counter, reinitializes the parser/request/response
// for the next pipelined or newly-read request.
func (p *Processor) onResponseEnded() {
	decision := p.lastKeepAliveDecision

	if !p.policy.Unlimited && !p.policy.Disabled && p.policy.Remaining > 0 {
		p.policy.Remaining--
	}

	if decision {
		p.state = stateReset
		p.parser.Reset()
		p.req.reset()
		p.resp.reset()
	}
}

func httpDate() string {
	return time.Now().UTC().Format(time.RFC1123)
}
