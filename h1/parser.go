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

// Package h1 is the HTTP/1.1 request framing engine: an incremental
// byte-stream parser and connection state machine coordinating keep-alive
// reuse, protocol upgrade hand-off and bad-request recovery (spec §4.1),
// plus the response writer (spec §4.2).
package h1

import (
	"bytes"
	"strconv"
	"strings"
)

// parseState is the parser's own byte-scanning state; it is finer-grained
// than the processor-visible Status.State (spec §3 "Parser status").
type parseState uint8

const (
	stRequestLine parseState = iota
	stHeaderField
	stHeaderValue
	stHeadersDone
	stBody
	stChunkSize
	stChunkData
	stChunkCRLF
	stDone
)

// Events is the sum-type callback surface the original C-library pointer
// back-reference becomes in Go (spec §9): one method per event kind,
// invoked synchronously and in the order URL*, (header-field,
// header-value)*, headers-complete, body*, message-complete|upgrade.
type Events interface {
	OnMessageBegin()
	OnURL(chunk []byte)
	OnHeaderField(chunk []byte)
	OnHeaderValue(chunk []byte)
	OnHeadersComplete(method string, major, minor int)
	OnBody(chunk []byte)
	OnMessageComplete()
	OnUpgrade()
	OnError(kind string)
}

// Parser is the incremental scanner. Feed may be called with any chunking
// of the input byte stream; it consumes bytes until no further progress
// can be made without more input, and returns the unconsumed suffix.
type Parser struct {
	ev    Events
	state parseState

	lastWasValue bool // header assembly: true once a value chunk was seen

	method      bytes.Buffer
	major, minr int

	contentLength   int64
	haveLength      bool
	chunked         bool
	remaining       int64
	upgradeRequested bool

	lineBuf bytes.Buffer
}

func NewParser(ev Events) *Parser {
	return &Parser{ev: ev}
}

// Reset reinitializes the parser for the next request on the same
// connection (spec §4.1 "reset" transition).
func (p *Parser) Reset() {
	p.state = stRequestLine
	p.lastWasValue = false
	p.method.Reset()
	p.major, p.minr = 0, 0
	p.contentLength = 0
	p.haveLength = false
	p.chunked = false
	p.remaining = 0
	p.upgradeRequested = false
	p.lineBuf.Reset()
}

// Feed consumes as much of data as one complete message needs, returning
// the unconsumed suffix (empty when the message is still incomplete and
// every byte has already been absorbed into internal line-assembly state;
// non-empty only when data held a full message plus the start of the
// next one — the pipelining case).
func (p *Parser) Feed(data []byte) (rest []byte, err error) {
	if p.state == stRequestLine && p.lineBuf.Len() == 0 {
		p.ev.OnMessageBegin()
	}

	i := 0
	for i < len(data) {
		switch p.state {
		case stRequestLine:
			n, done, e := p.feedLine(data[i:])
			i += n
			if e != nil {
				return data[i:], e
			}
			if !done {
				return data[i:], nil
			}
		case stHeaderField, stHeaderValue:
			n, done, e := p.feedHeaderLine(data[i:])
			i += n
			if e != nil {
				return data[i:], e
			}
			if !done {
				return data[i:], nil
			}
		case stHeadersDone:
			p.onHeadersComplete()
			if p.upgradeRequested {
				p.ev.OnUpgrade()
				p.state = stDone
				return data[i:], nil
			}
			if p.chunked {
				p.state = stChunkSize
			} else if p.haveLength && p.contentLength > 0 {
				p.remaining = p.contentLength
				p.state = stBody
			} else {
				p.state = stDone
			}
		case stBody:
			take := p.remaining
			if int64(len(data)-i) < take {
				take = int64(len(data) - i)
			}
			if take > 0 {
				p.ev.OnBody(data[i : i+int(take)])
				i += int(take)
				p.remaining -= take
			}
			if p.remaining == 0 {
				p.state = stDone
			} else {
				return data[i:], nil
			}
		case stChunkSize:
			n, done, e := p.feedChunkSize(data[i:])
			i += n
			if e != nil {
				return data[i:], e
			}
			if !done {
				return data[i:], nil
			}
		case stChunkData:
			take := p.remaining
			if int64(len(data)-i) < take {
				take = int64(len(data) - i)
			}
			if take > 0 {
				p.ev.OnBody(data[i : i+int(take)])
				i += int(take)
				p.remaining -= take
			}
			if p.remaining == 0 {
				p.state = stChunkCRLF
			} else {
				return data[i:], nil
			}
		case stChunkCRLF:
			if len(data)-i < 2 {
				return data[i:], nil
			}
			i += 2
			p.state = stChunkSize
		case stDone:
			p.ev.OnMessageComplete()
			return data[i:], nil
		}
	}

	if p.state == stDone {
		p.ev.OnMessageComplete()
	}
	return data[i:], nil
}

func (p *Parser) feedLine(data []byte) (consumed int, done bool, err error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		p.lineBuf.Write(data)
		return len(data), false, nil
	}
	p.lineBuf.Write(data[:idx+1])
	line := strings.TrimRight(p.lineBuf.String(), "\r\n")
	p.lineBuf.Reset()

	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return idx + 1, false, ErrorProtocolError.Error()
	}
	p.method.WriteString(parts[0])

	major, minr, ok := parseHTTPVersion(parts[2])
	if !ok {
		return idx + 1, false, ErrorProtocolError.Error()
	}
	p.major, p.minr = major, minr
	p.urlChunk(parts[1])

	p.state = stHeaderField
	return idx + 1, true, nil
}

func (p *Parser) urlChunk(s string) {
	p.ev.OnURL([]byte(s))
}

func (p *Parser) feedHeaderLine(data []byte) (consumed int, done bool, err error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		p.lineBuf.Write(data)
		return len(data), false, nil
	}
	p.lineBuf.Write(data[:idx+1])
	line := strings.TrimRight(p.lineBuf.String(), "\r\n")
	p.lineBuf.Reset()

	if line == "" {
		p.state = stHeadersDone
		return idx + 1, true, nil
	}

	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return idx + 1, false, ErrorProtocolError.Error()
	}
	field := strings.TrimSpace(line[:colon])
	value := strings.TrimSpace(line[colon+1:])

	p.ev.OnHeaderField([]byte(field))
	p.ev.OnHeaderValue([]byte(value))

	p.inspectHeader(field, value)
	return idx + 1, true, nil
}

func (p *Parser) inspectHeader(field, value string) {
	switch strings.ToLower(field) {
	case "content-length":
		if n, e := strconv.ParseInt(value, 10, 64); e == nil {
			p.contentLength = n
			p.haveLength = true
		}
	case "transfer-encoding":
		if strings.Contains(strings.ToLower(value), "chunked") {
			p.chunked = true
		}
	case "upgrade":
		p.upgradeRequested = true
	}
}

func (p *Parser) onHeadersComplete() {
	p.ev.OnHeadersComplete(p.method.String(), p.major, p.minr)
}

func (p *Parser) feedChunkSize(data []byte) (consumed int, done bool, err error) {
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		p.lineBuf.Write(data)
		return len(data), false, nil
	}
	p.lineBuf.Write(data[:idx+1])
	line := strings.TrimRight(p.lineBuf.String(), "\r\n")
	p.lineBuf.Reset()

	if semi := strings.IndexByte(line, ';'); semi >= 0 {
		line = line[:semi]
	}
	n, e := strconv.ParseInt(strings.TrimSpace(line), 16, 64)
	if e != nil {
		return idx + 1, false, ErrorProtocolError.Error()
	}
	if n == 0 {
		p.state = stDone
		return idx + 1, true, nil
	}
	p.remaining = n
	p.state = stChunkData
	return idx + 1, true, nil
}

// Method/Major/Minor are exposed for the processor to read after
// OnHeadersComplete fires (they are also delivered as callback arguments;
// these accessors exist for symmetry with the FastCGI processor's
// field-at-a-time assembly style).
func (p *Parser) Method() string { return p.method.String() }
func (p *Parser) Major() int     { return p.major }
func (p *Parser) Minor() int     { return p.minr }

func parseHTTPVersion(s string) (major, minor int, ok bool) {
	const prefix = "HTTP/"
	if !strings.HasPrefix(s, prefix) {
		return 0, 0, false
	}
	rest := s[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, 0, false
	}
	maj, e1 := strconv.Atoi(rest[:dot])
	min, e2 := strconv.Atoi(rest[dot+1:])
	if e1 != nil || e2 != nil {
		return 0, 0, false
	}
	return maj, min, true
}
