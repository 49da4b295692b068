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
	"encoding/binary"
	"strings"
)

// Param is one decoded name-value pair from a PARAMS record.
type Param struct {
	Name  string
	Value string
}

// ParseParams decodes every name-value pair out of a PARAMS record's
// content (spec §4.3 "PARAMS payload"). A zero-length name anywhere in the
// sequence is a fatal ErrorEmptyParameters.
func ParseParams(content []byte) ([]Param, error) {
	var out []Param
	i := 0
	for i < len(content) {
		nameLen, n1, ok := readParamLength(content[i:])
		if !ok {
			return nil, ErrorInternalError.Error()
		}
		i += n1

		valLen, n2, ok := readParamLength(content[i:])
		if !ok {
			return nil, ErrorInternalError.Error()
		}
		i += n2

		if i+nameLen+valLen > len(content) {
			return nil, ErrorInternalError.Error()
		}
		name := string(content[i : i+nameLen])
		i += nameLen
		value := string(content[i : i+valLen])
		i += valLen

		if nameLen == 0 {
			return nil, ErrorEmptyParameters.Error()
		}
		out = append(out, Param{Name: name, Value: value})
	}
	return out, nil
}

// readParamLength decodes one name/value-length field (spec §4.3 "Lengths
// use a length-encoding"): a 1-byte length when the high bit is clear, else
// a 4-byte big-endian length with the high bit of the first byte masked
// off.
func readParamLength(b []byte) (length, consumed int, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	if b[0]&0x80 == 0 {
		return int(b[0]), 1, true
	}
	if len(b) < 4 {
		return 0, 0, false
	}
	v := binary.BigEndian.Uint32(b[0:4])
	v &^= 1 << 31
	return int(v), 4, true
}

// EncodeParams encodes pairs in arrival order, using the short form for
// lengths under 128 and the long form otherwise.
func EncodeParams(pairs []Param) []byte {
	var out []byte
	writeLen := func(n int) {
		if n < 128 {
			out = append(out, byte(n))
			return
		}
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(n)|(1<<31))
		out = append(out, b[:]...)
	}
	for _, p := range pairs {
		writeLen(len(p.Name))
		writeLen(len(p.Value))
		out = append(out, p.Name...)
		out = append(out, p.Value...)
	}
	return out
}

// ParsedMeta is the subset of PARAMS a FastCGI processor interprets into
// request fields, per spec §4.4 "Parameter interpretation".
type ParsedMeta struct {
	Method       string
	URI          string
	RemoteAddr   string
	Major, Minor int
	Headers      []Param // HTTP_* params converted to canonical header names
}

// InterpretParam classifies one PARAMS pair into meta, mutating it in
// place; unrecognized names are silently discarded (spec §4.4: "community-
// configurable pass-through is explicitly not implemented").
func InterpretParam(meta *ParsedMeta, name, value string) {
	switch strings.ToUpper(name) {
	case "REQUEST_METHOD":
		meta.Method = value
	case "REQUEST_URI":
		meta.URI = value
	case "REMOTE_ADDR":
		meta.RemoteAddr = value
	case "SERVER_PROTOCOL":
		if major, minor, ok := parseServerProtocol(value); ok {
			meta.Major, meta.Minor = major, minor
		}
	default:
		if header, ok := httpHeaderName(name); ok {
			meta.Headers = append(meta.Headers, Param{Name: header, Value: value})
		}
	}
}

func parseServerProtocol(v string) (major, minor int, ok bool) {
	const prefix = "HTTP/"
	if !strings.HasPrefix(v, prefix) {
		return 0, 0, false
	}
	rest := v[len(prefix):]
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return 0, 0, false
	}
	maj, minr := 0, 0
	for _, c := range rest[:dot] {
		if c < '0' || c > '9' {
			return 0, 0, false
		}
		maj = maj*10 + int(c-'0')
	}
	for _, c := range rest[dot+1:] {
		if c < '0' || c > '9' {
			return 0, 0, false
		}
		minr = minr*10 + int(c-'0')
	}
	return maj, minr, true
}

// httpHeaderName converts an HTTP_* parameter name to its canonical header
// form (spec §4.4: "strip HTTP_, replace _ with -, capitalize each word").
func httpHeaderName(name string) (string, bool) {
	const prefix = "HTTP_"
	upper := strings.ToUpper(name)
	if !strings.HasPrefix(upper, prefix) {
		return "", false
	}
	words := strings.Split(upper[len(prefix):], "_")
	for i, w := range words {
		if len(w) == 0 {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, "-"), true
}
