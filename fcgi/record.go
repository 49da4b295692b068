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

import "encoding/binary"

const (
	version1 = 1

	headerLen = 8
	maxContentLen = 65535
)

// RecordType is the FastCGI record type byte (spec §4.3 "Supported types").
type RecordType uint8

const (
	TypeBeginRequest RecordType = 1
	TypeAbortRequest RecordType = 2
	TypeEndRequest   RecordType = 3
	TypeParams       RecordType = 4
	TypeStdin        RecordType = 5
	TypeStdout       RecordType = 6
)

// Role is the application role requested by BEGIN_REQUEST.
type Role uint16

const (
	RoleResponder Role = 1
)

// ProtocolStatus is the END_REQUEST protocol-status byte.
type ProtocolStatus uint8

const (
	StatusRequestComplete ProtocolStatus = 0
	StatusCantMpxConn     ProtocolStatus = 1
	StatusUnknownRole     ProtocolStatus = 3
)

// Record is one decoded FastCGI record: header fields plus content, with
// padding already stripped (spec §4.3 "Wire format").
type Record struct {
	Type      RecordType
	RequestID uint16
	Content   []byte
}

// BeginRequestBody decodes a BEGIN_REQUEST record's content (spec §4.3
// "BEGIN_REQUEST payload"): 2-byte role, 1-byte flags, 5 reserved bytes.
func (r Record) BeginRequestBody() (role Role, flags byte, err error) {
	if len(r.Content) < 8 {
		return 0, 0, ErrorInternalError.Error()
	}
	role = Role(binary.BigEndian.Uint16(r.Content[0:2]))
	flags = r.Content[2]
	if role != RoleResponder {
		return role, flags, ErrorUnsupportedRole.Error()
	}
	return role, flags, nil
}

// ParseRecord decodes exactly one record from the front of data (spec §4.3
// "Parser iteration contract"): on success it returns the record plus the
// unconsumed suffix; when data does not yet hold a full record it returns
// ErrorBufferExhausted and the caller should read more and retry with the
// same (unconsumed) buffer.
func ParseRecord(data []byte) (rec Record, rest []byte, err error) {
	if len(data) < headerLen {
		return Record{}, data, ErrorBufferExhausted.Error()
	}

	version := data[0]
	typ := RecordType(data[1])
	reqID := binary.BigEndian.Uint16(data[2:4])
	contentLen := binary.BigEndian.Uint16(data[4:6])
	padLen := data[6]

	total := headerLen + int(contentLen) + int(padLen)
	if len(data) < total {
		return Record{}, data, ErrorBufferExhausted.Error()
	}

	if version != version1 {
		return Record{}, data, ErrorInternalError.Error()
	}
	if !validType(typ) {
		return Record{}, data, ErrorInvalidType.Error()
	}
	if reqID == 0 && typ != TypeBeginRequest {
		// management records (request-id 0) are accepted structurally but
		// carry no request; the responder-only processor has nothing to do
		// with them beyond consuming their bytes.
	}

	content := make([]byte, contentLen)
	copy(content, data[headerLen:headerLen+int(contentLen)])

	rec = Record{Type: typ, RequestID: reqID, Content: content}
	return rec, data[total:], nil
}

func validType(t RecordType) bool {
	switch t {
	case TypeBeginRequest, TypeAbortRequest, TypeEndRequest, TypeParams, TypeStdin, TypeStdout:
		return true
	}
	return false
}

// BuildRecord encodes one record, padding content to a multiple of 8 bytes
// total (spec §4.3 "Records are padded..."). requestID must be non-zero for
// request-bearing types, content length must be <= 65535, and typ must be
// one of the supported types, else the corresponding CodeError is returned.
func BuildRecord(typ RecordType, requestID uint16, content []byte) ([]byte, error) {
	if !validType(typ) {
		return nil, ErrorInvalidType.Error()
	}
	if requestID == 0 {
		return nil, ErrorInvalidRequestID.Error()
	}
	if len(content) > maxContentLen {
		return nil, ErrorOversizeData.Error()
	}

	padLen := (8 - (len(content) % 8)) % 8
	out := make([]byte, headerLen+len(content)+padLen)

	out[0] = version1
	out[1] = byte(typ)
	binary.BigEndian.PutUint16(out[2:4], requestID)
	binary.BigEndian.PutUint16(out[4:6], uint16(len(content)))
	out[6] = byte(padLen)
	out[7] = 0

	copy(out[headerLen:], content)
	return out, nil
}

// BuildBeginRequestContent encodes a BEGIN_REQUEST payload: role, flags,
// then 5 reserved zero bytes.
func BuildBeginRequestContent(role Role, flags byte) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint16(b[0:2], uint16(role))
	b[2] = flags
	return b
}

// BuildEndRequestContent encodes an END_REQUEST payload: app-status,
// protocol-status, then 3 reserved zero bytes.
func BuildEndRequestContent(appStatus uint32, status ProtocolStatus) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b[0:4], appStatus)
	b[4] = byte(status)
	return b
}

// BuildEndRequest is the common case of BuildRecord(TypeEndRequest, ...)
// used both for the terminal END_REQUEST of a normal response and for the
// raw multiplex-reject/unsupported-role END_REQUEST records (spec §4.4,
// §4.5) that bypass any HTTP-style header emission.
func BuildEndRequest(requestID uint16, appStatus uint32, status ProtocolStatus) ([]byte, error) {
	return BuildRecord(TypeEndRequest, requestID, BuildEndRequestContent(appStatus, status))
}
