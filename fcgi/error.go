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

// Package fcgi is the FastCGI responder-role record codec and connection
// processor (spec §4.3, §4.4, §4.5): record framing, parameter
// interpretation and the CGI-convention response writer.
package fcgi

import "github.com/nabbar/kitura-net/errors"

const (
	ErrorBufferExhausted errors.CodeError = iota + errors.MinPkgFCGI
	ErrorOversizeData
	ErrorInvalidRequestID
	ErrorInvalidType
	ErrorInvalidRole
	ErrorUnsupportedRole
	ErrorEmptyParameters
	ErrorProtocolError
	ErrorClientDisconnect
	ErrorInternalError
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorBufferExhausted)
	errors.RegisterIdFctMessage(ErrorBufferExhausted, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UNK_ERROR:
		return ""
	case ErrorBufferExhausted:
		return "record incomplete, more bytes needed"
	case ErrorOversizeData:
		return "content length exceeds 65535 bytes"
	case ErrorInvalidRequestID:
		return "request-id must be non-zero"
	case ErrorInvalidType:
		return "unknown FastCGI record type"
	case ErrorInvalidRole:
		return "unsupported BEGIN_REQUEST role"
	case ErrorUnsupportedRole:
		return "role is not RESPONDER"
	case ErrorEmptyParameters:
		return "PARAMS record carried a zero-length name"
	case ErrorProtocolError:
		return "duplicate BEGIN_REQUEST for the active request-id"
	case ErrorClientDisconnect:
		return "peer closed the connection mid-request"
	case ErrorInternalError:
		return "internal FastCGI processor error"
	}

	return ""
}
