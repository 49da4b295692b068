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

package httpcli

import (
	"fmt"

	liberr "github.com/nabbar/kitura-net/errors"
)

// Error codes for the outbound HTTP client (httpcli), covering both the
// Options/Request path and the lower-level httpClient/HTTP path.
const (
	ErrorParamEmpty           liberr.CodeError = iota + liberr.MinPkgHttpCli // at least one given parameter is empty
	ErrorParamInvalid                                                        // at least one given parameter is invalid
	ErrorParamsInvalid                                                       // a request is missing its method/url before Do
	ErrorValidatorError                                                      // configuration validation failed
	ErrorClientTransportHttp2                                                // HTTP/2 transport configuration error
	ErrorUrlParse                                                            // uri/url parse error
	ErrorHttpClient                                                          // error creating a new http/http2 client
	ErrorHttpRequest                                                         // error creating a new http/http2 request
	ErrorHttpDo                                                              // error sending a http/http2 request
	ErrorIoRead                                                              // error reading an i/o stream
	ErrorBufferWrite                                                         // error writing bytes to a buffer
	ErrorCreateRequest                                                       // error building a *http.Request from a Request
	ErrorSendRequest                                                         // error sending a Request's underlying http.Request
	ErrorResponseInvalid                                                     // Do returned a nil response with no error
	ErrorResponseLoadBody                                                    // error reading a response body
	ErrorResponseStatus                                                      // response status code outside the accepted list
	ErrorResponseUnmarshall                                                  // error unmarshalling a response body
)

func init() {
	if liberr.ExistInMapMessage(ErrorParamEmpty) {
		panic(fmt.Errorf("error code collision with package kitura-net/httpcli"))
	}
	liberr.RegisterIdFctMessage(ErrorParamEmpty, getMessage)
}

func getMessage(code liberr.CodeError) (message string) {
	switch code {
	case ErrorParamEmpty:
		return "at least one given parameter is empty"
	case ErrorParamInvalid:
		return "at least one given parameter is invalid"
	case ErrorParamsInvalid:
		return "request method or url is not set"
	case ErrorValidatorError:
		return "config seems to be invalid"
	case ErrorClientTransportHttp2:
		return "error while configuring http2 transport for client"
	case ErrorUrlParse:
		return "uri/url parse error"
	case ErrorHttpClient:
		return "error creating a new http/http2 client"
	case ErrorHttpRequest:
		return "error creating a new http/http2 request"
	case ErrorHttpDo:
		return "error sending a http/http2 request"
	case ErrorIoRead:
		return "error reading i/o stream"
	case ErrorBufferWrite:
		return "error writing bytes on buffer"
	case ErrorCreateRequest:
		return "error building the outbound http request"
	case ErrorSendRequest:
		return "error sending the outbound http request"
	case ErrorResponseInvalid:
		return "response is empty"
	case ErrorResponseLoadBody:
		return "error reading the response body"
	case ErrorResponseStatus:
		return "response status code is not in the accepted list"
	case ErrorResponseUnmarshall:
		return "error unmarshalling the response body"
	}

	return liberr.NullMessage
}
