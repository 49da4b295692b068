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
	"bytes"
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	libptc "github.com/nabbar/golib/network/protocol"
	libtls "github.com/nabbar/kitura-net/certificates"
	liberr "github.com/nabbar/kitura-net/errors"
)

// GetTransport builds a plain *http.Transport with sane pooling defaults,
// the way Options.GetClient and UseClientPackage both need as their
// starting point before TLS/dial/proxy are layered on.
func GetTransport(disableKeepAlive, disableCompression, http2 bool) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DisableKeepAlives:     disableKeepAlive,
		DisableCompression:    disableCompression,
		ForceAttemptHTTP2:     http2,
		MaxIdleConns:          25,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 3 * time.Second,
	}
}

// SetTransportTLS attaches tls's *tls.Config to tr, scoped to servername's SNI.
func SetTransportTLS(tr *http.Transport, tls libtls.TLSConfig, servername string) {
	if tr == nil || tls == nil {
		return
	}
	tr.TLSClientConfig = tls.TlsConfig(servername)
}

// SetTransportDial rewires tr's dialer to force every connection onto ip,
// regardless of the host the caller asked to dial, optionally binding the
// local side to local. Used by OptionForceIP.
func SetTransportDial(tr *http.Transport, enable bool, network libptc.NetworkProtocol, ip, local string) {
	if tr == nil || !enable || ip == "" {
		return
	}

	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 15 * time.Second}
	if local != "" {
		if laddr, err := net.ResolveTCPAddr(network.String(), local+":0"); err == nil {
			d.LocalAddr = laddr
		}
	}

	tr.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return d.DialContext(ctx, network.String(), ip)
	}
}

// SetTransportProxy routes every request through endpoint.
func SetTransportProxy(tr *http.Transport, endpoint *url.URL) {
	if tr == nil || endpoint == nil {
		return
	}
	tr.Proxy = http.ProxyURL(endpoint)
}

// GetClient wraps tr into an *http.Client bounded by timeout; tr defaults to
// GetTransport's plain transport when nil.
func GetClient(tr *http.Transport, http2 bool, timeout time.Duration) (*http.Client, liberr.Error) {
	if tr == nil {
		tr = GetTransport(false, false, http2)
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

// GetClientTls returns a client whose transport terminates TLS against tls,
// scoped to host's SNI.
func GetClientTls(host string, tls libtls.TLSConfig, http2 bool, timeout time.Duration) (*http.Client, liberr.Error) {
	if tls == nil {
		tls = libtls.Default
	}

	tr := GetTransport(false, false, http2)
	SetTransportTLS(tr, tls, host)
	return GetClient(tr, http2, timeout)
}

// GetClientTimeout returns a plain client bounded only by timeout, with no
// TLS override and no forced dial target - the fallback UseClientPackage
// reaches for once a TLS-scoped or forced-IP client can't be built.
func GetClientTimeout(host string, http2 bool, timeout time.Duration) (*http.Client, liberr.Error) {
	return GetClient(GetTransport(false, false, http2), http2, timeout)
}

// GetClientTlsForceIp returns a client whose transport dials ip directly on
// network for every request while still presenting host as the TLS SNI,
// combining UseClientPackage's force-IP and TLS-scoped modes.
func GetClientTlsForceIp(network Network, ip, host string, tls libtls.TLSConfig, http2 bool, timeout time.Duration) (*http.Client, liberr.Error) {
	if tls == nil {
		tls = libtls.Default
	}

	tr := GetTransport(false, false, http2)
	SetTransportTLS(tr, tls, host)

	d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 15 * time.Second}
	dialNet := network.Code()
	tr.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return d.DialContext(ctx, dialNet, ip)
	}

	return GetClient(tr, http2, timeout)
}

// GetClientError builds a plain client for host with no TLS/dial
// customization, the constructor httpClient.NewClient falls back to when
// it is only given a bare host to reach.
func GetClientError(host string) (*http.Client, liberr.Error) {
	return GetClientTimeout(host, false, 0)
}

// requestError is the RequestError captured on a Request's last failed Do or
// DoParse call, retrievable through Request.Error().
type requestError struct {
	c int
	s string
	b *bytes.Buffer
	e error
}

func (r *requestError) StatusCode() int        { return r.c }
func (r *requestError) Status() string         { return r.s }
func (r *requestError) Body() *bytes.Buffer    { return r.b }
func (r *requestError) Error() error           { return r.e }
