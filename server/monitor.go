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

package server

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"time"

	libptc "github.com/nabbar/golib/network/protocol"
	libver "github.com/nabbar/golib/version"

	libmon "github.com/nabbar/golib/monitor"
	moninf "github.com/nabbar/golib/monitor/info"
	montps "github.com/nabbar/golib/monitor/types"
)

const defaultMonitorName = "kitura-net server"

// RequestMonitor is the optional, single, process-wide hook invoked around
// every delegate call on every protocol this server runs (spec §4.9).
// req/resp are the concrete *h1.Request/*h1.Response or *fcgi.Request/
// *fcgi.Response for the protocol handling this request.
type RequestMonitor interface {
	RequestStarted(req, resp any)
	RequestFinished(req, resp any)
}

// healthCheck dials the bound address the same way the teacher's
// httpserver health check does, to verify the listener is actually
// accepting connections rather than merely reporting IsRunning.
func (s *Server) healthCheck(ctx context.Context) error {
	if !s.IsRunning() {
		return errNotRunning
	}

	x, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	d := &net.Dialer{}
	c, err := d.DialContext(x, libptc.NetworkTCP.Code(), s.cfg.Listen.Address)
	if err != nil {
		return err
	}
	return c.Close()
}

// Monitor builds (and starts) a golib/monitor instance reporting this
// server's runtime identity and health (spec §4.9's monitor interface,
// extended with the teacher's existing health-check wiring).
func (s *Server) Monitor(vrs libver.Version) (montps.Monitor, error) {
	res := map[string]interface{}{
		"runtime": runtime.Version()[2:],
		"release": vrs.GetRelease(),
		"build":   vrs.GetBuild(),
		"date":    vrs.GetDate(),
		"proto":   s.cfg.Protocol.String(),
	}

	inf, e := moninf.New(s.monitorName())
	if e != nil {
		return nil, e
	}
	inf.RegisterName(func() (string, error) { return s.monitorName(), nil })
	inf.RegisterInfo(func() (map[string]interface{}, error) { return res, nil })

	mon, e := libmon.New(s.ctx, inf)
	if e != nil {
		return nil, e
	}

	mon.SetHealthCheck(s.healthCheck)

	if e = mon.SetConfig(s.ctx, s.cfg.Monitor); e != nil {
		return nil, e
	}

	if e = mon.Start(s.ctx); e != nil {
		return nil, e
	}

	return mon, nil
}

func (s *Server) monitorName() string {
	name := s.cfg.Name
	if name == "" {
		name = defaultMonitorName
	}
	return fmt.Sprintf("%s [%s]", name, s.cfg.Listen.Address)
}

var errNotRunning = fmt.Errorf("server is not running")
