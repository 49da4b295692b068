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
	"sync"
	"time"

	librun "github.com/nabbar/golib/runner"
	libstp "github.com/nabbar/golib/runner/startStop"

	"github.com/nabbar/kitura-net/fcgi"
	"github.com/nabbar/kitura-net/h1"
	"github.com/nabbar/kitura-net/socket"
	"github.com/nabbar/kitura-net/upgrade"
)

// Delegate is the application request handler, decoupled from h1/fcgi's
// distinct Request/Response concrete types the same way RequestMonitor is
// (spec §4.9): req/resp are *h1.Request/*h1.Response when Config.Protocol
// is ProtocolHTTP1, *fcgi.Request/*fcgi.Response when ProtocolFastCGI.
type Delegate func(req, resp any)

// Server binds one listening endpoint to either the h1 or the fcgi
// processor and exposes the started/stopped/failed lifecycle named in
// spec §4.9 on top of golib/runner's StartStop state machine.
type Server struct {
	cfg      Config
	delegate Delegate
	monitor  RequestMonitor

	ctx    context.Context
	cancel context.CancelFunc

	lc  *lifecycle
	run libstp.StartStop

	mu  sync.Mutex
	srv socket.Server
	tls *tlsDelegate
}

var _ librun.Runner = (*Server)(nil)

// NewServer validates cfg and wires a Server ready for Start. monitor may
// be nil (spec §4.9: "optional, single"); delegate must not be nil.
func NewServer(cfg Config, delegate Delegate, monitor RequestMonitor) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Protocol != ProtocolHTTP1 && cfg.Protocol != ProtocolFastCGI {
		return nil, ErrorUnknownProtocol.Error()
	}

	s := &Server{
		cfg:      cfg,
		delegate: delegate,
		monitor:  monitor,
		lc:       newLifecycle(),
	}
	s.run = libstp.New(s.start, s.stop)
	return s, nil
}

// OnStarted / OnStopped / OnFailed / OnClientConnFailed register lifecycle
// callbacks (spec §4.9); OnStarted/OnStopped replay once if the transition
// already happened.
func (s *Server) OnStarted(f FuncStarted)                   { s.lc.OnStarted(f) }
func (s *Server) OnStopped(f FuncStopped)                   { s.lc.OnStopped(f) }
func (s *Server) OnFailed(f FuncFailed)                     { s.lc.OnFailed(f) }
func (s *Server) OnClientConnFailed(f FuncClientConnFailed) { s.lc.OnClientConnFailed(f) }

func (s *Server) Start(ctx context.Context) error   { return s.run.Start(ctx) }
func (s *Server) Stop(ctx context.Context) error    { return s.run.Stop(ctx) }
func (s *Server) Restart(ctx context.Context) error { return s.run.Restart(ctx) }
func (s *Server) IsRunning() bool                   { return s.run.IsRunning() }
func (s *Server) Uptime() time.Duration             { return s.run.Uptime() }

// ErrorsLast / ErrorsList surface StartStop's own accounting so a caller
// can inspect the last Start/Stop failure without a dedicated callback.
func (s *Server) ErrorsLast() error   { return s.run.ErrorsLast() }
func (s *Server) ErrorsList() []error { return s.run.ErrorsList() }

// start is StartStop's start function: it binds the listening endpoint
// and runs the accept loop until ctx (or Stop) tears it down.
func (s *Server) start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	var tls *tlsDelegate
	if s.cfg.TLS != nil {
		tls = newTLSDelegate(s.cfg.TLS, s.cfg.ServerName)
		if s.cfg.Protocol == ProtocolHTTP1 {
			for _, n := range upgrade.Names() {
				tls.AddSupportedALPN(n)
			}
			tls.AddSupportedALPN("http/1.1")
		}
	}

	srv, err := socket.New(runCtx, s.cfg.Listen, tlsDelegateOrNil(tls), s.resolve)
	if err != nil {
		cancel()
		return ErrorListenFailed.Error(err)
	}

	srv.RegisterFuncError(func(err error) {
		s.lc.fireClientConnFailed(err)
	})

	s.mu.Lock()
	s.srv = srv
	s.tls = tls
	s.ctx = runCtx
	s.cancel = cancel
	s.mu.Unlock()

	s.lc.fireStarted()

	done := make(chan struct{})
	go func() {
		<-runCtx.Done()
		close(done)
	}()

	if err := srv.Listen(done); err != nil {
		s.lc.fireFailed(err)
		return err
	}
	return nil
}

// stop is StartStop's stop function: it tears the listener and every live
// connection down and waits for the accept loop to drain.
func (s *Server) stop(ctx context.Context) error {
	s.mu.Lock()
	srv, cancel := s.srv, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if srv != nil {
		err = srv.Close()
	}
	s.lc.fireStopped()
	return err
}

// tlsDelegateOrNil returns a nil socket.TLSDelegate interface value (not a
// typed-nil *tlsDelegate) when tls is nil, so socket.New's `tls != nil`
// check behaves correctly for a plaintext endpoint.
func tlsDelegateOrNil(tls *tlsDelegate) socket.TLSDelegate {
	if tls == nil {
		return nil
	}
	return tls
}

// resolve is the socket.ProtocolResolver for this server: it ignores the
// negotiated ALPN name entirely for FastCGI (which never terminates TLS
// itself, spec §4.3) and returns this server's single configured processor
// factory regardless of what socket.New passes, since one Server instance
// never multiplexes two wire protocols on one listener.
func (s *Server) resolve(alpn string) (func(ctx socket.Context) socket.Processor, bool) {
	switch s.cfg.Protocol {
	case ProtocolHTTP1:
		return s.newH1Processor, true
	case ProtocolFastCGI:
		return s.newFCGIProcessor, true
	default:
		return nil, false
	}
}

func (s *Server) newH1Processor(ctx socket.Context) socket.Processor {
	secure := s.cfg.TLS != nil
	return h1.NewProcessor(ctx, secure, s.cfg.KeepAlive, s.h1Delegate, s.h1Upgrade)
}

func (s *Server) newFCGIProcessor(ctx socket.Context) socket.Processor {
	return fcgi.NewProcessor(ctx, s.fcgiDelegate)
}

func (s *Server) h1Delegate(req *h1.Request, resp *h1.Response) {
	if s.monitor != nil {
		s.monitor.RequestStarted(req, resp)
		defer s.monitor.RequestFinished(req, resp)
	}
	if s.delegate != nil {
		s.delegate(req, resp)
	}
}

func (s *Server) fcgiDelegate(req *fcgi.Request, resp *fcgi.Response) {
	if s.monitor != nil {
		s.monitor.RequestStarted(req, resp)
		defer s.monitor.RequestFinished(req, resp)
	}
	if s.delegate != nil {
		s.delegate(req, resp)
	}
}

// h1Upgrade resolves the Upgrade: header's requested protocol name against
// the upgrade registry (spec §4.8); the parser itself only ever knows that
// an upgrade was requested via Connection, never which protocol by name,
// so that lookup belongs here, at the point this server wires h1 to the
// process-wide registry.
func (s *Server) h1Upgrade(req *h1.Request, resp *h1.Response) (socket.Processor, bool) {
	name := req.Headers.Get("Upgrade")
	if name == "" {
		return nil, false
	}
	factory, ok := upgrade.Lookup(name)
	if !ok {
		return nil, false
	}
	return factory(req, resp)
}
