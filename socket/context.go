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

package socket

import (
	"context"
	"time"
)

// sCtx implements Context by embedding the listen-scoped parent context
// (for Deadline/Done/Err/Value) while proxying I/O straight to the handle's
// socket. processor -> handler is a non-owning back-reference (spec §9):
// sCtx never prevents the handle from being collected/closed.
type sCtx struct {
	h      *handle
	parent context.Context
}

func (c *sCtx) Deadline() (time.Time, bool) {
	if c.parent == nil {
		return time.Time{}, false
	}
	return c.parent.Deadline()
}

func (c *sCtx) Done() <-chan struct{} {
	if c.parent == nil {
		return nil
	}
	return c.parent.Done()
}

func (c *sCtx) Err() error {
	if c.parent == nil {
		return nil
	}
	return c.parent.Err()
}

func (c *sCtx) Value(key any) any {
	if c.parent == nil {
		return nil
	}
	return c.parent.Value(key)
}

func (c *sCtx) IsConnected() bool {
	return !c.h.closed.Load()
}

func (c *sCtx) ALPN() string {
	return c.h.alpn
}

func (c *sCtx) RemoteHost() string {
	if c.h.conn.RemoteAddr() == nil {
		return ""
	}
	return c.h.conn.RemoteAddr().String()
}

func (c *sCtx) LocalHost() string {
	if c.h.conn.LocalAddr() == nil {
		return ""
	}
	return c.h.conn.LocalAddr().String()
}

func (c *sCtx) Read(p []byte) (int, error) {
	return c.h.conn.Read(p)
}

func (c *sCtx) Write(p []byte) (int, error) {
	return c.h.write(p)
}

func (c *sCtx) Close() error {
	return c.h.conn.Close()
}
