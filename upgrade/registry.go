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

// Package upgrade is the process-wide name -> factory registry invoked
// after an HTTP/1.1 processor detects a successful protocol upgrade
// (spec §4.8).
package upgrade

import (
	"sync"

	"github.com/nabbar/kitura-net/h1"
	"github.com/nabbar/kitura-net/socket"
)

// Factory is invoked once per accepted upgrade. It may reject by setting a
// status code on resp (the connection then closes) or accept by returning
// a replacement Processor that the handler swaps in atomically with
// respect to further reads (spec §4.8).
type Factory func(req *h1.Request, resp *h1.Response) (socket.Processor, bool)

// registry is the process-wide, concurrency-safe name -> Factory map,
// modeled on httpserver/handler.go's HandlerStoreFct/HandlerLoadFct
// Store/Load-under-RWMutex shape.
type registry struct {
	mu sync.RWMutex
	m  map[string]Factory
}

var global = &registry{m: make(map[string]Factory)}

// Register installs factory under name, overwriting any previous entry.
// Safe to call concurrently with Lookup.
func Register(name string, factory Factory) {
	global.mu.Lock()
	defer global.mu.Unlock()
	global.m[name] = factory
}

// Lookup returns the factory registered under name, if any.
func Lookup(name string) (Factory, bool) {
	global.mu.RLock()
	defer global.mu.RUnlock()
	f, ok := global.m[name]
	return f, ok
}

// Has reports whether name has a registered factory.
func Has(name string) bool {
	global.mu.RLock()
	defer global.mu.RUnlock()
	_, ok := global.m[name]
	return ok
}

// Names returns every registered name, in no particular order.
func Names() []string {
	global.mu.RLock()
	defer global.mu.RUnlock()
	out := make([]string, 0, len(global.m))
	for k := range global.m {
		out = append(out, k)
	}
	return out
}
