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

package h1

import "strings"

// entry is one header slot: the first-insertion-case name plus the values
// appended for it, in arrival order.
type entry struct {
	name   string
	values []string
}

// Headers is the case-insensitive-but-order-preserving header multimap
// described in spec §3: lookup by lowercase key, iteration in first
// insertion order, first-insertion case preserved for emission.
type Headers struct {
	order []string // lowercase keys, in first-insertion order
	idx   map[string]int
	data  map[string]*entry
}

func NewHeaders() *Headers {
	return &Headers{
		idx:  make(map[string]int),
		data: make(map[string]*entry),
	}
}

// Append adds value under name, preserving the case of the first Append for
// this name and appending to any existing value list (header container law,
// spec §8).
func (h *Headers) Append(name, value string) {
	key := strings.ToLower(name)
	if e, ok := h.data[key]; ok {
		e.values = append(e.values, value)
		return
	}
	h.data[key] = &entry{name: name, values: []string{value}}
	h.idx[key] = len(h.order)
	h.order = append(h.order, key)
}

// Get returns the first value for name, case-insensitively.
func (h *Headers) Get(name string) string {
	vs := h.Values(name)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns every value appended for name, in arrival order.
func (h *Headers) Values(name string) []string {
	if e, ok := h.data[strings.ToLower(name)]; ok {
		return e.values
	}
	return nil
}

// Has reports whether name was ever appended.
func (h *Headers) Has(name string) bool {
	_, ok := h.data[strings.ToLower(name)]
	return ok
}

// Range iterates entries in first-insertion order, each with its
// originally-cased name and its full value list.
func (h *Headers) Range(f func(name string, values []string) bool) {
	for _, key := range h.order {
		e := h.data[key]
		if !f(e.name, e.values) {
			return
		}
	}
}

// Reset empties the container for reuse across keep-alive cycles.
func (h *Headers) Reset() {
	h.order = h.order[:0]
	for k := range h.idx {
		delete(h.idx, k)
	}
	for k := range h.data {
		delete(h.data, k)
	}
}
