// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package mumblepad

import "github.com/templexxx/xorsimd"

// prngWindowSize is the size of one PRG seed window: 16 consecutive
// subkeys treated as one flat 65536-byte buffer.
const prngWindowSize = KeySize * prngWindow

// prng is an RC4-derived byte generator seeded from a 64KB window of subkey
// material. It departs from textbook RC4 in two ways: the keystream byte at
// each step is read from S[2*S[a] mod 256] rather than S[S[a]+S[b] mod 256],
// and every full 64KB of generated stream is XORed against the seed window
// before being served, so the output is never pure RC4 keystream.
type prng struct {
	seed  []byte // 65536 bytes, owned copy of the seeding subkey window
	state [256]byte
	a, b  uint8

	ready     []byte // 65536-byte buffer, regenerated on demand
	readIndex int
}

// newPRNG seeds a generator from a 65536-byte subkey window (16 consecutive
// subkeys). The caller retains ownership of window; newPRNG copies it.
func newPRNG(window []byte) *prng {
	if len(window) != prngWindowSize {
		panic("mumblepad: prng seed window must be exactly 65536 bytes")
	}
	p := &prng{
		seed:  append([]byte(nil), window...),
		ready: make([]byte, prngWindowSize),
	}
	p.init()
	p.regenerate()
	return p
}

// init performs the RC4 key-scheduling algorithm using a 256-byte slice
// taken 89 bytes before the end of the seed window.
func (p *prng) init() {
	for i := 0; i < 256; i++ {
		p.state[i] = byte(i)
	}
	keyWindow := p.seed[prngWindowSize-256-89 : prngWindowSize-89]
	j := uint8(0)
	for i := 0; i < 256; i++ {
		j = j + p.state[i] + keyWindow[i]
		p.state[i], p.state[j] = p.state[j], p.state[i]
	}
	p.a, p.b = 0, 0
}

// generate writes size bytes of the doubled-index RC4-derived stream into
// dst, mutating the generator's internal state.
func (p *prng) generate(dst []byte) {
	for i := range dst {
		p.a++
		p.b += p.state[p.a]
		p.state[p.a], p.state[p.b] = p.state[p.b], p.state[p.a]
		c := p.state[p.a] + p.state[p.a]
		dst[i] = p.state[c]
	}
}

// regenerate refills the ready buffer with a fresh 65536-byte stream, then
// XORs it against the seed window, and resets the read cursor.
func (p *prng) regenerate() {
	p.generate(p.ready)
	xorsimd.Bytes(p.ready, p.ready, p.seed)
	p.readIndex = 0
}

// fetch copies size bytes of keystream into dst, transparently regenerating
// the ready buffer when the remaining bytes can't satisfy the request.
func (p *prng) fetch(dst []byte) {
	size := len(dst)
	if size > prngWindowSize-p.readIndex {
		p.regenerate()
	}
	copy(dst, p.ready[p.readIndex:p.readIndex+size])
	p.readIndex += size
}
