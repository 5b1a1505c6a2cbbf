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

// Renderer is the capability a concrete block-transform implementation
// provides: upload a block into working buffers, run one round's diffuse or
// confuse pass (or their decrypt duals), and download the result. engine.go
// builds EncryptBlock/DecryptBlock purely from these primitives, so a future
// accelerator-backed renderer can share the same call sites without a class
// hierarchy — only cpuRenderer ships here.
type Renderer interface {
	Upload(data []byte)
	EncryptDiffuse(round int)
	EncryptConfuse(round int)
	DecryptConfuse(round int)
	DecryptDiffuse(round int)
	Download(dst []byte)
}

// cpuRenderer is the CPU reference implementation: two ping-pong scratch
// buffers sized to one encrypted block, transformed in place by the key
// schedule's precomputed tables.
type cpuRenderer struct {
	ks      *keySchedule
	numRows int
	pingPong [2][]byte
}

func newCPURenderer(ks *keySchedule, encryptedBlockSize int) *cpuRenderer {
	r := &cpuRenderer{ks: ks, numRows: ks.numRows}
	r.pingPong[0] = make([]byte, encryptedBlockSize)
	r.pingPong[1] = make([]byte, encryptedBlockSize)
	return r
}

func (r *cpuRenderer) Upload(data []byte) {
	copy(r.pingPong[0], data)
}

func (r *cpuRenderer) Download(dst []byte) {
	copy(dst, r.pingPong[0])
}

func mappedOffset(x, y int) int {
	return x*cellSize + y*cellsX*cellSize
}

// EncryptDiffuse reads four source cells per destination cell (chosen by the
// round's position tables) and recombines them with byte addition standing
// in for OR: each round's four bitmasks partition all eight bits of a byte,
// so the masked terms never share a set bit and addition never carries.
func (r *cpuRenderer) EncryptDiffuse(round int) {
	src := r.pingPong[0]
	dst := r.pingPong[1]

	maskA := byte(r.ks.bitmasks[round][0])
	maskB := byte(r.ks.bitmasks[round][1])
	maskC := byte(r.ks.bitmasks[round][2])
	maskD := byte(r.ks.bitmasks[round][3])

	posX, posY := r.ks.posX[round], r.ks.posY[round]
	d := 0
	for y := 0; y < r.numRows; y++ {
		for x := 0; x < cellsX; x++ {
			lanes := posX[y][x]
			ys := posY[y][x]
			m1 := src[mappedOffset(lanes[0], ys[0]):]
			m2 := src[mappedOffset(lanes[1], ys[1]):]
			m3 := src[mappedOffset(lanes[2], ys[2]):]
			m4 := src[mappedOffset(lanes[3], ys[3]):]

			dst[d+0] = (m1[0] & maskA) + (m2[2] & maskB) + (m3[3] & maskC) + (m4[1] & maskD)
			dst[d+1] = (m1[2] & maskA) + (m2[3] & maskB) + (m3[1] & maskC) + (m4[0] & maskD)
			dst[d+2] = (m1[3] & maskA) + (m2[1] & maskB) + (m3[0] & maskC) + (m4[2] & maskD)
			dst[d+3] = (m1[1] & maskA) + (m2[0] & maskB) + (m3[2] & maskC) + (m4[3] & maskD)
			d += 4
		}
	}
}

// EncryptConfuse walks the round's confusion subkey sequentially across the
// block, substituting each XORed byte through that row's 256-entry
// permutation.
func (r *cpuRenderer) EncryptConfuse(round int) {
	src := r.pingPong[1]
	dst := r.pingPong[0]
	clav := r.ks.subkeyAt(round)

	s, d, c := 0, 0, 0
	for y := 0; y < r.numRows; y++ {
		prm := r.ks.permute8[round][y]
		for x := 0; x < cellsX; x++ {
			dst[d+0] = byte(prm[src[s+0]^clav[c+0]])
			dst[d+1] = byte(prm[src[s+1]^clav[c+1]])
			dst[d+2] = byte(prm[src[s+2]^clav[c+2]])
			dst[d+3] = byte(prm[src[s+3]^clav[c+3]])
			s += 4
			d += 4
			c += 4
		}
	}
}

// DecryptConfuse inverts EncryptConfuse: substitute through the round's
// inverse permutation, then XOR with the confusion subkey.
func (r *cpuRenderer) DecryptConfuse(round int) {
	src := r.pingPong[0]
	dst := r.pingPong[1]
	clav := r.ks.subkeyAt(round)

	s, d, c := 0, 0, 0
	for y := 0; y < r.numRows; y++ {
		prm := r.ks.permute8Inv[round][y]
		for x := 0; x < cellsX; x++ {
			dst[d+0] = byte(prm[src[s+0]]) ^ clav[c+0]
			dst[d+1] = byte(prm[src[s+1]]) ^ clav[c+1]
			dst[d+2] = byte(prm[src[s+2]]) ^ clav[c+2]
			dst[d+3] = byte(prm[src[s+3]]) ^ clav[c+3]
			s += 4
			d += 4
			c += 4
		}
	}
}

// DecryptDiffuse inverts EncryptDiffuse using the inverse position tables
// and the mirrored lane ordering.
func (r *cpuRenderer) DecryptDiffuse(round int) {
	src := r.pingPong[1]
	dst := r.pingPong[0]

	maskA := byte(r.ks.bitmasks[round][0])
	maskB := byte(r.ks.bitmasks[round][1])
	maskC := byte(r.ks.bitmasks[round][2])
	maskD := byte(r.ks.bitmasks[round][3])

	posX, posY := r.ks.posXInv[round], r.ks.posYInv[round]
	d := 0
	for y := 0; y < r.numRows; y++ {
		for x := 0; x < cellsX; x++ {
			lanes := posX[y][x]
			ys := posY[y][x]
			m1 := src[mappedOffset(lanes[0], ys[0]):]
			m2 := src[mappedOffset(lanes[1], ys[1]):]
			m3 := src[mappedOffset(lanes[2], ys[2]):]
			m4 := src[mappedOffset(lanes[3], ys[3]):]

			dst[d+0] = (m1[0] & maskA) + (m2[3] & maskB) + (m3[2] & maskC) + (m4[1] & maskD)
			dst[d+1] = (m1[3] & maskA) + (m2[2] & maskB) + (m3[1] & maskC) + (m4[0] & maskD)
			dst[d+2] = (m1[1] & maskA) + (m2[0] & maskB) + (m3[3] & maskC) + (m4[2] & maskD)
			dst[d+3] = (m1[2] & maskA) + (m2[1] & maskB) + (m3[0] & maskC) + (m4[3] & maskD)
			d += 4
		}
	}
}
