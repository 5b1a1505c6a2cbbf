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

import (
	"crypto/sha1"

	"golang.org/x/crypto/pbkdf2"
)

// pbkdfIterations is the per-block iteration count used when expanding a
// passphrase into primary key material.
const pbkdfIterations = 4096

// DeriveKeyFromPassphrase expands a passphrase and salt into a 4096-byte
// primary key suitable for Engine.InitKey, for callers who don't have raw
// key material on hand. It is a convenience on top of the cipher, not part
// of it: the same passphrase and salt always yield the same key, but the
// derivation itself carries none of Mumblepad's own security properties.
//
// KeySize bytes of output require more than one pbkdf2.Key block (pbkdf2
// emits at most one hash-output's worth of bytes per call), so this appends an
// increasing block counter byte to the salt to produce distinct,
// non-overlapping 20-byte stretches until the key is full.
func DeriveKeyFromPassphrase(passphrase string, salt []byte) [KeySize]byte {
	var key [KeySize]byte
	written := 0
	blockCounter := byte(0)
	for written < KeySize {
		blockSalt := append(append([]byte(nil), salt...), blockCounter)
		block := pbkdf2.Key([]byte(passphrase), blockSalt, pbkdfIterations, sha1.Size, sha1.New)
		n := copy(key[written:], block)
		written += n
		blockCounter++
	}
	return key
}
