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

// encryptStream splits src into payloadCapacity-sized chunks and encrypts
// each into one block of dst, returning the total number of ciphertext
// bytes written. seqnum increments once per block, wrapping at 2^16. A
// final short chunk is still encrypted as a full block: EncryptBlock tail-
// fills it with PRG bytes before framing.
func encryptStream(enc func(src []byte, dst []byte, length int, seqnum uint16) error, encryptedBlockSize, plaintextBlockSize int, src, dst []byte, seqnum uint16) (int, error) {
	written := 0
	for len(src) > 0 {
		chunkLen := plaintextBlockSize
		var chunk []byte
		if len(src) >= plaintextBlockSize {
			chunk = src[:plaintextBlockSize]
		} else {
			chunkLen = len(src)
			chunk = src
		}
		if err := enc(chunk, dst[written:written+encryptedBlockSize], chunkLen, seqnum); err != nil {
			return written, err
		}
		seqnum++
		written += encryptedBlockSize
		src = src[chunkLen:]
	}
	return written, nil
}

// decryptStream decrypts every encryptedBlockSize-sized block of src into
// dst, returning the total number of plaintext bytes recovered. len(src)
// must already be a multiple of encryptedBlockSize; the caller checks this
// before calling (ErrInvalidDecryptSize).
func decryptStream(dec func(src []byte, dst []byte) (int, uint16, error), encryptedBlockSize int, src, dst []byte) (int, error) {
	written := 0
	dstOff := 0
	for len(src) > 0 {
		block := src[:encryptedBlockSize]
		length, _, err := dec(block, dst[dstOff:])
		if err != nil {
			return written, err
		}
		dstOff += length
		written += length
		src = src[encryptedBlockSize:]
	}
	return written, nil
}
