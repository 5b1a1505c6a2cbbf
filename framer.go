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

// framer packs/unpacks the fixed six-layout wire format described by
// layout.go. A single generic implementation walks the layout table instead
// of the six hand-duplicated pack/unpack pairs of the original; each
// block-type's byte widths are still reproduced bit-exactly.
type framer struct {
	layout blockLayout
}

func newFramer(bt BlockType) framer {
	return framer{layout: layouts[bt]}
}

// pack writes one encrypted block's plaintext region into dst, which must be
// exactly layout.blockSize bytes. payload must be exactly
// layout.payloadCapacity() bytes, already tail-filled with PRG bytes past
// length if length < payloadCapacity. padding must be exactly
// layout.paddingSize() bytes, freshly drawn from the PRG.
func (f framer) pack(dst, payload, padding []byte, length int, seqnum uint16) error {
	l := f.layout
	if length > l.payloadCapacity() {
		return ErrInvalidEncryptSize
	}

	checksum := computeChecksum(payload)

	off := 0
	copy(dst[off:off+l.paddingA], padding[0:l.paddingA])
	off += l.paddingA

	copy(dst[off:off+l.dataA], payload[0:l.dataA])
	off += l.dataA

	copy(dst[off:off+l.paddingB], padding[l.paddingA:l.paddingA+l.paddingB])
	off += l.paddingB

	dst[off] = byte(checksum)
	dst[off+1] = byte(checksum >> 8)
	dst[off+2] = byte(checksum >> 16)
	dst[off+3] = byte(checksum >> 24)
	off += 4

	lengthField := uint16(length) | (blockTypeTag(l.blockType) << blockTypeShift)
	dst[off] = byte(lengthField)
	dst[off+1] = byte(lengthField >> 8)
	off += 2

	dst[off] = byte(seqnum)
	dst[off+1] = byte(seqnum >> 8)
	off += 2

	copy(dst[off:off+l.paddingC], padding[l.paddingA+l.paddingB:l.paddingA+l.paddingB+l.paddingC])
	off += l.paddingC

	copy(dst[off:off+l.dataB], payload[l.dataA:l.dataA+l.dataB])
	off += l.dataB

	copy(dst[off:off+l.paddingD], padding[l.paddingA+l.paddingB+l.paddingC:l.paddingSize()])
	off += l.paddingD

	return nil
}

// unpack recovers payload, length and seqnum from a decrypted block src
// (exactly layout.blockSize bytes), rejecting anything that doesn't carry
// this framer's block-type tag, reports a length beyond payload capacity, or
// fails its checksum.
func (f framer) unpack(src []byte, payload []byte) (length int, seqnum uint16, err error) {
	l := f.layout

	off := l.paddingA
	copy(payload[0:l.dataA], src[off:off+l.dataA])
	off += l.dataA
	off += l.paddingB

	checksumA := uint32(src[off]) | uint32(src[off+1])<<8 | uint32(src[off+2])<<16 | uint32(src[off+3])<<24
	off += 4

	lengthField := uint16(src[off]) | uint16(src[off+1])<<8
	off += 2

	seqnum = uint16(src[off]) | uint16(src[off+1])<<8
	off += 2

	off += l.paddingC
	copy(payload[l.dataA:l.dataA+l.dataB], src[off:off+l.dataB])

	if (lengthField>>blockTypeShift) != blockTypeTag(l.blockType) {
		return 0, 0, ErrInvalidEncryptedBlock
	}
	length = int(lengthField & lengthMask)
	if length > l.payloadCapacity() {
		return 0, 0, ErrInvalidEncryptedBlock
	}

	checksumB := computeChecksum(payload)
	if checksumA != checksumB {
		return 0, 0, ErrInvalidEncryptedBlock
	}
	return length, seqnum, nil
}

// computeChecksum sums data's bytes as little-endian uint32 lanes, wrapping
// on overflow. data's length must be a multiple of 4.
func computeChecksum(data []byte) uint32 {
	var checksum uint32
	for i := 0; i+4 <= len(data); i += 4 {
		checksum += uint32(data[i]) | uint32(data[i+1])<<8 | uint32(data[i+2])<<16 | uint32(data[i+3])<<24
	}
	return checksum
}
