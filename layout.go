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

// BlockType selects the fixed block geometry an engine operates on. Exactly
// one block type is chosen when an engine is constructed; it never changes
// for the lifetime of the engine.
type BlockType int

const (
	BlockType128 BlockType = iota + 1
	BlockType256
	BlockType512
	BlockType1024
	BlockType2048
	BlockType4096
)

func (b BlockType) String() string {
	switch b {
	case BlockType128:
		return "128"
	case BlockType256:
		return "256"
	case BlockType512:
		return "512"
	case BlockType1024:
		return "1024"
	case BlockType2048:
		return "2048"
	case BlockType4096:
		return "4096"
	default:
		return "unknown"
	}
}

// blockLayout describes one block type's fixed on-wire geometry:
//
//	paddingA | dataA | paddingB | checksum[4] | length[2] | seqnum[2] | paddingC | dataB | paddingD
//
// Collapsing the six near-identical C-struct layouts of the original
// implementation into one table, walked by a single generic pack/unpack
// pair, is the one structural change this package makes to the framer; the
// byte widths themselves are bit-exact per block type.
type blockLayout struct {
	blockType BlockType
	blockSize int
	numRows   int
	dataA     int
	dataB     int
	paddingA  int
	paddingB  int
	paddingC  int
	paddingD  int
}

// headerSize is the fixed checksum+length+seqnum region between paddingB and
// paddingC, present in every block type.
const headerSize = 4 + 2 + 2

func (l blockLayout) payloadCapacity() int { return l.dataA + l.dataB }
func (l blockLayout) paddingSize() int {
	return l.paddingA + l.paddingB + l.paddingC + l.paddingD
}

var layouts = map[BlockType]blockLayout{
	BlockType128: {
		blockType: BlockType128, blockSize: 128, numRows: 1,
		dataA: 72, dataB: 40,
		paddingA: 2, paddingB: 2, paddingC: 2, paddingD: 2,
	},
	BlockType256: {
		blockType: BlockType256, blockSize: 256, numRows: 2,
		dataA: 148, dataB: 92,
		paddingA: 2, paddingB: 2, paddingC: 2, paddingD: 2,
	},
	BlockType512: {
		blockType: BlockType512, blockSize: 512, numRows: 4,
		dataA: 304, dataB: 188,
		paddingA: 2, paddingB: 4, paddingC: 4, paddingD: 2,
	},
	BlockType1024: {
		blockType: BlockType1024, blockSize: 1024, numRows: 8,
		dataA: 618, dataB: 382,
		paddingA: 4, paddingB: 4, paddingC: 4, paddingD: 4,
	},
	BlockType2048: {
		blockType: BlockType2048, blockSize: 2048, numRows: 16,
		dataA: 1236, dataB: 764,
		paddingA: 16, paddingB: 4, paddingC: 4, paddingD: 16,
	},
	BlockType4096: {
		blockType: BlockType4096, blockSize: 4096, numRows: 32,
		dataA: 2472, dataB: 1528,
		paddingA: 32, paddingB: 12, paddingC: 12, paddingD: 32,
	},
}

// blockTypeTag is the 3-bit value stored in the high bits of the length
// field, letting Unpack reject a block framed for a different block type.
func blockTypeTag(b BlockType) uint16 {
	switch b {
	case BlockType128:
		return 1
	case BlockType256:
		return 2
	case BlockType512:
		return 3
	case BlockType1024:
		return 4
	case BlockType2048:
		return 5
	case BlockType4096:
		return 6
	default:
		return 0
	}
}

const (
	lengthMask     = 0x1fff
	blockTypeShift = 13
	cellsX         = 32
	cellSize       = 4
	numPositions   = 4
)
