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

// Fixed dimensions of the key schedule, independent of block type.
const (
	KeySize    = 4096 // primary key size in bytes, 32768 bits
	NumSubkeys = 560  // total derived subkeys
	NumRounds  = 8    // encrypt/decrypt rounds per block

	numCycles            = 7
	cycleIndexIncrement  = 3
	cycleOffsetIncrement = 5
	num3BitValues        = 8
	num8BitValues        = 256

	keyMask = KeySize - 1

	// PrngSubkeyIndex is the subkey index at which the 16 consecutive
	// subkeys (304..319) form the 64KB seed window for the primary PRG.
	PrngSubkeyIndex = 304
	prngWindow      = 16 // consecutive subkeys making up one PRG seed
)

// posTable holds, per row and column, the four lane-mapped coordinates a
// diffuse (or inverse diffuse) pass reads for one round. Indexed
// [y][x][lane].
type posTable [][cellsX][numPositions]int

// keySchedule holds every table derived from a single 4096-byte primary key:
// the 560 subkeys themselves, and the per-round permutation/bitmask/position
// tables built from specific subkeys within that set. One keySchedule is
// shared read-only by every renderer (and, in the multi-threaded engine,
// every worker) operating under the same key.
type keySchedule struct {
	key     [KeySize]byte
	subkeys []byte // flat, NumSubkeys*KeySize bytes; subkeyAt slices into it
	numRows int

	bitmasks [NumRounds][4]uint32

	// permute8[round][y] is a 256-entry byte permutation for row y of the
	// round's confusion pass; permute8Inv is its inverse.
	permute8    [NumRounds][][]uint32
	permute8Inv [NumRounds][][]uint32

	posX, posY       [NumRounds]posTable
	posXInv, posYInv [NumRounds]posTable
}

func (ks *keySchedule) subkeyAt(index int) []byte {
	return ks.subkeys[index*KeySize : (index+1)*KeySize]
}

// prngWindowAt returns the prngWindow consecutive subkeys starting at
// baseIndex as one flat buffer, the seed material a prng is constructed
// from.
func (ks *keySchedule) prngWindowAt(baseIndex int) []byte {
	return ks.subkeys[baseIndex*KeySize : (baseIndex+prngWindow)*KeySize]
}

// buildKeySchedule derives the full key schedule for the given primary key
// and row count (numRows is fixed by the engine's chosen BlockType: 1, 2, 4,
// 8, 16 or 32).
func buildKeySchedule(key [KeySize]byte, numRows int) *keySchedule {
	ks := &keySchedule{key: key, numRows: numRows}
	ks.initSubkeys()
	perm3bit := ks.initPermuteTables()
	ks.initBitmasks(perm3bit)
	return ks
}

// createPrimeCycle fills outCycle with key bytes read at a stride of the
// primeIndex-selected prime, starting at offset and wrapping at KeySize.
func createPrimeCycle(key *[KeySize]byte, primeIndex, offset uint32, outCycle []byte) {
	prime := primeTable[primeIndex&255]
	o := offset
	for i := 0; i < KeySize; i++ {
		outCycle[i] = key[o&keyMask]
		o += prime
	}
}

// initSubkeys constructs the 560 subkeys. Each subkey is the XOR of seven
// prime-strided cycles through the primary key; indexCounter and
// offsetCounter advance by 3 and 5 respectively every cycle and are never
// reset across all 560 subkeys, so no two subkeys are built from the same
// seven (primeIndex, offset) pairs.
func (ks *keySchedule) initSubkeys() {
	ks.subkeys = make([]byte, NumSubkeys*KeySize)
	var cycles [numCycles][KeySize]byte
	indexCounter := uint32(0)
	offsetCounter := uint32(0)
	for s := 0; s < NumSubkeys; s++ {
		for i := 0; i < numCycles; i++ {
			createPrimeCycle(&ks.key, indexCounter, offsetCounter, cycles[i][:])
			indexCounter += cycleIndexIncrement
			offsetCounter += cycleOffsetIncrement
		}
		subkey := ks.subkeyAt(s)
		for n := 0; n < KeySize; n++ {
			v := cycles[0][n]
			for i := 1; i < numCycles; i++ {
				v ^= cycles[i][n]
			}
			subkey[n] = v
		}
	}
}

// getSubkeyInteger reads a little-endian uint32 from subkey at offset,
// wrapping around at KeySize.
func getSubkeyInteger(subkey []byte, offset uint32) uint32 {
	b0 := subkey[offset&keyMask]
	b1 := subkey[(offset+1)&keyMask]
	b2 := subkey[(offset+2)&keyMask]
	b3 := subkey[(offset+3)&keyMask]
	return uint32(b0) | uint32(b1)<<8 | uint32(b2)<<16 | uint32(b3)<<24
}

// createPermuteTable builds a permutation of [0,numEntries) from a subkey's
// bytes: each entry is selected by reading a little-endian uint32 (4 bytes
// per entry, offset wrapping at KeySize) and reducing it modulo the count of
// entries not yet used, consuming used slots in ascending order. The last
// unused slot is assigned to the final table entry. The invariant
// sum(table) == numEntries*(numEntries-1)/2 always holds, since the result
// is a bijection on [0,numEntries).
func createPermuteTable(subkey []byte, numEntries int) []uint32 {
	used := make([]bool, numEntries)
	table := make([]uint32, numEntries)
	offset := uint32(0)
	for n := 0; n < numEntries-1; n++ {
		s := getSubkeyInteger(subkey, offset)
		offset += 4
		mod := uint32(numEntries - n)
		index := s % mod
		m := uint32(0)
		for p := 0; p < numEntries; p++ {
			if !used[p] {
				if index == m {
					used[p] = true
					table[n] = uint32(p)
					break
				}
				m++
			}
		}
	}
	for n := 0; n < numEntries; n++ {
		if !used[n] {
			table[numEntries-1] = uint32(n)
			used[n] = true
		}
	}
	return table
}

func invertPermuteTable(table []uint32) []uint32 {
	inv := make([]uint32, len(table))
	for i, v := range table {
		inv[v] = uint32(i)
	}
	return inv
}

// initPermuteTables consumes subkeys 8..(8+8+8*numRows+32-1) to build, per
// round: one 3-bit bitmask-construction permutation (returned to the
// caller), one 256-entry substitution permutation (plus its inverse) per
// row, and the four 10-bit position permutations, immediately reduced into
// posX/posY/posXInv/posYInv. Subkeys 0..7 are reserved for the per-round
// confusion XOR key and are never read here.
func (ks *keySchedule) initPermuteTables() [NumRounds][]uint32 {
	subkeyIndex := 8

	var perm3bit [NumRounds][]uint32
	for round := 0; round < NumRounds; round++ {
		perm3bit[round] = createPermuteTable(ks.subkeyAt(subkeyIndex), num3BitValues)
		subkeyIndex++
	}

	for round := 0; round < NumRounds; round++ {
		ks.permute8[round] = make([][]uint32, ks.numRows)
		ks.permute8Inv[round] = make([][]uint32, ks.numRows)
		for y := 0; y < ks.numRows; y++ {
			table := createPermuteTable(ks.subkeyAt(subkeyIndex), num8BitValues)
			subkeyIndex++
			ks.permute8[round][y] = table
			ks.permute8Inv[round][y] = invertPermuteTable(table)
		}
	}

	numCells := ks.numRows * cellsX
	for round := 0; round < NumRounds; round++ {
		ks.posX[round] = make(posTable, ks.numRows)
		ks.posY[round] = make(posTable, ks.numRows)
		ks.posXInv[round] = make(posTable, ks.numRows)
		ks.posYInv[round] = make(posTable, ks.numRows)

		var position10bit [numPositions][]uint32
		for p := 0; p < numPositions; p++ {
			position10bit[p] = createPermuteTable(ks.subkeyAt(subkeyIndex), numCells)
			subkeyIndex++
		}

		for n := 0; n < numCells; n++ {
			x := n % cellsX
			y := n / cellsX
			for p := 0; p < numPositions; p++ {
				value := int(position10bit[p][n])
				mapX := value % cellsX
				mapY := value / cellsX
				ks.posX[round][y][x][p] = mapX
				ks.posY[round][y][x][p] = mapY
				ks.posXInv[round][mapY][mapX][p] = x
				ks.posYInv[round][mapY][mapX][p] = y
			}
		}
	}
	return perm3bit
}

// initBitmasks builds, per round, the four byte masks maskA/B/C/D that
// partition the 8 bits of a byte from the round's 3-bit permutation. The
// four masks are pairwise disjoint and their union is 0xFF, since each
// consumes exactly two of the eight bit positions named by the permutation.
func (ks *keySchedule) initBitmasks(perm3bit [NumRounds][]uint32) {
	for round := 0; round < NumRounds; round++ {
		perm := perm3bit[round]
		ks.bitmasks[round][0] = (1 << perm[0]) | (1 << perm[1])
		ks.bitmasks[round][1] = (1 << perm[2]) | (1 << perm[3])
		ks.bitmasks[round][2] = (1 << perm[4]) | (1 << perm[5])
		ks.bitmasks[round][3] = (1 << perm[6]) | (1 << perm[7])
	}
}
