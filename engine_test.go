package mumblepad

import (
	"bytes"
	"math/rand"
	"testing"
)

// entropyTrials is the per-block-type trial count spec.md §8 invariants #3
// and #4 are specified against (the original test harness's
// NUM_ENTROPY_ITERATIONS). Under -short it drops to a count still large
// enough for the percentage bounds to be meaningful, trading rigor for a
// fast inner dev loop. Under -race it drops further still: the race
// detector's per-access instrumentation makes the full 25,000-trial loop,
// across all six block types, impractically slow.
func entropyTrials(t *testing.T) int {
	switch {
	case raceEnabled:
		return 300
	case testing.Short():
		return 1500
	default:
		return 25000
	}
}

// corruptionTrials is the trial count spec.md §8 invariant #9 is specified
// against (the original test harness has no direct analogue for this one;
// it's ported straight from the spec).
func corruptionTrials(t *testing.T) int {
	switch {
	case raceEnabled:
		return 200
	case testing.Short():
		return 1000
	default:
		return 10000
	}
}

func mustEngine(t *testing.T, et EngineType, bt BlockType, padding PaddingType, threads int) *Engine {
	t.Helper()
	e, err := NewEngine(et, bt, padding, threads)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.InitKey(testKey(byte(bt))); err != nil {
		t.Fatalf("InitKey failed: %v", err)
	}
	return e
}

// mustRandomKeyEngine is mustEngine with a pseudo-random primary key instead
// of testKey's arithmetic ramp, for the statistical tests that measure the
// cipher's own mixing rather than a fixed round trip: the original test
// harness's doTest always seeds the engine under test with fillRandomly
// before calling testEntropy/testSubkeyEntropy.
func mustRandomKeyEngine(t *testing.T, et EngineType, bt BlockType, padding PaddingType, threads int, seed int64) *Engine {
	t.Helper()
	e, err := NewEngine(et, bt, padding, threads)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.InitKey(randomKey(seed)); err != nil {
		t.Fatalf("InitKey failed: %v", err)
	}
	return e
}

func TestEngineBlockRoundTripPaddingOn(t *testing.T) {
	for bt := range layouts {
		e := mustEngine(t, EngineTypeCPUSingle, bt, PaddingOn, 0)

		plaintext := bytes.Repeat([]byte("hello mumblepad "), 3)
		if len(plaintext) > e.PlaintextBlockSize() {
			plaintext = plaintext[:e.PlaintextBlockSize()]
		}

		encrypted := make([]byte, e.EncryptedBlockSize())
		if err := e.EncryptBlock(encrypted, plaintext, 42); err != nil {
			t.Fatalf("block type %v: EncryptBlock failed: %v", bt, err)
		}

		decrypted := make([]byte, e.PlaintextBlockSize())
		length, seqnum, err := e.DecryptBlock(decrypted, encrypted)
		if err != nil {
			t.Fatalf("block type %v: DecryptBlock failed: %v", bt, err)
		}
		if seqnum != 42 {
			t.Errorf("block type %v: seqnum = %d, want 42", bt, seqnum)
		}
		if length != len(plaintext) {
			t.Fatalf("block type %v: recovered length %d, want %d", bt, length, len(plaintext))
		}
		if !bytes.Equal(decrypted[:length], plaintext) {
			t.Fatalf("block type %v: recovered plaintext mismatch", bt)
		}
	}
}

func TestEngineBlockRoundTripPaddingOff(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUSingle, BlockType256, PaddingOff, 0)

	plaintext := make([]byte, e.EncryptedBlockSize())
	for i := range plaintext {
		plaintext[i] = byte(i)
	}

	encrypted := make([]byte, e.EncryptedBlockSize())
	if err := e.EncryptBlock(encrypted, plaintext, 0); err != nil {
		t.Fatalf("EncryptBlock failed: %v", err)
	}
	if bytes.Equal(encrypted, plaintext) {
		t.Fatalf("encrypted block identical to plaintext")
	}

	decrypted := make([]byte, e.PlaintextBlockSize())
	length, _, err := e.DecryptBlock(decrypted, encrypted)
	if err != nil {
		t.Fatalf("DecryptBlock failed: %v", err)
	}
	if length != e.EncryptedBlockSize() {
		t.Fatalf("padding-off length = %d, want %d", length, e.EncryptedBlockSize())
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("padding-off round trip mismatch")
	}
}

func TestEngineBlockAPIOnMultiThreadedEngine(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUMulti, BlockType128, PaddingOn, 4)
	defer e.Stop()

	plaintext := bytes.Repeat([]byte("worker zero "), 5)
	if len(plaintext) > e.PlaintextBlockSize() {
		plaintext = plaintext[:e.PlaintextBlockSize()]
	}

	encrypted := make([]byte, e.EncryptedBlockSize())
	if err := e.EncryptBlock(encrypted, plaintext, 7); err != nil {
		t.Fatalf("EncryptBlock on multi-threaded engine failed: %v", err)
	}

	decrypted := make([]byte, e.PlaintextBlockSize())
	length, seqnum, err := e.DecryptBlock(decrypted, encrypted)
	if err != nil {
		t.Fatalf("DecryptBlock on multi-threaded engine failed: %v", err)
	}
	if seqnum != 7 {
		t.Errorf("seqnum = %d, want 7", seqnum)
	}
	if !bytes.Equal(decrypted[:length], plaintext) {
		t.Fatalf("multi-threaded EncryptBlock/DecryptBlock round trip mismatch")
	}
}

func TestEngineEncryptBeforeInitKeyFails(t *testing.T) {
	e, err := NewEngine(EngineTypeCPUSingle, BlockType128, PaddingOn, 0)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	_, err = e.Encrypt([]byte("hi"), 0)
	if err != ErrKeyNotInitialized {
		t.Fatalf("got %v, want ErrKeyNotInitialized", err)
	}
}

func TestEngineStreamRoundTripSingleThreaded(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUSingle, BlockType512, PaddingOn, 0)

	plaintext := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 50)
	encrypted, err := e.Encrypt(plaintext, 0)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if len(encrypted)%e.EncryptedBlockSize() != 0 {
		t.Fatalf("ciphertext length %d is not a multiple of block size %d", len(encrypted), e.EncryptedBlockSize())
	}

	decrypted, err := e.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("stream round trip mismatch: got %d bytes, want %d", len(decrypted), len(plaintext))
	}
}

func TestEngineStreamRoundTripMultiThreaded(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUMulti, BlockType128, PaddingOn, 4)
	defer e.Stop()

	plaintext := bytes.Repeat([]byte{0xAB, 0xCD, 0xEF, 0x01}, 20000)
	encrypted, err := e.Encrypt(plaintext, 0)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	decrypted, err := e.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("multi-threaded stream round trip mismatch: got %d bytes, want %d", len(decrypted), len(plaintext))
	}
}

func TestEngineMultiThreadedMatchesSingleThreaded(t *testing.T) {
	key := testKey(9)
	plaintext := bytes.Repeat([]byte("deterministic across worker counts "), 200)

	single, err := NewEngine(EngineTypeCPUSingle, BlockType256, PaddingOn, 0)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := single.InitKey(key); err != nil {
		t.Fatalf("InitKey failed: %v", err)
	}
	singleEnc, err := single.Encrypt(plaintext, 0)
	if err != nil {
		t.Fatalf("single-threaded Encrypt failed: %v", err)
	}

	multi, err := NewEngine(EngineTypeCPUMulti, BlockType256, PaddingOn, 4)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := multi.InitKey(key); err != nil {
		t.Fatalf("InitKey failed: %v", err)
	}
	defer multi.Stop()
	multiEnc, err := multi.Encrypt(plaintext, 0)
	if err != nil {
		t.Fatalf("multi-threaded Encrypt failed: %v", err)
	}

	if !bytes.Equal(singleEnc, multiEnc) {
		t.Fatalf("single- and multi-threaded ciphertext differ byte-for-byte")
	}
}

func TestEngineDecryptRejectsMisalignedLength(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUSingle, BlockType128, PaddingOn, 0)
	_, err := e.Decrypt(make([]byte, e.EncryptedBlockSize()+1))
	if err != ErrInvalidDecryptSize {
		t.Fatalf("got %v, want ErrInvalidDecryptSize", err)
	}
}

func TestEngineEncryptBlockRejectsUndersizedDst(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUSingle, BlockType128, PaddingOn, 0)
	plaintext := make([]byte, e.PlaintextBlockSize())
	short := make([]byte, e.EncryptedBlockSize()-1)
	if err := e.EncryptBlock(short, plaintext, 0); err != ErrLengthTooSmall {
		t.Fatalf("got %v, want ErrLengthTooSmall", err)
	}
}

func TestEngineDecryptBlockRejectsUndersizedDst(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUSingle, BlockType128, PaddingOn, 0)
	plaintext := make([]byte, e.PlaintextBlockSize())
	encrypted := make([]byte, e.EncryptedBlockSize())
	if err := e.EncryptBlock(encrypted, plaintext, 0); err != nil {
		t.Fatalf("EncryptBlock failed: %v", err)
	}

	short := make([]byte, e.PlaintextBlockSize()-1)
	if _, _, err := e.DecryptBlock(short, encrypted); err != ErrLengthTooSmall {
		t.Fatalf("got %v, want ErrLengthTooSmall", err)
	}
}

func TestEngineGetSubkeyBounds(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUSingle, BlockType128, PaddingOn, 0)

	if _, err := e.GetSubkey(-1); err != ErrSubkeyIndexOutOfRange {
		t.Errorf("GetSubkey(-1): got %v, want ErrSubkeyIndexOutOfRange", err)
	}
	if _, err := e.GetSubkey(NumSubkeys); err != ErrSubkeyIndexOutOfRange {
		t.Errorf("GetSubkey(NumSubkeys): got %v, want ErrSubkeyIndexOutOfRange", err)
	}
	sub, err := e.GetSubkey(0)
	if err != nil {
		t.Fatalf("GetSubkey(0) failed: %v", err)
	}
	if len(sub) != KeySize {
		t.Errorf("GetSubkey(0) length = %d, want %d", len(sub), KeySize)
	}
}

func TestEngineGetSubkeyBeforeInitKeyFails(t *testing.T) {
	e, err := NewEngine(EngineTypeCPUSingle, BlockType128, PaddingOn, 0)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if _, err := e.GetSubkey(0); err != ErrKeyNotInitialized {
		t.Fatalf("got %v, want ErrKeyNotInitialized", err)
	}
}

func TestNewEngineRejectsUnknownBlockType(t *testing.T) {
	if _, err := NewEngine(EngineTypeCPUSingle, BlockType(99), PaddingOn, 0); err == nil {
		t.Fatalf("expected error for invalid block type")
	}
}

func TestNewEngineRejectsZeroThreadsForMulti(t *testing.T) {
	if _, err := NewEngine(EngineTypeCPUMulti, BlockType128, PaddingOn, 0); err == nil {
		t.Fatalf("expected error for zero threads with EngineTypeCPUMulti")
	}
}

func TestInitKeyRejectsUnimplementedEngineType(t *testing.T) {
	e, err := NewEngine(EngineTypeAcceleratorA, BlockType128, PaddingOn, 0)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.InitKey(testKey(0)); err != ErrRendererNotImplemented {
		t.Fatalf("got %v, want ErrRendererNotImplemented", err)
	}
}

func TestEncryptedSizeCeilsToBlockBoundary(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUSingle, BlockType128, PaddingOn, 0)
	p := e.PlaintextBlockSize()

	if got := e.EncryptedSize(0); got != 0 {
		t.Errorf("EncryptedSize(0) = %d, want 0", got)
	}
	if got := e.EncryptedSize(1); got != e.EncryptedBlockSize() {
		t.Errorf("EncryptedSize(1) = %d, want %d", got, e.EncryptedBlockSize())
	}
	if got := e.EncryptedSize(p + 1); got != 2*e.EncryptedBlockSize() {
		t.Errorf("EncryptedSize(p+1) = %d, want %d", got, 2*e.EncryptedBlockSize())
	}
}

func TestEngineLoadKeyFromBufferRejectsWrongSize(t *testing.T) {
	e, err := NewEngine(EngineTypeCPUSingle, BlockType128, PaddingOn, 0)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := e.LoadKeyFromBuffer(make([]byte, 100)); err == nil {
		t.Fatalf("expected error for undersized key buffer")
	}
}

func TestEngineStatsTrackEncryptDecrypt(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUSingle, BlockType128, PaddingOn, 0)

	plaintext := make([]byte, e.PlaintextBlockSize())
	encrypted := make([]byte, e.EncryptedBlockSize())
	if err := e.EncryptBlock(encrypted, plaintext, 0); err != nil {
		t.Fatalf("EncryptBlock failed: %v", err)
	}
	decrypted := make([]byte, e.PlaintextBlockSize())
	if _, _, err := e.DecryptBlock(decrypted, encrypted); err != nil {
		t.Fatalf("DecryptBlock failed: %v", err)
	}

	stats := e.Stats()
	if stats.EncryptedBlocks != 1 {
		t.Errorf("EncryptedBlocks = %d, want 1", stats.EncryptedBlocks)
	}
	if stats.WorkerBusyNanos == 0 {
		t.Errorf("WorkerBusyNanos = 0, want nonzero after an encrypt and a decrypt")
	}
	if stats.DecryptedBlocks != 1 {
		t.Errorf("DecryptedBlocks = %d, want 1", stats.DecryptedBlocks)
	}
}

func TestEngineStatsTracksRejectedBlock(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUSingle, BlockType128, PaddingOn, 0)

	plaintext := make([]byte, e.PlaintextBlockSize())
	encrypted := make([]byte, e.EncryptedBlockSize())
	if err := e.EncryptBlock(encrypted, plaintext, 0); err != nil {
		t.Fatalf("EncryptBlock failed: %v", err)
	}
	encrypted[0] ^= 0xFF // corrupt ciphertext so the confusion/diffusion pass decrypts to garbage

	decrypted := make([]byte, e.PlaintextBlockSize())
	_, _, err := e.DecryptBlock(decrypted, encrypted)
	if err == nil {
		t.Fatalf("expected corrupted block to fail validation")
	}

	stats := e.Stats()
	if stats.RejectedBlocks != 1 {
		t.Errorf("RejectedBlocks = %d, want 1", stats.RejectedBlocks)
	}
}

// TestEngineDecryptMultiHandlesShortNonFinalBlock builds a ciphertext stream
// by hand, out of individually-framed EncryptBlock calls, with a partial
// (non-final) block followed by more full blocks spanning several
// multi-threaded job boundaries. decryptMulti must compact the recovered
// plaintext contiguously rather than leaving gaps at the offset a full
// block would have occupied.
func TestEngineDecryptMultiHandlesShortNonFinalBlock(t *testing.T) {
	key := testKey(3)

	single, err := NewEngine(EngineTypeCPUSingle, BlockType128, PaddingOn, 0)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := single.InitKey(key); err != nil {
		t.Fatalf("InitKey failed: %v", err)
	}

	capacity := single.PlaintextBlockSize()
	numBlocks := 1200 // more than two decrypt jobs of 512 128-byte blocks each
	encrypted := make([]byte, 0, numBlocks*single.EncryptedBlockSize())
	var plaintext []byte
	for i := 0; i < numBlocks; i++ {
		length := capacity
		if i%7 == 3 { // scatter some short, non-final blocks through the stream
			length = capacity / 2
		}
		chunk := bytes.Repeat([]byte{byte(i + 1)}, length)
		plaintext = append(plaintext, chunk...)

		block := make([]byte, single.EncryptedBlockSize())
		if err := single.EncryptBlock(block, chunk, uint16(i)); err != nil {
			t.Fatalf("EncryptBlock(%d) failed: %v", i, err)
		}
		encrypted = append(encrypted, block...)
	}

	multi, err := NewEngine(EngineTypeCPUMulti, BlockType128, PaddingOn, 4)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if err := multi.InitKey(key); err != nil {
		t.Fatalf("InitKey failed: %v", err)
	}
	defer multi.Stop()

	decrypted, err := multi.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("multi-threaded Decrypt failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("multi-threaded decrypt of a stream with non-final short blocks mismatched: got %d bytes, want %d", len(decrypted), len(plaintext))
	}
}

func TestEngineEncryptDecryptAfterStopReturnsErrNoWorkers(t *testing.T) {
	e := mustEngine(t, EngineTypeCPUMulti, BlockType128, PaddingOn, 2)
	e.Stop()

	if _, err := e.Encrypt([]byte("hello"), 0); err != ErrNoWorkers {
		t.Fatalf("Encrypt after Stop: got %v, want ErrNoWorkers", err)
	}
	if _, err := e.Decrypt(make([]byte, e.EncryptedBlockSize())); err != ErrNoWorkers {
		t.Fatalf("Decrypt after Stop: got %v, want ErrNoWorkers", err)
	}

	// A second Stop must still be a harmless no-op.
	e.Stop()
}

// TestEngineAvalancheRandomPlaintext checks spec.md §8 invariants #3
// (avalanche) and #4 (byte-change ratio): encrypting the same random
// plaintext and seqnum twice must yield ciphertexts differing across
// roughly half their bits and nearly all of their bytes, since the only
// source of difference is the PRG-drawn padding field. This ports the
// original test harness's testEntropy (the random-plaintext half) across
// every block type, strict thresholds for block >= 1024, relaxed for <=
// 512, per spec.md §8.
func TestEngineAvalancheRandomPlaintext(t *testing.T) {
	trials := entropyTrials(t)
	rng := rand.New(rand.NewSource(1))

	for bt := range layouts {
		e := mustRandomKeyEngine(t, EngineTypeCPUSingle, bt, PaddingOn, 0, int64(bt)+100)
		strict := bt >= BlockType1024

		plaintext := make([]byte, e.PlaintextBlockSize())
		enc1 := make([]byte, e.EncryptedBlockSize())
		enc2 := make([]byte, e.EncryptedBlockSize())

		var bitsChanged, bitsTotal, bytesChanged, bytesTotal int
		for i := 0; i < trials; i++ {
			rng.Read(plaintext)

			if err := e.EncryptBlock(enc1, plaintext, 0); err != nil {
				t.Fatalf("block type %v: EncryptBlock failed: %v", bt, err)
			}
			if err := e.EncryptBlock(enc2, plaintext, 0); err != nil {
				t.Fatalf("block type %v: EncryptBlock failed: %v", bt, err)
			}

			db, bc := bitDiff(enc1, enc2)
			bitsChanged += db
			bytesChanged += bc
			bitsTotal += len(enc1) * 8
			bytesTotal += len(enc1)
		}

		assertAvalanche(t, strict, bitsChanged, bitsTotal, bytesChanged, bytesTotal,
			"block type %v random-plaintext avalanche over %d trials", bt, trials)
	}
}

// TestEngineAvalancheZeroPlaintext mirrors TestEngineAvalancheRandomPlaintext
// against an all-zero plaintext, the second half of the original test
// harness's testEntropy: with no entropy in the plaintext itself, the
// avalanche property must still hold purely from the PRG-drawn padding.
func TestEngineAvalancheZeroPlaintext(t *testing.T) {
	trials := entropyTrials(t)

	for bt := range layouts {
		e := mustRandomKeyEngine(t, EngineTypeCPUSingle, bt, PaddingOn, 0, int64(bt)+200)
		strict := bt >= BlockType1024

		plaintext := make([]byte, e.PlaintextBlockSize())
		enc1 := make([]byte, e.EncryptedBlockSize())
		enc2 := make([]byte, e.EncryptedBlockSize())

		var bitsChanged, bitsTotal, bytesChanged, bytesTotal int
		for i := 0; i < trials; i++ {
			if err := e.EncryptBlock(enc1, plaintext, 0); err != nil {
				t.Fatalf("block type %v: EncryptBlock failed: %v", bt, err)
			}
			if err := e.EncryptBlock(enc2, plaintext, 0); err != nil {
				t.Fatalf("block type %v: EncryptBlock failed: %v", bt, err)
			}

			db, bc := bitDiff(enc1, enc2)
			bitsChanged += db
			bytesChanged += bc
			bitsTotal += len(enc1) * 8
			bytesTotal += len(enc1)
		}

		assertAvalanche(t, strict, bitsChanged, bitsTotal, bytesChanged, bytesTotal,
			"block type %v zero-plaintext avalanche over %d trials", bt, trials)
	}
}

// TestEngineDecryptRejectsCorruptedBlockWithHighProbability checks spec.md
// §8 invariant #9: flipping a single random bit of a valid encrypted block
// must make DecryptBlock report InvalidEncryptedBlock (or recover length 0)
// in more than 99.9% of trials. Unlike the single-bit-position checks
// elsewhere in this file, this runs the full trial count the invariant is
// specified against and tolerates the same small failure budget the ">99.9%"
// wording allows for, rather than asserting every single trial rejects.
func TestEngineDecryptRejectsCorruptedBlockWithHighProbability(t *testing.T) {
	trials := corruptionTrials(t)
	rng := rand.New(rand.NewSource(2))

	e := mustRandomKeyEngine(t, EngineTypeCPUSingle, BlockType512, PaddingOn, 0, 300)
	plaintext := make([]byte, e.PlaintextBlockSize())
	rng.Read(plaintext)

	valid := make([]byte, e.EncryptedBlockSize())
	if err := e.EncryptBlock(valid, plaintext, 123); err != nil {
		t.Fatalf("EncryptBlock failed: %v", err)
	}

	corrupted := make([]byte, len(valid))
	decrypted := make([]byte, e.PlaintextBlockSize())

	accepted := 0
	for i := 0; i < trials; i++ {
		copy(corrupted, valid)
		byteOffset := rng.Intn(len(corrupted))
		bitOffset := uint(rng.Intn(8))
		corrupted[byteOffset] ^= 1 << bitOffset

		length, _, err := e.DecryptBlock(decrypted, corrupted)
		if err == nil && length != 0 {
			accepted++
		}
	}

	maxAccepted := trials / 1000 // tolerate up to 0.1% false acceptance
	if maxAccepted < 1 {
		maxAccepted = 1
	}
	if accepted > maxAccepted {
		t.Errorf("corrupted block accepted %d/%d times, want <= %d (>99.9%% rejection)", accepted, trials, maxAccepted)
	}
}
