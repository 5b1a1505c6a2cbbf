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
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// EngineType selects which renderer construction an Engine uses.
// EngineTypeAcceleratorA and EngineTypeAcceleratorB are reserved for a
// future GPU-backed Renderer sharing the same interface; NewEngine accepts
// either, but InitKey on such an Engine fails with ErrRendererNotImplemented.
type EngineType int

const (
	EngineTypeCPUSingle EngineType = iota + 1
	EngineTypeCPUMulti
	EngineTypeAcceleratorA
	EngineTypeAcceleratorB
)

// PaddingType controls whether the framer runs at all. With PaddingOff, a
// plaintext block is exactly one encrypted block's worth of bytes and the
// checksum/length/seqnum/padding fields don't exist on the wire.
type PaddingType int

const (
	PaddingOff PaddingType = iota
	PaddingOn
)

// Engine is the façade a caller uses: choose an EngineType, BlockType and
// PaddingType once, load a key, then encrypt/decrypt blocks or streams.
// Every encrypt/decrypt operation fails with ErrKeyNotInitialized until
// InitKey (or LoadKeyFromBuffer/LoadKeyFile) succeeds.
type Engine struct {
	engineType EngineType
	blockType  BlockType
	padding    PaddingType
	numThreads int
	layout     blockLayout

	mu             sync.Mutex
	keyInitialized bool
	ks             *keySchedule
	frame          framer

	renderer Renderer
	prg      *prng

	workerRenderers []Renderer
	workerPRGs      []*prng
	disp            *dispatcher

	counters engineCounters
}

// NewEngine constructs an Engine for the given engine type, block type and
// padding mode. numThreads is only meaningful (and must be >=1) for
// EngineTypeCPUMulti; it's ignored otherwise. The engine has no usable key
// until InitKey/LoadKeyFromBuffer/LoadKeyFile is called.
func NewEngine(engineType EngineType, blockType BlockType, padding PaddingType, numThreads int) (*Engine, error) {
	layout, ok := layouts[blockType]
	if !ok {
		return nil, errors.Errorf("mumblepad: invalid block type %v", blockType)
	}
	if engineType == EngineTypeCPUMulti {
		if numThreads < 1 || numThreads > maxWorkers {
			return nil, errors.Errorf("mumblepad: invalid thread count %d (must be 1..%d)", numThreads, maxWorkers)
		}
	}
	return &Engine{
		engineType: engineType,
		blockType:  blockType,
		padding:    padding,
		numThreads: numThreads,
		layout:     layout,
	}, nil
}

// plaintextBlockSize is the layout's payload capacity with padding on, or
// the raw block size with padding off.
func (e *Engine) plaintextBlockSize() int {
	if e.padding == PaddingOn {
		return e.layout.payloadCapacity()
	}
	return e.layout.blockSize
}

// PlaintextBlockSize returns the maximum plaintext bytes one block carries.
func (e *Engine) PlaintextBlockSize() int { return e.plaintextBlockSize() }

// EncryptedBlockSize returns the fixed on-wire size of one encrypted block.
func (e *Engine) EncryptedBlockSize() int { return e.layout.blockSize }

// EncryptedSize returns the number of ciphertext bytes Encrypt will produce
// for an input of inputLen bytes.
func (e *Engine) EncryptedSize(inputLen int) int {
	if inputLen <= 0 {
		return 0
	}
	p := e.plaintextBlockSize()
	numBlocks := (inputLen + p - 1) / p
	return numBlocks * e.layout.blockSize
}

// InitKey derives the full key schedule from key and constructs whatever
// renderer(s) this engine's type requires. It may be called again to rekey
// the engine; any multi-threaded worker pool from a previous key is stopped
// first. e.mu serializes InitKey/Stop against every block/stream operation
// (Encrypt/Decrypt/EncryptBlock/DecryptBlock), since those share a renderer
// and PRG (e.renderer/e.prg, or a worker's own pair) that InitKey replaces
// and Stop tears down.
func (e *Engine) InitKey(key [KeySize]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disp != nil {
		e.disp.Stop()
		e.disp = nil
	}

	ks := buildKeySchedule(key, e.layout.numRows)
	e.ks = ks
	e.frame = newFramer(e.blockType)

	switch e.engineType {
	case EngineTypeCPUSingle:
		e.renderer = newCPURenderer(ks, e.layout.blockSize)
		e.prg = newPRNG(ks.prngWindowAt(PrngSubkeyIndex))

	case EngineTypeCPUMulti:
		// e.numThreads is fixed for the engine's lifetime: NewEngine already
		// rejects EngineTypeCPUMulti with numThreads < 1.
		e.workerRenderers = make([]Renderer, e.numThreads)
		e.workerPRGs = make([]*prng, e.numThreads)
		for i := 0; i < e.numThreads; i++ {
			e.workerRenderers[i] = newCPURenderer(ks, e.layout.blockSize)
			e.workerPRGs[i] = newPRNG(ks.prngWindowAt(PrngSubkeyIndex + (i&15)*prngWindow))
		}
		e.disp = newDispatcher(e.numThreads, e.renderJob)
		// EncryptBlock/DecryptBlock need a renderer and PRG of their own,
		// seeded identically to worker 0, so the single-block API keeps
		// working on a multi-threaded engine (mirroring the original's
		// CMumblepadMt::EncryptBlock/DecryptBlock delegating to mThreads[0])
		// instead of aliasing worker 0's own cpuRenderer/prng, which the
		// dispatcher drives independently and would corrupt if two callers
		// shared its ping-pong buffers and RC4 state. e.mu still serializes
		// this engine's block/stream calls against each other, so this is
		// about constructing a valid renderer/PRG pair, not about letting
		// EncryptBlock/DecryptBlock run concurrently with Encrypt/Decrypt.
		e.renderer = newCPURenderer(ks, e.layout.blockSize)
		e.prg = newPRNG(ks.prngWindowAt(PrngSubkeyIndex))

	default:
		return ErrRendererNotImplemented
	}

	e.keyInitialized = true
	return nil
}

// LoadKeyFromBuffer calls InitKey with exactly KeySize bytes read from buf.
func (e *Engine) LoadKeyFromBuffer(buf []byte) error {
	if len(buf) != KeySize {
		return errors.Wrap(ErrKeyFileRead, "key buffer must be exactly KeySize bytes")
	}
	var key [KeySize]byte
	copy(key[:], buf)
	return e.InitKey(key)
}

// LoadKeyFile reads a raw KeySize-byte key file and calls InitKey with it.
func (e *Engine) LoadKeyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(ErrKeyFileRead, err.Error())
	}
	return e.LoadKeyFromBuffer(data)
}

// GetSubkey returns a copy of derived subkey index (0..NumSubkeys).
func (e *Engine) GetSubkey(index int) ([]byte, error) {
	if !e.keyInitialized {
		return nil, ErrKeyNotInitialized
	}
	if index < 0 || index >= NumSubkeys {
		return nil, ErrSubkeyIndexOutOfRange
	}
	out := make([]byte, KeySize)
	copy(out, e.ks.subkeyAt(index))
	return out, nil
}

// Stats returns a snapshot of this engine's activity counters.
func (e *Engine) Stats() EngineStats { return e.counters.snapshot() }

// Stop shuts down a multi-threaded engine's worker pool. It is a no-op for
// other engine types or an engine with no key loaded.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disp != nil {
		e.disp.Stop()
		e.disp = nil
	}
}

// trackBusy returns a func suitable for defer that adds the elapsed time
// since it was called to *counter, in nanoseconds.
func trackBusy(counter *uint64) func() {
	start := time.Now()
	return func() { atomic.AddUint64(counter, uint64(time.Since(start))) }
}

// encryptBlockWith runs one block's framing (if padding is on) and the
// eight-round diffuse/confuse pass on renderer r, drawing padding and
// tail-fill bytes from p. src must be at most plaintextBlockSize() bytes
// with padding on, and exactly that many with padding off;
// dst must have room for at least EncryptedBlockSize() bytes, or
// ErrLengthTooSmall is returned before anything is written.
func (e *Engine) encryptBlockWith(r Renderer, p *prng, dst, src []byte, seqnum uint16) error {
	defer trackBusy(&e.counters.workerBusyNanos)()

	if len(dst) < e.layout.blockSize {
		return ErrLengthTooSmall
	}

	length := len(src)
	if e.padding == PaddingOn {
		capacity := e.layout.payloadCapacity()
		if length > capacity {
			return ErrInvalidEncryptSize
		}
		payload := make([]byte, capacity)
		copy(payload, src)

		padding := make([]byte, e.layout.paddingSize())
		p.fetch(padding)
		if length < capacity {
			p.fetch(payload[length:])
		}

		packed := make([]byte, e.layout.blockSize)
		if err := e.frame.pack(packed, payload, padding, length, seqnum); err != nil {
			return err
		}
		r.Upload(packed)
	} else {
		if length != e.layout.blockSize {
			return ErrInvalidEncryptSize
		}
		r.Upload(src)
	}

	for round := 0; round < NumRounds; round++ {
		r.EncryptDiffuse(round)
		r.EncryptConfuse(round)
	}
	r.Download(dst)
	atomic.AddUint64(&e.counters.encryptedBlocks, 1)
	return nil
}

// decryptBlockWith runs the inverse eight-round pass on renderer r and, if
// padding is on, unframes the result into dst. src must be exactly
// EncryptedBlockSize() bytes; dst must have room for at least
// plaintextBlockSize() bytes, or ErrLengthTooSmall is returned before
// anything is written. It returns the recovered plaintext length and
// seqnum.
func (e *Engine) decryptBlockWith(r Renderer, dst, src []byte) (int, uint16, error) {
	defer trackBusy(&e.counters.workerBusyNanos)()

	if len(src) != e.layout.blockSize {
		return 0, 0, ErrInvalidEncryptedBlock
	}
	minDst := e.layout.blockSize
	if e.padding == PaddingOn {
		minDst = e.layout.payloadCapacity()
	}
	if len(dst) < minDst {
		return 0, 0, ErrLengthTooSmall
	}
	r.Upload(src)
	for round := NumRounds - 1; round >= 0; round-- {
		r.DecryptConfuse(round)
		r.DecryptDiffuse(round)
	}

	if e.padding == PaddingOn {
		packed := make([]byte, e.layout.blockSize)
		r.Download(packed)
		payload := make([]byte, e.layout.payloadCapacity())
		length, seqnum, err := e.frame.unpack(packed, payload)
		if err != nil {
			atomic.AddUint64(&e.counters.rejectedBlocks, 1)
			return 0, 0, err
		}
		copy(dst, payload[:length])
		atomic.AddUint64(&e.counters.decryptedBlocks, 1)
		return length, seqnum, nil
	}

	r.Download(dst)
	atomic.AddUint64(&e.counters.decryptedBlocks, 1)
	return e.layout.blockSize, 0, nil
}

// EncryptBlock encrypts one plaintext block (src, at most
// PlaintextBlockSize() bytes, or exactly that many with PaddingOff) into dst
// (exactly EncryptedBlockSize() bytes).
// On a multi-threaded engine this runs on a renderer and PRG dedicated to
// the block API (seeded the same as worker 0, but never sharing its state),
// so a valid multi-threaded engine never nil-dereferences here the way it
// would if EncryptBlock/DecryptBlock aliased the dispatcher's own worker 0.
// e.mu still serializes this against every other block/stream call on the
// same Engine, including Encrypt/Decrypt: they're read and reused here, but
// not designed for concurrent callers to share.
func (e *Engine) EncryptBlock(dst, src []byte, seqnum uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.keyInitialized {
		return ErrKeyNotInitialized
	}
	return e.encryptBlockWith(e.renderer, e.prg, dst, src, seqnum)
}

// DecryptBlock decrypts one encrypted block (src, exactly
// EncryptedBlockSize() bytes) into dst, returning the recovered plaintext
// length and seqnum.
func (e *Engine) DecryptBlock(dst, src []byte) (int, uint16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.keyInitialized {
		return 0, 0, ErrKeyNotInitialized
	}
	return e.decryptBlockWith(e.renderer, dst, src)
}

// renderJob processes one multi-threaded dispatcher job on behalf of worker
// id, looping over every block the job's src/dst slices cover.
func (e *Engine) renderJob(id int, kind jobType, src, dst []byte, seqnum uint16) (int, error) {
	r := e.workerRenderers[id]
	switch kind {
	case jobEncrypt:
		p := e.workerPRGs[id]
		return encryptStream(func(s, d []byte, length int, sn uint16) error {
			return e.encryptBlockWith(r, p, d, s[:length], sn)
		}, e.layout.blockSize, e.plaintextBlockSize(), src, dst, seqnum)
	case jobDecrypt:
		return decryptStream(func(s, d []byte) (int, uint16, error) {
			return e.decryptBlockWith(r, d, s)
		}, e.layout.blockSize, src, dst)
	default:
		return 0, errors.Errorf("mumblepad: unknown job type %d", kind)
	}
}

// Encrypt splits src into PlaintextBlockSize() chunks and encrypts each into
// one block of the returned ciphertext, with seqnum incrementing (and
// wrapping at 2^16) once per block starting from seqBase.
func (e *Engine) Encrypt(src []byte, seqBase uint16) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.keyInitialized {
		return nil, ErrKeyNotInitialized
	}
	dst := make([]byte, e.EncryptedSize(len(src)))
	var n int
	var err error
	if e.engineType == EngineTypeCPUMulti {
		if e.disp == nil {
			return nil, ErrNoWorkers
		}
		n, err = e.encryptMulti(e.disp, src, dst, seqBase)
	} else {
		n, err = encryptStream(func(s, d []byte, length int, sn uint16) error {
			return e.encryptBlockWith(e.renderer, e.prg, d, s[:length], sn)
		}, e.layout.blockSize, e.plaintextBlockSize(), src, dst, seqBase)
	}
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// Decrypt recovers plaintext from an encrypted stream. len(src) must be a
// multiple of EncryptedBlockSize(); order is not otherwise validated, since
// each block carries its own seqnum in the header.
func (e *Engine) Decrypt(src []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.keyInitialized {
		return nil, ErrKeyNotInitialized
	}
	blockSize := e.layout.blockSize
	if len(src)%blockSize != 0 {
		return nil, ErrInvalidDecryptSize
	}
	numBlocks := len(src) / blockSize
	dst := make([]byte, numBlocks*e.plaintextBlockSize())

	var n int
	var err error
	if e.engineType == EngineTypeCPUMulti {
		if e.disp == nil {
			return nil, ErrNoWorkers
		}
		n, err = e.decryptMulti(e.disp, src, dst)
	} else {
		n, err = decryptStream(func(s, d []byte) (int, uint16, error) {
			return e.decryptBlockWith(e.renderer, d, s)
		}, blockSize, src, dst)
	}
	if err != nil {
		return nil, err
	}
	return dst[:n], nil
}

// encryptMulti fans src out across disp's worker pool in maxBytesPerJob-sized
// jobs, with each job's destination region pre-determined so the
// concatenated output matches a single-threaded run.
func (e *Engine) encryptMulti(disp *dispatcher, src, dst []byte, seqnum uint16) (int, error) {
	plaintextBlockSize := e.plaintextBlockSize()
	blocksPerJob := maxBytesPerJob / e.layout.blockSize
	if blocksPerJob < 1 {
		blocksPerJob = 1
	}
	jobChunk := blocksPerJob * plaintextBlockSize

	var results []chan jobResult
	dstOff := 0
	for len(src) > 0 {
		n := jobChunk
		if n > len(src) {
			n = len(src)
		}
		numBlocksInChunk := (n + plaintextBlockSize - 1) / plaintextBlockSize
		encChunk := numBlocksInChunk * e.layout.blockSize

		results = append(results, disp.dispatch(jobEncrypt, src[:n], dst[dstOff:dstOff+encChunk], seqnum))
		seqnum += uint16(numBlocksInChunk)
		dstOff += encChunk
		src = src[n:]
	}
	return collectResults(results)
}

// decryptMulti mirrors encryptMulti for decryption, with one difference: a
// job's recovered plaintext can be shorter than its worst-case allotment
// whenever a block's own length field (not just the stream's final block)
// encodes a partial block, so each job decrypts into a scratch buffer of
// its own and the results are compacted into dst in job order afterward,
// rather than relying on a pre-computed destination offset per job.
func (e *Engine) decryptMulti(disp *dispatcher, src, dst []byte) (int, error) {
	blockSize := e.layout.blockSize
	plaintextBlockSize := e.plaintextBlockSize()
	blocksPerJob := maxBytesPerJob / blockSize
	if blocksPerJob < 1 {
		blocksPerJob = 1
	}
	jobChunk := blocksPerJob * blockSize

	type pendingJob struct {
		result chan jobResult
		buf    []byte
	}
	var jobs []pendingJob
	for len(src) > 0 {
		n := jobChunk
		if n > len(src) {
			n = len(src)
		}
		numBlocksInChunk := n / blockSize
		buf := make([]byte, numBlocksInChunk*plaintextBlockSize)
		jobs = append(jobs, pendingJob{result: disp.dispatch(jobDecrypt, src[:n], buf, 0), buf: buf})
		src = src[n:]
	}

	written := 0
	for _, j := range jobs {
		res := <-j.result
		if res.err != nil {
			return written, res.err
		}
		written += copy(dst[written:], j.buf[:res.written])
	}
	return written, nil
}

func collectResults(results []chan jobResult) (int, error) {
	written := 0
	var firstErr error
	for _, ch := range results {
		res := <-ch
		written += res.written
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
	}
	return written, firstErr
}
