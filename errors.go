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

import "errors"

// Sentinel errors forming the engine's stable error taxonomy. Callers should
// compare with errors.Is; wrapping (via github.com/pkg/errors at the edges of
// fallible operations) never replaces these, only annotates them with a
// stack trace.
var (
	// ErrKeyNotInitialized is returned by any encrypt/decrypt call made
	// before a successful InitKey.
	ErrKeyNotInitialized = errors.New("mumblepad: key not initialized")

	// ErrInvalidEncryptSize is returned when a plaintext block exceeds the
	// block type's payload capacity.
	ErrInvalidEncryptSize = errors.New("mumblepad: plaintext exceeds block payload capacity")

	// ErrInvalidDecryptSize is returned when a ciphertext stream's length is
	// not a multiple of the encrypted block size.
	ErrInvalidDecryptSize = errors.New("mumblepad: ciphertext length is not a multiple of the encrypted block size")

	// ErrInvalidEncryptedBlock is returned when a block fails unpacking:
	// block-type tag mismatch, an over-long length field, or a checksum
	// mismatch.
	ErrInvalidEncryptedBlock = errors.New("mumblepad: encrypted block failed validation")

	// ErrSubkeyIndexOutOfRange is returned by GetSubkey for an index outside [0,560).
	ErrSubkeyIndexOutOfRange = errors.New("mumblepad: subkey index out of range")

	// ErrKeyFileRead is returned when a key file cannot be read or is not
	// exactly KeySize bytes.
	ErrKeyFileRead = errors.New("mumblepad: failed to read key file")

	// ErrLengthTooSmall is returned when a caller-supplied buffer is too
	// small for the operation requested.
	ErrLengthTooSmall = errors.New("mumblepad: destination buffer too small")

	// ErrInvalidFileExtension is returned by file-extension helpers for an
	// unrecognized Mumblepad extension. Retained for taxonomy completeness;
	// no extension helper is implemented in this package (out of scope).
	ErrInvalidFileExtension = errors.New("mumblepad: unrecognized key/encrypted file extension")

	// ErrNoWorkers is returned by Encrypt/Decrypt on a multi-threaded
	// engine whose worker pool has been shut down by Stop.
	ErrNoWorkers = errors.New("mumblepad: multi-threaded engine has no worker threads")

	// ErrRendererNotImplemented is returned by InitKey for an EngineType
	// whose renderer isn't implemented in this package (the accelerator
	// types are reserved for a future GPU-backed Renderer).
	ErrRendererNotImplemented = errors.New("mumblepad: renderer not implemented for this engine type")
)
