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

import "time"

// maxWorkers bounds the size of a multi-threaded engine's worker pool.
const maxWorkers = 16

// maxBytesPerJob caps how many plaintext or ciphertext bytes a single
// dispatched job may cover, expressed in units of the largest block size.
const maxBytesPerJob = maxWorkers * 4096

type jobType int

const (
	jobEncrypt jobType = iota
	jobDecrypt
)

type job struct {
	kind   jobType
	src    []byte
	dst    []byte
	seqnum uint16
	result chan jobResult
}

type jobResult struct {
	written int
	err     error
}

// renderFunc processes one job on behalf of worker id, writing into dst and
// returning the number of bytes written.
type renderFunc func(id int, kind jobType, src, dst []byte, seqnum uint16) (int, error)

// dispatcher fans a stream of encrypt/decrypt jobs out across a fixed pool
// of worker goroutines, each owning its own renderer and PRG so no state is
// shared between concurrent jobs. Every job's output region is chosen by the
// caller before dispatch, so the concatenated output is byte-identical to a
// single-threaded run regardless of which worker handles which chunk. This
// is the channel-based Go counterpart to the original implementation's pool
// of OS-event-signaled worker threads: one buffered job channel per worker,
// and a shared idle channel standing in for the original's server signal.
type dispatcher struct {
	jobsChans []chan job
	doneChans []chan struct{}
	idle      chan int
	running   bool
}

func newDispatcher(numWorkers int, render renderFunc) *dispatcher {
	d := &dispatcher{
		jobsChans: make([]chan job, numWorkers),
		doneChans: make([]chan struct{}, numWorkers),
		idle:      make(chan int, numWorkers),
		running:   true,
	}
	for i := 0; i < numWorkers; i++ {
		d.jobsChans[i] = make(chan job, 1)
		d.doneChans[i] = make(chan struct{})
		go d.runWorker(i, render)
		d.idle <- i
	}
	return d
}

func (d *dispatcher) runWorker(id int, render renderFunc) {
	for j := range d.jobsChans[id] {
		written, err := render(id, j.kind, j.src, j.dst, j.seqnum)
		j.result <- jobResult{written: written, err: err}
		d.idle <- id
	}
	close(d.doneChans[id])
}

// dispatch hands a job to the first idle worker, returning a channel the
// caller reads to learn the job's outcome. When every worker is busy it
// waits on a bounded 100ms timer before re-checking for an idle worker; the
// timer is a liveness backstop only, never required for correctness.
func (d *dispatcher) dispatch(kind jobType, src, dst []byte, seqnum uint16) chan jobResult {
	result := make(chan jobResult, 1)
	j := job{kind: kind, src: src, dst: dst, seqnum: seqnum, result: result}
	for {
		select {
		case id := <-d.idle:
			d.jobsChans[id] <- j
			return result
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Stop cooperatively shuts every worker down: each finishes any job already
// queued to it, then exits once its job channel is closed. Stop blocks until
// every worker has exited.
func (d *dispatcher) Stop() {
	if !d.running {
		return
	}
	for _, ch := range d.jobsChans {
		close(ch)
	}
	for _, done := range d.doneChans {
		<-done
	}
	d.running = false
}
