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
	"encoding/csv"
	"log"
	"os"
	"strconv"
	"sync/atomic"
	"time"
)

// EngineStats is a point-in-time snapshot of an engine's activity counters.
type EngineStats struct {
	EncryptedBlocks uint64
	DecryptedBlocks uint64
	RejectedBlocks  uint64

	// WorkerBusyNanos is the cumulative wall-clock time spent inside
	// encryptBlockWith/decryptBlockWith, summed across every renderer the
	// engine has driven (the single renderer on a single-threaded engine,
	// or every worker on a multi-threaded one).
	WorkerBusyNanos uint64
}

// engineCounters holds the live atomic counters an Engine updates as it
// works; snapshot copies them out into an EngineStats value.
type engineCounters struct {
	encryptedBlocks uint64
	decryptedBlocks uint64
	rejectedBlocks  uint64
	workerBusyNanos uint64
}

func (c *engineCounters) snapshot() EngineStats {
	return EngineStats{
		EncryptedBlocks: atomic.LoadUint64(&c.encryptedBlocks),
		DecryptedBlocks: atomic.LoadUint64(&c.decryptedBlocks),
		RejectedBlocks:  atomic.LoadUint64(&c.rejectedBlocks),
		WorkerBusyNanos: atomic.LoadUint64(&c.workerBusyNanos),
	}
}

var statsHeader = []string{"timestamp", "encrypted_blocks", "decrypted_blocks", "rejected_blocks", "worker_busy_nanos"}

// StartStatsLogger starts a background goroutine that appends one CSV row of
// EngineStats to path every interval, writing a header row first if the file
// is empty. It returns a stop function; calling it halts the logger and
// waits for any in-flight write to finish.
func StartStatsLogger(e *Engine, path string, interval time.Duration) (stop func()) {
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("mumblepad: stats logger: open %s: %v", path, err)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			log.Printf("mumblepad: stats logger: stat %s: %v", path, err)
			return
		}

		w := csv.NewWriter(f)
		if info.Size() == 0 {
			if err := w.Write(statsHeader); err != nil {
				log.Printf("mumblepad: stats logger: write header: %v", err)
				return
			}
			w.Flush()
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s := e.Stats()
				row := []string{
					strconv.FormatInt(time.Now().Unix(), 10),
					strconv.FormatUint(s.EncryptedBlocks, 10),
					strconv.FormatUint(s.DecryptedBlocks, 10),
					strconv.FormatUint(s.RejectedBlocks, 10),
					strconv.FormatUint(s.WorkerBusyNanos, 10),
				}
				if err := w.Write(row); err != nil {
					log.Printf("mumblepad: stats logger: write row: %v", err)
					continue
				}
				w.Flush()
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
