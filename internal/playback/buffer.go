// Package playback feeds an incrementally arriving synthesized audio stream
// to the output device. Playback starts on the first chunk rather than after
// the whole clip has arrived, which is what hides synthesis latency from the
// caller.
package playback

import (
	"sync"
)

// Output is the audio output device owned by a speaking span. WritePCM
// blocks until the device can take more audio, which is how the buffer
// paces itself to device readiness.
type Output interface {
	WritePCM(pcm []byte) error
	// FlushTail signals end-of-stream: the device pads and drains what it
	// still holds. Must only be called once all chunks have been fed.
	FlushTail()
	// Reset drops any queued audio immediately.
	Reset()
}

// Buffer absorbs audio chunks as they arrive over the network and feeds them
// to the Output strictly in arrival order, one chunk at a time. The
// end-of-stream signal is only issued after the source has ended and the
// queue is fully drained; a mid-stream failure resets the device instead,
// never flushing.
type Buffer struct {
	out     Output
	onFirst func()
	onDone  func(err error)

	mu      sync.Mutex
	cond    *sync.Cond
	queue   [][]byte
	closed  bool // source stream ended
	failed  bool
	failErr error
}

// New constructs the buffer and starts its consumer loop. onFirst fires just
// before the first chunk is written (used to stop the filler); onDone fires
// exactly once when playback completed or failed.
func New(out Output, onFirst func(), onDone func(err error)) *Buffer {
	b := &Buffer{out: out, onFirst: onFirst, onDone: onDone}
	b.cond = sync.NewCond(&b.mu)
	go b.consume()
	return b
}

// Append enqueues one audio chunk in arrival order. Chunks appended after
// CloseStream or Fail are ignored.
func (b *Buffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	if b.closed || b.failed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, chunk)
	b.cond.Signal()
	b.mu.Unlock()
}

// CloseStream marks the source stream as ended. Remaining queued chunks are
// still played before end-of-stream is signalled to the device.
func (b *Buffer) CloseStream() {
	b.mu.Lock()
	b.closed = true
	b.cond.Signal()
	b.mu.Unlock()
}

// Fail aborts playback: queued audio is dropped, the device is reset and
// onDone receives the error. End-of-stream is never signalled on this path.
func (b *Buffer) Fail(err error) {
	b.mu.Lock()
	if b.closed || b.failed {
		b.mu.Unlock()
		return
	}
	b.failed = true
	b.failErr = err
	b.cond.Signal()
	b.mu.Unlock()
}

// QueueLen reports the number of chunks awaiting the device.
func (b *Buffer) QueueLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *Buffer) consume() {
	first := true
	for {
		b.mu.Lock()
		for len(b.queue) == 0 && !b.closed && !b.failed {
			b.cond.Wait()
		}
		if b.failed {
			err := b.failErr
			b.queue = nil
			b.mu.Unlock()
			b.out.Reset()
			b.done(err)
			return
		}
		if len(b.queue) == 0 {
			// source ended and everything has been fed: now, and only
			// now, signal end-of-stream
			b.mu.Unlock()
			b.out.FlushTail()
			b.done(nil)
			return
		}
		chunk := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		if first {
			first = false
			if b.onFirst != nil {
				b.onFirst()
			}
		}
		if err := b.out.WritePCM(chunk); err != nil {
			b.mu.Lock()
			b.failed = true
			b.failErr = err
			b.queue = nil
			b.mu.Unlock()
			b.out.Reset()
			b.done(err)
			return
		}
	}
}

func (b *Buffer) done(err error) {
	if b.onDone != nil {
		b.onDone(err)
	}
}
