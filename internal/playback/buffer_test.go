package playback

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeOutput records device calls; optional gate blocks WritePCM to simulate
// a slow device, and failAfter injects a device error.
type fakeOutput struct {
	mu        sync.Mutex
	writes    [][]byte
	flushed   bool
	resets    int
	gate      chan struct{}
	failAfter int
}

func (f *fakeOutput) WritePCM(pcm []byte) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter > 0 && len(f.writes)+1 >= f.failAfter {
		return errors.New("device error")
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	f.writes = append(f.writes, cp)
	return nil
}

func (f *fakeOutput) FlushTail() {
	f.mu.Lock()
	f.flushed = true
	f.mu.Unlock()
}

func (f *fakeOutput) Reset() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeOutput) snapshot() (int, bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes), f.flushed, f.resets
}

func TestBuffer_PlaysChunksInOrderThenFlushes(t *testing.T) {
	out := &fakeOutput{}
	done := make(chan error, 1)
	b := New(out, nil, func(err error) { done <- err })

	b.Append([]byte{1})
	b.Append([]byte{2})
	b.Append([]byte{3})
	b.CloseStream()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("playback never completed")
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.writes) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(out.writes))
	}
	for i, w := range out.writes {
		if w[0] != byte(i+1) {
			t.Fatalf("chunk order broken at %d: %v", i, w)
		}
	}
	if !out.flushed {
		t.Fatalf("expected end-of-stream after drain")
	}
}

func TestBuffer_FirstChunkStartsPlaybackBeforeStreamEnd(t *testing.T) {
	out := &fakeOutput{}
	first := make(chan struct{}, 1)
	b := New(out, func() { first <- struct{}{} }, func(error) {})

	b.Append([]byte{1})
	// the stream is still open; playback must begin anyway
	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatalf("playback did not start on first chunk")
	}
	b.CloseStream()
}

func TestBuffer_NeverFlushesWhileQueueNonEmpty(t *testing.T) {
	out := &fakeOutput{gate: make(chan struct{})}
	done := make(chan error, 1)
	b := New(out, nil, func(err error) { done <- err })

	for i := 0; i < 5; i++ {
		b.Append([]byte{byte(i)})
	}
	b.CloseStream()

	// device stalled: nothing may be flushed yet
	time.Sleep(50 * time.Millisecond)
	if _, flushed, _ := out.snapshot(); flushed {
		t.Fatalf("end-of-stream signalled with chunks still queued")
	}

	// release the device
	go func() {
		for i := 0; i < 5; i++ {
			out.gate <- struct{}{}
		}
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("playback never completed")
	}
	if n, flushed, _ := out.snapshot(); n != 5 || !flushed {
		t.Fatalf("expected full drain then flush, writes=%d flushed=%v", n, flushed)
	}
}

func TestBuffer_MidStreamFailureResetsWithoutFlush(t *testing.T) {
	out := &fakeOutput{}
	done := make(chan error, 1)
	b := New(out, nil, func(err error) { done <- err })

	b.Append([]byte{1})
	b.Append([]byte{2})
	b.Append([]byte{3})
	b.Fail(errors.New("stream error"))

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected failure to propagate")
		}
	case <-time.After(time.Second):
		t.Fatalf("failure never reported")
	}
	if _, flushed, resets := out.snapshot(); flushed || resets == 0 {
		t.Fatalf("failure path must reset the device and never flush (flushed=%v resets=%d)", flushed, resets)
	}
}

func TestBuffer_DeviceWriteErrorReported(t *testing.T) {
	out := &fakeOutput{failAfter: 2}
	done := make(chan error, 1)
	b := New(out, nil, func(err error) { done <- err })

	b.Append([]byte{1})
	b.Append([]byte{2})
	b.Append([]byte{3})
	b.CloseStream()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected device error")
		}
	case <-time.After(time.Second):
		t.Fatalf("device error never reported")
	}
	if _, flushed, _ := out.snapshot(); flushed {
		t.Fatalf("must not signal end-of-stream after device error")
	}
}

func TestBuffer_AppendAfterCloseIgnored(t *testing.T) {
	out := &fakeOutput{}
	done := make(chan error, 1)
	b := New(out, nil, func(err error) { done <- err })
	b.CloseStream()
	<-done
	b.Append([]byte{9}) // must not panic or write
	time.Sleep(20 * time.Millisecond)
	if n, _, _ := out.snapshot(); n != 0 {
		t.Fatalf("append after close must be ignored")
	}
}
