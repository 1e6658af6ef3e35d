// Package audio delivers 48kHz PCM to the caller as paced Opus frames.
package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/hraban/opus"
)

// FrameSink receives encoded 20ms Opus frames for delivery to the caller.
type FrameSink interface {
	WriteFrame(frame []byte, duration time.Duration) error
}

// ErrWriterClosed is returned by WritePCM after Close.
var ErrWriterClosed = errors.New("audio: writer closed")

// OpusPacedWriter encodes incoming 48kHz PCM mono to Opus frames and writes
// them paced to the sink. Its blocking WritePCM doubles as the device-ready
// signal for the playback buffer: when internal buffers are full the caller
// waits until the pacer has drained a frame.
type OpusPacedWriter struct {
	enc          *opus.Encoder
	sink         FrameSink
	pcmBuf       []int16
	frameSamples int
	frames       chan []byte
	stopCh       chan struct{}
	stopped      bool
	sinkErr      error
	mu           sync.Mutex
}

// NewOpusPacedWriter constructs a paced writer with 20ms frames at 48kHz mono.
func NewOpusPacedWriter(sink FrameSink) (*OpusPacedWriter, error) {
	enc, err := opus.NewEncoder(48000, 1, opus.AppVoIP)
	if err != nil {
		return nil, err
	}
	w := &OpusPacedWriter{
		enc:          enc,
		sink:         sink,
		frameSamples: 960, // 20ms at 48kHz
		frames:       make(chan []byte, 512),
		stopCh:       make(chan struct{}),
	}
	go w.pacer()
	return w, nil
}

// WritePCM buffers PCM 48kHz mono data and emits encoded Opus frames paced
// to the sink. It blocks while the frame queue is full and returns any error
// the sink has reported.
func (w *OpusPacedWriter) WritePCM(pcmBytes []byte) error {
	if len(pcmBytes) < 2 {
		return nil
	}
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return ErrWriterClosed
	}
	if w.sinkErr != nil {
		err := w.sinkErr
		w.mu.Unlock()
		return err
	}

	need := len(pcmBytes) / 2
	startLen := len(w.pcmBuf)
	if cap(w.pcmBuf)-startLen < need {
		tmp := make([]int16, startLen, startLen+need+2048)
		copy(tmp, w.pcmBuf)
		w.pcmBuf = tmp
	}
	w.pcmBuf = w.pcmBuf[:startLen+need]
	for i := 0; i < need; i++ {
		w.pcmBuf[startLen+i] = int16(uint16(pcmBytes[2*i]) | uint16(pcmBytes[2*i+1])<<8)
	}

	// Encode full frames
	opusBuf := make([]byte, 4000)
	var full [][]byte
	for len(w.pcmBuf) >= w.frameSamples {
		frame := w.pcmBuf[:w.frameSamples]
		n, _ := w.enc.Encode(frame, opusBuf)
		if n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			full = append(full, pkt)
		}
		copy(w.pcmBuf, w.pcmBuf[w.frameSamples:])
		w.pcmBuf = w.pcmBuf[:len(w.pcmBuf)-w.frameSamples]
	}
	w.mu.Unlock()

	for _, pkt := range full {
		if err := w.pushFrame(pkt); err != nil {
			return err
		}
	}
	return nil
}

// FlushTail pads the remaining PCM to a full frame and adds a short silence
// tail to avoid clipping the end of the utterance.
func (w *OpusPacedWriter) FlushTail() {
	w.mu.Lock()
	opusBuf := make([]byte, 4000)
	var pkts [][]byte
	if len(w.pcmBuf) > 0 {
		pad := make([]int16, w.frameSamples)
		copy(pad, w.pcmBuf)
		n, _ := w.enc.Encode(pad, opusBuf)
		if n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			pkts = append(pkts, pkt)
		}
		w.pcmBuf = w.pcmBuf[:0]
	}
	// ~200ms of silence (10 frames)
	silence := make([]int16, w.frameSamples)
	for i := 0; i < 10; i++ {
		n, _ := w.enc.Encode(silence, opusBuf)
		if n > 0 {
			pkt := make([]byte, n)
			copy(pkt, opusBuf[:n])
			pkts = append(pkts, pkt)
		}
	}
	w.mu.Unlock()
	for _, pkt := range pkts {
		if err := w.pushFrame(pkt); err != nil {
			return
		}
	}
}

// Reset clears buffered PCM and queued frames immediately (filler stop,
// failed playback).
func (w *OpusPacedWriter) Reset() {
	w.mu.Lock()
	for {
		select {
		case <-w.frames:
		default:
			w.pcmBuf = w.pcmBuf[:0]
			w.mu.Unlock()
			return
		}
	}
}

// Close stops the pacer.
func (w *OpusPacedWriter) Close() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.stopCh)
	}
	w.mu.Unlock()
}

func (w *OpusPacedWriter) pacer() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			select {
			case frame := <-w.frames:
				if err := w.sink.WriteFrame(frame, 20*time.Millisecond); err != nil {
					w.mu.Lock()
					w.sinkErr = err
					w.mu.Unlock()
					return
				}
			default:
			}
		}
	}
}

// pushFrame enqueues a frame, blocking until space is available or stopped.
func (w *OpusPacedWriter) pushFrame(pkt []byte) error {
	for {
		w.mu.Lock()
		if w.sinkErr != nil {
			err := w.sinkErr
			w.mu.Unlock()
			return err
		}
		w.mu.Unlock()
		select {
		case <-w.stopCh:
			return ErrWriterClosed
		case w.frames <- pkt:
			return nil
		case <-time.After(100 * time.Millisecond):
			// re-check sink health while waiting
		}
	}
}
