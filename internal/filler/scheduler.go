package filler

import (
	"errors"
	"log"
	"sync"
)

// Output is the slice of the audio device the scheduler needs.
type Output interface {
	WritePCM(pcm []byte) error
	Reset()
}

// ErrActive is returned when a filler is already playing.
var ErrActive = errors.New("filler: already active")

// chunk size fed to the device per write: 100ms of 48kHz s16le mono.
const chunkBytes = 9600

// Scheduler plays one filler clip at a time through the Output. Start is
// rejected while a clip is active; Stop cuts playback immediately and is a
// no-op when nothing is playing.
type Scheduler struct {
	lib    *Library
	out    Output
	onPlay func()

	mu       sync.Mutex
	active   bool
	stopCh   chan struct{}
	playDone chan struct{}
}

// NewScheduler constructs a scheduler over the library and device. onPlay
// (optional) observes each clip actually started.
func NewScheduler(lib *Library, out Output, onPlay func()) *Scheduler {
	return &Scheduler{lib: lib, out: out, onPlay: onPlay}
}

// Start picks a random clip for the language (default-language fallback) and
// begins playing it immediately. Languages with no clips at all are a no-op.
func (s *Scheduler) Start(lang string) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrActive
	}
	clip, ok := s.lib.Pick(lang)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	stopCh := make(chan struct{})
	playDone := make(chan struct{})
	s.active = true
	s.stopCh = stopCh
	s.playDone = playDone
	s.mu.Unlock()

	if s.onPlay != nil {
		s.onPlay()
	}
	go s.play(clip, stopCh, playDone)
	return nil
}

// Stop cuts filler playback immediately, dropping any queued audio.
// Idempotent: calling it with nothing playing does nothing.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stopCh)
	s.stopCh = nil
	playDone := s.playDone
	s.playDone = nil
	s.mu.Unlock()
	// wait for a write already in flight to land before dropping queued
	// audio, so no filler chunk can slip in behind the reset
	if playDone != nil {
		<-playDone
	}
	s.out.Reset()
}

// Active reports whether a clip is currently playing.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Scheduler) play(clip []byte, stopCh chan struct{}, playDone chan struct{}) {
	defer close(playDone)
	for off := 0; off < len(clip); off += chunkBytes {
		select {
		case <-stopCh:
			return
		default:
		}
		end := off + chunkBytes
		if end > len(clip) {
			end = len(clip)
		}
		if err := s.out.WritePCM(clip[off:end]); err != nil {
			log.Printf("filler: device write: %v", err)
			break
		}
	}
	// natural end of clip: clear active unless Stop already did
	s.mu.Lock()
	if s.active && s.stopCh == stopCh {
		s.active = false
		s.stopCh = nil
		s.playDone = nil
	}
	s.mu.Unlock()
}
