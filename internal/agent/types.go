package agent

import (
	"context"
)

// Recognizer is the minimal interface for realtime STT. It is acquired for
// the duration of one listening span and released before the speaking span
// begins.
type Recognizer interface {
	Connect() error
	SendPCM16KLE(pcm []byte) error
	// Partials carries cumulative transcript updates for the current
	// connection; closed by Close.
	Partials() <-chan string
	Close() error
}

// Reply is one reasoning response: the answer to speak and the detected
// conversation language. Both must be non-empty for playback to start.
type Reply struct {
	Answer   string
	Language string
}

// HistoryMessage is one committed turn handed back to the reasoner.
type HistoryMessage struct {
	Role string
	Text string
}

// Reasoner produces a single reply for the latest user text plus the full
// turn history.
type Reasoner interface {
	Answer(ctx context.Context, sessionID string, history []HistoryMessage, latest string) (Reply, error)
}

// Synthesizer streams 48kHz PCM mono audio for the given text and language.
type Synthesizer interface {
	Stream(ctx context.Context, text, language string) (<-chan []byte, <-chan error)
}

// Output is the audio output device. WritePCM blocks until the device is
// ready for more; FlushTail signals end-of-stream; Reset drops queued audio
// immediately.
type Output interface {
	WritePCM(pcm []byte) error
	FlushTail()
	Reset()
}

// Filler masks reasoning latency with a short pre-recorded clip.
type Filler interface {
	Start(language string) error
	Stop()
	Active() bool
}
