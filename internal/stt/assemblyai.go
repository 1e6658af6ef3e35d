// Package stt is the realtime speech-recognition client. It owns only the
// transport: cumulative partial transcripts are emitted as they arrive and
// end-of-turn detection happens elsewhere.
package stt

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// AssemblyAI streaming transcription client. Supports repeated
// Connect/Close cycles: the orchestrator holds the connection only for the
// duration of one listening span.
type AssemblyAIService struct {
	apiKey   string
	language string

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	partials  chan string
	audioData chan []byte
	stopCh    chan struct{}
}

// AssemblyAI message types
type beginMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`
}

type turnMessage struct {
	Type          string `json:"type"`
	Transcript    string `json:"transcript"`
	TurnFormatted bool   `json:"turn_is_formatted"`
}

type terminationMessage struct {
	Type                   string  `json:"type"`
	AudioDurationSeconds   float64 `json:"audio_duration_seconds"`
	SessionDurationSeconds float64 `json:"session_duration_seconds"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewAssemblyAIService creates a new transcription client. language is a
// hint passed to the recognizer; empty means auto.
func NewAssemblyAIService(apiKey, language string) *AssemblyAIService {
	return &AssemblyAIService{apiKey: apiKey, language: language}
}

// Connect establishes the WebSocket connection. Safe to call again after
// Close; a fresh partials channel is created per connection.
func (s *AssemblyAIService) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return nil
	}
	if s.apiKey == "" {
		return fmt.Errorf("assemblyai api key is empty")
	}

	params := url.Values{}
	params.Set("sample_rate", "16000")
	params.Set("format_turns", "false")
	params.Set("encoding", "pcm_s16le")
	if s.language != "" {
		params.Set("language", s.language)
	}
	wsURL := fmt.Sprintf("wss://streaming.assemblyai.com/v3/ws?%s", params.Encode())

	headers := map[string][]string{"Authorization": {s.apiKey}}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}

	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		if resp != nil {
			log.Printf("assemblyai connection failed with status: %d", resp.StatusCode)
		}
		return fmt.Errorf("failed to connect to assemblyai: %w", err)
	}

	s.conn = conn
	s.connected = true
	s.partials = make(chan string, 100)
	s.audioData = make(chan []byte, 1000)
	s.stopCh = make(chan struct{})

	go s.handleMessages(conn, s.partials, s.stopCh)
	go s.sendAudioData(conn, s.audioData, s.stopCh)

	log.Println("connected to assemblyai streaming service")
	return nil
}

// SendPCM16KLE queues 16kHz little-endian mono PCM for the recognizer.
func (s *AssemblyAIService) SendPCM16KLE(pcm []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.connected {
		return fmt.Errorf("not connected to assemblyai")
	}
	select {
	case s.audioData <- pcm:
	default:
		log.Println("audio buffer full, dropping packet")
	}
	return nil
}

// Partials returns the channel carrying cumulative transcript updates for
// the current connection. Closed by Close.
func (s *AssemblyAIService) Partials() <-chan string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.partials
}

// Close terminates the connection. The partials channel is closed by the
// reader goroutine once it has drained, so no send can race the close. A
// later Connect starts a fresh span.
func (s *AssemblyAIService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	close(s.stopCh)
	if s.conn != nil {
		terminateMsg := map[string]string{"type": "Terminate"}
		_ = s.conn.WriteJSON(terminateMsg)
		_ = s.conn.Close()
	}
	s.connected = false
	s.conn = nil
	log.Println("assemblyai connection closed")
	return nil
}

// handleMessages processes incoming WebSocket messages for one connection.
// It owns the partials channel: only this goroutine sends on it, and it
// closes it on exit.
func (s *AssemblyAIService) handleMessages(conn *websocket.Conn, partials chan<- string, stopCh <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic in handleMessages: %v", r)
		}
	}()
	defer close(partials)
	for {
		select {
		case <-stopCh:
			return
		default:
			_, message, err := conn.ReadMessage()
			if err != nil {
				select {
				case <-stopCh:
				default:
					log.Printf("error reading message: %v", err)
				}
				return
			}
			s.processMessage(message, partials, stopCh)
		}
	}
}

func (s *AssemblyAIService) processMessage(message []byte, partials chan<- string, stopCh <-chan struct{}) {
	var baseMsg map[string]interface{}
	if err := json.Unmarshal(message, &baseMsg); err != nil {
		log.Printf("error unmarshaling message: %v", err)
		return
	}
	msgType, ok := baseMsg["type"].(string)
	if !ok {
		log.Printf("message missing type field")
		return
	}
	switch msgType {
	case "Begin":
		var msg beginMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		expires := time.Unix(msg.ExpiresAt, 0).Format(time.RFC3339)
		log.Printf("assemblyai session began: ID=%s, ExpiresAt=%s", msg.ID, expires)
	case "Turn":
		var msg turnMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("error unmarshaling Turn message: %v", err)
			return
		}
		if msg.Transcript != "" {
			select {
			case <-stopCh:
			case partials <- msg.Transcript:
			default:
			}
		}
	case "Termination":
		var msg terminationMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai session terminated: AudioDuration=%.2fs, SessionDuration=%.2fs",
			msg.AudioDurationSeconds, msg.SessionDurationSeconds)
	case "Error":
		var msg errorMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			return
		}
		log.Printf("assemblyai error: %s", msg.Error)
	default:
		log.Printf("unknown message type: %s", msgType)
	}
}

// sendAudioData forwards queued audio to the recognizer.
func (s *AssemblyAIService) sendAudioData(conn *websocket.Conn, audioData <-chan []byte, stopCh <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic in sendAudioData: %v", r)
		}
	}()
	for {
		select {
		case <-stopCh:
			return
		case pcm := <-audioData:
			if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
				log.Printf("error sending audio data: %v", err)
				return
			}
		}
	}
}
