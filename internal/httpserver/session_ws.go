package httpserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ankitagj/vani-ai/internal/agent"
	"github.com/ankitagj/vani-ai/internal/audio"
	"github.com/ankitagj/vani-ai/internal/config"
	"github.com/ankitagj/vani-ai/internal/filler"
	"github.com/ankitagj/vani-ai/internal/llm"
	"github.com/ankitagj/vani-ai/internal/metrics"
	"github.com/ankitagj/vani-ai/internal/persist"
	"github.com/ankitagj/vani-ai/internal/stt"
	"github.com/ankitagj/vani-ai/internal/tts"
)

// clientMessage is a control frame sent by the browser.
// Types: "start", "stop", "bye". Microphone audio arrives as binary frames
// of 16kHz little-endian mono PCM.
type clientMessage struct {
	Type string `json:"type"`
}

// serverEvent is a JSON frame sent to the browser. Synthesized speech is
// interleaved as binary Opus frames on the same connection.
// Types: "state", "partial", "turn", "reveal", "error".
type serverEvent struct {
	Type  string `json:"type"`
	State string `json:"state,omitempty"`
	Role  string `json:"role,omitempty"`
	Text  string `json:"text,omitempty"`
	Index int    `json:"index"`
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// wsConn serializes writes to the session socket: the Opus pacer and the
// event notifier run on different goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// WriteFrame sends an encoded Opus frame as a binary message.
func (c *wsConn) WriteFrame(frame []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

func (c *wsConn) writeEvent(ev serverEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(ev)
}

type sessionHandler struct {
	cfg config.Config
	met *metrics.Metrics
	lib *filler.Library
}

func newSessionHandler(cfg config.Config, met *metrics.Metrics) *sessionHandler {
	lib, err := filler.LoadLibrary(cfg.Engine.FillerDir, cfg.Engine.DefaultLanguage)
	if err != nil {
		log.Printf("filler library: %v - latency masking disabled", err)
	}
	return &sessionHandler{cfg: cfg, met: met, lib: lib}
}

// serve upgrades the request and runs one conversation session until the
// client disconnects or says bye.
func (h *sessionHandler) serve(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return nil
	}
	defer func() { _ = conn.Close() }()

	sock := &wsConn{conn: conn}
	paced, err := audio.NewOpusPacedWriter(sock)
	if err != nil {
		log.Printf("opus encoder error: %v", err)
		return nil
	}
	defer paced.Close()

	rec := stt.NewAssemblyAIService(h.cfg.AssemblyAIKey, "")
	reasoner := &reasonerAdapter{cli: llm.NewClient(h.cfg.ReasoningAPIKey, h.cfg.ReasoningBaseURL, h.cfg.ReasoningModel)}
	synth := h.newSynthesizer()
	sched := filler.NewScheduler(h.lib, paced, func() {
		if h.met != nil {
			h.met.FillerPlays.Inc()
		}
	})

	var store agent.Persister
	if sb, serr := persist.NewSupabase(h.cfg.SupabaseURL, h.cfg.SupabaseServiceKey, h.cfg.SupabaseBucket); serr != nil {
		log.Printf("transcript persistence disabled: %v", serr)
	} else {
		store = sb
	}

	notify := func(n agent.Notification) {
		ev := serverEvent{Type: n.Kind, State: n.State, Role: n.Role, Text: n.Text, Index: n.Index}
		if werr := sock.writeEvent(ev); werr != nil {
			log.Printf("session event write: %v", werr)
		}
	}

	engine := h.cfg.Engine
	orch := agent.New(agent.Config{
		QuietInterval:    engine.QuietInterval(),
		MinTurnChars:     engine.MinTurnChars,
		RevealInterval:   engine.RevealInterval(),
		PersistEvery:     engine.PersistEvery,
		DefaultLanguage:  engine.DefaultLanguage,
		ReasoningTimeout: time.Duration(engine.ReasoningTimeout) * time.Second,
	}, rec, reasoner, synth, paced, sched, store, h.met, notify)
	defer orch.Shutdown()

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			return nil
		}
		switch mt {
		case websocket.BinaryMessage:
			orch.FeedAudio(data)
		case websocket.TextMessage:
			var m clientMessage
			if json.Unmarshal(data, &m) != nil {
				continue
			}
			switch strings.ToLower(m.Type) {
			case "start":
				orch.StartConversation()
			case "stop":
				orch.StopTurn()
			case "bye":
				return nil
			}
		}
	}
}

func (h *sessionHandler) newSynthesizer() agent.Synthesizer {
	if h.cfg.TTSVendor == "deepgram" {
		return tts.NewDeepgramClient(h.cfg.DeepgramKey, "")
	}
	return tts.NewElevenLabsClient(h.cfg.ElevenLabsKey, h.cfg.ElevenLabsVoiceID)
}

// reasonerAdapter bridges the chat-completions client to the orchestrator.
type reasonerAdapter struct {
	cli *llm.Client
}

func (a *reasonerAdapter) Answer(ctx context.Context, sessionID string, history []agent.HistoryMessage, latest string) (agent.Reply, error) {
	msgs := make([]llm.Message, 0, len(history))
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Text: m.Text})
	}
	r, err := a.cli.Answer(ctx, sessionID, msgs, latest)
	if err != nil {
		return agent.Reply{}, err
	}
	return agent.Reply{Answer: r.Answer, Language: r.Language}, nil
}
