// Package agent drives the listen/submit/speak cycle of one conversation
// session. All session state lives on a single event-loop goroutine; async
// completions are posted as events carrying the generation they were issued
// under, so results from a superseded session are provably ignored.
package agent

import (
	"context"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ankitagj/vani-ai/internal/metrics"
	"github.com/ankitagj/vani-ai/internal/persist"
	"github.com/ankitagj/vani-ai/internal/playback"
	"github.com/ankitagj/vani-ai/internal/silence"
)

// State of the turn orchestrator.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateSubmitting
	StateSpeaking
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateSubmitting:
		return "submitting"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Persister receives conversation snapshots, fire-and-forget.
type Persister interface {
	Append(snap persist.Snapshot) error
}

// Notification is a UI-facing event (state changes, partials, turns,
// reveal progress, user-visible errors).
type Notification struct {
	Kind  string // "state" | "partial" | "turn" | "reveal" | "error"
	State string
	Role  string
	Text  string
	Index int
}

// Config holds the orchestrator tuning.
type Config struct {
	QuietInterval    time.Duration
	MinTurnChars     int
	RevealInterval   time.Duration
	PersistEvery     int
	DefaultLanguage  string
	ReasoningTimeout time.Duration
}

// apologies shown when the reasoning service fails, keyed by lowercase
// language, matching the conversation languages the reasoner detects.
var apologies = map[string]string{
	"english": "I apologize, I'm having trouble answering right now. Please try again in a moment.",
	"hindi":   "माफ़ कीजिए, अभी जवाब देने में दिक्कत आ रही है। थोड़ी देर बाद फिर से कोशिश करें।",
}

type eventKind int

const (
	evStart eventKind = iota
	evStop
	evTurnEnded
	evReasoned
	evPlaybackDone
	evShutdown
)

type event struct {
	kind    eventKind
	gen     uint64
	text    string
	reply   Reply
	err     error
	started time.Time
}

// Orchestrator is the turn state machine for a single conversation session.
type Orchestrator struct {
	cfg    Config
	rec    Recognizer
	reason Reasoner
	synth  Synthesizer
	out    Output
	filler Filler
	store  Persister // nil disables persistence
	met    *metrics.Metrics
	notify func(Notification)

	det    *silence.Detector
	events chan event
	done   chan struct{}

	state atomic.Int32

	// event-loop-owned state below
	sess        *Session
	gen         uint64
	submittedAt time.Time
	revealTurn  *Turn
	revealFull  []rune
	revealN     int
	revealTick  *time.Ticker
}

// New constructs an orchestrator in the idle state. notify may be nil.
func New(cfg Config, rec Recognizer, reason Reasoner, synth Synthesizer, out Output, fill Filler, store Persister, met *metrics.Metrics, notify func(Notification)) *Orchestrator {
	if notify == nil {
		notify = func(Notification) {}
	}
	o := &Orchestrator{
		cfg:    cfg,
		rec:    rec,
		reason: reason,
		synth:  synth,
		out:    out,
		filler: fill,
		store:  store,
		met:    met,
		notify: notify,
		events: make(chan event, 64),
		done:   make(chan struct{}),
	}
	o.det = silence.NewDetector(cfg.QuietInterval, cfg.MinTurnChars,
		func(text string) { o.post(event{kind: evTurnEnded, text: text}) },
		func(string) {
			if met != nil {
				met.TurnsDiscarded.Inc()
			}
		})
	go o.run()
	return o
}

// StartConversation begins listening. Valid from idle and, as the explicit
// restart, from error.
func (o *Orchestrator) StartConversation() { o.post(event{kind: evStart}) }

// StopTurn is the manual stop control. While listening it behaves like a
// turn-ended signal for the accumulated text; while speaking it is ignored
// (audio already playing is never cut).
func (o *Orchestrator) StopTurn() { o.post(event{kind: evStop}) }

// Shutdown tears the session down: persists the conversation with the ended
// flag, releases resources and stops the event loop.
func (o *Orchestrator) Shutdown() {
	o.post(event{kind: evShutdown})
	<-o.done
}

// State returns the current orchestrator state.
func (o *Orchestrator) State() State { return State(o.state.Load()) }

// FeedAudio forwards caller microphone audio to the recognizer. Dropped
// outside the listening span.
func (o *Orchestrator) FeedAudio(pcm []byte) {
	if o.State() != StateListening {
		return
	}
	_ = o.rec.SendPCM16KLE(pcm)
}

func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
	o.notify(Notification{Kind: "state", State: s.String()})
}

func (o *Orchestrator) run() {
	for {
		var tick <-chan time.Time
		if o.revealTick != nil {
			tick = o.revealTick.C
		}
		select {
		case ev := <-o.events:
			switch ev.kind {
			case evStart:
				o.handleStart()
			case evStop:
				o.handleStop()
			case evTurnEnded:
				o.handleTurnEnded(ev.text)
			case evReasoned:
				o.handleReasoned(ev)
			case evPlaybackDone:
				o.handlePlaybackDone(ev)
			case evShutdown:
				o.handleShutdown()
				return
			}
		case <-tick:
			o.handleRevealTick()
		}
	}
}

func (o *Orchestrator) handleStart() {
	switch o.State() {
	case StateIdle, StateError:
	default:
		return
	}
	o.gen++
	if o.sess == nil {
		o.sess = NewSession(o.cfg.DefaultLanguage)
		if o.met != nil {
			o.met.ActiveSessions.Inc()
		}
	}
	o.beginListening()
}

// beginListening acquires the recognition connection and arms the silence
// detector. Failure to acquire is fatal for the session.
func (o *Orchestrator) beginListening() {
	if err := o.rec.Connect(); err != nil {
		log.Printf("[%s] recognition unavailable: %v", o.sess.ID, err)
		o.setState(StateError)
		o.notify(Notification{Kind: "error", Text: "speech recognition is unavailable, please restart the conversation"})
		return
	}
	o.det.Arm()
	go o.pumpPartials(o.rec.Partials())
	o.setState(StateListening)
}

// pumpPartials forwards recognition updates into the silence detector until
// the connection's channel closes. The detector drops updates while
// disarmed, so a stray late update after leaving listening is harmless.
func (o *Orchestrator) pumpPartials(ch <-chan string) {
	for text := range ch {
		o.det.Update(text)
		if o.State() == StateListening {
			o.notify(Notification{Kind: "partial", Text: text})
		}
	}
}

func (o *Orchestrator) handleStop() {
	switch o.State() {
	case StateListening:
		text, ok := o.det.Flush()
		if !ok {
			// nothing worth submitting, keep listening
			o.det.Arm()
			return
		}
		o.submit(text)
	case StateSpeaking:
		// deliberate limitation: audio already playing is never cut
		log.Printf("[%s] stop ignored while speaking", o.sess.ID)
	}
}

func (o *Orchestrator) handleTurnEnded(text string) {
	if o.State() != StateListening {
		// the detector is disarmed across submitting+speaking, so this is
		// only a race between firing and a state change; drop it
		return
	}
	o.submit(text)
}

// submit commits the user turn and fires the reasoning call. Only one
// submission is ever in flight: the detector stays disarmed until the next
// listening span.
func (o *Orchestrator) submit(text string) {
	if err := o.rec.Close(); err != nil {
		log.Printf("[%s] recognizer close: %v", o.sess.ID, err)
	}

	history := o.sess.History()
	o.sess.AppendUser(text)
	if o.met != nil {
		o.met.TurnsCommitted.Inc()
	}
	o.notify(Notification{Kind: "turn", Role: string(RoleUser), Text: text, Index: len(o.sess.Turns) - 1})
	o.maybePersist(false)

	if err := o.filler.Start(o.sess.Language); err != nil {
		log.Printf("[%s] filler: %v", o.sess.ID, err)
	}

	o.setState(StateSubmitting)
	o.submittedAt = time.Now()
	gen := o.gen
	sessID := o.sess.ID
	if o.met != nil {
		o.met.ReasoningRequests.Inc()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.ReasoningTimeout)
		defer cancel()
		started := time.Now()
		reply, err := o.reason.Answer(ctx, sessID, history, text)
		o.post(event{kind: evReasoned, gen: gen, reply: reply, err: err, started: started})
	}()
}

func (o *Orchestrator) handleReasoned(ev event) {
	if ev.gen != o.gen || o.State() != StateSubmitting {
		log.Printf("ignoring stale reasoning result (gen=%d)", ev.gen)
		return
	}
	if o.met != nil {
		o.met.ReasoningLatency.Observe(time.Since(ev.started).Seconds())
	}

	if ev.err != nil {
		log.Printf("[%s] reasoning failed: %v", o.sess.ID, ev.err)
		if o.met != nil {
			o.met.ReasoningFailures.Inc()
		}
		o.filler.Stop()
		apology := apologies[strings.ToLower(o.sess.Language)]
		if apology == "" {
			apology = apologies["english"]
		}
		o.sess.AppendAssistantCommitted(apology)
		if o.met != nil {
			o.met.TurnsCommitted.Inc()
		}
		o.notify(Notification{Kind: "turn", Role: string(RoleAssistant), Text: apology, Index: len(o.sess.Turns) - 1})
		o.maybePersist(false)
		o.beginListening()
		return
	}
	if ev.reply.Answer == "" || ev.reply.Language == "" {
		// nothing to say: back to listening without an assistant turn
		log.Printf("[%s] empty reasoning reply, resuming listening", o.sess.ID)
		if o.met != nil {
			o.met.ReasoningFailures.Inc()
		}
		o.filler.Stop()
		o.beginListening()
		return
	}

	o.sess.Language = ev.reply.Language
	turn := o.sess.AppendAssistant()
	o.setState(StateSpeaking)
	o.startSpeaking(turn, ev.reply.Answer, ev.reply.Language)
}

// startSpeaking wires the synthesis stream into the playback buffer and
// begins the cosmetic character reveal of the assistant turn.
func (o *Orchestrator) startSpeaking(turn *Turn, text, language string) {
	gen := o.gen
	submitted := o.submittedAt

	buf := playback.New(o.out,
		func() {
			// real audio is about to start: the filler must be gone first
			o.filler.Stop()
			if o.met != nil {
				o.met.FirstAudioDelay.Observe(time.Since(submitted).Seconds())
			}
		},
		func(err error) {
			o.post(event{kind: evPlaybackDone, gen: gen, err: err})
		})

	o.revealTurn = turn
	o.revealFull = []rune(text)
	o.revealN = 0
	o.revealTick = time.NewTicker(o.cfg.RevealInterval)

	go func() {
		pcmCh, errCh := o.synth.Stream(context.Background(), text, language)
		for pcmCh != nil || errCh != nil {
			select {
			case chunk, ok := <-pcmCh:
				if !ok {
					pcmCh = nil
					continue
				}
				if o.met != nil {
					o.met.PlaybackChunks.Inc()
				}
				buf.Append(chunk)
			case err, ok := <-errCh:
				if !ok {
					errCh = nil
					continue
				}
				if err != nil {
					buf.Fail(err)
					return
				}
			}
		}
		buf.CloseStream()
	}()
}

func (o *Orchestrator) handlePlaybackDone(ev event) {
	if ev.gen != o.gen || o.State() != StateSpeaking {
		return
	}
	// the first-chunk hook never fires when synthesis produced no audio, so
	// the filler must be stopped here too before the next listening span
	o.filler.Stop()
	o.stopReveal()
	full := string(o.revealFull)
	if o.revealTurn != nil {
		o.sess.Commit(o.revealTurn, full)
		if o.met != nil {
			o.met.TurnsCommitted.Inc()
		}
		o.notify(Notification{Kind: "turn", Role: string(RoleAssistant), Text: full, Index: len(o.sess.Turns) - 1})
	}
	o.revealTurn = nil
	o.revealFull = nil
	o.maybePersist(false)

	if ev.err != nil {
		// playback failures silently restart listening
		log.Printf("[%s] playback failed: %v", o.sess.ID, ev.err)
		if o.met != nil {
			o.met.PlaybackErrors.Inc()
		}
	}
	o.beginListening()
}

func (o *Orchestrator) handleRevealTick() {
	if o.revealTurn == nil || o.revealN >= len(o.revealFull) {
		return
	}
	o.revealN++
	o.revealTurn.Text = string(o.revealFull[:o.revealN])
	o.notify(Notification{Kind: "reveal", Role: string(RoleAssistant), Text: o.revealTurn.Text, Index: len(o.sess.Turns) - 1})
}

func (o *Orchestrator) handleShutdown() {
	o.stopReveal()
	o.filler.Stop()
	if o.State() == StateListening {
		_ = o.rec.Close()
	}
	if o.sess != nil {
		o.persistNow(true)
		if o.met != nil {
			o.met.ActiveSessions.Dec()
		}
	}
	o.gen++ // invalidate anything still in flight
	o.setState(StateIdle)
	close(o.done)
}

func (o *Orchestrator) stopReveal() {
	if o.revealTick != nil {
		o.revealTick.Stop()
		o.revealTick = nil
	}
}

// maybePersist saves a snapshot every PersistEvery committed turns.
func (o *Orchestrator) maybePersist(ended bool) {
	if o.store == nil || o.sess.CommittedCount() == 0 {
		return
	}
	if !ended && o.sess.CommittedCount()%o.cfg.PersistEvery != 0 {
		return
	}
	o.persistNow(ended)
}

func (o *Orchestrator) persistNow(ended bool) {
	if o.store == nil {
		return
	}
	snap := o.sess.Snapshot(ended)
	go func() {
		if err := o.store.Append(snap); err != nil {
			log.Printf("[%s] persist: %v", snap.SessionID, err)
		}
	}()
}
