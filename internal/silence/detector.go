// Package silence decides when the caller has finished speaking. It watches
// the stream of cumulative partial-transcript updates and fires a turn-ended
// signal once the text has stopped changing for a quiet interval.
package silence

import (
	"strings"
	"sync"
	"time"
)

// Detector raises a single turn-ended signal after the quiet interval passes
// with no change to the partial transcript. It disarms itself after firing
// and must be rearmed explicitly; while disarmed all updates are dropped.
type Detector struct {
	quiet    time.Duration
	minChars int

	onTurnEnded func(text string)
	onDiscard   func(text string)

	mu    sync.Mutex
	armed bool
	last  string
	seq   uint64 // invalidates countdowns superseded by a newer update
	timer *time.Timer
}

// NewDetector constructs a disarmed detector. onTurnEnded receives the last
// seen text; onDiscard (optional) observes sub-minimum signals dropped as
// noise.
func NewDetector(quiet time.Duration, minChars int, onTurnEnded func(string), onDiscard func(string)) *Detector {
	return &Detector{
		quiet:       quiet,
		minChars:    minChars,
		onTurnEnded: onTurnEnded,
		onDiscard:   onDiscard,
	}
}

// Arm clears the partial transcript and starts accepting updates.
func (d *Detector) Arm() {
	d.mu.Lock()
	d.armed = true
	d.last = ""
	d.seq++
	d.stopTimerLocked()
	d.mu.Unlock()
}

// Disarm stops the countdown and drops all further updates until Arm.
func (d *Detector) Disarm() {
	d.mu.Lock()
	d.armed = false
	d.seq++
	d.stopTimerLocked()
	d.mu.Unlock()
}

// Update feeds the cumulative recognized text for the current utterance.
// Only a genuine content change resets the countdown; duplicate events are
// ignored so noisy repeats cannot postpone the turn end indefinitely.
func (d *Detector) Update(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.armed {
		return
	}
	if text == d.last {
		return
	}
	d.last = text
	// Stop cannot cancel an AfterFunc already firing, so each countdown
	// carries the sequence it was started under and fire drops stale ones.
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(seq) })
}

// Current returns the not-yet-committed partial transcript.
func (d *Detector) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Flush disarms the detector and returns the accumulated text, used by the
// manual stop control. ok reports whether the text meets the minimum length.
func (d *Detector) Flush() (text string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text = strings.TrimSpace(d.last)
	d.last = ""
	d.armed = false
	d.seq++
	d.stopTimerLocked()
	return text, len([]rune(text)) >= d.minChars
}

func (d *Detector) fire(seq uint64) {
	d.mu.Lock()
	if !d.armed || seq != d.seq {
		d.mu.Unlock()
		return
	}
	text := strings.TrimSpace(d.last)
	if len([]rune(text)) < d.minChars {
		// Noise: drop it, clear the partial and keep listening.
		d.last = ""
		d.mu.Unlock()
		if d.onDiscard != nil {
			d.onDiscard(text)
		}
		return
	}
	d.armed = false
	d.last = ""
	d.mu.Unlock()
	d.onTurnEnded(text)
}

func (d *Detector) stopTimerLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
