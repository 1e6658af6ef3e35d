package silence

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDetector_FiresOnceWithLastText(t *testing.T) {
	fired := make(chan string, 4)
	d := NewDetector(60*time.Millisecond, 3, func(text string) { fired <- text }, nil)
	d.Arm()

	d.Update("what")
	time.Sleep(20 * time.Millisecond)
	d.Update("what time")

	select {
	case text := <-fired:
		if text != "what time" {
			t.Fatalf("expected last seen text, got %q", text)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("turn-ended signal never fired")
	}

	// disarmed after firing: further updates and quiet must not fire again
	d.Update("what time is it")
	select {
	case text := <-fired:
		t.Fatalf("unexpected second signal %q", text)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDetector_DuplicateUpdateDoesNotResetCountdown(t *testing.T) {
	fired := make(chan string, 1)
	d := NewDetector(80*time.Millisecond, 3, func(text string) { fired <- text }, nil)
	d.Arm()

	d.Update("hello there")
	// keep sending the identical text; the countdown must still elapse
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		d.Update("hello there")
		select {
		case <-fired:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	t.Fatalf("duplicate updates postponed the turn end")
}

func TestDetector_ShortTextDiscardedAndStaysArmed(t *testing.T) {
	fired := make(chan string, 1)
	var discarded int32
	d := NewDetector(40*time.Millisecond, 3, func(text string) { fired <- text },
		func(string) { atomic.AddInt32(&discarded, 1) })
	d.Arm()

	d.Update("uh")
	time.Sleep(100 * time.Millisecond)
	select {
	case text := <-fired:
		t.Fatalf("noise %q should not fire turn-ended", text)
	default:
	}
	if atomic.LoadInt32(&discarded) == 0 {
		t.Fatalf("expected noise discard callback")
	}

	// still armed: real speech afterwards fires normally
	d.Update("okay tell me more")
	select {
	case text := <-fired:
		if text != "okay tell me more" {
			t.Fatalf("unexpected text %q", text)
		}
	case <-time.After(300 * time.Millisecond):
		t.Fatalf("expected signal after real speech")
	}
}

func TestDetector_DisarmedDropsUpdates(t *testing.T) {
	fired := make(chan string, 1)
	d := NewDetector(30*time.Millisecond, 3, func(text string) { fired <- text }, nil)

	d.Update("should be ignored")
	time.Sleep(80 * time.Millisecond)
	select {
	case <-fired:
		t.Fatalf("disarmed detector must drop updates")
	default:
	}

	d.Arm()
	d.Update("now it counts")
	d.Disarm()
	time.Sleep(80 * time.Millisecond)
	select {
	case <-fired:
		t.Fatalf("disarm must cancel the countdown")
	default:
	}
}

func TestDetector_CountdownFromOlderUpdateNeverFires(t *testing.T) {
	fired := make(chan string, 1)
	d := NewDetector(time.Hour, 3, func(text string) { fired <- text }, nil)
	d.Arm()
	d.Update("what")
	d.Update("what time")

	d.mu.Lock()
	seq := d.seq
	d.mu.Unlock()

	// a countdown started before the latest update may still be in flight
	// when its timer is reset; it must be dropped, not submitted early
	d.fire(seq - 1)
	select {
	case text := <-fired:
		t.Fatalf("superseded countdown fired with %q", text)
	default:
	}

	// the countdown belonging to the latest update fires normally
	d.fire(seq)
	select {
	case text := <-fired:
		if text != "what time" {
			t.Fatalf("unexpected text %q", text)
		}
	default:
		t.Fatalf("current countdown should fire")
	}
}

func TestDetector_FlushReturnsAccumulatedText(t *testing.T) {
	d := NewDetector(time.Second, 3, func(string) {}, nil)
	d.Arm()
	d.Update("stop after this")

	text, ok := d.Flush()
	if !ok || text != "stop after this" {
		t.Fatalf("flush mismatch: %q ok=%v", text, ok)
	}
	if got := d.Current(); got != "" {
		t.Fatalf("flush must clear the partial, got %q", got)
	}

	d.Arm()
	d.Update("hm")
	if _, ok := d.Flush(); ok {
		t.Fatalf("sub-minimum flush must report not ok")
	}
}
