package ready

import (
	"testing"
	"time"
)

func TestEvent_SetIsMonotonic(t *testing.T) {
	var e Event
	if e.IsSet() {
		t.Fatal("zero event should be unset")
	}
	e.Set()
	e.Set() // second Set is a no-op
	if !e.IsSet() {
		t.Fatal("event should stay set")
	}
}

func TestEvent_WaitTimesOut(t *testing.T) {
	var e Event
	start := time.Now()
	if e.Wait(20 * time.Millisecond) {
		t.Fatal("wait should have timed out")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("returned before timeout: %v", elapsed)
	}
}

func TestEvent_WaitWakesOnSet(t *testing.T) {
	var e Event
	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Set()
	}()
	if !e.Wait(2 * time.Second) {
		t.Fatal("wait should have observed the set")
	}
}

func TestEvent_WaitZeroTimeoutPolls(t *testing.T) {
	var e Event
	if e.Wait(0) {
		t.Fatal("unset event should fail a zero-timeout wait")
	}
	e.Set()
	if !e.Wait(0) {
		t.Fatal("set event should pass a zero-timeout wait")
	}
}
