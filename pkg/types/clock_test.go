package types

import (
	"testing"
	"time"
)

func TestRealClock_Timer(t *testing.T) {
	clock := NewRealClock()

	start := clock.Now()
	timer := clock.NewTimer(5 * time.Millisecond)
	select {
	case fired := <-timer.C():
		if fired.Sub(start) < 5*time.Millisecond {
			t.Errorf("timer fired after %v, want at least 5ms", fired.Sub(start))
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}

	stopped := clock.NewTimer(time.Hour)
	if !stopped.Stop() {
		t.Error("Stop() on a pending timer should report true")
	}
}
