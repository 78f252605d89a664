package ticker

import (
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestDriverTicksUntilStopped(t *testing.T) {
	defer goleak.VerifyNone(t)

	var ticks int64
	d := NewDriver(5*time.Millisecond, func() { atomic.AddInt64(&ticks, 1) })
	d.Start()
	time.Sleep(40 * time.Millisecond)
	d.Stop()

	if got := atomic.LoadInt64(&ticks); got < 2 {
		t.Fatalf("tick count = %d, want at least 2", got)
	}
}

func TestDriverStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewDriver(5*time.Millisecond, func() {})
	d.Start()
	d.Stop()
	d.Stop()
}

func TestDriverStartTwiceWithoutStopIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	var ticks int64
	d := NewDriver(5*time.Millisecond, func() { atomic.AddInt64(&ticks, 1) })
	d.Start()
	d.Start()
	time.Sleep(20 * time.Millisecond)
	d.Stop()
}
