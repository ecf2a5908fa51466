package websocket

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncerCoalesces(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)
	defer d.Stop()

	var fired int32
	for i := 0; i < 5; i++ {
		d.Do(func() { atomic.AddInt32(&fired, 1) })
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(80 * time.Millisecond)
	if got := atomic.LoadInt32(&fired); got != 1 {
		t.Errorf("expected one trailing-edge fire, got %d", got)
	}
}

func TestDebouncerZeroDelayImmediate(t *testing.T) {
	d := newDebouncer(0)

	var fired int32
	d.Do(func() { atomic.AddInt32(&fired, 1) })
	if atomic.LoadInt32(&fired) != 1 {
		t.Error("zero delay must fire synchronously")
	}
}

func TestDebouncerStopCancelsPending(t *testing.T) {
	d := newDebouncer(30 * time.Millisecond)

	var fired int32
	d.Do(func() { atomic.AddInt32(&fired, 1) })
	d.Stop()

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("stopped debouncer must not fire")
	}
}
