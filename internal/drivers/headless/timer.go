package headless

import (
	"sync"
	"time"

	"github.com/nyxkernel/nyx/internal/drivermgr"
	"github.com/nyxkernel/nyx/internal/fdt"
)

// Timer is a headless timemgt.Descriptor backed by a time.Ticker instead of
// a real hardware counter; Enable/Disable follow the same goroutine-plus-
// stop-channel shape the teacher uses for its stdin reader.
type Timer struct {
	mu        sync.Mutex
	freqHz    uint64
	epochNs   uint64
	handler   func()
	enabled   bool
	stopCh    chan struct{}
	done      chan struct{}
}

// NewTimer builds a stopped headless timer ticking at freqHz once enabled.
func NewTimer(freqHz uint64) *Timer {
	return &Timer{freqHz: freqHz}
}

// GetFrequency implements timemgt.Descriptor.
func (t *Timer) GetFrequency() uint64 { return t.freqHz }

// GetTimeNs implements timemgt.Descriptor.
func (t *Timer) GetTimeNs() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epochNs
}

// SetTimeNs implements timemgt.Descriptor.
func (t *Timer) SetTimeNs(ns uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.epochNs = ns
}

// GetDate implements timemgt.Descriptor with a fixed epoch; a headless board
// has no RTC battery to read a real date from.
func (t *Timer) GetDate() (year, month, day int) { return 1970, 1, 1 }

// GetDaytime implements timemgt.Descriptor, derived from the stored offset.
func (t *Timer) GetDaytime() (hour, minute, second int) {
	total := int64(t.GetTimeNs() / uint64(time.Second))
	return int(total / 3600 % 24), int(total / 60 % 60), int(total % 60)
}

// SetHandler implements timemgt.Descriptor.
func (t *Timer) SetHandler(h func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// RemoveHandler implements timemgt.Descriptor.
func (t *Timer) RemoveHandler() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = nil
}

// TickAck implements timemgt.Descriptor; nothing to latch on a headless
// timer.
func (t *Timer) TickAck() {}

// Enable implements timemgt.Descriptor, starting the ticking goroutine.
func (t *Timer) Enable() {
	t.mu.Lock()
	if t.enabled || t.freqHz == 0 {
		t.mu.Unlock()
		return
	}
	t.enabled = true
	t.stopCh = make(chan struct{})
	t.done = make(chan struct{})
	stop := t.stopCh
	done := t.done
	period := time.Second / time.Duration(t.freqHz)
	t.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.mu.Lock()
				t.epochNs += uint64(period.Nanoseconds())
				h := t.handler
				t.mu.Unlock()
				if h != nil {
					h()
				}
			}
		}
	}()
}

// Disable implements timemgt.Descriptor, stopping the ticking goroutine.
func (t *Timer) Disable() {
	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return
	}
	t.enabled = false
	close(t.stopCh)
	done := t.done
	t.mu.Unlock()
	<-done
}

// MainTimerCompatible and RTCTimerCompatible are the FDT compatible strings
// distinguishing the two roles a headless timer node can declare.
const (
	MainTimerCompatible = "nyx,headless-timer-main"
	RTCTimerCompatible  = "nyx,headless-timer-rtc"
)

// Record builds a drivermgr.Record for this timer under the given compatible
// string (one of the two constants above).
func (t *Timer) Record(compatible string) *drivermgr.Record {
	return &drivermgr.Record{
		Name:        "headless-timer",
		Description: "time.Ticker-backed stand-in for a hardware timer/RTC",
		Compatible:  compatible,
		Version:     "1.0",
		Attach: func(node *fdt.Node) drivermgr.AttachStatus {
			drivermgr.SetDeviceData(node, t)
			return drivermgr.AttachOK
		},
	}
}
