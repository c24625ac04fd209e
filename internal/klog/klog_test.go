package klog

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, Warn)
	l.Infof("test", "should not appear")
	l.Errorf("test", "should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("Info line leaked through Warn filter: %q", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("Error line missing: %q", out)
	}
}

type fakeSpawner struct{}

func (fakeSpawner) SpawnSystemThread(name string, body func(ctx context.Context)) {
	go body(context.Background())
}

func TestSyslogDrainsInEnqueueOrder(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	logger := NewLogger(syncWriter{&buf, &mu}, Debug)
	sl := NewSyslog(logger, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sl.Start(ctx, fakeSpawner{})

	for i := 0; i < 5; i++ {
		sl.Enqueue(Info, "test", string(rune('a'+i)))
	}

	deadline := time.After(time.Second)
	for {
		mu.Lock()
		n := strings.Count(buf.String(), "INFO")
		mu.Unlock()
		if n >= 5 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("drain did not complete in time, got %d/5 lines", n)
		case <-time.After(time.Millisecond):
		}
	}

	mu.Lock()
	out := buf.String()
	mu.Unlock()
	ia := strings.Index(out, " a\n")
	ib := strings.Index(out, " b\n")
	if ia == -1 || ib == -1 || ia > ib {
		t.Fatalf("records out of enqueue order: %q", out)
	}
}

func TestSyslogOverflowDropsOldest(t *testing.T) {
	logger := NewLogger(&bytes.Buffer{}, Debug)
	sl := NewSyslog(logger, 2)
	sl.Enqueue(Info, "c", "1")
	sl.Enqueue(Info, "c", "2")
	sl.Enqueue(Info, "c", "3") // ring capacity 2: this overwrites the oldest unread

	if got := sl.Dropped(); got != 1 {
		t.Fatalf("Dropped = %d, want 1", got)
	}
}

type syncWriter struct {
	buf *bytes.Buffer
	mu  *sync.Mutex
}

func (w syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}
