package logbus

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"
)

func TestSnapshotWrapsRing(t *testing.T) {
	b := New(3)
	b.Log("info", "one", nil)
	b.Log("info", "two", nil)
	b.Log("info", "three", nil)
	b.Log("info", "four", nil)

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot length = %d, want 3", len(snap))
	}
	want := []string{"two", "three", "four"}
	for i, msg := range snap {
		data, ok := msg.Data.(LogData)
		if !ok {
			t.Fatalf("snapshot[%d] data type %T", i, msg.Data)
		}
		if data.Msg != want[i] {
			t.Errorf("snapshot[%d] = %q, want %q", i, data.Msg, want[i])
		}
	}
}

func TestSubscribeReceivesPublished(t *testing.T) {
	b := New(10)
	ch, cancel := b.Subscribe(8)
	defer cancel()

	b.Log("warn", "hello", map[string]any{"k": "v"})

	select {
	case msg := <-ch:
		data := msg.Data.(LogData)
		if data.Level != "warn" || data.Msg != "hello" {
			t.Errorf("got %+v", data)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := New(10)
	ch, cancel := b.Subscribe(1)
	cancel()
	if _, open := <-ch; open {
		t.Fatal("channel should be closed after cancel")
	}
	// Publishing after cancel must not panic.
	b.Log("info", "after", nil)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := New(10)
	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			b.Log("info", "flood", nil)
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	b := New(10)
	ch, _ := b.Subscribe(1)
	b.Close()
	b.Close()
	if _, open := <-ch; open {
		t.Fatal("subscriber channel should be closed")
	}
	if got := b.Snapshot(); len(got) != 0 {
		t.Errorf("snapshot after close = %d messages", len(got))
	}
	if ch2, _ := b.Subscribe(1); func() bool { _, open := <-ch2; return open }() {
		t.Fatal("subscribe after close should hand back a closed channel")
	}
}

func TestMirrorLine(t *testing.T) {
	var buf bytes.Buffer
	b := New(10)
	b.MirrorTo(log.New(&buf, "", 0))
	b.Log("error", "delivery failed", map[string]any{"id": "abc"})

	line := buf.String()
	if !strings.Contains(line, "[error] delivery failed") {
		t.Errorf("mirror line = %q", line)
	}
	if !strings.Contains(line, `"id":"abc"`) {
		t.Errorf("mirror line missing fields: %q", line)
	}
}
