package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func TestAllowFirstRequest(t *testing.T) {
	l := New(time.Second, 100)
	now := time.Now()
	if ok, wait := l.Allow("1.2.3.4", now); !ok || wait != 0 {
		t.Fatalf("first request: ok=%v wait=%v", ok, wait)
	}
}

func TestRejectWithinInterval(t *testing.T) {
	l := New(time.Second, 100)
	now := time.Now()
	l.Allow("1.2.3.4", now)

	ok, wait := l.Allow("1.2.3.4", now.Add(300*time.Millisecond))
	if ok {
		t.Fatal("second request within interval should be rejected")
	}
	if wait != 700*time.Millisecond {
		t.Errorf("wait = %v, want 700ms", wait)
	}
}

func TestAdmitAfterFullInterval(t *testing.T) {
	l := New(time.Second, 100)
	now := time.Now()
	l.Allow("1.2.3.4", now)
	if ok, _ := l.Allow("1.2.3.4", now.Add(time.Second)); !ok {
		t.Fatal("request after a full interval should be admitted")
	}
}

// A rejected attempt refreshes the timestamp: the cooldown restarts from the
// last attempt, not the last admitted request.
func TestRejectionRefreshesTimestamp(t *testing.T) {
	l := New(time.Second, 100)
	start := time.Now()
	l.Allow("1.2.3.4", start)

	// Spam every 500ms; each attempt is rejected and pushes the window out.
	at := start
	for i := 0; i < 5; i++ {
		at = at.Add(500 * time.Millisecond)
		if ok, _ := l.Allow("1.2.3.4", at); ok {
			t.Fatalf("attempt at +%v should be rejected", at.Sub(start))
		}
	}

	// 900ms after the last attempt is still too soon.
	if ok, _ := l.Allow("1.2.3.4", at.Add(900*time.Millisecond)); ok {
		t.Fatal("900ms after last attempt should still be rejected")
	}
	// The failed probe above refreshed the window again.
	at = at.Add(900 * time.Millisecond)
	if ok, _ := l.Allow("1.2.3.4", at.Add(time.Second)); !ok {
		t.Fatal("a full interval after the last attempt should be admitted")
	}
}

func TestClientsAreIndependent(t *testing.T) {
	l := New(time.Second, 100)
	now := time.Now()
	l.Allow("1.2.3.4", now)
	if ok, _ := l.Allow("5.6.7.8", now); !ok {
		t.Fatal("a different client should not be throttled")
	}
}

func TestEvictionKeepsDecisionsIntact(t *testing.T) {
	l := New(time.Second, 10)
	now := time.Now()
	for i := 0; i < 10; i++ {
		l.Allow(fmt.Sprintf("10.0.0.%d", i), now)
	}
	// A new client two intervals later triggers eviction of the stale
	// entries; they would all be admitted anyway.
	later := now.Add(2 * time.Second)
	if ok, _ := l.Allow("10.0.1.1", later); !ok {
		t.Fatal("new client should be admitted")
	}
	if got := l.Tracked(); got != 1 {
		t.Errorf("tracked = %d, want 1 after eviction", got)
	}
	if ok, _ := l.Allow("10.0.0.3", later); !ok {
		t.Fatal("evicted client should still be admitted")
	}
}
