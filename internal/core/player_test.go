package core

import (
	"context"
	"testing"
	"time"

	"github.com/lockstep-relay/server/internal/proto"
)

func TestPushInboundDropsOldestWhenFull(t *testing.T) {
	p := NewPlayer("p1", 2, 2)

	p.PushInbound(proto.Message{"seq": 1.0})
	p.PushInbound(proto.Message{"seq": 2.0})
	p.PushInbound(proto.Message{"seq": 3.0}) // buffer full, oldest (seq 1) should be dropped

	first := <-p.Inbound
	second := <-p.Inbound

	if first["seq"] != 2.0 || second["seq"] != 3.0 {
		t.Fatalf("expected sliding window to keep the newest two, got %v then %v", first, second)
	}
}

func TestPushOutboundDropsNewestWhenFull(t *testing.T) {
	p := NewPlayer("p1", 2, 1)

	p.PushOutbound(proto.Message{"seq": 1.0})
	p.PushOutbound(proto.Message{"seq": 2.0}) // buffer already full, this one is dropped

	got := <-p.Outbound
	if got["seq"] != 1.0 {
		t.Fatalf("expected the first enqueued message to survive, got %v", got)
	}
	select {
	case extra := <-p.Outbound:
		t.Fatalf("expected no second message, got %v", extra)
	default:
	}
}

func TestActiveWindow(t *testing.T) {
	p := NewPlayer("p1", 1, 1)
	if !p.Active(time.Now(), time.Second) {
		t.Fatal("freshly-created player should be active")
	}
	p.lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())
	if p.Active(time.Now(), time.Second) {
		t.Fatal("player last seen an hour ago should not be active within a 1s window")
	}
}

func TestWatchdogClosesOnIdleTimeout(t *testing.T) {
	p := NewPlayer("p1", 1, 1)
	p.lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	closed := make(chan struct{})
	Watchdog(ctx, p, 5*time.Millisecond, 10*time.Millisecond, func() { close(closed) })

	select {
	case <-closed:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("watchdog never fired for an idle player")
	}
}

func TestWatchdogSkipsAlreadyDisconnectedPlayer(t *testing.T) {
	p := NewPlayer("p1", 1, 1)
	p.lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())
	p.MarkDisconnected()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	called := false
	Watchdog(ctx, p, 5*time.Millisecond, 10*time.Millisecond, func() { called = true })

	if called {
		t.Fatal("watchdog must not call closeFn for an already-disconnected player")
	}
}

func TestPumpLocalInboundForwardsToOutbound(t *testing.T) {
	p := NewPlayer("p1", 1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go p.PumpLocalInbound(ctx)

	notice := proto.Disconnected(2)
	p.PushLocal(notice)

	select {
	case got := <-p.Outbound:
		if got[proto.KeyDisconnected] != 2 {
			t.Fatalf("unexpected forwarded message: %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("local inbound was never forwarded to outbound")
	}
}
