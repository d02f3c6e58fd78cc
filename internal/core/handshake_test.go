package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstep-relay/server/internal/proto"
)

func TestHandshakeSucceedsOnValidMessage(t *testing.T) {
	p := NewPlayer("p1", 4, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan bool, 1)
	go func() { done <- Handshake(ctx, p, zerolog.Nop()) }()

	welcome := <-p.Outbound
	if welcome[proto.KeyMsg] != proto.MsgWelcome {
		t.Fatalf("expected welcome message, got %v", welcome)
	}

	p.Inbound <- proto.Message{
		proto.KeyGameType:   "chess",
		proto.KeyMaxPlayers: 2.0,
		proto.KeyStepTimeMs: 100.0,
	}

	if ok := <-done; !ok {
		t.Fatal("expected handshake to succeed")
	}
	if p.GameInfo.GameType != "chess" || p.GameInfo.MaxPlayers != 2 || p.GameInfo.StepTime != 100*time.Millisecond {
		t.Fatalf("unexpected game info: %+v", p.GameInfo)
	}
}

func TestHandshakeDropsNonHandshakeMessagesAndKeepsWaiting(t *testing.T) {
	p := NewPlayer("p1", 4, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan bool, 1)
	go func() { done <- Handshake(ctx, p, zerolog.Nop()) }()
	<-p.Outbound // welcome

	p.Inbound <- proto.Message{proto.KeyMsg: "move"} // no handshake fields, dropped
	p.Inbound <- proto.Message{
		proto.KeyGameType:   "chess",
		proto.KeyMaxPlayers: 2.0,
		proto.KeyStepTimeMs: 0.0,
	}

	if ok := <-done; !ok {
		t.Fatal("expected handshake to eventually succeed")
	}
}

func TestHandshakeFailsWhenInboundCloses(t *testing.T) {
	p := NewPlayer("p1", 4, 4)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan bool, 1)
	go func() { done <- Handshake(ctx, p, zerolog.Nop()) }()
	<-p.Outbound // welcome

	close(p.Inbound)

	if ok := <-done; ok {
		t.Fatal("expected handshake to fail when inbound closes")
	}
}
