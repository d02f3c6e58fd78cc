package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstep-relay/server/internal/proto"
)

func TestRunSyncRetriesUntilDonorBecomesActive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := SessionConfig{SyncActiveWindow: 50 * time.Millisecond, SyncRetryInterval: 10 * time.Millisecond}
	s := NewGameSession(GameInfo{GameType: "chess", MaxPlayers: 2}, 1, cfg, zerolog.Nop())
	defer s.Close()

	donor := NewPlayer("donor", 4, 4)
	s.AddPlayer(ctx, donor)
	drainOutbound(t, donor, time.Second) // admission

	// Make the donor look inactive so the first few retry attempts find
	// no qualifying syncer at all.
	donor.lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())

	newcomer := NewPlayer("newcomer", 4, 4)
	s.AddPlayer(ctx, newcomer)
	drainOutbound(t, newcomer, time.Second) // admission

	// No join announcement should arrive yet since the donor isn't active.
	select {
	case got := <-donor.Outbound:
		t.Fatalf("expected no join announcement while donor is inactive, got %v", got)
	case <-time.After(30 * time.Millisecond):
	}

	// Donor becomes active again; the retry loop should pick it up.
	donor.Touch()

	joinMsg := drainOutbound(t, donor, time.Second)
	if joinMsg[proto.KeyMsg] != proto.MsgJoin || joinMsg[proto.KeySyncer] != donor.ID {
		t.Fatalf("expected a join announcement naming the donor once active, got %v", joinMsg)
	}
}

func TestWaitNextLockBlocksForOneTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewGameSession(GameInfo{GameType: "chess", MaxPlayers: 2, StepTime: 15 * time.Millisecond}, 1, testSessionConfig(), zerolog.Nop())
	defer s.Close()

	start := time.Now()
	ok := s.waitNextLock(ctx)
	if !ok {
		t.Fatal("expected waitNextLock to succeed before the session closes")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatal("waitNextLock returned before a tick could plausibly have fired")
	}
}

func TestWaitNextLockAbandonsOnSessionClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// StepTime of an hour guarantees no tick fires before Close does.
	s := NewGameSession(GameInfo{GameType: "chess", MaxPlayers: 2, StepTime: time.Hour}, 1, testSessionConfig(), zerolog.Nop())

	done := make(chan bool, 1)
	go func() { done <- s.waitNextLock(ctx) }()

	time.Sleep(10 * time.Millisecond)
	s.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected waitNextLock to report failure once the session closed")
		}
	case <-time.After(time.Second):
		t.Fatal("waitNextLock never returned after session close")
	}
}
