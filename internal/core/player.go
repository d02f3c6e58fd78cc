package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lockstep-relay/server/internal/proto"
)

// GameInfo is the (game-type, capacity, step-time) triple a client
// names during handshake. It is also the key the dispatcher groups
// sessions by.
type GameInfo struct {
	GameType   string
	MaxPlayers int
	StepTime   time.Duration
}

// Player wraps one connected client as seen by the session pipeline.
// The transport that accepted the socket owns the socket itself;
// Player only owns the in-memory queues described in the data model.
type Player struct {
	ID       string
	GameInfo GameInfo

	// Slot is the session-assigned playerId, -1 until admission.
	Slot int

	// Inbound carries decoded client messages toward the session.
	// Single producer (the transport's read loop), single consumer
	// (the session's per-player pump). Sliding-window: oldest dropped
	// on overflow.
	Inbound chan proto.Message

	// Outbound carries messages destined for the client. Single
	// consumer (the transport's write loop), many producers (topic
	// subscriptions). Drop-newest: a slow client never stalls the hub.
	Outbound chan proto.Message

	// LocalInbound carries server-injected events, currently only
	// disconnect notices. Unbounded-small: a handful of slots is
	// always enough given how rarely it's used.
	LocalInbound chan proto.Message

	lastSeen     atomic.Int64 // unix nanoseconds
	disconnected atomic.Bool
}

// NewPlayer constructs a player with the given queue capacities.
func NewPlayer(id string, inboundCap, outboundCap int) *Player {
	p := &Player{
		ID:           id,
		Slot:         -1,
		Inbound:      make(chan proto.Message, inboundCap),
		Outbound:     make(chan proto.Message, outboundCap),
		LocalInbound: make(chan proto.Message, 8),
	}
	p.Touch()
	return p
}

// Touch records now as the last time an inbound message was decoded.
func (p *Player) Touch() {
	p.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen returns the last-seen timestamp.
func (p *Player) LastSeen() time.Time {
	return time.Unix(0, p.lastSeen.Load())
}

// Active reports whether the player was seen within window of now.
func (p *Player) Active(now time.Time, window time.Duration) bool {
	return now.Sub(p.LastSeen()) <= window
}

// MarkDisconnected flips the terminal flag. Idempotent.
func (p *Player) MarkDisconnected() {
	p.disconnected.Store(true)
}

// Disconnected reports the terminal flag.
func (p *Player) Disconnected() bool {
	return p.disconnected.Load()
}

// PushInbound enqueues a decoded message, dropping the oldest queued
// message if the buffer is full rather than blocking the network
// reader. Single-producer by contract (the transport read loop).
func (p *Player) PushInbound(m proto.Message) {
	for {
		select {
		case p.Inbound <- m:
			return
		default:
		}
		select {
		case <-p.Inbound:
		default:
		}
	}
}

// PushOutbound enqueues a message for delivery, dropping it if the
// client's outbound buffer is already full.
func (p *Player) PushOutbound(m proto.Message) {
	select {
	case p.Outbound <- m:
	default:
	}
}

// PushLocal enqueues a server-injected event for the player.
func (p *Player) PushLocal(m proto.Message) {
	select {
	case p.LocalInbound <- m:
	default:
	}
}

// PumpLocalInbound forwards server-injected events straight to the
// player's outbound stream, bypassing the session pipeline entirely —
// these are already fully-formed control messages that need no
// stamping. Runs for the lifetime of the player.
func (p *Player) PumpLocalInbound(ctx context.Context) {
	for {
		select {
		case m, ok := <-p.LocalInbound:
			if !ok {
				return
			}
			p.PushOutbound(m)
		case <-ctx.Done():
			return
		}
	}
}

// Watchdog force-closes the connection (via closeFn) once the player
// has gone idle longer than timeout, as long as the context is alive.
// It wakes once per interval, per the player session's watchdog design.
func Watchdog(ctx context.Context, p *Player, interval, timeout time.Duration, closeFn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if p.Disconnected() {
				return
			}
			if time.Since(p.LastSeen()) > timeout {
				closeFn()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
