package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LifecycleEvent is a player arrival or departure, as produced by any
// transport and merged into the dispatcher's single consumer loop.
type LifecycleEvent struct {
	Player       *Player
	Disconnected bool
}

// SessionInfo is a read-only snapshot used by the admin surface.
type SessionInfo struct {
	GameType   string
	MaxPlayers int
	StepTime   time.Duration
	Seed       int64
	Players    int
	Step       uint64
}

// Dispatcher maintains the global ordered list of active game sessions
// and matches arriving players to them. It is a single consumer of the
// merged lifecycle stream, so session-list mutation needs no lock of
// its own — only the public Sessions snapshot accessor does, since it
// may be called concurrently from the admin HTTP surface.
type Dispatcher struct {
	cfg SessionConfig
	log zerolog.Logger

	events chan LifecycleEvent

	mu       sync.Mutex
	sessions []*GameSession
}

// NewDispatcher constructs a dispatcher. Call Run to start consuming
// lifecycle events.
func NewDispatcher(cfg SessionConfig, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		log:    log,
		events: make(chan LifecycleEvent, 256),
	}
}

// Events returns the channel transports send arrival/departure events
// to.
func (d *Dispatcher) Events() chan<- LifecycleEvent {
	return d.events
}

// Run consumes lifecycle events until ctx is cancelled, serializing
// every session-list mutation on this single goroutine.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case ev := <-d.events:
			if ev.Disconnected {
				d.handleDeparture(ev.Player)
			} else {
				d.handleArrival(ctx, ev.Player)
			}
		case <-ctx.Done():
			d.shutdown()
			return
		}
	}
}

// handleArrival places a player into the first session with matching
// parameters, room, and an available donor, or spawns a new one.
// "Matching parameters" is the full (game-type, max-players, step-time)
// triple a client names during handshake, not game-type alone — two
// clients naming the same game-type but different capacities or step
// times must never land in the same session. Matches §4.4.
func (d *Dispatcher) handleArrival(ctx context.Context, p *Player) {
	d.mu.Lock()
	var target *GameSession
	for _, g := range d.sessions {
		if g.Type == p.GameInfo.GameType && g.MaxPlayers == p.GameInfo.MaxPlayers &&
			g.StepTime == p.GameInfo.StepTime && g.HasCapacity() && g.DonorAvailable() {
			target = g
			break
		}
	}
	if target == nil {
		target = NewGameSession(p.GameInfo, newSeed(), d.cfg, d.log)
		d.sessions = append(d.sessions, target)
		d.log.Info().Str("game_type", target.Type).Int("max_players", target.MaxPlayers).
			Dur("step_time", target.StepTime).Int64("seed", target.Seed).Msg("spawned session")
	}
	d.mu.Unlock()

	target.AddPlayer(ctx, p)
	d.log.Info().Str("player_id", p.ID).Int("slot", p.Slot).Str("game_type", target.Type).
		Msg("player admitted to session")
}

// handleDeparture removes a player from whichever session holds it,
// and terminates that session if it is now empty. Idempotent: a
// duplicate departure for an already-departed player is a no-op
// because RemovePlayer is.
func (d *Dispatcher) handleDeparture(p *Player) {
	d.mu.Lock()
	var owner *GameSession
	for _, g := range d.sessions {
		if g.hasPlayer(p.ID) {
			owner = g
			break
		}
	}
	d.mu.Unlock()

	if owner == nil {
		return
	}

	owner.RemovePlayer(p)
	d.log.Info().Str("player_id", p.ID).Str("game_type", owner.Type).Msg("player departed")

	if owner.Empty() {
		owner.Close()
		d.mu.Lock()
		for i, g := range d.sessions {
			if g == owner {
				d.sessions = append(d.sessions[:i], d.sessions[i+1:]...)
				break
			}
		}
		d.mu.Unlock()
		d.log.Info().Str("game_type", owner.Type).Msg("session terminated")
	}
}

func (d *Dispatcher) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, g := range d.sessions {
		g.Close()
	}
	d.sessions = nil
}

// Sessions returns a snapshot of active sessions for the admin surface.
func (d *Dispatcher) Sessions() []SessionInfo {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]SessionInfo, 0, len(d.sessions))
	for _, g := range d.sessions {
		out = append(out, SessionInfo{
			GameType:   g.Type,
			MaxPlayers: g.MaxPlayers,
			StepTime:   g.StepTime,
			Seed:       g.Seed,
			Players:    g.PlayerCount(),
			Step:       g.Step(),
		})
	}
	return out
}
