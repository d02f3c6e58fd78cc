package core

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockstep-relay/server/internal/proto"
)

// SessionConfig carries the tunables a GameSession needs beyond the
// per-game (type, capacity, step-time) triple the client supplies.
type SessionConfig struct {
	SyncActiveWindow  time.Duration
	SyncRetryInterval time.Duration
}

// inboundEmission is one decoded client message, tagged with the
// sender's identity, as it arrives on the session's ingress channel.
type inboundEmission struct {
	playerID string
	slot     int
	msg      proto.Message
}

// GameSession is the per-session event pipeline: input fan-in, ticker,
// topic fan-out, and sync mediation, for a single (type, maxPlayers,
// stepTime) group of players.
type GameSession struct {
	Type       string
	MaxPlayers int
	StepTime   time.Duration
	Seed       int64

	cfg SessionConfig
	log zerolog.Logger

	mu            sync.Mutex
	players       map[string]*Player
	syncedPlayers []*Player
	nextPlayerID  int

	step atomic.Uint64

	in      chan inboundEmission
	out     chan []proto.Message
	joinCh  chan proto.Message
	topics  *topicBroker
	done    chan struct{}
	closeMu sync.Once
}

// NewGameSession constructs an empty session and starts its pipeline
// goroutines (fan-in, egress flattening, and — if step-time > 0 — the
// ticker). The caller must eventually call Close.
func NewGameSession(info GameInfo, seed int64, cfg SessionConfig, log zerolog.Logger) *GameSession {
	s := &GameSession{
		Type:       info.GameType,
		MaxPlayers: info.MaxPlayers,
		StepTime:   info.StepTime,
		Seed:       seed,
		cfg:        cfg,
		log:        log.With().Str("game_type", info.GameType).Int64("seed", seed).Logger(),
		players:    make(map[string]*Player),
		in:         make(chan inboundEmission, 256),
		out:        make(chan []proto.Message, 64),
		joinCh:     make(chan proto.Message, 8),
		topics:     newTopicBroker(),
		done:       make(chan struct{}),
	}

	go s.pumpEgress()
	go s.pumpIngress()
	if s.StepTime > 0 {
		go s.runTicker()
	}

	return s
}

// Step returns the session's current tick counter.
func (s *GameSession) Step() uint64 {
	return s.step.Load()
}

// PlayerCount returns the number of players currently in the session.
func (s *GameSession) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

// Empty reports whether the session currently has no players.
func (s *GameSession) Empty() bool {
	return s.PlayerCount() == 0
}

// HasCapacity reports whether another player can join.
func (s *GameSession) HasCapacity() bool {
	return s.PlayerCount() < s.MaxPlayers
}

// hasPlayer reports whether playerID is currently in this session.
func (s *GameSession) hasPlayer(playerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.players[playerID]
	return ok
}

// PickSyncer returns the id of a uniformly random synced player whose
// last-seen is within the active window, or ok=false if none qualify.
func (s *GameSession) PickSyncer() (id string, ok bool) {
	s.mu.Lock()
	candidates := make([]*Player, 0, len(s.syncedPlayers))
	now := time.Now()
	for _, p := range s.syncedPlayers {
		if p.Active(now, s.cfg.SyncActiveWindow) {
			candidates = append(candidates, p)
		}
	}
	s.mu.Unlock()

	if len(candidates) == 0 {
		return "", false
	}
	chosen := candidates[rand.Intn(len(candidates))]
	return chosen.ID, true
}

// DonorAvailable implements §4.4's "donor available" predicate: a new
// game (no players yet) always qualifies; otherwise a donor must exist.
func (s *GameSession) DonorAvailable() bool {
	if s.Empty() {
		return true
	}
	_, ok := s.PickSyncer()
	return ok
}

// AddPlayer admits a player to the session: assigns its slot, wires
// its outbound subscriptions, starts its ingress pump, and runs (or
// skips) the sync protocol. Must only be called by the dispatcher,
// which is the session's sole writer for players/nextPlayerID.
func (s *GameSession) AddPlayer(ctx context.Context, p *Player) {
	s.mu.Lock()
	newGame := len(s.players) == 0
	slot := s.nextPlayerID
	s.nextPlayerID++
	p.Slot = slot
	s.players[p.ID] = p
	if newGame {
		s.syncedPlayers = append(s.syncedPlayers, p)
	}
	s.mu.Unlock()

	sub := &outboundSubscriber{player: p}
	s.topics.subscribe(proto.TopicLock, sub)
	s.topics.subscribe(proto.TopicOther, sub)

	p.PushOutbound(proto.Admission(newGame, slot, s.Seed))

	go s.pumpPlayer(ctx, p)

	if newGame {
		s.topics.subscribe(proto.TopicJoin, sub)
		return
	}

	go s.runSync(ctx, p, sub)
}

// RemovePlayer removes a player from the session (a no-op if the
// player was already removed), unsubscribes its outbound queue from
// every topic, and notifies remaining players via their local-inbound
// stream.
func (s *GameSession) RemovePlayer(p *Player) {
	s.mu.Lock()
	_, present := s.players[p.ID]
	if !present {
		s.mu.Unlock()
		return
	}
	delete(s.players, p.ID)
	for i, q := range s.syncedPlayers {
		if q.ID == p.ID {
			s.syncedPlayers = append(s.syncedPlayers[:i], s.syncedPlayers[i+1:]...)
			break
		}
	}
	remaining := make([]*Player, 0, len(s.players))
	for _, q := range s.players {
		remaining = append(remaining, q)
	}
	s.mu.Unlock()

	// AddPlayer's subscriber pointer is not kept, so it is found by its
	// player rather than by subscriber identity.
	s.topics.mu.Lock()
	for _, set := range s.topics.subs {
		for sub := range set {
			if o, ok := sub.(*outboundSubscriber); ok && o.player == p {
				delete(set, sub)
			}
		}
	}
	s.topics.mu.Unlock()

	notice := proto.Disconnected(p.Slot)
	for _, q := range remaining {
		q.PushLocal(notice)
	}
}

// Close terminates the session's pipeline: the ticker stops, the
// ingress pump stops accepting new work, and all sync mediators
// abandon their wait. Idempotent.
func (s *GameSession) Close() {
	s.closeMu.Do(func() {
		close(s.done)
	})
}

// pumpPlayer forwards one player's inbound stream into the session's
// ingress channel, stamping sender identity, until the player's
// inbound closes or the session ends.
func (s *GameSession) pumpPlayer(ctx context.Context, p *Player) {
	for {
		select {
		case m, ok := <-p.Inbound:
			if !ok {
				return
			}
			select {
			case s.in <- inboundEmission{playerID: p.ID, slot: p.Slot, msg: m}:
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pumpIngress is Tap A plus the stepless join flush: it classifies
// every ingress message, drops heartbeats always, routes sync replies
// directly to the :sync topic (bypassing egress batching entirely, so
// invariant 6 — sync only ever reaches the requesting newcomer — holds
// regardless of step-time), and batches everything else onto out. For
// stepless sessions it also flushes join-ch directly, since no ticker
// exists to do it on a tick boundary. For stepped sessions joinCh is
// runTicker's to drain alone — joinRecv stays nil here so this select
// never competes with the ticker for the same send.
func (s *GameSession) pumpIngress() {
	var joinRecv chan proto.Message
	if s.StepTime == 0 {
		joinRecv = s.joinCh
	}

	for {
		select {
		case ev := <-s.in:
			if ev.msg.IsAlive() {
				continue
			}
			if ev.msg.IsSync() {
				s.topics.publish(proto.TopicSync, ev.msg.WithPlayerID(ev.slot))
				continue
			}
			out := ev.msg.WithPlayerID(ev.slot)
			if s.StepTime > 0 {
				out = out.WithStep(s.Step())
			}
			s.emit([]proto.Message{out})
		case joinMsg := <-joinRecv:
			s.emit([]proto.Message{joinMsg})
		case <-s.done:
			return
		}
	}
}

// emit pushes a batch to out without blocking the pipeline forever if
// the session is shutting down concurrently.
func (s *GameSession) emit(batch []proto.Message) {
	select {
	case s.out <- batch:
	case <-s.done:
	}
}

// pumpEgress flattens ordered batches from out into topic publications.
func (s *GameSession) pumpEgress() {
	for {
		select {
		case batch := <-s.out:
			for _, m := range batch {
				s.topics.publishAuto(m)
			}
		case <-s.done:
			return
		}
	}
}

// runTicker wakes every StepTime, counted from session creation (the
// wakeups are not aligned to wall-clock boundaries), emitting a lock
// message each time and, if a join announcement is pending, batching it
// with the lock — guaranteeing clients see lock before join for the
// same step.
func (s *GameSession) runTicker() {
	ticker := time.NewTicker(s.StepTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			step := s.step.Add(1)
			lockMsg := proto.Lock(step - 1)

			select {
			case joinMsg := <-s.joinCh:
				s.emit([]proto.Message{lockMsg, joinMsg.WithStep(step - 1)})
			default:
				s.emit([]proto.Message{lockMsg})
			}
		case <-s.done:
			return
		}
	}
}
