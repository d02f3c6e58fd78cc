package core

import (
	"context"
	"time"

	"github.com/lockstep-relay/server/internal/proto"
)

// runSync drives the late-join synchronization protocol (§4.6) on
// behalf of newcomer: pick a donor, announce the join, wait for the
// donor's sync reply, forward it, and record the newcomer as synced.
// This implementation adopts the retry variant named in §4.6/§9: the
// join announcement is re-emitted every SyncRetryInterval until a
// reply arrives, a donor going inactive mid-wait is not fatal. The
// subscription is torn down on every exit path.
func (s *GameSession) runSync(ctx context.Context, newcomer *Player, outbound *outboundSubscriber) {
	syncSub := newSlidingOneSubscriber()
	s.topics.subscribe(proto.TopicSync, syncSub)
	defer s.topics.unsubscribe(proto.TopicSync, syncSub)

	if s.StepTime > 0 {
		if !s.waitNextLock(ctx) {
			return
		}
	}

	retry := time.NewTicker(s.cfg.SyncRetryInterval)
	defer retry.Stop()

	s.announceJoin()

	for {
		select {
		case m := <-syncSub.ch:
			newcomer.PushOutbound(m)
			s.mu.Lock()
			s.syncedPlayers = append(s.syncedPlayers, newcomer)
			s.mu.Unlock()
			s.topics.subscribe(proto.TopicJoin, outbound)
			return
		case <-retry.C:
			s.announceJoin()
		case <-s.done:
			err := coreError(ErrCodeSessionClosed, "session closed while awaiting sync reply")
			s.log.Debug().Str("player_id", newcomer.ID).Err(err).Msg("sync abandoned")
			return
		case <-ctx.Done():
			return
		}
	}
}

// announceJoin selects a donor and enqueues a join announcement. If no
// donor is currently active it logs and leaves the retry loop to try
// again on the next tick of the retry ticker.
func (s *GameSession) announceJoin() {
	donorID, ok := s.PickSyncer()
	if !ok {
		s.log.Warn().Str("code", ErrCodeNoDonor).Msg("no active donor for sync, will retry")
		return
	}
	select {
	case s.joinCh <- proto.JoinPending(donorID):
	default:
		// A join is already pending for this tick; the retry ticker
		// will try again.
	}
}

// waitNextLock blocks until one lock tick passes, so the newcomer has
// every message up to step k before receiving sync at step k+1.
func (s *GameSession) waitNextLock(ctx context.Context) bool {
	lockSub := newSlidingOneSubscriber()
	s.topics.subscribe(proto.TopicLock, lockSub)
	defer s.topics.unsubscribe(proto.TopicLock, lockSub)

	select {
	case <-lockSub.ch:
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}
