package core

import (
	"sync"

	"github.com/lockstep-relay/server/internal/proto"
)

// subscriber receives published messages for a topic it is registered
// against. Each flavor encodes its own backpressure policy.
type subscriber interface {
	publish(proto.Message)
}

// outboundSubscriber forwards to a player's outbound queue, which is
// itself drop-newest — the same shared subscriber instance is reused
// across every topic a given player is subscribed to.
type outboundSubscriber struct {
	player *Player
}

func (s *outboundSubscriber) publish(m proto.Message) {
	s.player.PushOutbound(m)
}

// slidingOneSubscriber is a one-slot mailbox: a fresh publish displaces
// whatever was queued. Used by the sync mediator, which only ever
// cares about the most recent sync reply.
type slidingOneSubscriber struct {
	ch chan proto.Message
}

func newSlidingOneSubscriber() *slidingOneSubscriber {
	return &slidingOneSubscriber{ch: make(chan proto.Message, 1)}
}

func (s *slidingOneSubscriber) publish(m proto.Message) {
	for {
		select {
		case s.ch <- m:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// topicBroker is a publish/subscribe point keyed by the small finite
// topic set {lock, sync, join, other}. Subscriber sets are guarded by
// a mutex, per the design note's "owned by a task, or updated under a
// mutex" guidance — here the mutex, since subscribe/unsubscribe happen
// from several goroutines (dispatcher adds, sync mediator adds/removes).
type topicBroker struct {
	mu   sync.Mutex
	subs map[proto.Topic]map[subscriber]struct{}
}

func newTopicBroker() *topicBroker {
	return &topicBroker{
		subs: map[proto.Topic]map[subscriber]struct{}{
			proto.TopicLock:  {},
			proto.TopicSync:  {},
			proto.TopicJoin:  {},
			proto.TopicOther: {},
		},
	}
}

func (b *topicBroker) subscribe(topic proto.Topic, s subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic][s] = struct{}{}
}

func (b *topicBroker) unsubscribe(topic proto.Topic, s subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[topic], s)
}

// unsubscribeAll removes s from every topic, used when a player
// departs the session.
func (b *topicBroker) unsubscribeAll(s subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, set := range b.subs {
		delete(set, s)
	}
}

// publish delivers m to every subscriber of the given topic.
func (b *topicBroker) publish(topic proto.Topic, m proto.Message) {
	b.mu.Lock()
	subs := make([]subscriber, 0, len(b.subs[topic]))
	for s := range b.subs[topic] {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.publish(m)
	}
}

// publishAuto classifies m and publishes it to the matching topic.
func (b *topicBroker) publishAuto(m proto.Message) {
	b.publish(proto.Classify(m), m)
}
