package core

import (
	"testing"
	"time"

	"github.com/lockstep-relay/server/internal/proto"
)

func TestTopicBrokerPublishFansOutToAllSubscribers(t *testing.T) {
	b := newTopicBroker()
	a := newSlidingOneSubscriber()
	c := newSlidingOneSubscriber()
	b.subscribe(proto.TopicOther, a)
	b.subscribe(proto.TopicOther, c)

	b.publish(proto.TopicOther, proto.Message{"x": 1.0})

	select {
	case <-a.ch:
	default:
		t.Fatal("subscriber a never received the publication")
	}
	select {
	case <-c.ch:
	default:
		t.Fatal("subscriber c never received the publication")
	}
}

func TestTopicBrokerUnsubscribeStopsDelivery(t *testing.T) {
	b := newTopicBroker()
	a := newSlidingOneSubscriber()
	b.subscribe(proto.TopicOther, a)
	b.unsubscribe(proto.TopicOther, a)

	b.publish(proto.TopicOther, proto.Message{"x": 1.0})

	select {
	case got := <-a.ch:
		t.Fatalf("expected no delivery after unsubscribe, got %v", got)
	default:
	}
}

func TestTopicBrokerUnsubscribeAllRemovesEverywhere(t *testing.T) {
	b := newTopicBroker()
	a := newSlidingOneSubscriber()
	b.subscribe(proto.TopicLock, a)
	b.subscribe(proto.TopicJoin, a)
	b.unsubscribeAll(a)

	b.publish(proto.TopicLock, proto.Message{proto.KeyLock: uint64(1)})
	b.publish(proto.TopicJoin, proto.Message{proto.KeyMsg: proto.MsgJoin})

	select {
	case got := <-a.ch:
		t.Fatalf("expected no delivery on any topic after unsubscribeAll, got %v", got)
	default:
	}
}

func TestPublishAutoRoutesByClassification(t *testing.T) {
	b := newTopicBroker()
	lockSub := newSlidingOneSubscriber()
	syncSub := newSlidingOneSubscriber()
	b.subscribe(proto.TopicLock, lockSub)
	b.subscribe(proto.TopicSync, syncSub)

	b.publishAuto(proto.Lock(5))

	select {
	case got := <-lockSub.ch:
		if got[proto.KeyLock] != uint64(5) {
			t.Fatalf("unexpected lock payload: %v", got)
		}
	default:
		t.Fatal("lock subscriber never received the tick")
	}
	select {
	case got := <-syncSub.ch:
		t.Fatalf("sync subscriber should not receive a lock message, got %v", got)
	default:
	}
}

func TestSlidingOneSubscriberKeepsOnlyLatest(t *testing.T) {
	s := newSlidingOneSubscriber()
	s.publish(proto.Message{"seq": 1.0})
	s.publish(proto.Message{"seq": 2.0})

	select {
	case got := <-s.ch:
		if got["seq"] != 2.0 {
			t.Fatalf("expected only the latest publication to survive, got %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no publication delivered")
	}
}
