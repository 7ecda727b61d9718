package eventbus

import (
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(4)
	c, unsubC := b.Subscribe(4)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Topic: TopicDispatched, Data: "x"})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case e := <-ch:
			if e.Topic != TopicDispatched || e.Data != "x" {
				t.Fatalf("unexpected event %+v", e)
			}
			if e.Time.IsZero() {
				t.Fatalf("publish did not stamp time")
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Topic: TopicSkipped})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	if got := Dropped(b); got != 9 {
		t.Fatalf("Dropped = %d, want 9", got)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	b.Publish(Event{Topic: TopicArmed})
}
