package bus

import (
	"testing"

	"storesync/internal/domain"
)

func TestPublish_FansOutToAllSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	first, cancelFirst := b.Subscribe(1)
	defer cancelFirst()
	second, cancelSecond := b.Subscribe(1)
	defer cancelSecond()

	published := b.Publish(domain.TopicCartChanged)
	if published.ID == "" {
		t.Fatal("expected event id to be set")
	}

	for name, ch := range map[string]<-chan domain.Event{"first": first, "second": second} {
		event := <-ch
		if event.Topic != domain.TopicCartChanged {
			t.Fatalf("%s subscriber got topic %q", name, event.Topic)
		}
		if event.ID != published.ID {
			t.Fatalf("%s subscriber got a different event", name)
		}
	}
}

func TestPublish_DoesNotBlockOnSlowSubscriber(t *testing.T) {
	b := New()
	defer b.Close()

	slow, cancel := b.Subscribe(1)
	defer cancel()

	// Fill the buffer and keep publishing; the extra events are
	// dropped rather than blocking the publisher.
	for i := 0; i < 10; i++ {
		b.Publish(domain.TopicLocationChanged)
	}
	if len(slow) != 1 {
		t.Fatalf("expected exactly the buffered event, got %d", len(slow))
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	b := New()
	defer b.Close()

	ch, cancel := b.Subscribe(1)
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after cancel")
	}

	// Publishing after cancel must not panic.
	b.Publish(domain.TopicCartChanged)
}

func TestClose_ClosesAllSubscribers(t *testing.T) {
	b := New()
	ch, _ := b.Subscribe(1)
	b.Close()
	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after bus Close")
	}
	b.Publish(domain.TopicCartChanged) // no-op, no panic
}
