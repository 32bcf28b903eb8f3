package bus

import (
	"testing"
	"time"

	"github.com/savesentry/savesentry/internal/logging"
)

func TestPublishSubscribe(t *testing.T) {
	b := New(logging.ForTest(t))
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(Event{Kind: SnapshotCreated, Profile: 2, SnapshotID: "20260830T120000"})

	select {
	case ev := <-ch:
		if ev.Kind != SnapshotCreated || ev.Profile != 2 {
			t.Errorf("got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestMultipleSubscribers(t *testing.T) {
	b := New(logging.ForTest(t))
	ch1, cancel1 := b.Subscribe()
	defer cancel1()
	ch2, cancel2 := b.Subscribe()
	defer cancel2()

	b.Publish(Event{Kind: RestoreCompleted, Profile: 1})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Kind != RestoreCompleted {
				t.Errorf("subscriber %d got %+v", i, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d got nothing", i)
		}
	}
}

func TestCancelClosesChannel(t *testing.T) {
	b := New(logging.ForTest(t))
	ch, cancel := b.Subscribe()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}

	// Publishing after cancel must not panic or deliver
	b.Publish(Event{Kind: SnapshotDeleted})
}

// A subscriber that never drains loses oldest events but never blocks Publish.
func TestPublish_NeverBlocks(t *testing.T) {
	b := New(logging.ForTest(t))
	ch, cancel := b.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultBuffer*3; i++ {
			b.Publish(Event{Kind: SnapshotCreated, SnapshotID: "x"})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a lagging subscriber")
	}

	// The channel holds at most its capacity, newest-biased
	n := 0
	for {
		select {
		case <-ch:
			n++
			continue
		default:
		}
		break
	}
	if n == 0 || n > defaultBuffer {
		t.Errorf("drained %d events, want 1..%d", n, defaultBuffer)
	}
}
