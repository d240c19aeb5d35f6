package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type subscriberStub struct {
	mu       sync.Mutex
	received [][]byte
	fail     bool
	closed   int
}

func (s *subscriberStub) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("broken pipe")
	}
	s.received = append(s.received, payload)
	return nil
}

func (s *subscriberStub) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *subscriberStub) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.received))
	for _, p := range s.received {
		out = append(out, string(p))
	}
	return out, s.closed
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func received(s *subscriberStub) int {
	got, _ := s.snapshot()
	return len(got)
}

func TestHubDeliversPerTopic(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub := NewHub()
	defer hub.Close()

	items := &subscriberStub{}
	other := &subscriberStub{}
	hub.Register("items", items)
	hub.Register("other", other)

	hub.Broadcast("items", []byte("one"))
	hub.Broadcast("items", []byte("two"))

	if got := hub.Subscribers("items"); got != 1 {
		t.Fatalf("expected 1 items subscriber, got %d", got)
	}
	waitFor(t, "items delivery", func() bool { return received(items) == 2 })
	delivered, _ := items.snapshot()
	if delivered[0] != "one" || delivered[1] != "two" {
		t.Fatalf("unexpected delivery %v", delivered)
	}
	if received, _ := other.snapshot(); len(received) != 0 {
		t.Fatalf("other topic must not receive items events, got %v", received)
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub := NewHub()
	defer hub.Close()

	broken := &subscriberStub{fail: true}
	healthy := &subscriberStub{}
	hub.Register("items", broken)
	hub.Register("items", healthy)

	hub.Broadcast("items", []byte("event"))

	waitFor(t, "failing subscriber removal", func() bool { return hub.Subscribers("items") == 1 })
	if _, closed := broken.snapshot(); closed != 1 {
		t.Fatalf("expected failing subscriber closed once, got %d", closed)
	}
	waitFor(t, "healthy delivery", func() bool { return received(healthy) == 1 })
}

func TestHubUnregisterAndClose(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub := NewHub()

	a := &subscriberStub{}
	b := &subscriberStub{}
	hub.Register("items", a)
	hub.Register("items", b)
	hub.Unregister("items", a)
	if got := hub.Subscribers("items"); got != 1 {
		t.Fatalf("expected 1 subscriber after unregister, got %d", got)
	}
	if _, closed := a.snapshot(); closed != 0 {
		t.Fatalf("unregister must not close the client")
	}

	hub.Close()
	hub.Close()
	if _, closed := b.snapshot(); closed != 1 {
		t.Fatalf("expected remaining subscriber closed on hub close, got %d", closed)
	}

	late := &subscriberStub{}
	hub.Register("items", late)
	hub.Broadcast("items", []byte("ignored"))
	if got := hub.Subscribers("items"); got != 0 {
		t.Fatalf("closed hub reports %d subscribers", got)
	}
	if _, closed := late.snapshot(); closed != 1 {
		t.Fatalf("late subscriber should be closed immediately")
	}
}

type stalledSubscriber struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	freed   sync.Once
	mu      sync.Mutex
	closed  int
}

func (s *stalledSubscriber) unblock() {
	s.freed.Do(func() { close(s.release) })
}

func (s *stalledSubscriber) Send([]byte) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return nil
}

func (s *stalledSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *stalledSubscriber) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestHubEvictsStalledSubscriberWithoutBlocking(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub := newHub(2)
	defer hub.Close()

	stalled := &stalledSubscriber{entered: make(chan struct{}), release: make(chan struct{})}
	healthy := &subscriberStub{}
	defer stalled.unblock()
	hub.Register("items", stalled)
	hub.Register("items", healthy)

	hub.Broadcast("items", []byte("0"))
	<-stalled.entered
	waitFor(t, "first delivery", func() bool { return received(healthy) == 1 })

	for i := 1; i <= 3; i++ {
		sent := make(chan struct{})
		go func(payload []byte) {
			hub.Broadcast("items", payload)
			close(sent)
		}([]byte{byte('0' + i)})
		select {
		case <-sent:
		case <-time.After(time.Second):
			t.Fatalf("broadcast %d blocked behind a stalled subscriber", i)
		}
		want := i + 1
		waitFor(t, "healthy delivery", func() bool { return received(healthy) == want })
	}

	if got := hub.Subscribers("items"); got != 1 {
		t.Fatalf("expected stalled subscriber evicted, %d remain", got)
	}
	stalled.unblock()
	waitFor(t, "stalled subscriber close", func() bool { return stalled.closeCount() == 1 })
	if got, _ := healthy.snapshot(); len(got) != 4 || got[3] != "3" {
		t.Fatalf("healthy subscriber deliveries %v", got)
	}
}
