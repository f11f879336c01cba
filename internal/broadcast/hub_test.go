package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// chanConn forwards deliveries into a channel so tests can wait on them.
type chanConn struct {
	events chan Event
}

func newChanConn() *chanConn {
	return &chanConn{events: make(chan Event, 64)}
}

func (c *chanConn) Send(ev Event) error {
	c.events <- ev
	return nil
}

func (c *chanConn) waitOne(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-c.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
		return Event{}
	}
}

func (c *chanConn) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-c.events:
		t.Fatalf("unexpected event delivered: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// failConn rejects every delivery.
type failConn struct{}

func (failConn) Send(Event) error { return errors.New("connection reset") }

// blockConn never drains, so its buffer fills.
type blockConn struct {
	block chan struct{}
}

func (c *blockConn) Send(Event) error {
	<-c.block
	return nil
}

func testEvent(evType EventType) Event {
	return Event{
		Type:      evType,
		ActionID:  uuid.New(),
		PatientID: uuid.New(),
		ToState:   "PROCESSING",
		Timestamp: time.Now().UTC(),
	}
}

func TestPublishReachesMatchingKeyOnly(t *testing.T) {
	hub := NewHub(zap.NewNop())

	pharmacy := newChanConn()
	nursing := newChanConn()
	subA := hub.Subscribe(KeyDepartment, "pharmacy", pharmacy)
	defer subA.Close()
	subB := hub.Subscribe(KeyDepartment, "nursing", nursing)
	defer subB.Close()

	hub.Publish(KeyDepartment, "pharmacy", testEvent(EventTransitioned))

	if ev := pharmacy.waitOne(t); ev.Type != EventTransitioned {
		t.Errorf("unexpected event type %s", ev.Type)
	}
	nursing.expectNone(t)
}

func TestDepartmentKeysCaseInsensitive(t *testing.T) {
	hub := NewHub(zap.NewNop())

	conn := newChanConn()
	sub := hub.Subscribe(KeyDepartment, "Pharmacy", conn)
	defer sub.Close()

	hub.Publish(KeyDepartment, "PHARMACY", testEvent(EventCreated))
	conn.waitOne(t)
}

func TestGlobalReceivesRegardlessOfKey(t *testing.T) {
	hub := NewHub(zap.NewNop())

	conn := newChanConn()
	sub := hub.Subscribe(KeyGlobal, "ignored", conn)
	defer sub.Close()

	hub.Publish(KeyGlobal, "also-ignored", testEvent(EventEscalated))
	conn.waitOne(t)
}

func TestFailedSendRemovesSubscriberKeepsOthers(t *testing.T) {
	hub := NewHub(zap.NewNop())

	patientID := uuid.New().String()
	hub.Subscribe(KeyPatient, patientID, failConn{})
	healthy := newChanConn()
	sub := hub.Subscribe(KeyPatient, patientID, healthy)
	defer sub.Close()

	hub.Publish(KeyPatient, patientID, testEvent(EventCreated))

	// The healthy subscriber still gets the event.
	healthy.waitOne(t)

	// The failing one is unregistered and receives nothing further.
	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount(KeyPatient) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("failing subscriber was never removed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(KeyPatient, patientID, testEvent(EventTransitioned))
	healthy.waitOne(t)
}

func TestSlowSubscriberDroppedWithoutBlockingPublisher(t *testing.T) {
	hub := NewHub(zap.NewNop())

	var drops atomic.Int64
	hub.OnDrop(func(KeyKind) { drops.Add(1) })

	slow := &blockConn{block: make(chan struct{})}
	defer close(slow.block)
	hub.Subscribe(KeyGlobal, "", slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// One event is stuck in Send, sendBuffer more fill the channel, and
		// the next publish must drop the subscriber instead of blocking.
		for i := 0; i < sendBuffer+8; i++ {
			hub.Publish(KeyGlobal, "", testEvent(EventCreated))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
	if drops.Load() == 0 {
		t.Error("expected the slow subscriber to be dropped")
	}
	if hub.SubscriberCount(KeyGlobal) != 0 {
		t.Error("dropped subscriber still registered")
	}
}

func TestCloseIsIdempotentAndSafeDuringPublish(t *testing.T) {
	hub := NewHub(zap.NewNop())

	conn := newChanConn()
	sub := hub.Subscribe(KeyDepartment, "nursing", conn)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hub.Publish(KeyDepartment, "nursing", testEvent(EventTransitioned))
		}
	}()
	go func() {
		defer wg.Done()
		sub.Close()
		sub.Close()
	}()
	wg.Wait()

	if hub.SubscriberCount(KeyDepartment) != 0 {
		t.Error("closed subscriber still registered")
	}
}

func TestSubscriptionChangeHook(t *testing.T) {
	hub := NewHub(zap.NewNop())

	var total atomic.Int64
	hub.OnSubscriptionChange(func(_ KeyKind, delta int) { total.Add(int64(delta)) })

	sub := hub.Subscribe(KeyGlobal, "", newChanConn())
	if total.Load() != 1 {
		t.Fatalf("expected delta +1 after subscribe, got %d", total.Load())
	}
	sub.Close()
	if total.Load() != 0 {
		t.Fatalf("expected delta back to 0 after close, got %d", total.Load())
	}
}

func TestConcurrentPublishersAndSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	patientID := uuid.New().String()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := hub.Subscribe(KeyPatient, patientID, newChanConn())
			defer sub.Close()
			for j := 0; j < 50; j++ {
				hub.Publish(KeyPatient, patientID, testEvent(EventTransitioned))
			}
		}()
	}
	wg.Wait()

	if n := hub.SubscriberCount(KeyPatient); n != 0 {
		t.Errorf("expected all subscribers closed, %d remain", n)
	}
}
