package steam

import (
	"testing"
	"time"
)

func TestBusDeliversToInterestedSubscribers(t *testing.T) {
	bus := NewBus()
	logon := bus.Subscribe(EventLoggedOn)
	defer logon.Close()
	gc := bus.Subscribe(EventConnectedToGC, EventDisconnectedFromGC)
	defer gc.Close()

	bus.Emit(Event{Name: EventConnectedToGC})

	select {
	case ev := <-gc.C:
		if ev.Name != EventConnectedToGC {
			t.Errorf("unexpected event %s", ev.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event")
	}

	select {
	case ev := <-logon.C:
		t.Errorf("logon subscription received %s", ev.Name)
	default:
	}
}

func TestSubscriptionCloseDetaches(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventError)
	if bus.Listeners() != 1 {
		t.Fatalf("expected 1 listener, got %d", bus.Listeners())
	}

	sub.Close()
	sub.Close()
	if bus.Listeners() != 0 {
		t.Errorf("expected listener to be removed, got %d", bus.Listeners())
	}

	// Emitting after close must not panic
	bus.Emit(Event{Name: EventError})

	if _, ok := <-sub.C; ok {
		t.Error("expected closed channel")
	}
}

func TestEmitNeverBlocks(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(EventCraftingComplete)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer*4; i++ {
			bus.Emit(Event{Name: EventCraftingComplete})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full subscription")
	}
}

func TestResultError(t *testing.T) {
	err := &ResultError{Result: 84}
	if err.EResult() != 84 {
		t.Errorf("unexpected result %d", err.EResult())
	}
	if err.Error() != "steam error: EResult 84" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open("does-not-exist", DriverConfig{}); err == nil {
		t.Error("expected error for unknown driver")
	}
}
