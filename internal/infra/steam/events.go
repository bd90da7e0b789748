package steam

import "sync"

// EventName identifies a lifecycle event emitted by the platform or coordinator.
type EventName string

const (
	EventLoggedOn           EventName = "loggedOn"
	EventError              EventName = "error"
	EventDisconnected       EventName = "disconnected"
	EventSteamGuard         EventName = "steamGuard"
	EventConnectedToGC      EventName = "connectedToGC"
	EventDisconnectedFromGC EventName = "disconnectedFromGC"
	EventCraftingComplete   EventName = "craftingComplete"
)

// Event is a single emission. Payload type depends on Name:
//
//	loggedOn           LoggedOnDetails
//	error              error
//	disconnected       DisconnectInfo
//	steamGuard         GuardChallenge
//	disconnectedFromGC DisconnectInfo
//	craftingComplete   domain.ItemDescriptor
type Event struct {
	Name    EventName
	Payload any
}

// subscriptionBuffer bounds how many undelivered events a subscription holds.
const subscriptionBuffer = 16

// Subscription receives events for the names it was created with until
// Close is called. It is meant to live for a single pending operation.
type Subscription struct {
	C <-chan Event

	bus   *Bus
	id    uint64
	names map[EventName]struct{}
	ch    chan Event
}

// Close detaches the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
}

// Bus fans events out to subscriptions. Emit never blocks; a subscription
// whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[uint64]*Subscription)}
}

// Subscribe attaches a subscription for the given event names.
func (b *Bus) Subscribe(names ...EventName) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan Event, subscriptionBuffer)
	sub := &Subscription{
		C:     ch,
		bus:   b,
		id:    b.nextID,
		names: make(map[EventName]struct{}, len(names)),
		ch:    ch,
	}
	for _, n := range names {
		sub.names[n] = struct{}{}
	}
	b.subs[sub.id] = sub
	return sub
}

// Emit delivers ev to every subscription interested in ev.Name.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if _, ok := sub.names[ev.Name]; !ok {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// Listeners returns the number of attached subscriptions.
func (b *Bus) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(sub.ch)
}
