package menusync

import (
	"encoding/json"
	"sync"

	"menuboard/internal/menu/push"
)

// subscriptions holds the one listener per event kind a session registers.
// Replace always tears down the previous set before registering the next, so
// a session never has two live listeners for the same kind.
type subscriptions struct {
	mu          sync.Mutex
	subscriber  push.Subscriber
	unsubscribe []func()
}

func newSubscriptions(subscriber push.Subscriber) *subscriptions {
	return &subscriptions{subscriber: subscriber}
}

// Replace deregisters the current listeners and registers handle for each of
// the four kinds.
func (s *subscriptions) Replace(handle func(kind push.Kind, payload json.RawMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.release()
	for _, kind := range push.Kinds() {
		s.unsubscribe = append(s.unsubscribe, s.subscriber.Subscribe(kind, func(payload json.RawMessage) {
			handle(kind, payload)
		}))
	}
}

// Close deregisters every listener. Safe to call more than once.
func (s *subscriptions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release()
}

func (s *subscriptions) active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.unsubscribe)
}

func (s *subscriptions) release() {
	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}
	s.unsubscribe = nil
}
