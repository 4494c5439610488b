package registry

import (
	"sync"

	"tradebridge/models"
)

// IntentSet is the caller-facing list of subscriptions. It outlives
// connections and is replayed on every reconnect.
type IntentSet struct {
	mu    sync.Mutex
	order []string
	items map[string]models.Subscription
}

func NewIntentSet() *IntentSet {
	return &IntentSet{items: make(map[string]models.Subscription)}
}

// Add records the intent. It reports false when it was already present.
func (s *IntentSet) Add(sub models.Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sub.Key()
	if _, ok := s.items[key]; ok {
		return false
	}
	s.items[key] = sub
	s.order = append(s.order, key)
	return true
}

// Remove deletes the intent. It reports false when it was unknown.
func (s *IntentSet) Remove(sub models.Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sub.Key()
	if _, ok := s.items[key]; !ok {
		return false
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the intents in insertion order.
func (s *IntentSet) List() []models.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Subscription, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.items[k])
	}
	return out
}

func (s *IntentSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}
