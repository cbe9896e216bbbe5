package notify

import (
	"sync"
	"time"
)

// EventType represents the type of refresh event
type EventType string

const (
	EventSessionCreated EventType = "session-created"
	EventSessionDeleted EventType = "session-deleted"
	EventLedgerChanged  EventType = "ledger-changed"
	EventActiveChanged  EventType = "active-changed"
)

// Event tells the presentation layer which sessions need re-reading
type Event struct {
	Type       EventType `json:"type"`
	Timestamp  int64     `json:"timestamp"`
	SessionIDs []string  `json:"sessionIds,omitempty"`
}

// Service fans refresh events out to subscribers. Slow subscribers drop events
// rather than blocking the mutating caller.
type Service struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewService creates a new notification service
func NewService() *Service {
	return &Service{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe creates a new subscription channel
// Returns the event channel and an unsubscribe function
func (s *Service) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if _, exists := s.subscribers[ch]; exists {
			delete(s.subscribers, ch)
			close(ch)
		}
	}

	return ch, unsubscribe
}

// Notify broadcasts an event to all subscribers
func (s *Service) Notify(event Event) {
	if s == nil {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip this subscriber
		}
	}
}

// SubscriberCount returns the number of live subscriptions
func (s *Service) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
