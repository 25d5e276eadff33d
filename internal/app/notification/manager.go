// Package notification provides the notification manager for broadcasting
// user-facing messages.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(message string) error
}

// StreamFunc adapts a function to Stream.
type StreamFunc func(message string) error

// Send calls f(message).
func (f StreamFunc) Send(message string) error {
	return f(message)
}

// subscription represents a subscriber's subscription.
type subscription struct {
	id     string
	stream Stream
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sendTimeout   time.Duration
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   500 * time.Millisecond,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// SequenceNo returns the number of messages broadcast so far.
func (m *Manager) SequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	return m.sequenceNo
}

// Send broadcasts message to all subscribers. It is fire-and-forget:
// a slow or failing subscriber never blocks the caller beyond the send
// timeout and never produces an error.
func (m *Manager) Send(message string) {
	m.sequenceNoMu.Lock()
	m.sequenceNo++
	m.sequenceNoMu.Unlock()

	m.mu.RLock()
	// Copy subscriptions to avoid holding lock during sends
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(message)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: subscriber %s failed: %v", s.id, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: subscriber %s timed out", s.id)
			}
		}(sub)
	}

	wg.Wait()
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
