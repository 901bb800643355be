package notify

import (
	"sync"
	"time"

	"github.com/berfenger/homedash/internal/core/domain"

	"github.com/asynkron/protoactor-go/eventstream"
)

// Store keeps the most recent notifications in a fixed capacity ring.
type Store struct {
	mu      sync.RWMutex
	entries []domain.Notification
	maxSize int
	nextID  int64
	sub     *eventstream.Subscription
}

func NewStore(maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Store{
		entries: make([]domain.Notification, 0, maxSize),
		maxSize: maxSize,
	}
}

// Attach records every NotificationEvent published on the stream.
func (s *Store) Attach(es *eventstream.EventStream) {
	s.sub = es.Subscribe(func(evt any) {
		if n, ok := evt.(domain.NotificationEvent); ok {
			s.Add(n.Notification)
		}
	})
}

func (s *Store) Detach(es *eventstream.EventStream) {
	if s.sub != nil {
		es.Unsubscribe(s.sub)
		s.sub = nil
	}
}

// Add stores a copy of n with a fresh id and returns it.
func (s *Store) Add(n domain.Notification) domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	n.Id = s.nextID
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}
	if len(s.entries) >= s.maxSize {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, n)
	return n
}

// GetAll returns all notifications, newest first.
func (s *Store) GetAll() []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Notification, len(s.entries))
	for i, e := range s.entries {
		result[len(s.entries)-1-i] = e
	}
	return result
}

// GetSince returns notifications newer than lastID, newest first.
func (s *Store) GetSince(lastID int64) []domain.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []domain.Notification{}
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Id <= lastID {
			break
		}
		result = append(result, s.entries[i])
	}
	return result
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) LastID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextID
}
