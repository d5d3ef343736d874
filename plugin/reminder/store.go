package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned for unknown reminder IDs.
var ErrNotFound = errors.New("reminder not found")

// MemoryStore is an in-memory ReminderStore. It hands out copies so callers
// never share state with the store.
type MemoryStore struct {
	reminders map[string]*Reminder
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory reminder store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reminders: make(map[string]*Reminder),
	}
}

func clone(r *Reminder) *Reminder {
	c := *r
	c.Channels = append([]Channel(nil), r.Channels...)
	if r.SentAt != nil {
		sent := *r.SentAt
		c.SentAt = &sent
	}
	return &c
}

// Create stores a new reminder.
func (s *MemoryStore) Create(_ context.Context, reminder *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reminders[reminder.ID]; exists {
		return errors.Errorf("reminder already exists: %s", reminder.ID)
	}
	s.reminders[reminder.ID] = clone(reminder)
	return nil
}

// Get retrieves a reminder by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Reminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reminders[id]
	if !ok {
		return nil, errors.Wrap(ErrNotFound, id)
	}
	return clone(r), nil
}

func (s *MemoryStore) filter(keep func(*Reminder) bool) []*Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Reminder
	for _, r := range s.reminders {
		if keep(r) {
			result = append(result, clone(r))
		}
	}
	return result
}

// GetBySession retrieves all reminders of a parking session.
func (s *MemoryStore) GetBySession(_ context.Context, sessionID string) ([]*Reminder, error) {
	return s.filter(func(r *Reminder) bool { return r.SessionID == sessionID }), nil
}

// GetDueReminders retrieves all pending reminders due at or before the given time.
func (s *MemoryStore) GetDueReminders(_ context.Context, before time.Time) ([]*Reminder, error) {
	return s.filter(func(r *Reminder) bool {
		return r.Status == StatusPending && !r.TriggerAt.After(before)
	}), nil
}

// List retrieves reminders with the status, or all when status is empty.
func (s *MemoryStore) List(_ context.Context, status ReminderStatus) ([]*Reminder, error) {
	return s.filter(func(r *Reminder) bool { return status == "" || r.Status == status }), nil
}

// Update replaces an existing reminder.
func (s *MemoryStore) Update(_ context.Context, reminder *Reminder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reminders[reminder.ID]; !exists {
		return errors.Wrap(ErrNotFound, reminder.ID)
	}
	s.reminders[reminder.ID] = clone(reminder)
	return nil
}

// MarkSent marks a reminder as sent at the instant.
func (s *MemoryStore) MarkSent(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reminders[id]
	if !ok {
		return errors.Wrap(ErrNotFound, id)
	}
	r.Status = StatusSent
	r.SentAt = &at
	return nil
}

// MarkFailed marks a reminder as failed.
func (s *MemoryStore) MarkFailed(_ context.Context, id string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reminders[id]
	if !ok {
		return errors.Wrap(ErrNotFound, id)
	}
	r.Status = StatusFailed
	r.Failure = reason
	return nil
}

var _ ReminderStore = (*MemoryStore)(nil)
