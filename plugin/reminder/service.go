// Package reminder schedules notifications for a parking session from a
// timer suggestion: a warning shortly before the session must end, and a
// final notice when it ends.
package reminder

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/parksense/plugin/parking"
)

// ReminderType defines the type of reminder.
type ReminderType string

const (
	TypeWarning ReminderType = "warning"
	TypeExpiry  ReminderType = "expiry"
)

// ReminderStatus defines the status of a reminder.
type ReminderStatus string

const (
	StatusPending   ReminderStatus = "pending"
	StatusSent      ReminderStatus = "sent"
	StatusCancelled ReminderStatus = "cancelled"
	StatusFailed    ReminderStatus = "failed"
)

// Channel names a notification channel.
type Channel string

const (
	ChannelLog      Channel = "log"
	ChannelTerminal Channel = "terminal"
)

// Reminder is one scheduled notification for a parking session.
type Reminder struct {
	ID        string              `json:"id"`
	SessionID string              `json:"session_id"`
	Type      ReminderType        `json:"type"`
	TriggerAt time.Time           `json:"trigger_at"`
	ExpiresAt time.Time           `json:"expires_at"`
	Reason    parking.TimerReason `json:"reason"`
	Message   string              `json:"message"`
	Channels  []Channel           `json:"channels"`
	Status    ReminderStatus      `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	SentAt    *time.Time          `json:"sent_at,omitempty"`
	Failure   string              `json:"failure,omitempty"`
}

// ReminderStore defines the storage interface for reminders.
type ReminderStore interface {
	Create(ctx context.Context, reminder *Reminder) error
	Get(ctx context.Context, id string) (*Reminder, error)
	GetBySession(ctx context.Context, sessionID string) ([]*Reminder, error)
	GetDueReminders(ctx context.Context, before time.Time) ([]*Reminder, error)
	List(ctx context.Context, status ReminderStatus) ([]*Reminder, error)
	Update(ctx context.Context, reminder *Reminder) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

// Notifier delivers a reminder through one channel.
type Notifier interface {
	Send(ctx context.Context, channel Channel, reminder *Reminder) error
}

// Service creates and dispatches parking reminders.
type Service struct {
	store    ReminderStore
	notifier Notifier
	now      func() time.Time

	mu       sync.Mutex
	channels []Channel
}

// NewService creates a reminder service reading the wall clock.
func NewService(store ReminderStore, notifier Notifier) *Service {
	return NewServiceWithClock(store, notifier, time.Now)
}

// NewServiceWithClock creates a reminder service reading time from now.
func NewServiceWithClock(store ReminderStore, notifier Notifier, now func() time.Time) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		now:      now,
		channels: []Channel{ChannelLog},
	}
}

// SetDefaultChannels sets the channels new reminders are sent through.
func (s *Service) SetDefaultChannels(channels []Channel) {
	if len(channels) == 0 {
		return
	}
	s.mu.Lock()
	s.channels = append([]Channel(nil), channels...)
	s.mu.Unlock()
}

// Schedule creates the reminders for a session from a timer suggestion. The
// warning is skipped when it would fire at the same instant as the expiry.
// An empty sessionID gets a generated one.
func (s *Service) Schedule(ctx context.Context, sessionID string, suggestion *parking.TimerSuggestion) ([]*Reminder, error) {
	if suggestion == nil {
		return nil, errors.New("no timer to schedule")
	}
	now := s.now()
	if !suggestion.ExpiresAt.After(now) {
		return nil, errors.Errorf("session already ended at %s", suggestion.ExpiresAt.Format(time.RFC3339))
	}
	if sessionID == "" {
		sessionID = generateID()
	}

	s.mu.Lock()
	channels := append([]Channel(nil), s.channels...)
	s.mu.Unlock()

	newReminder := func(typ ReminderType, at time.Time) *Reminder {
		return &Reminder{
			ID:        generateID(),
			SessionID: sessionID,
			Type:      typ,
			TriggerAt: at,
			ExpiresAt: suggestion.ExpiresAt,
			Reason:    suggestion.Reason,
			Message:   message(typ, suggestion),
			Channels:  channels,
			Status:    StatusPending,
			CreatedAt: now,
		}
	}

	var reminders []*Reminder
	if suggestion.WarnAt.Before(suggestion.ExpiresAt) {
		reminders = append(reminders, newReminder(TypeWarning, suggestion.WarnAt))
	}
	reminders = append(reminders, newReminder(TypeExpiry, suggestion.ExpiresAt))

	for _, r := range reminders {
		if err := s.store.Create(ctx, r); err != nil {
			return nil, errors.Wrap(err, "failed to create reminder")
		}
	}
	return reminders, nil
}

func message(typ ReminderType, suggestion *parking.TimerSuggestion) string {
	clock := suggestion.ExpiresAt.Format("15:04")
	rule := parking.Describe(suggestion.Rule.Kind)

	switch {
	case typ == TypeExpiry && suggestion.Reason == parking.ReasonTimeLimit:
		return fmt.Sprintf("Parking time is up (%s). Move the vehicle now.", rule)
	case typ == TypeExpiry:
		return fmt.Sprintf("%s is now in force. Move the vehicle now.", rule)
	case suggestion.Reason == parking.ReasonTimeLimit:
		return fmt.Sprintf("Parking time ends at %s (%s).", clock, rule)
	default:
		return fmt.Sprintf("%s starts at %s.", rule, clock)
	}
}

// Cancel cancels a pending reminder.
func (s *Service) Cancel(ctx context.Context, id string) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if r.Status != StatusPending {
		return errors.Errorf("cannot cancel reminder with status: %s", r.Status)
	}
	r.Status = StatusCancelled
	return s.store.Update(ctx, r)
}

// CancelSession cancels every pending reminder of a session and returns how
// many were cancelled.
func (s *Service) CancelSession(ctx context.Context, sessionID string) (int, error) {
	reminders, err := s.store.GetBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, r := range reminders {
		if r.Status != StatusPending {
			continue
		}
		r.Status = StatusCancelled
		if err := s.store.Update(ctx, r); err != nil {
			return cancelled, errors.Wrapf(err, "failed to cancel reminder %s", r.ID)
		}
		cancelled++
	}
	return cancelled, nil
}

// ProcessDueReminders sends every pending reminder whose trigger time has come.
func (s *Service) ProcessDueReminders(ctx context.Context) (int, error) {
	now := s.now()
	reminders, err := s.store.GetDueReminders(ctx, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get due reminders")
	}

	processed := 0
	for _, r := range reminders {
		if err := s.send(ctx, r); err != nil {
			_ = s.store.MarkFailed(ctx, r.ID, err.Error())
			continue
		}
		if err := s.store.MarkSent(ctx, r.ID, now); err != nil {
			continue
		}
		processed++
	}
	return processed, nil
}

// send delivers r through all its channels and returns the last failure.
func (s *Service) send(ctx context.Context, r *Reminder) error {
	if s.notifier == nil {
		return errors.New("notifier not configured")
	}

	var lastErr error
	for _, channel := range r.Channels {
		if err := s.notifier.Send(ctx, channel, r); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Upcoming lists pending reminders in trigger order.
func (s *Service) Upcoming(ctx context.Context) ([]*Reminder, error) {
	reminders, err := s.store.List(ctx, StatusPending)
	if err != nil {
		return nil, err
	}
	sort.Slice(reminders, func(i, j int) bool {
		if reminders[i].TriggerAt.Equal(reminders[j].TriggerAt) {
			return reminders[i].ID < reminders[j].ID
		}
		return reminders[i].TriggerAt.Before(reminders[j].TriggerAt)
	})
	return reminders, nil
}

// generateID creates a unique reminder ID.
func generateID() string {
	return uuid.New().String()[:12]
}
