package reminder

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// ChannelSender delivers reminders for a single channel.
type ChannelSender interface {
	Send(ctx context.Context, reminder *Reminder) error
	Name() string
}

// NotificationDispatcher routes reminders to the sender registered for
// each channel. It implements Notifier.
type NotificationDispatcher struct {
	channels map[Channel]ChannelSender
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewNotificationDispatcher creates a new notification dispatcher.
func NewNotificationDispatcher(logger *slog.Logger) *NotificationDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationDispatcher{
		channels: make(map[Channel]ChannelSender),
		logger:   logger,
	}
}

// Register registers a channel sender.
func (d *NotificationDispatcher) Register(channel Channel, sender ChannelSender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.channels[channel] = sender
	d.logger.Debug("registered notification channel", "channel", channel, "sender", sender.Name())
}

// Send delivers a reminder through the channel.
func (d *NotificationDispatcher) Send(ctx context.Context, channel Channel, reminder *Reminder) error {
	d.mu.RLock()
	sender, ok := d.channels[channel]
	d.mu.RUnlock()

	if !ok {
		return errors.Errorf("channel not registered: %s", channel)
	}
	return sender.Send(ctx, reminder)
}

// Channels lists registered channels.
func (d *NotificationDispatcher) Channels() []Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()

	channels := make([]Channel, 0, len(d.channels))
	for c := range d.channels {
		channels = append(channels, c)
	}
	return channels
}

var _ Notifier = (*NotificationDispatcher)(nil)

// LogSender writes reminders to a structured logger.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log sender; nil uses the default logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Name() string { return string(ChannelLog) }

func (s *LogSender) Send(ctx context.Context, r *Reminder) error {
	s.logger.InfoContext(ctx, r.Message,
		"reminder_id", r.ID,
		"session_id", r.SessionID,
		"type", r.Type,
		"reason", r.Reason,
		"expires_at", r.ExpiresAt,
	)
	return nil
}

// TerminalSender prints reminders to a writer, colored by type.
type TerminalSender struct {
	mu      sync.Mutex
	w       io.Writer
	warning *color.Color
	expiry  *color.Color
}

// NewTerminalSender creates a terminal sender writing to w.
func NewTerminalSender(w io.Writer) *TerminalSender {
	return &TerminalSender{
		w:       w,
		warning: color.New(color.FgYellow, color.Bold),
		expiry:  color.New(color.FgRed, color.Bold),
	}
}

func (s *TerminalSender) Name() string { return string(ChannelTerminal) }

func (s *TerminalSender) Send(ctx context.Context, r *Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := s.warning
	label := "REMINDER"
	if r.Type == TypeExpiry {
		c = s.expiry
		label = "MOVE NOW"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := c.Fprintf(s.w, "[%s] ", label); err != nil {
		return errors.Wrap(err, "failed to write reminder")
	}
	if _, err := io.WriteString(s.w, r.Message+"\n"); err != nil {
		return errors.Wrap(err, "failed to write reminder")
	}
	return nil
}
