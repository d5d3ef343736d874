package reminder

import (
	"context"
	"io"
	"time"

	"github.com/gorilla/feeds"
	"github.com/pkg/errors"
)

// FeedLink is the base link of the reminder feed.
const FeedLink = "urn:parksense:reminders"

// Feed builds an Atom-ready feed of the pending reminders, one entry per
// reminder in trigger order.
func (s *Service) Feed(ctx context.Context) (*feeds.Feed, error) {
	reminders, err := s.Upcoming(ctx)
	if err != nil {
		return nil, err
	}

	feed := &feeds.Feed{
		Title:       "Parking reminders",
		Link:        &feeds.Link{Href: FeedLink},
		Description: "Upcoming parking reminders",
		Created:     s.now(),
	}
	for _, r := range reminders {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          FeedLink + ":" + r.ID,
			Title:       titleOf(r),
			Link:        &feeds.Link{Href: FeedLink + ":" + r.SessionID},
			Description: r.Message,
			Created:     r.TriggerAt,
			Updated:     r.CreatedAt,
		})
	}
	return feed, nil
}

// WriteAtom writes the pending reminders as an Atom document.
func (s *Service) WriteAtom(ctx context.Context, w io.Writer) error {
	feed, err := s.Feed(ctx)
	if err != nil {
		return err
	}
	return errors.Wrap(feed.WriteAtom(w), "failed to write atom feed")
}

func titleOf(r *Reminder) string {
	at := r.TriggerAt.Format(time.Kitchen)
	if r.Type == TypeExpiry {
		return "Move the vehicle at " + at
	}
	return "Parking reminder at " + at
}
