package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// EventType names a live notification
type EventType string

const (
	EventImageLiked   EventType = "image_liked"
	EventImageDeleted EventType = "image_deleted"
)

const notifyTimeout = 5 * time.Second

// Event is delivered to the owner of an image when someone else acts on it
type Event struct {
	Type       EventType `json:"type"`
	ImageID    string    `json:"image_id"`
	ImageTitle string    `json:"image_title,omitempty"`
	ActorID    string    `json:"actor_id"`
	Timestamp  int64     `json:"timestamp"`
}

// Notifier delivers events to a user
type Notifier interface {
	Notify(ctx context.Context, recipientID string, event Event) error
}

// Notifiers fans an event out to every notifier and joins their errors
type Notifiers []Notifier

func (n Notifiers) Notify(ctx context.Context, recipientID string, event Event) error {
	var errs []error
	for _, notifier := range n {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, recipientID, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// notify delivers best-effort: failures are logged and never reach the caller
func notify(ctx context.Context, notifier Notifier, recipientID string, event Event) {
	if notifier == nil || recipientID == "" || recipientID == event.ActorID {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := notifier.Notify(ctx, recipientID, event); err != nil {
		log.Warn().
			Err(err).
			Str("user_id", recipientID).
			Str("image_id", event.ImageID).
			Str("event", string(event.Type)).
			Msg("Failed to deliver notification")
	}
}
