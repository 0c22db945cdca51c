package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"
)

// APNsPusher is the part of *apns2.Client used to send notifications
type APNsPusher interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// PushConfig holds the APNs token-auth settings
type PushConfig struct {
	KeyFile    string
	KeyID      string
	TeamID     string
	Topic      string
	Production bool
}

// PushNotifier sends events to the recipient's registered iOS device
type PushNotifier struct {
	client APNsPusher
	users  UserStore
	topic  string
}

// NewPushNotifier creates an APNs client using a .p8 signing key
func NewPushNotifier(cfg PushConfig, users UserStore) (*PushNotifier, error) {
	authKey, err := token.AuthKeyFromFile(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load APNs key: %w", err)
	}

	client := apns2.NewTokenClient(&token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	})
	if cfg.Production {
		client = client.Production()
	} else {
		client = client.Development()
	}

	return NewPushNotifierWithClient(client, cfg.Topic, users), nil
}

// NewPushNotifierWithClient creates a push notifier around an existing client
func NewPushNotifierWithClient(client APNsPusher, topic string, users UserStore) *PushNotifier {
	return &PushNotifier{client: client, users: users, topic: topic}
}

// Notify sends the event if the recipient registered a device token
func (p *PushNotifier) Notify(ctx context.Context, recipientID string, event Event) error {
	user, err := p.users.GetCredentialsByID(ctx, recipientID)
	if err != nil {
		return fmt.Errorf("failed to look up push token: %w", err)
	}
	if user.PushToken == nil || *user.PushToken == "" {
		return nil
	}

	notification := &apns2.Notification{
		DeviceToken: *user.PushToken,
		Topic:       p.topic,
		Payload:     buildPayload(event),
	}

	res, err := p.client.PushWithContext(ctx, notification)
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}
	if !res.Sent() {
		return fmt.Errorf("push notification rejected: %d %s", res.StatusCode, res.Reason)
	}

	log.Debug().
		Str("user_id", recipientID).
		Str("apns_id", res.ApnsID).
		Str("event", string(event.Type)).
		Msg("Push notification sent")
	return nil
}

func buildPayload(event Event) *payload.Payload {
	p := payload.NewPayload().
		Sound("default").
		Custom("type", string(event.Type)).
		Custom("image_id", event.ImageID)

	switch event.Type {
	case EventImageLiked:
		p.AlertTitle("New like").AlertBody(fmt.Sprintf("Someone liked %q", event.ImageTitle))
	case EventImageDeleted:
		p.AlertTitle("Image removed").AlertBody(fmt.Sprintf("%q was removed by an administrator", event.ImageTitle))
	}
	return p
}
