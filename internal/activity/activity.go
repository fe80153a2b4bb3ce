// Package activity turns follow, like and comment events into notifications.
package activity

import (
	"context"
	"fmt"
	"time"

	"example.com/socialapi/internal/metrics"
	"example.com/socialapi/internal/models"
	"example.com/socialapi/internal/store"
	"github.com/google/uuid"
)

var verbs = map[string]string{
	models.EventFollow:  "started following you",
	models.EventLike:    "liked your post",
	models.EventComment: "commented on your post",
}

// NewEvent builds an event with a time-ordered id.
func NewEvent(typ, actorID, recipientID, targetID string, at time.Time) models.Event {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return models.Event{
		ID:          id.String(),
		Type:        typ,
		ActorID:     actorID,
		RecipientID: recipientID,
		TargetID:    targetID,
		Created:     at,
	}
}

// NotificationFor maps ev to the notification its recipient sees. It reports
// false for unknown event types and for actions an account takes on itself.
func NotificationFor(ev models.Event) (models.Notification, bool) {
	verb, ok := verbs[ev.Type]
	if !ok || ev.ActorID == ev.RecipientID {
		return models.Notification{}, false
	}
	return models.Notification{
		// Same id as the event so redelivery is a no-op.
		ID:          ev.ID,
		RecipientID: ev.RecipientID,
		ActorID:     ev.ActorID,
		Verb:        verb,
		TargetID:    ev.TargetID,
		CreatedAt:   ev.Created,
	}, true
}

// Handler stores notifications for incoming events.
type Handler struct {
	store store.NotificationStore
}

func NewHandler(st store.NotificationStore) *Handler {
	return &Handler{store: st}
}

// Handle stores the notification for ev, if any.
func (h *Handler) Handle(ctx context.Context, ev models.Event) error {
	n, ok := NotificationFor(ev)
	if !ok {
		return nil
	}
	if err := h.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// DirectPublisher applies events synchronously. Used when Kafka is disabled.
// It reports each event to rec the way the worker does.
type DirectPublisher struct {
	handler *Handler
	metrics metrics.Recorder
}

func NewDirectPublisher(h *Handler, rec metrics.Recorder) *DirectPublisher {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &DirectPublisher{handler: h, metrics: rec}
}

func (p *DirectPublisher) Publish(ctx context.Context, ev models.Event) error {
	err := p.handler.Handle(ctx, ev)
	p.metrics.RecordEventProcessed(ev.Type, err == nil)
	return err
}

func (p *DirectPublisher) Close() error { return nil }
