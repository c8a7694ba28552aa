package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/alihaidary/souqna-backend/pkg/logger"
	"github.com/google/uuid"
)

// EventType labels realtime events broadcast to connected clients.
type EventType string

const (
	EventBidPlaced     EventType = "bid_placed"
	EventOutbid        EventType = "outbid"
	EventAuctionClosed EventType = "auction_closed"
	EventOrderUpdated  EventType = "order_updated"
)

// Event is the wire envelope fanned out over the realtime topic.
type Event struct {
	Type       EventType       `json:"type"`
	ListingID  *uuid.UUID      `json:"listing_id,omitempty"`
	OrderID    *uuid.UUID      `json:"order_id,omitempty"`
	UserID     *uuid.UUID      `json:"user_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Broadcaster fans out realtime events. Implementations must be safe for
// concurrent use; delivery is best effort.
type Broadcaster interface {
	Broadcast(ctx context.Context, event Event)
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) *gcppubsub.PublishResult
}

type pubsubBroadcaster struct {
	pub  publisher
	logg *logger.Logger
}

// NewPubSubBroadcaster builds a broadcaster backed by a Pub/Sub publisher.
func NewPubSubBroadcaster(pub *gcppubsub.Publisher, logg *logger.Logger) (Broadcaster, error) {
	if pub == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &pubsubBroadcaster{pub: pub, logg: logg}, nil
}

// Broadcast publishes the event without waiting for server acknowledgement.
// Failures are logged and never surfaced to the caller.
func (b *pubsubBroadcaster) Broadcast(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		b.logg.Error(ctx, "marshal realtime event", err)
		return
	}
	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event_type": string(event.Type),
		},
	}
	result := b.pub.Publish(ctx, msg)
	go func(ctx context.Context) {
		if _, err := result.Get(ctx); err != nil {
			b.logg.Error(ctx, "publish realtime event", err)
		}
	}(context.WithoutCancel(ctx))
}

// NopBroadcaster discards all events. Useful for workers that do not fan out.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, Event) {}
