package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	kafkax "github.com/DPOO-f-boada/go-fulfillment/internal/kafka"
	"github.com/DPOO-f-boada/go-fulfillment/internal/orders"
	"github.com/DPOO-f-boada/go-fulfillment/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Service applies external shipment events to order state. The order status
// machine stays the single authority: an event arriving out of order is
// dropped, not forced.
type Service struct {
	Store orders.Store
	Dedup redisx.Deduper
	Cache *redis.Client // optional, invalidates stale order snapshots
	Log   *zap.Logger
}

// HandleShipmentEvent is wired as the consumer handler for the shipment
// topic.
func (s *Service) HandleShipmentEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	to, ok := statusFor(env.EventType)
	if !ok {
		return nil // not a lifecycle event for us
	}

	if s.Dedup != nil && s.Dedup.Seen(ctx, env.EventID) {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.ShipmentEventPayload](env.Payload)
	if err != nil {
		return err
	}

	// Marked only after the transition resolved: marking first would let a
	// transient store failure swallow the redelivery.
	err = s.Store.Transition(ctx, p.OrderID, to, env.OccurredAt.UTC())
	switch {
	case err == nil:
		s.mark(ctx, env.EventID)
		if s.Cache != nil {
			_ = s.Cache.Del(ctx, fmt.Sprintf(redisx.KeyOrderSnapshot, p.OrderID)).Err()
		}
		s.logger().Info("order transitioned",
			zap.String("order_id", p.OrderID),
			zap.String("event", env.EventType),
			zap.String("to", string(to)))
		return nil
	case errors.Is(err, orders.ErrInvalidTransition):
		// Late or duplicate carrier event; the terminal guard already held.
		s.mark(ctx, env.EventID)
		s.logger().Warn("dropping illegal transition",
			zap.String("order_id", p.OrderID),
			zap.String("event", env.EventType),
			zap.Error(err))
		return nil
	case errors.Is(err, orders.ErrNotFound):
		s.mark(ctx, env.EventID)
		s.logger().Warn("shipment event for unknown order",
			zap.String("order_id", p.OrderID))
		return nil
	default:
		return err
	}
}

func (s *Service) mark(ctx context.Context, eventID string) {
	if s.Dedup != nil {
		s.Dedup.Mark(ctx, eventID)
	}
}

func statusFor(eventType string) (orders.Status, bool) {
	switch eventType {
	case orders.EventShipmentDispatched:
		return orders.StatusInTransit, true
	case orders.EventShipmentDelivered:
		return orders.StatusDelivered, true
	case orders.EventOrderCancelled:
		return orders.StatusCancelled, true
	default:
		return "", false
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
