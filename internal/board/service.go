package board

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/nanca/festival-orders/internal/orders"
	"github.com/nanca/festival-orders/internal/redisx"
)

// Service keeps the pickup boards current: one Redis ZSet per stall,
// scored by the time the kitchen marked the ticket ready. Tickets appear
// when ready and disappear once collected or handed over.
type Service struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleStatusChanged is the consumer handler for ticket.status_changed.
func (s *Service) HandleStatusChanged(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventTicketStatusChanged {
		return nil
	}

	// at-least-once delivery: dedup by event id
	dkey := fmt.Sprintf(redisx.KeyDedup, "board", env.EventID)
	ok, err := s.Redis.SetNX(ctx, dkey, "1", redisx.TTLDedup).Result()
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	var p orders.TicketStatusChangedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return err
	}

	// the cached ticket is stale now; drop it so polls re-read the store
	_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyTicket, p.TicketID)).Err()

	bkey := fmt.Sprintf(redisx.KeyReadyBoard, p.StallID)
	switch {
	case p.Status == orders.StatusReady && !p.GetStatus:
		return s.Redis.ZAdd(ctx, bkey, redis.Z{
			Score:  float64(p.ChangedAt.Unix()),
			Member: p.TicketID,
		}).Err()
	case p.Status == orders.StatusCollected || p.GetStatus:
		return s.Redis.ZRem(ctx, bkey, p.TicketID).Err()
	}
	return nil
}

// Board lists the ticket ids waiting at a stall's pickup counter, oldest
// ready first.
func (s *Service) Board(ctx context.Context, stallID string) ([]string, error) {
	bkey := fmt.Sprintf(redisx.KeyReadyBoard, stallID)
	return s.Redis.ZRange(ctx, bkey, 0, -1).Result()
}
