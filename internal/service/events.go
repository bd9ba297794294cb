package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-annotation-api/internal/observability"
)

// Event types published after a batch operation commits.
const (
	EventReconciled  = "annotation.reconciled"
	EventImported    = "catalog.imported"
	EventDistributed = "assignments.distributed"
)

// Event is the envelope sent to the broker.
type Event struct {
	ID            string      `json:"id"`
	Type          string      `json:"type"`
	Actor         string      `json:"actor"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	OccurredAt    time.Time   `json:"occurred_at"`
	Payload       interface{} `json:"payload"`
}

// EventPublisher fans batch results out to other services.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, actor Actor, payload interface{}) error
}

type brokerPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	now          func() time.Time
}

// NewEventPublisher publishes to a redis channel and NATS subject derived from
// subject. Either client may be nil; with both nil every publish is a no-op.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, subject string) EventPublisher {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	return &brokerPublisher{
		redis:        redisClient,
		redisChannel: strings.ReplaceAll(subject, ".", ":"),
		nats:         natsConn,
		natsSubject:  subject,
		now:          time.Now,
	}
}

func (p *brokerPublisher) Publish(ctx context.Context, eventType string, actor Actor, payload interface{}) error {
	if p.redis == nil && p.nats == nil {
		return nil
	}

	event := Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Actor:         actor.Email,
		CorrelationID: observability.CorrelationID(ctx),
		OccurredAt:    p.now().UTC(),
		Payload:       payload,
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, body).Err(); err != nil {
			return err
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject+"."+eventType, body); err != nil {
			return err
		}
	}

	return nil
}

// publishAfterCommit publishes and only logs failures; the batch it reports on
// has already been committed.
func publishAfterCommit(ctx context.Context, publisher EventPublisher, logger zerolog.Logger, eventType string, actor Actor, payload interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, eventType, actor, payload); err != nil {
		logger.Warn().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}
