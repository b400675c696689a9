package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventType names a messaging mutation published to integrating services.
type EventType string

const (
	EventThreadCreated    EventType = "thread.created"
	EventParticipantAdded EventType = "thread.participant_added"
	EventMessageCreated   EventType = "message.created"
	EventMessageRead      EventType = "message.read"
	EventThreadRead       EventType = "thread.read"
	EventNotificationRead EventType = "notification.read"
)

// MessagingEvent is the JSON payload emitted after every committed mutation.
type MessagingEvent struct {
	Source     string    `json:"source"`
	Type       EventType `json:"type"`
	ThreadID   string    `json:"thread_id"`
	DossierRef string    `json:"dossier_ref,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher forwards messaging events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, event MessagingEvent) error
}

type brokerPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	logger       zerolog.Logger
}

// NewEventPublisher publishes on Redis "<base>:messaging" and NATS "<base>.messaging".
// Either client may be nil; with both nil events are dropped.
func NewEventPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) EventPublisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":messaging"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".messaging"
	}

	return &brokerPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "messaging_events").Logger(),
	}
}

func (p *brokerPublisher) Publish(ctx context.Context, event MessagingEvent) error {
	if event.Source == "" {
		event.Source = p.nodeID
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	// Brokers are independent; a failure on one does not skip the other.
	var errs []error
	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject, payload); err != nil {
			errs = append(errs, fmt.Errorf("nats publish: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}

	p.logger.Debug().Str("event", string(event.Type)).Str("thread_id", event.ThreadID).Msg("messaging event published")
	return nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, MessagingEvent) error { return nil }

// NopEventPublisher discards every event.
func NopEventPublisher() EventPublisher {
	return nopPublisher{}
}
