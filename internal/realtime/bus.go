package realtime

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

const redisRetryDelay = time.Second

// Notifier publishes topic invalidations and hands out subscriptions.
type Notifier interface {
	Publish(ctx context.Context, topics ...string)
	Subscribe(topics ...string) *Subscription
}

// Bus fans topic signals out to local subscribers and to peer nodes via Redis pub/sub and NATS.
type Bus struct {
	hub          *Hub
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	nodeID       string
	retryDelay   time.Duration
	logger       zerolog.Logger
}

type busEvent struct {
	Source string    `json:"source"`
	Topics []string  `json:"topics"`
	SentAt time.Time `json:"sent_at"`
}

// NewBus constructs a bus. Redis and NATS are optional; without them signals stay local.
func NewBus(hub *Hub, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) *Bus {
	redisChannel := ""
	natsSubject := ""
	if channelBase != "" {
		redisChannel = channelBase + ":realtime"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".realtime"
	}

	return &Bus{
		hub:          hub,
		redis:        redisClient,
		redisChannel: redisChannel,
		nats:         natsConn,
		natsSubject:  natsSubject,
		nodeID:       uuid.NewString(),
		retryDelay:   redisRetryDelay,
		logger:       logger.With().Str("component", "realtime_bus").Logger(),
	}
}

// NodeID identifies this process on the bus.
func (b *Bus) NodeID() string {
	return b.nodeID
}

// Start consumes peer signals until ctx is cancelled.
func (b *Bus) Start(ctx context.Context) {
	if b.redis != nil && b.redisChannel != "" {
		go b.consumeRedis(ctx)
	}
	if b.nats != nil && b.natsSubject != "" {
		go b.consumeNATS(ctx)
	}
}

// Subscribe registers a local subscription.
func (b *Bus) Subscribe(topics ...string) *Subscription {
	return b.hub.Subscribe(topics...)
}

// Publish signals local subscribers and forwards the topics to peers. Delivery errors are logged.
func (b *Bus) Publish(ctx context.Context, topics ...string) {
	if len(topics) == 0 {
		return
	}
	b.hub.Notify(topics...)

	if err := b.forward(ctx, topics); err != nil {
		b.logger.Warn().Err(err).Strs("topics", topics).Msg("failed to forward realtime signal")
	}
}

func (b *Bus) forward(ctx context.Context, topics []string) error {
	if (b.redis == nil || b.redisChannel == "") && (b.nats == nil || b.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(busEvent{Source: b.nodeID, Topics: topics, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	var errs []error
	if b.redis != nil && b.redisChannel != "" {
		if err := b.redis.Publish(ctx, b.redisChannel, payload).Err(); err != nil {
			errs = append(errs, fmt.Errorf("redis publish: %w", err))
		}
	}
	if b.nats != nil && b.natsSubject != "" {
		if err := b.nats.Publish(b.natsSubject, payload); err != nil {
			errs = append(errs, fmt.Errorf("nats publish: %w", err))
		}
	}
	return errors.Join(errs...)
}

// consumeRedis keeps receiving across connection failures; the pubsub
// reconnects and resubscribes on the next receive.
func (b *Bus) consumeRedis(ctx context.Context) {
	pubsub := b.redis.Subscribe(ctx, b.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
				return
			}
			b.logger.Warn().Err(err).Dur("retry_in", b.retryDelay).Msg("realtime redis receive failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.retryDelay):
			}
			continue
		}
		b.handleEvent([]byte(msg.Payload))
	}
}

func (b *Bus) consumeNATS(ctx context.Context) {
	sub, err := b.nats.Subscribe(b.natsSubject, func(msg *nats.Msg) {
		b.handleEvent(msg.Data)
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			b.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (b *Bus) handleEvent(data []byte) {
	var event busEvent
	if err := json.Unmarshal(data, &event); err != nil {
		b.logger.Warn().Err(err).Msg("invalid realtime event")
		return
	}
	if event.Source == b.nodeID {
		return
	}
	b.hub.Notify(event.Topics...)
}
