package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"epay/epay/utils/logging"
	"epay/epay/utils/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisChannelPrefix = "realtime:"

// RedisConfig holds Redis-specific configuration.
type RedisConfig struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Buffer       int
}

// RedisBus carries insert events over Redis pub/sub so every console
// instance sees inserts made by any writer. Filtering happens on the
// subscriber side.
type RedisBus struct {
	client *redis.Client
	buffer int
}

// NewRedisBus connects and pings the server.
func NewRedisBus(cfg RedisConfig) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisBusFromClient(client, cfg.Buffer), nil
}

func NewRedisBusFromClient(client *redis.Client, buffer int) *RedisBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &RedisBus{client: client, buffer: buffer}
}

func channelFor(table string) string {
	return redisChannelPrefix + table
}

func (r *RedisBus) Publish(ctx context.Context, event *InsertEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, channelFor(event.Table), data).Err()
}

// Subscribe returns once Redis has confirmed the subscription, so events
// published after it returns are never missed.
func (r *RedisBus) Subscribe(ctx context.Context, table string, filter Filter) (*Subscription, error) {
	ps := r.client.Subscribe(ctx, channelFor(table))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	eventCh := make(chan *InsertEvent, r.buffer)
	subID := uuid.New().String()

	go r.processMessages(subCtx, ps, table, filter, eventCh)

	return newSubscription(subID, table, filter, eventCh, func() {
		cancel()
		ps.Close()
	}), nil
}

// processMessages reads messages from the Redis pubsub and sends them to the event channel.
func (r *RedisBus) processMessages(ctx context.Context, ps *redis.PubSub, table string, filter Filter, eventCh chan<- *InsertEvent) {
	defer close(eventCh)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event InsertEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logging.ErrorLogger.Error("invalid bus payload",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}
			if !filter.Matches(&event) {
				continue
			}

			select {
			case eventCh <- &event:
			case <-ctx.Done():
				return
			default:
				metrics.BusEventsDropped.WithLabelValues(table).Inc()
				logging.AppLogger.Warn("dropped event for slow subscriber", zap.String("table", table))
			}
		}
	}
}

// Close closes the Redis client, which ends every subscription.
func (r *RedisBus) Close() error {
	return r.client.Close()
}
