package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mni-microservices/project-service/internal/config"
	"github.com/mni-microservices/project-service/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	streamField    = "event"
	readBatchSize  = 16
	readBlock      = 2 * time.Second
	readErrBackoff = time.Second
	pendingRecheck = 30 * time.Second
)

// RedisStreamBus maps every topic onto a Redis stream. Subscriptions join a
// consumer group, so each service instance sees a share of the events and
// unacknowledged ones are redelivered.
//
// The saga topic is the exception: saga state lives in the memory of the
// instance that started it, so every instance reads that stream through a
// group of its own and sees every saga event.
type RedisStreamBus struct {
	client         *redis.Client
	group          string
	consumer       string
	maxLen         int64
	instanceTopics map[string]bool
	recheck        time.Duration

	mu      sync.Mutex
	cancels []context.CancelFunc
	closed  bool
	wg      sync.WaitGroup
}

func NewRedisStreamBus(client *redis.Client, cfg *config.EventsConfig) *RedisStreamBus {
	b := &RedisStreamBus{
		client:         client,
		group:          cfg.ConsumerGroup,
		consumer:       cfg.ConsumerName,
		maxLen:         cfg.StreamMaxLen,
		instanceTopics: make(map[string]bool),
		recheck:        pendingRecheck,
	}
	if cfg.SagaTopic != "" {
		b.instanceTopics[cfg.SagaTopic] = true
	}
	return b
}

// groupFor returns the consumer group used to read topic.
func (b *RedisStreamBus) groupFor(topic string) string {
	if b.instanceTopics[topic] {
		return b.group + "-" + b.consumer
	}
	return b.group
}

// DialRedisStreamBus connects to Redis and verifies the connection.
func DialRedisStreamBus(ctx context.Context, redisCfg *config.RedisConfig, eventsCfg *config.EventsConfig) (*RedisStreamBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisCfg.Addr,
		Password: redisCfg.Password,
		DB:       redisCfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", redisCfg.Addr, err)
	}
	return NewRedisStreamBus(client, eventsCfg), nil
}

func (b *RedisStreamBus) Publish(ctx context.Context, topic string, ev Event) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]interface{}{streamField: data},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}
	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	return nil
}

func (b *RedisStreamBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}

	group := b.groupFor(topic)
	err := b.client.XGroupCreateMkStream(ctx, topic, group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s on %s: %w", group, topic, err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	b.cancels = append(b.cancels, cancel)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.consume(loopCtx, topic, group, h)
	}()
	return nil
}

// consume first drains the messages left pending for this consumer, then
// reads new ones. Every recheck interval it goes back to the pending list so
// messages whose handler failed are retried without a restart.
func (b *RedisStreamBus) consume(ctx context.Context, topic, group string, h Handler) {
	log := logger.Component("redis-bus")
	start := "0"
	lastScan := time.Now()

	for ctx.Err() == nil {
		if start == ">" && time.Since(lastScan) >= b.recheck {
			start = "0"
		}
		if start == "0" {
			lastScan = time.Now()
		}
		pendingScan := start != ">"
		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: b.consumer,
			Streams:  []string{topic, start},
			Count:    readBatchSize,
			Block:    readBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			start = ">"
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Str("topic", topic).Msg("read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrBackoff):
			}
			continue
		}

		delivered := 0
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				delivered++
				b.handle(ctx, topic, group, msg, h)
				if pendingScan {
					start = msg.ID
				}
			}
		}
		if pendingScan && delivered < readBatchSize {
			start = ">"
		}
	}
}

func (b *RedisStreamBus) handle(ctx context.Context, topic, group string, msg redis.XMessage, h Handler) {
	log := logger.Component("redis-bus")

	raw, _ := msg.Values[streamField].(string)
	ev, err := Decode([]byte(raw))
	if err != nil {
		// Redelivering a message that cannot be decoded would never succeed.
		log.Error().Err(err).Str("topic", topic).Str("message_id", msg.ID).Msg("dropping undecodable event")
		b.ack(ctx, topic, group, msg.ID)
		return
	}

	if err := h(ctx, ev); err != nil {
		log.Error().Err(err).
			Str("topic", topic).
			Str("message_id", msg.ID).
			Str("type", string(ev.EventType())).
			Msg("handler failed, leaving message pending")
		return
	}
	b.ack(ctx, topic, group, msg.ID)
}

func (b *RedisStreamBus) ack(ctx context.Context, topic, group, id string) {
	if err := b.client.XAck(ctx, topic, group, id).Err(); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Str("message_id", id).Msg("[RedisBus] ack failed")
	}
}

// Close stops all consumers, waits for them and closes the Redis client.
func (b *RedisStreamBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, cancel := range b.cancels {
		cancel()
	}
	b.mu.Unlock()

	b.wg.Wait()
	return b.client.Close()
}
