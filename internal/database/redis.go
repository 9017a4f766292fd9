package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients holds two connections: Queue for token storage and the
// review-notify job list, PubSub for per-student event fanout. PubSub gets its
// own connection because subscriptions block it for regular commands.
type RedisClients struct {
	Queue  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	queueClient := redis.NewClient(opt)
	if err := queueClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis (queue): %w", err)
	}

	pubsubOpt := *opt
	pubsubClient := redis.NewClient(&pubsubOpt)
	if err := pubsubClient.Ping(ctx).Err(); err != nil {
		queueClient.Close()
		return nil, fmt.Errorf("failed to ping Redis (pubsub): %w", err)
	}

	return &RedisClients{
		Queue:  queueClient,
		PubSub: pubsubClient,
	}, nil
}

func (r *RedisClients) Close() {
	r.Queue.Close()
	r.PubSub.Close()
}

// StudentEventsChannel is the pub/sub channel carrying serialized WS events
// for one student. Any instance (or operator tooling) may publish to it; the
// instance holding the student's live connection relays it.
func StudentEventsChannel(studentID string) string {
	return "student_events:" + studentID
}

// ReviewNotifyQueue is the list the delegated review policy pushes outbound
// notify jobs onto.
const ReviewNotifyQueue = "queue:review-notify"
