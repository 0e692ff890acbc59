package broker

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"sync"

	"tms/pkg/envelope"

	"github.com/redis/go-redis/v9"
)

// Broker fans envelopes out across service instances over Redis pub/sub.
// The only traffic today is bus position events feeding the WebSocket hub,
// so this keeps just the publish/subscribe half of the channel protocol.
type Broker struct {
	rdb      *redis.Client
	ctx      context.Context
	cancel   context.CancelFunc
	handlers sync.Map
}

type HandlerFunc func(envelope.Envelope)

func New() *Broker {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatal("[BROKER] invalid redis url:", err)
	}

	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithCancel(context.Background())

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("[BROKER] redis ping failed:", err)
	}

	return &Broker{rdb: rdb, ctx: ctx, cancel: cancel}
}

func (b *Broker) Publish(channel string, env envelope.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	return b.rdb.Publish(b.ctx, channel, data).Err()
}

func (b *Broker) Subscribe(channels ...string) {
	sub := b.rdb.Subscribe(b.ctx, channels...)
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					continue
				}
				if fn, ok := b.handlers.Load(env.Action); ok {
					go fn.(HandlerFunc)(env)
				}
			}
		}
	}()
}

func (b *Broker) On(action string, fn HandlerFunc) {
	b.handlers.Store(action, fn)
}

func (b *Broker) Broadcast(channel, action, service string, data interface{}) error {
	env, err := envelope.NewEvent(action, service, data)
	if err != nil {
		return err
	}
	return b.Publish(channel, env)
}

func (b *Broker) Close() {
	b.cancel()
	b.rdb.Close()
}
