package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/yourorg/stocksim/internal/domain"
)

const (
	channelPrefix   = "prices."
	lastPricePrefix = "last_price:"
)

type PriceRepo struct {
	client    *redis.Client
	retainFor time.Duration
}

// NewPriceRepo keeps each symbol's last tick for retainFor after it is published.
func NewPriceRepo(client *redis.Client, retainFor time.Duration) *PriceRepo {
	if retainFor <= 0 {
		retainFor = 60 * time.Second
	}
	return &PriceRepo{client: client, retainFor: retainFor}
}

func (r *PriceRepo) Publish(ctx context.Context, tick domain.PriceTick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return err
	}
	pipe := r.client.Pipeline()
	pipe.Publish(ctx, channelPrefix+tick.Symbol, data)
	pipe.Set(ctx, lastPricePrefix+tick.Symbol, data, r.retainFor)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *PriceRepo) GetLastPrice(ctx context.Context, symbol string) (*domain.PriceTick, error) {
	val, err := r.client.Get(ctx, lastPricePrefix+symbol).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get last price: %w", err)
	}
	var tick domain.PriceTick
	if err := json.Unmarshal([]byte(val), &tick); err != nil {
		return nil, err
	}
	return &tick, nil
}

func (r *PriceRepo) Subscribe(ctx context.Context, symbol string) *redis.PubSub {
	return r.client.Subscribe(ctx, channelPrefix+symbol)
}

// Feed delivers the raw tick payloads published for symbol until ctx is
// done, then closes the returned channel.
func (r *PriceRepo) Feed(ctx context.Context, symbol string) <-chan []byte {
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		pubsub := r.Subscribe(ctx, symbol)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
