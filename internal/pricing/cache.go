package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
)

// TickStore is where observed prices are published and read back from.
// The redis price repo is the production implementation.
type TickStore interface {
	Publish(ctx context.Context, tick domain.PriceTick) error
	GetLastPrice(ctx context.Context, symbol string) (*domain.PriceTick, error)
}

type cachedOracle struct {
	source Oracle
	ticks  TickStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Cached serves prices younger than ttl from ticks and otherwise asks source,
// publishing every freshly observed price. A ttl of zero disables reads, so
// each call reaches the source and ticks is only used for fan-out.
func Cached(source Oracle, ticks TickStore, ttl time.Duration, logger *slog.Logger) Oracle {
	return &cachedOracle{source: source, ticks: ticks, ttl: ttl, now: time.Now, logger: logger}
}

func (o *cachedOracle) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if o.ttl > 0 {
		tick, err := o.ticks.GetLastPrice(ctx, symbol)
		if err != nil {
			o.logger.Warn("price cache read failed", "symbol", symbol, "err", err)
		} else if tick != nil && o.now().Sub(tick.Timestamp) < o.ttl {
			return tick.Price, nil
		}
	}

	price, err := o.source.GetPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	tick := domain.PriceTick{Symbol: symbol, Price: price, Timestamp: o.now().UTC()}
	if err := o.ticks.Publish(ctx, tick); err != nil {
		o.logger.Warn("price publish failed", "symbol", symbol, "err", err)
	}
	return price, nil
}

type streamOracle struct {
	ticks  TickStore
	maxAge time.Duration
	now    func() time.Time
}

// Stream answers from the last tick an ingestion client published. Ticks
// older than maxAge are treated as missing.
func Stream(ticks TickStore, maxAge time.Duration) Oracle {
	return &streamOracle{ticks: ticks, maxAge: maxAge, now: time.Now}
}

var errNoTick = errors.New("no recent tick")

func (o *streamOracle) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	tick, err := o.ticks.GetLastPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, domain.PriceUnavailable(symbol, err)
	}
	if tick == nil {
		return decimal.Zero, domain.PriceUnavailable(symbol, errNoTick)
	}
	if o.maxAge > 0 && o.now().Sub(tick.Timestamp) > o.maxAge {
		return decimal.Zero, domain.PriceUnavailable(symbol, fmt.Errorf("%w: last at %s", errNoTick, tick.Timestamp.Format(time.RFC3339)))
	}
	return tick.Price, nil
}
