// Package pricing resolves the current price of a symbol. Every Oracle
// failure, including a timeout, is reported as domain.ErrPriceUnavailable.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
)

type Oracle interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type OracleFunc func(ctx context.Context, symbol string) (decimal.Decimal, error)

func (f OracleFunc) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	return f(ctx, symbol)
}

type timeoutOracle struct {
	next    Oracle
	timeout time.Duration
}

// WithTimeout bounds every call to next by timeout and normalises failures
// to domain.ErrPriceUnavailable. A non-positive price is also a failure.
func WithTimeout(next Oracle, timeout time.Duration) Oracle {
	return &timeoutOracle{next: next, timeout: timeout}
}

func (o *timeoutOracle) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	type result struct {
		price decimal.Decimal
		err   error
	}
	done := make(chan result, 1)
	go func() {
		p, err := o.next.GetPrice(ctx, symbol)
		done <- result{p, err}
	}()

	select {
	case <-ctx.Done():
		return decimal.Zero, domain.PriceUnavailable(symbol, ctx.Err())
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, domain.ErrPriceUnavailable) {
				return decimal.Zero, r.err
			}
			return decimal.Zero, domain.PriceUnavailable(symbol, r.err)
		}
		if !r.price.IsPositive() {
			return decimal.Zero, domain.PriceUnavailable(symbol, fmt.Errorf("non-positive price %s", r.price))
		}
		return r.price, nil
	}
}
