package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/yourorg/stocksim/internal/domain"
)

// PriceRepo keeps the last tick per symbol and fans published ticks out to
// feeds. It stands in for the redis price repo when no redis is configured.
type PriceRepo struct {
	mu    sync.RWMutex
	last  map[string]domain.PriceTick
	feeds map[string]map[chan []byte]struct{}
}

func NewPriceRepo() *PriceRepo {
	return &PriceRepo{
		last:  make(map[string]domain.PriceTick),
		feeds: make(map[string]map[chan []byte]struct{}),
	}
}

func (r *PriceRepo) Publish(ctx context.Context, tick domain.PriceTick) error {
	data, err := json.Marshal(tick)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[tick.Symbol] = tick
	for ch := range r.feeds[tick.Symbol] {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

func (r *PriceRepo) GetLastPrice(ctx context.Context, symbol string) (*domain.PriceTick, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tick, ok := r.last[symbol]
	if !ok {
		return nil, nil
	}
	return &tick, nil
}

func (r *PriceRepo) Feed(ctx context.Context, symbol string) <-chan []byte {
	ch := make(chan []byte, 16)
	r.mu.Lock()
	if r.feeds[symbol] == nil {
		r.feeds[symbol] = make(map[chan []byte]struct{})
	}
	r.feeds[symbol][ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.feeds[symbol], ch)
		if len(r.feeds[symbol]) == 0 {
			delete(r.feeds, symbol)
		}
		close(ch)
		r.mu.Unlock()
	}()
	return ch
}
