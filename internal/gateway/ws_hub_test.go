package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourorg/stocksim/internal/domain"
	"github.com/yourorg/stocksim/internal/repository/memory"
)

func TestHubDeliversSubscribedTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prices := memory.NewPriceRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(prices, logger)
	go hub.Run(ctx)

	srv := httptest.NewServer(ServeWS(hub, logger))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(wsMessage{Action: "subscribe", Symbols: []string{" aapl "}}))

	// The subscription is registered asynchronously, so keep publishing
	// until the first tick arrives.
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = prices.Publish(ctx, domain.PriceTick{Symbol: "MSFT", Price: decimal.NewFromInt(1), Timestamp: time.Now()})
				_ = prices.Publish(ctx, domain.PriceTick{Symbol: "AAPL", Price: decimal.NewFromInt(190), Timestamp: time.Now()})
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var tick domain.PriceTick
	require.NoError(t, json.Unmarshal(data, &tick))
	assert.Equal(t, "AAPL", tick.Symbol)
	assert.True(t, tick.Price.Equal(decimal.NewFromInt(190)))
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "005930", normalizeSymbol(" 005930 "))
	assert.Equal(t, "TSLA", normalizeSymbol("tsla"))
	assert.Equal(t, "", normalizeSymbol("   "))
}
