package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/yourorg/stocksim/internal/domain"
)

const alpacaWSURL = "wss://stream.data.alpaca.markets/v2/iex"

// TickPublisher receives every trade tick read from the stream.
type TickPublisher interface {
	Publish(ctx context.Context, tick domain.PriceTick) error
}

// AlpacaClient streams trade ticks for a fixed symbol list and publishes them
// so that pricing.Stream can serve them as current prices.
type AlpacaClient struct {
	url       string
	apiKey    string
	apiSecret string
	symbols   []string
	ticks     TickPublisher
	logger    *slog.Logger
}

func NewAlpacaClient(key, secret string, symbols []string, ticks TickPublisher, logger *slog.Logger) *AlpacaClient {
	return &AlpacaClient{
		url:       alpacaWSURL,
		apiKey:    key,
		apiSecret: secret,
		symbols:   symbols,
		ticks:     ticks,
		logger:    logger,
	}
}

func (c *AlpacaClient) Run(ctx context.Context) {
	backoff := time.Second
	maxBackoff := 60 * time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		err := c.connect(ctx)
		if err == nil {
			backoff = time.Second
			continue
		}
		c.logger.Error("alpaca ws disconnected", "err", err, "retrying_in", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

type alpacaMsg struct {
	T  string          `json:"T"`
	S  string          `json:"S"`
	P  decimal.Decimal `json:"p"`
	Sz float64         `json:"s"`
	Ts string          `json:"t"`
}

func (c *AlpacaClient) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer func() {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	if _, _, err := conn.ReadMessage(); err != nil {
		return err
	}

	authMsg, _ := json.Marshal(map[string]string{
		"action": "auth",
		"key":    c.apiKey,
		"secret": c.apiSecret,
	})
	if err := conn.WriteMessage(websocket.TextMessage, authMsg); err != nil {
		return err
	}

	_, authResp, err := conn.ReadMessage()
	if err != nil {
		return err
	}
	var authMsgs []alpacaMsg
	if err := json.Unmarshal(authResp, &authMsgs); err != nil {
		return err
	}
	if len(authMsgs) == 0 || authMsgs[0].T != "success" {
		return fmt.Errorf("alpaca auth failed: %s", authResp)
	}

	subMsg, _ := json.Marshal(map[string]interface{}{
		"action": "subscribe",
		"trades": c.symbols,
	})
	if err := conn.WriteMessage(websocket.TextMessage, subMsg); err != nil {
		return err
	}

	if _, _, err := conn.ReadMessage(); err != nil {
		return err
	}

	c.logger.Info("alpaca ws connected and subscribed", "symbols", c.symbols)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		for _, tick := range parseTrades(data) {
			if err := c.ticks.Publish(ctx, tick); err != nil {
				c.logger.Error("failed to publish price tick", "symbol", tick.Symbol, "err", err)
			}
		}
	}
}

// parseTrades extracts trade ticks from one stream frame, skipping control
// messages and anything that does not decode.
func parseTrades(data []byte) []domain.PriceTick {
	var msgs []json.RawMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil
	}
	var ticks []domain.PriceTick
	for _, raw := range msgs {
		var msg alpacaMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if msg.T != "t" || !msg.P.IsPositive() {
			continue
		}
		ts, err := time.Parse(time.RFC3339Nano, msg.Ts)
		if err != nil {
			ts = time.Now()
		}
		ticks = append(ticks, domain.PriceTick{
			Symbol:    msg.S,
			Price:     msg.P,
			Size:      msg.Sz,
			Timestamp: ts.UTC(),
		})
	}
	return ticks
}
