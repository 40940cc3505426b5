package gateway

import (
	"context"
	"log/slog"
	"strings"
)

// PriceFeed streams the raw tick payloads published for a symbol. The feed
// channel is closed once ctx is done.
type PriceFeed interface {
	Feed(ctx context.Context, symbol string) <-chan []byte
}

type subscription struct {
	client *Client
	symbol string
}

type tickMsg struct {
	symbol string
	data   []byte
}

// Hub owns all client and subscription state; every mutation goes through
// Run's select loop.
type Hub struct {
	clients     map[*Client]bool
	subs        map[string]map[*Client]bool
	feedCancels map[string]context.CancelFunc

	register    chan *Client
	unregister  chan *Client
	subscribe   chan subscription
	unsubscribe chan subscription
	broadcast   chan tickMsg

	feed   PriceFeed
	logger *slog.Logger
}

func NewHub(feed PriceFeed, logger *slog.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		subs:        make(map[string]map[*Client]bool),
		feedCancels: make(map[string]context.CancelFunc),
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		subscribe:   make(chan subscription, 64),
		unsubscribe: make(chan subscription, 64),
		broadcast:   make(chan tickMsg, 256),
		feed:        feed,
		logger:      logger,
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for _, cancel := range h.feedCancels {
				cancel()
			}
			return
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				for sym := range h.subs {
					h.drop(sym, client)
				}
				close(client.send)
			}
		case sub := <-h.subscribe:
			if _, ok := h.clients[sub.client]; !ok {
				continue
			}
			if _, ok := h.subs[sub.symbol]; !ok {
				h.subs[sub.symbol] = make(map[*Client]bool)
				feedCtx, cancel := context.WithCancel(ctx)
				h.feedCancels[sub.symbol] = cancel
				go h.pump(feedCtx, sub.symbol)
			}
			h.subs[sub.symbol][sub.client] = true
		case sub := <-h.unsubscribe:
			h.drop(sub.symbol, sub.client)
		case msg := <-h.broadcast:
			h.fanOut(msg.symbol, msg.data)
		}
	}
}

func (h *Hub) drop(symbol string, client *Client) {
	clients, ok := h.subs[symbol]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		if cancel, ok := h.feedCancels[symbol]; ok {
			cancel()
			delete(h.feedCancels, symbol)
		}
		delete(h.subs, symbol)
	}
}

func (h *Hub) pump(ctx context.Context, symbol string) {
	for data := range h.feed.Feed(ctx, symbol) {
		select {
		case h.broadcast <- tickMsg{symbol: symbol, data: data}:
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) fanOut(symbol string, data []byte) {
	for client := range h.subs[symbol] {
		select {
		case client.send <- data:
		default:
			h.logger.Debug("dropping tick for slow client", "symbol", symbol)
		}
	}
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
