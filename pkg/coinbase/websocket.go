package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/tradetools/gdax-cli/pkg/models"
)

const DefaultWebSocketURL = "wss://ws-feed.exchange.coinbase.com"

// WebSocketFeed streams ticker updates over the exchange websocket as
// an alternative to REST polling. Subscriptions are signed with the
// same legacy scheme as REST calls.
type WebSocketFeed struct {
	url       string
	auth      *LegacyAuthenticator
	conn      *websocket.Conn
	mu        sync.Mutex
	connected bool
	logger    *logrus.Logger
}

type subscribeMessage struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
	Signature  string   `json:"signature"`
	Key        string   `json:"key"`
	Passphrase string   `json:"passphrase"`
	Timestamp  string   `json:"timestamp"`
}

type tickerMessage struct {
	Type      string          `json:"type"`
	ProductID string          `json:"product_id"`
	TradeID   int64           `json:"trade_id"`
	Price     json.RawMessage `json:"price"`
	BestBid   json.RawMessage `json:"best_bid"`
	BestAsk   json.RawMessage `json:"best_ask"`
	Time      time.Time       `json:"time"`
	Message   string          `json:"message"`
}

func NewWebSocketFeed(url string, auth *LegacyAuthenticator, logger *logrus.Logger) *WebSocketFeed {
	if url == "" {
		url = DefaultWebSocketURL
	}
	return &WebSocketFeed{
		url:    url,
		auth:   auth,
		logger: logger,
	}
}

// Stream connects, subscribes to the ticker channel for productID and
// emits each price update until ctx is cancelled or the connection
// drops. The returned channel is closed when the stream ends.
func (ws *WebSocketFeed) Stream(ctx context.Context, productID string) (<-chan models.Ticker, error) {
	if err := ws.connect(ctx); err != nil {
		return nil, err
	}
	if err := ws.subscribe(productID); err != nil {
		ws.close()
		return nil, err
	}

	out := make(chan models.Ticker)
	go ws.readLoop(ctx, out)
	go ws.keepAlive(ctx)
	return out, nil
}

func (ws *WebSocketFeed) connect(ctx context.Context) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.connected {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, ws.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to websocket: %w", err)
	}

	ws.conn = conn
	ws.connected = true
	return nil
}

func (ws *WebSocketFeed) subscribe(productID string) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.connected {
		return fmt.Errorf("websocket not connected")
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	sub := subscribeMessage{
		Type:       "subscribe",
		ProductIDs: []string{productID},
		Channels:   []string{"ticker"},
		Key:        ws.auth.apiKey,
		Passphrase: ws.auth.passphrase,
		Timestamp:  timestamp,
		// Subscriptions are signed like a GET of /users/self/verify.
		Signature: ws.auth.Sign("GET", "/users/self/verify", "", timestamp),
	}

	return ws.conn.WriteJSON(sub)
}

func (ws *WebSocketFeed) readLoop(ctx context.Context, out chan<- models.Ticker) {
	defer close(out)
	defer ws.close()

	for {
		var msg tickerMessage
		if err := ws.conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				ws.logger.WithError(err).Error("Failed to read websocket message")
			}
			return
		}

		switch msg.Type {
		case "ticker":
			tick, err := parseWSTicker(&msg)
			if err != nil {
				ws.logger.WithError(err).Warn("Skipping malformed ticker message")
				continue
			}
			select {
			case out <- *tick:
			case <-ctx.Done():
				return
			}
		case "error":
			ws.logger.WithField("message", msg.Message).Error("Websocket error message")
			return
		}
	}
}

func parseWSTicker(msg *tickerMessage) (*models.Ticker, error) {
	var tick models.Ticker
	tick.TradeID = msg.TradeID
	tick.Time = msg.Time
	if err := tick.Price.UnmarshalJSON(msg.Price); err != nil {
		return nil, fmt.Errorf("ticker price: %w", err)
	}
	if len(msg.BestBid) > 0 {
		if err := tick.Bid.UnmarshalJSON(msg.BestBid); err != nil {
			return nil, fmt.Errorf("ticker bid: %w", err)
		}
	}
	if len(msg.BestAsk) > 0 {
		if err := tick.Ask.UnmarshalJSON(msg.BestAsk); err != nil {
			return nil, fmt.Errorf("ticker ask: %w", err)
		}
	}
	return &tick, nil
}

func (ws *WebSocketFeed) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ws.close()
			return
		case <-ticker.C:
			ws.mu.Lock()
			if ws.connected {
				if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					ws.logger.WithError(err).Error("Failed to send ping")
					ws.mu.Unlock()
					ws.close()
					return
				}
			}
			ws.mu.Unlock()
		}
	}
}

func (ws *WebSocketFeed) close() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.connected = false
	if ws.conn != nil {
		ws.conn.Close()
	}
}
