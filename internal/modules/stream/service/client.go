package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"magic_bot/internal/models"
	alpaca "magic_bot/internal/modules/alpaca/service"
	"magic_bot/internal/modules/config"
	"magic_bot/pkg/logger"
)

// Client стримит котировки по вебсокету и держит их в кэше; при протухшем
// кэше отдаёт котировку через REST как запасной канал.
type Client struct {
	cfg    *config.Config
	rest   *alpaca.Client
	dialer *websocket.Dialer

	mu     sync.RWMutex
	quotes map[string]models.Quote
	seen   map[string]time.Time
}

func NewClient(cfg *config.Config, rest *alpaca.Client) *Client {
	return &Client{
		cfg:    cfg,
		rest:   rest,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		quotes: make(map[string]models.Quote),
		seen:   make(map[string]time.Time),
	}
}

type wsMessage struct {
	Type      string    `json:"T"`
	Symbol    string    `json:"S"`
	BidPrice  float64   `json:"bp"`
	BidSize   float64   `json:"bs"`
	AskPrice  float64   `json:"ap"`
	AskSize   float64   `json:"as"`
	Timestamp time.Time `json:"t"`
	Msg       string    `json:"msg"`
}

func (c *Client) wsURL() string {
	host := strings.TrimPrefix(c.cfg.Alpaca.DataURL, "https://")
	// у крипты и акций разные стрим-пути
	for _, s := range c.cfg.Watchlist {
		if strings.Contains(s, "/") {
			return "wss://stream." + host + "/v1beta3/crypto/us"
		}
	}
	return "wss://stream." + host + "/v2/iex"
}

// Run держит соединение живым: коннект, auth, subscribe, чтение; на любом
// обрыве ждём и переподключаемся, пока контекст не закрыт.
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.runOnce(ctx); err != nil {
			logger.Warn("quote_stream_disconnected err=%v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(3 * time.Second):
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	auth, _ := sonic.Marshal(map[string]string{
		"action": "auth",
		"key":    c.cfg.Alpaca.KeyID,
		"secret": c.cfg.Alpaca.SecretKey,
	})
	if err := conn.WriteMessage(websocket.TextMessage, auth); err != nil {
		return err
	}
	sub, _ := sonic.Marshal(map[string]any{
		"action": "subscribe",
		"quotes": c.cfg.Watchlist,
	})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return err
	}
	logger.Info("quote_stream_connected symbols=%d", len(c.cfg.Watchlist))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msgs []wsMessage
		if err := sonic.Unmarshal(raw, &msgs); err != nil {
			continue
		}
		for _, m := range msgs {
			if m.Type != "q" {
				continue
			}
			c.store(m)
		}
	}
}

func (c *Client) store(m wsMessage) {
	c.mu.Lock()
	c.quotes[m.Symbol] = models.Quote{
		Symbol:    m.Symbol,
		BidPrice:  m.BidPrice,
		BidSize:   m.BidSize,
		AskPrice:  m.AskPrice,
		AskSize:   m.AskSize,
		Timestamp: m.Timestamp,
	}
	c.seen[m.Symbol] = time.Now()
	c.mu.Unlock()
}

// GetQuote — котировка из кэша, пока она не старше QuoteMaxAge; иначе REST.
func (c *Client) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	c.mu.RLock()
	q, ok := c.quotes[symbol]
	at := c.seen[symbol]
	c.mu.RUnlock()

	if ok && time.Since(at) <= c.cfg.QuoteMaxAge {
		return &q, nil
	}
	return c.rest.GetLatestQuote(ctx, symbol)
}
