package service

import (
	"fmt"
	"strings"

	"magic_bot/internal/httpx"
	"magic_bot/internal/modules/config"
)

// Client — обвязка над REST-поверхностью Alpaca. Все вызовы идут через
// httpx и его лимитеры; сам клиент состояния не держит.
type Client struct {
	cfg  *config.Config
	http *httpx.Client

	tradingURL string
	dataURL    string
}

func NewClient(cfg *config.Config, http *httpx.Client) *Client {
	return &Client{
		cfg:        cfg,
		http:       http,
		tradingURL: strings.TrimRight(cfg.Alpaca.TradingURL, "/"),
		dataURL:    strings.TrimRight(cfg.Alpaca.DataURL, "/"),
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"APCA-API-KEY-ID":     c.cfg.Alpaca.KeyID,
		"APCA-API-SECRET-KEY": c.cfg.Alpaca.SecretKey,
		"Content-Type":        "application/json",
	}
}

// APIError — ошибка уровня API брокера: статус плюс код/сообщение из тела.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alpaca api %d: code=%d %s", e.StatusCode, e.Code, e.Message)
}
